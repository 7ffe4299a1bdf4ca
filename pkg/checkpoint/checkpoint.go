// Package checkpoint reads serialized model checkpoints and applies them to
// model instances. Checkpoints are PyTorch .th archives holding either a
// plain parameter state, a diffq-compressed state, or a full model package
// (architecture name, construction kwargs and state).
package checkpoint

import (
	"errors"
	"fmt"

	"github.com/nlpodyssey/gopickle/pytorch"

	"github.com/stemsep/stemsep/pkg/model"
	"github.com/stemsep/stemsep/pkg/quant"
)

var (
	// ErrQuantizedState indicates a compressed checkpoint applied without a
	// quantizer.
	ErrQuantizedState = errors.New("checkpoint: state is quantized but no quantizer was supplied")
	// ErrStateMismatch indicates a checkpoint that does not match the target
	// model's parameters.
	ErrStateMismatch = errors.New("checkpoint: state does not match model parameters")
	// ErrUnsupportedArchive indicates a checkpoint whose structure is not
	// recognized.
	ErrUnsupportedArchive = errors.New("checkpoint: unsupported archive structure")
)

// State is the deserialized parameter state of one checkpoint. Exactly one
// of Tensors and Compressed is populated.
type State struct {
	Tensors map[string]*model.Tensor
	// Compressed holds the diffq payload when the checkpoint was saved
	// through a quantizer.
	Compressed []byte
}

// QuantizerSpec records the codec parameters a package was compressed with.
type QuantizerSpec struct {
	GroupSize int
	MinSize   int
}

// Package is a self-describing model archive: the architecture name, its
// construction kwargs and the trained state.
type Package struct {
	Klass     string
	Kwargs    map[string]interface{}
	State     *State
	Quantizer *QuantizerSpec
}

// Read loads the parameter state stored at path.
func Read(path string) (*State, error) {
	obj, err := pytorch.Load(path)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint %s: %w", path, err)
	}
	st, err := stateFromObject(obj)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint %s: %w", path, err)
	}
	return st, nil
}

// ReadPackage loads a full model package stored at path.
func ReadPackage(path string) (*Package, error) {
	obj, err := pytorch.Load(path)
	if err != nil {
		return nil, fmt.Errorf("read package %s: %w", path, err)
	}
	pkg, err := packageFromObject(obj)
	if err != nil {
		return nil, fmt.Errorf("read package %s: %w", path, err)
	}
	return pkg, nil
}

// Instantiate constructs the architecture the package describes, with
// unloaded parameters.
func (p *Package) Instantiate() (model.Model, error) {
	sources, err := stringList(p.Kwargs["sources"])
	if err != nil {
		return nil, fmt.Errorf("%w: sources: %v", ErrUnsupportedArchive, err)
	}
	switch p.Klass {
	case "Demucs":
		channels, err := optionalInt(p.Kwargs["channels"], model.DefaultDemucsChannels)
		if err != nil {
			return nil, fmt.Errorf("%w: channels: %v", ErrUnsupportedArchive, err)
		}
		return model.NewDemucs(model.DemucsConfig{Sources: sources, Channels: channels}), nil
	case "HDemucs":
		channels, err := optionalInt(p.Kwargs["channels"], model.DefaultHDemucsChannels)
		if err != nil {
			return nil, fmt.Errorf("%w: channels: %v", ErrUnsupportedArchive, err)
		}
		return model.NewHDemucs(model.HDemucsConfig{Sources: sources, Channels: channels}), nil
	case "ConvTasNet":
		x, err := optionalInt(p.Kwargs["X"], model.DefaultTasNetBlocks)
		if err != nil {
			return nil, fmt.Errorf("%w: X: %v", ErrUnsupportedArchive, err)
		}
		return model.NewConvTasNet(model.ConvTasNetConfig{Sources: sources, X: x}), nil
	default:
		return nil, fmt.Errorf("%w: unknown architecture %q", ErrUnsupportedArchive, p.Klass)
	}
}

// Apply copies the state onto the model's parameters. When the state is
// compressed the supplied quantizer decompresses it first. Application is
// all or nothing: the model is left untouched unless every parameter has a
// matching tensor of identical shape and no extra tensors remain.
func Apply(m model.Model, s *State, q *quant.DiffQuantizer) error {
	tensors := s.Tensors
	if len(s.Compressed) > 0 {
		if q == nil {
			return ErrQuantizedState
		}
		var err error
		tensors, err = q.Decompress(s.Compressed)
		if err != nil {
			return err
		}
	}

	params := m.Parameters()
	for name, p := range params {
		src, ok := tensors[name]
		if !ok {
			return fmt.Errorf("%w: missing parameter %q", ErrStateMismatch, name)
		}
		if !p.SameShape(src) {
			return fmt.Errorf("%w: parameter %q has shape %v, checkpoint has %v",
				ErrStateMismatch, name, p.Shape, src.Shape)
		}
	}
	for name := range tensors {
		if _, ok := params[name]; !ok {
			return fmt.Errorf("%w: unexpected parameter %q", ErrStateMismatch, name)
		}
	}

	for name, p := range params {
		copy(p.Data, tensors[name].Data)
	}
	return nil
}

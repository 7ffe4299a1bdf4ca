package model

import "fmt"

const (
	tasnetFilters    = 256 // N: encoder basis filters
	tasnetFilterLen  = 20  // L: encoder filter length
	tasnetBottleneck = 256 // B: bottleneck channels
	tasnetHidden     = 512 // H: convolutional block channels
	tasnetKernel     = 3   // P: depthwise kernel size
	tasnetRepeats    = 4   // R: separator repeats

	// DefaultTasNetBlocks is the default number of convolutional blocks per
	// separator repeat.
	DefaultTasNetBlocks = 8
)

// ConvTasNetConfig configures a ConvTasNet instance. Zero fields take the
// architecture defaults.
type ConvTasNetConfig struct {
	Sources []string
	// X is the number of convolutional blocks per repeat.
	X int
}

func (c *ConvTasNetConfig) applyDefaults() {
	if c.X == 0 {
		c.X = DefaultTasNetBlocks
	}
}

// ConvTasNet is the fully convolutional masking architecture.
type ConvTasNet struct {
	cfg      ConvTasNetConfig
	params   map[string]*Tensor
	training bool
}

// NewConvTasNet constructs a ConvTasNet model with freshly allocated,
// unloaded parameters.
func NewConvTasNet(cfg ConvTasNetConfig) *ConvTasNet {
	cfg.applyDefaults()
	t := &ConvTasNet{cfg: cfg, params: make(map[string]*Tensor), training: true}

	t.params["encoder.conv.weight"] = NewTensor(tasnetFilters, 1, tasnetFilterLen)
	t.params["separator.bottleneck.weight"] = NewTensor(tasnetBottleneck, tasnetFilters, 1)
	t.params["separator.norm.weight"] = NewTensor(tasnetFilters)
	t.params["separator.norm.bias"] = NewTensor(tasnetFilters)

	for r := 0; r < tasnetRepeats; r++ {
		for x := 0; x < cfg.X; x++ {
			prefix := fmt.Sprintf("separator.blocks.%d.%d", r, x)
			t.params[prefix+".conv1x1.weight"] = NewTensor(tasnetHidden, tasnetBottleneck, 1)
			t.params[prefix+".dconv.weight"] = NewTensor(tasnetHidden, 1, tasnetKernel)
			t.params[prefix+".res.weight"] = NewTensor(tasnetBottleneck, tasnetHidden, 1)
			t.params[prefix+".norm1.weight"] = NewTensor(tasnetHidden)
			t.params[prefix+".norm1.bias"] = NewTensor(tasnetHidden)
			t.params[prefix+".norm2.weight"] = NewTensor(tasnetHidden)
			t.params[prefix+".norm2.bias"] = NewTensor(tasnetHidden)
		}
	}

	t.params["separator.mask.weight"] = NewTensor(len(cfg.Sources)*tasnetFilters, tasnetBottleneck, 1)
	t.params["decoder.conv_tr.weight"] = NewTensor(tasnetFilters, 1, tasnetFilterLen)

	return t
}

func (t *ConvTasNet) Sources() []string              { return t.cfg.Sources }
func (t *ConvTasNet) Parameters() map[string]*Tensor { return t.params }
func (t *ConvTasNet) Eval()                          { t.training = false }
func (t *ConvTasNet) Training() bool                 { return t.training }

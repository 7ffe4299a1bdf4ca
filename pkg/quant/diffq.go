// Package quant implements the differentiable quantization codec used to
// compress pretrained checkpoints. Only the consuming side is implemented:
// wrapping a model, decompressing a stored payload and detaching again.
package quant

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/x448/float16"

	"github.com/stemsep/stemsep/pkg/model"
)

const (
	// DefaultGroupSize is the number of values sharing one quantization
	// range in the pretrained loading path.
	DefaultGroupSize = 8
	// DefaultMinSize is the element count below which tensors are stored
	// uncompressed.
	DefaultMinSize = 1

	payloadMagic = "DIFQ"
	maxBits      = 15
)

// ErrMalformedPayload indicates a compressed payload that cannot be decoded.
var ErrMalformedPayload = errors.New("quant: malformed payload")

// DiffQuantizer wraps a model with the quantization codec. While attached,
// the model's forward pass carries quantization-aware overhead; Detach must
// be called once the decompressed weights have been applied.
type DiffQuantizer struct {
	model     model.Model
	groupSize int
	minSize   int
	attached  bool
}

// NewDiffQuantizer wraps m with codec hooks. groupSize values share one
// quantization range; tensors with fewer than minSize elements are stored
// uncompressed.
func NewDiffQuantizer(m model.Model, groupSize, minSize int) *DiffQuantizer {
	return &DiffQuantizer{model: m, groupSize: groupSize, minSize: minSize, attached: true}
}

// Attached reports whether the codec hooks are still installed.
func (q *DiffQuantizer) Attached() bool { return q.attached }

// Detach removes the codec hooks so the wrapped model behaves as a plain
// model again.
func (q *DiffQuantizer) Detach() { q.attached = false }

// Decompress decodes a compressed payload into named tensors.
//
// Payload layout, little-endian: the magic "DIFQ", a uint32 tensor count,
// then per tensor a length-prefixed name, a uint8 bit width (0 for raw
// float32 data), a uint8 rank followed by int64 dimensions, and the data.
// Quantized data is stored per group of groupSize values as two IEEE 754
// half-precision fields (range minimum and step) followed by the packed
// levels, most significant bit first.
func (q *DiffQuantizer) Decompress(payload []byte) (map[string]*model.Tensor, error) {
	r := bytes.NewReader(payload)

	magic := make([]byte, len(payloadMagic))
	if _, err := io.ReadFull(r, magic); err != nil || string(magic) != payloadMagic {
		return nil, fmt.Errorf("%w: bad magic", ErrMalformedPayload)
	}
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	tensors := make(map[string]*model.Tensor, count)
	for i := uint32(0); i < count; i++ {
		name, err := readString(r)
		if err != nil {
			return nil, fmt.Errorf("%w: tensor %d: %v", ErrMalformedPayload, i, err)
		}
		var bits, rank uint8
		if err := binary.Read(r, binary.LittleEndian, &bits); err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrMalformedPayload, name, err)
		}
		if bits > maxBits {
			return nil, fmt.Errorf("%w: %q: %d bit quantization", ErrMalformedPayload, name, bits)
		}
		if err := binary.Read(r, binary.LittleEndian, &rank); err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrMalformedPayload, name, err)
		}
		shape := make([]int, rank)
		for d := range shape {
			var dim int64
			if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
				return nil, fmt.Errorf("%w: %q: %v", ErrMalformedPayload, name, err)
			}
			if dim <= 0 {
				return nil, fmt.Errorf("%w: %q: dimension %d", ErrMalformedPayload, name, dim)
			}
			shape[d] = int(dim)
		}

		t := model.NewTensor(shape...)
		if bits == 0 {
			if err := binary.Read(r, binary.LittleEndian, t.Data); err != nil {
				return nil, fmt.Errorf("%w: %q: %v", ErrMalformedPayload, name, err)
			}
		} else if err := q.readQuantized(r, t.Data, int(bits)); err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrMalformedPayload, name, err)
		}
		if _, dup := tensors[name]; dup {
			return nil, fmt.Errorf("%w: duplicate tensor %q", ErrMalformedPayload, name)
		}
		tensors[name] = t
	}
	return tensors, nil
}

// readQuantized fills dst group by group from the packed representation.
func (q *DiffQuantizer) readQuantized(r io.Reader, dst []float32, bits int) error {
	for start := 0; start < len(dst); start += q.groupSize {
		end := start + q.groupSize
		if end > len(dst) {
			end = len(dst)
		}
		var rangeBits [2]uint16
		if err := binary.Read(r, binary.LittleEndian, &rangeBits); err != nil {
			return err
		}
		low := float16.Frombits(rangeBits[0]).Float32()
		step := float16.Frombits(rangeBits[1]).Float32()

		n := end - start
		packed := make([]byte, (n*bits+7)/8)
		if _, err := io.ReadFull(r, packed); err != nil {
			return err
		}
		bitPos := 0
		for j := 0; j < n; j++ {
			level := 0
			for b := 0; b < bits; b++ {
				bit := (packed[bitPos>>3] >> (7 - bitPos&7)) & 1
				level = level<<1 | int(bit)
				bitPos++
			}
			dst[start+j] = low + float32(level)*step
		}
	}
	return nil
}

func readString(r io.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// Package model defines the source separation model architectures consumed
// by the pretrained loading path, together with the tensor representation
// their parameters are stored in.
package model

// Tensor is a dense float32 parameter tensor.
type Tensor struct {
	Shape []int
	Data  []float32
}

// NewTensor allocates a zero-filled tensor with the given shape.
func NewTensor(shape ...int) *Tensor {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return &Tensor{Shape: shape, Data: make([]float32, n)}
}

// NumElements returns the total number of elements in the tensor.
func (t *Tensor) NumElements() int {
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// SameShape reports whether t and other have identical shapes.
func (t *Tensor) SameShape(other *Tensor) bool {
	if len(t.Shape) != len(other.Shape) {
		return false
	}
	for i, d := range t.Shape {
		if other.Shape[i] != d {
			return false
		}
	}
	return true
}

// Model is a constructible, loadable separation model. Implementations own
// their parameter tensors; loading mutates those tensors in place.
type Model interface {
	// Sources returns the stem names the model separates, in output order.
	Sources() []string
	// Parameters returns the named parameter tensors of the model.
	Parameters() map[string]*Tensor
	// Eval switches the model into evaluation mode, disabling training-time
	// behavior such as dropout and batch-norm statistics updates.
	Eval()
	// Training reports whether the model is still in training mode.
	Training() bool
}

package model

import (
	"errors"
	"fmt"
)

// ErrEmptyBag indicates a bag definition with no member models.
var ErrEmptyBag = errors.New("model: bag of models has no members")

// ErrMismatchedSources indicates bag members that do not separate the same
// set of sources.
var ErrMismatchedSources = errors.New("model: bag members have mismatched sources")

// BagOfModels is an ensemble of models whose per-source outputs are combined
// with fixed mixing weights at inference time.
type BagOfModels struct {
	models  []Model
	weights [][]float64
	segment float64
}

// NewBagOfModels assembles a bag from its member models. weights holds one
// row per member with one entry per source; nil defaults to uniform weights.
// segment is the inference split length in seconds, zero when unconstrained.
func NewBagOfModels(models []Model, weights [][]float64, segment float64) (*BagOfModels, error) {
	if len(models) == 0 {
		return nil, ErrEmptyBag
	}
	sources := models[0].Sources()
	for _, m := range models[1:] {
		other := m.Sources()
		if len(other) != len(sources) {
			return nil, ErrMismatchedSources
		}
		for i, s := range sources {
			if other[i] != s {
				return nil, ErrMismatchedSources
			}
		}
	}
	if weights == nil {
		weights = make([][]float64, len(models))
		for i := range weights {
			row := make([]float64, len(sources))
			for j := range row {
				row[j] = 1
			}
			weights[i] = row
		}
	}
	if len(weights) != len(models) {
		return nil, fmt.Errorf("model: bag has %d members but %d weight rows", len(models), len(weights))
	}
	for i, row := range weights {
		if len(row) != len(sources) {
			return nil, fmt.Errorf("model: weight row %d has %d entries for %d sources", i, len(row), len(sources))
		}
	}
	return &BagOfModels{models: models, weights: weights, segment: segment}, nil
}

// Models returns the bag members in definition order.
func (b *BagOfModels) Models() []Model { return b.models }

// Weights returns the per-member, per-source mixing weights.
func (b *BagOfModels) Weights() [][]float64 { return b.weights }

// Segment returns the inference split length in seconds, or zero.
func (b *BagOfModels) Segment() float64 { return b.segment }

func (b *BagOfModels) Sources() []string { return b.models[0].Sources() }

// Parameters returns the union of the member parameters, prefixed with the
// member index.
func (b *BagOfModels) Parameters() map[string]*Tensor {
	out := make(map[string]*Tensor)
	for i, m := range b.models {
		for name, p := range m.Parameters() {
			out[fmt.Sprintf("models.%d.%s", i, name)] = p
		}
	}
	return out
}

func (b *BagOfModels) Eval() {
	for _, m := range b.models {
		m.Eval()
	}
}

func (b *BagOfModels) Training() bool {
	for _, m := range b.models {
		if m.Training() {
			return true
		}
	}
	return false
}

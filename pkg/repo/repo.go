// Package repo resolves model identifiers against remote catalogs and local
// checkpoint directories. Repositories are cheap to construct and are meant
// to be built fresh per top-level resolution call.
package repo

import (
	"context"
	"fmt"

	"github.com/stemsep/stemsep/pkg/checkpoint"
	"github.com/stemsep/stemsep/pkg/model"
	"github.com/stemsep/stemsep/pkg/quant"
)

// ModelOnlyRepo resolves identifiers to single models.
type ModelOnlyRepo interface {
	// HasModel reports whether the identifier can be resolved here.
	HasModel(name string) bool
	// GetModel resolves the identifier to a loaded model.
	GetModel(ctx context.Context, name string) (model.Model, error)
}

// ModelLoadingError reports that an identifier could not be resolved to a
// model or bag of models. It is a user-facing resolution failure, not a
// transport or configuration error.
type ModelLoadingError struct {
	msg string
}

func (e *ModelLoadingError) Error() string { return e.msg }

func loadingErrorf(format string, args ...interface{}) error {
	return &ModelLoadingError{msg: fmt.Sprintf(format, args...)}
}

// loadPackage reads a model package from disk, builds the architecture it
// names and applies its state, routing compressed states through the
// package's quantizer parameters.
func loadPackage(path string) (model.Model, error) {
	pkg, err := checkpoint.ReadPackage(path)
	if err != nil {
		return nil, err
	}
	m, err := pkg.Instantiate()
	if err != nil {
		return nil, err
	}
	var q *quant.DiffQuantizer
	if pkg.Quantizer != nil {
		q = quant.NewDiffQuantizer(m, pkg.Quantizer.GroupSize, pkg.Quantizer.MinSize)
	}
	if err := checkpoint.Apply(m, pkg.State, q); err != nil {
		return nil, err
	}
	if q != nil {
		q.Detach()
	}
	return m, nil
}

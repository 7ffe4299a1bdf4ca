package repo

import (
	"context"

	"github.com/stemsep/stemsep/pkg/model"
)

// AnyModelRepo resolves an identifier through an ordered list of fallback
// repositories: single-model resolution first, then bag resolution.
type AnyModelRepo struct {
	repos []ModelOnlyRepo
}

// NewAnyModelRepo composes the given repositories in resolution order.
func NewAnyModelRepo(repos ...ModelOnlyRepo) *AnyModelRepo {
	return &AnyModelRepo{repos: repos}
}

func (a *AnyModelRepo) HasModel(name string) bool {
	for _, r := range a.repos {
		if r.HasModel(name) {
			return true
		}
	}
	return false
}

func (a *AnyModelRepo) GetModel(ctx context.Context, name string) (model.Model, error) {
	for _, r := range a.repos {
		if r.HasModel(name) {
			return r.GetModel(ctx, name)
		}
	}
	return nil, loadingErrorf("could not find a pretrained model or bag of models with name %q", name)
}

package repo

import (
	"context"

	"github.com/stemsep/stemsep/pkg/fetch"
	"github.com/stemsep/stemsep/pkg/model"
)

// RemoteRepo resolves signatures against a parsed catalog of remote
// artifact locations.
type RemoteRepo struct {
	models map[string]string
	cache  *fetch.Cache
}

// NewRemoteRepo creates a repository over a parsed catalog mapping
// signatures to URLs. Artifacts are fetched through cache on first use.
func NewRemoteRepo(models map[string]string, cache *fetch.Cache) *RemoteRepo {
	return &RemoteRepo{models: models, cache: cache}
}

func (r *RemoteRepo) HasModel(sig string) bool {
	_, ok := r.models[sig]
	return ok
}

func (r *RemoteRepo) GetModel(ctx context.Context, sig string) (model.Model, error) {
	url, ok := r.models[sig]
	if !ok {
		return nil, loadingErrorf("could not find a pretrained model with signature %q", sig)
	}
	path, err := r.cache.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	return loadPackage(path)
}

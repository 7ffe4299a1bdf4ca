package repo

import (
	"context"
	"fmt"
	"io/fs"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/stemsep/stemsep/pkg/model"
)

// BagOnlyRepo resolves pre-defined ensembles ("bags") of models. A bag is a
// yaml file next to the catalog naming its member signatures, optional
// per-source mixing weights and an optional inference segment length.
type BagOnlyRepo struct {
	fsys      fs.FS
	modelRepo ModelOnlyRepo
}

// bagSpec is the on-disk shape of a bag definition.
type bagSpec struct {
	Models  []string    `yaml:"models"`
	Weights [][]float64 `yaml:"weights"`
	Segment float64     `yaml:"segment"`
}

// NewBagOnlyRepo creates a bag repository over the given filesystem,
// resolving member models through modelRepo.
func NewBagOnlyRepo(fsys fs.FS, modelRepo ModelOnlyRepo) *BagOnlyRepo {
	return &BagOnlyRepo{fsys: fsys, modelRepo: modelRepo}
}

func (b *BagOnlyRepo) HasModel(name string) bool {
	_, err := fs.Stat(b.fsys, name+".yaml")
	return err == nil
}

func (b *BagOnlyRepo) GetModel(ctx context.Context, name string) (model.Model, error) {
	data, err := fs.ReadFile(b.fsys, name+".yaml")
	if err != nil {
		return nil, loadingErrorf("%s is neither a single pretrained model nor a bag of models", name)
	}
	var spec bagSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse bag definition %s: %w", name, err)
	}

	members := make([]model.Model, len(spec.Models))
	g, gctx := errgroup.WithContext(ctx)
	for i, sig := range spec.Models {
		i, sig := i, sig
		g.Go(func() error {
			m, err := b.modelRepo.GetModel(gctx, sig)
			if err != nil {
				return err
			}
			members[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return model.NewBagOfModels(members, spec.Weights, spec.Segment)
}

// Package pretrained resolves model identifiers, curated names and bag of
// models ensembles to fully weight-loaded model instances, fetching and
// verifying remote artifacts as needed.
package pretrained

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"os"

	"github.com/stemsep/stemsep/pkg/artifact"
	"github.com/stemsep/stemsep/pkg/fetch"
	"github.com/stemsep/stemsep/pkg/logging"
	"github.com/stemsep/stemsep/pkg/model"
	"github.com/stemsep/stemsep/pkg/repo"
)

//go:embed remote
var remoteFS embed.FS

const (
	// DefaultModel is the curated model used when the caller names none.
	DefaultModel = "mdx_extra_q"

	// remoteRootURL is the catalog root for the curated pretrained models.
	// Subdirectories come from root directives inside the manifest.
	remoteRootURL = "https://dl.fbaipublicfiles.com/demucs/"

	// unittestModel is the reserved name of the deterministic, unloaded
	// self-test model.
	unittestModel = "demucs_unittest"

	rootURLEnv = "STEMSEP_ROOT_URL"
)

var sources = []string{"drums", "bass", "other", "vocals"}

// Sources returns the stem names all curated models separate.
func Sources() []string {
	out := make([]string, len(sources))
	copy(out, sources)
	return out
}

type options struct {
	repoDir string
	rootURL string
	cache   *fetch.Cache
	log     logging.Logger
}

// Option configures a resolution call.
type Option func(*options)

// WithRepo resolves names against a local directory of trained model
// packages instead of the remote catalog. The directory must exist.
func WithRepo(dir string) Option {
	return func(o *options) {
		o.repoDir = dir
	}
}

// WithRootURL overrides the remote catalog root.
func WithRootURL(url string) Option {
	return func(o *options) {
		o.rootURL = url
	}
}

// WithCache sets the checkpoint cache used for downloads.
func WithCache(cache *fetch.Cache) Option {
	return func(o *options) {
		o.cache = cache
	}
}

// WithLogger sets the logger to use.
func WithLogger(log logging.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

func newOptions(opts []Option) *options {
	o := &options{rootURL: remoteRootURL}
	if url := os.Getenv(rootURLEnv); url != "" {
		o.rootURL = url
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.log == nil {
		o.log = logging.NewLogger("pretrained")
	}
	return o
}

// GetModel resolves name to a loaded model. name is either a bag of models
// name, a curated pretrained name, or a training run signature from the
// remote catalog or the local repository selected with WithRepo. The
// returned model is always in evaluation mode.
func GetModel(ctx context.Context, name string, opts ...Option) (model.Model, error) {
	if name == unittestModel {
		m := model.NewHDemucs(model.HDemucsConfig{Channels: 4, Sources: Sources()})
		m.Eval()
		return m, nil
	}

	o := newOptions(opts)
	if o.cache == nil {
		cache, err := fetch.NewCache(fetch.WithLogger(o.log))
		if err != nil {
			return nil, err
		}
		o.cache = cache
	}

	var modelRepo repo.ModelOnlyRepo
	var bagFS fs.FS
	if o.repoDir == "" {
		models, err := Catalog(opts...)
		if err != nil {
			return nil, err
		}
		modelRepo = repo.NewRemoteRepo(models, o.cache)
		bagFS, err = fs.Sub(remoteFS, "remote")
		if err != nil {
			return nil, err
		}
	} else {
		info, err := os.Stat(o.repoDir)
		if err != nil || !info.IsDir() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidRepo, o.repoDir)
		}
		modelRepo, err = repo.NewLocalRepo(o.repoDir)
		if err != nil {
			return nil, err
		}
		bagFS = os.DirFS(o.repoDir)
	}

	bagRepo := repo.NewBagOnlyRepo(bagFS, modelRepo)
	anyRepo := repo.NewAnyModelRepo(modelRepo, bagRepo)

	m, err := anyRepo.GetModel(ctx, name)
	if err != nil {
		return nil, err
	}
	m.Eval()
	return m, nil
}

// Catalog parses the embedded remote manifest into a mapping from signature
// prefixes to artifact URLs.
func Catalog(opts ...Option) (map[string]string, error) {
	o := newOptions(opts)
	manifest, err := remoteFS.ReadFile("remote/files.txt")
	if err != nil {
		return nil, fmt.Errorf("read embedded manifest: %w", err)
	}
	locator := artifact.NewLocator(o.rootURL)
	return locator.ParseCatalog(string(manifest))
}

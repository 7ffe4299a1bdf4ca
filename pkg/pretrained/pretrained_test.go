package pretrained

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/stemsep/stemsep/pkg/model"
)

func TestSourcesIsACopy(t *testing.T) {
	s := Sources()
	require.Equal(t, []string{"drums", "bass", "other", "vocals"}, s)
	s[0] = "clobbered"
	assert.Equal(t, []string{"drums", "bass", "other", "vocals"}, Sources())
}

func TestGetModelUnittest(t *testing.T) {
	// The reserved self-test name must resolve without touching the
	// network or the filesystem, so no cache or repository is set up.
	m, err := GetModel(context.Background(), "demucs_unittest")
	require.NoError(t, err)

	hd, ok := m.(*model.HDemucs)
	require.True(t, ok)
	assert.Equal(t, 4, hd.Channels())
	assert.Equal(t, Sources(), hd.Sources())
	assert.False(t, hd.Training())

	again, err := GetModel(context.Background(), "demucs_unittest")
	require.NoError(t, err)
	assert.NotSame(t, m, again, "each resolution builds a fresh instance")
}

func TestGetModelInvalidRepo(t *testing.T) {
	_, err := GetModel(context.Background(), "0d19c1c6",
		WithRepo(filepath.Join(t.TempDir(), "absent")))
	require.ErrorIs(t, err, ErrInvalidRepo)
}

func TestCatalog(t *testing.T) {
	models, err := Catalog()
	require.NoError(t, err)
	require.NotEmpty(t, models)

	url, ok := models["0d19c1c6"]
	require.True(t, ok)
	assert.Equal(t, remoteRootURL+"mdx_final/0d19c1c6-0403dcb9.th", url)

	for sig, url := range models {
		if sig == "" {
			continue
		}
		assert.Contains(t, url, sig)
	}
}

func TestCatalogRootOverride(t *testing.T) {
	models, err := Catalog(WithRootURL("https://mirror.example.org/demucs/"))
	require.NoError(t, err)
	assert.Equal(t,
		"https://mirror.example.org/demucs/mdx_final/0d19c1c6-0403dcb9.th",
		models["0d19c1c6"])
}

func TestEmbeddedBagDefinitionsResolve(t *testing.T) {
	models, err := Catalog()
	require.NoError(t, err)

	// Every member of every curated bag must be present in the catalog,
	// otherwise resolution would fail at download time.
	for _, bag := range []string{"mdx", "mdx_extra", "mdx_q", "mdx_extra_q"} {
		data, err := remoteFS.ReadFile("remote/" + bag + ".yaml")
		require.NoError(t, err, bag)

		var spec struct {
			Models []string `yaml:"models"`
		}
		require.NoError(t, yaml.Unmarshal(data, &spec), bag)
		require.NotEmpty(t, spec.Models, bag)
		for _, sig := range spec.Models {
			assert.Contains(t, models, sig, "%s references %s", bag, sig)
		}
	}
}

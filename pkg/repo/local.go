package repo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/opencontainers/go-digest"

	"github.com/stemsep/stemsep/pkg/model"
)

const checkpointExt = ".th"

// LocalRepo resolves signatures against a directory of checkpoint packages
// named "<sig>.th" or "<sig>-<checksum>.th".
type LocalRepo struct {
	root     string
	files    map[string]string // sig -> filename
	checksum map[string]string // sig -> hex checksum fragment, when present
}

// NewLocalRepo scans root for checkpoint packages. A signature appearing
// more than once is a fatal configuration error.
func NewLocalRepo(root string) (*LocalRepo, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("scan model repository %s: %w", root, err)
	}
	r := &LocalRepo{
		root:     root,
		files:    make(map[string]string),
		checksum: make(map[string]string),
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, checkpointExt) {
			continue
		}
		stem := strings.TrimSuffix(name, checkpointExt)
		sig := stem
		if i := strings.Index(stem, "-"); i >= 0 {
			sig = stem[:i]
			r.checksum[sig] = stem[i+1:]
		}
		if _, dup := r.files[sig]; dup {
			return nil, fmt.Errorf("duplicate checkpoints for signature %q in %s", sig, root)
		}
		r.files[sig] = name
	}
	return r, nil
}

func (r *LocalRepo) HasModel(sig string) bool {
	_, ok := r.files[sig]
	return ok
}

func (r *LocalRepo) GetModel(ctx context.Context, sig string) (model.Model, error) {
	filename, ok := r.files[sig]
	if !ok {
		return nil, loadingErrorf("could not find a local model with signature %q", sig)
	}
	path := filepath.Join(r.root, filename)
	if expected, ok := r.checksum[sig]; ok {
		if err := verifyChecksum(path, expected); err != nil {
			return nil, err
		}
	}
	return loadPackage(path)
}

// verifyChecksum checks the file content digest against the hex fragment
// carried in the filename.
func verifyChecksum(path, expected string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open checkpoint %s: %w", path, err)
	}
	defer f.Close()
	actual, err := digest.FromReader(f)
	if err != nil {
		return fmt.Errorf("hash checkpoint %s: %w", path, err)
	}
	if !strings.HasPrefix(actual.Encoded(), expected) {
		return fmt.Errorf("checkpoint %s is corrupted: digest %s does not start with %s",
			path, actual.Encoded(), expected)
	}
	return nil
}

package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/opencontainers/go-digest"

	"github.com/stemsep/stemsep/pkg/logging"
)

const (
	checkpointsDir = "checkpoints"
	cacheDirEnv    = "STEMSEP_CACHE_DIR"
)

// ErrDigestMismatch indicates a downloaded artifact whose content hash does
// not match the fragment embedded in its filename.
var ErrDigestMismatch = errors.New("fetch: digest mismatch")

// hashPattern matches the hex digest fragment embedded in an artifact
// filename, e.g. "demucs-e07c671f.th".
var hashPattern = regexp.MustCompile(`-([0-9a-f]{8,64})\.`)

// Cache stores verified checkpoint downloads below a local root directory.
type Cache struct {
	rootPath string
	client   *Client
	log      logging.Logger
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithRootPath sets the root path of the cache directory.
func WithRootPath(rootPath string) CacheOption {
	return func(c *Cache) {
		c.rootPath = rootPath
	}
}

// WithClient sets the transfer client used for downloads.
func WithClient(client *Client) CacheOption {
	return func(c *Cache) {
		c.client = client
	}
}

// WithLogger sets the logger to use.
func WithLogger(log logging.Logger) CacheOption {
	return func(c *Cache) {
		c.log = log
	}
}

// NewCache creates a checkpoint cache. The default root is
// $STEMSEP_CACHE_DIR, falling back to the user cache directory.
func NewCache(opts ...CacheOption) (*Cache, error) {
	c := &Cache{log: logging.NewLogger("cache")}
	for _, opt := range opts {
		opt(c)
	}
	if c.rootPath == "" {
		if dir := os.Getenv(cacheDirEnv); dir != "" {
			c.rootPath = dir
		} else {
			base, err := os.UserCacheDir()
			if err != nil {
				return nil, fmt.Errorf("determine cache directory: %w", err)
			}
			c.rootPath = filepath.Join(base, "stemsep")
		}
	}
	if c.client == nil {
		c.client = NewClient(WithClientLogger(c.log))
	}
	return c, nil
}

// Fetch returns a local path holding the verified artifact at url,
// downloading it on first use. Each download is staged in its own
// .incomplete file and only renamed into place once its SHA-256 digest
// starts with the hash fragment embedded in the filename; a mismatch
// removes the staging file and fails with ErrDigestMismatch. Concurrent
// fetches of the same artifact each stage separately and race only on the
// final atomic rename.
func (c *Cache) Fetch(ctx context.Context, url string) (string, error) {
	filename := path.Base(url)
	dst := filepath.Join(c.rootPath, checkpointsDir, filename)
	if _, err := os.Stat(dst); err == nil {
		return dst, nil
	}

	expected := hashFragment(filename)
	c.log.Debugf("downloading %s", url)

	body, err := c.client.Get(ctx, url)
	if err != nil {
		return "", err
	}
	defer body.Close()

	f, err := stagingFile(filepath.Dir(dst), filename)
	if err != nil {
		return "", fmt.Errorf("create staging file: %w", err)
	}
	incomplete := f.Name()

	digester := digest.SHA256.Digester()
	if _, err := io.Copy(io.MultiWriter(f, digester.Hash()), body); err != nil {
		f.Close()
		os.Remove(incomplete)
		return "", fmt.Errorf("download %s: %w", url, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(incomplete)
		return "", fmt.Errorf("close staging file: %w", err)
	}

	if expected != "" {
		actual := digester.Digest().Encoded()
		if !strings.HasPrefix(actual, expected) {
			os.Remove(incomplete)
			return "", fmt.Errorf("%w: %s: got %s, want prefix %s", ErrDigestMismatch, filename, actual, expected)
		}
	}

	if err := os.Rename(incomplete, dst); err != nil {
		os.Remove(incomplete)
		return "", fmt.Errorf("finalize %s: %w", filename, err)
	}
	return dst, nil
}

// hashFragment extracts the digest fragment from an artifact filename, or
// returns "" when the filename carries none.
func hashFragment(filename string) string {
	m := hashPattern.FindStringSubmatch(filename)
	if m == nil {
		return ""
	}
	return m[1]
}

// stagingFile creates a uniquely named staging file for filename inside
// dir, creating the directory as needed.
func stagingFile(dir, filename string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create parent directory %q: %w", dir, err)
	}
	return os.CreateTemp(dir, filename+".*.incomplete")
}

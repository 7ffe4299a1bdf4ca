// Package fetch downloads and caches remote weight artifacts, verifying
// their content digests against the hash fragment embedded in the artifact
// filename.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/pkg/errors"

	"github.com/stemsep/stemsep/pkg/logging"
)

// Client performs the raw HTTP transfers. Verification and caching live in
// Cache.
type Client struct {
	httpClient *http.Client
	userAgent  string
	log        logging.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTransport sets the HTTP transport to use.
func WithTransport(transport http.RoundTripper) ClientOption {
	return func(c *Client) {
		c.httpClient = &http.Client{Transport: transport}
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(userAgent string) ClientOption {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithClientLogger sets the logger to use.
func WithClientLogger(log logging.Logger) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

// NewClient creates a new transfer client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: http.DefaultClient,
		log:        logging.NewLogger("fetch"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get opens a streaming read of the resource at url. The caller is
// responsible for closing the returned body. Transport errors propagate
// unchanged apart from annotation.
func (c *Client) Get(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request for %s: %w", url, err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch %s", url)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: unexpected status %s", url, resp.Status)
	}
	return resp.Body, nil
}

// Package transport downloads source documents over HTTP.
package transport

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/agentstation/civicmap/pkg/constants"
	"github.com/agentstation/civicmap/pkg/errors"
	"github.com/agentstation/civicmap/pkg/logging"
)

// DefaultUserAgent identifies civicmap to municipal web servers.
const DefaultUserAgent = "civicmap/1.0 (+https://github.com/agentstation/civicmap)"

// Client fetches documents with a bounded timeout and body size. Successful
// responses are memoized per URL so a manifest listing one URL several
// times downloads it once.
type Client struct {
	http      *http.Client
	userAgent string
	maxBytes  int64
	memo      *gocache.Cache
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithMaxBytes caps how much of a response body is read.
func WithMaxBytes(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBytes = n
		}
	}
}

// WithResponseTTL sets how long a downloaded body is reused. Zero disables
// the memo.
func WithResponseTTL(ttl time.Duration) Option {
	return func(c *Client) {
		if ttl <= 0 {
			c.memo = nil
			return
		}
		c.memo = gocache.New(ttl, 2*ttl)
	}
}

// New creates a new transport client.
func New(opts ...Option) *Client {
	c := &Client{
		http:      &http.Client{Timeout: constants.DefaultHTTPTimeout},
		userAgent: DefaultUserAgent,
		maxBytes:  constants.MaxDocumentBytes,
		memo:      gocache.New(constants.ResponseCacheTTL, 2*constants.ResponseCacheTTL),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Response is a downloaded document body.
type Response struct {
	Body      []byte
	MediaType string // Parsed Content-Type without parameters
}

// Get downloads url. Non-2xx responses and bodies larger than the
// configured limit are reported as SourceFetchError.
func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	if c.memo != nil {
		if v, ok := c.memo.Get(url); ok {
			return v.(*Response), nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.NewSourceFetchError(url, err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	logger := logging.FromContext(ctx)
	logger.Debug().Str("url", url).Msg("Fetching source document")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.NewSourceFetchError(url, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			logger.Warn().Err(cerr).Str("url", url).Msg("Failed to close response body")
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.NewSourceFetchError(url, fmt.Errorf("unexpected status %s", resp.Status))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, errors.NewSourceFetchError(url, errors.WrapIO("read", "response body", err))
	}
	if int64(len(body)) > c.maxBytes {
		return nil, errors.NewSourceFetchError(url, fmt.Errorf("document exceeds %d bytes", c.maxBytes))
	}

	mediaType := "application/octet-stream"
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		if mt, _, perr := mime.ParseMediaType(ct); perr == nil {
			mediaType = mt
		}
	}
	out := &Response{Body: body, MediaType: mediaType}
	if c.memo != nil {
		c.memo.SetDefault(url, out)
	}
	return out, nil
}

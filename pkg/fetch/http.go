// Package fetch downloads repository databases over HTTP.
package fetch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/glorpus-work/alpmdb/internal/logger"
	"github.com/glorpus-work/alpmdb/pkg/errors"
)

// DefaultUserAgent is sent when no user agent is configured.
const DefaultUserAgent = "alpmdb/1.0"

// DefaultTimeout bounds a whole request including the body transfer.
const DefaultTimeout = 5 * time.Minute

// HTTPClient is the net/http implementation of Fetcher.
type HTTPClient struct {
	client    *http.Client
	userAgent string
}

// NewHTTPClient creates a new HTTP client. Zero values select the defaults.
func NewHTTPClient(timeout time.Duration, userAgent string) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &HTTPClient{
		client: &http.Client{
			Timeout: timeout,
		},
		userAgent: userAgent,
	}
}

// Fetch implements Fetcher.
func (hc *HTTPClient) Fetch(ctx context.Context, u *url.URL, ifModifiedSince time.Time) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}

	req.Header.Set("User-Agent", hc.userAgent)
	if !ifModifiedSince.IsZero() {
		req.Header.Set("If-Modified-Since", ifModifiedSince.UTC().Format(http.TimeFormat))
	}

	resp, err := hc.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to download %s", u.Redacted())
	}

	out := &Response{StatusCode: resp.StatusCode}
	if lastModified := resp.Header.Get("Last-Modified"); lastModified != "" {
		if t, err := http.ParseTime(lastModified); err == nil {
			out.LastModified = t
		}
	}

	switch resp.StatusCode {
	case http.StatusOK:
		out.Result = ResultOK
		out.Body = resp.Body
		return out, nil
	case http.StatusNotModified:
		out.Result = ResultNotModified
	default:
		out.Result = ResultOther
	}

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
	if err := resp.Body.Close(); err != nil {
		logger.Debug("failed to close response body", logger.Fields{"url": u.Redacted(), "error": err})
	}
	return out, nil
}

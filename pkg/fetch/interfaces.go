//go:generate mockgen -destination=mocks/fetch.go -package=mocks . Fetcher
package fetch

import (
	"context"
	"net/url"
	"time"
)

// Fetcher retrieves remote files.
type Fetcher interface {
	// Fetch issues a GET for u. A non-zero ifModifiedSince makes the request conditional.
	// Only transport failures are errors; every HTTP status is reported in the Response.
	Fetch(ctx context.Context, u *url.URL, ifModifiedSince time.Time) (*Response, error)
}

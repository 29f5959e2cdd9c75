package fetch

import (
	"io"
	"time"
)

// Result classifies a response.
type Result int

const (
	// ResultOther is any status other than 200 and 304.
	ResultOther Result = iota
	// ResultNotModified means the remote file did not change since the given time.
	ResultNotModified
	// ResultOK means Body holds the remote file.
	ResultOK
)

func (r Result) String() string {
	switch r {
	case ResultNotModified:
		return "not modified"
	case ResultOK:
		return "ok"
	default:
		return "other"
	}
}

// Response is the outcome of a Fetch.
type Response struct {
	Result     Result
	StatusCode int
	// Body is set for ResultOK only and must be closed by the caller.
	Body io.ReadCloser
	// LastModified is the parsed Last-Modified header, zero when absent or malformed.
	LastModified time.Time
}

// Close closes the body if there is one.
func (r *Response) Close() error {
	if r == nil || r.Body == nil {
		return nil
	}
	return r.Body.Close()
}

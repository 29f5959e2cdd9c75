//go:generate mockgen -destination=mocks/signing.go -package=mocks . Verifier
package signing

import "context"

// Verifier checks detached signatures. Implementations wrap a keyring (gpg, sequoia, ...).
type Verifier interface {
	// Verify checks signature against the file at path and returns one result per signature
	// found. A nil signature means the detached signature at SigPath(path) is used.
	Verify(ctx context.Context, path string, signature []byte) ([]Result, error)
}

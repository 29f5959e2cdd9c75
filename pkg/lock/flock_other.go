//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package lock

import (
	"os"

	"github.com/glorpus-work/alpmdb/internal/logger"
)

// Exclusive is a no-op on platforms without flock.
func Exclusive(_ *os.File, name string) (func() error, error) {
	logger.Debug("advisory file locks are not available on this platform", logger.Fields{"path": name})
	return func() error { return nil }, nil
}

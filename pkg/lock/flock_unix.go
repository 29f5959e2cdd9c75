//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package lock

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/glorpus-work/alpmdb/internal/logger"
)

// Exclusive takes an advisory exclusive flock on f. When another process holds the lock a
// warning is logged and the call blocks until it is released. The returned func unlocks.
func Exclusive(f *os.File, name string) (func() error, error) {
	fd := int(f.Fd())
	err := flock(fd, unix.LOCK_EX|unix.LOCK_NB)
	if errors.Is(err, unix.EWOULDBLOCK) {
		logger.Warn("file is locked by another process, waiting", logger.Fields{"path": name})
		err = flock(fd, unix.LOCK_EX)
	}
	if err != nil {
		return nil, fmt.Errorf("flock %s: %w", name, err)
	}

	return func() error {
		if err := unix.Flock(fd, unix.LOCK_UN); err != nil {
			return fmt.Errorf("unlock %s: %w", name, err)
		}
		return nil
	}, nil
}

func flock(fd, how int) error {
	for {
		err := unix.Flock(fd, how)
		if !errors.Is(err, unix.EINTR) {
			return err
		}
	}
}

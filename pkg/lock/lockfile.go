// Package lock provides the database lockfile and advisory locks on files being rewritten.
package lock

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"sync"

	"github.com/glorpus-work/alpmdb/internal/logger"
	"github.com/glorpus-work/alpmdb/pkg/fsutil"
)

// ErrAlreadyHeld is returned when the lockfile already exists.
var ErrAlreadyHeld = errors.New("lockfile already exists")

// FileLocker creates lockfiles with O_EXCL so only one process can hold them.
type FileLocker struct{}

// NewFileLocker returns a Locker backed by the filesystem.
func NewFileLocker() *FileLocker {
	return &FileLocker{}
}

// Acquire implements Locker.
func (FileLocker) Acquire(path string) (Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, fsutil.FileModeDefault)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrAlreadyHeld)
		}
		return nil, fmt.Errorf("failed to create lockfile %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(strconv.Itoa(os.Getpid()) + "\n"); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("failed to write lockfile %s: %w", path, err)
	}
	logger.Debug("acquired lockfile", logger.Fields{"path": path})
	return &fileLock{path: path}, nil
}

type fileLock struct {
	path string
	once sync.Once
	err  error
}

func (l *fileLock) Path() string {
	return l.path
}

func (l *fileLock) Release() error {
	l.once.Do(func() {
		if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			l.err = fmt.Errorf("failed to remove lockfile %s: %w", l.path, err)
			return
		}
		logger.Debug("released lockfile", logger.Fields{"path": l.path})
	})
	return l.err
}

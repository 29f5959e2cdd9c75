// Package db implements the local and sync package databases.
//
// Databases and the packages they hand out share one Env with the handle that created them.
// Once the handle is closed, every operation that needs the shared state fails with
// errors.ErrUseAfterDrop instead of touching a torn down handle.
package db

import (
	"path/filepath"
	"sync/atomic"

	"github.com/glorpus-work/alpmdb/pkg/desc"
	"github.com/glorpus-work/alpmdb/pkg/errors"
	"github.com/glorpus-work/alpmdb/pkg/fetch"
	"github.com/glorpus-work/alpmdb/pkg/signing"
)

// Env is the handle state shared with databases and packages. Set the fields before handing
// the Env to OpenLocal or OpenSync and do not change them afterwards.
type Env struct {
	RootPath       string
	DatabasePath   string
	SyncExtension  string
	LineEnding     desc.LineEnding
	SignatureLevel signing.Level
	Fetcher        fetch.Fetcher
	Verifier       signing.Verifier

	closed atomic.Bool
}

// Close marks the state as torn down. It is safe to call more than once.
func (e *Env) Close() {
	e.closed.Store(true)
}

// Closed reports whether Close has been called.
func (e *Env) Closed() bool {
	return e.closed.Load()
}

// Check returns ErrUseAfterDrop once the state is torn down.
func (e *Env) Check() error {
	if e == nil || e.closed.Load() {
		return errors.New(errors.KindUseAfterDrop, "")
	}
	return nil
}

// LocalPath is the directory of the local database.
func (e *Env) LocalPath() string {
	return filepath.Join(e.DatabasePath, LocalDatabaseName)
}

// SyncDir is the directory holding the sync archives.
func (e *Env) SyncDir() string {
	return filepath.Join(e.DatabasePath, SyncDatabaseDir)
}

// SyncPath is the archive path of the sync database called name.
func (e *Env) SyncPath(name string) string {
	return filepath.Join(e.SyncDir(), name+"."+e.syncExtension())
}

func (e *Env) syncExtension() string {
	if e.SyncExtension == "" {
		return DefaultSyncExtension
	}
	return e.SyncExtension
}

func (e *Env) descOptions() []desc.Option {
	return []desc.Option{desc.WithLineEnding(e.LineEnding)}
}

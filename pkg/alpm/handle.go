package alpm

import (
	"context"
	"slices"
	"sync"

	"github.com/glorpus-work/alpmdb/internal/logger"
	"github.com/glorpus-work/alpmdb/pkg/db"
	"github.com/glorpus-work/alpmdb/pkg/errors"
	"github.com/glorpus-work/alpmdb/pkg/lock"
	"github.com/glorpus-work/alpmdb/pkg/signing"
)

// Handle owns the database directory for as long as it is open. Databases and packages
// obtained from it fail with errors.ErrUseAfterDrop once it is closed.
type Handle struct {
	env   *db.Env
	lock  lock.Lock
	local *db.LocalDatabase

	mu    sync.RWMutex
	syncs []*db.SyncDatabase

	closeOnce sync.Once
	closeErr  error
}

// RootPath returns the absolute root path.
func (h *Handle) RootPath() string {
	return h.env.RootPath
}

// DatabasePath returns the absolute database directory.
func (h *Handle) DatabasePath() string {
	return h.env.DatabasePath
}

// LockPath returns the path of the held lockfile.
func (h *Handle) LockPath() string {
	return h.lock.Path()
}

// SignatureLevel returns the level sync databases inherit.
func (h *Handle) SignatureLevel() signing.Level {
	return h.env.SignatureLevel
}

// LocalDatabase returns the database of installed packages.
func (h *Handle) LocalDatabase() (*db.LocalDatabase, error) {
	if err := h.env.Check(); err != nil {
		return nil, err
	}
	return h.local, nil
}

// RegisterSyncDatabase adds the sync database called name. Registering a name twice returns the
// database registered first.
func (h *Handle) RegisterSyncDatabase(name string) (*db.SyncDatabase, error) {
	if err := h.env.Check(); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if existing := h.find(name); existing != nil {
		logger.Warn("sync database already registered", logger.Fields{"database": name})
		return existing, nil
	}
	sdb, err := db.OpenSync(h.env, name, signing.LevelInherit)
	if err != nil {
		return nil, err
	}
	logger.Debug("registered sync database", logger.Fields{"database": name, "path": sdb.Path()})
	h.syncs = append(h.syncs, sdb)
	return sdb, nil
}

func (h *Handle) find(name string) *db.SyncDatabase {
	for _, s := range h.syncs {
		if s.Name() == name {
			return s
		}
	}
	return nil
}

// SyncDatabase returns the registered sync database called name.
func (h *Handle) SyncDatabase(name string) (*db.SyncDatabase, error) {
	if err := h.env.Check(); err != nil {
		return nil, err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if s := h.find(name); s != nil {
		return s, nil
	}
	return nil, errors.New(errors.KindDatabaseNotFound, name)
}

// SyncDatabases returns the registered sync databases in registration order.
func (h *Handle) SyncDatabases() []*db.SyncDatabase {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.syncs)
}

// UnregisterSyncDatabase forgets the sync database called name. The archive stays on disk.
func (h *Handle) UnregisterSyncDatabase(name string) error {
	if err := h.env.Check(); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, s := range h.syncs {
		if s.Name() == name {
			h.syncs = slices.Delete(h.syncs, i, i+1)
			logger.Debug("unregistered sync database", logger.Fields{"database": name})
			return nil
		}
	}
	return errors.New(errors.KindDatabaseNotFound, name)
}

// UnregisterAllSyncDatabases forgets every sync database.
func (h *Handle) UnregisterAllSyncDatabases() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.syncs = nil
}

// DatabaseExists reports whether name is the local database or a registered sync database.
func (h *Handle) DatabaseExists(name string) bool {
	if name == db.LocalDatabaseName {
		return true
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.find(name) != nil
}

// Databases returns the local database followed by the sync databases.
func (h *Handle) Databases() []db.Database {
	syncs := h.SyncDatabases()
	out := make([]db.Database, 0, len(syncs)+1)
	out = append(out, h.local)
	for _, s := range syncs {
		out = append(out, s)
	}
	return out
}

// SyncOptions control SynchronizeAll.
type SyncOptions struct {
	// Force downloads every archive even when the mirror reports it unchanged.
	Force bool
	// Concurrency is the number of databases synchronized in parallel. Values <= 1
	// synchronize one database after the other on the calling goroutine.
	Concurrency int
}

// SynchronizeAll synchronizes every registered sync database used for syncing. All databases
// are attempted; the first failure is returned.
func (h *Handle) SynchronizeAll(ctx context.Context, opts SyncOptions) error {
	if err := h.env.Check(); err != nil {
		return err
	}

	var targets []*db.SyncDatabase
	for _, sdb := range h.SyncDatabases() {
		if !sdb.Usage().Has(db.UsageSync) {
			logger.Debug("skipping database not used for sync", logger.Fields{"database": sdb.Name()})
			continue
		}
		targets = append(targets, sdb)
	}

	var firstErr error
	var mu sync.Mutex
	syncOne := func(sdb *db.SyncDatabase) {
		err := sdb.Synchronize(ctx, opts.Force)
		if err == nil {
			return
		}
		logger.Error("failed to synchronize database", logger.Fields{"database": sdb.Name(), "error": err.Error()})
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	if opts.Concurrency <= 1 {
		for _, sdb := range targets {
			syncOne(sdb)
		}
		return firstErr
	}

	tasks := make(chan *db.SyncDatabase)
	var wg sync.WaitGroup
	for w := 0; w < min(opts.Concurrency, len(targets)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sdb := range tasks {
				syncOne(sdb)
			}
		}()
	}
	for _, sdb := range targets {
		tasks <- sdb
	}
	close(tasks)
	wg.Wait()
	return firstErr
}

// Close marks every database and package of the handle unusable and releases the lockfile.
// Calling Close again returns the first result.
func (h *Handle) Close() error {
	h.closeOnce.Do(func() {
		h.env.Close()
		if err := h.lock.Release(); err != nil {
			h.closeErr = errors.From(errors.KindCannotReleaseLock, h.lock.Path(), err)
			return
		}
		logger.Debug("handle closed", logger.Fields{"dbpath": h.env.DatabasePath})
	})
	return h.closeErr
}

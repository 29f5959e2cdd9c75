// Package alpm provides the Handle: the entry point that owns the root and database paths,
// holds the database lockfile and keeps the registered databases.
package alpm

import (
	"path/filepath"
	"regexp"

	"github.com/glorpus-work/alpmdb/internal/logger"
	"github.com/glorpus-work/alpmdb/pkg/db"
	"github.com/glorpus-work/alpmdb/pkg/desc"
	"github.com/glorpus-work/alpmdb/pkg/errors"
	"github.com/glorpus-work/alpmdb/pkg/fetch"
	"github.com/glorpus-work/alpmdb/pkg/fsutil"
	"github.com/glorpus-work/alpmdb/pkg/lock"
	"github.com/glorpus-work/alpmdb/pkg/signing"
)

const (
	// DefaultRootPath is the root used when none is given.
	DefaultRootPath = "/"
	// LockFileName is the lockfile created in the database directory.
	LockFileName = "db.lck"
)

var syncExtPattern = regexp.MustCompile(`^[A-Za-z0-9]+$`)

// DefaultDatabasePath returns the database directory under root.
func DefaultDatabasePath(root string) string {
	return filepath.Join(root, "var", "lib", "pacman")
}

// Builder collects the settings of a Handle.
type Builder struct {
	rootPath      string
	databasePath  string
	syncExtension string
	lineEnding    desc.LineEnding
	level         signing.Level
	fetcher       fetch.Fetcher
	verifier      signing.Verifier
	locker        lock.Locker
}

// NewBuilder returns a Builder with the defaults: root "/", the database under
// root/var/lib/pacman, ".db" sync archives, the platform line ending and required signatures.
func NewBuilder() *Builder {
	return &Builder{
		rootPath:      DefaultRootPath,
		syncExtension: db.DefaultSyncExtension,
		lineEnding:    desc.DefaultLineEnding(),
		level:         signing.LevelRequired,
	}
}

func (b *Builder) WithRootPath(path string) *Builder {
	b.rootPath = path
	return b
}

// WithDatabasePath overrides the database directory. An empty path restores the default.
func (b *Builder) WithDatabasePath(path string) *Builder {
	b.databasePath = path
	return b
}

func (b *Builder) WithSyncExtension(ext string) *Builder {
	b.syncExtension = ext
	return b
}

func (b *Builder) WithLineEnding(l desc.LineEnding) *Builder {
	b.lineEnding = l
	return b
}

// WithSignatureLevel sets the level sync databases inherit.
func (b *Builder) WithSignatureLevel(l signing.Level) *Builder {
	b.level = l
	return b
}

// WithFetcher sets the client used to synchronize sync databases. By default an HTTP client
// with fetch.DefaultTimeout is used.
func (b *Builder) WithFetcher(f fetch.Fetcher) *Builder {
	b.fetcher = f
	return b
}

func (b *Builder) WithVerifier(v signing.Verifier) *Builder {
	b.verifier = v
	return b
}

// WithLocker replaces the lockfile implementation.
func (b *Builder) WithLocker(l lock.Locker) *Builder {
	b.locker = l
	return b
}

// Build checks and creates the directories, takes the lockfile and opens the local database.
func (b *Builder) Build() (*Handle, error) {
	if !syncExtPattern.MatchString(b.syncExtension) {
		return nil, errors.New(errors.KindBadSyncDatabaseExt, b.syncExtension)
	}

	root, err := filepath.Abs(b.rootPath)
	if err != nil {
		return nil, errors.From(errors.KindBadRootPath, b.rootPath, err)
	}
	if err := fsutil.CheckDirectory(root); err != nil {
		return nil, errors.From(errors.KindBadRootPath, root, err)
	}

	dbPath := b.databasePath
	if dbPath == "" {
		dbPath = DefaultDatabasePath(root)
	}
	if dbPath, err = filepath.Abs(dbPath); err != nil {
		return nil, errors.From(errors.KindBadDatabasePath, b.databasePath, err)
	}
	if err := fsutil.CheckDirectory(dbPath); err != nil {
		return nil, errors.From(errors.KindBadDatabasePath, dbPath, err)
	}
	syncDir := filepath.Join(dbPath, db.SyncDatabaseDir)
	if err := fsutil.CheckDirectory(syncDir); err != nil {
		return nil, errors.From(errors.KindBadSyncDatabasePath, syncDir, err)
	}

	locker := b.locker
	if locker == nil {
		locker = lock.NewFileLocker()
	}
	lockPath := filepath.Join(dbPath, LockFileName)
	held, err := locker.Acquire(lockPath)
	if err != nil {
		if errors.Is(err, lock.ErrAlreadyHeld) {
			return nil, errors.From(errors.KindLockAlreadyExists, lockPath, err)
		}
		return nil, errors.From(errors.KindCannotAcquireLock, lockPath, err)
	}

	fetcher := b.fetcher
	if fetcher == nil {
		fetcher = fetch.NewHTTPClient(fetch.DefaultTimeout, fetch.DefaultUserAgent)
	}
	env := &db.Env{
		RootPath:       root,
		DatabasePath:   dbPath,
		SyncExtension:  b.syncExtension,
		LineEnding:     b.lineEnding,
		SignatureLevel: b.level.Resolve(signing.LevelRequired),
		Fetcher:        fetcher,
		Verifier:       b.verifier,
	}

	local, err := db.OpenLocal(env)
	if err != nil {
		env.Close()
		if relErr := held.Release(); relErr != nil {
			logger.Warn("could not release lockfile", logger.Fields{"path": lockPath, "error": relErr.Error()})
		}
		return nil, err
	}

	logger.Debug("handle initialised", logger.Fields{"root": root, "dbpath": dbPath})
	return &Handle{
		env:   env,
		lock:  held,
		local: local,
	}, nil
}

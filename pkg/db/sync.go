package db

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/glorpus-work/alpmdb/internal/logger"
	"github.com/glorpus-work/alpmdb/pkg/archive"
	"github.com/glorpus-work/alpmdb/pkg/desc"
	"github.com/glorpus-work/alpmdb/pkg/errors"
	"github.com/glorpus-work/alpmdb/pkg/fetch"
	"github.com/glorpus-work/alpmdb/pkg/fsutil"
	"github.com/glorpus-work/alpmdb/pkg/lock"
	"github.com/glorpus-work/alpmdb/pkg/signing"
)

// SyncDatabase is a cached copy of a remote repository index. The archive is read on first
// access and again after a Synchronize replaced it.
type SyncDatabase struct {
	env  *Env
	name string
	path string

	mu        sync.RWMutex
	usage     Usage
	level     signing.Level
	servers   []*url.URL
	populated bool
	packages  map[string]*SyncPackage
	problems  []error
}

// OpenSync returns the sync database called name. The archive does not have to exist yet.
func OpenSync(env *Env, name string, level signing.Level) (*SyncDatabase, error) {
	if err := env.Check(); err != nil {
		return nil, err
	}
	if err := ValidateSyncName(name); err != nil {
		return nil, err
	}
	return &SyncDatabase{
		env:   env,
		name:  name,
		path:  env.SyncPath(name),
		usage: UsageAll,
		level: level,
	}, nil
}

// Name returns the repository name.
func (db *SyncDatabase) Name() string {
	return db.name
}

// Path returns the archive path.
func (db *SyncDatabase) Path() string {
	return db.path
}

// Status reports Missing when there is no archive, Valid when it is a regular file and
// Invalid otherwise.
func (db *SyncDatabase) Status() (Status, error) {
	if err := db.env.Check(); err != nil {
		return StatusMissing, err
	}
	info, err := os.Stat(db.path)
	if err != nil {
		if os.IsNotExist(err) {
			return StatusMissing, nil
		}
		return StatusMissing, errors.From(errors.KindUnexpectedIO, db.path, err)
	}
	if !info.Mode().IsRegular() {
		return StatusInvalid, nil
	}
	return StatusValid, nil
}

// cache returns the package map, reading the archive if needed.
func (db *SyncDatabase) cache() (map[string]*SyncPackage, error) {
	if err := db.env.Check(); err != nil {
		return nil, err
	}
	db.mu.RLock()
	if db.populated {
		pkgs := db.packages
		db.mu.RUnlock()
		return pkgs, nil
	}
	db.mu.RUnlock()

	db.mu.Lock()
	defer db.mu.Unlock()
	if db.populated {
		return db.packages, nil
	}
	pkgs, problems, err := db.populate(context.Background())
	if err != nil {
		return nil, err
	}
	db.packages = pkgs
	db.problems = problems
	db.populated = true
	return pkgs, nil
}

func (db *SyncDatabase) invalidate() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.populated = false
	db.packages = nil
	db.problems = nil
}

// populate reads every desc entry of the archive. Malformed entries are returned as problems;
// a package name appearing twice means the archive is corrupt and aborts the read.
func (db *SyncDatabase) populate(ctx context.Context) (map[string]*SyncPackage, []error, error) {
	pkgs := make(map[string]*SyncPackage)
	f, err := os.Open(db.path)
	if err != nil {
		if os.IsNotExist(err) {
			return pkgs, nil, nil
		}
		return nil, nil, errors.From(errors.KindCannotQueryDatabase, db.path, err)
	}
	defer func() { _ = f.Close() }()
	if info, err := f.Stat(); err != nil || !info.Mode().IsRegular() {
		return pkgs, nil, nil
	}

	logger.Debug("reading sync database", logger.Fields{"database": db.name, "path": db.path})
	var problems []error
	seen := make(map[string]string)
	err = archive.Walk(ctx, filepath.Base(db.path), f, func(e archive.Entry) error {
		entryPath := strings.TrimSuffix(e.Name, "/")
		if e.IsDir || path.Base(entryPath) != "desc" {
			return nil
		}
		dirname := path.Base(path.Dir(entryPath))
		name, ver, ok := SplitPackageDirname(dirname)
		if !ok {
			problems = append(problems, errors.Newf(errors.KindInvalidSyncPackage, dirname, "directory name is not name-version-release"))
			return nil
		}
		if prev, dup := seen[name]; dup {
			return errors.Newf(errors.KindDuplicatePackage, name, "%s and %s in %s", prev, dirname, db.name)
		}
		seen[name] = dirname

		pkg, err := db.readPackage(e, name, ver)
		if err != nil {
			problems = append(problems, err)
			return nil
		}
		pkgs[name] = pkg
		return nil
	})
	if err != nil {
		if errors.KindOf(err) == errors.KindDuplicatePackage {
			return nil, nil, err
		}
		return nil, nil, errors.From(errors.KindCannotQueryDatabase, db.path, err)
	}
	for _, p := range problems {
		logger.Warn("skipping sync package", logger.Fields{"database": db.name, "error": p.Error()})
	}
	logger.Debug("read sync database", logger.Fields{"database": db.name, "count": len(pkgs)})
	return pkgs, problems, nil
}

func (db *SyncDatabase) readPackage(e archive.Entry, name, ver string) (*SyncPackage, error) {
	rc, err := e.Open()
	if err != nil {
		return nil, errors.From(errors.KindInvalidSyncPackage, name, err)
	}
	defer func() { _ = rc.Close() }()
	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, errors.From(errors.KindInvalidSyncPackage, name, err)
	}

	var d SyncDescription
	if err := desc.Unmarshal(raw, &d, db.env.descOptions()...); err != nil {
		return nil, errors.From(errors.KindInvalidSyncPackage, name, err)
	}
	if d.Name != name {
		return nil, errors.Newf(errors.KindInvalidSyncPackage, name,
			"name in archive path (%q) does not match name in package (%q)", name, d.Name)
	}
	if d.Version.String() != ver {
		return nil, errors.Newf(errors.KindInvalidSyncPackage, name,
			"version in archive path (%q) does not match version in package (%q)", ver, d.Version)
	}
	return &SyncPackage{database: db.name, desc: d}, nil
}

// Count returns the number of packages in the archive.
func (db *SyncDatabase) Count() (int, error) {
	pkgs, err := db.cache()
	if err != nil {
		return 0, err
	}
	return len(pkgs), nil
}

// Package returns the named package if the archive holds exactly that version.
func (db *SyncDatabase) Package(name, ver string) (*SyncPackage, error) {
	pkg, err := db.Latest(name)
	if err != nil {
		return nil, err
	}
	if pkg.Version().String() != ver {
		return nil, errors.Newf(errors.KindPackageNotFound, name+"-"+ver, "%s has version %s", db.name, pkg.Version())
	}
	return pkg, nil
}

// Latest returns the named package. A sync database holds one version per package.
func (db *SyncDatabase) Latest(name string) (*SyncPackage, error) {
	pkgs, err := db.cache()
	if err != nil {
		return nil, err
	}
	pkg, ok := pkgs[name]
	if !ok {
		return nil, errors.New(errors.KindPackageNotFound, name)
	}
	return pkg, nil
}

// Packages calls fn for every package, in name order.
func (db *SyncDatabase) Packages(fn func(*SyncPackage) error) error {
	pkgs, err := db.cache()
	if err != nil {
		return err
	}
	names := make([]string, 0, len(pkgs))
	for name := range pkgs {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if err := fn(pkgs[name]); err != nil {
			return err
		}
	}
	return nil
}

// Problems returns the entries skipped during the last read of the archive.
func (db *SyncDatabase) Problems() []error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return slices.Clone(db.problems)
}

// Lookup implements Database.
func (db *SyncDatabase) Lookup(name string) (Package, error) {
	pkg, err := db.Latest(name)
	if err != nil {
		return nil, err
	}
	return pkg, nil
}

// Each implements Database.
func (db *SyncDatabase) Each(fn func(Package) error) error {
	return db.Packages(func(p *SyncPackage) error { return fn(p) })
}

// Usage returns the operations the database is used for.
func (db *SyncDatabase) Usage() Usage {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.usage
}

// SetUsage changes the operations the database is used for.
func (db *SyncDatabase) SetUsage(u Usage) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.usage = u
}

// SignatureLevel returns the database's own level, which may be Inherit.
func (db *SyncDatabase) SignatureLevel() signing.Level {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.level
}

// SetSignatureLevel changes the database's level.
func (db *SyncDatabase) SetSignatureLevel(l signing.Level) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.level = l
}

func parseServer(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || (u.Host == "" && u.Scheme != "file") {
		return nil, fmt.Errorf("%q is not an absolute url", raw)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
		if u.RawPath != "" {
			u.RawPath += "/"
		}
	}
	return u, nil
}

// AddServer registers a mirror. Adding a mirror twice has no effect.
func (db *SyncDatabase) AddServer(raw string) error {
	u, err := parseServer(raw)
	if err != nil {
		return errors.From(errors.KindCannotAddServerToDatabase, db.name, err)
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, s := range db.servers {
		if s.String() == u.String() {
			logger.Warn("server already registered", logger.Fields{"database": db.name, "server": u.Redacted()})
			return nil
		}
	}
	logger.Debug("adding server", logger.Fields{"database": db.name, "server": u.Redacted()})
	db.servers = append(db.servers, u)
	return nil
}

// RemoveServer unregisters a mirror. Removing an unknown mirror has no effect.
func (db *SyncDatabase) RemoveServer(raw string) error {
	u, err := parseServer(raw)
	if err != nil {
		return errors.From(errors.KindCannotAddServerToDatabase, db.name, err)
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	for i, s := range db.servers {
		if s.String() == u.String() {
			logger.Debug("removing server", logger.Fields{"database": db.name, "server": u.Redacted()})
			db.servers = slices.Delete(db.servers, i, i+1)
			return nil
		}
	}
	logger.Warn("server not registered", logger.Fields{"database": db.name, "server": u.Redacted()})
	return nil
}

// ClearServers removes every mirror.
func (db *SyncDatabase) ClearServers() {
	db.mu.Lock()
	defer db.mu.Unlock()
	logger.Debug("clearing servers", logger.Fields{"database": db.name})
	db.servers = nil
}

// Servers returns the mirrors in registration order.
func (db *SyncDatabase) Servers() []*url.URL {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make([]*url.URL, len(db.servers))
	for i, s := range db.servers {
		c := *s
		out[i] = &c
	}
	return out
}

// Synchronize refreshes the archive from the first mirror that answers with the file or with
// "not modified". Unless force is set, or the local copy is not valid, the request is
// conditional on the archive's modification time. Other statuses are logged and the next
// mirror is tried; they never make Synchronize fail. It fails only when every mirror failed
// at the transport level, or when the new archive cannot be written.
func (db *SyncDatabase) Synchronize(ctx context.Context, force bool) error {
	status, err := db.Status()
	if err != nil {
		return err
	}
	fetcher := db.env.Fetcher
	if fetcher == nil {
		return errors.Newf(errors.KindUnexpectedHTTP, db.name, "no fetcher configured")
	}

	var since time.Time
	if !force && status == StatusValid {
		if info, err := os.Stat(db.path); err == nil {
			since = info.ModTime()
		}
	}

	servers := db.Servers()
	if len(servers) == 0 {
		logger.Warn("no servers configured", logger.Fields{"database": db.name})
		return nil
	}

	fileName := filepath.Base(db.path)
	var lastErr error
	transportFailures := 0
	for _, server := range servers {
		u := server.JoinPath(fileName)
		resp, err := fetcher.Fetch(ctx, u, since)
		if err != nil {
			logger.Warn("failed to download database", logger.Fields{"database": db.name, "url": u.Redacted(), "error": err.Error()})
			lastErr = err
			transportFailures++
			if ctx.Err() != nil {
				return errors.From(errors.KindUnexpectedHTTP, db.name, err)
			}
			continue
		}

		switch resp.Result {
		case fetch.ResultNotModified:
			_ = resp.Close()
			logger.Debug("database is up to date", logger.Fields{"database": db.name})
			return nil
		case fetch.ResultOK:
			err := db.write(resp)
			_ = resp.Close()
			return err
		default:
			_ = resp.Close()
			logger.Warn("unexpected response when downloading database", logger.Fields{
				"database": db.name,
				"url":      u.Redacted(),
				"status":   resp.StatusCode,
			})
		}
	}

	if transportFailures == len(servers) {
		return errors.From(errors.KindUnexpectedHTTP, db.name, lastErr)
	}
	return nil
}

// write replaces the archive with the response body under an exclusive flock on the
// archive's lock file. The body goes to a temporary file first; a failed read keeps the
// previous archive, its modification time and the cached packages.
func (db *SyncDatabase) write(resp *fetch.Response) error {
	if err := fsutil.EnsureDir(db.env.SyncDir()); err != nil {
		return errors.From(errors.KindBadSyncDatabasePath, db.env.SyncDir(), err)
	}
	lockPath := db.path + LockSuffix
	lf, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, fsutil.FileModeDefault)
	if err != nil {
		return errors.From(errors.KindUnexpectedIO, lockPath, err)
	}
	defer func() { _ = lf.Close() }()

	unlock, err := lock.Exclusive(lf, lockPath)
	if err != nil {
		return errors.From(errors.KindUnexpectedIO, lockPath, err)
	}
	defer func() { _ = unlock() }()

	n, err := fsutil.WriteReaderAtomic(db.path, resp.Body, fsutil.FileModeDefault)
	if err != nil {
		return errors.From(errors.KindUnexpectedIO, db.path, err)
	}
	db.invalidate()
	if !resp.LastModified.IsZero() {
		if err := os.Chtimes(db.path, resp.LastModified, resp.LastModified); err != nil {
			logger.Warn("could not set database modification time", logger.Fields{"path": db.path, "error": err.Error()})
		}
	}
	logger.Info("database synchronized", logger.Fields{"database": db.name, "bytes": n})
	return nil
}

// VerifySignature checks the archive's detached signature with the handle's verifier at the
// database's effective level.
func (db *SyncDatabase) VerifySignature(ctx context.Context) error {
	if err := db.env.Check(); err != nil {
		return err
	}
	level := db.SignatureLevel().Resolve(db.env.SignatureLevel)
	if level == signing.LevelNever {
		return nil
	}

	sig, err := signing.ReadSignature(db.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return signing.Evaluate(db.name, nil, level)
		}
		return err
	}
	if db.env.Verifier == nil {
		return errors.Newf(errors.KindUnexpectedSignature, db.name, "no verifier configured")
	}
	results, err := db.env.Verifier.Verify(ctx, db.path, sig)
	if err != nil {
		return errors.From(errors.KindUnexpectedSignature, db.path, err)
	}
	return signing.Evaluate(db.name, results, level)
}

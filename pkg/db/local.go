package db

import (
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/glorpus-work/alpmdb/internal/logger"
	"github.com/glorpus-work/alpmdb/pkg/errors"
	"github.com/glorpus-work/alpmdb/pkg/fsutil"
	"github.com/glorpus-work/alpmdb/pkg/signing"
	"github.com/glorpus-work/alpmdb/pkg/version"
)

// LocalDatabase is the database of installed packages. Package directories are found when
// the database is opened and read on first access.
type LocalDatabase struct {
	env  *Env
	path string

	mu      sync.RWMutex
	usage   Usage
	level   signing.Level
	entries map[string]map[string]*localEntry
	count   int

	problemsMu sync.Mutex
	problems   []error
}

type localEntry struct {
	path    string
	name    string
	version string

	once sync.Once
	pkg  *LocalPackage
	err  error
}

// OpenLocal opens the local database under env.DatabasePath. A missing database is not an
// error; Status reports it.
func OpenLocal(env *Env) (*LocalDatabase, error) {
	if err := env.Check(); err != nil {
		return nil, err
	}
	db := &LocalDatabase{
		env:     env,
		path:    env.LocalPath(),
		usage:   UsageAll,
		level:   signing.LevelInherit,
		entries: make(map[string]map[string]*localEntry),
	}
	if err := db.scan(); err != nil {
		return nil, err
	}
	return db, nil
}

func (db *LocalDatabase) scan() error {
	logger.Debug("searching for local packages", logger.Fields{"path": db.path})
	info, err := os.Stat(db.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.From(errors.KindCannotQueryDatabase, db.path, err)
	}
	if !info.IsDir() {
		return nil
	}

	dirents, err := os.ReadDir(db.path)
	if err != nil {
		return errors.From(errors.KindCannotQueryDatabase, db.path, err)
	}
	for _, d := range dirents {
		if !d.IsDir() {
			if d.Name() != LocalVersionFile {
				logger.Warn("unexpected file in local database", logger.Fields{"path": filepath.Join(db.path, d.Name())})
			}
			continue
		}
		name, ver, ok := SplitPackageDirname(d.Name())
		if !ok {
			err := errors.Newf(errors.KindInvalidLocalPackage, d.Name(), "directory name is not name-version-release")
			logger.Warn("skipping local package", logger.Fields{"error": err.Error()})
			db.addProblem(err)
			continue
		}
		versions, ok := db.entries[name]
		if !ok {
			versions = make(map[string]*localEntry)
			db.entries[name] = versions
		}
		versions[ver] = &localEntry{path: filepath.Join(db.path, d.Name()), name: name, version: ver}
		db.count++
	}
	logger.Debug("found local packages", logger.Fields{"count": db.count})
	return nil
}

func (db *LocalDatabase) load(e *localEntry) (*LocalPackage, error) {
	e.once.Do(func() {
		logger.Debug("loading local package", logger.Fields{"name": e.name, "version": e.version})
		e.pkg, e.err = loadLocalPackage(db.env, e.path, e.name, e.version)
		if e.err != nil {
			db.addProblem(e.err)
		}
	})
	if err := db.env.Check(); err != nil {
		return nil, err
	}
	return e.pkg, e.err
}

func (db *LocalDatabase) addProblem(err error) {
	db.problemsMu.Lock()
	defer db.problemsMu.Unlock()
	db.problems = append(db.problems, err)
}

// Name returns "local".
func (db *LocalDatabase) Name() string {
	return LocalDatabaseName
}

// Path returns the database directory.
func (db *LocalDatabase) Path() string {
	return db.path
}

// Status checks the directory and its schema version marker. An empty directory without a
// marker is initialised and reported valid.
func (db *LocalDatabase) Status() (Status, error) {
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
	if !info.IsDir() {
		return StatusInvalid, nil
	}

	logger.Debug("checking local database version", logger.Fields{"path": db.path})
	markerPath := filepath.Join(db.path, LocalVersionFile)
	raw, err := os.ReadFile(markerPath)
	switch {
	case err == nil:
		return db.checkMarker(raw), nil
	case os.IsNotExist(err):
		return db.createMarker(markerPath), nil
	default:
		logger.Error("could not read local database version", logger.Fields{"path": markerPath, "error": err.Error()})
		return StatusInvalid, nil
	}
}

func (db *LocalDatabase) checkMarker(raw []byte) Status {
	text := strings.TrimSpace(string(raw))
	v, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		logger.Error("invalid local database version", logger.Fields{"version": text})
		return StatusInvalid
	}
	if v != LocalDatabaseVersion {
		logger.Warn("local database version is not the latest", logger.Fields{
			"version":  v,
			"expected": LocalDatabaseVersion,
		})
		return StatusInvalid
	}
	return StatusValid
}

func (db *LocalDatabase) createMarker(markerPath string) Status {
	logger.Debug("local database version file not found", logger.Fields{"path": markerPath})
	empty, err := fsutil.IsEmptyDir(db.path)
	if err != nil {
		logger.Error("could not check contents of local database", logger.Fields{"path": db.path, "error": err.Error()})
		return StatusInvalid
	}
	if !empty {
		return StatusInvalid
	}
	data := []byte(strconv.Itoa(LocalDatabaseVersion) + "\n")
	if err := fsutil.WriteFileAtomic(markerPath, data, fsutil.FileModeDefault); err != nil {
		logger.Error("could not create local database version file", logger.Fields{"path": markerPath, "error": err.Error()})
		return StatusInvalid
	}
	return StatusValid
}

// Count returns the number of package directories found.
func (db *LocalDatabase) Count() (int, error) {
	if err := db.env.Check(); err != nil {
		return 0, err
	}
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.count, nil
}

// Package returns the named package at exactly the given version string.
func (db *LocalDatabase) Package(name, ver string) (*LocalPackage, error) {
	if err := db.env.Check(); err != nil {
		return nil, err
	}
	db.mu.RLock()
	e, ok := db.entries[name][ver]
	db.mu.RUnlock()
	if !ok {
		return nil, errors.New(errors.KindPackageNotFound, name+"-"+ver)
	}
	return db.load(e)
}

// Latest returns the newest installed version of name. Normally only one is installed.
func (db *LocalDatabase) Latest(name string) (*LocalPackage, error) {
	if err := db.env.Check(); err != nil {
		return nil, err
	}
	db.mu.RLock()
	versions := db.entries[name]
	var newest *localEntry
	for _, v := range sortedVersions(versions) {
		newest = versions[v]
	}
	db.mu.RUnlock()
	if newest == nil {
		return nil, errors.New(errors.KindPackageNotFound, name)
	}
	return db.load(newest)
}

// Packages calls fn for every package that loads, ordered by name then version. Packages that
// fail to load are logged, recorded in Problems and skipped.
func (db *LocalDatabase) Packages(fn func(*LocalPackage) error) error {
	if err := db.env.Check(); err != nil {
		return err
	}
	for _, e := range db.snapshot() {
		pkg, err := db.load(e)
		if err != nil {
			if errors.Is(err, errors.ErrUseAfterDrop) {
				return err
			}
			logger.Warn("skipping local package", logger.Fields{"error": err.Error()})
			continue
		}
		if err := fn(pkg); err != nil {
			return err
		}
	}
	return nil
}

func (db *LocalDatabase) snapshot() []*localEntry {
	db.mu.RLock()
	defer db.mu.RUnlock()
	names := make([]string, 0, len(db.entries))
	for name := range db.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	out := make([]*localEntry, 0, db.count)
	for _, name := range names {
		versions := db.entries[name]
		for _, v := range sortedVersions(versions) {
			out = append(out, versions[v])
		}
	}
	return out
}

func sortedVersions[T any](versions map[string]T) []string {
	keys := make([]string, 0, len(versions))
	for k := range versions {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	slices.SortStableFunc(keys, version.CompareStrings)
	return keys
}

// Problems returns the directories that could not be used and the packages that failed to
// load so far.
func (db *LocalDatabase) Problems() []error {
	db.problemsMu.Lock()
	defer db.problemsMu.Unlock()
	return slices.Clone(db.problems)
}

// Lookup implements Database.
func (db *LocalDatabase) Lookup(name string) (Package, error) {
	pkg, err := db.Latest(name)
	if err != nil {
		return nil, err
	}
	return pkg, nil
}

// Each implements Database.
func (db *LocalDatabase) Each(fn func(Package) error) error {
	return db.Packages(func(p *LocalPackage) error { return fn(p) })
}

// AddServer always fails: the local database has no remote source.
func (db *LocalDatabase) AddServer(raw string) error {
	return errors.Newf(errors.KindCannotAddServerToDatabase, LocalDatabaseName, "cannot add %s to the local database", raw)
}

// Usage returns the operations the database is used for.
func (db *LocalDatabase) Usage() Usage {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.usage
}

// SetUsage changes the operations the database is used for.
func (db *LocalDatabase) SetUsage(u Usage) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.usage = u
}

// SignatureLevel returns the level packages installed from this database were checked with.
func (db *LocalDatabase) SignatureLevel() signing.Level {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.level
}

// SetSignatureLevel changes the signature level.
func (db *LocalDatabase) SetSignatureLevel(l signing.Level) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.level = l
}

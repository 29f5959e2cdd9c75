package db

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glorpus-work/alpmdb/pkg/desc"
	"github.com/glorpus-work/alpmdb/pkg/errors"
	"github.com/glorpus-work/alpmdb/pkg/mtree"
	"github.com/glorpus-work/alpmdb/pkg/version"
)

// LocalPackage is an installed package.
type LocalPackage struct {
	env    *Env
	path   string
	desc   LocalDescription
	names  []string
	backup []BackupEntry
	files  []FileRecord
}

// loadLocalPackage reads the package directory at path, whose name split into name and
// version.
func loadLocalPackage(env *Env, path, name, ver string) (*LocalPackage, error) {
	raw, err := os.ReadFile(filepath.Join(path, "desc"))
	if err != nil {
		return nil, errors.From(errors.KindInvalidLocalPackage, name, err)
	}
	var d LocalDescription
	if err := desc.Unmarshal(raw, &d, env.descOptions()...); err != nil {
		return nil, errors.From(errors.KindInvalidLocalPackage, name, err)
	}
	if d.Name != name {
		return nil, errors.Newf(errors.KindInvalidLocalPackage, name,
			"name on system (%q) does not match name in package (%q)", name, d.Name)
	}
	if d.Version.String() != ver {
		return nil, errors.Newf(errors.KindInvalidLocalPackage, name,
			"version on system (%q) does not match version in package (%q)", ver, d.Version)
	}

	pkg := &LocalPackage{env: env, path: path, desc: d}

	fm, err := readFilesMember(env, filepath.Join(path, "files"))
	if err != nil {
		return nil, errors.From(errors.KindInvalidLocalPackage, name, err)
	}
	pkg.names = fm.Files
	pkg.backup = parseBackup(fm.Backup)

	files, err := readManifest(filepath.Join(path, "mtree"), fm.Files)
	if err != nil {
		return nil, errors.From(errors.KindInvalidLocalPackage, name, err)
	}
	pkg.files = files
	return pkg, nil
}

func readFilesMember(env *Env, path string) (filesMember, error) {
	var fm filesMember
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fm, nil
		}
		return fm, err
	}
	err = desc.Unmarshal(raw, &fm, env.descOptions()...)
	return fm, err
}

// readManifest parses the gzip mtree at path and keeps the entries listed in names. The
// manifest carries bookkeeping entries (.PKGINFO, .BUILDINFO, ...) that were never installed.
func readManifest(path string, names []string) ([]FileRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer func() { _ = f.Close() }()

	entries, err := mtree.ParseGzip(f)
	if err != nil {
		return nil, fmt.Errorf("mtree: %w", err)
	}

	installed := make(map[string]struct{}, len(names))
	for _, n := range names {
		installed[strings.TrimSuffix(n, "/")] = struct{}{}
	}

	var files []FileRecord
	for _, e := range entries {
		rel := strings.TrimSuffix(strings.TrimPrefix(e.Path, "./"), "/")
		if _, ok := installed[rel]; !ok {
			continue
		}
		files = append(files, fileRecordOf(rel, e))
	}
	return files, nil
}

// Name returns the package name.
func (p *LocalPackage) Name() string { return p.desc.Name }

// Version returns the installed version.
func (p *LocalPackage) Version() version.Version { return p.desc.Version }

// Path is the package's directory in the local database.
func (p *LocalPackage) Path() string { return p.path }

func (p *LocalPackage) Base() string              { return p.desc.Base }
func (p *LocalPackage) Description() string       { return p.desc.Description }
func (p *LocalPackage) Groups() []string          { return p.desc.Groups }
func (p *LocalPackage) URL() string               { return p.desc.URL }
func (p *LocalPackage) Licenses() []string        { return p.desc.License }
func (p *LocalPackage) Arch() string              { return p.desc.Arch }
func (p *LocalPackage) BuildDate() time.Time      { return unixTime(p.desc.BuildDate) }
func (p *LocalPackage) InstallDate() time.Time    { return unixTime(p.desc.InstallDate) }
func (p *LocalPackage) Packager() string          { return p.desc.Packager }
func (p *LocalPackage) Validation() []Validation  { return p.desc.Validation }
func (p *LocalPackage) Size() uint64              { return p.desc.Size }
func (p *LocalPackage) Replaces() []string        { return p.desc.Replaces }
func (p *LocalPackage) Depends() []string         { return p.desc.Depends }
func (p *LocalPackage) OptionalDepends() []string { return p.desc.OptionalDepends }
func (p *LocalPackage) Conflicts() []string       { return p.desc.Conflicts }
func (p *LocalPackage) Provides() []string        { return p.desc.Provides }

// Reason reports why the package was installed. ok is false when the database does not say.
func (p *LocalPackage) Reason() (reason Reason, ok bool) {
	if p.desc.Reason == nil {
		return ReasonExplicit, false
	}
	return *p.desc.Reason, true
}

// Desc returns a copy of the parsed desc member.
func (p *LocalPackage) Desc() LocalDescription { return p.desc }

// FileNames lists the installed paths as recorded in the files member.
func (p *LocalPackage) FileNames() []string { return p.names }

// Backup lists the configuration files tracked for the package.
func (p *LocalPackage) Backup() []BackupEntry { return p.backup }

// Files returns the manifest records of the installed files.
func (p *LocalPackage) Files() []FileRecord { return p.files }

// FilesCount returns len(Files()).
func (p *LocalPackage) FilesCount() int { return len(p.files) }

// SizeOnDisk sums the sizes of the package's files that exist under the root.
func (p *LocalPackage) SizeOnDisk() (uint64, error) {
	if err := p.env.Check(); err != nil {
		return 0, err
	}
	return sizeOnDisk(p.env.RootPath, p.files)
}

// Validate compares every file record with the disk and returns all discrepancies found.
// The error is reserved for failures to check, such as a permission error.
func (p *LocalPackage) Validate() ([]ValidationError, error) {
	if err := p.env.Check(); err != nil {
		return nil, err
	}
	return validateFiles(p.env.RootPath, p.files)
}

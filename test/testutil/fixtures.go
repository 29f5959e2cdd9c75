// Package testutil builds on-disk databases for tests: local package directories, sync
// archives and a file server for them.
package testutil

import (
	"archive/tar"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"

	"github.com/glorpus-work/alpmdb/pkg/archive"
	"github.com/glorpus-work/alpmdb/pkg/desc"
)

// Field is one record of a desc document.
type Field struct {
	Key   string
	Lines []string
}

// Desc is a desc document whose records are written in order.
type Desc []Field

// ForEachField implements desc.Record.
func (d Desc) ForEachField(fn func(name string, value any) error) error {
	for _, f := range d {
		if err := fn(f.Key, f.Lines); err != nil {
			return err
		}
	}
	return nil
}

// Bytes encodes the document with unix line endings.
func (d Desc) Bytes(t *testing.T) []byte {
	t.Helper()
	data, err := desc.Marshal(d, desc.WithLineEnding(desc.LineEndingUnix))
	require.NoError(t, err)
	return data
}

// LocalDesc returns a minimal valid local desc for name and version.
func LocalDesc(name, version string, extra ...Field) Desc {
	d := Desc{
		{Key: "NAME", Lines: []string{name}},
		{Key: "VERSION", Lines: []string{version}},
		{Key: "DESC", Lines: []string{"the " + name + " package"}},
		{Key: "URL", Lines: []string{"https://example.org/" + name}},
		{Key: "ARCH", Lines: []string{"x86_64"}},
		{Key: "BUILDDATE", Lines: []string{"1700000000"}},
		{Key: "INSTALLDATE", Lines: []string{"1700000100"}},
		{Key: "PACKAGER", Lines: []string{"Test Packager <test@example.org>"}},
		{Key: "REASON", Lines: []string{"1"}},
		{Key: "VALIDATION", Lines: []string{"sha256", "pgp"}},
		{Key: "SIZE", Lines: []string{"1024"}},
	}
	return append(d, extra...)
}

// SyncDesc returns a minimal valid sync desc for name and version.
func SyncDesc(name, version string, extra ...Field) Desc {
	d := Desc{
		{Key: "FILENAME", Lines: []string{name + "-" + version + "-x86_64.pkg.tar.zst"}},
		{Key: "NAME", Lines: []string{name}},
		{Key: "VERSION", Lines: []string{version}},
		{Key: "DESC", Lines: []string{"the " + name + " package"}},
		{Key: "CSIZE", Lines: []string{"512"}},
		{Key: "ISIZE", Lines: []string{"2048"}},
		{Key: "SHA256SUM", Lines: []string{"00ff10ab"}},
		{Key: "ARCH", Lines: []string{"x86_64"}},
		{Key: "BUILDDATE", Lines: []string{"1700000000"}},
		{Key: "PACKAGER", Lines: []string{"Test Packager <test@example.org>"}},
	}
	return append(d, extra...)
}

// LocalPackage describes a package directory of the local database.
type LocalPackage struct {
	// Dirname defaults to Name-Version.
	Dirname string
	Name    string
	Version string
	// Desc defaults to LocalDesc(Name, Version).
	Desc Desc
	// Files are the entries of the files member; nil skips the member.
	Files  []string
	Backup []string
	// Mtree is the uncompressed manifest; empty skips the member.
	Mtree string
}

// WriteLocalPackage creates the package directory under dbPath/local and returns its path.
func WriteLocalPackage(t *testing.T, dbPath string, pkg LocalPackage) string {
	t.Helper()
	dirname := pkg.Dirname
	if dirname == "" {
		dirname = pkg.Name + "-" + pkg.Version
	}
	dir := filepath.Join(dbPath, "local", dirname)
	require.NoError(t, os.MkdirAll(dir, 0o755))

	d := pkg.Desc
	if d == nil {
		d = LocalDesc(pkg.Name, pkg.Version)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "desc"), d.Bytes(t), 0o644))

	if pkg.Files != nil {
		files := Desc{{Key: "FILES", Lines: pkg.Files}}
		if len(pkg.Backup) > 0 {
			files = append(files, Field{Key: "BACKUP", Lines: pkg.Backup})
		}
		require.NoError(t, os.WriteFile(filepath.Join(dir, "files"), files.Bytes(t), 0o644))
	}
	if pkg.Mtree != "" {
		WriteGzip(t, filepath.Join(dir, "mtree"), []byte(pkg.Mtree))
	}
	return dir
}

// WriteVersionMarker writes the local database schema marker.
func WriteVersionMarker(t *testing.T, dbPath, content string) {
	t.Helper()
	dir := filepath.Join(dbPath, "local")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ALPM_DB_VERSION"), []byte(content), 0o644))
}

// WriteGzip writes data gzip compressed to path.
func WriteGzip(t *testing.T, path string, data []byte) {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

// WriteSyncArchive builds a tar.gz at path from archive names to contents.
func WriteSyncArchive(t *testing.T, path string, members map[string][]byte) {
	t.Helper()
	src := t.TempDir()
	for name, content := range members {
		p := filepath.Join(src, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, content, 0o644))
	}
	require.NoError(t, archive.Create(context.Background(), src, path))
}

// TarMember is a regular file written by WriteTarGz.
type TarMember struct {
	Name    string
	Content []byte
}

// WriteTarGz writes members in order, allowing the same name more than once, which a
// directory tree cannot express.
func WriteTarGz(t *testing.T, path string, members []TarMember) {
	t.Helper()
	var raw bytes.Buffer
	tw := tar.NewWriter(&raw)
	for _, m := range members {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     m.Name,
			Mode:     0o644,
			Size:     int64(len(m.Content)),
			ModTime:  time.Unix(1700000000, 0),
			Typeflag: tar.TypeReg,
		}))
		_, err := tw.Write(m.Content)
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	WriteGzip(t, path, raw.Bytes())
}

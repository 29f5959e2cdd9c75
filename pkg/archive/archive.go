// Package archive streams entries out of repository archives and builds new ones.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mholt/archives"

	"github.com/glorpus-work/alpmdb/pkg/fsutil"
)

// ErrNotArchive is returned when a stream is recognised but holds no file entries (a bare
// compressed file, for instance).
var ErrNotArchive = errors.New("not an archive")

// Entry is one member of an archive. Open is only valid during the callback that received it.
type Entry struct {
	Name  string
	IsDir bool
	Size  int64
	Mode  os.FileMode
	Open  func() (io.ReadCloser, error)
}

// WalkFunc is called for every entry, in archive order. Returning an error stops the walk.
type WalkFunc func(Entry) error

// Walk identifies the format of r (gzip, zstd, xz, bzip2 or plain tar, by content when name
// does not tell) and calls fn for each entry.
func Walk(ctx context.Context, name string, r io.Reader, fn WalkFunc) error {
	format, stream, err := archives.Identify(ctx, name, r)
	if err != nil {
		return fmt.Errorf("failed to identify archive %s: %w", name, err)
	}
	extractor, ok := format.(archives.Extractor)
	if !ok {
		return fmt.Errorf("%s (%s): %w", name, format.Extension(), ErrNotArchive)
	}

	return extractor.Extract(ctx, stream, func(_ context.Context, info archives.FileInfo) error {
		return fn(Entry{
			Name:  info.NameInArchive,
			IsDir: info.IsDir(),
			Size:  info.Size(),
			Mode:  info.Mode(),
			Open: func() (io.ReadCloser, error) {
				return info.Open()
			},
		})
	})
}

// WalkFile opens path and walks it.
func WalkFile(ctx context.Context, path string, fn WalkFunc) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return Walk(ctx, filepath.Base(path), f, fn)
}

// Create writes the contents of sourceDir as a gzip compressed tar to archivePath. Paths in the
// archive are relative to sourceDir.
func Create(ctx context.Context, sourceDir, archivePath string) error {
	absolutePath, err := filepath.Abs(sourceDir)
	if err != nil {
		return fmt.Errorf("failed to get absolute path for source directory: %w", err)
	}
	return CreateFromFiles(ctx, map[string]string{
		absolutePath + string(os.PathSeparator): "",
	}, archivePath)
}

// CreateFromFiles writes a gzip compressed tar to archivePath. files maps paths on disk to their
// name in the archive, as archives.FilesFromDisk does.
func CreateFromFiles(ctx context.Context, files map[string]string, archivePath string) error {
	archiveFiles, err := archives.FilesFromDisk(ctx, nil, files)
	if err != nil {
		return fmt.Errorf("failed to read files from disk: %w", err)
	}

	if err := fsutil.EnsureFileDir(archivePath); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", archivePath, err)
	}
	file, err := fsutil.CreateFilePerm(archivePath, fsutil.FileModeDefault)
	if err != nil {
		return fmt.Errorf("failed to create output file %s: %w", archivePath, err)
	}
	defer func() {
		_ = file.Sync()
		_ = file.Close()
	}()

	format := archives.CompressedArchive{
		Compression: archives.Gz{},
		Archival:    archives.Tar{},
	}
	if err := format.Archive(ctx, file, archiveFiles); err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	return nil
}

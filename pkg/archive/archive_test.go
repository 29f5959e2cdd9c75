package archive

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/mholt/archives"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func collect(t *testing.T, walk func(WalkFunc) error) map[string]string {
	t.Helper()
	got := map[string]string{}
	err := walk(func(e Entry) error {
		if e.IsDir {
			return nil
		}
		rc, err := e.Open()
		if err != nil {
			return err
		}
		defer func() { _ = rc.Close() }()
		data, err := io.ReadAll(rc)
		if err != nil {
			return err
		}
		assert.Equal(t, int64(len(data)), e.Size)
		got[filepath.ToSlash(e.Name)] = string(data)
		return nil
	})
	require.NoError(t, err)
	return got
}

func TestCreateAndWalkFile(t *testing.T) {
	tempDir := t.TempDir()
	files := map[string]string{
		"zlib-1:1.3.1-2/desc":  "%NAME%\nzlib\n\n",
		"bash-5.2.026-2/desc":  "%NAME%\nbash\n\n",
		"bash-5.2.026-2/files": "%FILES%\nusr/bin/bash\n\n",
	}
	sourceDir := filepath.Join(tempDir, "source")
	writeTree(t, sourceDir, files)

	// No recognisable extension: the format has to be sniffed from the content.
	archivePath := filepath.Join(tempDir, "sync", "core.db")
	require.NoError(t, Create(context.Background(), sourceDir, archivePath))

	got := collect(t, func(fn WalkFunc) error {
		return WalkFile(context.Background(), archivePath, fn)
	})
	assert.Equal(t, files, got)
}

func TestCreateFromFiles(t *testing.T) {
	tempDir := t.TempDir()
	writeTree(t, tempDir, map[string]string{"a.txt": "alpha"})

	archivePath := filepath.Join(tempDir, "out.tar.gz")
	err := CreateFromFiles(context.Background(), map[string]string{
		filepath.Join(tempDir, "a.txt"): "pkg-1-1/desc",
	}, archivePath)
	require.NoError(t, err)

	got := collect(t, func(fn WalkFunc) error {
		return WalkFile(context.Background(), archivePath, fn)
	})
	assert.Equal(t, map[string]string{"pkg-1-1/desc": "alpha"}, got)
}

func TestWalk_Zstd(t *testing.T) {
	tempDir := t.TempDir()
	writeTree(t, tempDir, map[string]string{"desc": "zstd content"})

	archiveFiles, err := archives.FilesFromDisk(context.Background(), nil, map[string]string{
		filepath.Join(tempDir, "desc"): "pkg-1-1/desc",
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	format := archives.CompressedArchive{Compression: archives.Zstd{}, Archival: archives.Tar{}}
	require.NoError(t, format.Archive(context.Background(), &buf, archiveFiles))

	got := collect(t, func(fn WalkFunc) error {
		return Walk(context.Background(), "extra.db", &buf, fn)
	})
	assert.Equal(t, map[string]string{"pkg-1-1/desc": "zstd content"}, got)
}

func TestWalk_Errors(t *testing.T) {
	t.Run("not an archive", func(t *testing.T) {
		err := Walk(context.Background(), "junk.db", bytes.NewReader([]byte("this is not an archive at all")), func(Entry) error {
			return nil
		})
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		err := WalkFile(context.Background(), filepath.Join(t.TempDir(), "missing.db"), func(Entry) error {
			return nil
		})
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("callback error stops the walk", func(t *testing.T) {
		tempDir := t.TempDir()
		writeTree(t, filepath.Join(tempDir, "src"), map[string]string{"a": "1", "b": "2", "c": "3"})
		archivePath := filepath.Join(tempDir, "x.tar.gz")
		require.NoError(t, Create(context.Background(), filepath.Join(tempDir, "src"), archivePath))

		stop := errors.New("stop")
		calls := 0
		err := WalkFile(context.Background(), archivePath, func(e Entry) error {
			if e.IsDir {
				return nil
			}
			calls++
			return stop
		})
		assert.ErrorIs(t, err, stop)
		assert.Equal(t, 1, calls)
	})
}

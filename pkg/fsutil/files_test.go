package fsutil

import (
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomic(t *testing.T) {
	tempDir := t.TempDir()
	target := filepath.Join(tempDir, "nested", "config.yaml")

	require.NoError(t, WriteFileAtomic(target, []byte("first"), FileModeSecure))
	content, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "first", string(content))

	// Overwrite keeps a single file and leaves no temporary files behind.
	require.NoError(t, WriteFileAtomic(target, []byte("second"), FileModeSecure))
	content, err = os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "second", string(content))

	entries, err := os.ReadDir(filepath.Dir(target))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	if runtime.GOOS != "windows" {
		info, err := os.Stat(target)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(FileModeSecure), info.Mode().Perm())
	}
}

func TestWriteFileAtomic_ParentIsFile(t *testing.T) {
	tempDir := t.TempDir()
	parent := filepath.Join(tempDir, "file")
	require.NoError(t, os.WriteFile(parent, []byte("x"), FileModeDefault))

	err := WriteFileAtomic(filepath.Join(parent, "child"), []byte("data"), FileModeDefault)
	assert.Error(t, err)
}

func TestWriteReaderAtomic_ReadFailureKeepsTarget(t *testing.T) {
	tempDir := t.TempDir()
	target := filepath.Join(tempDir, "core.db")
	require.NoError(t, os.WriteFile(target, []byte("previous"), FileModeDefault))

	r := io.MultiReader(strings.NewReader("partial"), iotest.ErrReader(io.ErrUnexpectedEOF))
	n, err := WriteReaderAtomic(target, r, FileModeDefault)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, int64(len("partial")), n)

	content, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "previous", string(content))

	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

// TestCreateFilePerm tests the CreateFilePerm function
func TestCreateFilePerm(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("Skipping permission test on Windows")
	}
	tempDir := t.TempDir()

	testFile := filepath.Join(tempDir, "test.txt")
	permissions := os.FileMode(0o600)

	file, err := CreateFilePerm(testFile, permissions)
	require.NoError(t, err)
	assert.NotNil(t, file)

	content := "test content"
	_, err = file.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, file.Close())

	info, err := os.Stat(testFile)
	require.NoError(t, err)
	assert.Equal(t, permissions, info.Mode())

	fileContent, err := os.ReadFile(testFile)
	require.NoError(t, err)
	assert.Equal(t, content, string(fileContent))
}

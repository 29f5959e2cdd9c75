package lock

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLocker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.lck")
	locker := NewFileLocker()

	l, err := locker.Acquire(path)
	require.NoError(t, err)
	assert.Equal(t, path, l.Path())
	assert.FileExists(t, path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), strings.TrimSpace(string(content)))

	_, err = locker.Acquire(path)
	assert.ErrorIs(t, err, ErrAlreadyHeld)

	require.NoError(t, l.Release())
	assert.NoFileExists(t, path)
	require.NoError(t, l.Release(), "second release is a no-op")

	l2, err := locker.Acquire(path)
	require.NoError(t, err)
	require.NoError(t, l2.Release())
}

func TestFileLocker_MissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "db.lck")
	_, err := NewFileLocker().Acquire(path)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAlreadyHeld)
}

func TestFileLocker_ReleaseAfterExternalRemoval(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.lck")
	l, err := NewFileLocker().Acquire(path)
	require.NoError(t, err)

	require.NoError(t, os.Remove(path))
	assert.NoError(t, l.Release())
}

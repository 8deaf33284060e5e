package storage

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageSaveStreamAndOpen(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	n, err := store.SaveStream("enrollments/e1/birth.pdf", bytes.NewReader([]byte("%PDF-1.4 hello")), 1024)
	require.NoError(t, err)
	assert.EqualValues(t, 14, n)

	f, err := store.Open("enrollments/e1/birth.pdf")
	require.NoError(t, err)
	defer f.Close()
	content, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 hello", string(content))
}

func TestLocalStorageSaveStreamTooLargeLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir)
	require.NoError(t, err)

	_, err = store.SaveStream("enrollments/e1/big.pdf", bytes.NewReader(make([]byte, 2048)), 1024)
	require.ErrorIs(t, err, ErrTooLarge)

	entries, err := os.ReadDir(filepath.Join(dir, "enrollments", "e1"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLocalStorageRejectsEscapingPaths(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.SaveStream("../outside.txt", bytes.NewReader([]byte("x")), 0)
	assert.ErrorIs(t, err, ErrInvalidPath)
	assert.ErrorIs(t, store.Delete("/etc/passwd"), ErrInvalidPath)
}

func TestLocalStorageDeleteMissingIsNoop(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	assert.NoError(t, store.Delete("never/written.pdf"))
}

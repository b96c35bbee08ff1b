package services

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoreSaveAndDelete(t *testing.T) {
	root := t.TempDir()
	store := NewLocalStore(root)

	stored, err := store.Save("abc/receipts", "Receipt.PDF", strings.NewReader("data"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stored, "uploads/abc/receipts/"))
	assert.True(t, strings.HasSuffix(stored, ".pdf"))

	onDisk := filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(stored, "uploads/")))
	data, err := os.ReadFile(onDisk)
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))

	require.NoError(t, store.Delete(stored))
	_, err = os.Stat(onDisk)
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, store.Delete(stored))
}

func TestLocalStoreConfinesDirectory(t *testing.T) {
	root := t.TempDir()
	store := NewLocalStore(root)

	stored, err := store.Save("../../escape", "x.txt", strings.NewReader("x"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stored, "uploads/escape/"))
	_, err = os.Stat(filepath.Join(root, "escape"))
	assert.NoError(t, err)
}

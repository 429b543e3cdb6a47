package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageSaveReadDelete(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	name, err := store.Save("2024/CERT-1.pdf", []byte("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, "2024/CERT-1.pdf", name)

	data, err := store.Read(name)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF"), data)

	require.NoError(t, store.Delete(name))
	_, err = store.Read(name)
	assert.ErrorIs(t, err, ErrNotStored)
}

func TestLocalStorageRejectsTraversal(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save("../escape.pdf", []byte("x"))
	assert.Error(t, err)
}

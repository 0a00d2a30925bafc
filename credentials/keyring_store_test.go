package credentials

import (
	"context"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFileKeyring(t *testing.T) *KeyringStore {
	t.Helper()
	store, err := OpenKeyring(KeyringConfig{
		Dir:      t.TempDir(),
		Password: "test-passphrase",
		Backends: []keyring.BackendType{keyring.FileBackend},
	})
	require.NoError(t, err)
	return store
}

func TestKeyringStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newFileKeyring(t)

	require.NoError(t, store.Put(ctx, AccessToken, "first"))
	got, err := store.Get(ctx, AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "first", got)

	require.NoError(t, store.Put(ctx, AccessToken, "second"))
	got, err = store.Get(ctx, AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "second", got)
}

func TestKeyringStoreMissing(t *testing.T) {
	store := newFileKeyring(t)

	_, err := store.Get(context.Background(), ClientState)
	assert.ErrorIs(t, err, ErrNotFound)
}

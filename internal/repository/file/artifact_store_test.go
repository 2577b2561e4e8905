package file

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DRSN-tech/go-recommender/pkg/e"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArtifactStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewArtifactStore(t.TempDir())
	require.NoError(t, err)

	payload := "id\nu1\n"
	require.NoError(t, store.Put(ctx, "v1/user_ids.csv", strings.NewReader(payload), int64(len(payload)), "text/csv"))

	ok, err := store.Exists(ctx, "v1/user_ids.csv")
	require.NoError(t, err)
	assert.True(t, ok)

	rc, size, err := store.Open(ctx, "v1/user_ids.csv")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, payload, string(data))
	assert.Equal(t, int64(len(payload)), size)

	keys, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"v1/user_ids.csv"}, keys)

	require.NoError(t, store.Delete(ctx, "v1/user_ids.csv"))
	require.NoError(t, store.Delete(ctx, "v1/user_ids.csv"))

	ok, err = store.Exists(ctx, "v1/user_ids.csv")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestArtifactStoreMissing(t *testing.T) {
	store, err := NewArtifactStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "nope.npy")
	assert.ErrorIs(t, err, e.ErrArtifactNotFound)

	_, err = store.Get(context.Background(), ".")
	assert.Error(t, err)

	missing, err := NewArtifactStore(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	_, err = missing.List(context.Background())
	assert.ErrorIs(t, err, e.ErrArtifactNotFound)
}

func TestArtifactStoreRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "secret"), []byte("x"), 0o600))

	store, err := NewArtifactStore(filepath.Join(dir, "root"))
	require.NoError(t, err)

	for _, key := range []string{"../secret", "/etc/passwd", "a/../../secret", ""} {
		_, err := store.Get(context.Background(), key)
		assert.ErrorIs(t, err, e.ErrInvalidArtifactPath, key)

		err = store.Put(context.Background(), key, strings.NewReader("x"), 1, "")
		assert.ErrorIs(t, err, e.ErrInvalidArtifactPath, key)
	}
}

func TestArtifactStoreListSkipsHiddenFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.json"), []byte("{}"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".DS_Store"), []byte("x"), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "vectors"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vectors", "p.npy"), []byte("x"), 0o600))

	store, err := NewArtifactStore(dir)
	require.NoError(t, err)

	keys, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"manifest.json", "vectors/p.npy"}, keys)
}

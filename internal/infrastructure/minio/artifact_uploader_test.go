package minio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DRSN-tech/go-recommender/internal/usecase"
	"github.com/DRSN-tech/go-recommender/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu      sync.Mutex
	objects map[string]string
	types   map[string]string
	failPut string
}

func newMemStore() *memStore {
	return &memStore{objects: map[string]string{}, types: map[string]string{}}
}

func (m *memStore) Get(context.Context, string) (io.ReadCloser, error) { return nil, errors.New("unused") }

func (m *memStore) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	if key == m.failPut {
		return errors.New("disk full")
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = string(b)
	m.types[key] = contentType
	return nil
}

func (m *memStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memStore) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.objects))
	for k := range m.objects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type memSource map[string]string

func (s memSource) List(context.Context) ([]string, error) {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	return keys, nil
}

func (s memSource) Open(_ context.Context, key string) (io.ReadCloser, int64, error) {
	v, ok := s[key]
	if !ok {
		return nil, 0, errors.New("missing " + key)
	}
	return io.NopCloser(bytes.NewReader([]byte(v))), int64(len(v)), nil
}

func TestUploadArtifact(t *testing.T) {
	store := newMemStore()
	u := NewArtifactUploader(store, 2, logger.NewNop(), context.Background())
	source := memSource{"a.csv": "id\n", "b.npy": "npy", "c.json": "[]"}

	res, err := u.UploadArtifact(context.Background(), usecase.NewUploadArtifactReq(source, []string{"a.csv", "b.npy", "c.json"}, "v1"))
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"v1/a.csv", "v1/b.npy", "v1/c.json"}, res.Keys)
	assert.Equal(t, "npy", store.objects["v1/b.npy"])
	assert.Equal(t, "text/csv", store.types["v1/a.csv"])
	assert.Equal(t, "application/json", store.types["v1/c.json"])
}

func TestUploadArtifactCleansUpOnFailure(t *testing.T) {
	store := newMemStore()
	store.failPut = "v1/b.npy"
	u := NewArtifactUploader(store, 1, logger.NewNop(), context.Background())
	source := memSource{"a.csv": "id\n", "b.npy": "npy", "c.json": "[]"}

	_, err := u.UploadArtifact(context.Background(), usecase.NewUploadArtifactReq(source, []string{"a.csv", "b.npy", "c.json"}, "v1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b.npy")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, u.WaitForCleanup(ctx))
	assert.Empty(t, store.keys())
}

func TestCleanupArtifactStopsOnShutdown(t *testing.T) {
	shutdown, cancel := context.WithCancel(context.Background())
	cancel()

	u := NewArtifactUploader(newMemStore(), 1, logger.NewNop(), shutdown)
	u.CleanupArtifact(nil)
	u.CleanupArtifact([]string{"v1/a.csv"})

	ctx, stop := context.WithTimeout(context.Background(), time.Second)
	defer stop()
	assert.NoError(t, u.WaitForCleanup(ctx))
}

package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/DRSN-tech/go-recommender/internal/domain"
	"github.com/DRSN-tech/go-recommender/internal/retrieval"
	"github.com/DRSN-tech/go-recommender/pkg/e"
	"github.com/stretchr/testify/require"
)

// testModel: пользователи u1=[1,0], u2=[0,1]; продукты p1=[1,0], p2=[0,1], p3=[1,1].
func testModel(t *testing.T, version string) *retrieval.Model {
	t.Helper()

	table := func(ids []string, rows [][]float32) *retrieval.EmbeddingTable {
		v, err := retrieval.NewVocabulary(ids)
		require.NoError(t, err)
		m, err := retrieval.FromRows(rows)
		require.NoError(t, err)
		tbl, err := retrieval.NewEmbeddingTable(v, m)
		require.NoError(t, err)
		return tbl
	}

	users := table([]string{"u1", "u2"}, [][]float32{{0.5, 0.5}, {1, 0}, {0, 1}})
	products := table([]string{"p1", "p2", "p3"}, [][]float32{{0, 0}, {1, 0}, {0, 1}, {1, 1}})
	r, err := retrieval.NewUserRetriever(users, products, retrieval.OOVReject)
	require.NoError(t, err)

	vecs, err := retrieval.FromRows([][]float32{{1, 0}, {0.8, 0.2}, {0, 1}})
	require.NoError(t, err)
	idx, err := retrieval.NewSimilarityIndex([]domain.Product{
		domain.NewProduct("A", map[string]string{"brand": "acme"}),
		domain.NewProduct("B", nil),
		domain.NewProduct("C", nil),
	}, vecs)
	require.NoError(t, err)

	model, err := retrieval.NewModel(version, r, idx, time.Now())
	require.NoError(t, err)

	return model
}

type fakeLoader struct {
	mu        sync.Mutex
	models    map[string]*retrieval.Model
	manifests map[string]*domain.Manifest
	loads     []string
	block     chan struct{}
}

func (f *fakeLoader) Load(ctx context.Context, key string) (*retrieval.Model, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads = append(f.loads, key)

	m, ok := f.models[key]
	if !ok {
		return nil, e.ErrArtifactNotFound
	}
	return m, nil
}

func (f *fakeLoader) LoadManifest(_ context.Context, key string) (*domain.Manifest, error) {
	m, ok := f.manifests[key]
	if !ok {
		return nil, e.ErrArtifactNotFound
	}
	return m, nil
}

type fakeCache struct {
	mu     sync.Mutex
	data   map[string][]domain.Scored
	purged []string
	getErr error
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: map[string][]domain.Scored{}}
}

func (f *fakeCache) GetScored(_ context.Context, key string) ([]domain.Scored, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	items, ok := f.data[key]
	return items, ok, nil
}

func (f *fakeCache) SetScored(_ context.Context, key string, items []domain.Scored) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = items
	return nil
}

func (f *fakeCache) Purge(_ context.Context, version string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.purged = append(f.purged, version)
	return nil
}

func (f *fakeCache) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.data[key]
	return ok
}

func (f *fakeCache) purgedVersions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.purged...)
}

type fakeRegistry struct {
	active    *domain.ArtifactVersion
	activeErr error
	createErr error
	created   []*domain.ArtifactVersion
	activated []string
}

func (f *fakeRegistry) Create(_ context.Context, v *domain.ArtifactVersion) (*domain.ArtifactVersion, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, v)
	return v, nil
}

func (f *fakeRegistry) Activate(_ context.Context, version string) (*domain.ArtifactVersion, error) {
	f.activated = append(f.activated, version)
	return &domain.ArtifactVersion{Version: version, Status: domain.ArtifactActive}, nil
}

func (f *fakeRegistry) GetActive(context.Context) (*domain.ArtifactVersion, error) {
	if f.activeErr != nil {
		return nil, f.activeErr
	}
	return f.active, nil
}

type fakeOutbox struct {
	events []*OutboxEvent
}

func (f *fakeOutbox) Create(_ context.Context, event *OutboxEvent) (*OutboxEvent, error) {
	f.events = append(f.events, event)
	return event, nil
}

func (f *fakeOutbox) GetAndMarkAsProcessing(context.Context, int) ([]*OutboxEvent, error) {
	return nil, nil
}

func (f *fakeOutbox) MarkAsProcessed(context.Context, int64) error {
	return nil
}

type fakeTx struct {
	calls int
}

func (f *fakeTx) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	f.calls++
	return fn(ctx)
}

type fakeSource struct {
	files map[string][]byte
}

func (f *fakeSource) List(context.Context) ([]string, error) {
	keys := make([]string, 0, len(f.files))
	for k := range f.files {
		keys = append(keys, k)
	}
	return keys, nil
}

func (f *fakeSource) Open(_ context.Context, key string) (io.ReadCloser, int64, error) {
	b, ok := f.files[key]
	if !ok {
		return nil, 0, e.ErrArtifactNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), int64(len(b)), nil
}

type fakeLocal struct {
	loader *fakeLoader
	source *fakeSource
}

func (f *fakeLocal) Open(dir string) (ModelLoader, ArtifactSource, error) {
	if dir == "missing" {
		return nil, nil, errors.New("no such directory")
	}
	return f.loader, f.source, nil
}

type fakeUploader struct {
	batches [][]string
	cleaned []string
	failOn  string
}

func (f *fakeUploader) UploadArtifact(_ context.Context, req *UploadArtifactReq) (*UploadArtifactRes, error) {
	keys := make([]string, 0, len(req.Keys))
	for _, k := range req.Keys {
		if k == f.failOn {
			return nil, errors.New("upload failed")
		}
		keys = append(keys, req.Prefix+"/"+k)
	}
	f.batches = append(f.batches, keys)
	return NewUploadArtifactRes(keys), nil
}

func (f *fakeUploader) CleanupArtifact(keys []string) {
	f.cleaned = append(f.cleaned, keys...)
}

type fakeStore struct {
	existing map[string]bool
}

func (f *fakeStore) Get(context.Context, string) (io.ReadCloser, error) {
	return nil, e.ErrArtifactNotFound
}

func (f *fakeStore) Put(context.Context, string, io.Reader, int64, string) error {
	return nil
}

func (f *fakeStore) Exists(_ context.Context, key string) (bool, error) {
	return f.existing[key], nil
}

func (f *fakeStore) Delete(context.Context, string) error {
	return nil
}

type fakeVectors struct {
	dim     int
	version string
	items   []ProductVector
}

func (f *fakeVectors) EnsureCollection(_ context.Context, dim int) error {
	f.dim = dim
	return nil
}

func (f *fakeVectors) UpsertProducts(_ context.Context, version string, items []ProductVector) error {
	f.version = version
	f.items = items
	return nil
}

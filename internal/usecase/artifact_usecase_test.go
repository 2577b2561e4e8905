package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/DRSN-tech/go-recommender/internal/domain"
	"github.com/DRSN-tech/go-recommender/internal/retrieval"
	"github.com/DRSN-tech/go-recommender/pkg/e"
	"github.com/DRSN-tech/go-recommender/pkg/logger"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type publishFixture struct {
	uc       *ArtifactUseCase
	uploader *fakeUploader
	store    *fakeStore
	registry *fakeRegistry
	outbox   *fakeOutbox
	tx       *fakeTx
	vectors  *fakeVectors
}

func newPublishFixture(t *testing.T, withRegistry bool) *publishFixture {
	t.Helper()

	loader := &fakeLoader{
		models:    map[string]*retrieval.Model{domain.ManifestFile: testModel(t, "2024-06")},
		manifests: map[string]*domain.Manifest{domain.ManifestFile: {Version: "2024-06", Dimension: 2}},
	}
	source := &fakeSource{files: map[string][]byte{
		domain.ManifestFile:   []byte("{}"),
		"user_ids.csv":        []byte("id\nu1\n"),
		"user_embeddings.npy": []byte("npy"),
	}}

	f := &publishFixture{
		uploader: &fakeUploader{},
		store:    &fakeStore{existing: map[string]bool{}},
		vectors:  &fakeVectors{},
	}

	var (
		registry ArtifactVersionRepository
		outbox   OutboxRepository
		tx       TxManager
	)
	if withRegistry {
		f.registry, f.outbox, f.tx = &fakeRegistry{}, &fakeOutbox{}, &fakeTx{}
		registry, outbox, tx = f.registry, f.outbox, f.tx
	}

	f.uc = NewArtifactUC(&fakeLocal{loader: loader, source: source}, f.uploader, f.store,
		registry, outbox, tx, f.vectors, logger.NewNop())

	return f
}

func TestPublish(t *testing.T) {
	f := newPublishFixture(t, true)

	res, err := f.uc.Publish(context.Background(), &PublishReq{Dir: "./out", Activate: true, Mirror: true})
	require.NoError(t, err)

	assert.Equal(t, "2024-06", res.Version)
	assert.Equal(t, "2024-06/manifest.json", res.ManifestKey)
	assert.True(t, res.Registered)
	assert.True(t, res.Activated)
	assert.Equal(t, 3, res.Mirrored)

	// манифест загружается отдельной последней партией
	require.Len(t, f.uploader.batches, 2)
	assert.ElementsMatch(t, []string{"2024-06/user_ids.csv", "2024-06/user_embeddings.npy"}, f.uploader.batches[0])
	assert.Equal(t, []string{"2024-06/manifest.json"}, f.uploader.batches[1])
	assert.Equal(t, "2024-06/manifest.json", res.Keys[len(res.Keys)-1])

	assert.Equal(t, 1, f.tx.calls)
	require.Len(t, f.registry.created, 1)
	created := f.registry.created[0]
	assert.Equal(t, "2024-06/manifest.json", created.ManifestKey)
	assert.Equal(t, 2, created.Dimension)
	assert.Equal(t, 3, created.Products)
	assert.Equal(t, 2, created.Users)
	assert.Equal(t, []string{"2024-06"}, f.registry.activated)

	require.Len(t, f.outbox.events, 2)
	assert.Equal(t, domain.ArtifactPublished, f.outbox.events[0].EventType)
	assert.Equal(t, domain.ArtifactActivated, f.outbox.events[1].EventType)
	assert.Equal(t, "2024-06", f.outbox.events[0].AggregateKey)

	var payload domain.ArtifactEvent
	require.NoError(t, json.Unmarshal(f.outbox.events[1].Payload, &payload))
	assert.Equal(t, "2024-06/manifest.json", payload.ManifestKey)
	assert.Equal(t, f.outbox.events[1].EventID, payload.EventID)

	assert.Equal(t, 2, f.vectors.dim)
	assert.Equal(t, "2024-06", f.vectors.version)
	require.Len(t, f.vectors.items, 3)
	assert.Equal(t, "A", f.vectors.items[0].ProductID)
	assert.Equal(t, "acme", f.vectors.items[0].Attributes["brand"])
	assert.InDelta(t, 1, retrieval.Norm(f.vectors.items[1].Vector), 1e-6)
}

func TestPublishWithoutRegistry(t *testing.T) {
	f := newPublishFixture(t, false)

	res, err := f.uc.Publish(context.Background(), &PublishReq{Dir: "./out", Activate: true})
	require.NoError(t, err)
	assert.False(t, res.Registered)
	assert.False(t, res.Activated)
	assert.Zero(t, res.Mirrored)
	assert.Len(t, res.Keys, 3)
}

func TestPublishRejects(t *testing.T) {
	tests := []struct {
		name string
		req  *PublishReq
		prep func(*publishFixture)
		want error
	}{
		{
			name: "empty dir",
			req:  &PublishReq{},
			want: e.ErrInvalidArtifactPath,
		},
		{
			name: "version mismatch",
			req:  &PublishReq{Dir: "./out", Version: "other"},
			want: e.ErrInvalidManifest,
		},
		{
			name: "version exists",
			req:  &PublishReq{Dir: "./out"},
			prep: func(f *publishFixture) { f.store.existing["2024-06/manifest.json"] = true },
			want: e.ErrArtifactVersionExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPublishFixture(t, true)
			if tt.prep != nil {
				tt.prep(f)
			}

			_, err := f.uc.Publish(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, f.uploader.batches)
		})
	}
}

func TestPublishCleansUpOnRegistryFailure(t *testing.T) {
	f := newPublishFixture(t, true)
	f.registry.createErr = errors.New("unique violation")

	_, err := f.uc.Publish(context.Background(), &PublishReq{Dir: "./out"})
	require.Error(t, err)

	assert.ElementsMatch(t, []string{
		"2024-06/user_ids.csv",
		"2024-06/user_embeddings.npy",
		"2024-06/manifest.json",
	}, f.uploader.cleaned)
	assert.Empty(t, f.outbox.events)
}

func TestPublishCleansUpWhenManifestUploadFails(t *testing.T) {
	f := newPublishFixture(t, true)
	f.uploader.failOn = domain.ManifestFile

	_, err := f.uc.Publish(context.Background(), &PublishReq{Dir: "./out"})
	require.Error(t, err)

	assert.ElementsMatch(t, []string{"2024-06/user_ids.csv", "2024-06/user_embeddings.npy"}, f.uploader.cleaned)
	assert.Empty(t, f.registry.created)
}

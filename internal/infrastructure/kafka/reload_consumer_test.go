package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DRSN-tech/go-recommender/internal/domain"
	"github.com/DRSN-tech/go-recommender/internal/usecase"
	"github.com/DRSN-tech/go-recommender/pkg/logger"
	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReloader struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (f *fakeReloader) Reload(ctx context.Context, req *usecase.ReloadReq) (*usecase.ReloadRes, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.keys = append(f.keys, req.ManifestKey)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}

	return &usecase.ReloadRes{Version: "v2", ManifestKey: req.ManifestKey}, nil
}

func (f *fakeReloader) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.keys...)
}

// chanReader отдаёт сообщения из канала и блокируется до отмены контекста.
type chanReader struct {
	msgs chan kafka.Message
}

func (r *chanReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case msg := <-r.msgs:
		return msg, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *chanReader) Close() error { return nil }

func eventBytes(t *testing.T, eventType domain.ArtifactEventType, version string) []byte {
	t.Helper()

	data, err := json.Marshal(domain.NewArtifactEvent("e-1", eventType, version, version+"/manifest.json"))
	require.NoError(t, err)

	return data
}

func TestDecodeArtifactEvent(t *testing.T) {
	event, err := DecodeArtifactEvent(eventBytes(t, domain.ArtifactActivated, "v2"))
	require.NoError(t, err)
	assert.Equal(t, "v2/manifest.json", event.ManifestKey)

	for name, raw := range map[string]string{
		"not json":     "{",
		"unknown type": `{"type":"artifact.deleted","manifest_key":"k"}`,
		"no manifest":  `{"type":"artifact.activated","version":"v2"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeArtifactEvent([]byte(raw))
			assert.Error(t, err)
		})
	}
}

func TestReloadConsumerHandle(t *testing.T) {
	reloader := &fakeReloader{}
	c := newReloadConsumer(&chanReader{}, reloader, time.Second, logger.NewNop())
	ctx := context.Background()

	assert.Equal(t, outcomeReloaded, c.Handle(ctx, eventBytes(t, domain.ArtifactActivated, "v2")))
	assert.Equal(t, outcomeSkipped, c.Handle(ctx, eventBytes(t, domain.ArtifactPublished, "v3")))
	assert.Equal(t, outcomeInvalid, c.Handle(ctx, []byte("garbage")))
	assert.Equal(t, []string{"v2/manifest.json"}, reloader.calls())

	reloader.err = errors.New("boom")
	assert.Equal(t, outcomeFailed, c.Handle(ctx, eventBytes(t, domain.ArtifactActivated, "v4")))
}

func TestReloadConsumerHandleWithoutTimeout(t *testing.T) {
	reloader := &fakeReloader{}
	c := newReloadConsumer(&chanReader{}, reloader, 0, logger.NewNop())

	assert.Equal(t, outcomeReloaded, c.Handle(context.Background(), eventBytes(t, domain.ArtifactActivated, "v2")))
	assert.Equal(t, []string{"v2/manifest.json"}, reloader.calls())
}

func TestReloadConsumerRunStopsOnCancel(t *testing.T) {
	reader := &chanReader{msgs: make(chan kafka.Message, 2)}
	reloader := &fakeReloader{}
	c := newReloadConsumer(reader, reloader, time.Second, logger.NewNop())

	reader.msgs <- kafka.Message{Value: []byte("garbage")}
	reader.msgs <- kafka.Message{Value: eventBytes(t, domain.ArtifactActivated, "v5")}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return len(reloader.calls()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
	assert.Equal(t, []string{"v5/manifest.json"}, reloader.calls())
}

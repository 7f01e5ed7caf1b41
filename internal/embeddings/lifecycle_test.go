package embeddings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProvider lets tests dictate provider behavior.
type stubProvider struct {
	vectors   [][]float32
	queryVec  []float32
	err       error
	delay     time.Duration
	dimension int
}

func (s *stubProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.vectors, nil
}

func (s *stubProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.queryVec, nil
}

func (s *stubProvider) Dimension() int {
	if s.dimension > 0 {
		return s.dimension
	}
	return 4
}

func (s *stubProvider) Model() string { return "stub" }
func (s *stubProvider) Close() error  { return nil }

func TestLifecycleEmbedDocumentReady(t *testing.T) {
	l, err := NewLifecycle(&stubProvider{vectors: [][]float32{{1, 0, 0, 0}}}, 0, nil)
	require.NoError(t, err)

	out := l.EmbedDocument(context.Background(), "disk full")
	assert.Equal(t, StatusReady, out.Status)
	assert.Equal(t, []float32{1, 0, 0, 0}, out.Vector)
	assert.Equal(t, "stub", out.Model)
	assert.Equal(t, 4, out.Dimension)
	assert.Empty(t, out.Error)
}

func TestLifecycleEmbedDocumentProviderError(t *testing.T) {
	l, err := NewLifecycle(&stubProvider{err: errors.New("upstream unavailable")}, 0, nil)
	require.NoError(t, err)

	out := l.EmbedDocument(context.Background(), "disk full")
	assert.Equal(t, StatusFailed, out.Status)
	assert.Nil(t, out.Vector)
	assert.Contains(t, out.Error, "upstream unavailable")
}

func TestLifecycleEmbedDocumentTimeout(t *testing.T) {
	l, err := NewLifecycle(&stubProvider{
		vectors: [][]float32{{1, 0, 0, 0}},
		delay:   time.Second,
	}, 10*time.Millisecond, nil)
	require.NoError(t, err)

	start := time.Now()
	out := l.EmbedDocument(context.Background(), "disk full")
	assert.Equal(t, StatusFailed, out.Status)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Contains(t, out.Error, "context deadline exceeded")
}

func TestLifecycleEmbedDocumentMalformedResponse(t *testing.T) {
	t.Run("wrong vector count", func(t *testing.T) {
		l, err := NewLifecycle(&stubProvider{vectors: [][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}}}, 0, nil)
		require.NoError(t, err)

		out := l.EmbedDocument(context.Background(), "x")
		assert.Equal(t, StatusFailed, out.Status)
		assert.Contains(t, out.Error, "want 1")
	})

	t.Run("wrong dimension", func(t *testing.T) {
		l, err := NewLifecycle(&stubProvider{vectors: [][]float32{{1, 0}}}, 0, nil)
		require.NoError(t, err)

		out := l.EmbedDocument(context.Background(), "x")
		assert.Equal(t, StatusFailed, out.Status)
		assert.Contains(t, out.Error, "dimension")
	})
}

func TestLifecycleEmbedQuery(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		l, err := NewLifecycle(&stubProvider{queryVec: []float32{0, 1, 0, 0}}, 0, nil)
		require.NoError(t, err)

		vec, err := l.EmbedQuery(context.Background(), "disk full")
		require.NoError(t, err)
		assert.Equal(t, []float32{0, 1, 0, 0}, vec)
	})

	t.Run("provider error surfaces", func(t *testing.T) {
		l, err := NewLifecycle(&stubProvider{err: errors.New("down")}, 0, nil)
		require.NoError(t, err)

		_, err = l.EmbedQuery(context.Background(), "disk full")
		assert.Error(t, err)
	})

	t.Run("wrong dimension surfaces", func(t *testing.T) {
		l, err := NewLifecycle(&stubProvider{queryVec: []float32{1}}, 0, nil)
		require.NoError(t, err)

		_, err = l.EmbedQuery(context.Background(), "disk full")
		assert.ErrorIs(t, err, ErrEmbeddingFailed)
	})
}

func TestLifecycleRequiresProvider(t *testing.T) {
	_, err := NewLifecycle(nil, 0, nil)
	assert.Error(t, err)
}

func TestLifecycleWithLocalProvider(t *testing.T) {
	l, err := NewLifecycle(NewLocalProvider(LocalConfig{Dimension: 32}), 0, nil)
	require.NoError(t, err)

	out := l.EmbedDocument(context.Background(), "kafka consumer lag spiking")
	assert.Equal(t, StatusReady, out.Status)
	assert.Len(t, out.Vector, 32)
	assert.Equal(t, localModelName, out.Model)
	assert.Equal(t, 32, l.Dimension())
	assert.Equal(t, localModelName, l.Model())
}

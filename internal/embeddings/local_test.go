package embeddings

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalProviderDeterministic(t *testing.T) {
	p := NewLocalProvider(LocalConfig{Dimension: 64})
	ctx := context.Background()

	v1, err := p.EmbedQuery(ctx, "database connection refused")
	require.NoError(t, err)
	v2, err := p.EmbedQuery(ctx, "database connection refused")
	require.NoError(t, err)
	assert.Equal(t, v1, v2)

	v3, err := p.EmbedQuery(ctx, "disk full on worker node")
	require.NoError(t, err)
	assert.NotEqual(t, v1, v3)
}

func TestLocalProviderNormalized(t *testing.T) {
	p := NewLocalProvider(LocalConfig{Dimension: 128})

	vec, err := p.EmbedQuery(context.Background(), "payment gateway timeout during checkout")
	require.NoError(t, err)
	require.Len(t, vec, 128)

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, norm, 1e-5)
}

func TestLocalProviderTokenOverlapSimilarity(t *testing.T) {
	p := NewLocalProvider(LocalConfig{})
	ctx := context.Background()

	base, err := p.EmbedQuery(ctx, "database connection pool exhausted")
	require.NoError(t, err)
	near, err := p.EmbedQuery(ctx, "database connection pool saturated")
	require.NoError(t, err)
	far, err := p.EmbedQuery(ctx, "tls certificate expired on edge")
	require.NoError(t, err)

	assert.Greater(t, cosine(base, near), cosine(base, far))
}

func TestLocalProviderEmptyInput(t *testing.T) {
	p := NewLocalProvider(LocalConfig{Dimension: 16})
	ctx := context.Background()

	_, err := p.EmbedQuery(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = p.EmbedDocuments(ctx, nil)
	assert.ErrorIs(t, err, ErrEmptyInput)

	// Whitespace-only text still yields a unit vector.
	vec, err := p.EmbedQuery(ctx, "   ")
	require.NoError(t, err)
	assert.Equal(t, float32(1), vec[0])
}

func TestLocalProviderRespectsContext(t *testing.T) {
	p := NewLocalProvider(LocalConfig{Dimension: 16})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.EmbedQuery(ctx, "anything")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLocalProviderDefaults(t *testing.T) {
	p := NewLocalProvider(LocalConfig{})
	assert.Equal(t, DefaultDimension, p.Dimension())
	assert.Equal(t, localModelName, p.Model())
	assert.NoError(t, p.Close())
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

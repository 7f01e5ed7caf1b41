package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
)

// localModelName identifies the deterministic embedder on incident rows.
const localModelName = "local-hash-v1"

// LocalConfig holds configuration for the local provider.
type LocalConfig struct {
	// Dimension is the output vector dimension. Defaults to 384.
	Dimension int
}

// LocalProvider generates deterministic embeddings as a pure function of
// the input text. It never fails and needs no network, which keeps
// incident creation and search usable when no external provider is
// configured. The vectors capture token overlap, not semantics: each
// whitespace token is hashed into a handful of dimensions, so texts
// sharing tokens land near each other under cosine similarity.
type LocalProvider struct {
	dimension int
}

// NewLocalProvider creates a deterministic local embedding provider.
func NewLocalProvider(cfg LocalConfig) *LocalProvider {
	dim := cfg.Dimension
	if dim <= 0 {
		dim = DefaultDimension
	}
	return &LocalProvider{dimension: dim}
}

// EmbedDocuments generates embeddings for multiple texts.
func (p *LocalProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = p.embed(t)
	}
	return out, nil
}

// EmbedQuery generates an embedding for a single query.
func (p *LocalProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	return p.embed(text), nil
}

// embed hashes each token into the vector and L2-normalizes the result.
// Identical input always yields an identical vector.
func (p *LocalProvider) embed(text string) []float32 {
	vec := make([]float32, p.dimension)

	for _, token := range tokenize(text) {
		sum := sha256.Sum256([]byte(token))
		// Spread each token over four dimensions with signed weights.
		for k := 0; k < 4; k++ {
			idx := binary.BigEndian.Uint32(sum[k*8:]) % uint32(p.dimension)
			sign := float32(1)
			if sum[k*8+4]&1 == 1 {
				sign = -1
			}
			vec[idx] += sign
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		// Empty-ish input: fall back to a fixed unit vector.
		vec[0] = 1
		return vec
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}

// tokenize lower-cases and splits on non-alphanumeric runes.
func tokenize(text string) []string {
	var tokens []string
	var cur []rune
	for _, r := range text {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			cur = append(cur, r)
		case r >= 'A' && r <= 'Z':
			cur = append(cur, r+('a'-'A'))
		default:
			if len(cur) > 0 {
				tokens = append(tokens, string(cur))
				cur = nil
			}
		}
	}
	if len(cur) > 0 {
		tokens = append(tokens, string(cur))
	}
	return tokens
}

// Dimension returns the embedding dimension.
func (p *LocalProvider) Dimension() int {
	return p.dimension
}

// Model returns the model identifier.
func (p *LocalProvider) Model() string {
	return localModelName
}

// Close is a no-op for the local provider.
func (p *LocalProvider) Close() error {
	return nil
}

var _ Provider = (*LocalProvider)(nil)

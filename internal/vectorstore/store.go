// Package vectorstore provides the similarity-query primitive over
// incident embeddings, backed by chromem-go.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for vector store operations.
var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidCollectionName indicates a collection name outside
	// ^[a-z0-9_]{1,64}$.
	ErrInvalidCollectionName = errors.New("invalid collection name")
)

// Document is one embedded record. The embedding is always supplied by
// the caller; the store never embeds on its own.
type Document struct {
	ID        string
	Content   string
	Metadata  map[string]string
	Embedding []float32
}

// SearchResult is one similarity match.
type SearchResult struct {
	ID       string
	Content  string
	Score    float32
	Metadata map[string]string
}

// Store is the vector index interface.
//
// Collections are per tenant (see CollectionName), which keeps one
// tenant's vectors physically apart from another's in addition to the
// metadata predicate the search layer applies.
type Store interface {
	// Add upserts a document into the collection.
	Add(ctx context.Context, collection string, doc Document) error

	// Delete removes documents by id. Missing ids are not an error.
	Delete(ctx context.Context, collection string, ids ...string) error

	// Search returns up to k documents nearest to the query vector,
	// highest similarity first, restricted to documents whose metadata
	// matches every pair in where.
	Search(ctx context.Context, collection string, query []float32, k int, where map[string]string) ([]SearchResult, error)

	// Close releases resources.
	Close() error
}

// CollectionName returns the per-tenant incident collection name. The
// tenant id is sanitized to the [a-z0-9_] alphabet chromem accepts.
func CollectionName(tenantID string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(tenantID) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	id := strings.Trim(b.String(), "_")
	if id == "" {
		id = "default"
	}
	if len(id) > 40 {
		id = id[:40]
	}
	return "tenant_" + id + "_incidents"
}

// ValidateCollectionName checks the chromem naming constraint.
func ValidateCollectionName(name string) error {
	if name == "" || len(name) > 64 {
		return fmt.Errorf("%w: %q", ErrInvalidCollectionName, name)
	}
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			continue
		}
		return fmt.Errorf("%w: %q", ErrInvalidCollectionName, name)
	}
	return nil
}

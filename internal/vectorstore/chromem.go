package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"
)

// Config configures the chromem-backed store.
type Config struct {
	// Path is the persistence directory. Empty means in-memory only.
	Path string `koanf:"path"`

	// Compress enables gzip compression of persisted collections.
	Compress bool `koanf:"compress"`
}

// ChromemStore implements Store using chromem-go with caller-supplied
// embeddings.
type ChromemStore struct {
	db     *chromem.DB
	logger *zap.Logger

	mu          sync.Mutex
	collections map[string]*chromem.Collection
}

var _ Store = (*ChromemStore)(nil)

// staticEmbeddingFunc rejects any attempt to embed inside the store.
// Every document and query arrives with a precomputed vector.
func staticEmbeddingFunc(context.Context, string) ([]float32, error) {
	return nil, errors.New("store does not embed, supply a vector")
}

// NewChromemStore creates a chromem-backed store. A non-empty path
// persists collections to disk and reloads them on start.
func NewChromemStore(cfg Config, logger *zap.Logger) (*ChromemStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		db  *chromem.DB
		err error
	)
	if cfg.Path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("open vector store at %s: %w", cfg.Path, err)
		}
	}

	return &ChromemStore{
		db:          db,
		logger:      logger,
		collections: make(map[string]*chromem.Collection),
	}, nil
}

func (s *ChromemStore) collection(name string, create bool) (*chromem.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.collections[name]; ok {
		return c, nil
	}
	if c := s.db.GetCollection(name, staticEmbeddingFunc); c != nil {
		s.collections[name] = c
		return c, nil
	}
	if !create {
		return nil, nil
	}

	c, err := s.db.CreateCollection(name, nil, staticEmbeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("create collection %s: %w", name, err)
	}
	s.collections[name] = c
	return c, nil
}

// Add upserts a document with its precomputed embedding.
func (s *ChromemStore) Add(ctx context.Context, collection string, doc Document) error {
	if err := ValidateCollectionName(collection); err != nil {
		return err
	}
	if doc.ID == "" {
		return fmt.Errorf("%w: document id required", ErrInvalidConfig)
	}
	if len(doc.Embedding) == 0 {
		return fmt.Errorf("%w: document embedding required", ErrInvalidConfig)
	}

	c, err := s.collection(collection, true)
	if err != nil {
		return err
	}

	meta := make(map[string]string, len(doc.Metadata))
	for k, v := range doc.Metadata {
		meta[k] = v
	}

	err = c.AddDocument(ctx, chromem.Document{
		ID:        doc.ID,
		Content:   doc.Content,
		Metadata:  meta,
		Embedding: doc.Embedding,
	})
	if err != nil {
		return fmt.Errorf("add document %s: %w", doc.ID, err)
	}
	return nil
}

// Delete removes documents from the collection by id.
func (s *ChromemStore) Delete(ctx context.Context, collection string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	c, err := s.collection(collection, false)
	if err != nil {
		return err
	}
	if c == nil {
		return nil
	}
	if err := c.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("delete documents: %w", err)
	}
	return nil
}

// Search queries the collection with a precomputed vector. A missing
// collection or an over-large k degrade gracefully rather than error.
func (s *ChromemStore) Search(ctx context.Context, collection string, query []float32, k int, where map[string]string) ([]SearchResult, error) {
	if len(query) == 0 {
		return nil, fmt.Errorf("%w: query embedding required", ErrInvalidConfig)
	}
	if k <= 0 {
		return nil, nil
	}

	c, err := s.collection(collection, false)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, nil
	}

	// chromem errors when nResults exceeds the collection size.
	if count := c.Count(); count < k {
		if count == 0 {
			return nil, nil
		}
		k = count
	}

	results, err := c.QueryEmbedding(ctx, query, k, where, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection %s: %w", collection, err)
	}

	out := make([]SearchResult, 0, len(results))
	for _, r := range results {
		out = append(out, SearchResult{
			ID:       r.ID,
			Content:  r.Content,
			Score:    r.Similarity,
			Metadata: r.Metadata,
		})
	}
	return out, nil
}

// Close releases in-memory state. Persistent data stays on disk.
func (s *ChromemStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections = make(map[string]*chromem.Collection)
	return nil
}

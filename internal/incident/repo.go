package incident

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Repository is tenant-predicated incident storage. Every method takes
// the tenant id and never returns a record from another tenant; a
// lookup that crosses tenants reports ErrNotFound, indistinguishable
// from a record that does not exist at all.
type Repository interface {
	Insert(ctx context.Context, inc *Incident) error
	Get(ctx context.Context, tenantID, id string) (*Incident, error)
	Update(ctx context.Context, inc *Incident) error
	Remove(ctx context.Context, tenantID, id string) error
	List(ctx context.Context, tenantID string, f ListFilter) ([]*Incident, error)
}

type memoryRepository struct {
	mu sync.RWMutex
	// tenant id -> incident id -> record
	tenants map[string]map[string]*Incident
}

// NewMemoryRepository returns an in-memory Repository.
func NewMemoryRepository() Repository {
	return &memoryRepository{tenants: make(map[string]map[string]*Incident)}
}

func (r *memoryRepository) Insert(_ context.Context, inc *Incident) error {
	if inc.TenantID == "" || inc.ID == "" {
		return fmt.Errorf("%w: tenant id and incident id required", ErrValidation)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	bucket, ok := r.tenants[inc.TenantID]
	if !ok {
		bucket = make(map[string]*Incident)
		r.tenants[inc.TenantID] = bucket
	}
	if _, exists := bucket[inc.ID]; exists {
		return fmt.Errorf("%w: incident %s already exists", ErrValidation, inc.ID)
	}
	bucket[inc.ID] = inc.Clone()
	return nil
}

func (r *memoryRepository) Get(_ context.Context, tenantID, id string) (*Incident, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inc, ok := r.tenants[tenantID][id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return inc.Clone(), nil
}

func (r *memoryRepository) Update(_ context.Context, inc *Incident) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket := r.tenants[inc.TenantID]
	if _, ok := bucket[inc.ID]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, inc.ID)
	}
	bucket[inc.ID] = inc.Clone()
	return nil
}

func (r *memoryRepository) Remove(_ context.Context, tenantID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket := r.tenants[tenantID]
	if _, ok := bucket[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(bucket, id)
	return nil
}

func (r *memoryRepository) List(_ context.Context, tenantID string, f ListFilter) ([]*Incident, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Incident
	for _, inc := range r.tenants[tenantID] {
		if inc.Deleted && !f.IncludeDeleted {
			continue
		}
		if f.Severity != "" && inc.Severity != f.Severity {
			continue
		}
		out = append(out, inc.Clone())
	}

	// Newest first, id as tiebreaker for stable output.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})

	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

package audit

import (
	"context"
	"errors"
	"sync"
)

// Sentinel errors for ledger operations.
var (
	// ErrPrevHashMismatch is returned by a conditional append whose
	// expected tail no longer matches; the caller retries.
	ErrPrevHashMismatch = errors.New("previous hash does not match chain tail")
)

// ListFilter narrows a ledger listing.
type ListFilter struct {
	// Action filters to one action label; empty matches all.
	Action string
	// ResourceID filters to one resource; empty matches all.
	ResourceID string
	// Limit caps the number of entries returned; 0 means no cap.
	Limit int
}

// Ledger is the append-only persistence substrate for audit entries.
// AppendIf is the atomic conditional-append primitive that serializes
// writes per tenant: it fails if the chain tail has moved past
// expectedPrev.
type Ledger interface {
	// AppendIf appends the entry iff the tenant chain's current tail
	// hash equals expectedPrev (GenesisHash for an empty chain).
	AppendIf(ctx context.Context, tenantID, expectedPrev string, e *Entry) error

	// Tail returns the current tail hash and chain length for a tenant.
	// An empty chain reports GenesisHash and length 0.
	Tail(ctx context.Context, tenantID string) (hash string, length int, err error)

	// Entries returns a tenant's chain in append order, filtered.
	Entries(ctx context.Context, tenantID string, f ListFilter) ([]*Entry, error)
}

// memoryLedger keeps chains in memory, one slice per tenant.
type memoryLedger struct {
	mu     sync.RWMutex
	chains map[string][]*Entry
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() Ledger {
	return &memoryLedger{chains: make(map[string][]*Entry)}
}

func (l *memoryLedger) AppendIf(ctx context.Context, tenantID, expectedPrev string, e *Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	chain := l.chains[tenantID]
	tail := GenesisHash
	if n := len(chain); n > 0 {
		tail = chain[n-1].Hash
	}
	if tail != expectedPrev {
		return ErrPrevHashMismatch
	}

	cp := cloneEntry(e)
	cp.Position = len(chain)
	l.chains[tenantID] = append(chain, cp)
	e.Position = cp.Position
	return nil
}

func (l *memoryLedger) Tail(ctx context.Context, tenantID string) (string, int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	chain := l.chains[tenantID]
	if len(chain) == 0 {
		return GenesisHash, 0, nil
	}
	return chain[len(chain)-1].Hash, len(chain), nil
}

func (l *memoryLedger) Entries(ctx context.Context, tenantID string, f ListFilter) ([]*Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []*Entry
	for _, e := range l.chains[tenantID] {
		if f.Action != "" && e.Action != f.Action {
			continue
		}
		if f.ResourceID != "" && e.ResourceID != f.ResourceID {
			continue
		}
		out = append(out, cloneEntry(e))
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}

func cloneEntry(e *Entry) *Entry {
	cp := *e
	if e.Metadata != nil {
		cp.Metadata = make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			cp.Metadata[k] = v
		}
	}
	if e.ResultIDs != nil {
		cp.ResultIDs = append([]string(nil), e.ResultIDs...)
	}
	return &cp
}

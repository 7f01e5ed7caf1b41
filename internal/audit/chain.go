package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/incidentd/internal/audit"

// defaultMaxRetries bounds append retries when the conditional write
// loses a race on a shared ledger.
const defaultMaxRetries = 5

// Violation reports one broken link found by Verify. Violations are
// reported, never silently repaired.
type Violation struct {
	// Position is the offending entry's index in the tenant chain.
	Position int `json:"position"`
	// EntryID identifies the offending entry.
	EntryID string `json:"entry_id"`
	// Reason describes the mismatch.
	Reason string `json:"reason"`
}

// Chain appends to and verifies per-tenant hash chains.
//
// Appends for the same tenant are serialized: a per-tenant mutex guards
// the read-tail/compute-hash/append sequence so no two entries can claim
// the same prev_hash. Chains for different tenants never serialize
// against each other. The critical section contains no external calls;
// callers must finish slow work (embedding, redaction) before appending.
type Chain struct {
	ledger     Ledger
	logger     *zap.Logger
	maxRetries int

	tracer        trace.Tracer
	meter         metric.Meter
	appendCounter metric.Int64Counter
	verifyCounter metric.Int64Counter

	mu          sync.Mutex
	tenantLocks map[string]*sync.Mutex
}

// Option configures a Chain.
type Option func(*Chain)

// WithMaxRetries sets how many times a conflicting append is retried
// before the operation fails. Values below one keep the default.
func WithMaxRetries(n int) Option {
	return func(c *Chain) {
		if n > 0 {
			c.maxRetries = n
		}
	}
}

// NewChain creates a chain over the given ledger.
func NewChain(ledger Ledger, logger *zap.Logger, opts ...Option) (*Chain, error) {
	if ledger == nil {
		return nil, errors.New("ledger is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Chain{
		ledger:      ledger,
		logger:      logger,
		maxRetries:  defaultMaxRetries,
		tracer:      otel.Tracer(instrumentationName),
		meter:       otel.Meter(instrumentationName),
		tenantLocks: make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.initMetrics()
	return c, nil
}

// MaxRetries returns the configured append retry bound.
func (c *Chain) MaxRetries() int { return c.maxRetries }

func (c *Chain) initMetrics() {
	var err error

	c.appendCounter, err = c.meter.Int64Counter(
		"incidentd.audit.appends_total",
		metric.WithDescription("Total audit entries appended, labeled by action"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		c.logger.Warn("failed to create append counter", zap.Error(err))
	}

	c.verifyCounter, err = c.meter.Int64Counter(
		"incidentd.audit.verifications_total",
		metric.WithDescription("Total chain verifications, labeled by outcome"),
		metric.WithUnit("{verification}"),
	)
	if err != nil {
		c.logger.Warn("failed to create verify counter", zap.Error(err))
	}
}

// tenantLock returns the mutex guarding one tenant's tail.
func (c *Chain) tenantLock(tenantID string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.tenantLocks[tenantID]
	if !ok {
		l = &sync.Mutex{}
		c.tenantLocks[tenantID] = l
	}
	return l
}

// Append adds one entry to the tenant's chain and returns it with hashes
// and position filled in. Conflicting appends on a shared ledger are
// retried; exhausting retries fails the whole operation.
func (c *Chain) Append(ctx context.Context, tenantID string, fields Fields) (*Entry, error) {
	ctx, span := c.tracer.Start(ctx, "audit.append")
	defer span.End()

	span.SetAttributes(
		attribute.String("tenant_id", tenantID),
		attribute.String("action", fields.Action),
	)

	if tenantID == "" {
		return nil, errors.New("tenant id is required")
	}
	if fields.Action == "" {
		return nil, errors.New("action is required")
	}

	lock := c.tenantLock(tenantID)
	lock.Lock()
	defer lock.Unlock()

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		tail, _, err := c.ledger.Tail(ctx, tenantID)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("reading chain tail: %w", err)
		}

		entry := &Entry{
			ID:           uuid.New().String(),
			TenantID:     tenantID,
			ActorID:      fields.ActorID,
			Action:       fields.Action,
			ResourceType: fields.ResourceType,
			ResourceID:   fields.ResourceID,
			Metadata:     fields.Metadata,
			ResultIDs:    fields.ResultIDs,
			PrevHash:     tail,
			CreatedAt:    time.Now().UTC(),
		}
		entry.Hash = ComputeHash(tail, entry)

		err = c.ledger.AppendIf(ctx, tenantID, tail, entry)
		if err == nil {
			if c.appendCounter != nil {
				c.appendCounter.Add(ctx, 1, metric.WithAttributes(
					attribute.String("action", fields.Action),
				))
			}
			c.logger.Debug("appended audit entry",
				zap.String("tenant_id", tenantID),
				zap.String("action", fields.Action),
				zap.Int("position", entry.Position),
			)
			span.SetAttributes(attribute.Int("position", entry.Position))
			return entry, nil
		}
		if !errors.Is(err, ErrPrevHashMismatch) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("appending audit entry: %w", err)
		}
		lastErr = err
	}

	span.SetStatus(codes.Error, "append retries exhausted")
	return nil, fmt.Errorf("audit append retries exhausted for tenant %s: %w", tenantID, lastErr)
}

// Verify re-walks the tenant's chain from genesis, recomputing every
// hash from stored fields. It returns one violation per broken link; an
// intact chain returns an empty slice.
func (c *Chain) Verify(ctx context.Context, tenantID string) ([]Violation, error) {
	ctx, span := c.tracer.Start(ctx, "audit.verify")
	defer span.End()

	span.SetAttributes(attribute.String("tenant_id", tenantID))

	entries, err := c.ledger.Entries(ctx, tenantID, ListFilter{})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("reading chain: %w", err)
	}

	violations := []Violation{}
	prev := GenesisHash
	for i, e := range entries {
		if e.PrevHash != prev {
			violations = append(violations, Violation{
				Position: i,
				EntryID:  e.ID,
				Reason:   fmt.Sprintf("prev_hash %s does not match predecessor hash %s", e.PrevHash, prev),
			})
		}
		recomputed := ComputeHash(e.PrevHash, e)
		if recomputed != e.Hash {
			violations = append(violations, Violation{
				Position: i,
				EntryID:  e.ID,
				Reason:   fmt.Sprintf("stored hash %s does not match recomputed hash %s", e.Hash, recomputed),
			})
		}
		prev = e.Hash
	}

	outcome := "intact"
	if len(violations) > 0 {
		outcome = "violated"
		c.logger.Warn("audit chain verification failed",
			zap.String("tenant_id", tenantID),
			zap.Int("violations", len(violations)),
		)
	}
	if c.verifyCounter != nil {
		c.verifyCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("outcome", outcome),
		))
	}
	span.SetAttributes(attribute.Int("violations", len(violations)))
	return violations, nil
}

// List returns a tenant's entries in append order.
func (c *Chain) List(ctx context.Context, tenantID string, f ListFilter) ([]*Entry, error) {
	ctx, span := c.tracer.Start(ctx, "audit.list")
	defer span.End()

	span.SetAttributes(attribute.String("tenant_id", tenantID))
	return c.ledger.Entries(ctx, tenantID, f)
}

// Length returns the number of entries in a tenant's chain.
func (c *Chain) Length(ctx context.Context, tenantID string) (int, error) {
	_, n, err := c.ledger.Tail(ctx, tenantID)
	return n, err
}

package auth

import (
	"context"
	"crypto/subtle"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/incidentd/internal/auth"

// Resolver maps a presented API key to a TenantContext.
type Resolver struct {
	keys   *KeyStore
	logger *zap.Logger
}

// NewResolver creates a credential resolver backed by the key store.
func NewResolver(keys *KeyStore, logger *zap.Logger) (*Resolver, error) {
	if keys == nil {
		return nil, ErrUnauthorized
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{keys: keys, logger: logger}, nil
}

// Resolve returns the tenant context for a presented key, or
// ErrUnauthorized. The presented key is hashed and compared against every
// stored hash with a constant-time comparison; absent, inactive, and
// malformed keys all fail identically.
func (r *Resolver) Resolve(ctx context.Context, presentedKey string) (*TenantContext, error) {
	_, span := otel.Tracer(instrumentationName).Start(ctx, "auth.resolve")
	defer span.End()

	if presentedKey == "" {
		return nil, ErrUnauthorized
	}

	presentedHash := []byte(HashKey(presentedKey))

	// Scan all records even after a match so the work done does not
	// depend on where the matching record sits.
	var matched *APIKeyRecord
	for _, rec := range r.keys.snapshot() {
		if subtle.ConstantTimeCompare(presentedHash, []byte(rec.KeyHash)) == 1 {
			matched = rec
		}
	}

	if matched == nil || !matched.Active {
		span.SetAttributes(attribute.Bool("resolved", false))
		return nil, ErrUnauthorized
	}

	span.SetAttributes(
		attribute.Bool("resolved", true),
		attribute.String("tenant_id", matched.TenantID),
	)
	r.logger.Debug("resolved credential",
		zap.String("tenant_id", matched.TenantID),
		zap.String("actor_id", matched.ActorID),
		zap.String("role", string(matched.Role)),
	)

	return &TenantContext{
		TenantID: matched.TenantID,
		ActorID:  matched.ActorID,
		Role:     matched.Role,
	}, nil
}

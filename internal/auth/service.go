package auth

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/incidentd/internal/audit"
)

// KeyService exposes key management to admins. Every operation is
// confined to the caller's own tenant and appended to the audit chain.
type KeyService struct {
	keys   *KeyStore
	policy *Policy
	chain  *audit.Chain
	logger *zap.Logger
	tracer trace.Tracer
}

// NewKeyService creates the key management service.
func NewKeyService(keys *KeyStore, policy *Policy, chain *audit.Chain, logger *zap.Logger) (*KeyService, error) {
	if keys == nil {
		return nil, errors.New("key store is required")
	}
	if policy == nil {
		return nil, errors.New("policy is required")
	}
	if chain == nil {
		return nil, errors.New("audit chain is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KeyService{
		keys:   keys,
		policy: policy,
		chain:  chain,
		logger: logger,
		tracer: otel.Tracer(instrumentationName),
	}, nil
}

// CreateKey issues a key for an actor in the caller's tenant. The tenant
// is always taken from the caller's context, never from the request.
// Returns the record and the plaintext key, shown exactly once.
func (s *KeyService) CreateKey(ctx context.Context, tctx *TenantContext, actorID string, role Role) (*APIKeyRecord, string, error) {
	ctx, span := s.tracer.Start(ctx, "auth.create_key")
	defer span.End()

	if err := s.policy.Check(tctx, CapManageKeys); err != nil {
		return nil, "", err
	}

	rec, plaintext, err := s.keys.Issue(tctx.TenantID, actorID, role)
	if err != nil {
		span.RecordError(err)
		return nil, "", err
	}

	if _, err := s.chain.Append(ctx, tctx.TenantID, audit.Fields{
		ActorID:      tctx.ActorID,
		Action:       "apikey.create",
		ResourceType: "apikey",
		ResourceID:   rec.ID,
		Metadata: map[string]string{
			"key_actor": actorID,
			"key_role":  string(role),
		},
	}); err != nil {
		// The key must not exist without its audit entry.
		_, _ = s.keys.Deactivate(tctx.TenantID, rec.ID)
		return nil, "", fmt.Errorf("recording key creation: %w", err)
	}

	span.SetAttributes(attribute.String("key_id", rec.ID))
	return rec, plaintext, nil
}

// DeactivateKey marks a key in the caller's tenant inactive. A key id
// from another tenant reports ErrKeyNotFound.
func (s *KeyService) DeactivateKey(ctx context.Context, tctx *TenantContext, keyID string) (*APIKeyRecord, error) {
	ctx, span := s.tracer.Start(ctx, "auth.deactivate_key")
	defer span.End()

	if err := s.policy.Check(tctx, CapManageKeys); err != nil {
		return nil, err
	}

	rec, err := s.keys.Deactivate(tctx.TenantID, keyID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if _, err := s.chain.Append(ctx, tctx.TenantID, audit.Fields{
		ActorID:      tctx.ActorID,
		Action:       "apikey.deactivate",
		ResourceType: "apikey",
		ResourceID:   rec.ID,
	}); err != nil {
		return nil, fmt.Errorf("recording key deactivation: %w", err)
	}

	return rec, nil
}

// ListKeys returns the caller's tenant's key records.
func (s *KeyService) ListKeys(ctx context.Context, tctx *TenantContext) ([]*APIKeyRecord, error) {
	_, span := s.tracer.Start(ctx, "auth.list_keys")
	defer span.End()

	if err := s.policy.Check(tctx, CapManageKeys); err != nil {
		return nil, err
	}
	return s.keys.List(tctx.TenantID), nil
}

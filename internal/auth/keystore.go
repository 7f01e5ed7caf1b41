package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// keyPrefix makes issued keys recognizable in configuration and logs
// without revealing anything about the secret material.
const keyPrefix = "ik_"

// HashKey returns the hex SHA-256 digest of a presented key. This is the
// only form in which key material is ever stored or compared.
func HashKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// KeyStore holds API key records in memory. Records are deactivated,
// never removed, so the history of past validity is preserved.
type KeyStore struct {
	mu     sync.RWMutex
	keys   map[string]*APIKeyRecord
	logger *zap.Logger
}

// NewKeyStore creates an empty key store.
func NewKeyStore(logger *zap.Logger) *KeyStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KeyStore{
		keys:   make(map[string]*APIKeyRecord),
		logger: logger,
	}
}

// Issue creates a new key record for the tenant and returns the record
// together with the plaintext key. The plaintext is returned exactly
// once and never stored.
func (s *KeyStore) Issue(tenantID, actorID string, role Role) (*APIKeyRecord, string, error) {
	if tenantID == "" || actorID == "" {
		return nil, "", fmt.Errorf("tenant and actor are required")
	}
	if !role.Valid() {
		return nil, "", fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, "", fmt.Errorf("generating key material: %w", err)
	}
	plaintext := keyPrefix + hex.EncodeToString(secret)

	rec := &APIKeyRecord{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		ActorID:   actorID,
		Role:      role,
		KeyHash:   HashKey(plaintext),
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.keys[rec.ID] = rec
	s.mu.Unlock()

	s.logger.Info("issued api key",
		zap.String("key_id", rec.ID),
		zap.String("tenant_id", tenantID),
		zap.String("actor_id", actorID),
		zap.String("role", string(role)),
	)
	return rec.clone(), plaintext, nil
}

// Seed inserts a record for a known plaintext key. Used at startup to
// bootstrap keys from configuration; the plaintext is hashed immediately.
func (s *KeyStore) Seed(tenantID, actorID string, role Role, plaintext string) (*APIKeyRecord, error) {
	if tenantID == "" || actorID == "" || plaintext == "" {
		return nil, fmt.Errorf("tenant, actor, and key are required")
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	rec := &APIKeyRecord{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		ActorID:   actorID,
		Role:      role,
		KeyHash:   HashKey(plaintext),
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.keys[rec.ID] = rec
	s.mu.Unlock()

	return rec.clone(), nil
}

// Deactivate marks a key inactive. The record itself is retained. A key
// belonging to a different tenant is reported as not found, never as
// forbidden, so cross-tenant key ids cannot be probed.
func (s *KeyStore) Deactivate(tenantID, keyID string) (*APIKeyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.keys[keyID]
	if !ok || rec.TenantID != tenantID {
		return nil, ErrKeyNotFound
	}
	if rec.Active {
		now := time.Now().UTC()
		rec.Active = false
		rec.DeactivatedAt = &now
	}
	return rec.clone(), nil
}

// List returns all key records for a tenant, active or not.
func (s *KeyStore) List(tenantID string) []*APIKeyRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*APIKeyRecord
	for _, rec := range s.keys {
		if rec.TenantID == tenantID {
			out = append(out, rec.clone())
		}
	}
	return out
}

// snapshot returns a copy of every record, for the resolver's
// constant-time scan.
func (s *KeyStore) snapshot() []*APIKeyRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*APIKeyRecord, 0, len(s.keys))
	for _, rec := range s.keys {
		out = append(out, rec)
	}
	return out
}

func (r *APIKeyRecord) clone() *APIKeyRecord {
	cp := *r
	if r.DeactivatedAt != nil {
		t := *r.DeactivatedAt
		cp.DeactivatedAt = &t
	}
	return &cp
}

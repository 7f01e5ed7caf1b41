// Package services wires the incidentd service graph.
package services

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/incidentd/internal/audit"
	"github.com/fyrsmithlabs/incidentd/internal/auth"
	"github.com/fyrsmithlabs/incidentd/internal/config"
	"github.com/fyrsmithlabs/incidentd/internal/embeddings"
	"github.com/fyrsmithlabs/incidentd/internal/incident"
	"github.com/fyrsmithlabs/incidentd/internal/redact"
	"github.com/fyrsmithlabs/incidentd/internal/vectorstore"
)

// Registry provides access to all incidentd services.
type Registry interface {
	Resolver() *auth.Resolver
	Keys() *auth.KeyService
	Incidents() *incident.Service
	Chain() *audit.Chain
	Redactor() redact.Redactor
	VectorStore() vectorstore.Store

	// Close releases provider and store resources.
	Close() error
}

type registry struct {
	resolver  *auth.Resolver
	keys      *auth.KeyService
	incidents *incident.Service
	chain     *audit.Chain
	redactor  redact.Redactor
	provider  embeddings.Provider
	vectors   vectorstore.Store
}

// Build constructs the full service graph from configuration,
// including any API keys seeded through it.
func Build(cfg *config.Config, logger *zap.Logger) (Registry, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	redactor, err := redact.New(&cfg.Redaction)
	if err != nil {
		return nil, fmt.Errorf("create redactor: %w", err)
	}

	provider, err := embeddings.NewProvider(cfg.Embeddings.ProviderConfig)
	if err != nil {
		return nil, fmt.Errorf("create embedding provider: %w", err)
	}

	lifecycle, err := embeddings.NewLifecycle(provider, cfg.Embeddings.Timeout, logger)
	if err != nil {
		return nil, fmt.Errorf("create embedding lifecycle: %w", err)
	}

	vectors, err := vectorstore.NewChromemStore(cfg.Vectors, logger)
	if err != nil {
		return nil, fmt.Errorf("create vector store: %w", err)
	}

	chain, err := audit.NewChain(audit.NewMemoryLedger(), logger,
		audit.WithMaxRetries(cfg.Audit.MaxAppendRetries))
	if err != nil {
		return nil, fmt.Errorf("create audit chain: %w", err)
	}

	keystore := auth.NewKeyStore(logger)
	for i, k := range cfg.Keys {
		if _, err := keystore.Seed(k.TenantID, k.ActorID, auth.Role(k.Role), k.Key); err != nil {
			return nil, fmt.Errorf("seed key %d: %w", i, err)
		}
	}

	policy := auth.NewPolicy(logger)

	resolver, err := auth.NewResolver(keystore, logger)
	if err != nil {
		return nil, fmt.Errorf("create resolver: %w", err)
	}

	keys, err := auth.NewKeyService(keystore, policy, chain, logger)
	if err != nil {
		return nil, fmt.Errorf("create key service: %w", err)
	}

	incidents, err := incident.NewService(
		incident.NewMemoryRepository(),
		policy, chain, redactor, lifecycle, vectors, logger,
	)
	if err != nil {
		return nil, fmt.Errorf("create incident service: %w", err)
	}

	return &registry{
		resolver:  resolver,
		keys:      keys,
		incidents: incidents,
		chain:     chain,
		redactor:  redactor,
		provider:  provider,
		vectors:   vectors,
	}, nil
}

func (r *registry) Resolver() *auth.Resolver       { return r.resolver }
func (r *registry) Keys() *auth.KeyService         { return r.keys }
func (r *registry) Incidents() *incident.Service   { return r.incidents }
func (r *registry) Chain() *audit.Chain            { return r.chain }
func (r *registry) Redactor() redact.Redactor      { return r.redactor }
func (r *registry) VectorStore() vectorstore.Store { return r.vectors }

func (r *registry) Close() error {
	var firstErr error
	if err := r.provider.Close(); err != nil {
		firstErr = err
	}
	if err := r.vectors.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

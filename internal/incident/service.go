package incident

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/incidentd/internal/audit"
	"github.com/fyrsmithlabs/incidentd/internal/auth"
	"github.com/fyrsmithlabs/incidentd/internal/embeddings"
	"github.com/fyrsmithlabs/incidentd/internal/redact"
	"github.com/fyrsmithlabs/incidentd/internal/vectorstore"
)

const instrumentationName = "github.com/fyrsmithlabs/incidentd/internal/incident"

// Audit actions recorded by the service.
const (
	ActionCreate      = "incident.create"
	ActionReadRaw     = "incident.read_raw"
	ActionUpdate      = "incident.update"
	ActionDelete      = "incident.delete"
	ActionSearch      = "incident.search"
	ActionReembed     = "incident.reembed"
	ActionAuditRead   = "audit.read"
	ActionAuditVerify = "audit.verify"
)

const resourceTypeIncident = "incident"

// Service is the sole path to incident data. Every operation checks the
// caller's capability, stays inside the caller's tenant, and records
// its audit entry before reporting success.
type Service struct {
	repo      Repository
	policy    *auth.Policy
	chain     *audit.Chain
	redactor  redact.Redactor
	lifecycle *embeddings.Lifecycle
	vectors   vectorstore.Store
	logger    *zap.Logger

	tracer        trace.Tracer
	meter         metric.Meter
	createCounter metric.Int64Counter
	searchCounter metric.Int64Counter
}

// NewService creates the incident service. All dependencies except the
// logger are required.
func NewService(
	repo Repository,
	policy *auth.Policy,
	chain *audit.Chain,
	redactor redact.Redactor,
	lifecycle *embeddings.Lifecycle,
	vectors vectorstore.Store,
	logger *zap.Logger,
) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if policy == nil {
		return nil, fmt.Errorf("policy is required")
	}
	if chain == nil {
		return nil, fmt.Errorf("audit chain is required")
	}
	if redactor == nil {
		return nil, fmt.Errorf("redactor is required")
	}
	if lifecycle == nil {
		return nil, fmt.Errorf("embedding lifecycle is required")
	}
	if vectors == nil {
		return nil, fmt.Errorf("vector store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		repo:      repo,
		policy:    policy,
		chain:     chain,
		redactor:  redactor,
		lifecycle: lifecycle,
		vectors:   vectors,
		logger:    logger,
		tracer:    otel.Tracer(instrumentationName),
		meter:     otel.Meter(instrumentationName),
	}
	s.initMetrics()
	return s, nil
}

func (s *Service) initMetrics() {
	var err error
	s.createCounter, err = s.meter.Int64Counter("incidentd.incidents.created_total",
		metric.WithDescription("Incidents created"))
	if err != nil {
		s.logger.Warn("failed to create counter", zap.Error(err))
	}
	s.searchCounter, err = s.meter.Int64Counter("incidentd.incidents.searches_total",
		metric.WithDescription("Incident similarity searches"))
	if err != nil {
		s.logger.Warn("failed to create counter", zap.Error(err))
	}
}

// Create records a new incident. The message is redacted before
// anything else sees it and the redacted text is embedded on a best
// effort basis: an embedding failure marks the record failed but never
// fails the create. The incident and its audit entry land together or
// not at all.
func (s *Service) Create(ctx context.Context, tctx *auth.TenantContext, req *CreateRequest) (*Incident, error) {
	ctx, span := s.tracer.Start(ctx, "incident.Create")
	defer span.End()

	if err := s.policy.Check(tctx, auth.CapCreate); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("tenant.id", tctx.TenantID))
	if err := req.Validate(); err != nil {
		return nil, err
	}

	redacted := s.redactor.Transform(req.Message)

	now := time.Now().UTC()
	inc := &Incident{
		ID:              uuid.NewString(),
		TenantID:        tctx.TenantID,
		Title:           req.Title,
		Severity:        req.Severity,
		Service:         req.Service,
		Source:          req.Source,
		MessageRaw:      req.Message,
		MessageRedacted: redacted.Redacted,
		Labels:          req.Labels,
		CreatedBy:       tctx.ActorID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	outcome := s.lifecycle.EmbedDocument(ctx, inc.MessageRedacted)
	inc.EmbeddingStatus = outcome.Status
	inc.EmbeddingModel = outcome.Model
	inc.EmbeddingDim = outcome.Dimension
	if outcome.Status == embeddings.StatusReady {
		inc.Embedding = outcome.Vector
	} else {
		inc.EmbeddingError = outcome.Error
		s.logger.Warn("incident stored without embedding",
			zap.String("tenant_id", tctx.TenantID),
			zap.String("incident_id", inc.ID),
			zap.String("reason", outcome.Error))
	}

	if err := s.repo.Insert(ctx, inc); err != nil {
		return nil, err
	}

	if inc.EmbeddingStatus == embeddings.StatusReady {
		if err := s.indexIncident(ctx, inc); err != nil {
			s.logger.Warn("failed to index incident embedding",
				zap.String("incident_id", inc.ID), zap.Error(err))
		}
	}

	if err := s.appendAudit(ctx, tctx, audit.Fields{
		Action:       ActionCreate,
		ResourceType: resourceTypeIncident,
		ResourceID:   inc.ID,
		Metadata: map[string]string{
			"severity":         inc.Severity,
			"embedding_status": string(inc.EmbeddingStatus),
		},
	}); err != nil {
		// The incident must not exist without its audit entry.
		if rmErr := s.repo.Remove(ctx, tctx.TenantID, inc.ID); rmErr != nil {
			s.logger.Error("failed to roll back incident after audit failure",
				zap.String("incident_id", inc.ID), zap.Error(rmErr))
		}
		_ = s.vectors.Delete(ctx, vectorstore.CollectionName(tctx.TenantID), inc.ID)
		return nil, fmt.Errorf("record audit entry: %w", err)
	}

	if s.createCounter != nil {
		s.createCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("embedding_status", string(inc.EmbeddingStatus))))
	}
	return inc, nil
}

// Get returns an incident with the redacted message. Soft-deleted
// records require the include-deleted capability and otherwise report
// not found.
func (s *Service) Get(ctx context.Context, tctx *auth.TenantContext, id string) (*Incident, error) {
	if err := s.policy.Check(tctx, auth.CapRead); err != nil {
		return nil, err
	}

	inc, err := s.repo.Get(ctx, tctx.TenantID, id)
	if err != nil {
		return nil, err
	}
	if inc.Deleted && !s.policy.Allowed(tctx.Role, auth.CapIncludeDeleted) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	inc.MessageRaw = ""
	return inc, nil
}

// GetRaw returns an incident including the unredacted message. The
// read is itself audited.
func (s *Service) GetRaw(ctx context.Context, tctx *auth.TenantContext, id string) (*Incident, error) {
	ctx, span := s.tracer.Start(ctx, "incident.GetRaw")
	defer span.End()

	if err := s.policy.Check(tctx, auth.CapReadRaw); err != nil {
		return nil, err
	}

	inc, err := s.repo.Get(ctx, tctx.TenantID, id)
	if err != nil {
		return nil, err
	}
	if inc.Deleted && !s.policy.Allowed(tctx.Role, auth.CapIncludeDeleted) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if err := s.appendAudit(ctx, tctx, audit.Fields{
		Action:       ActionReadRaw,
		ResourceType: resourceTypeIncident,
		ResourceID:   inc.ID,
	}); err != nil {
		return nil, fmt.Errorf("record audit entry: %w", err)
	}
	return inc, nil
}

// List returns the tenant's incidents with redacted messages.
// IncludeDeleted is honored only for callers holding that capability.
func (s *Service) List(ctx context.Context, tctx *auth.TenantContext, f ListFilter) ([]*Incident, error) {
	if err := s.policy.Check(tctx, auth.CapRead); err != nil {
		return nil, err
	}
	if f.IncludeDeleted && !s.policy.Allowed(tctx.Role, auth.CapIncludeDeleted) {
		f.IncludeDeleted = false
	}

	incs, err := s.repo.List(ctx, tctx.TenantID, f)
	if err != nil {
		return nil, err
	}
	for _, inc := range incs {
		inc.MessageRaw = ""
	}
	return incs, nil
}

// Update applies a partial update to mutable fields. The message and
// its embedding are immutable through this path; use Reembed to refresh
// a failed embedding.
func (s *Service) Update(ctx context.Context, tctx *auth.TenantContext, id string, req *UpdateRequest) (*Incident, error) {
	ctx, span := s.tracer.Start(ctx, "incident.Update")
	defer span.End()

	if err := s.policy.Check(tctx, auth.CapUpdate); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	prev, err := s.repo.Get(ctx, tctx.TenantID, id)
	if err != nil {
		return nil, err
	}
	if prev.Deleted {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	inc := prev.Clone()
	if req.Title != nil {
		inc.Title = *req.Title
	}
	if req.Severity != nil {
		inc.Severity = *req.Severity
	}
	if req.Labels != nil {
		inc.Labels = *req.Labels
	}
	inc.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, inc); err != nil {
		return nil, err
	}

	if err := s.appendAudit(ctx, tctx, audit.Fields{
		Action:       ActionUpdate,
		ResourceType: resourceTypeIncident,
		ResourceID:   inc.ID,
		Metadata:     map[string]string{"severity": inc.Severity},
	}); err != nil {
		if rbErr := s.repo.Update(ctx, prev); rbErr != nil {
			s.logger.Error("failed to roll back incident update after audit failure",
				zap.String("incident_id", inc.ID), zap.Error(rbErr))
		}
		return nil, fmt.Errorf("record audit entry: %w", err)
	}

	inc.MessageRaw = ""
	return inc, nil
}

// SoftDelete marks an incident deleted and removes it from the search
// index. The record stays readable to callers holding the
// include-deleted capability.
func (s *Service) SoftDelete(ctx context.Context, tctx *auth.TenantContext, id string) error {
	ctx, span := s.tracer.Start(ctx, "incident.SoftDelete")
	defer span.End()

	if err := s.policy.Check(tctx, auth.CapUpdate); err != nil {
		return err
	}

	prev, err := s.repo.Get(ctx, tctx.TenantID, id)
	if err != nil {
		return err
	}
	if prev.Deleted {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	inc := prev.Clone()
	now := time.Now().UTC()
	inc.Deleted = true
	inc.DeletedAt = &now
	inc.UpdatedAt = now

	if err := s.repo.Update(ctx, inc); err != nil {
		return err
	}
	if err := s.vectors.Delete(ctx, vectorstore.CollectionName(tctx.TenantID), inc.ID); err != nil {
		s.logger.Warn("failed to remove incident from search index",
			zap.String("incident_id", inc.ID), zap.Error(err))
	}

	if err := s.appendAudit(ctx, tctx, audit.Fields{
		Action:       ActionDelete,
		ResourceType: resourceTypeIncident,
		ResourceID:   inc.ID,
	}); err != nil {
		if rbErr := s.repo.Update(ctx, prev); rbErr != nil {
			s.logger.Error("failed to roll back soft delete after audit failure",
				zap.String("incident_id", inc.ID), zap.Error(rbErr))
		}
		return fmt.Errorf("record audit entry: %w", err)
	}
	return nil
}

// Search runs a similarity search over the tenant's embedded incidents.
// Records whose embedding is pending or failed are never candidates. If
// the query itself cannot be embedded the search degrades to an empty
// result set instead of failing, and the audit entry says so.
func (s *Service) Search(ctx context.Context, tctx *auth.TenantContext, req *SearchRequest) ([]SearchMatch, error) {
	ctx, span := s.tracer.Start(ctx, "incident.Search")
	defer span.End()

	if err := s.policy.Check(tctx, auth.CapSearch); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("tenant.id", tctx.TenantID))
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var (
		matches  []SearchMatch
		degraded bool
	)

	query, err := s.lifecycle.EmbedQuery(ctx, req.Query)
	if err != nil {
		degraded = true
		s.logger.Warn("query embedding unavailable, returning empty results",
			zap.String("tenant_id", tctx.TenantID), zap.Error(err))
	} else {
		results, err := s.vectors.Search(ctx,
			vectorstore.CollectionName(tctx.TenantID),
			query, req.Limit,
			map[string]string{"tenant_id": tctx.TenantID})
		if err != nil {
			return nil, fmt.Errorf("search index: %w", err)
		}
		for _, r := range results {
			inc, err := s.repo.Get(ctx, tctx.TenantID, r.ID)
			if err != nil || inc.Deleted || inc.EmbeddingStatus != embeddings.StatusReady {
				continue
			}
			inc.MessageRaw = ""
			matches = append(matches, SearchMatch{Incident: inc, Score: r.Score})
		}
	}

	resultIDs := make([]string, 0, len(matches))
	for _, m := range matches {
		resultIDs = append(resultIDs, m.Incident.ID)
	}

	meta := map[string]string{"limit": fmt.Sprintf("%d", req.Limit)}
	if degraded {
		meta["degraded"] = "true"
	}
	if err := s.appendAudit(ctx, tctx, audit.Fields{
		Action:       ActionSearch,
		ResourceType: resourceTypeIncident,
		Metadata:     meta,
		ResultIDs:    resultIDs,
	}); err != nil {
		return nil, fmt.Errorf("record audit entry: %w", err)
	}

	if s.searchCounter != nil {
		s.searchCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.Bool("degraded", degraded)))
	}
	return matches, nil
}

// Reembed retries the embedding for an incident, typically one that
// failed at create time. It is safe to call on a ready record.
func (s *Service) Reembed(ctx context.Context, tctx *auth.TenantContext, id string) (*Incident, error) {
	ctx, span := s.tracer.Start(ctx, "incident.Reembed")
	defer span.End()

	if err := s.policy.Check(tctx, auth.CapUpdate); err != nil {
		return nil, err
	}

	prev, err := s.repo.Get(ctx, tctx.TenantID, id)
	if err != nil {
		return nil, err
	}
	if prev.Deleted {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	inc := prev.Clone()
	outcome := s.lifecycle.EmbedDocument(ctx, inc.MessageRedacted)
	inc.EmbeddingStatus = outcome.Status
	inc.EmbeddingModel = outcome.Model
	inc.EmbeddingDim = outcome.Dimension
	if outcome.Status == embeddings.StatusReady {
		inc.Embedding = outcome.Vector
		inc.EmbeddingError = ""
	} else {
		inc.Embedding = nil
		inc.EmbeddingError = outcome.Error
	}
	inc.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, inc); err != nil {
		return nil, err
	}

	collection := vectorstore.CollectionName(tctx.TenantID)
	if inc.EmbeddingStatus == embeddings.StatusReady {
		if err := s.indexIncident(ctx, inc); err != nil {
			s.logger.Warn("failed to index incident embedding",
				zap.String("incident_id", inc.ID), zap.Error(err))
		}
	} else if err := s.vectors.Delete(ctx, collection, inc.ID); err != nil {
		s.logger.Warn("failed to remove stale embedding",
			zap.String("incident_id", inc.ID), zap.Error(err))
	}

	if err := s.appendAudit(ctx, tctx, audit.Fields{
		Action:       ActionReembed,
		ResourceType: resourceTypeIncident,
		ResourceID:   inc.ID,
		Metadata:     map[string]string{"embedding_status": string(inc.EmbeddingStatus)},
	}); err != nil {
		if rbErr := s.repo.Update(ctx, prev); rbErr != nil {
			s.logger.Error("failed to roll back reembed after audit failure",
				zap.String("incident_id", inc.ID), zap.Error(rbErr))
		}
		return nil, fmt.Errorf("record audit entry: %w", err)
	}

	inc.MessageRaw = ""
	return inc, nil
}

// ListAudit returns the tenant's audit trail. Reading the trail is
// itself recorded.
func (s *Service) ListAudit(ctx context.Context, tctx *auth.TenantContext, f audit.ListFilter) ([]*audit.Entry, error) {
	if err := s.policy.Check(tctx, auth.CapReadAudit); err != nil {
		return nil, err
	}

	entries, err := s.chain.List(ctx, tctx.TenantID, f)
	if err != nil {
		return nil, err
	}

	if err := s.appendAudit(ctx, tctx, audit.Fields{
		Action:       ActionAuditRead,
		ResourceType: "audit",
	}); err != nil {
		return nil, fmt.Errorf("record audit entry: %w", err)
	}
	return entries, nil
}

// VerifyChain recomputes the tenant's hash chain and returns any
// violations, empty when the chain is intact.
func (s *Service) VerifyChain(ctx context.Context, tctx *auth.TenantContext) ([]audit.Violation, error) {
	ctx, span := s.tracer.Start(ctx, "incident.VerifyChain")
	defer span.End()

	if err := s.policy.Check(tctx, auth.CapReadAudit); err != nil {
		return nil, err
	}

	violations, err := s.chain.Verify(ctx, tctx.TenantID)
	if err != nil {
		return nil, err
	}

	if err := s.appendAudit(ctx, tctx, audit.Fields{
		Action:       ActionAuditVerify,
		ResourceType: "audit",
		Metadata:     map[string]string{"intact": fmt.Sprintf("%t", len(violations) == 0)},
	}); err != nil {
		return nil, fmt.Errorf("record audit entry: %w", err)
	}
	return violations, nil
}

func (s *Service) indexIncident(ctx context.Context, inc *Incident) error {
	return s.vectors.Add(ctx, vectorstore.CollectionName(inc.TenantID), vectorstore.Document{
		ID:        inc.ID,
		Content:   inc.MessageRedacted,
		Metadata:  map[string]string{"tenant_id": inc.TenantID, "severity": inc.Severity},
		Embedding: inc.Embedding,
	})
}

func (s *Service) appendAudit(ctx context.Context, tctx *auth.TenantContext, f audit.Fields) error {
	f.ActorID = tctx.ActorID
	_, err := s.chain.Append(ctx, tctx.TenantID, f)
	return err
}

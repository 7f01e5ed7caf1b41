// Package incident implements the tenant-scoped incident record store:
// creation with redaction and best-effort embedding, capability-gated
// reads and updates, similarity search, and the per-tenant audit trail
// around every operation.
package incident

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/incidentd/internal/embeddings"
)

// Sentinel errors for incident operations.
var (
	// ErrNotFound indicates the incident does not exist in the caller's
	// tenant. Records in other tenants report this same error.
	ErrNotFound = errors.New("incident not found")

	// ErrValidation indicates an invalid request.
	ErrValidation = errors.New("validation failed")
)

// Severity levels, lowest to highest.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// ValidSeverity reports whether s is a known severity level.
func ValidSeverity(s string) bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Incident is one recorded incident. MessageRaw holds the text as
// submitted and is only served through the raw read path; every other
// surface sees MessageRedacted.
type Incident struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`

	Title    string `json:"title"`
	Severity string `json:"severity"`
	Service  string `json:"service,omitempty"`
	Source   string `json:"source,omitempty"`

	MessageRaw      string `json:"-"`
	MessageRedacted string `json:"message"`

	Embedding       []float32         `json:"-"`
	EmbeddingModel  string            `json:"embedding_model,omitempty"`
	EmbeddingDim    int               `json:"embedding_dim,omitempty"`
	EmbeddingStatus embeddings.Status `json:"embedding_status"`
	EmbeddingError  string            `json:"embedding_error,omitempty"`

	Labels map[string]string `json:"labels,omitempty"`

	Deleted   bool       `json:"deleted,omitempty"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`

	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy.
func (i *Incident) Clone() *Incident {
	out := *i
	if i.Embedding != nil {
		out.Embedding = make([]float32, len(i.Embedding))
		copy(out.Embedding, i.Embedding)
	}
	if i.Labels != nil {
		out.Labels = make(map[string]string, len(i.Labels))
		for k, v := range i.Labels {
			out.Labels[k] = v
		}
	}
	if i.DeletedAt != nil {
		t := *i.DeletedAt
		out.DeletedAt = &t
	}
	return &out
}

const (
	maxTitleLen   = 200
	maxNameLen    = 100
	maxMessageLen = 64 * 1024
)

// CreateRequest carries the fields for a new incident. Service names
// the affected system and Source the reporting channel; both are
// optional free-form identifiers.
type CreateRequest struct {
	Title    string            `json:"title"`
	Severity string            `json:"severity"`
	Service  string            `json:"service,omitempty"`
	Source   string            `json:"source,omitempty"`
	Message  string            `json:"message"`
	Labels   map[string]string `json:"labels,omitempty"`
}

// Validate checks the request.
func (r *CreateRequest) Validate() error {
	title := strings.TrimSpace(r.Title)
	if title == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if len(title) > maxTitleLen {
		return fmt.Errorf("%w: title exceeds %d characters", ErrValidation, maxTitleLen)
	}
	if !ValidSeverity(r.Severity) {
		return fmt.Errorf("%w: severity must be one of low, medium, high, critical", ErrValidation)
	}
	if len(r.Service) > maxNameLen {
		return fmt.Errorf("%w: service exceeds %d characters", ErrValidation, maxNameLen)
	}
	if len(r.Source) > maxNameLen {
		return fmt.Errorf("%w: source exceeds %d characters", ErrValidation, maxNameLen)
	}
	if strings.TrimSpace(r.Message) == "" {
		return fmt.Errorf("%w: message is required", ErrValidation)
	}
	if len(r.Message) > maxMessageLen {
		return fmt.Errorf("%w: message exceeds %d bytes", ErrValidation, maxMessageLen)
	}
	return nil
}

// UpdateRequest carries a partial update. Nil fields are untouched.
type UpdateRequest struct {
	Title    *string            `json:"title,omitempty"`
	Severity *string            `json:"severity,omitempty"`
	Labels   *map[string]string `json:"labels,omitempty"`
}

// Validate checks the populated fields.
func (r *UpdateRequest) Validate() error {
	if r.Title == nil && r.Severity == nil && r.Labels == nil {
		return fmt.Errorf("%w: no fields to update", ErrValidation)
	}
	if r.Title != nil {
		t := strings.TrimSpace(*r.Title)
		if t == "" {
			return fmt.Errorf("%w: title cannot be empty", ErrValidation)
		}
		if len(t) > maxTitleLen {
			return fmt.Errorf("%w: title exceeds %d characters", ErrValidation, maxTitleLen)
		}
	}
	if r.Severity != nil && !ValidSeverity(*r.Severity) {
		return fmt.Errorf("%w: severity must be one of low, medium, high, critical", ErrValidation)
	}
	return nil
}

// SearchRequest carries a similarity search.
type SearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// Validate checks the request and applies the default limit.
func (r *SearchRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return fmt.Errorf("%w: query is required", ErrValidation)
	}
	if r.Limit < 0 {
		return fmt.Errorf("%w: limit must be non-negative", ErrValidation)
	}
	if r.Limit == 0 {
		r.Limit = 10
	}
	if r.Limit > 100 {
		r.Limit = 100
	}
	return nil
}

// SearchMatch pairs a matching incident with its similarity score.
type SearchMatch struct {
	Incident *Incident `json:"incident"`
	Score    float32   `json:"score"`
}

// ListFilter narrows incident listings.
type ListFilter struct {
	Severity       string
	IncludeDeleted bool
	Limit          int
}

// Package auth provides credential resolution and role-based access control.
//
// Every request presents an API key. The Resolver maps the key to a
// TenantContext (tenant, actor, role); the Policy answers whether that
// role may perform a given operation. Tenant scoping itself is enforced
// by the incident store, never here.
package auth

import (
	"errors"
	"time"
)

// Sentinel errors for authentication and authorization.
var (
	// ErrUnauthorized is returned for any credential failure. The cause
	// (unknown key, inactive key, malformed key) is deliberately not
	// distinguished to the caller.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when a valid credential lacks the
	// capability required for an operation.
	ErrForbidden = errors.New("forbidden")

	// ErrKeyNotFound is returned when a key record does not exist within
	// the caller's tenant.
	ErrKeyNotFound = errors.New("api key not found")

	// ErrInvalidRole indicates an unknown role name.
	ErrInvalidRole = errors.New("invalid role")
)

// Role is the access level assigned to an API key.
type Role string

const (
	// RoleViewer can read redacted incidents and search.
	RoleViewer Role = "viewer"
	// RoleResponder adds incident creation, updates, and raw-text reads.
	RoleResponder Role = "responder"
	// RoleAuditor adds audit log access and visibility of soft-deleted rows.
	RoleAuditor Role = "auditor"
	// RoleAdmin has every capability, including key management.
	RoleAdmin Role = "admin"
)

// Roles lists all valid roles.
func Roles() []Role {
	return []Role{RoleViewer, RoleResponder, RoleAuditor, RoleAdmin}
}

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleViewer, RoleResponder, RoleAuditor, RoleAdmin:
		return true
	}
	return false
}

// Capability is a named permission checked against a role.
type Capability string

const (
	// CapRead allows reading the redacted view of incidents.
	CapRead Capability = "incident:read"
	// CapSearch allows similarity search over incidents.
	CapSearch Capability = "incident:search"
	// CapCreate allows creating incidents.
	CapCreate Capability = "incident:create"
	// CapUpdate allows updating descriptive fields, soft delete, and re-embedding.
	CapUpdate Capability = "incident:update"
	// CapReadRaw allows reading the unredacted message text.
	CapReadRaw Capability = "incident:read_raw"
	// CapReadAudit allows reading and verifying the audit chain.
	CapReadAudit Capability = "audit:read"
	// CapIncludeDeleted allows soft-deleted rows to appear in reads.
	CapIncludeDeleted Capability = "incident:include_deleted"
	// CapManageKeys allows creating and deactivating API keys within the
	// caller's own tenant.
	CapManageKeys Capability = "apikey:manage"
)

// AllCapabilities lists every capability, for exhaustive policy tests.
func AllCapabilities() []Capability {
	return []Capability{
		CapRead, CapSearch, CapCreate, CapUpdate,
		CapReadRaw, CapReadAudit, CapIncludeDeleted, CapManageKeys,
	}
}

// TenantContext is the per-request identity derived from a resolved
// credential. It is never persisted; its lifetime is one request.
type TenantContext struct {
	TenantID string
	ActorID  string
	Role     Role
}

// APIKeyRecord stores the durable form of an issued API key. The
// plaintext key is never stored; only its SHA-256 hash is kept and
// compared against a hash of the presented value. Records are
// deactivated, never deleted, so past validity stays auditable.
type APIKeyRecord struct {
	ID            string     `json:"id"`
	TenantID      string     `json:"tenant_id"`
	ActorID       string     `json:"actor_id"`
	Role          Role       `json:"role"`
	KeyHash       string     `json:"-"`
	Active        bool       `json:"active"`
	CreatedAt     time.Time  `json:"created_at"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty"`
}

package auth

import (
	"fmt"

	"go.uber.org/zap"
)

// roleCapabilities is the declarative capability table. Roles build on
// the viewer set; no role crosses tenant boundaries.
var roleCapabilities = map[Role]map[Capability]bool{
	RoleViewer: {
		CapRead:   true,
		CapSearch: true,
	},
	RoleResponder: {
		CapRead:    true,
		CapSearch:  true,
		CapCreate:  true,
		CapUpdate:  true,
		CapReadRaw: true,
	},
	RoleAuditor: {
		CapRead:           true,
		CapSearch:         true,
		CapReadAudit:      true,
		CapIncludeDeleted: true,
	},
	RoleAdmin: {
		CapRead:           true,
		CapSearch:         true,
		CapCreate:         true,
		CapUpdate:         true,
		CapReadRaw:        true,
		CapReadAudit:      true,
		CapIncludeDeleted: true,
		CapManageKeys:     true,
	},
}

// Policy answers capability checks against the role table.
type Policy struct {
	logger *zap.Logger
}

// NewPolicy creates a capability policy.
func NewPolicy(logger *zap.Logger) *Policy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Policy{logger: logger}
}

// Allowed reports whether the role holds the capability.
func (p *Policy) Allowed(role Role, cap Capability) bool {
	return roleCapabilities[role][cap]
}

// Check returns nil if the context's role holds the capability, or
// ErrForbidden otherwise. Tenant scoping is not consulted here.
func (p *Policy) Check(tctx *TenantContext, cap Capability) error {
	if tctx == nil {
		return fmt.Errorf("%w: missing tenant context", ErrForbidden)
	}
	if !p.Allowed(tctx.Role, cap) {
		p.logger.Debug("capability denied",
			zap.String("tenant_id", tctx.TenantID),
			zap.String("actor_id", tctx.ActorID),
			zap.String("role", string(tctx.Role)),
			zap.String("capability", string(cap)),
		)
		return fmt.Errorf("%w: role %q lacks capability %q", ErrForbidden, tctx.Role, cap)
	}
	return nil
}

// Capabilities returns the capability set of a role, for introspection.
func (p *Policy) Capabilities(role Role) []Capability {
	caps := make([]Capability, 0, len(roleCapabilities[role]))
	for _, c := range AllCapabilities() {
		if roleCapabilities[role][c] {
			caps = append(caps, c)
		}
	}
	return caps
}

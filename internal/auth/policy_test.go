package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyAllowed(t *testing.T) {
	p := NewPolicy(nil)

	// The full role/capability grant table.
	grants := map[Role]map[Capability]bool{
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

	for _, role := range Roles() {
		for _, cap := range AllCapabilities() {
			want := grants[role][cap]
			assert.Equal(t, want, p.Allowed(role, cap),
				"role %s capability %s", role, cap)
		}
	}
}

func TestPolicyUnknownRole(t *testing.T) {
	p := NewPolicy(nil)

	for _, cap := range AllCapabilities() {
		assert.False(t, p.Allowed(Role("superuser"), cap))
		assert.False(t, p.Allowed(Role(""), cap))
	}
}

func TestPolicyCheck(t *testing.T) {
	p := NewPolicy(nil)

	t.Run("granted", func(t *testing.T) {
		tctx := &TenantContext{TenantID: "acme", ActorID: "alice", Role: RoleViewer}
		require.NoError(t, p.Check(tctx, CapRead))
	})

	t.Run("denied", func(t *testing.T) {
		tctx := &TenantContext{TenantID: "acme", ActorID: "alice", Role: RoleViewer}
		err := p.Check(tctx, CapReadRaw)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("nil context", func(t *testing.T) {
		err := p.Check(nil, CapRead)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrForbidden)
	})
}

func TestPolicyCapabilities(t *testing.T) {
	p := NewPolicy(nil)

	assert.Len(t, p.Capabilities(RoleViewer), 2)
	assert.Len(t, p.Capabilities(RoleResponder), 5)
	assert.Len(t, p.Capabilities(RoleAuditor), 4)
	assert.Len(t, p.Capabilities(RoleAdmin), len(AllCapabilities()))
	assert.Empty(t, p.Capabilities(Role("unknown")))
}

func TestRoleValid(t *testing.T) {
	for _, role := range Roles() {
		assert.True(t, role.Valid())
	}
	assert.False(t, Role("root").Valid())
	assert.False(t, Role("").Valid())
}

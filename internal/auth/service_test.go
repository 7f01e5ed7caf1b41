package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/incidentd/internal/audit"
)

func newTestKeyService(t *testing.T) (*KeyService, *KeyStore, *audit.Chain) {
	t.Helper()

	store := NewKeyStore(nil)
	chain, err := audit.NewChain(audit.NewMemoryLedger(), nil)
	require.NoError(t, err)
	svc, err := NewKeyService(store, NewPolicy(nil), chain, nil)
	require.NoError(t, err)
	return svc, store, chain
}

func adminCtx(tenant string) *TenantContext {
	return &TenantContext{TenantID: tenant, ActorID: "admin-1", Role: RoleAdmin}
}

func TestKeyServiceCreateKey(t *testing.T) {
	svc, _, chain := newTestKeyService(t)
	ctx := context.Background()

	rec, plaintext, err := svc.CreateKey(ctx, adminCtx("acme"), "alice", RoleResponder)
	require.NoError(t, err)
	assert.Equal(t, "acme", rec.TenantID)
	assert.NotEmpty(t, plaintext)

	entries, err := chain.List(ctx, "acme", audit.ListFilter{Action: "apikey.create"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, rec.ID, entries[0].ResourceID)
	assert.Equal(t, "alice", entries[0].Metadata["key_actor"])
	assert.Equal(t, string(RoleResponder), entries[0].Metadata["key_role"])
}

func TestKeyServiceCreateKeyForbidden(t *testing.T) {
	svc, _, chain := newTestKeyService(t)
	ctx := context.Background()

	for _, role := range []Role{RoleViewer, RoleResponder, RoleAuditor} {
		tctx := &TenantContext{TenantID: "acme", ActorID: "x", Role: role}
		_, _, err := svc.CreateKey(ctx, tctx, "alice", RoleViewer)
		assert.ErrorIs(t, err, ErrForbidden, "role %s", role)
	}

	// Denied attempts leave no audit entries.
	n, err := chain.Length(ctx, "acme")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestKeyServiceCreateKeyTenantFromCaller(t *testing.T) {
	svc, store, _ := newTestKeyService(t)

	rec, _, err := svc.CreateKey(context.Background(), adminCtx("acme"), "alice", RoleViewer)
	require.NoError(t, err)

	// The new key lives in the admin's tenant regardless of anything
	// else in the request.
	assert.Empty(t, store.List("globex"))
	assert.Equal(t, "acme", rec.TenantID)
}

func TestKeyServiceDeactivateKey(t *testing.T) {
	svc, _, chain := newTestKeyService(t)
	ctx := context.Background()

	rec, _, err := svc.CreateKey(ctx, adminCtx("acme"), "alice", RoleViewer)
	require.NoError(t, err)

	t.Run("own tenant", func(t *testing.T) {
		out, err := svc.DeactivateKey(ctx, adminCtx("acme"), rec.ID)
		require.NoError(t, err)
		assert.False(t, out.Active)

		entries, err := chain.List(ctx, "acme", audit.ListFilter{Action: "apikey.deactivate"})
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("other tenant reports not found", func(t *testing.T) {
		_, err := svc.DeactivateKey(ctx, adminCtx("globex"), rec.ID)
		assert.ErrorIs(t, err, ErrKeyNotFound)
	})
}

func TestKeyServiceListKeys(t *testing.T) {
	svc, _, _ := newTestKeyService(t)
	ctx := context.Background()

	_, _, err := svc.CreateKey(ctx, adminCtx("acme"), "alice", RoleViewer)
	require.NoError(t, err)
	_, _, err = svc.CreateKey(ctx, adminCtx("globex"), "bob", RoleViewer)
	require.NoError(t, err)

	recs, err := svc.ListKeys(ctx, adminCtx("acme"))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "acme", recs[0].TenantID)

	viewer := &TenantContext{TenantID: "acme", ActorID: "v", Role: RoleViewer}
	_, err = svc.ListKeys(ctx, viewer)
	assert.ErrorIs(t, err, ErrForbidden)
}

package audit

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChain(t *testing.T) (*Chain, *memoryLedger) {
	t.Helper()

	ledger := NewMemoryLedger().(*memoryLedger)
	chain, err := NewChain(ledger, nil)
	require.NoError(t, err)
	return chain, ledger
}

func TestChainAppend(t *testing.T) {
	chain, _ := newTestChain(t)
	ctx := context.Background()

	e1, err := chain.Append(ctx, "acme", Fields{ActorID: "alice", Action: "incident.create", ResourceID: "inc-1"})
	require.NoError(t, err)
	assert.Equal(t, GenesisHash, e1.PrevHash)
	assert.Equal(t, 0, e1.Position)
	assert.Equal(t, ComputeHash(GenesisHash, e1), e1.Hash)

	e2, err := chain.Append(ctx, "acme", Fields{ActorID: "alice", Action: "incident.update", ResourceID: "inc-1"})
	require.NoError(t, err)
	assert.Equal(t, e1.Hash, e2.PrevHash)
	assert.Equal(t, 1, e2.Position)
}

func TestChainMaxRetriesOption(t *testing.T) {
	chain, err := NewChain(NewMemoryLedger(), nil, WithMaxRetries(9))
	require.NoError(t, err)
	assert.Equal(t, 9, chain.MaxRetries())

	chain, err = NewChain(NewMemoryLedger(), nil)
	require.NoError(t, err)
	assert.Equal(t, defaultMaxRetries, chain.MaxRetries())

	chain, err = NewChain(NewMemoryLedger(), nil, WithMaxRetries(0))
	require.NoError(t, err)
	assert.Equal(t, defaultMaxRetries, chain.MaxRetries())
}

func TestChainAppendValidation(t *testing.T) {
	chain, _ := newTestChain(t)
	ctx := context.Background()

	_, err := chain.Append(ctx, "", Fields{Action: "incident.create"})
	assert.Error(t, err)

	_, err = chain.Append(ctx, "acme", Fields{})
	assert.Error(t, err)
}

func TestChainVerifyIntact(t *testing.T) {
	chain, _ := newTestChain(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := chain.Append(ctx, "acme", Fields{
			ActorID:    "alice",
			Action:     "incident.create",
			ResourceID: fmt.Sprintf("inc-%d", i),
			Metadata:   map[string]string{"severity": "high"},
			ResultIDs:  []string{"a", "b"},
		})
		require.NoError(t, err)
	}

	violations, err := chain.Verify(ctx, "acme")
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestChainVerifyEmptyChainIsIntact(t *testing.T) {
	chain, _ := newTestChain(t)

	violations, err := chain.Verify(context.Background(), "acme")
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestChainVerifyDetectsTamperedField(t *testing.T) {
	chain, ledger := newTestChain(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := chain.Append(ctx, "acme", Fields{
			ActorID: "alice", Action: "incident.create", ResourceID: fmt.Sprintf("inc-%d", i),
		})
		require.NoError(t, err)
	}

	// Rewrite a historical entry behind the chain's back.
	ledger.mu.Lock()
	ledger.chains["acme"][2].ActorID = "mallory"
	ledger.mu.Unlock()

	violations, err := chain.Verify(ctx, "acme")
	require.NoError(t, err)
	require.NotEmpty(t, violations)
	assert.Equal(t, 2, violations[0].Position)
	assert.Contains(t, violations[0].Reason, "recomputed")
}

func TestChainVerifyDetectsRelinkedHash(t *testing.T) {
	chain, ledger := newTestChain(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := chain.Append(ctx, "acme", Fields{
			ActorID: "alice", Action: "incident.create", ResourceID: fmt.Sprintf("inc-%d", i),
		})
		require.NoError(t, err)
	}

	// Tamper with an entry and recompute its own hash so the single
	// link looks valid. The successor's prev_hash exposes it.
	ledger.mu.Lock()
	e := ledger.chains["acme"][1]
	e.ActorID = "mallory"
	e.Hash = ComputeHash(e.PrevHash, e)
	ledger.mu.Unlock()

	violations, err := chain.Verify(ctx, "acme")
	require.NoError(t, err)
	require.NotEmpty(t, violations)
	assert.Equal(t, 2, violations[0].Position)
	assert.Contains(t, violations[0].Reason, "prev_hash")
}

func TestChainConcurrentAppendsNeverFork(t *testing.T) {
	chain, _ := newTestChain(t)
	ctx := context.Background()

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := chain.Append(ctx, "acme", Fields{
				ActorID:    fmt.Sprintf("actor-%d", n),
				Action:     "incident.create",
				ResourceID: fmt.Sprintf("inc-%d", n),
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	entries, err := chain.List(ctx, "acme", ListFilter{})
	require.NoError(t, err)
	require.Len(t, entries, writers)

	// Exactly one entry per position, each linked to its predecessor.
	prev := GenesisHash
	for i, e := range entries {
		assert.Equal(t, i, e.Position)
		assert.Equal(t, prev, e.PrevHash)
		prev = e.Hash
	}

	violations, err := chain.Verify(ctx, "acme")
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestChainTenantIndependence(t *testing.T) {
	chain, ledger := newTestChain(t)
	ctx := context.Background()

	_, err := chain.Append(ctx, "acme", Fields{ActorID: "a", Action: "incident.create"})
	require.NoError(t, err)
	_, err = chain.Append(ctx, "globex", Fields{ActorID: "b", Action: "incident.create"})
	require.NoError(t, err)

	// Both chains start from genesis.
	acme, err := chain.List(ctx, "acme", ListFilter{})
	require.NoError(t, err)
	globex, err := chain.List(ctx, "globex", ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, GenesisHash, acme[0].PrevHash)
	assert.Equal(t, GenesisHash, globex[0].PrevHash)

	// Corrupting one tenant's chain does not affect the other's.
	ledger.mu.Lock()
	ledger.chains["acme"][0].ActorID = "mallory"
	ledger.mu.Unlock()

	violations, err := chain.Verify(ctx, "globex")
	require.NoError(t, err)
	assert.Empty(t, violations)

	violations, err = chain.Verify(ctx, "acme")
	require.NoError(t, err)
	assert.NotEmpty(t, violations)
}

func TestChainListFilters(t *testing.T) {
	chain, _ := newTestChain(t)
	ctx := context.Background()

	_, err := chain.Append(ctx, "acme", Fields{ActorID: "a", Action: "incident.create", ResourceID: "inc-1"})
	require.NoError(t, err)
	_, err = chain.Append(ctx, "acme", Fields{ActorID: "a", Action: "incident.update", ResourceID: "inc-1"})
	require.NoError(t, err)
	_, err = chain.Append(ctx, "acme", Fields{ActorID: "a", Action: "incident.create", ResourceID: "inc-2"})
	require.NoError(t, err)

	byAction, err := chain.List(ctx, "acme", ListFilter{Action: "incident.create"})
	require.NoError(t, err)
	assert.Len(t, byAction, 2)

	byResource, err := chain.List(ctx, "acme", ListFilter{ResourceID: "inc-1"})
	require.NoError(t, err)
	assert.Len(t, byResource, 2)

	limited, err := chain.List(ctx, "acme", ListFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestChainLength(t *testing.T) {
	chain, _ := newTestChain(t)
	ctx := context.Background()

	n, err := chain.Length(ctx, "acme")
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = chain.Append(ctx, "acme", Fields{ActorID: "a", Action: "incident.create"})
	require.NoError(t, err)

	n, err = chain.Length(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalEncodeDeterministic(t *testing.T) {
	e := &Entry{
		TenantID:     "acme",
		ActorID:      "alice",
		Action:       "incident.search",
		ResourceType: "incident",
		Metadata:     map[string]string{"b": "2", "a": "1", "c": "3"},
		ResultIDs:    []string{"id-2", "id-1"},
	}

	first := string(canonicalEncode(e))
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, string(canonicalEncode(e)))
	}
}

func TestCanonicalEncodeFieldOrder(t *testing.T) {
	e := &Entry{
		TenantID:     "acme",
		ActorID:      "alice",
		Action:       "incident.create",
		ResourceType: "incident",
		ResourceID:   "inc-1",
	}

	assert.Equal(t,
		`acme|alice|incident.create|incident|inc-1|{}|[]`,
		string(canonicalEncode(e)))
}

func TestCanonicalMetadataSortedKeys(t *testing.T) {
	m := map[string]string{"zeta": "z", "alpha": "a", "mid": "m"}
	assert.Equal(t, `{"alpha":"a","mid":"m","zeta":"z"}`, string(canonicalMetadata(m)))
	assert.Equal(t, `{}`, string(canonicalMetadata(nil)))
}

func TestCanonicalResultIDsPreservesOrder(t *testing.T) {
	assert.Equal(t, `["b","a","c"]`, string(canonicalResultIDs([]string{"b", "a", "c"})))
	assert.Equal(t, `[]`, string(canonicalResultIDs(nil)))
}

func TestComputeHash(t *testing.T) {
	e := &Entry{TenantID: "acme", ActorID: "a", Action: "incident.create"}

	h1 := ComputeHash(GenesisHash, e)
	assert.Len(t, h1, 64)
	assert.Equal(t, h1, ComputeHash(GenesisHash, e))

	// The hash covers the previous hash.
	assert.NotEqual(t, h1, ComputeHash(h1, e))

	// And every entry field.
	changed := *e
	changed.Action = "incident.update"
	assert.NotEqual(t, h1, ComputeHash(GenesisHash, &changed))
}

func TestGenesisHash(t *testing.T) {
	assert.Len(t, GenesisHash, 64)
	for _, c := range GenesisHash {
		assert.Equal(t, '0', c)
	}
}

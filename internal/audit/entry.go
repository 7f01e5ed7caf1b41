// Package audit provides the per-tenant, hash-linked log of privileged
// operations.
//
// Each entry's hash covers the previous entry's hash and a canonical
// encoding of the entry's own fields, so any alteration of a past entry
// invalidates every digest after it. Chains are per tenant and
// independently verifiable from a fixed genesis value.
package audit

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"
)

// GenesisHash is the prev_hash of the first entry of every tenant chain:
// the all-zero 256-bit digest, hex encoded. Fixed and public so each
// chain verifies without any other tenant's state.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Entry is one immutable record in a tenant's chain. Field order in the
// canonical encoding is fixed: tenant, actor, action, resource type,
// resource id, metadata, result ids.
type Entry struct {
	ID           string            `json:"id"`
	TenantID     string            `json:"tenant_id"`
	ActorID      string            `json:"actor_id"`
	Action       string            `json:"action"`
	ResourceType string            `json:"resource_type"`
	ResourceID   string            `json:"resource_id"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	ResultIDs    []string          `json:"result_ids,omitempty"`
	PrevHash     string            `json:"prev_hash"`
	Hash         string            `json:"hash"`
	Position     int               `json:"position"`
	CreatedAt    time.Time         `json:"created_at"`
}

// Fields carries the caller-supplied parts of a new entry. Everything
// else (hashes, position, timestamp) is filled in by the chain.
type Fields struct {
	ActorID      string
	Action       string
	ResourceType string
	ResourceID   string
	Metadata     map[string]string
	ResultIDs    []string
}

// canonicalEncode produces the deterministic byte encoding hashed into
// the chain. Fields are pipe-delimited in fixed order; metadata is
// encoded as a JSON object with sorted keys and result ids as a JSON
// array preserving order. Recomputing this from stored fields always
// reproduces the same bytes.
func canonicalEncode(e *Entry) []byte {
	var buf bytes.Buffer
	buf.WriteString(e.TenantID)
	buf.WriteByte('|')
	buf.WriteString(e.ActorID)
	buf.WriteByte('|')
	buf.WriteString(e.Action)
	buf.WriteByte('|')
	buf.WriteString(e.ResourceType)
	buf.WriteByte('|')
	buf.WriteString(e.ResourceID)
	buf.WriteByte('|')
	buf.Write(canonicalMetadata(e.Metadata))
	buf.WriteByte('|')
	buf.Write(canonicalResultIDs(e.ResultIDs))
	return buf.Bytes()
}

// canonicalMetadata encodes metadata as a JSON object with keys in
// sorted order. json.Marshal of a map already sorts keys, but building
// the object explicitly keeps the encoding independent of that detail.
func canonicalMetadata(m map[string]string) []byte {
	if len(m) == 0 {
		return []byte("{}")
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, _ := json.Marshal(k)
		vb, _ := json.Marshal(m[k])
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes()
}

// canonicalResultIDs encodes result ids as a JSON array. Order is
// preserved: for searches it is the ranking order.
func canonicalResultIDs(ids []string) []byte {
	if len(ids) == 0 {
		return []byte("[]")
	}
	b, _ := json.Marshal(ids)
	return b
}

// ComputeHash returns the hex SHA-256 of prevHash concatenated with the
// entry's canonical encoding.
func ComputeHash(prevHash string, e *Entry) string {
	h := sha256.New()
	h.Write([]byte(prevHash))
	h.Write(canonicalEncode(e))
	return hex.EncodeToString(h.Sum(nil))
}

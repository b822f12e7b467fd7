// Package crypto provides the hash-chain primitives for the audit ledger.
//
// Each ledger event's hash is SHA3-256 over the event's canonical payload
// bytes concatenated with the previous event's hash. The first event of a
// delegation chains from GenesisHash (32 zero bytes). Hashes are stored
// hex-encoded. The canonical payload is the JSON encoding of the event's
// identifying fields in fixed declaration order with timestamps rendered
// as RFC 3339 nanoseconds in UTC, so recomputation is byte-stable without
// keeping any mutable copy of the original payload.
package crypto

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/crypto/sha3"

	"github.com/chantierhq/delegation-engine/pkg/models"
)

// HashSize is the byte length of a chain hash.
const HashSize = 32

// GenesisHash is the previous-hash value for the first event of a chain.
var GenesisHash = make([]byte, HashSize)

// canonicalEvent is the exact shape hashed for every ledger event. Field
// order is fixed; changing it breaks every stored chain.
type canonicalEvent struct {
	DelegationID string          `json:"delegation_id"`
	Seq          int             `json:"seq"`
	Type         string          `json:"type"`
	Actor        string          `json:"actor"`
	Summary      string          `json:"summary"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	OccurredAt   string          `json:"occurred_at"`
}

// CanonicalPayload returns the canonical byte encoding of an event, the
// bytes that are hashed together with the previous hash.
func CanonicalPayload(e *models.AuditEvent) ([]byte, error) {
	c := canonicalEvent{
		DelegationID: e.DelegationID.String(),
		Seq:          e.Seq,
		Type:         string(e.Type),
		Actor:        e.Actor,
		Summary:      e.Summary,
		Payload:      e.Payload,
		OccurredAt:   e.OccurredAt.UTC().Format(time.RFC3339Nano),
	}
	b, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode canonical event: %w", err)
	}
	return b, nil
}

// ChainHash computes SHA3-256(payload || prev).
func ChainHash(payload, prev []byte) []byte {
	h := sha3.New256()
	h.Write(payload)
	h.Write(prev)
	return h.Sum(nil)
}

// EventHash computes and hex-encodes the chain hash for an event given
// the previous event's hex-encoded hash (empty string means genesis).
func EventHash(e *models.AuditEvent, prevHex string) (string, error) {
	prev, err := DecodeHash(prevHex)
	if err != nil {
		return "", err
	}
	payload, err := CanonicalPayload(e)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(ChainHash(payload, prev)), nil
}

// DecodeHash decodes a hex hash; the empty string decodes to GenesisHash.
func DecodeHash(s string) ([]byte, error) {
	if s == "" {
		return GenesisHash, nil
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode chain hash: %w", err)
	}
	if len(b) != HashSize {
		return nil, fmt.Errorf("decode chain hash: expected %d bytes, got %d", HashSize, len(b))
	}
	return b, nil
}

// VerifyChain recomputes the chain over events (which must be in seq
// order starting at the first event) and returns the sequence number of
// the first divergent event, or nil when the whole chain matches. A
// divergence is either a payload whose recomputed hash differs from the
// stored one, or a stored prev-hash that does not link to the previous
// event.
func VerifyChain(events []*models.AuditEvent) (*int, error) {
	return VerifyChainFrom(events, "")
}

// VerifyChainFrom is VerifyChain anchored at an arbitrary predecessor
// hash instead of genesis. It verifies a suffix of a chain: events must
// be consecutive in seq order and anchorHex the stored hash of the event
// preceding the first one (empty string anchors at genesis).
func VerifyChainFrom(events []*models.AuditEvent, anchorHex string) (*int, error) {
	prevHex := anchorHex
	for _, e := range events {
		if e.PrevHash != prevHex {
			seq := e.Seq
			return &seq, nil
		}
		want, err := EventHash(e, prevHex)
		if err != nil {
			return nil, err
		}
		if e.Hash != want {
			seq := e.Seq
			return &seq, nil
		}
		prevHex = e.Hash
	}
	return nil, nil
}

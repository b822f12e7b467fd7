package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditEventType identifies what a ledger entry records.
type AuditEventType string

const (
	EventCreated   AuditEventType = "CREATED"
	EventUsed      AuditEventType = "USED"
	EventExtended  AuditEventType = "EXTENDED"
	EventSuspended AuditEventType = "SUSPENDED"
	EventResumed   AuditEventType = "RESUMED"
	EventRevoked   AuditEventType = "REVOKED"
	EventEvaluated AuditEventType = "EVALUATED"
	// EventCorrected is the remediation entry appended after a detected
	// chain break. The broken entries are never edited or deleted.
	EventCorrected AuditEventType = "CORRECTED"
)

// AuditEvent is one immutable, hash-chained ledger entry. Seq is the
// insertion order within the delegation's ledger, starting at 1. Hash is
// computed over the canonical payload plus PrevHash; the first event
// chains from the genesis hash.
type AuditEvent struct {
	ID           uuid.UUID       `json:"id"`
	DelegationID uuid.UUID       `json:"delegation_id"`
	Seq          int             `json:"seq"`
	Type         AuditEventType  `json:"type"`
	Actor        string          `json:"actor"`
	Summary      string          `json:"summary"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	PrevHash     string          `json:"prev_hash"`
	Hash         string          `json:"hash"`
	OccurredAt   time.Time       `json:"occurred_at"`
}

// VerificationResult reports the outcome of recomputing a delegation's
// hash chain. FirstInvalidSeq is set to the sequence number of the first
// event whose stored hash (or linkage) diverges from recomputation.
type VerificationResult struct {
	DelegationID    uuid.UUID `json:"delegation_id"`
	Valid           bool      `json:"valid"`
	EventsChecked   int       `json:"events_checked"`
	FirstInvalidSeq *int      `json:"first_invalid_seq,omitempty"`
	HeadMatches     bool      `json:"head_matches"`
	VerifiedAt      time.Time `json:"verified_at"`
}

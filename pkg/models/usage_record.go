package models

import (
	"time"

	"github.com/google/uuid"
)

// UsageRecord captures one executed action under a delegation. Created
// only as the side effect of an approved execution; never mutated
// afterwards. UsageCountAfter and UsageTotalAfter snapshot the
// delegation's cumulative counters as of this usage.
type UsageRecord struct {
	ID             uuid.UUID        `json:"id"`
	DelegationID   uuid.UUID        `json:"delegation_id"`
	Action         DelegationAction `json:"action"`
	Amount         *int64           `json:"amount,omitempty"`
	Currency       string           `json:"currency,omitempty"`
	Actor          string           `json:"actor"`
	UsedAt         time.Time        `json:"used_at"`
	UsageCountAfter int             `json:"usage_count_after"`
	UsageTotalAfter int64           `json:"usage_total_after"`
}

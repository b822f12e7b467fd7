package models

import (
	"time"

	"github.com/google/uuid"
)

// ComplianceReport summarizes a delegation's engagements and usage for
// oversight. Engagements never gate evaluation, so the report is purely
// informational.
type ComplianceReport struct {
	DelegationID    uuid.UUID                     `json:"delegation_id"`
	EffectiveStatus DelegationStatus              `json:"effective_status"`
	Engagements     []Engagement                  `json:"engagements"`
	ByCriticality   map[EngagementCriticality]int `json:"by_criticality"`
	UsageCount      int                           `json:"usage_count"`
	UsageTotal      int64                         `json:"usage_total_amount"`
	LastUsedAt      *time.Time                    `json:"last_used_at,omitempty"`
	RecentUsage     []*UsageRecord                `json:"recent_usage,omitempty"`
	GeneratedAt     time.Time                     `json:"generated_at"`
}

package models

import (
	"github.com/google/uuid"
)

// EngagementType classifies a post-hoc obligation attached to a
// delegation. Engagements never gate evaluation; they are tracked for
// compliance reporting only.
type EngagementType string

const (
	EngagementObligation    EngagementType = "OBLIGATION"
	EngagementProhibition   EngagementType = "PROHIBITION"
	EngagementAlert         EngagementType = "ALERT"
	EngagementReporting     EngagementType = "REPORTING"
	EngagementDocumentation EngagementType = "DOCUMENTATION"
	EngagementCompliance    EngagementType = "COMPLIANCE"
)

// EngagementCriticality ranks how serious a breached engagement is.
type EngagementCriticality string

const (
	CriticalityLow      EngagementCriticality = "LOW"
	CriticalityMedium   EngagementCriticality = "MEDIUM"
	CriticalityHigh     EngagementCriticality = "HIGH"
	CriticalityCritical EngagementCriticality = "CRITICAL"
)

// RequiredDoc names a document the delegate must produce for an
// engagement.
type RequiredDoc struct {
	Name      string `json:"name"`
	Mandatory bool   `json:"mandatory"`
}

// Engagement is a compliance obligation owned by a delegation.
type Engagement struct {
	ID           uuid.UUID             `json:"id"`
	DelegationID uuid.UUID             `json:"delegation_id"`
	Type         EngagementType        `json:"type"`
	Criticality  EngagementCriticality `json:"criticality"`
	Description  string                `json:"description"`
	Frequency    string                `json:"frequency,omitempty"`
	RequiredDocs []RequiredDoc         `json:"required_docs,omitempty"`
}

package models

import (
	"time"
)

// ControlKind names an additional control an action must satisfy before
// it is considered authorized.
type ControlKind string

const (
	ControlDualApproval ControlKind = "DUAL_APPROVAL"
	ControlLegalReview  ControlKind = "LEGAL_REVIEW"
	ControlFinanceCheck ControlKind = "FINANCE_CHECK"
	ControlStepUpAuth   ControlKind = "STEP_UP_AUTH"
)

// ReasonCode identifies why an evaluation denied an action.
type ReasonCode string

const (
	ReasonNotAuthorized      ReasonCode = "NOT_AUTHORIZED"
	ReasonOutOfScope         ReasonCode = "OUT_OF_SCOPE"
	ReasonOutsideValidity    ReasonCode = "OUTSIDE_VALIDITY"
	ReasonOutsideHours       ReasonCode = "OUTSIDE_ALLOWED_HOURS"
	ReasonDayNotAllowed      ReasonCode = "DAY_NOT_ALLOWED"
	ReasonAmountExceeded     ReasonCode = "AMOUNT_EXCEEDED"
	ReasonCumulativeExceeded ReasonCode = "CUMULATIVE_EXCEEDED"
	ReasonDailyOpsExceeded   ReasonCode = "DAILY_OPS_EXCEEDED"
	ReasonMonthlyOpsExceeded ReasonCode = "MONTHLY_OPS_EXCEEDED"
	ReasonControlMissing     ReasonCode = "CONTROL_MISSING"
	ReasonNotExtendable      ReasonCode = "NOT_EXTENDABLE"
	ReasonExtensionExhausted ReasonCode = "EXTENSION_EXHAUSTED"
)

// Reason is one denial reason with human-readable detail.
type Reason struct {
	Code   ReasonCode `json:"code"`
	Detail string     `json:"detail,omitempty"`
}

// EvaluationContext describes the proposed action's target and
// circumstances. Scope dimension ids are opaque strings (bureau and
// category codes are not UUIDs upstream). Amount is minor units in
// Currency; nil for non-financial actions.
type EvaluationContext struct {
	ProjectID  string    `json:"project_id"`
	BureauID   string    `json:"bureau_id"`
	SupplierID string    `json:"supplier_id"`
	CategoryID string    `json:"category_id"`
	Amount     *int64    `json:"amount,omitempty"`
	Currency   string    `json:"currency,omitempty"`
	At         time.Time `json:"at"`
}

// Evidence carries the caller-attested control satisfactions for one
// action instance. The engine declares required controls but does not
// re-derive whether, say, a co-approver actually co-signed; that proof
// is the caller's to supply.
type Evidence struct {
	ControlsSatisfied []ControlKind `json:"controls_satisfied,omitempty"`
}

// Satisfies reports whether the evidence covers the given control.
func (e Evidence) Satisfies(c ControlKind) bool {
	for _, s := range e.ControlsSatisfied {
		if s == c {
			return true
		}
	}
	return false
}

// PolicyEvaluationResult is the verdict for one proposed action. Reasons
// is empty iff Approved. The first reason is the authoritative denial;
// the rest are collected for dry-run display.
type PolicyEvaluationResult struct {
	Approved         bool             `json:"approved"`
	EffectiveStatus  DelegationStatus `json:"effective_status"`
	Reasons          []Reason         `json:"reasons,omitempty"`
	RequiredControls []ControlKind    `json:"required_controls,omitempty"`
	MissingControls  []ControlKind    `json:"missing_controls,omitempty"`
	EvaluatedAt      time.Time        `json:"evaluated_at"`
}

// Denied reports whether the evaluation ended in a denial.
func (r PolicyEvaluationResult) Denied() bool { return !r.Approved }

// DelegationStats is the read-model aggregate consumed by dashboards.
// It carries no authorization logic.
type DelegationStats struct {
	Active           int   `json:"active"`
	Suspended        int   `json:"suspended"`
	Expired          int   `json:"expired"`
	Revoked          int   `json:"revoked"`
	ExpiringSoon     int   `json:"expiring_soon"`
	TotalUsageCount  int   `json:"total_usage_count"`
	TotalUsageAmount int64 `json:"total_usage_amount"`
}

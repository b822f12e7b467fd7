package models

import (
	"github.com/google/uuid"
)

// DelegationAction enumerates the administrative acts a delegation can
// authorize.
type DelegationAction string

const (
	ActionApprovePayment       DelegationAction = "APPROVE_PAYMENT"
	ActionSignContract         DelegationAction = "SIGN_CONTRACT"
	ActionApprovePurchaseOrder DelegationAction = "APPROVE_PURCHASE_ORDER"
	ActionValidateChangeOrder  DelegationAction = "VALIDATE_CHANGE_ORDER"
	ActionApproveReception     DelegationAction = "APPROVE_RECEPTION"
	ActionCommitBudget         DelegationAction = "COMMIT_BUDGET"
	ActionApproveExpense       DelegationAction = "APPROVE_EXPENSE"
)

// ValidActions is the closed set of accepted delegation actions.
var ValidActions = map[DelegationAction]bool{
	ActionApprovePayment:       true,
	ActionSignContract:         true,
	ActionApprovePurchaseOrder: true,
	ActionValidateChangeOrder:  true,
	ActionApproveReception:     true,
	ActionCommitBudget:         true,
	ActionApproveExpense:       true,
}

// Policy is an explicit allow-rule binding a delegation to one permitted
// action type. A disabled policy denies the action exactly like a missing
// one. MaxAmount, when set, overrides the delegation ceiling for this
// action; the tighter of the two applies.
type Policy struct {
	ID           uuid.UUID        `json:"id"`
	DelegationID uuid.UUID        `json:"delegation_id"`
	Action       DelegationAction `json:"action"`
	Enabled      bool             `json:"enabled"`
	MaxAmount    *int64           `json:"max_amount,omitempty"`
	Currency     string           `json:"currency,omitempty"`
}

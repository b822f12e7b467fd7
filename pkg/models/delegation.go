package models

import (
	"time"

	"github.com/google/uuid"
)

// DelegationStatus is the stored lifecycle state of a delegation.
// The effective state can differ: a stored 'active' delegation whose
// validity window has passed is treated as expired at read time.
type DelegationStatus string

const (
	StatusActive    DelegationStatus = "active"
	StatusSuspended DelegationStatus = "suspended"
	StatusExpired   DelegationStatus = "expired"
	StatusRevoked   DelegationStatus = "revoked"
)

// DelegationKind distinguishes time-bounded grants from standing ones.
type DelegationKind string

const (
	KindTemporary DelegationKind = "temporary"
	KindPermanent DelegationKind = "permanent"
)

// ScopeMode controls how a scope declaration's id list is interpreted.
type ScopeMode string

const (
	ScopeModeAll     ScopeMode = "ALL"
	ScopeModeInclude ScopeMode = "INCLUDE"
	ScopeModeExclude ScopeMode = "EXCLUDE"
)

// ScopeDeclaration declares the perimeter of one scope dimension.
// Stored as structured JSONB and validated at the persistence boundary,
// never re-parsed ad hoc per read.
type ScopeDeclaration struct {
	Mode ScopeMode `json:"mode"`
	List []string  `json:"list,omitempty"`
}

// Scope declares the delegation perimeter across all four dimensions.
// An action is in scope only when every dimension matches independently.
type Scope struct {
	Project  ScopeDeclaration `json:"project"`
	Bureau   ScopeDeclaration `json:"bureau"`
	Supplier ScopeDeclaration `json:"supplier"`
	Category ScopeDeclaration `json:"category"`
}

// Limits holds the financial, temporal and volumetric ceilings of a
// delegation. Amounts are minor units (cents) in Currency. Nil pointers
// mean "no restriction".
type Limits struct {
	MaxAmount         *int64         `json:"max_amount,omitempty"`       // per operation
	MaxTotalAmount    *int64         `json:"max_total_amount,omitempty"` // cumulative
	Currency          string         `json:"currency"`
	AllowedHoursStart *int           `json:"allowed_hours_start,omitempty"` // 0-23, inclusive
	AllowedHoursEnd   *int           `json:"allowed_hours_end,omitempty"`   // 0-23, inclusive
	AllowedDays       []time.Weekday `json:"allowed_days,omitempty"`        // empty = all days
	MaxDailyOps       *int           `json:"max_daily_ops,omitempty"`
	MaxMonthlyOps     *int           `json:"max_monthly_ops,omitempty"`
}

// Controls holds the additional-control flags of a delegation. Each
// enabled flag adds one required control to every evaluation.
type Controls struct {
	RequiresDualControl  bool `json:"requires_dual_control"`
	RequiresLegalReview  bool `json:"requires_legal_review"`
	RequiresFinanceCheck bool `json:"requires_finance_check"`
	RequiresStepUpAuth   bool `json:"requires_step_up_auth"`
}

// ExtensionPolicy governs whether and how far the validity window can be
// pushed forward.
type ExtensionPolicy struct {
	Extendable     bool `json:"extendable"`
	MaxExtensions  int  `json:"max_extensions"`
	ExtensionDays  int  `json:"extension_days"`
	ExtensionsUsed int  `json:"extensions_used"`
}

// Delegation is the central entity: a time-bounded, scope-bounded grant
// of authority from a grantor to a delegate.
type Delegation struct {
	ID     uuid.UUID        `json:"id"`
	Kind   DelegationKind   `json:"kind"`
	Status DelegationStatus `json:"status"`
	Title  string           `json:"title"`

	StartsAt  time.Time       `json:"starts_at"`
	EndsAt    time.Time       `json:"ends_at"`
	Extension ExtensionPolicy `json:"extension"`

	Limits   Limits   `json:"limits"`
	Controls Controls `json:"controls"`
	Scope    Scope    `json:"scope"`

	UsageCount       int        `json:"usage_count"`
	UsageTotalAmount int64      `json:"usage_total_amount"`
	LastUsedAt       *time.Time `json:"last_used_at,omitempty"`

	// DecisionHash anchors the original grant: it is the hash of the
	// CREATED ledger event and never changes. HeadHash tracks the hash
	// of the most recent ledger event.
	DecisionHash string `json:"decision_hash"`
	HeadHash     string `json:"head_hash"`

	// LedgerHalted is set when integrity verification found a broken
	// chain. While set, all ledger appends are refused until a
	// corrective event is recorded.
	LedgerHalted bool `json:"ledger_halted"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Actors      []Actor      `json:"actors,omitempty"`
	Policies    []Policy     `json:"policies,omitempty"`
	Engagements []Engagement `json:"engagements,omitempty"`
}

// Grantor returns the delegation's grantor actor, if loaded.
func (d *Delegation) Grantor() *Actor {
	return d.actorWithRole(RoleGrantor)
}

// Delegate returns the delegation's delegate actor, if loaded.
func (d *Delegation) Delegate() *Actor {
	return d.actorWithRole(RoleDelegate)
}

func (d *Delegation) actorWithRole(role ActorRole) *Actor {
	for i := range d.Actors {
		if d.Actors[i].Role == role {
			return &d.Actors[i]
		}
	}
	return nil
}

// PolicyFor returns the delegation's policy for the given action, or nil
// when the action is not covered. Absence of a policy means the action is
// not authorized by this delegation.
func (d *Delegation) PolicyFor(action DelegationAction) *Policy {
	for i := range d.Policies {
		if d.Policies[i].Action == action {
			return &d.Policies[i]
		}
	}
	return nil
}

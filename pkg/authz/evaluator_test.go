package authz

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chantierhq/delegation-engine/pkg/models"
)

// evalFixture returns an active delegation authorizing payment approvals
// on project P-1, with generous limits and no extra controls.
func evalFixture() *models.Delegation {
	id := uuid.New()
	return &models.Delegation{
		ID:       id,
		Kind:     models.KindTemporary,
		Status:   models.StatusActive,
		StartsAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		EndsAt:   time.Date(2025, 12, 31, 23, 59, 59, 0, time.UTC),
		Limits: models.Limits{
			MaxAmount:      int64p(1_000_000),
			MaxTotalAmount: int64p(5_000_000),
			Currency:       "EUR",
		},
		Scope: models.Scope{
			Project:  models.ScopeDeclaration{Mode: models.ScopeModeInclude, List: []string{"P-1"}},
			Bureau:   models.ScopeDeclaration{Mode: models.ScopeModeAll},
			Supplier: models.ScopeDeclaration{Mode: models.ScopeModeAll},
			Category: models.ScopeDeclaration{Mode: models.ScopeModeAll},
		},
		Policies: []models.Policy{
			{ID: uuid.New(), DelegationID: id, Action: models.ActionApprovePayment, Enabled: true},
		},
	}
}

func evalContext() models.EvaluationContext {
	return models.EvaluationContext{
		ProjectID:  "P-1",
		BureauID:   "B-7",
		SupplierID: "S-3",
		CategoryID: "C-WORKS",
		Amount:     int64p(250_000),
		Currency:   "EUR",
		At:         time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC),
	}
}

func TestEvaluateApproved(t *testing.T) {
	result := Evaluate(evalFixture(), models.ActionApprovePayment, evalContext(), models.Evidence{}, UsageCounts{})

	assert.True(t, result.Approved)
	assert.Empty(t, result.Reasons)
	assert.Equal(t, models.StatusActive, result.EffectiveStatus)
}

func TestEvaluateIdempotent(t *testing.T) {
	d := evalFixture()
	first := Evaluate(d, models.ActionApprovePayment, evalContext(), models.Evidence{}, UsageCounts{})
	second := Evaluate(d, models.ActionApprovePayment, evalContext(), models.Evidence{}, UsageCounts{})

	assert.Equal(t, first, second)
	// The snapshot is untouched.
	assert.Equal(t, 0, d.UsageCount)
	assert.Equal(t, int64(0), d.UsageTotalAmount)
	assert.Equal(t, models.StatusActive, d.Status)
}

func TestEvaluateDeniesWithoutPolicy(t *testing.T) {
	result := Evaluate(evalFixture(), models.ActionSignContract, evalContext(), models.Evidence{}, UsageCounts{})

	assert.False(t, result.Approved)
	require.Len(t, result.Reasons, 1)
	assert.Equal(t, models.ReasonNotAuthorized, result.Reasons[0].Code)
}

func TestEvaluateDeniesDisabledPolicy(t *testing.T) {
	d := evalFixture()
	d.Policies[0].Enabled = false

	result := Evaluate(d, models.ActionApprovePayment, evalContext(), models.Evidence{}, UsageCounts{})
	assert.False(t, result.Approved)
	require.Len(t, result.Reasons, 1)
	assert.Equal(t, models.ReasonNotAuthorized, result.Reasons[0].Code)
}

func TestEvaluateRevokedDeniesUnconditionally(t *testing.T) {
	d := evalFixture()
	d.Status = models.StatusRevoked
	// Even a perfectly in-scope, in-limit request is denied.
	result := Evaluate(d, models.ActionApprovePayment, evalContext(), models.Evidence{}, UsageCounts{})

	assert.False(t, result.Approved)
	require.Len(t, result.Reasons, 1)
	assert.Equal(t, models.ReasonNotAuthorized, result.Reasons[0].Code)
	assert.Equal(t, models.StatusRevoked, result.EffectiveStatus)
}

func TestEvaluateSuspendedDenies(t *testing.T) {
	d := evalFixture()
	d.Status = models.StatusSuspended

	result := Evaluate(d, models.ActionApprovePayment, evalContext(), models.Evidence{}, UsageCounts{})
	assert.False(t, result.Approved)
	assert.Equal(t, models.StatusSuspended, result.EffectiveStatus)
}

func TestEvaluateLazyExpiry(t *testing.T) {
	d := evalFixture()
	evalCtx := evalContext()
	evalCtx.At = time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC) // past endsAt, stored status still active

	result := Evaluate(d, models.ActionApprovePayment, evalCtx, models.Evidence{}, UsageCounts{})
	assert.False(t, result.Approved)
	assert.Equal(t, models.StatusExpired, result.EffectiveStatus)
	require.Len(t, result.Reasons, 1)
	assert.Equal(t, models.ReasonNotAuthorized, result.Reasons[0].Code)
}

func TestEvaluateOutOfScope(t *testing.T) {
	evalCtx := evalContext()
	evalCtx.ProjectID = "P-99"

	result := Evaluate(evalFixture(), models.ActionApprovePayment, evalCtx, models.Evidence{}, UsageCounts{})
	assert.False(t, result.Approved)
	require.NotEmpty(t, result.Reasons)
	assert.Equal(t, models.ReasonOutOfScope, result.Reasons[0].Code)
}

func TestEvaluateLimitViolation(t *testing.T) {
	evalCtx := evalContext()
	evalCtx.Amount = int64p(1_500_000)

	result := Evaluate(evalFixture(), models.ActionApprovePayment, evalCtx, models.Evidence{}, UsageCounts{})
	assert.False(t, result.Approved)
	require.NotEmpty(t, result.Reasons)
	assert.Equal(t, models.ReasonAmountExceeded, result.Reasons[0].Code)
}

func TestEvaluateControls(t *testing.T) {
	d := evalFixture()
	d.Controls = models.Controls{
		RequiresDualControl: true,
		RequiresStepUpAuth:  true,
	}

	t.Run("missing controls deny", func(t *testing.T) {
		result := Evaluate(d, models.ActionApprovePayment, evalContext(), models.Evidence{}, UsageCounts{})
		assert.False(t, result.Approved)
		assert.Equal(t, []models.ControlKind{models.ControlDualApproval, models.ControlStepUpAuth}, result.RequiredControls)
		assert.Equal(t, []models.ControlKind{models.ControlDualApproval, models.ControlStepUpAuth}, result.MissingControls)
		require.Len(t, result.Reasons, 1)
		assert.Equal(t, models.ReasonControlMissing, result.Reasons[0].Code)
	})

	t.Run("partial evidence still denies", func(t *testing.T) {
		evidence := models.Evidence{ControlsSatisfied: []models.ControlKind{models.ControlDualApproval}}
		result := Evaluate(d, models.ActionApprovePayment, evalContext(), evidence, UsageCounts{})
		assert.False(t, result.Approved)
		assert.Equal(t, []models.ControlKind{models.ControlStepUpAuth}, result.MissingControls)
	})

	t.Run("full evidence approves", func(t *testing.T) {
		evidence := models.Evidence{ControlsSatisfied: []models.ControlKind{
			models.ControlDualApproval, models.ControlStepUpAuth,
		}}
		result := Evaluate(d, models.ActionApprovePayment, evalContext(), evidence, UsageCounts{})
		assert.True(t, result.Approved)
		assert.Empty(t, result.MissingControls)
	})
}

func TestRequiredControlsUnion(t *testing.T) {
	d := &models.Delegation{Controls: models.Controls{
		RequiresDualControl:  true,
		RequiresLegalReview:  true,
		RequiresFinanceCheck: true,
		RequiresStepUpAuth:   true,
	}}
	assert.Equal(t, []models.ControlKind{
		models.ControlDualApproval,
		models.ControlLegalReview,
		models.ControlFinanceCheck,
		models.ControlStepUpAuth,
	}, RequiredControls(d))

	assert.Empty(t, RequiredControls(&models.Delegation{}))
}

func TestEvaluateStagesShortCircuit(t *testing.T) {
	// An out-of-scope request with limit violations reports only scope:
	// later stages never run once a stage fails.
	d := evalFixture()
	d.Controls.RequiresLegalReview = true
	evalCtx := evalContext()
	evalCtx.ProjectID = "P-99"
	evalCtx.Amount = int64p(9_000_000)

	result := Evaluate(d, models.ActionApprovePayment, evalCtx, models.Evidence{}, UsageCounts{})
	require.Len(t, result.Reasons, 1)
	assert.Equal(t, models.ReasonOutOfScope, result.Reasons[0].Code)
	assert.Empty(t, result.MissingControls)
}

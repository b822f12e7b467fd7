package authz

import (
	"github.com/chantierhq/delegation-engine/pkg/models"
)

// Evaluate runs the full authorization pipeline for one proposed action
// against a delegation snapshot: lifecycle and policy gate, scope match,
// limit checks, control comparison. It is a pure function of its inputs
// and never mutates the delegation; executing an approved action
// (counters, usage record, ledger entry) is a separate explicit step.
//
// Stages run in order and the first failing stage decides the verdict,
// but later-stage violations are still collected for dry-run display
// where that is meaningful (all limit violations are reported together).
func Evaluate(d *models.Delegation, action models.DelegationAction, evalCtx models.EvaluationContext, evidence models.Evidence, counts UsageCounts) models.PolicyEvaluationResult {
	result := models.PolicyEvaluationResult{
		EffectiveStatus: EffectiveStatus(d.Status, d.EndsAt, evalCtx.At),
		EvaluatedAt:     evalCtx.At,
	}

	// Stage 1: the delegation must be effectively active and must carry
	// an enabled policy for the action. Anything else is an
	// unconditional denial.
	if result.EffectiveStatus != models.StatusActive {
		result.Reasons = append(result.Reasons, models.Reason{
			Code:   models.ReasonNotAuthorized,
			Detail: "delegation is " + string(result.EffectiveStatus),
		})
		return result
	}
	policy := d.PolicyFor(action)
	if policy == nil || !policy.Enabled {
		result.Reasons = append(result.Reasons, models.Reason{
			Code:   models.ReasonNotAuthorized,
			Detail: "no enabled policy for action " + string(action),
		})
		return result
	}

	// Stage 2: scope.
	if scopeReasons := ScopeViolations(d.Scope, evalCtx); len(scopeReasons) > 0 {
		result.Reasons = append(result.Reasons, scopeReasons...)
		return result
	}

	// Stage 3: limits, all violations collected.
	if limitReasons := CheckLimits(d, policy, evalCtx.Amount, evalCtx.At, counts); len(limitReasons) > 0 {
		result.Reasons = append(result.Reasons, limitReasons...)
		return result
	}

	// Stage 4: controls against caller evidence.
	result.RequiredControls = RequiredControls(d)
	result.MissingControls = MissingControls(result.RequiredControls, evidence)
	if len(result.MissingControls) > 0 {
		detail := "missing controls:"
		for _, c := range result.MissingControls {
			detail += " " + string(c)
		}
		result.Reasons = append(result.Reasons, models.Reason{
			Code:   models.ReasonControlMissing,
			Detail: detail,
		})
		return result
	}

	result.Approved = true
	return result
}

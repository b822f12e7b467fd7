package authz

import (
	"github.com/chantierhq/delegation-engine/pkg/models"
)

// RequiredControls declares which additional controls the delegation
// demands for any action it covers. It only declares requirements;
// whether a requirement is satisfied for a specific action instance is
// supplied by the caller as evidence and compared by the evaluator.
func RequiredControls(d *models.Delegation) []models.ControlKind {
	var controls []models.ControlKind
	if d.Controls.RequiresDualControl {
		controls = append(controls, models.ControlDualApproval)
	}
	if d.Controls.RequiresLegalReview {
		controls = append(controls, models.ControlLegalReview)
	}
	if d.Controls.RequiresFinanceCheck {
		controls = append(controls, models.ControlFinanceCheck)
	}
	if d.Controls.RequiresStepUpAuth {
		controls = append(controls, models.ControlStepUpAuth)
	}
	return controls
}

// MissingControls returns the required controls the evidence does not
// cover, preserving requirement order.
func MissingControls(required []models.ControlKind, evidence models.Evidence) []models.ControlKind {
	var missing []models.ControlKind
	for _, c := range required {
		if !evidence.Satisfies(c) {
			missing = append(missing, c)
		}
	}
	return missing
}

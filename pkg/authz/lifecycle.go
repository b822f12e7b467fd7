package authz

import (
	"time"

	"github.com/chantierhq/delegation-engine/pkg/models"
)

// EffectiveStatus derives the delegation's authoritative status from the
// stored status, the validity window and the current time. Expiry is
// lazy: there is no background transition, so a stored 'active' (or
// 'suspended') delegation past its end date reads as expired. Revocation
// always wins.
func EffectiveStatus(stored models.DelegationStatus, endsAt time.Time, now time.Time) models.DelegationStatus {
	if stored == models.StatusRevoked {
		return models.StatusRevoked
	}
	if now.After(endsAt) {
		return models.StatusExpired
	}
	return stored
}

// transitions lists the permitted explicit status transitions. Expiry is
// not listed: it is derived, never commanded. Nothing leaves 'revoked'.
var transitions = map[models.DelegationStatus][]models.DelegationStatus{
	models.StatusActive:    {models.StatusSuspended, models.StatusRevoked},
	models.StatusSuspended: {models.StatusActive, models.StatusRevoked},
	models.StatusExpired:   {},
	models.StatusRevoked:   {},
}

// CanTransition reports whether the state machine permits the explicit
// transition from one effective status to another.
func CanTransition(from, to models.DelegationStatus) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// ValidateExtension decides whether the delegation may be extended.
// Extension is not a status transition: it moves endsAt forward by
// ExtensionDays, gated by the extension policy. A nil return means the
// extension is allowed.
func ValidateExtension(d *models.Delegation, now time.Time) *models.Reason {
	status := EffectiveStatus(d.Status, d.EndsAt, now)
	if status == models.StatusRevoked || status == models.StatusExpired {
		return &models.Reason{
			Code:   models.ReasonNotExtendable,
			Detail: "delegation is " + string(status),
		}
	}
	if !d.Extension.Extendable {
		return &models.Reason{Code: models.ReasonNotExtendable, Detail: "delegation is not extendable"}
	}
	if d.Extension.ExtensionsUsed >= d.Extension.MaxExtensions {
		return &models.Reason{
			Code:   models.ReasonExtensionExhausted,
			Detail: "all extensions used",
		}
	}
	return nil
}

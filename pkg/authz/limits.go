package authz

import (
	"fmt"
	"time"

	"github.com/chantierhq/delegation-engine/pkg/models"
)

// UsageCounts carries the delegation's operation counts for the periods
// containing the proposed time, computed from usage history by the
// caller.
type UsageCounts struct {
	Daily   int
	Monthly int
}

// CheckLimits validates the proposed action against the delegation's
// financial, temporal and volumetric limits. Every violation is
// collected, in check order, so dry runs can show the full picture; the
// first entry is the authoritative denial. An empty result means all
// limits pass.
//
// Currency mismatches are a validation error, not a limit violation, and
// must be rejected before this point.
func CheckLimits(d *models.Delegation, policy *models.Policy, amount *int64, at time.Time, counts UsageCounts) []models.Reason {
	var reasons []models.Reason

	if at.Before(d.StartsAt) || at.After(d.EndsAt) {
		reasons = append(reasons, models.Reason{
			Code: models.ReasonOutsideValidity,
			Detail: fmt.Sprintf("proposed at %s, valid %s to %s",
				at.Format(time.RFC3339), d.StartsAt.Format(time.RFC3339), d.EndsAt.Format(time.RFC3339)),
		})
	}

	reasons = append(reasons, temporalViolations(d.Limits, at)...)

	if amount != nil {
		if max := effectiveMaxAmount(d, policy); max != nil && *amount > *max {
			reasons = append(reasons, models.Reason{
				Code:   models.ReasonAmountExceeded,
				Detail: fmt.Sprintf("amount %d exceeds per-operation ceiling %d", *amount, *max),
			})
		}
		if d.Limits.MaxTotalAmount != nil && d.UsageTotalAmount+*amount > *d.Limits.MaxTotalAmount {
			reasons = append(reasons, models.Reason{
				Code: models.ReasonCumulativeExceeded,
				Detail: fmt.Sprintf("cumulative usage %d + %d exceeds ceiling %d",
					d.UsageTotalAmount, *amount, *d.Limits.MaxTotalAmount),
			})
		}
	}

	if d.Limits.MaxDailyOps != nil && counts.Daily >= *d.Limits.MaxDailyOps {
		reasons = append(reasons, models.Reason{
			Code:   models.ReasonDailyOpsExceeded,
			Detail: fmt.Sprintf("%d operations today, cap %d", counts.Daily, *d.Limits.MaxDailyOps),
		})
	}
	if d.Limits.MaxMonthlyOps != nil && counts.Monthly >= *d.Limits.MaxMonthlyOps {
		reasons = append(reasons, models.Reason{
			Code:   models.ReasonMonthlyOpsExceeded,
			Detail: fmt.Sprintf("%d operations this month, cap %d", counts.Monthly, *d.Limits.MaxMonthlyOps),
		})
	}

	return reasons
}

// effectiveMaxAmount returns the tighter of the delegation ceiling and
// the per-action policy override, or nil when neither is set.
func effectiveMaxAmount(d *models.Delegation, policy *models.Policy) *int64 {
	max := d.Limits.MaxAmount
	if policy != nil && policy.MaxAmount != nil {
		if max == nil || *policy.MaxAmount < *max {
			max = policy.MaxAmount
		}
	}
	return max
}

// temporalViolations checks hour-of-day and day-of-week restrictions.
// Absence of a restriction means unrestricted. The hour window is
// inclusive on both ends and may wrap midnight (e.g. 22 to 6).
func temporalViolations(limits models.Limits, at time.Time) []models.Reason {
	var reasons []models.Reason

	if limits.AllowedHoursStart != nil && limits.AllowedHoursEnd != nil {
		start, end := *limits.AllowedHoursStart, *limits.AllowedHoursEnd
		hour := at.Hour()
		var ok bool
		if start <= end {
			ok = hour >= start && hour <= end
		} else {
			ok = hour >= start || hour <= end
		}
		if !ok {
			reasons = append(reasons, models.Reason{
				Code:   models.ReasonOutsideHours,
				Detail: fmt.Sprintf("hour %d outside allowed window %d-%d", hour, start, end),
			})
		}
	}

	if len(limits.AllowedDays) > 0 {
		day := at.Weekday()
		allowed := false
		for _, d := range limits.AllowedDays {
			if d == day {
				allowed = true
				break
			}
		}
		if !allowed {
			reasons = append(reasons, models.Reason{
				Code:   models.ReasonDayNotAllowed,
				Detail: fmt.Sprintf("%s is not an allowed day", day),
			})
		}
	}

	return reasons
}

package authz

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chantierhq/delegation-engine/pkg/models"
)

func TestEffectiveStatusLazyExpiry(t *testing.T) {
	endsAt := time.Date(2025, 6, 30, 23, 59, 59, 0, time.UTC)

	before := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	after := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, models.StatusActive, EffectiveStatus(models.StatusActive, endsAt, before))
	assert.Equal(t, models.StatusExpired, EffectiveStatus(models.StatusActive, endsAt, after))
	assert.Equal(t, models.StatusExpired, EffectiveStatus(models.StatusSuspended, endsAt, after))
	// Revocation wins over expiry.
	assert.Equal(t, models.StatusRevoked, EffectiveStatus(models.StatusRevoked, endsAt, after))
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to models.DelegationStatus
		want     bool
	}{
		{models.StatusActive, models.StatusSuspended, true},
		{models.StatusActive, models.StatusRevoked, true},
		{models.StatusSuspended, models.StatusActive, true},
		{models.StatusSuspended, models.StatusRevoked, true},
		{models.StatusRevoked, models.StatusActive, false},
		{models.StatusRevoked, models.StatusSuspended, false},
		{models.StatusRevoked, models.StatusRevoked, false},
		{models.StatusExpired, models.StatusActive, false},
		{models.StatusExpired, models.StatusSuspended, false},
		{models.StatusActive, models.StatusExpired, false}, // expiry is derived, not commanded
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestValidateExtension(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	base := func() *models.Delegation {
		return &models.Delegation{
			Status:   models.StatusActive,
			StartsAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			EndsAt:   time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
			Extension: models.ExtensionPolicy{
				Extendable:    true,
				MaxExtensions: 2,
				ExtensionDays: 30,
			},
		}
	}

	t.Run("allowed", func(t *testing.T) {
		assert.Nil(t, ValidateExtension(base(), now))
	})

	t.Run("not extendable", func(t *testing.T) {
		d := base()
		d.Extension.Extendable = false
		reason := ValidateExtension(d, now)
		require.NotNil(t, reason)
		assert.Equal(t, models.ReasonNotExtendable, reason.Code)
	})

	t.Run("exhausted after max extensions", func(t *testing.T) {
		d := base()
		d.Extension.ExtensionsUsed = 2
		reason := ValidateExtension(d, now)
		require.NotNil(t, reason)
		assert.Equal(t, models.ReasonExtensionExhausted, reason.Code)
	})

	t.Run("revoked cannot extend", func(t *testing.T) {
		d := base()
		d.Status = models.StatusRevoked
		reason := ValidateExtension(d, now)
		require.NotNil(t, reason)
		assert.Equal(t, models.ReasonNotExtendable, reason.Code)
	})

	t.Run("expired cannot extend", func(t *testing.T) {
		d := base()
		reason := ValidateExtension(d, time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC))
		require.NotNil(t, reason)
		assert.Equal(t, models.ReasonNotExtendable, reason.Code)
	})
}

package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chantierhq/delegation-engine/pkg/apperrors"
	"github.com/chantierhq/delegation-engine/pkg/authz"
	"github.com/chantierhq/delegation-engine/pkg/database"
	"github.com/chantierhq/delegation-engine/pkg/models"
	"github.com/chantierhq/delegation-engine/pkg/repositories"
)

// DelegationService manages delegation grants and read models.
type DelegationService interface {
	// Create validates and persists a new delegation, ledgering the
	// CREATED event whose hash becomes the delegation's decision hash.
	Create(ctx context.Context, d *models.Delegation) (*models.Delegation, error)

	// Get returns a delegation with children loaded.
	Get(ctx context.Context, id uuid.UUID) (*models.Delegation, error)

	// List returns delegations, optionally filtered by stored status.
	List(ctx context.Context, status models.DelegationStatus) ([]*models.Delegation, error)

	// ComplianceReport aggregates a delegation's engagements and usage.
	ComplianceReport(ctx context.Context, id uuid.UUID) (*models.ComplianceReport, error)
}

type delegationService struct {
	db        database.TxRunner
	repo      repositories.DelegationRepository
	auditRepo repositories.AuditRepository
	usageRepo repositories.UsageRepository
	logger    *zap.Logger
}

// NewDelegationService creates a new DelegationService.
func NewDelegationService(
	db database.TxRunner,
	repo repositories.DelegationRepository,
	auditRepo repositories.AuditRepository,
	usageRepo repositories.UsageRepository,
	logger *zap.Logger,
) DelegationService {
	return &delegationService{
		db:        db,
		repo:      repo,
		auditRepo: auditRepo,
		usageRepo: usageRepo,
		logger:    logger.Named("delegation-service"),
	}
}

var _ DelegationService = (*delegationService)(nil)

func (s *delegationService) Create(ctx context.Context, d *models.Delegation) (*models.Delegation, error) {
	if err := validateNewDelegation(d); err != nil {
		return nil, err
	}

	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	// Grants always start active with clean counters; callers cannot
	// pre-seed lifecycle state or usage.
	d.Status = models.StatusActive
	d.UsageCount = 0
	d.UsageTotalAmount = 0
	d.LastUsedAt = nil
	d.Extension.ExtensionsUsed = 0
	d.DecisionHash = ""
	d.HeadHash = ""
	d.LedgerHalted = false

	grantor := d.Grantor()

	err := s.db.InDelegationTx(ctx, d.ID, func(txCtx context.Context) error {
		if err := s.repo.Create(txCtx, d); err != nil {
			return err
		}

		payload, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("failed to marshal grant snapshot: %w", err)
		}
		event := &models.AuditEvent{
			DelegationID: d.ID,
			Type:         models.EventCreated,
			Actor:        grantor.Email,
			Summary:      fmt.Sprintf("delegation %q granted to %s", d.Title, d.Delegate().Name),
			Payload:      payload,
		}
		if err := s.auditRepo.Append(txCtx, event); err != nil {
			return err
		}

		// The CREATED event hash anchors the grant for its whole life.
		return s.repo.SetHashes(txCtx, d.ID, event.Hash, event.Hash)
	})
	if err != nil {
		s.logger.Error("Failed to create delegation", zap.Error(err))
		return nil, err
	}

	s.logger.Info("Created delegation",
		zap.String("delegation_id", d.ID.String()),
		zap.String("title", d.Title))

	return s.repo.GetByID(ctx, d.ID)
}

func (s *delegationService) Get(ctx context.Context, id uuid.UUID) (*models.Delegation, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *delegationService) List(ctx context.Context, status models.DelegationStatus) ([]*models.Delegation, error) {
	if status != "" {
		switch status {
		case models.StatusActive, models.StatusSuspended, models.StatusExpired, models.StatusRevoked:
		default:
			return nil, fmt.Errorf("%w: unknown status %q", apperrors.ErrValidation, status)
		}
	}
	return s.repo.List(ctx, status)
}

func (s *delegationService) ComplianceReport(ctx context.Context, id uuid.UUID) (*models.ComplianceReport, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	recent, err := s.usageRepo.GetByDelegation(ctx, id, 20)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	byCriticality := make(map[models.EngagementCriticality]int)
	for _, e := range d.Engagements {
		byCriticality[e.Criticality]++
	}

	return &models.ComplianceReport{
		DelegationID:    d.ID,
		EffectiveStatus: authz.EffectiveStatus(d.Status, d.EndsAt, now),
		Engagements:     d.Engagements,
		ByCriticality:   byCriticality,
		UsageCount:      d.UsageCount,
		UsageTotal:      d.UsageTotalAmount,
		LastUsedAt:      d.LastUsedAt,
		RecentUsage:     recent,
		GeneratedAt:     now,
	}, nil
}

func validateNewDelegation(d *models.Delegation) error {
	if d.Title == "" {
		return fmt.Errorf("%w: title is required", apperrors.ErrValidation)
	}
	if d.Kind != models.KindTemporary && d.Kind != models.KindPermanent {
		return fmt.Errorf("%w: unknown kind %q", apperrors.ErrValidation, d.Kind)
	}
	if !d.StartsAt.Before(d.EndsAt) {
		return fmt.Errorf("%w: starts_at must precede ends_at", apperrors.ErrValidation)
	}

	var grantors, delegates int
	for _, a := range d.Actors {
		if !models.ValidActorRoles[a.Role] {
			return fmt.Errorf("%w: unknown actor role %q", apperrors.ErrValidation, a.Role)
		}
		if a.Name == "" {
			return fmt.Errorf("%w: actor name is required", apperrors.ErrValidation)
		}
		switch a.Role {
		case models.RoleGrantor:
			grantors++
		case models.RoleDelegate:
			delegates++
		}
	}
	if grantors != 1 || delegates != 1 {
		return fmt.Errorf("%w: exactly one GRANTOR and one DELEGATE required", apperrors.ErrValidation)
	}

	seen := make(map[models.DelegationAction]bool)
	for _, p := range d.Policies {
		if !models.ValidActions[p.Action] {
			return fmt.Errorf("%w: %q", apperrors.ErrUnknownAction, p.Action)
		}
		if seen[p.Action] {
			return fmt.Errorf("%w: duplicate policy for action %q", apperrors.ErrValidation, p.Action)
		}
		seen[p.Action] = true
		if p.MaxAmount != nil && *p.MaxAmount < 0 {
			return fmt.Errorf("%w: policy max_amount must not be negative", apperrors.ErrValidation)
		}
		if p.Currency != "" && d.Limits.Currency != "" && p.Currency != d.Limits.Currency {
			return fmt.Errorf("%w: policy %s uses %s", apperrors.ErrCurrencyMismatch, p.Action, p.Currency)
		}
	}

	if err := validateLimits(&d.Limits); err != nil {
		return err
	}
	if err := validateScope(&d.Scope); err != nil {
		return err
	}

	if d.Extension.MaxExtensions < 0 || d.Extension.ExtensionDays < 0 {
		return fmt.Errorf("%w: extension policy must not be negative", apperrors.ErrValidation)
	}
	if d.Extension.Extendable && d.Extension.ExtensionDays == 0 {
		return fmt.Errorf("%w: extendable delegation needs extension_days", apperrors.ErrValidation)
	}

	return nil
}

func validateLimits(l *models.Limits) error {
	if l.MaxAmount != nil && *l.MaxAmount < 0 {
		return fmt.Errorf("%w: max_amount must not be negative", apperrors.ErrValidation)
	}
	if l.MaxTotalAmount != nil && *l.MaxTotalAmount < 0 {
		return fmt.Errorf("%w: max_total_amount must not be negative", apperrors.ErrValidation)
	}
	if (l.MaxAmount != nil || l.MaxTotalAmount != nil) && l.Currency == "" {
		return fmt.Errorf("%w: financial limits require a currency", apperrors.ErrValidation)
	}
	if (l.AllowedHoursStart == nil) != (l.AllowedHoursEnd == nil) {
		return fmt.Errorf("%w: allowed hours require both start and end", apperrors.ErrValidation)
	}
	if l.AllowedHoursStart != nil {
		if *l.AllowedHoursStart < 0 || *l.AllowedHoursStart > 23 || *l.AllowedHoursEnd < 0 || *l.AllowedHoursEnd > 23 {
			return fmt.Errorf("%w: allowed hours must be within 0-23", apperrors.ErrValidation)
		}
	}
	for _, day := range l.AllowedDays {
		if day < time.Sunday || day > time.Saturday {
			return fmt.Errorf("%w: unknown weekday %d", apperrors.ErrValidation, day)
		}
	}
	if l.MaxDailyOps != nil && *l.MaxDailyOps < 0 {
		return fmt.Errorf("%w: max_daily_ops must not be negative", apperrors.ErrValidation)
	}
	if l.MaxMonthlyOps != nil && *l.MaxMonthlyOps < 0 {
		return fmt.Errorf("%w: max_monthly_ops must not be negative", apperrors.ErrValidation)
	}
	return nil
}

func validateScope(s *models.Scope) error {
	for _, dim := range []struct {
		name string
		decl models.ScopeDeclaration
	}{
		{"project", s.Project},
		{"bureau", s.Bureau},
		{"supplier", s.Supplier},
		{"category", s.Category},
	} {
		switch dim.decl.Mode {
		case models.ScopeModeAll, models.ScopeModeInclude, models.ScopeModeExclude:
		default:
			return fmt.Errorf("%w: unknown scope mode %q on %s", apperrors.ErrValidation, dim.decl.Mode, dim.name)
		}
	}
	return nil
}

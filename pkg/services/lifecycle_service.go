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

// LifecycleService drives delegation state transitions. Every permitted
// transition writes its ledger event and the new state in one
// transaction; a rejected transition writes nothing.
type LifecycleService interface {
	// Suspend pauses an active delegation. A reason is mandatory.
	Suspend(ctx context.Context, id uuid.UUID, actor, reason string) (*models.Delegation, error)

	// Resume reactivates a suspended delegation.
	Resume(ctx context.Context, id uuid.UUID, actor string) (*models.Delegation, error)

	// Revoke terminally withdraws a delegation.
	Revoke(ctx context.Context, id uuid.UUID, actor, reason string) (*models.Delegation, error)

	// Extend pushes the validity end forward by the delegation's
	// configured extension step, subject to its extension policy.
	Extend(ctx context.Context, id uuid.UUID, actor string) (*models.Delegation, error)
}

type lifecycleService struct {
	db        database.TxRunner
	repo      repositories.DelegationRepository
	auditRepo repositories.AuditRepository
	logger    *zap.Logger
}

// NewLifecycleService creates a new LifecycleService.
func NewLifecycleService(
	db database.TxRunner,
	repo repositories.DelegationRepository,
	auditRepo repositories.AuditRepository,
	logger *zap.Logger,
) LifecycleService {
	return &lifecycleService{
		db:        db,
		repo:      repo,
		auditRepo: auditRepo,
		logger:    logger.Named("lifecycle-service"),
	}
}

var _ LifecycleService = (*lifecycleService)(nil)

func (s *lifecycleService) Suspend(ctx context.Context, id uuid.UUID, actor, reason string) (*models.Delegation, error) {
	if reason == "" {
		return nil, fmt.Errorf("%w: suspension requires a reason", apperrors.ErrValidation)
	}
	return s.transition(ctx, id, models.StatusSuspended, models.EventSuspended, actor, reason)
}

func (s *lifecycleService) Resume(ctx context.Context, id uuid.UUID, actor string) (*models.Delegation, error) {
	return s.transition(ctx, id, models.StatusActive, models.EventResumed, actor, "")
}

func (s *lifecycleService) Revoke(ctx context.Context, id uuid.UUID, actor, reason string) (*models.Delegation, error) {
	return s.transition(ctx, id, models.StatusRevoked, models.EventRevoked, actor, reason)
}

func (s *lifecycleService) transition(ctx context.Context, id uuid.UUID, target models.DelegationStatus,
	eventType models.AuditEventType, actor, reason string) (*models.Delegation, error) {

	err := s.db.InDelegationTx(ctx, id, func(txCtx context.Context) error {
		d, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		if d.LedgerHalted {
			return apperrors.ErrLedgerHalted
		}

		// Transitions are judged against the effective status: a stored
		// 'active' delegation past its window is expired, and expired
		// delegations accept no transitions.
		now := time.Now().UTC()
		effective := authz.EffectiveStatus(d.Status, d.EndsAt, now)
		if !authz.CanTransition(effective, target) {
			return fmt.Errorf("%w: %s -> %s", apperrors.ErrInvalidTransition, effective, target)
		}

		payload, err := json.Marshal(transitionRecord{From: effective, To: target, Reason: reason})
		if err != nil {
			return fmt.Errorf("failed to marshal transition record: %w", err)
		}
		event := &models.AuditEvent{
			DelegationID: id,
			Type:         eventType,
			Actor:        actor,
			Summary:      transitionSummary(eventType, reason),
			Payload:      payload,
		}
		if err := s.auditRepo.Append(txCtx, event); err != nil {
			return err
		}

		return s.repo.UpdateStatus(txCtx, id, target, event.Hash)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Delegation transitioned",
		zap.String("delegation_id", id.String()),
		zap.String("status", string(target)))

	return s.repo.GetByID(ctx, id)
}

func (s *lifecycleService) Extend(ctx context.Context, id uuid.UUID, actor string) (*models.Delegation, error) {
	err := s.db.InDelegationTx(ctx, id, func(txCtx context.Context) error {
		d, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		if d.LedgerHalted {
			return apperrors.ErrLedgerHalted
		}

		now := time.Now().UTC()
		if reason := authz.ValidateExtension(d, now); reason != nil {
			return fmt.Errorf("%w: %s", apperrors.ErrConflict, reason.Code)
		}

		newEndsAt := d.EndsAt.AddDate(0, 0, d.Extension.ExtensionDays)
		extensionsUsed := d.Extension.ExtensionsUsed + 1

		payload, err := json.Marshal(extensionRecord{
			PreviousEndsAt: d.EndsAt,
			NewEndsAt:      newEndsAt,
			Extension:      extensionsUsed,
		})
		if err != nil {
			return fmt.Errorf("failed to marshal extension record: %w", err)
		}
		event := &models.AuditEvent{
			DelegationID: id,
			Type:         models.EventExtended,
			Actor:        actor,
			Summary:      fmt.Sprintf("validity extended to %s", newEndsAt.Format(time.RFC3339)),
			Payload:      payload,
		}
		if err := s.auditRepo.Append(txCtx, event); err != nil {
			return err
		}

		return s.repo.ApplyExtension(txCtx, id, newEndsAt, extensionsUsed, event.Hash)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Delegation extended", zap.String("delegation_id", id.String()))

	return s.repo.GetByID(ctx, id)
}

type transitionRecord struct {
	From   models.DelegationStatus `json:"from"`
	To     models.DelegationStatus `json:"to"`
	Reason string                  `json:"reason,omitempty"`
}

type extensionRecord struct {
	PreviousEndsAt time.Time `json:"previous_ends_at"`
	NewEndsAt      time.Time `json:"new_ends_at"`
	Extension      int       `json:"extension"`
}

func transitionSummary(eventType models.AuditEventType, reason string) string {
	switch eventType {
	case models.EventSuspended:
		return "suspended: " + reason
	case models.EventResumed:
		return "resumed"
	case models.EventRevoked:
		if reason != "" {
			return "revoked: " + reason
		}
		return "revoked"
	default:
		return string(eventType)
	}
}

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

// EvaluationService answers "may this action proceed under this
// delegation" and executes approved actions.
type EvaluationService interface {
	// Evaluate is the dry-run check. It never writes: no usage, no
	// counters, no ledger entry, and it can be repeated freely.
	Evaluate(ctx context.Context, delegationID uuid.UUID, action models.DelegationAction,
		evalCtx models.EvaluationContext, evidence models.Evidence) (*models.PolicyEvaluationResult, error)

	// Execute re-evaluates inside the delegation's write transaction and,
	// when approved, records the usage, advances the counters and ledgers
	// a USED event. The returned usage record carries the post-execution
	// counter snapshot; it is nil on denial, which is itself ledgered as
	// an EVALUATED event.
	Execute(ctx context.Context, delegationID uuid.UUID, action models.DelegationAction,
		evalCtx models.EvaluationContext, evidence models.Evidence, actor string) (*models.PolicyEvaluationResult, *models.UsageRecord, error)
}

type evaluationService struct {
	db        database.TxRunner
	repo      repositories.DelegationRepository
	auditRepo repositories.AuditRepository
	usageRepo repositories.UsageRepository
	logger    *zap.Logger
}

// NewEvaluationService creates a new EvaluationService.
func NewEvaluationService(
	db database.TxRunner,
	repo repositories.DelegationRepository,
	auditRepo repositories.AuditRepository,
	usageRepo repositories.UsageRepository,
	logger *zap.Logger,
) EvaluationService {
	return &evaluationService{
		db:        db,
		repo:      repo,
		auditRepo: auditRepo,
		usageRepo: usageRepo,
		logger:    logger.Named("evaluation-service"),
	}
}

var _ EvaluationService = (*evaluationService)(nil)

func (s *evaluationService) Evaluate(ctx context.Context, delegationID uuid.UUID, action models.DelegationAction,
	evalCtx models.EvaluationContext, evidence models.Evidence) (*models.PolicyEvaluationResult, error) {

	if err := s.validateRequest(action, &evalCtx); err != nil {
		return nil, err
	}

	d, err := s.repo.GetByID(ctx, delegationID)
	if err != nil {
		return nil, err
	}
	if err := checkCurrency(d, evalCtx); err != nil {
		return nil, err
	}

	counts, err := s.usageCounts(ctx, delegationID, evalCtx.At)
	if err != nil {
		return nil, err
	}

	result := authz.Evaluate(d, action, evalCtx, evidence, counts)
	return &result, nil
}

func (s *evaluationService) Execute(ctx context.Context, delegationID uuid.UUID, action models.DelegationAction,
	evalCtx models.EvaluationContext, evidence models.Evidence, actor string) (*models.PolicyEvaluationResult, *models.UsageRecord, error) {

	if err := s.validateRequest(action, &evalCtx); err != nil {
		return nil, nil, err
	}

	var result models.PolicyEvaluationResult
	var usage *models.UsageRecord
	err := s.db.InDelegationTx(ctx, delegationID, func(txCtx context.Context) error {
		// Re-read under the delegation lock: the dry-run snapshot the
		// caller saw may be stale by now.
		d, err := s.repo.GetByID(txCtx, delegationID)
		if err != nil {
			return err
		}
		if d.LedgerHalted {
			return apperrors.ErrLedgerHalted
		}
		if err := checkCurrency(d, evalCtx); err != nil {
			return err
		}

		counts, err := s.usageCounts(txCtx, delegationID, evalCtx.At)
		if err != nil {
			return err
		}

		result = authz.Evaluate(d, action, evalCtx, evidence, counts)

		payload, err := json.Marshal(executionRecord{
			Action:  action,
			Context: evalCtx,
			Result:  result,
		})
		if err != nil {
			return fmt.Errorf("failed to marshal execution record: %w", err)
		}

		if result.Denied() {
			event := &models.AuditEvent{
				DelegationID: delegationID,
				Type:         models.EventEvaluated,
				Actor:        actor,
				Summary:      fmt.Sprintf("%s denied: %s", action, result.Reasons[0].Code),
				Payload:      payload,
			}
			if err := s.auditRepo.Append(txCtx, event); err != nil {
				return err
			}
			return s.repo.SetHeadHash(txCtx, delegationID, event.Hash)
		}

		var amount int64
		if evalCtx.Amount != nil {
			amount = *evalCtx.Amount
		}
		rec := &models.UsageRecord{
			DelegationID:    delegationID,
			Action:          action,
			Amount:          evalCtx.Amount,
			Currency:        evalCtx.Currency,
			Actor:           actor,
			UsedAt:          evalCtx.At,
			UsageCountAfter: d.UsageCount + 1,
			UsageTotalAfter: d.UsageTotalAmount + amount,
		}
		if err := s.usageRepo.Create(txCtx, rec); err != nil {
			return err
		}
		usage = rec

		event := &models.AuditEvent{
			DelegationID: delegationID,
			Type:         models.EventUsed,
			Actor:        actor,
			Summary:      fmt.Sprintf("%s executed", action),
			Payload:      payload,
		}
		if err := s.auditRepo.Append(txCtx, event); err != nil {
			return err
		}

		return s.repo.ApplyUsage(txCtx, delegationID, amount, evalCtx.At, event.Hash)
	})
	if err != nil {
		return nil, nil, err
	}

	if result.Denied() {
		s.logger.Info("Execution denied",
			zap.String("delegation_id", delegationID.String()),
			zap.String("action", string(action)),
			zap.String("reason", string(result.Reasons[0].Code)))
	} else {
		s.logger.Info("Execution recorded",
			zap.String("delegation_id", delegationID.String()),
			zap.String("action", string(action)))
	}

	return &result, usage, nil
}

// executionRecord is the ledger payload for USED and EVALUATED events.
type executionRecord struct {
	Action  models.DelegationAction       `json:"action"`
	Context models.EvaluationContext      `json:"context"`
	Result  models.PolicyEvaluationResult `json:"result"`
}

func (s *evaluationService) validateRequest(action models.DelegationAction, evalCtx *models.EvaluationContext) error {
	if !models.ValidActions[action] {
		return fmt.Errorf("%w: %q", apperrors.ErrUnknownAction, action)
	}
	if evalCtx.Amount != nil && *evalCtx.Amount < 0 {
		return fmt.Errorf("%w: amount must not be negative", apperrors.ErrValidation)
	}
	if evalCtx.At.IsZero() {
		evalCtx.At = time.Now().UTC()
	}
	return nil
}

func checkCurrency(d *models.Delegation, evalCtx models.EvaluationContext) error {
	if evalCtx.Amount == nil || evalCtx.Currency == "" || d.Limits.Currency == "" {
		return nil
	}
	if evalCtx.Currency != d.Limits.Currency {
		return fmt.Errorf("%w: %s vs %s", apperrors.ErrCurrencyMismatch, evalCtx.Currency, d.Limits.Currency)
	}
	return nil
}

// usageCounts loads the operation counts backing the daily and monthly
// caps, relative to the evaluation instant.
func (s *evaluationService) usageCounts(ctx context.Context, delegationID uuid.UUID, at time.Time) (authz.UsageCounts, error) {
	at = at.UTC()
	startOfDay := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, time.UTC)
	startOfMonth := time.Date(at.Year(), at.Month(), 1, 0, 0, 0, 0, time.UTC)

	daily, err := s.usageRepo.CountSince(ctx, delegationID, startOfDay)
	if err != nil {
		return authz.UsageCounts{}, err
	}
	monthly, err := s.usageRepo.CountSince(ctx, delegationID, startOfMonth)
	if err != nil {
		return authz.UsageCounts{}, err
	}
	return authz.UsageCounts{Daily: daily, Monthly: monthly}, nil
}

package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chantierhq/delegation-engine/pkg/apperrors"
	"github.com/chantierhq/delegation-engine/pkg/crypto"
	"github.com/chantierhq/delegation-engine/pkg/database"
	"github.com/chantierhq/delegation-engine/pkg/models"
	"github.com/chantierhq/delegation-engine/pkg/repositories"
)

// AuditService reads and verifies the hash-chained audit ledger.
type AuditService interface {
	// GetTrail returns a delegation's full ledger in sequence order.
	GetTrail(ctx context.Context, delegationID uuid.UUID) ([]*models.AuditEvent, error)

	// VerifyIntegrity recomputes the whole chain and checks the head
	// pointer. A failed verification halts the ledger: further appends
	// are refused until a corrective event is recorded. A break that a
	// later CORRECTED event remediates does not re-halt; verification
	// then anchors at the correction and the suffix must still hold.
	VerifyIntegrity(ctx context.Context, delegationID uuid.UUID) (*models.VerificationResult, error)

	// RecordCorrection appends the CORRECTED remediation event to a
	// halted ledger and lifts the halt. The broken entries stay in
	// place; the correction payload references the first divergent
	// sequence number so the trail records what was remediated.
	RecordCorrection(ctx context.Context, delegationID uuid.UUID, actor, note string) (*models.AuditEvent, error)
}

type auditService struct {
	db        database.TxRunner
	repo      repositories.DelegationRepository
	auditRepo repositories.AuditRepository
	logger    *zap.Logger
}

// NewAuditService creates a new AuditService.
func NewAuditService(
	db database.TxRunner,
	repo repositories.DelegationRepository,
	auditRepo repositories.AuditRepository,
	logger *zap.Logger,
) AuditService {
	return &auditService{
		db:        db,
		repo:      repo,
		auditRepo: auditRepo,
		logger:    logger.Named("audit-service"),
	}
}

var _ AuditService = (*auditService)(nil)

func (s *auditService) GetTrail(ctx context.Context, delegationID uuid.UUID) ([]*models.AuditEvent, error) {
	if _, err := s.repo.GetByID(ctx, delegationID); err != nil {
		return nil, err
	}
	return s.auditRepo.GetTrail(ctx, delegationID)
}

func (s *auditService) VerifyIntegrity(ctx context.Context, delegationID uuid.UUID) (*models.VerificationResult, error) {
	result := &models.VerificationResult{DelegationID: delegationID}

	// Verification runs inside the delegation transaction so no append
	// can interleave between reading the trail and the head pointer.
	err := s.db.InDelegationTx(ctx, delegationID, func(txCtx context.Context) error {
		d, err := s.repo.GetByID(txCtx, delegationID)
		if err != nil {
			return err
		}

		trail, err := s.auditRepo.GetTrail(txCtx, delegationID)
		if err != nil {
			return err
		}

		invalidSeq, err := crypto.VerifyChain(trail)
		if err != nil {
			return err
		}
		if invalidSeq != nil {
			// A CORRECTED event after the break acknowledges it without
			// rewriting history. Re-anchor at the latest correction: the
			// chain from there onward must verify against the stored
			// predecessor hash the correction was appended on.
			if idx := lastCorrectionAfter(trail, *invalidSeq); idx >= 0 {
				invalidSeq, err = crypto.VerifyChainFrom(trail[idx:], trail[idx].PrevHash)
				if err != nil {
					return err
				}
			}
		}

		result.EventsChecked = len(trail)
		result.FirstInvalidSeq = invalidSeq
		result.HeadMatches = len(trail) == 0 && d.HeadHash == "" ||
			len(trail) > 0 && trail[len(trail)-1].Hash == d.HeadHash
		result.Valid = invalidSeq == nil && result.HeadMatches
		result.VerifiedAt = time.Now().UTC()

		if !result.Valid && !d.LedgerHalted {
			if err := s.repo.SetLedgerHalted(txCtx, delegationID, true); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.Valid {
		s.logger.Error("Audit chain integrity violation",
			zap.String("delegation_id", delegationID.String()),
			zap.Any("first_invalid_seq", result.FirstInvalidSeq),
			zap.Bool("head_matches", result.HeadMatches))
	}

	return result, nil
}

func (s *auditService) RecordCorrection(ctx context.Context, delegationID uuid.UUID, actor, note string) (*models.AuditEvent, error) {
	if note == "" {
		return nil, fmt.Errorf("%w: correction requires a note", apperrors.ErrValidation)
	}

	var event *models.AuditEvent
	err := s.db.InDelegationTx(ctx, delegationID, func(txCtx context.Context) error {
		d, err := s.repo.GetByID(txCtx, delegationID)
		if err != nil {
			return err
		}
		if !d.LedgerHalted {
			return fmt.Errorf("%w: ledger is not halted", apperrors.ErrConflict)
		}

		trail, err := s.auditRepo.GetTrail(txCtx, delegationID)
		if err != nil {
			return err
		}
		brokenSeq, err := crypto.VerifyChain(trail)
		if err != nil {
			return err
		}

		payload, err := json.Marshal(correctionRecord{Note: note, BrokenSeq: brokenSeq})
		if err != nil {
			return fmt.Errorf("failed to marshal correction record: %w", err)
		}
		event = &models.AuditEvent{
			DelegationID: delegationID,
			Type:         models.EventCorrected,
			Actor:        actor,
			Summary:      "chain break reviewed and corrected",
			Payload:      payload,
		}
		if err := s.auditRepo.Append(txCtx, event); err != nil {
			return err
		}
		if err := s.repo.SetHeadHash(txCtx, delegationID, event.Hash); err != nil {
			return err
		}
		return s.repo.SetLedgerHalted(txCtx, delegationID, false)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Warn("Ledger correction recorded",
		zap.String("delegation_id", delegationID.String()),
		zap.String("actor", actor))

	return event, nil
}

// correctionRecord is the ledger payload of a CORRECTED event. BrokenSeq
// is the first divergent sequence number the correction remediates; it
// is nil when the halt came from a head-pointer mismatch alone.
type correctionRecord struct {
	Note      string `json:"note"`
	BrokenSeq *int   `json:"broken_seq,omitempty"`
}

// lastCorrectionAfter returns the index of the latest CORRECTED event
// sequenced after brokenSeq, or -1 when the break is unremediated.
func lastCorrectionAfter(trail []*models.AuditEvent, brokenSeq int) int {
	for i := len(trail) - 1; i >= 0; i-- {
		if trail[i].Type == models.EventCorrected && trail[i].Seq > brokenSeq {
			return i
		}
	}
	return -1
}

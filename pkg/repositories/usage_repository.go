package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/chantierhq/delegation-engine/pkg/database"
	"github.com/chantierhq/delegation-engine/pkg/models"
)

// UsageRepository provides data access for usage records, the per-use
// footprint of approved executions.
type UsageRepository interface {
	// Create inserts a usage record.
	Create(ctx context.Context, rec *models.UsageRecord) error

	// CountSince counts a delegation's usage records with used_at at or
	// after the given instant. Used for daily and monthly operation caps.
	CountSince(ctx context.Context, delegationID uuid.UUID, since time.Time) (int, error)

	// GetByDelegation returns a delegation's usage records, newest first.
	GetByDelegation(ctx context.Context, delegationID uuid.UUID, limit int) ([]*models.UsageRecord, error)

	// Totals returns the number of usage records and the sum of their
	// amounts across all delegations.
	Totals(ctx context.Context) (count int, totalAmount int64, err error)
}

type usageRepository struct {
	db *database.DB
}

// NewUsageRepository creates a new UsageRepository.
func NewUsageRepository(db *database.DB) UsageRepository {
	return &usageRepository{db: db}
}

var _ UsageRepository = (*usageRepository)(nil)

func (r *usageRepository) Create(ctx context.Context, rec *models.UsageRecord) error {
	q := r.db.GetQuerier(ctx)

	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.UsedAt.IsZero() {
		rec.UsedAt = time.Now().UTC()
	}

	_, err := q.Exec(ctx, `
		INSERT INTO delegation_usage (
			id, delegation_id, action, amount, currency, actor,
			used_at, usage_count_after, usage_total_after
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID, rec.DelegationID, rec.Action, rec.Amount, rec.Currency, rec.Actor,
		rec.UsedAt, rec.UsageCountAfter, rec.UsageTotalAfter)
	if err != nil {
		return fmt.Errorf("failed to create usage record: %w", err)
	}
	return nil
}

func (r *usageRepository) CountSince(ctx context.Context, delegationID uuid.UUID, since time.Time) (int, error) {
	q := r.db.GetQuerier(ctx)

	var count int
	err := q.QueryRow(ctx, `
		SELECT COUNT(*) FROM delegation_usage
		WHERE delegation_id = $1 AND used_at >= $2`, delegationID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count usage records: %w", err)
	}
	return count, nil
}

func (r *usageRepository) GetByDelegation(ctx context.Context, delegationID uuid.UUID, limit int) ([]*models.UsageRecord, error) {
	q := r.db.GetQuerier(ctx)

	rows, err := q.Query(ctx, `
		SELECT id, delegation_id, action, amount, currency, actor,
			used_at, usage_count_after, usage_total_after
		FROM delegation_usage
		WHERE delegation_id = $1
		ORDER BY used_at DESC
		LIMIT $2`, delegationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage records: %w", err)
	}
	defer rows.Close()

	var records []*models.UsageRecord
	for rows.Next() {
		var rec models.UsageRecord
		err := rows.Scan(&rec.ID, &rec.DelegationID, &rec.Action, &rec.Amount, &rec.Currency, &rec.Actor,
			&rec.UsedAt, &rec.UsageCountAfter, &rec.UsageTotalAfter)
		if err != nil {
			return nil, fmt.Errorf("failed to scan usage record: %w", err)
		}
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating usage records: %w", err)
	}
	return records, nil
}

func (r *usageRepository) Totals(ctx context.Context) (int, int64, error) {
	q := r.db.GetQuerier(ctx)

	var count int
	var total int64
	err := q.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(amount), 0) FROM delegation_usage`).Scan(&count, &total)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to aggregate usage totals: %w", err)
	}
	return count, total, nil
}

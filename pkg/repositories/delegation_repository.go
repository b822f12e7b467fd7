package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/chantierhq/delegation-engine/pkg/apperrors"
	"github.com/chantierhq/delegation-engine/pkg/database"
	"github.com/chantierhq/delegation-engine/pkg/models"
)

// DelegationRepository provides data access for delegations and their
// owned actors, policies and engagements.
type DelegationRepository interface {
	// Create inserts a delegation with all its child records.
	Create(ctx context.Context, d *models.Delegation) error

	// GetByID returns a delegation with actors, policies and engagements
	// loaded. Returns apperrors.ErrNotFound for unknown ids.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Delegation, error)

	// List returns delegations without child records, newest first,
	// optionally filtered by stored status.
	List(ctx context.Context, status models.DelegationStatus) ([]*models.Delegation, error)

	// SetHashes sets the decision hash and head hash after the CREATED
	// event is ledgered.
	SetHashes(ctx context.Context, id uuid.UUID, decisionHash, headHash string) error

	// SetHeadHash advances the ledger head pointer.
	SetHeadHash(ctx context.Context, id uuid.UUID, headHash string) error

	// ApplyUsage advances the cumulative usage counters and the head
	// hash in one statement.
	ApplyUsage(ctx context.Context, id uuid.UUID, amount int64, usedAt time.Time, headHash string) error

	// UpdateStatus stores a new lifecycle status and the head hash of
	// the transition's ledger entry.
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.DelegationStatus, headHash string) error

	// ApplyExtension moves the validity end forward and bumps the
	// extension counter.
	ApplyExtension(ctx context.Context, id uuid.UUID, newEndsAt time.Time, extensionsUsed int, headHash string) error

	// SetLedgerHalted flips the integrity halt flag.
	SetLedgerHalted(ctx context.Context, id uuid.UUID, halted bool) error

	// CountByEffectiveStatus aggregates delegation counts by effective
	// status at the given time, with an expiring-soon bucket for active
	// delegations ending within the look-ahead window.
	CountByEffectiveStatus(ctx context.Context, now time.Time, expiringSoon time.Duration) (*models.DelegationStats, error)
}

type delegationRepository struct {
	db *database.DB
}

// NewDelegationRepository creates a new DelegationRepository.
func NewDelegationRepository(db *database.DB) DelegationRepository {
	return &delegationRepository{db: db}
}

var _ DelegationRepository = (*delegationRepository)(nil)

func (r *delegationRepository) Create(ctx context.Context, d *models.Delegation) error {
	q := r.db.GetQuerier(ctx)

	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	now := time.Now()
	d.CreatedAt = now
	d.UpdatedAt = now

	scopeJSON, err := json.Marshal(d.Scope)
	if err != nil {
		return fmt.Errorf("failed to marshal scope: %w", err)
	}
	var allowedDaysJSON []byte
	if len(d.Limits.AllowedDays) > 0 {
		allowedDaysJSON, err = json.Marshal(d.Limits.AllowedDays)
		if err != nil {
			return fmt.Errorf("failed to marshal allowed_days: %w", err)
		}
	}

	query := `
		INSERT INTO delegations (
			id, kind, status, title, starts_at, ends_at,
			extendable, max_extensions, extension_days, extensions_used,
			max_amount, max_total_amount, currency,
			allowed_hours_start, allowed_hours_end, allowed_days,
			max_daily_ops, max_monthly_ops,
			requires_dual_control, requires_legal_review,
			requires_finance_check, requires_step_up_auth,
			scope, usage_count, usage_total_amount,
			decision_hash, head_hash, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18,
			$19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29
		)`

	_, err = q.Exec(ctx, query,
		d.ID, d.Kind, d.Status, d.Title, d.StartsAt, d.EndsAt,
		d.Extension.Extendable, d.Extension.MaxExtensions, d.Extension.ExtensionDays, d.Extension.ExtensionsUsed,
		d.Limits.MaxAmount, d.Limits.MaxTotalAmount, d.Limits.Currency,
		d.Limits.AllowedHoursStart, d.Limits.AllowedHoursEnd, allowedDaysJSON,
		d.Limits.MaxDailyOps, d.Limits.MaxMonthlyOps,
		d.Controls.RequiresDualControl, d.Controls.RequiresLegalReview,
		d.Controls.RequiresFinanceCheck, d.Controls.RequiresStepUpAuth,
		scopeJSON, d.UsageCount, d.UsageTotalAmount,
		d.DecisionHash, d.HeadHash, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create delegation: %w", err)
	}

	for i := range d.Actors {
		if err := r.insertActor(ctx, d.ID, &d.Actors[i]); err != nil {
			return err
		}
	}
	for i := range d.Policies {
		if err := r.insertPolicy(ctx, d.ID, &d.Policies[i]); err != nil {
			return err
		}
	}
	for i := range d.Engagements {
		if err := r.insertEngagement(ctx, d.ID, &d.Engagements[i]); err != nil {
			return err
		}
	}

	return nil
}

func (r *delegationRepository) insertActor(ctx context.Context, delegationID uuid.UUID, a *models.Actor) error {
	q := r.db.GetQuerier(ctx)
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.DelegationID = delegationID

	_, err := q.Exec(ctx, `
		INSERT INTO delegation_actors (id, delegation_id, role, name, email, external_ref)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.DelegationID, a.Role, a.Name, a.Email, a.ExternalRef)
	if err != nil {
		return fmt.Errorf("failed to create actor: %w", err)
	}
	return nil
}

func (r *delegationRepository) insertPolicy(ctx context.Context, delegationID uuid.UUID, p *models.Policy) error {
	q := r.db.GetQuerier(ctx)
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.DelegationID = delegationID

	_, err := q.Exec(ctx, `
		INSERT INTO delegation_policies (id, delegation_id, action, enabled, max_amount, currency)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.DelegationID, p.Action, p.Enabled, p.MaxAmount, p.Currency)
	if err != nil {
		return fmt.Errorf("failed to create policy: %w", err)
	}
	return nil
}

func (r *delegationRepository) insertEngagement(ctx context.Context, delegationID uuid.UUID, e *models.Engagement) error {
	q := r.db.GetQuerier(ctx)
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.DelegationID = delegationID

	var docsJSON []byte
	if len(e.RequiredDocs) > 0 {
		var err error
		docsJSON, err = json.Marshal(e.RequiredDocs)
		if err != nil {
			return fmt.Errorf("failed to marshal required_docs: %w", err)
		}
	}

	_, err := q.Exec(ctx, `
		INSERT INTO delegation_engagements (id, delegation_id, type, criticality, description, frequency, required_docs)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.DelegationID, e.Type, e.Criticality, e.Description, e.Frequency, docsJSON)
	if err != nil {
		return fmt.Errorf("failed to create engagement: %w", err)
	}
	return nil
}

const delegationColumns = `
	id, kind, status, title, starts_at, ends_at,
	extendable, max_extensions, extension_days, extensions_used,
	max_amount, max_total_amount, currency,
	allowed_hours_start, allowed_hours_end, allowed_days,
	max_daily_ops, max_monthly_ops,
	requires_dual_control, requires_legal_review,
	requires_finance_check, requires_step_up_auth,
	scope, usage_count, usage_total_amount, last_used_at,
	decision_hash, head_hash, ledger_halted, created_at, updated_at`

func (r *delegationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Delegation, error) {
	q := r.db.GetQuerier(ctx)

	row := q.QueryRow(ctx, `SELECT `+delegationColumns+` FROM delegations WHERE id = $1`, id)
	d, err := scanDelegation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}

	if err := r.loadChildren(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (r *delegationRepository) List(ctx context.Context, status models.DelegationStatus) ([]*models.Delegation, error) {
	q := r.db.GetQuerier(ctx)

	query := `SELECT ` + delegationColumns + ` FROM delegations`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list delegations: %w", err)
	}
	defer rows.Close()

	var delegations []*models.Delegation
	for rows.Next() {
		d, err := scanDelegation(rows)
		if err != nil {
			return nil, err
		}
		delegations = append(delegations, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating delegations: %w", err)
	}
	return delegations, nil
}

func (r *delegationRepository) loadChildren(ctx context.Context, d *models.Delegation) error {
	q := r.db.GetQuerier(ctx)

	rows, err := q.Query(ctx, `
		SELECT id, delegation_id, role, name, email, external_ref
		FROM delegation_actors WHERE delegation_id = $1 ORDER BY role, name`, d.ID)
	if err != nil {
		return fmt.Errorf("failed to query actors: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var a models.Actor
		if err := rows.Scan(&a.ID, &a.DelegationID, &a.Role, &a.Name, &a.Email, &a.ExternalRef); err != nil {
			return fmt.Errorf("failed to scan actor: %w", err)
		}
		d.Actors = append(d.Actors, a)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating actors: %w", err)
	}

	policyRows, err := q.Query(ctx, `
		SELECT id, delegation_id, action, enabled, max_amount, currency
		FROM delegation_policies WHERE delegation_id = $1 ORDER BY action`, d.ID)
	if err != nil {
		return fmt.Errorf("failed to query policies: %w", err)
	}
	defer policyRows.Close()
	for policyRows.Next() {
		var p models.Policy
		if err := policyRows.Scan(&p.ID, &p.DelegationID, &p.Action, &p.Enabled, &p.MaxAmount, &p.Currency); err != nil {
			return fmt.Errorf("failed to scan policy: %w", err)
		}
		d.Policies = append(d.Policies, p)
	}
	if err := policyRows.Err(); err != nil {
		return fmt.Errorf("error iterating policies: %w", err)
	}

	engagementRows, err := q.Query(ctx, `
		SELECT id, delegation_id, type, criticality, description, frequency, required_docs
		FROM delegation_engagements WHERE delegation_id = $1 ORDER BY criticality, type`, d.ID)
	if err != nil {
		return fmt.Errorf("failed to query engagements: %w", err)
	}
	defer engagementRows.Close()
	for engagementRows.Next() {
		var e models.Engagement
		var docsJSON []byte
		if err := engagementRows.Scan(&e.ID, &e.DelegationID, &e.Type, &e.Criticality, &e.Description, &e.Frequency, &docsJSON); err != nil {
			return fmt.Errorf("failed to scan engagement: %w", err)
		}
		if len(docsJSON) > 0 {
			if err := json.Unmarshal(docsJSON, &e.RequiredDocs); err != nil {
				return fmt.Errorf("failed to unmarshal required_docs: %w", err)
			}
		}
		d.Engagements = append(d.Engagements, e)
	}
	if err := engagementRows.Err(); err != nil {
		return fmt.Errorf("error iterating engagements: %w", err)
	}

	return nil
}

func (r *delegationRepository) SetHashes(ctx context.Context, id uuid.UUID, decisionHash, headHash string) error {
	return r.exec(ctx, `
		UPDATE delegations SET decision_hash = $2, head_hash = $3, updated_at = now()
		WHERE id = $1`, id, decisionHash, headHash)
}

func (r *delegationRepository) SetHeadHash(ctx context.Context, id uuid.UUID, headHash string) error {
	return r.exec(ctx, `
		UPDATE delegations SET head_hash = $2, updated_at = now()
		WHERE id = $1`, id, headHash)
}

func (r *delegationRepository) ApplyUsage(ctx context.Context, id uuid.UUID, amount int64, usedAt time.Time, headHash string) error {
	return r.exec(ctx, `
		UPDATE delegations SET
			usage_count = usage_count + 1,
			usage_total_amount = usage_total_amount + $2,
			last_used_at = $3,
			head_hash = $4,
			updated_at = now()
		WHERE id = $1`, id, amount, usedAt, headHash)
}

func (r *delegationRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.DelegationStatus, headHash string) error {
	return r.exec(ctx, `
		UPDATE delegations SET status = $2, head_hash = $3, updated_at = now()
		WHERE id = $1`, id, status, headHash)
}

func (r *delegationRepository) ApplyExtension(ctx context.Context, id uuid.UUID, newEndsAt time.Time, extensionsUsed int, headHash string) error {
	return r.exec(ctx, `
		UPDATE delegations SET ends_at = $2, extensions_used = $3, head_hash = $4, updated_at = now()
		WHERE id = $1`, id, newEndsAt, extensionsUsed, headHash)
}

func (r *delegationRepository) SetLedgerHalted(ctx context.Context, id uuid.UUID, halted bool) error {
	return r.exec(ctx, `
		UPDATE delegations SET ledger_halted = $2, updated_at = now()
		WHERE id = $1`, id, halted)
}

func (r *delegationRepository) exec(ctx context.Context, query string, args ...any) error {
	q := r.db.GetQuerier(ctx)
	tag, err := q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update delegation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *delegationRepository) CountByEffectiveStatus(ctx context.Context, now time.Time, expiringSoon time.Duration) (*models.DelegationStats, error) {
	q := r.db.GetQuerier(ctx)

	// Effective status is derived in SQL the same way the evaluator
	// derives it: revoked wins, then lazy expiry, then the stored value.
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'active' AND ends_at >= $1),
			COUNT(*) FILTER (WHERE status = 'suspended' AND ends_at >= $1),
			COUNT(*) FILTER (WHERE status IN ('active', 'suspended', 'expired') AND (status = 'expired' OR ends_at < $1)),
			COUNT(*) FILTER (WHERE status = 'revoked'),
			COUNT(*) FILTER (WHERE status = 'active' AND ends_at >= $1 AND ends_at < $2)
		FROM delegations`

	stats := &models.DelegationStats{}
	err := q.QueryRow(ctx, query, now, now.Add(expiringSoon)).Scan(
		&stats.Active, &stats.Suspended, &stats.Expired, &stats.Revoked, &stats.ExpiringSoon)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate delegation stats: %w", err)
	}
	return stats, nil
}

func scanDelegation(row pgx.Row) (*models.Delegation, error) {
	var d models.Delegation
	var scopeJSON, allowedDaysJSON []byte

	err := row.Scan(
		&d.ID, &d.Kind, &d.Status, &d.Title, &d.StartsAt, &d.EndsAt,
		&d.Extension.Extendable, &d.Extension.MaxExtensions, &d.Extension.ExtensionDays, &d.Extension.ExtensionsUsed,
		&d.Limits.MaxAmount, &d.Limits.MaxTotalAmount, &d.Limits.Currency,
		&d.Limits.AllowedHoursStart, &d.Limits.AllowedHoursEnd, &allowedDaysJSON,
		&d.Limits.MaxDailyOps, &d.Limits.MaxMonthlyOps,
		&d.Controls.RequiresDualControl, &d.Controls.RequiresLegalReview,
		&d.Controls.RequiresFinanceCheck, &d.Controls.RequiresStepUpAuth,
		&scopeJSON, &d.UsageCount, &d.UsageTotalAmount, &d.LastUsedAt,
		&d.DecisionHash, &d.HeadHash, &d.LedgerHalted, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan delegation: %w", err)
	}

	// Scope and allowed days are structured documents; validate them
	// here, at the persistence boundary, instead of per read site.
	if err := json.Unmarshal(scopeJSON, &d.Scope); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scope: %w", err)
	}
	if len(allowedDaysJSON) > 0 {
		if err := json.Unmarshal(allowedDaysJSON, &d.Limits.AllowedDays); err != nil {
			return nil, fmt.Errorf("failed to unmarshal allowed_days: %w", err)
		}
	}

	return &d, nil
}

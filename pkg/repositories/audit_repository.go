package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/chantierhq/delegation-engine/pkg/crypto"
	"github.com/chantierhq/delegation-engine/pkg/database"
	"github.com/chantierhq/delegation-engine/pkg/models"
)

// AuditRepository provides append and read access to the hash-chained
// audit ledger. Appends must run inside a delegation transaction
// (database.InDelegationTx) so the seq/prev-hash read and the insert are
// serialized per delegation.
type AuditRepository interface {
	// Append assigns the next sequence number, links the event to the
	// current chain head and inserts it. The event's Seq, PrevHash, Hash,
	// ID and OccurredAt fields are filled in.
	Append(ctx context.Context, event *models.AuditEvent) error

	// GetTrail returns a delegation's full ledger in sequence order.
	GetTrail(ctx context.Context, delegationID uuid.UUID) ([]*models.AuditEvent, error)

	// GetHead returns the last ledger event, or nil for an empty ledger.
	GetHead(ctx context.Context, delegationID uuid.UUID) (*models.AuditEvent, error)

	// GetRecent returns the newest events across all delegations.
	GetRecent(ctx context.Context, limit int) ([]*models.AuditEvent, error)
}

type auditRepository struct {
	db *database.DB
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(db *database.DB) AuditRepository {
	return &auditRepository{db: db}
}

var _ AuditRepository = (*auditRepository)(nil)

const auditEventColumns = `id, delegation_id, seq, type, actor, summary, payload, prev_hash, hash, occurred_at`

func (r *auditRepository) Append(ctx context.Context, event *models.AuditEvent) error {
	q := r.db.GetQuerier(ctx)

	head, err := r.GetHead(ctx, event.DelegationID)
	if err != nil {
		return err
	}

	event.Seq = 1
	event.PrevHash = ""
	if head != nil {
		event.Seq = head.Seq + 1
		event.PrevHash = head.Hash
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	hash, err := crypto.EventHash(event, event.PrevHash)
	if err != nil {
		return fmt.Errorf("failed to hash audit event: %w", err)
	}
	event.Hash = hash

	// Payload is stored as text: re-encoding through jsonb would
	// normalize key order and break hash recomputation.
	var payload *string
	if len(event.Payload) > 0 {
		s := string(event.Payload)
		payload = &s
	}

	_, err = q.Exec(ctx, `
		INSERT INTO delegation_audit_events (`+auditEventColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		event.ID, event.DelegationID, event.Seq, event.Type, event.Actor,
		event.Summary, payload, event.PrevHash, event.Hash, event.OccurredAt)
	if err != nil {
		return fmt.Errorf("failed to append audit event: %w", err)
	}
	return nil
}

func (r *auditRepository) GetTrail(ctx context.Context, delegationID uuid.UUID) ([]*models.AuditEvent, error) {
	q := r.db.GetQuerier(ctx)

	rows, err := q.Query(ctx, `
		SELECT `+auditEventColumns+`
		FROM delegation_audit_events
		WHERE delegation_id = $1
		ORDER BY seq ASC`, delegationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit trail: %w", err)
	}
	defer rows.Close()

	var events []*models.AuditEvent
	for rows.Next() {
		e, err := scanAuditEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit events: %w", err)
	}
	return events, nil
}

func (r *auditRepository) GetHead(ctx context.Context, delegationID uuid.UUID) (*models.AuditEvent, error) {
	q := r.db.GetQuerier(ctx)

	row := q.QueryRow(ctx, `
		SELECT `+auditEventColumns+`
		FROM delegation_audit_events
		WHERE delegation_id = $1
		ORDER BY seq DESC
		LIMIT 1`, delegationID)

	e, err := scanAuditEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return e, nil
}

func (r *auditRepository) GetRecent(ctx context.Context, limit int) ([]*models.AuditEvent, error) {
	q := r.db.GetQuerier(ctx)

	rows, err := q.Query(ctx, `
		SELECT `+auditEventColumns+`
		FROM delegation_audit_events
		ORDER BY occurred_at DESC, seq DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent audit events: %w", err)
	}
	defer rows.Close()

	var events []*models.AuditEvent
	for rows.Next() {
		e, err := scanAuditEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit events: %w", err)
	}
	return events, nil
}

func scanAuditEvent(row pgx.Row) (*models.AuditEvent, error) {
	var e models.AuditEvent
	var payload *string

	err := row.Scan(&e.ID, &e.DelegationID, &e.Seq, &e.Type, &e.Actor,
		&e.Summary, &payload, &e.PrevHash, &e.Hash, &e.OccurredAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan audit event: %w", err)
	}
	if payload != nil {
		e.Payload = []byte(*payload)
	}
	return &e, nil
}

package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/chantierhq/delegation-engine/pkg/apperrors"
	"github.com/chantierhq/delegation-engine/pkg/crypto"
	"github.com/chantierhq/delegation-engine/pkg/models"
	"github.com/chantierhq/delegation-engine/pkg/repositories"
)

// fakeTxRunner runs the transaction body directly. Lock and commit
// semantics are covered by the repository integration tests.
type fakeTxRunner struct {
	calls int
}

func (f *fakeTxRunner) InDelegationTx(ctx context.Context, _ uuid.UUID, fn func(ctx context.Context) error) error {
	f.calls++
	return fn(ctx)
}

type mockDelegationRepo struct {
	delegations map[uuid.UUID]*models.Delegation
	stats       *models.DelegationStats
	createErr   error
}

var _ repositories.DelegationRepository = (*mockDelegationRepo)(nil)

func newMockDelegationRepo(ds ...*models.Delegation) *mockDelegationRepo {
	repo := &mockDelegationRepo{delegations: make(map[uuid.UUID]*models.Delegation)}
	for _, d := range ds {
		repo.delegations[d.ID] = d
	}
	return repo
}

func (m *mockDelegationRepo) Create(_ context.Context, d *models.Delegation) error {
	if m.createErr != nil {
		return m.createErr
	}
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	d.CreatedAt = time.Now()
	d.UpdatedAt = d.CreatedAt
	m.delegations[d.ID] = d
	return nil
}

func (m *mockDelegationRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Delegation, error) {
	d, ok := m.delegations[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return d, nil
}

func (m *mockDelegationRepo) List(_ context.Context, status models.DelegationStatus) ([]*models.Delegation, error) {
	var out []*models.Delegation
	for _, d := range m.delegations {
		if status == "" || d.Status == status {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *mockDelegationRepo) SetHashes(_ context.Context, id uuid.UUID, decisionHash, headHash string) error {
	d, ok := m.delegations[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	d.DecisionHash = decisionHash
	d.HeadHash = headHash
	return nil
}

func (m *mockDelegationRepo) SetHeadHash(_ context.Context, id uuid.UUID, headHash string) error {
	d, ok := m.delegations[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	d.HeadHash = headHash
	return nil
}

func (m *mockDelegationRepo) ApplyUsage(_ context.Context, id uuid.UUID, amount int64, usedAt time.Time, headHash string) error {
	d, ok := m.delegations[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	d.UsageCount++
	d.UsageTotalAmount += amount
	d.LastUsedAt = &usedAt
	d.HeadHash = headHash
	return nil
}

func (m *mockDelegationRepo) UpdateStatus(_ context.Context, id uuid.UUID, status models.DelegationStatus, headHash string) error {
	d, ok := m.delegations[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	d.Status = status
	d.HeadHash = headHash
	return nil
}

func (m *mockDelegationRepo) ApplyExtension(_ context.Context, id uuid.UUID, newEndsAt time.Time, extensionsUsed int, headHash string) error {
	d, ok := m.delegations[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	d.EndsAt = newEndsAt
	d.Extension.ExtensionsUsed = extensionsUsed
	d.HeadHash = headHash
	return nil
}

func (m *mockDelegationRepo) SetLedgerHalted(_ context.Context, id uuid.UUID, halted bool) error {
	d, ok := m.delegations[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	d.LedgerHalted = halted
	return nil
}

func (m *mockDelegationRepo) CountByEffectiveStatus(_ context.Context, _ time.Time, _ time.Duration) (*models.DelegationStats, error) {
	if m.stats == nil {
		return &models.DelegationStats{}, nil
	}
	stats := *m.stats
	return &stats, nil
}

// mockAuditRepo keeps per-delegation ledgers in memory and chains hashes
// exactly like the real repository.
type mockAuditRepo struct {
	events    map[uuid.UUID][]*models.AuditEvent
	appendErr error
}

var _ repositories.AuditRepository = (*mockAuditRepo)(nil)

func newMockAuditRepo() *mockAuditRepo {
	return &mockAuditRepo{events: make(map[uuid.UUID][]*models.AuditEvent)}
}

func (m *mockAuditRepo) Append(_ context.Context, event *models.AuditEvent) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	trail := m.events[event.DelegationID]
	event.Seq = 1
	event.PrevHash = ""
	if len(trail) > 0 {
		head := trail[len(trail)-1]
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
		return err
	}
	event.Hash = hash
	m.events[event.DelegationID] = append(trail, event)
	return nil
}

func (m *mockAuditRepo) GetTrail(_ context.Context, delegationID uuid.UUID) ([]*models.AuditEvent, error) {
	return m.events[delegationID], nil
}

func (m *mockAuditRepo) GetHead(_ context.Context, delegationID uuid.UUID) (*models.AuditEvent, error) {
	trail := m.events[delegationID]
	if len(trail) == 0 {
		return nil, nil
	}
	return trail[len(trail)-1], nil
}

func (m *mockAuditRepo) GetRecent(_ context.Context, limit int) ([]*models.AuditEvent, error) {
	var all []*models.AuditEvent
	for _, trail := range m.events {
		all = append(all, trail...)
	}
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

type mockUsageRepo struct {
	records []*models.UsageRecord
}

var _ repositories.UsageRepository = (*mockUsageRepo)(nil)

func (m *mockUsageRepo) Create(_ context.Context, rec *models.UsageRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *mockUsageRepo) CountSince(_ context.Context, delegationID uuid.UUID, since time.Time) (int, error) {
	count := 0
	for _, rec := range m.records {
		if rec.DelegationID == delegationID && !rec.UsedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (m *mockUsageRepo) GetByDelegation(_ context.Context, delegationID uuid.UUID, limit int) ([]*models.UsageRecord, error) {
	var out []*models.UsageRecord
	for _, rec := range m.records {
		if rec.DelegationID == delegationID {
			out = append(out, rec)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockUsageRepo) Totals(_ context.Context) (int, int64, error) {
	var total int64
	for _, rec := range m.records {
		if rec.Amount != nil {
			total += *rec.Amount
		}
	}
	return len(m.records), total, nil
}

package tools

import (
	"context"

	"github.com/google/uuid"

	"github.com/chantierhq/delegation-engine/pkg/models"
	"github.com/chantierhq/delegation-engine/pkg/services"
)

type mockDelegationService struct {
	getFn  func(ctx context.Context, id uuid.UUID) (*models.Delegation, error)
	listFn func(ctx context.Context, status models.DelegationStatus) ([]*models.Delegation, error)
}

var _ services.DelegationService = (*mockDelegationService)(nil)

func (m *mockDelegationService) Create(ctx context.Context, d *models.Delegation) (*models.Delegation, error) {
	panic("not implemented")
}

func (m *mockDelegationService) Get(ctx context.Context, id uuid.UUID) (*models.Delegation, error) {
	return m.getFn(ctx, id)
}

func (m *mockDelegationService) List(ctx context.Context, status models.DelegationStatus) ([]*models.Delegation, error) {
	return m.listFn(ctx, status)
}

func (m *mockDelegationService) ComplianceReport(ctx context.Context, id uuid.UUID) (*models.ComplianceReport, error) {
	panic("not implemented")
}

type mockEvaluationService struct {
	evaluateFn func(ctx context.Context, id uuid.UUID, action models.DelegationAction,
		evalCtx models.EvaluationContext, evidence models.Evidence) (*models.PolicyEvaluationResult, error)
}

var _ services.EvaluationService = (*mockEvaluationService)(nil)

func (m *mockEvaluationService) Evaluate(ctx context.Context, id uuid.UUID, action models.DelegationAction,
	evalCtx models.EvaluationContext, evidence models.Evidence) (*models.PolicyEvaluationResult, error) {
	return m.evaluateFn(ctx, id, action, evalCtx, evidence)
}

func (m *mockEvaluationService) Execute(ctx context.Context, id uuid.UUID, action models.DelegationAction,
	evalCtx models.EvaluationContext, evidence models.Evidence, actor string) (*models.PolicyEvaluationResult, *models.UsageRecord, error) {
	panic("not implemented")
}

type mockAuditService struct {
	trailFn  func(ctx context.Context, id uuid.UUID) ([]*models.AuditEvent, error)
	verifyFn func(ctx context.Context, id uuid.UUID) (*models.VerificationResult, error)
}

var _ services.AuditService = (*mockAuditService)(nil)

func (m *mockAuditService) GetTrail(ctx context.Context, id uuid.UUID) ([]*models.AuditEvent, error) {
	return m.trailFn(ctx, id)
}

func (m *mockAuditService) VerifyIntegrity(ctx context.Context, id uuid.UUID) (*models.VerificationResult, error) {
	return m.verifyFn(ctx, id)
}

func (m *mockAuditService) RecordCorrection(ctx context.Context, id uuid.UUID, actor, note string) (*models.AuditEvent, error) {
	panic("not implemented")
}

type mockStatsService struct {
	statsFn func(ctx context.Context) (*models.DelegationStats, error)
}

var _ services.StatsService = (*mockStatsService)(nil)

func (m *mockStatsService) GetStats(ctx context.Context) (*models.DelegationStats, error) {
	return m.statsFn(ctx)
}

func (m *mockStatsService) RecentActivity(ctx context.Context, limit int) ([]*models.AuditEvent, error) {
	panic("not implemented")
}

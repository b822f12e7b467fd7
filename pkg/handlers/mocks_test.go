package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/chantierhq/delegation-engine/pkg/auth"
	"github.com/chantierhq/delegation-engine/pkg/models"
	"github.com/chantierhq/delegation-engine/pkg/services"
)

// passthroughAuth is the no-op auth wrapper used by handler tests.
func passthroughAuth(next http.HandlerFunc) http.HandlerFunc { return next }

// claimsAuth injects fixed claims, simulating an authenticated request.
func claimsAuth(claims *auth.Claims) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), auth.ClaimsKey, claims)
			next(w, r.WithContext(ctx))
		}
	}
}

type mockDelegationService struct {
	createFn     func(ctx context.Context, d *models.Delegation) (*models.Delegation, error)
	getFn        func(ctx context.Context, id uuid.UUID) (*models.Delegation, error)
	listFn       func(ctx context.Context, status models.DelegationStatus) ([]*models.Delegation, error)
	complianceFn func(ctx context.Context, id uuid.UUID) (*models.ComplianceReport, error)
}

var _ services.DelegationService = (*mockDelegationService)(nil)

func (m *mockDelegationService) Create(ctx context.Context, d *models.Delegation) (*models.Delegation, error) {
	return m.createFn(ctx, d)
}

func (m *mockDelegationService) Get(ctx context.Context, id uuid.UUID) (*models.Delegation, error) {
	return m.getFn(ctx, id)
}

func (m *mockDelegationService) List(ctx context.Context, status models.DelegationStatus) ([]*models.Delegation, error) {
	return m.listFn(ctx, status)
}

func (m *mockDelegationService) ComplianceReport(ctx context.Context, id uuid.UUID) (*models.ComplianceReport, error) {
	return m.complianceFn(ctx, id)
}

type mockEvaluationService struct {
	evaluateFn func(ctx context.Context, id uuid.UUID, action models.DelegationAction,
		evalCtx models.EvaluationContext, evidence models.Evidence) (*models.PolicyEvaluationResult, error)
	executeFn func(ctx context.Context, id uuid.UUID, action models.DelegationAction,
		evalCtx models.EvaluationContext, evidence models.Evidence, actor string) (*models.PolicyEvaluationResult, *models.UsageRecord, error)
}

var _ services.EvaluationService = (*mockEvaluationService)(nil)

func (m *mockEvaluationService) Evaluate(ctx context.Context, id uuid.UUID, action models.DelegationAction,
	evalCtx models.EvaluationContext, evidence models.Evidence) (*models.PolicyEvaluationResult, error) {
	return m.evaluateFn(ctx, id, action, evalCtx, evidence)
}

func (m *mockEvaluationService) Execute(ctx context.Context, id uuid.UUID, action models.DelegationAction,
	evalCtx models.EvaluationContext, evidence models.Evidence, actor string) (*models.PolicyEvaluationResult, *models.UsageRecord, error) {
	return m.executeFn(ctx, id, action, evalCtx, evidence, actor)
}

type mockLifecycleService struct {
	suspendFn func(ctx context.Context, id uuid.UUID, actor, reason string) (*models.Delegation, error)
	resumeFn  func(ctx context.Context, id uuid.UUID, actor string) (*models.Delegation, error)
	revokeFn  func(ctx context.Context, id uuid.UUID, actor, reason string) (*models.Delegation, error)
	extendFn  func(ctx context.Context, id uuid.UUID, actor string) (*models.Delegation, error)
}

var _ services.LifecycleService = (*mockLifecycleService)(nil)

func (m *mockLifecycleService) Suspend(ctx context.Context, id uuid.UUID, actor, reason string) (*models.Delegation, error) {
	return m.suspendFn(ctx, id, actor, reason)
}

func (m *mockLifecycleService) Resume(ctx context.Context, id uuid.UUID, actor string) (*models.Delegation, error) {
	return m.resumeFn(ctx, id, actor)
}

func (m *mockLifecycleService) Revoke(ctx context.Context, id uuid.UUID, actor, reason string) (*models.Delegation, error) {
	return m.revokeFn(ctx, id, actor, reason)
}

func (m *mockLifecycleService) Extend(ctx context.Context, id uuid.UUID, actor string) (*models.Delegation, error) {
	return m.extendFn(ctx, id, actor)
}

type mockAuditService struct {
	trailFn   func(ctx context.Context, id uuid.UUID) ([]*models.AuditEvent, error)
	verifyFn  func(ctx context.Context, id uuid.UUID) (*models.VerificationResult, error)
	correctFn func(ctx context.Context, id uuid.UUID, actor, note string) (*models.AuditEvent, error)
}

var _ services.AuditService = (*mockAuditService)(nil)

func (m *mockAuditService) GetTrail(ctx context.Context, id uuid.UUID) ([]*models.AuditEvent, error) {
	return m.trailFn(ctx, id)
}

func (m *mockAuditService) VerifyIntegrity(ctx context.Context, id uuid.UUID) (*models.VerificationResult, error) {
	return m.verifyFn(ctx, id)
}

func (m *mockAuditService) RecordCorrection(ctx context.Context, id uuid.UUID, actor, note string) (*models.AuditEvent, error) {
	return m.correctFn(ctx, id, actor, note)
}

type mockStatsService struct {
	statsFn    func(ctx context.Context) (*models.DelegationStats, error)
	activityFn func(ctx context.Context, limit int) ([]*models.AuditEvent, error)
}

var _ services.StatsService = (*mockStatsService)(nil)

func (m *mockStatsService) GetStats(ctx context.Context) (*models.DelegationStats, error) {
	return m.statsFn(ctx)
}

func (m *mockStatsService) RecentActivity(ctx context.Context, limit int) ([]*models.AuditEvent, error) {
	return m.activityFn(ctx, limit)
}

package tools

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/chantierhq/delegation-engine/pkg/apperrors"
	"github.com/chantierhq/delegation-engine/pkg/models"
)

func TestGetAuditTrailTool(t *testing.T) {
	id := uuid.New()
	deps := &AuditToolDeps{
		AuditService: &mockAuditService{
			trailFn: func(context.Context, uuid.UUID) ([]*models.AuditEvent, error) {
				return []*models.AuditEvent{
					{ID: uuid.New(), DelegationID: id, Seq: 1, Type: models.EventCreated, OccurredAt: time.Now().UTC()},
					{ID: uuid.New(), DelegationID: id, Seq: 2, Type: models.EventUsed, OccurredAt: time.Now().UTC()},
				}, nil
			},
		},
		Logger: zaptest.NewLogger(t),
	}

	s := server.NewMCPServer("test", "1.0.0", server.WithToolCapabilities(true))
	RegisterAuditTools(s, deps)

	text, isErr := callTool(t, s, "get_audit_trail", map[string]any{"delegation_id": id.String()})
	require.False(t, isErr)

	var result struct {
		Events []*models.AuditEvent `json:"events"`
		Count  int                  `json:"count"`
	}
	require.NoError(t, json.Unmarshal([]byte(text), &result))
	assert.Equal(t, 2, result.Count)
	assert.Equal(t, models.EventUsed, result.Events[1].Type)
}

func TestGetAuditTrailToolNotFound(t *testing.T) {
	deps := &AuditToolDeps{
		AuditService: &mockAuditService{
			trailFn: func(context.Context, uuid.UUID) ([]*models.AuditEvent, error) {
				return nil, apperrors.ErrNotFound
			},
		},
		Logger: zaptest.NewLogger(t),
	}

	s := server.NewMCPServer("test", "1.0.0", server.WithToolCapabilities(true))
	RegisterAuditTools(s, deps)

	text, isErr := callTool(t, s, "get_audit_trail", map[string]any{"delegation_id": uuid.NewString()})
	assert.True(t, isErr)
	assert.Contains(t, text, "delegation_not_found")
}

func TestVerifyAuditChainTool(t *testing.T) {
	seq := 2
	deps := &AuditToolDeps{
		AuditService: &mockAuditService{
			verifyFn: func(context.Context, uuid.UUID) (*models.VerificationResult, error) {
				return &models.VerificationResult{Valid: false, EventsChecked: 4, FirstInvalidSeq: &seq}, nil
			},
		},
		Logger: zaptest.NewLogger(t),
	}

	s := server.NewMCPServer("test", "1.0.0", server.WithToolCapabilities(true))
	RegisterAuditTools(s, deps)

	text, isErr := callTool(t, s, "verify_audit_chain", map[string]any{"delegation_id": uuid.NewString()})
	require.False(t, isErr)

	var result models.VerificationResult
	require.NoError(t, json.Unmarshal([]byte(text), &result))
	assert.False(t, result.Valid)
	require.NotNil(t, result.FirstInvalidSeq)
	assert.Equal(t, 2, *result.FirstInvalidSeq)
}

func TestGetDelegationStatsTool(t *testing.T) {
	deps := &StatsToolDeps{
		StatsService: &mockStatsService{
			statsFn: func(context.Context) (*models.DelegationStats, error) {
				return &models.DelegationStats{Active: 4, ExpiringSoon: 1, TotalUsageCount: 12}, nil
			},
		},
		Logger: zaptest.NewLogger(t),
	}

	s := server.NewMCPServer("test", "1.0.0", server.WithToolCapabilities(true))
	RegisterStatsTools(s, deps)

	text, isErr := callTool(t, s, "get_delegation_stats", nil)
	require.False(t, isErr)

	var stats models.DelegationStats
	require.NoError(t, json.Unmarshal([]byte(text), &stats))
	assert.Equal(t, 4, stats.Active)
	assert.Equal(t, 1, stats.ExpiringSoon)
}

package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"github.com/chantierhq/delegation-engine/pkg/models"
)

func TestStatsEndpoint(t *testing.T) {
	svc := &mockStatsService{
		statsFn: func(context.Context) (*models.DelegationStats, error) {
			return &models.DelegationStats{
				Active:           3,
				Suspended:        1,
				ExpiringSoon:     2,
				TotalUsageCount:  17,
				TotalUsageAmount: 4250000,
			}, nil
		},
	}

	mux := http.NewServeMux()
	NewStatsHandler(svc, zaptest.NewLogger(t)).RegisterRoutes(mux, passthroughAuth)

	r := httptest.NewRequest("GET", "/api/stats", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"active":3`)
	assert.Contains(t, w.Body.String(), `"total_usage_amount":4250000`)
}

func TestActivityEndpointForwardsLimit(t *testing.T) {
	var gotLimit int
	svc := &mockStatsService{
		activityFn: func(_ context.Context, limit int) ([]*models.AuditEvent, error) {
			gotLimit = limit
			return []*models.AuditEvent{}, nil
		},
	}

	mux := http.NewServeMux()
	NewStatsHandler(svc, zaptest.NewLogger(t)).RegisterRoutes(mux, passthroughAuth)

	r := httptest.NewRequest("GET", "/api/stats/activity?limit=5", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, gotLimit)
	assert.Contains(t, w.Body.String(), `"events"`)
}

func TestActivityEndpointNonNumericLimit(t *testing.T) {
	// A garbage limit degrades to zero; the service applies its default.
	var gotLimit int
	svc := &mockStatsService{
		activityFn: func(_ context.Context, limit int) ([]*models.AuditEvent, error) {
			gotLimit = limit
			return nil, nil
		},
	}

	mux := http.NewServeMux()
	NewStatsHandler(svc, zaptest.NewLogger(t)).RegisterRoutes(mux, passthroughAuth)

	r := httptest.NewRequest("GET", "/api/stats/activity?limit=banana", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, gotLimit)
}

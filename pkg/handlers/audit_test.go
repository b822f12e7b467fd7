package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"github.com/chantierhq/delegation-engine/pkg/apperrors"
	"github.com/chantierhq/delegation-engine/pkg/models"
)

func newAuditMux(t *testing.T, svc *mockAuditService) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()
	NewAuditHandler(svc, zaptest.NewLogger(t)).RegisterRoutes(mux, passthroughAuth)
	return mux
}

func TestAuditTrailEndpoint(t *testing.T) {
	id := uuid.New()
	svc := &mockAuditService{
		trailFn: func(context.Context, uuid.UUID) ([]*models.AuditEvent, error) {
			return []*models.AuditEvent{
				{ID: uuid.New(), DelegationID: id, Seq: 1, Type: models.EventCreated, OccurredAt: time.Now().UTC()},
				{ID: uuid.New(), DelegationID: id, Seq: 2, Type: models.EventUsed, OccurredAt: time.Now().UTC()},
			}, nil
		},
	}
	mux := newAuditMux(t, svc)

	r := httptest.NewRequest("GET", "/api/delegations/"+id.String()+"/audit", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"seq":1`)
	assert.Contains(t, w.Body.String(), "USED")
}

func TestAuditTrailEndpointNotFound(t *testing.T) {
	svc := &mockAuditService{
		trailFn: func(context.Context, uuid.UUID) ([]*models.AuditEvent, error) {
			return nil, apperrors.ErrNotFound
		},
	}
	mux := newAuditMux(t, svc)

	r := httptest.NewRequest("GET", "/api/delegations/"+uuid.NewString()+"/audit", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAuditVerifyEndpoint(t *testing.T) {
	svc := &mockAuditService{
		verifyFn: func(context.Context, uuid.UUID) (*models.VerificationResult, error) {
			return &models.VerificationResult{Valid: true, EventsChecked: 4, HeadMatches: true}, nil
		},
	}
	mux := newAuditMux(t, svc)

	r := httptest.NewRequest("GET", "/api/delegations/"+uuid.NewString()+"/audit/verify", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"valid":true`)
}

func TestAuditVerifyEndpointReportsBreak(t *testing.T) {
	// A detected break is still a 200: the result body carries the finding.
	seq := 3
	svc := &mockAuditService{
		verifyFn: func(context.Context, uuid.UUID) (*models.VerificationResult, error) {
			return &models.VerificationResult{Valid: false, EventsChecked: 5, FirstInvalidSeq: &seq}, nil
		},
	}
	mux := newAuditMux(t, svc)

	r := httptest.NewRequest("GET", "/api/delegations/"+uuid.NewString()+"/audit/verify", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"valid":false`)
	assert.Contains(t, w.Body.String(), `"first_invalid_seq":3`)
}

func TestAuditCorrectionEndpoint(t *testing.T) {
	id := uuid.New()
	var gotNote string
	svc := &mockAuditService{
		correctFn: func(_ context.Context, _ uuid.UUID, _ string, note string) (*models.AuditEvent, error) {
			gotNote = note
			return &models.AuditEvent{ID: uuid.New(), DelegationID: id, Seq: 6, Type: models.EventCorrected}, nil
		},
	}
	mux := newAuditMux(t, svc)

	body := `{"note":"Re-anchored after incident INC-42"}`
	r := httptest.NewRequest("POST", "/api/delegations/"+id.String()+"/audit/corrections", strings.NewReader(body))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Re-anchored after incident INC-42", gotNote)
	assert.Contains(t, w.Body.String(), "CORRECTED")
}

func TestAuditCorrectionEndpointRequiresHaltedLedger(t *testing.T) {
	svc := &mockAuditService{
		correctFn: func(context.Context, uuid.UUID, string, string) (*models.AuditEvent, error) {
			return nil, fmt.Errorf("%w: ledger is not halted", apperrors.ErrConflict)
		},
	}
	mux := newAuditMux(t, svc)

	r := httptest.NewRequest("POST", "/api/delegations/"+uuid.NewString()+"/audit/corrections",
		strings.NewReader(`{"note":"x"}`))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusConflict, w.Code)
}

package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/chantierhq/delegation-engine/pkg/authz"
	"github.com/chantierhq/delegation-engine/pkg/models"
	"github.com/chantierhq/delegation-engine/pkg/services"
)

// DelegationHandler handles delegation CRUD and compliance endpoints.
type DelegationHandler struct {
	service services.DelegationService
	logger  *zap.Logger
}

// NewDelegationHandler creates a new DelegationHandler.
func NewDelegationHandler(service services.DelegationService, logger *zap.Logger) *DelegationHandler {
	return &DelegationHandler{service: service, logger: logger.Named("delegation-handler")}
}

// RegisterRoutes registers the delegation routes on the given mux.
// authWrapper is applied to every route.
func (h *DelegationHandler) RegisterRoutes(mux *http.ServeMux, authWrapper func(http.HandlerFunc) http.HandlerFunc) {
	mux.HandleFunc("POST /api/delegations", authWrapper(h.Create))
	mux.HandleFunc("GET /api/delegations", authWrapper(h.List))
	mux.HandleFunc("GET /api/delegations/{did}", authWrapper(h.Get))
	mux.HandleFunc("GET /api/delegations/{did}/compliance", authWrapper(h.Compliance))
}

// delegationResponse is a delegation decorated with its effective status,
// which can differ from the stored status once the window has passed.
type delegationResponse struct {
	*models.Delegation
	EffectiveStatus models.DelegationStatus `json:"effective_status"`
}

func toDelegationResponse(d *models.Delegation, now time.Time) delegationResponse {
	return delegationResponse{
		Delegation:      d,
		EffectiveStatus: authz.EffectiveStatus(d.Status, d.EndsAt, now),
	}
}

// Create handles POST /api/delegations.
func (h *DelegationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.Delegation
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	created, err := h.service.Create(r.Context(), &req)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, toDelegationResponse(created, time.Now().UTC())); err != nil {
		h.logger.Error("Failed to encode delegation", zap.Error(err))
	}
}

// List handles GET /api/delegations. An optional status query parameter
// filters by stored status.
func (h *DelegationHandler) List(w http.ResponseWriter, r *http.Request) {
	status := models.DelegationStatus(r.URL.Query().Get("status"))

	delegations, err := h.service.List(r.Context(), status)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	now := time.Now().UTC()
	out := make([]delegationResponse, 0, len(delegations))
	for _, d := range delegations {
		out = append(out, toDelegationResponse(d, now))
	}

	if err := WriteJSON(w, http.StatusOK, map[string]any{"delegations": out}); err != nil {
		h.logger.Error("Failed to encode delegations", zap.Error(err))
	}
}

// Get handles GET /api/delegations/{did}.
func (h *DelegationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseDelegationID(w, r, h.logger)
	if !ok {
		return
	}

	d, err := h.service.Get(r.Context(), id)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, toDelegationResponse(d, time.Now().UTC())); err != nil {
		h.logger.Error("Failed to encode delegation", zap.Error(err))
	}
}

// Compliance handles GET /api/delegations/{did}/compliance.
func (h *DelegationHandler) Compliance(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseDelegationID(w, r, h.logger)
	if !ok {
		return
	}

	report, err := h.service.ComplianceReport(r.Context(), id)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, report); err != nil {
		h.logger.Error("Failed to encode compliance report", zap.Error(err))
	}
}

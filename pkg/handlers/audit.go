package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/chantierhq/delegation-engine/pkg/services"
)

// AuditHandler handles audit trail and chain verification endpoints.
type AuditHandler struct {
	service services.AuditService
	logger  *zap.Logger
}

// NewAuditHandler creates a new AuditHandler.
func NewAuditHandler(service services.AuditService, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{service: service, logger: logger.Named("audit-handler")}
}

// RegisterRoutes registers the audit routes on the given mux.
func (h *AuditHandler) RegisterRoutes(mux *http.ServeMux, authWrapper func(http.HandlerFunc) http.HandlerFunc) {
	mux.HandleFunc("GET /api/delegations/{did}/audit", authWrapper(h.Trail))
	mux.HandleFunc("GET /api/delegations/{did}/audit/verify", authWrapper(h.Verify))
	mux.HandleFunc("POST /api/delegations/{did}/audit/corrections", authWrapper(h.Correct))
}

// Trail handles GET /api/delegations/{did}/audit.
func (h *AuditHandler) Trail(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseDelegationID(w, r, h.logger)
	if !ok {
		return
	}

	events, err := h.service.GetTrail(r.Context(), id)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, map[string]any{"events": events}); err != nil {
		h.logger.Error("Failed to encode audit trail", zap.Error(err))
	}
}

// Verify handles GET /api/delegations/{did}/audit/verify. It recomputes
// the whole chain; a detected break halts the ledger as a side effect.
func (h *AuditHandler) Verify(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseDelegationID(w, r, h.logger)
	if !ok {
		return
	}

	result, err := h.service.VerifyIntegrity(r.Context(), id)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to encode verification result", zap.Error(err))
	}
}

type correctionRequest struct {
	Note string `json:"note"`
}

// Correct handles POST /api/delegations/{did}/audit/corrections.
func (h *AuditHandler) Correct(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseDelegationID(w, r, h.logger)
	if !ok {
		return
	}

	var req correctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	event, err := h.service.RecordCorrection(r.Context(), id, requestActor(r), req.Note)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, event); err != nil {
		h.logger.Error("Failed to encode correction event", zap.Error(err))
	}
}

package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/chantierhq/delegation-engine/pkg/models"
	"github.com/chantierhq/delegation-engine/pkg/services"
)

// LifecycleHandler handles suspend, resume, revoke and extend endpoints.
type LifecycleHandler struct {
	service services.LifecycleService
	logger  *zap.Logger
}

// NewLifecycleHandler creates a new LifecycleHandler.
func NewLifecycleHandler(service services.LifecycleService, logger *zap.Logger) *LifecycleHandler {
	return &LifecycleHandler{service: service, logger: logger.Named("lifecycle-handler")}
}

// RegisterRoutes registers the lifecycle routes on the given mux.
func (h *LifecycleHandler) RegisterRoutes(mux *http.ServeMux, authWrapper func(http.HandlerFunc) http.HandlerFunc) {
	mux.HandleFunc("POST /api/delegations/{did}/suspend", authWrapper(h.Suspend))
	mux.HandleFunc("POST /api/delegations/{did}/resume", authWrapper(h.Resume))
	mux.HandleFunc("POST /api/delegations/{did}/revoke", authWrapper(h.Revoke))
	mux.HandleFunc("POST /api/delegations/{did}/extend", authWrapper(h.Extend))
}

type lifecycleRequest struct {
	Reason string `json:"reason"`
}

func (h *LifecycleHandler) Suspend(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseDelegationID(w, r, h.logger)
	if !ok {
		return
	}

	var req lifecycleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	d, err := h.service.Suspend(r.Context(), id, requestActor(r), req.Reason)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	h.writeDelegation(w, d)
}

func (h *LifecycleHandler) Resume(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseDelegationID(w, r, h.logger)
	if !ok {
		return
	}

	d, err := h.service.Resume(r.Context(), id, requestActor(r))
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	h.writeDelegation(w, d)
}

func (h *LifecycleHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseDelegationID(w, r, h.logger)
	if !ok {
		return
	}

	// The reason body is optional for revocation.
	var req lifecycleRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	d, err := h.service.Revoke(r.Context(), id, requestActor(r), req.Reason)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	h.writeDelegation(w, d)
}

func (h *LifecycleHandler) Extend(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseDelegationID(w, r, h.logger)
	if !ok {
		return
	}

	d, err := h.service.Extend(r.Context(), id, requestActor(r))
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	h.writeDelegation(w, d)
}

func (h *LifecycleHandler) writeDelegation(w http.ResponseWriter, d *models.Delegation) {
	if err := WriteJSON(w, http.StatusOK, toDelegationResponse(d, time.Now().UTC())); err != nil {
		h.logger.Error("Failed to encode delegation", zap.Error(err))
	}
}

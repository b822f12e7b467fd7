package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/chantierhq/delegation-engine/pkg/auth"
	"github.com/chantierhq/delegation-engine/pkg/models"
	"github.com/chantierhq/delegation-engine/pkg/services"
)

// EvaluationHandler handles the evaluate (dry-run) and execute endpoints.
type EvaluationHandler struct {
	service services.EvaluationService
	logger  *zap.Logger
}

// NewEvaluationHandler creates a new EvaluationHandler.
func NewEvaluationHandler(service services.EvaluationService, logger *zap.Logger) *EvaluationHandler {
	return &EvaluationHandler{service: service, logger: logger.Named("evaluation-handler")}
}

// RegisterRoutes registers the evaluation routes on the given mux.
func (h *EvaluationHandler) RegisterRoutes(mux *http.ServeMux, authWrapper func(http.HandlerFunc) http.HandlerFunc) {
	mux.HandleFunc("POST /api/delegations/{did}/evaluate", authWrapper(h.Evaluate))
	mux.HandleFunc("POST /api/delegations/{did}/execute", authWrapper(h.Execute))
}

// evaluationRequest is the body of evaluate and execute calls.
type evaluationRequest struct {
	Action   models.DelegationAction  `json:"action"`
	Context  models.EvaluationContext `json:"context"`
	Evidence models.Evidence          `json:"evidence"`
}

// decorateEvidence merges token-derived step-up evidence into the
// caller-supplied set: a strong authentication event on the request's
// own token satisfies STEP_UP_AUTH without explicit attestation.
func decorateEvidence(r *http.Request, evidence models.Evidence) models.Evidence {
	claims, ok := auth.GetClaims(r.Context())
	if !ok || !claims.StepUpSatisfied() || evidence.Satisfies(models.ControlStepUpAuth) {
		return evidence
	}
	evidence.ControlsSatisfied = append(evidence.ControlsSatisfied, models.ControlStepUpAuth)
	return evidence
}

func requestActor(r *http.Request) string {
	if claims, ok := auth.GetClaims(r.Context()); ok {
		return claims.ActorRef()
	}
	return "anonymous"
}

// Evaluate handles POST /api/delegations/{did}/evaluate. The dry run
// reports the verdict without consuming anything; a denial is still a
// 200 whose body lists the reasons.
func (h *EvaluationHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseDelegationID(w, r, h.logger)
	if !ok {
		return
	}

	var req evaluationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	result, err := h.service.Evaluate(r.Context(), id, req.Action, req.Context, decorateEvidence(r, req.Evidence))
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to encode evaluation result", zap.Error(err))
	}
}

// executionResponse is the body of a successful execute call. Usage is
// the recorded consumption with post-execution counter snapshots; it is
// absent when the action was denied.
type executionResponse struct {
	Result *models.PolicyEvaluationResult `json:"result"`
	Usage  *models.UsageRecord            `json:"usage,omitempty"`
}

// Execute handles POST /api/delegations/{did}/execute.
func (h *EvaluationHandler) Execute(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseDelegationID(w, r, h.logger)
	if !ok {
		return
	}

	var req evaluationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	result, usage, err := h.service.Execute(r.Context(), id, req.Action, req.Context, decorateEvidence(r, req.Evidence), requestActor(r))
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, executionResponse{Result: result, Usage: usage}); err != nil {
		h.logger.Error("Failed to encode execution result", zap.Error(err))
	}
}

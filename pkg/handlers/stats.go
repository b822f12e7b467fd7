package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/chantierhq/delegation-engine/pkg/services"
)

// StatsHandler handles the dashboard read-model endpoints.
type StatsHandler struct {
	service services.StatsService
	logger  *zap.Logger
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(service services.StatsService, logger *zap.Logger) *StatsHandler {
	return &StatsHandler{service: service, logger: logger.Named("stats-handler")}
}

// RegisterRoutes registers the stats routes on the given mux.
func (h *StatsHandler) RegisterRoutes(mux *http.ServeMux, authWrapper func(http.HandlerFunc) http.HandlerFunc) {
	mux.HandleFunc("GET /api/stats", authWrapper(h.Stats))
	mux.HandleFunc("GET /api/stats/activity", authWrapper(h.Activity))
}

// Stats handles GET /api/stats.
func (h *StatsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetStats(r.Context())
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, stats); err != nil {
		h.logger.Error("Failed to encode stats", zap.Error(err))
	}
}

// Activity handles GET /api/stats/activity. An optional limit query
// parameter caps the number of events returned.
func (h *StatsHandler) Activity(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	events, err := h.service.RecentActivity(r.Context(), limit)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, map[string]any{"events": events}); err != nil {
		h.logger.Error("Failed to encode activity", zap.Error(err))
	}
}

package handler

import (
	"net/http"

	"sqltutor/internal/middleware"
	"sqltutor/internal/service"

	"github.com/rs/zerolog"
)

// DashboardHandler handles the dashboard endpoints
type DashboardHandler struct {
	dashSvc service.DashboardService
	logger  zerolog.Logger
}

// NewDashboardHandler creates a new DashboardHandler
func NewDashboardHandler(dashSvc service.DashboardService, logger zerolog.Logger) *DashboardHandler {
	return &DashboardHandler{dashSvc: dashSvc, logger: logger}
}

// RegisterRoutes mounts the dashboard routes
func (h *DashboardHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/dashboard/stats", authMw(http.HandlerFunc(h.stats)))
	mux.Handle("/dashboard/progress", authMw(http.HandlerFunc(h.progress)))
	mux.Handle("/dashboard/recent-activity", authMw(http.HandlerFunc(h.recentActivity)))
	mux.Handle("/dashboard/certificate-eligibility", authMw(http.HandlerFunc(h.certificateEligibility)))
}

// authedGet enforces GET and extracts the user id, writing the error response
// itself on failure.
func authedGet(w http.ResponseWriter, r *http.Request) (string, bool) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return "", false
	}
	userID, ok := middleware.UserID(r)
	if !ok {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return "", false
	}
	return userID, true
}

func (h *DashboardHandler) stats(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedGet(w, r)
	if !ok {
		return
	}
	stats, err := h.dashSvc.Stats(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to compute dashboard stats")
		http.Error(w, "Failed to compute stats", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *DashboardHandler) progress(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedGet(w, r)
	if !ok {
		return
	}
	report, err := h.dashSvc.Progress(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to compute progress")
		http.Error(w, "Failed to compute progress", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *DashboardHandler) recentActivity(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedGet(w, r)
	if !ok {
		return
	}
	activity, err := h.dashSvc.RecentActivity(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to fetch recent activity")
		http.Error(w, "Failed to fetch recent activity", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, activity)
}

func (h *DashboardHandler) certificateEligibility(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedGet(w, r)
	if !ok {
		return
	}
	elig, err := h.dashSvc.CertificateEligibility(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to evaluate certificate eligibility")
		http.Error(w, "Failed to evaluate eligibility", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, elig)
}

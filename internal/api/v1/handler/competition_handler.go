package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"sqltutor/internal/api/v1/dto"
	"sqltutor/internal/middleware"
	"sqltutor/internal/model"
	"sqltutor/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// CompetitionHandler handles the competition endpoints
type CompetitionHandler struct {
	compSvc  service.CompetitionService
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewCompetitionHandler creates a new CompetitionHandler
func NewCompetitionHandler(compSvc service.CompetitionService, validate *validator.Validate, logger zerolog.Logger) *CompetitionHandler {
	return &CompetitionHandler{compSvc: compSvc, validate: validate, logger: logger}
}

// RegisterRoutes mounts the competition routes
func (h *CompetitionHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/competition/start", authMw(http.HandlerFunc(h.start)))
	mux.Handle("/competition/submit", authMw(http.HandlerFunc(h.submit)))
	mux.Handle("/competition/history", authMw(http.HandlerFunc(h.history)))
	mux.Handle("/competition/leaderboard/", authMw(http.HandlerFunc(h.leaderboard)))
	mux.Handle("/competition/active", authMw(http.HandlerFunc(h.listActive)))
}

func (h *CompetitionHandler) start(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := middleware.UserID(r)
	if !ok {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}
	var req dto.CompetitionStartDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}
	comp, err := h.compSvc.Start(r.Context(), userID, req.Difficulty, req.TimeLimit)
	if err != nil {
		if errors.Is(err, service.ErrQuotaExceeded) {
			http.Error(w, err.Error(), http.StatusForbidden)
			return
		}
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to start competition")
		http.Error(w, "Failed to start competition", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, competitionResponse(comp, true))
}

func (h *CompetitionHandler) submit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := middleware.UserID(r)
	if !ok {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}
	var req dto.CompetitionSubmitDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}
	sub, rank, err := h.compSvc.Submit(r.Context(), userID, req.CompetitionID, req.Question, req.Query)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCompetitionNotFound):
			http.Error(w, "Competition not found", http.StatusNotFound)
		case errors.Is(err, service.ErrCompetitionExpired):
			http.Error(w, "Competition has expired", http.StatusConflict)
		case errors.Is(err, service.ErrAlreadySubmitted):
			http.Error(w, "Already submitted to this competition", http.StatusConflict)
		default:
			h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to submit to competition")
			http.Error(w, "Failed to submit", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, dto.CompetitionSubmitResponseDTO{
		Score:       sub.Score,
		TimeTaken:   sub.TimeTaken,
		Rank:        rank,
		SubmittedAt: sub.SubmittedAt,
	})
}

func (h *CompetitionHandler) history(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := middleware.UserID(r)
	if !ok {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}
	results, err := h.compSvc.History(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to fetch competition history")
		http.Error(w, "Failed to fetch history", http.StatusInternalServerError)
		return
	}
	resp := make([]dto.CompetitionHistoryEntryDTO, 0, len(results))
	for _, res := range results {
		resp = append(resp, dto.CompetitionHistoryEntryDTO{
			CompetitionID: res.CompetitionID,
			Difficulty:    res.Difficulty,
			Score:         res.Score,
			Rank:          res.Rank,
			TimeTaken:     res.TimeTaken,
			CompletedAt:   res.CompletedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *CompetitionHandler) leaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	competitionID := strings.TrimPrefix(r.URL.Path, "/competition/leaderboard/")
	if competitionID == "" || strings.Contains(competitionID, "/") {
		http.NotFound(w, r)
		return
	}
	entries, err := h.compSvc.Leaderboard(r.Context(), competitionID)
	if err != nil {
		h.logger.Error().Err(err).Str("competition_id", competitionID).Msg("Failed to fetch leaderboard")
		http.Error(w, "Failed to fetch leaderboard", http.StatusInternalServerError)
		return
	}
	resp := make([]dto.LeaderboardEntryDTO, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, dto.LeaderboardEntryDTO{
			Rank:      e.Rank,
			UserID:    e.UserID,
			Name:      e.Name,
			Score:     e.Score,
			TimeTaken: e.TimeTaken,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *CompetitionHandler) listActive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	comps, err := h.compSvc.ListActive(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list active competitions")
		http.Error(w, "Failed to list competitions", http.StatusInternalServerError)
		return
	}
	resp := make([]dto.CompetitionResponseDTO, 0, len(comps))
	for i := range comps {
		resp = append(resp, competitionResponse(&comps[i], false))
	}
	writeJSON(w, http.StatusOK, resp)
}

// competitionResponse maps a competition to its DTO. The schema script and
// questions are only included for the creator's start response.
func competitionResponse(c *model.Competition, full bool) dto.CompetitionResponseDTO {
	resp := dto.CompetitionResponseDTO{
		CompetitionID: c.ID,
		Difficulty:    c.Difficulty,
		TimeLimit:     c.TimeLimit,
		StartedAt:     c.StartedAt,
		ExpiresAt:     c.ExpiresAt,
	}
	if full {
		resp.SchemaScript = c.SchemaScript
		resp.Questions = c.Questions
	}
	return resp
}

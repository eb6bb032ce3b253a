package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"sqltutor/internal/api/v1/dto"
	"sqltutor/internal/middleware"
	"sqltutor/internal/model"
	"sqltutor/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// PracticeHandler handles the SQL practice endpoints
type PracticeHandler struct {
	practiceSvc service.PracticeService
	validate    *validator.Validate
	logger      zerolog.Logger
}

// NewPracticeHandler creates a new PracticeHandler
func NewPracticeHandler(practiceSvc service.PracticeService, validate *validator.Validate, logger zerolog.Logger) *PracticeHandler {
	return &PracticeHandler{practiceSvc: practiceSvc, validate: validate, logger: logger}
}

// RegisterRoutes mounts the practice routes
func (h *PracticeHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/sql/generate-schema", authMw(http.HandlerFunc(h.generateSchema)))
	mux.Handle("/sql/create-session", authMw(http.HandlerFunc(h.createSession)))
	mux.Handle("/sql/populate-tables", authMw(http.HandlerFunc(h.populateTables)))
	mux.Handle("/sql/question-generator", authMw(http.HandlerFunc(h.generateQuestions)))
	mux.Handle("/sql/execute", authMw(http.HandlerFunc(h.executeQuery)))
	mux.Handle("/sql/iscorrect", authMw(http.HandlerFunc(h.checkAnswer)))
	mux.Handle("/sql/sessions", authMw(http.HandlerFunc(h.listSessions)))
	mux.Handle("/sql/schemas", authMw(http.HandlerFunc(h.listSchemas)))
}

// decodeAndValidate reads the JSON body into req and runs struct validation.
// It writes the error response itself and reports whether to continue.
func (h *PracticeHandler) decodeAndValidate(w http.ResponseWriter, r *http.Request, req any) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return false
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (h *PracticeHandler) generateSchema(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}
	var req dto.GenerateSchemaDTO
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	schema, err := h.practiceSvc.GenerateSchema(r.Context(), userID, req.SessionID, req.Prompt, req.Difficulty)
	if err != nil {
		if errors.Is(err, service.ErrQuotaExceeded) {
			http.Error(w, err.Error(), http.StatusForbidden)
			return
		}
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to generate schema")
		http.Error(w, "Failed to generate schema", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, dto.SchemaResponseDTO{
		SchemaID:      schema.SchemaID,
		SchemaScript:  schema.SchemaScript,
		Difficulty:    schema.Difficulty,
		SchemaCreated: true,
		CreatedAt:     schema.CreatedAt,
	})
}

func (h *PracticeHandler) createSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}
	var req dto.CreateSessionDTO
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	session, err := h.practiceSvc.CreateSession(r.Context(), userID, req.SessionID, req.SchemaScript, req.Difficulty)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to create session")
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse(session))
}

func (h *PracticeHandler) populateTables(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}
	var req dto.PopulateTablesDTO
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	if err := h.practiceSvc.PopulateTables(r.Context(), userID, req.SessionID, req.SchemaScript); err != nil {
		if errors.Is(err, service.ErrEmptyTables) {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to populate tables")
		http.Error(w, "Failed to populate tables", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "tables populated"})
}

func (h *PracticeHandler) generateQuestions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}
	var req dto.GenerateQuestionsDTO
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	if req.Topic == "" {
		req.Topic = "All"
	}
	questions, err := h.practiceSvc.GenerateQuestions(r.Context(), userID, req.SchemaScript, req.Topic, req.Difficulty)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to generate questions")
		http.Error(w, "Failed to generate questions", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, dto.QuestionsResponseDTO{Questions: questions})
}

func (h *PracticeHandler) executeQuery(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}
	var req dto.ExecuteQueryDTO
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	result, err := h.practiceSvc.ExecuteQuery(r.Context(), userID, req.SessionID, req.Query)
	if err != nil {
		// Engine errors are part of the learning flow, not server failures.
		writeJSON(w, http.StatusOK, dto.ExecuteQueryResponseDTO{Success: false, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, dto.ExecuteQueryResponseDTO{Success: true, Result: result})
}

func (h *PracticeHandler) checkAnswer(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}
	var req dto.CheckAnswerDTO
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	attempt, err := h.practiceSvc.CheckAnswer(r.Context(), userID, req.SessionID, req.Question, req.Query)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			http.Error(w, "Session not found", http.StatusNotFound)
			return
		}
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to grade answer")
		http.Error(w, "Failed to grade answer", http.StatusInternalServerError)
		return
	}
	resp := dto.CheckAnswerResponseDTO{
		Explanation: attempt.Explanation,
		TableHead:   attempt.TableHead,
		Points:      attempt.Points,
	}
	if attempt.IsCorrect != nil {
		resp.IsCorrect = *attempt.IsCorrect
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *PracticeHandler) listSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := middleware.UserID(r)
	if !ok {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}
	sessions, err := h.practiceSvc.ListSessions(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to list sessions")
		http.Error(w, "Failed to list sessions", http.StatusInternalServerError)
		return
	}
	resp := make([]dto.SessionResponseDTO, 0, len(sessions))
	for i := range sessions {
		resp = append(resp, sessionResponse(&sessions[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *PracticeHandler) listSchemas(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := middleware.UserID(r)
	if !ok {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}
	schemas, err := h.practiceSvc.ListSchemas(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to list schemas")
		http.Error(w, "Failed to list schemas", http.StatusInternalServerError)
		return
	}
	resp := make([]dto.SchemaResponseDTO, 0, len(schemas))
	for _, s := range schemas {
		resp = append(resp, dto.SchemaResponseDTO{
			SchemaID:     s.SchemaID,
			SchemaScript: s.SchemaScript,
			Difficulty:   s.Difficulty,
			CreatedAt:    s.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func sessionResponse(s *model.Session) dto.SessionResponseDTO {
	queries := make([]dto.QueryAttemptDTO, 0, len(s.Queries))
	for _, q := range s.Queries {
		queries = append(queries, dto.QueryAttemptDTO{
			Question:    q.Question,
			Query:       q.Query,
			IsCorrect:   q.IsCorrect,
			Explanation: q.Explanation,
			Points:      q.Points,
			ExecutedAt:  q.ExecutedAt,
		})
	}
	return dto.SessionResponseDTO{
		SessionID:   s.ID,
		SchemaID:    s.SchemaID,
		Difficulty:  s.Difficulty,
		TotalScore:  s.TotalScore,
		Queries:     queries,
		CreatedAt:   s.CreatedAt,
		CompletedAt: s.CompletedAt,
	}
}

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"gwi.com/interview-coach/internal/apperrors"
	"gwi.com/interview-coach/internal/auth"
	"gwi.com/interview-coach/internal/core"
	"gwi.com/interview-coach/internal/export"
	"gwi.com/interview-coach/internal/store"
	"gwi.com/interview-coach/internal/utils"
)

type APIHandler struct {
	questions *core.QuestionService
	feedback  *core.FeedbackService
	sessions  *core.SessionManager
	store     store.QuestionStore
	validate  *validator.Validate
	logger    utils.Logger
}

func NewAPIHandler(q *core.QuestionService, f *core.FeedbackService, s *core.SessionManager, qs store.QuestionStore, logger utils.Logger) *APIHandler {
	return &APIHandler{
		questions: q,
		feedback:  f,
		sessions:  s,
		store:     qs,
		validate:  apperrors.NewValidator(),
		logger:    logger,
	}
}

type errorResponse struct {
	Error   string                     `json:"error"`
	Details apperrors.ValidationErrors `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}

// respondInvalidParam reports a malformed query parameter in the same shape
// as body validation failures.
func respondInvalidParam(w http.ResponseWriter, param, message string, value interface{}) {
	errs := apperrors.ValidationErrors{*apperrors.NewValidationError(param, message, value)}
	respondJSON(w, http.StatusBadRequest, errorResponse{Error: errs.Error(), Details: errs})
}

// decodeAndValidate reads a JSON body into dst and runs struct validation,
// writing the 400 response itself when either fails.
func (h *APIHandler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		errs := apperrors.ToValidationErrors(err)
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: errs.Error(), Details: errs})
		return false
	}
	return true
}

// --- content resolution ---

type GenerateQuestionsRequest struct {
	Role      string `json:"role"`
	Level     string `json:"level"`
	TechStack string `json:"techStack"`
}

// GenerateQuestionsHandler always answers 200 with a question set unless the
// body cannot be decoded.
func (h *APIHandler) GenerateQuestionsHandler(w http.ResponseWriter, r *http.Request) {
	var req GenerateQuestionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	set := h.questions.Resolve(r.Context(), core.InterviewConfig{Role: req.Role, Level: req.Level, TechStack: req.TechStack})
	respondJSON(w, http.StatusOK, set)
}

type FeedbackRequestBody struct {
	Question        string `json:"question" validate:"notblank"`
	Answer          string `json:"answer" validate:"notblank"`
	UsedFallback    bool   `json:"usedFallback"`
	ReferenceAnswer string `json:"referenceAnswer"`
}

func (h *APIHandler) FeedbackHandler(w http.ResponseWriter, r *http.Request) {
	var req FeedbackRequestBody
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.feedback.Resolve(r.Context(), core.FeedbackRequest{
		Question:            req.Question,
		Answer:              req.Answer,
		SessionUsedFallback: req.UsedFallback,
		ReferenceAnswer:     req.ReferenceAnswer,
	})
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// --- sessions ---

type CreateSessionRequest struct {
	Role      string `json:"role" validate:"notblank"`
	Level     string `json:"level" validate:"notblank"`
	TechStack string `json:"techStack"`
}

func (h *APIHandler) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	if subject := auth.SubjectFromContext(r.Context()); subject != "" {
		h.logger.InfoContext(r.Context(), "Session requested", "subject", subject, "role", req.Role, "level", req.Level)
	}
	session := h.sessions.Create(r.Context(), core.InterviewConfig{Role: req.Role, Level: req.Level, TechStack: req.TechStack})
	respondJSON(w, http.StatusCreated, session.View())
}

func (h *APIHandler) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		h.respondSessionError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, session.View())
}

type SubmitAnswerRequest struct {
	Index  *int   `json:"index" validate:"required,gte=0"`
	Answer string `json:"answer" validate:"notblank"`
}

type SubmitAnswerResponse struct {
	SessionID string `json:"sessionId"`
	Index     int    `json:"index"`
	Status    string `json:"status"`
}

// SubmitAnswerHandler records the answer and returns before feedback exists.
func (h *APIHandler) SubmitAnswerHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req SubmitAnswerRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	task, err := h.sessions.SubmitAnswer(sessionID, *req.Index, req.Answer)
	if err != nil {
		h.respondSessionError(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, SubmitAnswerResponse{SessionID: sessionID, Index: task.Index, Status: "pending"})
}

func (h *APIHandler) summary(w http.ResponseWriter, r *http.Request) (core.Summary, bool) {
	var wait time.Duration
	if raw := r.URL.Query().Get("wait"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			respondInvalidParam(w, "wait", "must be a non-negative duration such as 30s", raw)
			return core.Summary{}, false
		}
		wait = d
	}

	summary, err := h.sessions.Summary(r.Context(), chi.URLParam(r, "sessionID"), wait)
	if err != nil {
		h.respondSessionError(w, r, err)
		return core.Summary{}, false
	}
	return summary, true
}

func (h *APIHandler) SummaryHandler(w http.ResponseWriter, r *http.Request) {
	summary, ok := h.summary(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (h *APIHandler) SummaryExportHandler(w http.ResponseWriter, r *http.Request) {
	summary, ok := h.summary(w, r)
	if !ok {
		return
	}

	data, err := export.SummaryToExcel(summary)
	if err != nil {
		h.logger.LogError(err, "Failed to export summary", "session_id", summary.SessionID)
		respondError(w, http.StatusInternalServerError, "Failed to export summary")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="interview-%s.xlsx"`, summary.SessionID))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *APIHandler) DeleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Discard(chi.URLParam(r, "sessionID")); err != nil {
		h.respondSessionError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) respondSessionError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrSessionNotFound):
		respondError(w, http.StatusNotFound, "Session not found")
	case errors.Is(err, core.ErrIndexOutOfRange), errors.Is(err, core.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, core.ErrAlreadyAnswered):
		respondError(w, http.StatusConflict, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "Session request failed", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to process session request")
	}
}

// --- question bank ---

// queryValue treats "all" and "" alike as unconstrained.
func queryValue(r *http.Request, key string) string {
	v := r.URL.Query().Get(key)
	if v == "all" {
		return ""
	}
	return v
}

func (h *APIHandler) ListQuestionsHandler(w http.ResponseWriter, r *http.Request) {
	filter := store.Filter{
		Kind:       store.Kind(queryValue(r, "type")),
		Difficulty: store.Difficulty(queryValue(r, "difficulty")),
	}
	if category := queryValue(r, "category"); category != "" {
		filter.Categories = []string{category}
	}
	if tag := queryValue(r, "tag"); tag != "" {
		filter.Tags = []string{tag}
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			respondInvalidParam(w, "limit", "must be a non-negative integer", raw)
			return
		}
		filter.Limit = limit
	}

	records, err := h.store.Find(r.Context(), filter)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to fetch questions", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to fetch questions")
		return
	}
	respondJSON(w, http.StatusOK, records)
}

type CreateQuestionRequest struct {
	Text            string   `json:"question" validate:"notblank"`
	Kind            string   `json:"type" validate:"required,oneof=technical behavioral coding"`
	Difficulty      string   `json:"difficulty" validate:"required,oneof=easy medium hard"`
	Category        string   `json:"category"`
	Tags            []string `json:"tags"`
	ReferenceAnswer string   `json:"answer"`
}

func (req CreateQuestionRequest) record() store.QuestionRecord {
	return store.QuestionRecord{
		Text:            req.Text,
		Kind:            store.Kind(req.Kind),
		Difficulty:      store.Difficulty(req.Difficulty),
		Category:        req.Category,
		Tags:            req.Tags,
		ReferenceAnswer: req.ReferenceAnswer,
	}
}

func (h *APIHandler) CreateQuestionHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateQuestionRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	record := req.record()
	if err := h.store.Create(r.Context(), &record); err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to add question", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to add question")
		return
	}
	respondJSON(w, http.StatusCreated, record)
}

type SeedQuestionsRequest struct {
	Builtin   bool                    `json:"builtin"`
	Questions []CreateQuestionRequest `json:"questions" validate:"required_without=Builtin,dive"`
}

type SeedQuestionsResponse struct {
	InsertedCount int `json:"insertedCount"`
}

func (h *APIHandler) SeedQuestionsHandler(w http.ResponseWriter, r *http.Request) {
	var req SeedQuestionsRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	var records []store.QuestionRecord
	if req.Builtin {
		var err error
		records, err = store.LoadSeedFile(store.BuiltinSeed)
		if err != nil {
			h.logger.LogError(err, "Failed to load builtin questions")
			respondError(w, http.StatusInternalServerError, "Failed to seed questions")
			return
		}
	} else {
		records = make([]store.QuestionRecord, 0, len(req.Questions))
		for _, q := range req.Questions {
			records = append(records, q.record())
		}
	}

	n, err := h.store.Seed(r.Context(), records)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to seed questions", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to seed questions")
		return
	}
	respondJSON(w, http.StatusOK, SeedQuestionsResponse{InsertedCount: n})
}

type successResponse struct {
	Success bool `json:"success"`
}

func (h *APIHandler) UpdateQuestionHandler(w http.ResponseWriter, r *http.Request) {
	var update store.QuestionUpdate
	if !h.decodeAndValidate(w, r, &update) {
		return
	}

	err := h.store.Update(r.Context(), chi.URLParam(r, "id"), update)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Question not found")
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to update question", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to update question")
		return
	}
	respondJSON(w, http.StatusOK, successResponse{Success: true})
}

func (h *APIHandler) DeleteQuestionHandler(w http.ResponseWriter, r *http.Request) {
	err := h.store.Delete(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Question not found")
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to delete question", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to delete question")
		return
	}
	respondJSON(w, http.StatusOK, successResponse{Success: true})
}

type HealthResponse struct {
	Status    string `json:"status"`
	Questions int64  `json:"questions"`
	Sessions  int    `json:"sessions"`
}

func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	n, err := h.store.Count(r.Context())
	if err != nil {
		h.logger.WarnContext(r.Context(), "Health check could not reach question store", "error", err)
		respondJSON(w, http.StatusOK, HealthResponse{Status: "degraded", Questions: -1, Sessions: h.sessions.Len()})
		return
	}
	respondJSON(w, http.StatusOK, HealthResponse{Status: "ok", Questions: n, Sessions: h.sessions.Len()})
}

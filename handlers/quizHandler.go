package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"readgate/db"
	"readgate/models"
	"readgate/services/quiz"

	"github.com/gorilla/mux"
)

type QuizHandler struct {
	service *quiz.Service
}

func NewQuizHandler(service *quiz.Service) *QuizHandler {
	return &QuizHandler{service: service}
}

func (h *QuizHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/quizzes/generate", h.GenerateQuiz).Methods("POST")
	router.HandleFunc("/quizzes/validate", h.ValidateAnswers).Methods("POST")
	router.HandleFunc("/quizzes/{id}", h.GetQuizByID).Methods("GET")
	router.HandleFunc("/quizzes", h.GetQuizBySource).Methods("GET")
	router.HandleFunc("/attempts", h.ListAttempts).Methods("GET")
}

func (h *QuizHandler) GenerateQuiz(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateQuizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	resp, err := h.service.GenerateQuiz(r.Context(), &req)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSONResponse(w, http.StatusOK, resp)
}

func (h *QuizHandler) GetQuizByID(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	callerID := r.URL.Query().Get("caller_id")

	sanitized, err := h.service.GetQuizByID(r.Context(), vars["id"], callerID)
	if err != nil {
		writeQuizError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, sanitized)
}

func (h *QuizHandler) GetQuizBySource(w http.ResponseWriter, r *http.Request) {
	sourceURL := r.URL.Query().Get("source_url")
	if sourceURL == "" {
		writeErrorResponse(w, http.StatusBadRequest, "source_url query parameter is required")
		return
	}
	callerID := r.URL.Query().Get("caller_id")

	var contentID *string
	if value := r.URL.Query().Get("content_id"); value != "" {
		contentID = &value
	}

	sanitized, err := h.service.GetQuizBySource(r.Context(), contentID, sourceURL, callerID)
	if err != nil {
		writeQuizError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, sanitized)
}

func (h *QuizHandler) ValidateAnswers(w http.ResponseWriter, r *http.Request) {
	var req models.ValidateAnswersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	result, err := h.service.ValidateAnswers(r.Context(), &req)
	if err != nil {
		writeQuizError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, result)
}

func (h *QuizHandler) ListAttempts(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeErrorResponse(w, http.StatusBadRequest, "user_id query parameter is required")
		return
	}

	attempts, err := h.service.ListAttemptsByUser(r.Context(), userID)
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve attempts")
		return
	}

	writeJSONResponse(w, http.StatusOK, attempts)
}

// writeQuizError maps the sentinel conditions the gate flow depends on:
// NotFound means re-request generation, Gone means the record expired,
// Forbidden must never fall back to partial content.
func writeQuizError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, db.ErrNotFound):
		writeErrorResponse(w, http.StatusNotFound, err.Error())
	case errors.Is(err, db.ErrGone):
		writeErrorResponse(w, http.StatusGone, err.Error())
	case errors.Is(err, db.ErrForbidden):
		writeErrorResponse(w, http.StatusForbidden, "access denied")
	default:
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
	}
}

func writeJSONResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

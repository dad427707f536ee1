package handlers

import (
	"encoding/json"
	"net/http"

	"readgate/models"
	"readgate/services/trust"

	"github.com/gorilla/mux"
)

type TrustHandler struct {
	service *trust.Service
}

func NewTrustHandler(service *trust.Service) *TrustHandler {
	return &TrustHandler{service: service}
}

func (h *TrustHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/trust-scores/evaluate", h.EvaluateTrustScore).Methods("POST")
	router.HandleFunc("/trust-scores", h.GetTrustScore).Methods("GET")
}

// EvaluateTrustScore never returns an error status for oracle trouble: the
// service degrades to the neutral fallback and this endpoint reports it as a
// normal result.
func (h *TrustHandler) EvaluateTrustScore(w http.ResponseWriter, r *http.Request) {
	var req models.EvaluateTrustScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if req.SourceURL == "" {
		writeErrorResponse(w, http.StatusBadRequest, "source_url is required")
		return
	}

	record := h.service.EvaluateTrustScore(r.Context(), req.SourceURL, req.PostText)
	writeJSONResponse(w, http.StatusOK, record)
}

// GetTrustScore is the cache-only read; a miss is {"data": null}, meaning
// the caller must request evaluation separately.
func (h *TrustHandler) GetTrustScore(w http.ResponseWriter, r *http.Request) {
	sourceURL := r.URL.Query().Get("source_url")
	if sourceURL == "" {
		writeErrorResponse(w, http.StatusBadRequest, "source_url query parameter is required")
		return
	}

	record, err := h.service.GetTrustScore(r.Context(), sourceURL)
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, "Failed to read trust score cache")
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{"data": record})
}

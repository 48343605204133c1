package handler

import (
	"codepair/internal/apperr"
	"codepair/internal/service"
	"codepair/internal/validator"
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"
)

// SessionHandler handles the session HTTP surface.
type SessionHandler struct {
	sessionSvc *service.SessionService
}

func NewSessionHandler(sessionSvc *service.SessionService) *SessionHandler {
	return &SessionHandler{sessionSvc: sessionSvc}
}

// Create handles POST /v1/sessions
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req validator.CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	view, err := h.sessionSvc.CreateSession(r.Context(), &req)
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, view)
}

// Get handles GET /v1/sessions/{id}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	view, err := h.sessionSvc.GetSession(r.Context(), id)
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// TerminateRequest is the admin termination payload. The reason field is the
// caller-supplied gate; real authorization happens upstream.
type TerminateRequest struct {
	Reason string `json:"reason"`
}

// Terminate handles POST /v1/sessions/{id}/terminate
func (h *SessionHandler) Terminate(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req TerminateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Reason != "admin" {
		writeError(w, http.StatusForbidden, "termination requires an admin reason")
		return
	}

	view, err := h.sessionSvc.TerminateSession(r.Context(), id)
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// Helper functions
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{"status": status, "message": message},
	})
}

func writeAppError(w http.ResponseWriter, err error) {
	appErr := apperr.From(err)
	if appErr.Status == http.StatusInternalServerError {
		log.Printf("[rest] internal error: %v", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.Status)
	json.NewEncoder(w).Encode(map[string]interface{}{"error": appErr})
}

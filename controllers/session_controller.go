package controllers

import (
	"net/http"

	"tablematch_server/middleware"
	"tablematch_server/models"
	"tablematch_server/services"
)

// SessionController handles session lifecycle requests
type SessionController struct {
	SessionService *services.SessionService
}

func NewSessionController(sessionService *services.SessionService) *SessionController {
	return &SessionController{SessionService: sessionService}
}

// CreateSession handles POST /api/sessions
func (sc *SessionController) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSessionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	userID, _ := middleware.UserIDFromContext(r.Context())

	state, err := sc.SessionService.CreateSession(r.Context(), userID, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, state)
}

// JoinSession handles POST /api/sessions/join
func (sc *SessionController) JoinSession(w http.ResponseWriter, r *http.Request) {
	var req models.JoinSessionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	userID, _ := middleware.UserIDFromContext(r.Context())

	state, err := sc.SessionService.JoinSessionByCode(r.Context(), userID, req.Code)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// GetSession handles GET /api/sessions/{id}
func (sc *SessionController) GetSession(w http.ResponseWriter, r *http.Request) {
	userID, sessionID := caller(r)
	state, err := sc.SessionService.GetSessionState(r.Context(), userID, sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// SetReady handles POST /api/sessions/{id}/ready
func (sc *SessionController) SetReady(w http.ResponseWriter, r *http.Request) {
	var req models.ReadyRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	userID, sessionID := caller(r)

	if err := sc.SessionService.SetReady(r.Context(), userID, sessionID, *req.IsReady); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// LeaveSession handles POST /api/sessions/{id}/leave
func (sc *SessionController) LeaveSession(w http.ResponseWriter, r *http.Request) {
	userID, sessionID := caller(r)
	if err := sc.SessionService.LeaveSession(r.Context(), userID, sessionID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// EndSession handles POST /api/sessions/{id}/end
func (sc *SessionController) EndSession(w http.ResponseWriter, r *http.Request) {
	userID, sessionID := caller(r)
	if err := sc.SessionService.EndSession(r.Context(), userID, sessionID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

package controllers

import (
	"net/http"

	"tablematch_server/models"
	"tablematch_server/services"
)

// SwipeController handles swipes and the shortlist built from them
type SwipeController struct {
	SwipeService     *services.SwipeService
	ShortlistService *services.ShortlistService
}

func NewSwipeController(swipeService *services.SwipeService, shortlistService *services.ShortlistService) *SwipeController {
	return &SwipeController{SwipeService: swipeService, ShortlistService: shortlistService}
}

// RecordSwipe handles POST /api/sessions/{id}/swipes
func (sc *SwipeController) RecordSwipe(w http.ResponseWriter, r *http.Request) {
	var req models.SwipeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	userID, sessionID := caller(r)

	snapshot, err := sc.SwipeService.RecordSwipe(r.Context(), userID, sessionID, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snapshot)
}

// GetShortlist handles GET /api/sessions/{id}/shortlist?lat=&lng=
func (sc *SwipeController) GetShortlist(w http.ResponseWriter, r *http.Request) {
	origin, err := parseOrigin(r)
	if err != nil {
		writeError(w, err)
		return
	}
	userID, sessionID := caller(r)

	shortlist, err := sc.ShortlistService.GetShortlist(r.Context(), userID, sessionID, origin)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, shortlist)
}

package controllers

import (
	"net/http"
	"strconv"

	"tablematch_server/models"
	"tablematch_server/services"
)

// DeckController handles deck composition and paging
type DeckController struct {
	DeckService *services.DeckService
}

func NewDeckController(deckService *services.DeckService) *DeckController {
	return &DeckController{DeckService: deckService}
}

// InitDeck handles POST /api/sessions/{id}/deck/init
func (dc *DeckController) InitDeck(w http.ResponseWriter, r *http.Request) {
	var req models.DeckInitRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	userID, sessionID := caller(r)

	page, err := dc.DeckService.InitDeck(r.Context(), userID, sessionID, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// GetDeckPage handles GET /api/sessions/{id}/deck?group=&cursor=&lat=&lng=&mode=
func (dc *DeckController) GetDeckPage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := models.DeckPageRequest{
		Group: models.DeckGroup(q.Get("group")),
		Mode:  models.TravelMode(q.Get("mode")),
	}
	if c := q.Get("cursor"); c != "" {
		cursor, err := strconv.Atoi(c)
		if err != nil {
			writeError(w, &models.ValidationError{Field: "cursor", Message: "must be an integer"})
			return
		}
		req.Cursor = cursor
	}
	origin, err := parseOrigin(r)
	if err != nil {
		writeError(w, err)
		return
	}
	req.Origin = origin
	if err := req.Validate(); err != nil {
		writeError(w, err)
		return
	}
	userID, sessionID := caller(r)

	page, err := dc.DeckService.GetDeckPage(r.Context(), userID, sessionID, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// ExpandDeck handles POST /api/sessions/{id}/deck/expand
func (dc *DeckController) ExpandDeck(w http.ResponseWriter, r *http.Request) {
	var req models.DeckExpandRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	userID, sessionID := caller(r)

	page, err := dc.DeckService.ExpandDeck(r.Context(), userID, sessionID, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// parseOrigin reads optional lat/lng query parameters; both or neither
func parseOrigin(r *http.Request) (*models.Location, error) {
	q := r.URL.Query()
	latStr, lngStr := q.Get("lat"), q.Get("lng")
	if latStr == "" && lngStr == "" {
		return nil, nil
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return nil, &models.ValidationError{Field: "lat", Message: "must be a number"}
	}
	lng, err := strconv.ParseFloat(lngStr, 64)
	if err != nil {
		return nil, &models.ValidationError{Field: "lng", Message: "must be a number"}
	}
	return &models.Location{Lat: lat, Lng: lng}, nil
}

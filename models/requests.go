package models

import (
	"fmt"
	"strings"
)

// ValidationError reports a single invalid request field
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Location is a caller position used for distance and search
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// CreateSessionRequest is the body of POST /api/sessions
type CreateSessionRequest struct {
	Name              string      `json:"name"`
	SwipeMode         *SwipeMode  `json:"swipeMode,omitempty"`
	AgreeThreshold    *int        `json:"agreeThreshold,omitempty"`
	DefaultTravelMode *TravelMode `json:"defaultTravelMode,omitempty"`
	DefaultMaxMinutes *int        `json:"defaultMaxMinutes,omitempty"`
}

// Validate trims the request and checks every field
func (r *CreateSessionRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return invalid("name", "is required")
	}
	if len(r.Name) > 120 {
		return invalid("name", "must be at most 120 characters")
	}
	if r.SwipeMode != nil && !r.SwipeMode.Valid() {
		return invalid("swipeMode", "unknown mode %q", *r.SwipeMode)
	}
	if r.AgreeThreshold != nil && *r.AgreeThreshold < 2 {
		return invalid("agreeThreshold", "must be at least 2")
	}
	if r.DefaultTravelMode != nil && !r.DefaultTravelMode.Valid() {
		return invalid("defaultTravelMode", "unknown mode %q", *r.DefaultTravelMode)
	}
	if err := validateMaxMinutes("defaultMaxMinutes", r.DefaultMaxMinutes); err != nil {
		return err
	}
	return nil
}

// JoinSessionRequest is the body of POST /api/sessions/join
type JoinSessionRequest struct {
	Code string `json:"code"`
}

// Validate upper-cases the code and checks its shape
func (r *JoinSessionRequest) Validate() error {
	r.Code = strings.ToUpper(strings.TrimSpace(r.Code))
	if len(r.Code) != JoinCodeLength {
		return invalid("code", "must be %d characters", JoinCodeLength)
	}
	for _, c := range r.Code {
		if !strings.ContainsRune(JoinCodeAlphabet, c) {
			return invalid("code", "contains unexpected character %q", c)
		}
	}
	return nil
}

// ReadyRequest is the body of POST /api/sessions/{id}/ready
type ReadyRequest struct {
	IsReady *bool `json:"isReady"`
}

func (r *ReadyRequest) Validate() error {
	if r.IsReady == nil {
		return invalid("isReady", "is required")
	}
	return nil
}

// DeckInitRequest is the body of POST /api/sessions/{id}/deck/init
type DeckInitRequest struct {
	Lat        *float64    `json:"lat"`
	Lng        *float64    `json:"lng"`
	Mode       *TravelMode `json:"mode,omitempty"`
	MaxMinutes *int        `json:"maxMinutes,omitempty"`
	Cuisines   []string    `json:"cuisines,omitempty"`
	Price      *string     `json:"price,omitempty"`
	OpenNow    bool        `json:"openNow,omitempty"`
}

func (r *DeckInitRequest) Validate() error {
	if err := validateCoordinates(r.Lat, r.Lng); err != nil {
		return err
	}
	if r.Mode != nil && !r.Mode.Valid() {
		return invalid("mode", "unknown mode %q", *r.Mode)
	}
	if err := validateMaxMinutes("maxMinutes", r.MaxMinutes); err != nil {
		return err
	}
	for i, c := range r.Cuisines {
		r.Cuisines[i] = strings.TrimSpace(c)
		if r.Cuisines[i] == "" {
			return invalid("cuisines", "entries must not be empty")
		}
	}
	if r.Price != nil {
		p := strings.TrimSpace(*r.Price)
		if len(p) != 1 || p[0] < '0' || p[0] > '4' {
			return invalid("price", "must be a level between 0 and 4")
		}
		r.Price = &p
	}
	return nil
}

// Origin returns the request location.
func (r DeckInitRequest) Origin() Location {
	return Location{Lat: *r.Lat, Lng: *r.Lng}
}

// DeckExpandRequest is the body of POST /api/sessions/{id}/deck/expand
type DeckExpandRequest struct {
	Lat        *float64    `json:"lat"`
	Lng        *float64    `json:"lng"`
	Mode       *TravelMode `json:"mode,omitempty"`
	MaxMinutes *int        `json:"maxMinutes,omitempty"`
}

func (r *DeckExpandRequest) Validate() error {
	if err := validateCoordinates(r.Lat, r.Lng); err != nil {
		return err
	}
	if r.Mode != nil && !r.Mode.Valid() {
		return invalid("mode", "unknown mode %q", *r.Mode)
	}
	if r.MaxMinutes != nil && (*r.MaxMinutes < 5 || *r.MaxMinutes > 240) {
		return invalid("maxMinutes", "must be between 5 and 240")
	}
	return nil
}

// Origin returns the request location.
func (r DeckExpandRequest) Origin() Location {
	return Location{Lat: *r.Lat, Lng: *r.Lng}
}

// DeckPageRequest carries the query of GET /api/sessions/{id}/deck
type DeckPageRequest struct {
	Group  DeckGroup
	Cursor int
	Origin *Location
	Mode   TravelMode
}

// Validate fills defaults and checks the cursor and group
func (r *DeckPageRequest) Validate() error {
	if r.Group == "" {
		r.Group = DeckGroupNear
	}
	if !r.Group.Valid() {
		return invalid("group", "unknown group %q", r.Group)
	}
	if r.Cursor < 0 {
		return invalid("cursor", "must not be negative")
	}
	if r.Mode == "" {
		r.Mode = TravelModeAny
	}
	if !r.Mode.Valid() {
		return invalid("mode", "unknown mode %q", r.Mode)
	}
	if r.Origin != nil {
		return validateCoordinates(&r.Origin.Lat, &r.Origin.Lng)
	}
	return nil
}

// SwipeRequest is the body of POST /api/sessions/{id}/swipes
type SwipeRequest struct {
	VenueID  string        `json:"venueId"`
	Decision SwipeDecision `json:"decision"`
}

func (r *SwipeRequest) Validate() error {
	r.VenueID = strings.TrimSpace(r.VenueID)
	if r.VenueID == "" {
		return invalid("venueId", "is required")
	}
	r.Decision = SwipeDecision(strings.ToUpper(string(r.Decision)))
	if !r.Decision.Valid() {
		return invalid("decision", "must be YES or NO")
	}
	return nil
}

func validateCoordinates(lat, lng *float64) error {
	if lat == nil {
		return invalid("lat", "is required")
	}
	if lng == nil {
		return invalid("lng", "is required")
	}
	if *lat < -90 || *lat > 90 {
		return invalid("lat", "out of range")
	}
	if *lng < -180 || *lng > 180 {
		return invalid("lng", "out of range")
	}
	return nil
}

func validateMaxMinutes(field string, v *int) error {
	if v != nil && (*v < 5 || *v > 120) {
		return invalid(field, "must be between 5 and 120")
	}
	return nil
}

// Valid reports whether m is a known swipe mode.
func (m SwipeMode) Valid() bool {
	return m == SwipeModeAllMustAgree || m == SwipeModeThreshold
}

// Valid reports whether m is a known travel mode.
func (m TravelMode) Valid() bool {
	return m == TravelModeWalk || m == TravelModeDrive || m == TravelModeAny
}

// Valid reports whether g is a known deck group.
func (g DeckGroup) Valid() bool {
	return g == DeckGroupNear || g == DeckGroupFar
}

// Valid reports whether d is YES or NO.
func (d SwipeDecision) Valid() bool {
	return d == DecisionYes || d == DecisionNo
}

package models

// ✅ Swipe modes (how a session decides a match)
type SwipeMode string

const (
	SwipeModeAllMustAgree SwipeMode = "ALL_MUST_AGREE"
	SwipeModeThreshold    SwipeMode = "THRESHOLD"
)

// ✅ Swipe decisions
type SwipeDecision string

const (
	DecisionYes SwipeDecision = "YES"
	DecisionNo  SwipeDecision = "NO"
)

// ✅ Match statuses
type MatchStatus string

const (
	MatchStatusNone    MatchStatus = "NONE"
	MatchStatusPartial MatchStatus = "PARTIAL"
	MatchStatusMatch   MatchStatus = "MATCH"
)

// ✅ Deck groups (NEAR = initial radius, FAR = expanded radius)
type DeckGroup string

const (
	DeckGroupNear DeckGroup = "NEAR"
	DeckGroupFar  DeckGroup = "FAR"
)

// ✅ Travel modes
type TravelMode string

const (
	TravelModeWalk  TravelMode = "WALK"
	TravelModeDrive TravelMode = "DRIVE"
	TravelModeAny   TravelMode = "ANY"
)

// ✅ Realtime event names
const (
	EventSessionUpdate = "session:update"
	EventDeckExhausted = "deck:exhausted"
	EventMatchUpdate   = "match:update"
)

// ProviderGoogle is the only places provider wired today.
const ProviderGoogle = "GOOGLE"

// DeckPageSize is the number of deck items returned per page.
const DeckPageSize = 8

// Join codes avoid look-alike characters (0/O, 1/I).
const (
	JoinCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	JoinCodeLength   = 6
)

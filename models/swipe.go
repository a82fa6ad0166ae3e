package models

import "time"

// Swipe is one member's immutable decision on one venue within one session
type Swipe struct {
	SessionID    string        `gorm:"primaryKey;size:36" dynamodbav:"sessionId" json:"sessionId"`
	VenueID      string        `gorm:"primaryKey;size:36" dynamodbav:"venueId" json:"venueId"`
	UserID       string        `gorm:"primaryKey;size:64" dynamodbav:"userId" json:"userId"` // ✅ Sort Key
	Decision     SwipeDecision `gorm:"size:3;not null" dynamodbav:"decision" json:"decision"`
	CreatedAt    time.Time     `dynamodbav:"createdAt" json:"createdAt"`
	SessionVenue string        `gorm:"-" dynamodbav:"sessionVenue" json:"-"` // ✅ Partition Key, "sessionId#venueId"
}

// SessionVenueKey is the DynamoDB partition key for all swipes on one venue in one session.
func SessionVenueKey(sessionID, venueID string) string {
	return sessionID + "#" + venueID
}

// MatchSnapshot is the aggregate tally for one venue in one session. Counts are
// always recomputed from the swipes, never incremented.
type MatchSnapshot struct {
	SessionID string      `gorm:"primaryKey;size:36" dynamodbav:"sessionId" json:"sessionId"` // ✅ Partition Key
	VenueID   string      `gorm:"primaryKey;size:36" dynamodbav:"venueId" json:"venueId"`     // ✅ Sort Key
	YesCount  int         `gorm:"not null" dynamodbav:"yesCount" json:"yesCount"`
	NoCount   int         `gorm:"not null" dynamodbav:"noCount" json:"noCount"`
	Status    MatchStatus `gorm:"size:10;not null;index" dynamodbav:"status" json:"status"`
	Version   int64       `gorm:"not null" dynamodbav:"version" json:"-"` // Optimistic lock for DynamoDB
	UpdatedAt time.Time   `dynamodbav:"updatedAt" json:"updatedAt"`
}

// ShortlistItem is a snapshot joined with its venue and distance from the caller
type ShortlistItem struct {
	Venue          Venue       `json:"venue"`
	YesCount       int         `json:"yesCount"`
	NoCount        int         `json:"noCount"`
	Status         MatchStatus `json:"status"`
	DistanceMeters *float64    `json:"distanceMeters"`
	EtaMinutes     *int        `json:"etaMinutes"`
}

// Shortlist partitions a session's promising venues
type Shortlist struct {
	Matches  []ShortlistItem `json:"matches"`
	Partials []ShortlistItem `json:"partials"`
}

package models

import "fmt"

// DeckItem places one venue in a session deck. Items are append-only and a
// venue appears at most once per session across both groups.
type DeckItem struct {
	SessionID string    `gorm:"primaryKey;size:36;index:idx_deck_order,priority:1" dynamodbav:"sessionId" json:"sessionId"`            // ✅ Partition Key
	VenueID   string    `gorm:"primaryKey;size:36" dynamodbav:"venueId" json:"venueId"`                                                // ✅ Sort Key
	Group     DeckGroup `gorm:"column:deck_group;size:4;not null;index:idx_deck_order,priority:2" dynamodbav:"deckGroup" json:"group"` // NEAR or FAR
	Rank      int       `gorm:"column:deck_rank;not null;index:idx_deck_order,priority:3" dynamodbav:"rank" json:"rank"`               // Order within the group
	GroupRank string    `gorm:"-" dynamodbav:"groupRank" json:"-"`                                                                     // LSI sort key, "NEAR#000012"
}

// GroupRankKey builds the sortable LSI key for a group and rank.
func GroupRankKey(group DeckGroup, rank int) string {
	return fmt.Sprintf("%s#%06d", group, rank)
}

// DeckCard is a deck item with its venue and presentation-time distance fields
type DeckCard struct {
	VenueID        string    `json:"venueId"`
	Group          DeckGroup `json:"group"`
	Rank           int       `json:"rank"`
	Venue          Venue     `json:"venue"`
	DistanceMeters *float64  `json:"distanceMeters"`
	EtaMinutes     *int      `json:"etaMinutes"`
}

// DeckPage is one page of a deck group
type DeckPage struct {
	Group      DeckGroup  `json:"group"`
	Items      []DeckCard `json:"items"`
	NextCursor *int       `json:"nextCursor"`
}

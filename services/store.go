package services

import (
	"context"
	"time"

	"tablematch_server/models"
)

// QuorumFunc derives a match status from a venue's tally and the session configuration
type QuorumFunc func(yesCount, noCount, activeMembers int, session models.Session) models.MatchStatus

// Store is the persistence boundary shared by every service. Implementations
// must enforce the uniqueness constraints themselves: one member row per
// (session, user), one deck item per (session, venue), one swipe per
// (session, venue, user), one snapshot per (session, venue).
type Store interface {
	// CreateSession stores a session together with its host membership.
	// Returns ErrCodeTaken when the join code is already used.
	CreateSession(ctx context.Context, session *models.Session, host *models.SessionMember) error
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)
	GetSessionByCode(ctx context.Context, code string) (*models.Session, error)
	EndSession(ctx context.Context, sessionID string, endedAt time.Time) error

	// JoinSession creates the membership or clears LeftAt on an existing one.
	JoinSession(ctx context.Context, sessionID, userID string, now time.Time) (*models.SessionMember, error)
	GetMember(ctx context.Context, sessionID, userID string) (*models.SessionMember, error)
	ListMembers(ctx context.Context, sessionID string) ([]models.SessionMember, error)
	SetMemberReady(ctx context.Context, sessionID, userID string, ready bool) error
	// LeaveSession stamps LeftAt and clears IsReady.
	LeaveSession(ctx context.Context, sessionID, userID string, at time.Time) error

	// UpsertVenue inserts by (provider, providerPlaceId) or refreshes the
	// existing row, and sets venue.ID to the stored id.
	UpsertVenue(ctx context.Context, venue *models.Venue) error
	GetVenue(ctx context.Context, venueID string) (*models.Venue, error)
	FindVenueByProvider(ctx context.Context, provider, providerPlaceID string) (*models.Venue, error)
	GetVenues(ctx context.Context, venueIDs []string) (map[string]models.Venue, error)

	CountDeckItems(ctx context.Context, sessionID string, group models.DeckGroup) (int, error)
	// DeckVenueIDs returns every venue id in the session deck, both groups.
	DeckVenueIDs(ctx context.Context, sessionID string) ([]string, error)
	// AppendDeckItems writes items atomically; items whose venue is already in
	// the session deck are skipped silently.
	AppendDeckItems(ctx context.Context, items []models.DeckItem) error
	// ListDeckItems returns a group ordered by rank, then venue id.
	ListDeckItems(ctx context.Context, sessionID string, group models.DeckGroup, offset, limit int) ([]models.DeckItem, error)

	// RecordSwipe inserts the swipe and recomputes the venue snapshot from all
	// swipes as one atomic unit. Returns ErrConflict, leaving the snapshot
	// untouched, when the user already swiped this venue.
	RecordSwipe(ctx context.Context, swipe models.Swipe, quorum QuorumFunc) (*models.MatchSnapshot, error)
	GetSnapshot(ctx context.Context, sessionID, venueID string) (*models.MatchSnapshot, error)
	ListSnapshots(ctx context.Context, sessionID string, statuses ...models.MatchStatus) ([]models.MatchSnapshot, error)

	Close() error
}

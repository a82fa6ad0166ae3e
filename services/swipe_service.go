package services

import (
	"context"
	"errors"
	"log"
	"time"

	"tablematch_server/models"
	"tablematch_server/socket"
)

// MatchUpdate is the payload of the match:update event
type MatchUpdate struct {
	VenueID  string             `json:"venueId"`
	YesCount int                `json:"yesCount"`
	NoCount  int                `json:"noCount"`
	Status   models.MatchStatus `json:"status"`
}

type SwipeService struct {
	Store     Store
	Publisher socket.Publisher
	Quorum    QuorumFunc
	Now       func() time.Time
}

func NewSwipeService(store Store, publisher socket.Publisher) *SwipeService {
	return &SwipeService{Store: store, Publisher: publisher, Quorum: EvaluateQuorum, Now: time.Now}
}

// RecordSwipe stores the caller's decision on a venue and returns the
// recomputed snapshot. A repeat decision on the same venue fails with
// ErrConflict and leaves the snapshot as it was.
func (ss *SwipeService) RecordSwipe(ctx context.Context, userID, sessionID string, req models.SwipeRequest) (*models.MatchSnapshot, error) {
	if _, err := requireActiveMember(ctx, ss.Store, sessionID, userID); err != nil {
		return nil, err
	}
	if _, err := ss.Store.GetVenue(ctx, req.VenueID); err != nil {
		return nil, err
	}

	snapshot, err := ss.Store.RecordSwipe(ctx, models.Swipe{
		SessionID: sessionID,
		VenueID:   req.VenueID,
		UserID:    userID,
		Decision:  req.Decision,
		CreatedAt: ss.Now().UTC(),
	}, ss.Quorum)
	if errors.Is(err, ErrConflict) {
		log.Printf("⚠️ %s already swiped venue %s in session %s", userID, req.VenueID, sessionID)
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	log.Printf("✅ %s swiped %s on venue %s (yes=%d no=%d %s)",
		userID, req.Decision, req.VenueID, snapshot.YesCount, snapshot.NoCount, snapshot.Status)
	ss.Publisher.Publish(sessionID, models.EventMatchUpdate, MatchUpdate{
		VenueID:  snapshot.VenueID,
		YesCount: snapshot.YesCount,
		NoCount:  snapshot.NoCount,
		Status:   snapshot.Status,
	})
	return snapshot, nil
}

package services

import (
	"context"
	"math"
	"sort"

	"tablematch_server/models"
	"tablematch_server/utils"
)

type ShortlistService struct {
	Store Store
}

func NewShortlistService(store Store) *ShortlistService {
	return &ShortlistService{Store: store}
}

// GetShortlist returns the session's MATCH and PARTIAL venues. Partials are
// ordered by yes votes, then rating, then distance from origin.
func (ss *ShortlistService) GetShortlist(ctx context.Context, userID, sessionID string, origin *models.Location) (*models.Shortlist, error) {
	if _, err := requireActiveMember(ctx, ss.Store, sessionID, userID); err != nil {
		return nil, err
	}
	snapshots, err := ss.Store.ListSnapshots(ctx, sessionID, models.MatchStatusMatch, models.MatchStatusPartial)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(snapshots))
	for i, snap := range snapshots {
		ids[i] = snap.VenueID
	}
	venues, err := ss.Store.GetVenues(ctx, ids)
	if err != nil {
		return nil, err
	}

	shortlist := &models.Shortlist{Matches: []models.ShortlistItem{}, Partials: []models.ShortlistItem{}}
	for _, snap := range snapshots {
		venue, ok := venues[snap.VenueID]
		if !ok {
			continue
		}
		distance, eta := utils.DistanceFrom(origin, venue, models.TravelModeAny)
		item := models.ShortlistItem{
			Venue:          venue,
			YesCount:       snap.YesCount,
			NoCount:        snap.NoCount,
			Status:         snap.Status,
			DistanceMeters: distance,
			EtaMinutes:     eta,
		}
		if snap.Status == models.MatchStatusMatch {
			shortlist.Matches = append(shortlist.Matches, item)
		} else {
			shortlist.Partials = append(shortlist.Partials, item)
		}
	}

	SortPartials(shortlist.Partials)
	return shortlist, nil
}

// SortPartials orders by yesCount desc, rating desc (missing is 0), then
// distance asc (missing is last)
func SortPartials(items []models.ShortlistItem) {
	rating := func(it models.ShortlistItem) float64 {
		if it.Venue.Rating == nil {
			return 0
		}
		return *it.Venue.Rating
	}
	distance := func(it models.ShortlistItem) float64 {
		if it.DistanceMeters == nil {
			return math.Inf(1)
		}
		return *it.DistanceMeters
	}
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.YesCount != b.YesCount {
			return a.YesCount > b.YesCount
		}
		if ra, rb := rating(a), rating(b); ra != rb {
			return ra > rb
		}
		return distance(a) < distance(b)
	})
}

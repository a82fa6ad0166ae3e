package services

import (
	"context"
	"log"

	"tablematch_server/models"
	"tablematch_server/socket"
	"tablematch_server/utils"
)

// defaultExpandMinutes is the travel budget used when expand gets none
const defaultExpandMinutes = 60

// Discoverer finds candidate venues for a deck
type Discoverer interface {
	SearchNearby(ctx context.Context, query PlaceQuery) ([]models.Venue, error)
}

// DeckService composes and pages session decks. Deck order is derived from a
// seeded shuffle so the same session always gets the same NEAR order.
type DeckService struct {
	Store     Store
	Places    Discoverer
	Publisher socket.Publisher
}

func NewDeckService(store Store, places Discoverer, publisher socket.Publisher) *DeckService {
	return &DeckService{Store: store, Places: places, Publisher: publisher}
}

func deckSeed(sessionID string, group models.DeckGroup) string {
	return sessionID + "-" + string(group)
}

// InitDeck builds the NEAR group on first call. Later calls return the first
// page of the existing deck without touching it.
func (ds *DeckService) InitDeck(ctx context.Context, userID, sessionID string, req models.DeckInitRequest) (*models.DeckPage, error) {
	if _, err := requireActiveMember(ctx, ds.Store, sessionID, userID); err != nil {
		return nil, err
	}
	session, err := ds.Store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	mode := session.DefaultTravelMode
	if req.Mode != nil {
		mode = *req.Mode
	}
	if mode == "" {
		mode = models.TravelModeAny
	}
	origin := req.Origin()

	existing, err := ds.Store.CountDeckItems(ctx, sessionID, models.DeckGroupNear)
	if err != nil {
		return nil, err
	}
	if existing > 0 {
		return ds.page(ctx, sessionID, models.DeckGroupNear, 0, &origin, mode)
	}

	maxMinutes := session.DefaultMaxMinutes
	if req.MaxMinutes != nil {
		maxMinutes = req.MaxMinutes
	}
	venues, err := ds.Places.SearchNearby(ctx, PlaceQuery{
		Origin:     origin,
		Mode:       mode,
		MaxMinutes: maxMinutes,
		Cuisines:   req.Cuisines,
		Price:      req.Price,
		OpenNow:    req.OpenNow,
	})
	if err != nil {
		return nil, err
	}

	ids := utils.DeterministicShuffle(uniqueVenueIDs(venues, nil), deckSeed(sessionID, models.DeckGroupNear))
	if err := ds.Store.AppendDeckItems(ctx, deckItems(sessionID, models.DeckGroupNear, 0, ids)); err != nil {
		return nil, err
	}
	log.Printf("✅ NEAR deck for session %s initialized with %d venues", sessionID, len(ids))
	return ds.page(ctx, sessionID, models.DeckGroupNear, 0, &origin, mode)
}

// GetDeckPage returns one page of a group starting at req.Cursor
func (ds *DeckService) GetDeckPage(ctx context.Context, userID, sessionID string, req models.DeckPageRequest) (*models.DeckPage, error) {
	if _, err := requireActiveMember(ctx, ds.Store, sessionID, userID); err != nil {
		return nil, err
	}
	return ds.page(ctx, sessionID, req.Group, req.Cursor, req.Origin, req.Mode)
}

// ExpandDeck appends venues not yet in the deck to the FAR group, ranked
// after the FAR items already there, and returns the first FAR page
func (ds *DeckService) ExpandDeck(ctx context.Context, userID, sessionID string, req models.DeckExpandRequest) (*models.DeckPage, error) {
	if _, err := requireActiveMember(ctx, ds.Store, sessionID, userID); err != nil {
		return nil, err
	}

	mode := models.TravelModeAny
	if req.Mode != nil {
		mode = *req.Mode
	}
	maxMinutes := defaultExpandMinutes
	if req.MaxMinutes != nil {
		maxMinutes = *req.MaxMinutes
	}
	origin := req.Origin()

	present, err := ds.Store.DeckVenueIDs(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	venues, err := ds.Places.SearchNearby(ctx, PlaceQuery{Origin: origin, Mode: mode, MaxMinutes: &maxMinutes})
	if err != nil {
		return nil, err
	}

	skip := make(map[string]bool, len(present))
	for _, id := range present {
		skip[id] = true
	}
	ids := utils.DeterministicShuffle(uniqueVenueIDs(venues, skip), deckSeed(sessionID, models.DeckGroupFar))

	farCount, err := ds.Store.CountDeckItems(ctx, sessionID, models.DeckGroupFar)
	if err != nil {
		return nil, err
	}
	if err := ds.Store.AppendDeckItems(ctx, deckItems(sessionID, models.DeckGroupFar, farCount, ids)); err != nil {
		return nil, err
	}
	log.Printf("✅ FAR deck for session %s expanded by %d venues", sessionID, len(ids))
	return ds.page(ctx, sessionID, models.DeckGroupFar, 0, &origin, mode)
}

func (ds *DeckService) page(ctx context.Context, sessionID string, group models.DeckGroup, cursor int, origin *models.Location, mode models.TravelMode) (*models.DeckPage, error) {
	items, err := ds.Store.ListDeckItems(ctx, sessionID, group, cursor, models.DeckPageSize)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.VenueID
	}
	venues, err := ds.Store.GetVenues(ctx, ids)
	if err != nil {
		return nil, err
	}

	page := &models.DeckPage{Group: group, Items: make([]models.DeckCard, 0, len(items))}
	for _, item := range items {
		venue := venues[item.VenueID]
		distance, eta := utils.DistanceFrom(origin, venue, mode)
		page.Items = append(page.Items, models.DeckCard{
			VenueID:        item.VenueID,
			Group:          item.Group,
			Rank:           item.Rank,
			Venue:          venue,
			DistanceMeters: distance,
			EtaMinutes:     eta,
		})
	}
	if len(items) == models.DeckPageSize {
		next := cursor + models.DeckPageSize
		page.NextCursor = &next
	}

	if len(items) == 0 && group == models.DeckGroupNear {
		ds.Publisher.Publish(sessionID, models.EventDeckExhausted, map[string]string{"group": string(models.DeckGroupNear)})
	}
	return page, nil
}

// uniqueVenueIDs keeps the first occurrence of each venue id not in skip
func uniqueVenueIDs(venues []models.Venue, skip map[string]bool) []string {
	seen := make(map[string]bool, len(venues))
	ids := make([]string, 0, len(venues))
	for _, v := range venues {
		if v.ID == "" || seen[v.ID] || skip[v.ID] {
			continue
		}
		seen[v.ID] = true
		ids = append(ids, v.ID)
	}
	return ids
}

func deckItems(sessionID string, group models.DeckGroup, firstRank int, venueIDs []string) []models.DeckItem {
	items := make([]models.DeckItem, len(venueIDs))
	for i, id := range venueIDs {
		items[i] = models.DeckItem{SessionID: sessionID, VenueID: id, Group: group, Rank: firstRank + i}
	}
	return items
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"tablematch_server/models"
	"tablematch_server/utils"
)

// PlaceQuery describes one candidate discovery request
type PlaceQuery struct {
	Origin     models.Location
	Mode       models.TravelMode
	MaxMinutes *int
	Cuisines   []string
	Price      *string
	OpenNow    bool
}

// PlacesProvider is a places directory. Returned venues carry the provider
// fields and attributes but no id.
type PlacesProvider interface {
	Name() string
	NearbySearch(ctx context.Context, query PlaceQuery, radiusMeters int) ([]models.Venue, error)
	// PlaceDetails returns the extended attributes of one place, or nil when
	// the provider has none.
	PlaceDetails(ctx context.Context, providerPlaceID string) (*models.Venue, error)
}

// PlacesService turns provider results into stored venues
type PlacesService struct {
	Store    Store
	Provider PlacesProvider
	Timeout  time.Duration
	Now      func() time.Time
}

func NewPlacesService(store Store, provider PlacesProvider, timeout time.Duration) *PlacesService {
	return &PlacesService{Store: store, Provider: provider, Timeout: timeout, Now: time.Now}
}

// SearchNearby fetches candidates around the query origin and upserts them.
// Venues refreshed within the last 24 hours are returned as stored; others
// are enriched with place details first. Provider failures and timeouts are
// reported as ErrUpstreamUnavailable.
func (ps *PlacesService) SearchNearby(ctx context.Context, query PlaceQuery) ([]models.Venue, error) {
	// The timeout bounds provider calls only; store writes run on ctx.
	providerCtx, cancel := context.WithTimeout(ctx, ps.Timeout)
	defer cancel()

	radius := utils.SearchRadiusMeters(query.Mode, query.MaxMinutes)
	found, err := ps.Provider.NearbySearch(providerCtx, query, radius)
	if err != nil {
		log.Printf("❌ Places search failed (radius %dm): %v", radius, err)
		return nil, upstream(err)
	}

	now := ps.Now().UTC()
	venues := make([]models.Venue, 0, len(found))
	for _, candidate := range found {
		candidate.Provider = ps.Provider.Name()

		existing, err := ps.Store.FindVenueByProvider(ctx, candidate.Provider, candidate.ProviderPlaceID)
		switch {
		case err == nil && !existing.Stale(now):
			venues = append(venues, *existing)
			continue
		case err != nil && !errors.Is(err, ErrNotFound):
			return nil, err
		}

		details, err := ps.Provider.PlaceDetails(providerCtx, candidate.ProviderPlaceID)
		switch {
		case err != nil && providerCtx.Err() != nil && ctx.Err() == nil:
			log.Printf("❌ Places discovery ran out of time after %d of %d venues", len(venues), len(found))
			return nil, upstream(providerCtx.Err())
		case err != nil:
			// Details only enrich the card; the nearby result is enough to swipe on.
			log.Printf("⚠️ Place details for %s unavailable: %v", candidate.ProviderPlaceID, err)
		case details != nil:
			mergeDetails(&candidate, details)
		}

		candidate.LastRefreshedAt = now
		if err := ps.Store.UpsertVenue(ctx, &candidate); err != nil {
			return nil, err
		}
		venues = append(venues, candidate)
	}

	log.Printf("✅ Places search returned %d venues (radius %dm)", len(venues), radius)
	return venues, nil
}

func upstream(err error) error {
	if errors.Is(err, ErrUpstreamUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
}

// mergeDetails overlays every attribute the details lookup provided
func mergeDetails(v *models.Venue, d *models.Venue) {
	if d.Name != "" {
		v.Name = d.Name
	}
	if d.Address != nil {
		v.Address = d.Address
	}
	if d.Lat != nil && d.Lng != nil {
		v.Lat, v.Lng = d.Lat, d.Lng
	}
	if d.Rating != nil {
		v.Rating = d.Rating
	}
	if d.PriceLevel != nil {
		v.PriceLevel = d.PriceLevel
	}
	if len(d.Categories) > 0 {
		v.Categories = d.Categories
	}
	if d.Phone != nil {
		v.Phone = d.Phone
	}
	if d.WebsiteURL != nil {
		v.WebsiteURL = d.WebsiteURL
	}
	if d.MenuURL != nil {
		v.MenuURL = d.MenuURL
	}
}

package models

import "time"

// VenueDetailsTTL is how long venue attributes are trusted before a refresh.
const VenueDetailsTTL = 24 * time.Hour

// Venue is a candidate place, unique per (provider, provider-native id)
type Venue struct {
	ID              string    `gorm:"primaryKey;size:36" dynamodbav:"venueId" json:"id"`                                                     // ✅ Partition Key
	Provider        string    `gorm:"size:20;not null;uniqueIndex:idx_venue_provider" dynamodbav:"provider" json:"provider"`                 // e.g. GOOGLE
	ProviderPlaceID string    `gorm:"size:255;not null;uniqueIndex:idx_venue_provider" dynamodbav:"providerPlaceId" json:"providerPlaceId"` // Provider-native id
	Name            string    `gorm:"size:255;not null" dynamodbav:"name" json:"name"`
	Address         *string   `dynamodbav:"address,omitempty" json:"address,omitempty"`
	Lat             *float64  `dynamodbav:"lat,omitempty" json:"lat,omitempty"`
	Lng             *float64  `dynamodbav:"lng,omitempty" json:"lng,omitempty"`
	Rating          *float64  `dynamodbav:"rating,omitempty" json:"rating,omitempty"`
	PriceLevel      *int      `dynamodbav:"priceLevel,omitempty" json:"priceLevel,omitempty"`
	Categories      []string  `gorm:"serializer:json" dynamodbav:"categories,omitempty" json:"categories,omitempty"`
	Phone           *string   `dynamodbav:"phone,omitempty" json:"phone,omitempty"`
	WebsiteURL      *string   `dynamodbav:"websiteUrl,omitempty" json:"websiteUrl,omitempty"`
	MenuURL         *string   `dynamodbav:"menuUrl,omitempty" json:"menuUrl,omitempty"`
	LastRefreshedAt time.Time `dynamodbav:"lastRefreshedAt" json:"lastRefreshedAt"`
}

// ProviderKey is the natural key used to de-duplicate provider results.
func (v Venue) ProviderKey() string {
	return v.Provider + "#" + v.ProviderPlaceID
}

// Stale reports whether the venue attributes are older than VenueDetailsTTL.
func (v Venue) Stale(now time.Time) bool {
	return v.LastRefreshedAt.IsZero() || now.Sub(v.LastRefreshedAt) > VenueDetailsTTL
}

// HasCoordinates reports whether both coordinates are known.
func (v Venue) HasCoordinates() bool {
	return v.Lat != nil && v.Lng != nil
}

// VenueProviderKey guards (provider, providerPlaceId) uniqueness in DynamoDB
type VenueProviderKey struct {
	ProviderKey string `dynamodbav:"providerKey"` // ✅ Partition Key
	VenueID     string `dynamodbav:"venueId"`
}

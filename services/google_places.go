package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"tablematch_server/models"
)

// GooglePlacesClient talks to the Google Places web service
type GooglePlacesClient struct {
	APIKey  string
	BaseURL string
	HTTP    *http.Client
}

func NewGooglePlacesClient(apiKey, baseURL string) *GooglePlacesClient {
	return &GooglePlacesClient{
		APIKey:  apiKey,
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{},
	}
}

type googleLocation struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type googlePlace struct {
	PlaceID          string   `json:"place_id"`
	Name             string   `json:"name"`
	Vicinity         string   `json:"vicinity"`
	FormattedAddress string   `json:"formatted_address"`
	PhoneNumber      string   `json:"formatted_phone_number"`
	Website          string   `json:"website"`
	Rating           *float64 `json:"rating"`
	PriceLevel       *int     `json:"price_level"`
	Types            []string `json:"types"`
	Geometry         *struct {
		Location *googleLocation `json:"location"`
	} `json:"geometry"`
}

type googleResponse struct {
	Status       string        `json:"status"`
	ErrorMessage string        `json:"error_message"`
	Results      []googlePlace `json:"results"`
	Result       *googlePlace  `json:"result"`
}

func (c *GooglePlacesClient) Name() string {
	return models.ProviderGoogle
}

// NearbySearch queries /nearbysearch for restaurants within radiusMeters
func (c *GooglePlacesClient) NearbySearch(ctx context.Context, query PlaceQuery, radiusMeters int) ([]models.Venue, error) {
	params := url.Values{}
	params.Set("location", fmt.Sprintf("%f,%f", query.Origin.Lat, query.Origin.Lng))
	params.Set("radius", strconv.Itoa(radiusMeters))
	params.Set("type", "restaurant")
	if query.OpenNow {
		params.Set("opennow", "true")
	}
	if len(query.Cuisines) > 0 {
		params.Set("keyword", strings.Join(query.Cuisines, " "))
	}
	if query.Price != nil {
		params.Set("minprice", *query.Price)
		params.Set("maxprice", *query.Price)
	}

	var resp googleResponse
	if err := c.get(ctx, "/nearbysearch/json", params, &resp); err != nil {
		return nil, err
	}

	venues := make([]models.Venue, 0, len(resp.Results))
	for _, p := range resp.Results {
		if p.PlaceID == "" {
			continue
		}
		venues = append(venues, p.venue())
	}
	return venues, nil
}

// PlaceDetails queries /details for the attributes nearby search omits
func (c *GooglePlacesClient) PlaceDetails(ctx context.Context, providerPlaceID string) (*models.Venue, error) {
	params := url.Values{}
	params.Set("place_id", providerPlaceID)
	params.Set("fields", "name,formatted_address,formatted_phone_number,geometry,price_level,rating,types,website")

	var resp googleResponse
	if err := c.get(ctx, "/details/json", params, &resp); err != nil {
		return nil, err
	}
	if resp.Result == nil {
		return nil, nil
	}
	v := resp.Result.venue()
	return &v, nil
}

func (c *GooglePlacesClient) get(ctx context.Context, path string, params url.Values, out *googleResponse) error {
	if c.APIKey == "" {
		return fmt.Errorf("%w: places api key is not configured", ErrUpstreamUnavailable)
	}
	params.Set("key", c.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	res, err := c.HTTP.Do(req)
	if err != nil {
		return upstream(err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: places returned HTTP %d", ErrUpstreamUnavailable, res.StatusCode)
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return upstream(fmt.Errorf("decode places response: %w", err))
	}
	switch out.Status {
	case "OK", "ZERO_RESULTS":
		return nil
	case "NOT_FOUND":
		out.Result = nil
		return nil
	default:
		return upstream(errors.New("places status " + out.Status + " " + out.ErrorMessage))
	}
}

func (p googlePlace) venue() models.Venue {
	v := models.Venue{
		Provider:        models.ProviderGoogle,
		ProviderPlaceID: p.PlaceID,
		Name:            p.Name,
		Rating:          p.Rating,
		PriceLevel:      p.PriceLevel,
		Categories:      p.Types,
	}
	if addr := firstNonEmpty(p.FormattedAddress, p.Vicinity); addr != "" {
		v.Address = &addr
	}
	if p.Geometry != nil && p.Geometry.Location != nil {
		lat, lng := p.Geometry.Location.Lat, p.Geometry.Location.Lng
		v.Lat, v.Lng = &lat, &lng
	}
	if p.PhoneNumber != "" {
		phone := p.PhoneNumber
		v.Phone = &phone
	}
	if p.Website != "" {
		site := p.Website
		v.WebsiteURL = &site
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, s := range values {
		if s != "" {
			return s
		}
	}
	return ""
}

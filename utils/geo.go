package utils

import (
	"math"

	"tablematch_server/models"
)

const earthRadiusMeters = 6371000.0

// HaversineMeters returns the great-circle distance between two points
func HaversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := func(v float64) float64 { return v * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Pow(math.Sin(dLat/2), 2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Pow(math.Sin(dLng/2), 2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

// EstimateEtaMinutes converts a distance to whole travel minutes, at least 1.
// Walking assumes 5 km/h, everything else 35 km/h.
func EstimateEtaMinutes(distanceMeters float64, mode models.TravelMode) int {
	speedKmh := 35.0
	if mode == models.TravelModeWalk {
		speedKmh = 5
	}
	speedMps := speedKmh * 1000 / 3600
	minutes := int(math.Round(distanceMeters / speedMps / 60))
	if minutes < 1 {
		return 1
	}
	return minutes
}

// SearchRadiusMeters derives the discovery radius from a travel budget.
// Without a budget the radius is 2 km; with one it never drops below 500 m.
func SearchRadiusMeters(mode models.TravelMode, maxMinutes *int) int {
	if maxMinutes == nil {
		return 2000
	}
	var speedKmh float64
	switch mode {
	case models.TravelModeWalk:
		speedKmh = 5
	case models.TravelModeDrive:
		speedKmh = 35
	default:
		speedKmh = 20
	}
	radius := int(math.Round(float64(*maxMinutes) * speedKmh * 1000 / 60))
	if radius < 500 {
		return 500
	}
	return radius
}

// DistanceFrom computes distance and ETA from origin to venue. Both are nil
// when either side lacks coordinates.
func DistanceFrom(origin *models.Location, venue models.Venue, mode models.TravelMode) (*float64, *int) {
	if origin == nil || !venue.HasCoordinates() {
		return nil, nil
	}
	d := HaversineMeters(origin.Lat, origin.Lng, *venue.Lat, *venue.Lng)
	eta := EstimateEtaMinutes(d, mode)
	return &d, &eta
}

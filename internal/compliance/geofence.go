package compliance

import (
	"fmt"
	"math"

	"fieldops-backend/internal/models"
)

const earthRadiusMeters = 6371000.0

// HaversineMeters returns the great-circle distance between two points in meters
func HaversineMeters(a, b models.GeoPoint) float64 {
	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)
	dLat := lat2 - lat1
	dLon := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusMeters * c
}

func toRadians(v float64) float64 {
	return v * math.Pi / 180
}

// ValidateGeofence reports whether point lies within the zone radius plus its allowed variance.
// The verdict is informational; callers decide whether it blocks.
func ValidateGeofence(point models.GeoPoint, zone models.Geofence, zoneName string) models.ValidationResult {
	distance := HaversineMeters(point, zone.Center)
	limit := zone.RadiusMeters + zone.AllowedVarianceMeters

	if distance <= limit {
		return models.ValidationResult{
			IsValid:    true,
			CanProceed: true,
			Distance:   &distance,
			Message:    fmt.Sprintf("Within %s (%.0fm from center)", zoneName, distance),
		}
	}
	return models.ValidationResult{
		IsValid:    false,
		CanProceed: true,
		Distance:   &distance,
		Message:    fmt.Sprintf("Outside %s: %.0fm from center, allowed %.0fm", zoneName, distance, limit),
	}
}

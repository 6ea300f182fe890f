package models

// DriverLocation is the latest known GPS position of a driver
type DriverLocation struct {
	DriverID  string   `json:"driver_id" db:"driver_id"`
	Latitude  float64  `json:"latitude" db:"latitude"`
	Longitude float64  `json:"longitude" db:"longitude"`
	Heading   *float64 `json:"heading,omitempty" db:"heading"`   // Direction of travel (0-360 degrees)
	Speed     *float64 `json:"speed,omitempty" db:"speed"`       // Speed in m/s
	Accuracy  *float64 `json:"accuracy,omitempty" db:"accuracy"` // GPS accuracy in meters
	Timestamp int64    `json:"timestamp" db:"timestamp"`         // Client-side timestamp
	UpdatedAt int64    `json:"updated_at" db:"updated_at"`       // Server-side timestamp
}

// Point returns the position as a GeoPoint
func (l *DriverLocation) Point() GeoPoint {
	return GeoPoint{Latitude: l.Latitude, Longitude: l.Longitude}
}

// IsFresh reports whether the position was received within maxAgeSeconds of now
func (l *DriverLocation) IsFresh(now, maxAgeSeconds int64) bool {
	return now-l.UpdatedAt <= maxAgeSeconds
}

// LocationUpdateRequest is the body for POST /api/driver/location
type LocationUpdateRequest struct {
	Latitude  float64  `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64  `json:"longitude" validate:"gte=-180,lte=180"`
	Heading   *float64 `json:"heading,omitempty"`
	Speed     *float64 `json:"speed,omitempty"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
	Timestamp int64    `json:"timestamp"`
}

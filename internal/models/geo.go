package models

// GeoPoint is a WGS84 coordinate.
type GeoPoint struct {
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
}

// Geofence is a circular zone around a site.
type Geofence struct {
	Center                GeoPoint `json:"center" yaml:"center"`
	RadiusMeters          float64  `json:"radius_meters" yaml:"radius_meters"`
	AllowedVarianceMeters float64  `json:"allowed_variance_meters,omitempty" yaml:"allowed_variance_meters"` // 0 when unset
}

// ValidationResult is the verdict shape shared by the time-window and geofence checks.
type ValidationResult struct {
	IsValid        bool     `json:"is_valid"`
	CanProceed     bool     `json:"can_proceed"`
	Message        string   `json:"message"`
	IsGracePeriod  bool     `json:"is_grace_period,omitempty"`
	Distance       *float64 `json:"distance,omitempty"`       // meters, geofence checks only
	Classification string   `json:"classification,omitempty"` // early, on_time, late
}

// GuardResult records one failed guard so an override can be offered and audited.
type GuardResult struct {
	Guard    string           `json:"guard"` // "time_window" or "geofence"
	Location string           `json:"location"`
	Result   ValidationResult `json:"result"`
}

const (
	GuardTimeWindow = "time_window"
	GuardGeofence   = "geofence"
)

// GracePeriodDecision is derived from a delay report and never stored on its own.
type GracePeriodDecision struct {
	GracePeriodMinutes int  `json:"grace_period_minutes"`
	AutoApproved       bool `json:"auto_approved"`
	RequiresApproval   bool `json:"requires_approval"`
}

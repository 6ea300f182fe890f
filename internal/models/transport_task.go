package models

// TripStatus represents the progress of a transport task
type TripStatus string

const (
	TripPending        TripStatus = "pending"
	TripEnRoutePickup  TripStatus = "en_route_pickup"
	TripPickupComplete TripStatus = "pickup_complete"
	TripEnRouteDropoff TripStatus = "en_route_dropoff"
	TripCompleted      TripStatus = "completed" // Terminal
)

// TimeWindow is the tolerance around an estimated pickup time
type TimeWindow struct {
	WindowMinutes int `json:"window_minutes"`
}

// PickupLocation is one stop where workers board
type PickupLocation struct {
	Name                string      `json:"name" validate:"required"`
	Point               GeoPoint    `json:"point"`
	EstimatedPickupTime int64       `json:"estimated_pickup_time"` // Unix timestamp
	TimeWindow          *TimeWindow `json:"time_window,omitempty"`
	Geofence            *Geofence   `json:"geofence,omitempty"`
}

// DropoffLocation is the site the workers are delivered to
type DropoffLocation struct {
	Name     string    `json:"name" validate:"required"`
	Point    GeoPoint  `json:"point"`
	Geofence *Geofence `json:"geofence,omitempty"`
}

// StatusChange is one entry in the task's status timeline
type StatusChange struct {
	From       TripStatus `json:"from"`
	To         TripStatus `json:"to"`
	At         int64      `json:"at"`
	Location   *GeoPoint  `json:"location,omitempty"`
	Overridden bool       `json:"overridden,omitempty"`
}

// TripException is a transition forced past a failed guard; always reviewed by a supervisor
type TripException struct {
	ID             string        `json:"id"`
	Status         TripStatus    `json:"status"` // status the trip moved into
	Guards         []GuardResult `json:"guards"`
	Reason         string        `json:"reason"`
	OverriddenBy   string        `json:"overridden_by"`
	At             int64         `json:"at"`
	RequiresReview bool          `json:"requires_review"`
}

// TransportTask is a single dispatched trip with its own status lifecycle
type TransportTask struct {
	ID               string           `json:"task_id"`
	DriverID         string           `json:"driver_id"`
	VehicleID        string           `json:"vehicle_id,omitempty"`
	Status           TripStatus       `json:"status"`
	PickupLocations  []PickupLocation `json:"pickup_locations"`
	DropoffLocation  DropoffLocation  `json:"dropoff_location"`
	CheckedInWorkers int              `json:"checked_in_workers"`
	TotalWorkers     int              `json:"total_workers"`

	// Current open (or last) vehicle request; closed ones move to history
	VehicleRequest        *VehicleRequest  `json:"vehicle_request,omitempty"`
	VehicleRequestHistory []VehicleRequest `json:"vehicle_request_history,omitempty"`

	// Append-only history
	Timeline         []StatusChange    `json:"timeline,omitempty"`
	DelayReports     []DelayReport     `json:"delay_reports,omitempty"`
	BreakdownReports []BreakdownReport `json:"breakdown_reports,omitempty"`
	Exceptions       []TripException   `json:"exceptions,omitempty"`

	Version   int   `json:"version"`
	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

// IsCompleted returns true when the task reached its terminal status
func (t *TransportTask) IsCompleted() bool {
	return t.Status == TripCompleted
}

// OpenVehicleRequest returns the request still awaiting an outcome, if any
func (t *TransportTask) OpenVehicleRequest() *VehicleRequest {
	if t.VehicleRequest != nil && t.VehicleRequest.IsOpen() {
		return t.VehicleRequest
	}
	return nil
}

// Clone returns a deep copy so callers can mutate without touching the original
func (t TransportTask) Clone() TransportTask {
	c := t
	c.PickupLocations = append([]PickupLocation(nil), t.PickupLocations...)
	for i := range c.PickupLocations {
		if p := t.PickupLocations[i].TimeWindow; p != nil {
			tw := *p
			c.PickupLocations[i].TimeWindow = &tw
		}
		if g := t.PickupLocations[i].Geofence; g != nil {
			gf := *g
			c.PickupLocations[i].Geofence = &gf
		}
	}
	if g := t.DropoffLocation.Geofence; g != nil {
		gf := *g
		c.DropoffLocation.Geofence = &gf
	}
	if t.VehicleRequest != nil {
		vr := t.VehicleRequest.clone()
		c.VehicleRequest = &vr
	}
	if t.VehicleRequestHistory != nil {
		c.VehicleRequestHistory = make([]VehicleRequest, len(t.VehicleRequestHistory))
		for i, vr := range t.VehicleRequestHistory {
			c.VehicleRequestHistory[i] = vr.clone()
		}
	}
	c.Timeline = append([]StatusChange(nil), t.Timeline...)
	c.DelayReports = append([]DelayReport(nil), t.DelayReports...)
	c.BreakdownReports = append([]BreakdownReport(nil), t.BreakdownReports...)
	c.Exceptions = append([]TripException(nil), t.Exceptions...)
	return c
}

// CreateTaskRequest is the body for POST /api/supervisor/tasks
type CreateTaskRequest struct {
	DriverID        string           `json:"driver_id" validate:"required"`
	VehicleID       string           `json:"vehicle_id"`
	PickupLocations []PickupLocation `json:"pickup_locations" validate:"required,min=1,dive"`
	DropoffLocation DropoffLocation  `json:"dropoff_location"`
	TotalWorkers    int              `json:"total_workers" validate:"gte=0"`
}

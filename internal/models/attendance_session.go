package models

import "time"

// AttendanceStatus is the state of a driver's daily attendance session
type AttendanceStatus string

const (
	AttendanceNotLoggedIn AttendanceStatus = "NOT_LOGGED_IN"
	AttendanceCheckedIn   AttendanceStatus = "CHECKED_IN"
	AttendanceCheckedOut  AttendanceStatus = "CHECKED_OUT" // Terminal for the day
)

// Irregular checkout reasons
const (
	IrregularForcedCheckout = "forced_checkout"
	IrregularRegularization = "regularization_requested"
)

// RegularizationRequest is a driver's corrected checkout time awaiting supervisor review
type RegularizationRequest struct {
	RequestedCheckOutTime int64  `json:"requested_check_out_time"`
	Reason                string `json:"reason"`
	Status                string `json:"status"` // "pending", "approved", "rejected"
	RequestedAt           int64  `json:"requested_at"`
}

// AttendanceSession is one driver's attendance record for one calendar day.
// Timestamps are Unix seconds, like the rest of the models.
type AttendanceSession struct {
	ID                 string           `json:"id"`
	DriverID           string           `json:"driver_id"`
	Date               string           `json:"date"` // YYYY-MM-DD in the shift timezone
	Status             AttendanceStatus `json:"status"`
	CheckInTime        *int64           `json:"check_in_time,omitempty"`
	CheckOutTime       *int64           `json:"check_out_time,omitempty"`
	PreCheckCompleted  bool             `json:"pre_check_completed"`
	PostCheckCompleted bool             `json:"post_check_completed"`
	AssignedVehicleID  string           `json:"assigned_vehicle_id"`
	StartMileage       *float64         `json:"start_mileage,omitempty"`
	EndMileage         *float64         `json:"end_mileage,omitempty"`
	FuelLevel          *float64         `json:"fuel_level,omitempty"`
	TotalHours         float64          `json:"total_hours"`
	TotalDistance      float64          `json:"total_distance"`

	// Where the driver was at each end of the day
	CheckInLocation  *GeoPoint `json:"check_in_location,omitempty"`
	CheckOutLocation *GeoPoint `json:"check_out_location,omitempty"`

	// Lunch break
	LunchStartTime *int64 `json:"lunch_start_time,omitempty"`
	LunchEndTime   *int64 `json:"lunch_end_time,omitempty"`

	ExtendedShift bool `json:"extended_shift"`

	// Time-window verdicts captured at each step (for analytics)
	CheckInVerdict    *ValidationResult `json:"check_in_verdict,omitempty"`
	LunchStartVerdict *ValidationResult `json:"lunch_start_verdict,omitempty"`
	LunchEndVerdict   *ValidationResult `json:"lunch_end_verdict,omitempty"`
	CheckOutVerdict   *ValidationResult `json:"check_out_verdict,omitempty"`

	// Supervisor audit
	Irregular       bool                   `json:"irregular"`
	IrregularReason string                 `json:"irregular_reason,omitempty"` // IrregularForcedCheckout or IrregularRegularization
	IrregularNote   string                 `json:"irregular_note,omitempty"`
	Regularization  *RegularizationRequest `json:"regularization,omitempty"`

	Version   int   `json:"version"`
	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

// IsClosed returns true once the session can no longer change
func (s *AttendanceSession) IsClosed() bool {
	return s.Status == AttendanceCheckedOut
}

// GetDuration returns the time spent checked in, up to now for an open session
func (s *AttendanceSession) GetDuration(now int64) time.Duration {
	if s.CheckInTime == nil {
		return 0
	}
	end := now
	if s.CheckOutTime != nil {
		end = *s.CheckOutTime
	}
	seconds := end - *s.CheckInTime
	if seconds < 0 {
		seconds = 0
	}
	return time.Duration(seconds) * time.Second
}

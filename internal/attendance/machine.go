// Package attendance runs a driver's daily NOT_LOGGED_IN -> CHECKED_IN -> CHECKED_OUT cycle.
//
// Every operation takes the session by value and returns the updated copy together with the
// events it produced. A failed operation returns the zero Result and leaves the caller's
// session as it was.
package attendance

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"fieldops-backend/internal/compliance"
	"fieldops-backend/internal/models"
)

type Result struct {
	Session models.AttendanceSession
	Events  []models.Event
}

type ClockInInput struct {
	DriverID          string
	VehicleID         string
	Location          *models.GeoPoint
	PreCheckCompleted bool
	Mileage           *float64
}

type ClockOutInput struct {
	DriverID           string
	Location           *models.GeoPoint
	PostCheckCompleted bool
	Mileage            *float64
	FuelLevel          *float64
	ExtendedShift      bool
}

type RegularizationInput struct {
	RequestedCheckOutTime int64 // Unix seconds
	Reason                string
}

type ForceCheckoutInput struct {
	Reason   string
	Location *models.GeoPoint
}

type Machine struct {
	policy compliance.Policy
	newID  func() string
}

func NewMachine(policy compliance.Policy) *Machine {
	return &Machine{policy: policy, newID: uuid.NewString}
}

// Policy returns the policy the machine was built with
func (m *Machine) Policy() compliance.Policy {
	return m.policy
}

// NewSession opens the day's session for a driver in NOT_LOGGED_IN
func (m *Machine) NewSession(driverID string, now time.Time) models.AttendanceSession {
	ts := now.Unix()
	return models.AttendanceSession{
		ID:        m.newID(),
		DriverID:  driverID,
		Date:      compliance.ShiftDate(now, m.policy.Shift),
		Status:    models.AttendanceNotLoggedIn,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
}

func (m *Machine) ClockIn(s models.AttendanceSession, in ClockInInput, now time.Time) (Result, error) {
	const op = "clock_in"

	if err := requireOpen(op, s); err != nil {
		return Result{}, err
	}
	if s.Status != models.AttendanceNotLoggedIn {
		return Result{}, compliance.Precondition(op, "driver already checked in today")
	}
	if today := compliance.ShiftDate(now, m.policy.Shift); s.Date != today {
		return Result{}, compliance.Precondition(op, "session is for %s, today is %s", s.Date, today)
	}
	if in.DriverID != s.DriverID {
		return Result{}, compliance.Precondition(op, "session belongs to another driver")
	}
	if !in.PreCheckCompleted {
		return Result{}, compliance.Precondition(op, "vehicle pre-check must be completed before clock-in")
	}
	if in.VehicleID == "" {
		return Result{}, compliance.Precondition(op, "no vehicle assigned")
	}
	if in.Location == nil {
		return Result{}, compliance.Precondition(op, "current location is required to clock in")
	}
	if in.Mileage != nil && *in.Mileage < 0 {
		return Result{}, compliance.Validation(op, "start mileage must not be negative")
	}

	verdict := compliance.ValidateMorningLogin(now, m.policy.Shift)
	if !verdict.CanProceed {
		return Result{}, compliance.GuardFailure(op, []models.GuardResult{{
			Guard:    models.GuardTimeWindow,
			Location: "morning_login",
			Result:   verdict,
		}})
	}

	ts := now.Unix()
	loc := *in.Location
	next := s
	next.Status = models.AttendanceCheckedIn
	next.CheckInTime = &ts
	next.CheckInLocation = &loc
	next.PreCheckCompleted = true
	next.AssignedVehicleID = in.VehicleID
	next.StartMileage = copyFloat(in.Mileage)
	next.CheckInVerdict = &verdict
	next.UpdatedAt = ts

	return Result{Session: next, Events: []models.Event{m.statusEvent(s, next, ts)}}, nil
}

func (m *Machine) StartLunch(s models.AttendanceSession, now time.Time) (Result, error) {
	const op = "start_lunch"

	if err := requireCheckedIn(op, s); err != nil {
		return Result{}, err
	}
	if s.LunchStartTime != nil {
		return Result{}, compliance.Precondition(op, "lunch break already started")
	}

	verdict := compliance.ValidateLunchTiming(now, compliance.LunchStart, m.policy.Shift)
	if !verdict.CanProceed {
		return Result{}, compliance.GuardFailure(op, []models.GuardResult{{
			Guard:    models.GuardTimeWindow,
			Location: "lunch_start",
			Result:   verdict,
		}})
	}

	ts := now.Unix()
	next := s
	next.LunchStartTime = &ts
	next.LunchStartVerdict = &verdict
	next.UpdatedAt = ts
	return Result{Session: next}, nil
}

// EndLunch records the end of the break; the timing verdict is advisory
func (m *Machine) EndLunch(s models.AttendanceSession, now time.Time) (Result, error) {
	const op = "end_lunch"

	if err := requireCheckedIn(op, s); err != nil {
		return Result{}, err
	}
	if s.LunchStartTime == nil {
		return Result{}, compliance.Precondition(op, "lunch break has not started")
	}
	if s.LunchEndTime != nil {
		return Result{}, compliance.Precondition(op, "lunch break already ended")
	}

	verdict := compliance.ValidateLunchTiming(now, compliance.LunchEnd, m.policy.Shift)

	ts := now.Unix()
	next := s
	next.LunchEndTime = &ts
	next.LunchEndVerdict = &verdict
	next.UpdatedAt = ts
	return Result{Session: next}, nil
}

func (m *Machine) ClockOut(s models.AttendanceSession, in ClockOutInput, now time.Time) (Result, error) {
	const op = "clock_out"

	if err := requireCheckedIn(op, s); err != nil {
		return Result{}, err
	}
	if in.DriverID != s.DriverID {
		return Result{}, compliance.Precondition(op, "session belongs to another driver")
	}
	if !in.PostCheckCompleted {
		return Result{}, compliance.Precondition(op, "vehicle post-check must be completed before clock-out")
	}
	if in.Location == nil {
		return Result{}, compliance.Precondition(op, "current location is required to clock out")
	}
	if in.Mileage != nil && *in.Mileage < 0 {
		return Result{}, compliance.Validation(op, "end mileage must not be negative")
	}
	if in.FuelLevel != nil && *in.FuelLevel < 0 {
		return Result{}, compliance.Validation(op, "fuel level must not be negative")
	}

	ts := now.Unix()
	if s.CheckInTime == nil || ts < *s.CheckInTime {
		return Result{}, compliance.DataIntegrity(op, "check-out time precedes check-in time")
	}

	next := s
	next.EndMileage = copyFloat(in.Mileage)
	if next.StartMileage != nil && next.EndMileage != nil {
		distance := *next.EndMileage - *next.StartMileage
		if distance < 0 {
			return Result{}, compliance.DataIntegrity(op, "end mileage %.1f is below start mileage %.1f", *next.EndMileage, *next.StartMileage)
		}
		next.TotalDistance = distance
	}

	verdict := compliance.ValidateEveningLogout(now, in.ExtendedShift, m.policy.Shift)
	loc := *in.Location

	next.Status = models.AttendanceCheckedOut
	next.CheckOutTime = &ts
	next.CheckOutLocation = &loc
	next.PostCheckCompleted = true
	next.FuelLevel = copyFloat(in.FuelLevel)
	next.ExtendedShift = in.ExtendedShift
	next.TotalHours = hoursBetween(*s.CheckInTime, ts)
	next.CheckOutVerdict = &verdict
	next.UpdatedAt = ts

	return Result{Session: next, Events: []models.Event{m.statusEvent(s, next, ts)}}, nil
}

// CheckForgotten runs the forgotten-checkout detector on an open session
func (m *Machine) CheckForgotten(s models.AttendanceSession, now time.Time) (compliance.ForgottenCheckoutResult, error) {
	if err := requireCheckedIn("check_forgotten", s); err != nil {
		return compliance.ForgottenCheckoutResult{}, err
	}
	return compliance.CheckForgottenCheckout(*s.CheckInTime, now, m.policy.ForgottenCheckout), nil
}

// RequestRegularization closes a long-open session at the checkout time the driver says is correct.
// The session is flagged for supervisor review.
func (m *Machine) RequestRegularization(s models.AttendanceSession, in RegularizationInput, now time.Time) (Result, error) {
	const op = "request_regularization"

	if err := m.requireRemedy(op, s, now); err != nil {
		return Result{}, err
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return Result{}, compliance.Validation(op, "reason is required")
	}
	if in.RequestedCheckOutTime < *s.CheckInTime || in.RequestedCheckOutTime > now.Unix() {
		return Result{}, compliance.Validation(op, "requested checkout time must be between check-in and now")
	}

	ts := now.Unix()
	out := in.RequestedCheckOutTime
	next := s
	next.Status = models.AttendanceCheckedOut
	next.CheckOutTime = &out
	next.TotalHours = hoursBetween(*s.CheckInTime, out)
	next.Irregular = true
	next.IrregularReason = models.IrregularRegularization
	next.IrregularNote = reason
	next.Regularization = &models.RegularizationRequest{
		RequestedCheckOutTime: out,
		Reason:                reason,
		Status:                "pending",
		RequestedAt:           ts,
	}
	next.UpdatedAt = ts

	return Result{Session: next, Events: []models.Event{m.statusEvent(s, next, ts)}}, nil
}

// ForceCheckout closes a long-open session now, skipping the post-check gate
func (m *Machine) ForceCheckout(s models.AttendanceSession, in ForceCheckoutInput, now time.Time) (Result, error) {
	const op = "force_checkout"

	if err := m.requireRemedy(op, s, now); err != nil {
		return Result{}, err
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return Result{}, compliance.Validation(op, "reason is required")
	}

	ts := now.Unix()
	next := s
	next.Status = models.AttendanceCheckedOut
	next.CheckOutTime = &ts
	if in.Location != nil {
		loc := *in.Location
		next.CheckOutLocation = &loc
	}
	next.TotalHours = hoursBetween(*s.CheckInTime, ts)
	next.Irregular = true
	next.IrregularReason = models.IrregularForcedCheckout
	next.IrregularNote = reason
	next.UpdatedAt = ts

	return Result{Session: next, Events: []models.Event{m.statusEvent(s, next, ts)}}, nil
}

func (m *Machine) requireRemedy(op string, s models.AttendanceSession, now time.Time) error {
	if err := requireCheckedIn(op, s); err != nil {
		return err
	}
	res := compliance.CheckForgottenCheckout(*s.CheckInTime, now, m.policy.ForgottenCheckout)
	if !res.RequiresRegularization {
		return compliance.Precondition(op, "session does not need regularization (%.1f hours checked in)", res.HoursCheckedIn)
	}
	return nil
}

func (m *Machine) statusEvent(prev, next models.AttendanceSession, ts int64) models.Event {
	return models.StatusUpdated{
		EventMeta: models.EventMeta{ID: m.newID(), DriverID: next.DriverID, OccurredAt: ts},
		Subject:   models.SubjectAttendance,
		From:      string(prev.Status),
		To:        string(next.Status),
	}
}

func requireOpen(op string, s models.AttendanceSession) error {
	if s.IsClosed() {
		return compliance.Precondition(op, "attendance session for %s is already closed", s.Date)
	}
	return nil
}

func requireCheckedIn(op string, s models.AttendanceSession) error {
	if err := requireOpen(op, s); err != nil {
		return err
	}
	if s.Status != models.AttendanceCheckedIn || s.CheckInTime == nil {
		return compliance.Precondition(op, "driver is not checked in")
	}
	return nil
}

func hoursBetween(from, to int64) float64 {
	return float64(to-from) / 3600
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

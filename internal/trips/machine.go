// Package trips drives a transport task through pickup and dropoff and handles the
// escalation paths (delays, breakdowns, vehicle requests) raised along the way.
//
// Operations are value-in/value-out: the task passed in is never modified and a failed
// operation returns no task at all.
package trips

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"fieldops-backend/internal/compliance"
	"fieldops-backend/internal/models"
)

type Result struct {
	Task   models.TransportTask
	Events []models.Event
}

// DelayResult adds the derived grace decision and an optional replacement suggestion
type DelayResult struct {
	Result
	Decision   models.GracePeriodDecision
	Suggestion *models.VehicleRequestSuggestion
}

// Override lets a driver push past a failed guard. The transition is logged as an exception.
type Override struct {
	Reason string `json:"reason"`
	By     string `json:"by"`
}

type AdvanceInput struct {
	To          models.TripStatus
	Location    *models.GeoPoint
	PickupIndex *int // defaults to the last pickup location
	Override    *Override
}

type DelayInput struct {
	Reason           string
	EstimatedMinutes int
	Location         *models.GeoPoint
	Description      string
}

type BreakdownInput struct {
	Type               string
	Severity           models.BreakdownSeverity
	Location           *models.GeoPoint
	Description        string
	AssistanceRequired bool
}

type VehicleRequestInput struct {
	RequestType models.VehicleRequestType
	Reason      string
	Urgency     models.Urgency
	RequestedBy string
}

type ResolveInput struct {
	RequestID        string // optional; must match the current request when set
	Status           models.VehicleRequestStatus
	AlternateVehicle *string
	By               string
}

type Machine struct {
	policy compliance.Policy
	newID  func() string
}

func NewMachine(policy compliance.Policy) *Machine {
	return &Machine{policy: policy, newID: uuid.NewString}
}

// NewTask builds a pending task from a dispatch request
func (m *Machine) NewTask(req models.CreateTaskRequest, now time.Time) (models.TransportTask, error) {
	const op = "new_task"

	if req.DriverID == "" {
		return models.TransportTask{}, compliance.Validation(op, "driver_id is required")
	}
	if len(req.PickupLocations) == 0 {
		return models.TransportTask{}, compliance.Validation(op, "at least one pickup location is required")
	}
	if req.TotalWorkers < 0 {
		return models.TransportTask{}, compliance.Validation(op, "total_workers must not be negative")
	}
	for i, p := range req.PickupLocations {
		if p.TimeWindow != nil && p.TimeWindow.WindowMinutes < 0 {
			return models.TransportTask{}, compliance.Validation(op, "pickup %d: window_minutes must not be negative", i)
		}
		if err := checkGeofence(op, p.Name, p.Geofence); err != nil {
			return models.TransportTask{}, err
		}
	}
	if err := checkGeofence(op, req.DropoffLocation.Name, req.DropoffLocation.Geofence); err != nil {
		return models.TransportTask{}, err
	}

	ts := now.Unix()
	task := models.TransportTask{
		ID:              m.newID(),
		DriverID:        req.DriverID,
		VehicleID:       req.VehicleID,
		Status:          models.TripPending,
		PickupLocations: req.PickupLocations,
		DropoffLocation: req.DropoffLocation,
		TotalWorkers:    req.TotalWorkers,
		CreatedAt:       ts,
		UpdatedAt:       ts,
	}
	return task.Clone(), nil
}

func checkGeofence(op, name string, g *models.Geofence) error {
	if g == nil {
		return nil
	}
	if g.RadiusMeters <= 0 || g.AllowedVarianceMeters < 0 {
		return compliance.Validation(op, "%s: geofence radius must be positive and variance not negative", name)
	}
	return nil
}

// Advance moves the task one step forward, running the pickup and dropoff guards
func (m *Machine) Advance(task models.TransportTask, in AdvanceInput, now time.Time) (Result, error) {
	const op = "advance"

	if !CanTransition(task.Status, in.To) {
		return Result{}, compliance.Precondition(op, "cannot move trip from %s to %s", task.Status, in.To)
	}
	if in.Location == nil {
		return Result{}, compliance.LocationUnavailable(op)
	}

	var failed []models.GuardResult
	switch in.To {
	case models.TripPickupComplete:
		guards, err := pickupGuards(task, in, now)
		if err != nil {
			return Result{}, err
		}
		failed = guards
	case models.TripCompleted:
		if g := task.DropoffLocation.Geofence; g != nil {
			res := compliance.ValidateGeofence(*in.Location, *g, task.DropoffLocation.Name)
			if !res.IsValid {
				failed = append(failed, models.GuardResult{Guard: models.GuardGeofence, Location: task.DropoffLocation.Name, Result: res})
			}
		}
	}

	if len(failed) > 0 {
		if in.Override == nil {
			return Result{}, compliance.GuardFailure(op, failed)
		}
		if strings.TrimSpace(in.Override.Reason) == "" || in.Override.By == "" {
			return Result{}, compliance.Validation(op, "override needs a reason and who is overriding")
		}
	}

	ts := now.Unix()
	loc := *in.Location
	overridden := len(failed) > 0

	next := task.Clone()
	next.Status = in.To
	next.Timeline = append(next.Timeline, models.StatusChange{
		From:       task.Status,
		To:         in.To,
		At:         ts,
		Location:   &loc,
		Overridden: overridden,
	})
	if overridden {
		next.Exceptions = append(next.Exceptions, models.TripException{
			ID:             m.newID(),
			Status:         in.To,
			Guards:         failed,
			Reason:         strings.TrimSpace(in.Override.Reason),
			OverriddenBy:   in.Override.By,
			At:             ts,
			RequiresReview: true,
		})
	}
	next.UpdatedAt = ts

	ev := models.StatusUpdated{
		EventMeta:  m.meta(task, ts),
		Subject:    models.SubjectTask,
		From:       string(task.Status),
		To:         string(in.To),
		Overridden: overridden,
	}
	return Result{Task: next, Events: []models.Event{ev}}, nil
}

func pickupGuards(task models.TransportTask, in AdvanceInput, now time.Time) ([]models.GuardResult, error) {
	if len(task.PickupLocations) == 0 {
		return nil, nil
	}
	idx := len(task.PickupLocations) - 1
	if in.PickupIndex != nil {
		idx = *in.PickupIndex
		if idx < 0 || idx >= len(task.PickupLocations) {
			return nil, compliance.Validation("advance", "pickup index %d out of range", idx)
		}
	}
	pickup := task.PickupLocations[idx]

	var failed []models.GuardResult
	if tw := pickup.TimeWindow; tw != nil {
		res := compliance.ValidatePickupWindow(now, pickup.EstimatedPickupTime, tw.WindowMinutes)
		if !res.IsValid {
			failed = append(failed, models.GuardResult{Guard: models.GuardTimeWindow, Location: pickup.Name, Result: res})
		}
	}
	if g := pickup.Geofence; g != nil {
		res := compliance.ValidateGeofence(*in.Location, *g, pickup.Name)
		if !res.IsValid {
			failed = append(failed, models.GuardResult{Guard: models.GuardGeofence, Location: pickup.Name, Result: res})
		}
	}
	return failed, nil
}

// CheckInWorkers sets how many workers have boarded. Only allowed before pickup is complete.
func (m *Machine) CheckInWorkers(task models.TransportTask, count int, now time.Time) (Result, error) {
	const op = "check_in_workers"

	if task.Status != models.TripPending && task.Status != models.TripEnRoutePickup {
		return Result{}, compliance.Precondition(op, "workers can only be checked in before pickup is complete (status %s)", task.Status)
	}
	if count < 0 || count > task.TotalWorkers {
		return Result{}, compliance.Validation(op, "checked-in workers must be between 0 and %d", task.TotalWorkers)
	}

	next := task.Clone()
	next.CheckedInWorkers = count
	next.UpdatedAt = now.Unix()
	return Result{Task: next}, nil
}

func (m *Machine) ReportDelay(task models.TransportTask, in DelayInput, now time.Time) (DelayResult, error) {
	const op = "report_delay"

	if task.IsCompleted() {
		return DelayResult{}, compliance.Precondition(op, "trip is already completed")
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return DelayResult{}, compliance.Validation(op, "delay reason is required")
	}
	if in.EstimatedMinutes <= 0 {
		return DelayResult{}, compliance.Validation(op, "estimated delay must be positive")
	}

	ts := now.Unix()
	decision := m.policy.Grace.Calculate(in.EstimatedMinutes, reason)
	suggestion := m.policy.Escalation.DelaySuggestion(in.EstimatedMinutes)

	report := models.DelayReport{
		ID:               m.newID(),
		TaskID:           task.ID,
		Reason:           reason,
		EstimatedMinutes: in.EstimatedMinutes,
		Location:         copyPoint(in.Location),
		Description:      in.Description,
		Decision:         decision,
		Timestamp:        ts,
	}

	next := task.Clone()
	next.DelayReports = append(next.DelayReports, report)
	next.UpdatedAt = ts

	ev := models.DelayReported{EventMeta: m.meta(task, ts), Report: report, Suggestion: suggestion}
	return DelayResult{
		Result:     Result{Task: next, Events: []models.Event{ev}},
		Decision:   decision,
		Suggestion: suggestion,
	}, nil
}

// ReportBreakdown records a breakdown and, for major or critical ones, raises an automatic vehicle request
func (m *Machine) ReportBreakdown(task models.TransportTask, in BreakdownInput, now time.Time) (Result, error) {
	const op = "report_breakdown"

	if task.IsCompleted() {
		return Result{}, compliance.Precondition(op, "trip is already completed")
	}
	if strings.TrimSpace(in.Type) == "" {
		return Result{}, compliance.Validation(op, "breakdown type is required")
	}
	if !in.Severity.Valid() {
		return Result{}, compliance.Validation(op, "unknown severity %q", in.Severity)
	}

	ts := now.Unix()
	report := models.BreakdownReport{
		ID:                 m.newID(),
		TaskID:             task.ID,
		Type:               strings.TrimSpace(in.Type),
		Severity:           in.Severity,
		Location:           copyPoint(in.Location),
		Description:        in.Description,
		AssistanceRequired: in.AssistanceRequired,
		Timestamp:          ts,
	}

	next := task.Clone()
	next.BreakdownReports = append(next.BreakdownReports, report)
	next.UpdatedAt = ts
	events := []models.Event{models.BreakdownReported{EventMeta: m.meta(task, ts), Report: report}}

	if reqType, urgency, ok := m.policy.Escalation.BreakdownRequest(in.Severity); ok {
		supersede, err := m.policy.Escalation.CheckOpenRequest(op, next.OpenVehicleRequest(), true, urgency)
		if err != nil {
			return Result{}, err
		}
		breakdownID := report.ID
		req := models.VehicleRequest{
			ID:          m.newID(),
			TaskID:      task.ID,
			RequestType: reqType,
			Urgency:     urgency,
			Reason:      string(in.Severity) + " breakdown: " + report.Type,
			Status:      models.VehicleRequestPending,
			Automatic:   true,
			BreakdownID: &breakdownID,
			CreatedAt:   ts,
		}
		superseded := installRequest(&next, req, supersede, ts)
		events = append(events, models.VehicleRequested{EventMeta: m.meta(task, ts), Request: req, Superseded: superseded})
	}

	return Result{Task: next, Events: events}, nil
}

// RequestVehicle raises an operator vehicle request
func (m *Machine) RequestVehicle(task models.TransportTask, in VehicleRequestInput, now time.Time) (Result, error) {
	const op = "request_vehicle"

	if task.IsCompleted() {
		return Result{}, compliance.Precondition(op, "trip is already completed")
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return Result{}, compliance.Validation(op, "request reason is required")
	}
	switch in.RequestType {
	case models.RequestReplacement, models.RequestAdditional, models.RequestEmergency:
	default:
		return Result{}, compliance.Validation(op, "unknown request type %q", in.RequestType)
	}
	if in.Urgency.Rank() == 0 {
		return Result{}, compliance.Validation(op, "unknown urgency %q", in.Urgency)
	}

	supersede, err := m.policy.Escalation.CheckOpenRequest(op, task.OpenVehicleRequest(), false, in.Urgency)
	if err != nil {
		return Result{}, err
	}

	ts := now.Unix()
	req := models.VehicleRequest{
		ID:          m.newID(),
		TaskID:      task.ID,
		RequestType: in.RequestType,
		Urgency:     in.Urgency,
		Reason:      reason,
		Status:      models.VehicleRequestPending,
		RequestedBy: in.RequestedBy,
		CreatedAt:   ts,
	}

	next := task.Clone()
	superseded := installRequest(&next, req, supersede, ts)
	next.UpdatedAt = ts

	ev := models.VehicleRequested{EventMeta: m.meta(task, ts), Request: req, Superseded: superseded}
	return Result{Task: next, Events: []models.Event{ev}}, nil
}

var resolutions = map[models.VehicleRequestStatus]map[models.VehicleRequestStatus]struct{}{
	models.VehicleRequestPending:  {models.VehicleRequestApproved: {}, models.VehicleRequestRejected: {}},
	models.VehicleRequestApproved: {models.VehicleRequestFulfilled: {}, models.VehicleRequestRejected: {}},
}

// ResolveVehicleRequest records dispatch's answer to the current vehicle request
func (m *Machine) ResolveVehicleRequest(task models.TransportTask, in ResolveInput, now time.Time) (Result, error) {
	const op = "resolve_vehicle_request"

	current := task.VehicleRequest
	if current == nil || (in.RequestID != "" && in.RequestID != current.ID) {
		return Result{}, compliance.Precondition(op, "no matching vehicle request on this task")
	}
	if _, ok := resolutions[current.Status][in.Status]; !ok {
		return Result{}, compliance.Precondition(op, "cannot move vehicle request from %s to %s", current.Status, in.Status)
	}

	ts := now.Unix()
	next := task.Clone()
	req := next.VehicleRequest
	req.Status = in.Status
	if in.AlternateVehicle != nil {
		v := *in.AlternateVehicle
		req.AlternateVehicle = &v
	}
	if in.By != "" {
		by := in.By
		req.ResolvedBy = &by
	}
	if !req.IsOpen() {
		req.ResolvedAt = &ts
	}
	if in.Status == models.VehicleRequestFulfilled && req.AlternateVehicle != nil && req.RequestType != models.RequestAdditional {
		next.VehicleID = *req.AlternateVehicle
	}
	next.UpdatedAt = ts

	ev := models.VehicleRequestResolved{EventMeta: m.meta(task, ts), Request: *req}
	return Result{Task: next, Events: []models.Event{ev}}, nil
}

// installRequest makes req the task's current request, moving the previous one to history.
// It returns the superseded request, if any.
func installRequest(task *models.TransportTask, req models.VehicleRequest, supersede bool, ts int64) *models.VehicleRequest {
	var superseded *models.VehicleRequest
	if prev := task.VehicleRequest; prev != nil {
		old := *prev
		if old.IsOpen() && supersede {
			id := req.ID
			old.Status = models.VehicleRequestSuperseded
			old.SupersededBy = &id
			old.ResolvedAt = &ts
			superseded = &old
		}
		task.VehicleRequestHistory = append(task.VehicleRequestHistory, old)
	}
	task.VehicleRequest = &req
	return superseded
}

func (m *Machine) meta(task models.TransportTask, ts int64) models.EventMeta {
	return models.EventMeta{ID: m.newID(), TaskID: task.ID, DriverID: task.DriverID, OccurredAt: ts}
}

func copyPoint(p *models.GeoPoint) *models.GeoPoint {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

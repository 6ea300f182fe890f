package trips

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"testing"
	"time"

	"fieldops-backend/internal/compliance"
	"fieldops-backend/internal/models"
)

func newTestMachine() *Machine {
	m := NewMachine(compliance.DefaultPolicy())
	n := 0
	m.newID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	return m
}

func at(hour, minute int) time.Time {
	return time.Date(2026, 10, 15, hour, minute, 0, 0, time.UTC)
}

var (
	campCenter = models.GeoPoint{Latitude: 25.2048, Longitude: 55.2708}
	siteCenter = models.GeoPoint{Latitude: 25.1, Longitude: 55.3}
)

func north(p models.GeoPoint, meters float64) *models.GeoPoint {
	return &models.GeoPoint{Latitude: p.Latitude + (meters/6371000)*180/math.Pi, Longitude: p.Longitude}
}

func newTask() models.TransportTask {
	return models.TransportTask{
		ID:       "task-1",
		DriverID: "driver-1",
		Status:   models.TripPending,
		PickupLocations: []models.PickupLocation{{
			Name:                "Camp A",
			Point:               campCenter,
			EstimatedPickupTime: at(6, 0).Unix(),
			TimeWindow:          &models.TimeWindow{WindowMinutes: 15},
			Geofence:            &models.Geofence{Center: campCenter, RadiusMeters: 100, AllowedVarianceMeters: 20},
		}},
		DropoffLocation: models.DropoffLocation{
			Name:     "Site 4",
			Point:    siteCenter,
			Geofence: &models.Geofence{Center: siteCenter, RadiusMeters: 200},
		},
		TotalWorkers: 10,
	}
}

func advance(t *testing.T, m *Machine, task models.TransportTask, to models.TripStatus, loc *models.GeoPoint, now time.Time) models.TransportTask {
	t.Helper()
	res, err := m.Advance(task, AdvanceInput{To: to, Location: loc}, now)
	if err != nil {
		t.Fatalf("advance to %s: %v", to, err)
	}
	return res.Task
}

func TestCanTransition(t *testing.T) {
	if !CanTransition(models.TripPending, models.TripEnRoutePickup) {
		t.Fatal("expected pending -> en_route_pickup to be allowed")
	}
	if CanTransition(models.TripPending, models.TripPickupComplete) {
		t.Fatal("skipping a status must not be allowed")
	}
	if CanTransition(models.TripEnRouteDropoff, models.TripEnRoutePickup) {
		t.Fatal("moving backwards must not be allowed")
	}
	if CanTransition(models.TripCompleted, models.TripCompleted) {
		t.Fatal("completed is terminal")
	}

	s := models.TripPending
	steps := 0
	for {
		next, ok := Next(s)
		if !ok {
			break
		}
		s = next
		steps++
	}
	if s != models.TripCompleted || steps != 4 {
		t.Fatalf("walk ended at %s after %d steps", s, steps)
	}
}

func TestAdvanceHappyPath(t *testing.T) {
	m := newTestMachine()
	task := newTask()

	task = advance(t, m, task, models.TripEnRoutePickup, &campCenter, at(5, 40))
	task = advance(t, m, task, models.TripPickupComplete, north(campCenter, 50), at(6, 5))
	task = advance(t, m, task, models.TripEnRouteDropoff, &campCenter, at(6, 10))
	task = advance(t, m, task, models.TripCompleted, north(siteCenter, 150), at(7, 0))

	if task.Status != models.TripCompleted || len(task.Timeline) != 4 || len(task.Exceptions) != 0 {
		t.Fatalf("unexpected final task: status=%s timeline=%d exceptions=%d", task.Status, len(task.Timeline), len(task.Exceptions))
	}
	for i := 1; i < len(task.Timeline); i++ {
		if task.Timeline[i].From != task.Timeline[i-1].To {
			t.Fatalf("timeline is not contiguous at %d", i)
		}
	}
}

func TestAdvanceRejectsSkipsAndMissingLocation(t *testing.T) {
	m := newTestMachine()
	task := newTask()
	before := task.Clone()

	_, err := m.Advance(task, AdvanceInput{To: models.TripCompleted, Location: &siteCenter}, at(6, 0))
	if !errors.Is(err, compliance.ErrPrecondition) {
		t.Fatalf("skip: got %v", err)
	}
	_, err = m.Advance(task, AdvanceInput{To: models.TripEnRoutePickup}, at(6, 0))
	if !errors.Is(err, compliance.ErrLocationUnavailable) {
		t.Fatalf("missing location: got %v", err)
	}
	if !reflect.DeepEqual(task, before) {
		t.Fatalf("task mutated on error")
	}
}

func TestPickupGuardsAndOverride(t *testing.T) {
	m := newTestMachine()
	task := advance(t, m, newTask(), models.TripEnRoutePickup, &campCenter, at(5, 30))
	before := task.Clone()

	// 140m out and 30 min late: both guards fail
	_, err := m.Advance(task, AdvanceInput{To: models.TripPickupComplete, Location: north(campCenter, 140)}, at(6, 30))
	if !errors.Is(err, compliance.ErrGuardFailure) {
		t.Fatalf("expected guard failure, got %v", err)
	}
	guards := compliance.GuardsOf(err)
	if len(guards) != 2 || guards[0].Guard != models.GuardTimeWindow || guards[1].Guard != models.GuardGeofence {
		t.Fatalf("unexpected guards: %+v", guards)
	}
	if !reflect.DeepEqual(task, before) {
		t.Fatalf("task mutated on guard failure")
	}

	_, err = m.Advance(task, AdvanceInput{To: models.TripPickupComplete, Location: north(campCenter, 140), Override: &Override{By: "driver-1"}}, at(6, 30))
	if !errors.Is(err, compliance.ErrValidation) {
		t.Fatalf("override without reason: got %v", err)
	}

	res, err := m.Advance(task, AdvanceInput{
		To:       models.TripPickupComplete,
		Location: north(campCenter, 140),
		Override: &Override{Reason: "camp gate moved", By: "driver-1"},
	}, at(6, 30))
	if err != nil {
		t.Fatalf("override: %v", err)
	}
	got := res.Task
	if got.Status != models.TripPickupComplete || len(got.Exceptions) != 1 {
		t.Fatalf("override not applied: %+v", got)
	}
	ex := got.Exceptions[0]
	if !ex.RequiresReview || len(ex.Guards) != 2 || ex.OverriddenBy != "driver-1" {
		t.Fatalf("exception: %+v", ex)
	}
	if ev := res.Events[0].(models.StatusUpdated); !ev.Overridden {
		t.Fatalf("status event should flag the override")
	}
}

func TestPickupIndexSelectsLocation(t *testing.T) {
	m := newTestMachine()
	task := newTask()
	task.PickupLocations = append([]models.PickupLocation{{
		Name:     "Camp B",
		Point:    siteCenter,
		Geofence: &models.Geofence{Center: siteCenter, RadiusMeters: 50},
	}}, task.PickupLocations...)
	task = advance(t, m, task, models.TripEnRoutePickup, &campCenter, at(5, 30))

	// default is the last pickup (Camp A), where the driver is
	if _, err := m.Advance(task, AdvanceInput{To: models.TripPickupComplete, Location: &campCenter}, at(6, 0)); err != nil {
		t.Fatalf("default pickup: %v", err)
	}
	first := 0
	_, err := m.Advance(task, AdvanceInput{To: models.TripPickupComplete, Location: &campCenter, PickupIndex: &first}, at(6, 0))
	if !errors.Is(err, compliance.ErrGuardFailure) {
		t.Fatalf("Camp B geofence should fail, got %v", err)
	}
	bad := 5
	_, err = m.Advance(task, AdvanceInput{To: models.TripPickupComplete, Location: &campCenter, PickupIndex: &bad}, at(6, 0))
	if !errors.Is(err, compliance.ErrValidation) {
		t.Fatalf("bad index: got %v", err)
	}
}

func TestDropoffGeofence(t *testing.T) {
	m := newTestMachine()
	task := newTask()
	task = advance(t, m, task, models.TripEnRoutePickup, &campCenter, at(5, 30))
	task = advance(t, m, task, models.TripPickupComplete, &campCenter, at(6, 0))
	task = advance(t, m, task, models.TripEnRouteDropoff, &campCenter, at(6, 5))

	_, err := m.Advance(task, AdvanceInput{To: models.TripCompleted, Location: &campCenter}, at(7, 0))
	guards := compliance.GuardsOf(err)
	if len(guards) != 1 || guards[0].Location != "Site 4" {
		t.Fatalf("expected dropoff geofence failure, got %v", err)
	}
}

func TestCheckInWorkers(t *testing.T) {
	m := newTestMachine()
	task := newTask()

	res, err := m.CheckInWorkers(task, 8, at(5, 50))
	if err != nil || res.Task.CheckedInWorkers != 8 {
		t.Fatalf("check in workers: %v %+v", err, res.Task)
	}
	if _, err := m.CheckInWorkers(task, 11, at(5, 50)); !errors.Is(err, compliance.ErrValidation) {
		t.Fatalf("more than total: got %v", err)
	}
	if _, err := m.CheckInWorkers(task, -1, at(5, 50)); !errors.Is(err, compliance.ErrValidation) {
		t.Fatalf("negative: got %v", err)
	}

	task = advance(t, m, task, models.TripEnRoutePickup, &campCenter, at(5, 30))
	task = advance(t, m, task, models.TripPickupComplete, &campCenter, at(6, 0))
	if _, err := m.CheckInWorkers(task, 5, at(6, 1)); !errors.Is(err, compliance.ErrPrecondition) {
		t.Fatalf("after pickup: got %v", err)
	}
}

func TestReportDelay(t *testing.T) {
	m := newTestMachine()
	task := newTask()

	res, err := m.ReportDelay(task, DelayInput{Reason: "traffic", EstimatedMinutes: 10}, at(5, 50))
	if err != nil {
		t.Fatalf("report delay: %v", err)
	}
	if !res.Decision.AutoApproved || res.Decision.GracePeriodMinutes != 10 || res.Suggestion != nil {
		t.Fatalf("short traffic delay: %+v %+v", res.Decision, res.Suggestion)
	}
	if len(res.Task.DelayReports) != 1 || res.Task.Status != models.TripPending {
		t.Fatalf("delay not recorded or status changed: %+v", res.Task)
	}

	res, err = m.ReportDelay(task, DelayInput{Reason: "mechanical", EstimatedMinutes: 45}, at(5, 50))
	if err != nil {
		t.Fatalf("report delay: %v", err)
	}
	if !res.Decision.RequiresApproval || res.Suggestion == nil {
		t.Fatalf("long mechanical delay: %+v %+v", res.Decision, res.Suggestion)
	}
	if res.Task.VehicleRequest != nil {
		t.Fatalf("suggestion must not create a request")
	}
}

func TestReportDelayValidation(t *testing.T) {
	m := newTestMachine()
	task := newTask()
	before := task.Clone()

	for _, in := range []DelayInput{
		{Reason: "", EstimatedMinutes: 10},
		{Reason: "   ", EstimatedMinutes: 10},
		{Reason: "traffic", EstimatedMinutes: 0},
		{Reason: "traffic", EstimatedMinutes: -5},
	} {
		if _, err := m.ReportDelay(task, in, at(5, 50)); !errors.Is(err, compliance.ErrValidation) {
			t.Fatalf("%+v: got %v", in, err)
		}
	}
	if !reflect.DeepEqual(task, before) {
		t.Fatalf("task mutated by rejected delay")
	}

	task.Status = models.TripCompleted
	if _, err := m.ReportDelay(task, DelayInput{Reason: "traffic", EstimatedMinutes: 5}, at(7, 0)); !errors.Is(err, compliance.ErrPrecondition) {
		t.Fatalf("completed trip: got %v", err)
	}
}

func TestCriticalBreakdownSupersedesPendingRequest(t *testing.T) {
	m := newTestMachine()
	task := newTask()

	res, err := m.RequestVehicle(task, VehicleRequestInput{
		RequestType: models.RequestAdditional, Reason: "two extra workers", Urgency: models.UrgencyMedium, RequestedBy: "driver-1",
	}, at(5, 45))
	if err != nil {
		t.Fatalf("request vehicle: %v", err)
	}
	task = res.Task
	pendingID := task.VehicleRequest.ID

	res, err = m.ReportBreakdown(task, BreakdownInput{Type: "engine", Severity: models.SeverityCritical, AssistanceRequired: true}, at(6, 20))
	if err != nil {
		t.Fatalf("report breakdown: %v", err)
	}
	got := res.Task

	open := 0
	if got.VehicleRequest != nil && got.VehicleRequest.IsOpen() {
		open++
	}
	for _, h := range got.VehicleRequestHistory {
		if h.IsOpen() {
			open++
		}
	}
	if open != 1 {
		t.Fatalf("expected exactly one open request, got %d", open)
	}

	req := got.VehicleRequest
	if req.RequestType != models.RequestEmergency || req.Urgency != models.UrgencyCritical || !req.Automatic {
		t.Fatalf("automatic request: %+v", req)
	}
	if len(got.VehicleRequestHistory) != 1 {
		t.Fatalf("history: %+v", got.VehicleRequestHistory)
	}
	old := got.VehicleRequestHistory[0]
	if old.ID != pendingID || old.Status != models.VehicleRequestSuperseded || old.SupersededBy == nil || *old.SupersededBy != req.ID {
		t.Fatalf("superseded request: %+v", old)
	}

	if len(res.Events) != 2 {
		t.Fatalf("expected breakdown and request events, got %d", len(res.Events))
	}
	if _, ok := res.Events[0].(models.BreakdownReported); !ok {
		t.Fatalf("first event: %T", res.Events[0])
	}
	vr, ok := res.Events[1].(models.VehicleRequested)
	if !ok || vr.Superseded == nil || vr.Superseded.ID != pendingID {
		t.Fatalf("request event: %+v", res.Events[1])
	}
}

func TestBreakdownSeverities(t *testing.T) {
	m := newTestMachine()

	for _, sev := range []models.BreakdownSeverity{models.SeverityMinor, models.SeverityModerate} {
		res, err := m.ReportBreakdown(newTask(), BreakdownInput{Type: "tire", Severity: sev}, at(6, 0))
		if err != nil {
			t.Fatalf("%s: %v", sev, err)
		}
		if res.Task.VehicleRequest != nil || len(res.Events) != 1 {
			t.Fatalf("%s should not raise a request", sev)
		}
	}

	res, err := m.ReportBreakdown(newTask(), BreakdownInput{Type: "gearbox", Severity: models.SeverityMajor}, at(6, 0))
	if err != nil {
		t.Fatalf("major: %v", err)
	}
	if r := res.Task.VehicleRequest; r == nil || r.RequestType != models.RequestReplacement || r.Urgency != models.UrgencyHigh {
		t.Fatalf("major breakdown request: %+v", r)
	}

	if _, err := m.ReportBreakdown(newTask(), BreakdownInput{Type: "tire", Severity: "catastrophic"}, at(6, 0)); !errors.Is(err, compliance.ErrValidation) {
		t.Fatalf("unknown severity: got %v", err)
	}
}

func TestRequestVehicleOpenRequestPolicy(t *testing.T) {
	m := newTestMachine()
	task := newTask()

	if _, err := m.RequestVehicle(task, VehicleRequestInput{RequestType: models.RequestReplacement, Urgency: models.UrgencyHigh}, at(6, 0)); !errors.Is(err, compliance.ErrValidation) {
		t.Fatalf("empty reason: got %v", err)
	}

	res, err := m.RequestVehicle(task, VehicleRequestInput{RequestType: models.RequestReplacement, Reason: "AC broken", Urgency: models.UrgencyHigh}, at(6, 0))
	if err != nil {
		t.Fatalf("first request: %v", err)
	}
	task = res.Task
	before := task.Clone()

	_, err = m.RequestVehicle(task, VehicleRequestInput{RequestType: models.RequestAdditional, Reason: "more seats", Urgency: models.UrgencyHigh}, at(6, 5))
	if !errors.Is(err, compliance.ErrPrecondition) {
		t.Fatalf("equal urgency: got %v", err)
	}
	if !reflect.DeepEqual(task, before) {
		t.Fatalf("task mutated by refused request")
	}

	res, err = m.RequestVehicle(task, VehicleRequestInput{RequestType: models.RequestEmergency, Reason: "smoke", Urgency: models.UrgencyCritical}, at(6, 10))
	if err != nil {
		t.Fatalf("higher urgency: %v", err)
	}
	if res.Task.VehicleRequest.Urgency != models.UrgencyCritical || res.Task.VehicleRequestHistory[0].Status != models.VehicleRequestSuperseded {
		t.Fatalf("supersede failed: %+v", res.Task)
	}
}

func TestResolveVehicleRequest(t *testing.T) {
	m := newTestMachine()
	task := newTask()
	task.VehicleID = "bus-7"

	if _, err := m.ResolveVehicleRequest(task, ResolveInput{Status: models.VehicleRequestApproved}, at(6, 0)); !errors.Is(err, compliance.ErrPrecondition) {
		t.Fatalf("no request: got %v", err)
	}

	res, err := m.RequestVehicle(task, VehicleRequestInput{RequestType: models.RequestReplacement, Reason: "flat tire", Urgency: models.UrgencyHigh}, at(6, 0))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	task = res.Task

	if _, err := m.ResolveVehicleRequest(task, ResolveInput{Status: models.VehicleRequestFulfilled}, at(6, 5)); !errors.Is(err, compliance.ErrPrecondition) {
		t.Fatalf("pending -> fulfilled: got %v", err)
	}

	bus := "bus-12"
	res, err = m.ResolveVehicleRequest(task, ResolveInput{Status: models.VehicleRequestApproved, AlternateVehicle: &bus, By: "sup-1"}, at(6, 5))
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	task = res.Task
	if task.VehicleRequest.Status != models.VehicleRequestApproved || task.VehicleRequest.ResolvedAt != nil {
		t.Fatalf("approved request: %+v", task.VehicleRequest)
	}
	if task.OpenVehicleRequest() == nil {
		t.Fatalf("approved request should still be open")
	}

	res, err = m.ResolveVehicleRequest(task, ResolveInput{Status: models.VehicleRequestFulfilled, By: "sup-1"}, at(6, 40))
	if err != nil {
		t.Fatalf("fulfil: %v", err)
	}
	task = res.Task
	if task.VehicleID != "bus-12" || task.VehicleRequest.ResolvedAt == nil || task.OpenVehicleRequest() != nil {
		t.Fatalf("fulfilled task: %+v", task)
	}
	if _, ok := res.Events[0].(models.VehicleRequestResolved); !ok {
		t.Fatalf("event: %T", res.Events[0])
	}

	if _, err := m.ResolveVehicleRequest(task, ResolveInput{Status: models.VehicleRequestRejected}, at(6, 45)); !errors.Is(err, compliance.ErrPrecondition) {
		t.Fatalf("fulfilled is terminal: got %v", err)
	}

	// a new request after a closed one moves the closed one to history
	res, err = m.RequestVehicle(task, VehicleRequestInput{RequestType: models.RequestAdditional, Reason: "extra crew", Urgency: models.UrgencyLow}, at(7, 0))
	if err != nil {
		t.Fatalf("request after fulfilment: %v", err)
	}
	if len(res.Task.VehicleRequestHistory) != 1 || res.Task.VehicleRequestHistory[0].Status != models.VehicleRequestFulfilled {
		t.Fatalf("history: %+v", res.Task.VehicleRequestHistory)
	}
}

func TestNewTask(t *testing.T) {
	m := newTestMachine()
	base := newTask()
	req := models.CreateTaskRequest{
		DriverID:        "driver-1",
		VehicleID:       "VAN-014",
		PickupLocations: base.PickupLocations,
		DropoffLocation: base.DropoffLocation,
		TotalWorkers:    12,
	}

	task, err := m.NewTask(req, at(5, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.ID != "id-1" || task.Status != models.TripPending || task.CreatedAt != at(5, 0).Unix() {
		t.Fatalf("unexpected task %+v", task)
	}
	if task.Version != 0 {
		t.Fatalf("new task must be unsaved, got version %d", task.Version)
	}

	bad := []func(r *models.CreateTaskRequest){
		func(r *models.CreateTaskRequest) { r.DriverID = "" },
		func(r *models.CreateTaskRequest) { r.PickupLocations = nil },
		func(r *models.CreateTaskRequest) { r.TotalWorkers = -1 },
		func(r *models.CreateTaskRequest) {
			r.DropoffLocation = models.DropoffLocation{Name: "Site 4", Geofence: &models.Geofence{RadiusMeters: 0}}
		},
	}
	for i, mutate := range bad {
		r := req
		mutate(&r)
		_, err := m.NewTask(r, at(5, 0))
		if compliance.KindOf(err) != compliance.KindValidation {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}
}

package attendance

import (
	"errors"
	"fmt"
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

func at(day, hour, minute int) time.Time {
	return time.Date(2026, 10, day, hour, minute, 0, 0, time.UTC)
}

func ptr(v float64) *float64 { return &v }

var camp = &models.GeoPoint{Latitude: 25.2, Longitude: 55.27}

func clockIn(t *testing.T, m *Machine, now time.Time) models.AttendanceSession {
	t.Helper()
	s := m.NewSession("driver-1", now)
	res, err := m.ClockIn(s, ClockInInput{
		DriverID:          "driver-1",
		VehicleID:         "bus-7",
		Location:          camp,
		PreCheckCompleted: true,
		Mileage:           ptr(1000),
	}, now)
	if err != nil {
		t.Fatalf("clock in: %v", err)
	}
	return res.Session
}

func TestClockInHappyPath(t *testing.T) {
	m := newTestMachine()
	now := at(15, 6, 45)
	s := m.NewSession("driver-1", now)

	if s.Status != models.AttendanceNotLoggedIn || s.Date != "2026-10-15" {
		t.Fatalf("unexpected new session: %+v", s)
	}

	res, err := m.ClockIn(s, ClockInInput{
		DriverID: "driver-1", VehicleID: "bus-7", Location: camp, PreCheckCompleted: true, Mileage: ptr(1000),
	}, now)
	if err != nil {
		t.Fatalf("clock in: %v", err)
	}
	got := res.Session
	if got.Status != models.AttendanceCheckedIn || got.CheckInTime == nil || *got.CheckInTime != now.Unix() {
		t.Fatalf("unexpected session after clock in: %+v", got)
	}
	if got.StartMileage == nil || *got.StartMileage != 1000 || got.AssignedVehicleID != "bus-7" {
		t.Fatalf("vehicle data not stamped: %+v", got)
	}
	if got.CheckInVerdict == nil || got.CheckInVerdict.Classification != compliance.ClassOnTime {
		t.Fatalf("verdict not recorded: %+v", got.CheckInVerdict)
	}

	if len(res.Events) != 1 {
		t.Fatalf("expected one event, got %d", len(res.Events))
	}
	ev, ok := res.Events[0].(models.StatusUpdated)
	if !ok || ev.From != string(models.AttendanceNotLoggedIn) || ev.To != string(models.AttendanceCheckedIn) || ev.DriverID != "driver-1" {
		t.Fatalf("unexpected event: %+v", res.Events[0])
	}
}

func TestClockInPreconditions(t *testing.T) {
	m := newTestMachine()
	now := at(15, 6, 45)
	valid := ClockInInput{DriverID: "driver-1", VehicleID: "bus-7", Location: camp, PreCheckCompleted: true}

	tests := []struct {
		name   string
		mutate func(*ClockInInput)
		now    time.Time
		want   error
	}{
		{"pre-check missing", func(in *ClockInInput) { in.PreCheckCompleted = false }, now, compliance.ErrPrecondition},
		{"no vehicle", func(in *ClockInInput) { in.VehicleID = "" }, now, compliance.ErrPrecondition},
		{"no location", func(in *ClockInInput) { in.Location = nil }, now, compliance.ErrPrecondition},
		{"other driver", func(in *ClockInInput) { in.DriverID = "driver-2" }, now, compliance.ErrPrecondition},
		{"negative mileage", func(in *ClockInInput) { in.Mileage = ptr(-1) }, now, compliance.ErrValidation},
		{"next day", func(in *ClockInInput) {}, at(16, 6, 45), compliance.ErrPrecondition},
		{"window closed", func(in *ClockInInput) {}, at(15, 8, 0), compliance.ErrGuardFailure},
	}
	for _, tt := range tests {
		s := m.NewSession("driver-1", now)
		before := s
		in := valid
		tt.mutate(&in)

		_, err := m.ClockIn(s, in, tt.now)
		if !errors.Is(err, tt.want) {
			t.Fatalf("%s: got %v, want %v", tt.name, err, tt.want)
		}
		if !reflect.DeepEqual(s, before) {
			t.Fatalf("%s: session mutated on error", tt.name)
		}
	}
}

func TestClockInTwiceRejected(t *testing.T) {
	m := newTestMachine()
	s := clockIn(t, m, at(15, 6, 45))

	_, err := m.ClockIn(s, ClockInInput{DriverID: "driver-1", VehicleID: "bus-7", Location: camp, PreCheckCompleted: true}, at(15, 6, 50))
	if !errors.Is(err, compliance.ErrPrecondition) {
		t.Fatalf("second clock in: got %v", err)
	}
}

func TestClockInGuardCarriesVerdict(t *testing.T) {
	m := newTestMachine()
	s := m.NewSession("driver-1", at(15, 5, 0))

	_, err := m.ClockIn(s, ClockInInput{DriverID: "driver-1", VehicleID: "bus-7", Location: camp, PreCheckCompleted: true}, at(15, 9, 0))
	guards := compliance.GuardsOf(err)
	if len(guards) != 1 || guards[0].Guard != models.GuardTimeWindow || guards[0].Result.CanProceed {
		t.Fatalf("expected one failed time-window guard, got %+v", guards)
	}
}

func TestLunchBreak(t *testing.T) {
	m := newTestMachine()
	s := clockIn(t, m, at(15, 6, 45))

	if _, err := m.EndLunch(s, at(15, 12, 30)); !errors.Is(err, compliance.ErrPrecondition) {
		t.Fatalf("ending lunch before start: got %v", err)
	}
	if _, err := m.StartLunch(s, at(15, 11, 30)); !errors.Is(err, compliance.ErrGuardFailure) {
		t.Fatalf("early lunch start: got %v", err)
	}

	res, err := m.StartLunch(s, at(15, 12, 5))
	if err != nil {
		t.Fatalf("start lunch: %v", err)
	}
	s = res.Session
	if _, err := m.StartLunch(s, at(15, 12, 10)); !errors.Is(err, compliance.ErrPrecondition) {
		t.Fatalf("second lunch start: got %v", err)
	}

	// early end is advisory
	res, err = m.EndLunch(s, at(15, 12, 40))
	if err != nil {
		t.Fatalf("end lunch: %v", err)
	}
	if res.Session.LunchEndVerdict == nil || res.Session.LunchEndVerdict.Classification != compliance.ClassEarly {
		t.Fatalf("end verdict: %+v", res.Session.LunchEndVerdict)
	}
}

func TestClockOut(t *testing.T) {
	m := newTestMachine()
	s := clockIn(t, m, at(15, 7, 0))

	res, err := m.ClockOut(s, ClockOutInput{
		DriverID: "driver-1", Location: camp, PostCheckCompleted: true, Mileage: ptr(1085.5), FuelLevel: ptr(0.3),
	}, at(15, 17, 30))
	if err != nil {
		t.Fatalf("clock out: %v", err)
	}
	got := res.Session
	if got.Status != models.AttendanceCheckedOut {
		t.Fatalf("status = %s", got.Status)
	}
	if got.TotalHours != 10.5 || got.TotalDistance != 85.5 {
		t.Fatalf("totals: hours=%v distance=%v", got.TotalHours, got.TotalDistance)
	}
	if *got.CheckOutTime < *got.CheckInTime {
		t.Fatalf("checkout before checkin")
	}
	if got.CheckOutVerdict == nil || got.CheckOutVerdict.Classification != compliance.ClassLate {
		t.Fatalf("evening verdict: %+v", got.CheckOutVerdict)
	}

	// closed sessions are immutable
	closed := got
	ops := map[string]func() error{
		"clock_in": func() error {
			_, err := m.ClockIn(closed, ClockInInput{DriverID: "driver-1", VehicleID: "bus-7", Location: camp, PreCheckCompleted: true}, at(15, 18, 0))
			return err
		},
		"clock_out": func() error {
			_, err := m.ClockOut(closed, ClockOutInput{DriverID: "driver-1", Location: camp, PostCheckCompleted: true}, at(15, 18, 0))
			return err
		},
		"start_lunch": func() error { _, err := m.StartLunch(closed, at(15, 18, 0)); return err },
		"force_checkout": func() error {
			_, err := m.ForceCheckout(closed, ForceCheckoutInput{Reason: "x"}, at(16, 5, 0))
			return err
		},
		"check_forgotten": func() error { _, err := m.CheckForgotten(closed, at(16, 5, 0)); return err },
	}
	for name, op := range ops {
		if err := op(); !errors.Is(err, compliance.ErrPrecondition) {
			t.Fatalf("%s on closed session: got %v", name, err)
		}
	}
	if !reflect.DeepEqual(closed, got) {
		t.Fatalf("closed session mutated")
	}
}

func TestClockOutPreconditions(t *testing.T) {
	m := newTestMachine()
	s := clockIn(t, m, at(15, 7, 0))
	now := at(15, 17, 0)

	if _, err := m.ClockOut(s, ClockOutInput{DriverID: "driver-1", Location: camp}, now); !errors.Is(err, compliance.ErrPrecondition) {
		t.Fatalf("missing post-check: got %v", err)
	}
	if _, err := m.ClockOut(s, ClockOutInput{DriverID: "driver-1", PostCheckCompleted: true}, now); !errors.Is(err, compliance.ErrPrecondition) {
		t.Fatalf("missing location: got %v", err)
	}
	if _, err := m.ClockOut(s, ClockOutInput{DriverID: "driver-1", Location: camp, PostCheckCompleted: true, Mileage: ptr(900)}, now); !errors.Is(err, compliance.ErrDataIntegrity) {
		t.Fatalf("odometer rollback: got %v", err)
	}
	if _, err := m.ClockOut(s, ClockOutInput{DriverID: "driver-1", Location: camp, PostCheckCompleted: true}, at(15, 6, 0)); !errors.Is(err, compliance.ErrDataIntegrity) {
		t.Fatalf("checkout before checkin: got %v", err)
	}

	fresh := m.NewSession("driver-1", now)
	if _, err := m.ClockOut(fresh, ClockOutInput{DriverID: "driver-1", Location: camp, PostCheckCompleted: true}, now); !errors.Is(err, compliance.ErrPrecondition) {
		t.Fatalf("clock out without clock in: got %v", err)
	}
}

func TestForgottenCheckoutRemedies(t *testing.T) {
	m := newTestMachine()
	s := clockIn(t, m, at(15, 6, 0))

	res, err := m.CheckForgotten(s, at(15, 19, 0))
	if err != nil {
		t.Fatalf("check forgotten: %v", err)
	}
	if !res.IsForgotten || !res.RequiresRegularization {
		t.Fatalf("13h session should be flagged: %+v", res)
	}

	if _, err := m.ForceCheckout(s, ForceCheckoutInput{Reason: "left site"}, at(15, 15, 0)); !errors.Is(err, compliance.ErrPrecondition) {
		t.Fatalf("remedy before threshold: got %v", err)
	}
	if _, err := m.RequestRegularization(s, RegularizationInput{RequestedCheckOutTime: at(15, 16, 0).Unix()}, at(15, 19, 0)); !errors.Is(err, compliance.ErrValidation) {
		t.Fatalf("regularization without reason: got %v", err)
	}

	reg, err := m.RequestRegularization(s, RegularizationInput{
		RequestedCheckOutTime: at(15, 16, 0).Unix(),
		Reason:                "forgot to clock out at the depot",
	}, at(15, 19, 0))
	if err != nil {
		t.Fatalf("regularization: %v", err)
	}
	closed := reg.Session
	if closed.Status != models.AttendanceCheckedOut || !closed.Irregular || closed.IrregularReason != models.IrregularRegularization {
		t.Fatalf("regularized session: %+v", closed)
	}
	if closed.PostCheckCompleted {
		t.Fatalf("regularization must not pretend the post-check happened")
	}
	if closed.TotalHours != 10 || closed.Regularization == nil || closed.Regularization.Status != "pending" {
		t.Fatalf("regularization details: %+v", closed)
	}

	// remedies are exclusive
	if _, err := m.ForceCheckout(closed, ForceCheckoutInput{Reason: "again"}, at(15, 19, 5)); !errors.Is(err, compliance.ErrPrecondition) {
		t.Fatalf("second remedy: got %v", err)
	}
}

func TestForceCheckout(t *testing.T) {
	m := newTestMachine()
	s := clockIn(t, m, at(15, 6, 0))

	res, err := m.ForceCheckout(s, ForceCheckoutInput{Reason: "phone died"}, at(15, 17, 0))
	if err != nil {
		t.Fatalf("force checkout: %v", err)
	}
	got := res.Session
	if got.Status != models.AttendanceCheckedOut || !got.Irregular || got.IrregularReason != models.IrregularForcedCheckout {
		t.Fatalf("forced session: %+v", got)
	}
	if got.TotalHours != 11 || got.IrregularNote != "phone died" {
		t.Fatalf("forced session details: %+v", got)
	}
	if len(res.Events) != 1 {
		t.Fatalf("expected status event")
	}
}

package jobs

import (
	"testing"
	"time"

	"fieldops-backend/internal/attendance"
	"fieldops-backend/internal/compliance"
	"fieldops-backend/internal/models"
)

func openSession(id string, checkIn time.Time) models.AttendanceSession {
	ts := checkIn.Unix()
	return models.AttendanceSession{
		ID:          id,
		DriverID:    "driver-" + id,
		Date:        checkIn.Format("2006-01-02"),
		Status:      models.AttendanceCheckedIn,
		CheckInTime: &ts,
	}
}

func TestEvaluate(t *testing.T) {
	m := attendance.NewMachine(compliance.DefaultPolicy())
	now := time.Date(2026, 3, 2, 20, 0, 0, 0, time.UTC)

	sessions := []models.AttendanceSession{
		openSession("fresh", now.Add(-8*time.Hour)),
		openSession("long", now.Add(-11*time.Hour)),
		openSession("forgotten", now.Add(-13*time.Hour)),
		{ID: "closed", Status: models.AttendanceCheckedOut},
	}

	flags := Evaluate(m, sessions, now)
	if len(flags) != 2 {
		t.Fatalf("expected 2 flags, got %d", len(flags))
	}
	if flags[0].Session.ID != "long" || flags[0].Result.IsForgotten || !flags[0].Result.RequiresRegularization {
		t.Fatalf("unexpected first flag %+v", flags[0])
	}
	if flags[1].Session.ID != "forgotten" || !flags[1].Result.IsForgotten {
		t.Fatalf("unexpected second flag %+v", flags[1])
	}
}

func TestSelectRemindersOncePerLevel(t *testing.T) {
	s := &ForgottenCheckoutSweep{notified: make(map[string]int)}
	sess := openSession("s1", time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC))
	open := []models.AttendanceSession{sess}

	regularize := Flag{Session: sess, Result: compliance.ForgottenCheckoutResult{RequiresRegularization: true}}
	forgotten := Flag{Session: sess, Result: compliance.ForgottenCheckoutResult{RequiresRegularization: true, IsForgotten: true}}

	if got := s.selectReminders(open, []Flag{regularize}); len(got) != 1 {
		t.Fatalf("expected first reminder, got %d", len(got))
	}
	if got := s.selectReminders(open, []Flag{regularize}); len(got) != 0 {
		t.Fatalf("expected no repeat reminder, got %d", len(got))
	}
	if got := s.selectReminders(open, []Flag{forgotten}); len(got) != 1 {
		t.Fatalf("expected escalation reminder, got %d", len(got))
	}

	// session closed: its state is dropped
	s.selectReminders(nil, nil)
	if len(s.notified) != 0 {
		t.Fatalf("expected closed session to be forgotten, got %v", s.notified)
	}
}

package jobs

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/robfig/cron/v3"

	"fieldops-backend/internal/attendance"
	"fieldops-backend/internal/compliance"
	"fieldops-backend/internal/database"
	"fieldops-backend/internal/models"
	"fieldops-backend/internal/services"
	"fieldops-backend/internal/websocket"
)

// Flag is an open session the detector says needs attention
type Flag struct {
	Session models.AttendanceSession           `json:"session"`
	Result  compliance.ForgottenCheckoutResult `json:"result"`
}

// level orders how bad a flag is so a driver is reminded once per step
func (f Flag) level() int {
	switch {
	case f.Result.IsForgotten:
		return 2
	case f.Result.RequiresRegularization:
		return 1
	default:
		return 0
	}
}

// Evaluate runs the detector over open sessions and keeps the ones past the regularization threshold
func Evaluate(m *attendance.Machine, sessions []models.AttendanceSession, now time.Time) []Flag {
	var flags []Flag
	for _, s := range sessions {
		res, err := m.CheckForgotten(s, now)
		if err != nil {
			continue
		}
		if res.RequiresRegularization {
			flags = append(flags, Flag{Session: s, Result: res})
		}
	}
	return flags
}

// ForgottenCheckoutSweep periodically reminds drivers who never clocked out.
// It only reads sessions; closing them is left to the driver or a supervisor.
type ForgottenCheckoutSweep struct {
	cronScheduler *cron.Cron
	schedule      string
	jobID         cron.EntryID

	db       *sqlx.DB
	machine  *attendance.Machine
	hub      *websocket.Hub
	notifier *services.Notifier
	now      func() time.Time

	mu       sync.Mutex
	notified map[string]int // session id -> highest level already reminded
}

func NewForgottenCheckoutSweep(schedule string, db *sqlx.DB, machine *attendance.Machine, hub *websocket.Hub, notifier *services.Notifier) *ForgottenCheckoutSweep {
	return &ForgottenCheckoutSweep{
		cronScheduler: cron.New(cron.WithSeconds()),
		schedule:      schedule,
		db:            db,
		machine:       machine,
		hub:           hub,
		notifier:      notifier,
		now:           time.Now,
		notified:      make(map[string]int),
	}
}

// Start schedules the sweep; ctx bounds each run's notification calls
func (s *ForgottenCheckoutSweep) Start(ctx context.Context) error {
	var err error
	s.jobID, err = s.cronScheduler.AddFunc(s.schedule, func() {
		if err := s.RunOnce(ctx); err != nil {
			log.Printf("❌ Forgotten-checkout sweep failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("error scheduling forgotten-checkout sweep: %w", err)
	}

	s.cronScheduler.Start()
	log.Printf("✅ Forgotten-checkout sweep scheduled (%s)", s.schedule)
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish
func (s *ForgottenCheckoutSweep) Stop() {
	<-s.cronScheduler.Stop().Done()
	log.Println("Forgotten-checkout sweep stopped")
}

// RunOnce evaluates every open session, reminds drivers and tells supervisors
func (s *ForgottenCheckoutSweep) RunOnce(ctx context.Context) error {
	sessions, err := database.ListOpenAttendanceSessions(s.db)
	if err != nil {
		return err
	}

	flags := Evaluate(s.machine, sessions, s.now())
	fresh := s.selectReminders(sessions, flags)
	log.Printf("🕐 Forgotten-checkout sweep: %d open, %d flagged, %d new reminders", len(sessions), len(flags), len(fresh))

	for _, f := range fresh {
		msg := websocket.Outgoing{Type: websocket.MessageForgottenStatus, Data: f}
		s.hub.BroadcastToRole(models.RoleSupervisor, msg)
		s.hub.BroadcastToUser(f.Session.DriverID, msg)

		n := services.ForgottenCheckoutNotification(f.Session, f.Result)
		if err := s.notifier.NotifyUser(ctx, f.Session.DriverID, n); err != nil {
			log.Printf("⚠️  Failed to remind driver %s: %v", f.Session.DriverID, err)
		}
	}
	return nil
}

// selectReminders returns the flags that reached a new level since the last run
// and forgets sessions that are no longer open
func (s *ForgottenCheckoutSweep) selectReminders(open []models.AttendanceSession, flags []Flag) []Flag {
	s.mu.Lock()
	defer s.mu.Unlock()

	stillOpen := make(map[string]struct{}, len(open))
	for _, sess := range open {
		stillOpen[sess.ID] = struct{}{}
	}
	for id := range s.notified {
		if _, ok := stillOpen[id]; !ok {
			delete(s.notified, id)
		}
	}

	var fresh []Flag
	for _, f := range flags {
		if f.level() > s.notified[f.Session.ID] {
			s.notified[f.Session.ID] = f.level()
			fresh = append(fresh, f)
		}
	}
	return fresh
}

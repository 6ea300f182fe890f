package services

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"github.com/jmoiron/sqlx"

	"fieldops-backend/internal/compliance"
	"fieldops-backend/internal/database"
	"fieldops-backend/internal/models"
)

// Notification is a push message before it is addressed to devices
type Notification struct {
	Title string
	Body  string
	Data  map[string]string
}

// Pusher delivers a notification to device tokens
type Pusher interface {
	// SendMulticast returns the tokens that should be forgotten
	SendMulticast(ctx context.Context, tokens []string, n Notification) ([]string, error)
}

// Planned is a notification together with who should receive it
type Planned struct {
	ToSupervisors bool
	UserID        string
	Notification  Notification
}

func VehicleRequestNotification(req models.VehicleRequest) Notification {
	origin := "Driver"
	if req.Automatic {
		origin = "Breakdown"
	}
	return Notification{
		Title: fmt.Sprintf("Vehicle request (%s)", req.Urgency),
		Body:  fmt.Sprintf("%s requested a %s vehicle: %s", origin, req.RequestType, req.Reason),
		Data: map[string]string{
			"type":         "vehicle_requested",
			"task_id":      req.TaskID,
			"request_id":   req.ID,
			"request_type": string(req.RequestType),
			"urgency":      string(req.Urgency),
		},
	}
}

func TripExceptionNotification(taskID string, e models.StatusUpdated) Notification {
	return Notification{
		Title: "Trip exception needs review",
		Body:  fmt.Sprintf("Task %s moved to %s past a failed check", taskID, e.To),
		Data: map[string]string{
			"type":    "trip_exception",
			"task_id": taskID,
			"status":  e.To,
		},
	}
}

func ForgottenCheckoutNotification(s models.AttendanceSession, r compliance.ForgottenCheckoutResult) Notification {
	title := "Still checked in?"
	if r.IsForgotten {
		title = "Forgotten checkout"
	}
	return Notification{
		Title: title,
		Body:  r.Message,
		Data: map[string]string{
			"type":                    "forgotten_checkout",
			"session_id":              s.ID,
			"date":                    s.Date,
			"hours_checked_in":        strconv.FormatFloat(r.HoursCheckedIn, 'f', 1, 64),
			"requires_regularization": strconv.FormatBool(r.RequiresRegularization),
		},
	}
}

// PlanNotifications picks the events that deserve a push
func PlanNotifications(events []models.Event) []Planned {
	var planned []Planned
	for _, e := range events {
		switch ev := e.(type) {
		case models.VehicleRequested:
			planned = append(planned, Planned{ToSupervisors: true, Notification: VehicleRequestNotification(ev.Request)})
		case models.StatusUpdated:
			if ev.Overridden && ev.Subject == models.SubjectTask {
				planned = append(planned, Planned{ToSupervisors: true, Notification: TripExceptionNotification(ev.TaskID, ev)})
			}
		}
	}
	return planned
}

// Notifier addresses planned notifications and hands them to the pusher.
// A nil pusher (FCM disabled) turns every call into a no-op.
type Notifier struct {
	db     *sqlx.DB
	pusher Pusher
}

func NewNotifier(db *sqlx.DB, pusher Pusher) *Notifier {
	return &Notifier{db: db, pusher: pusher}
}

func (n *Notifier) Enabled() bool {
	return n != nil && n.pusher != nil
}

// Dispatch sends every planned notification; failures are logged, never returned
func (n *Notifier) Dispatch(ctx context.Context, planned []Planned) {
	if !n.Enabled() {
		return
	}
	for _, p := range planned {
		var err error
		if p.ToSupervisors {
			err = n.NotifyRole(ctx, models.RoleSupervisor, p.Notification)
		} else {
			err = n.NotifyUser(ctx, p.UserID, p.Notification)
		}
		if err != nil {
			log.Printf("⚠️  Failed to send %s notification: %v", p.Notification.Data["type"], err)
		}
	}
}

func (n *Notifier) NotifyUser(ctx context.Context, userID string, msg Notification) error {
	if !n.Enabled() {
		return nil
	}
	tokens, err := database.GetFCMTokensForUsers(n.db, []string{userID})
	if err != nil {
		return err
	}
	return n.send(ctx, tokens, msg)
}

func (n *Notifier) NotifyRole(ctx context.Context, role string, msg Notification) error {
	if !n.Enabled() {
		return nil
	}
	ids, err := database.GetUserIDsByRole(n.db, role)
	if err != nil {
		return err
	}
	tokens, err := database.GetFCMTokensForUsers(n.db, ids)
	if err != nil {
		return err
	}
	return n.send(ctx, tokens, msg)
}

// send pushes msg and drops tokens the device has unregistered
func (n *Notifier) send(ctx context.Context, tokens []string, msg Notification) error {
	stale, err := n.pusher.SendMulticast(ctx, tokens, msg)
	if err != nil {
		return err
	}
	if len(stale) > 0 {
		if err := database.DeleteFCMTokens(n.db, stale); err != nil {
			return err
		}
		log.Printf("🧹 Removed %d stale FCM tokens", len(stale))
	}
	return nil
}

package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"

	"fieldops-backend/internal/attendance"
	"fieldops-backend/internal/database"
	"fieldops-backend/internal/locks"
	"fieldops-backend/internal/models"
	"fieldops-backend/internal/services"
	"fieldops-backend/internal/trips"
	"fieldops-backend/internal/websocket"
	"fieldops-backend/pkg/utils"
)

// Env carries everything the HTTP handlers share
type Env struct {
	DB         *sqlx.DB
	Hub        *websocket.Hub
	Notifier   *services.Notifier
	Attendance *attendance.Machine
	Trips      *trips.Machine
	Locks      *locks.Keyed

	JWTSecret         string
	LocationFreshness time.Duration

	// Now defaults to time.Now
	Now func() time.Time
}

func (env *Env) now() time.Time {
	if env.Now != nil {
		return env.Now()
	}
	return time.Now()
}

// decodeBody reads JSON into dst and runs struct validation.
// It writes the 400 response itself and reports whether the handler may continue.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		log.Printf("❌ Invalid request body: %v", err)
		utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if msg := validateStruct(dst); msg != "" {
		log.Printf("❌ Validation failed: %s", msg)
		utils.RespondError(w, http.StatusBadRequest, msg)
		return false
	}
	return true
}

// respondFailure maps engine and storage errors to responses
func respondFailure(w http.ResponseWriter, op string, err error) {
	if utils.RespondEngineError(w, err) {
		log.Printf("⚠️  %s refused: %v", op, err)
		return
	}

	switch {
	case errors.Is(err, database.ErrVersionConflict):
		log.Printf("⚠️  %s lost a concurrent update", op)
		utils.RespondError(w, http.StatusConflict, "Record was changed by another request, reload and retry")
	case errors.Is(err, database.ErrNotFound):
		utils.RespondError(w, http.StatusNotFound, "Not found")
	default:
		log.Printf("❌ %s failed: %v", op, err)
		utils.RespondError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// publish fans persisted events out over the websocket and push channels
func (env *Env) publish(r *http.Request, events []models.Event) {
	if len(events) == 0 {
		return
	}
	env.Hub.PublishEvents(events)
	env.Notifier.Dispatch(r.Context(), services.PlanNotifications(events))
}

func logRequest(r *http.Request, what string) {
	log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Printf("📥 REQUEST: %s %s - %s", r.Method, r.URL.Path, what)
}

package handlers

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"fieldops-backend/internal/database"
	"fieldops-backend/internal/jobs"
	"fieldops-backend/internal/middleware"
	"fieldops-backend/internal/models"
	"fieldops-backend/internal/trips"
	"fieldops-backend/pkg/utils"
)

type ResolveVehicleRequestBody struct {
	RequestID        string                      `json:"request_id,omitempty"`
	Status           models.VehicleRequestStatus `json:"status" validate:"required,oneof=approved rejected fulfilled"`
	AlternateVehicle *string                     `json:"alternate_vehicle,omitempty"`
}

// CreateTask dispatches a new trip to a driver
func CreateTask(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logRequest(r, "Dispatch transport task")

		var req models.CreateTaskRequest
		if !decodeBody(w, r, &req) {
			return
		}

		driver, err := database.GetUserByID(env.DB, req.DriverID)
		if err != nil {
			respondFailure(w, "create_task", err)
			return
		}
		if driver.Role != models.RoleDriver {
			utils.RespondError(w, http.StatusBadRequest, "driver_id does not belong to a driver")
			return
		}
		if req.VehicleID == "" && driver.AssignedVehicleID != nil {
			req.VehicleID = *driver.AssignedVehicleID
		}

		task, err := env.Trips.NewTask(req, env.now())
		if err != nil {
			respondFailure(w, "create_task", err)
			return
		}
		if err := database.SaveTransportTask(env.DB, &task, nil); err != nil {
			respondFailure(w, "create_task", err)
			return
		}
		env.Hub.PublishTask(task)

		log.Printf("✅ Task %s dispatched to driver %s (%d pickups)", task.ID, task.DriverID, len(task.PickupLocations))
		utils.RespondJSON(w, http.StatusCreated, map[string]interface{}{
			"success": true,
			"task":    task,
		})
	}
}

func ResolveVehicleRequest(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logRequest(r, "Resolve vehicle request")

		var req ResolveVehicleRequestBody
		if !decodeBody(w, r, &req) {
			return
		}

		env.mutateTask(w, r, "resolve_vehicle_request", func(task models.TransportTask, claims middleware.UserClaims, now time.Time) (taskOutcome, error) {
			res, err := env.Trips.ResolveVehicleRequest(task, trips.ResolveInput{
				RequestID:        req.RequestID,
				Status:           req.Status,
				AlternateVehicle: req.AlternateVehicle,
				By:               claims.UserID,
			}, now)
			if err != nil {
				return taskOutcome{}, err
			}
			return taskOutcome{result: res, extra: vehicleRequestExtra(res.Task)}, nil
		})
	}
}

// ListEvents returns the stored event log, filtered by task_id, driver_id, since and limit
func ListEvents(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := database.EventFilter{
			TaskID:   q.Get("task_id"),
			DriverID: q.Get("driver_id"),
		}
		if raw := q.Get("since"); raw != "" {
			since, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				utils.RespondError(w, http.StatusBadRequest, "since must be a Unix timestamp")
				return
			}
			filter.Since = since
		}
		if raw := q.Get("limit"); raw != "" {
			limit, err := strconv.Atoi(raw)
			if err != nil {
				utils.RespondError(w, http.StatusBadRequest, "limit must be a number")
				return
			}
			filter.Limit = limit
		}

		events, err := database.ListEvents(env.DB, filter)
		if err != nil {
			respondFailure(w, "list_events", err)
			return
		}

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"events":  events,
		})
	}
}

// ListOpenSessions shows every driver still checked in, flagging long-running sessions
func ListOpenSessions(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessions, err := database.ListOpenAttendanceSessions(env.DB)
		if err != nil {
			respondFailure(w, "list_open_sessions", err)
			return
		}

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success":  true,
			"sessions": sessions,
			"flagged":  jobs.Evaluate(env.Attendance, sessions, env.now()),
		})
	}
}

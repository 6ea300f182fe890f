package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"fieldops-backend/internal/database"
	"fieldops-backend/internal/locks"
	"fieldops-backend/internal/middleware"
	"fieldops-backend/internal/models"
	"fieldops-backend/internal/trips"
	"fieldops-backend/pkg/utils"
)

type AdvanceRequest struct {
	To          models.TripStatus `json:"to" validate:"required"`
	PickupIndex *int              `json:"pickup_index,omitempty"`
	Override    *struct {
		Reason string `json:"reason"`
	} `json:"override,omitempty"`
	Position
}

type WorkerCheckInRequest struct {
	Count int `json:"count"`
}

type DelayRequest struct {
	Reason           string `json:"reason"`
	EstimatedMinutes int    `json:"estimated_delay"`
	Description      string `json:"description"`
	Position
}

type BreakdownRequest struct {
	Type               string                   `json:"type"`
	Severity           models.BreakdownSeverity `json:"severity"`
	Description        string                   `json:"description"`
	AssistanceRequired bool                     `json:"assistance_required"`
	Position
}

type VehicleRequestBody struct {
	RequestType models.VehicleRequestType `json:"request_type"`
	Urgency     models.Urgency            `json:"urgency"`
	Reason      string                    `json:"reason"`
}

// taskOutcome is what an engine call hands back to mutateTask
type taskOutcome struct {
	result trips.Result
	extra  map[string]interface{}
}

// mutateTask runs one engine operation inside the task's critical section and persists the result.
// Drivers may only touch their own tasks.
func (env *Env) mutateTask(w http.ResponseWriter, r *http.Request, op string,
	fn func(task models.TransportTask, claims middleware.UserClaims, now time.Time) (taskOutcome, error)) {
	userClaims, _ := middleware.GetUserFromContext(r)
	taskID := chi.URLParam(r, "id")

	unlock := env.Locks.Lock(locks.TaskKey(taskID))
	defer unlock()

	task, err := database.GetTransportTask(env.DB, taskID)
	if err != nil {
		respondFailure(w, op, err)
		return
	}
	if userClaims.Role == models.RoleDriver && task.DriverID != userClaims.UserID {
		log.Printf("❌ Driver %s tried %s on task %s owned by %s", userClaims.UserID, op, taskID, task.DriverID)
		utils.RespondError(w, http.StatusForbidden, "Task is assigned to another driver")
		return
	}

	out, err := fn(*task, userClaims, env.now())
	if err != nil {
		respondFailure(w, op, err)
		return
	}

	next := out.result.Task
	if err := database.SaveTransportTask(env.DB, &next, out.result.Events); err != nil {
		respondFailure(w, op, err)
		return
	}
	env.publish(r, out.result.Events)
	env.Hub.PublishTask(next)

	log.Printf("✅ %s: task %s is %s", op, next.ID, next.Status)
	resp := map[string]interface{}{
		"success": true,
		"task":    next,
	}
	for k, v := range out.extra {
		resp[k] = v
	}
	utils.RespondJSON(w, http.StatusOK, resp)
}

// GetDriverTasks lists the caller's tasks; ?all=true includes completed ones
func GetDriverTasks(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userClaims, _ := middleware.GetUserFromContext(r)

		tasks, err := database.ListDriverTasks(env.DB, userClaims.UserID, r.URL.Query().Get("all") == "true")
		if err != nil {
			respondFailure(w, "list_tasks", err)
			return
		}

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"tasks":   tasks,
		})
	}
}

// GetTask returns one task; drivers only see their own
func GetTask(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userClaims, _ := middleware.GetUserFromContext(r)

		task, err := database.GetTransportTask(env.DB, chi.URLParam(r, "id"))
		if err != nil {
			respondFailure(w, "get_task", err)
			return
		}
		if userClaims.Role == models.RoleDriver && task.DriverID != userClaims.UserID {
			utils.RespondError(w, http.StatusForbidden, "Task is assigned to another driver")
			return
		}

		resp := map[string]interface{}{
			"success": true,
			"task":    task,
		}
		if next, ok := trips.Next(task.Status); ok {
			resp["next_status"] = next
		}
		utils.RespondJSON(w, http.StatusOK, resp)
	}
}

func AdvanceTask(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logRequest(r, "Advance trip status")

		var req AdvanceRequest
		if !decodeBody(w, r, &req) {
			return
		}

		env.mutateTask(w, r, "advance", func(task models.TransportTask, claims middleware.UserClaims, now time.Time) (taskOutcome, error) {
			location, err := env.resolveLocation(task.DriverID, req.Position, now)
			if err != nil {
				return taskOutcome{}, err
			}

			in := trips.AdvanceInput{To: req.To, Location: location, PickupIndex: req.PickupIndex}
			if req.Override != nil {
				in.Override = &trips.Override{Reason: req.Override.Reason, By: claims.UserID}
			}
			res, err := env.Trips.Advance(task, in, now)
			return taskOutcome{result: res}, err
		})
	}
}

func CheckInWorkers(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req WorkerCheckInRequest
		if !decodeBody(w, r, &req) {
			return
		}

		env.mutateTask(w, r, "check_in_workers", func(task models.TransportTask, _ middleware.UserClaims, now time.Time) (taskOutcome, error) {
			res, err := env.Trips.CheckInWorkers(task, req.Count, now)
			return taskOutcome{result: res}, err
		})
	}
}

func ReportDelay(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logRequest(r, "Report delay")

		var req DelayRequest
		if !decodeBody(w, r, &req) {
			return
		}

		env.mutateTask(w, r, "report_delay", func(task models.TransportTask, _ middleware.UserClaims, now time.Time) (taskOutcome, error) {
			location, err := env.resolveLocation(task.DriverID, req.Position, now)
			if err != nil {
				return taskOutcome{}, err
			}

			res, err := env.Trips.ReportDelay(task, trips.DelayInput{
				Reason:           req.Reason,
				EstimatedMinutes: req.EstimatedMinutes,
				Location:         location,
				Description:      req.Description,
			}, now)
			if err != nil {
				return taskOutcome{}, err
			}

			extra := map[string]interface{}{"decision": res.Decision}
			if res.Suggestion != nil {
				extra["suggestion"] = res.Suggestion
			}
			return taskOutcome{result: res.Result, extra: extra}, nil
		})
	}
}

func ReportBreakdown(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logRequest(r, "Report breakdown")

		var req BreakdownRequest
		if !decodeBody(w, r, &req) {
			return
		}

		env.mutateTask(w, r, "report_breakdown", func(task models.TransportTask, _ middleware.UserClaims, now time.Time) (taskOutcome, error) {
			location, err := env.resolveLocation(task.DriverID, req.Position, now)
			if err != nil {
				return taskOutcome{}, err
			}

			res, err := env.Trips.ReportBreakdown(task, trips.BreakdownInput{
				Type:               req.Type,
				Severity:           req.Severity,
				Location:           location,
				Description:        req.Description,
				AssistanceRequired: req.AssistanceRequired,
			}, now)
			return taskOutcome{result: res}, err
		})
	}
}

func RequestVehicle(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logRequest(r, "Request vehicle")

		var req VehicleRequestBody
		if !decodeBody(w, r, &req) {
			return
		}

		env.mutateTask(w, r, "request_vehicle", func(task models.TransportTask, claims middleware.UserClaims, now time.Time) (taskOutcome, error) {
			res, err := env.Trips.RequestVehicle(task, trips.VehicleRequestInput{
				RequestType: req.RequestType,
				Reason:      req.Reason,
				Urgency:     req.Urgency,
				RequestedBy: claims.UserID,
			}, now)
			if err != nil {
				return taskOutcome{}, err
			}
			return taskOutcome{result: res, extra: vehicleRequestExtra(res.Task)}, nil
		})
	}
}

// vehicleRequestExtra adds the current request with ISO timestamps for the client
func vehicleRequestExtra(task models.TransportTask) map[string]interface{} {
	if task.VehicleRequest == nil {
		return nil
	}
	return map[string]interface{}{"vehicle_request": task.VehicleRequest.ToResponse()}
}

package handlers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"fieldops-backend/internal/attendance"
	"fieldops-backend/internal/compliance"
	"fieldops-backend/internal/database"
	"fieldops-backend/internal/locks"
	"fieldops-backend/internal/middleware"
	"fieldops-backend/internal/models"
	"fieldops-backend/pkg/utils"
)

type ClockInRequest struct {
	VehicleID         string   `json:"vehicle_id"`
	PreCheckCompleted bool     `json:"pre_check_completed"`
	Mileage           *float64 `json:"mileage,omitempty"`
	Position
}

type ClockOutRequest struct {
	PostCheckCompleted bool     `json:"post_check_completed"`
	Mileage            *float64 `json:"mileage,omitempty"`
	FuelLevel          *float64 `json:"fuel_level,omitempty"`
	ExtendedShift      bool     `json:"extended_shift"`
	Position
}

type RegularizeRequest struct {
	RequestedCheckOutTime int64  `json:"requested_check_out_time" validate:"required"`
	Reason                string `json:"reason"`
}

type ForceCheckoutRequest struct {
	Reason string `json:"reason"`
	Position
}

// sessionFor returns the session an action applies to: the driver's open session
// (possibly from an earlier day) when preferOpen, otherwise today's, created on first use
func (env *Env) sessionFor(driverID string, now time.Time, preferOpen bool) (models.AttendanceSession, error) {
	if preferOpen {
		open, err := database.GetOpenAttendanceSession(env.DB, driverID)
		if err == nil {
			return *open, nil
		}
		if !errors.Is(err, database.ErrNotFound) {
			return models.AttendanceSession{}, err
		}
	}

	date := compliance.ShiftDate(now, env.Attendance.Policy().Shift)
	s, err := database.GetAttendanceSession(env.DB, driverID, date)
	if errors.Is(err, database.ErrNotFound) {
		return env.Attendance.NewSession(driverID, now), nil
	}
	if err != nil {
		return models.AttendanceSession{}, err
	}
	return *s, nil
}

// mutateSession runs one engine operation inside the driver-day critical section and persists the result
func (env *Env) mutateSession(w http.ResponseWriter, r *http.Request, op string, preferOpen bool,
	fn func(s models.AttendanceSession, now time.Time) (attendance.Result, error)) {
	userClaims, _ := middleware.GetUserFromContext(r)
	now := env.now()

	target, err := env.sessionFor(userClaims.UserID, now, preferOpen)
	if err != nil {
		respondFailure(w, op, err)
		return
	}

	unlock := env.Locks.Lock(locks.AttendanceKey(userClaims.UserID, target.Date))
	defer unlock()

	// reload under the lock; the version check on save catches other processes
	fresh, err := database.GetAttendanceSession(env.DB, userClaims.UserID, target.Date)
	switch {
	case err == nil:
		target = *fresh
	case !errors.Is(err, database.ErrNotFound):
		respondFailure(w, op, err)
		return
	}

	res, err := fn(target, now)
	if err != nil {
		respondFailure(w, op, err)
		return
	}

	if err := database.SaveAttendanceSession(env.DB, &res.Session, res.Events); err != nil {
		respondFailure(w, op, err)
		return
	}
	env.publish(r, res.Events)

	log.Printf("✅ %s: driver %s is %s", op, userClaims.UserID, res.Session.Status)
	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"session": res.Session,
	})
}

// GetTodayAttendance returns the driver's current session and, while checked in, the forgotten-checkout status
func GetTodayAttendance(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userClaims, _ := middleware.GetUserFromContext(r)
		now := env.now()

		s, err := env.sessionFor(userClaims.UserID, now, true)
		if err != nil {
			respondFailure(w, "get_attendance", err)
			return
		}

		resp := map[string]interface{}{
			"success": true,
			"session": s,
		}
		if s.Status == models.AttendanceCheckedIn {
			if res, err := env.Attendance.CheckForgotten(s, now); err == nil {
				resp["forgotten_checkout"] = res
			}
		}
		utils.RespondJSON(w, http.StatusOK, resp)
	}
}

func ClockIn(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logRequest(r, "Clock in")
		userClaims, _ := middleware.GetUserFromContext(r)

		var req ClockInRequest
		if !decodeBody(w, r, &req) {
			return
		}

		now := env.now()
		today := compliance.ShiftDate(now, env.Attendance.Policy().Shift)
		open, err := database.GetOpenAttendanceSession(env.DB, userClaims.UserID)
		if err != nil && !errors.Is(err, database.ErrNotFound) {
			respondFailure(w, "clock_in", err)
			return
		}
		if open != nil && open.Date != today {
			respondFailure(w, "clock_in", compliance.Precondition("clock_in",
				"session from %s is still open; clock out or regularize it first", open.Date))
			return
		}

		vehicleID := req.VehicleID
		if vehicleID == "" {
			user, err := database.GetUserByID(env.DB, userClaims.UserID)
			if err != nil {
				respondFailure(w, "clock_in", err)
				return
			}
			if user.AssignedVehicleID != nil {
				vehicleID = *user.AssignedVehicleID
			}
		}

		location, err := env.resolveLocation(userClaims.UserID, req.Position, now)
		if err != nil {
			respondFailure(w, "clock_in", err)
			return
		}

		env.mutateSession(w, r, "clock_in", false, func(s models.AttendanceSession, now time.Time) (attendance.Result, error) {
			return env.Attendance.ClockIn(s, attendance.ClockInInput{
				DriverID:          userClaims.UserID,
				VehicleID:         vehicleID,
				Location:          location,
				PreCheckCompleted: req.PreCheckCompleted,
				Mileage:           req.Mileage,
			}, now)
		})
	}
}

func ClockOut(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logRequest(r, "Clock out")
		userClaims, _ := middleware.GetUserFromContext(r)

		var req ClockOutRequest
		if !decodeBody(w, r, &req) {
			return
		}

		location, err := env.resolveLocation(userClaims.UserID, req.Position, env.now())
		if err != nil {
			respondFailure(w, "clock_out", err)
			return
		}

		env.mutateSession(w, r, "clock_out", true, func(s models.AttendanceSession, now time.Time) (attendance.Result, error) {
			return env.Attendance.ClockOut(s, attendance.ClockOutInput{
				DriverID:           userClaims.UserID,
				Location:           location,
				PostCheckCompleted: req.PostCheckCompleted,
				Mileage:            req.Mileage,
				FuelLevel:          req.FuelLevel,
				ExtendedShift:      req.ExtendedShift,
			}, now)
		})
	}
}

func StartLunch(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		env.mutateSession(w, r, "start_lunch", true, env.Attendance.StartLunch)
	}
}

func EndLunch(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		env.mutateSession(w, r, "end_lunch", true, env.Attendance.EndLunch)
	}
}

// GetForgottenCheckout reports how long the open session has run and which remedy applies
func GetForgottenCheckout(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userClaims, _ := middleware.GetUserFromContext(r)
		now := env.now()

		s, err := env.sessionFor(userClaims.UserID, now, true)
		if err != nil {
			respondFailure(w, "check_forgotten", err)
			return
		}

		res, err := env.Attendance.CheckForgotten(s, now)
		if err != nil {
			respondFailure(w, "check_forgotten", err)
			return
		}

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success":            true,
			"session_id":         s.ID,
			"date":               s.Date,
			"forgotten_checkout": res,
		})
	}
}

func RequestRegularization(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logRequest(r, "Request regularization")

		var req RegularizeRequest
		if !decodeBody(w, r, &req) {
			return
		}

		env.mutateSession(w, r, "request_regularization", true, func(s models.AttendanceSession, now time.Time) (attendance.Result, error) {
			return env.Attendance.RequestRegularization(s, attendance.RegularizationInput{
				RequestedCheckOutTime: req.RequestedCheckOutTime,
				Reason:                req.Reason,
			}, now)
		})
	}
}

func ForceCheckout(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logRequest(r, "Force checkout")
		userClaims, _ := middleware.GetUserFromContext(r)

		var req ForceCheckoutRequest
		if !decodeBody(w, r, &req) {
			return
		}

		location, err := env.resolveLocation(userClaims.UserID, req.Position, env.now())
		if err != nil {
			respondFailure(w, "force_checkout", err)
			return
		}

		env.mutateSession(w, r, "force_checkout", true, func(s models.AttendanceSession, now time.Time) (attendance.Result, error) {
			return env.Attendance.ForceCheckout(s, attendance.ForceCheckoutInput{
				Reason:   req.Reason,
				Location: location,
			}, now)
		})
	}
}

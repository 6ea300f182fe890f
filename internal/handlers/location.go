package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"fieldops-backend/internal/database"
	"fieldops-backend/internal/middleware"
	"fieldops-backend/internal/models"
	"fieldops-backend/internal/websocket"
	"fieldops-backend/pkg/utils"
)

// Position is the optional device fix a driver can attach to any action
type Position struct {
	Latitude  *float64 `json:"latitude,omitempty" validate:"required_with=Longitude,omitempty,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude,omitempty" validate:"required_with=Latitude,omitempty,gte=-180,lte=180"`
}

func (p Position) Point() *models.GeoPoint {
	if p.Latitude == nil || p.Longitude == nil {
		return nil
	}
	return &models.GeoPoint{Latitude: *p.Latitude, Longitude: *p.Longitude}
}

// pickLocation prefers the fix sent with the request, then a stored position
// no older than freshness, else nothing
func pickLocation(requested *models.GeoPoint, stored *models.DriverLocation, now time.Time, freshness time.Duration) *models.GeoPoint {
	if requested != nil {
		p := *requested
		return &p
	}
	if stored != nil && stored.IsFresh(now.Unix(), int64(freshness/time.Second)) {
		p := stored.Point()
		return &p
	}
	return nil
}

// resolveLocation looks up the stored position only when the request carried none
func (env *Env) resolveLocation(driverID string, p Position, now time.Time) (*models.GeoPoint, error) {
	if pt := p.Point(); pt != nil {
		return pt, nil
	}
	stored, err := database.GetDriverLocation(env.DB, driverID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return pickLocation(nil, stored, now, env.LocationFreshness), nil
}

// UpdateLocation stores the driver's latest fix (sent periodically while on shift)
func UpdateLocation(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userClaims, _ := middleware.GetUserFromContext(r)

		var req models.LocationUpdateRequest
		if !decodeBody(w, r, &req) {
			return
		}

		now := env.now()
		loc := &models.DriverLocation{
			DriverID:  userClaims.UserID,
			Latitude:  req.Latitude,
			Longitude: req.Longitude,
			Heading:   req.Heading,
			Speed:     req.Speed,
			Accuracy:  req.Accuracy,
			Timestamp: req.Timestamp,
		}
		if loc.Timestamp == 0 {
			loc.Timestamp = now.Unix()
		}

		if err := database.UpsertDriverLocation(env.DB, loc, now.Unix()); err != nil {
			respondFailure(w, "update_location", err)
			return
		}

		env.Hub.BroadcastToRole(models.RoleSupervisor, websocket.Outgoing{Type: websocket.MessageLocationUpdate, Data: loc})

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success":  true,
			"location": loc,
		})
	}
}

// GetDriverLocation returns a driver's last known position (supervisor view)
func GetDriverLocation(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		driverID := chi.URLParam(r, "id")

		loc, err := database.GetDriverLocation(env.DB, driverID)
		if err != nil {
			respondFailure(w, "get_driver_location", err)
			return
		}

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success":  true,
			"location": loc,
			"fresh":    loc.IsFresh(env.now().Unix(), int64(env.LocationFreshness/time.Second)),
		})
	}
}

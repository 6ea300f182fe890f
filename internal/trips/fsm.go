package trips

import "fieldops-backend/internal/models"

// Trips only move forward, one step at a time
var transitions = map[models.TripStatus]map[models.TripStatus]struct{}{
	models.TripPending:        {models.TripEnRoutePickup: {}},
	models.TripEnRoutePickup:  {models.TripPickupComplete: {}},
	models.TripPickupComplete: {models.TripEnRouteDropoff: {}},
	models.TripEnRouteDropoff: {models.TripCompleted: {}},
	models.TripCompleted:      {},
}

// CanTransition returns whether a trip can move from the current status to the target status.
func CanTransition(from, to models.TripStatus) bool {
	allowed, ok := transitions[from]
	if !ok {
		return false
	}
	_, ok = allowed[to]
	return ok
}

// Next returns the only status reachable from s, or false when s is terminal or unknown.
func Next(s models.TripStatus) (models.TripStatus, bool) {
	for to := range transitions[s] {
		return to, true
	}
	return "", false
}

// IsKnownStatus reports whether s is one of the trip statuses
func IsKnownStatus(s models.TripStatus) bool {
	_, ok := transitions[s]
	return ok
}

package models

import "time"

type VehicleRequestType string

const (
	RequestReplacement VehicleRequestType = "replacement"
	RequestAdditional  VehicleRequestType = "additional"
	RequestEmergency   VehicleRequestType = "emergency"
)

type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// Rank orders urgencies; unknown values rank 0
func (u Urgency) Rank() int {
	switch u {
	case UrgencyLow:
		return 1
	case UrgencyMedium:
		return 2
	case UrgencyHigh:
		return 3
	case UrgencyCritical:
		return 4
	}
	return 0
}

type VehicleRequestStatus string

const (
	VehicleRequestPending    VehicleRequestStatus = "pending"
	VehicleRequestApproved   VehicleRequestStatus = "approved"
	VehicleRequestRejected   VehicleRequestStatus = "rejected"
	VehicleRequestFulfilled  VehicleRequestStatus = "fulfilled"
	VehicleRequestSuperseded VehicleRequestStatus = "superseded" // Replaced by a newer request
)

// VehicleRequest asks dispatch for a replacement, additional or emergency vehicle
type VehicleRequest struct {
	ID               string               `json:"id"`
	TaskID           string               `json:"task_id"`
	RequestType      VehicleRequestType   `json:"request_type"`
	Urgency          Urgency              `json:"urgency"`
	Reason           string               `json:"reason"`
	Status           VehicleRequestStatus `json:"status"`
	AlternateVehicle *string              `json:"alternate_vehicle,omitempty"`
	Automatic        bool                 `json:"automatic"` // Raised by breakdown escalation
	RequestedBy      string               `json:"requested_by,omitempty"`
	BreakdownID      *string              `json:"breakdown_id,omitempty"`
	SupersededBy     *string              `json:"superseded_by,omitempty"`
	ResolvedBy       *string              `json:"resolved_by,omitempty"`
	CreatedAt        int64                `json:"created_at"`
	ResolvedAt       *int64               `json:"resolved_at,omitempty"`
}

// IsOpen returns true while the request still needs an outcome (pending or approved)
func (r *VehicleRequest) IsOpen() bool {
	return r.Status == VehicleRequestPending || r.Status == VehicleRequestApproved
}

func (r VehicleRequest) clone() VehicleRequest {
	c := r
	c.AlternateVehicle = cloneString(r.AlternateVehicle)
	c.BreakdownID = cloneString(r.BreakdownID)
	c.SupersededBy = cloneString(r.SupersededBy)
	c.ResolvedBy = cloneString(r.ResolvedBy)
	if r.ResolvedAt != nil {
		at := *r.ResolvedAt
		c.ResolvedAt = &at
	}
	return c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// VehicleRequestResponse includes ISO formatted timestamps for client
type VehicleRequestResponse struct {
	VehicleRequest
	CreatedAtIso  string  `json:"created_at_iso"`
	ResolvedAtIso *string `json:"resolved_at_iso,omitempty"`
}

// ToResponse converts VehicleRequest to VehicleRequestResponse
func (r *VehicleRequest) ToResponse() VehicleRequestResponse {
	resp := VehicleRequestResponse{
		VehicleRequest: *r,
		CreatedAtIso:   time.Unix(r.CreatedAt, 0).Format(time.RFC3339),
	}
	if r.ResolvedAt != nil {
		iso := time.Unix(*r.ResolvedAt, 0).Format(time.RFC3339)
		resp.ResolvedAtIso = &iso
	}
	return resp
}

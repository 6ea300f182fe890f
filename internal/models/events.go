package models

import (
	"encoding/json"
	"fmt"
)

type EventType string

const (
	EventStatusUpdated          EventType = "status_updated"
	EventDelayReported          EventType = "delay_reported"
	EventBreakdownReported      EventType = "breakdown_reported"
	EventVehicleRequested       EventType = "vehicle_requested"
	EventVehicleRequestResolved EventType = "vehicle_request_resolved"
)

// Event subjects for StatusUpdated
const (
	SubjectTask       = "task"
	SubjectAttendance = "attendance"
)

// EventMeta identifies an event and what it is about
type EventMeta struct {
	ID         string `json:"id"`
	TaskID     string `json:"task_id,omitempty"`
	DriverID   string `json:"driver_id,omitempty"`
	OccurredAt int64  `json:"occurred_at"`
}

// Event is one of the domain events emitted by the attendance and trip machines.
// The set is closed: only the types in this file implement it.
type Event interface {
	Type() EventType
	Meta() EventMeta
	sealed()
}

type StatusUpdated struct {
	EventMeta  `json:"-"`
	Subject    string `json:"subject"` // "task" or "attendance"
	From       string `json:"from"`
	To         string `json:"to"`
	Overridden bool   `json:"overridden,omitempty"`
}

type DelayReported struct {
	EventMeta  `json:"-"`
	Report     DelayReport               `json:"report"`
	Suggestion *VehicleRequestSuggestion `json:"suggestion,omitempty"`
}

type BreakdownReported struct {
	EventMeta `json:"-"`
	Report    BreakdownReport `json:"report"`
}

type VehicleRequested struct {
	EventMeta  `json:"-"`
	Request    VehicleRequest  `json:"request"`
	Superseded *VehicleRequest `json:"superseded,omitempty"`
}

type VehicleRequestResolved struct {
	EventMeta `json:"-"`
	Request   VehicleRequest `json:"request"`
}

// VehicleRequestSuggestion is surfaced to the driver on long delays; it is never created automatically
type VehicleRequestSuggestion struct {
	RequestType VehicleRequestType `json:"request_type"`
	Urgency     Urgency            `json:"urgency"`
	Reason      string             `json:"reason"`
}

func (e StatusUpdated) Type() EventType          { return EventStatusUpdated }
func (e DelayReported) Type() EventType          { return EventDelayReported }
func (e BreakdownReported) Type() EventType      { return EventBreakdownReported }
func (e VehicleRequested) Type() EventType       { return EventVehicleRequested }
func (e VehicleRequestResolved) Type() EventType { return EventVehicleRequestResolved }

func (e StatusUpdated) Meta() EventMeta          { return e.EventMeta }
func (e DelayReported) Meta() EventMeta          { return e.EventMeta }
func (e BreakdownReported) Meta() EventMeta      { return e.EventMeta }
func (e VehicleRequested) Meta() EventMeta       { return e.EventMeta }
func (e VehicleRequestResolved) Meta() EventMeta { return e.EventMeta }

func (StatusUpdated) sealed()          {}
func (DelayReported) sealed()          {}
func (BreakdownReported) sealed()      {}
func (VehicleRequested) sealed()       {}
func (VehicleRequestResolved) sealed() {}

// EventEnvelope is the serialized form of an event, stored in domain_events and pushed over websocket
type EventEnvelope struct {
	ID         string          `json:"id" db:"id"`
	Type       EventType       `json:"type" db:"type"`
	TaskID     *string         `json:"task_id,omitempty" db:"task_id"`
	DriverID   *string         `json:"driver_id,omitempty" db:"driver_id"`
	OccurredAt int64           `json:"occurred_at" db:"occurred_at"`
	Data       json.RawMessage `json:"data" db:"data"`
}

// NewEnvelope wraps an event for storage or broadcast
func NewEnvelope(e Event) (EventEnvelope, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return EventEnvelope{}, fmt.Errorf("failed to marshal %s event: %w", e.Type(), err)
	}

	meta := e.Meta()
	env := EventEnvelope{
		ID:         meta.ID,
		Type:       e.Type(),
		OccurredAt: meta.OccurredAt,
		Data:       data,
	}
	if meta.TaskID != "" {
		id := meta.TaskID
		env.TaskID = &id
	}
	if meta.DriverID != "" {
		id := meta.DriverID
		env.DriverID = &id
	}
	return env, nil
}

// DecodeEvent rebuilds the typed event from an envelope
func DecodeEvent(env EventEnvelope) (Event, error) {
	meta := EventMeta{ID: env.ID, OccurredAt: env.OccurredAt}
	if env.TaskID != nil {
		meta.TaskID = *env.TaskID
	}
	if env.DriverID != nil {
		meta.DriverID = *env.DriverID
	}

	var (
		e   Event
		err error
	)
	switch env.Type {
	case EventStatusUpdated:
		var v StatusUpdated
		err = json.Unmarshal(env.Data, &v)
		v.EventMeta = meta
		e = v
	case EventDelayReported:
		var v DelayReported
		err = json.Unmarshal(env.Data, &v)
		v.EventMeta = meta
		e = v
	case EventBreakdownReported:
		var v BreakdownReported
		err = json.Unmarshal(env.Data, &v)
		v.EventMeta = meta
		e = v
	case EventVehicleRequested:
		var v VehicleRequested
		err = json.Unmarshal(env.Data, &v)
		v.EventMeta = meta
		e = v
	case EventVehicleRequestResolved:
		var v VehicleRequestResolved
		err = json.Unmarshal(env.Data, &v)
		v.EventMeta = meta
		e = v
	default:
		return nil, fmt.Errorf("unknown event type %q", env.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s event: %w", env.Type, err)
	}
	return e, nil
}

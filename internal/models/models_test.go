package models

import (
	"encoding/json"
	"reflect"
	"testing"
)

func ptrInt64(v int64) *int64 { return &v }
func ptrFloat(v float64) *float64 { return &v }
func ptrString(v string) *string { return &v }

func sampleTask() TransportTask {
	return TransportTask{
		ID:        "task-1",
		DriverID:  "driver-1",
		VehicleID: "bus-7",
		Status:    TripEnRouteDropoff,
		PickupLocations: []PickupLocation{{
			Name:                "Camp A",
			Point:               GeoPoint{Latitude: 25.2048, Longitude: 55.2708},
			EstimatedPickupTime: 1760500800,
			TimeWindow:          &TimeWindow{WindowMinutes: 15},
			Geofence:            &Geofence{Center: GeoPoint{Latitude: 25.2048, Longitude: 55.2708}, RadiusMeters: 100, AllowedVarianceMeters: 20},
		}},
		DropoffLocation:  DropoffLocation{Name: "Site 4", Point: GeoPoint{Latitude: 25.1, Longitude: 55.3}},
		CheckedInWorkers: 12,
		TotalWorkers:     14,
		VehicleRequest: &VehicleRequest{
			ID:          "vr-2",
			TaskID:      "task-1",
			RequestType: RequestEmergency,
			Urgency:     UrgencyCritical,
			Reason:      "critical breakdown: engine",
			Status:      VehicleRequestPending,
			Automatic:   true,
			BreakdownID: ptrString("bd-1"),
			CreatedAt:   1760502000,
		},
		VehicleRequestHistory: []VehicleRequest{{
			ID:           "vr-1",
			TaskID:       "task-1",
			RequestType:  RequestAdditional,
			Urgency:      UrgencyLow,
			Reason:       "more seats",
			Status:       VehicleRequestSuperseded,
			SupersededBy: ptrString("vr-2"),
			CreatedAt:    1760501000,
			ResolvedAt:   ptrInt64(1760502000),
		}},
		Timeline: []StatusChange{
			{From: TripPending, To: TripEnRoutePickup, At: 1760500000, Location: &GeoPoint{Latitude: 25, Longitude: 55}},
		},
		DelayReports: []DelayReport{{
			ID: "d-1", TaskID: "task-1", Reason: "traffic", EstimatedMinutes: 10,
			Decision:  GracePeriodDecision{GracePeriodMinutes: 10, AutoApproved: true},
			Timestamp: 1760500500,
		}},
		BreakdownReports: []BreakdownReport{{
			ID: "bd-1", TaskID: "task-1", Type: "engine", Severity: SeverityCritical,
			AssistanceRequired: true, Timestamp: 1760502000,
		}},
		Exceptions: []TripException{{
			ID:     "ex-1",
			Status: TripPickupComplete,
			Guards: []GuardResult{{
				Guard:    GuardGeofence,
				Location: "Camp A",
				Result:   ValidationResult{IsValid: false, CanProceed: true, Message: "outside", Distance: ptrFloat(140.5)},
			}},
			Reason:         "gate moved",
			OverriddenBy:   "driver-1",
			At:             1760501500,
			RequiresReview: true,
		}},
		Version:   5,
		CreatedAt: 1760490000,
		UpdatedAt: 1760502000,
	}
}

func TestTransportTaskJSONRoundTrip(t *testing.T) {
	task := sampleTask()

	data, err := json.Marshal(task)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded TransportTask
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(task, decoded) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", decoded, task)
	}
}

func TestAttendanceSessionJSONRoundTrip(t *testing.T) {
	session := AttendanceSession{
		ID:                 "s-1",
		DriverID:           "driver-1",
		Date:               "2026-10-15",
		Status:             AttendanceCheckedOut,
		CheckInTime:        ptrInt64(1760500000),
		CheckOutTime:       ptrInt64(1760536000),
		PreCheckCompleted:  true,
		PostCheckCompleted: true,
		AssignedVehicleID:  "bus-7",
		StartMileage:       ptrFloat(1200.5),
		EndMileage:         ptrFloat(1310.25),
		FuelLevel:          ptrFloat(0.4),
		TotalHours:         10,
		TotalDistance:      109.75,
		CheckInLocation:    &GeoPoint{Latitude: 25.2, Longitude: 55.27},
		CheckOutLocation:   &GeoPoint{Latitude: 25.21, Longitude: 55.28},
		LunchStartTime:     ptrInt64(1760518000),
		LunchEndTime:       ptrInt64(1760521600),
		CheckInVerdict:     &ValidationResult{IsValid: true, CanProceed: true, Message: "on time", Classification: "on_time"},
		Irregular:          true,
		IrregularReason:    IrregularRegularization,
		Regularization: &RegularizationRequest{
			RequestedCheckOutTime: 1760536000,
			Reason:                "forgot to clock out",
			Status:                "pending",
			RequestedAt:           1760560000,
		},
		CreatedAt: 1760500000,
		UpdatedAt: 1760560000,
	}

	data, err := json.Marshal(session)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded AttendanceSession
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(session, decoded) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", decoded, session)
	}
}

func TestCloneDoesNotShareState(t *testing.T) {
	task := sampleTask()
	c := task.Clone()

	c.PickupLocations[0].Geofence.RadiusMeters = 1
	c.VehicleRequest.Status = VehicleRequestRejected
	*c.VehicleRequestHistory[0].SupersededBy = "other"
	c.Timeline[0].To = TripCompleted

	if task.PickupLocations[0].Geofence.RadiusMeters != 100 {
		t.Fatalf("geofence shared with clone")
	}
	if task.VehicleRequest.Status != VehicleRequestPending {
		t.Fatalf("vehicle request shared with clone")
	}
	if *task.VehicleRequestHistory[0].SupersededBy != "vr-2" {
		t.Fatalf("history shared with clone")
	}
	if task.Timeline[0].To != TripEnRoutePickup {
		t.Fatalf("timeline shared with clone")
	}
}

func TestEventEnvelopeRoundTrip(t *testing.T) {
	events := []Event{
		StatusUpdated{
			EventMeta: EventMeta{ID: "e-1", TaskID: "task-1", DriverID: "driver-1", OccurredAt: 10},
			Subject:   SubjectTask, From: string(TripPending), To: string(TripEnRoutePickup),
		},
		DelayReported{
			EventMeta:  EventMeta{ID: "e-2", TaskID: "task-1", OccurredAt: 11},
			Report:     DelayReport{ID: "d-1", TaskID: "task-1", Reason: "mechanical", EstimatedMinutes: 45},
			Suggestion: &VehicleRequestSuggestion{RequestType: RequestReplacement, Urgency: UrgencyMedium, Reason: "delay"},
		},
		BreakdownReported{
			EventMeta: EventMeta{ID: "e-3", TaskID: "task-1", OccurredAt: 12},
			Report:    BreakdownReport{ID: "bd-1", TaskID: "task-1", Type: "tire", Severity: SeverityMajor},
		},
		VehicleRequested{
			EventMeta: EventMeta{ID: "e-4", TaskID: "task-1", OccurredAt: 13},
			Request:   VehicleRequest{ID: "vr-1", TaskID: "task-1", RequestType: RequestReplacement, Urgency: UrgencyHigh, Status: VehicleRequestPending, Automatic: true},
		},
		VehicleRequestResolved{
			EventMeta: EventMeta{ID: "e-5", TaskID: "task-1", OccurredAt: 14},
			Request:   VehicleRequest{ID: "vr-1", TaskID: "task-1", Status: VehicleRequestApproved, ResolvedAt: ptrInt64(14)},
		},
	}

	for _, e := range events {
		env, err := NewEnvelope(e)
		if err != nil {
			t.Fatalf("%s: envelope: %v", e.Type(), err)
		}
		if env.ID != e.Meta().ID || env.Type != e.Type() {
			t.Fatalf("%s: envelope header mismatch: %+v", e.Type(), env)
		}

		raw, err := json.Marshal(env)
		if err != nil {
			t.Fatalf("%s: marshal envelope: %v", e.Type(), err)
		}
		var decodedEnv EventEnvelope
		if err := json.Unmarshal(raw, &decodedEnv); err != nil {
			t.Fatalf("%s: unmarshal envelope: %v", e.Type(), err)
		}
		decoded, err := DecodeEvent(decodedEnv)
		if err != nil {
			t.Fatalf("%s: decode: %v", e.Type(), err)
		}
		if !reflect.DeepEqual(e, decoded) {
			t.Fatalf("%s: round trip mismatch:\n got %+v\nwant %+v", e.Type(), decoded, e)
		}
	}
}

func TestDecodeEventRejectsUnknownType(t *testing.T) {
	_, err := DecodeEvent(EventEnvelope{ID: "x", Type: "shift_started", Data: json.RawMessage(`{}`)})
	if err == nil {
		t.Fatalf("expected error for unknown event type")
	}
}

func TestUrgencyRank(t *testing.T) {
	order := []Urgency{UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyCritical}
	for i := 1; i < len(order); i++ {
		if order[i].Rank() <= order[i-1].Rank() {
			t.Fatalf("%s should outrank %s", order[i], order[i-1])
		}
	}
	if Urgency("unknown").Rank() != 0 {
		t.Fatalf("unknown urgency should rank 0")
	}
}

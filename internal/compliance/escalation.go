package compliance

import (
	"fmt"

	"fieldops-backend/internal/models"
)

// EscalationPolicy decides when delays and breakdowns turn into vehicle requests
type EscalationPolicy struct {
	ReplacementSuggestionMinutes int `yaml:"replacement_suggestion_minutes"`
}

func DefaultEscalationPolicy() EscalationPolicy {
	return EscalationPolicy{ReplacementSuggestionMinutes: 30}
}

// DelaySuggestion returns a replacement suggestion for long delays. The request is not created.
func (p EscalationPolicy) DelaySuggestion(estimatedMinutes int) *models.VehicleRequestSuggestion {
	if estimatedMinutes < p.ReplacementSuggestionMinutes {
		return nil
	}
	return &models.VehicleRequestSuggestion{
		RequestType: models.RequestReplacement,
		Urgency:     models.UrgencyMedium,
		Reason:      fmt.Sprintf("Estimated delay of %d minutes", estimatedMinutes),
	}
}

// BreakdownRequest returns the automatic request raised for a breakdown severity, if any
func (p EscalationPolicy) BreakdownRequest(severity models.BreakdownSeverity) (models.VehicleRequestType, models.Urgency, bool) {
	switch severity {
	case models.SeverityCritical:
		return models.RequestEmergency, models.UrgencyCritical, true
	case models.SeverityMajor:
		return models.RequestReplacement, models.UrgencyHigh, true
	}
	return "", "", false
}

// CheckOpenRequest applies the one-open-request rule. It returns true when the open request
// must be superseded, and a precondition error when the incoming request is refused.
func (p EscalationPolicy) CheckOpenRequest(op string, open *models.VehicleRequest, automatic bool, urgency models.Urgency) (bool, error) {
	if open == nil || !open.IsOpen() {
		return false, nil
	}
	if automatic {
		return true, nil
	}
	if urgency.Rank() > open.Urgency.Rank() {
		return true, nil
	}
	return false, Precondition(op, "an open %s request with %s urgency already exists", open.RequestType, open.Urgency)
}

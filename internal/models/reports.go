package models

// BreakdownSeverity grades how badly a vehicle is affected
type BreakdownSeverity string

const (
	SeverityMinor    BreakdownSeverity = "minor"
	SeverityModerate BreakdownSeverity = "moderate"
	SeverityMajor    BreakdownSeverity = "major"
	SeverityCritical BreakdownSeverity = "critical"
)

// Valid reports whether s is one of the known severities
func (s BreakdownSeverity) Valid() bool {
	switch s {
	case SeverityMinor, SeverityModerate, SeverityMajor, SeverityCritical:
		return true
	}
	return false
}

// DelayReport is an immutable record of a reported delay
type DelayReport struct {
	ID               string              `json:"id"`
	TaskID           string              `json:"task_id"`
	Reason           string              `json:"reason"`
	EstimatedMinutes int                 `json:"estimated_delay"`
	Location         *GeoPoint           `json:"location,omitempty"`
	Description      string              `json:"description,omitempty"`
	Decision         GracePeriodDecision `json:"decision"`
	Timestamp        int64               `json:"timestamp"`
}

// BreakdownReport is an immutable record of a vehicle breakdown
type BreakdownReport struct {
	ID                 string            `json:"id"`
	TaskID             string            `json:"task_id"`
	Type               string            `json:"type"` // e.g. "engine", "tire", "accident"
	Severity           BreakdownSeverity `json:"severity"`
	Location           *GeoPoint         `json:"location,omitempty"`
	Description        string            `json:"description,omitempty"`
	AssistanceRequired bool              `json:"assistance_required"`
	Timestamp          int64             `json:"timestamp"`
}

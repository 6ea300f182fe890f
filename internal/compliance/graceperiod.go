package compliance

import (
	"strings"

	"fieldops-backend/internal/models"
)

// GracePolicy controls how reported delays turn into grace periods
type GracePolicy struct {
	CapMinutes                   int      `yaml:"cap_minutes"`
	AutoApprovalThresholdMinutes int      `yaml:"auto_approval_threshold_minutes"`
	LowRiskReasons               []string `yaml:"low_risk_reasons"`
}

func DefaultGracePolicy() GracePolicy {
	return GracePolicy{
		CapMinutes:                   60,
		AutoApprovalThresholdMinutes: 15,
		LowRiskReasons:               []string{"traffic", "weather", "fuel_stop"},
	}
}

// NormalizeReason lowercases a delay reason and joins words with underscores ("Fuel Stop" -> "fuel_stop")
func NormalizeReason(reason string) string {
	r := strings.ToLower(strings.TrimSpace(reason))
	r = strings.NewReplacer("-", " ", "_", " ").Replace(r)
	return strings.Join(strings.Fields(r), "_")
}

func (p GracePolicy) isLowRisk(reason string) bool {
	normalized := NormalizeReason(reason)
	for _, r := range p.LowRiskReasons {
		if NormalizeReason(r) == normalized {
			return true
		}
	}
	return false
}

// Calculate derives the grace decision for a delay. Short low-risk delays are auto-approved.
func (p GracePolicy) Calculate(delayMinutes int, reason string) models.GracePeriodDecision {
	if delayMinutes < 0 {
		delayMinutes = 0
	}
	grace := delayMinutes
	if grace > p.CapMinutes {
		grace = p.CapMinutes
	}

	auto := delayMinutes <= p.AutoApprovalThresholdMinutes && p.isLowRisk(reason)
	return models.GracePeriodDecision{
		GracePeriodMinutes: grace,
		AutoApproved:       auto,
		RequiresApproval:   !auto,
	}
}

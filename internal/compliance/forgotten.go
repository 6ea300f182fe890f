package compliance

import (
	"fmt"
	"time"
)

// ForgottenCheckoutPolicy holds the hour thresholds for long-open sessions
type ForgottenCheckoutPolicy struct {
	RegularizationHours float64 `yaml:"regularization_hours"`
	ForgottenHours      float64 `yaml:"forgotten_hours"`
}

func DefaultForgottenCheckoutPolicy() ForgottenCheckoutPolicy {
	return ForgottenCheckoutPolicy{
		RegularizationHours: 10,
		ForgottenHours:      12,
	}
}

type ForgottenCheckoutResult struct {
	IsForgotten            bool    `json:"is_forgotten"`
	HoursCheckedIn         float64 `json:"hours_checked_in"`
	RequiresRegularization bool    `json:"requires_regularization"`
	Message                string  `json:"message"`
}

// CheckForgottenCheckout flags a session checked in since checkInTime (Unix seconds).
// It only reports; closing the session is up to the caller.
func CheckForgottenCheckout(checkInTime int64, now time.Time, p ForgottenCheckoutPolicy) ForgottenCheckoutResult {
	seconds := now.Unix() - checkInTime
	if seconds < 0 {
		seconds = 0
	}
	hours := float64(seconds) / 3600

	res := ForgottenCheckoutResult{
		HoursCheckedIn:         hours,
		RequiresRegularization: hours > p.RegularizationHours,
		IsForgotten:            hours > p.ForgottenHours,
	}
	switch {
	case res.IsForgotten:
		res.Message = fmt.Sprintf("Checked in for %.1f hours, checkout was probably forgotten", hours)
	case res.RequiresRegularization:
		res.Message = fmt.Sprintf("Checked in for %.1f hours, checkout needs regularization", hours)
	default:
		res.Message = fmt.Sprintf("Checked in for %.1f hours", hours)
	}
	return res
}

package compliance

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v2"
)

// Policy bundles every tunable of the engine. It is loaded once and never mutated.
type Policy struct {
	Shift             ShiftConfig             `yaml:"shift"`
	Grace             GracePolicy             `yaml:"grace"`
	ForgottenCheckout ForgottenCheckoutPolicy `yaml:"forgotten_checkout"`
	Escalation        EscalationPolicy        `yaml:"escalation"`
}

func DefaultPolicy() Policy {
	return Policy{
		Shift:             DefaultShiftConfig(),
		Grace:             DefaultGracePolicy(),
		ForgottenCheckout: DefaultForgottenCheckoutPolicy(),
		Escalation:        DefaultEscalationPolicy(),
	}
}

// ParsePolicy reads a YAML policy document on top of the defaults
func ParsePolicy(data []byte) (Policy, error) {
	p := DefaultPolicy()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("failed to parse policy: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	shift, err := p.Shift.WithTimezone(p.Shift.Timezone)
	if err != nil {
		return Policy{}, err
	}
	p.Shift = shift
	return p, nil
}

// Validate rejects policies the engine cannot apply consistently
func (p Policy) Validate() error {
	var errs []error

	s := p.Shift
	if _, err := s.WithTimezone(s.Timezone); err != nil {
		errs = append(errs, err)
	}
	for name, v := range map[string]ClockTime{
		"morning_login_cutoff":    s.MorningLoginCutoff,
		"lunch_start":             s.LunchStart,
		"lunch_end":               s.LunchEnd,
		"evening_logout_normal":   s.EveningLogoutNormal,
		"evening_logout_extended": s.EveningLogoutExtended,
	} {
		if v < 0 || v >= 24*60 {
			errs = append(errs, fmt.Errorf("shift.%s out of range", name))
		}
	}
	if s.LunchStart >= s.LunchEnd {
		errs = append(errs, errors.New("shift.lunch_start must be before shift.lunch_end"))
	}
	if s.EveningLogoutExtended < s.EveningLogoutNormal {
		errs = append(errs, errors.New("shift.evening_logout_extended must not be before evening_logout_normal"))
	}
	if s.MorningLoginGraceMinutes < 0 || s.LunchGraceMinutes < 0 || s.EveningGraceMinutes < 0 {
		errs = append(errs, errors.New("shift grace minutes must not be negative"))
	}

	if p.Grace.CapMinutes < 0 || p.Grace.AutoApprovalThresholdMinutes < 0 {
		errs = append(errs, errors.New("grace minutes must not be negative"))
	}

	f := p.ForgottenCheckout
	if f.RegularizationHours <= 0 {
		errs = append(errs, errors.New("forgotten_checkout.regularization_hours must be positive"))
	}
	if f.ForgottenHours < f.RegularizationHours {
		errs = append(errs, errors.New("forgotten_checkout.forgotten_hours must be at least regularization_hours"))
	}

	if p.Escalation.ReplacementSuggestionMinutes <= 0 {
		errs = append(errs, errors.New("escalation.replacement_suggestion_minutes must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid policy: %w", errors.Join(errs...))
	}
	return nil
}

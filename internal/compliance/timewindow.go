package compliance

import (
	"fmt"
	"strings"
	"time"

	"fieldops-backend/internal/models"
)

// Classifications used in time-window verdicts
const (
	ClassEarly  = "early"
	ClassOnTime = "on_time"
	ClassLate   = "late"
)

// Lunch actions
const (
	LunchStart = "start"
	LunchEnd   = "end"
)

// ClockTime is a wall-clock time expressed as minutes since midnight
type ClockTime int

// ParseClockTime parses "HH:MM" (24h)
func ParseClockTime(s string) (ClockTime, error) {
	var h, m int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid clock time %q: out of range", s)
	}
	return ClockTime(h*60 + m), nil
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// UnmarshalYAML accepts "HH:MM" strings in policy files
func (c *ClockTime) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseClockTime(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// MarshalYAML writes the "HH:MM" form back out
func (c ClockTime) MarshalYAML() (interface{}, error) {
	return c.String(), nil
}

// ShiftConfig holds the daily shift boundaries, interpreted in Timezone
type ShiftConfig struct {
	Timezone                 string    `yaml:"timezone"`
	MorningLoginCutoff       ClockTime `yaml:"morning_login_cutoff"`
	MorningLoginGraceMinutes int       `yaml:"morning_login_grace_minutes"`
	LunchStart               ClockTime `yaml:"lunch_start"`
	LunchEnd                 ClockTime `yaml:"lunch_end"`
	LunchGraceMinutes        int       `yaml:"lunch_grace_minutes"`
	EveningLogoutNormal      ClockTime `yaml:"evening_logout_normal"`
	EveningLogoutExtended    ClockTime `yaml:"evening_logout_extended"`
	EveningGraceMinutes      int       `yaml:"evening_grace_minutes"`

	loc *time.Location // resolved from Timezone by WithTimezone
}

// DefaultShiftConfig is a placeholder day shift; deployments override it through the policy file
func DefaultShiftConfig() ShiftConfig {
	return ShiftConfig{
		Timezone:                 "UTC",
		MorningLoginCutoff:       7 * 60,
		MorningLoginGraceMinutes: 15,
		LunchStart:               12 * 60,
		LunchEnd:                 13 * 60,
		LunchGraceMinutes:        15,
		EveningLogoutNormal:      17 * 60,
		EveningLogoutExtended:    19 * 60,
		EveningGraceMinutes:      15,
	}
}

// WithTimezone returns a copy of c bound to the named IANA zone ("" means UTC)
func (c ShiftConfig) WithTimezone(name string) (ShiftConfig, error) {
	loc := time.UTC
	if name != "" {
		var err error
		if loc, err = time.LoadLocation(name); err != nil {
			return c, fmt.Errorf("shift.timezone: %w", err)
		}
	}
	c.Timezone = name
	c.loc = loc
	return c, nil
}

// Location returns the zone resolved by WithTimezone, UTC when none was resolved
func (c ShiftConfig) Location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}

// ShiftDate returns the calendar day (YYYY-MM-DD) of now in the shift timezone
func ShiftDate(now time.Time, cfg ShiftConfig) string {
	return now.In(cfg.Location()).Format("2006-01-02")
}

func minuteOfDay(now time.Time, cfg ShiftConfig) int {
	local := now.In(cfg.Location())
	return local.Hour()*60 + local.Minute()
}

// ValidateMorningLogin gates clock-in: on time up to the cutoff, then a grace window, then closed
func ValidateMorningLogin(now time.Time, cfg ShiftConfig) models.ValidationResult {
	m := minuteOfDay(now, cfg)
	cutoff := int(cfg.MorningLoginCutoff)

	switch {
	case m <= cutoff:
		return models.ValidationResult{
			IsValid:        true,
			CanProceed:     true,
			Message:        "Login on time",
			Classification: ClassOnTime,
		}
	case m <= cutoff+cfg.MorningLoginGraceMinutes:
		return models.ValidationResult{
			IsValid:        true,
			CanProceed:     true,
			IsGracePeriod:  true,
			Message:        fmt.Sprintf("Login within grace period (%d min after %s)", m-cutoff, cfg.MorningLoginCutoff),
			Classification: ClassLate,
		}
	default:
		closed := cfg.MorningLoginCutoff + ClockTime(cfg.MorningLoginGraceMinutes)
		return models.ValidationResult{
			IsValid:        false,
			CanProceed:     false,
			Message:        fmt.Sprintf("Morning login window closed at %s", closed),
			Classification: ClassLate,
		}
	}
}

// ValidateLunchTiming checks a lunch start or end. Only an early start blocks.
func ValidateLunchTiming(now time.Time, action string, cfg ShiftConfig) models.ValidationResult {
	m := minuteOfDay(now, cfg)

	if action == LunchStart {
		open := int(cfg.LunchStart)
		switch {
		case m < open:
			return models.ValidationResult{
				IsValid:        false,
				CanProceed:     false,
				Message:        fmt.Sprintf("Lunch break opens at %s", cfg.LunchStart),
				Classification: ClassEarly,
			}
		case m <= open+cfg.LunchGraceMinutes:
			return models.ValidationResult{
				IsValid:        true,
				CanProceed:     true,
				Message:        "Lunch started on time",
				Classification: ClassOnTime,
			}
		default:
			return models.ValidationResult{
				IsValid:        true,
				CanProceed:     true,
				IsGracePeriod:  true,
				Message:        fmt.Sprintf("Lunch started %d min after %s", m-open, cfg.LunchStart),
				Classification: ClassLate,
			}
		}
	}

	end := int(cfg.LunchEnd)
	switch {
	case m < end:
		return models.ValidationResult{
			IsValid:        true,
			CanProceed:     true,
			Message:        fmt.Sprintf("Lunch ended %d min before %s", end-m, cfg.LunchEnd),
			Classification: ClassEarly,
		}
	case m <= end+cfg.LunchGraceMinutes:
		return models.ValidationResult{
			IsValid:        true,
			CanProceed:     true,
			Message:        "Lunch ended on time",
			Classification: ClassOnTime,
		}
	default:
		return models.ValidationResult{
			IsValid:        true,
			CanProceed:     true,
			IsGracePeriod:  true,
			Message:        fmt.Sprintf("Lunch ended %d min after %s", m-end, cfg.LunchEnd),
			Classification: ClassLate,
		}
	}
}

// ValidateEveningLogout classifies a clock-out against the normal or extended target. It never blocks.
func ValidateEveningLogout(now time.Time, isExtendedShift bool, cfg ShiftConfig) models.ValidationResult {
	m := minuteOfDay(now, cfg)
	target := cfg.EveningLogoutNormal
	if isExtendedShift {
		target = cfg.EveningLogoutExtended
	}
	t := int(target)

	switch {
	case m < t:
		return models.ValidationResult{
			IsValid:        true,
			CanProceed:     true,
			Message:        fmt.Sprintf("Early logout (%d min before %s)", t-m, target),
			Classification: ClassEarly,
		}
	case m <= t+cfg.EveningGraceMinutes:
		return models.ValidationResult{
			IsValid:        true,
			CanProceed:     true,
			Message:        "Logout on time",
			Classification: ClassOnTime,
		}
	default:
		return models.ValidationResult{
			IsValid:        true,
			CanProceed:     true,
			IsGracePeriod:  true,
			Message:        fmt.Sprintf("Late logout (%d min after %s)", m-t, target),
			Classification: ClassLate,
		}
	}
}

// ValidatePickupWindow checks now against an estimated pickup time (Unix seconds) ± windowMinutes
func ValidatePickupWindow(now time.Time, estimatedPickupTime int64, windowMinutes int) models.ValidationResult {
	diff := now.Unix() - estimatedPickupTime
	abs := diff
	if abs < 0 {
		abs = -abs
	}
	minutes := float64(abs) / 60

	if abs <= int64(windowMinutes)*60 {
		return models.ValidationResult{
			IsValid:        true,
			CanProceed:     true,
			Message:        "Pickup within time window",
			Classification: ClassOnTime,
		}
	}

	class, side := ClassLate, "after"
	if diff < 0 {
		class, side = ClassEarly, "before"
	}
	return models.ValidationResult{
		IsValid:        false,
		CanProceed:     false,
		Message:        fmt.Sprintf("Pickup %.0f min %s estimated time (window ±%d min)", minutes, side, windowMinutes),
		Classification: class,
	}
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fieldops-backend/internal/compliance"
)

func env(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{
		"DATABASE_URL":   "postgres://localhost/fieldops",
		"APP_JWT_SECRET": "secret",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %q", cfg.Port)
	}
	if cfg.LocationFreshness != 120*time.Second {
		t.Fatalf("expected 120s freshness, got %v", cfg.LocationFreshness)
	}
	if cfg.ForgottenCheckoutSchedule != defaultForgottenSchedule {
		t.Fatalf("unexpected schedule %q", cfg.ForgottenCheckoutSchedule)
	}
	if cfg.Policy.ForgottenCheckout.ForgottenHours != 12 {
		t.Fatalf("expected default policy, got %+v", cfg.Policy.ForgottenCheckout)
	}
}

func TestFromEnvCollectsErrors(t *testing.T) {
	_, err := FromEnv(env(map[string]string{
		"LOCATION_FRESHNESS_SECONDS":  "soon",
		"FORGOTTEN_CHECKOUT_SCHEDULE": "every now and then",
	}))
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"DATABASE_URL", "APP_JWT_SECRET", "LOCATION_FRESHNESS_SECONDS", "FORGOTTEN_CHECKOUT_SCHEDULE"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected error to mention %s, got %v", want, err)
		}
	}
}

func TestLoadPolicyFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	doc := `
shift:
  timezone: Asia/Dubai
  morning_login_cutoff: "06:30"
grace:
  cap_minutes: 45
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write policy: %v", err)
	}

	cfg, err := FromEnv(env(map[string]string{
		"DATABASE_URL":   "postgres://localhost/fieldops",
		"APP_JWT_SECRET": "secret",
		"POLICY_FILE":    path,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Policy.Shift.Timezone != "Asia/Dubai" {
		t.Fatalf("expected Asia/Dubai, got %q", cfg.Policy.Shift.Timezone)
	}
	if cfg.Policy.Shift.MorningLoginCutoff != compliance.ClockTime(6*60+30) {
		t.Fatalf("expected 06:30 cutoff, got %s", cfg.Policy.Shift.MorningLoginCutoff)
	}
	if cfg.Policy.Grace.CapMinutes != 45 {
		t.Fatalf("expected cap 45, got %d", cfg.Policy.Grace.CapMinutes)
	}
	// untouched sections keep their defaults
	if cfg.Policy.Escalation.ReplacementSuggestionMinutes != 30 {
		t.Fatalf("expected default escalation, got %+v", cfg.Policy.Escalation)
	}
}

func TestLoadPolicyRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	doc := `
forgotten_checkout:
  regularization_hours: 12
  forgotten_hours: 10
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write policy: %v", err)
	}
	if _, err := LoadPolicy(path); err == nil {
		t.Fatal("expected invalid policy to be rejected")
	}
	if _, err := LoadPolicy(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected missing file to be rejected")
	}
}

package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"fieldops-backend/internal/compliance"
)

// SweepParser parses six-field (seconds-first) cron expressions
var SweepParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

const (
	defaultPort              = "8080"
	defaultFreshnessSeconds  = 120
	defaultForgottenSchedule = "0 */15 * * * *"
	defaultFirebaseFile      = "./firebase-service-account.json"
)

type Config struct {
	Port        string
	DatabaseURL string
	JWTSecret   string

	FirebaseCredentialsBase64 string
	FirebaseCredentialsFile   string

	// Stored positions older than this are treated as missing
	LocationFreshness time.Duration

	// Six-field cron expression for the forgotten-checkout sweep
	ForgottenCheckoutSchedule string

	PolicyFile string
	Policy     compliance.Policy
}

// Load reads .env (if present) and the environment, then the compliance policy file
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  Warning: .env file not found, using environment variables from system")
	} else {
		log.Println("✅ .env file loaded successfully")
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup func
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		Port:                      valueOr(getenv("PORT"), defaultPort),
		DatabaseURL:               getenv("DATABASE_URL"),
		JWTSecret:                 getenv("APP_JWT_SECRET"),
		FirebaseCredentialsBase64: getenv("FIREBASE_CREDENTIALS_BASE64"),
		FirebaseCredentialsFile:   valueOr(getenv("FIREBASE_CREDENTIALS_FILE"), defaultFirebaseFile),
		ForgottenCheckoutSchedule: valueOr(getenv("FORGOTTEN_CHECKOUT_SCHEDULE"), defaultForgottenSchedule),
		PolicyFile:                getenv("POLICY_FILE"),
		LocationFreshness:         defaultFreshnessSeconds * time.Second,
	}

	var errs []error
	if cfg.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL environment variable is required"))
	}
	if cfg.JWTSecret == "" {
		errs = append(errs, errors.New("APP_JWT_SECRET environment variable is required"))
	}

	if raw := getenv("LOCATION_FRESHNESS_SECONDS"); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs <= 0 {
			errs = append(errs, fmt.Errorf("LOCATION_FRESHNESS_SECONDS must be a positive integer, got %q", raw))
		} else {
			cfg.LocationFreshness = time.Duration(secs) * time.Second
		}
	}

	if _, err := SweepParser.Parse(cfg.ForgottenCheckoutSchedule); err != nil {
		errs = append(errs, fmt.Errorf("FORGOTTEN_CHECKOUT_SCHEDULE: %w", err))
	}

	policy, err := LoadPolicy(cfg.PolicyFile)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.Policy = policy

	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	return cfg, nil
}

// LoadPolicy reads a YAML compliance policy; an empty path yields the defaults
func LoadPolicy(path string) (compliance.Policy, error) {
	if path == "" {
		return compliance.DefaultPolicy(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return compliance.Policy{}, fmt.Errorf("failed to read policy file: %w", err)
	}
	policy, err := compliance.ParsePolicy(data)
	if err != nil {
		return compliance.Policy{}, fmt.Errorf("invalid policy file %s: %w", path, err)
	}
	return policy, nil
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"magnate/internal/econ"
)

type APIConfig struct {
	Addr          string
	DatabaseURL   string
	TriggerSecret string
	SeedConfig    bool
	Engine        econ.Params
}

type WorkerConfig struct {
	DatabaseURL  string
	Engine       econ.Params
	TurnSpec     string
	PriceSpec    string
	ProposalSpec string
	RunOnce      bool
}

type CLIConfig struct {
	APIBaseURL    string
	TriggerSecret string
}

func LoadAPIFromEnv() (APIConfig, error) {
	addr := os.Getenv("PORT")
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("MAGNATE_API_ADDR", ":8080")
	}

	cfg := APIConfig{
		Addr:          addr,
		DatabaseURL:   strings.TrimSpace(os.Getenv("DATABASE_URL")),
		TriggerSecret: strings.TrimSpace(os.Getenv("MAGNATE_TRIGGER_SECRET")),
		SeedConfig:    envBoolDefault("MAGNATE_SEED_CONFIG", true),
		Engine:        engineParamsFromEnv(),
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.TriggerSecret == "" {
		return cfg, fmt.Errorf("MAGNATE_TRIGGER_SECRET is required")
	}
	return cfg, nil
}

func LoadWorkerFromEnv() (WorkerConfig, error) {
	cfg := WorkerConfig{
		DatabaseURL:  strings.TrimSpace(os.Getenv("DATABASE_URL")),
		Engine:       engineParamsFromEnv(),
		TurnSpec:     envDefault("MAGNATE_TURN_CRON", "@every 1h"),
		PriceSpec:    envDefault("MAGNATE_PRICE_CRON", "@every 15m"),
		ProposalSpec: envDefault("MAGNATE_PROPOSAL_CRON", "@every 5m"),
		RunOnce:      envBoolDefault("MAGNATE_RUN_ONCE", false),
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

func LoadCLIFromEnv() CLIConfig {
	return CLIConfig{
		APIBaseURL:    strings.TrimRight(envDefault("MAGNATE_API_BASE_URL", "http://localhost:8080"), "/"),
		TriggerSecret: strings.TrimSpace(os.Getenv("MAGNATE_TRIGGER_SECRET")),
	}
}

func engineParamsFromEnv() econ.Params {
	return econ.Params{
		ActionAllotment:  envInt64Default("MAGNATE_ACTION_ALLOTMENT", 3),
		SalaryBaseMicros: econ.CredsToMicros(envFloatDefault("MAGNATE_SALARY_BASE_CREDS", 500)),
		SalaryCapitalBps: envInt64Default("MAGNATE_SALARY_CAPITAL_BPS", 10),
		SalaryCooldown:   envDurationDefault("MAGNATE_SALARY_COOLDOWN", time.Hour),
		PriceBucket:      envDurationDefault("MAGNATE_PRICE_BUCKET", 15*time.Minute),
		SharePriceFloorMicros: econ.CredsToMicros(
			envFloatDefault("MAGNATE_SHARE_PRICE_FLOOR_CREDS", 0.01)),
	}
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envFloatDefault(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envInt64Default(key string, fallback int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func envBoolDefault(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

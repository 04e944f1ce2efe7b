package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type Config struct {
	APIBaseURL      string
	APITimeoutSecs  int
	APIRateLimit    int
	APIRateRefillMs int

	RedisURL string
	StateDir string

	DefaultSymbol string
	PriceDays     int
	StartingCash  float64

	LogPollSecs    int
	AgentPollSecs  int
	MoversPollSecs int

	SSHHost        string
	SSHPort        int
	SSHHostKeyPath string

	TracingEnabled bool
}

func Load() *Config {
	cfg := &Config{
		RedisURL: os.Getenv("REDIS_URL"),
	}

	cfg.APIBaseURL = strings.TrimSpace(os.Getenv("API_BASE_URL"))
	if cfg.APIBaseURL == "" {
		log.Println("Warning: API_BASE_URL not set, defaulting to http://localhost:8003")
		cfg.APIBaseURL = "http://localhost:8003"
	}

	cfg.APITimeoutSecs = 30
	if v := strings.TrimSpace(os.Getenv("API_TIMEOUT_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.APITimeoutSecs = n
		}
	}

	cfg.APIRateLimit = 30
	if v := strings.TrimSpace(os.Getenv("API_RATE_LIMIT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.APIRateLimit = n
		}
	}

	cfg.APIRateRefillMs = 2000
	if v := strings.TrimSpace(os.Getenv("API_RATE_REFILL_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.APIRateRefillMs = n
		}
	}

	cfg.StateDir = strings.TrimSpace(os.Getenv("STATE_DIR"))
	if cfg.StateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			log.Printf("Warning: cannot resolve home dir (%v), using temp dir for state", err)
			home = os.TempDir()
		}
		cfg.StateDir = filepath.Join(home, ".marketdeck")
	}

	cfg.DefaultSymbol = strings.TrimSpace(os.Getenv("DEFAULT_SYMBOL"))
	if cfg.DefaultSymbol == "" {
		cfg.DefaultSymbol = "RELIANCE.NS"
	}

	cfg.PriceDays = 30
	if v := strings.TrimSpace(os.Getenv("PRICE_DAYS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PriceDays = n
		}
	}

	cfg.StartingCash = 100000
	if v := strings.TrimSpace(os.Getenv("STARTING_CASH")); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil && n > 0 {
			cfg.StartingCash = n
		}
	}

	cfg.LogPollSecs = 5
	if v := strings.TrimSpace(os.Getenv("LOG_POLL_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.LogPollSecs = n
		}
	}

	cfg.AgentPollSecs = 5
	if v := strings.TrimSpace(os.Getenv("AGENT_POLL_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.AgentPollSecs = n
		}
	}

	cfg.MoversPollSecs = 60
	if v := strings.TrimSpace(os.Getenv("MOVERS_POLL_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MoversPollSecs = n
		}
	}

	cfg.SSHHost = strings.TrimSpace(os.Getenv("SSH_HOST"))
	if cfg.SSHHost == "" {
		cfg.SSHHost = "0.0.0.0"
	}

	cfg.SSHPort = 2223
	if v := strings.TrimSpace(os.Getenv("SSH_PORT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SSHPort = n
		}
	}

	cfg.SSHHostKeyPath = strings.TrimSpace(os.Getenv("SSH_HOST_KEY_PATH"))
	if cfg.SSHHostKeyPath == "" {
		cfg.SSHHostKeyPath = ".ssh/marketdeck_ed25519"
	}

	cfg.TracingEnabled = strings.EqualFold(strings.TrimSpace(os.Getenv("TRACING_ENABLED")), "true")

	return cfg
}

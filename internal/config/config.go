package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config captures runtime configuration sourced from environment variables.
type Config struct {
	Environment  string
	HTTPPort     string
	DatabasePath string
	RulesPath    string
	PendingPath  string
	PolicyPath   string
	JWTSecret    string

	// Upstream LLM (OpenAI-compatible API)
	LLMBaseURL string
	LLMAPIKey  string
	LLMModel   string
	LLMTimeout time.Duration

	// Generative model used for rule synthesis. Defaults to the upstream
	// LLM settings when unset, so a single provider can serve both.
	SynthBaseURL string
	SynthAPIKey  string
	SynthModel   string

	// Injection classifier
	ClassifierBundleDir string
	ClassifierURL       string
	ClassifierTimeout   time.Duration
	ClassifierThreshold float64
	ClassifierMaxInput  int

	// Threat feed
	FeedURL     string
	FeedTimeout time.Duration

	// Evolution cycle
	CycleSpec     string
	InternalLimit int
	ExternalLimit int
	MinCoverage   float64

	// External notification destinations (shoutrrr URLs, comma separated)
	NotifyURLs []string
}

// Load reads env vars and falls back to defaults so the server can boot with zero configuration.
func Load() (Config, error) {
	cfg := Config{
		Environment:  getEnv("PS_ENV", "development"),
		HTTPPort:     getEnv("PS_HTTP_PORT", "8080"),
		DatabasePath: getEnv("PS_DB_PATH", filepath.Join("data", "promptshield.db")),
		RulesPath:    getEnv("PS_RULES_PATH", filepath.Join("data", "rules.json")),
		PendingPath:  getEnv("PS_PENDING_PATH", filepath.Join("data", "pending_rules.json")),
		PolicyPath:   getEnv("PS_POLICY_PATH", filepath.Join("data", "policy.yaml")),
		JWTSecret:    getEnv("PS_JWT_SECRET", ""),

		LLMBaseURL: getEnv("PS_LLM_BASE_URL", ""),
		LLMAPIKey:  getEnv("PS_LLM_API_KEY", ""),
		LLMModel:   getEnv("PS_LLM_MODEL", "llama-3.1-8b-instant"),
		LLMTimeout: getDuration("PS_LLM_TIMEOUT", 60*time.Second),

		SynthBaseURL: getEnv("PS_SYNTH_BASE_URL", ""),
		SynthAPIKey:  getEnv("PS_SYNTH_API_KEY", ""),
		SynthModel:   getEnv("PS_SYNTH_MODEL", ""),

		ClassifierBundleDir: getEnv("PS_CLASSIFIER_BUNDLE_DIR", ""),
		ClassifierURL:       getEnv("PS_CLASSIFIER_URL", ""),
		ClassifierTimeout:   getDuration("PS_CLASSIFIER_TIMEOUT", 10*time.Second),
		ClassifierThreshold: getFloat("PS_CLASSIFIER_THRESHOLD", 0.90),
		ClassifierMaxInput:  getInt("PS_CLASSIFIER_MAX_INPUT", 512),

		FeedURL:     getEnv("PS_FEED_URL", ""),
		FeedTimeout: getDuration("PS_FEED_TIMEOUT", 5*time.Second),

		CycleSpec:     getEnv("PS_CYCLE_SPEC", "@every 5m"),
		InternalLimit: getInt("PS_CYCLE_INTERNAL_LIMIT", 50),
		ExternalLimit: getInt("PS_CYCLE_EXTERNAL_LIMIT", 50),
		MinCoverage:   getFloat("PS_MIN_COVERAGE", 0.4),
	}

	if urls := getEnv("PS_NOTIFY_URLS", ""); urls != "" {
		for _, u := range strings.Split(urls, ",") {
			if u = strings.TrimSpace(u); u != "" {
				cfg.NotifyURLs = append(cfg.NotifyURLs, u)
			}
		}
	}

	if cfg.SynthBaseURL == "" {
		cfg.SynthBaseURL = cfg.LLMBaseURL
	}
	if cfg.SynthAPIKey == "" {
		cfg.SynthAPIKey = cfg.LLMAPIKey
	}
	if cfg.SynthModel == "" {
		cfg.SynthModel = cfg.LLMModel
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
		return Config{}, fmt.Errorf("ensure data directory: %w", err)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return fallback
}

func getInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}

	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}

	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}

	return fallback
}

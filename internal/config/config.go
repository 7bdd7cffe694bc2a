package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

type Config struct {
	DatabaseURL    string
	RedisURL       string
	KafkaBrokers   string
	NatsURL        string
	JaegerEndpoint string
	Port           string
	ProcessorsFile string
}

func Load() *Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8084"
	}

	processorsFile := os.Getenv("PROCESSORS_FILE")
	if processorsFile == "" {
		processorsFile = "processors.json"
	}

	return &Config{
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		KafkaBrokers:   os.Getenv("KAFKA_BROKERS"),
		NatsURL:        os.Getenv("NATS_URL"),
		JaegerEndpoint: os.Getenv("JAEGER_ENDPOINT"),
		Port:           port,
		ProcessorsFile: processorsFile,
	}
}

// ProcessorConfig is the typed per-processor configuration. Everything a
// gateway needs beyond its built-in profile lives here; it is validated
// once at startup, never resolved reflectively per call.
type ProcessorConfig struct {
	Name    string `json:"name"`
	Profile string `json:"profile"`
	// Secret is the shared signing secret; basic-auth processors use
	// Username/Password instead.
	Secret   string `json:"secret,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`

	QueryURL string `json:"query_url,omitempty"`
	APIKey   string `json:"api_key,omitempty"`

	ReconcileMaxAttempts  int `json:"reconcile_max_attempts,omitempty"`
	ReconcileDelaySeconds int `json:"reconcile_delay_seconds,omitempty"`
}

// SigningSecret returns the scheme-facing secret: basic-auth processors
// present "username:password".
func (p ProcessorConfig) SigningSecret() string {
	if p.Username != "" || p.Password != "" {
		return p.Username + ":" + p.Password
	}
	return p.Secret
}

// ReconcileDelay returns the between-attempt delay, defaulting to 2s.
func (p ProcessorConfig) ReconcileDelay() time.Duration {
	if p.ReconcileDelaySeconds <= 0 {
		return 2 * time.Second
	}
	return time.Duration(p.ReconcileDelaySeconds) * time.Second
}

// MaxAttempts returns the reconciliation budget, defaulting to 5.
func (p ProcessorConfig) MaxAttempts() int {
	if p.ReconcileMaxAttempts <= 0 {
		return 5
	}
	return p.ReconcileMaxAttempts
}

// LoadProcessors reads and validates the processor table. A malformed
// table is a boot failure, not a per-call surprise.
func LoadProcessors(path string) ([]ProcessorConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read processors file: %w", err)
	}

	var configs []ProcessorConfig
	if err := json.Unmarshal(data, &configs); err != nil {
		return nil, fmt.Errorf("parse processors file: %w", err)
	}

	seen := make(map[string]struct{}, len(configs))
	for i, pc := range configs {
		if strings.TrimSpace(pc.Name) == "" {
			return nil, fmt.Errorf("processor %d: name is required", i)
		}
		if _, dup := seen[pc.Name]; dup {
			return nil, fmt.Errorf("processor %q: duplicate name", pc.Name)
		}
		seen[pc.Name] = struct{}{}

		if strings.TrimSpace(pc.Profile) == "" {
			return nil, fmt.Errorf("processor %q: profile is required", pc.Name)
		}
		if pc.SigningSecret() == "" {
			return nil, fmt.Errorf("processor %q: secret or username/password is required", pc.Name)
		}
	}

	return configs, nil
}

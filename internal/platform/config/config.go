package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is the full process configuration, loaded from GUMBALL_* environment
// variables so main stays lean.
type Config struct {
	Addr          string        `envconfig:"ADDR" default:":8080"`
	LogLevel      string        `envconfig:"LOG_LEVEL" default:"info"`
	JWTSigningKey string        `envconfig:"JWT_SIGNING_KEY" default:"dev-secret-key-change-in-production"`
	RequestTTL    time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`

	// Record store backend: "memory" or "redis".
	StoreBackend string `envconfig:"STORE_BACKEND" default:"memory"`
	RedisURL     string `envconfig:"REDIS_URL"`

	// Receipt journal; empty disables the postgres journal.
	PostgresURL string `envconfig:"POSTGRES_URL"`

	// Audit sink; empty brokers fall back to the in-memory audit store.
	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	AuditTopic   string   `envconfig:"AUDIT_TOPIC" default:"gumball.audit"`

	MinterURL       string        `envconfig:"MINTER_URL" default:"http://localhost:9080"`
	MinterAPIKey    string        `envconfig:"MINTER_API_KEY"`
	TokenURL        string        `envconfig:"TOKEN_URL" default:"http://localhost:9081"`
	TokenAPIKey     string        `envconfig:"TOKEN_API_KEY"`
	ProviderTTL     time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"10s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// FromEnv builds the Config from environment variables.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("gumball", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.StoreBackend == "redis" && cfg.RedisURL == "" {
		return nil, fmt.Errorf("redis store backend requires GUMBALL_REDIS_URL")
	}
	return &cfg, nil
}

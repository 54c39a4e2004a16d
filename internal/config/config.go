// Package config loads service configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config is the root configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Store    string         `yaml:"store"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Log      LogConfig      `yaml:"log"`
	Policy   PolicyConfig   `yaml:"policy"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int32  `yaml:"max_conns"`
	MinConns int32  `yaml:"min_conns"`
}

// DSN builds a libpq-compatible connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// KafkaConfig configures the lifecycle event publisher. An empty Broker
// disables publishing.
type KafkaConfig struct {
	Broker string `yaml:"broker"`
	Topic  string `yaml:"topic"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// PolicyConfig holds the attendance rules.
type PolicyConfig struct {
	// SanctionThreshold is the number of consecutive absences that forces
	// new registrations onto the waiting list.
	SanctionThreshold int `yaml:"sanction_threshold"`
	// CancellationCutoff is how long before the event start a cancellation
	// request must be submitted.
	CancellationCutoff     time.Duration `yaml:"cancellation_cutoff"`
	MinProfileCompleteness int           `yaml:"min_profile_completeness"`
	// WaitlistOverrideQuota lets admins promote waiting-list members past a full quota.
	WaitlistOverrideQuota bool `yaml:"waitlist_override_quota"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         "8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     "5432",
			User:     "postgres",
			Password: "postgres",
			Name:     "alumni",
			SSLMode:  "disable",
			MaxConns: 20,
			MinConns: 2,
		},
		Store: StorePostgres,
		Kafka: KafkaConfig{
			Topic: "alumni.attendance",
		},
		Log: LogConfig{
			Level: "info",
		},
		Policy: PolicyConfig{
			SanctionThreshold:      2,
			CancellationCutoff:     48 * time.Hour,
			MinProfileCompleteness: 90,
		},
	}
}

// Load reads configuration from path. A missing file yields the defaults.
// Environment variables are applied last.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	switch c.Store {
	case StorePostgres, StoreMemory:
	default:
		return fmt.Errorf("unknown store %q (want %q or %q)", c.Store, StorePostgres, StoreMemory)
	}
	if c.Policy.SanctionThreshold < 1 {
		return fmt.Errorf("policy.sanction_threshold must be at least 1")
	}
	if c.Policy.CancellationCutoff < 0 {
		return fmt.Errorf("policy.cancellation_cutoff must not be negative")
	}
	if c.Policy.MinProfileCompleteness < 0 || c.Policy.MinProfileCompleteness > 100 {
		return fmt.Errorf("policy.min_profile_completeness must be within 0..100")
	}
	return nil
}

func (c *Config) applyEnvOverrides() error {
	setString(&c.Database.Host, "DB_HOST")
	setString(&c.Database.Port, "DB_PORT")
	setString(&c.Database.User, "DB_USER")
	setString(&c.Database.Password, "DB_PASSWORD")
	setString(&c.Database.Name, "DB_NAME")
	setString(&c.Database.SSLMode, "DB_SSLMODE")
	setString(&c.Server.Port, "PORT")
	setString(&c.Kafka.Broker, "KAFKA_BROKER")
	setString(&c.Kafka.Topic, "KAFKA_TOPIC")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Store, "STORE")

	if v := os.Getenv("SANCTION_THRESHOLD"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SANCTION_THRESHOLD: %w", err)
		}
		c.Policy.SanctionThreshold = n
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

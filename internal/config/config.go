package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// ServerConfig captures all tunable parameters of the API process. Every
// field has a default so the binary runs locally with no environment at all.
type ServerConfig struct {
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"10s"`
	IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"15s"`

	RetentionWindow time.Duration `env:"RETENTION_WINDOW" envDefault:"360h"`
	SweepInterval   time.Duration `env:"SWEEP_INTERVAL" envDefault:"1h"`
	SeedDemo        bool          `env:"SEED_DEMO" envDefault:"true"`

	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"ride-events"`
	EventBuffer  int      `env:"EVENT_BUFFER" envDefault:"256"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

func LoadServerConfig() (ServerConfig, error) {
	var cfg ServerConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}

	cfg.KafkaBrokers = splitAndTrim(cfg.KafkaBrokers)
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))

	return cfg, cfg.validate()
}

func (c ServerConfig) validate() error {
	var errs []error
	durations := []struct {
		key string
		d   time.Duration
	}{
		{"HTTP_READ_TIMEOUT", c.ReadTimeout},
		{"HTTP_WRITE_TIMEOUT", c.WriteTimeout},
		{"HTTP_IDLE_TIMEOUT", c.IdleTimeout},
		{"HTTP_SHUTDOWN_TIMEOUT", c.ShutdownTimeout},
		{"RETENTION_WINDOW", c.RetentionWindow},
		{"SWEEP_INTERVAL", c.SweepInterval},
	}
	for _, d := range durations {
		if d.d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be > 0", d.key))
		}
	}
	if c.EventBuffer <= 0 {
		errs = append(errs, fmt.Errorf("EVENT_BUFFER must be > 0"))
	}
	if len(c.KafkaBrokers) > 0 && strings.TrimSpace(c.KafkaTopic) == "" {
		errs = append(errs, fmt.Errorf("KAFKA_TOPIC must be set when KAFKA_BROKERS is"))
	}
	return errors.Join(errs...)
}

// ConsumerConfig drives the event tail process.
type ConsumerConfig struct {
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"ride-events"`
	KafkaGroup   string   `env:"KAFKA_GROUP" envDefault:"ride-events-tail"`
	MetricsAddr  string   `env:"METRICS_ADDR" envDefault:":2112"`
	LogLevel     string   `env:"LOG_LEVEL" envDefault:"info"`
}

func LoadConsumerConfig() (ConsumerConfig, error) {
	var cfg ConsumerConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	cfg.KafkaBrokers = splitAndTrim(cfg.KafkaBrokers)
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))

	var errs []error
	if len(cfg.KafkaBrokers) == 0 {
		errs = append(errs, fmt.Errorf("KAFKA_BROKERS must list at least one broker"))
	}
	if strings.TrimSpace(cfg.KafkaTopic) == "" {
		errs = append(errs, fmt.Errorf("KAFKA_TOPIC must be set"))
	}
	if strings.TrimSpace(cfg.KafkaGroup) == "" {
		errs = append(errs, fmt.Errorf("KAFKA_GROUP must be set"))
	}
	return cfg, errors.Join(errs...)
}

func splitAndTrim(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}

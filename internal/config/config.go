// Package config loads the engine's on-disk manifest (JSON or YAML),
// applies environment variable overrides, and resolves remote-concept
// connection secrets from AWS Secrets Manager/SSM when configured.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LogBackend selects the action log implementation.
type LogBackend string

const (
	LogBackendMemory   LogBackend = "memory"
	LogBackendPostgres LogBackend = "postgres"
)

// ActionLogConfig configures the action log backend and its optional
// Redis-backed hot-flow cache.
type ActionLogConfig struct {
	Backend     LogBackend    `json:"backend" yaml:"backend"`
	PostgresDSN string        `json:"postgres_dsn" yaml:"postgres_dsn"`
	CacheAddr   string        `json:"cache_addr" yaml:"cache_addr"`
	CacheTTL    time.Duration `json:"cache_ttl" yaml:"cache_ttl"`
}

// ConceptEndpoint describes one concept's registry bootstrap entry.
type ConceptEndpoint struct {
	URI          string   `json:"uri" yaml:"uri"`
	Target       string   `json:"target" yaml:"target"` // host:port of the concept's gRPC endpoint; every entry is dialed over gRPC
	Capabilities []string `json:"capabilities" yaml:"capabilities"`
	QueryMode    string   `json:"query_mode" yaml:"query_mode"` // graphql, lite
	SecretRef    string   `json:"secret_ref" yaml:"secret_ref"` // AWS Secrets Manager/SSM name, optional
}

// RegistryConfig configures concept registry bootstrap.
type RegistryConfig struct {
	Endpoints        []ConceptEndpoint `json:"endpoints" yaml:"endpoints"`
	HeartbeatCron    string            `json:"heartbeat_cron" yaml:"heartbeat_cron"`
	HeartbeatTimeout time.Duration     `json:"heartbeat_timeout" yaml:"heartbeat_timeout"`
}

// AWSConfig configures secret resolution for remote concept endpoints.
type AWSConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Region  string `json:"region" yaml:"region"`
	Profile string `json:"profile" yaml:"profile"`
	// SecretSource selects where SecretRef values are resolved from:
	// "secretsmanager" or "ssm".
	SecretSource string `json:"secret_source" yaml:"secret_source"`
}

// TracingConfig holds OpenTelemetry tracing settings.
type TracingConfig struct {
	Enabled     bool    `json:"enabled" yaml:"enabled"`
	Exporter    string  `json:"exporter" yaml:"exporter"` // otlp-http (or otlp), stdout
	Endpoint    string  `json:"endpoint" yaml:"endpoint"`
	ServiceName string  `json:"service_name" yaml:"service_name"`
	SampleRate  float64 `json:"sample_rate" yaml:"sample_rate"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	Namespace string `json:"namespace" yaml:"namespace"`
	Addr      string `json:"addr" yaml:"addr"` // /metrics listen address
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // text, json
	// FiringAuditPath, if set, appends every sync firing to this file as JSON lines.
	FiringAuditPath string `json:"firing_audit_path" yaml:"firing_audit_path"`
}

// ObservabilityConfig groups tracing/metrics/logging settings.
type ObservabilityConfig struct {
	Tracing TracingConfig `json:"tracing" yaml:"tracing"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// GRPCConfig holds the inbound gRPC server settings for in-process
// concepts callable from other processes.
type GRPCConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

// HotReloadConfig configures sync-manifest hot-reload watching (§4.9).
type HotReloadConfig struct {
	Enabled    bool          `json:"enabled" yaml:"enabled"`
	SyncsPath  string        `json:"syncs_path" yaml:"syncs_path"`
	PollPeriod time.Duration `json:"poll_period" yaml:"poll_period"`
}

// DaemonConfig holds daemon-process settings.
type DaemonConfig struct {
	HTTPAddr string `json:"http_addr" yaml:"http_addr"`
}

// Config is the central configuration struct for cmd/concordd.
type Config struct {
	ActionLog     ActionLogConfig     `json:"action_log" yaml:"action_log"`
	Registry      RegistryConfig      `json:"registry" yaml:"registry"`
	AWS           AWSConfig           `json:"aws" yaml:"aws"`
	Observability ObservabilityConfig `json:"observability" yaml:"observability"`
	GRPC          GRPCConfig          `json:"grpc" yaml:"grpc"`
	HotReload     HotReloadConfig     `json:"hot_reload" yaml:"hot_reload"`
	Daemon        DaemonConfig        `json:"daemon" yaml:"daemon"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ActionLog: ActionLogConfig{
			Backend:  LogBackendMemory,
			CacheTTL: 30 * time.Second,
		},
		Registry: RegistryConfig{
			HeartbeatCron:    "@every 30s",
			HeartbeatTimeout: 2 * time.Second,
		},
		AWS: AWSConfig{
			Enabled:      false,
			SecretSource: "secretsmanager",
		},
		Observability: ObservabilityConfig{
			Tracing: TracingConfig{
				Enabled:     false,
				Exporter:    "otlp-http",
				Endpoint:    "localhost:4318",
				ServiceName: "concordd",
				SampleRate:  1.0,
			},
			Metrics: MetricsConfig{
				Enabled:   true,
				Namespace: "concord",
				Addr:      ":9464",
			},
			Logging: LoggingConfig{
				Level:  "info",
				Format: "text",
			},
		},
		GRPC: GRPCConfig{
			Enabled: false,
			Addr:    ":9090",
		},
		HotReload: HotReloadConfig{
			Enabled:    false,
			PollPeriod: 5 * time.Second,
		},
		Daemon: DaemonConfig{
			HTTPAddr: "",
		},
	}
}

// LoadFromFile loads configuration from a JSON or YAML file, selected
// by extension (.yaml/.yml vs everything else treated as JSON).
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// LoadFromEnv applies environment variable overrides to cfg.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("CONCORD_ACTIONLOG_BACKEND"); v != "" {
		cfg.ActionLog.Backend = LogBackend(v)
	}
	if v := os.Getenv("CONCORD_ACTIONLOG_POSTGRES_DSN"); v != "" {
		cfg.ActionLog.PostgresDSN = v
		if cfg.ActionLog.Backend == "" {
			cfg.ActionLog.Backend = LogBackendPostgres
		}
	}
	if v := os.Getenv("CONCORD_ACTIONLOG_CACHE_ADDR"); v != "" {
		cfg.ActionLog.CacheAddr = v
	}
	if v := os.Getenv("CONCORD_ACTIONLOG_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ActionLog.CacheTTL = d
		}
	}

	if v := os.Getenv("CONCORD_REGISTRY_HEARTBEAT_CRON"); v != "" {
		cfg.Registry.HeartbeatCron = v
	}
	if v := os.Getenv("CONCORD_REGISTRY_HEARTBEAT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Registry.HeartbeatTimeout = d
		}
	}

	if v := os.Getenv("CONCORD_AWS_ENABLED"); v != "" {
		cfg.AWS.Enabled = parseBool(v)
	}
	if v := os.Getenv("CONCORD_AWS_REGION"); v != "" {
		cfg.AWS.Region = v
	}
	if v := os.Getenv("CONCORD_AWS_PROFILE"); v != "" {
		cfg.AWS.Profile = v
	}
	if v := os.Getenv("CONCORD_AWS_SECRET_SOURCE"); v != "" {
		cfg.AWS.SecretSource = v
	}

	if v := os.Getenv("CONCORD_TRACING_ENABLED"); v != "" {
		cfg.Observability.Tracing.Enabled = parseBool(v)
	}
	if v := os.Getenv("CONCORD_TRACING_ENDPOINT"); v != "" {
		cfg.Observability.Tracing.Endpoint = v
	}
	if v := os.Getenv("CONCORD_TRACING_EXPORTER"); v != "" {
		cfg.Observability.Tracing.Exporter = v
	}
	if v := os.Getenv("CONCORD_TRACING_SERVICE_NAME"); v != "" {
		cfg.Observability.Tracing.ServiceName = v
	}
	if v := os.Getenv("CONCORD_TRACING_SAMPLE_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Observability.Tracing.SampleRate = f
		}
	}
	if v := os.Getenv("CONCORD_METRICS_ENABLED"); v != "" {
		cfg.Observability.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("CONCORD_METRICS_NAMESPACE"); v != "" {
		cfg.Observability.Metrics.Namespace = v
	}
	if v := os.Getenv("CONCORD_METRICS_ADDR"); v != "" {
		cfg.Observability.Metrics.Addr = v
	}
	if v := os.Getenv("CONCORD_LOG_LEVEL"); v != "" {
		cfg.Observability.Logging.Level = v
	}
	if v := os.Getenv("CONCORD_LOG_FORMAT"); v != "" {
		cfg.Observability.Logging.Format = v
	}
	if v := os.Getenv("CONCORD_FIRING_AUDIT_PATH"); v != "" {
		cfg.Observability.Logging.FiringAuditPath = v
	}

	if v := os.Getenv("CONCORD_GRPC_ENABLED"); v != "" {
		cfg.GRPC.Enabled = parseBool(v)
	}
	if v := os.Getenv("CONCORD_GRPC_ADDR"); v != "" {
		cfg.GRPC.Addr = v
	}

	if v := os.Getenv("CONCORD_HOT_RELOAD_ENABLED"); v != "" {
		cfg.HotReload.Enabled = parseBool(v)
	}
	if v := os.Getenv("CONCORD_HOT_RELOAD_SYNCS_PATH"); v != "" {
		cfg.HotReload.SyncsPath = v
	}
	if v := os.Getenv("CONCORD_HOT_RELOAD_POLL_PERIOD"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.HotReload.PollPeriod = d
		}
	}

	if v := os.Getenv("CONCORD_HTTP_ADDR"); v != "" {
		cfg.Daemon.HTTPAddr = v
	}
}

func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes"
}

// Package config loads and validates assigner config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// DatabaseURL is the Postgres DSN holding person and identifier records.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// GRPCAddr is the address the worker serves gRPC health checks on (e.g. :8080).
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// Env is the application environment (e.g. "development", "production"). Selects the log encoder.
	Env string `mapstructure:"APP_ENV"`
	// LogLevel is the minimum zap level (debug, info, warn, error).
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// DBServiceURL is the OA4MP dbService base URL; /oauth2/dbService is appended per call.
	DBServiceURL string `mapstructure:"DBSERVICE_URL"`
	// IDPEntityID is the SAML IdP entity ID sent as the idp parameter.
	IDPEntityID string `mapstructure:"IDP_ENTITY_ID"`
	// DBServiceTimeout is the per-request HTTP timeout (e.g. "30s").
	DBServiceTimeout string `mapstructure:"DBSERVICE_TIMEOUT"`

	// KafkaBrokers is a comma-separated list of Kafka broker addresses (e.g. "localhost:9092").
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// AssignmentTopic is the topic the worker consumes assignment requests from.
	AssignmentTopic string `mapstructure:"ASSIGNMENT_KAFKA_TOPIC"`
	// ProvisioningTopic is the topic the outbox relay publishes provisioning events to.
	ProvisioningTopic string `mapstructure:"PROVISIONING_KAFKA_TOPIC"`
	// KafkaGroupID is the consumer group ID for the assignment worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
	// OutboxPollInterval is how often the relay polls for unsent provisioning events (e.g. "5s").
	OutboxPollInterval string `mapstructure:"OUTBOX_POLL_INTERVAL"`

	// OTLPEndpoint is the OTLP gRPC collector endpoint; empty disables export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces a plaintext connection to the collector.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("GRPC_ADDR", ":8080")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DBSERVICE_URL", "http://oa4mp-server.cilogon-service.svc.cluster.local:8888")
	v.SetDefault("IDP_ENTITY_ID", "https://shib-idp.umsystem.edu/idp/shibboleth")
	v.SetDefault("DBSERVICE_TIMEOUT", "30s")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("ASSIGNMENT_KAFKA_TOPIC", "cilogon-assignment-requests")
	v.SetDefault("PROVISIONING_KAFKA_TOPIC", "cilogon-provisioning")
	v.SetDefault("KAFKA_GROUP_ID", "cilogon-assigner")
	v.SetDefault("OUTBOX_POLL_INTERVAL", "5s")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.DBServiceURL) == "" {
		return nil, errors.New("config: DBSERVICE_URL must be set")
	}
	if strings.TrimSpace(cfg.IDPEntityID) == "" {
		return nil, errors.New("config: IDP_ENTITY_ID must be set")
	}
	cfg.DBServiceURL = strings.TrimRight(cfg.DBServiceURL, "/")

	return &cfg, nil
}

// DBServiceRequestTimeout parses DBServiceTimeout as a time.Duration. Returns 30s if unset or invalid.
func (c *Config) DBServiceRequestTimeout() time.Duration {
	d, err := time.ParseDuration(c.DBServiceTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// OutboxInterval parses OutboxPollInterval as a time.Duration. Returns 5s if unset or invalid.
func (c *Config) OutboxInterval() time.Duration {
	d, err := time.ParseDuration(c.OutboxPollInterval)
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// An empty list disables the assignment consumer and the provisioning relay.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c != nil && strings.EqualFold(c.Env, "production")
}

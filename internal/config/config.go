// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// Storage backends accepted by storage.backend.
const (
	BackendGCS    = "gcs"
	BackendLocal  = "local"
	BackendMemory = "memory"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Database DatabaseConfig `mapstructure:"database"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int `mapstructure:"port"`
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
}

// LoggingConfig toggles zap development features and the minimum level.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// CatalogConfig points at the upstream dataset catalog.
type CatalogConfig struct {
	URL            string `mapstructure:"url"`
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxBodyBytes   int    `mapstructure:"max_body_bytes"`
}

// StorageConfig locates the artifact.
type StorageConfig struct {
	Backend     string             `mapstructure:"backend"`
	Bucket      string             `mapstructure:"bucket"`
	Object      string             `mapstructure:"object"`
	ContentType string             `mapstructure:"content_type"`
	Local       LocalStorageConfig `mapstructure:"local"`
}

// LocalStorageConfig configures the filesystem backend.
type LocalStorageConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// DatabaseConfig holds the Postgres connection parameters. They are checked
// when the loader opens its connection, not at startup.
type DatabaseConfig struct {
	Host                  string `mapstructure:"host"`
	Port                  int    `mapstructure:"port"`
	User                  string `mapstructure:"user"`
	Password              string `mapstructure:"password"`
	Name                  string `mapstructure:"name"`
	SSLMode               string `mapstructure:"sslmode"`
	Table                 string `mapstructure:"table"`
	ConnectTimeoutSeconds int    `mapstructure:"connect_timeout_seconds"`
}

// PubSubConfig holds metadata for artifact notifications. An empty topic disables them.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CATALOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindEnv(v); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 120)
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("catalog.url", "https://data-api.globalforestwatch.org/datasets")
	v.SetDefault("catalog.user_agent", "gfw-catalog-pipeline/1.0")
	v.SetDefault("catalog.timeout_seconds", 30)
	v.SetDefault("catalog.max_body_bytes", 32*1024*1024)
	v.SetDefault("storage.backend", BackendGCS)
	v.SetDefault("storage.bucket", "data-list-111")
	v.SetDefault("storage.object", "gfw_datasets_list.json")
	v.SetDefault("storage.content_type", "application/json")
	v.SetDefault("storage.local.base_dir", "data")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "prefer")
	v.SetDefault("database.table", "datasets")
	v.SetDefault("database.connect_timeout_seconds", 10)
}

// bindEnv maps the conventional unprefixed variables onto config keys. The
// prefixed form still wins when both are set.
func bindEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"server.port":       {"CATALOG_SERVER_PORT", "PORT"},
		"database.host":     {"CATALOG_DATABASE_HOST", "DB_HOST"},
		"database.port":     {"CATALOG_DATABASE_PORT", "DB_PORT"},
		"database.user":     {"CATALOG_DATABASE_USER", "DB_USER"},
		"database.password": {"CATALOG_DATABASE_PASSWORD", "DB_PASSWORD"},
		"database.name":     {"CATALOG_DATABASE_NAME", "DB_NAME"},
		"database.sslmode":  {"CATALOG_DATABASE_SSLMODE", "DB_SSLMODE"},
		"pubsub.project_id": {"CATALOG_PUBSUB_PROJECT_ID", "GOOGLE_CLOUD_PROJECT"},
	}
	for key, envs := range bindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return nil
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("server.request_timeout_seconds must be > 0")
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if c.Catalog.URL == "" {
		return fmt.Errorf("catalog.url is required")
	}
	if u, err := url.Parse(c.Catalog.URL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("catalog.url must be an absolute URL, got %q", c.Catalog.URL)
	}
	if c.Catalog.TimeoutSeconds <= 0 {
		return fmt.Errorf("catalog.timeout_seconds must be > 0")
	}
	if c.Storage.Object == "" {
		return fmt.Errorf("storage.object is required")
	}
	switch c.Storage.Backend {
	case BackendGCS:
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required for the gcs backend")
		}
	case BackendLocal:
		if c.Storage.Local.BaseDir == "" {
			return fmt.Errorf("storage.local.base_dir is required for the local backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("storage.backend must be one of gcs, local, memory; got %q", c.Storage.Backend)
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	return nil
}

// CatalogTimeout returns the catalog request timeout as a duration.
func (c Config) CatalogTimeout() time.Duration {
	return time.Duration(c.Catalog.TimeoutSeconds) * time.Second
}

// RequestTimeout returns the per-request HTTP handler budget.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// ConnectTimeout returns the database connect timeout as a duration.
func (c Config) ConnectTimeout() time.Duration {
	return time.Duration(c.Database.ConnectTimeoutSeconds) * time.Second
}

// Package config loads and validates scraper configuration via Viper.
package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Source fetch modes.
const (
	ModeHTTP     = "http"
	ModeHeadless = "headless"
	// ModeAuto fetches over HTTP and re-renders headless when the page looks client-rendered.
	ModeAuto = "auto"
)

// Store backends.
const (
	BackendFirestore = "firestore"
	BackendPostgres  = "postgres"
	BackendMongo     = "mongo"
	BackendMemory    = "memory"
	BackendGCS       = "gcs"
	BackendNone      = "none"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Source   SourceConfig   `mapstructure:"source"`
	Store    StoreConfig    `mapstructure:"store"`
	Firebase FirebaseConfig `mapstructure:"firebase"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int `mapstructure:"port"`
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// SourceConfig describes the listing page and how to fetch it.
type SourceConfig struct {
	URL                string `mapstructure:"url"`
	UserAgent          string `mapstructure:"user_agent"`
	TimeoutSeconds     int    `mapstructure:"timeout_seconds"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify"`
	Mode               string `mapstructure:"mode"`
	NavTimeoutSeconds  int    `mapstructure:"nav_timeout_seconds"`
	PromotionThreshold int    `mapstructure:"promotion_threshold"`
	// RateLimitRPS paces fetches per host; zero disables pacing.
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
	// MaxAttempts bounds fetch attempts, counting the first.
	MaxAttempts int `mapstructure:"max_attempts"`
}

// StoreConfig selects the listing store.
type StoreConfig struct {
	Backend    string `mapstructure:"backend"`
	Collection string `mapstructure:"collection"`
}

// FirebaseConfig holds the service-account fields for Firestore.
type FirebaseConfig struct {
	ProjectID    string `mapstructure:"project_id"`
	PrivateKeyID string `mapstructure:"private_key_id"`
	PrivateKey   string `mapstructure:"private_key"`
	ClientEmail  string `mapstructure:"client_email"`
	ClientID     string `mapstructure:"client_id"`
}

// PostgresConfig controls the relational listing store.
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int    `mapstructure:"max_conns"`
}

// MongoConfig controls the Mongo listing store.
type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

// SnapshotConfig controls archiving of fetched pages.
type SnapshotConfig struct {
	Backend string `mapstructure:"backend"`
	Bucket  string `mapstructure:"bucket"`
	Prefix  string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for completion notifications. An empty topic disables them.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// legacyEnv lists variables read without the SCRAPER_ prefix.
var legacyEnv = map[string]string{
	"server.port":             "PORT",
	"firebase.project_id":     "FIREBASE_PROJECT_ID",
	"firebase.private_key_id": "FIREBASE_PRIVATE_KEY_ID",
	"firebase.private_key":    "FIREBASE_PRIVATE_KEY",
	"firebase.client_email":   "FIREBASE_CLIENT_EMAIL",
	"firebase.client_id":      "FIREBASE_CLIENT_ID",
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCRAPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindLegacyEnv(v); err != nil {
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

func bindLegacyEnv(v *viper.Viper) error {
	for key, env := range legacyEnv {
		prefixed := "SCRAPER_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return fmt.Errorf("bind env %s: %w", env, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.request_timeout_seconds", 120)
	v.SetDefault("logging.development", false)
	v.SetDefault("source.url", "https://pminternship.mca.gov.in/internships")
	v.SetDefault("source.user_agent", "Mozilla/5.0")
	v.SetDefault("source.timeout_seconds", 30)
	v.SetDefault("source.insecure_skip_verify", false)
	v.SetDefault("source.mode", ModeHTTP)
	v.SetDefault("source.nav_timeout_seconds", 45)
	v.SetDefault("source.promotion_threshold", 2048)
	v.SetDefault("source.rate_limit_rps", 1.0)
	v.SetDefault("source.rate_limit_burst", 1)
	v.SetDefault("source.max_attempts", 1)
	v.SetDefault("store.backend", BackendFirestore)
	v.SetDefault("store.collection", "internships")
	v.SetDefault("firebase.project_id", "")
	v.SetDefault("firebase.private_key_id", "")
	v.SetDefault("firebase.private_key", "")
	v.SetDefault("firebase.client_email", "")
	v.SetDefault("firebase.client_id", "")
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.table", "internships")
	v.SetDefault("postgres.max_conns", 4)
	v.SetDefault("mongo.uri", "")
	v.SetDefault("mongo.database", "pm_internships")
	v.SetDefault("snapshot.backend", BackendNone)
	v.SetDefault("snapshot.bucket", "")
	v.SetDefault("snapshot.prefix", "snapshots")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("server.request_timeout_seconds must be > 0")
	}
	if strings.TrimSpace(c.Source.URL) == "" {
		return fmt.Errorf("source.url is required")
	}
	if c.Source.TimeoutSeconds <= 0 {
		return fmt.Errorf("source.timeout_seconds must be > 0")
	}
	if c.Source.MaxAttempts < 0 {
		return fmt.Errorf("source.max_attempts must be >= 0")
	}
	if c.Source.RateLimitRPS < 0 {
		return fmt.Errorf("source.rate_limit_rps must be >= 0")
	}
	switch c.Source.Mode {
	case ModeHTTP, ModeHeadless, ModeAuto:
	default:
		return fmt.Errorf("source.mode must be one of http, headless, auto (got %q)", c.Source.Mode)
	}
	if c.Store.Collection == "" {
		return fmt.Errorf("store.collection is required")
	}
	switch c.Store.Backend {
	case BackendFirestore, BackendMemory:
	case BackendPostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("postgres.dsn is required for the postgres backend")
		}
		if c.Postgres.MaxConns <= 0 || c.Postgres.MaxConns > math.MaxInt32 {
			return fmt.Errorf("postgres.max_conns must be in [1, %d]", math.MaxInt32)
		}
	case BackendMongo:
		if c.Mongo.URI == "" || c.Mongo.Database == "" {
			return fmt.Errorf("mongo.uri and mongo.database are required for the mongo backend")
		}
	default:
		return fmt.Errorf("store.backend %q is not supported", c.Store.Backend)
	}
	switch c.Snapshot.Backend {
	case BackendNone, BackendMemory:
	case BackendGCS:
		if c.Snapshot.Bucket == "" {
			return fmt.Errorf("snapshot.bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("snapshot.backend %q is not supported", c.Snapshot.Backend)
	}
	if c.PubSub.Topic != "" && c.PubSubProject() == "" {
		return fmt.Errorf("pubsub.project_id (or firebase.project_id) is required when pubsub.topic is set")
	}
	return nil
}

// RequestTimeout bounds one HTTP request to the service.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// FetchTimeout bounds the HTTP fetch of the source page.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Source.TimeoutSeconds) * time.Second
}

// NavTimeout bounds a headless render.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Source.NavTimeoutSeconds) * time.Second
}

// PubSubProject falls back to the Firebase project.
func (c Config) PubSubProject() string {
	if c.PubSub.ProjectID != "" {
		return c.PubSub.ProjectID
	}
	return c.Firebase.ProjectID
}

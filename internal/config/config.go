// Package config loads and validates service configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. NEWSROOM_SERVER_PORT.
const EnvPrefix = "NEWSROOM"

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Store      StoreConfig      `mapstructure:"store"`
	DB         DBConfig         `mapstructure:"db"`
	Geocode    GeocodeConfig    `mapstructure:"geocode"`
	Prefetch   PrefetchConfig   `mapstructure:"prefetch"`
	Navigation NavigationConfig `mapstructure:"navigation"`
	Footer     FooterConfig     `mapstructure:"footer"`
	Media      MediaConfig      `mapstructure:"media"`
	PubSub     PubSubConfig     `mapstructure:"pubsub"`
	Activity   ActivityConfig   `mapstructure:"activity"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
}

// AuthConfig protects the mutating endpoints with an API key.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// StoreConfig selects the document store backend.
type StoreConfig struct {
	Backend    string `mapstructure:"backend"`
	SeedFile   string `mapstructure:"seed_file"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

// DBConfig controls access to Postgres.
type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// GeocodeConfig configures the reverse geocoding upstream.
type GeocodeConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	APIKey    string        `mapstructure:"api_key"`
	UserAgent string        `mapstructure:"user_agent"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RPS       float64       `mapstructure:"rps"`
	Burst     int           `mapstructure:"burst"`
}

// PrefetchConfig governs the warm-up queue, workers and cache freshness.
type PrefetchConfig struct {
	QueueDepth  int           `mapstructure:"queue_depth"`
	Workers     int           `mapstructure:"workers"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
	WarmTimeout time.Duration `mapstructure:"warm_timeout"`
	Depth       int           `mapstructure:"depth"`
}

// NavigationConfig tunes the navigation loading machine.
type NavigationConfig struct {
	Delay            time.Duration `mapstructure:"delay"`
	SupersedePending bool          `mapstructure:"supersede_pending"`
}

// FooterConfig controls footer contents and caching.
type FooterConfig struct {
	CategoryLimit int           `mapstructure:"category_limit"`
	RecentLimit   int           `mapstructure:"recent_limit"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
}

// MediaConfig controls how article views render media and dates.
type MediaConfig struct {
	HeroVariant string `mapstructure:"hero_variant"`
	DateLayout  string `mapstructure:"date_layout"`
	TimeZone    string `mapstructure:"time_zone"`
}

// PubSubConfig holds the activity topic. An empty project disables it.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ActivityConfig tunes the activity hub.
type ActivityConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	BufferSize  int           `mapstructure:"buffer_size"`
	MaxBatch    int           `mapstructure:"max_batch"`
	MaxWait     time.Duration `mapstructure:"max_wait"`
	SinkTimeout time.Duration `mapstructure:"sink_timeout"`
	LogEvents   bool          `mapstructure:"log_events"`
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// Load builds a Config from defaults, an optional file and the environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

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
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.request_timeout", "10s")
	v.SetDefault("auth.enabled", false)
	v.SetDefault("logging.development", true)
	v.SetDefault("store.backend", StoreMemory)
	v.SetDefault("store.sqlite_path", "newsroom.db")
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("db.max_conn_lifetime", "30m")
	v.SetDefault("geocode.base_url", "https://nominatim.openstreetmap.org/reverse")
	v.SetDefault("geocode.user_agent", "newsroom-edge/0.1")
	v.SetDefault("geocode.timeout", "5s")
	v.SetDefault("geocode.rps", 1.0)
	v.SetDefault("geocode.burst", 1)
	v.SetDefault("prefetch.queue_depth", 256)
	v.SetDefault("prefetch.workers", 4)
	v.SetDefault("prefetch.cache_ttl", "60s")
	v.SetDefault("prefetch.warm_timeout", "5s")
	v.SetDefault("prefetch.depth", 1)
	v.SetDefault("navigation.delay", "100ms")
	v.SetDefault("navigation.supersede_pending", false)
	v.SetDefault("footer.category_limit", 10)
	v.SetDefault("footer.recent_limit", 5)
	v.SetDefault("footer.cache_ttl", "5m")
	v.SetDefault("media.hero_variant", "card")
	v.SetDefault("media.date_layout", "January 2, 2006")
	v.SetDefault("media.time_zone", "UTC")
	v.SetDefault("pubsub.topic_name", "newsroom-activity")
	v.SetDefault("activity.enabled", true)
	v.SetDefault("activity.buffer_size", 1024)
	v.SetDefault("activity.max_batch", 100)
	v.SetDefault("activity.max_wait", "1s")
	v.SetDefault("activity.sink_timeout", "5s")
	v.SetDefault("activity.log_events", false)
	v.SetDefault("tracing.enabled", true)
	v.SetDefault("tracing.service_name", "newsroom-edge")
	v.SetDefault("tracing.sample_ratio", 1.0)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New("server.port must be between 1 and 65535")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return errors.New("auth.api_key must be set when auth is enabled")
	}
	switch c.Store.Backend {
	case StoreMemory:
	case StorePostgres:
		if c.DB.DSN == "" {
			return errors.New("db.dsn must be set when store.backend is postgres")
		}
	case StoreSQLite:
		if c.Store.SQLitePath == "" {
			return errors.New("store.sqlite_path must be set when store.backend is sqlite")
		}
	default:
		return fmt.Errorf("store.backend must be one of %q, %q or %q, got %q",
			StoreMemory, StorePostgres, StoreSQLite, c.Store.Backend)
	}
	if c.Prefetch.QueueDepth <= 0 {
		return errors.New("prefetch.queue_depth must be > 0")
	}
	if c.Prefetch.Workers <= 0 {
		return errors.New("prefetch.workers must be > 0")
	}
	if c.Prefetch.CacheTTL <= 0 {
		return errors.New("prefetch.cache_ttl must be > 0")
	}
	if c.Prefetch.Depth < 0 {
		return errors.New("prefetch.depth must be >= 0")
	}
	if c.Navigation.Delay < 0 {
		return errors.New("navigation.delay must be >= 0")
	}
	if c.Geocode.BaseURL == "" {
		return errors.New("geocode.base_url is required")
	}
	if c.Geocode.RPS < 0 {
		return errors.New("geocode.rps must be >= 0")
	}
	if _, err := time.LoadLocation(c.Media.TimeZone); err != nil {
		return fmt.Errorf("media.time_zone: %w", err)
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return errors.New("tracing.sample_ratio must be between 0 and 1")
	}
	if c.PubSub.ProjectID != "" && c.PubSub.TopicName == "" {
		return errors.New("pubsub.topic_name must be set when pubsub.project_id is set")
	}
	return nil
}

// Location returns the configured display time zone.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Media.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/samirrijal/crimescope/internal/core/domain"
	"github.com/samirrijal/crimescope/internal/core/usecases"
	"github.com/samirrijal/crimescope/internal/pkg/geospatial"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	PoliceUK  PoliceUKConfig  `mapstructure:"policeuk"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Redis     RedisConfig     `mapstructure:"redis"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	KML       KMLConfig       `mapstructure:"kml"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
	// RequestTimeout bounds a single /v1/crimes call, bisection included.
	RequestTimeout int    `mapstructure:"request_timeout"`
	RateLimit      int    `mapstructure:"rate_limit"`
	AllowOrigins   string `mapstructure:"allow_origins"`
}

type PoliceUKConfig struct {
	BaseURL       string  `mapstructure:"base_url"`
	Timeout       int     `mapstructure:"timeout"`
	RatePerSecond float64 `mapstructure:"rate_per_second"`
	Burst         int     `mapstructure:"burst"`
	UserAgent     string  `mapstructure:"user_agent"`
}

type FetchConfig struct {
	MaxDepth            int  `mapstructure:"max_depth"`
	MaxVertices         int  `mapstructure:"max_vertices"`
	ResultCeiling       int  `mapstructure:"result_ceiling"`
	KeyPrecision        int  `mapstructure:"key_precision"`
	SkipOutsideCoverage bool `mapstructure:"skip_outside_coverage"`
}

// CacheConfig selects the CacheStore. Backend is "file", "valkey" or
// "redis"; with Tiered the local file cache sits in front of a shared one.
type CacheConfig struct {
	Backend  string `mapstructure:"backend"`
	Dir      string `mapstructure:"dir"`
	Tiered   bool   `mapstructure:"tiered"`
	TTLHours int    `mapstructure:"ttl_hours"`
	Prefix   string `mapstructure:"prefix"`
}

// TTL converts TTLHours; zero keeps entries forever.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
	// Cron schedules the refresh workflow; empty disables scheduling.
	Cron string `mapstructure:"cron"`
	// BBoxes are extra "south,west,north,east" areas refreshed alongside
	// every KML boundary in kml.dir.
	BBoxes []string `mapstructure:"bboxes"`
}

type KMLConfig struct {
	Dir string `mapstructure:"dir"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 130)
	v.SetDefault("server.request_timeout", 120)
	v.SetDefault("server.rate_limit", 120)
	v.SetDefault("server.allow_origins", "http://localhost:3000, http://localhost:5173")
	v.SetDefault("policeuk.base_url", "https://data.police.uk/api")
	v.SetDefault("policeuk.timeout", 30)
	v.SetDefault("policeuk.rate_per_second", 15)
	v.SetDefault("policeuk.burst", 30)
	v.SetDefault("policeuk.user_agent", service)
	v.SetDefault("fetch.max_depth", 3)
	v.SetDefault("fetch.max_vertices", 100)
	v.SetDefault("fetch.result_ceiling", 10000)
	v.SetDefault("fetch.key_precision", 5)
	v.SetDefault("fetch.skip_outside_coverage", false)
	v.SetDefault("cache.backend", "file")
	v.SetDefault("cache.dir", "cached_data")
	v.SetDefault("cache.tiered", true)
	v.SetDefault("cache.ttl_hours", 0)
	v.SetDefault("cache.prefix", "crimescope:")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.enabled", true)
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "crimescope-refresh")
	v.SetDefault("temporal.cron", "0 6 * * *")
	v.SetDefault("temporal.bboxes", []string{})
	v.SetDefault("kml.dir", "kml")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: CRIMESCOPE_POLICEUK_BASE_URL → policeuk.base_url
	v.SetEnvPrefix("CRIMESCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Server.RequestTimeout <= 0 {
		errs = append(errs, "server.request_timeout must be positive")
	}
	if c.PoliceUK.BaseURL == "" {
		errs = append(errs, "policeuk.base_url is required")
	}
	if c.PoliceUK.Timeout <= 0 {
		errs = append(errs, "policeuk.timeout must be positive")
	}
	if c.PoliceUK.RatePerSecond <= 0 {
		errs = append(errs, "policeuk.rate_per_second must be positive")
	}
	if c.Fetch.MaxDepth < 0 || c.Fetch.MaxDepth > 8 {
		errs = append(errs, fmt.Sprintf("fetch.max_depth must be 0-8, got %d", c.Fetch.MaxDepth))
	}
	if c.Fetch.MaxVertices < 3 {
		errs = append(errs, fmt.Sprintf("fetch.max_vertices must be at least 3, got %d", c.Fetch.MaxVertices))
	}
	if c.Fetch.ResultCeiling <= 0 {
		errs = append(errs, "fetch.result_ceiling must be positive")
	}
	if c.Fetch.KeyPrecision < 1 || c.Fetch.KeyPrecision > 10 {
		errs = append(errs, fmt.Sprintf("fetch.key_precision must be 1-10, got %d", c.Fetch.KeyPrecision))
	}
	switch c.Cache.Backend {
	case "file":
		if c.Cache.Dir == "" {
			errs = append(errs, "cache.dir is required for the file backend")
		}
	case "valkey":
		if c.Valkey.Addr == "" {
			errs = append(errs, "valkey.addr is required for the valkey backend")
		}
	case "redis":
		if c.Redis.Addr == "" {
			errs = append(errs, "redis.addr is required for the redis backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("cache.backend must be file, valkey or redis, got %q", c.Cache.Backend))
	}
	if c.Cache.Tiered && c.Cache.Backend != "file" && c.Cache.Dir == "" {
		errs = append(errs, "cache.dir is required when cache.tiered is set")
	}
	if c.Cache.TTLHours < 0 {
		errs = append(errs, "cache.ttl_hours must not be negative")
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		errs = append(errs, "nats.url is required when nats is enabled")
	}
	for _, b := range c.Temporal.BBoxes {
		if _, err := geospatial.ParseBBox(b); err != nil {
			errs = append(errs, fmt.Sprintf("temporal.bboxes: %v", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// FetcherConfig builds the acquisition engine settings.
func (c *Config) FetcherConfig() usecases.FetcherConfig {
	fc := usecases.FetcherConfig{
		CacheDir:       c.Cache.Dir,
		RequestTimeout: time.Duration(c.PoliceUK.Timeout) * time.Second,
		MaxDepth:       c.Fetch.MaxDepth,
		MaxVertices:    c.Fetch.MaxVertices,
		ResultCeiling:  c.Fetch.ResultCeiling,
		KeyPrecision:   c.Fetch.KeyPrecision,
	}
	if c.Fetch.SkipOutsideCoverage {
		fc.Coverage = domain.UKBounds
	}
	return fc
}

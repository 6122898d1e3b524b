package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Geocoding GeocodingConfig `mapstructure:"geocoding"`
	Sync      SyncConfig      `mapstructure:"sync"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

// GeocodingConfig configures both provider adapters and the resolver.
type GeocodingConfig struct {
	RadiusMeters       float64      `mapstructure:"radius_meters"`
	PreferOpenProvider bool         `mapstructure:"prefer_open_provider"`
	CacheTTL           int          `mapstructure:"cache_ttl"` // seconds, 0 disables
	OSM                OSMConfig    `mapstructure:"osm"`
	Google             GoogleConfig `mapstructure:"google"`
}

type OSMConfig struct {
	OverpassURL  string  `mapstructure:"overpass_url"`
	NominatimURL string  `mapstructure:"nominatim_url"`
	UserAgent    string  `mapstructure:"user_agent"`
	RateLimit    float64 `mapstructure:"rate_limit"` // requests per second
	Timeout      int     `mapstructure:"timeout"`    // seconds
}

type GoogleConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Timeout int    `mapstructure:"timeout"`
}

// SyncConfig controls the remote session backend.
type SyncConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	SessionTTL int  `mapstructure:"session_ttl"` // hours
}

func (s SyncConfig) TTL() time.Duration {
	return time.Duration(s.SessionTTL) * time.Hour
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()
	setDefaults(v, service)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: MEETEASE_GEOCODING_GOOGLE_API_KEY → geocoding.google.api_key
	v.SetEnvPrefix("MEETEASE")
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

func setDefaults(v *viper.Viper, service string) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)

	v.SetDefault("geocoding.radius_meters", 1000)
	v.SetDefault("geocoding.prefer_open_provider", true)
	v.SetDefault("geocoding.cache_ttl", 3600)
	v.SetDefault("geocoding.osm.overpass_url", "https://overpass-api.de/api/interpreter")
	v.SetDefault("geocoding.osm.nominatim_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocoding.osm.user_agent", "MEETease/1.0 (+https://github.com/Xombi17/MEETease)")
	v.SetDefault("geocoding.osm.rate_limit", 1.0)
	v.SetDefault("geocoding.osm.timeout", 10)
	v.SetDefault("geocoding.google.api_key", "")
	v.SetDefault("geocoding.google.base_url", "https://maps.googleapis.com/maps/api")
	v.SetDefault("geocoding.google.timeout", 10)

	v.SetDefault("sync.enabled", true)
	v.SetDefault("sync.session_ttl", 24)
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
	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Sprintf("log.format must be json or text, got %q", c.Log.Format))
	}
	if c.Sync.Enabled {
		if c.NATS.URL == "" {
			errs = append(errs, "nats.url is required when sync is enabled")
		}
		if c.Valkey.Addr == "" {
			errs = append(errs, "valkey.addr is required when sync is enabled")
		}
		if c.Sync.SessionTTL <= 0 {
			errs = append(errs, "sync.session_ttl must be positive")
		}
	}
	if c.Geocoding.RadiusMeters <= 0 {
		errs = append(errs, "geocoding.radius_meters must be positive")
	}
	if c.Geocoding.CacheTTL < 0 {
		errs = append(errs, "geocoding.cache_ttl must not be negative")
	}
	if c.Geocoding.OSM.OverpassURL == "" || c.Geocoding.OSM.NominatimURL == "" {
		errs = append(errs, "geocoding.osm urls are required")
	}
	if c.Geocoding.OSM.UserAgent == "" {
		errs = append(errs, "geocoding.osm.user_agent is required by the Nominatim usage policy")
	}
	if c.Geocoding.OSM.RateLimit <= 0 {
		errs = append(errs, "geocoding.osm.rate_limit must be positive")
	}
	if c.Geocoding.OSM.Timeout <= 0 || c.Geocoding.Google.Timeout <= 0 {
		errs = append(errs, "geocoding timeouts must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

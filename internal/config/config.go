package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Reverse geocoding providers.
const (
	GeocodeNone   = "none"
	GeocodeMapbox = "mapbox"
	GeocodeGoogle = "google"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"json"`
	LoggingEnabled  bool          `env:"LOGGING_ENABLED" envDefault:"true"`
	ShutdownTimeout time.Duration `env:"-"`

	AppIDOverride string `env:"APP_ID_OVERRIDE"`
	DeviceProfile string `env:"DEVICE_PROFILE"`

	// Location capability.
	LocationEnabled        bool          `env:"LOCATION_ENABLED" envDefault:"true"`
	LocationTimeout        time.Duration `env:"LOCATION_TIMEOUT" envDefault:"10s"`
	LocationPermission     string        `env:"LOCATION_PERMISSION" envDefault:"granted"`
	LocationFixRaw         string        `env:"LOCATION_FIX"`
	LocationDistanceFilter float64       `env:"LOCATION_DISTANCE_FILTER" envDefault:"100"`
	LocationFix            *Fix          `env:"-"`

	CompletionRetryDelay time.Duration `env:"COMPLETION_RETRY_DELAY" envDefault:"1s"`
	NetmonInterval       time.Duration `env:"NETMON_INTERVAL" envDefault:"5s"`

	// Reverse geocoding.
	GeocodeProvider       string        `env:"GEOCODE_PROVIDER" envDefault:"none"`
	GeocodeTimeout        time.Duration `env:"GEOCODE_TIMEOUT" envDefault:"5s"`
	MapboxToken           string        `env:"MAPBOX_TOKEN"`
	GoogleMapsAPIKey      string        `env:"GOOGLE_MAPS_API_KEY"`
	GeocodeCacheSize      int           `env:"GEOCODE_CACHE_SIZE" envDefault:"1000"`
	GeocodeCacheRedisAddr string        `env:"GEOCODE_CACHE_REDIS_ADDR"`
	GeocodeCacheTTL       time.Duration `env:"GEOCODE_CACHE_TTL" envDefault:"24h"`

	// Delivery reports.
	ReportsEnabled   bool     `env:"REPORTS_ENABLED" envDefault:"false"`
	KafkaBrokers     []string `env:"-"`
	KafkaReportTopic string   `env:"KAFKA_REPORT_TOPIC" envDefault:"consumer-delivery-reports"`

	OTelEndpoint string `env:"OTEL_ENDPOINT"`
}

// Fix is a configured starting coordinate.
type Fix struct {
	Lat      float64
	Lon      float64
	Accuracy float64
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}
	cfg.ShutdownTimeout = shutdownTimeout

	if raw := sharedcfg.EnvOrDefault("KAFKA_BROKERS", ""); raw != "" {
		cfg.KafkaBrokers = sharedcfg.ParseBrokers(raw)
	}

	if cfg.LocationFixRaw != "" {
		fix, err := ParseFix(cfg.LocationFixRaw)
		if err != nil {
			return nil, fmt.Errorf("invalid LOCATION_FIX: %w", err)
		}
		cfg.LocationFix = &fix
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.LocationTimeout <= 0 {
		return errors.New("LOCATION_TIMEOUT must be positive")
	}
	if c.CompletionRetryDelay <= 0 {
		return errors.New("COMPLETION_RETRY_DELAY must be positive")
	}
	if c.NetmonInterval <= 0 {
		return errors.New("NETMON_INTERVAL must be positive")
	}
	if c.GeocodeTimeout <= 0 {
		return errors.New("GEOCODE_TIMEOUT must be positive")
	}
	if c.GeocodeCacheSize <= 0 {
		return errors.New("GEOCODE_CACHE_SIZE must be positive")
	}
	if c.LocationDistanceFilter < 0 {
		return errors.New("LOCATION_DISTANCE_FILTER must not be negative")
	}

	switch c.LocationPermission {
	case "granted", "denied", "prompt":
	default:
		return fmt.Errorf("LOCATION_PERMISSION must be granted, denied, or prompt, got %q", c.LocationPermission)
	}

	switch c.GeocodeProvider {
	case GeocodeNone:
	case GeocodeMapbox:
		if c.MapboxToken == "" {
			return errors.New("GEOCODE_PROVIDER is mapbox but MAPBOX_TOKEN is not set")
		}
	case GeocodeGoogle:
		if c.GoogleMapsAPIKey == "" {
			return errors.New("GEOCODE_PROVIDER is google but GOOGLE_MAPS_API_KEY is not set")
		}
	default:
		return fmt.Errorf("GEOCODE_PROVIDER must be none, mapbox, or google, got %q", c.GeocodeProvider)
	}

	if c.ReportsEnabled {
		if len(c.KafkaBrokers) == 0 {
			return errors.New("REPORTS_ENABLED is true but KAFKA_BROKERS is not set")
		}
		if c.KafkaReportTopic == "" {
			return errors.New("KAFKA_REPORT_TOPIC is required when REPORTS_ENABLED is true")
		}
	}
	return nil
}

// ParseFix parses "lat,lon,accuracy".
func ParseFix(s string) (Fix, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return Fix{}, fmt.Errorf("want lat,lon,accuracy, got %q", s)
	}

	var vals [3]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Fix{}, fmt.Errorf("parse %q: %w", p, err)
		}
		vals[i] = v
	}

	fix := Fix{Lat: vals[0], Lon: vals[1], Accuracy: vals[2]}
	if fix.Lat < -90 || fix.Lat > 90 || fix.Lon < -180 || fix.Lon > 180 {
		return Fix{}, fmt.Errorf("coordinate out of range: %q", s)
	}
	return fix, nil
}

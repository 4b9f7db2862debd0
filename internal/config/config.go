package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all settings, populated from environment variables.
type Config struct {
	// Dataset locations.
	SourceDir     string
	CachePath     string
	BoundaryPath  string
	DashboardPath string
	TopN          int

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Publishing.
	KafkaBrokers []string
	KafkaTopic   string
	BatchSize    int

	// Mapbox geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	mapboxTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("MAPBOX_TIMEOUT", "5s"))
	if err != nil || mapboxTimeout <= 0 {
		return nil, errors.New("invalid MAPBOX_TIMEOUT")
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	topN, err := parseTopN()
	if err != nil {
		return nil, err
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	cfg := &Config{
		SourceDir:       sharedcfg.EnvOrDefault("EGRID_SOURCE_DIR", "USeGRID"),
		CachePath:       sharedcfg.EnvOrDefault("EGRID_CACHE_PATH", "egrid_all_years.parquet"),
		BoundaryPath:    sharedcfg.EnvOrDefault("BOUNDARY_PATH", "US_COUNTY_SHPFILE/US_county_cont.shp"),
		DashboardPath:   sharedcfg.EnvOrDefault("DASHBOARD_PATH", "power_plant_dashboard.html"),
		TopN:            topN,
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "text"),
		ShutdownTimeout: shutdownTimeout,
		KafkaBrokers:    sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:      sharedcfg.EnvOrDefault("KAFKA_TOPIC", "egrid-plant-records"),
		BatchSize:       batchSize,

		MapboxToken:     mapboxToken,
		MapboxEnabled:   mapboxEnabled,
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: parseMapboxCacheSize(),
	}

	if cfg.SourceDir == "" {
		return nil, errors.New("EGRID_SOURCE_DIR is required")
	}
	if cfg.CachePath == "" {
		return nil, errors.New("EGRID_CACHE_PATH is required")
	}
	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required")
	}
	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}

	return cfg, nil
}

func parseTopN() (int, error) {
	s := sharedcfg.EnvOrDefault("TOP_N", "5")
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 || n > 50 {
		return 0, fmt.Errorf("invalid TOP_N %q: must be between 1 and 50", s)
	}
	return n, nil
}

func parseMapboxCacheSize() int {
	if s := os.Getenv("MAPBOX_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Reference data.
	BoundaryPath string
	BaselinePath string

	// Batch orchestration.
	BatchSize  int
	BatchDelay time.Duration

	// Zonal statistics backend.
	ZonalBaseURL   string
	ZonalTimeout   time.Duration
	ZonalCacheSize int

	// Optional Kafka results sink.
	KafkaBrokers     []string
	KafkaResultTopic string
	KafkaEnabled     bool
}

// Load reads configuration from environment variables (plus an optional
// .env file), applying defaults where unset.
func Load() (*Config, error) {
	_ = godotenv.Load() // ignore missing file

	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	batchDelay, err := parseDuration("BATCH_DELAY", time.Second)
	if err != nil {
		return nil, err
	}
	zonalTimeout, err := parseDuration("ZONAL_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	batchSize, err := parseInt("BATCH_SIZE", 5)
	if err != nil {
		return nil, err
	}
	zonalCacheSize, err := parseInt("ZONAL_CACHE_SIZE", 1000)
	if err != nil {
		return nil, err
	}

	brokers := parseBrokers(os.Getenv("KAFKA_BROKERS"))
	kafkaEnabled := len(brokers) > 0
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		BoundaryPath: envOrDefault("BOUNDARY_PATH", "data/districts.geojson"),
		BaselinePath: envOrDefault("BASELINE_PATH", "data/baselines.csv"),

		BatchSize:  batchSize,
		BatchDelay: batchDelay,

		ZonalBaseURL:   envOrDefault("ZONAL_BASE_URL", "http://localhost:9090"),
		ZonalTimeout:   zonalTimeout,
		ZonalCacheSize: zonalCacheSize,

		KafkaBrokers:     brokers,
		KafkaResultTopic: envOrDefault("KAFKA_RESULT_TOPIC", "district-anomaly-results"),
		KafkaEnabled:     kafkaEnabled,
	}

	if cfg.BoundaryPath == "" {
		return nil, errors.New("BOUNDARY_PATH is required")
	}
	if cfg.BaselinePath == "" {
		return nil, errors.New("BASELINE_PATH is required")
	}
	if cfg.ZonalBaseURL == "" {
		return nil, errors.New("ZONAL_BASE_URL is required")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDuration(key string, fallback time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

func parseInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return n, nil
}

func parseBrokers(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}

package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all job settings, populated from environment variables.
type Config struct {
	InputDir      string
	InputBaseURL  string
	FetchTimeout  time.Duration
	OutputDir     string
	GeographyFile string
	Workers       int

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	PushgatewayURL  string
	TraceStdout     bool

	// Optional sinks. Each is enabled when its address is set.
	KafkaBrokers []string
	KafkaTopic   string

	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string

	DatabaseDSN string

	GCSBucket          string
	GCSPrefix          string
	GCSCredentialsFile string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	fetchTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("FETCH_TIMEOUT", "30s"))
	if err != nil || fetchTimeout <= 0 {
		return nil, errors.New("invalid FETCH_TIMEOUT")
	}

	workers, err := parseWorkers()
	if err != nil {
		return nil, err
	}

	traceStdout, err := strconv.ParseBool(sharedcfg.EnvOrDefault("TRACE_STDOUT", "false"))
	if err != nil {
		return nil, errors.New("invalid TRACE_STDOUT")
	}

	cfg := &Config{
		InputDir:      sharedcfg.EnvOrDefault("INPUT_DIR", "data/input"),
		InputBaseURL:  os.Getenv("INPUT_BASE_URL"),
		FetchTimeout:  fetchTimeout,
		OutputDir:     sharedcfg.EnvOrDefault("OUTPUT_DIR", "data/output"),
		GeographyFile: os.Getenv("GEOGRAPHY_FILE"),
		Workers:       workers,

		HTTPAddr:        os.Getenv("HTTP_ADDR"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		PushgatewayURL:  os.Getenv("PUSHGATEWAY_URL"),
		TraceStdout:     traceStdout,

		KafkaBrokers: parseBrokers(),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "vaccinations"),

		InfluxURL:    os.Getenv("INFLUXDB_URL"),
		InfluxToken:  os.Getenv("INFLUXDB_TOKEN"),
		InfluxOrg:    sharedcfg.EnvOrDefault("INFLUXDB_ORG", "owid"),
		InfluxBucket: sharedcfg.EnvOrDefault("INFLUXDB_BUCKET", "vaccinations"),

		DatabaseDSN: os.Getenv("DATABASE_DSN"),

		GCSBucket:          os.Getenv("GCS_BUCKET"),
		GCSPrefix:          sharedcfg.EnvOrDefault("GCS_PREFIX", "vaccinations"),
		GCSCredentialsFile: os.Getenv("GCS_CREDENTIALS_FILE"),
	}

	if cfg.InfluxURL != "" && cfg.InfluxToken == "" {
		return nil, errors.New("INFLUXDB_URL is set but INFLUXDB_TOKEN is not")
	}

	return cfg, nil
}

// KafkaEnabled reports whether the Kafka sink is configured.
func (c *Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

// InfluxEnabled reports whether the InfluxDB sink is configured.
func (c *Config) InfluxEnabled() bool { return c.InfluxURL != "" }

// SQLEnabled reports whether the SQL sink is configured.
func (c *Config) SQLEnabled() bool { return c.DatabaseDSN != "" }

// GCSEnabled reports whether outputs are published to a bucket.
func (c *Config) GCSEnabled() bool { return c.GCSBucket != "" }

func parseWorkers() (int, error) {
	s := os.Getenv("WORKERS")
	if s == "" {
		return runtime.NumCPU(), nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid WORKERS %q: must be a positive integer", s)
	}
	return n, nil
}

func parseBrokers() []string {
	s := os.Getenv("KAFKA_BROKERS")
	if s == "" {
		return nil
	}
	return sharedcfg.ParseBrokers(s)
}

// Package config loads worker configuration. The WORKSPACE environment
// variable selects a profile: "prod" and "stage" resolve values through the
// parameter store, "test" is a fixed profile for the test suite, and anything
// else reads plain environment variables.
package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.dspacesubmit.tech/internal/params"
)

// Config is the immutable worker configuration, constructed once at startup.
type Config struct {
	// Env is the deployment profile from WORKSPACE
	Env string

	// AWSRegion for all AWS clients
	AWSRegion string

	// DSpace repository connection
	DSpaceAPIURL   string
	DSpaceUser     string
	DSpacePassword string
	DSpaceTimeout  time.Duration

	// Queues
	InputQueue     string
	OutputQueues   []string // allow-list of result queue names
	SQSEndpointURL string   // custom endpoint, e.g. LocalStack

	// Logging
	LogLevel  string
	LogFilter bool

	// SkipProcessing drains the input queue without touching the repository
	SkipProcessing bool

	// HTTPPort serves health and metrics while the loop runs
	HTTPPort int
}

// Load builds the configuration for the current WORKSPACE. prod and stage
// profiles read their values from store; store may be nil for other profiles.
func Load(ctx context.Context, store params.Provider) (*Config, error) {
	env := os.Getenv("WORKSPACE")
	if env == "" {
		return nil, fmt.Errorf("env variable 'WORKSPACE' is required")
	}

	var cfg *Config
	var err error
	switch env {
	case "prod", "stage":
		cfg, err = loadFromStore(ctx, env, store)
	case "test":
		cfg = testProfile()
	default:
		cfg = loadFromEnv(env)
	}
	if err != nil {
		return nil, err
	}

	// Config file values fill gaps left by the profile
	cfg, err = applyConfigFile(cfg)
	if err != nil {
		return nil, err
	}

	slog.Info("Configuration loaded", "env", cfg.Env, "inputQueue", cfg.InputQueue,
		"outputQueues", cfg.OutputQueues, "dspaceTimeout", cfg.DSpaceTimeout)
	return cfg, nil
}

// AllowsOutputQueue reports whether name is on the result queue allow-list.
func (c *Config) AllowsOutputQueue(name string) bool {
	return slices.Contains(c.OutputQueues, name)
}

// SlogLevel maps the configured level name to a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARNING", "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func loadFromStore(ctx context.Context, env string, store params.Provider) (*Config, error) {
	if store == nil {
		return nil, fmt.Errorf("the %s environment requires a parameter store", env)
	}

	get := func(key string) (string, error) {
		value, err := store.Get(ctx, key)
		if err != nil {
			return "", fmt.Errorf("failed to load parameter '%s' for env %s: %w", key, env, err)
		}
		return value, nil
	}

	cfg := &Config{
		Env:       env,
		AWSRegion: getEnv("AWS_REGION", "us-east-1"),
		HTTPPort:  getEnvInt("HTTP_PORT", 9090),
	}

	var err error
	if cfg.DSpaceAPIURL, err = get("dspace_api_url"); err != nil {
		return nil, err
	}
	if cfg.DSpaceUser, err = get("dspace_user"); err != nil {
		return nil, err
	}
	if cfg.DSpacePassword, err = get("dspace_password"); err != nil {
		return nil, err
	}
	timeout, err := get("dspace_timeout")
	if err != nil {
		return nil, err
	}
	if cfg.DSpaceTimeout, err = parseTimeoutSeconds(timeout); err != nil {
		return nil, err
	}
	if cfg.InputQueue, err = get("dss_input_queue"); err != nil {
		return nil, err
	}
	outputQueues, err := get("dss_output_queues")
	if err != nil {
		return nil, err
	}
	cfg.OutputQueues = splitQueueList(outputQueues)

	logLevel, err := get("dss_log_level")
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = strings.ToUpper(logLevel)

	logFilter, err := get("dss_log_filter")
	if err != nil {
		return nil, err
	}
	cfg.LogFilter = strings.ToLower(logFilter) == "true"

	return cfg, nil
}

func testProfile() *Config {
	return &Config{
		Env:            "test",
		AWSRegion:      "us-east-1",
		DSpaceAPIURL:   "http://dspace.example.edu/rest",
		DSpaceUser:     "test",
		DSpacePassword: "test",
		DSpaceTimeout:  3 * time.Second,
		InputQueue:     "test_queue_with_messages",
		OutputQueues:   []string{"empty_result_queue"},
		LogLevel:       getEnv("LOG_LEVEL", "INFO"),
		LogFilter:      true,
		HTTPPort:       9090,
	}
}

func loadFromEnv(env string) *Config {
	timeout, err := parseTimeoutSeconds(getEnv("DSPACE_TIMEOUT", "120.0"))
	if err != nil {
		timeout = 120 * time.Second
	}

	return &Config{
		Env:            env,
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		DSpaceAPIURL:   os.Getenv("DSPACE_API_URL"),
		DSpaceUser:     os.Getenv("DSPACE_USER"),
		DSpacePassword: os.Getenv("DSPACE_PASSWORD"),
		DSpaceTimeout:  timeout,
		InputQueue:     os.Getenv("INPUT_QUEUE"),
		OutputQueues:   splitQueueList(os.Getenv("OUTPUT_QUEUES")),
		SQSEndpointURL: os.Getenv("SQS_ENDPOINT_URL"),
		LogLevel:       strings.ToUpper(getEnv("LOG_LEVEL", "INFO")),
		LogFilter:      strings.ToLower(getEnv("LOG_FILTER", "true")) == "true",
		SkipProcessing: strings.ToLower(os.Getenv("SKIP_PROCESSING")) == "true",
		HTTPPort:       getEnvInt("HTTP_PORT", 9090),
	}
}

// parseTimeoutSeconds parses a float seconds value ("120.0") into a duration
func parseTimeoutSeconds(value string) (time.Duration, error) {
	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout value '%s': %w", value, err)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

func splitQueueList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	queues := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			queues = append(queues, trimmed)
		}
	}
	return queues
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, ok := os.LookupEnv(key); ok {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// mapProvider is a parameter store backed by a map
type mapProvider struct {
	values map[string]string
}

func (p *mapProvider) Get(ctx context.Context, key string) (string, error) {
	value, ok := p.values[key]
	if !ok {
		return "", fmt.Errorf("parameter not found: %s", key)
	}
	return value, nil
}

func (p *mapProvider) Name() string { return "map" }

func TestLoadRequiresWorkspace(t *testing.T) {
	t.Setenv("WORKSPACE", "")
	os.Unsetenv("WORKSPACE")

	_, err := Load(context.Background(), nil)
	if err == nil {
		t.Fatal("expected error when WORKSPACE is unset")
	}
}

func TestLoadTestProfile(t *testing.T) {
	t.Setenv("WORKSPACE", "test")

	cfg, err := Load(context.Background(), nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DSpaceAPIURL != "http://dspace.example.edu/rest" {
		t.Errorf("unexpected DSpace URL %s", cfg.DSpaceAPIURL)
	}
	if cfg.InputQueue != "test_queue_with_messages" {
		t.Errorf("unexpected input queue %s", cfg.InputQueue)
	}
	if !cfg.AllowsOutputQueue("empty_result_queue") {
		t.Error("expected empty_result_queue on the allow-list")
	}
	if cfg.AllowsOutputQueue("not_a_queue") {
		t.Error("unexpected queue allowed")
	}
	if cfg.DSpaceTimeout != 3*time.Second {
		t.Errorf("unexpected timeout %s", cfg.DSpaceTimeout)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("WORKSPACE", "dev")
	t.Setenv("DSPACE_API_URL", "https://dspace.example.edu/rest")
	t.Setenv("DSPACE_USER", "submitter")
	t.Setenv("DSPACE_PASSWORD", "hunter2")
	t.Setenv("DSPACE_TIMEOUT", "2.5")
	t.Setenv("INPUT_QUEUE", "dss-input")
	t.Setenv("OUTPUT_QUEUES", "etd-results, wiley-results")
	t.Setenv("SKIP_PROCESSING", "true")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(context.Background(), nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DSpaceTimeout != 2500*time.Millisecond {
		t.Errorf("unexpected timeout %s", cfg.DSpaceTimeout)
	}
	if len(cfg.OutputQueues) != 2 || cfg.OutputQueues[1] != "wiley-results" {
		t.Errorf("output queue list not split: %v", cfg.OutputQueues)
	}
	if !cfg.SkipProcessing {
		t.Error("expected SkipProcessing")
	}
	if cfg.LogLevel != "DEBUG" {
		t.Errorf("unexpected log level %s", cfg.LogLevel)
	}
}

func TestLoadFromStore(t *testing.T) {
	t.Setenv("WORKSPACE", "stage")

	store := &mapProvider{values: map[string]string{
		"dspace_api_url":    "https://dspace.stage.example.edu/rest",
		"dspace_user":       "submitter",
		"dspace_password":   "secret",
		"dspace_timeout":    "120.0",
		"dss_input_queue":   "dss-input-stage",
		"dss_output_queues": "etd-results-stage",
		"dss_log_level":     "info",
		"dss_log_filter":    "true",
	}}

	cfg, err := Load(context.Background(), store)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DSpaceAPIURL != "https://dspace.stage.example.edu/rest" {
		t.Errorf("unexpected DSpace URL %s", cfg.DSpaceAPIURL)
	}
	if cfg.DSpaceTimeout != 120*time.Second {
		t.Errorf("unexpected timeout %s", cfg.DSpaceTimeout)
	}
	if !cfg.LogFilter {
		t.Error("expected log filter enabled")
	}
}

func TestLoadFromStoreMissingParameter(t *testing.T) {
	t.Setenv("WORKSPACE", "prod")

	_, err := Load(context.Background(), &mapProvider{values: map[string]string{}})
	if err == nil {
		t.Fatal("expected error for missing parameters")
	}
}

func TestLoadStoreProfileWithoutStore(t *testing.T) {
	t.Setenv("WORKSPACE", "prod")

	_, err := Load(context.Background(), nil)
	if err == nil {
		t.Fatal("expected error when prod profile has no parameter store")
	}
}

func TestConfigFileFillsUnsetFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dss.toml")
	content := `
[dspace]
api_url = "https://dspace.file.example.edu/rest"
timeout_seconds = 30.0

[queue]
input_queue = "file-input"
output_queues = ["file-results"]

[http]
port = 9999
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("WORKSPACE", "dev")
	t.Setenv("DSS_CONFIG", path)
	t.Setenv("DSPACE_API_URL", "https://dspace.env.example.edu/rest")

	cfg, err := Load(context.Background(), nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// env wins over file
	if cfg.DSpaceAPIURL != "https://dspace.env.example.edu/rest" {
		t.Errorf("env value should win, got %s", cfg.DSpaceAPIURL)
	}
	// file fills gaps
	if cfg.InputQueue != "file-input" {
		t.Errorf("expected file input queue, got %s", cfg.InputQueue)
	}
	if len(cfg.OutputQueues) != 1 || cfg.OutputQueues[0] != "file-results" {
		t.Errorf("expected file output queues, got %v", cfg.OutputQueues)
	}
}

func TestConfigFileInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dss.toml")
	if err := os.WriteFile(path, []byte("not [valid toml"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("WORKSPACE", "dev")
	t.Setenv("DSS_CONFIG", path)

	if _, err := Load(context.Background(), nil); err == nil {
		t.Fatal("expected error for invalid config file")
	}
}

func TestParseTimeoutSeconds(t *testing.T) {
	tests := []struct {
		value   string
		want    time.Duration
		wantErr bool
	}{
		{"120.0", 120 * time.Second, false},
		{"3", 3 * time.Second, false},
		{"0.5", 500 * time.Millisecond, false},
		{"abc", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := parseTimeoutSeconds(tt.value)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseTimeoutSeconds(%q): expected error", tt.value)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseTimeoutSeconds(%q): %v", tt.value, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseTimeoutSeconds(%q) = %s, want %s", tt.value, got, tt.want)
		}
	}
}

func TestSlogLevel(t *testing.T) {
	cfg := &Config{LogLevel: "WARNING"}
	if cfg.SlogLevel().String() != "WARN" {
		t.Errorf("unexpected level %s", cfg.SlogLevel())
	}
}

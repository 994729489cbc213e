package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// TOMLConfig represents the optional configuration file structure. File values
// only fill fields the active profile left empty; profile and env win.
type TOMLConfig struct {
	DSpace TOMLDSpaceConfig `toml:"dspace"`
	Queue  TOMLQueueConfig  `toml:"queue"`
	HTTP   TOMLHTTPConfig   `toml:"http"`
	Log    TOMLLogConfig    `toml:"log"`
}

// TOMLDSpaceConfig represents DSpace settings in TOML
type TOMLDSpaceConfig struct {
	APIURL         string  `toml:"api_url"`
	User           string  `toml:"user"`
	TimeoutSeconds float64 `toml:"timeout_seconds"`
}

// TOMLQueueConfig represents queue settings in TOML
type TOMLQueueConfig struct {
	Region       string   `toml:"region"`
	InputQueue   string   `toml:"input_queue"`
	OutputQueues []string `toml:"output_queues"`
	EndpointURL  string   `toml:"endpoint_url"`
}

// TOMLHTTPConfig represents the health/metrics server settings in TOML
type TOMLHTTPConfig struct {
	Port int `toml:"port"`
}

// TOMLLogConfig represents logging settings in TOML
type TOMLLogConfig struct {
	Level  string `toml:"level"`
	Filter bool   `toml:"filter"`
}

// ConfigPaths lists the paths searched for a config file
var ConfigPaths = []string{
	"dss.toml",
	"./config/dss.toml",
	"/etc/dss/dss.toml",
}

// applyConfigFile merges file values into unset fields of cfg. The file path
// comes from DSS_CONFIG or the standard search locations; no file is fine.
func applyConfigFile(cfg *Config) (*Config, error) {
	path := os.Getenv("DSS_CONFIG")
	if path == "" {
		for _, candidate := range ConfigPaths {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}
	if path == "" {
		return cfg, nil
	}

	var fileCfg TOMLConfig
	if _, err := toml.DecodeFile(path, &fileCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if cfg.DSpaceAPIURL == "" {
		cfg.DSpaceAPIURL = fileCfg.DSpace.APIURL
	}
	if cfg.DSpaceUser == "" {
		cfg.DSpaceUser = fileCfg.DSpace.User
	}
	if cfg.DSpaceTimeout == 0 && fileCfg.DSpace.TimeoutSeconds > 0 {
		cfg.DSpaceTimeout = time.Duration(fileCfg.DSpace.TimeoutSeconds * float64(time.Second))
	}
	if cfg.AWSRegion == "" {
		cfg.AWSRegion = fileCfg.Queue.Region
	}
	if cfg.InputQueue == "" {
		cfg.InputQueue = fileCfg.Queue.InputQueue
	}
	if len(cfg.OutputQueues) == 0 {
		cfg.OutputQueues = fileCfg.Queue.OutputQueues
	}
	if cfg.SQSEndpointURL == "" {
		cfg.SQSEndpointURL = fileCfg.Queue.EndpointURL
	}
	if cfg.HTTPPort == 0 && fileCfg.HTTP.Port > 0 {
		cfg.HTTPPort = fileCfg.HTTP.Port
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = strings.ToUpper(fileCfg.Log.Level)
	}

	return cfg, nil
}

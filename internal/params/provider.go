// Package params provides read access to the parameter/secret store that
// holds deployment configuration, with multiple backend providers.
package params

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Common errors
var (
	ErrNotFound      = errors.New("parameter not found")
	ErrProviderError = errors.New("provider error")
)

// Provider defines the interface for parameter store backends. The worker
// only reads: parameter writes happen through deployment tooling.
type Provider interface {
	// Get retrieves a parameter value by key
	Get(ctx context.Context, key string) (string, error)

	// Name returns the provider name for logging
	Name() string
}

// ProviderType represents the type of parameter provider
type ProviderType string

const (
	ProviderTypeSSM   ProviderType = "ssm"
	ProviderTypeAWSSM ProviderType = "aws-sm"
	ProviderTypeVault ProviderType = "vault"
	ProviderTypeGCPSM ProviderType = "gcp-sm"
	ProviderTypeEnv   ProviderType = "env"
)

// Config holds configuration for the parameter provider
type Config struct {
	// Provider type
	Provider ProviderType

	// AWS settings (SSM Parameter Store and Secrets Manager)
	AWSRegion   string
	AWSPrefix   string
	AWSEndpoint string

	// HashiCorp Vault settings
	VaultAddr      string
	VaultToken     string
	VaultPath      string
	VaultNamespace string

	// GCP Secret Manager settings
	GCPProject string
	GCPPrefix  string
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Provider:  ProviderTypeSSM,
		AWSPrefix: "/dss/",
		VaultPath: "secret/data/dss",
		GCPPrefix: "dss-",
	}
}

// LoadConfigFromEnv loads provider configuration from environment variables
func LoadConfigFromEnv() *Config {
	cfg := DefaultConfig()

	if p := os.Getenv("DSS_PARAMS_PROVIDER"); p != "" {
		cfg.Provider = ProviderType(strings.ToLower(p))
	}

	// AWS
	if r := os.Getenv("AWS_REGION"); r != "" {
		cfg.AWSRegion = r
	}
	if p := os.Getenv("SSM_PATH"); p != "" {
		cfg.AWSPrefix = p
	}
	if e := os.Getenv("DSS_PARAMS_AWS_ENDPOINT"); e != "" {
		cfg.AWSEndpoint = e
	}

	// Vault
	if a := os.Getenv("VAULT_ADDR"); a != "" {
		cfg.VaultAddr = a
	}
	if t := os.Getenv("VAULT_TOKEN"); t != "" {
		cfg.VaultToken = t
	}
	if p := os.Getenv("DSS_PARAMS_VAULT_PATH"); p != "" {
		cfg.VaultPath = p
	}
	if n := os.Getenv("DSS_PARAMS_VAULT_NAMESPACE"); n != "" {
		cfg.VaultNamespace = n
	}

	// GCP
	if p := os.Getenv("GOOGLE_CLOUD_PROJECT"); p != "" {
		cfg.GCPProject = p
	}
	if p := os.Getenv("DSS_PARAMS_GCP_PREFIX"); p != "" {
		cfg.GCPPrefix = p
	}

	return cfg
}

// NewProvider creates a parameter provider based on configuration
func NewProvider(cfg *Config) (Provider, error) {
	if cfg == nil {
		cfg = LoadConfigFromEnv()
	}

	switch cfg.Provider {
	case ProviderTypeSSM:
		return NewSSMProvider(cfg)
	case ProviderTypeAWSSM:
		return NewAWSSecretsManagerProvider(cfg)
	case ProviderTypeVault:
		return NewVaultProvider(cfg)
	case ProviderTypeGCPSM:
		return NewGCPSecretManagerProvider(cfg)
	case ProviderTypeEnv:
		return NewEnvProvider("DSS_PARAM_"), nil
	default:
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Provider)
	}
}

// EnvProvider reads parameters from environment variables
type EnvProvider struct {
	prefix string
}

// NewEnvProvider creates a new environment variable provider
func NewEnvProvider(prefix string) *EnvProvider {
	return &EnvProvider{prefix: prefix}
}

// Get retrieves a parameter from environment variables
func (p *EnvProvider) Get(ctx context.Context, key string) (string, error) {
	envKey := p.prefix + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
	value := os.Getenv(envKey)
	if value == "" {
		return "", ErrNotFound
	}
	return value, nil
}

// Name returns the provider name
func (p *EnvProvider) Name() string {
	return "env"
}

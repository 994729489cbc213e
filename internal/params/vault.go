package params

import (
	"context"
	"fmt"
	"strings"

	vault "github.com/hashicorp/vault/api"
)

// VaultProvider uses HashiCorp Vault (KV v2) as the backend
type VaultProvider struct {
	client *vault.Client
	path   string
}

// NewVaultProvider creates a new HashiCorp Vault provider
func NewVaultProvider(cfg *Config) (*VaultProvider, error) {
	if cfg.VaultAddr == "" {
		return nil, fmt.Errorf("%w: vault address is required", ErrProviderError)
	}

	vaultCfg := vault.DefaultConfig()
	vaultCfg.Address = cfg.VaultAddr

	client, err := vault.NewClient(vaultCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}

	if cfg.VaultToken != "" {
		client.SetToken(cfg.VaultToken)
	}
	if cfg.VaultNamespace != "" {
		client.SetNamespace(cfg.VaultNamespace)
	}

	path := cfg.VaultPath
	if path == "" {
		path = "secret/data/dss"
	}
	path = strings.TrimSuffix(path, "/")

	return &VaultProvider{
		client: client,
		path:   path,
	}, nil
}

// Get retrieves a parameter from Vault. Each parameter is a KV v2 secret with
// its value under the "value" key.
func (p *VaultProvider) Get(ctx context.Context, key string) (string, error) {
	secretPath := p.stripSecretPrefix(p.path + "/" + key)

	secret, err := p.client.KVv2("secret").Get(ctx, secretPath)
	if err != nil {
		if strings.Contains(err.Error(), "secret not found") {
			return "", fmt.Errorf("%w: '%s'", ErrNotFound, secretPath)
		}
		return "", fmt.Errorf("%w: %v", ErrProviderError, err)
	}

	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("%w: '%s'", ErrNotFound, secretPath)
	}
	if value, ok := secret.Data["value"].(string); ok {
		return value, nil
	}
	return "", fmt.Errorf("%w: '%s'", ErrNotFound, secretPath)
}

// Name returns the provider name
func (p *VaultProvider) Name() string {
	return "vault"
}

// stripSecretPrefix removes the "secret/data/" prefix if present.
// KVv2 methods add the mount prefix automatically.
func (p *VaultProvider) stripSecretPrefix(path string) string {
	path = strings.TrimPrefix(path, "secret/data/")
	return strings.TrimPrefix(path, "secret/")
}

package params

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// SSMProvider uses AWS SSM Parameter Store as the backend. This is the
// provider the prod and stage profiles resolve their configuration through.
type SSMProvider struct {
	client *ssm.Client
	prefix string
}

// NewSSMProvider creates a new SSM Parameter Store provider
func NewSSMProvider(cfg *Config) (*SSMProvider, error) {
	ctx := context.Background()

	var opts []func(*config.LoadOptions) error
	if cfg.AWSRegion != "" {
		opts = append(opts, config.WithRegion(cfg.AWSRegion))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var ssmOpts []func(*ssm.Options)
	if cfg.AWSEndpoint != "" {
		ssmOpts = append(ssmOpts, func(o *ssm.Options) {
			o.BaseEndpoint = aws.String(cfg.AWSEndpoint)
		})
	}

	return &SSMProvider{
		client: ssm.NewFromConfig(awsCfg, ssmOpts...),
		prefix: cfg.AWSPrefix,
	}, nil
}

// Get retrieves a parameter value, decrypting SecureString parameters.
func (p *SSMProvider) Get(ctx context.Context, key string) (string, error) {
	name := p.prefix + key

	result, err := p.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		var notFound *types.ParameterNotFound
		if errors.As(err, &notFound) {
			return "", fmt.Errorf("%w: '%s'", ErrNotFound, name)
		}
		return "", fmt.Errorf("%w: %v", ErrProviderError, err)
	}

	if result.Parameter == nil || result.Parameter.Value == nil {
		return "", fmt.Errorf("%w: '%s'", ErrNotFound, name)
	}
	return *result.Parameter.Value, nil
}

// Name returns the provider name
func (p *SSMProvider) Name() string {
	return "ssm"
}

// CheckPermissions verifies that an encrypted parameter under the prefix can
// be retrieved and decrypted. The deployment stores a SecureString named
// "secure" with value "true" for this purpose.
func (p *SSMProvider) CheckPermissions(ctx context.Context) (string, error) {
	value, err := p.Get(ctx, "secure")
	if err != nil {
		return "", err
	}
	if strings.ToLower(value) != "true" {
		return "", fmt.Errorf("%w: encrypted parameter at '%ssecure' could not be decrypted", ErrProviderError, p.prefix)
	}
	return fmt.Sprintf("SSM permissions confirmed for path '%s'", p.prefix), nil
}

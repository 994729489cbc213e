// Package testutil provides testing utilities for SQS integration tests
package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/localstack"

	sqsadapter "go.dspacesubmit.tech/internal/queue/sqs"
)

// LocalStackContainer wraps a LocalStack container for testing
type LocalStackContainer struct {
	Container *localstack.LocalStackContainer
	Endpoint  string
	Client    *sqsadapter.Client
}

// StartLocalStack starts a LocalStack container with SQS service
func StartLocalStack(ctx context.Context, t *testing.T) (*LocalStackContainer, error) {
	t.Helper()

	container, err := localstack.Run(ctx,
		"localstack/localstack:3.0",
		testcontainers.WithEnv(map[string]string{
			"SERVICES": "sqs",
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start localstack: %w", err)
	}

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get endpoint: %w", err)
	}

	client, err := sqsadapter.NewClientWithConfig(ctx, &sqsadapter.ClientConfig{
		Region:          "us-east-1",
		CustomEndpoint:  "http://" + endpoint,
		AccessKeyID:     "test",
		SecretAccessKey: "test",
	})
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to create SQS adapter: %w", err)
	}

	return &LocalStackContainer{
		Container: container,
		Endpoint:  "http://" + endpoint,
		Client:    client,
	}, nil
}

// CreateQueue creates a uniquely named test queue and returns its name
func (l *LocalStackContainer) CreateQueue(ctx context.Context, prefix string) (string, error) {
	name := fmt.Sprintf("%s-%s", prefix, uuid.NewString()[:8])
	if _, err := l.Client.CreateQueue(ctx, name); err != nil {
		return "", err
	}
	return name, nil
}

// Terminate stops and removes the container
func (l *LocalStackContainer) Terminate(ctx context.Context) error {
	if l.Container != nil {
		return l.Container.Terminate(ctx)
	}
	return nil
}

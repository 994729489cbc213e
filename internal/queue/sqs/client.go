// Package sqs provides the AWS SQS implementation of the queue adapter.
package sqs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"go.dspacesubmit.tech/internal/queue"
)

// SQSClientAPI defines the interface for SQS client operations (for testing)
type SQSClientAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	CreateQueue(ctx context.Context, params *sqs.CreateQueueInput, optFns ...func(*sqs.Options)) (*sqs.CreateQueueOutput, error)
	GetQueueUrl(ctx context.Context, params *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
	GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
}

const (
	// MaxBatchSize is the SQS maximum for one receive call
	MaxBatchSize = 10

	// MaxWaitSeconds is the SQS long-polling maximum
	MaxWaitSeconds = 20
)

// Client implements queue.Adapter against AWS SQS
type Client struct {
	sqs    SQSClientAPI
	region string

	// queue name -> URL, resolved lazily via GetQueueUrl
	urls   map[string]string
	urlsMu sync.RWMutex
}

// ClientConfig holds SQS client configuration
type ClientConfig struct {
	Region string

	// CustomEndpoint is used for LocalStack/testing
	CustomEndpoint string

	// AccessKeyID for custom credentials (optional, for testing)
	AccessKeyID string

	// SecretAccessKey for custom credentials (optional, for testing)
	SecretAccessKey string
}

// NewClient creates a new SQS adapter with standard AWS configuration
func NewClient(ctx context.Context, region string) (*Client, error) {
	return NewClientWithConfig(ctx, &ClientConfig{Region: region})
}

// NewClientWithConfig creates a new SQS adapter with extended configuration.
// A custom endpoint switches the client to static credentials for LocalStack.
func NewClientWithConfig(ctx context.Context, cfg *ClientConfig) (*Client, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.CustomEndpoint != "" && cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var sqsOpts []func(*sqs.Options)
	if cfg.CustomEndpoint != "" {
		sqsOpts = append(sqsOpts, func(o *sqs.Options) {
			o.BaseEndpoint = aws.String(cfg.CustomEndpoint)
		})
	}

	return &Client{
		sqs:    sqs.NewFromConfig(awsCfg, sqsOpts...),
		region: cfg.Region,
		urls:   make(map[string]string),
	}, nil
}

// NewClientWithAPI creates an adapter around an existing SQS API implementation.
// Used by tests to inject mocks.
func NewClientWithAPI(api SQSClientAPI) *Client {
	return &Client{
		sqs:  api,
		urls: make(map[string]string),
	}
}

// Receive polls a queue for up to max messages, requesting all message and
// queue attributes so submission attributes survive the round trip.
func (c *Client) Receive(ctx context.Context, queueName string, max, wait, visibility int32) ([]queue.Message, error) {
	if max <= 0 || max > MaxBatchSize {
		max = MaxBatchSize
	}
	if wait > MaxWaitSeconds {
		wait = MaxWaitSeconds
	}

	queueURL, err := c.queueURL(ctx, queueName)
	if err != nil {
		return nil, err
	}

	input := &sqs.ReceiveMessageInput{
		QueueUrl:              aws.String(queueURL),
		MaxNumberOfMessages:   max,
		WaitTimeSeconds:       wait,
		VisibilityTimeout:     visibility,
		MessageAttributeNames: []string{"All"},
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{
			types.MessageSystemAttributeNameAll,
		},
	}

	result, err := c.sqs.ReceiveMessage(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to receive messages from '%s': %w", queueName, err)
	}

	messages := make([]queue.Message, 0, len(result.Messages))
	for _, msg := range result.Messages {
		attrs := make(map[string]queue.Attribute, len(msg.MessageAttributes))
		for name, attr := range msg.MessageAttributes {
			attrs[name] = queue.Attribute{
				DataType:    aws.ToString(attr.DataType),
				StringValue: aws.ToString(attr.StringValue),
			}
		}
		messages = append(messages, queue.Message{
			ID:            aws.ToString(msg.MessageId),
			ReceiptHandle: aws.ToString(msg.ReceiptHandle),
			Body:          aws.ToString(msg.Body),
			Attributes:    attrs,
		})
	}

	slog.Debug("SQS receive complete", "queue", queueName, "messages", len(messages))
	return messages, nil
}

// Send publishes a message and returns the service acknowledgment including
// the MD5 digest SQS computed over the delivered body.
func (c *Client) Send(ctx context.Context, queueName string, attributes map[string]queue.Attribute, body string) (*queue.SendResult, error) {
	queueURL, err := c.queueURL(ctx, queueName)
	if err != nil {
		return nil, err
	}

	msgAttrs := make(map[string]types.MessageAttributeValue, len(attributes))
	for name, attr := range attributes {
		msgAttrs[name] = types.MessageAttributeValue{
			DataType:    aws.String(attr.DataType),
			StringValue: aws.String(attr.StringValue),
		}
	}

	input := &sqs.SendMessageInput{
		QueueUrl:          aws.String(queueURL),
		MessageBody:       aws.String(body),
		MessageAttributes: msgAttrs,
	}

	result, err := c.sqs.SendMessage(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to send message to '%s': %w", queueName, err)
	}

	slog.Debug("SQS message sent", "queue", queueName, "messageId", aws.ToString(result.MessageId))
	return &queue.SendResult{
		MessageID: aws.ToString(result.MessageId),
		MD5OfBody: aws.ToString(result.MD5OfMessageBody),
	}, nil
}

// Delete removes a delivered message. SQS deletes are idempotent by receipt handle.
func (c *Client) Delete(ctx context.Context, queueName, receiptHandle string) error {
	queueURL, err := c.queueURL(ctx, queueName)
	if err != nil {
		return err
	}

	input := &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	}

	if _, err := c.sqs.DeleteMessage(ctx, input); err != nil {
		return fmt.Errorf("failed to delete message from '%s': %w", queueName, err)
	}
	return nil
}

// CreateQueue creates a named queue and caches its URL.
func (c *Client) CreateQueue(ctx context.Context, name string) (string, error) {
	result, err := c.sqs.CreateQueue(ctx, &sqs.CreateQueueInput{
		QueueName: aws.String(name),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create queue '%s': %w", name, err)
	}

	url := aws.ToString(result.QueueUrl)
	c.urlsMu.Lock()
	c.urls[name] = url
	c.urlsMu.Unlock()

	slog.Info("SQS queue created", "queue", name, "url", url)
	return url, nil
}

// HealthCheck verifies that a queue is reachable.
// Used with health.SQSCheck.
func (c *Client) HealthCheck(ctx context.Context, queueName string) error {
	queueURL, err := c.queueURL(ctx, queueName)
	if err != nil {
		return err
	}

	_, err = c.sqs.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl: aws.String(queueURL),
		AttributeNames: []types.QueueAttributeName{
			types.QueueAttributeNameApproximateNumberOfMessages,
		},
	})
	return err
}

// queueURL resolves a queue name to its URL, caching the result
func (c *Client) queueURL(ctx context.Context, name string) (string, error) {
	c.urlsMu.RLock()
	url, ok := c.urls[name]
	c.urlsMu.RUnlock()
	if ok {
		return url, nil
	}

	result, err := c.sqs.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{
		QueueName: aws.String(name),
	})
	if err != nil {
		return "", fmt.Errorf("failed to resolve queue '%s': %w", name, err)
	}

	url = aws.ToString(result.QueueUrl)
	c.urlsMu.Lock()
	c.urls[name] = url
	c.urlsMu.Unlock()
	return url, nil
}

// Package queue defines the message queue contract used by the submission worker.
package queue

import "context"

// Attribute is a typed message attribute as carried on the wire.
type Attribute struct {
	DataType    string
	StringValue string
}

// StringAttribute builds a String-typed attribute.
func StringAttribute(value string) Attribute {
	return Attribute{DataType: "String", StringValue: value}
}

// Message is one message received from a queue. The receipt handle is only
// valid within the loop iteration that received the message.
type Message struct {
	// ID is the queue service's message identifier
	ID string

	// ReceiptHandle identifies this delivery for Delete
	ReceiptHandle string

	// Body is the raw UTF-8 message body
	Body string

	// Attributes holds the typed message attributes
	Attributes map[string]Attribute
}

// Attribute returns the string value of a named attribute and whether it was
// present on the message.
func (m *Message) Attribute(name string) (string, bool) {
	attr, ok := m.Attributes[name]
	if !ok || attr.StringValue == "" {
		return "", false
	}
	return attr.StringValue, true
}

// SendResult is the queue service's acknowledgment of a sent message.
// MD5OfBody is the service's digest of the body it accepted, used for
// publish verification.
type SendResult struct {
	MessageID string
	MD5OfBody string
}

// Adapter is the queue service contract. Queues are addressed by name; the
// implementation resolves names to whatever the service uses internally.
type Adapter interface {
	// Receive polls a queue for up to max messages, long-polling for wait
	// seconds and reserving received messages for visibility seconds.
	Receive(ctx context.Context, queueName string, max, wait, visibility int32) ([]Message, error)

	// Send publishes a message with typed attributes and returns the
	// service's acknowledgment.
	Send(ctx context.Context, queueName string, attributes map[string]Attribute, body string) (*SendResult, error)

	// Delete removes a delivered message by receipt handle. Idempotent.
	Delete(ctx context.Context, queueName, receiptHandle string) error

	// CreateQueue creates a named queue and returns its URL.
	CreateQueue(ctx context.Context, name string) (string, error)
}

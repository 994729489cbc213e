package submitter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"go.dspacesubmit.tech/internal/queue"
)

// SampleMessage is one generated message ready to send to a queue.
type SampleMessage struct {
	Attributes map[string]queue.Attribute
	Body       string
}

// sampleInput is one entry of a sample submission fixture file.
type sampleInput struct {
	PackageID        string            `json:"package id"`
	Source           string            `json:"source"`
	TargetSystem     string            `json:"target system"`
	CollectionHandle string            `json:"collection handle"`
	MetadataLocation string            `json:"metadata location"`
	Files            []sampleInputFile `json:"files"`
}

type sampleInputFile struct {
	Name        string `json:"name"`
	Location    string `json:"location"`
	Description string `json:"description"`
}

// sampleResult is one entry of a sample result fixture file.
type sampleResult struct {
	PackageID string             `json:"package id"`
	Source    string             `json:"source"`
	Result    string             `json:"result"`
	Handle    string             `json:"handle"`
	Modified  string             `json:"modified"`
	Files     []sampleResultFile `json:"files"`
}

type sampleResultFile struct {
	BitstreamName string `json:"bitstream name"`
	UUID          string `json:"uuid"`
	Checksum      string `json:"checksum"`
}

// GenerateSubmissionMessages reads a sample fixture file and produces one
// submission message per entry, all routed to outputQueue.
func GenerateSubmissionMessages(path, outputQueue string) ([]SampleMessage, error) {
	var fixtures map[string]sampleInput
	if err := readFixtureFile(path, &fixtures); err != nil {
		return nil, err
	}

	messages := make([]SampleMessage, 0, len(fixtures))
	for _, fixture := range fixtures {
		body := struct {
			SubmissionSystem string           `json:"SubmissionSystem"`
			CollectionHandle string           `json:"CollectionHandle"`
			MetadataLocation string           `json:"MetadataLocation"`
			Files            []FileDescriptor `json:"Files"`
		}{
			SubmissionSystem: fixture.TargetSystem,
			CollectionHandle: fixture.CollectionHandle,
			MetadataLocation: fixture.MetadataLocation,
			Files:            make([]FileDescriptor, 0, len(fixture.Files)),
		}
		for _, file := range fixture.Files {
			name, location := file.Name, file.Location
			body.Files = append(body.Files, FileDescriptor{
				BitstreamName:        &name,
				FileLocation:         &location,
				BitstreamDescription: file.Description,
			})
		}

		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize sample message body: %w", err)
		}
		messages = append(messages, SampleMessage{
			Attributes: map[string]queue.Attribute{
				"PackageID":        queue.StringAttribute(fixture.PackageID),
				"SubmissionSource": queue.StringAttribute(fixture.Source),
				"OutputQueue":      queue.StringAttribute(outputQueue),
			},
			Body: string(encoded),
		})
	}
	return messages, nil
}

// GenerateResultMessages reads a sample fixture file and produces one result
// message per entry, shaped like the worker's own success results.
func GenerateResultMessages(path string) ([]SampleMessage, error) {
	var fixtures map[string]sampleResult
	if err := readFixtureFile(path, &fixtures); err != nil {
		return nil, err
	}

	messages := make([]SampleMessage, 0, len(fixtures))
	for _, fixture := range fixtures {
		body := struct {
			ResultType string `json:"ResultType"`
			ItemHandle string `json:"ItemHandle"`
			Modified   string `json:"lastModified"`
			Bitstreams []struct {
				BitstreamName     string `json:"BitstreamName,omitempty"`
				BitstreamUUID     string `json:"BitstreamUUID,omitempty"`
				BitstreamChecksum string `json:"BitstreamChecksum,omitempty"`
			} `json:"Bitstreams"`
		}{
			ResultType: fixture.Result,
			ItemHandle: fixture.Handle,
			Modified:   fixture.Modified,
		}
		for _, file := range fixture.Files {
			body.Bitstreams = append(body.Bitstreams, struct {
				BitstreamName     string `json:"BitstreamName,omitempty"`
				BitstreamUUID     string `json:"BitstreamUUID,omitempty"`
				BitstreamChecksum string `json:"BitstreamChecksum,omitempty"`
			}{
				BitstreamName:     file.BitstreamName,
				BitstreamUUID:     file.UUID,
				BitstreamChecksum: file.Checksum,
			})
		}

		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize sample result body: %w", err)
		}
		messages = append(messages, SampleMessage{
			Attributes: map[string]queue.Attribute{
				"PackageID":        queue.StringAttribute(fixture.PackageID),
				"SubmissionSource": queue.StringAttribute(fixture.Source),
			},
			Body: string(encoded),
		})
	}
	return messages, nil
}

// LoadSampleMessages sends generated sample messages to queueName and
// returns how many were sent.
func LoadSampleMessages(ctx context.Context, queues queue.Adapter, queueName string, messages []SampleMessage) (int, error) {
	for i, msg := range messages {
		if _, err := queues.Send(ctx, queueName, msg.Attributes, msg.Body); err != nil {
			return i, fmt.Errorf("failed to send sample message to queue '%s': %w", queueName, err)
		}
	}
	slog.Info("Sample messages loaded", "queue", queueName, "count", len(messages))
	return len(messages), nil
}

func readFixtureFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read fixture file '%s': %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse fixture file '%s': %w", path, err)
	}
	return nil
}

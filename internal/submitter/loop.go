package submitter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"go.dspacesubmit.tech/internal/common/metrics"
	"go.dspacesubmit.tech/internal/config"
	"go.dspacesubmit.tech/internal/queue"
)

// maxBatchSize is the most messages one poll may return.
const maxBatchSize = 10

// Processor runs the message loop: poll the input queue, process each
// message sequentially, publish and verify its result, delete the input.
// Processing is single-threaded; a halt-class error stops the loop with the
// offending input left in the queue.
type Processor struct {
	queues queue.Adapter
	repo   Repository
	store  ObjectStore
	cfg    *config.Config
}

// NewProcessor creates a message loop processor.
func NewProcessor(queues queue.Adapter, repo Repository, store ObjectStore, cfg *config.Config) *Processor {
	return &Processor{
		queues: queues,
		repo:   repo,
		store:  store,
		cfg:    cfg,
	}
}

// Run polls inputQueue until a poll returns no messages, then exits cleanly.
// One login per batch covers every message in it. Any error return is a
// halt: the in-flight input message is not deleted and will reappear after
// its visibility timeout expires.
func (p *Processor) Run(ctx context.Context, inputQueue string, wait, visibility int32) error {
	runID := uuid.NewString()
	slog.Info("Message loop starting", "run", runID, "inputQueue", inputQueue,
		"wait", wait, "visibility", visibility)

	for {
		messages, err := p.queues.Receive(ctx, inputQueue, maxBatchSize, wait, visibility)
		if err != nil {
			metrics.ReceiveErrors.Inc()
			return fmt.Errorf("failed to receive from queue '%s': %w", inputQueue, err)
		}
		if len(messages) == 0 {
			slog.Info("No messages received, message loop exiting", "run", runID)
			return nil
		}
		slog.Info("Received batch", "run", runID, "messages", len(messages))

		if !p.cfg.SkipProcessing {
			if err := p.repo.Login(ctx, p.cfg.DSpaceUser, p.cfg.DSpacePassword); err != nil {
				return fmt.Errorf("DSpace login failed: %w", err)
			}
		}

		for _, msg := range messages {
			if err := p.processMessage(ctx, inputQueue, msg); err != nil {
				return err
			}
		}
	}
}

func (p *Processor) processMessage(ctx context.Context, inputQueue string, msg queue.Message) error {
	start := time.Now()
	slog.Debug("Processing message", "message", msg.ID)

	if p.cfg.SkipProcessing {
		slog.Info("SKIP_PROCESSING is set, deleting message without processing",
			"message", msg.ID)
		if err := p.deleteInput(ctx, inputQueue, msg); err != nil {
			return err
		}
		metrics.SubmissionsProcessed.WithLabelValues("skipped").Inc()
		return nil
	}

	submission, err := FromMessage(msg, p.cfg)
	if err != nil {
		return err
	}
	if err := submission.Submit(ctx, p.repo, p.store); err != nil {
		return err
	}

	body, err := json.Marshal(submission.Result)
	if err != nil {
		return fmt.Errorf("failed to serialize result message for '%s': %w", msg.ID, err)
	}

	sent, err := p.queues.Send(ctx, submission.ResultQueue, submission.ResultAttributes, string(body))
	if err != nil {
		return fmt.Errorf("failed to send result message to queue '%s': %w",
			submission.ResultQueue, err)
	}
	if !VerifySent(string(body), sent) {
		return &ResultPublishError{
			Attributes:      submission.ResultAttributes,
			Body:            string(body),
			ResultQueue:     submission.ResultQueue,
			SubmitMessageID: msg.ID,
		}
	}
	metrics.ResultMessagesSent.WithLabelValues(submission.ResultQueue).Inc()

	if err := p.deleteInput(ctx, inputQueue, msg); err != nil {
		return err
	}

	outcome := "error"
	if _, ok := submission.Result.(SuccessResult); ok {
		outcome = "success"
	}
	metrics.SubmissionsProcessed.WithLabelValues(outcome).Inc()
	metrics.SubmissionDuration.Observe(time.Since(start).Seconds())
	slog.Info("Message processed", "message", msg.ID, "result", outcome,
		"resultQueue", submission.ResultQueue)
	return nil
}

func (p *Processor) deleteInput(ctx context.Context, inputQueue string, msg queue.Message) error {
	if err := p.queues.Delete(ctx, inputQueue, msg.ReceiptHandle); err != nil {
		metrics.DeleteErrors.Inc()
		return fmt.Errorf("failed to delete message '%s' from queue '%s': %w",
			msg.ID, inputQueue, err)
	}
	return nil
}

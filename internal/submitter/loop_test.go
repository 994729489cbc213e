package submitter

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"go.dspacesubmit.tech/internal/objectstore"
	"go.dspacesubmit.tech/internal/queue"
)

// sentMessage records one Send call on the fake adapter.
type sentMessage struct {
	Queue      string
	Attributes map[string]queue.Attribute
	Body       string
}

// fakeAdapter is an in-memory queue service. Receive drains pending messages
// in order; Send computes the same body digest the real service would.
type fakeAdapter struct {
	pending map[string][]queue.Message
	sent    []sentMessage
	deleted []string

	receiveErr error
	sendErr    error
	deleteErr  error

	// corruptDigest makes Send return a digest that cannot match
	corruptDigest bool
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{pending: make(map[string][]queue.Message)}
}

func (f *fakeAdapter) Receive(ctx context.Context, queueName string, max, wait, visibility int32) ([]queue.Message, error) {
	if f.receiveErr != nil {
		return nil, f.receiveErr
	}
	messages := f.pending[queueName]
	if int32(len(messages)) > max {
		f.pending[queueName] = messages[max:]
		return messages[:max], nil
	}
	f.pending[queueName] = nil
	return messages, nil
}

func (f *fakeAdapter) Send(ctx context.Context, queueName string, attributes map[string]queue.Attribute, body string) (*queue.SendResult, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, sentMessage{Queue: queueName, Attributes: attributes, Body: body})
	digest := md5.Sum([]byte(body))
	md5Hex := hex.EncodeToString(digest[:])
	if f.corruptDigest {
		md5Hex = "0000deadbeef"
	}
	return &queue.SendResult{
		MessageID: fmt.Sprintf("sent-%02d", len(f.sent)),
		MD5OfBody: md5Hex,
	}, nil
}

func (f *fakeAdapter) Delete(ctx context.Context, queueName, receiptHandle string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, receiptHandle)
	return nil
}

func (f *fakeAdapter) CreateQueue(ctx context.Context, name string) (string, error) {
	return "https://sqs.test/" + name, nil
}

func newTestProcessor(adapter *fakeAdapter, repo *fakeRepo) *Processor {
	return NewProcessor(adapter, repo, objectstore.NewReader(), testConfig())
}

func TestRunProcessesBatchAndDrains(t *testing.T) {
	adapter := newFakeAdapter()
	for i := range 3 {
		msg := testMessage(goodBody)
		msg.ID = fmt.Sprintf("msg-%02d", i)
		msg.ReceiptHandle = fmt.Sprintf("rh-%02d", i)
		adapter.pending["test_queue_with_messages"] = append(
			adapter.pending["test_queue_with_messages"], msg)
	}
	repo := &fakeRepo{}

	err := newTestProcessor(adapter, repo).Run(context.Background(), "test_queue_with_messages", 0, 0)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// one result per input, all inputs deleted
	if len(adapter.sent) != 3 {
		t.Fatalf("expected 3 result messages, got %d", len(adapter.sent))
	}
	if len(adapter.deleted) != 3 {
		t.Fatalf("expected 3 inputs deleted, got %d", len(adapter.deleted))
	}
	if len(adapter.pending["test_queue_with_messages"]) != 0 {
		t.Error("input queue should be drained")
	}

	for _, sent := range adapter.sent {
		if sent.Queue != "empty_result_queue" {
			t.Errorf("result sent to wrong queue %s", sent.Queue)
		}
		var result SuccessResult
		if err := json.Unmarshal([]byte(sent.Body), &result); err != nil {
			t.Fatalf("result body is not valid JSON: %v", err)
		}
		if result.ResultType != "success" || result.ItemHandle != "0000/item01" {
			t.Errorf("unexpected result %+v", result)
		}
		if len(sent.Attributes) != 2 {
			t.Errorf("result attributes must be PackageID and SubmissionSource only, got %v",
				sent.Attributes)
		}
	}

	if repo.loginCalls != 1 {
		t.Errorf("expected one login for the batch, got %d", repo.loginCalls)
	}
}

func TestRunEmptyQueueExitsCleanly(t *testing.T) {
	adapter := newFakeAdapter()
	repo := &fakeRepo{}

	if err := newTestProcessor(adapter, repo).Run(context.Background(), "test_queue_with_messages", 0, 0); err != nil {
		t.Fatalf("Run on empty queue failed: %v", err)
	}
	if repo.loginCalls != 0 {
		t.Error("no login expected for an empty queue")
	}
}

func TestRunReportContinueOnBadBody(t *testing.T) {
	adapter := newFakeAdapter()
	adapter.pending["test_queue_with_messages"] = []queue.Message{testMessage("not json")}

	err := newTestProcessor(adapter, &fakeRepo{}).Run(context.Background(), "test_queue_with_messages", 0, 0)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(adapter.sent) != 1 {
		t.Fatalf("expected 1 result message, got %d", len(adapter.sent))
	}
	var result string
	if err := json.Unmarshal([]byte(adapter.sent[0].Body), &result); err != nil {
		t.Fatalf("expected JSON string body, got %q", adapter.sent[0].Body)
	}
	if !strings.Contains(result, "did not conform to the DSS specification") {
		t.Errorf("unexpected result %q", result)
	}
	if len(adapter.deleted) != 1 {
		t.Error("input should be deleted after the result is verified")
	}
}

func TestRunHaltsOnInvalidResultQueue(t *testing.T) {
	adapter := newFakeAdapter()
	msg := testMessage(goodBody)
	msg.Attributes["OutputQueue"] = queue.StringAttribute("untrusted_queue")
	adapter.pending["test_queue_with_messages"] = []queue.Message{msg}
	repo := &fakeRepo{}

	err := newTestProcessor(adapter, repo).Run(context.Background(), "test_queue_with_messages", 0, 0)
	var queueErr *InvalidResultQueueError
	if !errors.As(err, &queueErr) {
		t.Fatalf("expected InvalidResultQueueError, got %v", err)
	}
	if len(adapter.sent) != 0 {
		t.Error("halt-silent must not publish a result")
	}
	if len(adapter.deleted) != 0 {
		t.Error("halted input must stay in the queue")
	}
	if len(repo.attached) != 0 {
		t.Error("no repository calls expected before validation passes")
	}
}

func TestRunHaltsOnTimeout(t *testing.T) {
	adapter := newFakeAdapter()
	adapter.pending["test_queue_with_messages"] = []queue.Message{testMessage(goodBody)}
	repo := &fakeRepo{collectionErr: context.DeadlineExceeded}

	err := newTestProcessor(adapter, repo).Run(context.Background(), "test_queue_with_messages", 0, 0)
	var timeoutErr *DSpaceTimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected DSpaceTimeoutError, got %v", err)
	}
	if len(adapter.sent) != 0 {
		t.Error("timeout must not publish a result")
	}
	if len(adapter.deleted) != 0 {
		t.Error("halted input must stay in the queue")
	}
}

func TestRunHaltsOnVerifyMismatch(t *testing.T) {
	adapter := newFakeAdapter()
	adapter.corruptDigest = true
	adapter.pending["test_queue_with_messages"] = []queue.Message{testMessage(goodBody)}

	err := newTestProcessor(adapter, &fakeRepo{}).Run(context.Background(), "test_queue_with_messages", 0, 0)
	var publishErr *ResultPublishError
	if !errors.As(err, &publishErr) {
		t.Fatalf("expected ResultPublishError, got %v", err)
	}
	if publishErr.SubmitMessageID != "msg-01" {
		t.Errorf("error should carry the submit message ID: %+v", publishErr)
	}
	if len(adapter.deleted) != 0 {
		t.Error("unverified input must not be deleted")
	}
}

func TestRunHaltsOnLoginFailure(t *testing.T) {
	adapter := newFakeAdapter()
	adapter.pending["test_queue_with_messages"] = []queue.Message{testMessage(goodBody)}
	repo := &fakeRepo{loginErr: errors.New("invalid credentials")}

	err := newTestProcessor(adapter, repo).Run(context.Background(), "test_queue_with_messages", 0, 0)
	if err == nil || !strings.Contains(err.Error(), "login failed") {
		t.Fatalf("expected login failure, got %v", err)
	}
	if len(adapter.sent) != 0 || len(adapter.deleted) != 0 {
		t.Error("login failure must not publish or delete")
	}
}

func TestRunHaltsOnReceiveError(t *testing.T) {
	adapter := newFakeAdapter()
	adapter.receiveErr = errors.New("service unavailable")

	err := newTestProcessor(adapter, &fakeRepo{}).Run(context.Background(), "test_queue_with_messages", 0, 0)
	if err == nil {
		t.Fatal("expected error from failing receive")
	}
}

func TestRunSkipProcessingDrainsWithoutRepositoryCalls(t *testing.T) {
	adapter := newFakeAdapter()
	adapter.pending["test_queue_with_messages"] = []queue.Message{
		testMessage(goodBody),
		testMessage("not even json"),
	}
	repo := &fakeRepo{}

	cfg := testConfig()
	cfg.SkipProcessing = true
	processor := NewProcessor(adapter, repo, objectstore.NewReader(), cfg)

	if err := processor.Run(context.Background(), "test_queue_with_messages", 0, 0); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if repo.loginCalls != 0 || len(repo.attached) != 0 {
		t.Error("skip mode must not touch the repository")
	}
	if len(adapter.sent) != 0 {
		t.Error("skip mode must not publish results")
	}
	if len(adapter.deleted) != 2 {
		t.Errorf("skip mode must delete inputs, got %d deletes", len(adapter.deleted))
	}
}

func TestRunDeleteFailureHalts(t *testing.T) {
	adapter := newFakeAdapter()
	adapter.deleteErr = errors.New("receipt handle expired")
	adapter.pending["test_queue_with_messages"] = []queue.Message{testMessage(goodBody)}

	err := newTestProcessor(adapter, &fakeRepo{}).Run(context.Background(), "test_queue_with_messages", 0, 0)
	if err == nil || !strings.Contains(err.Error(), "failed to delete") {
		t.Fatalf("expected delete failure, got %v", err)
	}
}

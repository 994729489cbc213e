// Package submitter implements the submission processing pipeline: parsing
// submit messages, executing them against the repository, and running the
// message loop that publishes verified results.
package submitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.dspacesubmit.tech/internal/common/metrics"
	"go.dspacesubmit.tech/internal/config"
	"go.dspacesubmit.tech/internal/dspace"
	"go.dspacesubmit.tech/internal/objectstore"
	"go.dspacesubmit.tech/internal/queue"
)

// timeNow is swapped in tests to pin error timestamps.
var timeNow = time.Now

// Repository is the subset of the DSpace client a submission drives.
type Repository interface {
	BaseURL() string
	Login(ctx context.Context, user, password string) error
	GetCollectionByHandle(ctx context.Context, handle string) (string, error)
	CreateItem(ctx context.Context, collectionUUID string, item *dspace.Item) error
	AttachBitstream(ctx context.Context, itemUUID string, bs *dspace.Bitstream, payload io.Reader) error
	DeleteItem(ctx context.Context, uuid string) error
	DeleteBitstream(ctx context.Context, uuid string) error
}

// ObjectStore opens URI-addressed byte streams for metadata documents and
// bitstream payloads.
type ObjectStore interface {
	Open(ctx context.Context, uri string) (io.ReadCloser, error)
}

// FileDescriptor is one entry of the Files list in a submission message body.
// Pointers distinguish a missing key from an empty value.
type FileDescriptor struct {
	BitstreamName        *string `json:"BitstreamName"`
	FileLocation         *string `json:"FileLocation"`
	BitstreamDescription string  `json:"BitstreamDescription,omitempty"`
}

// messageBody is the expected shape of a submission message body. All keys
// are required; a body missing any of them does not conform.
type messageBody struct {
	SubmissionSystem *string           `json:"SubmissionSystem"`
	CollectionHandle *string           `json:"CollectionHandle"`
	MetadataLocation *string           `json:"MetadataLocation"`
	Files            *[]FileDescriptor `json:"Files"`
}

// SuccessResult is the result message body for a published item.
type SuccessResult struct {
	ResultType   string            `json:"ResultType"`
	ItemHandle   string            `json:"ItemHandle"`
	LastModified string            `json:"lastModified"`
	Bitstreams   []BitstreamResult `json:"Bitstreams"`
}

// BitstreamResult is one entry of a success result's bitstream manifest.
type BitstreamResult struct {
	BitstreamName     string          `json:"BitstreamName"`
	BitstreamUUID     string          `json:"BitstreamUUID"`
	BitstreamChecksum dspace.CheckSum `json:"BitstreamChecksum"`
}

// ErrorResult is the result message body for a failed submission.
type ErrorResult struct {
	ResultType         string   `json:"ResultType"`
	ErrorTimestamp     string   `json:"ErrorTimestamp"`
	ErrorInfo          string   `json:"ErrorInfo"`
	DSpaceResponse     string   `json:"DSpaceResponse"`
	ExceptionTraceback []string `json:"ExceptionTraceback"`
}

// Submission is the plan parsed from one submit message. Submit executes the
// plan and leaves the outcome in Result; the message loop serializes Result
// to the result queue named by ResultQueue.
type Submission struct {
	Destination      string
	CollectionHandle string
	MetadataLocation string
	Files            []FileDescriptor

	ResultAttributes map[string]queue.Attribute
	ResultQueue      string

	// Result holds the result message body: a SuccessResult, an ErrorResult,
	// or a plain string for a nonconforming submission message. It is set
	// before Submit when the body failed to parse.
	Result any

	timeout time.Duration
}

// FromMessage parses and validates one submit message.
//
// A missing or disallowed OutputQueue attribute returns
// InvalidResultQueueError; a missing PackageID or SubmissionSource returns
// MissingAttributeError. A body that is not valid JSON or lacks a required
// key is not an error: the returned submission carries a plain-string result
// explaining the problem, and Submit becomes a no-op.
func FromMessage(msg queue.Message, cfg *config.Config) (*Submission, error) {
	resultQueue, ok := msg.Attribute("OutputQueue")
	if !ok || !cfg.AllowsOutputQueue(resultQueue) {
		return nil, &InvalidResultQueueError{
			MessageID:   msg.ID,
			ResultQueue: resultQueue,
			InputQueue:  cfg.InputQueue,
			Allowed:     cfg.OutputQueues,
		}
	}

	attributes := make(map[string]queue.Attribute, 2)
	for _, name := range []string{"PackageID", "SubmissionSource"} {
		attr, ok := msg.Attributes[name]
		if !ok {
			return nil, &MissingAttributeError{
				MessageID:  msg.ID,
				Attribute:  name,
				InputQueue: cfg.InputQueue,
			}
		}
		attributes[name] = attr
	}

	submission := &Submission{
		ResultAttributes: attributes,
		ResultQueue:      resultQueue,
		timeout:          cfg.DSpaceTimeout,
	}

	var body messageBody
	if err := json.Unmarshal([]byte(msg.Body), &body); err != nil ||
		body.SubmissionSystem == nil || body.CollectionHandle == nil ||
		body.MetadataLocation == nil || body.Files == nil {
		submission.Result = fmt.Sprintf("Submission message did not conform to the DSS "+
			"specification. Message body provided was: '%s'", msg.Body)
		return submission, nil
	}

	submission.Destination = *body.SubmissionSystem
	submission.CollectionHandle = *body.CollectionHandle
	submission.MetadataLocation = *body.MetadataLocation
	submission.Files = *body.Files
	return submission, nil
}

// Submit publishes the submission to DSpace as a new item with its
// bitstreams and sets Result to the success or error message body.
//
// Classified failures are converted to error results (with repository
// compensation for bitstream failures) and Submit returns nil so the loop
// continues. A repository timeout returns DSpaceTimeoutError and any
// unclassified failure is returned as-is; both halt the loop.
func (s *Submission) Submit(ctx context.Context, repo Repository, store ObjectStore) error {
	if s.Result != nil {
		return nil
	}

	item, err := s.createItem(ctx, store)
	if err == nil {
		err = s.addBitstreams(item)
	}
	if err == nil {
		err = s.postItem(ctx, repo, item)
	}
	if err == nil {
		if err = s.postBitstreams(ctx, repo, store, item); err != nil {
			return s.failPosted(ctx, repo, item, err)
		}
		s.Result = successResult(item)
		return nil
	}

	if dspace.IsTimeout(err) {
		return s.timeoutError(repo, err)
	}

	var itemCreateErr *ItemCreateError
	var bitstreamAddErr *BitstreamAddError
	var itemPostErr *ItemPostError
	switch {
	case errors.As(err, &itemCreateErr):
		s.setErrorResult(itemCreateErr.Error(), "", err)
	case errors.As(err, &bitstreamAddErr):
		s.setErrorResult(bitstreamAddErr.Error(), "", err)
	case errors.As(err, &itemPostErr):
		s.setErrorResult(itemPostErr.Error(), itemPostErr.DSpaceError, err)
	default:
		slog.Error("Unexpected error, aborting DSpace Submission Service processing",
			"error", err)
		return err
	}
	return nil
}

// failPosted handles a failure after the item was posted: convert the
// classified kinds to error results and remove the partial repository state.
func (s *Submission) failPosted(ctx context.Context, repo Repository, item *dspace.Item, err error) error {
	if dspace.IsTimeout(err) {
		return s.timeoutError(repo, err)
	}

	var openErr *BitstreamOpenError
	var postErr *BitstreamPostError
	switch {
	case errors.As(err, &openErr):
		s.setErrorResult(openErr.Error(), "", err)
	case errors.As(err, &postErr):
		s.setErrorResult(postErr.Error(), postErr.DSpaceError, err)
	default:
		slog.Error("Unexpected error, aborting DSpace Submission Service processing",
			"error", err)
		return err
	}

	return cleanUpPartialSuccess(ctx, repo, item)
}

func (s *Submission) timeoutError(repo Repository, cause error) error {
	return &DSpaceTimeoutError{
		DSpaceURL:  repo.BaseURL(),
		Timeout:    s.timeout,
		Attributes: s.ResultAttributes,
		cause:      cause,
	}
}

// metadataDocument is the expected shape of the document at MetadataLocation.
// Metadata is a pointer so a document without the key is distinguishable from
// an empty entry list.
type metadataDocument struct {
	Metadata *[]metadataDocEntry `json:"metadata"`
}

type metadataDocEntry struct {
	Key      *string `json:"key"`
	Value    string  `json:"value"`
	Language string  `json:"language"`
}

// createItem builds the local item plan from the metadata document.
func (s *Submission) createItem(ctx context.Context, store ObjectStore) (*dspace.Item, error) {
	slog.Debug("Creating local item instance from submission message",
		"metadataLocation", s.MetadataLocation)

	f, err := store.Open(ctx, s.MetadataLocation)
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata document '%s': %w",
			s.MetadataLocation, err)
	}
	defer f.Close()

	var doc metadataDocument
	if err := json.NewDecoder(f).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse metadata document '%s': %w",
			s.MetadataLocation, err)
	}

	if doc.Metadata == nil {
		return nil, &ItemCreateError{MetadataLocation: s.MetadataLocation}
	}

	item := &dspace.Item{}
	for _, entry := range *doc.Metadata {
		if entry.Key == nil {
			return nil, &ItemCreateError{MetadataLocation: s.MetadataLocation}
		}
		item.Metadata = append(item.Metadata, dspace.MetadataEntry{
			Key:      *entry.Key,
			Value:    entry.Value,
			Language: entry.Language,
		})
	}
	return item, nil
}

// addBitstreams attaches bitstream plans from the Files list to the item.
func (s *Submission) addBitstreams(item *dspace.Item) error {
	slog.Debug("Adding bitstreams to local item instance from submission message",
		"files", len(s.Files))
	for _, file := range s.Files {
		if file.BitstreamName == nil || file.FileLocation == nil {
			return &BitstreamAddError{}
		}
		item.Bitstreams = append(item.Bitstreams, &dspace.Bitstream{
			Name:         *file.BitstreamName,
			Description:  file.BitstreamDescription,
			FileLocation: *file.FileLocation,
		})
	}
	return nil
}

// postItem posts the item with its metadata into the named collection.
func (s *Submission) postItem(ctx context.Context, repo Repository, item *dspace.Item) error {
	collectionUUID, err := repo.GetCollectionByHandle(ctx, s.CollectionHandle)
	if err == nil {
		err = repo.CreateItem(ctx, collectionUUID, item)
	}
	if err != nil {
		if dspace.IsTimeout(err) {
			return err
		}
		var httpErr *dspace.HTTPError
		if errors.As(err, &httpErr) {
			return &ItemPostError{
				CollectionHandle: s.CollectionHandle,
				DSpaceError:      httpErr.Body,
				cause:            err,
			}
		}
		return err
	}

	slog.Debug("Posted item to DSpace", "handle", item.Handle)
	return nil
}

// postBitstreams streams every bitstream source to the posted item, in the
// order the Files list gave them.
func (s *Submission) postBitstreams(ctx context.Context, repo Repository, store ObjectStore, item *dspace.Item) error {
	slog.Debug("Posting bitstreams to item in DSpace",
		"count", len(item.Bitstreams), "handle", item.Handle)
	for _, bs := range item.Bitstreams {
		if err := s.postBitstream(ctx, repo, store, item, bs); err != nil {
			return err
		}
	}
	return nil
}

func (s *Submission) postBitstream(ctx context.Context, repo Repository, store ObjectStore, item *dspace.Item, bs *dspace.Bitstream) error {
	payload, err := store.Open(ctx, bs.FileLocation)
	if err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			return &BitstreamOpenError{
				FileLocation: bs.FileLocation,
				ItemHandle:   item.Handle,
				cause:        err,
			}
		}
		return err
	}
	defer payload.Close()

	if err := repo.AttachBitstream(ctx, item.UUID, bs, payload); err != nil {
		if dspace.IsTimeout(err) {
			return err
		}
		var httpErr *dspace.HTTPError
		if errors.As(err, &httpErr) {
			return &BitstreamPostError{
				BitstreamName: bs.Name,
				ItemHandle:    item.Handle,
				DSpaceError:   httpErr.Body,
				cause:         err,
			}
		}
		return err
	}

	metrics.BitstreamsPosted.Inc()
	slog.Debug("Posted bitstream to item", "name", bs.Name, "handle", item.Handle,
		"uuid", bs.UUID)
	return nil
}

// cleanUpPartialSuccess deletes every posted bitstream and then the item.
// The ordering is strict: bitstreams first, item last.
func cleanUpPartialSuccess(ctx context.Context, repo Repository, item *dspace.Item) error {
	slog.Info("Item was partially posted to DSpace, cleaning up", "handle", item.Handle)
	metrics.CompensationRuns.Inc()
	for _, bs := range item.Bitstreams {
		if bs.UUID == "" {
			continue
		}
		if err := repo.DeleteBitstream(ctx, bs.UUID); err != nil {
			return fmt.Errorf("failed to delete bitstream '%s' during cleanup of item '%s': %w",
				bs.UUID, item.Handle, err)
		}
		slog.Info("Bitstream deleted from DSpace", "uuid", bs.UUID)
	}
	if err := repo.DeleteItem(ctx, item.UUID); err != nil {
		return fmt.Errorf("failed to delete item '%s' during cleanup: %w", item.Handle, err)
	}
	slog.Info("Item deleted from DSpace", "handle", item.Handle)
	return nil
}

func successResult(item *dspace.Item) SuccessResult {
	result := SuccessResult{
		ResultType:   "success",
		ItemHandle:   item.Handle,
		LastModified: item.LastModified,
		Bitstreams:   []BitstreamResult{},
	}
	for _, bs := range item.Bitstreams {
		result.Bitstreams = append(result.Bitstreams, BitstreamResult{
			BitstreamName:     bs.Name,
			BitstreamUUID:     bs.UUID,
			BitstreamChecksum: bs.CheckSum,
		})
	}
	return result
}

func (s *Submission) setErrorResult(info, dspaceResponse string, cause error) {
	if dspaceResponse == "" {
		dspaceResponse = "N/A"
	}
	s.Result = ErrorResult{
		ResultType:         "error",
		ErrorTimestamp:     timeNow().UTC().Format("2006-01-02 15:04:05"),
		ErrorInfo:          info,
		DSpaceResponse:     dspaceResponse,
		ExceptionTraceback: traceLines(cause),
	}
}

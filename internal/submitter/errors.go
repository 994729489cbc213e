package submitter

import (
	"fmt"
	"strings"
	"time"

	"go.dspacesubmit.tech/internal/queue"
)

// The submission error taxonomy is a closed set. Each kind carries the policy
// the message loop applies:
//
//   - report-continue: convert to an error result message, publish, delete input
//   - halt-report:     propagate out of the loop with identifying context
//   - halt-silent:     propagate without publishing anything
//
// ItemCreateError, BitstreamAddError and ItemPostError are report-continue.
// BitstreamOpenError and BitstreamPostError are report-continue after
// compensation. DSpaceTimeoutError is halt-report. The remaining kinds are
// halt-silent.

// ItemCreateError is raised when the metadata document cannot be turned into
// item metadata entries.
type ItemCreateError struct {
	MetadataLocation string
	cause            error
}

func (e *ItemCreateError) Error() string {
	return fmt.Sprintf("Error occurred while creating item metadata entries from file '%s'",
		e.MetadataLocation)
}

func (e *ItemCreateError) Unwrap() error { return e.cause }

// BitstreamAddError is raised when a file descriptor in the submission message
// is missing a required key.
type BitstreamAddError struct{}

func (e *BitstreamAddError) Error() string {
	return "Error occurred while parsing bitstream information from files listed in " +
		"submission message."
}

// ItemPostError is raised when DSpace rejects the item POST.
type ItemPostError struct {
	CollectionHandle string
	DSpaceError      string
	cause            error
}

func (e *ItemPostError) Error() string {
	return fmt.Sprintf("Error occurred while posting item to DSpace collection '%s'",
		e.CollectionHandle)
}

func (e *ItemPostError) Unwrap() error { return e.cause }

// BitstreamOpenError is raised when a bitstream source URI cannot be opened.
// The posted item and any posted bitstreams are compensated before reporting.
type BitstreamOpenError struct {
	FileLocation string
	ItemHandle   string
	cause        error
}

func (e *BitstreamOpenError) Error() string {
	return fmt.Sprintf("Error occurred while opening file '%s' for bitstream. Item '%s' "+
		"and any bitstreams already posted to it will be deleted",
		e.FileLocation, e.ItemHandle)
}

func (e *BitstreamOpenError) Unwrap() error { return e.cause }

// BitstreamPostError is raised when DSpace rejects a bitstream POST. The
// posted item and any posted bitstreams are compensated before reporting.
type BitstreamPostError struct {
	BitstreamName string
	ItemHandle    string
	DSpaceError   string
	cause         error
}

func (e *BitstreamPostError) Error() string {
	return fmt.Sprintf("Error occurred while posting bitstream '%s' to item in DSpace. "+
		"Item '%s' and any bitstreams already posted to it will be deleted",
		e.BitstreamName, e.ItemHandle)
}

func (e *BitstreamPostError) Unwrap() error { return e.cause }

// DSpaceTimeoutError is raised when the DSpace server exceeds the configured
// timeout. The submission in flight likely left partial state in the
// repository, so the loop halts for operator attention.
type DSpaceTimeoutError struct {
	DSpaceURL  string
	Timeout    time.Duration
	Attributes map[string]queue.Attribute
	cause      error
}

func (e *DSpaceTimeoutError) Error() string {
	return fmt.Sprintf("DSpace server at '%s' took more than %s to respond. Aborting "+
		"DSpace Submission Service processing until this can be investigated.\n"+
		"NOTE: The submission in process when this occurred likely has partially "+
		"published data in DSpace. The package id of the submission was '%s', from "+
		"source '%s'",
		e.DSpaceURL, e.Timeout,
		e.Attributes["PackageID"].StringValue,
		e.Attributes["SubmissionSource"].StringValue)
}

func (e *DSpaceTimeoutError) Unwrap() error { return e.cause }

// InvalidResultQueueError is raised when a submission message names a result
// queue that is missing or not on the allow-list. Publishing cannot be
// trusted, so nothing is reported.
type InvalidResultQueueError struct {
	MessageID   string
	ResultQueue string
	InputQueue  string
	Allowed     []string
}

func (e *InvalidResultQueueError) Error() string {
	return fmt.Sprintf("Aborting DSS processing due to a non-recoverable error:\n"+
		"Error occurred while processing message '%s' from input queue '%s'. Message "+
		"provided invalid result queue name '%s'. Valid result queue names are: %s.",
		e.MessageID, e.InputQueue, e.ResultQueue, strings.Join(e.Allowed, ", "))
}

// MissingAttributeError is raised when a submission message lacks a required
// attribute.
type MissingAttributeError struct {
	MessageID  string
	Attribute  string
	InputQueue string
}

func (e *MissingAttributeError) Error() string {
	return fmt.Sprintf("Aborting DSS processing due to a non-recoverable error:\n"+
		"Error occurred while processing message '%s' from input queue '%s'. Message "+
		"was missing required attribute '%s'.",
		e.MessageID, e.InputQueue, e.Attribute)
}

// ResultPublishError is raised when a result message sent to the result queue
// cannot be verified. The input message is not deleted.
type ResultPublishError struct {
	Attributes      map[string]queue.Attribute
	Body            string
	ResultQueue     string
	SubmitMessageID string
}

func (e *ResultPublishError) Error() string {
	return fmt.Sprintf("Message was not successfully sent to result queue '%s', aborting "+
		"DSpace Submission Service processing until this can be investigated. NOTE: "+
		"The submit message is likely still in the submission queue and may need to "+
		"be manually deleted before processing resumes. Submit message ID: %s. Result "+
		"message attributes: %v. Result message body: %s",
		e.ResultQueue, e.SubmitMessageID, e.Attributes, e.Body)
}

// traceLines flattens an error chain into trimmed one-line entries, outermost
// first, for the ExceptionTraceback field of error results.
func traceLines(err error) []string {
	var lines []string
	for err != nil {
		for _, line := range strings.Split(err.Error(), "\n") {
			if trimmed := strings.TrimSpace(line); trimmed != "" {
				lines = append(lines, strings.ReplaceAll(trimmed, `\"`, "'"))
			}
		}
		type unwrapper interface{ Unwrap() error }
		u, ok := err.(unwrapper)
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return lines
}

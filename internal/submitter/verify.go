package submitter

import (
	"crypto/md5"
	"encoding/hex"

	"go.dspacesubmit.tech/internal/queue"
)

// VerifySent reports whether the queue service accepted the result message
// body intact, by comparing the digest it returned against a local digest of
// the bytes that were sent.
//
// MD5 is a delivery check, not a security property: it is the digest SQS
// itself publishes for the message body, so nothing stronger can be compared
// against.
func VerifySent(body string, sent *queue.SendResult) bool {
	if sent == nil {
		return false
	}
	digest := md5.Sum([]byte(body))
	return hex.EncodeToString(digest[:]) == sent.MD5OfBody
}

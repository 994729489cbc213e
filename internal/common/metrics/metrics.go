package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Submission metrics

	// SubmissionsProcessed tracks submissions by outcome
	SubmissionsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dss",
			Subsystem: "submitter",
			Name:      "submissions_processed_total",
			Help:      "Total submission messages processed",
		},
		[]string{"result"}, // result: success, error, skipped
	)

	// SubmissionDuration tracks end-to-end submission processing duration
	SubmissionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "dss",
			Subsystem: "submitter",
			Name:      "submission_duration_seconds",
			Help:      "Time to process one submission message",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// BitstreamsPosted tracks bitstreams posted to the repository
	BitstreamsPosted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dss",
			Subsystem: "submitter",
			Name:      "bitstreams_posted_total",
			Help:      "Total bitstreams posted to DSpace",
		},
	)

	// CompensationRuns tracks partial-success cleanups
	CompensationRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dss",
			Subsystem: "submitter",
			Name:      "compensation_runs_total",
			Help:      "Total cleanups of partially posted items",
		},
	)

	// Queue metrics

	// ResultMessagesSent tracks verified result messages by queue
	ResultMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dss",
			Subsystem: "queue",
			Name:      "result_messages_sent_total",
			Help:      "Total result messages sent and verified",
		},
		[]string{"queue"},
	)

	// ReceiveErrors tracks failed input queue polls
	ReceiveErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dss",
			Subsystem: "queue",
			Name:      "receive_errors_total",
			Help:      "Total failed receives from the input queue",
		},
	)

	// DeleteErrors tracks failed input message deletes
	DeleteErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dss",
			Subsystem: "queue",
			Name:      "delete_errors_total",
			Help:      "Total failed deletes of input messages",
		},
	)
)

// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Upload outcomes.
const (
	OutcomeSuccess   = "success"
	OutcomeRejected  = "rejected"
	OutcomeBackend   = "backend_error"
	OutcomeTransport = "transport_error"
)

var (
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loan_uploads_total",
			Help: "Total number of upload attempts by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	UploadBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loan_upload_bytes_total",
			Help: "Total number of file bytes sent by upload kind",
		},
		[]string{"kind"},
	)

	UploadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "loan_upload_duration_seconds",
			Help: "Duration of upload requests in seconds",
		},
		[]string{"kind"},
	)

	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loan_submissions_total",
			Help: "Total number of step submissions by repository operation",
		},
		[]string{"operation", "step"},
	)

	SubmissionsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loan_submissions_failed_total",
			Help: "Total number of failed step submissions",
		},
		[]string{"step", "error_code"},
	)

	SubmissionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "loan_submissions_active",
			Help: "Number of step submissions currently in flight",
		},
	)
)

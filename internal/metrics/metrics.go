package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "transferkit",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "transferkit",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 30},
	}, []string{"method", "path"})

	ActiveTransfers = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "transferkit",
		Name:      "active_transfers",
		Help:      "Number of tracked transfers by state.",
	}, []string{"state"})

	DownloadSpeedBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "transferkit",
		Name:      "download_speed_bytes",
		Help:      "Current aggregate download speed in bytes per second.",
	})

	UploadSpeedBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "transferkit",
		Name:      "upload_speed_bytes",
		Help:      "Current aggregate upload speed in bytes per second.",
	})

	DownloadsToReview = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "transferkit",
		Name:      "downloads_to_review",
		Help:      "Finished downloads the user has not looked at yet.",
	})

	TransfersFinishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "transferkit",
		Name:      "transfers_finished_total",
		Help:      "Total number of downloads that reached the complete state, by kind.",
	}, []string{"kind"})

	TransferFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "transferkit",
		Name:      "transfer_failures_total",
		Help:      "Total number of transfers that ended in error, by category.",
	}, []string{"category"})

	TransferRetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "transferkit",
		Name:      "transfer_retries_total",
		Help:      "Total number of transient failures that were scheduled for retry.",
	})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		ActiveTransfers,
		DownloadSpeedBytes,
		UploadSpeedBytes,
		DownloadsToReview,
		TransfersFinishedTotal,
		TransferFailuresTotal,
		TransferRetriesTotal,
	)
}

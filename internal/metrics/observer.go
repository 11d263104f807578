package metrics

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/rescp17/transferkit/pkg/transfer"
)

// Listener turns manager lifecycle events into counters
type Listener struct {
	id string
}

// NewListener creates a listener ready for Manager.AddListener
func NewListener() *Listener {
	return &Listener{id: "metrics-" + uuid.NewString()}
}

func (l *Listener) ID() string { return l.id }

func (l *Listener) OnStateChanged(t transfer.Transfer, from, to transfer.State) {
	if to == transfer.StateError {
		TransferFailuresTotal.WithLabelValues(transfer.Categorize(t.Err()).String()).Inc()
	}
}

func (l *Listener) OnRetryScheduled(transfer.Transfer, int) {
	TransferRetriesTotal.Inc()
}

func (l *Listener) OnDownloadFinished(t transfer.Transfer) {
	TransfersFinishedTotal.WithLabelValues(string(t.Kind())).Inc()
}

// Sample copies the manager's aggregates into the gauges
func Sample(m *transfer.Manager) {
	s := m.Summary()
	ActiveTransfers.Reset()
	for state, n := range s.ByState {
		ActiveTransfers.WithLabelValues(state).Set(float64(n))
	}
	DownloadSpeedBytes.Set(float64(s.DownloadRate))
	UploadSpeedBytes.Set(float64(s.UploadRate))
	DownloadsToReview.Set(float64(s.DownloadsToReview))
}

// Observe samples m every interval until ctx is done
func Observe(ctx context.Context, m *transfer.Manager, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	Sample(m)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			Sample(m)
		}
	}
}

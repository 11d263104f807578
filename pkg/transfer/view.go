package transfer

import (
	"math"
	"time"
)

// View is a point-in-time, serializable picture of one transfer
type View struct {
	ID           string    `json:"id"`
	Kind         Kind      `json:"kind"`
	Name         string    `json:"name"`
	State        string    `json:"state"`
	Progress     int       `json:"progress"`
	Bytes        int64     `json:"bytes"`
	TotalSize    int64     `json:"total_size"`
	DownloadRate int64     `json:"download_rate"`
	UploadRate   int64     `json:"upload_rate"`
	ETASeconds   int64     `json:"eta_seconds"` // -1 when unknown
	SavePath     string    `json:"save_path"`
	CreatedAt    time.Time `json:"created_at"`
	Seeding      bool      `json:"seeding,omitempty"`
	Error        string    `json:"error,omitempty"`
}

// Describe captures a View of t
func Describe(t Transfer) View {
	v := View{
		ID:           t.ID(),
		Kind:         t.Kind(),
		Name:         t.DisplayName(),
		State:        t.State().String(),
		Progress:     t.ProgressPercent(),
		Bytes:        t.BytesTransferred(),
		TotalSize:    t.TotalSize(),
		DownloadRate: t.DownloadRate(),
		UploadRate:   t.UploadRate(),
		ETASeconds:   t.EstimatedSecondsRemaining(),
		SavePath:     t.SavePath(),
		CreatedAt:    t.CreatedAt(),
	}
	if s, ok := t.(Seeder); ok {
		v.Seeding = s.IsSeeding()
	}
	if v.ETASeconds == math.MaxInt64 {
		v.ETASeconds = -1
	}
	if err := t.Err(); err != nil {
		v.Error = err.Error()
	}
	return v
}

// DescribeAll captures a View of each transfer, keeping the order
func DescribeAll(ts []Transfer) []View {
	out := make([]View, 0, len(ts))
	for _, t := range ts {
		out = append(out, Describe(t))
	}
	return out
}

// Summary aggregates the tracked transfers
type Summary struct {
	Total             int            `json:"total"`
	ByState           map[string]int `json:"by_state"`
	Downloading       int            `json:"downloading"`
	Uploading         int            `json:"uploading"`
	Paused            int            `json:"paused"`
	BytesTransferred  int64          `json:"bytes_transferred"`
	BytesExpected     int64          `json:"bytes_expected"`
	DownloadRate      int64          `json:"download_rate"`
	UploadRate        int64          `json:"upload_rate"`
	DownloadsToReview int64          `json:"downloads_to_review"`
}

// Summary computes aggregate figures over one snapshot
func (m *Manager) Summary() Summary {
	s := Summary{ByState: make(map[string]int)}
	for _, t := range m.Snapshot() {
		s.Total++
		st := t.State()
		s.ByState[st.String()]++
		switch st {
		case StateDownloading:
			s.Downloading++
		case StateUploading:
			s.Uploading++
		case StatePaused:
			s.Paused++
		}
		s.BytesTransferred += t.BytesTransferred()
		if size := t.TotalSize(); size > 0 {
			s.BytesExpected += size
		}
		s.DownloadRate += t.DownloadRate()
		s.UploadRate += t.UploadRate()
	}
	s.DownloadsToReview = m.DownloadsToReview()
	return s
}

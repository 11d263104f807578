package transfer

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// StatusFilter selects which transfers a listing shows
type StatusFilter int

const (
	FilterAll StatusFilter = iota
	FilterDownloading
	FilterCompleted
)

// String returns the name accepted by ParseStatusFilter
func (f StatusFilter) String() string {
	switch f {
	case FilterDownloading:
		return "downloading"
	case FilterCompleted:
		return "completed"
	default:
		return "all"
	}
}

// ParseStatusFilter converts a filter name, defaulting to FilterAll for the empty string
func ParseStatusFilter(s string) (StatusFilter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return FilterAll, nil
	case "downloading":
		return FilterDownloading, nil
	case "completed":
		return FilterCompleted, nil
	default:
		return FilterAll, fmt.Errorf("unknown status filter %q", s)
	}
}

// Match reports whether t passes the filter
func (f StatusFilter) Match(t Transfer) bool {
	switch f {
	case FilterDownloading:
		return !t.IsComplete()
	case FilterCompleted:
		return t.IsComplete()
	default:
		return true
	}
}

// Predicates for ActiveCount
var (
	IsDownloading = func(t Transfer) bool { return t.State() == StateDownloading }
	IsUploading   = func(t Transfer) bool { return t.State() == StateUploading }
	IsActive      = func(t Transfer) bool { return !t.State().IsTerminal() }
)

// Pausable is implemented by transfers whose payload can be suspended without losing progress
type Pausable interface {
	Pause() bool
	Resume() bool
}

// Seeder is implemented by transfers that keep uploading after they complete
type Seeder interface {
	IsSeeding() bool
}

// Manager tracks the live transfers. It implements Registry so transfers can unregister
// themselves and publish lifecycle events.
type Manager struct {
	mu        sync.RWMutex
	transfers map[string]Transfer

	eventsMu  sync.RWMutex
	listeners []Listener

	downloadsToReview atomic.Int64
	logger            *slog.Logger
}

// NewManager creates an empty manager
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		transfers: make(map[string]Transfer),
		logger:    logger,
	}
}

// Register starts tracking t. A transfer can be registered once.
func (m *Manager) Register(t Transfer) error {
	if t == nil {
		return fmt.Errorf("%w: nil transfer", ErrInvalidConfiguration)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.transfers[t.ID()]; exists {
		return fmt.Errorf("%w: %s", ErrTransferAlreadyExists, t.ID())
	}
	m.transfers[t.ID()] = t
	m.logger.Debug("Registered transfer", "transfer", t.ID(), "kind", string(t.Kind()), "name", t.DisplayName())
	return nil
}

// Remove stops tracking t. Removing an unknown transfer is a no-op.
func (m *Manager) Remove(t Transfer) {
	if t == nil {
		return
	}
	m.Unregister(t.ID())
}

// Unregister stops tracking the transfer with the given id
func (m *Manager) Unregister(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.transfers[id]; ok {
		delete(m.transfers, id)
		m.logger.Debug("Unregistered transfer", "transfer", id)
	}
}

// Cancel removes the transfer with the given id, canceling it unless it is complete
func (m *Manager) Cancel(id string, deleteData bool) error {
	t, ok := m.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrTransferNotFound, id)
	}
	t.Remove(deleteData)
	return nil
}

// Pause suspends the transfer with the given id
func (m *Manager) Pause(id string) error {
	p, err := m.pausable(id)
	if err != nil {
		return err
	}
	if !p.Pause() {
		return fmt.Errorf("%w: %s", ErrInvalidStateTransition, id)
	}
	return nil
}

// Resume restarts a paused transfer
func (m *Manager) Resume(id string) error {
	p, err := m.pausable(id)
	if err != nil {
		return err
	}
	if !p.Resume() {
		return fmt.Errorf("%w: %s", ErrInvalidStateTransition, id)
	}
	return nil
}

func (m *Manager) pausable(id string) (Pausable, error) {
	t, ok := m.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTransferNotFound, id)
	}
	p, ok := t.(Pausable)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotPausable, id)
	}
	return p, nil
}

// PauseAll pauses every pausable transfer that is downloading and returns how many it paused
func (m *Manager) PauseAll() int {
	n := 0
	for _, t := range m.Snapshot() {
		if p, ok := t.(Pausable); ok && p.Pause() {
			n++
		}
	}
	if n > 0 {
		m.logger.Info("Paused transfers", "count", n)
	}
	return n
}

// ResumeAll resumes every paused transfer and returns how many it resumed
func (m *Manager) ResumeAll() int {
	n := 0
	for _, t := range m.Snapshot() {
		if p, ok := t.(Pausable); ok && p.Resume() {
			n++
		}
	}
	if n > 0 {
		m.logger.Info("Resumed transfers", "count", n)
	}
	return n
}

// ClearComplete stops tracking finished transfers. Their files stay on disk.
func (m *Manager) ClearComplete() int {
	n := 0
	for _, t := range m.Snapshot() {
		if t.IsComplete() {
			t.Remove(false)
			m.Unregister(t.ID())
			n++
		}
	}
	return n
}

// Get looks up a transfer by id
func (m *Manager) Get(id string) (Transfer, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.transfers[id]
	return t, ok
}

// Count returns the number of tracked transfers
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.transfers)
}

// Snapshot returns a point-in-time copy of the tracked transfers.
// The lock is only held while copying.
func (m *Manager) Snapshot() []Transfer {
	m.mu.RLock()
	out := make([]Transfer, 0, len(m.transfers))
	for _, t := range m.transfers {
		out = append(out, t)
	}
	m.mu.RUnlock()
	return out
}

// Filter returns the transfers passing f, newest first
func (m *Manager) Filter(f StatusFilter) []Transfer {
	var out []Transfer
	for _, t := range m.Snapshot() {
		if f.Match(t) {
			out = append(out, t)
		}
	}
	SortNewestFirst(out)
	return out
}

// SortNewestFirst orders by creation time descending, then by id
func SortNewestFirst(ts []Transfer) {
	sort.SliceStable(ts, func(i, j int) bool {
		ci, cj := ts[i].CreatedAt(), ts[j].CreatedAt()
		if !ci.Equal(cj) {
			return ci.After(cj)
		}
		return ts[i].ID() < ts[j].ID()
	})
}

// AggregateDownloadRate sums the download rate of every tracked transfer
func (m *Manager) AggregateDownloadRate() int64 {
	var sum int64
	for _, t := range m.Snapshot() {
		sum += t.DownloadRate()
	}
	return sum
}

// AggregateUploadRate sums the upload rate of every tracked transfer
func (m *Manager) AggregateUploadRate() int64 {
	var sum int64
	for _, t := range m.Snapshot() {
		sum += t.UploadRate()
	}
	return sum
}

// ActiveCount counts tracked transfers matching pred
func (m *Manager) ActiveCount(pred func(Transfer) bool) int {
	n := 0
	for _, t := range m.Snapshot() {
		if pred(t) {
			n++
		}
	}
	return n
}

// DownloadsToReview returns how many downloads finished since the last clear
func (m *Manager) DownloadsToReview() int64 {
	return m.downloadsToReview.Load()
}

// ClearDownloadsToReview resets the finished-downloads counter
func (m *Manager) ClearDownloadsToReview() {
	m.downloadsToReview.Store(0)
}

// StateChanged fans a state change out to the listeners
func (m *Manager) StateChanged(t Transfer, from, to State) {
	m.logger.Debug("Transfer state changed", "transfer", t.ID(), "from", from.String(), "to", to.String())
	m.notify(func(l Listener) { l.OnStateChanged(t, from, to) })
}

// DownloadFinished bumps the review counter and notifies the listeners
func (m *Manager) DownloadFinished(t Transfer) {
	m.downloadsToReview.Add(1)
	m.logger.Info("Download finished", "name", t.DisplayName(), "path", t.SavePath())
	m.notify(func(l Listener) { l.OnDownloadFinished(t) })
}

package transfer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Kind names the backend a transfer runs on
type Kind string

const (
	KindHTTP         Kind = "http"
	KindPeerHTTP     Kind = "peer-http"
	KindPeerUpload   Kind = "peer-upload"
	KindMedia        Kind = "media"
	KindTorrentFetch Kind = "torrent-fetch"
	KindTorrent      Kind = "torrent"
)

// Direction tells which aggregate rate a transfer contributes to
type Direction int

const (
	Download Direction = iota
	Upload
)

// Transfer is the uniform view over every transfer kind.
type Transfer interface {
	ID() string
	Kind() Kind
	DisplayName() string
	CreatedAt() time.Time
	State() State
	TotalSize() int64
	BytesTransferred() int64
	SavePath() string
	DownloadRate() int64
	UploadRate() int64
	ProgressPercent() int
	EstimatedSecondsRemaining() int64
	IsComplete() bool
	Err() error
	Start(ctx context.Context) error
	Remove(deleteData bool)
}

// Registry is how a transfer reports back to whoever tracks it.
type Registry interface {
	Unregister(id string)
	StateChanged(t Transfer, from, to State)
	DownloadFinished(t Transfer)
}

// RetryRecorder is an optional Registry extension told about every scheduled retry
type RetryRecorder interface {
	RetryScheduled(t Transfer, attempt int)
}

// Scanner indexes finished downloads
type Scanner interface {
	Scan(path string)
}

// Env bundles the collaborators a transfer needs.
type Env struct {
	Registry  Registry
	Executor  Executor
	Scheduler *RetryScheduler
	Scanner   Scanner
	Clock     func() time.Time
	Logger    *slog.Logger
	Config    *Config
}

type nopRegistry struct{}

func (nopRegistry) Unregister(string)                   {}
func (nopRegistry) StateChanged(Transfer, State, State) {}
func (nopRegistry) DownloadFinished(Transfer)           {}

// WithDefaults fills every nil collaborator with a usable default
func (e Env) WithDefaults() Env {
	if e.Registry == nil {
		e.Registry = nopRegistry{}
	}
	if e.Executor == nil {
		e.Executor = Inline{}
	}
	if e.Logger == nil {
		e.Logger = slog.Default()
	}
	if e.Clock == nil {
		e.Clock = time.Now
	}
	if e.Scheduler == nil {
		e.Scheduler = NewRetryScheduler(e.Logger)
	}
	if e.Config == nil {
		e.Config = DefaultConfig()
	}
	return e
}

// BaseOptions describes a new transfer
type BaseOptions struct {
	Kind        Kind
	DisplayName string
	SavePath    string
	TotalSize   int64
	Direction   Direction
	Initial     State
}

// Base implements the bookkeeping shared by every transfer kind. Kinds embed it and add Start.
type Base struct {
	env       Env
	self      Transfer
	id        string
	kind      Kind
	name      string
	created   time.Time
	direction Direction
	logger    *slog.Logger

	total atomic.Int64
	bytes atomic.Int64
	sm    *StateMachine
	meter *ThroughputMeter

	// mu orders byte accounting against state changes
	mu sync.Mutex

	metaMu   sync.RWMutex
	savePath string
	err      error
	cancel   context.CancelFunc
	cleanup  func() error
	onRemove []func()

	started atomic.Bool
	removed atomic.Bool
}

// NewBase creates the shared state of a transfer
func NewBase(env Env, opts BaseOptions) *Base {
	env = env.WithDefaults()
	id := uuid.New().String()
	now := env.Clock()
	b := &Base{
		env:       env,
		id:        id,
		kind:      opts.Kind,
		name:      opts.DisplayName,
		created:   now,
		direction: opts.Direction,
		sm:        NewStateMachine(opts.Initial),
		meter:     NewThroughputMeter(env.Config.SpeedInterval, now, 0),
		savePath:  opts.SavePath,
		logger:    env.Logger.With("transfer", id, "kind", string(opts.Kind)),
	}
	b.total.Store(opts.TotalSize)
	b.self = b
	return b
}

// Bind sets the outer transfer reported to the registry
func (b *Base) Bind(self Transfer) {
	b.self = self
}

// Start is overridden by every kind
func (b *Base) Start(context.Context) error {
	return fmt.Errorf("%w: %s has no start", ErrInvalidStateTransition, b.kind)
}

func (b *Base) ID() string           { return b.id }
func (b *Base) Kind() Kind           { return b.kind }
func (b *Base) DisplayName() string  { return b.name }
func (b *Base) CreatedAt() time.Time { return b.created }
func (b *Base) State() State         { return b.sm.Current() }
func (b *Base) TotalSize() int64     { return b.total.Load() }
func (b *Base) Env() Env             { return b.env }
func (b *Base) Logger() *slog.Logger { return b.logger }

func (b *Base) BytesTransferred() int64 { return b.bytes.Load() }

func (b *Base) IsComplete() bool { return b.State() == StateComplete }

func (b *Base) SavePath() string {
	b.metaMu.RLock()
	defer b.metaMu.RUnlock()
	return b.savePath
}

// SetSavePath updates where the artifact lives
func (b *Base) SetSavePath(p string) {
	b.metaMu.Lock()
	b.savePath = p
	b.metaMu.Unlock()
}

// SetTotalSize updates the expected size, -1 when unknown
func (b *Base) SetTotalSize(n int64) {
	b.total.Store(n)
}

// Err returns the failure that moved the transfer into StateError
func (b *Base) Err() error {
	if b.State() != StateError {
		return nil
	}
	b.metaMu.RLock()
	defer b.metaMu.RUnlock()
	return b.err
}

func (b *Base) DownloadRate() int64 {
	if b.direction != Download || b.State() != StateDownloading {
		return 0
	}
	return b.meter.Rate()
}

func (b *Base) UploadRate() int64 {
	if b.direction != Upload || b.State() != StateUploading {
		return 0
	}
	return b.meter.Rate()
}

// ProgressPercent reports 100 only once the transfer is complete
func (b *Base) ProgressPercent() int {
	return Percent(b.IsComplete(), b.BytesTransferred(), b.TotalSize())
}

// EstimatedSecondsRemaining returns math.MaxInt64 when the rate or size is unknown
func (b *Base) EstimatedSecondsRemaining() int64 {
	if b.IsComplete() {
		return 0
	}
	return ETA(b.TotalSize(), b.BytesTransferred(), b.meter.Rate())
}

// Percent computes progress the same way for every kind
func Percent(complete bool, bytes, total int64) int {
	if complete {
		return 100
	}
	if total <= 0 || bytes <= 0 {
		return 0
	}
	p := bytes * 100 / total
	if p > 99 {
		p = 99
	}
	return int(p)
}

// ETA returns the whole seconds left at rate, or math.MaxInt64 when unknown
func ETA(total, bytes, rate int64) int64 {
	if rate <= 0 || total <= 0 {
		return math.MaxInt64
	}
	remaining := total - bytes
	if remaining < 0 {
		remaining = 0
	}
	return remaining / rate
}

// ClaimStart succeeds once per transfer
func (b *Base) ClaimStart() error {
	if !b.started.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: %s", ErrAlreadyStarted, b.id)
	}
	return nil
}

// AddBytes counts n received or sent bytes. It returns false once the transfer is terminal,
// telling the transport to stop.
func (b *Base) AddBytes(n int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	st := b.sm.Current()
	if st.IsTerminal() {
		return false
	}
	if st.IsPostProcessing() || n <= 0 {
		return true
	}
	total := b.bytes.Add(int64(n))
	b.meter.Sample(total, b.env.Clock())
	return true
}

// SetBytes records absolute progress reported by a delegate engine. Progress never goes backwards.
func (b *Base) SetBytes(total int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.sm.Current().IsTerminal() {
		return false
	}
	if total > b.bytes.Load() {
		b.bytes.Store(total)
	}
	b.meter.Sample(b.bytes.Load(), b.env.Clock())
	return true
}

// RewindBytes moves the counter back to where a retried stage began
func (b *Base) RewindBytes(to int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if to < 0 {
		to = 0
	}
	b.bytes.Store(to)
	b.meter.Reset(to, b.env.Clock())
}

// Transition applies a legal state change and notifies the registry
func (b *Base) Transition(next State) bool {
	b.mu.Lock()
	prev, ok := b.sm.Transition(next)
	if ok && next.IsTerminal() {
		b.meter.Reset(b.bytes.Load(), b.env.Clock())
	}
	b.mu.Unlock()

	if !ok {
		if prev != next {
			b.logger.Debug("Ignored state change", "from", prev.String(), "to", next.String())
		}
		return false
	}
	if prev != next {
		b.env.Registry.StateChanged(b.self, prev, next)
	}
	return true
}

// RetryScheduled reports a retry to the registry when it records them
func (b *Base) RetryScheduled(attempt int) {
	if r, ok := b.env.Registry.(RetryRecorder); ok {
		r.RetryScheduled(b.self, attempt)
	}
}

// Fail records err and moves to StateError unless the user already canceled
func (b *Base) Fail(err error) {
	if err == nil {
		err = errors.New("unknown failure")
	}
	if b.State() == StateCanceled {
		return
	}
	b.metaMu.Lock()
	b.err = err
	b.metaMu.Unlock()

	if !b.Transition(StateError) {
		return
	}
	LogError(b.logger, b.id, err, 0)
	b.runCleanup()
}

// Finish marks the transfer complete, reports finished downloads and rescans the artifact
func (b *Base) Finish() bool {
	if !b.Transition(StateComplete) {
		return false
	}
	b.logger.Info("Transfer complete", "name", b.name, "path", b.SavePath(), "bytes", b.BytesTransferred())
	if b.direction == Download {
		b.env.Registry.DownloadFinished(b.self)
		if b.env.Scanner != nil && b.SavePath() != "" {
			b.env.Scanner.Scan(b.SavePath())
		}
	}
	return true
}

// BindContext derives the context of the running stage. Remove cancels it.
func (b *Base) BindContext(parent context.Context) context.Context {
	ctx, cancel := context.WithCancel(parent)
	b.metaMu.Lock()
	b.cancel = cancel
	b.metaMu.Unlock()
	if b.removed.Load() {
		cancel()
	}
	return ctx
}

// SetCleanup installs the hook that deletes partial artifacts
func (b *Base) SetCleanup(fn func() error) {
	b.metaMu.Lock()
	b.cleanup = fn
	b.metaMu.Unlock()
}

// OnRemove registers fn to run on the first Remove
func (b *Base) OnRemove(fn func()) {
	b.metaMu.Lock()
	b.onRemove = append(b.onRemove, fn)
	b.metaMu.Unlock()
}

// IsRemoved reports whether Remove has been called
func (b *Base) IsRemoved() bool {
	return b.removed.Load()
}

// Remove cancels the transfer unless it is complete, deletes partial data (or all data when
// deleteData is set) and unregisters it. Calling it again does nothing.
func (b *Base) Remove(deleteData bool) {
	if !b.removed.CompareAndSwap(false, true) {
		return
	}
	// the transition decides the race with Finish: a transfer that completed first keeps its data
	complete := b.self.IsComplete()
	if !complete && !b.Transition(StateCanceled) {
		complete = b.self.IsComplete()
	}
	b.env.Scheduler.Cancel(b.id)

	b.metaMu.RLock()
	cancel := b.cancel
	hooks := append([]func(){}, b.onRemove...)
	b.metaMu.RUnlock()
	if cancel != nil {
		cancel()
	}
	for _, fn := range hooks {
		fn()
	}

	if !complete || deleteData {
		b.runCleanup()
	}
	b.env.Registry.Unregister(b.id)
	b.logger.Debug("Transfer removed", "delete_data", deleteData, "state", b.State().String())
}

func (b *Base) runCleanup() {
	b.metaMu.RLock()
	fn := b.cleanup
	b.metaMu.RUnlock()
	if fn == nil {
		return
	}
	if err := fn(); err != nil {
		b.logger.Debug("Cleanup failed", "error", err)
	}
}

// RemovePaths deletes files or directories, ignoring ones that are already gone
func RemovePaths(paths ...string) error {
	var errs []error
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.RemoveAll(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

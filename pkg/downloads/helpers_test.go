package downloads

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rescp17/transferkit/pkg/fetch"
	"github.com/rescp17/transferkit/pkg/postprocess"
	"github.com/rescp17/transferkit/pkg/transfer"
)

type manualTimer struct {
	delay   time.Duration
	fn      func()
	stopped bool
}

func (t *manualTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type manualTimers struct {
	mu     sync.Mutex
	timers []*manualTimer
}

func (m *manualTimers) AfterFunc(d time.Duration, f func()) transfer.Stopper {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTimer{delay: d, fn: f}
	m.timers = append(m.timers, t)
	return t
}

func (m *manualTimers) Fire() int {
	m.mu.Lock()
	timers := m.timers
	m.timers = nil
	m.mu.Unlock()
	n := 0
	for _, t := range timers {
		if !t.stopped {
			t.fn()
			n++
		}
	}
	return n
}

type recordingScanner struct {
	mu    sync.Mutex
	paths []string
}

func (s *recordingScanner) Scan(p string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths = append(s.paths, p)
}

// retryLog records scheduled retries synchronously, ahead of the manager's async fan-out
type retryLog struct {
	*transfer.Manager
	mu       sync.Mutex
	attempts []int
}

func (r *retryLog) RetryScheduled(t transfer.Transfer, attempt int) {
	r.mu.Lock()
	r.attempts = append(r.attempts, attempt)
	r.mu.Unlock()
	r.Manager.RetryScheduled(t, attempt)
}

func (r *retryLog) Attempts() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.attempts...)
}

type harness struct {
	env     transfer.Env
	manager *transfer.Manager
	retries *retryLog
	timers  *manualTimers
	sched   *transfer.RetryScheduler
	scanner *recordingScanner
	saveDir string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		manager: transfer.NewManager(nil),
		timers:  &manualTimers{},
		scanner: &recordingScanner{},
		saveDir: filepath.Join(t.TempDir(), "save"),
	}
	h.retries = &retryLog{Manager: h.manager}
	h.sched = transfer.NewRetrySchedulerWithTimer(h.timers.AfterFunc, nil, nil)
	cfg := transfer.DefaultConfig()
	cfg.DataDir = h.saveDir
	cfg.TempDir = filepath.Join(t.TempDir(), "tmp")
	h.env = transfer.Env{
		Registry:  h.retries,
		Executor:  transfer.Inline{},
		Scheduler: h.sched,
		Scanner:   h.scanner,
		Config:    cfg,
	}
	return h
}

func (h *harness) register(t *testing.T, tr transfer.Transfer) {
	t.Helper()
	require.NoError(t, h.manager.Register(tr))
}

// stubFetcher writes canned bodies per URI and reports them through the listener
type stubFetcher struct {
	mu     sync.Mutex
	bodies map[string][]byte
	fail   map[string]error
	calls  []string
	// skipWrite reports success without creating the file
	skipWrite bool
	// during runs between the first and second chunk
	during func()
	// announce reports each body length before streaming it
	announce bool
}

func (f *stubFetcher) Save(ctx context.Context, uri, dst string, l fetch.Listener) {
	f.mu.Lock()
	f.calls = append(f.calls, uri)
	body, err := f.bodies[uri], f.fail[uri]
	during, announce := f.during, f.announce
	f.mu.Unlock()

	if err != nil {
		l.OnError(err)
		return
	}
	if !f.skipWrite {
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			l.OnError(err)
			return
		}
		if err := os.WriteFile(dst, body, 0o644); err != nil {
			l.OnError(err)
			return
		}
	}
	if sl, ok := l.(fetch.SizeListener); ok && announce {
		sl.OnSize(int64(len(body)))
	}
	half := len(body) / 2
	for i, chunk := range [][]byte{body[:half], body[half:]} {
		if i == 1 && during != nil {
			during()
		}
		if l.OnData(chunk) == fetch.Abort {
			l.OnCancel()
			return
		}
	}
	l.OnComplete()
}

type stubMuxer struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (m *stubMuxer) Mux(_ context.Context, video, audio, out string, meta postprocess.Metadata) error {
	m.mu.Lock()
	m.calls = append(m.calls, "mux:"+filepath.Base(video)+"+"+filepath.Base(audio)+"->"+filepath.Base(out)+":"+meta.Title)
	m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	return os.WriteFile(out, []byte("muxed"), 0o644)
}

func (m *stubMuxer) DemuxAudio(_ context.Context, audio, out string, _ postprocess.Metadata) error {
	m.mu.Lock()
	m.calls = append(m.calls, "demux:"+filepath.Base(audio)+"->"+filepath.Base(out))
	m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	return os.WriteFile(out, []byte("audio"), 0o644)
}

func fileGone(p string) bool {
	_, err := os.Stat(p)
	return os.IsNotExist(err)
}

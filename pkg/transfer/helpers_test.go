package transfer

import (
	"sync"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeTimer struct {
	delay   time.Duration
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type fakeTimers struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (ft *fakeTimers) AfterFunc(d time.Duration, f func()) Stopper {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	t := &fakeTimer{delay: d, fn: f}
	ft.timers = append(ft.timers, t)
	return t
}

// FireAll runs every timer that has not been stopped
func (ft *fakeTimers) FireAll() {
	ft.mu.Lock()
	timers := ft.timers
	ft.timers = nil
	ft.mu.Unlock()
	for _, t := range timers {
		if !t.stopped {
			t.fn()
		}
	}
}

func (ft *fakeTimers) Delays() []time.Duration {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	var out []time.Duration
	for _, t := range ft.timers {
		out = append(out, t.delay)
	}
	return out
}

type recordingRegistry struct {
	mu           sync.Mutex
	unregistered []string
	finished     []string
	changes      [][2]State
}

func (r *recordingRegistry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unregistered = append(r.unregistered, id)
}

func (r *recordingRegistry) StateChanged(_ Transfer, from, to State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, [2]State{from, to})
}

func (r *recordingRegistry) DownloadFinished(t Transfer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, t.ID())
}

type recordingScanner struct {
	mu    sync.Mutex
	paths []string
}

func (s *recordingScanner) Scan(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths = append(s.paths, path)
}

func newTestEnv(clock *fakeClock, reg Registry) Env {
	return Env{
		Registry: reg,
		Clock:    clock.Now,
	}
}

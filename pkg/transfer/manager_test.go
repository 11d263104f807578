package transfer

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rateStub reports fixed rates regardless of samples
type rateStub struct {
	*Base
	down, up int64
}

func (s *rateStub) DownloadRate() int64 { return s.down }
func (s *rateStub) UploadRate() int64   { return s.up }

// pausableStub pauses by state alone
type pausableStub struct {
	*Base
}

func (s *pausableStub) Pause() bool { return s.Transition(StatePaused) }

func (s *pausableStub) Resume() bool {
	return s.State() == StatePaused && s.Transition(StateDownloading)
}

type countingListener struct {
	id       string
	changes  atomic.Int32
	finished atomic.Int32
}

func (l *countingListener) ID() string                            { return l.id }
func (l *countingListener) OnStateChanged(Transfer, State, State) { l.changes.Add(1) }
func (l *countingListener) OnDownloadFinished(Transfer)           { l.finished.Add(1) }

type panickingListener struct{}

func (panickingListener) ID() string                            { return "panics" }
func (panickingListener) OnStateChanged(Transfer, State, State) { panic("listener bug") }
func (panickingListener) OnDownloadFinished(Transfer)           { panic("listener bug") }

func ids(ts []Transfer) []string {
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.ID())
	}
	return out
}

func TestManager_RegisterRejectsDuplicates(t *testing.T) {
	m := NewManager(nil)
	b := newDownloadingBase(newFakeClock(), m, 10)

	require.NoError(t, m.Register(b))
	assert.ErrorIs(t, m.Register(b), ErrTransferAlreadyExists)
	assert.Equal(t, 1, m.Count())
}

func TestManager_RemoveIsIdempotent(t *testing.T) {
	m := NewManager(nil)
	b := newDownloadingBase(newFakeClock(), m, 10)
	require.NoError(t, m.Register(b))

	m.Remove(b)
	m.Remove(b)
	m.Remove(nil)

	_, ok := m.Get(b.ID())
	assert.False(t, ok)
	assert.Equal(t, 0, m.Count())
}

func TestManager_TransferRemoveUnregisters(t *testing.T) {
	m := NewManager(nil)
	b := newDownloadingBase(newFakeClock(), m, 10)
	require.NoError(t, m.Register(b))

	require.NoError(t, m.Cancel(b.ID(), false))

	assert.Equal(t, StateCanceled, b.State())
	assert.Equal(t, 0, m.Count())
	assert.ErrorIs(t, m.Cancel(b.ID(), false), ErrTransferNotFound)
}

func TestManager_ClearCompleteKeepsData(t *testing.T) {
	m := NewManager(nil)
	clock := newFakeClock()

	done := newDownloadingBase(clock, m, 10)
	running := newDownloadingBase(clock, m, 10)
	var cleaned atomic.Int32
	for _, b := range []*Base{done, running} {
		b.SetCleanup(func() error { cleaned.Add(1); return nil })
		require.NoError(t, m.Register(b))
	}
	require.True(t, done.Finish())

	assert.Equal(t, 1, m.ClearComplete())
	_, ok := m.Get(done.ID())
	assert.False(t, ok)
	assert.Equal(t, StateComplete, done.State())
	assert.Equal(t, int32(0), cleaned.Load())

	got, ok := m.Get(running.ID())
	require.True(t, ok)
	assert.Equal(t, StateDownloading, got.State())
	assert.Equal(t, 0, m.ClearComplete())
}

func TestManager_PauseResume(t *testing.T) {
	m := NewManager(nil)
	clock := newFakeClock()

	a := &pausableStub{Base: newDownloadingBase(clock, m, 10)}
	a.Bind(a)
	b := &pausableStub{Base: newDownloadingBase(clock, m, 10)}
	b.Bind(b)
	plain := newDownloadingBase(clock, m, 10)
	for _, tr := range []Transfer{a, b, plain} {
		require.NoError(t, m.Register(tr))
	}

	require.NoError(t, m.Pause(a.ID()))
	assert.Equal(t, StatePaused, a.State())
	assert.ErrorIs(t, m.Pause(a.ID()), ErrInvalidStateTransition)
	assert.ErrorIs(t, m.Pause(plain.ID()), ErrNotPausable)
	assert.ErrorIs(t, m.Pause("missing"), ErrTransferNotFound)

	assert.Equal(t, 1, m.PauseAll())
	assert.Equal(t, StatePaused, b.State())
	assert.Equal(t, 2, m.Summary().Paused)
	assert.Equal(t, StateDownloading, plain.State())

	require.NoError(t, m.Resume(a.ID()))
	assert.ErrorIs(t, m.Resume(a.ID()), ErrInvalidStateTransition)
	assert.Equal(t, 1, m.ResumeAll())
	assert.Equal(t, StateDownloading, b.State())
	assert.Equal(t, 0, m.ResumeAll())
}

func TestManager_FilterNewestFirst(t *testing.T) {
	m := NewManager(nil)
	clock := newFakeClock()

	var all []*Base
	for i := 0; i < 4; i++ {
		b := newDownloadingBase(clock, m, 100)
		require.NoError(t, m.Register(b))
		all = append(all, b)
		clock.Advance(time.Minute)
	}
	require.True(t, all[1].Finish())
	require.True(t, all[3].Finish())
	all[2].Fail(fmt.Errorf("server said no"))

	tests := []struct {
		filter StatusFilter
		want   []string
	}{
		{FilterAll, []string{all[3].ID(), all[2].ID(), all[1].ID(), all[0].ID()}},
		{FilterDownloading, []string{all[2].ID(), all[0].ID()}},
		{FilterCompleted, []string{all[3].ID(), all[1].ID()}},
	}
	for _, tt := range tests {
		t.Run(tt.filter.String(), func(t *testing.T) {
			if diff := cmp.Diff(tt.want, ids(m.Filter(tt.filter))); diff != "" {
				t.Errorf("Filter(%s) mismatch (-want +got):\n%s", tt.filter, diff)
			}
		})
	}
}

func TestParseStatusFilter(t *testing.T) {
	for _, name := range []string{"all", "downloading", "completed"} {
		f, err := ParseStatusFilter(name)
		require.NoError(t, err)
		assert.Equal(t, name, f.String())
	}
	f, err := ParseStatusFilter("")
	require.NoError(t, err)
	assert.Equal(t, FilterAll, f)

	_, err = ParseStatusFilter("seeding")
	assert.Error(t, err)
}

func TestManager_AggregatesAndCounts(t *testing.T) {
	m := NewManager(nil)
	clock := newFakeClock()

	a := &rateStub{Base: newDownloadingBase(clock, m, 10), down: 100, up: 5}
	b := &rateStub{Base: newDownloadingBase(clock, m, 10), down: 250}
	c := &rateStub{Base: NewBase(newTestEnv(clock, m), BaseOptions{Kind: KindPeerUpload, Direction: Upload, Initial: StateUploading}), up: 40}
	for _, tr := range []Transfer{a, b, c} {
		require.NoError(t, m.Register(tr))
	}

	assert.Equal(t, int64(350), m.AggregateDownloadRate())
	assert.Equal(t, int64(45), m.AggregateUploadRate())
	assert.Equal(t, 2, m.ActiveCount(IsDownloading))
	assert.Equal(t, 1, m.ActiveCount(IsUploading))
	assert.Equal(t, 3, m.ActiveCount(IsActive))

	s := m.Summary()
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 2, s.ByState["downloading"])
	assert.Equal(t, int64(350), s.DownloadRate)
	assert.Equal(t, int64(20), s.BytesExpected)
}

func TestManager_DownloadsToReviewAndListeners(t *testing.T) {
	m := NewManager(nil)
	l := &countingListener{id: uuid.New().String()}
	m.AddListener(l)
	m.AddListener(panickingListener{})

	b := newDownloadingBase(newFakeClock(), m, 10)
	require.NoError(t, m.Register(b))
	require.True(t, b.Finish())

	assert.Equal(t, int64(1), m.DownloadsToReview())
	assert.Eventually(t, func() bool {
		return l.changes.Load() == 1 && l.finished.Load() == 1
	}, time.Second, 10*time.Millisecond)

	m.ClearDownloadsToReview()
	assert.Equal(t, int64(0), m.DownloadsToReview())

	m.RemoveListener(l.id)
	b2 := newDownloadingBase(newFakeClock(), m, 10)
	require.NoError(t, m.Register(b2))
	b2.Finish()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), l.finished.Load())
}

func TestManager_ConcurrentAccess(t *testing.T) {
	m := NewManager(nil)
	clock := newFakeClock()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b := newDownloadingBase(clock, m, 1000)
			if err := m.Register(b); err != nil {
				t.Errorf("register: %v", err)
				return
			}
			for j := 0; j < 50; j++ {
				b.AddBytes(10)
				_ = m.Filter(FilterDownloading)
				_ = m.AggregateDownloadRate()
			}
			b.Remove(i%2 == 0)
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, m.Count())
}

package transfer

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDownloadingBase(clock *fakeClock, reg Registry, total int64) *Base {
	return NewBase(newTestEnv(clock, reg), BaseOptions{
		Kind:        KindHTTP,
		DisplayName: "movie.mp4",
		SavePath:    "/tmp/movie.mp4",
		TotalSize:   total,
		Direction:   Download,
		Initial:     StateDownloading,
	})
}

func TestBase_RateAndETAFromSamples(t *testing.T) {
	clock := newFakeClock()
	b := newDownloadingBase(clock, &recordingRegistry{}, 1000)

	clock.Advance(1200 * time.Millisecond)
	require.True(t, b.AddBytes(300))
	clock.Advance(1200 * time.Millisecond)
	require.True(t, b.AddBytes(300))

	assert.Equal(t, int64(600), b.BytesTransferred())
	assert.Equal(t, int64(250), b.DownloadRate())
	assert.Equal(t, int64(0), b.UploadRate())
	assert.Equal(t, int64(1), b.EstimatedSecondsRemaining())
	assert.Equal(t, 60, b.ProgressPercent())
}

func TestBase_ProgressHundredOnlyWhenComplete(t *testing.T) {
	clock := newFakeClock()
	b := newDownloadingBase(clock, &recordingRegistry{}, 100)

	b.AddBytes(100)
	assert.Equal(t, 99, b.ProgressPercent())
	assert.False(t, b.IsComplete())

	require.True(t, b.Finish())
	assert.Equal(t, 100, b.ProgressPercent())
	assert.Equal(t, int64(0), b.EstimatedSecondsRemaining())
	assert.Equal(t, int64(0), b.DownloadRate())
}

func TestBase_UnknownSize(t *testing.T) {
	clock := newFakeClock()
	b := newDownloadingBase(clock, &recordingRegistry{}, -1)

	clock.Advance(2 * time.Second)
	b.AddBytes(4096)

	assert.Equal(t, 0, b.ProgressPercent())
	assert.Equal(t, int64(math.MaxInt64), b.EstimatedSecondsRemaining())
}

func TestBase_ETAUnknownWithoutRate(t *testing.T) {
	b := newDownloadingBase(newFakeClock(), &recordingRegistry{}, 1000)
	assert.Equal(t, int64(math.MaxInt64), b.EstimatedSecondsRemaining())
}

func TestBase_NoBytesCountedAfterCancel(t *testing.T) {
	clock := newFakeClock()
	b := newDownloadingBase(clock, &recordingRegistry{}, 1000)

	require.True(t, b.AddBytes(10))
	b.Remove(false)

	assert.False(t, b.AddBytes(10))
	assert.Equal(t, int64(10), b.BytesTransferred())
	assert.Equal(t, StateCanceled, b.State())
}

func TestBase_ClaimStartOnce(t *testing.T) {
	b := newDownloadingBase(newFakeClock(), nil, 10)

	require.NoError(t, b.ClaimStart())
	assert.ErrorIs(t, b.ClaimStart(), ErrAlreadyStarted)
}

func TestBase_FailRecordsErrorAndCleansUp(t *testing.T) {
	b := newDownloadingBase(newFakeClock(), &recordingRegistry{}, 10)
	cleaned := 0
	b.SetCleanup(func() error { cleaned++; return nil })

	cause := errors.New("connection reset")
	b.Fail(&PermanentTransportError{Err: cause})

	assert.Equal(t, StateError, b.State())
	assert.ErrorIs(t, b.Err(), cause)
	assert.Equal(t, 1, cleaned)
	assert.False(t, b.IsComplete())
}

func TestBase_FailAfterCancelIsIgnored(t *testing.T) {
	b := newDownloadingBase(newFakeClock(), &recordingRegistry{}, 10)
	b.Remove(false)

	b.Fail(errors.New("late failure"))

	assert.Equal(t, StateCanceled, b.State())
	assert.NoError(t, b.Err())
}

func TestBase_RemoveIncomplete(t *testing.T) {
	reg := &recordingRegistry{}
	b := newDownloadingBase(newFakeClock(), reg, 10)
	cleaned := 0
	b.SetCleanup(func() error { cleaned++; return errors.New("busy file") })

	b.Remove(false)
	b.Remove(true)

	assert.Equal(t, StateCanceled, b.State())
	assert.Equal(t, 1, cleaned, "cleanup runs once and its error is swallowed")
	assert.Equal(t, []string{b.ID()}, reg.unregistered)
}

func TestBase_RemoveCompleteKeepsData(t *testing.T) {
	reg := &recordingRegistry{}
	b := newDownloadingBase(newFakeClock(), reg, 10)
	cleaned := 0
	b.SetCleanup(func() error { cleaned++; return nil })
	require.True(t, b.Finish())

	b.Remove(false)

	assert.Equal(t, StateComplete, b.State())
	assert.Equal(t, 0, cleaned)
	assert.Equal(t, []string{b.ID()}, reg.unregistered)
}

func TestBase_RemoveCompleteWithDeleteData(t *testing.T) {
	b := newDownloadingBase(newFakeClock(), &recordingRegistry{}, 10)
	cleaned := 0
	b.SetCleanup(func() error { cleaned++; return nil })
	require.True(t, b.Finish())

	b.Remove(true)

	assert.Equal(t, StateComplete, b.State())
	assert.Equal(t, 1, cleaned)
}

func TestBase_RemoveFailedTransferRecordsCancel(t *testing.T) {
	b := newDownloadingBase(newFakeClock(), &recordingRegistry{}, 10)
	b.Fail(errors.New("boom"))

	b.Remove(false)

	assert.Equal(t, StateCanceled, b.State())
}

func TestBase_RemoveCancelsBoundContext(t *testing.T) {
	b := newDownloadingBase(newFakeClock(), &recordingRegistry{}, 10)
	ctx := b.BindContext(context.Background())
	hookRan := false
	b.OnRemove(func() { hookRan = true })

	b.Remove(false)

	assert.ErrorIs(t, ctx.Err(), context.Canceled)
	assert.True(t, hookRan)

	// contexts bound after removal start out canceled
	late := b.BindContext(context.Background())
	assert.Error(t, late.Err())
}

func TestBase_FinishReportsAndScans(t *testing.T) {
	reg := &recordingRegistry{}
	scanner := &recordingScanner{}
	env := newTestEnv(newFakeClock(), reg)
	env.Scanner = scanner
	b := NewBase(env, BaseOptions{Kind: KindHTTP, SavePath: "/data/a.bin", Direction: Download, Initial: StateDownloading})

	require.True(t, b.Finish())
	assert.False(t, b.Finish(), "complete is terminal")

	assert.Equal(t, []string{b.ID()}, reg.finished)
	assert.Equal(t, []string{"/data/a.bin"}, scanner.paths)
	assert.Contains(t, reg.changes, [2]State{StateDownloading, StateComplete})
}

func TestBase_UploadFinishIsNotADownload(t *testing.T) {
	reg := &recordingRegistry{}
	b := NewBase(newTestEnv(newFakeClock(), reg), BaseOptions{Kind: KindPeerUpload, Direction: Upload, Initial: StateUploading})

	require.True(t, b.Finish())
	assert.Empty(t, reg.finished)
}

func TestBase_SetBytesIsMonotonic(t *testing.T) {
	b := newDownloadingBase(newFakeClock(), nil, 100)

	b.SetBytes(40)
	b.SetBytes(20)
	assert.Equal(t, int64(40), b.BytesTransferred())
}

func TestRemovePaths(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "partial.bin")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	assert.NoError(t, RemovePaths(file, filepath.Join(dir, "missing"), ""))
	_, err := os.Stat(file)
	assert.True(t, os.IsNotExist(err))
}

// slowCompleteBase yields inside IsComplete, like kinds that consult a delegate
type slowCompleteBase struct {
	*Base
}

func (s *slowCompleteBase) IsComplete() bool {
	runtime.Gosched()
	return s.Base.IsComplete()
}

func TestBase_RemoveRacingFinishNeverDeletesFinishedData(t *testing.T) {
	for i := 0; i < 500; i++ {
		reg := &recordingRegistry{}
		b := &slowCompleteBase{Base: newDownloadingBase(newFakeClock(), reg, 10)}
		b.Bind(b)
		var cleaned atomic.Int32
		b.SetCleanup(func() error { cleaned.Add(1); return nil })

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			b.Finish()
		}()
		go func() {
			defer wg.Done()
			b.Remove(false)
		}()
		wg.Wait()

		reg.mu.Lock()
		finished := len(reg.finished)
		reg.mu.Unlock()

		switch b.State() {
		case StateComplete:
			require.Equal(t, 1, finished, "run %d", i)
			require.Zero(t, cleaned.Load(), "run %d: a finished download lost its data", i)
		case StateCanceled:
			require.Zero(t, finished, "run %d", i)
			require.Equal(t, int32(1), cleaned.Load(), "run %d", i)
		default:
			t.Fatalf("run %d: unexpected state %s", i, b.State())
		}
	}
}

func TestBase_RemoveStopsConcurrentDataCallbacks(t *testing.T) {
	b := newDownloadingBase(newFakeClock(), &recordingRegistry{}, 1<<40)

	var wg sync.WaitGroup
	var stopped atomic.Int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for b.AddBytes(1) {
			}
			stopped.Add(1)
		}()
	}
	require.Eventually(t, func() bool { return b.BytesTransferred() > 100 }, time.Second, time.Millisecond)

	b.Remove(false)
	atRemove := b.BytesTransferred()
	wg.Wait()

	assert.Equal(t, int32(8), stopped.Load(), "every callback saw the cancel")
	assert.Equal(t, atRemove, b.BytesTransferred(), "no bytes counted after Remove returned")
	assert.False(t, b.AddBytes(1))
	assert.Equal(t, StateCanceled, b.State())
}

package downloads

import (
	"context"
	"sync"

	"github.com/rescp17/transferkit/pkg/fetch"
	"github.com/rescp17/transferkit/pkg/transfer"
)

// Fetcher streams a URI to a file
type Fetcher interface {
	Save(ctx context.Context, uri, dst string, l fetch.Listener)
}

// fetchJob runs one fetch stage of a transfer with the shared retry policy. Kinds supply what
// happens once the payload is on disk.
type fetchJob struct {
	base    *transfer.Base
	fetcher Fetcher

	// onFetched runs on the worker after a successful fetch
	onFetched func(ctx context.Context)

	// sizeKnown is set when the total came with the source; otherwise each stage reports its own
	sizeKnown bool

	mu         sync.Mutex
	uri        string
	dst        string
	rc         transfer.RetryContext
	stageStart int64
}

func newFetchJob(base *transfer.Base, fetcher Fetcher, uri, dst string, onFetched func(ctx context.Context)) *fetchJob {
	return &fetchJob{
		base:      base,
		fetcher:   fetcher,
		onFetched: onFetched,
		uri:       uri,
		dst:       dst,
		rc:        transfer.NewRetryContext(),
		sizeKnown: base.TotalSize() > 0,
	}
}

// begin queues the first attempt of a stage. Bytes already counted by earlier stages are kept.
func (j *fetchJob) begin(uri, dst string) {
	j.mu.Lock()
	j.uri, j.dst = uri, dst
	j.rc = transfer.NewRetryContext()
	j.mu.Unlock()

	j.base.Transition(transfer.StateWaiting)
	j.schedule(j.rc)
}

func (j *fetchJob) schedule(rc transfer.RetryContext) {
	env := j.base.Env()
	name := string(j.base.Kind()) + ":" + j.base.ID()
	if rc.NextDelay <= 0 {
		env.Executor.Go(name, j.run)
		return
	}
	env.Scheduler.Schedule(j.base.ID(), rc, func() {
		env.Executor.Go(name, j.run)
	})
}

func (j *fetchJob) run(ctx context.Context) {
	if j.base.IsRemoved() {
		return
	}
	if !j.base.Transition(transfer.StateDownloading) {
		return
	}

	j.mu.Lock()
	uri, dst := j.uri, j.dst
	j.stageStart = j.base.BytesTransferred()
	j.mu.Unlock()
	if !j.sizeKnown {
		// the previous stage's length says nothing about this one
		j.base.SetTotalSize(-1)
	}

	ctx = j.base.BindContext(ctx)
	j.fetcher.Save(ctx, uri, dst, &jobListener{job: j, ctx: ctx})
}

// failed retries transient errors and fails the transfer on anything else
func (j *fetchJob) failed(err error) {
	j.mu.Lock()
	next, retry := transfer.NextAttempt(j.rc, err)
	if retry {
		j.rc = next
	}
	stageStart := j.stageStart
	j.mu.Unlock()

	if !retry {
		j.base.Fail(&transfer.PermanentTransportError{Err: err})
		return
	}
	if j.base.IsRemoved() || !j.base.Transition(transfer.StateWaiting) {
		return
	}
	transfer.LogError(j.base.Logger(), j.base.ID(), &transfer.TransientTransportError{Err: err, Delay: next.NextDelay}, next.Attempt)
	j.base.RewindBytes(stageStart)
	j.base.RetryScheduled(next.Attempt)
	j.schedule(next)
}

type jobListener struct {
	job *fetchJob
	ctx context.Context
}

func (l *jobListener) OnData(p []byte) fetch.Action {
	if !l.job.base.AddBytes(len(p)) {
		return fetch.Abort
	}
	return fetch.Continue
}

// OnSize extends the total by the stage length when the source did not give one
func (l *jobListener) OnSize(n int64) {
	if l.job.sizeKnown {
		return
	}
	l.job.mu.Lock()
	start := l.job.stageStart
	l.job.mu.Unlock()
	l.job.base.SetTotalSize(start + n)
}

func (l *jobListener) OnComplete() {
	if l.job.base.State() != transfer.StateDownloading {
		return
	}
	l.job.onFetched(l.ctx)
}

func (l *jobListener) OnError(err error) {
	if l.job.base.State() == transfer.StateCanceled {
		return
	}
	l.job.failed(err)
}

func (l *jobListener) OnCancel() {
	l.job.base.Logger().Debug("Fetch stopped", "state", l.job.base.State().String())
}

package transfer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Executor runs transfer work off the caller's goroutine.
type Executor interface {
	Go(name string, fn func(ctx context.Context))
}

// Pool is an Executor that runs at most size jobs at once.
// Extra jobs wait for a slot without blocking the submitter.
type Pool struct {
	sem    *semaphore.Weighted
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *slog.Logger
}

// NewPool creates a pool bound to ctx. size <= 0 means 1.
func NewPool(ctx context.Context, size int, logger *slog.Logger) *Pool {
	if size <= 0 {
		size = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Pool{
		sem:    semaphore.NewWeighted(int64(size)),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

// Go schedules fn. Jobs submitted after Close are dropped.
func (p *Pool) Go(name string, fn func(ctx context.Context)) {
	if p.ctx.Err() != nil {
		p.logger.Debug("Pool closed, dropping job", "job", name)
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.sem.Acquire(p.ctx, 1); err != nil {
			return
		}
		defer p.sem.Release(1)
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("Job panicked", "job", name, "panic", fmt.Sprint(r))
			}
		}()
		fn(p.ctx)
	}()
}

// Close cancels running jobs and waits for them to return
func (p *Pool) Close() {
	p.cancel()
	p.wg.Wait()
}

// Inline runs every job synchronously on the caller's goroutine.
type Inline struct {
	Ctx context.Context
}

func (i Inline) Go(_ string, fn func(ctx context.Context)) {
	ctx := i.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	fn(ctx)
}

package transfer

import (
	"log/slog"
	"sync"
	"time"
)

// Stopper is the part of *time.Timer the scheduler needs
type Stopper interface {
	Stop() bool
}

// AfterFunc arranges for f to run after d, like time.AfterFunc
type AfterFunc func(d time.Duration, f func()) Stopper

func systemAfterFunc(d time.Duration, f func()) Stopper {
	return time.AfterFunc(d, f)
}

// RetryScheduler parks retries on timers so no worker sleeps through a Retry-After delay.
type RetryScheduler struct {
	mu         sync.Mutex
	retryQueue map[string]*RetryTask
	afterFunc  AfterFunc
	now        func() time.Time
	logger     *slog.Logger
	stopped    bool
}

// RetryTask represents a scheduled retry operation
type RetryTask struct {
	TransferID  string
	Attempt     int
	Delay       time.Duration
	NextAttempt time.Time
	timer       Stopper
}

// NewRetryScheduler creates a scheduler backed by real timers
func NewRetryScheduler(logger *slog.Logger) *RetryScheduler {
	return NewRetrySchedulerWithTimer(systemAfterFunc, time.Now, logger)
}

// NewRetrySchedulerWithTimer creates a scheduler with an injected timer source
func NewRetrySchedulerWithTimer(afterFunc AfterFunc, now func() time.Time, logger *slog.Logger) *RetryScheduler {
	if afterFunc == nil {
		afterFunc = systemAfterFunc
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RetryScheduler{
		retryQueue: make(map[string]*RetryTask),
		afterFunc:  afterFunc,
		now:        now,
		logger:     logger,
	}
}

// Schedule runs fn once rc.NextDelay has elapsed. A pending retry for the same transfer is replaced.
func (rs *RetryScheduler) Schedule(id string, rc RetryContext, fn func()) bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.stopped {
		return false
	}
	if prev, ok := rs.retryQueue[id]; ok && prev.timer != nil {
		prev.timer.Stop()
	}

	task := &RetryTask{
		TransferID:  id,
		Attempt:     rc.Attempt,
		Delay:       rc.NextDelay,
		NextAttempt: rs.now().Add(rc.NextDelay),
	}
	rs.retryQueue[id] = task
	task.timer = rs.afterFunc(rc.NextDelay, func() {
		rs.mu.Lock()
		current, ok := rs.retryQueue[id]
		if !ok || current != task {
			rs.mu.Unlock()
			return
		}
		delete(rs.retryQueue, id)
		rs.mu.Unlock()
		fn()
	})

	rs.logger.Info("Scheduled retry",
		"transfer", id,
		"attempt", rc.Attempt,
		"delay", rc.NextDelay,
		"next_attempt", task.NextAttempt)
	return true
}

// Cancel drops the pending retry of a transfer
func (rs *RetryScheduler) Cancel(id string) bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	task, ok := rs.retryQueue[id]
	if !ok {
		return false
	}
	if task.timer != nil {
		task.timer.Stop()
	}
	delete(rs.retryQueue, id)
	rs.logger.Debug("Cancelled retry", "transfer", id)
	return true
}

// GetRetryStatus returns a copy of the pending retry of a transfer
func (rs *RetryScheduler) GetRetryStatus(id string) (RetryTask, bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	task, ok := rs.retryQueue[id]
	if !ok {
		return RetryTask{}, false
	}
	return RetryTask{
		TransferID:  task.TransferID,
		Attempt:     task.Attempt,
		Delay:       task.Delay,
		NextAttempt: task.NextAttempt,
	}, true
}

// Pending returns the number of parked retries
func (rs *RetryScheduler) Pending() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return len(rs.retryQueue)
}

// Stop cancels every pending retry and refuses new ones
func (rs *RetryScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	rs.stopped = true
	for id, task := range rs.retryQueue {
		if task.timer != nil {
			task.timer.Stop()
		}
		delete(rs.retryQueue, id)
	}
}

package transfer

import (
	"errors"
	"time"
)

// MaxAttempts bounds how many times a transient failure is retried.
const MaxAttempts = 3

// RetryContext carries the attempt counter of one transfer across retries.
type RetryContext struct {
	Attempt     int
	MaxAttempts int
	NextDelay   time.Duration
}

// NewRetryContext returns the context of a first attempt
func NewRetryContext() RetryContext {
	return RetryContext{MaxAttempts: MaxAttempts}
}

type retryAfterer interface {
	RetryAfter() (time.Duration, bool)
}

// RetryHint extracts a server supplied retry delay from err, if it carries one.
func RetryHint(err error) (time.Duration, bool) {
	if err == nil {
		return 0, false
	}
	var transient *TransientTransportError
	if errors.As(err, &transient) {
		return transient.Delay, true
	}
	var ra retryAfterer
	if errors.As(err, &ra) {
		return ra.RetryAfter()
	}
	return 0, false
}

// NextAttempt decides whether err deserves another attempt. It does when the error carries a
// positive retry hint and the attempt budget is not spent.
func NextAttempt(rc RetryContext, err error) (RetryContext, bool) {
	maxAttempts := rc.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = MaxAttempts
	}
	delay, ok := RetryHint(err)
	if !ok || delay <= 0 || rc.Attempt >= maxAttempts {
		return rc, false
	}
	return RetryContext{
		Attempt:     rc.Attempt + 1,
		MaxAttempts: maxAttempts,
		NextDelay:   delay,
	}, true
}

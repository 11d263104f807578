package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var (
	ErrTransferNotFound       = errors.New("transfer not found")
	ErrTransferAlreadyExists  = errors.New("transfer already registered")
	ErrAlreadyStarted         = errors.New("transfer already started")
	ErrInvalidConfiguration   = errors.New("invalid configuration")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrNotPausable            = errors.New("transfer cannot be paused")
	// ErrCanceled marks work that stopped because the user canceled the transfer
	ErrCanceled = errors.New("transfer canceled")
)

// TransientTransportError is a failure the server asked us to retry after Delay.
// It is never surfaced as a terminal error while attempts remain.
type TransientTransportError struct {
	Err   error
	Delay time.Duration
}

func (e *TransientTransportError) Error() string {
	return fmt.Sprintf("transient transport failure (retry in %s): %v", e.Delay, e.Err)
}

func (e *TransientTransportError) Unwrap() error { return e.Err }

// PermanentTransportError is a transport failure that will not be retried.
type PermanentTransportError struct {
	Err error
}

func (e *PermanentTransportError) Error() string {
	return "transport failure: " + e.Err.Error()
}

func (e *PermanentTransportError) Unwrap() error { return e.Err }

// PostProcessingError reports a failed decompress, demux or verify stage.
type PostProcessingError struct {
	Stage State
	Err   error
}

func (e *PostProcessingError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *PostProcessingError) Unwrap() error { return e.Err }

// ErrorCategory groups errors for logging and metrics
type ErrorCategory int

const (
	CategoryTransient ErrorCategory = iota
	CategoryPermanent
	CategoryPostProcessing
	CategoryCanceled
)

// String returns a string representation of ErrorCategory
func (c ErrorCategory) String() string {
	switch c {
	case CategoryTransient:
		return "transient"
	case CategoryPermanent:
		return "permanent"
	case CategoryPostProcessing:
		return "post_processing"
	case CategoryCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Categorize determines the category of an error
func Categorize(err error) ErrorCategory {
	var (
		transient *TransientTransportError
		permanent *PermanentTransportError
		post      *PostProcessingError
	)
	switch {
	case errors.Is(err, ErrCanceled), errors.Is(err, context.Canceled):
		return CategoryCanceled
	case errors.As(err, &post):
		return CategoryPostProcessing
	case errors.As(err, &permanent):
		return CategoryPermanent
	case errors.As(err, &transient):
		return CategoryTransient
	}
	if _, ok := RetryHint(err); ok {
		return CategoryTransient
	}
	return CategoryPermanent
}

// LogError logs a transfer error with its category and attempt number
func LogError(logger *slog.Logger, id string, err error, attempt int) {
	category := Categorize(err)
	logFields := []any{
		"transfer", id,
		"error", err.Error(),
		"category", category.String(),
		"attempt", attempt,
	}

	switch category {
	case CategoryTransient:
		logger.Warn("Transfer error, retrying", logFields...)
	case CategoryCanceled:
		logger.Debug("Transfer stopped", logFields...)
	default:
		logger.Error("Transfer failed", logFields...)
	}
}

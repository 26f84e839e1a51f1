package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Unit is one site automation. Run reports whether the unit's work succeeded;
// an error means the attempt blew up rather than merely failing.
type Unit interface {
	Run(ctx context.Context) (bool, error)
}

// FailureReporter is implemented by units that can explain an ordinary
// (false, nil) failure. The cause is recorded without turning the failure
// into an error.
type FailureReporter interface {
	FailureCause() error
}

// UnitFactory builds a fresh unit for every attempt.
type UnitFactory func() Unit

// SleepFunc pauses for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Outcome is the detailed result of a retried unit.
type Outcome struct {
	Success  bool
	Attempts int
	LastErr  error
}

// Retrier runs a unit until it succeeds or attempts run out, waiting
// attempt*BaseDelay between attempts.
type Retrier struct {
	baseDelay time.Duration
	sleep     SleepFunc
	logger    *slog.Logger
}

// NewRetrier creates a retrier with linear backoff.
func NewRetrier(baseDelay time.Duration, logger *slog.Logger) *Retrier {
	return &Retrier{
		baseDelay: baseDelay,
		sleep:     sleepContext,
		logger:    logger,
	}
}

// WithSleep replaces the backoff pause.
func (r *Retrier) WithSleep(fn SleepFunc) *Retrier {
	if fn != nil {
		r.sleep = fn
	}
	return r
}

// Run reports whether any attempt of the named unit succeeded.
func (r *Retrier) Run(ctx context.Context, factory UnitFactory, name string, maxAttempts int) bool {
	return r.RunDetailed(ctx, factory, name, maxAttempts).Success
}

// RunDetailed is Run plus the attempt count and the last failure cause.
func (r *Retrier) RunDetailed(ctx context.Context, factory UnitFactory, name string, maxAttempts int) Outcome {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	logger := r.logger.With("unit", name)
	var out Outcome
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		out.Attempts = attempt
		logger.Info("attempt starting", "attempt", attempt, "max_attempts", maxAttempts)

		ok, cause, err := r.attempt(ctx, factory)
		if ok {
			logger.Info("automation completed successfully", "attempt", attempt)
			out.Success = true
			out.LastErr = nil
			return out
		}
		if err != nil {
			logger.Error("automation error", "attempt", attempt, "err", err)
			out.LastErr = err
		} else {
			logger.Warn("automation failed", "attempt", attempt, "cause", cause)
			if cause != nil {
				out.LastErr = fmt.Errorf("attempt %d failed: %w", attempt, cause)
			} else {
				out.LastErr = fmt.Errorf("attempt %d failed", attempt)
			}
		}

		if attempt < maxAttempts {
			delay := time.Duration(attempt) * r.baseDelay
			logger.Info("waiting before retry", "delay", delay)
			if err := r.sleep(ctx, delay); err != nil {
				logger.Warn("retry aborted", "err", err)
				out.LastErr = err
				break
			}
		}
	}
	logger.Error("automation failed after all attempts", "attempts", out.Attempts)
	return out
}

func (r *Retrier) attempt(ctx context.Context, factory UnitFactory) (ok bool, cause, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			ok = false
			err = fmt.Errorf("unit panicked: %v", rec)
		}
	}()
	unit := factory()
	if unit == nil {
		return false, nil, errors.New("unit factory returned nil")
	}
	ok, err = unit.Run(ctx)
	if !ok && err == nil {
		if fr, isReporter := unit.(FailureReporter); isReporter {
			cause = fr.FailureCause()
		}
	}
	return ok, cause, err
}

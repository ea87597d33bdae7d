package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted is matched by errors.Is on an ExhaustedError.
var ErrExhausted = errors.New("retries exhausted")

// ErrPollTimeout is returned by Poll when the maximum wait elapses.
var ErrPollTimeout = errors.New("poll timed out")

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Policy describes how transient failures are retried: exponential backoff from
// BaseDelay doubling per attempt, capped at MaxDelay, at most MaxAttempts tries.
type Policy struct {
	MaxAttempts     int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	HonorRetryAfter bool

	// OnRetry, when set, is called before each backoff sleep.
	OnRetry func(attempt int, delay time.Duration, err error)

	Sleep Sleeper
	Now   func() time.Time
}

// DefaultPolicy mirrors the partner API guidance: 8 attempts from 1.5s, capped at 60s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     8,
		BaseDelay:       1500 * time.Millisecond,
		MaxDelay:        60 * time.Second,
		HonorRetryAfter: true,
	}
}

// TransientError marks an error as retryable, optionally carrying the
// server-provided Retry-After hint.
type TransientError struct {
	Err        error
	RetryAfter time.Duration
}

func (e *TransientError) Error() string { return e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err so that Policy.Do retries it.
func Transient(err error, retryAfter time.Duration) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err, RetryAfter: retryAfter}
}

// IsTransient reports whether err is retryable.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

// ExhaustedError is returned when every attempt failed with a transient error.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

func (e *ExhaustedError) Is(target error) bool { return target == ErrExhausted }

// Backoff returns the delay before retrying after the given (1-based) failed attempt.
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Do runs fn until it succeeds, returns a non-transient error, or MaxAttempts
// is reached. The final transient failure is wrapped in an ExhaustedError.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}

		var transient *TransientError
		if !errors.As(err, &transient) {
			return err
		}
		last = err

		if attempt == attempts {
			break
		}

		delay := p.Backoff(attempt)
		if p.HonorRetryAfter && transient.RetryAfter > 0 {
			delay = transient.RetryAfter
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}
		if err := p.sleep(ctx, delay); err != nil {
			return err
		}
	}

	return &ExhaustedError{Attempts: attempts, Last: last}
}

// Poll calls check every interval until it reports done, returns an error, or
// maxWait elapses (ErrPollTimeout). A zero maxWait polls indefinitely.
func (p Policy) Poll(ctx context.Context, interval, maxWait time.Duration, check func(ctx context.Context) (bool, error)) error {
	now := p.Now
	if now == nil {
		now = time.Now
	}
	deadline := now().Add(maxWait)

	for {
		done, err := check(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if maxWait > 0 && !now().Before(deadline) {
			return ErrPollTimeout
		}
		if err := p.sleep(ctx, interval); err != nil {
			return err
		}
	}
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	return SleepContext(ctx, d)
}

// SleepContext is the default Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

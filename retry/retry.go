// Package retry runs operations that may fail transiently, waiting an
// exponentially growing, jittered delay between attempts.
//
//	doc, err := retry.DoValue(ctx, fetch,
//		retry.WithAttempts(5),
//		retry.WithBackoff(retry.ExpBackoff{Base: 100 * time.Millisecond, Max: 5 * time.Second, Factor: 2}),
//	)
//
// An operation stops the loop early by returning an error wrapped with Abort.
package retry

import (
	"context"
	"errors"
	"time"
)

const (
	defaultAttempts      = 4
	defaultBaseDelay     = 100 * time.Millisecond
	defaultMaxDelay      = 2 * time.Second
	defaultBackoffFactor = 2.0
)

// Attempts is the maximum number of calls, the first one included. Zero
// means no limit.
type Attempts uint

// Option configures a retry loop.
type Option func(*options)

type options struct {
	attempts Attempts
	backoff  Backoff
	jitter   Jitter
	timeout  time.Duration
}

// WithAttempts sets the maximum number of calls.
func WithAttempts(a Attempts) Option {
	return func(o *options) {
		o.attempts = a
	}
}

// WithBackoff sets how the delay grows between attempts.
func WithBackoff(b Backoff) Option {
	return func(o *options) {
		o.backoff = b
	}
}

// WithJitter sets how much randomness is applied to each delay.
func WithJitter(j Jitter) Option {
	return func(o *options) {
		o.jitter = j
	}
}

// WithTimeout bounds every single attempt.
func WithTimeout(t time.Duration) Option {
	return func(o *options) {
		o.timeout = t
	}
}

func newOptions(opts []Option) *options {
	o := &options{
		attempts: defaultAttempts,
		backoff: ExpBackoff{
			Base:   defaultBaseDelay,
			Max:    defaultMaxDelay,
			Factor: defaultBackoffFactor,
		},
		jitter: FullJitter,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Do calls f until it succeeds, returns an aborted error, the attempts run
// out or ctx is done. It returns the last error seen.
func Do(ctx context.Context, f func(ctx context.Context) error, opts ...Option) error {
	_, err := DoValue(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, f(ctx)
	}, opts...)

	return err
}

// DoValue is Do for operations that produce a value.
func DoValue[T any](ctx context.Context, f func(ctx context.Context) (T, error), opts ...Option) (T, error) {
	o := newOptions(opts)

	var (
		zero T
		err  error
	)

	for attempt := uint(0); o.attempts == 0 || Attempts(attempt) < o.attempts; attempt++ {
		var out T

		out, err = call(withAttempt(ctx, attempt), o.timeout, f)
		if err == nil {
			return out, nil
		}

		var aborted *abortError
		if errors.As(err, &aborted) {
			return zero, aborted.err
		}

		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		if o.attempts != 0 && Attempts(attempt+1) >= o.attempts {
			break
		}

		timer := time.NewTimer(o.jitter.apply(o.backoff.Delay(attempt)))

		select {
		case <-ctx.Done():
			timer.Stop()

			return zero, ctx.Err()
		case <-timer.C:
		}
	}

	return zero, err
}

func call[T any](ctx context.Context, timeout time.Duration, f func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return f(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return f(ctx)
}

type ctxKey string

const attemptKey ctxKey = "attempt"

func withAttempt(ctx context.Context, attempt uint) context.Context {
	return context.WithValue(ctx, attemptKey, attempt)
}

// Attempt returns the zero-based attempt number stored in ctx by Do.
func Attempt(ctx context.Context) uint {
	attempt, _ := ctx.Value(attemptKey).(uint)

	return attempt
}

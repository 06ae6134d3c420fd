// Package retry provides a bounded retry combinator with pluggable backoff and
// retry predicates, plus heuristics for classifying gateway errors.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// ErrExhausted is wrapped by the outcome error when every attempt was used.
var ErrExhausted = errors.New("retry attempts exhausted")

// Backoff computes the wait before the next attempt. attempt is the number of
// attempts already made (1 after the first failure).
type Backoff interface {
	Delay(attempt int) time.Duration
}

// Exponential waits Initial*Factor^(attempt-1), capped at Max.
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
	Factor  float64
	Jitter  bool
}

// Delay implements Backoff.
func (e Exponential) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	factor := e.Factor
	if factor <= 0 {
		factor = 2.0
	}

	delay := time.Duration(float64(e.Initial) * math.Pow(factor, float64(attempt-1)))
	if e.Max > 0 && (delay > e.Max || delay < 0) {
		delay = e.Max
	}

	if e.Jitter && delay > 0 {
		// +/-10%
		jitter := time.Duration(float64(delay) * 0.1 * (2*rand.Float64() - 1))
		delay += jitter
	}
	return delay
}

// Constant waits the same duration between every attempt.
type Constant time.Duration

// Delay implements Backoff.
func (c Constant) Delay(int) time.Duration { return time.Duration(c) }

// NoDelay retries immediately.
func NoDelay() Backoff { return Constant(0) }

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Policy bounds a retry loop.
//
//nolint:govet // Simple struct, logical grouping preferred
type Policy struct {
	MaxAttempts int
	Backoff     Backoff
	// Sleep defaults to retry.Sleep; tests substitute an instant version.
	Sleep SleepFunc
}

// NewPolicy creates a policy with the default sleeper.
func NewPolicy(maxAttempts int, backoff Backoff) Policy {
	return Policy{MaxAttempts: maxAttempts, Backoff: backoff, Sleep: Sleep}
}

// Wait sleeps for the backoff following attempt.
func (p Policy) Wait(ctx context.Context, attempt int) error {
	if p.Backoff == nil {
		return ctx.Err()
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	return sleep(ctx, p.Backoff.Delay(attempt))
}

// Predicate decides whether the result of an attempt calls for another try.
type Predicate[T any] func(value T, err error) bool

// OnError retries whenever the operation returned an error.
func OnError[T any]() Predicate[T] {
	return func(_ T, err error) bool { return err != nil }
}

// Outcome is the typed result of Do.
type Outcome[T any] struct {
	Value    T
	Err      error
	Attempts int
}

// Ok reports whether the final attempt was accepted.
func (o Outcome[T]) Ok() bool { return o.Err == nil }

// Exhausted reports whether the loop stopped because it ran out of attempts.
func (o Outcome[T]) Exhausted() bool { return errors.Is(o.Err, ErrExhausted) }

// Do runs op until retryIf rejects the result, the policy's attempts are used up,
// or ctx is done. op receives the 1-based attempt number.
func Do[T any](ctx context.Context, policy Policy, op func(ctx context.Context, attempt int) (T, error), retryIf Predicate[T]) Outcome[T] {
	maxAttempts := policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if retryIf == nil {
		retryIf = OnError[T]()
	}

	var out Outcome[T]
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			out.Err = fmt.Errorf("retry cancelled: %w", err)
			return out
		}

		out.Attempts = attempt
		out.Value, out.Err = op(ctx, attempt)
		if !retryIf(out.Value, out.Err) {
			return out
		}

		if attempt == maxAttempts {
			break
		}
		if err := policy.Wait(ctx, attempt); err != nil {
			out.Err = fmt.Errorf("retry cancelled: %w", err)
			return out
		}
	}

	if out.Err != nil {
		out.Err = fmt.Errorf("%w after %d attempts: %w", ErrExhausted, out.Attempts, out.Err)
	} else {
		out.Err = fmt.Errorf("%w after %d attempts", ErrExhausted, out.Attempts)
	}
	return out
}

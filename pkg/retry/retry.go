// Package retry wraps a single remote operation with a bounded number of attempts.
package retry

import (
	"context"
	"errors"
	"fmt"
)

// DefaultAttempts is the attempt budget used when a Policy leaves Attempts unset.
const DefaultAttempts = 5

var (
	// ErrExhausted matches every *ExhaustedError via errors.Is.
	ErrExhausted = errors.New("retry attempts exhausted")

	// ErrInvalidResult is recorded when an attempt succeeds but its result is rejected.
	ErrInvalidResult = errors.New("invalid result")
)

// ExhaustedError is returned when no attempt produced a valid result.
type ExhaustedError struct {
	Op       string // Human readable description of the intended operation
	Attempts int
	Last     error // Error of the final attempt
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: giving up after %d attempts: %v", e.Op, e.Attempts, e.Last)
}

func (e *ExhaustedError) Is(target error) bool {
	return target == ErrExhausted
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// Policy configures Do.
type Policy struct {
	Attempts int

	// Observe is called after every failed attempt. Optional.
	Observe func(op string, attempt int, err error)
}

func (p Policy) attempts() int {
	if p.Attempts <= 0 {
		return DefaultAttempts
	}
	return p.Attempts
}

// Do calls fn up to p.Attempts times, one after another, and returns the first result
// accepted by valid (a nil valid accepts every error-free result). There is no delay
// between attempts; pacing is left to the client being called.
func Do[T any](ctx context.Context, p Policy, op string, fn func(context.Context) (T, error), valid func(T) bool) (T, error) {
	var zero T
	var lastErr error

	attempts := p.attempts()
	for i := 1; i <= attempts; i++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn(ctx)
		if err == nil && (valid == nil || valid(result)) {
			return result, nil
		}
		if err == nil {
			err = ErrInvalidResult
		}
		lastErr = err

		if p.Observe != nil {
			p.Observe(op, i, err)
		}
	}

	return zero, &ExhaustedError{Op: op, Attempts: attempts, Last: lastErr}
}

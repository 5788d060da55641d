package resilience

import (
	"context"
	"errors"
	"time"
)

// RunWithTimeout runs op with a deadline of d. It returns once op returns or
// the deadline passes, whichever is first, even if op ignores its context.
//
// Only this deadline is reported as ErrTimeout. When the parent context is
// done, its own error is returned. A non-positive d runs op directly.
func RunWithTimeout(ctx context.Context, d time.Duration, op func(context.Context) error) error {
	if d <= 0 {
		return op(ctx)
	}

	callCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- op(callCtx) }()

	var err error
	select {
	case err = <-done:
	case <-callCtx.Done():
		err = callCtx.Err()
	}

	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	default:
		return err
	}
}

package ccb

import (
	"context"
	"time"
)

// WithTimeout runs fn with a deadline. If the deadline expires first the call
// fails with a *TimeoutError naming label, and fn's eventual result is
// discarded; the goroutine is left to finish against the canceled context.
// WithTimeout never retries; that is the caller's job.
func WithTimeout(ctx context.Context, d time.Duration, label string, fn func(context.Context) ([]byte, error)) ([]byte, error) {
	cctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		data []byte
		err  error
	}
	// Buffered so the abandoned goroutine can always complete its send.
	ch := make(chan result, 1)

	go func() {
		data, err := fn(cctx)
		ch <- result{data, err}
	}()

	select {
	case r := <-ch:
		return r.data, r.err
	case <-cctx.Done():
		if ctx.Err() != nil {
			// The parent was canceled, not our timer.
			return nil, ctx.Err()
		}
		return nil, &TimeoutError{Label: label, Duration: d}
	}
}

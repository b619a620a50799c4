// Package poll implements the client side of the status polling contract:
// repeatedly fetch a job's state at a fixed interval until a terminal state is
// observed or the caller gives up. The pipeline never pushes notifications, so
// every consumer of an asynchronous transcription uses this loop.
package poll

import (
	"context"
	"errors"
	"time"
)

// ErrGaveUp is returned when maxWait elapses before fn reports done.
var ErrGaveUp = errors.New("polling gave up before terminal state")

// Func fetches the current state once. It returns done=true when a terminal
// state was observed. A non-nil error stops polling immediately.
type Func func(ctx context.Context) (done bool, err error)

// Until calls fn immediately and then at every interval until fn reports done,
// fn fails, ctx ends, or maxWait elapses. maxWait <= 0 means no give-up bound
// beyond ctx.
func Until(ctx context.Context, interval, maxWait time.Duration, fn Func) error {
	if maxWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, maxWait)
		defer cancel()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		done, err := fn(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) && maxWait > 0 {
				return ErrGaveUp
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

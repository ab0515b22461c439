package dispatch

import (
	"context"
	"fmt"
	"time"
)

// TimeoutError is returned by Poll when the condition is not met in time.
// The polled operation keeps running remotely.
type TimeoutError struct {
	What    string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	what := e.What
	if what == "" {
		what = "Operation"
	}
	return fmt.Sprintf("%s timed out after %d seconds", what, int(e.Timeout.Seconds()))
}

// CheckFunc reports whether the polled operation has finished and its
// latest state.
type CheckFunc func(ctx context.Context) (done bool, result interface{}, err error)

// Poll calls check immediately and then every interval until it reports done,
// returns an error, or timeout elapses. On expiry it returns the last result
// seen together with a *TimeoutError.
func Poll(ctx context.Context, interval, timeout time.Duration, what string, check CheckFunc) (interface{}, error) {
	if interval <= 0 {
		interval = time.Second
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last interface{}
	for {
		done, result, err := check(ctx)
		if err != nil {
			return result, err
		}
		last = result
		if done {
			return result, nil
		}

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-deadline.C:
			return last, &TimeoutError{What: what, Timeout: timeout}
		case <-ticker.C:
		}
	}
}

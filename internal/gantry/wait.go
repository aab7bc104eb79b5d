package gantry

import (
	"context"
	"time"

	"gantry-control/internal/common/poll"
)

var (
	// ErrTimeout a convergence wait exceeded its deadline.
	ErrTimeout = poll.ErrTimeout
	// ErrMotionInterrupted the safety supervisor revoked motion during a wait.
	ErrMotionInterrupted = poll.ErrInterrupted
)

// WaitUntil polls predicate every interval until it holds, timeout elapses,
// interrupted reports true or ctx ends. name labels the returned error.
// interrupted may be nil.
func WaitUntil(ctx context.Context, name string, interval, timeout time.Duration, predicate poll.Predicate, interrupted func() bool) error {
	return poll.Until(ctx, poll.Options{
		Interval:    interval,
		Timeout:     timeout,
		Interrupted: interrupted,
		Name:        name,
	}, predicate)
}

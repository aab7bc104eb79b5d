// Package poll implements the convergence wait used by homing, positioning and
// referencing: poll a hardware predicate at a fixed interval until it holds, a
// deadline passes, or a fault signal interrupts the wait.
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTimeout the predicate did not hold before the deadline.
	ErrTimeout = errors.New("convergence wait timed out")
	// ErrInterrupted the fault signal fired while waiting.
	ErrInterrupted = errors.New("convergence wait interrupted")
)

// Predicate a polled condition. An error aborts the wait.
type Predicate func(ctx context.Context) (bool, error)

// Options controls one wait.
type Options struct {
	// Interval between polls. Zero means 100ms.
	Interval time.Duration
	// Timeout bounds the whole wait. Zero means no deadline.
	Timeout time.Duration
	// Interrupted is checked before every poll; true ends the wait with ErrInterrupted.
	Interrupted func() bool
	// Name labels errors.
	Name string
}

const DefaultInterval = 100 * time.Millisecond

// Until blocks until pred returns true. The first poll happens immediately,
// so a predicate that already holds returns without sleeping.
func Until(ctx context.Context, opts Options, pred Predicate) error {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	var deadline <-chan time.Time
	if opts.Timeout > 0 {
		timer := time.NewTimer(opts.Timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if opts.Interrupted != nil && opts.Interrupted() {
			return fmt.Errorf("%s: %w", opts.label(), ErrInterrupted)
		}

		ok, err := pred(ctx)
		if err != nil {
			return fmt.Errorf("%s: %w", opts.label(), err)
		}
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", opts.label(), ctx.Err())
		case <-deadline:
			return fmt.Errorf("%s after %s: %w", opts.label(), opts.Timeout, ErrTimeout)
		case <-ticker.C:
		}
	}
}

// Sleep waits for d or until ctx is done.
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

func (o Options) label() string {
	if o.Name == "" {
		return "wait"
	}
	return o.Name
}

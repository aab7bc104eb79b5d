// internal/safety/monitor.go
package safety

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gantry-control/internal/interfaces"

	"go.uber.org/multierr"
)

// AxisChecker runs the per-axis overload/temperature check.
type AxisChecker interface {
	Axes() []int
	PeriodicSafetyCheck(ctx context.Context, a int) (bool, error)
}

// Monitor background safety poller. Each cycle checks every axis and
// evaluates the interlocks; a failing interlock while Normal activates the
// emergency stop.
type Monitor struct {
	supervisor *Supervisor
	axes       AxisChecker
	interval   time.Duration
	logger     interfaces.Logger
}

func NewMonitor(supervisor *Supervisor, axes AxisChecker, interval time.Duration, logger interfaces.Logger) *Monitor {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &Monitor{
		supervisor: supervisor,
		axes:       axes,
		interval:   interval,
		logger:     logger,
	}
}

// Run polls until ctx is cancelled. Cycle errors are logged, never fatal.
func (m *Monitor) Run(ctx context.Context) {
	m.logger.Infof("🛡️ Safety monitor started (interval %s)", m.interval)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Safety monitor stopped")
			return
		case <-ticker.C:
			if err := m.CheckOnce(ctx); err != nil && ctx.Err() == nil {
				m.logger.Warnf("Safety cycle: %v", err)
			}
		}
	}
}

// CheckOnce runs a single safety cycle.
func (m *Monitor) CheckOnce(ctx context.Context) error {
	var errs error

	for _, a := range m.axes.Axes() {
		tripped, err := m.axes.PeriodicSafetyCheck(ctx, a)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if tripped {
			m.logger.Warnf("Safety check tripped on servo %d", a)
		}
	}

	err := m.supervisor.CheckInterlocks(ctx)
	var ilErr *InterlockError
	if errors.As(err, &ilErr) && !m.supervisor.IsActivated() {
		if actErr := m.supervisor.Activate(ctx, fmt.Sprintf("interlock %s failed", ilErr.Name)); actErr != nil {
			errs = multierr.Append(errs, actErr)
		}
	}
	return errs
}

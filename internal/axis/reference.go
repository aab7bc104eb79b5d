package axis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gantry-control/internal/common/constants"
	"gantry-control/internal/common/poll"
	"gantry-control/internal/events"
)

// AutoReference establishes the origin of axis a.
//
// An unhomed axis is homed first and referencing aborts if homing does not
// complete. The axis then creeps at reference speed, toward negative travel
// until a hard stop is detected ("hard_stop") or toward positive travel until
// the reference sensor triggers ("sensor"), and the current position is
// committed as origin. Any other method is refused before anything is sent.
func (c *Controller) AutoReference(ctx context.Context, a int, method string) error {
	return c.AutoReferenceInterruptible(ctx, a, method, nil)
}

// AutoReferenceInterruptible is AutoReference guarded by interrupted, which is
// checked before homing, during the homing wait and before every jog. A true
// result stops the axis and ends referencing with poll.ErrInterrupted.
// interrupted may be nil.
func (c *Controller) AutoReferenceInterruptible(ctx context.Context, a int, method string, interrupted func() bool) error {
	if _, err := c.axis(a); err != nil {
		return err
	}

	var detect string
	step := c.opts.ReferenceStep
	switch method {
	case constants.ReferenceHardStop:
		detect, step = constants.CmdHardStopDetected, -step
	case constants.ReferenceSensor:
		detect = constants.CmdSensorTriggered
	default:
		err := fmt.Errorf("axis %d: %q: %w", a, method, ErrUnknownReferenceMethod)
		c.reject(a, "unknown_method", err)
		return err
	}

	if err := c.checkAlarm(a, "reference"); err != nil {
		return err
	}

	if err := c.ensureHomed(ctx, a, interrupted); err != nil {
		c.events.Emit(events.New(constants.LevelError, source, constants.EventMotionFault, a,
			"referencing aborted: %v", err))
		return err
	}

	if err := c.SetSpeed(ctx, a, c.opts.ReferenceSpeed); err != nil {
		return err
	}

	c.logger.Infof("Referencing servo %d using %s", a, method)
	if err := c.seek(ctx, a, method, detect, step, interrupted); err != nil {
		if errors.Is(err, poll.ErrInterrupted) {
			c.events.Emit(events.New(constants.LevelWarn, source, constants.EventMotionFault, a,
				"referencing interrupted: %v", err))
		}
		return err
	}

	if err := c.exec(ctx, a, constants.CmdSetReference, a); err != nil {
		return err
	}
	c.update(a, func(s *state) {
		s.commanded = 0
		s.homed = true
	})

	atTarget, err := c.IsAtTarget(ctx, a)
	if err != nil {
		return err
	}
	if !atTarget {
		err := fmt.Errorf("axis %d: %w", a, ErrNotAtTarget)
		c.events.Emit(events.New(constants.LevelWarn, source, constants.EventMotionFault, a, "%v", err))
		return err
	}

	c.events.Emit(events.New(constants.LevelInfo, source, constants.EventAxisReferenced, a,
		"reference set using %s", method))
	return nil
}

func (c *Controller) ensureHomed(ctx context.Context, a int, interrupted func() bool) error {
	if err := c.checkInterrupted(ctx, a, interrupted, "homing"); err != nil {
		return err
	}
	homed, err := c.IsHomed(ctx, a)
	if err != nil {
		return err
	}
	if homed {
		return nil
	}

	if err := c.Home(ctx, a); err != nil {
		return err
	}
	err = poll.Until(ctx, poll.Options{
		Interval:    c.opts.PollInterval,
		Timeout:     c.opts.HomingTimeout,
		Interrupted: interrupted,
		Name:        fmt.Sprintf("homing servo %d", a),
	}, func(ctx context.Context) (bool, error) {
		return c.IsHomed(ctx, a)
	})
	switch {
	case errors.Is(err, poll.ErrTimeout):
		return fmt.Errorf("axis %d: %w: %w", a, ErrHomingFailed, err)
	case errors.Is(err, poll.ErrInterrupted):
		c.haltInterrupted(a)
	}
	return err
}

// seek jogs by step until the detection predicate holds, at most
// ReferenceMaxSteps times.
func (c *Controller) seek(ctx context.Context, a int, method, detect string, step int, interrupted func() bool) error {
	for steps := 0; ; steps++ {
		found, err := c.queryBool(ctx, a, detect)
		if err != nil {
			return err
		}
		if found {
			c.logger.Infof("Servo %d reference found after %d steps", a, steps)
			return nil
		}
		if steps >= c.opts.ReferenceMaxSteps {
			return fmt.Errorf("axis %d: %s not detected after %d steps: %w", a, detect, steps, ErrReferenceNotFound)
		}

		if err := c.checkInterrupted(ctx, a, interrupted, "reference seek"); err != nil {
			return err
		}
		if err := c.jog(ctx, a, step); err != nil {
			return err
		}
		c.metrics.ReferenceStepsTotal.WithLabelValues(strconv.Itoa(a), method).Inc()

		if err := poll.Sleep(ctx, c.opts.PollInterval); err != nil {
			return err
		}
	}
}

// checkInterrupted ends an operation before the next motion command once
// interrupted fires, and stops the axis.
func (c *Controller) checkInterrupted(ctx context.Context, a int, interrupted func() bool, op string) error {
	if interrupted == nil || !interrupted() {
		return nil
	}
	c.haltInterrupted(a)
	return fmt.Errorf("axis %d: %s: %w", a, op, poll.ErrInterrupted)
}

// haltInterrupted stops the axis on a fresh context; the caller's ctx may
// already be done.
func (c *Controller) haltInterrupted(a int) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Stop(ctx, a); err != nil {
		c.logger.Errorf("Stop servo %d after interruption: %v", a, err)
	}
}

package axis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"gantry-control/internal/common/constants"
	"gantry-control/internal/events"
	"gantry-control/internal/models"
)

// CheckOverload asks the drive for an overload condition. A positive finding
// stops the axis before returning and latches an OVERLOAD alarm.
func (c *Controller) CheckOverload(ctx context.Context, a int) (bool, error) {
	overloaded, err := c.queryBool(ctx, a, constants.CmdCheckOverload)
	if err != nil {
		return false, err
	}
	if !overloaded {
		return false, nil
	}
	return true, c.trip(ctx, a, constants.AlarmOverload, "overload detected")
}

// CheckTemperature reads the drive temperature. Exceeding the threshold stops
// the axis before returning and latches an OVER_TEMPERATURE alarm.
func (c *Controller) CheckTemperature(ctx context.Context, a int) (bool, error) {
	temperature, err := c.queryFloat(ctx, a, constants.CmdGetTemperature)
	if err != nil {
		return false, err
	}
	c.update(a, func(s *state) {
		s.temperature = temperature
	})
	if temperature <= c.opts.TemperatureThreshold {
		return false, nil
	}
	return true, c.trip(ctx, a, constants.AlarmOverTemperature,
		fmt.Sprintf("temperature %.1f exceeds threshold %.1f", temperature, c.opts.TemperatureThreshold))
}

// PeriodicSafetyCheck runs the overload check, then the temperature check. The
// first positive finding ends the check.
func (c *Controller) PeriodicSafetyCheck(ctx context.Context, a int) (bool, error) {
	overloaded, err := c.CheckOverload(ctx, a)
	if err != nil || overloaded {
		return overloaded, err
	}
	return c.CheckTemperature(ctx, a)
}

// trip stops the axis, latches the alarm and records it. The stop is issued
// first so nothing else is sent to the axis ahead of it.
func (c *Controller) trip(ctx context.Context, a int, kind, message string) error {
	stopErr := c.Stop(ctx, a)

	var alreadyLatched bool
	c.update(a, func(s *state) {
		alreadyLatched = s.alarm == kind
		s.alarm = kind
	})
	if alreadyLatched {
		return stopErr
	}

	c.metrics.AxisAlarmsTotal.WithLabelValues(strconv.Itoa(a), kind).Inc()
	c.events.Emit(events.New(constants.LevelError, source, constants.EventAxisAlarm, a, "%s: %s", kind, message))

	if c.alarms != nil {
		if err := c.alarms.LogAlarm(&models.AlarmLog{
			Axis:         a,
			AlarmKind:    kind,
			AlarmMessage: message,
			Severity:     severity(kind),
			Timestamp:    time.Now(),
		}); err != nil {
			c.logger.Warnf("Failed to record %s alarm for servo %d: %v", kind, a, err)
		}
	}
	return stopErr
}

func severity(kind string) int {
	if kind == constants.AlarmOverload {
		return 2
	}
	return 1
}

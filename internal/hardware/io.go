// internal/hardware/io.go
package hardware

import (
	"context"
	"fmt"
	"strconv"

	"gantry-control/internal/channel"
	"gantry-control/internal/common/constants"
	"gantry-control/internal/interfaces"
)

// IOController digital/analog IO block on an IO bus
type IOController struct {
	bus    *channel.Bus
	logger interfaces.Logger
}

func NewIOController(bus *channel.Bus, logger interfaces.Logger) *IOController {
	return &IOController{bus: bus, logger: logger}
}

// ReadDigital reads a digital input. An unparsable response is an error.
func (c *IOController) ReadDigital(ctx context.Context, id int) (bool, error) {
	resp, err := c.bus.Query(ctx, channel.Command(constants.CmdReadDigitalInput, id))
	if err != nil {
		return false, err
	}
	state, err := channel.ParseBool(resp)
	if err != nil {
		return false, fmt.Errorf("digital input %d: malformed response %q: %w", id, resp, err)
	}
	c.logger.Debugf("Digital input %d state is %t", id, state)
	return state, nil
}

// WriteDigital sets a digital output.
func (c *IOController) WriteDigital(ctx context.Context, id int, state bool) error {
	if err := c.bus.Exec(ctx, channel.Command(constants.CmdWriteDigitalOutput, id, state)); err != nil {
		return err
	}
	c.logger.Infof("Setting digital output %d to state %t", id, state)
	return nil
}

// ReadAnalog reads an analog input.
func (c *IOController) ReadAnalog(ctx context.Context, id int) (float64, error) {
	resp, err := c.bus.Query(ctx, channel.Command(constants.CmdReadAnalogInput, id))
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseFloat(resp, 64)
	if err != nil {
		return 0, fmt.Errorf("analog input %d: malformed response %q: %w", id, resp, err)
	}
	c.logger.Debugf("Analog input %d value is %g", id, value)
	return value, nil
}

// WriteAnalog sets an analog output.
func (c *IOController) WriteAnalog(ctx context.Context, id int, value float64) error {
	if err := c.bus.Exec(ctx, channel.Command(constants.CmdWriteAnalogOutput, id, value)); err != nil {
		return err
	}
	c.logger.Infof("Setting analog output %d to value %g", id, value)
	return nil
}

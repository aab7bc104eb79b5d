// internal/hardware/sensor.go
package hardware

import (
	"context"
	"fmt"

	"gantry-control/internal/channel"
	"gantry-control/internal/common/constants"
	"gantry-control/internal/interfaces"
)

// SensorController presence sensors wired to the IO block
type SensorController struct {
	bus    *channel.Bus
	logger interfaces.Logger
}

func NewSensorController(bus *channel.Bus, logger interfaces.Logger) *SensorController {
	return &SensorController{bus: bus, logger: logger}
}

func (s *SensorController) GetState(ctx context.Context, id int) (bool, error) {
	resp, err := s.bus.Query(ctx, channel.Command(constants.CmdGetSensor, id))
	if err != nil {
		return false, err
	}
	state, err := channel.ParseBool(resp)
	if err != nil {
		return false, fmt.Errorf("sensor %d: malformed response %q: %w", id, resp, err)
	}
	s.logger.Debugf("Sensor %d state is %t", id, state)
	return state, nil
}

// FieldbusStatusReader reads named status words from the servo fieldbus master.
type FieldbusStatusReader struct {
	bus *channel.Bus
}

func NewFieldbusStatusReader(bus *channel.Bus) *FieldbusStatusReader {
	return &FieldbusStatusReader{bus: bus}
}

func (f *FieldbusStatusReader) ReadStatus(ctx context.Context, key string) (string, error) {
	return f.bus.Query(ctx, channel.Command(constants.CmdReadStatus, key))
}

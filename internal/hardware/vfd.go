// internal/hardware/vfd.go
package hardware

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"gantry-control/internal/channel"
	"gantry-control/internal/common/constants"
	"gantry-control/internal/interfaces"
)

// ErrInvalidVFDSpeed negative speed setpoint
var ErrInvalidVFDSpeed = errors.New("invalid vfd speed")

// VFD variable frequency drive on its own serial bus
type VFD struct {
	bus    *channel.Bus
	logger interfaces.Logger
}

func NewVFD(bus *channel.Bus, logger interfaces.Logger) *VFD {
	return &VFD{bus: bus, logger: logger}
}

// SetSpeed writes the speed setpoint.
func (v *VFD) SetSpeed(ctx context.Context, speed int) error {
	if speed < 0 {
		return fmt.Errorf("vfd speed %d: %w", speed, ErrInvalidVFDSpeed)
	}
	if err := v.bus.Exec(ctx, channel.Command(constants.CmdSetSpeed, speed)); err != nil {
		return err
	}
	v.logger.Infof("Setting VFD speed to %d", speed)
	return nil
}

func (v *VFD) Start(ctx context.Context) error {
	if err := v.bus.Exec(ctx, constants.CmdVFDStart); err != nil {
		return err
	}
	v.logger.Infof("VFD started")
	return nil
}

func (v *VFD) Stop(ctx context.Context) error {
	if err := v.bus.Exec(ctx, constants.CmdVFDStop); err != nil {
		return err
	}
	v.logger.Infof("VFD stopped")
	return nil
}

// GetSpeed reads the actual speed reported by the drive.
func (v *VFD) GetSpeed(ctx context.Context) (int, error) {
	resp, err := v.bus.Query(ctx, constants.CmdVFDGetSpeed)
	if err != nil {
		return 0, err
	}
	speed, err := strconv.Atoi(resp)
	if err != nil {
		return 0, fmt.Errorf("vfd speed: malformed response %q: %w", resp, err)
	}
	return speed, nil
}

// GetFaultCode returns the drive fault code, VFDNoFault when healthy.
func (v *VFD) GetFaultCode(ctx context.Context) (string, error) {
	return v.bus.Query(ctx, constants.CmdVFDGetFault)
}

func (v *VFD) ResetFault(ctx context.Context) error {
	if err := v.bus.Exec(ctx, constants.CmdVFDResetFault); err != nil {
		return err
	}
	v.logger.Infof("VFD fault reset")
	return nil
}

package hardware

import (
	"context"
	"testing"

	"gantry-control/internal/channel"
	"gantry-control/internal/common/constants"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSimBus(t *testing.T, overrides map[string]string) (*channel.Bus, *channel.Simulated) {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	sim := channel.NewSimulated(logger, overrides)
	return channel.NewBus("sim", sim), sim
}

func TestReadDigitalIgnoresCase(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	bus, _ := newSimBus(t, map[string]string{
		channel.Command(constants.CmdReadDigitalInput, 3): "TRUE",
		channel.Command(constants.CmdReadDigitalInput, 4): "False",
		channel.Command(constants.CmdReadDigitalInput, 5): "on",
	})
	io := NewIOController(bus, logger)
	ctx := context.Background()

	state, err := io.ReadDigital(ctx, 3)
	require.NoError(t, err)
	assert.True(t, state)

	state, err = io.ReadDigital(ctx, 4)
	require.NoError(t, err)
	assert.False(t, state)

	_, err = io.ReadDigital(ctx, 5)
	assert.ErrorContains(t, err, "digital input 5: malformed response")
}

func TestSensorGetStateIgnoresCase(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	bus, _ := newSimBus(t, map[string]string{constants.CmdGetSensor: "TRUE"})
	sensor := NewSensorController(bus, logger)

	state, err := sensor.GetState(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, state)
}

func TestWriteDigitalAndAnalog(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	bus, sim := newSimBus(t, nil)
	io := NewIOController(bus, logger)
	ctx := context.Background()

	require.NoError(t, io.WriteDigital(ctx, 1, false))
	value, err := io.ReadAnalog(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 5.0, value)
	assert.Equal(t, []string{"WRITE_DIGITAL_OUTPUT:1:false", "READ_ANALOG_INPUT:2"}, sim.Sent())
}

func TestVFD(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	bus, sim := newSimBus(t, nil)
	vfd := NewVFD(bus, logger)
	ctx := context.Background()

	require.NoError(t, vfd.SetSpeed(ctx, 75))
	require.NoError(t, vfd.Start(ctx))
	require.NoError(t, vfd.Stop(ctx))
	require.NoError(t, vfd.ResetFault(ctx))

	speed, err := vfd.GetSpeed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1000, speed)

	fault, err := vfd.GetFaultCode(ctx)
	require.NoError(t, err)
	assert.Equal(t, constants.VFDNoFault, fault)

	assert.Equal(t, []string{
		"SET_SPEED:75", "START", "STOP", "RESET_FAULT", "GET_SPEED", "GET_FAULT",
	}, sim.Sent())
	assert.Equal(t, "VFD fault reset", hook.LastEntry().Message)

	assert.ErrorIs(t, vfd.SetSpeed(ctx, -5), ErrInvalidVFDSpeed)
	assert.Len(t, sim.Sent(), 6)
}

func TestVFDMalformedSpeed(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	bus, _ := newSimBus(t, map[string]string{constants.CmdVFDGetSpeed: "fast"})
	vfd := NewVFD(bus, logger)

	_, err := vfd.GetSpeed(context.Background())
	assert.ErrorContains(t, err, "vfd speed: malformed response")
}

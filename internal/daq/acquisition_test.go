package daq

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"gantry-control/internal/axis"
	"gantry-control/internal/channel"
	"gantry-control/internal/common/constants"
	rediskeys "gantry-control/internal/common/redis"
	"gantry-control/internal/hardware"
	"gantry-control/internal/models"
	"gantry-control/internal/services"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type estopFlag bool

func (e estopFlag) IsActivated() bool { return bool(e) }

type fixture struct {
	io        *channel.Simulated
	db        *services.MemoryDatabase
	cache     *services.MemoryCache
	publisher *services.LoopbackPublisher
	service   *Service
}

func newFixture(t *testing.T, estop bool) *fixture {
	t.Helper()
	logger, _ := logtest.NewNullLogger()

	ioSim := channel.NewSimulated(logger, nil)
	ioBus := channel.NewBus("io", ioSim)
	servoSim := channel.NewSimulated(logger, map[string]string{"GET_POSITION:1": "250"})
	ctrl, err := axis.NewController(channel.NewBus("servo", servoSim), logger, nil, nil, axis.DefaultOptions())
	require.NoError(t, err)

	f := &fixture{
		io:        ioSim,
		db:        services.NewMemoryDatabase(0),
		cache:     services.NewMemoryCache(),
		publisher: services.NewLoopbackPublisher(),
	}
	f.service = NewService(Dependencies{
		Sensor:    hardware.NewSensorController(ioBus, logger),
		IO:        hardware.NewIOController(ioBus, logger),
		Axes:      ctrl,
		EStop:     estopFlag(estop),
		Database:  f.db,
		Cache:     f.cache,
		Publisher: f.publisher,
		Logger:    logger,
	}, Options{Interval: time.Millisecond, SensorID: 1, AnalogInput: 1, Axis: 1})
	return f
}

func TestSample(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	sample, err := f.service.Sample(ctx)
	require.NoError(t, err)
	assert.True(t, sample.SensorState)
	assert.InDelta(t, 5.0, sample.AnalogInputValue, 0.0001)
	assert.Equal(t, 250, sample.ServoPosition)
	assert.True(t, sample.EStopActivated)

	require.Len(t, f.db.Samples(), 1)

	position, err := f.cache.HGet(ctx, rediskeys.AxisStatus(1), "position")
	require.NoError(t, err)
	assert.Equal(t, "250", position)
	latest, err := f.cache.HGetAll(ctx, rediskeys.ScadaLatestKey)
	require.NoError(t, err)
	assert.Equal(t, "true", latest["sensor_state"])

	published := f.publisher.Published(constants.TopicGantryTelemetry)
	require.Len(t, published, 1)
	var decoded models.ScadaData
	require.NoError(t, json.Unmarshal(published[0].Payload, &decoded))
	assert.Equal(t, 250, decoded.ServoPosition)
}

func TestSampleReadFailureStoresNothing(t *testing.T) {
	f := newFixture(t, false)
	f.io.SetResponse(constants.CmdReadAnalogInput, "not-a-number")

	_, err := f.service.Sample(context.Background())
	assert.Error(t, err)
	assert.Empty(t, f.db.Samples())
	assert.Empty(t, f.publisher.Published(constants.TopicGantryTelemetry))
}

func TestSampleSkipsPublishWhenDisconnected(t *testing.T) {
	f := newFixture(t, false)
	f.publisher.Disconnect(0)

	_, err := f.service.Sample(context.Background())
	require.NoError(t, err)
	assert.Len(t, f.db.Samples(), 1)
	assert.Empty(t, f.publisher.Published(constants.TopicGantryTelemetry))
}

func TestRunContinuesAfterErrors(t *testing.T) {
	f := newFixture(t, false)
	f.io.SetResponse(constants.CmdGetSensor, "??")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.service.Run(ctx)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	f.io.SetResponse(constants.CmdGetSensor, "true")
	require.Eventually(t, func() bool { return len(f.db.Samples()) > 0 }, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("acquisition loop did not stop")
	}
}

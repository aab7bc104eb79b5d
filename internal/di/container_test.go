package di

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gantry-control/internal/channel"
	"gantry-control/internal/common/constants"
	"gantry-control/internal/config"
	"gantry-control/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func simulationConfig() *config.Config {
	return &config.Config{
		SimulationMode:       true,
		LogLevel:             "error",
		PollInterval:         time.Millisecond,
		HomingTimeout:        time.Second,
		MotionTimeout:        time.Second,
		ObjectDetectTimeout:  time.Second,
		SoftLimitMin:         -5000,
		SoftLimitMax:         5000,
		TemperatureThreshold: 70.0,
		ReferenceSpeed:       10,
		ReferenceStep:        5,
		ReferenceMaxSteps:    2000,
		SafetyPollInterval:   10 * time.Millisecond,
		DAQInterval:          10 * time.Millisecond,
		EStopInput:           1,
		SafetySwitchInput:    2,
		MotionEnableOutput:   1,
		GripperOutput:        1,
		ObjectSensor:         1,
	}
}

func TestSimulationContainer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := NewContainer(ctx, simulationConfig())
	require.NoError(t, err)
	defer c.Cleanup()

	assert.IsType(t, &services.MemoryDatabase{}, c.Database)
	assert.IsType(t, &services.LoopbackPublisher{}, c.MessagePublisher)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, c.Axes.Axes())

	ok, failing := c.Supervisor.AreInterlocksSatisfied(ctx)
	assert.True(t, ok, failing)
}

func TestSimulationHomeAllOverHTTP(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := NewContainer(ctx, simulationConfig())
	require.NoError(t, err)
	defer c.Cleanup()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/home", nil)
	rec := httptest.NewRecorder()
	c.GantryService.Echo().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/move", strings.NewReader(`{"targets":[10,20,30,0,0,0],"speed":50}`))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	c.GantryService.Echo().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSimulationReferenceRefusedDuringEStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := NewContainer(ctx, simulationConfig())
	require.NoError(t, err)
	defer c.Cleanup()

	c.servoSim.SetResponse(constants.CmdHardStopDetected, "false")
	require.NoError(t, c.Supervisor.Activate(ctx, "test"))
	c.servoSim.Reset()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/axes/1/reference", strings.NewReader(`{"method":"hard_stop"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c.GantryService.Echo().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, constants.EStopActivated, c.Supervisor.EStopState())
	for _, cmd := range c.servoSim.Sent() {
		verb := channel.Verb(cmd)
		assert.NotEqual(t, constants.CmdHomeServo, verb, cmd)
		assert.NotEqual(t, constants.CmdJogServo, verb, cmd)
	}
}

func TestSimulationEStopStopsVFD(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := NewContainer(ctx, simulationConfig())
	require.NoError(t, err)
	defer c.Cleanup()

	require.NoError(t, c.VFD.SetSpeed(ctx, 60))
	require.NoError(t, c.VFD.Start(ctx))
	require.NoError(t, c.Supervisor.Activate(ctx, "test"))

	assert.Equal(t, []string{"SET_SPEED:60", constants.CmdVFDStart, constants.CmdVFDStop}, c.vfdSim.Sent())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/vfd/start", nil)
	rec := httptest.NewRecorder()
	c.GantryService.Echo().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSimulationRemoteCommands(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := NewContainer(ctx, simulationConfig())
	require.NoError(t, err)
	defer c.Cleanup()
	require.NoError(t, c.CommandHandler.Subscribe(c.MessagePublisher))

	publisher := c.MessagePublisher.(*services.LoopbackPublisher)
	require.NoError(t, publisher.Publish(constants.TopicGantryCommand, 1, false, "ESTOP"))
	assert.True(t, c.Supervisor.IsActivated())

	require.NoError(t, publisher.Publish(constants.TopicGantryCommand, 1, false, "RESET"))
	assert.False(t, c.Supervisor.IsActivated())

	var responses []string
	for _, msg := range publisher.Published(constants.TopicGantryResponse) {
		responses = append(responses, string(msg.Payload))
	}
	assert.Equal(t, []string{"ESTOP:S", "RESET:S"}, responses)
	assert.NotEmpty(t, publisher.Published(constants.TopicGantryEvents))
}

func TestServiceStartAndShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	c, err := NewContainer(ctx, simulationConfig())
	require.NoError(t, err)
	defer c.Cleanup()

	svc := NewGantryService(c, "")
	require.NoError(t, svc.Start(ctx))

	time.Sleep(30 * time.Millisecond)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
	defer shutdownCancel()
	require.NoError(t, svc.Shutdown(shutdownCtx))

	db := c.Database.(*services.MemoryDatabase)
	assert.NotEmpty(t, db.Samples())
	assert.True(t, svc.GetHealthStatus()["mqtt_connected"].(bool))
}

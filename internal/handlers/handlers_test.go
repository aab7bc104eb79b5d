package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"gantry-control/internal/axis"
	"gantry-control/internal/common/constants"
	"gantry-control/internal/gantry"
	"gantry-control/internal/hardware"
	"gantry-control/internal/models"
	"gantry-control/internal/safety"
	"gantry-control/internal/services"
	"gantry-control/internal/utils"

	"github.com/labstack/echo/v4"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMotion struct {
	mu        sync.Mutex
	homeErr   error
	moveErr   error
	pickErr   error
	release   chan struct{}
	moves     []models.Waypoint
	picks     [][2]models.Waypoint
	traversed int
	tripped   []int
	refAxis   int
	refMethod string
	refErr    error
}

func (m *fakeMotion) HomeAll(ctx context.Context) error {
	if m.release != nil {
		<-m.release
	}
	return m.homeErr
}

func (m *fakeMotion) MoveTo(ctx context.Context, wp models.Waypoint, speed int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.moves = append(m.moves, wp)
	return m.moveErr
}

func (m *fakeMotion) ReferenceAxis(ctx context.Context, a int, method string) error {
	m.refAxis, m.refMethod = a, method
	return m.refErr
}

func (m *fakeMotion) Traverse(ctx context.Context, waypoints []models.Waypoint, speed int) error {
	m.traversed = len(waypoints)
	return m.moveErr
}

func (m *fakeMotion) PickAndPlace(ctx context.Context, pick, place models.Waypoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.picks = append(m.picks, [2]models.Waypoint{pick, place})
	return m.pickErr
}

func (m *fakeMotion) AdjustSpeedDynamically(ctx context.Context, a, load int) (int, error) {
	return 100 - load, nil
}

func (m *fakeMotion) LogStatus(ctx context.Context) (map[int]int, error) {
	return map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0, 6: 0}, nil
}

func (m *fakeMotion) PerformSafetyChecks(ctx context.Context) ([]int, error) {
	return m.tripped, nil
}

type fakeAxes struct{}

func (a *fakeAxes) Snapshots() []models.AxisStatus {
	return []models.AxisStatus{{Axis: 1, Homed: true}}
}

func (a *fakeAxes) ResetAlarm(ctx context.Context, id int) error {
	return nil
}

type fakeVFD struct {
	mu      sync.Mutex
	speed   int
	running bool
	resets  int
}

func (v *fakeVFD) SetSpeed(ctx context.Context, speed int) error {
	if speed < 0 {
		return fmt.Errorf("vfd speed %d: %w", speed, hardware.ErrInvalidVFDSpeed)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.speed = speed
	return nil
}

func (v *fakeVFD) Start(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.running = true
	return nil
}

func (v *fakeVFD) Stop(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.running = false
	return nil
}

func (v *fakeVFD) GetSpeed(ctx context.Context) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.speed, nil
}

func (v *fakeVFD) GetFaultCode(ctx context.Context) (string, error) {
	return constants.VFDNoFault, nil
}

func (v *fakeVFD) ResetFault(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.resets++
	return nil
}

type fakeSafety struct {
	mu        sync.Mutex
	activated bool
	reason    string
	resetErr  error
	failing   string
}

func (s *fakeSafety) AreInterlocksSatisfied(ctx context.Context) (bool, string) {
	return s.failing == "", s.failing
}

func (s *fakeSafety) InterlockNames() []string {
	return []string{safety.InterlockEmergencyStop, safety.InterlockSafetySwitch}
}

func (s *fakeSafety) Activate(ctx context.Context, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activated, s.reason = true, reason
	return nil
}

func (s *fakeSafety) Reset(ctx context.Context) error {
	return s.resetErr
}

func (s *fakeSafety) EStopState() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activated {
		return constants.EStopActivated
	}
	return constants.EStopNormal
}

// ===================================================================
// HTTP API
// ===================================================================

type apiRig struct {
	e      *echo.Echo
	motion *fakeMotion
	axes   *fakeAxes
	safety *fakeSafety
	vfd    *fakeVFD
}

func newAPIRig() *apiRig {
	logger, _ := logtest.NewNullLogger()
	r := &apiRig{
		e:      echo.New(),
		motion: &fakeMotion{},
		axes:   &fakeAxes{},
		safety: &fakeSafety{},
		vfd:    &fakeVFD{},
	}
	NewAPIHandler(r.motion, r.axes, r.safety, r.vfd, services.NewMemoryDatabase(0), logger).Register(r.e)
	return r
}

func (r *apiRig) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, utils.StandardResponse) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	r.e.ServeHTTP(rec, req)

	var resp utils.StandardResponse
	if strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestHealthCheck(t *testing.T) {
	r := newAPIRig()
	rec, resp := r.do(t, http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", resp.Status)
}

func TestMoveTo(t *testing.T) {
	r := newAPIRig()
	rec, _ := r.do(t, http.MethodPost, "/api/v1/move", `{"targets":[1,2,3,4,5,6],"speed":40}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, r.motion.moves, 1)
	assert.Equal(t, models.NewWaypoint(1, 2, 3, 4, 5, 6).Targets, r.motion.moves[0].Targets)
	assert.Equal(t, 40, r.motion.moves[0].Speed)
}

func TestMoveToRejectsShortWaypoint(t *testing.T) {
	r := newAPIRig()
	rec, resp := r.do(t, http.MethodPost, "/api/v1/move", `{"targets":[1,2,3]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "error", resp.Status)
	assert.Empty(t, r.motion.moves)
}

func TestDomainErrorStatusCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"soft limit", &axis.SoftLimitError{Axis: 1, Position: 9000, Min: -5000, Max: 5000}, http.StatusBadRequest},
		{"axis alarm", &axis.AlarmError{Axis: 2, Alarm: constants.AlarmOverload}, http.StatusConflict},
		{"e-stop", safety.ErrEmergencyStopActive, http.StatusConflict},
		{"interrupted", fmt.Errorf("wait: %w", gantry.ErrMotionInterrupted), http.StatusConflict},
		{"timeout", fmt.Errorf("axes at target after 30s: %w", gantry.ErrTimeout), http.StatusGatewayTimeout},
		{"other", errors.New("bus closed"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newAPIRig()
			r.motion.moveErr = tt.err
			rec, resp := r.do(t, http.MethodPost, "/api/v1/move", `{"targets":[0,0,0,0,0,0]}`)
			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, "error", resp.Status)
		})
	}
}

func TestReferenceAxis(t *testing.T) {
	r := newAPIRig()
	rec, _ := r.do(t, http.MethodPost, "/api/v1/axes/3/reference", `{"method":"sensor"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, r.motion.refAxis)
	assert.Equal(t, constants.ReferenceSensor, r.motion.refMethod)

	r.motion.refErr = fmt.Errorf("axis 3: %w: %q", axis.ErrUnknownReferenceMethod, "laser")
	rec, _ = r.do(t, http.MethodPost, "/api/v1/axes/3/reference", `{"method":"laser"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	r.motion.refErr = fmt.Errorf("reference axis 3: %w", safety.ErrEmergencyStopActive)
	rec, _ = r.do(t, http.MethodPost, "/api/v1/axes/3/reference", `{"method":"sensor"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = r.do(t, http.MethodPost, "/api/v1/axes/x/reference", `{"method":"sensor"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVFDEndpoints(t *testing.T) {
	r := newAPIRig()

	rec, _ := r.do(t, http.MethodPost, "/api/v1/vfd/speed", `{"speed":600}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = r.do(t, http.MethodPost, "/api/v1/vfd/speed", `{"speed":-1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, resp := r.do(t, http.MethodGet, "/api/v1/vfd", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(600), data["speed"])
	assert.Equal(t, constants.VFDNoFault, data["fault"])

	rec, _ = r.do(t, http.MethodPost, "/api/v1/vfd/start", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, r.vfd.running)

	rec, _ = r.do(t, http.MethodPost, "/api/v1/vfd/stop", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, r.vfd.running)

	rec, _ = r.do(t, http.MethodPost, "/api/v1/vfd/reset-fault", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, r.vfd.resets)
}

func TestVFDStartRefusedDuringEStop(t *testing.T) {
	r := newAPIRig()
	require.NoError(t, r.safety.Activate(context.Background(), "test"))

	rec, resp := r.do(t, http.MethodPost, "/api/v1/vfd/start", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "error", resp.Status)
	assert.False(t, r.vfd.running)
}

func TestApplyRecipe(t *testing.T) {
	r := newAPIRig()

	rec, _ := r.do(t, http.MethodPost, "/api/v1/recipes/Recipe2/apply", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 75, r.vfd.speed)

	rec, _ = r.do(t, http.MethodPost, "/api/v1/recipes/Missing/apply", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 75, r.vfd.speed)
}

func TestEStopEndpoints(t *testing.T) {
	r := newAPIRig()
	rec, resp := r.do(t, http.MethodPost, "/api/v1/estop/activate", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "operator request", r.safety.reason)
	assert.Equal(t, map[string]interface{}{"estop_state": constants.EStopActivated}, resp.Data)

	r.safety.resetErr = fmt.Errorf("%w: interlock safety_switch", safety.ErrResumeDenied)
	rec, _ = r.do(t, http.MethodPost, "/api/v1/estop/reset", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetSafety(t *testing.T) {
	r := newAPIRig()
	r.safety.failing = safety.InterlockSafetySwitch
	rec, resp := r.do(t, http.MethodGet, "/api/v1/safety", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, false, data["interlocks_satisfied"])
	assert.Equal(t, safety.InterlockSafetySwitch, data["failing_interlock"])
}

func TestSpeedAdjust(t *testing.T) {
	r := newAPIRig()
	rec, resp := r.do(t, http.MethodPost, "/api/v1/axes/2/speed-adjust", `{"load":30}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(70), resp.Data.(map[string]interface{})["speed"])
}

func TestGetRecipes(t *testing.T) {
	r := newAPIRig()
	rec, resp := r.do(t, http.MethodGet, "/api/v1/recipes", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), resp.Data.(map[string]interface{})["count"])
}

func TestMetricsAndUnknownRoute(t *testing.T) {
	r := newAPIRig()
	rec, _ := r.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, resp := r.do(t, http.MethodGet, "/api/v1/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "error", resp.Status)
}

// ===================================================================
// REMOTE COMMANDS
// ===================================================================

type commandRig struct {
	publisher *services.LoopbackPublisher
	motion    *fakeMotion
	safety    *fakeSafety
	handler   *CommandHandler
}

func newCommandRig(t *testing.T) *commandRig {
	logger, _ := logtest.NewNullLogger()
	r := &commandRig{
		publisher: services.NewLoopbackPublisher(),
		motion:    &fakeMotion{},
		safety:    &fakeSafety{},
	}
	responses := NewResponseSender(r.publisher, constants.TopicGantryResponse, logger)
	r.handler = NewCommandHandler(context.Background(), r.motion, r.safety, responses, logger)
	require.NoError(t, r.handler.Subscribe(r.publisher))
	return r
}

func (r *commandRig) send(t *testing.T, command string) {
	t.Helper()
	require.NoError(t, r.publisher.Publish(constants.TopicGantryCommand, 1, false, command))
}

func (r *commandRig) responses() []string {
	var out []string
	for _, msg := range r.publisher.Published(constants.TopicGantryResponse) {
		out = append(out, string(msg.Payload))
	}
	return out
}

func TestRemoteSynchronousCommands(t *testing.T) {
	r := newCommandRig(t)
	r.send(t, "ESTOP")
	r.send(t, "STATUS")
	r.send(t, "RESET")
	r.send(t, "BOGUS")

	assert.Equal(t, []string{"ESTOP:S", "STATUS:S", "RESET:S", "BOGUS:F"}, r.responses())
	assert.True(t, r.safety.activated)
	assert.Equal(t, "remote command", r.safety.reason)
}

func TestRemoteSafetyCheck(t *testing.T) {
	r := newCommandRig(t)
	r.send(t, "SAFETY_CHECK")
	r.motion.tripped = []int{4}
	r.send(t, "SAFETY_CHECK")
	r.motion.tripped = nil
	r.safety.failing = safety.InterlockFieldbus
	r.send(t, "SAFETY_CHECK")

	assert.Equal(t, []string{"SAFETY_CHECK:S", "SAFETY_CHECK:F", "SAFETY_CHECK:F"}, r.responses())
}

func TestRemotePickPlace(t *testing.T) {
	r := newCommandRig(t)
	r.send(t, "PICK_PLACE:1,2,3,4,5,6:10,20,30,40,50,60")
	r.handler.Wait()

	assert.Equal(t, []string{"PICK_PLACE:R", "PICK_PLACE:S"}, r.responses())
	require.Len(t, r.motion.picks, 1)
	assert.Equal(t, models.NewWaypoint(1, 2, 3, 4, 5, 6), r.motion.picks[0][0])
	assert.Equal(t, models.NewWaypoint(10, 20, 30, 40, 50, 60), r.motion.picks[0][1])
}

func TestRemotePickPlaceMalformed(t *testing.T) {
	r := newCommandRig(t)
	r.send(t, "PICK_PLACE:1,2,3:4,5,6")
	r.send(t, "PICK_PLACE:1,2,3,4,5,6")
	r.send(t, "PICK_PLACE:1,2,3,4,5,x:1,2,3,4,5,6")

	assert.Equal(t, []string{"PICK_PLACE:F", "PICK_PLACE:F", "PICK_PLACE:F"}, r.responses())
	assert.Empty(t, r.motion.picks)
}

func TestRemoteSequenceFailureReported(t *testing.T) {
	r := newCommandRig(t)
	r.motion.homeErr = fmt.Errorf("homing: %w", gantry.ErrTimeout)
	r.send(t, "HOME_ALL")
	r.handler.Wait()

	assert.Equal(t, []string{"HOME_ALL:R", "HOME_ALL:F"}, r.responses())
}

func TestRemoteBusyRejectsButEStopPasses(t *testing.T) {
	r := newCommandRig(t)
	r.motion.release = make(chan struct{})

	r.send(t, "HOME_ALL")
	r.send(t, "PICK_PLACE:0,0,0,0,0,0:1,1,1,1,1,1")
	r.send(t, "ESTOP")

	close(r.motion.release)
	r.handler.Wait()

	assert.Equal(t, []string{"HOME_ALL:R", "PICK_PLACE:X", "ESTOP:S", "HOME_ALL:S"}, r.responses())
	assert.True(t, r.safety.activated)
	assert.Empty(t, r.motion.picks)

	r.send(t, "HOME_ALL")
	r.handler.Wait()
	assert.Equal(t, "HOME_ALL:S", r.responses()[5])
}

func TestResponseStandardized(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	publisher := services.NewLoopbackPublisher()
	sender := NewResponseSender(publisher, constants.TopicGantryResponse, logger)

	require.NoError(t, sender.SendSuccess("PICK_PLACE:1,2,3,4,5,6:1,2,3,4,5,6"))
	publisher.Disconnect(0)
	assert.Error(t, sender.SendFailure("HOME_ALL", "boom"))

	msgs := publisher.Published(constants.TopicGantryResponse)
	require.Len(t, msgs, 1)
	assert.Equal(t, "PICK_PLACE:S", string(msgs[0].Payload))
}

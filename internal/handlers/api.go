// internal/handlers/api.go
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"gantry-control/internal/axis"
	"gantry-control/internal/common/constants"
	"gantry-control/internal/gantry"
	"gantry-control/internal/hardware"
	"gantry-control/internal/interfaces"
	"gantry-control/internal/models"
	"gantry-control/internal/safety"
	"gantry-control/internal/utils"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Motion coordinated gantry operations. *gantry.Coordinator satisfies it.
type Motion interface {
	HomeAll(ctx context.Context) error
	MoveTo(ctx context.Context, wp models.Waypoint, speed int) error
	ReferenceAxis(ctx context.Context, a int, method string) error
	Traverse(ctx context.Context, waypoints []models.Waypoint, speed int) error
	PickAndPlace(ctx context.Context, pick, place models.Waypoint) error
	AdjustSpeedDynamically(ctx context.Context, a, load int) (int, error)
	LogStatus(ctx context.Context) (map[int]int, error)
	PerformSafetyChecks(ctx context.Context) ([]int, error)
}

// AxisService per-axis operations. *axis.Controller satisfies it.
type AxisService interface {
	Snapshots() []models.AxisStatus
	ResetAlarm(ctx context.Context, a int) error
}

// Safety e-stop and interlocks. *safety.Supervisor satisfies it.
type Safety interface {
	AreInterlocksSatisfied(ctx context.Context) (bool, string)
	InterlockNames() []string
	Activate(ctx context.Context, reason string) error
	Reset(ctx context.Context) error
	EStopState() string
}

// VFD spindle drive. *hardware.VFD satisfies it.
type VFD interface {
	SetSpeed(ctx context.Context, speed int) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	GetSpeed(ctx context.Context) (int, error)
	GetFaultCode(ctx context.Context) (string, error)
	ResetFault(ctx context.Context) error
}

// RecipeStore *services.DatabaseServiceImpl satisfies it.
type RecipeStore interface {
	GetParameterRecipes() ([]models.ParameterRecipe, error)
}

// APIHandler handles all operator API requests.
type APIHandler struct {
	motion  Motion
	axes    AxisService
	safety  Safety
	vfd     VFD
	recipes RecipeStore
	logger  interfaces.Logger
	started time.Time
}

// NewAPIHandler creates a new instance of APIHandler.
func NewAPIHandler(motion Motion, axes AxisService, safety Safety, vfd VFD, recipes RecipeStore, logger interfaces.Logger) *APIHandler {
	return &APIHandler{
		motion:  motion,
		axes:    axes,
		safety:  safety,
		vfd:     vfd,
		recipes: recipes,
		logger:  logger,
		started: time.Now(),
	}
}

// Register mounts the API routes and the prometheus endpoint.
func (h *APIHandler) Register(e *echo.Echo) {
	e.HTTPErrorHandler = NewHTTPErrorHandler(h.logger)

	api := e.Group("/api/v1")
	api.GET("/health", h.HealthCheck)

	api.GET("/axes", h.GetAxes)
	api.POST("/axes/:id/reference", h.ReferenceAxis)
	api.POST("/axes/:id/reset-alarm", h.ResetAxisAlarm)
	api.POST("/axes/:id/speed-adjust", h.AdjustSpeed)

	api.POST("/home", h.HomeAll)
	api.POST("/move", h.MoveTo)
	api.POST("/traverse", h.Traverse)
	api.POST("/pick-and-place", h.PickAndPlace)

	api.GET("/safety", h.GetSafety)
	api.POST("/safety/check", h.RunSafetyChecks)
	api.POST("/estop/activate", h.ActivateEStop)
	api.POST("/estop/reset", h.ResetEStop)

	api.GET("/vfd", h.GetVFD)
	api.POST("/vfd/speed", h.SetVFDSpeed)
	api.POST("/vfd/start", h.StartVFD)
	api.POST("/vfd/stop", h.StopVFD)
	api.POST("/vfd/reset-fault", h.ResetVFDFault)

	api.GET("/recipes", h.GetRecipes)
	api.POST("/recipes/:name/apply", h.ApplyRecipe)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// ===================================================================
// HEALTH CHECK
// ===================================================================

func (h *APIHandler) HealthCheck(c echo.Context) error {
	data := map[string]interface{}{
		"service":     "gantry-control",
		"timestamp":   time.Now().Unix(),
		"uptime":      time.Since(h.started).Round(time.Second).String(),
		"estop_state": h.safety.EStopState(),
	}
	return c.JSON(http.StatusOK, utils.SuccessResponse("Service is healthy", data))
}

// ===================================================================
// AXES
// ===================================================================

// GetAxes returns the last known state of every axis.
func (h *APIHandler) GetAxes(c echo.Context) error {
	positions, err := h.motion.LogStatus(c.Request().Context())
	if err != nil {
		h.logger.Warnf("Axis position read incomplete: %v", err)
	}
	data := map[string]interface{}{
		"axes":      h.axes.Snapshots(),
		"positions": positions,
	}
	return c.JSON(http.StatusOK, utils.SuccessResponse("Axis status retrieved successfully", data))
}

type referenceRequest struct {
	Method string `json:"method"`
}

func (h *APIHandler) ReferenceAxis(c echo.Context) error {
	id, err := axisParam(c)
	if err != nil {
		return err
	}
	var req referenceRequest
	if err := c.Bind(&req); err != nil {
		return utils.NewBadRequestError("Invalid request body", err)
	}
	if err := h.motion.ReferenceAxis(c.Request().Context(), id, req.Method); err != nil {
		return toAppError("Referencing failed", err)
	}
	return c.JSON(http.StatusOK, utils.SuccessResponse("Axis referenced successfully", map[string]interface{}{
		"axis":   id,
		"method": req.Method,
	}))
}

func (h *APIHandler) ResetAxisAlarm(c echo.Context) error {
	id, err := axisParam(c)
	if err != nil {
		return err
	}
	if err := h.axes.ResetAlarm(c.Request().Context(), id); err != nil {
		return toAppError("Alarm reset failed", err)
	}
	return c.JSON(http.StatusOK, utils.SuccessResponse("Alarm reset successfully", map[string]int{"axis": id}))
}

type speedAdjustRequest struct {
	Load int `json:"load"`
}

func (h *APIHandler) AdjustSpeed(c echo.Context) error {
	id, err := axisParam(c)
	if err != nil {
		return err
	}
	var req speedAdjustRequest
	if err := c.Bind(&req); err != nil {
		return utils.NewBadRequestError("Invalid request body", err)
	}
	speed, err := h.motion.AdjustSpeedDynamically(c.Request().Context(), id, req.Load)
	if err != nil {
		return toAppError("Speed adjustment failed", err)
	}
	return c.JSON(http.StatusOK, utils.SuccessResponse("Speed adjusted successfully", map[string]int{
		"axis":  id,
		"load":  req.Load,
		"speed": speed,
	}))
}

// ===================================================================
// MOTION
// ===================================================================

func (h *APIHandler) HomeAll(c echo.Context) error {
	if err := h.motion.HomeAll(c.Request().Context()); err != nil {
		return toAppError("Homing failed", err)
	}
	return c.JSON(http.StatusOK, utils.SuccessResponse("All axes homed", nil))
}

type moveRequest struct {
	Targets []int `json:"targets"`
	Speed   int   `json:"speed"`
}

func (r moveRequest) waypoint() (models.Waypoint, error) {
	if len(r.Targets) != models.AxisCount {
		return models.Waypoint{}, utils.NewBadRequestError("targets must contain one position per axis")
	}
	var wp models.Waypoint
	copy(wp.Targets[:], r.Targets)
	wp.Speed = r.Speed
	return wp, nil
}

func (h *APIHandler) MoveTo(c echo.Context) error {
	var req moveRequest
	if err := c.Bind(&req); err != nil {
		return utils.NewBadRequestError("Invalid request body", err)
	}
	wp, err := req.waypoint()
	if err != nil {
		return err
	}
	if err := h.motion.MoveTo(c.Request().Context(), wp, req.Speed); err != nil {
		return toAppError("Move failed", err)
	}
	return c.JSON(http.StatusOK, utils.SuccessResponse("Move completed", wp))
}

type traverseRequest struct {
	Waypoints []moveRequest `json:"waypoints"`
	Speed     int           `json:"speed"`
}

func (h *APIHandler) Traverse(c echo.Context) error {
	var req traverseRequest
	if err := c.Bind(&req); err != nil {
		return utils.NewBadRequestError("Invalid request body", err)
	}
	if len(req.Waypoints) == 0 {
		return utils.NewBadRequestError("at least one waypoint is required")
	}
	waypoints := make([]models.Waypoint, 0, len(req.Waypoints))
	for _, w := range req.Waypoints {
		wp, err := w.waypoint()
		if err != nil {
			return err
		}
		waypoints = append(waypoints, wp)
	}
	if err := h.motion.Traverse(c.Request().Context(), waypoints, req.Speed); err != nil {
		return toAppError("Traverse failed", err)
	}
	return c.JSON(http.StatusOK, utils.SuccessResponse("Traverse completed", map[string]int{"waypoints": len(waypoints)}))
}

type pickAndPlaceRequest struct {
	Pick  moveRequest `json:"pick"`
	Place moveRequest `json:"place"`
}

func (h *APIHandler) PickAndPlace(c echo.Context) error {
	var req pickAndPlaceRequest
	if err := c.Bind(&req); err != nil {
		return utils.NewBadRequestError("Invalid request body", err)
	}
	pick, err := req.Pick.waypoint()
	if err != nil {
		return err
	}
	place, err := req.Place.waypoint()
	if err != nil {
		return err
	}
	if err := h.motion.PickAndPlace(c.Request().Context(), pick, place); err != nil {
		return toAppError("Pick and place failed", err)
	}
	return c.JSON(http.StatusOK, utils.SuccessResponse("Pick and place completed", nil))
}

// ===================================================================
// SAFETY
// ===================================================================

func (h *APIHandler) GetSafety(c echo.Context) error {
	ok, failing := h.safety.AreInterlocksSatisfied(c.Request().Context())
	data := map[string]interface{}{
		"estop_state":          h.safety.EStopState(),
		"interlocks_satisfied": ok,
		"failing_interlock":    failing,
		"interlocks":           h.safety.InterlockNames(),
	}
	return c.JSON(http.StatusOK, utils.SuccessResponse("Safety status retrieved successfully", data))
}

func (h *APIHandler) RunSafetyChecks(c echo.Context) error {
	tripped, err := h.motion.PerformSafetyChecks(c.Request().Context())
	if err != nil {
		return toAppError("Safety checks failed", err)
	}
	if tripped == nil {
		tripped = []int{}
	}
	return c.JSON(http.StatusOK, utils.SuccessResponse("Safety checks completed", map[string]interface{}{
		"tripped_axes": tripped,
	}))
}

type activateRequest struct {
	Reason string `json:"reason"`
}

func (h *APIHandler) ActivateEStop(c echo.Context) error {
	var req activateRequest
	_ = c.Bind(&req)
	if req.Reason == "" {
		req.Reason = "operator request"
	}
	if err := h.safety.Activate(c.Request().Context(), req.Reason); err != nil {
		h.logger.Errorf("E-STOP activation reported hardware errors: %v", err)
	}
	return c.JSON(http.StatusOK, utils.SuccessResponse("Emergency stop activated", map[string]string{
		"estop_state": h.safety.EStopState(),
	}))
}

func (h *APIHandler) ResetEStop(c echo.Context) error {
	if err := h.safety.Reset(c.Request().Context()); err != nil {
		return toAppError("Emergency stop reset denied", err)
	}
	return c.JSON(http.StatusOK, utils.SuccessResponse("Emergency stop reset", map[string]string{
		"estop_state": h.safety.EStopState(),
	}))
}

// ===================================================================
// VFD
// ===================================================================

func (h *APIHandler) GetVFD(c echo.Context) error {
	ctx := c.Request().Context()
	speed, err := h.vfd.GetSpeed(ctx)
	if err != nil {
		return toAppError("VFD speed read failed", err)
	}
	fault, err := h.vfd.GetFaultCode(ctx)
	if err != nil {
		return toAppError("VFD fault read failed", err)
	}
	return c.JSON(http.StatusOK, utils.SuccessResponse("VFD status retrieved successfully", map[string]interface{}{
		"speed": speed,
		"fault": fault,
	}))
}

type vfdSpeedRequest struct {
	Speed int `json:"speed"`
}

func (h *APIHandler) SetVFDSpeed(c echo.Context) error {
	var req vfdSpeedRequest
	if err := c.Bind(&req); err != nil {
		return utils.NewBadRequestError("Invalid request body", err)
	}
	if err := h.vfd.SetSpeed(c.Request().Context(), req.Speed); err != nil {
		return toAppError("VFD speed change failed", err)
	}
	return c.JSON(http.StatusOK, utils.SuccessResponse("VFD speed set", map[string]int{"speed": req.Speed}))
}

// StartVFD is refused while the emergency stop is activated.
func (h *APIHandler) StartVFD(c echo.Context) error {
	if h.safety.EStopState() == constants.EStopActivated {
		return toAppError("VFD start refused", safety.ErrEmergencyStopActive)
	}
	if err := h.vfd.Start(c.Request().Context()); err != nil {
		return toAppError("VFD start failed", err)
	}
	return c.JSON(http.StatusOK, utils.SuccessResponse("VFD started", nil))
}

func (h *APIHandler) StopVFD(c echo.Context) error {
	if err := h.vfd.Stop(c.Request().Context()); err != nil {
		return toAppError("VFD stop failed", err)
	}
	return c.JSON(http.StatusOK, utils.SuccessResponse("VFD stopped", nil))
}

func (h *APIHandler) ResetVFDFault(c echo.Context) error {
	if err := h.vfd.ResetFault(c.Request().Context()); err != nil {
		return toAppError("VFD fault reset failed", err)
	}
	return c.JSON(http.StatusOK, utils.SuccessResponse("VFD fault reset", nil))
}

// ===================================================================
// RECIPES
// ===================================================================

func (h *APIHandler) GetRecipes(c echo.Context) error {
	recipes, err := h.recipes.GetParameterRecipes()
	if err != nil {
		return utils.NewInternalServerError("Failed to load recipes", err)
	}
	return c.JSON(http.StatusOK, utils.SuccessResponse("Recipes retrieved successfully", map[string]interface{}{
		"recipes": recipes,
		"count":   len(recipes),
	}))
}

// ApplyRecipe loads the named recipe's VFD speed into the drive.
func (h *APIHandler) ApplyRecipe(c echo.Context) error {
	name := c.Param("name")
	recipes, err := h.recipes.GetParameterRecipes()
	if err != nil {
		return utils.NewInternalServerError("Failed to load recipes", err)
	}
	for _, recipe := range recipes {
		if recipe.RecipeName != name {
			continue
		}
		if err := h.vfd.SetSpeed(c.Request().Context(), recipe.VfdSpeed); err != nil {
			return toAppError("Recipe apply failed", err)
		}
		h.logger.Infof("📋 Recipe %s applied (VFD speed %d)", name, recipe.VfdSpeed)
		return c.JSON(http.StatusOK, utils.SuccessResponse("Recipe applied", recipe))
	}
	return utils.NewNotFoundError("Recipe not found: " + name)
}

// ===================================================================
// HELPERS
// ===================================================================

func axisParam(c echo.Context) (int, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return 0, utils.NewBadRequestError("Invalid axis id", err)
	}
	return id, nil
}

// toAppError maps domain errors to HTTP status codes.
func toAppError(message string, err error) *utils.AppError {
	msg := message + ": " + err.Error()
	switch {
	case errors.Is(err, axis.ErrUnknownAxis),
		errors.Is(err, axis.ErrSoftLimit),
		errors.Is(err, axis.ErrUnknownReferenceMethod),
		errors.Is(err, axis.ErrInvalidSpeed),
		errors.Is(err, hardware.ErrInvalidVFDSpeed):
		return utils.NewBadRequestError(msg, err)
	case errors.Is(err, axis.ErrAxisAlarm),
		errors.Is(err, safety.ErrEmergencyStopActive),
		errors.Is(err, safety.ErrResumeDenied),
		errors.Is(err, gantry.ErrMotionInterrupted):
		return utils.NewConflictError(msg, err)
	case errors.Is(err, gantry.ErrTimeout):
		return utils.NewTimeoutError(msg, err)
	default:
		return utils.NewInternalServerError(msg, err)
	}
}

// Package gantry coordinates the six axes as one machine: parallel homing,
// synchronized positioning, ordered waypoint traversal and the pick-and-place
// cycle. Every wait is deadline bounded and ends early when the safety
// supervisor revokes motion.
package gantry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gantry-control/internal/axis"
	"gantry-control/internal/common/constants"
	rediskeys "gantry-control/internal/common/redis"
	"gantry-control/internal/events"
	"gantry-control/internal/interfaces"
	"gantry-control/internal/metrics"
	"gantry-control/internal/models"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

const (
	source = "gantry"

	// DefaultSpeed full speed in percent
	DefaultSpeed = 100
)

// Axes per-axis operations the coordinator drives. *axis.Controller satisfies it.
type Axes interface {
	Axes() []int
	Home(ctx context.Context, a int) error
	Move(ctx context.Context, a, position int) error
	SetSpeed(ctx context.Context, a, speed int) error
	StopAll(ctx context.Context) error
	GetPosition(ctx context.Context, a int) (int, error)
	IsHomed(ctx context.Context, a int) (bool, error)
	IsAtTarget(ctx context.Context, a int) (bool, error)
	PeriodicSafetyCheck(ctx context.Context, a int) (bool, error)
	AutoReferenceInterruptible(ctx context.Context, a int, method string, interrupted func() bool) error
}

// MotionPermit is consulted before every motion sequence and polled during
// waits. *safety.Supervisor satisfies it.
type MotionPermit interface {
	CheckMotionPermitted() error
	MotionInterrupted() bool
}

// Recorder persists outcomes of composite operations.
type Recorder interface {
	InsertResult(result *models.Result) error
	LogError(errLog *models.ErrorLog) error
}

// Options timings and IO points.
type Options struct {
	PollInterval        time.Duration
	HomingTimeout       time.Duration
	MotionTimeout       time.Duration
	ObjectDetectTimeout time.Duration
	GripperOutput       int
	ObjectSensor        int
}

func DefaultOptions() Options {
	return Options{
		PollInterval:        100 * time.Millisecond,
		HomingTimeout:       60 * time.Second,
		MotionTimeout:       30 * time.Second,
		ObjectDetectTimeout: 10 * time.Second,
		GripperOutput:       1,
		ObjectSensor:        1,
	}
}

// Coordinator MotionCoordinator
type Coordinator struct {
	axes    Axes
	permit  MotionPermit
	io      interfaces.DigitalIO
	sensor  interfaces.Sensor
	records Recorder
	cache   interfaces.CacheService
	logger  interfaces.Logger
	events  interfaces.EventSink
	metrics *metrics.Metrics
	opts    Options
}

// Dependencies collaborators of a Coordinator. Records, Cache and Events may be nil.
type Dependencies struct {
	Axes    Axes
	Permit  MotionPermit
	IO      interfaces.DigitalIO
	Sensor  interfaces.Sensor
	Records Recorder
	Cache   interfaces.CacheService
	Logger  interfaces.Logger
	Events  interfaces.EventSink
}

func NewCoordinator(deps Dependencies, opts Options) *Coordinator {
	defaults := DefaultOptions()
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaults.PollInterval
	}
	if opts.HomingTimeout <= 0 {
		opts.HomingTimeout = defaults.HomingTimeout
	}
	if opts.MotionTimeout <= 0 {
		opts.MotionTimeout = defaults.MotionTimeout
	}
	if opts.ObjectDetectTimeout <= 0 {
		opts.ObjectDetectTimeout = defaults.ObjectDetectTimeout
	}
	if opts.GripperOutput <= 0 {
		opts.GripperOutput = defaults.GripperOutput
	}
	if opts.ObjectSensor <= 0 {
		opts.ObjectSensor = defaults.ObjectSensor
	}

	return &Coordinator{
		axes:    deps.Axes,
		permit:  deps.Permit,
		io:      deps.IO,
		sensor:  deps.Sensor,
		records: deps.Records,
		cache:   deps.Cache,
		logger:  deps.Logger,
		events:  events.OrDiscard(deps.Events),
		metrics: metrics.Get(),
		opts:    opts,
	}
}

// HomeAll dispatches homing to every axis in parallel, then waits until all
// axes report homed.
func (c *Coordinator) HomeAll(ctx context.Context) (err error) {
	defer c.observe("home_all", time.Now(), &err)

	if err := c.permit.CheckMotionPermitted(); err != nil {
		return fmt.Errorf("home all: %w", err)
	}

	c.logger.Info("🏠 Homing all axes")
	if err := c.fanOut(ctx, func(ctx context.Context, a int) error {
		return c.axes.Home(ctx, a)
	}); err != nil {
		return fmt.Errorf("home all: %w", err)
	}

	if err := c.wait(ctx, "homing", c.opts.HomingTimeout, c.allAxes(c.axes.IsHomed)); err != nil {
		return fmt.Errorf("home all: %w", err)
	}

	c.events.Emit(events.New(constants.LevelInfo, source, constants.EventHomingCompleted, 0, "all axes homed"))
	return nil
}

// ReferenceAxis runs auto-referencing of one axis under the motion permit.
// An e-stop raised while homing or seeking ends it before the next jog.
func (c *Coordinator) ReferenceAxis(ctx context.Context, a int, method string) (err error) {
	defer c.observe("reference_axis", time.Now(), &err)

	if err := c.permit.CheckMotionPermitted(); err != nil {
		return fmt.Errorf("reference axis %d: %w", a, err)
	}

	c.logger.Infof("📍 Referencing axis %d (%s)", a, method)
	if err := c.axes.AutoReferenceInterruptible(ctx, a, method, c.permit.MotionInterrupted); err != nil {
		return fmt.Errorf("reference axis %d: %w", a, err)
	}
	return nil
}

// MoveTo sets the speed and target of every axis, then waits until every axis
// reports at target. speed 0 uses the waypoint speed, then DefaultSpeed.
//
// Soft-limit rejections do not stop the other axes; they are returned together
// after the convergence wait.
func (c *Coordinator) MoveTo(ctx context.Context, wp models.Waypoint, speed int) (err error) {
	defer c.observe("move_to", time.Now(), &err)

	if err := c.permit.CheckMotionPermitted(); err != nil {
		return fmt.Errorf("move to %s: %w", wp, err)
	}
	speed = resolveSpeed(speed, wp)

	var (
		mu       sync.Mutex
		rejected error
	)
	dispatchErr := c.fanOut(ctx, func(ctx context.Context, a int) error {
		if err := c.axes.SetSpeed(ctx, a, speed); err != nil {
			return err
		}
		err := c.axes.Move(ctx, a, wp.Target(a))
		if isRejection(err) {
			mu.Lock()
			rejected = multierr.Append(rejected, err)
			mu.Unlock()
			return nil
		}
		return err
	})
	if dispatchErr != nil {
		return fmt.Errorf("move to %s: %w", wp, dispatchErr)
	}

	if err := c.wait(ctx, "positioning", c.opts.MotionTimeout, c.allAxes(c.axes.IsAtTarget)); err != nil {
		return fmt.Errorf("move to %s: %w", wp, multierr.Append(err, rejected))
	}
	if rejected != nil {
		return fmt.Errorf("move to %s: %w", wp, rejected)
	}

	c.events.Emit(events.New(constants.LevelInfo, source, constants.EventMoveCompleted, 0, "reached %s", wp))
	return nil
}

// Traverse moves through waypoints in order. A waypoint is dispatched only
// after the previous one converged; the first failure ends the traversal.
func (c *Coordinator) Traverse(ctx context.Context, waypoints []models.Waypoint, speed int) (err error) {
	defer c.observe("traverse", time.Now(), &err)

	for i, wp := range waypoints {
		c.logger.Infof("Waypoint %d/%d: %s", i+1, len(waypoints), wp)
		if err := c.MoveTo(ctx, wp, speed); err != nil {
			return fmt.Errorf("waypoint %d: %w", i+1, err)
		}
	}
	return nil
}

// PickAndPlace home, move to pick, grip, wait for the object, move to place,
// release, home. Any failure stops all axes, releases the gripper and is
// returned as *SequenceError.
func (c *Coordinator) PickAndPlace(ctx context.Context, pick, place models.Waypoint) (err error) {
	defer c.observe("pick_and_place", time.Now(), &err)

	steps := []struct {
		name string
		run  func(ctx context.Context) error
	}{
		{StepHome, c.HomeAll},
		{StepMovePick, func(ctx context.Context) error { return c.MoveTo(ctx, pick, 0) }},
		{StepGripOn, func(ctx context.Context) error { return c.grip(ctx, true) }},
		{StepWaitObject, c.waitForObject},
		{StepMovePlace, func(ctx context.Context) error { return c.MoveTo(ctx, place, 0) }},
		{StepGripOff, func(ctx context.Context) error { return c.grip(ctx, false) }},
		{StepReturnHome, c.HomeAll},
	}

	c.logger.Infof("📦 Pick and place %s -> %s", pick, place)
	for _, step := range steps {
		if err := step.run(ctx); err != nil {
			seqErr := &SequenceError{Operation: "pick_and_place", Step: step.name, Err: err}
			c.abort(seqErr)
			return seqErr
		}
	}

	c.record(&models.Result{
		Operation: "pick_and_place",
		Success:   true,
		Details:   fmt.Sprintf("pick %s place %s", pick, place),
		Timestamp: time.Now(),
	})
	c.events.Emit(events.New(constants.LevelInfo, source, constants.EventSequenceFinished, 0,
		"pick and place %s -> %s finished", pick, place))
	return nil
}

// AdjustSpeedDynamically sets speed = 100 - load, clamped to [0, 100].
func (c *Coordinator) AdjustSpeedDynamically(ctx context.Context, a, load int) (int, error) {
	speed := DefaultSpeed - load
	if speed < 0 {
		speed = 0
	}
	if speed > DefaultSpeed {
		speed = DefaultSpeed
	}
	if err := c.axes.SetSpeed(ctx, a, speed); err != nil {
		return 0, err
	}
	c.logger.Infof("Servo %d speed adjusted to %d for load %d", a, speed, load)
	return speed, nil
}

// LogStatus reads every axis position, logs it and refreshes the status cache.
// Read failures are logged and returned together; the other axes are still reported.
func (c *Coordinator) LogStatus(ctx context.Context) (map[int]int, error) {
	positions := make(map[int]int, len(c.axes.Axes()))
	var errs error

	for _, a := range c.axes.Axes() {
		pos, err := c.axes.GetPosition(ctx, a)
		if err != nil {
			c.logger.Warnf("Servo %d position unavailable: %v", a, err)
			errs = multierr.Append(errs, err)
			continue
		}
		positions[a] = pos
		c.logger.Infof("Servo %d position: %d", a, pos)
	}

	if c.cache != nil && len(positions) > 0 {
		pipe := c.cache.Pipeline()
		now := time.Now().Format(time.RFC3339)
		for a, pos := range positions {
			key := rediskeys.AxisStatus(a)
			_ = pipe.HSet(ctx, key, "position", pos)
			_ = pipe.HSet(ctx, key, "updated_at", now)
		}
		if err := pipe.Exec(ctx); err != nil {
			c.logger.Warnf("Failed to cache axis status: %v", err)
		}
	}
	return positions, errs
}

// PerformSafetyChecks runs the periodic safety check on every axis and returns
// the axes with a positive finding.
func (c *Coordinator) PerformSafetyChecks(ctx context.Context) ([]int, error) {
	var (
		tripped []int
		errs    error
	)
	for _, a := range c.axes.Axes() {
		found, err := c.axes.PeriodicSafetyCheck(ctx, a)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if found {
			tripped = append(tripped, a)
		}
	}
	return tripped, errs
}

// fanOut runs fn for every axis concurrently and joins on a single barrier.
func (c *Coordinator) fanOut(ctx context.Context, fn func(ctx context.Context, a int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, a := range c.axes.Axes() {
		g.Go(func() error {
			return fn(gctx, a)
		})
	}
	return g.Wait()
}

// allAxes builds a predicate that holds when check holds for every axis.
func (c *Coordinator) allAxes(check func(ctx context.Context, a int) (bool, error)) func(ctx context.Context) (bool, error) {
	return func(ctx context.Context) (bool, error) {
		for _, a := range c.axes.Axes() {
			ok, err := check(ctx, a)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	}
}

func (c *Coordinator) wait(ctx context.Context, name string, timeout time.Duration, predicate func(ctx context.Context) (bool, error)) error {
	err := WaitUntil(ctx, name, c.opts.PollInterval, timeout, predicate, c.permit.MotionInterrupted)
	switch {
	case errors.Is(err, ErrTimeout):
		c.metrics.WaitTimeoutsTotal.WithLabelValues(name).Inc()
		c.events.Emit(events.New(constants.LevelWarn, source, constants.EventWaitTimeout, 0,
			"%s did not converge within %s", name, timeout))
	case errors.Is(err, ErrMotionInterrupted):
		c.events.Emit(events.New(constants.LevelWarn, source, constants.EventMotionFault, 0,
			"%s interrupted by emergency stop", name))
	}
	return err
}

func (c *Coordinator) grip(ctx context.Context, on bool) error {
	return c.io.WriteDigital(ctx, c.opts.GripperOutput, on)
}

func (c *Coordinator) waitForObject(ctx context.Context) error {
	return c.wait(ctx, "object detection", c.opts.ObjectDetectTimeout, func(ctx context.Context) (bool, error) {
		return c.sensor.GetState(ctx, c.opts.ObjectSensor)
	})
}

// abort error path of a composite operation: stop everything, release the
// gripper, record the failure. Runs on a fresh context so a cancelled caller
// still gets the axes stopped.
func (c *Coordinator) abort(seqErr *SequenceError) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c.logger.Errorf("❌ %v", seqErr)
	if err := c.axes.StopAll(ctx); err != nil {
		c.logger.Errorf("Stop all after failure: %v", err)
	}
	if err := c.grip(ctx, false); err != nil {
		c.logger.Errorf("Gripper release after failure: %v", err)
	}

	c.events.Emit(events.New(constants.LevelError, source, constants.EventSequenceFailed, 0, "%v", seqErr))
	c.record(&models.Result{
		Operation: seqErr.Operation,
		Success:   false,
		Details:   seqErr.Error(),
		Timestamp: time.Now(),
	})
	if c.records != nil {
		if err := c.records.LogError(&models.ErrorLog{
			Operation:    seqErr.Operation,
			Step:         seqErr.Step,
			ErrorMessage: seqErr.Err.Error(),
			Timestamp:    time.Now(),
		}); err != nil {
			c.logger.Warnf("Failed to record error log: %v", err)
		}
	}
}

func (c *Coordinator) record(result *models.Result) {
	if c.records == nil {
		return
	}
	if err := c.records.InsertResult(result); err != nil {
		c.logger.Warnf("Failed to record %s result: %v", result.Operation, err)
	}
}

func (c *Coordinator) observe(operation string, started time.Time, err *error) {
	c.metrics.OperationDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
	result := "success"
	if *err != nil {
		result = "failure"
	}
	c.metrics.OperationsTotal.WithLabelValues(operation, result).Inc()
}

func resolveSpeed(speed int, wp models.Waypoint) int {
	if speed > 0 {
		return speed
	}
	if wp.Speed > 0 {
		return wp.Speed
	}
	return DefaultSpeed
}

// isRejection reports a target refused by the axis before reaching the bus.
func isRejection(err error) bool {
	return errors.Is(err, axis.ErrSoftLimit)
}

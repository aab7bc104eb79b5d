// Package axis drives the six servo axes of the gantry over a shared servo bus.
//
// A Controller owns the local view of every axis (commanded position, last
// observed homed/at-target flags, latched alarm, last temperature) and enforces
// the per-axis soft limits that were fixed when it was built. Hardware
// predicates are always read from the drive; the local flags only mirror the
// most recent answer.
package axis

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"gantry-control/internal/channel"
	"gantry-control/internal/common/constants"
	"gantry-control/internal/events"
	"gantry-control/internal/interfaces"
	"gantry-control/internal/metrics"
	"gantry-control/internal/models"

	"go.uber.org/multierr"
)

const source = "axis"

// Limits closed soft-limit interval [Min, Max]
type Limits struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Contains reports whether p lies inside the interval, bounds included.
func (l Limits) Contains(p int) bool {
	return p >= l.Min && p <= l.Max
}

// Options construction-time settings. Soft limits cannot be changed afterwards.
type Options struct {
	Axes                 int
	Limits               Limits
	AxisLimits           map[int]Limits
	TemperatureThreshold float64
	ReferenceSpeed       int
	ReferenceStep        int
	ReferenceMaxSteps    int
	PollInterval         time.Duration
	HomingTimeout        time.Duration
}

// DefaultOptions 6축, ±5000 소프트 리밋
func DefaultOptions() Options {
	return Options{
		Axes:                 models.AxisCount,
		Limits:               Limits{Min: -5000, Max: 5000},
		TemperatureThreshold: 70.0,
		ReferenceSpeed:       10,
		ReferenceStep:        5,
		ReferenceMaxSteps:    2000,
		PollInterval:         100 * time.Millisecond,
		HomingTimeout:        60 * time.Second,
	}
}

// AlarmLogger persists alarm findings.
type AlarmLogger interface {
	LogAlarm(alarm *models.AlarmLog) error
}

type state struct {
	// motion serializes limit check, send and commanded update per axis
	motion sync.Mutex

	limits      Limits
	commanded   int
	reported    *int
	homed       bool
	atTarget    bool
	alarm       string
	temperature float64
	updatedAt   time.Time
}

// Controller per-axis command surface on a servo bus
type Controller struct {
	bus     *channel.Bus
	logger  interfaces.Logger
	events  interfaces.EventSink
	alarms  AlarmLogger
	metrics *metrics.Metrics
	opts    Options

	mu   sync.RWMutex
	axes map[int]*state
}

// NewController builds a controller for axes 1..opts.Axes. sink and alarms may be nil.
func NewController(bus *channel.Bus, logger interfaces.Logger, sink interfaces.EventSink, alarms AlarmLogger, opts Options) (*Controller, error) {
	defaults := DefaultOptions()
	if opts.Axes <= 0 {
		opts.Axes = defaults.Axes
	}
	if opts.Limits == (Limits{}) {
		opts.Limits = defaults.Limits
	}
	if opts.ReferenceStep < 0 {
		opts.ReferenceStep = -opts.ReferenceStep
	}
	if opts.ReferenceStep == 0 {
		opts.ReferenceStep = defaults.ReferenceStep
	}
	if opts.ReferenceMaxSteps <= 0 {
		opts.ReferenceMaxSteps = defaults.ReferenceMaxSteps
	}
	if opts.ReferenceSpeed <= 0 {
		opts.ReferenceSpeed = defaults.ReferenceSpeed
	}
	if opts.TemperatureThreshold <= 0 {
		opts.TemperatureThreshold = defaults.TemperatureThreshold
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaults.PollInterval
	}
	if opts.HomingTimeout <= 0 {
		opts.HomingTimeout = defaults.HomingTimeout
	}

	axes := make(map[int]*state, opts.Axes)
	for a := 1; a <= opts.Axes; a++ {
		limits := opts.Limits
		if l, ok := opts.AxisLimits[a]; ok {
			limits = l
		}
		if limits.Min > limits.Max {
			return nil, fmt.Errorf("axis %d: soft limit min %d greater than max %d", a, limits.Min, limits.Max)
		}
		axes[a] = &state{limits: limits}
	}
	for a := range opts.AxisLimits {
		if _, ok := axes[a]; !ok {
			return nil, fmt.Errorf("soft limits for axis %d: %w", a, ErrUnknownAxis)
		}
	}

	return &Controller{
		bus:     bus,
		logger:  logger,
		events:  events.OrDiscard(sink),
		alarms:  alarms,
		metrics: metrics.Get(),
		opts:    opts,
		axes:    axes,
	}, nil
}

// Axes returns the configured axis ids in ascending order.
func (c *Controller) Axes() []int {
	ids := make([]int, 0, len(c.axes))
	for a := range c.axes {
		ids = append(ids, a)
	}
	sort.Ints(ids)
	return ids
}

// Limits returns the soft limits of axis a.
func (c *Controller) Limits(a int) (Limits, error) {
	s, err := c.axis(a)
	if err != nil {
		return Limits{}, err
	}
	return s.limits, nil
}

// Home starts the drive's homing routine. It returns once the command is
// accepted; callers poll IsHomed for completion.
func (c *Controller) Home(ctx context.Context, a int) error {
	if err := c.checkAlarm(a, "home"); err != nil {
		return err
	}
	if err := c.exec(ctx, a, constants.CmdHomeServo, a); err != nil {
		return err
	}
	c.update(a, func(s *state) {
		s.homed = false
		s.atTarget = false
	})
	c.logger.Infof("Homing servo %d", a)
	return nil
}

// Move commands an absolute position. A target outside the soft limits is
// rejected without touching the bus and leaves the commanded position as is.
func (c *Controller) Move(ctx context.Context, a, position int) error {
	s, err := c.axis(a)
	if err != nil {
		return err
	}
	if err := c.checkAlarm(a, "move"); err != nil {
		return err
	}
	if !s.limits.Contains(position) {
		limitErr := &SoftLimitError{Axis: a, Position: position, Min: s.limits.Min, Max: s.limits.Max}
		c.reject(a, "soft_limit", limitErr)
		return limitErr
	}

	s.motion.Lock()
	defer s.motion.Unlock()
	if err := c.exec(ctx, a, constants.CmdMoveServo, a, position); err != nil {
		return err
	}
	c.update(a, func(s *state) {
		s.commanded = position
		s.atTarget = false
	})
	c.logger.Infof("Moving servo %d to position %d", a, position)
	return nil
}

// Jog commands a relative move. The resulting commanded position must stay
// inside the soft limits.
func (c *Controller) Jog(ctx context.Context, a, delta int) error {
	s, err := c.axis(a)
	if err != nil {
		return err
	}
	if err := c.checkAlarm(a, "jog"); err != nil {
		return err
	}

	s.motion.Lock()
	defer s.motion.Unlock()
	c.mu.RLock()
	target := s.commanded + delta
	c.mu.RUnlock()
	if !s.limits.Contains(target) {
		limitErr := &SoftLimitError{Axis: a, Position: target, Min: s.limits.Min, Max: s.limits.Max}
		c.reject(a, "soft_limit", limitErr)
		return limitErr
	}

	if err := c.jog(ctx, a, delta); err != nil {
		return err
	}
	c.update(a, func(s *state) {
		s.commanded = target
	})
	return nil
}

// SetSpeed sets the drive speed in percent.
func (c *Controller) SetSpeed(ctx context.Context, a, speed int) error {
	if _, err := c.axis(a); err != nil {
		return err
	}
	if speed < 0 {
		return fmt.Errorf("axis %d: speed %d: %w", a, speed, ErrInvalidSpeed)
	}
	if err := c.exec(ctx, a, constants.CmdSetSpeed, a, speed); err != nil {
		return err
	}
	c.logger.Debugf("Servo %d speed set to %d", a, speed)
	return nil
}

func (c *Controller) Start(ctx context.Context, a int) error {
	if err := c.checkAlarm(a, "start"); err != nil {
		return err
	}
	if err := c.exec(ctx, a, constants.CmdStartServo, a); err != nil {
		return err
	}
	c.logger.Infof("Starting servo %d", a)
	return nil
}

// Stop is never refused, an alarmed axis can always be stopped.
func (c *Controller) Stop(ctx context.Context, a int) error {
	if err := c.exec(ctx, a, constants.CmdStopServo, a); err != nil {
		return err
	}
	c.logger.Infof("Stopping servo %d", a)
	return nil
}

// StopAll stops every axis. A failing axis does not keep the others running;
// all failures are returned together.
func (c *Controller) StopAll(ctx context.Context) error {
	var errs error
	for _, a := range c.Axes() {
		errs = multierr.Append(errs, c.Stop(ctx, a))
	}
	return errs
}

// GetPosition reads the drive-reported position.
func (c *Controller) GetPosition(ctx context.Context, a int) (int, error) {
	resp, err := c.query(ctx, a, constants.CmdGetPosition)
	if err != nil {
		return 0, err
	}
	position, err := strconv.Atoi(resp)
	if err != nil {
		return 0, c.malformed(a, constants.CmdGetPosition, resp)
	}
	c.update(a, func(s *state) {
		s.reported = &position
	})
	return position, nil
}

// GetStatus returns the drive's raw status string.
func (c *Controller) GetStatus(ctx context.Context, a int) (string, error) {
	return c.query(ctx, a, constants.CmdGetStatus)
}

// ResetAlarm clears the drive alarm and the local latch.
func (c *Controller) ResetAlarm(ctx context.Context, a int) error {
	if err := c.exec(ctx, a, constants.CmdResetAlarm, a); err != nil {
		return err
	}

	var previous string
	c.update(a, func(s *state) {
		previous = s.alarm
		s.alarm = ""
	})
	if previous != "" {
		c.events.Emit(events.New(constants.LevelInfo, source, constants.EventAxisAlarm, a,
			"%s alarm reset", previous))
	}
	c.logger.Infof("Resetting alarm for servo %d", a)
	return nil
}

// IsHomed asks the drive whether homing has completed.
func (c *Controller) IsHomed(ctx context.Context, a int) (bool, error) {
	homed, err := c.queryBool(ctx, a, constants.CmdIsHomed)
	if err != nil {
		return false, err
	}
	c.update(a, func(s *state) {
		s.homed = homed
	})
	return homed, nil
}

// IsAtTarget asks the drive whether it has reached its commanded position.
func (c *Controller) IsAtTarget(ctx context.Context, a int) (bool, error) {
	atTarget, err := c.queryBool(ctx, a, constants.CmdIsAtTarget)
	if err != nil {
		return false, err
	}
	c.update(a, func(s *state) {
		s.atTarget = atTarget
	})
	return atTarget, nil
}

// Alarm returns the latched alarm of axis a, empty when clear.
func (c *Controller) Alarm(a int) string {
	s, err := c.axis(a)
	if err != nil {
		return ""
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return s.alarm
}

// Snapshot returns the local view of axis a.
func (c *Controller) Snapshot(a int) (models.AxisStatus, error) {
	s, err := c.axis(a)
	if err != nil {
		return models.AxisStatus{}, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	status := models.AxisStatus{
		Axis:              a,
		CommandedPosition: s.commanded,
		Homed:             s.homed,
		AtTarget:          s.atTarget,
		Alarm:             s.alarm,
		Temperature:       s.temperature,
		SoftLimitMin:      s.limits.Min,
		SoftLimitMax:      s.limits.Max,
		UpdatedAt:         s.updatedAt,
	}
	if s.reported != nil {
		reported := *s.reported
		status.ReportedPosition = &reported
	}
	return status, nil
}

// Snapshots returns the local view of every axis, ordered by id.
func (c *Controller) Snapshots() []models.AxisStatus {
	out := make([]models.AxisStatus, 0, len(c.axes))
	for _, a := range c.Axes() {
		status, _ := c.Snapshot(a)
		out = append(out, status)
	}
	return out
}

func (c *Controller) axis(a int) (*state, error) {
	s, ok := c.axes[a]
	if !ok {
		return nil, fmt.Errorf("axis %d: %w", a, ErrUnknownAxis)
	}
	return s, nil
}

func (c *Controller) update(a int, fn func(s *state)) {
	s, ok := c.axes[a]
	if !ok {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(s)
	s.updatedAt = time.Now()
}

func (c *Controller) checkAlarm(a int, op string) error {
	s, err := c.axis(a)
	if err != nil {
		return err
	}
	c.mu.RLock()
	alarm := s.alarm
	c.mu.RUnlock()
	if alarm == "" {
		return nil
	}
	alarmErr := &AlarmError{Axis: a, Alarm: alarm}
	c.reject(a, "alarm", fmt.Errorf("%s: %w", op, alarmErr))
	return alarmErr
}

// reject reports a command refused before reaching the bus.
func (c *Controller) reject(a int, reason string, err error) {
	c.logger.Warnf("Servo %d command rejected: %v", a, err)
	c.metrics.RejectedCommands.WithLabelValues(strconv.Itoa(a), reason).Inc()
	c.events.Emit(events.New(constants.LevelWarn, source, constants.EventCommandRejected, a, "%v", err))
}

func (c *Controller) jog(ctx context.Context, a, delta int) error {
	return c.exec(ctx, a, constants.CmdJogServo, a, fmt.Sprintf("%+d", delta))
}

func (c *Controller) exec(ctx context.Context, a int, verb string, args ...interface{}) error {
	if _, err := c.axis(a); err != nil {
		return err
	}
	if err := c.bus.Exec(ctx, channel.Command(verb, args...)); err != nil {
		return fmt.Errorf("axis %d: %w", a, err)
	}
	c.metrics.AxisCommandsTotal.WithLabelValues(strconv.Itoa(a), verb).Inc()
	return nil
}

func (c *Controller) query(ctx context.Context, a int, verb string) (string, error) {
	if _, err := c.axis(a); err != nil {
		return "", err
	}
	resp, err := c.bus.Query(ctx, channel.Command(verb, a))
	if err != nil {
		return "", fmt.Errorf("axis %d: %w", a, err)
	}
	c.metrics.AxisCommandsTotal.WithLabelValues(strconv.Itoa(a), verb).Inc()
	return resp, nil
}

func (c *Controller) queryBool(ctx context.Context, a int, verb string) (bool, error) {
	resp, err := c.query(ctx, a, verb)
	if err != nil {
		return false, err
	}
	value, err := channel.ParseBool(resp)
	if err != nil {
		return false, c.malformed(a, verb, resp)
	}
	return value, nil
}

func (c *Controller) queryFloat(ctx context.Context, a int, verb string) (float64, error) {
	resp, err := c.query(ctx, a, verb)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseFloat(resp, 64)
	if err != nil {
		return 0, c.malformed(a, verb, resp)
	}
	return value, nil
}

func (c *Controller) malformed(a int, verb, resp string) error {
	return fmt.Errorf("axis %d: %s returned %q: %w", a, verb, resp, ErrMalformedResponse)
}

// Package daq samples the cell periodically for SCADA: object sensor, analog
// input and one axis position, persisted, cached and published as telemetry.
package daq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gantry-control/internal/common/constants"
	rediskeys "gantry-control/internal/common/redis"
	"gantry-control/internal/interfaces"
	"gantry-control/internal/metrics"
	"gantry-control/internal/models"

	"go.uber.org/multierr"
)

// PositionReader reads an axis position. *axis.Controller satisfies it.
type PositionReader interface {
	GetPosition(ctx context.Context, a int) (int, error)
}

// EStopState *safety.Supervisor satisfies it.
type EStopState interface {
	IsActivated() bool
}

// Options sample sources and period.
type Options struct {
	Interval    time.Duration
	SensorID    int
	AnalogInput int
	Axis        int
}

func DefaultOptions() Options {
	return Options{Interval: time.Second, SensorID: 1, AnalogInput: 1, Axis: 1}
}

// Service data acquisition loop
type Service struct {
	sensor    interfaces.Sensor
	io        interfaces.DigitalIO
	axes      PositionReader
	estop     EStopState
	db        interfaces.DatabaseService
	cache     interfaces.CacheService
	publisher interfaces.MessagePublisher
	logger    interfaces.Logger
	metrics   *metrics.Metrics
	opts      Options
}

// Dependencies cache and publisher may be nil.
type Dependencies struct {
	Sensor    interfaces.Sensor
	IO        interfaces.DigitalIO
	Axes      PositionReader
	EStop     EStopState
	Database  interfaces.DatabaseService
	Cache     interfaces.CacheService
	Publisher interfaces.MessagePublisher
	Logger    interfaces.Logger
}

func NewService(deps Dependencies, opts Options) *Service {
	if opts.Interval <= 0 {
		opts.Interval = DefaultOptions().Interval
	}
	return &Service{
		sensor:    deps.Sensor,
		io:        deps.IO,
		axes:      deps.Axes,
		estop:     deps.EStop,
		db:        deps.Database,
		cache:     deps.Cache,
		publisher: deps.Publisher,
		logger:    deps.Logger,
		metrics:   metrics.Get(),
		opts:      opts,
	}
}

// Run samples every interval until ctx is cancelled. Failed cycles are logged
// and the loop continues.
func (s *Service) Run(ctx context.Context) {
	s.logger.Infof("📈 Data acquisition started (interval %s)", s.opts.Interval)

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Data acquisition stopped")
			return
		case <-ticker.C:
			if _, err := s.Sample(ctx); err != nil && ctx.Err() == nil {
				s.metrics.SampleErrorsTotal.Inc()
				s.logger.Errorf("Error in data acquisition: %v", err)
			}
		}
	}
}

// Sample takes one reading, stores it and publishes it. A failed read aborts
// the sample; storage and publish failures are returned after all sinks ran.
func (s *Service) Sample(ctx context.Context) (*models.ScadaData, error) {
	sensorState, err := s.sensor.GetState(ctx, s.opts.SensorID)
	if err != nil {
		return nil, fmt.Errorf("read sensor %d: %w", s.opts.SensorID, err)
	}
	analog, err := s.io.ReadAnalog(ctx, s.opts.AnalogInput)
	if err != nil {
		return nil, fmt.Errorf("read analog input %d: %w", s.opts.AnalogInput, err)
	}
	position, err := s.axes.GetPosition(ctx, s.opts.Axis)
	if err != nil {
		return nil, fmt.Errorf("read servo %d position: %w", s.opts.Axis, err)
	}

	sample := &models.ScadaData{
		SensorState:      sensorState,
		AnalogInputValue: analog,
		ServoPosition:    position,
		EStopActivated:   s.estop != nil && s.estop.IsActivated(),
		Timestamp:        time.Now(),
	}
	s.logger.Debugf("Sensor: %t, Analog: %g, Servo Position: %d", sensorState, analog, position)

	var errs error
	if err := s.db.LogScadaData(sample); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("store sample: %w", err))
	}
	errs = multierr.Append(errs, s.cacheSample(ctx, sample))
	errs = multierr.Append(errs, s.publish(sample))

	if errs == nil {
		s.metrics.SamplesTotal.Inc()
	}
	return sample, errs
}

func (s *Service) cacheSample(ctx context.Context, sample *models.ScadaData) error {
	if s.cache == nil {
		return nil
	}
	pipe := s.cache.Pipeline()
	_ = pipe.HSet(ctx, rediskeys.ScadaLatestKey, "sensor_state", sample.SensorState)
	_ = pipe.HSet(ctx, rediskeys.ScadaLatestKey, "analog_input", sample.AnalogInputValue)
	_ = pipe.HSet(ctx, rediskeys.ScadaLatestKey, "servo_position", sample.ServoPosition)
	_ = pipe.HSet(ctx, rediskeys.ScadaLatestKey, "timestamp", sample.Timestamp.Format(time.RFC3339))
	_ = pipe.HSet(ctx, rediskeys.AxisStatus(s.opts.Axis), "position", sample.ServoPosition)
	if err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache sample: %w", err)
	}
	return nil
}

func (s *Service) publish(sample *models.ScadaData) error {
	if s.publisher == nil || !s.publisher.IsConnected() {
		return nil
	}
	payload, err := json.Marshal(sample)
	if err != nil {
		return fmt.Errorf("encode sample: %w", err)
	}
	if err := s.publisher.Publish(constants.TopicGantryTelemetry, 0, false, payload); err != nil {
		return fmt.Errorf("publish telemetry: %w", err)
	}
	return nil
}

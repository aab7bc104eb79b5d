// internal/safety/supervisor.go
package safety

import (
	"context"
	"errors"
	"sync"

	"gantry-control/internal/common/constants"
	"gantry-control/internal/events"
	"gantry-control/internal/interfaces"
	"gantry-control/internal/metrics"
)

const supervisorSource = "safety"

// Supervisor interlock chain plus e-stop. Motion code only reads from it;
// it never calls back into motion code.
type Supervisor struct {
	interlocks *InterlockSet
	estop      *EmergencyStop
	logger     interfaces.Logger
	events     interfaces.EventSink
	metrics    *metrics.Metrics

	mu          sync.Mutex
	lastFailing string
	evaluated   bool
}

func NewSupervisor(interlocks *InterlockSet, estop *EmergencyStop, logger interfaces.Logger, sink interfaces.EventSink) *Supervisor {
	return &Supervisor{
		interlocks: interlocks,
		estop:      estop,
		logger:     logger,
		events:     events.OrDiscard(sink),
		metrics:    metrics.Get(),
	}
}

// CheckInterlocks evaluates the interlock chain. It returns nil or an
// *InterlockError naming the first failing predicate. Events are emitted when
// the outcome changes between evaluations.
func (s *Supervisor) CheckInterlocks(ctx context.Context) error {
	err := s.interlocks.AreSatisfied(ctx)

	failing := ""
	var ilErr *InterlockError
	if errors.As(err, &ilErr) {
		failing = ilErr.Name
		s.metrics.InterlockFailuresTotal.WithLabelValues(failing).Inc()
	}

	s.mu.Lock()
	changed := !s.evaluated || failing != s.lastFailing
	s.lastFailing = failing
	s.evaluated = true
	s.mu.Unlock()

	if changed {
		if err != nil {
			s.events.Emit(events.New(constants.LevelWarn, supervisorSource, constants.EventInterlockFailed, 0, "%v", err))
		} else {
			s.events.Emit(events.New(constants.LevelInfo, supervisorSource, constants.EventInterlocksOK, 0, "all interlocks satisfied"))
		}
	}
	return err
}

// AreInterlocksSatisfied reports the outcome and the failing predicate name.
func (s *Supervisor) AreInterlocksSatisfied(ctx context.Context) (bool, string) {
	err := s.CheckInterlocks(ctx)
	if err == nil {
		return true, ""
	}
	var ilErr *InterlockError
	if errors.As(err, &ilErr) {
		return false, ilErr.Name
	}
	return false, ""
}

// Activate trips the emergency stop.
func (s *Supervisor) Activate(ctx context.Context, reason string) error {
	return s.estop.Activate(ctx, reason)
}

// Reset attempts to leave the emergency stop. See EmergencyStop.Reset.
func (s *Supervisor) Reset(ctx context.Context) error {
	err := s.estop.Reset(ctx)
	if err != nil {
		s.logger.Warnf("E-STOP reset failed: %v", err)
	}
	return err
}

func (s *Supervisor) IsActivated() bool {
	return s.estop.IsActivated()
}

// EStopState returns "Normal" or "Activated".
func (s *Supervisor) EStopState() string {
	return s.estop.State()
}

// InterlockNames returns the interlock predicates in evaluation order.
func (s *Supervisor) InterlockNames() []string {
	return s.interlocks.Names()
}

// CheckMotionPermitted returns ErrEmergencyStopActive while activated.
func (s *Supervisor) CheckMotionPermitted() error {
	if s.estop.IsActivated() {
		return ErrEmergencyStopActive
	}
	return nil
}

// MotionInterrupted is polled by convergence waits.
func (s *Supervisor) MotionInterrupted() bool {
	return s.estop.IsActivated()
}

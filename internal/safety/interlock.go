// Package safety evaluates the interlock chain and owns the emergency-stop
// state that gates all motion.
package safety

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gantry-control/internal/common/constants"
	"gantry-control/internal/interfaces"
)

// Default interlock names
const (
	InterlockEmergencyStop = "emergency_stop"
	InterlockSafetySwitch  = "safety_switch"
	InterlockFieldbus      = "fieldbus_safety_status"
)

var (
	ErrInterlockNotSatisfied = errors.New("interlock not satisfied")
	ErrResumeDenied          = errors.New("resumption denied")
	ErrEmergencyStopActive   = errors.New("emergency stop active")
)

// InterlockError names the first failing predicate. Err is set when the
// predicate could not be evaluated at all; that counts as a failure.
type InterlockError struct {
	Name string
	Err  error
}

func (e *InterlockError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("interlock %q not satisfied: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("interlock %q not satisfied", e.Name)
}

func (e *InterlockError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInterlockNotSatisfied, e.Err}
	}
	return []error{ErrInterlockNotSatisfied}
}

// Predicate reports whether one safety condition holds.
type Predicate func(ctx context.Context) (bool, error)

type interlock struct {
	name  string
	check Predicate
}

// InterlockSet ordered named predicates, evaluated in insertion order.
type InterlockSet struct {
	mu    sync.RWMutex
	items []interlock
}

func NewInterlockSet() *InterlockSet {
	return &InterlockSet{}
}

// Add appends a predicate. Re-adding a name replaces the predicate in place.
func (s *InterlockSet) Add(name string, check Predicate) *InterlockSet {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].name == name {
			s.items[i].check = check
			return s
		}
	}
	s.items = append(s.items, interlock{name: name, check: check})
	return s
}

// Names returns predicate names in evaluation order.
func (s *InterlockSet) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, len(s.items))
	for i, it := range s.items {
		names[i] = it.name
	}
	return names
}

// AreSatisfied evaluates predicates in order and stops at the first failure,
// returned as *InterlockError. An empty set is satisfied.
func (s *InterlockSet) AreSatisfied(ctx context.Context) error {
	s.mu.RLock()
	items := make([]interlock, len(s.items))
	copy(items, s.items)
	s.mu.RUnlock()

	for _, it := range items {
		ok, err := it.check(ctx)
		if err != nil {
			return &InterlockError{Name: it.name, Err: err}
		}
		if !ok {
			return &InterlockError{Name: it.name}
		}
	}
	return nil
}

// Wiring IO points used by the default interlocks and the e-stop.
type Wiring struct {
	EStopInput         int
	SafetySwitchInput  int
	MotionEnableOutput int
}

func DefaultWiring() Wiring {
	return Wiring{EStopInput: 1, SafetySwitchInput: 2, MotionEnableOutput: 1}
}

// DefaultInterlocks e-stop line released, safety switch closed, fieldbus
// safety status "OK", in that order.
func DefaultInterlocks(io interfaces.DigitalIO, fieldbus interfaces.FieldbusStatus, wiring Wiring) *InterlockSet {
	return NewInterlockSet().
		Add(InterlockEmergencyStop, func(ctx context.Context) (bool, error) {
			pressed, err := io.ReadDigital(ctx, wiring.EStopInput)
			return !pressed, err
		}).
		Add(InterlockSafetySwitch, func(ctx context.Context) (bool, error) {
			return io.ReadDigital(ctx, wiring.SafetySwitchInput)
		}).
		Add(InterlockFieldbus, func(ctx context.Context) (bool, error) {
			status, err := fieldbus.ReadStatus(ctx, constants.SafetyStatusKey)
			return status == constants.SafetyStatusOK, err
		})
}

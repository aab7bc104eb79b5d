package axis

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownAxis            = errors.New("unknown axis")
	ErrSoftLimit              = errors.New("target outside soft limits")
	ErrUnknownReferenceMethod = errors.New("unknown reference method")
	ErrAxisAlarm              = errors.New("axis alarm latched")
	ErrMalformedResponse      = errors.New("malformed hardware response")
	ErrHomingFailed           = errors.New("axis did not report homed")
	ErrReferenceNotFound      = errors.New("reference point not found")
	ErrNotAtTarget            = errors.New("axis not at target after referencing")
	ErrInvalidSpeed           = errors.New("speed must not be negative")
)

// SoftLimitError a move target outside the axis' closed soft-limit interval.
type SoftLimitError struct {
	Axis     int
	Position int
	Min      int
	Max      int
}

func (e *SoftLimitError) Error() string {
	return fmt.Sprintf("axis %d: position %d outside soft limits [%d, %d]", e.Axis, e.Position, e.Min, e.Max)
}

func (e *SoftLimitError) Unwrap() error {
	return ErrSoftLimit
}

// AlarmError a motion command refused because the axis carries a latched alarm.
type AlarmError struct {
	Axis  int
	Alarm string
}

func (e *AlarmError) Error() string {
	return fmt.Sprintf("axis %d: %s alarm latched, reset required", e.Axis, e.Alarm)
}

func (e *AlarmError) Unwrap() error {
	return ErrAxisAlarm
}

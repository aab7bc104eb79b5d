package gantry

import "fmt"

// Pick-and-place steps
const (
	StepHome       = "home"
	StepMovePick   = "move_pick"
	StepGripOn     = "grip_on"
	StepWaitObject = "wait_object"
	StepMovePlace  = "move_place"
	StepGripOff    = "grip_off"
	StepReturnHome = "return_home"
)

// SequenceError a composite operation failed at Step.
type SequenceError struct {
	Operation string
	Step      string
	Err       error
}

func (e *SequenceError) Error() string {
	return fmt.Sprintf("%s failed at %s: %v", e.Operation, e.Step, e.Err)
}

func (e *SequenceError) Unwrap() error {
	return e.Err
}

package models

import (
	"fmt"
	"time"
)

// AxisCount is the number of axes on the gantry.
const AxisCount = 6

// Waypoint one target position per axis, indexed 0..5 for axes 1..6.
// Speed 0 means "use the caller's default".
type Waypoint struct {
	Targets [AxisCount]int `json:"targets"`
	Speed   int            `json:"speed,omitempty"`
}

// NewWaypoint builds a waypoint from six axis targets.
func NewWaypoint(x, y, z, a, b, c int) Waypoint {
	return Waypoint{Targets: [AxisCount]int{x, y, z, a, b, c}}
}

// Target returns the target of axis (1-based).
func (w Waypoint) Target(axis int) int {
	return w.Targets[axis-1]
}

func (w Waypoint) String() string {
	t := w.Targets
	return fmt.Sprintf("(%d, %d, %d, %d, %d, %d)", t[0], t[1], t[2], t[3], t[4], t[5])
}

// AxisStatus snapshot of one axis as last observed by its controller
type AxisStatus struct {
	Axis              int       `json:"axis"`
	CommandedPosition int       `json:"commanded_position"`
	ReportedPosition  *int      `json:"reported_position,omitempty"`
	Homed             bool      `json:"homed"`
	AtTarget          bool      `json:"at_target"`
	Alarm             string    `json:"alarm,omitempty"`
	Temperature       float64   `json:"temperature"`
	SoftLimitMin      int       `json:"soft_limit_min"`
	SoftLimitMax      int       `json:"soft_limit_max"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Event structured record emitted for state transitions, rejected commands and
// safety decisions.
type Event struct {
	Level     string    `json:"level"`
	Source    string    `json:"source"`
	Kind      string    `json:"kind"`
	Axis      int       `json:"axis,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

package models

import (
	"time"

	"gorm.io/gorm"
)

// ParameterRecipe 공정 레시피 (서보 위치, 속도, 마킹 파라미터)
type ParameterRecipe struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	RecipeName        string         `gorm:"size:100;not null;uniqueIndex" json:"recipe_name"`
	ServoPosition     float64        `json:"servo_position"`
	VfdSpeed          int            `json:"vfd_speed"`
	MarkingParameters string         `gorm:"size:500" json:"marking_parameters"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`
}

// Result outcome of one composite operation (e.g. a pick-and-place cycle)
type Result struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	RecipeID  *uint     `gorm:"index" json:"recipe_id,omitempty"`
	Operation string    `gorm:"size:50;not null;index" json:"operation"`
	Success   bool      `gorm:"not null" json:"success"`
	Details   string    `gorm:"size:1000" json:"details"`
	Timestamp time.Time `gorm:"not null;index" json:"timestamp"`
}

// AlarmLog axis/IO alarms (overload, over-temperature)
type AlarmLog struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Axis         int       `gorm:"index" json:"axis"`
	AlarmKind    string    `gorm:"size:30;not null;index" json:"alarm_kind"`
	AlarmMessage string    `gorm:"size:500;not null" json:"alarm_message"`
	Severity     int       `gorm:"not null" json:"severity"`
	Timestamp    time.Time `gorm:"not null;index" json:"timestamp"`
}

// ErrorLog failures of composite operations
type ErrorLog struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Operation    string    `gorm:"size:50;index" json:"operation"`
	Step         string    `gorm:"size:50" json:"step"`
	ErrorMessage string    `gorm:"size:1000;not null" json:"error_message"`
	Timestamp    time.Time `gorm:"not null;index" json:"timestamp"`
}

// ScadaData periodic acquisition sample
type ScadaData struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	SensorState      bool      `json:"sensor_state"`
	AnalogInputValue float64   `json:"analog_input_value"`
	ServoPosition    int       `json:"servo_position"`
	EStopActivated   bool      `json:"estop_activated"`
	Timestamp        time.Time `gorm:"not null;index" json:"timestamp"`
}

// SafetyEvent persisted copy of every emitted event
type SafetyEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Level     string    `gorm:"size:10;not null;index" json:"level"`
	Source    string    `gorm:"size:30;not null;index" json:"source"`
	Kind      string    `gorm:"size:40;not null;index" json:"kind"`
	Axis      int       `json:"axis,omitempty"`
	Message   string    `gorm:"size:1000" json:"message"`
	Timestamp time.Time `gorm:"not null;index" json:"timestamp"`
}

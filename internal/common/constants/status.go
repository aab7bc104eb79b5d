// internal/common/constants/status.go
package constants

// Response Status codes sent back on the response topic
const (
	StatusSuccess  = "S"
	StatusFailure  = "F"
	StatusRejected = "X"
	StatusRunning  = "R"
)

// Servo bus command verbs
const (
	CmdMoveServo        = "MOVE_SERVO"
	CmdJogServo         = "JOG_SERVO"
	CmdStartServo       = "START_SERVO"
	CmdStopServo        = "STOP_SERVO"
	CmdStopAll          = "STOP_ALL"
	CmdResumeAll        = "RESUME_ALL"
	CmdSetSpeed         = "SET_SPEED"
	CmdHomeServo        = "HOME_SERVO"
	CmdGetPosition      = "GET_POSITION"
	CmdGetStatus        = "GET_STATUS"
	CmdResetAlarm       = "RESET_ALARM"
	CmdIsHomed          = "IS_HOMED"
	CmdIsAtTarget       = "IS_AT_TARGET"
	CmdCheckOverload    = "CHECK_OVERLOAD"
	CmdGetTemperature   = "GET_TEMPERATURE"
	CmdHardStopDetected = "HARD_STOP_DETECTED"
	CmdSensorTriggered  = "SENSOR_TRIGGERED"
	CmdSetReference     = "SET_REFERENCE"
	CmdReadStatus       = "READ_STATUS"
)

// IO bus command verbs
const (
	CmdReadDigitalInput   = "READ_DIGITAL_INPUT"
	CmdWriteDigitalOutput = "WRITE_DIGITAL_OUTPUT"
	CmdReadAnalogInput    = "READ_ANALOG_INPUT"
	CmdWriteAnalogOutput  = "WRITE_ANALOG_OUTPUT"
	CmdGetSensor          = "GET_SENSOR"
)

// VFD bus command verbs. Speed is set with CmdSetSpeed.
const (
	CmdVFDStart      = "START"
	CmdVFDStop       = "STOP"
	CmdVFDGetSpeed   = "GET_SPEED"
	CmdVFDGetFault   = "GET_FAULT"
	CmdVFDResetFault = "RESET_FAULT"
	VFDNoFault       = "NONE"
)

// Fieldbus status keys and sentinels
const (
	SafetyStatusKey = "SAFETY_STATUS"
	SafetyStatusOK  = "OK"
)

// Remote Command names accepted on the command topic
const (
	RemoteHomeAll     = "HOME_ALL"
	RemotePickPlace   = "PICK_PLACE"
	RemoteEStop       = "ESTOP"
	RemoteReset       = "RESET"
	RemoteStatus      = "STATUS"
	RemoteSafetyCheck = "SAFETY_CHECK"
)

// MQTT Topics
const (
	TopicGantryCommand   = "gantry/command"
	TopicGantryResponse  = "gantry/response"
	TopicGantryEvents    = "gantry/events"
	TopicGantryTelemetry = "gantry/telemetry"
)

// Event levels
const (
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Event kinds
const (
	EventCommandRejected  = "COMMAND_REJECTED"
	EventAxisAlarm        = "AXIS_ALARM"
	EventAxisReferenced   = "AXIS_REFERENCED"
	EventHomingCompleted  = "HOMING_COMPLETED"
	EventMoveCompleted    = "MOVE_COMPLETED"
	EventWaitTimeout      = "WAIT_TIMEOUT"
	EventMotionFault      = "MOTION_FAULT"
	EventInterlockFailed  = "INTERLOCK_FAILED"
	EventInterlocksOK     = "INTERLOCKS_SATISFIED"
	EventEStopActivated   = "ESTOP_ACTIVATED"
	EventEStopReset       = "ESTOP_RESET"
	EventResumeDenied     = "RESUME_DENIED"
	EventSequenceFailed   = "SEQUENCE_FAILED"
	EventSequenceFinished = "SEQUENCE_FINISHED"
)

// E-Stop states
const (
	EStopNormal    = "Normal"
	EStopActivated = "Activated"
)

// Reference methods
const (
	ReferenceHardStop = "hard_stop"
	ReferenceSensor   = "sensor"
)

// Alarm kinds
const (
	AlarmOverload        = "OVERLOAD"
	AlarmOverTemperature = "OVER_TEMPERATURE"
)

// internal/channel/simulated.go
package channel

import (
	"sync"

	"gantry-control/internal/common/constants"
	"gantry-control/internal/interfaces"
)

// DefaultSimulatedResponses placeholder answers used when no hardware is
// attached. Keys are either a full command ("READ_DIGITAL_INPUT:1") or a verb.
func DefaultSimulatedResponses() map[string]string {
	responses := map[string]string{
		constants.CmdGetPosition:      "0",
		constants.CmdGetStatus:        "SIMULATED",
		constants.CmdIsHomed:          "true",
		constants.CmdIsAtTarget:       "true",
		constants.CmdCheckOverload:    "false",
		constants.CmdGetTemperature:   "25.0",
		constants.CmdHardStopDetected: "true",
		constants.CmdSensorTriggered:  "true",
		constants.CmdReadStatus:       constants.SafetyStatusOK,
		constants.CmdReadDigitalInput: "true",
		constants.CmdReadAnalogInput:  "5.0",
		constants.CmdGetSensor:        "true",
		constants.CmdVFDGetSpeed:      "1000",
		constants.CmdVFDGetFault:      constants.VFDNoFault,
	}
	// input 1 is the e-stop line; a healthy simulated cell keeps it released
	responses[Command(constants.CmdReadDigitalInput, 1)] = "false"
	return responses
}

// SimulatedHistory number of sent commands a Simulated channel remembers.
const SimulatedHistory = 1000

// Simulated CommandChannel variant. The most recent SimulatedHistory commands
// are recorded and reads return a fixed placeholder for the last command.
type Simulated struct {
	mu        sync.Mutex
	logger    interfaces.Logger
	responses map[string]string
	last      string
	sent      []string
}

// NewSimulated creates a simulated channel; overrides replace default responses.
func NewSimulated(logger interfaces.Logger, overrides map[string]string) *Simulated {
	responses := DefaultSimulatedResponses()
	for k, v := range overrides {
		responses[k] = v
	}
	return &Simulated{
		logger:    logger,
		responses: responses,
	}
}

func (s *Simulated) Send(command string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.last = command
	s.sent = append(s.sent, command)
	// compact once the backing array doubles, so history stays bounded
	if len(s.sent) >= 2*SimulatedHistory {
		s.sent = append(make([]string, 0, 2*SimulatedHistory), s.sent[len(s.sent)-SimulatedHistory:]...)
	}
	if s.logger != nil {
		s.logger.Debugf("Simulated sending command: %s", command)
	}
	return nil
}

func (s *Simulated) Read() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if resp, ok := s.responses[s.last]; ok {
		return resp, nil
	}
	if resp, ok := s.responses[Verb(s.last)]; ok {
		return resp, nil
	}
	return constants.SafetyStatusOK, nil
}

func (s *Simulated) Close() error {
	return nil
}

// SetResponse replaces the placeholder for a command or verb.
func (s *Simulated) SetResponse(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[key] = value
}

// Sent returns a copy of the most recent commands, oldest first.
func (s *Simulated) Sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	history := s.sent
	if len(history) > SimulatedHistory {
		history = history[len(history)-SimulatedHistory:]
	}
	out := make([]string, len(history))
	copy(out, history)
	return out
}

// Reset forgets the recorded command history.
func (s *Simulated) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = nil
	s.last = ""
}

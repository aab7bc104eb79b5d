// internal/safety/estop.go
package safety

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"gantry-control/internal/channel"
	"gantry-control/internal/common/constants"
	rediskeys "gantry-control/internal/common/redis"
	"gantry-control/internal/events"
	"gantry-control/internal/interfaces"
	"gantry-control/internal/metrics"

	"github.com/looplab/fsm"
	"go.uber.org/multierr"
)

const (
	eventActivate = "activate"
	eventReset    = "reset"

	estopSource = "estop"
)

// Commander sends a command with no response. *channel.Bus satisfies it.
type Commander interface {
	Exec(ctx context.Context, command string) error
}

// Stopper auxiliary drive halted with the fieldbus. *hardware.VFD satisfies it.
type Stopper interface {
	Stop(ctx context.Context) error
}

// StateStore mirrors the e-stop state for other processes.
type StateStore interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

// EmergencyStop process-wide Normal/Activated state machine.
//
// Activation deasserts the motion-enable output and sends STOP_ALL on the
// fieldbus. Reset is allowed only when the interlock set is satisfied; it then
// reasserts the output and sends RESUME_ALL. All transitions are serialized.
// The hardware stop always goes out before the fsm callbacks (state mirror,
// events) run, so a slow store or broker cannot hold it back.
type EmergencyStop struct {
	mu     sync.Mutex
	active atomic.Bool

	FSM        *fsm.FSM
	stoppers   []Stopper
	io         interfaces.DigitalIO
	fieldbus   Commander
	interlocks *InterlockSet
	output     int
	store      StateStore
	logger     interfaces.Logger
	events     interfaces.EventSink
	metrics    *metrics.Metrics
}

// NewEmergencyStop starts in Normal. store and sink may be nil.
func NewEmergencyStop(io interfaces.DigitalIO, fieldbus Commander, interlocks *InterlockSet, output int,
	store StateStore, logger interfaces.Logger, sink interfaces.EventSink) *EmergencyStop {
	e := &EmergencyStop{
		io:         io,
		fieldbus:   fieldbus,
		interlocks: interlocks,
		output:     output,
		store:      store,
		logger:     logger,
		events:     events.OrDiscard(sink),
		metrics:    metrics.Get(),
	}
	e.initializeFSM()
	return e
}

func (e *EmergencyStop) initializeFSM() {
	e.FSM = fsm.NewFSM(
		constants.EStopNormal,
		fsm.Events{
			{Name: eventActivate, Src: []string{constants.EStopNormal}, Dst: constants.EStopActivated},
			{Name: eventReset, Src: []string{constants.EStopActivated}, Dst: constants.EStopNormal},
		},
		fsm.Callbacks{
			"enter_state":                       e.onEnterState,
			"enter_" + constants.EStopActivated: e.onEnterActivated,
			"enter_" + constants.EStopNormal:    e.onEnterNormal,
		},
	)
}

func (e *EmergencyStop) onEnterState(ctx context.Context, ev *fsm.Event) {
	e.logger.Infof("E-STOP: state changed from %s -> %s (Event: %s)", ev.Src, ev.Dst, ev.Event)
	if e.store != nil {
		if err := e.store.Set(ctx, rediskeys.EStopStateKey, ev.Dst, 0); err != nil {
			e.logger.Warnf("Failed to cache e-stop state: %v", err)
		}
	}
}

func (e *EmergencyStop) onEnterActivated(ctx context.Context, ev *fsm.Event) {
	reason := "emergency stop requested"
	if len(ev.Args) > 0 {
		if s, ok := ev.Args[0].(string); ok && s != "" {
			reason = s
		}
	}
	e.metrics.EStopActivationsTotal.Inc()
	e.metrics.EStopActive.Set(1)
	e.events.Emit(events.New(constants.LevelError, estopSource, constants.EventEStopActivated, 0, "%s", reason))
}

func (e *EmergencyStop) onEnterNormal(ctx context.Context, ev *fsm.Event) {
	e.metrics.EStopActive.Set(0)
	e.events.Emit(events.New(constants.LevelInfo, estopSource, constants.EventEStopReset, 0, "interlocks satisfied, motion resumed"))
}

// AddStopper registers a drive that Activate stops after STOP_ALL.
func (e *EmergencyStop) AddStopper(s Stopper) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stoppers = append(e.stoppers, s)
}

// Activate moves to Activated from either state. Only a transition out of
// Normal deasserts the output; the hardware stop is re-issued every time.
// The state is Activated on return even if the hardware writes failed.
func (e *EmergencyStop) Activate(ctx context.Context, reason string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	first := e.active.CompareAndSwap(false, true)

	var errs error
	if first {
		errs = multierr.Append(errs, e.io.WriteDigital(ctx, e.output, false))
	} else {
		e.logger.Warnf("E-STOP: already activated, re-issuing stop (%s)", reason)
	}
	errs = multierr.Append(errs, e.fieldbus.Exec(ctx, constants.CmdStopAll))
	for _, s := range e.stoppers {
		errs = multierr.Append(errs, s.Stop(ctx))
	}
	if errs != nil {
		e.logger.Errorf("E-STOP: hardware stop incomplete: %v", errs)
	}

	if first {
		if err := e.FSM.Event(ctx, eventActivate, reason); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("activate emergency stop: %w", err))
		}
	}
	return errs
}

// Reset returns to Normal when the interlocks pass. A denied reset leaves the
// state Activated and returns ErrResumeDenied wrapping the *InterlockError.
// Reset in Normal is a no-op.
func (e *EmergencyStop) Reset(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.active.Load() {
		return nil
	}

	if err := e.interlocks.AreSatisfied(ctx); err != nil {
		e.metrics.ResumeDeniedTotal.Inc()
		e.events.Emit(events.New(constants.LevelWarn, estopSource, constants.EventResumeDenied, 0, "%v", err))
		return fmt.Errorf("%w: %w", ErrResumeDenied, err)
	}

	if err := e.io.WriteDigital(ctx, e.output, true); err != nil {
		return fmt.Errorf("reassert motion enable output %d: %w", e.output, err)
	}
	if err := e.fieldbus.Exec(ctx, constants.CmdResumeAll); err != nil {
		return fmt.Errorf("resume fieldbus: %w", err)
	}

	if err := e.FSM.Event(ctx, eventReset); err != nil {
		return fmt.Errorf("reset emergency stop: %w", err)
	}
	e.active.Store(false)
	return nil
}

// IsActivated reports whether motion is currently forbidden. It turns true
// before the hardware stop is sent.
func (e *EmergencyStop) IsActivated() bool {
	return e.active.Load()
}

// State returns "Normal" or "Activated".
func (e *EmergencyStop) State() string {
	if e.active.Load() {
		return constants.EStopActivated
	}
	return constants.EStopNormal
}

var _ Commander = (*channel.Bus)(nil)

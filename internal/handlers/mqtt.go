// internal/handlers/mqtt.go
package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"gantry-control/internal/common/constants"
	"gantry-control/internal/interfaces"
	"gantry-control/internal/models"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// =============================================================================
// Command Handler
// =============================================================================

// CommandHandler executes remote commands received on the command topic.
// HOME_ALL and PICK_PLACE run in the background one at a time; ESTOP is never
// blocked by a running sequence.
type CommandHandler struct {
	ctx             context.Context
	motion          Motion
	safety          Safety
	responses       *ResponseSender
	logger          interfaces.Logger
	processingMutex sync.Mutex
	isProcessing    bool
	running         sync.WaitGroup
}

func NewCommandHandler(
	ctx context.Context,
	motion Motion,
	safety Safety,
	responses *ResponseSender,
	logger interfaces.Logger,
) *CommandHandler {
	return &CommandHandler{
		ctx:       ctx,
		motion:    motion,
		safety:    safety,
		responses: responses,
		logger:    logger,
	}
}

// Subscribe registers the handler on the command topic.
func (h *CommandHandler) Subscribe(publisher interfaces.MessagePublisher) error {
	if err := publisher.Subscribe(constants.TopicGantryCommand, 1, h.HandleCommand); err != nil {
		return fmt.Errorf("subscribe %s: %w", constants.TopicGantryCommand, err)
	}
	h.logger.Infof("📡 Subscribed to %s", constants.TopicGantryCommand)
	return nil
}

func (h *CommandHandler) HandleCommand(client mqtt.Client, msg mqtt.Message) {
	commandStr := strings.TrimSpace(string(msg.Payload()))
	h.logger.Infof("Received remote command: %s", commandStr)

	name, args, _ := strings.Cut(commandStr, ":")
	switch name {
	case constants.RemoteEStop:
		reason := "remote command"
		if args != "" {
			reason = args
		}
		h.reply(commandStr, h.safety.Activate(h.ctx, reason))
	case constants.RemoteReset:
		h.reply(commandStr, h.safety.Reset(h.ctx))
	case constants.RemoteStatus:
		positions, err := h.motion.LogStatus(h.ctx)
		if err == nil {
			h.logger.Infof("Axis positions: %v (e-stop %s)", positions, h.safety.EStopState())
		}
		h.reply(commandStr, err)
	case constants.RemoteSafetyCheck:
		h.reply(commandStr, h.safetyCheck())
	case constants.RemoteHomeAll:
		h.startSequence(commandStr, h.motion.HomeAll)
	case constants.RemotePickPlace:
		pick, place, err := parsePickPlace(args)
		if err != nil {
			h.responses.SendFailure(commandStr, err.Error())
			return
		}
		h.startSequence(commandStr, func(ctx context.Context) error {
			return h.motion.PickAndPlace(ctx, pick, place)
		})
	default:
		h.responses.SendFailure(commandStr, fmt.Sprintf("Command '%s' not defined", commandStr))
	}
}

// Wait blocks until the background sequence, if any, has finished.
func (h *CommandHandler) Wait() {
	h.running.Wait()
}

func (h *CommandHandler) startSequence(command string, run func(ctx context.Context) error) {
	h.processingMutex.Lock()
	if h.isProcessing {
		h.processingMutex.Unlock()
		h.responses.SendRejected(command, "Another command is currently processing")
		return
	}
	h.isProcessing = true
	h.running.Add(1)
	h.processingMutex.Unlock()

	h.responses.SendRunning(command)
	go h.processCommand(command, run)
}

func (h *CommandHandler) processCommand(command string, run func(ctx context.Context) error) {
	defer func() {
		h.processingMutex.Lock()
		h.isProcessing = false
		h.processingMutex.Unlock()
		h.running.Done()
	}()

	h.reply(command, run(h.ctx))
}

func (h *CommandHandler) safetyCheck() error {
	tripped, err := h.motion.PerformSafetyChecks(h.ctx)
	if err != nil {
		return err
	}
	if len(tripped) > 0 {
		return fmt.Errorf("axes %v tripped protection", tripped)
	}
	if ok, failing := h.safety.AreInterlocksSatisfied(h.ctx); !ok {
		return fmt.Errorf("interlock %s not satisfied", failing)
	}
	return nil
}

func (h *CommandHandler) reply(command string, err error) {
	if err != nil {
		h.responses.SendFailure(command, err.Error())
		return
	}
	h.responses.SendSuccess(command)
}

// parsePickPlace parses "<x,y,z,a,b,c>:<x,y,z,a,b,c>".
func parsePickPlace(args string) (models.Waypoint, models.Waypoint, error) {
	pickStr, placeStr, found := strings.Cut(args, ":")
	if !found {
		return models.Waypoint{}, models.Waypoint{}, fmt.Errorf("PICK_PLACE requires pick and place waypoints")
	}
	pick, err := parseWaypoint(pickStr)
	if err != nil {
		return models.Waypoint{}, models.Waypoint{}, fmt.Errorf("pick: %w", err)
	}
	place, err := parseWaypoint(placeStr)
	if err != nil {
		return models.Waypoint{}, models.Waypoint{}, fmt.Errorf("place: %w", err)
	}
	return pick, place, nil
}

func parseWaypoint(s string) (models.Waypoint, error) {
	parts := strings.Split(s, ",")
	if len(parts) != models.AxisCount {
		return models.Waypoint{}, fmt.Errorf("expected %d coordinates, got %d", models.AxisCount, len(parts))
	}
	var wp models.Waypoint
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return models.Waypoint{}, fmt.Errorf("coordinate %d: %w", i+1, err)
		}
		wp.Targets[i] = v
	}
	return wp, nil
}

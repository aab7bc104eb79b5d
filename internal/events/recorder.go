// internal/events/recorder.go
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"gantry-control/internal/common/constants"
	"gantry-control/internal/interfaces"
	"gantry-control/internal/models"
)

// New builds an event stamped with the current time.
func New(level, source, kind string, axis int, format string, args ...interface{}) models.Event {
	return models.Event{
		Level:     level,
		Source:    source,
		Kind:      kind,
		Axis:      axis,
		Message:   fmt.Sprintf(format, args...),
		Timestamp: time.Now(),
	}
}

// Discard drops every event.
type Discard struct{}

func (Discard) Emit(models.Event) {}

// OrDiscard returns sink, or Discard when sink is nil.
func OrDiscard(sink interfaces.EventSink) interfaces.EventSink {
	if sink == nil {
		return Discard{}
	}
	return sink
}

// Recorder fans events out to the log, the event table and the MQTT events topic.
// Persistence and publishing failures are logged and never returned to the emitter.
type Recorder struct {
	logger    interfaces.Logger
	db        interfaces.DatabaseService
	publisher interfaces.MessagePublisher
	topic     string
}

// NewRecorder creates a recorder. db and publisher may be nil.
func NewRecorder(logger interfaces.Logger, db interfaces.DatabaseService, publisher interfaces.MessagePublisher) *Recorder {
	return &Recorder{
		logger:    logger,
		db:        db,
		publisher: publisher,
		topic:     constants.TopicGantryEvents,
	}
}

func (r *Recorder) Emit(ev models.Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	r.log(ev)

	if r.db != nil {
		if err := r.db.SaveEvent(&models.SafetyEvent{
			Level:     ev.Level,
			Source:    ev.Source,
			Kind:      ev.Kind,
			Axis:      ev.Axis,
			Message:   ev.Message,
			Timestamp: ev.Timestamp,
		}); err != nil {
			r.logger.Warnf("Failed to persist %s event: %v", ev.Kind, err)
		}
	}

	if r.publisher != nil && r.publisher.IsConnected() {
		payload, err := json.Marshal(ev)
		if err != nil {
			r.logger.Warnf("Failed to encode %s event: %v", ev.Kind, err)
			return
		}
		if err := r.publisher.Publish(r.topic, 1, false, payload); err != nil {
			r.logger.Warnf("Failed to publish %s event: %v", ev.Kind, err)
		}
	}
}

func (r *Recorder) log(ev models.Event) {
	prefix := fmt.Sprintf("[%s/%s]", ev.Source, ev.Kind)
	if ev.Axis > 0 {
		prefix = fmt.Sprintf("%s axis %d:", prefix, ev.Axis)
	}

	switch ev.Level {
	case constants.LevelError:
		r.logger.Errorf("%s %s", prefix, ev.Message)
	case constants.LevelWarn:
		r.logger.Warnf("%s %s", prefix, ev.Message)
	default:
		r.logger.Infof("%s %s", prefix, ev.Message)
	}
}

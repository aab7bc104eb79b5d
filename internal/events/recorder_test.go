package events

import (
	"encoding/json"
	"testing"

	"gantry-control/internal/common/constants"
	"gantry-control/internal/models"
	"gantry-control/internal/services"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderFansOut(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	db := services.NewMemoryDatabase(0)
	publisher := services.NewLoopbackPublisher()
	rec := NewRecorder(logger, db, publisher)

	rec.Emit(New(constants.LevelWarn, "axis", constants.EventCommandRejected, 3, "position %d outside soft limits", 9000))

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Contains(t, hook.LastEntry().Message, "axis 3")

	stored := db.Events()
	require.Len(t, stored, 1)
	assert.Equal(t, constants.EventCommandRejected, stored[0].Kind)
	assert.Equal(t, 3, stored[0].Axis)

	published := publisher.Published(constants.TopicGantryEvents)
	require.Len(t, published, 1)
	var ev models.Event
	require.NoError(t, json.Unmarshal(published[0].Payload, &ev))
	assert.Equal(t, "position 9000 outside soft limits", ev.Message)
}

func TestRecorderLevels(t *testing.T) {
	tests := []struct {
		level string
		want  logrus.Level
	}{
		{constants.LevelInfo, logrus.InfoLevel},
		{constants.LevelWarn, logrus.WarnLevel},
		{constants.LevelError, logrus.ErrorLevel},
		{"", logrus.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger, hook := logtest.NewNullLogger()
			NewRecorder(logger, nil, nil).Emit(models.Event{Level: tt.level, Source: "estop", Kind: "X"})
			require.NotNil(t, hook.LastEntry())
			assert.Equal(t, tt.want, hook.LastEntry().Level)
		})
	}
}

func TestRecorderSkipsDisconnectedPublisher(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	publisher := services.NewLoopbackPublisher()
	publisher.Disconnect(0)

	NewRecorder(logger, nil, publisher).Emit(New(constants.LevelInfo, "gantry", constants.EventHomingCompleted, 0, "done"))
	assert.Empty(t, publisher.Published(constants.TopicGantryEvents))
}

func TestOrDiscard(t *testing.T) {
	assert.Equal(t, Discard{}, OrDiscard(nil))
	rec := NewRecorder(nil, nil, nil)
	assert.Same(t, rec, OrDiscard(rec))
}

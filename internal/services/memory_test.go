package services

import (
	"context"
	"testing"

	"gantry-control/internal/models"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopicMatches(t *testing.T) {
	tests := []struct {
		filter string
		topic  string
		want   bool
	}{
		{"gantry/command", "gantry/command", true},
		{"gantry/command", "gantry/response", false},
		{"gantry/+", "gantry/events", true},
		{"gantry/+", "gantry/events/axis", false},
		{"gantry/#", "gantry/events/axis", true},
		{"#", "anything/at/all", true},
		{"gantry/command/x", "gantry/command", false},
	}
	for _, tt := range tests {
		t.Run(tt.filter+" "+tt.topic, func(t *testing.T) {
			assert.Equal(t, tt.want, topicMatches(tt.filter, tt.topic))
		})
	}
}

func TestLoopbackPublisherDelivers(t *testing.T) {
	pub := NewLoopbackPublisher()

	var got []string
	require.NoError(t, pub.Subscribe("gantry/+", 1, func(_ mqtt.Client, msg mqtt.Message) {
		got = append(got, msg.Topic()+"="+string(msg.Payload()))
	}))

	require.NoError(t, pub.Publish("gantry/command", 1, false, "HOME_ALL"))
	require.NoError(t, pub.Publish("other/topic", 0, false, []byte("x")))
	assert.Error(t, pub.Publish("gantry/command", 0, false, 42))

	assert.Equal(t, []string{"gantry/command=HOME_ALL"}, got)
	assert.Len(t, pub.Published("other/topic"), 1)

	pub.Disconnect(0)
	assert.False(t, pub.IsConnected())
	assert.Error(t, pub.Publish("gantry/command", 0, false, "HOME_ALL"))
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache()

	_, err := cache.Get(ctx, "missing")
	assert.ErrorIs(t, err, redis.Nil)
	_, err = cache.HGet(ctx, "axis_status:1", "position")
	assert.ErrorIs(t, err, redis.Nil)

	require.NoError(t, cache.Set(ctx, "estop_state", "Activated", 0))
	value, err := cache.Get(ctx, "estop_state")
	require.NoError(t, err)
	assert.Equal(t, "Activated", value)

	pipe := cache.Pipeline()
	require.NoError(t, pipe.HSet(ctx, "axis_status:1", "position", 120))
	_, err = cache.HGet(ctx, "axis_status:1", "position")
	assert.ErrorIs(t, err, redis.Nil, "pipeline writes are applied on Exec")

	require.NoError(t, pipe.Exec(ctx))
	all, err := cache.HGetAll(ctx, "axis_status:1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"position": "120"}, all)

	require.NoError(t, cache.Del(ctx, "axis_status:1", "estop_state"))
	_, err = cache.Get(ctx, "estop_state")
	assert.ErrorIs(t, err, redis.Nil)
}

func TestMemoryDatabase(t *testing.T) {
	db := NewMemoryDatabase(2)

	recipes, err := db.GetParameterRecipes()
	require.NoError(t, err)
	require.Len(t, recipes, 2)
	assert.Equal(t, "Recipe1", recipes[0].RecipeName)

	for i := 0; i < 3; i++ {
		require.NoError(t, db.InsertResult(&models.Result{Operation: "pick_and_place", Success: i%2 == 0}))
	}
	results := db.Results()
	require.Len(t, results, 2)
	assert.Less(t, results[0].ID, results[1].ID)

	alarm := &models.AlarmLog{Axis: 2, AlarmKind: "OVERLOAD"}
	require.NoError(t, db.LogAlarm(alarm))
	assert.NotZero(t, alarm.ID)
	assert.Len(t, db.Alarms(), 1)
}

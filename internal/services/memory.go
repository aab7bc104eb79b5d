// internal/services/memory.go
package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"gantry-control/internal/database"
	"gantry-control/internal/interfaces"
	"gantry-control/internal/models"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-redis/redis/v8"
)

// =============================================================================
// In-memory Database (simulation mode)
// =============================================================================

type MemoryDatabase struct {
	mu       sync.RWMutex
	nextID   uint
	recipes  []models.ParameterRecipe
	results  []models.Result
	alarms   []models.AlarmLog
	errors   []models.ErrorLog
	samples  []models.ScadaData
	events   []models.SafetyEvent
	capacity int
}

// NewMemoryDatabase keeps at most capacity rows per table (0 = unbounded) and
// starts with the sample recipes.
func NewMemoryDatabase(capacity int) *MemoryDatabase {
	m := &MemoryDatabase{capacity: capacity}
	for _, recipe := range database.SampleRecipes() {
		recipe.ID = m.id()
		recipe.CreatedAt = time.Now()
		recipe.UpdatedAt = recipe.CreatedAt
		m.recipes = append(m.recipes, recipe)
	}
	return m
}

func (m *MemoryDatabase) GetParameterRecipes() ([]models.ParameterRecipe, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.ParameterRecipe(nil), m.recipes...), nil
}

func (m *MemoryDatabase) InsertResult(result *models.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	result.ID = m.id()
	m.results = bounded(append(m.results, *result), m.capacity)
	return nil
}

func (m *MemoryDatabase) LogAlarm(alarm *models.AlarmLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	alarm.ID = m.id()
	m.alarms = bounded(append(m.alarms, *alarm), m.capacity)
	return nil
}

func (m *MemoryDatabase) LogError(errLog *models.ErrorLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	errLog.ID = m.id()
	m.errors = bounded(append(m.errors, *errLog), m.capacity)
	return nil
}

func (m *MemoryDatabase) LogScadaData(data *models.ScadaData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	data.ID = m.id()
	m.samples = bounded(append(m.samples, *data), m.capacity)
	return nil
}

func (m *MemoryDatabase) SaveEvent(event *models.SafetyEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	event.ID = m.id()
	m.events = bounded(append(m.events, *event), m.capacity)
	return nil
}

// Results returns stored results, oldest first.
func (m *MemoryDatabase) Results() []models.Result {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.Result(nil), m.results...)
}

func (m *MemoryDatabase) Alarms() []models.AlarmLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.AlarmLog(nil), m.alarms...)
}

func (m *MemoryDatabase) Errors() []models.ErrorLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.ErrorLog(nil), m.errors...)
}

func (m *MemoryDatabase) Samples() []models.ScadaData {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.ScadaData(nil), m.samples...)
}

func (m *MemoryDatabase) Events() []models.SafetyEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.SafetyEvent(nil), m.events...)
}

func (m *MemoryDatabase) id() uint {
	m.nextID++
	return m.nextID
}

func bounded[T any](rows []T, capacity int) []T {
	if capacity > 0 && len(rows) > capacity {
		return rows[len(rows)-capacity:]
	}
	return rows
}

// =============================================================================
// In-memory Cache (simulation mode)
// =============================================================================

// MemoryCache mirrors the Redis semantics used by the cache service; missing
// keys and fields return redis.Nil.
type MemoryCache struct {
	mu     sync.RWMutex
	values map[string]string
	hashes map[string]map[string]string
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		values: make(map[string]string),
		hashes: make(map[string]map[string]string),
	}
}

func (c *MemoryCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = fmt.Sprint(value)
	return nil
}

func (c *MemoryCache) Get(_ context.Context, key string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	value, ok := c.values[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (c *MemoryCache) Del(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.values, key)
		delete(c.hashes, key)
	}
	return nil
}

func (c *MemoryCache) HSet(_ context.Context, key, field string, value interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hset(key, field, value)
	return nil
}

func (c *MemoryCache) HGet(_ context.Context, key, field string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	value, ok := c.hashes[key][field]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (c *MemoryCache) HGetAll(_ context.Context, key string) (map[string]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.hashes[key]))
	for field, value := range c.hashes[key] {
		out[field] = value
	}
	return out, nil
}

func (c *MemoryCache) Pipeline() interfaces.CachePipeline {
	return &memoryPipeline{cache: c}
}

func (c *MemoryCache) hset(key, field string, value interface{}) {
	if c.hashes[key] == nil {
		c.hashes[key] = make(map[string]string)
	}
	c.hashes[key][field] = fmt.Sprint(value)
}

type memoryPipeline struct {
	cache *MemoryCache
	ops   []func()
}

func (p *memoryPipeline) HSet(_ context.Context, key, field string, value interface{}) error {
	p.ops = append(p.ops, func() { p.cache.hset(key, field, value) })
	return nil
}

// Exec applies the queued writes atomically.
func (p *memoryPipeline) Exec(context.Context) error {
	p.cache.mu.Lock()
	defer p.cache.mu.Unlock()
	for _, op := range p.ops {
		op()
	}
	p.ops = nil
	return nil
}

// =============================================================================
// Loopback Publisher (simulation mode)
// =============================================================================

// LoopbackPublisher in-process MQTT stand-in. Published messages are recorded
// and delivered synchronously to subscribers of a matching topic filter.
type LoopbackPublisher struct {
	mu        sync.RWMutex
	handlers  map[string]mqtt.MessageHandler
	published []PublishedMessage
	connected bool
}

// PublishedMessage one recorded publish.
type PublishedMessage struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

func NewLoopbackPublisher() *LoopbackPublisher {
	return &LoopbackPublisher{
		handlers:  make(map[string]mqtt.MessageHandler),
		connected: true,
	}
}

func (l *LoopbackPublisher) Publish(topic string, qos byte, retained bool, payload interface{}) error {
	var body []byte
	switch p := payload.(type) {
	case []byte:
		body = p
	case string:
		body = []byte(p)
	default:
		return fmt.Errorf("unknown payload type %T", payload)
	}

	l.mu.Lock()
	if !l.connected {
		l.mu.Unlock()
		return fmt.Errorf("publish %s: not connected", topic)
	}
	l.published = append(l.published, PublishedMessage{Topic: topic, Payload: body, QoS: qos, Retained: retained})
	var matched []mqtt.MessageHandler
	for filter, handler := range l.handlers {
		if topicMatches(filter, topic) {
			matched = append(matched, handler)
		}
	}
	l.mu.Unlock()

	msg := &loopbackMessage{topic: topic, payload: body, qos: qos, retained: retained}
	for _, handler := range matched {
		handler(nil, msg)
	}
	return nil
}

func (l *LoopbackPublisher) Subscribe(topic string, _ byte, callback mqtt.MessageHandler) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers[topic] = callback
	return nil
}

func (l *LoopbackPublisher) IsConnected() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.connected
}

func (l *LoopbackPublisher) Disconnect(uint) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.connected = false
}

// Published returns recorded messages on topic, oldest first.
func (l *LoopbackPublisher) Published(topic string) []PublishedMessage {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []PublishedMessage
	for _, msg := range l.published {
		if msg.Topic == topic {
			out = append(out, msg)
		}
	}
	return out
}

// topicMatches MQTT filter matching with + and # wildcards.
func topicMatches(filter, topic string) bool {
	f := strings.Split(filter, "/")
	t := strings.Split(topic, "/")
	for i, part := range f {
		if part == "#" {
			return true
		}
		if i >= len(t) {
			return false
		}
		if part != "+" && part != t[i] {
			return false
		}
	}
	return len(f) == len(t)
}

type loopbackMessage struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

func (m *loopbackMessage) Duplicate() bool   { return false }
func (m *loopbackMessage) Qos() byte         { return m.qos }
func (m *loopbackMessage) Retained() bool    { return m.retained }
func (m *loopbackMessage) Topic() string     { return m.topic }
func (m *loopbackMessage) MessageID() uint16 { return 0 }
func (m *loopbackMessage) Payload() []byte   { return m.payload }
func (m *loopbackMessage) Ack()              {}

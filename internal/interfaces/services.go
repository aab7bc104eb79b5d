// internal/interfaces/services.go
package interfaces

import (
	"context"
	"time"

	"gantry-control/internal/models"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// CommandChannel opaque command/response transport to a device bus
type CommandChannel interface {
	Send(command string) error
	Read() (string, error)
	Close() error
}

// DigitalIO digital/analog IO capability
type DigitalIO interface {
	ReadDigital(ctx context.Context, id int) (bool, error)
	WriteDigital(ctx context.Context, id int, state bool) error
	ReadAnalog(ctx context.Context, id int) (float64, error)
}

// Sensor presence sensor capability
type Sensor interface {
	GetState(ctx context.Context, id int) (bool, error)
}

// FieldbusStatus fieldbus-reported status values
type FieldbusStatus interface {
	ReadStatus(ctx context.Context, key string) (string, error)
}

// EventSink receives structured events
type EventSink interface {
	Emit(event models.Event)
}

// DatabaseService 영속 저장소 인터페이스
type DatabaseService interface {
	GetParameterRecipes() ([]models.ParameterRecipe, error)
	InsertResult(result *models.Result) error
	LogAlarm(alarm *models.AlarmLog) error
	LogError(errLog *models.ErrorLog) error
	LogScadaData(data *models.ScadaData) error
	SaveEvent(event *models.SafetyEvent) error
}

// CacheService Redis 캐시 관련 서비스 인터페이스
type CacheService interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error

	HSet(ctx context.Context, key, field string, value interface{}) error
	HGet(ctx context.Context, key, field string) (string, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	Pipeline() CachePipeline
}

// CachePipeline Redis 파이프라인 인터페이스
type CachePipeline interface {
	HSet(ctx context.Context, key, field string, value interface{}) error
	Exec(ctx context.Context) error
}

// MessagePublisher MQTT 메시지 발행 인터페이스
type MessagePublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) error
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) error
	IsConnected() bool
	Disconnect(quiesce uint)
}

// ConfigProvider 설정 제공 인터페이스
type ConfigProvider interface {
	IsSimulation() bool
	GetLogLevel() string
	GetPollInterval() time.Duration
	GetMotionTimeout() time.Duration
	GetHomingTimeout() time.Duration
}

// Logger 로깅 인터페이스
type Logger interface {
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Warn(args ...interface{})
	Warnf(format string, args ...interface{})
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})
}

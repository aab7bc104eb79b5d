// internal/services/implementations.go
package services

import (
	"context"
	"time"

	"gantry-control/internal/config"
	"gantry-control/internal/interfaces"
	"gantry-control/internal/models"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// =============================================================================
// Database Service Implementation
// =============================================================================

type DatabaseServiceImpl struct {
	db *gorm.DB
}

func NewDatabaseService(db *gorm.DB) interfaces.DatabaseService {
	return &DatabaseServiceImpl{db: db}
}

// Recipe 관련 메서드들
func (d *DatabaseServiceImpl) GetParameterRecipes() ([]models.ParameterRecipe, error) {
	var recipes []models.ParameterRecipe
	err := d.db.Order("id ASC").Find(&recipes).Error
	return recipes, err
}

// Result / Log 관련 메서드들
func (d *DatabaseServiceImpl) InsertResult(result *models.Result) error {
	return d.db.Create(result).Error
}

func (d *DatabaseServiceImpl) LogAlarm(alarm *models.AlarmLog) error {
	return d.db.Create(alarm).Error
}

func (d *DatabaseServiceImpl) LogError(errLog *models.ErrorLog) error {
	return d.db.Create(errLog).Error
}

func (d *DatabaseServiceImpl) LogScadaData(data *models.ScadaData) error {
	return d.db.Create(data).Error
}

func (d *DatabaseServiceImpl) SaveEvent(event *models.SafetyEvent) error {
	return d.db.Create(event).Error
}

// =============================================================================
// Cache Service Implementation
// =============================================================================

type CacheServiceImpl struct {
	client *redis.Client
}

func NewCacheService(client *redis.Client) interfaces.CacheService {
	return &CacheServiceImpl{client: client}
}

func (c *CacheServiceImpl) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return c.client.Set(ctx, key, value, expiration).Err()
}

func (c *CacheServiceImpl) Get(ctx context.Context, key string) (string, error) {
	return c.client.Get(ctx, key).Result()
}

func (c *CacheServiceImpl) Del(ctx context.Context, keys ...string) error {
	return c.client.Del(ctx, keys...).Err()
}

func (c *CacheServiceImpl) HSet(ctx context.Context, key, field string, value interface{}) error {
	return c.client.HSet(ctx, key, field, value).Err()
}

func (c *CacheServiceImpl) HGet(ctx context.Context, key, field string) (string, error) {
	return c.client.HGet(ctx, key, field).Result()
}

func (c *CacheServiceImpl) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return c.client.HGetAll(ctx, key).Result()
}

func (c *CacheServiceImpl) Pipeline() interfaces.CachePipeline {
	return &CachePipelineImpl{pipeline: c.client.Pipeline()}
}

type CachePipelineImpl struct {
	pipeline redis.Pipeliner
}

func (c *CachePipelineImpl) HSet(ctx context.Context, key, field string, value interface{}) error {
	c.pipeline.HSet(ctx, key, field, value)
	return nil
}

func (c *CachePipelineImpl) Exec(ctx context.Context) error {
	_, err := c.pipeline.Exec(ctx)
	return err
}

// =============================================================================
// Message Publisher Implementation
// =============================================================================

type MessagePublisherImpl struct {
	client mqtt.Client
}

func NewMessagePublisher(client mqtt.Client) interfaces.MessagePublisher {
	return &MessagePublisherImpl{client: client}
}

func (m *MessagePublisherImpl) Publish(topic string, qos byte, retained bool, payload interface{}) error {
	token := m.client.Publish(topic, qos, retained, payload)
	token.Wait()
	return token.Error()
}

func (m *MessagePublisherImpl) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) error {
	token := m.client.Subscribe(topic, qos, callback)
	token.Wait()
	return token.Error()
}

func (m *MessagePublisherImpl) IsConnected() bool {
	return m.client.IsConnected()
}

func (m *MessagePublisherImpl) Disconnect(quiesce uint) {
	m.client.Disconnect(quiesce)
}

// =============================================================================
// Config Provider Implementation
// =============================================================================

type ConfigProviderImpl struct {
	cfg *config.Config
}

func NewConfigProvider(cfg *config.Config) interfaces.ConfigProvider {
	return &ConfigProviderImpl{cfg: cfg}
}

func (c *ConfigProviderImpl) IsSimulation() bool {
	return c.cfg.SimulationMode
}

func (c *ConfigProviderImpl) GetLogLevel() string {
	return c.cfg.LogLevel
}

func (c *ConfigProviderImpl) GetPollInterval() time.Duration {
	return c.cfg.PollInterval
}

func (c *ConfigProviderImpl) GetMotionTimeout() time.Duration {
	return c.cfg.MotionTimeout
}

func (c *ConfigProviderImpl) GetHomingTimeout() time.Duration {
	return c.cfg.HomingTimeout
}

// =============================================================================
// Logger Implementation
// =============================================================================

type LoggerImpl struct {
	logger *logrus.Logger
}

func NewLogger(level string) interfaces.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	switch level {
	case "debug":
		logger.SetLevel(logrus.DebugLevel)
	case "info":
		logger.SetLevel(logrus.InfoLevel)
	case "warn":
		logger.SetLevel(logrus.WarnLevel)
	case "error":
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	return &LoggerImpl{logger: logger}
}

func (l *LoggerImpl) Debug(args ...interface{}) {
	l.logger.Debug(args...)
}

func (l *LoggerImpl) Debugf(format string, args ...interface{}) {
	l.logger.Debugf(format, args...)
}

func (l *LoggerImpl) Info(args ...interface{}) {
	l.logger.Info(args...)
}

func (l *LoggerImpl) Infof(format string, args ...interface{}) {
	l.logger.Infof(format, args...)
}

func (l *LoggerImpl) Warn(args ...interface{}) {
	l.logger.Warn(args...)
}

func (l *LoggerImpl) Warnf(format string, args ...interface{}) {
	l.logger.Warnf(format, args...)
}

func (l *LoggerImpl) Error(args ...interface{}) {
	l.logger.Error(args...)
}

func (l *LoggerImpl) Errorf(format string, args ...interface{}) {
	l.logger.Errorf(format, args...)
}

func (l *LoggerImpl) Fatal(args ...interface{}) {
	l.logger.Fatal(args...)
}

func (l *LoggerImpl) Fatalf(format string, args ...interface{}) {
	l.logger.Fatalf(format, args...)
}

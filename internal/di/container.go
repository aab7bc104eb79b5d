// internal/di/container.go
package di

import (
	"context"
	"fmt"
	"io"

	"gantry-control/internal/axis"
	"gantry-control/internal/channel"
	"gantry-control/internal/common/constants"
	"gantry-control/internal/config"
	"gantry-control/internal/daq"
	"gantry-control/internal/database"
	"gantry-control/internal/events"
	"gantry-control/internal/gantry"
	"gantry-control/internal/handlers"
	"gantry-control/internal/hardware"
	"gantry-control/internal/interfaces"
	gantrymqtt "gantry-control/internal/mqtt"
	"gantry-control/internal/redis"
	"gantry-control/internal/safety"
	"gantry-control/internal/services"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/multierr"
)

// Container 의존성 주입 컨테이너
type Container struct {
	// Core Services
	Config           interfaces.ConfigProvider
	Logger           interfaces.Logger
	Database         interfaces.DatabaseService
	Cache            interfaces.CacheService
	MessagePublisher interfaces.MessagePublisher
	Events           *events.Recorder

	// Hardware
	ServoBus *channel.Bus
	IOBus    *channel.Bus
	VFDBus   *channel.Bus
	IO       *hardware.IOController
	Sensor   *hardware.SensorController
	Fieldbus *hardware.FieldbusStatusReader
	VFD      *hardware.VFD

	// Domain
	Axes        *axis.Controller
	Supervisor  *safety.Supervisor
	Monitor     *safety.Monitor
	Coordinator *gantry.Coordinator
	DAQ         *daq.Service

	// Handlers
	API            *handlers.APIHandler
	CommandHandler *handlers.CommandHandler

	// Service
	GantryService *GantryService

	closers  []io.Closer
	servoSim *channel.Simulated
	vfdSim   *channel.Simulated
}

// NewContainer 새로운 컨테이너 생성. ctx bounds the lifetime of remote commands.
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	container := &Container{}

	// 1. 기본 서비스들 초기화
	container.initCoreServices(cfg)

	// 2. 인프라 서비스들 초기화 (실장비 / 시뮬레이션)
	var err error
	if cfg.SimulationMode {
		err = container.initSimulatedInfra()
	} else {
		err = container.initInfraServices(cfg)
	}
	if err != nil {
		container.Cleanup()
		return nil, fmt.Errorf("failed to init infra services: %w", err)
	}

	// 3. 도메인 서비스들 초기화
	if err := container.initDomainServices(cfg); err != nil {
		container.Cleanup()
		return nil, fmt.Errorf("failed to init domain services: %w", err)
	}

	// 4. 핸들러들 초기화
	container.initHandlers(ctx)

	// 5. 서비스 초기화
	container.GantryService = NewGantryService(container, cfg.HTTPAddr)

	return container, nil
}

// initCoreServices 핵심 서비스들 초기화
func (c *Container) initCoreServices(cfg *config.Config) {
	c.Config = services.NewConfigProvider(cfg)
	c.Logger = services.NewLogger(cfg.LogLevel)
}

// initInfraServices 실장비 인프라 초기화
func (c *Container) initInfraServices(cfg *config.Config) error {
	// Servo bus (serial)
	servo, err := channel.OpenSerial(channel.SerialConfig{
		Device:      cfg.ServoPort,
		Baud:        cfg.ServoBaud,
		ReadTimeout: cfg.ServoReadTimeout,
	})
	if err != nil {
		return fmt.Errorf("servo bus init failed: %w", err)
	}
	c.closers = append(c.closers, servo)
	c.ServoBus = channel.NewBus("servo", servo)

	// VFD bus (serial)
	vfd, err := channel.OpenSerial(channel.SerialConfig{
		Device:      cfg.VFDPort,
		Baud:        cfg.VFDBaud,
		ReadTimeout: cfg.ServoReadTimeout,
	})
	if err != nil {
		return fmt.Errorf("vfd bus init failed: %w", err)
	}
	c.closers = append(c.closers, vfd)
	c.VFDBus = channel.NewBus("vfd", vfd)

	// IO bus (TCP)
	ioBlock, err := channel.DialTCP(cfg.IOAddress, cfg.IODialTimeout)
	if err != nil {
		return fmt.Errorf("io bus init failed: %w", err)
	}
	c.closers = append(c.closers, ioBlock)
	c.IOBus = channel.NewBus("io", ioBlock)

	// Database 초기화
	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		return fmt.Errorf("database init failed: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		c.closers = append(c.closers, sqlDB)
	}
	c.Database = services.NewDatabaseService(db)

	// Redis 초기화
	redisClient, err := redis.NewRedisClient(cfg)
	if err != nil {
		return fmt.Errorf("redis init failed: %w", err)
	}
	c.closers = append(c.closers, redisClient)
	c.Cache = services.NewCacheService(redisClient)

	// MQTT 초기화. Subscriptions are restored after every reconnect.
	mqttClient, err := gantrymqtt.NewClient(cfg, c.Logger, func(mqtt.Client) {
		if c.CommandHandler != nil && c.MessagePublisher != nil {
			if err := c.CommandHandler.Subscribe(c.MessagePublisher); err != nil {
				c.Logger.Errorf("Failed to restore subscription: %v", err)
			}
		}
	})
	if err != nil {
		return fmt.Errorf("mqtt init failed: %w", err)
	}
	c.MessagePublisher = services.NewMessagePublisher(mqttClient)

	return nil
}

// initSimulatedInfra 시뮬레이션 인프라 초기화
func (c *Container) initSimulatedInfra() error {
	c.servoSim = channel.NewSimulated(c.Logger, nil)
	c.ServoBus = channel.NewBus("servo", c.servoSim)
	c.IOBus = channel.NewBus("io", channel.NewSimulated(c.Logger, nil))
	c.vfdSim = channel.NewSimulated(c.Logger, nil)
	c.VFDBus = channel.NewBus("vfd", c.vfdSim)
	c.Database = services.NewMemoryDatabase(1000)
	c.Cache = services.NewMemoryCache()
	c.MessagePublisher = services.NewLoopbackPublisher()
	c.Logger.Infof("🧪 Simulation mode: simulated buses, in-memory stores, loopback MQTT")
	return nil
}

// initDomainServices 도메인 서비스들 초기화
func (c *Container) initDomainServices(cfg *config.Config) error {
	c.Events = events.NewRecorder(c.Logger, c.Database, c.MessagePublisher)

	c.IO = hardware.NewIOController(c.IOBus, c.Logger)
	c.Sensor = hardware.NewSensorController(c.IOBus, c.Logger)
	c.Fieldbus = hardware.NewFieldbusStatusReader(c.ServoBus)
	c.VFD = hardware.NewVFD(c.VFDBus, c.Logger)

	axisOpts := axis.DefaultOptions()
	axisOpts.Limits = axis.Limits{Min: cfg.SoftLimitMin, Max: cfg.SoftLimitMax}
	axisOpts.TemperatureThreshold = cfg.TemperatureThreshold
	axisOpts.ReferenceSpeed = cfg.ReferenceSpeed
	axisOpts.ReferenceStep = cfg.ReferenceStep
	axisOpts.ReferenceMaxSteps = cfg.ReferenceMaxSteps
	axisOpts.PollInterval = c.Config.GetPollInterval()
	axisOpts.HomingTimeout = c.Config.GetHomingTimeout()

	axes, err := axis.NewController(c.ServoBus, c.Logger, c.Events, c.Database, axisOpts)
	if err != nil {
		return fmt.Errorf("axis controller: %w", err)
	}
	c.Axes = axes

	wiring := safety.Wiring{
		EStopInput:         cfg.EStopInput,
		SafetySwitchInput:  cfg.SafetySwitchInput,
		MotionEnableOutput: cfg.MotionEnableOutput,
	}
	interlocks := safety.DefaultInterlocks(c.IO, c.Fieldbus, wiring)
	estop := safety.NewEmergencyStop(c.IO, c.ServoBus, interlocks, wiring.MotionEnableOutput, c.Cache, c.Logger, c.Events)
	estop.AddStopper(c.VFD)
	c.Supervisor = safety.NewSupervisor(interlocks, estop, c.Logger, c.Events)
	c.Monitor = safety.NewMonitor(c.Supervisor, c.Axes, cfg.SafetyPollInterval, c.Logger)

	c.Coordinator = gantry.NewCoordinator(gantry.Dependencies{
		Axes:    c.Axes,
		Permit:  c.Supervisor,
		IO:      c.IO,
		Sensor:  c.Sensor,
		Records: c.Database,
		Cache:   c.Cache,
		Logger:  c.Logger,
		Events:  c.Events,
	}, gantry.Options{
		PollInterval:        c.Config.GetPollInterval(),
		HomingTimeout:       c.Config.GetHomingTimeout(),
		MotionTimeout:       c.Config.GetMotionTimeout(),
		ObjectDetectTimeout: cfg.ObjectDetectTimeout,
		GripperOutput:       cfg.GripperOutput,
		ObjectSensor:        cfg.ObjectSensor,
	})

	daqOpts := daq.DefaultOptions()
	daqOpts.Interval = cfg.DAQInterval
	c.DAQ = daq.NewService(daq.Dependencies{
		Sensor:    c.Sensor,
		IO:        c.IO,
		Axes:      c.Axes,
		EStop:     c.Supervisor,
		Database:  c.Database,
		Cache:     c.Cache,
		Publisher: c.MessagePublisher,
		Logger:    c.Logger,
	}, daqOpts)

	return nil
}

// initHandlers 핸들러들 초기화
func (c *Container) initHandlers(ctx context.Context) {
	c.API = handlers.NewAPIHandler(c.Coordinator, c.Axes, c.Supervisor, c.VFD, c.Database, c.Logger)

	responses := handlers.NewResponseSender(c.MessagePublisher, constants.TopicGantryResponse, c.Logger)
	c.CommandHandler = handlers.NewCommandHandler(ctx, c.Coordinator, c.Supervisor, responses, c.Logger)
}

// Cleanup 리소스 정리
func (c *Container) Cleanup() {
	if c.MessagePublisher != nil {
		c.MessagePublisher.Disconnect(250)
	}

	var errs error
	for i := len(c.closers) - 1; i >= 0; i-- {
		errs = multierr.Append(errs, c.closers[i].Close())
	}
	c.closers = nil
	if errs != nil {
		c.Logger.Warnf("Container cleanup finished with errors: %v", errs)
		return
	}
	c.Logger.Infof("Container cleanup completed")
}

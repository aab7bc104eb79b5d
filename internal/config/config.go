package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Hardware
	SimulationMode   bool
	ServoPort        string
	ServoBaud        int
	ServoReadTimeout time.Duration
	IOAddress        string
	IODialTimeout    time.Duration
	VFDPort          string
	VFDBaud          int

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// MQTT
	MQTTBroker   string
	MQTTClientID string
	MQTTUsername string
	MQTTPassword string

	// HTTP
	HTTPAddr string

	// Motion
	PollInterval         time.Duration
	HomingTimeout        time.Duration
	MotionTimeout        time.Duration
	ObjectDetectTimeout  time.Duration
	SoftLimitMin         int
	SoftLimitMax         int
	TemperatureThreshold float64
	ReferenceSpeed       int
	ReferenceStep        int
	ReferenceMaxSteps    int
	SafetyPollInterval   time.Duration
	DAQInterval          time.Duration

	// IO wiring
	EStopInput         int
	SafetySwitchInput  int
	MotionEnableOutput int
	GripperOutput      int
	ObjectSensor       int

	// Application
	LogLevel string
}

// Load reads the process configuration once at start-up. A missing .env file is
// not an error; every key has a default.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	return &Config{
		SimulationMode:   getEnvBool("SIMULATION_MODE", false),
		ServoPort:        getEnv("SERVO_PORT", "/dev/ttyUSB0"),
		ServoBaud:        getEnvInt("SERVO_BAUD", 9600),
		ServoReadTimeout: getEnvMillis("SERVO_READ_TIMEOUT_MS", 500),
		IOAddress:        getEnv("IO_ADDRESS", "192.168.1.100:502"),
		IODialTimeout:    getEnvMillis("IO_DIAL_TIMEOUT_MS", 3000),
		VFDPort:          getEnv("VFD_PORT", "/dev/ttyUSB1"),
		VFDBaud:          getEnvInt("VFD_BAUD", 9600),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "password"),
		DBName:     getEnv("DB_NAME", "gantry"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		MQTTBroker:   getEnv("MQTT_BROKER", "tcp://localhost:1883"),
		MQTTClientID: getEnv("MQTT_CLIENT_ID", "GANTRY_CONTROL"),
		MQTTUsername: getEnv("MQTT_USERNAME", ""),
		MQTTPassword: getEnv("MQTT_PASSWORD", ""),

		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		PollInterval:         getEnvMillis("POLL_INTERVAL_MS", 100),
		HomingTimeout:        getEnvSeconds("HOMING_TIMEOUT_SECONDS", 60),
		MotionTimeout:        getEnvSeconds("MOTION_TIMEOUT_SECONDS", 30),
		ObjectDetectTimeout:  getEnvSeconds("OBJECT_DETECT_TIMEOUT_SECONDS", 10),
		SoftLimitMin:         getEnvInt("SOFT_LIMIT_MIN", -5000),
		SoftLimitMax:         getEnvInt("SOFT_LIMIT_MAX", 5000),
		TemperatureThreshold: getEnvFloat("TEMPERATURE_THRESHOLD", 70.0),
		ReferenceSpeed:       getEnvInt("REFERENCE_SPEED", 10),
		ReferenceStep:        getEnvInt("REFERENCE_STEP", 5),
		ReferenceMaxSteps:    getEnvInt("REFERENCE_MAX_STEPS", 2000),
		SafetyPollInterval:   getEnvMillis("SAFETY_POLL_INTERVAL_MS", 500),
		DAQInterval:          getEnvMillis("DAQ_INTERVAL_MS", 1000),

		EStopInput:         getEnvInt("ESTOP_INPUT", 1),
		SafetySwitchInput:  getEnvInt("SAFETY_SWITCH_INPUT", 2),
		MotionEnableOutput: getEnvInt("MOTION_ENABLE_OUTPUT", 1),
		GripperOutput:      getEnvInt("GRIPPER_OUTPUT", 1),
		ObjectSensor:       getEnvInt("OBJECT_SENSOR", 1),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return v
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return v
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v, err := strconv.ParseBool(strings.TrimSpace(getEnv(key, ""))); err == nil {
		return v
	}
	return defaultValue
}

func getEnvMillis(key string, defaultMillis int) time.Duration {
	return time.Duration(getEnvInt(key, defaultMillis)) * time.Millisecond
}

func getEnvSeconds(key string, defaultSeconds int) time.Duration {
	return time.Duration(getEnvInt(key, defaultSeconds)) * time.Second
}

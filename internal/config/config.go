package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dokzlo13/sunrised/internal/alarm"
	"github.com/dokzlo13/sunrised/internal/gateway"
	"github.com/dokzlo13/sunrised/internal/light"
	"github.com/dokzlo13/sunrised/internal/state"
)

// Config represents the application configuration
type Config struct {
	Alarm           AlarmConfig      `yaml:"alarm"`
	Fade            FadeConfig       `yaml:"fade"`
	Gateway         GatewayConfig    `yaml:"gateway"`
	Supervisor      SupervisorConfig `yaml:"supervisor"`
	API             APIConfig        `yaml:"api"`
	Database        DatabaseConfig   `yaml:"database"`
	Ledger          LedgerConfig     `yaml:"ledger"`
	EventBus        EventBusConfig   `yaml:"eventbus"`
	MQTT            MQTTConfig       `yaml:"mqtt"`
	InfluxDB        InfluxDBConfig   `yaml:"influxdb"`
	Log             LogConfig        `yaml:"log"`
	ShutdownTimeout Duration         `yaml:"shutdown_timeout"` // General shutdown timeout for graceful stops
}

// AlarmConfig contains the initial alarm schedule
type AlarmConfig struct {
	WakeTime     string   `yaml:"wake_time"`     // "07:00", "07:00:30" or "7h"
	FadeDuration Duration `yaml:"fade_duration"` // Length of the fade window
	Activated    *bool    `yaml:"activated"`     // Default: true
	Timezone     string   `yaml:"timezone"`      // IANA zone for the wake time (default: local)
}

// IsActivated returns the initial activation flag with default
func (c *AlarmConfig) IsActivated() bool {
	if c.Activated == nil {
		return true
	}
	return *c.Activated
}

// Location resolves the configured timezone
func (c *AlarmConfig) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// Schedule parses the configured wake time and fade duration
func (c *AlarmConfig) Schedule() (state.Schedule, error) {
	wake, err := alarm.ParseWakeTime(c.WakeTime)
	if err != nil {
		return state.Schedule{}, err
	}
	s := state.Schedule{WakeTime: wake, FadeDuration: c.FadeDuration.Duration()}
	if err := s.Validate(); err != nil {
		return state.Schedule{}, err
	}
	return s, nil
}

// FadeConfig contains per-step increments
type FadeConfig struct {
	BrightnessStep       int `yaml:"brightness_step"`        // Added to brightness every step (default: 1)
	ColorTemperatureStep int `yaml:"color_temperature_step"` // Subtracted from color temperature every step (default: 1)
}

// GatewayConfig contains light gateway connection settings
type GatewayConfig struct {
	URL              string      `yaml:"url"`
	APIKey           string      `yaml:"api_key"`
	RateLimitRPS     float64     `yaml:"rate_limit_rps"`
	Brightness       RangeConfig `yaml:"brightness"`
	ColorTemperature RangeConfig `yaml:"color_temperature"` // mirek
}

// RangeConfig is an inclusive device value range
type RangeConfig struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// Range converts to a light.Range
func (r RangeConfig) Range() light.Range {
	return light.Range{Min: r.Min, Max: r.Max}
}

// SupervisorConfig contains controller restart settings
type SupervisorConfig struct {
	MinBackoff       *Duration `yaml:"min_backoff"`       // Delay before the first restart after an error (default: 1s, 0 = immediate)
	MaxBackoff       Duration  `yaml:"max_backoff"`       // Upper bound for the restart delay (default: 1m)
	Multiplier       float64   `yaml:"multiplier"`        // Backoff multiplier (default: 2.0)
	ReactivationPoll Duration  `yaml:"reactivation_poll"` // Flag polling interval after a deactivation (default: 1s)
}

// GetMinBackoff returns the minimum backoff with default
func (c *SupervisorConfig) GetMinBackoff() time.Duration {
	if c.MinBackoff == nil {
		return 1 * time.Second
	}
	return c.MinBackoff.Duration()
}

// APIConfig contains configuration service settings
type APIConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns the listen address
func (c *APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LedgerConfig contains fade ledger settings
type LedgerConfig struct {
	Enabled         *bool    `yaml:"enabled"` // Default: true
	Retention       Duration `yaml:"retention"`
	CleanupInterval Duration `yaml:"cleanup_interval"`
}

// IsEnabled returns whether the ledger is enabled with default
func (c *LedgerConfig) IsEnabled() bool {
	if c.Enabled == nil {
		return true
	}
	return *c.Enabled
}

// EventBusConfig contains event bus settings
type EventBusConfig struct {
	Workers   int `yaml:"workers"`    // Number of worker goroutines (default: 1, keeps delivery ordered)
	QueueSize int `yaml:"queue_size"` // Event queue size (default: 512)
}

// GetWorkers returns worker count with default
func (c *EventBusConfig) GetWorkers() int {
	if c.Workers <= 0 {
		return 1
	}
	return c.Workers
}

// GetQueueSize returns queue size with default
func (c *EventBusConfig) GetQueueSize() int {
	if c.QueueSize <= 0 {
		return 512
	}
	return c.QueueSize
}

// MQTTConfig contains MQTT broker settings
type MQTTConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Broker         string   `yaml:"broker"` // tcp://host:1883
	ClientID       string   `yaml:"client_id"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	TopicPrefix    string   `yaml:"topic_prefix"`
	QoS            int      `yaml:"qos"`
	ConnectTimeout Duration `yaml:"connect_timeout"`
	KeepAlive      Duration `yaml:"keep_alive"`
}

// InfluxDBConfig contains InfluxDB telemetry settings
type InfluxDBConfig struct {
	Enabled       bool     `yaml:"enabled"`
	URL           string   `yaml:"url"`
	Token         string   `yaml:"token"`
	Org           string   `yaml:"org"`
	Bucket        string   `yaml:"bucket"`
	BatchSize     int      `yaml:"batch_size"`
	FlushInterval Duration `yaml:"flush_interval"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`
	JSON   bool   `yaml:"json"`
	Colors bool   `yaml:"colors"`
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := alarm.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads and parses the configuration file. A missing file yields the
// defaults so the daemon can run from flags alone.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	// Expand environment variables
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	// Alarm defaults
	if cfg.Alarm.WakeTime == "" {
		cfg.Alarm.WakeTime = "07:00"
	}
	if cfg.Alarm.FadeDuration == 0 {
		cfg.Alarm.FadeDuration = Duration(30 * time.Minute)
	}

	// Fade defaults
	if cfg.Fade.BrightnessStep == 0 {
		cfg.Fade.BrightnessStep = 1
	}
	if cfg.Fade.ColorTemperatureStep == 0 {
		cfg.Fade.ColorTemperatureStep = 1
	}

	// Gateway defaults
	if cfg.Gateway.RateLimitRPS == 0 {
		cfg.Gateway.RateLimitRPS = 10.0 // 10 requests per second
	}
	if cfg.Gateway.Brightness == (RangeConfig{}) {
		cfg.Gateway.Brightness = RangeConfig{Min: 1, Max: 254}
	}
	if cfg.Gateway.ColorTemperature == (RangeConfig{}) {
		cfg.Gateway.ColorTemperature = RangeConfig{Min: 153, Max: 500}
	}

	// Supervisor defaults
	if cfg.Supervisor.MaxBackoff == 0 {
		cfg.Supervisor.MaxBackoff = Duration(1 * time.Minute)
	}
	if cfg.Supervisor.Multiplier == 0 {
		cfg.Supervisor.Multiplier = 2.0
	}
	if cfg.Supervisor.ReactivationPoll == 0 {
		cfg.Supervisor.ReactivationPoll = Duration(1 * time.Second)
	}

	// API defaults
	if cfg.API.Host == "" {
		cfg.API.Host = "0.0.0.0"
	}
	if cfg.API.Port == 0 {
		cfg.API.Port = 3000
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "./sunrised.sqlite"
	}

	// Ledger defaults
	if cfg.Ledger.Retention == 0 {
		cfg.Ledger.Retention = Duration(30 * 24 * time.Hour)
	}
	if cfg.Ledger.CleanupInterval == 0 {
		cfg.Ledger.CleanupInterval = Duration(24 * time.Hour)
	}

	// MQTT defaults
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "sunrised"
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "sunrised"
	}
	if cfg.MQTT.QoS == 0 {
		cfg.MQTT.QoS = 1
	}
	if cfg.MQTT.ConnectTimeout == 0 {
		cfg.MQTT.ConnectTimeout = Duration(10 * time.Second)
	}
	if cfg.MQTT.KeepAlive == 0 {
		cfg.MQTT.KeepAlive = Duration(30 * time.Second)
	}

	// InfluxDB defaults
	if cfg.InfluxDB.BatchSize == 0 {
		cfg.InfluxDB.BatchSize = 100
	}
	if cfg.InfluxDB.FlushInterval == 0 {
		cfg.InfluxDB.FlushInterval = Duration(10 * time.Second)
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	// General shutdown timeout
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = Duration(5 * time.Second)
	}
}

// Validate checks the configuration after flag overrides have been applied
func (cfg *Config) Validate() error {
	var errs []error

	if _, err := cfg.Alarm.Schedule(); err != nil {
		errs = append(errs, fmt.Errorf("alarm: %w", err))
	}
	if _, err := cfg.Alarm.Location(); err != nil {
		errs = append(errs, fmt.Errorf("alarm.timezone: %w", err))
	}

	if cfg.Fade.BrightnessStep < 0 || cfg.Fade.ColorTemperatureStep < 0 {
		errs = append(errs, errors.New("fade: steps must not be negative"))
	}

	if cfg.Gateway.URL == "" {
		errs = append(errs, errors.New("gateway.url is required"))
	} else if u, err := url.Parse(cfg.Gateway.URL); err != nil || u.Host == "" {
		errs = append(errs, fmt.Errorf("gateway.url %q is not a valid URL", cfg.Gateway.URL))
	}
	if cfg.Gateway.APIKey == "" {
		errs = append(errs, errors.New("gateway.api_key is required"))
	}
	if cfg.Gateway.RateLimitRPS < 0 {
		errs = append(errs, errors.New("gateway.rate_limit_rps must not be negative"))
	}
	if err := validateRange(cfg.Gateway.Brightness, gateway.WireBrightness); err != nil {
		errs = append(errs, fmt.Errorf("gateway.brightness: %w", err))
	}
	if err := validateRange(cfg.Gateway.ColorTemperature, gateway.WireColorTemperature); err != nil {
		errs = append(errs, fmt.Errorf("gateway.color_temperature: %w", err))
	}

	if cfg.Supervisor.GetMinBackoff() < 0 {
		errs = append(errs, errors.New("supervisor.min_backoff must not be negative"))
	}

	if cfg.API.Port < 0 || cfg.API.Port > 65535 {
		errs = append(errs, fmt.Errorf("api.port %d out of range", cfg.API.Port))
	}

	if cfg.MQTT.Enabled && cfg.MQTT.Broker == "" {
		errs = append(errs, errors.New("mqtt.broker is required when mqtt is enabled"))
	}
	if cfg.MQTT.QoS < 0 || cfg.MQTT.QoS > 2 {
		errs = append(errs, fmt.Errorf("mqtt.qos %d must be 0, 1 or 2", cfg.MQTT.QoS))
	}

	if cfg.InfluxDB.Enabled {
		if cfg.InfluxDB.URL == "" {
			errs = append(errs, errors.New("influxdb.url is required when influxdb is enabled"))
		}
		if cfg.InfluxDB.Bucket == "" {
			errs = append(errs, errors.New("influxdb.bucket is required when influxdb is enabled"))
		}
	}

	return errors.Join(errs...)
}

func validateRange(r RangeConfig, limits light.Range) error {
	if r.Min > r.Max {
		return fmt.Errorf("min %d > max %d", r.Min, r.Max)
	}
	if r.Min < limits.Min || r.Max > limits.Max {
		return fmt.Errorf("[%d, %d] outside [%d, %d]", r.Min, r.Max, limits.Min, limits.Max)
	}
	return nil
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	// Match ${VAR} or ${VAR:default}
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}

// ExpandEnvString expands a single string with environment variables
func ExpandEnvString(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return expandEnvVars(s)
	}
	return s
}

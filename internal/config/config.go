// Package config loads agent configuration from flags, environment
// variables (CHEESECAVE_*) and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sweeney/cheese-cave/internal/gpio"
	"github.com/sweeney/cheese-cave/internal/sensor"
)

// EnvPrefix is prepended to every environment variable key.
const EnvPrefix = "CHEESECAVE"

// ErrInvalid is returned when a loaded value fails validation.
var ErrInvalid = errors.New("invalid config")

// Config is the fully resolved agent configuration.
type Config struct {
	Broker         string        `mapstructure:"broker"`
	DeviceID       string        `mapstructure:"device-id"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	GPIOChip       string        `mapstructure:"gpio-chip"`
	Pin            int           `mapstructure:"pin"`
	I2CBus         string        `mapstructure:"i2c-bus"`
	I2CAddr        uint16        `mapstructure:"i2c-addr"`
	Interval       time.Duration `mapstructure:"interval"`
	SensorTimeout  time.Duration `mapstructure:"sensor-timeout"`
	ReportTimeout  time.Duration `mapstructure:"report-timeout"`
	HTTPAddr       string        `mapstructure:"http"`
	HTTPMethods    bool          `mapstructure:"http-methods"`
	RequestIDs     bool          `mapstructure:"report-request-id"`
	EmbeddedBroker string        `mapstructure:"embedded-broker"`
	FakeHardware   bool          `mapstructure:"fake-hardware"`
	LogLevel       string        `mapstructure:"log-level"`
	NoColor        bool          `mapstructure:"no-color"`
	PrintState     bool          `mapstructure:"print-state"`
}

// Flags returns the command-line flag set understood by Load.
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("cheese-cave", pflag.ContinueOnError)
	fs.String("config", "", "Path to a YAML config file")
	fs.String("broker", "tcp://localhost:1883", "MQTT broker address")
	fs.String("device-id", "cheese-cave", "Device identity used in MQTT topics")
	fs.String("username", "", "MQTT username")
	fs.String("password", "", "MQTT password")
	fs.String("gpio-chip", gpio.DefaultChip, "GPIO character device for the fan relay")
	fs.Int("pin", gpio.DefaultPin, "BCM pin number for the fan relay")
	fs.String("i2c-bus", "", "I2C bus for the BME280 (empty for the first bus)")
	fs.Uint16("i2c-addr", sensor.DefaultAddr, "I2C address of the BME280")
	fs.Duration("interval", 5*time.Second, "Telemetry interval")
	fs.Duration("sensor-timeout", 2*time.Second, "Sensor read timeout")
	fs.Duration("report-timeout", 10*time.Second, "Reported state submission timeout, including retries")
	fs.String("http", ":8080", "HTTP status address (empty to disable)")
	fs.Bool("http-methods", false, "Allow POST /methods/{name} on the HTTP server (unauthenticated)")
	fs.Bool("report-request-id", false, `Add a "$rid" request id to every reported state`)
	fs.String("embedded-broker", "", "Run an embedded MQTT broker on this address (empty to disable)")
	fs.Bool("fake-hardware", false, "Use simulated fan output and sensor")
	fs.String("log-level", "info", "Log level: debug, info, warn, error")
	fs.Bool("no-color", false, "Disable coloured console output")
	fs.Bool("print-state", false, "Read the sensor once, print it and exit")
	return fs
}

// Load parses args and merges flags, environment and config file, in that
// order of precedence.
func Load(args []string) (Config, error) {
	fs := Flags()
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		return Config{}, fmt.Errorf("bind flags: %w", err)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate reports the first value that cannot be used.
func (c Config) Validate() error {
	switch {
	case c.DeviceID == "":
		return fmt.Errorf("%w: device-id is empty", ErrInvalid)
	case strings.ContainsAny(c.DeviceID, "/+#"):
		return fmt.Errorf("%w: device-id %q contains MQTT topic characters", ErrInvalid, c.DeviceID)
	case c.Interval <= 0:
		return fmt.Errorf("%w: interval must be positive, got %v", ErrInvalid, c.Interval)
	case c.SensorTimeout <= 0:
		return fmt.Errorf("%w: sensor-timeout must be positive, got %v", ErrInvalid, c.SensorTimeout)
	case c.ReportTimeout <= 0:
		return fmt.Errorf("%w: report-timeout must be positive, got %v", ErrInvalid, c.ReportTimeout)
	case c.Pin < 0:
		return fmt.Errorf("%w: pin must not be negative, got %d", ErrInvalid, c.Pin)
	}
	return nil
}

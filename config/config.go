// Package config loads the service configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"kick-analytics/ball"
	"kick-analytics/codec"
	"kick-analytics/features"
)

// ErrInvalid is returned for configurations that cannot be used.
var ErrInvalid = errors.New("invalid configuration")

// Config is the full service configuration.
type Config struct {
	Device struct {
		Name          string        `yaml:"name"`
		ScanInterval  time.Duration `yaml:"scan_interval"`
		AutoReconnect bool          `yaml:"auto_reconnect"`
	} `yaml:"device"`

	Capture struct {
		Samples  int            `yaml:"samples"`
		DataType codec.DataType `yaml:"data_type"`
		// Record is an optional CBOR file receiving raw notifications.
		Record string `yaml:"record"`
	} `yaml:"capture"`

	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`

	MQTT struct {
		Broker   string `yaml:"broker"` // empty disables publishing
		Topic    string `yaml:"topic"`
		ClientID string `yaml:"client_id"`
	} `yaml:"mqtt"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Model struct {
		// Coefficients overrides the built-in table, intercept first.
		Coefficients []float64 `yaml:"coefficients"`
	} `yaml:"model"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	c := &Config{}
	c.Device.Name = "KickBall"
	c.Device.ScanInterval = 2 * time.Second
	c.Device.AutoReconnect = true
	c.Capture.Samples = ball.MaxSamples
	c.Capture.DataType = codec.TypeTwo
	c.HTTP.Addr = ":8080"
	c.MQTT.Topic = "kick/events"
	c.MQTT.ClientID = "kick-analytics"
	c.Log.Level = "info"
	return c
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	c := Default()
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b, c)
}

// Parse decodes data over base and validates the result.
func Parse(data []byte, base *Config) (*Config, error) {
	c := *base
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the values a component would reject later.
func (c *Config) Validate() error {
	if !c.Capture.DataType.Valid() {
		return fmt.Errorf("%w: capture.data_type %d", ErrInvalid, c.Capture.DataType)
	}
	if c.Capture.Samples < 1 || c.Capture.Samples > ball.MaxSamples {
		return fmt.Errorf("%w: capture.samples %d not in [1, %d]", ErrInvalid, c.Capture.Samples, ball.MaxSamples)
	}
	if n := len(c.Model.Coefficients); n != 0 && n != len(features.Names())+1 {
		return fmt.Errorf("%w: model.coefficients has %d entries, want %d", ErrInvalid, n, len(features.Names())+1)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// Correlator builds the force model, preferring the configured table.
func (c *Config) Correlator() (*features.Correlator, error) {
	if len(c.Model.Coefficients) == 0 {
		return features.DefaultCorrelator(), nil
	}
	return features.NewCorrelator(c.Model.Coefficients)
}

// LogLevel returns the configured level, falling back to info.
func (c *Config) LogLevel() logrus.Level {
	lvl, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

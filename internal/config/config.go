// Package config loads the YAML configuration of the listener.
package config

import (
	"os"
	"unicode/utf8"

	"github.com/juju/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"gitlab.com/d21d3q/gometers/internal/driver"
	"gitlab.com/d21d3q/gometers/internal/meter"
	"gitlab.com/d21d3q/gometers/internal/output"
	"gitlab.com/d21d3q/gometers/internal/units"
)

type Config struct {
	Log         LogConfig     `yaml:"log"`
	Format      string        `yaml:"format"`
	Separator   string        `yaml:"separator"`
	Conversions []string      `yaml:"conversions"`
	Debug       bool          `yaml:"debug"`
	Redis       RedisConfig   `yaml:"redis"`
	Metrics     MetricsConfig `yaml:"metrics"`
	Meters      []MeterConfig `yaml:"meters"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// RedisConfig enables the redis publisher when Addr is set.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	Channel   string `yaml:"channel"`
	KeyPrefix string `yaml:"key_prefix"`
}

// MetricsConfig enables the prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type MeterConfig struct {
	Name         string `yaml:"name"`
	Driver       string `yaml:"driver"`
	ID           string `yaml:"id"`
	Key          string `yaml:"key"`
	Manufacturer string `yaml:"manufacturer"`
	Version      string `yaml:"version"`
	DeviceType   string `yaml:"device_type"`
}

// Load reads path on top of Default and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Annotatef(err, "reading config %s", path)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.NewNotValid(err, "parsing config "+path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used for missing keys.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Format:    output.HumanReadable.String(),
		Separator: output.DefaultSeparator,
		Redis: RedisConfig{
			Channel:   "meters",
			KeyPrefix: "gometers:",
		},
	}
}

// Validate checks everything that can be checked before the first telegram.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return errors.NewNotValid(err, "log.level")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return errors.NotValidf("log.format %q", c.Log.Format)
	}
	if _, err := output.ParseFormat(c.Format); err != nil {
		return errors.NewNotValid(err, "format")
	}
	if utf8.RuneCountInString(c.Separator) != 1 {
		return errors.NotValidf("separator %q (need a single character)", c.Separator)
	}
	if _, err := c.Units(); err != nil {
		return err
	}
	seen := make(map[string]bool, len(c.Meters))
	for i, m := range c.Meters {
		if m.Name == "" {
			return errors.NotValidf("meters[%d] without name", i)
		}
		if seen[m.Name] {
			return errors.AlreadyExistsf("meter %s", m.Name)
		}
		seen[m.Name] = true
		if !driver.Known(m.Driver) {
			return errors.NotValidf("meter %s driver %q", m.Name, m.Driver)
		}
		if _, err := driver.New(m.Meter()); err != nil {
			return errors.Annotatef(err, "meters[%d]", i)
		}
	}
	return nil
}

// Units resolves the configured conversion units.
func (c *Config) Units() ([]units.Unit, error) {
	out := make([]units.Unit, 0, len(c.Conversions))
	for _, name := range c.Conversions {
		u, err := units.Parse(name)
		if err != nil {
			return nil, errors.NewNotValid(err, "conversions")
		}
		out = append(out, u)
	}
	return out, nil
}

// Output returns the render format and options.
func (c *Config) Output() (output.Format, output.Options, error) {
	f, err := output.ParseFormat(c.Format)
	if err != nil {
		return 0, output.Options{}, errors.NewNotValid(err, "format")
	}
	conv, err := c.Units()
	if err != nil {
		return 0, output.Options{}, err
	}
	return f, output.Options{Separator: c.Separator, Conversions: conv}, nil
}

// Meter converts m to the driver configuration.
func (m MeterConfig) Meter() meter.Config {
	cfg := meter.Config{
		Name:         m.Name,
		Driver:       m.Driver,
		Key:          m.Key,
		Manufacturer: m.Manufacturer,
		Version:      m.Version,
		DeviceType:   m.DeviceType,
	}
	if m.ID != "" {
		cfg.IDs = []string{m.ID}
	}
	return cfg
}

// NewMeters instantiates every configured meter.
func (c *Config) NewMeters() ([]meter.Meter, error) {
	meters := make([]meter.Meter, 0, len(c.Meters))
	for _, m := range c.Meters {
		inst, err := driver.New(m.Meter())
		if err != nil {
			return nil, errors.Annotatef(err, "meter %s", m.Name)
		}
		meters = append(meters, inst)
	}
	return meters, nil
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "gitlab.com/d21d3q/gometers/internal/driver/generic"
	_ "gitlab.com/d21d3q/gometers/internal/driver/vario451"
	"gitlab.com/d21d3q/gometers/internal/output"
	"gitlab.com/d21d3q/gometers/internal/units"
)

const sample = `
log:
  level: debug
format: fields
separator: ","
conversions: [gj, c]
redis:
  addr: localhost:6379
meters:
  - name: heat
    driver: vario451
    id: "12345678"
    key: ""
  - name: water
    driver: generic
    id: "8686*"
    manufacturer: "09B4"
    version: "13"
    device_type: "07"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "meters.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "meters", cfg.Redis.Channel)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	require.Len(t, cfg.Meters, 2)
	assert.Equal(t, []string{"8686*"}, cfg.Meters[1].Meter().IDs)
	assert.Nil(t, MeterConfig{Name: "x"}.Meter().IDs)

	f, opts, err := cfg.Output()
	require.NoError(t, err)
	assert.Equal(t, output.Fields, f)
	assert.Equal(t, ",", opts.Separator)
	assert.Equal(t, []units.Unit{units.GJ, units.C}, opts.Conversions)

	meters, err := cfg.NewMeters()
	require.NoError(t, err)
	require.Len(t, meters, 2)
	assert.Equal(t, "vario451", meters[0].Driver())
	assert.Equal(t, "water", meters[1].Name())
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"level":        func(c *Config) { c.Log.Level = "loud" },
		"log format":   func(c *Config) { c.Log.Format = "xml" },
		"format":       func(c *Config) { c.Format = "csv" },
		"separator":    func(c *Config) { c.Separator = ";;" },
		"no separator": func(c *Config) { c.Separator = "" },
		"conversion":   func(c *Config) { c.Conversions = []string{"furlong"} },
		"no name":      func(c *Config) { c.Meters = []MeterConfig{{Driver: "generic"}} },
		"driver":       func(c *Config) { c.Meters = []MeterConfig{{Name: "m", Driver: "nope"}} },
		"id":           func(c *Config) { c.Meters = []MeterConfig{{Name: "m", Driver: "generic", ID: "12*4"}} },
		"key":          func(c *Config) { c.Meters = []MeterConfig{{Name: "m", Driver: "generic", Key: "xyz"}} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}

	cfg := Default()
	cfg.Meters = []MeterConfig{{Name: "m", Driver: "generic"}, {Name: "m", Driver: "generic"}}
	assert.True(t, errors.IsAlreadyExists(cfg.Validate()))
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = Load(writeConfig(t, "meters: [\n"))
	require.Error(t, err)
	assert.True(t, errors.IsNotValid(err))
}

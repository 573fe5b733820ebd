// Package config loads the TOML configuration of the device and of the
// headless testbed.
package config

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/continuum/engine/core"
	"github.com/spaghettifunk/continuum/engine/math"
	"github.com/spaghettifunk/continuum/engine/renderer/native"
)

type LogConfig struct {
	Level  string `toml:"level"`
	Prefix string `toml:"prefix"`
}

// DeviceConfig selects the native device and the capability profile it is
// validated against.
type DeviceConfig struct {
	Adapter int    `toml:"adapter"`
	Type    string `toml:"type"`
	Profile string `toml:"profile"`
}

// DeviceType parses Type. An empty value selects the hardware device.
func (c DeviceConfig) DeviceType() (native.DeviceType, error) {
	if c.Type == "" {
		return native.DeviceTypeHardware, nil
	}
	t, ok := native.ParseDeviceType(c.Type)
	if !ok {
		return t, core.Argumentf("unknown device type %q", c.Type)
	}
	return t, nil
}

// ProfileOf parses Profile. An empty value selects the highest tier.
func (c DeviceConfig) ProfileOf() (native.Profile, error) {
	if c.Profile == "" {
		return native.ProfileHiDef, nil
	}
	p, ok := native.ParseProfile(c.Profile)
	if !ok {
		return p, core.Argumentf("unknown capability profile %q", c.Profile)
	}
	return p, nil
}

type PresentationConfig struct {
	Width            uint32 `toml:"width"`
	Height           uint32 `toml:"height"`
	Windowed         bool   `toml:"windowed"`
	VSync            bool   `toml:"vsync"`
	MultiSampleCount uint32 `toml:"multisample_count"`
}

// Parameters converts the section into native presentation parameters.
func (c PresentationConfig) Parameters() native.PresentationParameters {
	return native.PresentationParameters{
		BackBufferWidth:    c.Width,
		BackBufferHeight:   c.Height,
		BackBufferFormat:   native.FormatA8R8G8B8,
		DepthStencilFormat: native.FormatD24S8,
		MultiSampleCount:   c.MultiSampleCount,
		Windowed:           c.Windowed,
		VSync:              c.VSync,
	}
}

type JobsConfig struct {
	Workers   int `toml:"workers"`
	QueueSize int `toml:"queue_size"`
}

type Config struct {
	Log          LogConfig          `toml:"log"`
	Device       DeviceConfig       `toml:"device"`
	Presentation PresentationConfig `toml:"presentation"`
	Jobs         JobsConfig         `toml:"jobs"`
}

const (
	minBackBuffer  = 1
	maxBackBuffer  = 16384
	maxWorkers     = 64
	maxQueueSize   = 4096
	maxMultiSample = 16
)

func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Prefix: "continuum"},
		Device: DeviceConfig{
			Adapter: 0,
			Type:    native.DeviceTypeHardware.String(),
			Profile: native.ProfileHiDef.String(),
		},
		Presentation: PresentationConfig{Width: 1280, Height: 720, Windowed: true, VSync: true},
		Jobs:         JobsConfig{Workers: 4, QueueSize: 64},
	}
}

// Parse decodes data on top of the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, errors.Wrapf(err, "config line %d column %d", row, col)
		}
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads and parses the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "load config %s", path)
	}
	return cfg, nil
}

// Validate rejects unknown names and clamps numeric fields into range.
func (c *Config) Validate() error {
	if c.Device.Adapter < 0 {
		return core.ArgumentOutOfRangef("device adapter %d", c.Device.Adapter)
	}
	if _, err := c.Device.DeviceType(); err != nil {
		return err
	}
	if _, err := c.Device.ProfileOf(); err != nil {
		return err
	}
	c.Presentation.Width = math.Clamp(c.Presentation.Width, minBackBuffer, maxBackBuffer)
	c.Presentation.Height = math.Clamp(c.Presentation.Height, minBackBuffer, maxBackBuffer)
	c.Presentation.MultiSampleCount = math.Clamp(c.Presentation.MultiSampleCount, 0, maxMultiSample)
	c.Jobs.Workers = math.Clamp(c.Jobs.Workers, 1, maxWorkers)
	c.Jobs.QueueSize = math.Clamp(c.Jobs.QueueSize, 0, maxQueueSize)
	return nil
}

// Marshal encodes the configuration back to TOML.
func (c *Config) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/continuum/engine/core"
	"github.com/spaghettifunk/continuum/engine/renderer/native"
)

const sample = `
[log]
level = "debug"

[device]
adapter = 1
type = "software"
profile = "reach"

[presentation]
width = 800
height = 600
multisample_count = 64

[jobs]
workers = 0
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "continuum", cfg.Log.Prefix, "unset keys keep their default")
	assert.Equal(t, 1, cfg.Device.Adapter)

	dt, err := cfg.Device.DeviceType()
	require.NoError(t, err)
	assert.Equal(t, native.DeviceTypeSoftware, dt)

	p, err := cfg.Device.ProfileOf()
	require.NoError(t, err)
	assert.Equal(t, native.ProfileReach, p)

	assert.Equal(t, uint32(16), cfg.Presentation.MultiSampleCount)
	assert.Equal(t, 1, cfg.Jobs.Workers)
	assert.Equal(t, 64, cfg.Jobs.QueueSize)

	params := cfg.Presentation.Parameters()
	assert.Equal(t, uint32(800), params.BackBufferWidth)
	assert.Equal(t, uint32(600), params.BackBufferHeight)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		is   error
	}{
		{"bad device type", "[device]\ntype = \"quantum\"", core.ErrArgument},
		{"bad profile", "[device]\nprofile = \"ultra\"", core.ErrArgument},
		{"negative adapter", "[device]\nadapter = -1", core.ErrArgumentOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			assert.ErrorIs(t, err, tt.is)
		})
	}

	_, err := Parse([]byte("[device\nadapter = 1"))
	assert.Error(t, err)
}

func TestDefaultRoundTrip(t *testing.T) {
	data, err := Default().Marshal()
	require.NoError(t, err)
	cfg, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestWatcherReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "continuum.toml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	w, err := NewWatcher(path)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte("[presentation]\nwidth = 1024\nheight = 768\n"), 0o644))

	// a write may be observed half done, wait for the final content
	timeout := time.After(5 * time.Second)
	for reloaded := false; !reloaded; {
		select {
		case cfg := <-w.Updates():
			reloaded = cfg.Presentation.Width == 1024 && cfg.Presentation.Height == 768
		case <-timeout:
			t.Fatal("no reload observed")
		}
	}

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}

package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 2, cfg.Renderer.FramesInFlight)
	assert.Equal(t, Duration(2*time.Second), cfg.Renderer.FenceTimeout)
}

func TestParseConfigOverridesDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
[window]
width = 1920
height = 1080

[renderer]
backend = "headless"
frames_in_flight = 3
fence_timeout = "500ms"

[log]
level = "warn"
`))
	require.NoError(t, err)
	assert.Equal(t, 1920, cfg.Window.Width)
	assert.Equal(t, "headless", cfg.Renderer.Backend)
	assert.Equal(t, 3, cfg.Renderer.FramesInFlight)
	assert.Equal(t, Duration(500*time.Millisecond), cfg.Renderer.FenceTimeout)
	assert.Equal(t, "Prism", cfg.Window.Title, "untouched keys keep their default")
}

func TestParseConfigRejects(t *testing.T) {
	tests := []struct {
		name string
		toml string
	}{
		{"single frame in flight", "[renderer]\nframes_in_flight = 1\n"},
		{"too many frames in flight", "[renderer]\nframes_in_flight = 4\n"},
		{"zero width", "[window]\nwidth = 0\n"},
		{"unknown key", "[renderer]\nshadows = true\n"},
		{"bad level", "[log]\nlevel = \"loud\"\n"},
		{"bad duration", "[renderer]\nfence_timeout = \"soon\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.toml))
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoadConfigMissingFileFallsBack(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestConfigRoundTripThroughFile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Renderer.Backend = "headless"
	data, err := cfg.Marshal()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "prism.toml")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestShippedConfigLoads(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("..", "..", "prism.toml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "vulkan", cfg.Renderer.Backend)
	assert.Equal(t, 2, cfg.Renderer.FramesInFlight)
	assert.Equal(t, Duration(2*time.Second), cfg.Renderer.FenceTimeout)
	assert.True(t, cfg.Assets.Watch)
	assert.False(t, cfg.Renderer.DebugGUI)
}

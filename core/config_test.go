package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tilepath-go/game"
)

func TestConfigManager(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := `
simulation:
  tick_ms: 50
  agents: 10
grid:
  width: 32
  height: 16
search:
  workers: 4
  queue: heap
web:
  enabled: false
`
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

	cm, err := NewConfigManager(configPath)
	require.NoError(t, err)

	config := cm.GetConfig()
	assert.Equal(t, 50, config.Simulation.TickMS)
	assert.Equal(t, 10, config.Simulation.Agents)
	assert.Equal(t, 32, config.Grid.Width)
	assert.Equal(t, 4, config.Search.Workers)
	assert.False(t, config.Web.Enabled)
	// Keys missing from the file keep their defaults.
	assert.Equal(t, 20, config.Simulation.RetryTicks)
	assert.Equal(t, game.DefaultHeuristicWeight, config.Search.HeuristicWeight)

	config.Simulation.Agents = 99
	cm.SetConfig(config)
	require.NoError(t, cm.SaveConfig())

	reloaded, err := NewConfigManager(configPath)
	require.NoError(t, err)
	assert.Equal(t, 99, reloaded.GetConfig().Simulation.Agents)
	assert.Equal(t, "heap", reloaded.GetConfig().Search.Queue)
}

func TestConfigManager_CreatesDefaults(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	cm, err := NewConfigManager(configPath)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cm.GetConfig())
	assert.FileExists(t, configPath)
	assert.Equal(t, configPath, cm.Path())
}

func TestConfigManager_Invalid(t *testing.T) {
	tmpDir := t.TempDir()

	badYAML := filepath.Join(tmpDir, "bad.yaml")
	require.NoError(t, os.WriteFile(badYAML, []byte("simulation: [\n"), 0644))
	_, err := NewConfigManager(badYAML)
	assert.Error(t, err)

	tooMany := filepath.Join(tmpDir, "workers.yaml")
	require.NoError(t, os.WriteFile(tooMany, []byte("search:\n  workers: 64\n"), 0644))
	_, err = NewConfigManager(tooMany)
	assert.ErrorIs(t, err, game.ErrCapacityExceeded)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(c *Config)
		capacity bool
	}{
		{"tick", func(c *Config) { c.Simulation.TickMS = 0 }, false},
		{"agents", func(c *Config) { c.Simulation.Agents = -1 }, false},
		{"moves", func(c *Config) { c.Simulation.MaxMovesPerTick = 0 }, false},
		{"retry", func(c *Config) { c.Simulation.RetryTicks = -1 }, false},
		{"no workers", func(c *Config) { c.Search.Workers = 0 }, false},
		{"too many workers", func(c *Config) { c.Search.Workers = game.MaxWorkers + 1 }, true},
		{"queue", func(c *Config) { c.Search.Queue = "bucket" }, false},
		{"weight", func(c *Config) { c.Search.HeuristicWeight = -1 }, false},
		{"grid size", func(c *Config) { c.Grid.Width = 0 }, false},
		{"grid too large", func(c *Config) { c.Grid.Width, c.Grid.Height = 2048, 2048 }, true},
		{"density", func(c *Config) { c.Grid.ObstacleDensity = 1 }, false},
		{"port", func(c *Config) { c.Web.Port = 70000 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			require.NoError(t, c.Validate())
			tt.mutate(c)
			err := c.Validate()
			require.Error(t, err)
			if tt.capacity {
				assert.ErrorIs(t, err, game.ErrCapacityExceeded)
			}
		})
	}
}

func TestConfig_MapFileSkipsGridSize(t *testing.T) {
	c := DefaultConfig()
	c.Grid.MapFile = "maps/arena.yaml"
	c.Grid.Width = 0
	assert.NoError(t, c.Validate())
}

func TestSearchConfig_Options(t *testing.T) {
	c := DefaultConfig()
	c.Search.Queue = "heap"
	c.Search.MaxExpansions = 500

	options, err := c.Search.Options()
	require.NoError(t, err)

	opts := game.DefaultSearchOptions()
	for _, option := range options {
		option(&opts)
	}
	assert.Equal(t, game.QueueHeap, opts.Queue)
	assert.Equal(t, 500, opts.MaxExpansions)
	assert.Equal(t, game.DiagonalCost, opts.DiagonalCost)
}

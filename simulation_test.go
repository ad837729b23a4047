package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tilepath-go/core"
	"tilepath-go/game"
)

const arenaMap = `name: arena
rows:
  - "........"
  - "........"
  - "###.####"
  - "........"
  - "........"
`

const testConfig = `
simulation:
  tick_ms: 1
  agents: 4
  seed: 3
  retry_ticks: 2
  max_moves_per_tick: 2
  queue_size: 16
grid:
  map_file: arena.yaml
search:
  workers: 2
web:
  enabled: false
`

func newTestSimulation(t *testing.T, config string, files map[string]string) (*Simulation, string) {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(config), 0644))

	cm, err := core.NewConfigManager(configPath)
	require.NoError(t, err)
	sim, err := NewSimulation(cm)
	require.NoError(t, err)
	t.Cleanup(sim.Close)
	return sim, dir
}

func stepUntil(t *testing.T, sim *Simulation, cond func() bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		sim.Step()
		return cond()
	}, 5*time.Second, time.Millisecond)
}

func TestSimulation_AgentsArrive(t *testing.T) {
	sim, _ := newTestSimulation(t, testConfig, map[string]string{"arena.yaml": arenaMap})
	assert.Len(t, sim.agents, 4)
	for _, a := range sim.agents {
		assert.True(t, sim.Grid().IsTraversable(a.Cell()))
	}

	stepUntil(t, sim, func() bool { return sim.Frame().Arrivals >= 4 })

	snap := sim.Metrics()
	assert.GreaterOrEqual(t, snap.Found, 4)
	assert.Equal(t, 0, snap.NotFound)
}

func TestSimulation_State(t *testing.T) {
	sim, _ := newTestSimulation(t, testConfig, map[string]string{"arena.yaml": arenaMap})
	sim.Step()

	data, err := sim.State()
	require.NoError(t, err)
	var state struct {
		Tick   int  `json:"tick"`
		Paused bool `json:"paused"`
		Width  int  `json:"width"`
		Agents []struct {
			ID    string `json:"id"`
			State string `json:"state"`
		} `json:"agents"`
	}
	require.NoError(t, json.Unmarshal(data, &state))
	assert.Equal(t, 1, state.Tick)
	assert.Equal(t, 8, state.Width)
	require.Len(t, state.Agents, 4)
	assert.Equal(t, "path_finding", state.Agents[0].State)
}

func TestSimulation_PauseResume(t *testing.T) {
	sim, _ := newTestSimulation(t, testConfig, map[string]string{"arena.yaml": arenaMap})
	assert.False(t, sim.IsPaused())
	sim.Pause()
	assert.True(t, sim.IsPaused())
	assert.True(t, sim.Frame().Paused)
	sim.Resume()
	assert.False(t, sim.IsPaused())
}

func TestSimulation_RunStopsAfterTicks(t *testing.T) {
	sim, _ := newTestSimulation(t, testConfig, map[string]string{"arena.yaml": arenaMap})
	done := make(chan struct{})
	go func() {
		sim.Run(context.Background(), 5)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop")
	}
	assert.Equal(t, 5, sim.Tick())
}

func TestSimulation_RunStopsOnCancel(t *testing.T) {
	sim, _ := newTestSimulation(t, testConfig, map[string]string{"arena.yaml": arenaMap})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	sim.Run(ctx, 0)
	assert.Greater(t, sim.Tick(), 0)
}

func TestSimulation_ReloadGrid(t *testing.T) {
	sim, dir := newTestSimulation(t, testConfig, map[string]string{"arena.yaml": arenaMap})

	closed := `rows:
  - "........"
  - "........"
  - "########"
  - "........"
  - "........"
`
	closedPath := filepath.Join(dir, "closed.yaml")
	require.NoError(t, os.WriteFile(closedPath, []byte(closed), 0644))
	require.NoError(t, sim.ReloadGrid(closedPath))
	assert.False(t, sim.Grid().IsTraversable(game.Cell{X: 3, Y: 2}))

	small := filepath.Join(dir, "small.yaml")
	require.NoError(t, os.WriteFile(small, []byte("rows:\n  - \"..\"\n"), 0644))
	assert.Error(t, sim.ReloadGrid(small))
	assert.Error(t, sim.ReloadGrid(filepath.Join(dir, "missing.yaml")))
}

func TestSimulation_WatchFilesReloadsMap(t *testing.T) {
	sim, dir := newTestSimulation(t, testConfig, map[string]string{"arena.yaml": arenaMap})
	files := sim.WatchedFiles()
	require.Len(t, files, 1)

	w, err := core.NewWatcher(files...)
	require.NoError(t, err)
	defer w.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sim.WatchFiles(ctx, w)

	opened := `rows:
  - "........"
  - "........"
  - "........"
  - "........"
  - "........"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "arena.yaml"), []byte(opened), 0644))
	require.Eventually(t, func() bool {
		return sim.Grid().IsTraversable(game.Cell{X: 0, Y: 2})
	}, 5*time.Second, 10*time.Millisecond)
}

func TestSimulation_TargetScript(t *testing.T) {
	script := `
target_x = 7
target_y = 4
if agent_x == 7 && agent_y == 4 {
	target_x = 0
	target_y = 0
}
`
	config := testConfig + "script:\n  target_script: targets.tengo\n"
	sim, dir := newTestSimulation(t, config, map[string]string{"arena.yaml": arenaMap, "targets.tengo": script})
	assert.Contains(t, sim.WatchedFiles(), filepath.Join(dir, "targets.tengo"))

	sim.Step()
	for _, a := range sim.agents {
		if a.State == game.AgentPathFinding {
			if a.Cell() == (game.Cell{X: 7, Y: 4}) {
				assert.Equal(t, game.Cell{X: 0, Y: 0}, a.Target)
			} else {
				assert.Equal(t, game.Cell{X: 7, Y: 4}, a.Target)
			}
		}
	}

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.tengo"), []byte("target_x = = 1"), 0644))
	assert.Error(t, sim.ReloadScript(filepath.Join(dir, "broken.tengo")))
	assert.NoError(t, sim.ReloadScript(filepath.Join(dir, "targets.tengo")))
}

func TestSimulation_GeneratedGrid(t *testing.T) {
	config := `
simulation:
  tick_ms: 1
  agents: 8
grid:
  width: 40
  height: 20
  obstacle_density: 0.1
search:
  workers: 4
  queue: heap
web:
  enabled: false
`
	sim, _ := newTestSimulation(t, config, nil)
	assert.Equal(t, 40, sim.Grid().Width)
	assert.Empty(t, sim.WatchedFiles())
	stepUntil(t, sim, func() bool { return sim.Frame().Arrivals >= 1 })
}

func TestSimulation_SaveSnapshotAndMap(t *testing.T) {
	sim, dir := newTestSimulation(t, testConfig, map[string]string{"arena.yaml": arenaMap})
	sim.Step()

	require.NoError(t, sim.SaveSnapshot("out/state.json"))
	data, err := os.ReadFile(filepath.Join(dir, "out", "state.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"tick": 1`)

	require.NoError(t, sim.SaveMap("out/map.yaml"))
	g, err := game.LoadGrid(filepath.Join(dir, "out", "map.yaml"))
	require.NoError(t, err)
	assert.Equal(t, sim.Grid().Cells(), g.Cells())
	assert.False(t, g.IsTraversable(game.Cell{X: 0, Y: 2}))
}

func TestSimulation_BadConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("grid:\n  map_file: missing.yaml\nweb:\n  enabled: false\n"), 0644))
	cm, err := core.NewConfigManager(configPath)
	require.NoError(t, err)
	_, err = NewSimulation(cm)
	assert.Error(t, err)
}

func TestSimulation_ExampleConfig(t *testing.T) {
	cm, err := core.NewConfigManager("config.example.yaml")
	require.NoError(t, err)
	sim, err := NewSimulation(cm)
	require.NoError(t, err)
	defer sim.Close()

	grid := sim.Grid()
	assert.Equal(t, 32, grid.Width)
	assert.Equal(t, 16, grid.Height)
	assert.Equal(t, game.Impassable, grid.Cost(game.Cell{X: 0, Y: 9}))
	assert.Equal(t, 2.5, grid.Cost(game.Cell{X: 0, Y: 6}))
	assert.Len(t, sim.WatchedFiles(), 2)

	stepUntil(t, sim, func() bool { return sim.Frame().Arrivals >= 1 })
}

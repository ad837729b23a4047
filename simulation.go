package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"tilepath-go/core"
	"tilepath-go/game"
	"tilepath-go/viewer"
	"tilepath-go/web"
)

// Simulation owns the grid, the agents and the search pool, and advances
// them one tick at a time.
type Simulation struct {
	ConfigManager *core.ConfigManager
	files         *core.FileManager

	grid     *game.Grid
	gridLock sync.RWMutex

	agents   []*game.Agent
	byID     map[uuid.UUID]*game.Agent
	pool     *game.Pool
	movement *game.MovementSystem
	metrics  *game.Metrics
	random   *game.RandomTargetPicker
	hub      *web.Hub

	tick     int
	arrivals int
	failures int
	paused   bool
	lock     sync.Mutex
}

// snapshot is the JSON shape of State.
type snapshot struct {
	Tick     int                  `json:"tick"`
	Paused   bool                 `json:"paused"`
	Width    int                  `json:"width"`
	Height   int                  `json:"height"`
	Arrivals int                  `json:"arrivals"`
	Failures int                  `json:"failures"`
	Pending  int                  `json:"pending_jobs"`
	Metrics  game.MetricsSnapshot `json:"metrics"`
	Agents   []game.AgentView     `json:"agents"`
}

// NewSimulation builds a simulation from the managed config. Relative file
// paths in the config resolve against the config file's directory.
func NewSimulation(cm *core.ConfigManager) (*Simulation, error) {
	config := cm.GetConfig()
	s := &Simulation{
		ConfigManager: cm,
		files:         core.NewFileManager(filepath.Dir(cm.Path())),
		byID:          make(map[uuid.UUID]*game.Agent),
		metrics:       game.NewMetrics(),
		random:        game.NewRandomTargetPicker(config.Simulation.Seed),
	}

	grid, err := s.loadGrid(config)
	if err != nil {
		return nil, err
	}
	s.grid = grid

	options, err := config.Search.Options()
	if err != nil {
		return nil, fmt.Errorf("failed to read search options: %w", err)
	}
	pool, err := game.NewPool(s, config.Search.Workers, config.Simulation.QueueSize, s.metrics, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to start worker pool: %w", err)
	}
	s.pool = pool

	var picker game.TargetPicker = s.random
	if config.Script.TargetScript != "" {
		scripted, err := game.LoadScriptTargetPicker(s.files.GetPath(config.Script.TargetScript), s.random)
		if err != nil {
			pool.Close()
			return nil, err
		}
		picker = scripted
	}
	s.movement = game.NewMovementSystem(pool, picker, config.Simulation.RetryTicks, config.Simulation.MaxMovesPerTick)

	if err := s.spawn(config.Simulation.Agents, config.Simulation.Seed); err != nil {
		pool.Close()
		return nil, err
	}
	log.Printf("simulation: %dx%d grid, %d agents, %d workers", grid.Width, grid.Height, len(s.agents), config.Search.Workers)
	return s, nil
}

func (s *Simulation) loadGrid(config *core.Config) (*game.Grid, error) {
	if config.Grid.MapFile != "" {
		return game.LoadGrid(s.files.GetPath(config.Grid.MapFile))
	}
	grid, err := game.GenerateGrid(config.Grid.Width, config.Grid.Height, config.Grid.ObstacleDensity, config.Simulation.Seed)
	if err != nil {
		return nil, fmt.Errorf("failed to generate grid: %w", err)
	}
	return grid, nil
}

// spawn places n agents on random traversable cells.
func (s *Simulation) spawn(n int, seed int64) error {
	if n == 0 {
		return nil
	}
	if s.grid.Traversable() == 0 {
		return fmt.Errorf("grid has no traversable cell to place agents on")
	}
	rng := rand.New(rand.NewSource(seed + 1))
	for len(s.agents) < n {
		c := game.Cell{X: rng.Intn(s.grid.Width), Y: rng.Intn(s.grid.Height)}
		if !s.grid.IsTraversable(c) {
			continue
		}
		a := game.NewAgent(c)
		s.agents = append(s.agents, a)
		s.byID[a.ID] = a
	}
	return nil
}

// Grid returns the current grid snapshot. The returned grid is never mutated.
func (s *Simulation) Grid() *game.Grid {
	s.gridLock.RLock()
	defer s.gridLock.RUnlock()
	return s.grid
}

func (s *Simulation) setGrid(grid *game.Grid) {
	s.gridLock.Lock()
	defer s.gridLock.Unlock()
	s.grid = grid
}

// Metrics returns the search totals.
func (s *Simulation) Metrics() game.MetricsSnapshot {
	return s.metrics.Snapshot()
}

// SetHub attaches a status hub that receives the state after every tick.
func (s *Simulation) SetHub(hub *web.Hub) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.hub = hub
}

// Step runs one tick: finished searches are applied, then every agent is
// updated. Grid reloads only happen between ticks.
func (s *Simulation) Step() []game.AgentEvent {
	s.lock.Lock()
	grid := s.Grid()
	var events []game.AgentEvent

drain:
	for {
		select {
		case res, ok := <-s.pool.Results():
			if !ok {
				break drain
			}
			a := s.byID[res.AgentID]
			if a == nil {
				continue
			}
			if ev, applied := s.movement.Apply(grid, a, res); applied {
				events = append(events, ev)
			}
		default:
			break drain
		}
	}
	events = append(events, s.movement.Update(grid, s.agents)...)

	for _, ev := range events {
		switch ev.Kind {
		case game.EventArrived:
			s.arrivals++
		case game.EventFailed:
			s.failures++
		}
	}
	s.tick++
	hub := s.hub
	s.lock.Unlock()

	hub.BroadcastFullState()
	return events
}

// Run ticks every simulation.tick_ms until ctx is cancelled or maxTicks
// ticks have run. maxTicks 0 means no limit.
func (s *Simulation) Run(ctx context.Context, maxTicks int) {
	interval := time.Duration(s.ConfigManager.GetConfig().Simulation.TickMS) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Println("simulation: starting")
	for {
		select {
		case <-ctx.Done():
			log.Println("simulation: stopped")
			return
		case <-ticker.C:
			if s.IsPaused() {
				continue
			}
			s.Step()
			if maxTicks > 0 && s.Tick() >= maxTicks {
				log.Printf("simulation: finished %d ticks", maxTicks)
				return
			}
		}
	}
}

// Tick returns the number of ticks run so far.
func (s *Simulation) Tick() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.tick
}

// ReloadGrid swaps in the map at path. The new map must have the same size.
// Moving agents whose remaining path is now blocked ask for a new path.
func (s *Simulation) ReloadGrid(path string) error {
	grid, err := game.LoadGrid(path)
	if err != nil {
		return err
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	current := s.Grid()
	if grid.Width != current.Width || grid.Height != current.Height {
		return fmt.Errorf("reloaded map is %dx%d, want %dx%d", grid.Width, grid.Height, current.Width, current.Height)
	}
	s.setGrid(grid)
	events := s.movement.Invalidate(grid, s.agents)
	log.Printf("simulation: reloaded map %s, %d agents rerouted", path, len(events))
	return nil
}

// ReloadScript recompiles the target script at path.
func (s *Simulation) ReloadScript(path string) error {
	picker, err := game.LoadScriptTargetPicker(path, s.random)
	if err != nil {
		return err
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	s.movement.SetPicker(picker)
	log.Printf("simulation: reloaded target script %s", path)
	return nil
}

// WatchFiles reloads the map or the target script whenever w reports a
// change, until ctx is cancelled or w is closed.
func (s *Simulation) WatchFiles(ctx context.Context, w *core.Watcher) {
	config := s.ConfigManager.GetConfig()
	mapPath := absPath(s.files, config.Grid.MapFile)
	scriptPath := absPath(s.files, config.Script.TargetScript)
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			log.Printf("simulation: watcher error: %v", err)
		case name, ok := <-w.Events:
			if !ok {
				return
			}
			var err error
			switch name {
			case mapPath:
				err = s.ReloadGrid(name)
			case scriptPath:
				err = s.ReloadScript(name)
			}
			if err != nil {
				log.Printf("simulation: failed to reload %s: %v", name, err)
			}
		}
	}
}

// WatchedFiles returns the absolute paths that can be hot reloaded.
func (s *Simulation) WatchedFiles() []string {
	config := s.ConfigManager.GetConfig()
	var files []string
	for _, p := range []string{config.Grid.MapFile, config.Script.TargetScript} {
		if abs := absPath(s.files, p); abs != "" {
			files = append(files, abs)
		}
	}
	return files
}

func absPath(files *core.FileManager, path string) string {
	if path == "" {
		return ""
	}
	abs, err := filepath.Abs(files.GetPath(path))
	if err != nil {
		return files.GetPath(path)
	}
	return abs
}

func (s *Simulation) snapshot() snapshot {
	grid := s.Grid()
	snap := snapshot{
		Tick:     s.tick,
		Paused:   s.paused,
		Width:    grid.Width,
		Height:   grid.Height,
		Arrivals: s.arrivals,
		Failures: s.failures,
		Pending:  s.pool.Pending(),
		Metrics:  s.metrics.Snapshot(),
		Agents:   make([]game.AgentView, len(s.agents)),
	}
	for i, a := range s.agents {
		snap.Agents[i] = a.View()
	}
	return snap
}

// State returns the JSON-encoded simulation state.
func (s *Simulation) State() ([]byte, error) {
	s.lock.Lock()
	snap := s.snapshot()
	s.lock.Unlock()
	return json.Marshal(snap)
}

// Frame returns the state for the terminal viewer.
func (s *Simulation) Frame() viewer.Frame {
	s.lock.Lock()
	defer s.lock.Unlock()
	snap := s.snapshot()
	return viewer.Frame{
		Grid:     s.Grid(),
		Agents:   snap.Agents,
		Metrics:  snap.Metrics,
		Tick:     snap.Tick,
		Paused:   snap.Paused,
		Arrivals: snap.Arrivals,
		Failures: snap.Failures,
	}
}

// SaveSnapshot writes the current state as JSON to path.
func (s *Simulation) SaveSnapshot(path string) error {
	s.lock.Lock()
	snap := s.snapshot()
	s.lock.Unlock()
	if err := s.files.SaveJSONFile(snap, path); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// SaveMap writes the current grid as a YAML map file to path.
func (s *Simulation) SaveMap(path string) error {
	data, err := game.EncodeGrid(s.Grid(), filepath.Base(path))
	if err != nil {
		return err
	}
	return s.files.WriteFile(path, data)
}

// Pause pauses the simulation.
func (s *Simulation) Pause() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.paused = true
}

// Resume resumes the simulation.
func (s *Simulation) Resume() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.paused = false
}

// IsPaused returns true if the simulation is paused.
func (s *Simulation) IsPaused() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.paused
}

// Close stops the worker pool.
func (s *Simulation) Close() {
	s.pool.Close()
}

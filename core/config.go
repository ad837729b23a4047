package core

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"tilepath-go/game"
)

// SimulationConfig holds the tick loop settings.
type SimulationConfig struct {
	TickMS          int   `yaml:"tick_ms"`
	Agents          int   `yaml:"agents"`
	Seed            int64 `yaml:"seed"`
	RetryTicks      int   `yaml:"retry_ticks"`
	MaxMovesPerTick int   `yaml:"max_moves_per_tick"`
	QueueSize       int   `yaml:"queue_size"`
}

// GridConfig selects the map. With MapFile empty a random grid of
// Width x Height is generated.
type GridConfig struct {
	MapFile         string  `yaml:"map_file"`
	Width           int     `yaml:"width"`
	Height          int     `yaml:"height"`
	ObstacleDensity float64 `yaml:"obstacle_density"`
}

// SearchConfig holds the pathfinding tuning.
type SearchConfig struct {
	Workers                int     `yaml:"workers"`
	HeuristicWeight        float64 `yaml:"heuristic_weight"`
	DiagonalCost           float64 `yaml:"diagonal_cost"`
	DiagonalStepMultiplier float64 `yaml:"diagonal_step_multiplier"`
	Queue                  string  `yaml:"queue"`
	MaxExpansions          int     `yaml:"max_expansions"`
}

// ScriptConfig points at the optional tengo target script.
type ScriptConfig struct {
	TargetScript string `yaml:"target_script"`
}

// WebConfig holds status server settings.
type WebConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// ViewerConfig holds terminal viewer settings.
type ViewerConfig struct {
	Enabled bool `yaml:"enabled"`
	Sound   bool `yaml:"sound"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	File string `yaml:"file"`
}

// Config corresponds to the structure of the YAML config file.
type Config struct {
	Simulation SimulationConfig `yaml:"simulation"`
	Grid       GridConfig       `yaml:"grid"`
	Search     SearchConfig     `yaml:"search"`
	Script     ScriptConfig     `yaml:"script"`
	Web        WebConfig        `yaml:"web"`
	Viewer     ViewerConfig     `yaml:"viewer"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// DefaultConfig returns the settings used when no config file exists.
func DefaultConfig() *Config {
	defaults := game.DefaultSearchOptions()
	return &Config{
		Simulation: SimulationConfig{
			TickMS:          100,
			Agents:          64,
			Seed:            1,
			RetryTicks:      20,
			MaxMovesPerTick: 1,
			QueueSize:       256,
		},
		Grid: GridConfig{
			Width:           game.DefaultGridSize,
			Height:          game.DefaultGridSize,
			ObstacleDensity: 0.2,
		},
		Search: SearchConfig{
			Workers:                8,
			HeuristicWeight:        defaults.HeuristicWeight,
			DiagonalCost:           defaults.DiagonalCost,
			DiagonalStepMultiplier: defaults.DiagonalStepMultiplier,
			Queue:                  defaults.Queue.String(),
		},
		Web: WebConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8080,
		},
	}
}

// Options converts the search section into worker options.
func (s SearchConfig) Options() ([]game.Option, error) {
	kind, err := game.ParseQueueKind(s.Queue)
	if err != nil {
		return nil, err
	}
	opts := game.SearchOptions{
		HeuristicWeight:        s.HeuristicWeight,
		DiagonalCost:           s.DiagonalCost,
		DiagonalStepMultiplier: s.DiagonalStepMultiplier,
		Queue:                  kind,
		MaxExpansions:          s.MaxExpansions,
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return []game.Option{game.WithOptions(opts)}, nil
}

// Validate checks the configuration for values the simulation cannot run with.
func (c *Config) Validate() error {
	if c.Simulation.TickMS <= 0 {
		return fmt.Errorf("simulation.tick_ms must be positive, got %d", c.Simulation.TickMS)
	}
	if c.Simulation.Agents < 0 {
		return fmt.Errorf("simulation.agents must not be negative, got %d", c.Simulation.Agents)
	}
	if c.Simulation.MaxMovesPerTick < 1 {
		return fmt.Errorf("simulation.max_moves_per_tick must be at least 1, got %d", c.Simulation.MaxMovesPerTick)
	}
	if c.Simulation.RetryTicks < 0 {
		return fmt.Errorf("simulation.retry_ticks must not be negative, got %d", c.Simulation.RetryTicks)
	}
	if c.Search.Workers < 1 {
		return fmt.Errorf("search.workers must be at least 1, got %d", c.Search.Workers)
	}
	if c.Search.Workers > game.MaxWorkers {
		return fmt.Errorf("search.workers %d above %d: %w", c.Search.Workers, game.MaxWorkers, game.ErrCapacityExceeded)
	}
	if _, err := c.Search.Options(); err != nil {
		return fmt.Errorf("invalid search section: %w", err)
	}
	if c.Grid.MapFile == "" {
		if c.Grid.Width <= 0 || c.Grid.Height <= 0 {
			return fmt.Errorf("grid size %dx%d is invalid", c.Grid.Width, c.Grid.Height)
		}
		if c.Grid.Width*c.Grid.Height > game.MaxGridCells {
			return fmt.Errorf("grid %dx%d above %d cells: %w", c.Grid.Width, c.Grid.Height, game.MaxGridCells, game.ErrCapacityExceeded)
		}
		if c.Grid.ObstacleDensity < 0 || c.Grid.ObstacleDensity >= 1 {
			return fmt.Errorf("grid.obstacle_density must be in [0,1), got %v", c.Grid.ObstacleDensity)
		}
	}
	if c.Web.Enabled && (c.Web.Port < 0 || c.Web.Port > 65535) {
		return fmt.Errorf("web.port %d is out of range", c.Web.Port)
	}
	return nil
}

// ConfigManager handles loading and saving of the simulation configuration.
type ConfigManager struct {
	configPath string
	config     *Config
	lock       sync.Mutex
}

// NewConfigManager loads the config at path, writing the defaults there
// first when the file does not exist.
func NewConfigManager(path string) (*ConfigManager, error) {
	cm := &ConfigManager{
		configPath: path,
	}

	exists, err := cm.LoadConfig()
	if err != nil {
		return nil, err
	}
	if !exists {
		cm.config = DefaultConfig()
		if err := cm.SaveConfig(); err != nil {
			return nil, fmt.Errorf("failed to save config: %w", err)
		}
	}
	if err := cm.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cm, nil
}

// Validate checks the loaded configuration.
func (cm *ConfigManager) Validate() error {
	cm.lock.Lock()
	defer cm.lock.Unlock()
	return cm.config.Validate()
}

// LoadConfig loads the configuration from the YAML file. Keys missing from
// the file keep their default values.
func (cm *ConfigManager) LoadConfig() (bool, error) {
	cm.lock.Lock()
	defer cm.lock.Unlock()

	file, err := os.ReadFile(cm.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(file, config); err != nil {
		return false, fmt.Errorf("failed to decode YAML from config file: %w", err)
	}
	cm.config = config
	return true, nil
}

// saveConfig is the internal, non-locking implementation of saving the configuration.
func (cm *ConfigManager) saveConfig() error {
	data, err := yaml.Marshal(cm.config)
	if err != nil {
		return fmt.Errorf("failed to encode config to YAML: %w", err)
	}

	if err := os.WriteFile(cm.configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write to config file: %w", err)
	}
	return nil
}

// SaveConfig saves the current configuration to the YAML file.
func (cm *ConfigManager) SaveConfig() error {
	cm.lock.Lock()
	defer cm.lock.Unlock()
	return cm.saveConfig()
}

// GetConfig returns the entire configuration.
func (cm *ConfigManager) GetConfig() *Config {
	cm.lock.Lock()
	defer cm.lock.Unlock()
	return cm.config
}

// SetConfig replaces the configuration without saving it.
func (cm *ConfigManager) SetConfig(config *Config) {
	cm.lock.Lock()
	defer cm.lock.Unlock()
	cm.config = config
}

// Path returns the config file location.
func (cm *ConfigManager) Path() string {
	return cm.configPath
}

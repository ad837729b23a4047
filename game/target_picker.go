package game

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
)

// TargetPicker chooses where an idle agent should walk next.
type TargetPicker interface {
	PickTarget(grid *Grid, agent *Agent) (Cell, error)
}

// randomAttempts bounds how many cells RandomTargetPicker samples.
const randomAttempts = 64

// RandomTargetPicker picks uniformly random traversable cells.
type RandomTargetPicker struct {
	rng  *rand.Rand
	lock sync.Mutex
}

// NewRandomTargetPicker creates a picker with a fixed seed.
func NewRandomTargetPicker(seed int64) *RandomTargetPicker {
	return &RandomTargetPicker{rng: rand.New(rand.NewSource(seed))}
}

// PickTarget returns a traversable cell other than the agent's own.
func (p *RandomTargetPicker) PickTarget(grid *Grid, agent *Agent) (Cell, error) {
	p.lock.Lock()
	defer p.lock.Unlock()

	here := agent.Cell()
	for i := 0; i < randomAttempts; i++ {
		c := Cell{X: p.rng.Intn(grid.Width), Y: p.rng.Intn(grid.Height)}
		if c != here && grid.IsTraversable(c) {
			return c, nil
		}
	}
	return Cell{}, fmt.Errorf("no traversable cell after %d attempts: %w", randomAttempts, ErrNoTarget)
}

// Intn exposes the picker's generator so scripts share its seed.
func (p *RandomTargetPicker) Intn(n int) int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.rng.Intn(n)
}

// scriptTimeout bounds one script run.
const scriptTimeout = 50 * time.Millisecond

// ScriptTargetPicker runs a tengo script to choose targets. The script sees
// width, height, agent_x, agent_y and the functions walkable(x, y) and
// rand(n), and answers by assigning target_x and target_y. When the script
// errors or picks an unusable cell the fallback picker is used instead.
type ScriptTargetPicker struct {
	compiled *tengo.Compiled
	fallback *RandomTargetPicker
	grid     *Grid
	lock     sync.Mutex
}

// LoadScriptTargetPicker compiles the script at path.
func LoadScriptTargetPicker(path string, fallback *RandomTargetPicker) (*ScriptTargetPicker, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read target script: %w", err)
	}
	p, err := NewScriptTargetPicker(src, fallback)
	if err != nil {
		return nil, fmt.Errorf("failed to load target script %s: %w", path, err)
	}
	return p, nil
}

// NewScriptTargetPicker compiles src. Compile errors are returned.
func NewScriptTargetPicker(src []byte, fallback *RandomTargetPicker) (*ScriptTargetPicker, error) {
	if fallback == nil {
		fallback = NewRandomTargetPicker(time.Now().UnixNano())
	}
	p := &ScriptTargetPicker{fallback: fallback}

	script := tengo.NewScript(src)
	if err := addGlobals(script, p.globals()); err != nil {
		return nil, fmt.Errorf("failed to declare script globals: %w", err)
	}
	script.SetImports(stdlib.GetModuleMap("math"))

	compiled, err := script.Compile()
	if err != nil {
		return nil, fmt.Errorf("failed to compile target script: %w", err)
	}
	p.compiled = compiled
	return p, nil
}

// scriptGlobal is a variable or function handed to target scripts.
type scriptGlobal struct {
	name  string
	value interface{}
}

func (p *ScriptTargetPicker) globals() []scriptGlobal {
	return []scriptGlobal{
		{"width", 0},
		{"height", 0},
		{"agent_x", 0},
		{"agent_y", 0},
		{"target_x", -1},
		{"target_y", -1},
		{"walkable", &tengo.UserFunction{Name: "walkable", Value: p.walkable}},
		{"rand", &tengo.UserFunction{Name: "rand", Value: p.rand}},
	}
}

// addGlobals declares globals on script, stopping at the first failure.
func addGlobals(script *tengo.Script, globals []scriptGlobal) error {
	for _, g := range globals {
		if err := script.Add(g.name, g.value); err != nil {
			return fmt.Errorf("%s: %w", g.name, err)
		}
	}
	return nil
}

func (p *ScriptTargetPicker) walkable(args ...tengo.Object) (tengo.Object, error) {
	if len(args) != 2 {
		return nil, tengo.ErrWrongNumArguments
	}
	x, okX := tengo.ToInt(args[0])
	y, okY := tengo.ToInt(args[1])
	if !okX || !okY {
		return tengo.FalseValue, nil
	}
	if p.grid != nil && p.grid.IsTraversable(Cell{X: x, Y: y}) {
		return tengo.TrueValue, nil
	}
	return tengo.FalseValue, nil
}

func (p *ScriptTargetPicker) rand(args ...tengo.Object) (tengo.Object, error) {
	if len(args) != 1 {
		return nil, tengo.ErrWrongNumArguments
	}
	n, ok := tengo.ToInt(args[0])
	if !ok || n <= 0 {
		return &tengo.Int{Value: 0}, nil
	}
	return &tengo.Int{Value: int64(p.fallback.Intn(n))}, nil
}

// PickTarget runs the script for agent.
func (p *ScriptTargetPicker) PickTarget(grid *Grid, agent *Agent) (Cell, error) {
	c, err := p.runScript(grid, agent)
	if err != nil {
		log.Printf("script: agent %s: %v, using random target", agent.ID, err)
		return p.fallback.PickTarget(grid, agent)
	}
	return c, nil
}

func (p *ScriptTargetPicker) runScript(grid *Grid, agent *Agent) (Cell, error) {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.grid = grid
	defer func() { p.grid = nil }()

	here := agent.Cell()
	inputs := map[string]int{
		"width":    grid.Width,
		"height":   grid.Height,
		"agent_x":  here.X,
		"agent_y":  here.Y,
		"target_x": -1,
		"target_y": -1,
	}
	for name, value := range inputs {
		if err := p.compiled.Set(name, value); err != nil {
			return Cell{}, fmt.Errorf("failed to set %s: %w", name, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), scriptTimeout)
	defer cancel()
	if err := p.compiled.RunContext(ctx); err != nil {
		return Cell{}, fmt.Errorf("failed to run target script: %w", err)
	}

	target := Cell{X: p.compiled.Get("target_x").Int(), Y: p.compiled.Get("target_y").Int()}
	if !grid.IsTraversable(target) {
		return Cell{}, fmt.Errorf("script chose unusable cell %v: %w", target, ErrNoTarget)
	}
	return target, nil
}

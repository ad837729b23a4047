package game

import (
	"fmt"
	"strconv"
)

const (
	// Impassable is the tile cost sentinel for cells that can never be entered.
	Impassable = 999.0

	// DefaultGridSize is the canonical side length of a simulation grid.
	DefaultGridSize = 256

	// MaxGridCells bounds the scratch memory a single Worker may preallocate.
	MaxGridCells = 1024 * 1024

	// MaxWorkers is the hard limit on concurrent search workers.
	MaxWorkers = 32
)

// Cell is an integer grid coordinate.
type Cell struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// String formats the cell as (x,y).
func (c Cell) String() string {
	return "(" + strconv.Itoa(c.X) + "," + strconv.Itoa(c.Y) + ")"
}

// Add returns the cell offset by d.
func (c Cell) Add(d Cell) Cell {
	return Cell{X: c.X + d.X, Y: c.Y + d.Y}
}

// Direction indices. Cardinals come first, diagonals occupy 4-7.
const (
	DirN = iota
	DirS
	DirE
	DirW
	DirNE
	DirNW
	DirSE
	DirSW
	DirCount
)

// Directions holds the unit offsets for DirN..DirSW.
var Directions = [DirCount]Cell{
	{0, -1}, {0, 1}, {1, 0}, {-1, 0},
	{1, -1}, {-1, -1}, {1, 1}, {-1, 1},
}

// IsDiagonal reports whether dir is one of the four diagonal directions.
func IsDiagonal(dir int) bool {
	return dir >= DirNE && dir < DirCount
}

// Grid is a fixed-size field of tiles, each with a traversal cost.
// A Grid handed to searches must not be mutated; swap in a Clone instead.
type Grid struct {
	Width  int
	Height int
	costs  []float64
}

// NewGrid creates a width x height grid with every tile set to cost.
func NewGrid(width, height int, cost float64) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid grid size %dx%d", width, height)
	}
	if width*height > MaxGridCells {
		return nil, fmt.Errorf("grid %dx%d exceeds %d cells: %w", width, height, MaxGridCells, ErrCapacityExceeded)
	}
	if cost <= 0 {
		return nil, fmt.Errorf("tile cost must be positive, got %v", cost)
	}
	g := &Grid{
		Width:  width,
		Height: height,
		costs:  make([]float64, width*height),
	}
	for i := range g.costs {
		g.costs[i] = cost
	}
	return g, nil
}

// Cells returns the number of tiles in the grid.
func (g *Grid) Cells() int {
	return g.Width * g.Height
}

// InBounds reports whether c lies inside the grid.
func (g *Grid) InBounds(c Cell) bool {
	return c.X >= 0 && c.Y >= 0 && c.X < g.Width && c.Y < g.Height
}

// Index flattens c into the tile array. c must be in bounds.
func (g *Grid) Index(c Cell) int {
	return c.Y*g.Width + c.X
}

// CellAt is the inverse of Index.
func (g *Grid) CellAt(idx int) Cell {
	return Cell{X: idx % g.Width, Y: idx / g.Width}
}

// SetCost sets the traversal cost of c. Use Impassable to wall it off.
func (g *Grid) SetCost(c Cell, cost float64) error {
	if !g.InBounds(c) {
		return fmt.Errorf("cell %v outside %dx%d grid", c, g.Width, g.Height)
	}
	if cost <= 0 {
		return fmt.Errorf("tile cost must be positive, got %v for %v", cost, c)
	}
	g.costs[g.Index(c)] = cost
	return nil
}

// Cost returns the raw tile cost of c, or Impassable outside the grid.
func (g *Grid) Cost(c Cell) float64 {
	if !g.InBounds(c) {
		return Impassable
	}
	return g.costs[g.Index(c)]
}

// IsTraversable reports whether an agent may stand on c.
func (g *Grid) IsTraversable(c Cell) bool {
	return g.InBounds(c) && g.costs[g.Index(c)] < Impassable
}

// EntryCost returns what it costs to step onto c. Diagonal and cardinal
// entries pay the same; the tile cost alone encodes terrain.
func (g *Grid) EntryCost(c Cell) float64 {
	return g.costs[g.Index(c)]
}

// IsValidMove reports whether target may be entered moving in direction dir.
// Diagonal moves are rejected when either orthogonal corner cell they would
// cut between is impassable.
func (g *Grid) IsValidMove(dir int, target Cell) bool {
	if !g.IsTraversable(target) {
		return false
	}
	if !IsDiagonal(dir) {
		return true
	}
	d := Directions[dir]
	return g.IsTraversable(Cell{X: target.X - d.X, Y: target.Y}) &&
		g.IsTraversable(Cell{X: target.X, Y: target.Y - d.Y})
}

// DirectionTo returns the direction index of the one-tile step from -> to.
func DirectionTo(from, to Cell) (int, bool) {
	d := Cell{X: to.X - from.X, Y: to.Y - from.Y}
	for dir, v := range Directions {
		if v == d {
			return dir, true
		}
	}
	return -1, false
}

// IsValidStep reports whether an agent on from may step onto to.
func (g *Grid) IsValidStep(from, to Cell) bool {
	dir, ok := DirectionTo(from, to)
	return ok && g.IsValidMove(dir, to)
}

// IsValidPath reports whether every step of path, starting at from, is a
// valid move on g.
func (g *Grid) IsValidPath(from Cell, path []Cell) bool {
	for _, c := range path {
		if !g.IsValidStep(from, c) {
			return false
		}
		from = c
	}
	return true
}

// Clone returns an independent copy of the grid.
func (g *Grid) Clone() *Grid {
	costs := make([]float64, len(g.costs))
	copy(costs, g.costs)
	return &Grid{Width: g.Width, Height: g.Height, costs: costs}
}

// Traversable counts the cells agents can stand on.
func (g *Grid) Traversable() int {
	n := 0
	for _, c := range g.costs {
		if c < Impassable {
			n++
		}
	}
	return n
}

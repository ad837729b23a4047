package game

import (
	"context"
	"fmt"
	"math"
	"time"
)

// SearchState is the phase of a Worker's current search.
type SearchState int

const (
	// SearchIdle means no search has been started since the last reset.
	SearchIdle SearchState = iota
	// SearchSearching means the open set is still being expanded.
	SearchSearching
	// SearchFound means the goal was reached and a path is available.
	SearchFound
	// SearchNotFound means the search ended without reaching the goal.
	SearchNotFound
)

// String returns a readable name for the state.
func (s SearchState) String() string {
	switch s {
	case SearchIdle:
		return "idle"
	case SearchSearching:
		return "searching"
	case SearchFound:
		return "found"
	case SearchNotFound:
		return "not_found"
	default:
		return fmt.Sprintf("SearchState(%d)", int(s))
	}
}

// ctxCheckInterval is how many expansions run between context checks.
const ctxCheckInterval = 256

// node is one arena entry. parent is an index into the same arena, -1 for none.
type node struct {
	g, h, f float64
	parent  int32
}

// Worker owns the scratch memory for one search at a time: a node arena
// sized to the grid, open and closed bitmaps, and the open-set queue.
// Workers are not safe for concurrent use; run one per goroutine.
//
// The search never reopens closed nodes and skips neighbours already in the
// open set, so with a heuristic weight above 1 it is a greedy best-first
// variant of A* that finds good paths quickly rather than provably shortest ones.
type Worker struct {
	grid   *Grid
	opts   SearchOptions
	nodes  []node
	open   []bool
	closed []bool
	queue  OpenSet

	state   SearchState
	start   Cell
	goal    Cell
	goalIdx int32
	path    []Cell
	err     error
	stats   SearchStats
	began   time.Time
}

// NewWorker allocates scratch memory for searches over grid.
func NewWorker(grid *Grid, options ...Option) (*Worker, error) {
	if grid == nil {
		return nil, fmt.Errorf("worker needs a grid")
	}
	opts := DefaultSearchOptions()
	for _, option := range options {
		option(&opts)
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid search options: %w", err)
	}

	w := &Worker{opts: opts}
	if err := w.allocate(grid); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Worker) allocate(grid *Grid) error {
	size := grid.Cells()
	if size > MaxGridCells {
		return fmt.Errorf("grid of %d cells exceeds %d: %w", size, MaxGridCells, ErrCapacityExceeded)
	}
	queue, err := NewOpenSet(w.opts.Queue, size, w.better)
	if err != nil {
		return fmt.Errorf("failed to create open set: %w", err)
	}
	w.grid = grid
	w.nodes = make([]node, size)
	w.open = make([]bool, size)
	w.closed = make([]bool, size)
	w.queue = queue
	w.Reset()
	return nil
}

// better orders the frontier: lower f first, then lower h, then lower index.
// The index tiebreak makes the order total so every queue kind pops
// identically.
func (w *Worker) better(a, b int32) bool {
	na, nb := &w.nodes[a], &w.nodes[b]
	if na.f != nb.f {
		return na.f < nb.f
	}
	if na.h != nb.h {
		return na.h < nb.h
	}
	return a < b
}

// Grid returns the grid the worker currently searches.
func (w *Worker) Grid() *Grid {
	return w.grid
}

// Options returns the worker's search options.
func (w *Worker) Options() SearchOptions {
	return w.opts
}

// SetGrid points the worker at a new grid snapshot. Scratch memory is
// reallocated only when the cell count changes. Must not be called mid-search.
func (w *Worker) SetGrid(grid *Grid) error {
	if grid == nil {
		return fmt.Errorf("worker needs a grid")
	}
	if grid.Cells() == len(w.nodes) {
		w.grid = grid
		w.Reset()
		return nil
	}
	return w.allocate(grid)
}

// Reset clears every node, both bitmaps and the queue.
func (w *Worker) Reset() {
	inf := math.Inf(1)
	for i := range w.nodes {
		w.nodes[i] = node{g: inf, h: 0, f: inf, parent: -1}
		w.open[i] = false
		w.closed[i] = false
	}
	w.queue.Reset()
	w.state = SearchIdle
	w.path = nil
	w.err = nil
	w.stats = SearchStats{}
	w.goalIdx = -1
}

// Begin resets the worker and seeds a search from start to goal.
// A start equal to goal finishes immediately with a one-waypoint path.
func (w *Worker) Begin(start, goal Cell) error {
	w.Reset()
	w.start, w.goal = start, goal
	w.began = time.Now()

	if !w.grid.IsTraversable(start) || !w.grid.IsTraversable(goal) {
		w.state = SearchNotFound
		w.err = &SearchError{Kind: ErrInvalidStartOrGoal, Start: start, Goal: goal}
		return w.err
	}

	startIdx := int32(w.grid.Index(start))
	w.goalIdx = int32(w.grid.Index(goal))

	if start == goal {
		w.nodes[startIdx] = node{g: 0, h: 0, f: 0, parent: -1}
		w.closed[startIdx] = true
		w.reconstruct()
		w.finish(nil)
		return nil
	}

	h := w.heuristic(start)
	w.nodes[startIdx] = node{g: 0, h: h, f: w.opts.HeuristicWeight * h, parent: -1}
	if err := w.queue.Insert(startIdx); err != nil {
		return fmt.Errorf("failed to seed open set: %w", err)
	}
	w.open[startIdx] = true
	w.stats.Inserted = 1
	w.stats.PeakOpen = 1
	w.state = SearchSearching
	return nil
}

func (w *Worker) heuristic(c Cell) float64 {
	return OctileDistance(c, w.goal, CardinalCost, w.opts.DiagonalCost)
}

// Step expands the best open node and returns the resulting state.
// Calling Step outside SearchSearching is a no-op.
func (w *Worker) Step() SearchState {
	if w.state != SearchSearching {
		return w.state
	}
	if w.queue.Len() == 0 {
		return w.finish(ErrExhaustedOpenSet)
	}

	current, err := w.queue.PopBest()
	if err != nil {
		return w.finish(ErrExhaustedOpenSet)
	}
	w.open[current] = false
	w.closed[current] = true
	w.stats.Expanded++

	if current == w.goalIdx {
		w.reconstruct()
		return w.finish(nil)
	}
	if limit := w.maxExpansions(); w.stats.Expanded >= limit {
		return w.finish(ErrSearchLimit)
	}

	cur := w.grid.CellAt(int(current))
	g := w.nodes[current].g
	for dir := 0; dir < DirCount; dir++ {
		next := cur.Add(Directions[dir])
		if !w.grid.InBounds(next) {
			continue
		}
		idx := int32(w.grid.Index(next))
		if w.open[idx] || w.closed[idx] {
			continue
		}
		if !w.grid.IsValidMove(dir, next) {
			continue
		}

		step := w.grid.EntryCost(next)
		if IsDiagonal(dir) {
			step *= w.opts.DiagonalStepMultiplier
		}
		tentative := g + step
		n := &w.nodes[idx]
		if tentative >= n.g {
			continue
		}
		n.g = tentative
		n.h = w.heuristic(next)
		n.f = tentative + w.opts.HeuristicWeight*n.h
		n.parent = current
		if err := w.queue.Insert(idx); err != nil {
			return w.finish(fmt.Errorf("failed to queue %v: %w", next, err))
		}
		w.open[idx] = true
		w.stats.Inserted++
	}
	if l := w.queue.Len(); l > w.stats.PeakOpen {
		w.stats.PeakOpen = l
	}
	return w.state
}

func (w *Worker) maxExpansions() int {
	if w.opts.MaxExpansions > 0 {
		return w.opts.MaxExpansions
	}
	return len(w.nodes)
}

func (w *Worker) finish(kind error) SearchState {
	w.stats.Duration = time.Since(w.began)
	if kind == nil {
		w.state = SearchFound
		w.err = nil
		return w.state
	}
	w.state = SearchNotFound
	w.err = &SearchError{Kind: kind, Start: w.start, Goal: w.goal, Stats: w.stats}
	return w.state
}

// reconstruct walks back-pointers from the goal and reverses them into a
// start-to-goal waypoint list.
func (w *Worker) reconstruct() {
	path := make([]Cell, 0, 32)
	for idx := w.goalIdx; idx != -1; idx = w.nodes[idx].parent {
		path = append(path, w.grid.CellAt(int(idx)))
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	w.path = path
	w.stats.PathLength = len(path)
	w.stats.Cost = w.nodes[w.goalIdx].g
}

// Run steps the current search to a terminal state, checking ctx
// periodically. It returns the path on success.
func (w *Worker) Run(ctx context.Context) ([]Cell, error) {
	for steps := 0; w.state == SearchSearching; steps++ {
		if steps%ctxCheckInterval == 0 && ctx.Err() != nil {
			w.finish(ctx.Err())
			break
		}
		w.Step()
	}
	if w.state == SearchFound {
		return w.Path(), nil
	}
	return nil, w.err
}

// FindPath runs a complete search from start to goal.
func (w *Worker) FindPath(ctx context.Context, start, goal Cell) ([]Cell, SearchStats, error) {
	if err := w.Begin(start, goal); err != nil {
		return nil, w.stats, err
	}
	path, err := w.Run(ctx)
	return path, w.stats, err
}

// State returns the phase of the current search.
func (w *Worker) State() SearchState {
	return w.state
}

// Err returns why the last search failed, or nil.
func (w *Worker) Err() error {
	return w.err
}

// Stats returns the statistics of the current search.
func (w *Worker) Stats() SearchStats {
	return w.stats
}

// Path returns a copy of the found path, or nil.
func (w *Worker) Path() []Cell {
	if w.path == nil {
		return nil
	}
	out := make([]Cell, len(w.path))
	copy(out, w.path)
	return out
}

// G returns the best known cost from the start to c, +Inf if undiscovered.
func (w *Worker) G(c Cell) float64 {
	if !w.grid.InBounds(c) {
		return math.Inf(1)
	}
	return w.nodes[w.grid.Index(c)].g
}

// IsOpen reports whether c is queued in the open set.
func (w *Worker) IsOpen(c Cell) bool {
	return w.grid.InBounds(c) && w.open[w.grid.Index(c)]
}

// IsClosed reports whether c has been expanded.
func (w *Worker) IsClosed(c Cell) bool {
	return w.grid.InBounds(c) && w.closed[w.grid.Index(c)]
}

// OpenLen returns the current open-set size.
func (w *Worker) OpenLen() int {
	return w.queue.Len()
}

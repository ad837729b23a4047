package game

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wallGrid is a 5x5 grid with row 2 walled off except for a gap at (2,2).
func wallGrid(t testing.TB) *Grid {
	t.Helper()
	g, err := NewGrid(5, 5, 1)
	require.NoError(t, err)
	for x := 0; x < 5; x++ {
		if x != 2 {
			require.NoError(t, g.SetCost(Cell{x, 2}, Impassable))
		}
	}
	return g
}

func assertContiguous(t *testing.T, g *Grid, path []Cell) {
	t.Helper()
	for i, c := range path {
		assert.True(t, g.IsTraversable(c), "waypoint %v is not traversable", c)
		if i == 0 {
			continue
		}
		dx, dy := c.X-path[i-1].X, c.Y-path[i-1].Y
		assert.LessOrEqual(t, dx*dx, 1, "step %v -> %v", path[i-1], c)
		assert.LessOrEqual(t, dy*dy, 1, "step %v -> %v", path[i-1], c)
		assert.False(t, dx == 0 && dy == 0, "repeated waypoint %v", c)
		assert.True(t, g.IsValidStep(path[i-1], c), "step %v -> %v cuts a corner", path[i-1], c)
	}
}

func TestWorker_RoutesThroughGap(t *testing.T) {
	g := wallGrid(t)
	w, err := NewWorker(g)
	require.NoError(t, err)

	path, stats, err := w.FindPath(context.Background(), Cell{0, 0}, Cell{4, 4})
	require.NoError(t, err)
	assert.Equal(t, SearchFound, w.State())
	assert.Equal(t, []Cell{{0, 0}, {1, 1}, {2, 1}, {2, 2}, {2, 3}, {3, 4}, {4, 4}}, path)
	assert.Contains(t, path, Cell{2, 2})
	assert.Equal(t, 7, stats.PathLength)
	assert.Equal(t, 6.0, stats.Cost)
	assert.Equal(t, 9, stats.Expanded)
	assertContiguous(t, g, path)
}

func TestWorker_PathsAreContiguous(t *testing.T) {
	g, err := GenerateGrid(40, 30, 0.25, 11)
	require.NoError(t, err)
	w, err := NewWorker(g)
	require.NoError(t, err)

	found := 0
	for i := 0; i < 20; i++ {
		start := Cell{i % 40, (i * 7) % 30}
		goal := Cell{39 - i, 29 - (i*3)%30}
		if !g.IsTraversable(start) || !g.IsTraversable(goal) {
			continue
		}
		path, _, err := w.FindPath(context.Background(), start, goal)
		if err != nil {
			assert.ErrorIs(t, err, ErrExhaustedOpenSet)
			continue
		}
		found++
		assert.Equal(t, start, path[0])
		assert.Equal(t, goal, path[len(path)-1])
		assertContiguous(t, g, path)
	}
	assert.Greater(t, found, 0)
}

func TestWorker_ImpassableStart(t *testing.T) {
	g := wallGrid(t)
	w, err := NewWorker(g)
	require.NoError(t, err)

	_, _, err = w.FindPath(context.Background(), Cell{0, 2}, Cell{4, 4})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidStartOrGoal)
	assert.NotErrorIs(t, err, ErrExhaustedOpenSet)
	assert.Equal(t, SearchNotFound, w.State())

	var searchErr *SearchError
	require.ErrorAs(t, err, &searchErr)
	assert.Equal(t, Cell{0, 2}, searchErr.Start)

	_, _, err = w.FindPath(context.Background(), Cell{0, 0}, Cell{9, 9})
	assert.ErrorIs(t, err, ErrInvalidStartOrGoal)
}

func TestWorker_StartIsGoal(t *testing.T) {
	w, err := NewWorker(wallGrid(t))
	require.NoError(t, err)

	require.NoError(t, w.Begin(Cell{3, 3}, Cell{3, 3}))
	assert.Equal(t, SearchFound, w.State())
	assert.Equal(t, []Cell{{3, 3}}, w.Path())
	assert.Equal(t, SearchFound, w.Step())
}

func TestWorker_ExhaustedOpenSet(t *testing.T) {
	g := wallGrid(t)
	require.NoError(t, g.SetCost(Cell{2, 2}, Impassable))
	w, err := NewWorker(g)
	require.NoError(t, err)

	path, stats, err := w.FindPath(context.Background(), Cell{0, 0}, Cell{4, 4})
	assert.Nil(t, path)
	assert.ErrorIs(t, err, ErrExhaustedOpenSet)
	assert.Equal(t, 10, stats.Expanded)
	assert.Nil(t, w.Path())
}

func TestWorker_ExpansionLimit(t *testing.T) {
	w, err := NewWorker(wallGrid(t), WithMaxExpansions(3))
	require.NoError(t, err)

	_, stats, err := w.FindPath(context.Background(), Cell{0, 0}, Cell{4, 4})
	assert.ErrorIs(t, err, ErrSearchLimit)
	assert.Equal(t, 3, stats.Expanded)
}

func TestWorker_Cancelled(t *testing.T) {
	w, err := NewWorker(wallGrid(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = w.FindPath(ctx, Cell{0, 0}, Cell{4, 4})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWorker_CapacityExceeded(t *testing.T) {
	_, err := NewWorker(&Grid{Width: 2048, Height: 1024})
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	_, err = NewWorker(wallGrid(t), WithDiagonalStepMultiplier(0))
	assert.Error(t, err)
}

func TestWorker_MonotonicRelaxation(t *testing.T) {
	g, err := GenerateGrid(24, 24, 0.2, 5)
	require.NoError(t, err)
	require.NoError(t, g.SetCost(Cell{0, 0}, 1))
	require.NoError(t, g.SetCost(Cell{23, 23}, 1))
	w, err := NewWorker(g)
	require.NoError(t, err)
	require.NoError(t, w.Begin(Cell{0, 0}, Cell{23, 23}))

	prev := make([]float64, g.Cells())
	for i := range prev {
		prev[i] = math.Inf(1)
	}
	for w.State() == SearchSearching {
		w.Step()
		for i := range prev {
			c := g.CellAt(i)
			cur := w.G(c)
			require.LessOrEqual(t, cur, prev[i], "g of %v increased", c)
			prev[i] = cur
		}
	}
}

func TestWorker_ClosedNodesStayClosed(t *testing.T) {
	g, err := GenerateGrid(24, 24, 0.2, 9)
	require.NoError(t, err)
	require.NoError(t, g.SetCost(Cell{0, 23}, 1))
	require.NoError(t, g.SetCost(Cell{23, 0}, 1))
	w, err := NewWorker(g)
	require.NoError(t, err)
	require.NoError(t, w.Begin(Cell{0, 23}, Cell{23, 0}))

	closed := map[Cell]bool{}
	for w.State() == SearchSearching {
		w.Step()
		for i := 0; i < g.Cells(); i++ {
			c := g.CellAt(i)
			if closed[c] {
				require.True(t, w.IsClosed(c), "%v left the closed set", c)
				require.False(t, w.IsOpen(c), "%v reopened", c)
			}
			if w.IsClosed(c) {
				closed[c] = true
			}
		}
	}
	assert.Equal(t, w.Stats().Expanded, len(closed))
}

func TestWorker_Deterministic(t *testing.T) {
	g, err := GenerateGrid(64, 64, 0.3, 3)
	require.NoError(t, err)
	start, goal := Cell{1, 1}, Cell{62, 60}
	require.NoError(t, g.SetCost(start, 1))
	require.NoError(t, g.SetCost(goal, 1))

	w, err := NewWorker(g)
	require.NoError(t, err)
	first, firstStats, firstErr := w.FindPath(context.Background(), start, goal)
	for i := 0; i < 5; i++ {
		path, stats, err := w.FindPath(context.Background(), start, goal)
		assert.Equal(t, firstErr == nil, err == nil)
		assert.Equal(t, first, path)
		assert.Equal(t, firstStats.Expanded, stats.Expanded)
	}

	heapWorker, err := NewWorker(g, WithQueue(QueueHeap))
	require.NoError(t, err)
	path, stats, err := heapWorker.FindPath(context.Background(), start, goal)
	assert.Equal(t, firstErr == nil, err == nil)
	assert.Equal(t, first, path)
	assert.Equal(t, firstStats.Expanded, stats.Expanded)
}

func TestWorker_SetGrid(t *testing.T) {
	w, err := NewWorker(wallGrid(t))
	require.NoError(t, err)

	open, err := NewGrid(5, 5, 1)
	require.NoError(t, err)
	require.NoError(t, w.SetGrid(open))
	path, _, err := w.FindPath(context.Background(), Cell{0, 0}, Cell{4, 4})
	require.NoError(t, err)
	assert.Len(t, path, 5)

	bigger, err := NewGrid(8, 8, 1)
	require.NoError(t, err)
	require.NoError(t, w.SetGrid(bigger))
	path, _, err = w.FindPath(context.Background(), Cell{0, 0}, Cell{7, 7})
	require.NoError(t, err)
	assert.Len(t, path, 8)
}

func TestMetrics_RecordFromWorker(t *testing.T) {
	m := NewMetrics()
	w, err := NewWorker(wallGrid(t))
	require.NoError(t, err)

	_, stats, err := w.FindPath(context.Background(), Cell{0, 0}, Cell{4, 4})
	m.Record(stats, err)
	_, stats, err = w.FindPath(context.Background(), Cell{0, 2}, Cell{4, 4})
	m.Record(stats, err)

	snap := m.Snapshot()
	assert.Equal(t, 2, snap.Searches)
	assert.Equal(t, 1, snap.Found)
	assert.Equal(t, 1, snap.Invalid)
	assert.Equal(t, 9, snap.TotalExpanded)
	assert.GreaterOrEqual(t, snap.MaxOpenSet, 1)

	var nilMetrics *Metrics
	nilMetrics.Record(stats, err)
	assert.Equal(t, MetricsSnapshot{}, nilMetrics.Snapshot())
}

func BenchmarkWorker_FindPath(b *testing.B) {
	g, err := GenerateGrid(DefaultGridSize, DefaultGridSize, 0.2, 1)
	require.NoError(b, err)
	start, goal := Cell{0, 0}, Cell{DefaultGridSize - 1, DefaultGridSize - 1}
	require.NoError(b, g.SetCost(start, 1))
	require.NoError(b, g.SetCost(goal, 1))
	w, err := NewWorker(g)
	require.NoError(b, err)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _ = w.FindPath(context.Background(), start, goal)
	}
}

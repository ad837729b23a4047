package game

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wallMap = `name: wall
legend:
  "~": 3.5
  "x": wall
rows:
  - "....."
  - "...~."
  - "##.x#"
  - "..9.."
  - "....."
`

func TestParseGrid(t *testing.T) {
	g, err := ParseGrid([]byte(wallMap))
	require.NoError(t, err)
	assert.Equal(t, 5, g.Width)
	assert.Equal(t, 5, g.Height)
	assert.Equal(t, 3.5, g.Cost(Cell{3, 1}))
	assert.Equal(t, 9.0, g.Cost(Cell{2, 3}))
	assert.False(t, g.IsTraversable(Cell{0, 2}))
	assert.False(t, g.IsTraversable(Cell{3, 2}))
	assert.True(t, g.IsTraversable(Cell{2, 2}))
}

func TestParseGrid_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"no rows", "name: empty\n"},
		{"ragged", "rows:\n  - \"...\"\n  - \"..\"\n"},
		{"unknown tile", "rows:\n  - \".?.\"\n"},
		{"bad legend cost", "legend:\n  \"~\": soft\nrows:\n  - \"~\"\n"},
		{"negative legend cost", "legend:\n  \"~\": -2\nrows:\n  - \"~\"\n"},
		{"long legend key", "legend:\n  \"ab\": 2\nrows:\n  - \".\"\n"},
		{"not yaml", "rows: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseGrid([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestLoadGrid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wall.yaml")
	require.NoError(t, os.WriteFile(path, []byte(wallMap), 0644))

	g, err := LoadGrid(path)
	require.NoError(t, err)
	assert.Equal(t, 25, g.Cells())

	_, err = LoadGrid(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestEncodeGrid(t *testing.T) {
	g, err := ParseGrid([]byte(wallMap))
	require.NoError(t, err)

	data, err := EncodeGrid(g, "copy")
	require.NoError(t, err)
	assert.Contains(t, string(data), "name: copy")

	back, err := ParseGrid(data)
	require.NoError(t, err)
	assert.Equal(t, g.costs, back.costs)
}

func TestGenerateGrid(t *testing.T) {
	g, err := GenerateGrid(20, 10, 0.5, 42)
	require.NoError(t, err)
	for x := 0; x < 20; x++ {
		assert.True(t, g.IsTraversable(Cell{x, 0}))
		assert.True(t, g.IsTraversable(Cell{x, 9}))
	}
	for y := 0; y < 10; y++ {
		assert.True(t, g.IsTraversable(Cell{0, y}))
		assert.True(t, g.IsTraversable(Cell{19, y}))
	}
	assert.Less(t, g.Traversable(), g.Cells())

	again, err := GenerateGrid(20, 10, 0.5, 42)
	require.NoError(t, err)
	assert.Equal(t, g.costs, again.costs)

	_, err = GenerateGrid(20, 10, 1, 42)
	assert.Error(t, err)
}

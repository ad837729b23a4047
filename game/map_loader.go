package game

import (
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// wallToken marks an impassable legend entry.
const wallToken = "wall"

// MapFile is the on-disk YAML layout of a grid.
//
//	name: arena
//	legend:
//	  "~": 3
//	rows:
//	  - "..#.."
//	  - ".~#.."
//
// '#' (wall), '.' (cost 1) and the digits 1-9 are predefined and may be
// overridden in the legend.
type MapFile struct {
	Name   string            `yaml:"name,omitempty"`
	Legend map[string]string `yaml:"legend,omitempty"`
	Rows   []string          `yaml:"rows"`
}

func defaultLegend() map[rune]float64 {
	legend := map[rune]float64{
		'#': Impassable,
		'.': 1,
	}
	for d := '1'; d <= '9'; d++ {
		legend[d] = float64(d - '0')
	}
	return legend
}

// LoadGrid reads and parses a YAML map file.
func LoadGrid(path string) (*Grid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read map file: %w", err)
	}
	g, err := ParseGrid(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load map %s: %w", path, err)
	}
	return g, nil
}

// ParseGrid decodes a YAML map into a Grid.
func ParseGrid(data []byte) (*Grid, error) {
	var mf MapFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("failed to decode YAML from map: %w", err)
	}
	return mf.Grid()
}

// Grid builds a Grid from the map's rows and legend.
func (mf *MapFile) Grid() (*Grid, error) {
	if len(mf.Rows) == 0 {
		return nil, fmt.Errorf("map has no rows")
	}
	legend := defaultLegend()
	for key, value := range mf.Legend {
		r, size := utf8.DecodeRuneInString(key)
		if size == 0 || size != len(key) {
			return nil, fmt.Errorf("legend key %q must be a single character", key)
		}
		if strings.EqualFold(strings.TrimSpace(value), wallToken) {
			legend[r] = Impassable
			continue
		}
		cost, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil || cost <= 0 {
			return nil, fmt.Errorf("legend %q: cost must be a positive number or %q, got %q", key, wallToken, value)
		}
		legend[r] = cost
	}

	width := utf8.RuneCountInString(mf.Rows[0])
	g, err := NewGrid(width, len(mf.Rows), 1)
	if err != nil {
		return nil, err
	}
	for y, row := range mf.Rows {
		if n := utf8.RuneCountInString(row); n != width {
			return nil, fmt.Errorf("row %d has %d cells, want %d", y, n, width)
		}
		x := 0
		for _, r := range row {
			cost, ok := legend[r]
			if !ok {
				return nil, fmt.Errorf("unknown tile %q at (%d,%d)", r, x, y)
			}
			g.costs[g.Index(Cell{x, y})] = cost
			x++
		}
	}
	return g, nil
}

// EncodeGrid renders g as a YAML map file. Costs without a predefined
// character get letters from 'a' onward in the legend.
func EncodeGrid(g *Grid, name string) ([]byte, error) {
	symbols := map[float64]rune{Impassable: '#', 1: '.'}
	for d := '2'; d <= '9'; d++ {
		symbols[float64(d-'0')] = d
	}

	extra := []float64{}
	for _, c := range g.costs {
		if _, ok := symbols[c]; !ok {
			symbols[c] = 0
			extra = append(extra, c)
		}
	}
	sort.Float64s(extra)
	if len(extra) > 26 {
		return nil, fmt.Errorf("grid uses %d custom costs, at most 26 can be encoded", len(extra))
	}

	mf := MapFile{Name: name}
	if len(extra) > 0 {
		mf.Legend = make(map[string]string, len(extra))
	}
	for i, cost := range extra {
		r := rune('a' + i)
		symbols[cost] = r
		mf.Legend[string(r)] = strconv.FormatFloat(cost, 'g', -1, 64)
	}

	var sb strings.Builder
	for y := 0; y < g.Height; y++ {
		sb.Reset()
		for x := 0; x < g.Width; x++ {
			sb.WriteRune(symbols[g.costs[g.Index(Cell{x, y})]])
		}
		mf.Rows = append(mf.Rows, sb.String())
	}

	out, err := yaml.Marshal(&mf)
	if err != nil {
		return nil, fmt.Errorf("failed to encode map: %w", err)
	}
	return out, nil
}

// GenerateGrid builds a random obstacle field. Each interior cell is walled
// with probability density; the outer ring stays open so agents can always
// walk the border.
func GenerateGrid(width, height int, density float64, seed int64) (*Grid, error) {
	if density < 0 || density >= 1 {
		return nil, fmt.Errorf("obstacle density must be in [0,1), got %v", density)
	}
	g, err := NewGrid(width, height, 1)
	if err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(seed))
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			if rng.Float64() < density {
				g.costs[g.Index(Cell{x, y})] = Impassable
			}
		}
	}
	return g, nil
}

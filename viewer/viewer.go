package viewer

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"

	"tilepath-go/game"
)

// Frame is one snapshot of the simulation to draw.
type Frame struct {
	Grid     *game.Grid
	Agents   []game.AgentView
	Metrics  game.MetricsSnapshot
	Tick     int
	Paused   bool
	Arrivals int
	Failures int
}

// Source supplies frames and accepts pause control.
type Source interface {
	Frame() Frame
	Pause()
	Resume()
	IsPaused() bool
}

var (
	wallStyle   = tcell.StyleDefault.Foreground(tcell.ColorGray)
	floorStyle  = tcell.StyleDefault.Foreground(tcell.ColorDarkGray)
	roughStyle  = tcell.StyleDefault.Foreground(tcell.ColorOlive)
	pathStyle   = tcell.StyleDefault.Foreground(tcell.ColorAqua)
	targetStyle = tcell.StyleDefault.Foreground(tcell.ColorFuchsia)
	statusStyle = tcell.StyleDefault.Foreground(tcell.ColorWhite).Reverse(true)
	agentStyles = map[game.AgentState]tcell.Style{
		game.AgentIdle:        tcell.StyleDefault.Foreground(tcell.ColorWhite),
		game.AgentPathFinding: tcell.StyleDefault.Foreground(tcell.ColorYellow),
		game.AgentMoving:      tcell.StyleDefault.Foreground(tcell.ColorGreen),
		game.AgentFailed:      tcell.StyleDefault.Foreground(tcell.ColorRed),
	}
)

// Viewer draws frames on a terminal screen.
type Viewer struct {
	screen   tcell.Screen
	source   Source
	sound    *Sound
	selected int
	last     Frame
}

// New creates a Viewer. sound may be nil.
func New(screen tcell.Screen, source Source, sound *Sound) *Viewer {
	return &Viewer{screen: screen, source: source, sound: sound}
}

// Run redraws every refresh interval and handles keys until the user quits
// or ctx is cancelled. The caller owns screen initialisation and Fini.
func (v *Viewer) Run(ctx context.Context, refresh time.Duration) error {
	events := make(chan tcell.Event, 16)
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			ev := v.screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-done:
				return
			}
		}
	}()

	ticker := time.NewTicker(refresh)
	defer ticker.Stop()
	v.Render()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			if v.HandleEvent(ev) {
				return nil
			}
			v.Render()
		case <-ticker.C:
			v.Render()
		}
	}
}

// HandleEvent applies one input event and reports whether the viewer should quit.
func (v *Viewer) HandleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return true
		case tcell.KeyTab:
			v.selectNext()
		case tcell.KeyRune:
			switch ev.Rune() {
			case 'q':
				return true
			case ' ':
				if v.source.IsPaused() {
					v.source.Resume()
				} else {
					v.source.Pause()
				}
			}
		}
	case *tcell.EventResize:
		v.screen.Sync()
	}
	return false
}

func (v *Viewer) selectNext() {
	if n := len(v.last.Agents); n > 0 {
		v.selected = (v.selected + 1) % n
	}
}

// Selected returns the index of the highlighted agent.
func (v *Viewer) Selected() int {
	return v.selected
}

// Render pulls a frame from the source, plays cues and draws it.
func (v *Viewer) Render() {
	frame := v.source.Frame()
	if frame.Arrivals > v.last.Arrivals {
		v.sound.Arrival()
	}
	if frame.Failures > v.last.Failures {
		v.sound.Failure()
	}
	v.last = frame
	if v.selected >= len(frame.Agents) {
		v.selected = 0
	}
	v.Draw(frame)
	v.screen.Show()
}

// Draw paints frame into the screen buffer without showing it.
func (v *Viewer) Draw(frame Frame) {
	v.screen.Clear()
	width, height := v.screen.Size()
	mapHeight := height - 1
	if frame.Grid == nil || width <= 0 || mapHeight <= 0 {
		v.drawStatus(frame, width, height)
		return
	}

	var focus *game.AgentView
	if v.selected < len(frame.Agents) {
		focus = &frame.Agents[v.selected]
	}
	originX, originY := v.origin(frame.Grid, focus, width, mapHeight)

	for sy := 0; sy < mapHeight; sy++ {
		for sx := 0; sx < width; sx++ {
			c := game.Cell{X: originX + sx, Y: originY + sy}
			if !frame.Grid.InBounds(c) {
				continue
			}
			r, style := tile(frame.Grid.Cost(c))
			v.screen.SetContent(sx, sy, r, nil, style)
		}
	}

	put := func(c game.Cell, r rune, style tcell.Style) {
		sx, sy := c.X-originX, c.Y-originY
		if sx >= 0 && sy >= 0 && sx < width && sy < mapHeight {
			v.screen.SetContent(sx, sy, r, nil, style)
		}
	}
	if focus != nil {
		for _, c := range focus.Remaining {
			put(c, '*', pathStyle)
		}
		if focus.State != game.AgentIdle {
			put(focus.Target, 'X', targetStyle)
		}
	}
	for i, a := range frame.Agents {
		style := agentStyles[a.State]
		if i == v.selected {
			style = style.Reverse(true)
		}
		put(game.Cell{X: int(a.X), Y: int(a.Y)}, '@', style)
	}
	v.drawStatus(frame, width, height)
}

// origin centres the view on the focused agent, clamped to the grid.
func (v *Viewer) origin(g *game.Grid, focus *game.AgentView, width, height int) (int, int) {
	if focus == nil {
		return 0, 0
	}
	clamp := func(center, view, size int) int {
		o := center - view/2
		if o > size-view {
			o = size - view
		}
		if o < 0 {
			o = 0
		}
		return o
	}
	return clamp(int(focus.X), width, g.Width), clamp(int(focus.Y), height, g.Height)
}

func tile(cost float64) (rune, tcell.Style) {
	switch {
	case cost >= game.Impassable:
		return '#', wallStyle
	case cost <= 1:
		return '.', floorStyle
	case cost < 10:
		return rune('0' + int(cost)), roughStyle
	default:
		return '+', roughStyle
	}
}

func (v *Viewer) drawStatus(frame Frame, width, height int) {
	if height <= 0 {
		return
	}
	status := fmt.Sprintf(" tick %d  agents %d  searches %d  found %d  not found %d  invalid %d  arrivals %d",
		frame.Tick, len(frame.Agents), frame.Metrics.Searches, frame.Metrics.Found,
		frame.Metrics.NotFound, frame.Metrics.Invalid, frame.Arrivals)
	if v.selected < len(frame.Agents) {
		a := frame.Agents[v.selected]
		id := a.ID
		if len(id) > 8 {
			id = id[:8]
		}
		status += fmt.Sprintf("  [%s %s]", id, a.State)
	}
	if frame.Paused {
		status += "  PAUSED"
	}
	y := height - 1
	x := 0
	for _, r := range status {
		if x >= width {
			break
		}
		v.screen.SetContent(x, y, r, nil, statusStyle)
		x++
	}
	for ; x < width; x++ {
		v.screen.SetContent(x, y, ' ', nil, statusStyle)
	}
}

package game

import (
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
)

// PathRequester accepts path jobs without blocking.
type PathRequester interface {
	TrySubmit(job PathJob) error
}

// EventKind classifies an AgentEvent.
type EventKind int

const (
	// EventRequested means a path search was queued for the agent.
	EventRequested EventKind = iota
	// EventPathFound means a path was applied and the agent started moving.
	EventPathFound
	// EventArrived means the agent reached its target.
	EventArrived
	// EventFailed means the agent's search failed.
	EventFailed
	// EventRerouted means the agent's path was invalidated and re-requested.
	EventRerouted
)

var eventKindNames = [...]string{"requested", "path_found", "arrived", "failed", "rerouted"}

// String returns the event name.
func (k EventKind) String() string {
	if k < 0 || int(k) >= len(eventKindNames) {
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
	return eventKindNames[k]
}

// MarshalText encodes the kind by name.
func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// AgentEvent reports a state change of one agent.
type AgentEvent struct {
	Agent uuid.UUID `json:"agent"`
	Kind  EventKind `json:"kind"`
	Cell  Cell      `json:"cell"`
	Err   error     `json:"-"`
}

// MovementSystem drives agents through Idle, PathFinding, Moving and Failed.
type MovementSystem struct {
	requester    PathRequester
	picker       TargetPicker
	retryTicks   int
	movesPerTick int
}

// NewMovementSystem creates a MovementSystem. Agents whose search fails wait
// retryTicks updates before picking a new target; moving agents take up to
// movesPerTick steps per update.
func NewMovementSystem(requester PathRequester, picker TargetPicker, retryTicks, movesPerTick int) *MovementSystem {
	if movesPerTick < 1 {
		movesPerTick = 1
	}
	if retryTicks < 0 {
		retryTicks = 0
	}
	return &MovementSystem{
		requester:    requester,
		picker:       picker,
		retryTicks:   retryTicks,
		movesPerTick: movesPerTick,
	}
}

// SetPicker swaps the target picker.
func (m *MovementSystem) SetPicker(picker TargetPicker) {
	m.picker = picker
}

// Update advances every agent by one tick on grid.
func (m *MovementSystem) Update(grid *Grid, agents []*Agent) []AgentEvent {
	var events []AgentEvent
	for _, a := range agents {
		switch a.State {
		case AgentIdle:
			if ev, ok := m.dispatch(grid, a); ok {
				events = append(events, ev)
			}
		case AgentMoving:
			events = append(events, m.move(grid, a)...)
		case AgentFailed:
			a.Cooldown()
		}
	}
	return events
}

func (m *MovementSystem) dispatch(grid *Grid, a *Agent) (AgentEvent, bool) {
	target, err := m.picker.PickTarget(grid, a)
	if err != nil {
		if !errors.Is(err, ErrNoTarget) {
			log.Printf("movement: agent %s: %v", a.ID, err)
		}
		return AgentEvent{}, false
	}
	job, err := a.RequestPath(target)
	if err != nil {
		return AgentEvent{}, false
	}
	if !m.submit(a, job) {
		return AgentEvent{}, false
	}
	return AgentEvent{Agent: a.ID, Kind: EventRequested, Cell: target}, true
}

// submit hands job to the requester. A full queue sends the agent back to
// Idle so it asks again next tick.
func (m *MovementSystem) submit(a *Agent, job PathJob) bool {
	if err := m.requester.TrySubmit(job); err != nil {
		if !errors.Is(err, ErrQueueFull) {
			log.Printf("movement: agent %s: failed to submit path job: %v", a.ID, err)
		}
		_ = a.CancelRequest()
		return false
	}
	return true
}

func (m *MovementSystem) move(grid *Grid, a *Agent) []AgentEvent {
	var events []AgentEvent
	for i := 0; i < m.movesPerTick; i++ {
		if next, ok := a.NextWaypoint(); ok && !grid.IsValidStep(a.Cell(), next) {
			if ev, ok := m.reroute(a); ok {
				events = append(events, ev)
			}
			return events
		}
		arrived, err := a.Advance()
		if err != nil {
			return events
		}
		if arrived {
			return append(events, AgentEvent{Agent: a.ID, Kind: EventArrived, Cell: a.Cell()})
		}
	}
	return events
}

func (m *MovementSystem) reroute(a *Agent) (AgentEvent, bool) {
	job, err := a.Reroute()
	if err != nil {
		return AgentEvent{}, false
	}
	if !m.submit(a, job) {
		return AgentEvent{}, false
	}
	return AgentEvent{Agent: a.ID, Kind: EventRerouted, Cell: a.Target}, true
}

// Apply hands a finished search to its agent. Stale results and results for
// agents no longer waiting are dropped and reported as not applied.
func (m *MovementSystem) Apply(grid *Grid, a *Agent, res PathResult) (AgentEvent, bool) {
	if !a.Accepts(res.PathJob) {
		return AgentEvent{}, false
	}
	if res.Err != nil {
		_ = a.Fail(res.Err, m.retryTicks)
		return AgentEvent{Agent: a.ID, Kind: EventFailed, Cell: res.Goal, Err: res.Err}, true
	}
	if len(res.Path) > 0 && !pathValid(grid, res.Path) {
		// The grid changed while the search ran; ask again on the new one.
		_ = a.CancelRequest()
		job, err := a.RequestPath(res.Goal)
		if err != nil || !m.submit(a, job) {
			return AgentEvent{}, false
		}
		return AgentEvent{Agent: a.ID, Kind: EventRerouted, Cell: res.Goal}, true
	}
	if err := a.ApplyPath(res.Path); err != nil {
		return AgentEvent{}, false
	}
	return AgentEvent{Agent: a.ID, Kind: EventPathFound, Cell: res.Goal}, true
}

func pathValid(grid *Grid, path []Cell) bool {
	return grid.IsTraversable(path[0]) && grid.IsValidPath(path[0], path[1:])
}

// Invalidate reroutes every moving agent whose remaining path, walked from
// its current cell, is no longer valid on grid: a waypoint became
// impassable or a diagonal step now cuts a walled corner. It returns the
// reroute events.
func (m *MovementSystem) Invalidate(grid *Grid, agents []*Agent) []AgentEvent {
	var events []AgentEvent
	for _, a := range agents {
		if a.State != AgentMoving || grid.IsValidPath(a.Cell(), a.Remaining()) {
			continue
		}
		if ev, ok := m.reroute(a); ok {
			events = append(events, ev)
		}
	}
	return events
}

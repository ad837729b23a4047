package game

import (
	"fmt"
	"math"

	"github.com/google/uuid"
)

// AgentState is the pathing phase of an agent.
type AgentState int

const (
	// AgentIdle agents have no target and wait to be given one.
	AgentIdle AgentState = iota
	// AgentPathFinding agents have a search queued or running.
	AgentPathFinding
	// AgentMoving agents are walking their path.
	AgentMoving
	// AgentFailed agents had their last search fail and wait out a retry delay.
	AgentFailed
)

var agentStateNames = [...]string{"idle", "path_finding", "moving", "failed"}

// String returns the state name.
func (s AgentState) String() string {
	if s < 0 || int(s) >= len(agentStateNames) {
		return fmt.Sprintf("AgentState(%d)", int(s))
	}
	return agentStateNames[s]
}

// MarshalText encodes the state by name.
func (s AgentState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Agent is one autonomous walker. An agent is owned by a single goroutine at
// a time; search results are applied to it in one assignment.
type Agent struct {
	ID     uuid.UUID
	X, Y   float64
	Target Cell
	State  AgentState

	// Path runs from the start cell to Target inclusive. Cursor indexes the
	// next waypoint to step onto.
	Path   []Cell
	Cursor int

	// Request counts path requests; results carrying an older number are stale.
	Request uint64

	LastError error
	RetryIn   int
	Arrivals  int
	Failures  int
}

// NewAgent creates an idle agent standing on c.
func NewAgent(c Cell) *Agent {
	return &Agent{
		ID: uuid.New(),
		X:  float64(c.X),
		Y:  float64(c.Y),
	}
}

// Cell truncates the agent's position to the cell it stands on.
func (a *Agent) Cell() Cell {
	return Cell{X: int(math.Floor(a.X)), Y: int(math.Floor(a.Y))}
}

func (a *Agent) transition(from AgentState, to AgentState) error {
	if a.State != from {
		return fmt.Errorf("agent %s: %v -> %v from %v: %w", a.ID, from, to, a.State, ErrAgentState)
	}
	a.State = to
	return nil
}

// RequestPath moves an idle agent to PathFinding toward target and returns
// the job to hand to a search worker.
func (a *Agent) RequestPath(target Cell) (PathJob, error) {
	if err := a.transition(AgentIdle, AgentPathFinding); err != nil {
		return PathJob{}, err
	}
	a.Target = target
	return a.newJob(), nil
}

func (a *Agent) newJob() PathJob {
	a.Path = nil
	a.Cursor = 0
	a.Request++
	return PathJob{AgentID: a.ID, Request: a.Request, Start: a.Cell(), Goal: a.Target}
}

// Reroute asks for a fresh path to the current target from where a moving
// agent stands.
func (a *Agent) Reroute() (PathJob, error) {
	if err := a.transition(AgentMoving, AgentPathFinding); err != nil {
		return PathJob{}, err
	}
	return a.newJob(), nil
}

// CancelRequest returns a PathFinding agent to Idle, dropping its request.
func (a *Agent) CancelRequest() error {
	if err := a.transition(AgentPathFinding, AgentIdle); err != nil {
		return err
	}
	a.Request++
	return nil
}

// Accepts reports whether a result for job is still wanted.
func (a *Agent) Accepts(job PathJob) bool {
	return a.State == AgentPathFinding && a.ID == job.AgentID && a.Request == job.Request
}

// ApplyPath stores a found path and starts moving along it. A leading
// waypoint equal to the agent's own cell is skipped.
func (a *Agent) ApplyPath(path []Cell) error {
	if len(path) == 0 {
		return fmt.Errorf("agent %s: empty path", a.ID)
	}
	if err := a.transition(AgentPathFinding, AgentMoving); err != nil {
		return err
	}
	a.Path = path
	a.Cursor = 0
	if path[0] == a.Cell() {
		a.Cursor = 1
	}
	a.LastError = nil
	return nil
}

// Fail records a failed search. The agent stays Failed for retryTicks
// cooldown ticks before it may ask again.
func (a *Agent) Fail(err error, retryTicks int) error {
	if terr := a.transition(AgentPathFinding, AgentFailed); terr != nil {
		return terr
	}
	a.LastError = err
	a.RetryIn = retryTicks
	a.Path = nil
	a.Cursor = 0
	a.Failures++
	return nil
}

// Cooldown counts down a failed agent's retry delay and reports whether it
// is Idle again.
func (a *Agent) Cooldown() bool {
	if a.State != AgentFailed {
		return a.State == AgentIdle
	}
	a.RetryIn--
	if a.RetryIn > 0 {
		return false
	}
	a.RetryIn = 0
	a.State = AgentIdle
	return true
}

// NextWaypoint returns the waypoint the agent will step onto next.
func (a *Agent) NextWaypoint() (Cell, bool) {
	if a.State != AgentMoving || a.Cursor >= len(a.Path) {
		return Cell{}, false
	}
	return a.Path[a.Cursor], true
}

// Advance steps onto the next waypoint. Once the cursor passes the end of
// the path the agent has arrived and returns to Idle.
func (a *Agent) Advance() (arrived bool, err error) {
	if a.State != AgentMoving {
		return false, fmt.Errorf("agent %s: advance while %v: %w", a.ID, a.State, ErrAgentState)
	}
	if a.Cursor < len(a.Path) {
		next := a.Path[a.Cursor]
		a.X, a.Y = float64(next.X), float64(next.Y)
		a.Cursor++
	}
	if a.Cursor < len(a.Path) {
		return false, nil
	}
	a.State = AgentIdle
	a.Path = nil
	a.Cursor = 0
	a.Arrivals++
	return true, nil
}

// Remaining returns the waypoints not yet walked.
func (a *Agent) Remaining() []Cell {
	if a.Cursor >= len(a.Path) {
		return nil
	}
	out := make([]Cell, len(a.Path)-a.Cursor)
	copy(out, a.Path[a.Cursor:])
	return out
}

// AgentView is a read-only copy of an agent for status output.
type AgentView struct {
	ID        string     `json:"id"`
	X         float64    `json:"x"`
	Y         float64    `json:"y"`
	Target    Cell       `json:"target"`
	State     AgentState `json:"state"`
	Remaining []Cell     `json:"remaining,omitempty"`
	LastError string     `json:"last_error,omitempty"`
	Arrivals  int        `json:"arrivals"`
	Failures  int        `json:"failures"`
}

// View snapshots the agent.
func (a *Agent) View() AgentView {
	v := AgentView{
		ID:        a.ID.String(),
		X:         a.X,
		Y:         a.Y,
		Target:    a.Target,
		State:     a.State,
		Remaining: a.Remaining(),
		Arrivals:  a.Arrivals,
		Failures:  a.Failures,
	}
	if a.LastError != nil {
		v.LastError = a.LastError.Error()
	}
	return v
}

package game

import (
	"errors"
	"fmt"
)

var (
	// ErrExhaustedOpenSet means the search ran out of frontier before reaching the goal.
	ErrExhaustedOpenSet = errors.New("no path found: open set exhausted")

	// ErrCapacityExceeded is a configuration error raised before any search starts.
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrInvalidStartOrGoal means the start or goal cell is out of bounds or impassable.
	ErrInvalidStartOrGoal = errors.New("invalid start or goal")

	// ErrSearchLimit means the search hit its expansion cap.
	ErrSearchLimit = errors.New("search expansion limit reached")

	// ErrQueueFull is returned when inserting past a queue's preallocated capacity.
	ErrQueueFull = errors.New("queue full")

	// ErrQueueEmpty is returned when popping from an empty queue.
	ErrQueueEmpty = errors.New("queue empty")

	// ErrPoolClosed is returned when submitting to a closed worker pool.
	ErrPoolClosed = errors.New("worker pool closed")

	// ErrAgentState is returned for a transition the agent state machine forbids.
	ErrAgentState = errors.New("invalid agent state transition")

	// ErrNoTarget is returned when a target picker cannot find a reachable cell.
	ErrNoTarget = errors.New("no target available")
)

// SearchError describes a failed search. It unwraps to one of the sentinel errors above.
type SearchError struct {
	Kind  error
	Start Cell
	Goal  Cell
	Stats SearchStats
}

// Error implements the error interface.
func (e *SearchError) Error() string {
	return fmt.Sprintf("%v from %v to %v (expanded %d nodes)", e.Kind, e.Start, e.Goal, e.Stats.Expanded)
}

// Unwrap exposes the error kind to errors.Is.
func (e *SearchError) Unwrap() error {
	return e.Kind
}

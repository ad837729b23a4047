package game

import "fmt"

// SearchOptions tunes a Worker's search.
type SearchOptions struct {
	// HeuristicWeight multiplies h when folded into f. Values above 1 trade
	// optimality for fewer expansions.
	HeuristicWeight float64

	// DiagonalCost is the diagonal step price used by the heuristic.
	DiagonalCost float64

	// DiagonalStepMultiplier scales the entry cost of diagonal steps.
	// 1 charges diagonal and cardinal entries alike.
	DiagonalStepMultiplier float64

	// Queue selects the open-set implementation.
	Queue QueueKind

	// MaxExpansions caps expansions per search; 0 means the grid size.
	MaxExpansions int
}

// DefaultSearchOptions returns the reference tuning.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{
		HeuristicWeight:        DefaultHeuristicWeight,
		DiagonalCost:           DiagonalCost,
		DiagonalStepMultiplier: 1,
		Queue:                  QueueSorted,
	}
}

// Validate checks the options for nonsensical values.
func (o SearchOptions) Validate() error {
	if o.HeuristicWeight < 0 {
		return fmt.Errorf("heuristic weight must not be negative, got %v", o.HeuristicWeight)
	}
	if o.DiagonalCost <= 0 {
		return fmt.Errorf("diagonal cost must be positive, got %v", o.DiagonalCost)
	}
	if o.DiagonalStepMultiplier <= 0 {
		return fmt.Errorf("diagonal step multiplier must be positive, got %v", o.DiagonalStepMultiplier)
	}
	if o.MaxExpansions < 0 {
		return fmt.Errorf("max expansions must not be negative, got %d", o.MaxExpansions)
	}
	return nil
}

// Option is a function that modifies SearchOptions.
type Option func(*SearchOptions)

// WithHeuristicWeight sets the heuristic weight.
func WithHeuristicWeight(weight float64) Option {
	return func(o *SearchOptions) { o.HeuristicWeight = weight }
}

// WithDiagonalCost sets the diagonal step price used by the heuristic.
func WithDiagonalCost(cost float64) Option {
	return func(o *SearchOptions) { o.DiagonalCost = cost }
}

// WithDiagonalStepMultiplier scales the entry cost of diagonal moves.
func WithDiagonalStepMultiplier(multiplier float64) Option {
	return func(o *SearchOptions) { o.DiagonalStepMultiplier = multiplier }
}

// WithQueue selects the open-set implementation.
func WithQueue(kind QueueKind) Option {
	return func(o *SearchOptions) { o.Queue = kind }
}

// WithMaxExpansions caps the number of expansions per search.
func WithMaxExpansions(n int) Option {
	return func(o *SearchOptions) { o.MaxExpansions = n }
}

// WithOptions replaces every field at once.
func WithOptions(opts SearchOptions) Option {
	return func(o *SearchOptions) { *o = opts }
}

package game

const (
	// CardinalCost is the heuristic price of one orthogonal step.
	CardinalCost = 1.0

	// DiagonalCost is the heuristic price of one diagonal step.
	DiagonalCost = 1.141

	// DefaultHeuristicWeight over-weights the estimate so searches head for
	// the goal greedily instead of proving optimality.
	DefaultHeuristicWeight = 1.1
)

// OctileDistance estimates the remaining cost between a and b on an
// 8-connected grid where cardinal steps cost d1 and diagonal steps cost d2.
func OctileDistance(a, b Cell, d1, d2 float64) float64 {
	dx := a.X - b.X
	if dx < 0 {
		dx = -dx
	}
	dy := a.Y - b.Y
	if dy < 0 {
		dy = -dy
	}
	return d1*float64(dx+dy) + (d2-2*d1)*float64(min(dx, dy))
}

// Octile is OctileDistance with the default step costs.
func Octile(a, b Cell) float64 {
	return OctileDistance(a, b, CardinalCost, DiagonalCost)
}

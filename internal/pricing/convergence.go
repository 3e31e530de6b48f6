package pricing

import (
	"gonum.org/v1/gonum/floats"

	"rec-lem-prices/internal/model"
)

// ConvergenceThreshold is the Euclidean distance under which two price
// vectors are considered the same.
const ConvergenceThreshold = 0.01

// StopCriterion compares two price vectors and reports whether they are close
// enough to stop iterating, along with their distance.
func StopCriterion(prev, next []float64) (bool, float64, error) {
	if len(prev) != len(next) {
		return false, 0, model.ShapeError("price vector", len(next), len(prev))
	}
	if len(prev) == 0 {
		return true, 0, nil
	}
	d := floats.Distance(prev, next, 2)
	return d < ConvergenceThreshold, d, nil
}

package model

import (
	"fmt"
	"math"
)

// Rounding selects how horizon/delta_t is turned into a session count.
type Rounding string

const (
	RoundingTruncate Rounding = "int"
	RoundingFloor    Rounding = "floor"
	RoundingCeil     Rounding = "ceil"
)

// SessionCount returns the number of market sessions within horizon, both in
// hours. An empty rounding defaults to truncation.
func SessionCount(horizon, deltaT float64, r Rounding) (int, error) {
	if deltaT <= 0 {
		return 0, fmt.Errorf("%w: delta_t must be > 0", ErrInvalidParameter)
	}
	if horizon <= 0 {
		return 0, fmt.Errorf("%w: horizon must be > 0", ErrInvalidParameter)
	}
	q := horizon / deltaT
	switch r {
	case RoundingTruncate, "":
		return int(q), nil
	case RoundingFloor:
		return int(math.Floor(q)), nil
	case RoundingCeil:
		return int(math.Ceil(q)), nil
	default:
		return 0, fmt.Errorf("%w: unknown rounding %q, expected one of int, floor, ceil", ErrInvalidParameter, r)
	}
}

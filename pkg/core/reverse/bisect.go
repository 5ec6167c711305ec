// Package reverse inverts the scalar valuation: it solves for the single
// assumption that makes value per share equal an observed price.
package reverse

import (
	"errors"
	"fmt"
	"math"
)

const (
	DefaultMaxIter   = 100
	DefaultTolerance = 0.01 // price units
)

// Direction is how the valuation moves as the solved parameter rises.
type Direction int

const (
	Increasing Direction = iota
	Decreasing
)

func (d Direction) String() string {
	if d == Decreasing {
		return "decreasing"
	}
	return "increasing"
}

// Options tunes the bisection.
type Options struct {
	MaxIter   int
	Tolerance float64
}

func (o Options) withDefaults() Options {
	if o.MaxIter <= 0 {
		o.MaxIter = DefaultMaxIter
	}
	if o.Tolerance <= 0 {
		o.Tolerance = DefaultTolerance
	}
	return o
}

// Solution is the outcome of one bisection. Value is always set: when the
// search does not converge it is the midpoint of the final bracket.
type Solution struct {
	Value      float64 `json:"value"`
	Converged  bool    `json:"converged"`
	Bracketed  bool    `json:"bracketed"` // target lies between f(lo) and f(hi)
	Monotone   bool    `json:"monotone"`  // f(lo), f(hi) ordered as Direction claims
	Iterations int     `json:"iterations"`
	Residual   float64 `json:"residual"` // f(Value) - target
}

// ErrInvalidBracket is returned when lo >= hi.
var ErrInvalidBracket = errors.New("invalid bracket")

// Bisect finds x in [lo, hi] with |f(x) - target| < tol. Non-convergence is
// reported on the Solution, never as an error; errors come only from f or
// from a malformed bracket.
func Bisect(target float64, f func(float64) (float64, error), lo, hi float64, dir Direction, opts Options) (Solution, error) {
	if !(lo < hi) {
		return Solution{}, fmt.Errorf("%w: [%.4f, %.4f]", ErrInvalidBracket, lo, hi)
	}
	opts = opts.withDefaults()

	// 1. Check the bracket ends
	fLo, err := f(lo)
	if err != nil {
		return Solution{}, fmt.Errorf("f(%.4f): %w", lo, err)
	}
	fHi, err := f(hi)
	if err != nil {
		return Solution{}, fmt.Errorf("f(%.4f): %w", hi, err)
	}
	sol := Solution{
		Bracketed: between(target, fLo, fHi),
		Monotone:  (dir == Increasing && fLo <= fHi) || (dir == Decreasing && fLo >= fHi),
	}

	// 2. Bisect
	for i := 0; i < opts.MaxIter; i++ {
		mid := (lo + hi) / 2
		val, err := f(mid)
		if err != nil {
			return sol, fmt.Errorf("f(%.4f): %w", mid, err)
		}
		sol.Iterations = i + 1
		if math.Abs(val-target) < opts.Tolerance {
			sol.Value = mid
			sol.Converged = true
			sol.Residual = val - target
			return sol, nil
		}
		// Move toward the half that still brackets the target
		if (dir == Increasing) == (val < target) {
			lo = mid
		} else {
			hi = mid
		}
	}

	// 3. Best effort
	sol.Value = (lo + hi) / 2
	if val, err := f(sol.Value); err == nil {
		sol.Residual = val - target
	} else {
		sol.Residual = math.NaN()
	}
	return sol, nil
}

func between(x, a, b float64) bool {
	if a > b {
		a, b = b, a
	}
	return x >= a && x <= b
}

// Package interp provides grid interpolation helpers for reference-table
// lookups (declination grids, calibration surfaces).
package interp

import (
	"errors"
	"sort"
)

// Sample is one (x, y, value) reference point.
type Sample struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	V float64 `json:"v"`
}

var (
	// ErrNotARectangle reports four samples whose coordinates do not form
	// the corner combinations of an axis-aligned rectangle.
	ErrNotARectangle = errors.New("corner samples do not form a rectangle")

	// ErrPointOutsideRectangle reports a query point beyond the rectangle's
	// bounding box.
	ErrPointOutsideRectangle = errors.New("query point outside the rectangle")

	// ErrDegenerateRectangle reports a rectangle of zero width or height,
	// which would otherwise divide by zero.
	ErrDegenerateRectangle = errors.New("rectangle has zero width or height")
)

// Bilinear estimates the value at (x, y) from four corner samples, given in
// any order. Each corner is weighted by the area of the diagonally opposite
// sub-rectangle, so querying a corner returns exactly that corner's value.
func Bilinear(x, y float64, corners [4]Sample) (float64, error) {
	xs := distinct(corners[0].X, corners[1].X, corners[2].X, corners[3].X)
	ys := distinct(corners[0].Y, corners[1].Y, corners[2].Y, corners[3].Y)
	if len(xs) > 2 || len(ys) > 2 {
		return 0, ErrNotARectangle
	}

	// Each grid cell must hold its exact share of the four samples: one per
	// corner for a true rectangle, more when an axis has collapsed.
	want := 4 / (len(xs) * len(ys))
	var counts [2][2]int
	for _, s := range corners {
		counts[index(xs, s.X)][index(ys, s.Y)]++
	}
	for xi := range xs {
		for yi := range ys {
			if counts[xi][yi] != want {
				return 0, ErrNotARectangle
			}
		}
	}

	x1, x2 := xs[0], xs[len(xs)-1]
	y1, y2 := ys[0], ys[len(ys)-1]

	if x < x1 || x > x2 || y < y1 || y > y2 {
		return 0, ErrPointOutsideRectangle
	}
	if x1 == x2 || y1 == y2 {
		return 0, ErrDegenerateRectangle
	}

	var q11, q12, q21, q22 float64
	for _, s := range corners {
		switch {
		case s.X == x1 && s.Y == y1:
			q11 = s.V
		case s.X == x1 && s.Y == y2:
			q12 = s.V
		case s.X == x2 && s.Y == y1:
			q21 = s.V
		default:
			q22 = s.V
		}
	}

	return (q11*(x2-x)*(y2-y) +
		q21*(x-x1)*(y2-y) +
		q12*(x2-x)*(y-y1) +
		q22*(x-x1)*(y-y1)) / ((x2 - x1) * (y2 - y1)), nil
}

// distinct returns the sorted unique values.
func distinct(vals ...float64) []float64 {
	sort.Float64s(vals)
	out := vals[:1]
	for _, v := range vals[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}

// index locates v in a short sorted slice.
func index(s []float64, v float64) int {
	for i, sv := range s {
		if sv == v {
			return i
		}
	}
	return 0
}

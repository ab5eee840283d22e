package interp

import (
	"errors"
	"math"
	"testing"
)

var refCorners = [4]Sample{
	{X: 10, Y: 4, V: 100},
	{X: 20, Y: 4, V: 200},
	{X: 10, Y: 6, V: 150},
	{X: 20, Y: 6, V: 300},
}

func TestBilinear_Interior(t *testing.T) {
	got, err := Bilinear(12, 5.5, refCorners)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 165.0 {
		t.Errorf("Bilinear(12, 5.5) = %f, want 165.0", got)
	}
	if got < 100 || got > 300 {
		t.Errorf("interior value %f outside corner range", got)
	}
}

func TestBilinear_CornerExactness(t *testing.T) {
	for _, c := range refCorners {
		got, err := Bilinear(c.X, c.Y, refCorners)
		if err != nil {
			t.Fatalf("corner (%f, %f): %v", c.X, c.Y, err)
		}
		if got != c.V {
			t.Errorf("corner (%f, %f) = %f, want exactly %f", c.X, c.Y, got, c.V)
		}
	}
}

func TestBilinear_OrderIndependent(t *testing.T) {
	shuffled := [4]Sample{refCorners[3], refCorners[0], refCorners[2], refCorners[1]}
	got, err := Bilinear(12, 5.5, shuffled)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 165.0 {
		t.Errorf("shuffled corners gave %f, want 165.0", got)
	}
}

func TestBilinear_NotARectangle(t *testing.T) {
	cases := [][4]Sample{
		// three distinct x values
		{{10, 4, 1}, {20, 4, 1}, {10, 6, 1}, {21, 6, 1}},
		// parallelogram, not axis-aligned
		{{10, 4, 1}, {20, 4, 1}, {15, 6, 1}, {25, 6, 1}},
		// one corner doubled, one missing
		{{10, 4, 1}, {10, 4, 1}, {20, 4, 1}, {20, 6, 1}},
	}

	for i, c := range cases {
		if _, err := Bilinear(12, 5, c); !errors.Is(err, ErrNotARectangle) {
			t.Errorf("case %d: want ErrNotARectangle, got %v", i, err)
		}
	}
}

func TestBilinear_PointOutside(t *testing.T) {
	for _, q := range [][2]float64{{9, 5}, {21, 5}, {12, 3.9}, {12, 6.1}} {
		if _, err := Bilinear(q[0], q[1], refCorners); !errors.Is(err, ErrPointOutsideRectangle) {
			t.Errorf("query (%f, %f): want ErrPointOutsideRectangle, got %v", q[0], q[1], err)
		}
	}
}

func TestBilinear_BoundaryInclusive(t *testing.T) {
	// Edges count as inside.
	if _, err := Bilinear(10, 5, refCorners); err != nil {
		t.Errorf("left edge rejected: %v", err)
	}
	if _, err := Bilinear(15, 6, refCorners); err != nil {
		t.Errorf("top edge rejected: %v", err)
	}
}

func TestBilinear_Degenerate(t *testing.T) {
	zeroWidth := [4]Sample{{10, 4, 1}, {10, 4, 2}, {10, 6, 3}, {10, 6, 4}}
	if _, err := Bilinear(10, 5, zeroWidth); !errors.Is(err, ErrDegenerateRectangle) {
		t.Errorf("zero width: want ErrDegenerateRectangle, got %v", err)
	}

	zeroHeight := [4]Sample{{10, 4, 1}, {20, 4, 2}, {10, 4, 3}, {20, 4, 4}}
	if _, err := Bilinear(15, 4, zeroHeight); !errors.Is(err, ErrDegenerateRectangle) {
		t.Errorf("zero height: want ErrDegenerateRectangle, got %v", err)
	}

	coincident := [4]Sample{{10, 4, 1}, {10, 4, 1}, {10, 4, 1}, {10, 4, 1}}
	if _, err := Bilinear(10, 4, coincident); !errors.Is(err, ErrDegenerateRectangle) {
		t.Errorf("coincident corners: want ErrDegenerateRectangle, got %v", err)
	}
}

func TestBilinear_NaNQueryPropagates(t *testing.T) {
	got, err := Bilinear(math.NaN(), 5, refCorners)
	if err != nil {
		t.Fatalf("NaN query should not error: %v", err)
	}
	if !math.IsNaN(got) {
		t.Errorf("NaN query gave %f, want NaN", got)
	}
}

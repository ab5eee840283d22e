package domain

import (
	"fmt"
	"math"
)

// Rotate turns one (east, north) velocity pair from the instrument frame
// into true-north coordinates. thetaDeg is the magnetic declination in
// degrees, positive east of true north.
func Rotate(thetaDeg, east, north float64) (float64, float64) {
	sin, cos := math.Sincos(thetaDeg * math.Pi / 180)
	return east*cos + north*sin, -east*sin + north*cos
}

// RotateVectors corrects index-aligned velocity slices. thetaDeg, east and
// north each hold either one value (applied to every sample) or one value
// per sample; any other combination of lengths is ErrShapeMismatch. NaN in
// any input flows through to the matching output element.
func RotateVectors(thetaDeg, east, north []float64) ([]float64, []float64, error) {
	n, err := broadcastLen(len(thetaDeg), len(east), len(north))
	if err != nil {
		return nil, nil, err
	}

	eastOut := make([]float64, n)
	northOut := make([]float64, n)
	for i := 0; i < n; i++ {
		sin, cos := math.Sincos(at(thetaDeg, i) * math.Pi / 180)
		e, v := at(east, i), at(north, i)
		eastOut[i] = e*cos + v*sin
		northOut[i] = -e*sin + v*cos
	}
	return eastOut, northOut, nil
}

// at reads element i of a slice that may be length one (broadcast).
func at(s []float64, i int) float64 {
	if len(s) == 1 {
		return s[0]
	}
	return s[i]
}

// broadcastLen resolves the common sample count: every slice must hold one
// element or the full count. All-empty inputs broadcast to zero samples.
func broadcastLen(lens ...int) (int, error) {
	n := 0
	for _, l := range lens {
		if l > n {
			n = l
		}
	}
	if n == 0 {
		return 0, nil
	}
	for _, l := range lens {
		if l != 1 && l != n {
			return 0, fmt.Errorf("lengths %v: %w", lens, ErrShapeMismatch)
		}
	}
	return n, nil
}

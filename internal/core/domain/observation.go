package domain

import (
	"encoding/json"
	"fmt"
)

// Orientation tells how an instrument's vertical value is to be read:
// as a depth below sea level or as a height above it.
type Orientation int

const (
	// BelowSeaLevel marks the value as a depth in metres. This is the
	// default convention for moored and bottom-mounted instruments.
	BelowSeaLevel Orientation = iota
	// AboveSeaLevel marks the value as a height in metres.
	AboveSeaLevel
)

// String returns the wire form of the orientation.
func (o Orientation) String() string {
	if o == AboveSeaLevel {
		return "above_sea_level"
	}
	return "below_sea_level"
}

// ParseOrientation maps a wire string back to an Orientation.
func ParseOrientation(s string) (Orientation, error) {
	switch s {
	case "", "below_sea_level":
		return BelowSeaLevel, nil
	case "above_sea_level":
		return AboveSeaLevel, nil
	}
	return BelowSeaLevel, fmt.Errorf("unknown orientation %q", s)
}

// MarshalJSON encodes the orientation as its wire string.
func (o Orientation) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.String())
}

// UnmarshalJSON decodes the wire string form.
func (o *Orientation) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseOrientation(s)
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// ModelDepthKM converts an instrument's vertical value in metres to the
// kilometre convention geomagnetic models use: depths negative, heights
// positive. A positive magnitude flagged BelowSeaLevel gets its sign
// flipped; everything else, zero included, passes through. The flip needs
// both conditions to hold at once, a plain logical AND.
func ModelDepthKM(meters float64, o Orientation) float64 {
	km := meters / 1000
	if km > 0 && o == BelowSeaLevel {
		km = -km
	}
	return km
}

// ObservationBatch holds the index-aligned sample slices of one instrument
// read: the i-th latitude belongs with the i-th longitude, timestamp and
// depth. Times are seconds since 1900-01-01 (NTP epoch). Depths are metres;
// a single-element Depths slice broadcasts across the whole batch.
type ObservationBatch struct {
	Lats        []float64   `json:"lats"`
	Lons        []float64   `json:"lons"`
	Times       []float64   `json:"times"`
	Depths      []float64   `json:"depths"`
	Orientation Orientation `json:"orientation"`
}

// Len returns the number of samples in the batch.
func (b ObservationBatch) Len() int { return len(b.Lats) }

// Validate enforces the equal-length invariant. Depths may be length one
// (broadcast) or match the batch length.
func (b ObservationBatch) Validate() error {
	n := len(b.Lats)
	if len(b.Lons) != n || len(b.Times) != n {
		return fmt.Errorf("lats=%d lons=%d times=%d: %w",
			len(b.Lats), len(b.Lons), len(b.Times), ErrShapeMismatch)
	}
	if len(b.Depths) != n && len(b.Depths) != 1 {
		return fmt.Errorf("depths=%d for %d samples: %w", len(b.Depths), n, ErrShapeMismatch)
	}
	return nil
}

// DepthAt returns the depth for sample i, honouring single-value broadcast.
func (b ObservationBatch) DepthAt(i int) float64 {
	if len(b.Depths) == 1 {
		return b.Depths[0]
	}
	return b.Depths[i]
}

// ExtractParameter returns the idx-th element of a series with an explicit
// bounds check, so callers selecting a single sample out of a batch get a
// typed error instead of a panic.
func ExtractParameter(series []float64, idx int) (float64, error) {
	if idx < 0 || idx >= len(series) {
		return 0, fmt.Errorf("index %d of %d: %w", idx, len(series), ErrIndexOutOfRange)
	}
	return series[idx], nil
}

// Package ntptime converts instrument timestamps from the NTP epoch
// (1900-01-01) into Unix time and calendar dates. Oceanographic loggers
// emit NTP seconds as float64 with fractional precision.
package ntptime

import (
	"errors"
	"math"
	"time"
)

// UnixOffset is the exact number of seconds between 1900-01-01 and
// 1970-01-01, including the 17 leap days in between.
const UnixOffset = 2208988800.0

// ErrInvalidTimestamp reports a non-finite timestamp value.
var ErrInvalidTimestamp = errors.New("timestamp is not finite")

// ToUnix converts NTP seconds to Unix seconds, keeping fractional seconds.
// NaN and infinities pass through so array pipelines can carry bad samples
// to the output.
func ToUnix(ntp float64) float64 {
	return ntp - UnixOffset
}

// FromTime converts a wall-clock time to NTP seconds.
func FromTime(t time.Time) float64 {
	return float64(t.UnixNano())/1e9 + UnixOffset
}

// Time converts an NTP timestamp to a wall-clock time, keeping fractional
// seconds. Only non-finite input is an error.
func Time(ntp float64) (time.Time, error) {
	if math.IsNaN(ntp) || math.IsInf(ntp, 0) {
		return time.Time{}, ErrInvalidTimestamp
	}

	unix := ToUnix(ntp)
	sec := math.Floor(unix)
	nsec := math.Round((unix - sec) * 1e9)
	return time.Unix(int64(sec), int64(nsec)).UTC(), nil
}

// Date returns the UTC calendar date (truncated to midnight) of an NTP
// timestamp. Sub-day precision is discarded: geomagnetic models resolve to
// the day. Only non-finite input is an error.
func Date(ntp float64) (time.Time, error) {
	t, err := Time(ntp)
	if err != nil {
		return time.Time{}, err
	}
	return t.Truncate(24 * time.Hour), nil
}

// DecimalYear expresses t as a fractional year, the time coordinate
// geomagnetic coefficient models interpolate over.
func DecimalYear(t time.Time) float64 {
	return float64(t.Year()) + float64(t.YearDay()-1)/365.0
}

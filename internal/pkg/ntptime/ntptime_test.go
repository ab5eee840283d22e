package ntptime

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestToUnix(t *testing.T) {
	// Logger timestamps with independently converted Unix equivalents.
	cases := []struct {
		ntp  float64
		unix float64
	}{
		{3176736750.7358608, 967747950.735861},
		{3359763506.2082224, 1150774706.2082224},
		{3575049755.4380851, 1366060955.438085},
		{3574792037.958, 1365803237.958},
	}

	for _, c := range cases {
		got := ToUnix(c.ntp)
		if math.Abs(got-c.unix) > 1e-6 {
			t.Errorf("ToUnix(%f) = %f, want %f", c.ntp, got, c.unix)
		}
	}
}

func TestToUnix_NaNPassesThrough(t *testing.T) {
	if !math.IsNaN(ToUnix(math.NaN())) {
		t.Error("NaN should pass through ToUnix")
	}
}

func TestTime_RoundTrip(t *testing.T) {
	want := time.Date(2013, time.April, 15, 6, 29, 0, 738250000, time.UTC)

	got, err := Time(FromTime(want))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d := got.Sub(want); d < -time.Microsecond || d > time.Microsecond {
		t.Errorf("round trip drifted by %v: got %v, want %v", d, got, want)
	}
}

func TestTime_NonFinite(t *testing.T) {
	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if _, err := Time(bad); !errors.Is(err, ErrInvalidTimestamp) {
			t.Errorf("Time(%f): want ErrInvalidTimestamp, got %v", bad, err)
		}
	}
}

func TestDate(t *testing.T) {
	// 2013-04-15 06:29:00.74 UTC on an ADCP clock.
	got, err := Date(3575053740.7382507)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := time.Date(2013, time.April, 15, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Date = %v, want %v", got, want)
	}
	if got.Hour() != 0 || got.Minute() != 0 || got.Second() != 0 {
		t.Errorf("Date not truncated to midnight: %v", got)
	}
}

func TestDate_NonFinite(t *testing.T) {
	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if _, err := Date(bad); !errors.Is(err, ErrInvalidTimestamp) {
			t.Errorf("Date(%f): want ErrInvalidTimestamp, got %v", bad, err)
		}
	}
}

func TestDecimalYear(t *testing.T) {
	cases := []struct {
		t    time.Time
		want float64
	}{
		{time.Date(2013, time.January, 1, 0, 0, 0, 0, time.UTC), 2013.0},
		{time.Date(2013, time.April, 15, 0, 0, 0, 0, time.UTC), 2013.0 + 104.0/365.0},
		{time.Date(2010, time.December, 31, 0, 0, 0, 0, time.UTC), 2010.0 + 364.0/365.0},
	}

	for _, c := range cases {
		if got := DecimalYear(c.t); math.Abs(got-c.want) > 1e-9 {
			t.Errorf("DecimalYear(%v) = %f, want %f", c.t, got, c.want)
		}
	}
}

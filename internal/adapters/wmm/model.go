// Package wmm evaluates the World Magnetic Model from COF coefficient
// files. A Model is immutable once built and safe for concurrent use; the
// Catalog caches one Model per five-year epoch.
package wmm

import (
	"math"
	"time"

	"github.com/samirrijal/magvar/internal/pkg/ntptime"
)

const maxDegree = 12

// WGS 84 ellipsoid and the geomagnetic reference radius, kilometres.
const (
	wgsA      = 6378.137
	wgsB      = 6356.7523142
	refRadius = 6371.2
)

var (
	wgsA2 = wgsA * wgsA
	wgsB2 = wgsB * wgsB
	wgsC2 = wgsA2 - wgsB2
	wgsA4 = wgsA2 * wgsA2
	wgsB4 = wgsB2 * wgsB2
	wgsC4 = wgsA4 - wgsB4
)

// Model holds one epoch's Gauss coefficients, Schmidt semi-normalized at
// construction time. All fields are read-only after newModel returns.
type Model struct {
	epoch   float64
	name    string
	release string

	g, h   [maxDegree + 1][maxDegree + 1]float64
	gd, hd [maxDegree + 1][maxDegree + 1]float64
	k      [maxDegree + 1][maxDegree + 1]float64
}

// newModel converts raw Schmidt-normalized Gauss coefficients into the
// internal form the evaluation recursion wants.
func newModel(c *coefficients) *Model {
	m := &Model{
		epoch:   c.epoch,
		name:    c.name,
		release: c.release,
		g:       c.g,
		h:       c.h,
		gd:      c.gd,
		hd:      c.hd,
	}

	var snorm [maxDegree + 1][maxDegree + 1]float64
	snorm[0][0] = 1
	for n := 1; n <= maxDegree; n++ {
		snorm[n][0] = snorm[n-1][0] * float64(2*n-1) / float64(n)
		j := 2.0
		for mm := 0; mm <= n; mm++ {
			m.k[n][mm] = float64((n-1)*(n-1)-mm*mm) / float64((2*n-1)*(2*n-3))
			if mm > 0 {
				flnmj := float64(n-mm+1) * j / float64(n+mm)
				snorm[n][mm] = snorm[n][mm-1] * math.Sqrt(flnmj)
				j = 1
			}
		}
	}
	m.k[1][1] = 0

	for n := 1; n <= maxDegree; n++ {
		for mm := 0; mm <= n; mm++ {
			m.g[n][mm] *= snorm[n][mm]
			m.h[n][mm] *= snorm[n][mm]
			m.gd[n][mm] *= snorm[n][mm]
			m.hd[n][mm] *= snorm[n][mm]
		}
	}
	return m
}

// Epoch returns the model's base decimal year, e.g. 2010.0.
func (m *Model) Epoch() float64 { return m.epoch }

// Name returns the model identifier from the COF header, e.g. WMM-2010.
func (m *Model) Name() string { return m.name }

// Declination returns the magnetic declination in degrees, positive east of
// true north, at a geodetic position and date. altKM is kilometres relative
// to sea level, negative below it. The secular variation terms extrapolate
// linearly from the model epoch. NaN inputs yield NaN.
func (m *Model) Declination(latDeg, lonDeg, altKM float64, date time.Time) float64 {
	bx, by, _ := m.field(latDeg, lonDeg, altKM, ntptime.DecimalYear(date))
	return math.Atan2(by, bx) * 180 / math.Pi
}

// field computes the geodetic field components (north, east, down) in nT.
func (m *Model) field(latDeg, lonDeg, altKM, year float64) (bx, by, bz float64) {
	dt := year - m.epoch

	rlat := latDeg * math.Pi / 180
	rlon := lonDeg * math.Pi / 180
	srlat, crlat := math.Sincos(rlat)
	srlon, crlon := math.Sincos(rlon)
	srlat2 := srlat * srlat
	crlat2 := crlat * crlat

	// longitude multiples by recursion
	var sp, cp [maxDegree + 1]float64
	sp[0], cp[0] = 0, 1
	sp[1], cp[1] = srlon, crlon
	for mm := 2; mm <= maxDegree; mm++ {
		sp[mm] = sp[1]*cp[mm-1] + cp[1]*sp[mm-1]
		cp[mm] = cp[1]*cp[mm-1] - sp[1]*sp[mm-1]
	}

	// geodetic to geocentric spherical
	q := math.Sqrt(wgsA2 - wgsC2*srlat2)
	q1 := altKM * q
	q2 := ((q1 + wgsA2) / (q1 + wgsB2)) * ((q1 + wgsA2) / (q1 + wgsB2))
	ct := srlat / math.Sqrt(q2*crlat2+srlat2)
	st := math.Sqrt(1 - ct*ct)
	r := math.Sqrt(altKM*altKM + 2*q1 + (wgsA4-wgsC4*srlat2)/(q*q))
	d := math.Sqrt(wgsA2*crlat2 + wgsB2*srlat2)
	ca := (altKM + d) / r
	sa := wgsC2 * crlat * srlat / (r * d)

	var p, dp [maxDegree + 1][maxDegree + 1]float64
	var pp [maxDegree + 1]float64
	p[0][0] = 1
	pp[0] = 1

	var br, bt, bp, bpp float64
	aor := refRadius / r
	ar := aor * aor
	for n := 1; n <= maxDegree; n++ {
		ar *= aor
		for mm := 0; mm <= n; mm++ {
			// associated Legendre functions and derivatives by recursion
			switch {
			case n == mm:
				p[n][mm] = st * p[n-1][mm-1]
				dp[n][mm] = st*dp[n-1][mm-1] + ct*p[n-1][mm-1]
			case n == 1 && mm == 0:
				p[n][mm] = ct * p[n-1][mm]
				dp[n][mm] = ct*dp[n-1][mm] - st*p[n-1][mm]
			default:
				var pn2, dpn2 float64
				if mm <= n-2 {
					pn2, dpn2 = p[n-2][mm], dp[n-2][mm]
				}
				p[n][mm] = ct*p[n-1][mm] - m.k[n][mm]*pn2
				dp[n][mm] = ct*dp[n-1][mm] - st*p[n-1][mm] - m.k[n][mm]*dpn2
			}

			// secular variation applied to the epoch coefficients
			gt := m.g[n][mm] + dt*m.gd[n][mm]
			ht := m.h[n][mm] + dt*m.hd[n][mm]

			var t1, t2 float64
			if mm == 0 {
				t1 = gt * cp[mm]
				t2 = gt * sp[mm]
			} else {
				t1 = gt*cp[mm] + ht*sp[mm]
				t2 = gt*sp[mm] - ht*cp[mm]
			}

			par := ar * p[n][mm]
			bt -= ar * t1 * dp[n][mm]
			bp += float64(mm) * t2 * par
			br += float64(n+1) * t1 * par

			// geographic poles: st == 0 would otherwise zero out bp
			if st == 0 && mm == 1 {
				if n == 1 {
					pp[n] = pp[n-1]
				} else {
					pp[n] = ct*pp[n-1] - m.k[n][mm]*pp[n-2]
				}
				bpp += float64(mm) * t2 * ar * pp[n]
			}
		}
	}
	if st == 0 {
		bp = bpp
	} else {
		bp /= st
	}

	// rotate from spherical to geodetic components
	bx = -bt*ca - br*sa
	by = bp
	bz = bt*sa - br*ca
	return bx, by, bz
}

package wmm

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// coefficients is a parsed COF file before normalization.
type coefficients struct {
	epoch   float64
	name    string
	release string

	g, h   [maxDegree + 1][maxDegree + 1]float64
	gd, hd [maxDegree + 1][maxDegree + 1]float64
}

// parseCOF reads the NOAA coefficient format: a header line with the epoch,
// model name and release date, then one row per (n, m) term holding gnm,
// hnm and their annual rates, closed by a run of nines.
func parseCOF(r io.Reader) (*coefficients, error) {
	sc := bufio.NewScanner(r)

	if !sc.Scan() {
		return nil, fmt.Errorf("empty coefficient file")
	}
	header := strings.Fields(sc.Text())
	if len(header) < 3 {
		return nil, fmt.Errorf("malformed header %q", sc.Text())
	}
	epoch, err := strconv.ParseFloat(header[0], 64)
	if err != nil {
		return nil, fmt.Errorf("epoch %q: %w", header[0], err)
	}

	c := &coefficients{epoch: epoch, name: header[1], release: header[2]}

	line := 1
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		if strings.HasPrefix(text, "999") {
			break
		}

		fields := strings.Fields(text)
		if len(fields) != 6 {
			return nil, fmt.Errorf("line %d: want 6 fields, got %d", line, len(fields))
		}

		n, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: degree: %w", line, err)
		}
		m, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: order: %w", line, err)
		}
		if n < 1 || n > maxDegree || m < 0 || m > n {
			return nil, fmt.Errorf("line %d: term (%d,%d) out of range", line, n, m)
		}

		var vals [4]float64
		for i, f := range fields[2:] {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %q: %w", line, f, err)
			}
			vals[i] = v
		}
		c.g[n][m] = vals[0]
		c.h[n][m] = vals[1]
		c.gd[n][m] = vals[2]
		c.hd[n][m] = vals[3]
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return c, nil
}

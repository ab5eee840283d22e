// Package wire implements the compact binary encoding carried on the raw
// observation subject. Frames are protobuf wire format: field 1 is the
// deployment ID, fields 2-7 are packed double arrays for times, lats,
// lons, depths, east and north.
package wire

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/samirrijal/magvar/internal/core/domain"
)

const (
	fieldDeploymentID = 1
	fieldTimes        = 2
	fieldLats         = 3
	fieldLons         = 4
	fieldDepths       = 5
	fieldEast         = 6
	fieldNorth        = 7
)

// EncodeFrame serialises a frame. Empty arrays are omitted.
func EncodeFrame(f *domain.ObservationFrame) []byte {
	b := protowire.AppendTag(nil, fieldDeploymentID, protowire.BytesType)
	b = protowire.AppendString(b, f.DeploymentID)
	b = appendPacked(b, fieldTimes, f.Times)
	b = appendPacked(b, fieldLats, f.Lats)
	b = appendPacked(b, fieldLons, f.Lons)
	b = appendPacked(b, fieldDepths, f.Depths)
	b = appendPacked(b, fieldEast, f.East)
	b = appendPacked(b, fieldNorth, f.North)
	return b
}

// DecodeFrame parses a frame. Unknown fields are skipped so the format can
// grow without breaking older consumers.
func DecodeFrame(data []byte) (*domain.ObservationFrame, error) {
	f := &domain.ObservationFrame{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		data = data[n:]

		switch {
		case num == fieldDeploymentID && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			f.DeploymentID = v
			data = data[n:]

		case typ == protowire.BytesType && num >= fieldTimes && num <= fieldNorth:
			payload, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			vs, err := consumePacked(payload)
			if err != nil {
				return nil, fmt.Errorf("field %d: %w", num, err)
			}
			switch num {
			case fieldTimes:
				f.Times = vs
			case fieldLats:
				f.Lats = vs
			case fieldLons:
				f.Lons = vs
			case fieldDepths:
				f.Depths = vs
			case fieldEast:
				f.East = vs
			case fieldNorth:
				f.North = vs
			}
			data = data[n:]

		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return f, nil
}

func appendPacked(b []byte, num protowire.Number, vs []float64) []byte {
	if len(vs) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	b = protowire.AppendVarint(b, uint64(8*len(vs)))
	for _, v := range vs {
		b = protowire.AppendFixed64(b, math.Float64bits(v))
	}
	return b
}

func consumePacked(b []byte) ([]float64, error) {
	if len(b)%8 != 0 {
		return nil, fmt.Errorf("packed doubles length %d not a multiple of 8", len(b))
	}
	vs := make([]float64, 0, len(b)/8)
	for len(b) > 0 {
		u, n := protowire.ConsumeFixed64(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		vs = append(vs, math.Float64frombits(u))
		b = b[n:]
	}
	return vs, nil
}

package domain

import (
	"encoding/json"
	"math"
	"time"
)

// Deployment represents one instrument deployed at a site: the fixed
// metadata the correction pipeline needs to interpret its samples.
type Deployment struct {
	ID               string      `json:"id"`
	PlatformCode     string      `json:"platform_code"`
	InstrumentKind   string      `json:"instrument_kind"` // e.g. adcp, vel3d
	Site             GeoPoint    `json:"site"`
	NominalDepthM    float64     `json:"nominal_depth_m"`
	Orientation      Orientation `json:"orientation"`
	CommissionedAt   time.Time   `json:"commissioned_at"`
	DecommissionedAt *time.Time  `json:"decommissioned_at,omitempty"`
	Distance         *float64    `json:"distance,omitempty"` // computed field, metres
	CreatedAt        time.Time   `json:"created_at"`
}

// Active reports whether the deployment was in the water at t.
func (d Deployment) Active(t time.Time) bool {
	if t.Before(d.CommissionedAt) {
		return false
	}
	return d.DecommissionedAt == nil || t.Before(*d.DecommissionedAt)
}

// CorrectedVector is one velocity sample after declination correction.
// East/North carry the raw instrument-frame components, EastTrue/NorthTrue
// the true-north-referenced ones. Position and depth are stored per sample
// so a window can be re-corrected without the original transmission.
type CorrectedVector struct {
	Time           time.Time `json:"time"`
	DeploymentID   string    `json:"deployment_id"`
	Lat            float64   `json:"lat"`
	Lon            float64   `json:"lon"`
	DepthM         float64   `json:"depth_m"`
	East           float64   `json:"east"` // m/s
	North          float64   `json:"north"`
	EastTrue       float64   `json:"east_true"`
	NorthTrue      float64   `json:"north_true"`
	DeclinationDeg float64   `json:"declination_deg"`
	ModelEpoch     int       `json:"model_epoch"`
}

// jsonCorrectedVector mirrors CorrectedVector with nullable floats, since
// JSON has no NaN literal. A NaN component serializes as null and comes
// back as NaN.
type jsonCorrectedVector struct {
	Time           time.Time `json:"time"`
	DeploymentID   string    `json:"deployment_id"`
	Lat            *float64  `json:"lat"`
	Lon            *float64  `json:"lon"`
	DepthM         *float64  `json:"depth_m"`
	East           *float64  `json:"east"`
	North          *float64  `json:"north"`
	EastTrue       *float64  `json:"east_true"`
	NorthTrue      *float64  `json:"north_true"`
	DeclinationDeg *float64  `json:"declination_deg"`
	ModelEpoch     int       `json:"model_epoch"`
}

func (v CorrectedVector) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonCorrectedVector{
		Time:           v.Time,
		DeploymentID:   v.DeploymentID,
		Lat:            nullableFloat(v.Lat),
		Lon:            nullableFloat(v.Lon),
		DepthM:         nullableFloat(v.DepthM),
		East:           nullableFloat(v.East),
		North:          nullableFloat(v.North),
		EastTrue:       nullableFloat(v.EastTrue),
		NorthTrue:      nullableFloat(v.NorthTrue),
		DeclinationDeg: nullableFloat(v.DeclinationDeg),
		ModelEpoch:     v.ModelEpoch,
	})
}

func (v *CorrectedVector) UnmarshalJSON(b []byte) error {
	var j jsonCorrectedVector
	if err := json.Unmarshal(b, &j); err != nil {
		return err
	}
	v.Time = j.Time
	v.DeploymentID = j.DeploymentID
	v.Lat = floatOrNaN(j.Lat)
	v.Lon = floatOrNaN(j.Lon)
	v.DepthM = floatOrNaN(j.DepthM)
	v.East = floatOrNaN(j.East)
	v.North = floatOrNaN(j.North)
	v.EastTrue = floatOrNaN(j.EastTrue)
	v.NorthTrue = floatOrNaN(j.NorthTrue)
	v.DeclinationDeg = floatOrNaN(j.DeclinationDeg)
	v.ModelEpoch = j.ModelEpoch
	return nil
}

func nullableFloat(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func floatOrNaN(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}

// ObservationFrame is one raw instrument transmission: a deployment identity
// plus index-aligned sample slices. Velocities are in the instrument frame.
type ObservationFrame struct {
	DeploymentID string    `json:"deployment_id"`
	Times        []float64 `json:"times"` // NTP seconds
	Lats         []float64 `json:"lats"`
	Lons         []float64 `json:"lons"`
	Depths       []float64 `json:"depths"` // metres; length 1 broadcasts
	East         []float64 `json:"east"`   // m/s
	North        []float64 `json:"north"`
}

// Batch views the frame's position samples as an ObservationBatch.
func (f ObservationFrame) Batch(o Orientation) ObservationBatch {
	return ObservationBatch{
		Lats:        f.Lats,
		Lons:        f.Lons,
		Times:       f.Times,
		Depths:      f.Depths,
		Orientation: o,
	}
}

// Validate checks the frame's index alignment, including the velocity pair.
func (f ObservationFrame) Validate() error {
	if err := f.Batch(BelowSeaLevel).Validate(); err != nil {
		return err
	}
	n := len(f.Times)
	if len(f.East) != n || len(f.North) != n {
		return ErrShapeMismatch
	}
	return nil
}

// ReprocessSummary reports the outcome of re-correcting a deployment window.
type ReprocessSummary struct {
	DeploymentID string    `json:"deployment_id"`
	From         time.Time `json:"from"`
	To           time.Time `json:"to"`
	Samples      int       `json:"samples"`
	ModelEpoch   int       `json:"model_epoch"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

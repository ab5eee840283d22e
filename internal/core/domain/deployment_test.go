package domain_test

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/samirrijal/magvar/internal/core/domain"
)

func TestDeploymentActive(t *testing.T) {
	commissioned := time.Date(2013, 4, 1, 0, 0, 0, 0, time.UTC)
	pulled := time.Date(2014, 4, 1, 0, 0, 0, 0, time.UTC)

	open := domain.Deployment{CommissionedAt: commissioned}
	if open.Active(commissioned.Add(-time.Hour)) {
		t.Error("active before commissioning")
	}
	if !open.Active(commissioned.Add(time.Hour)) {
		t.Error("open-ended deployment should stay active")
	}

	closed := domain.Deployment{CommissionedAt: commissioned, DecommissionedAt: &pulled}
	if !closed.Active(pulled.Add(-time.Hour)) {
		t.Error("inactive inside its window")
	}
	if closed.Active(pulled) {
		t.Error("active at decommission instant")
	}
}

func TestCorrectedVectorJSON_RoundTrip(t *testing.T) {
	v := domain.CorrectedVector{
		Time:           time.Date(2013, 4, 15, 6, 29, 0, 0, time.UTC),
		DeploymentID:   "CE02SHSM-01",
		Lat:            44.64,
		Lon:            -124.3,
		DepthM:         7,
		East:           0.12,
		North:          -0.03,
		EastTrue:       0.115,
		NorthTrue:      -0.05,
		DeclinationDeg: 15.96,
		ModelEpoch:     2010,
	}

	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got domain.CorrectedVector
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got != v {
		t.Errorf("round trip changed vector:\n got %+v\nwant %+v", got, v)
	}
}

func TestCorrectedVectorJSON_NaNAsNull(t *testing.T) {
	v := domain.CorrectedVector{
		Time:         time.Date(2013, 4, 15, 6, 29, 0, 0, time.UTC),
		DeploymentID: "CE02SHSM-01",
		Lat:          math.NaN(),
		Lon:          -124.3,
		East:         math.NaN(),
		ModelEpoch:   2010,
	}

	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal with NaN components: %v", err)
	}
	if !strings.Contains(string(data), `"lat":null`) {
		t.Errorf("NaN lat should serialize as null, got %s", data)
	}

	var got domain.CorrectedVector
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !math.IsNaN(got.Lat) || !math.IsNaN(got.East) {
		t.Errorf("null components should come back NaN, got lat=%f east=%f", got.Lat, got.East)
	}
	if got.Lon != -124.3 {
		t.Errorf("finite component changed: got %f", got.Lon)
	}
}

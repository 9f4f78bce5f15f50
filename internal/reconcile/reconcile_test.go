package reconcile

import (
	"math"
	"testing"

	"toursync/internal/model"
)

func tick(second int64) *model.RawSample {
	s := model.NewRawSample()
	s.AbsoluteTime = second * 1000
	return s
}

func fix(second int64, lat, lon float64) *model.RawSample {
	s := tick(second)
	s.Latitude = lat
	s.Longitude = lon
	return s
}

func marker(second int64, label string) *model.RawSample {
	s := tick(second)
	s.Marker = true
	s.MarkerLabel = label
	return s
}

func TestMergeInterpolatesBetweenFixes(t *testing.T) {
	spine := model.SampleList{tick(0), tick(1), tick(2), tick(3), tick(4)}
	gps := model.SampleList{
		fix(0, 47.0, 8.0),
		fix(4, 47.4, 8.4),
	}

	res := Merge(spine, gps, nil)

	wantLat := []float64{47.0, 47.1, 47.2, 47.3, 47.4}
	for i, s := range res.Samples {
		if math.Abs(s.Latitude-wantLat[i]) > 1e-9 {
			t.Errorf("sample %d latitude = %v, want %v", i, s.Latitude, wantLat[i])
		}
		if math.Abs(s.Longitude-(wantLat[i]-39)) > 1e-9 {
			t.Errorf("sample %d longitude = %v, want %v", i, s.Longitude, wantLat[i]-39)
		}
	}
}

func TestMergeClampsOutsideFixRange(t *testing.T) {
	spine := model.SampleList{tick(0), tick(10), tick(20), tick(30)}
	gps := model.SampleList{
		fix(10, 47.0, 8.0),
		fix(20, 48.0, 9.0),
	}

	res := Merge(spine, gps, nil)

	if res.Samples[0].Latitude != 47.0 || res.Samples[0].Longitude != 8.0 {
		t.Errorf("sample before first fix = %v %v, want clamped to first fix",
			res.Samples[0].Latitude, res.Samples[0].Longitude)
	}
	if res.Samples[3].Latitude != 48.0 || res.Samples[3].Longitude != 9.0 {
		t.Errorf("sample after last fix = %v %v, want clamped to last fix",
			res.Samples[3].Latitude, res.Samples[3].Longitude)
	}
}

func TestMergeDegenerateFixSpan(t *testing.T) {
	spine := model.SampleList{tick(5)}
	gps := model.SampleList{
		fix(5, 47.0, 8.0),
		fix(5, 48.0, 9.0),
	}

	res := Merge(spine, gps, nil)

	// two fixes at the same instant: one of them wins, no blending
	if res.Samples[0].Latitude != 47.0 && res.Samples[0].Latitude != 48.0 {
		t.Errorf("latitude = %v, want one of the coincident fixes", res.Samples[0].Latitude)
	}
	if math.IsNaN(res.Samples[0].Latitude) {
		t.Error("degenerate span produced NaN")
	}
}

func TestMergeEmptyGPSLeavesPositionsAlone(t *testing.T) {
	s := tick(0)
	s.Latitude = 47.5
	s.Longitude = 8.5
	spine := model.SampleList{s, tick(1)}

	res := Merge(spine, nil, nil)

	if res.Samples[0].Latitude != 47.5 {
		t.Errorf("existing position overwritten: %v", res.Samples[0].Latitude)
	}
	if model.IsSet(res.Samples[1].Latitude) {
		t.Errorf("position invented for sample without one: %v", res.Samples[1].Latitude)
	}
}

func TestMergeMarkerAttachesToFirstTickAtOrAfter(t *testing.T) {
	spine := model.SampleList{tick(0), tick(10), tick(20), tick(30)}
	markers := model.SampleList{marker(15, "Lap 1")}

	res := Merge(spine, nil, markers)

	for i, s := range res.Samples {
		wantMarker := i == 2 // tick 20 is the first at or after second 15
		if s.Marker != wantMarker {
			t.Errorf("sample %d marker = %v, want %v", i, s.Marker, wantMarker)
		}
	}
	if res.Samples[2].MarkerLabel != "Lap 1" {
		t.Errorf("marker label = %q, want %q", res.Samples[2].MarkerLabel, "Lap 1")
	}
}

func TestMergeMarkerExactTimeMatch(t *testing.T) {
	spine := model.SampleList{tick(0), tick(10)}
	markers := model.SampleList{marker(10, "Lap 1")}

	res := Merge(spine, nil, markers)

	if !res.Samples[1].Marker {
		t.Error("marker at exact tick time not attached")
	}
}

func TestMergeMarkerPastEndDropped(t *testing.T) {
	spine := model.SampleList{tick(0), tick(10)}
	markers := model.SampleList{marker(99, "Lap 1")}

	res := Merge(spine, nil, markers)

	for i, s := range res.Samples {
		if s.Marker {
			t.Errorf("sample %d flagged by a marker past the spine end", i)
		}
	}
}

func TestMergeDropsDuplicateSeconds(t *testing.T) {
	a := tick(10)
	b := model.NewRawSample()
	b.AbsoluteTime = 10_400 // same truncated second as a
	c := tick(11)

	res := Merge(model.SampleList{a, b, c}, nil, nil)

	if len(res.Samples) != 2 {
		t.Fatalf("samples = %d, want 2", len(res.Samples))
	}
	if res.DroppedTicks != 1 {
		t.Errorf("dropped = %d, want 1", res.DroppedTicks)
	}
	if res.Samples[0] != a || res.Samples[1] != c {
		t.Error("wrong samples survived the duplicate drop")
	}
}

func TestMergeDuplicateKeepsMarker(t *testing.T) {
	// a lap boundary inside a sub-second burst: the burst sample is
	// dropped but its marker survives on the kept tick
	a := tick(10)
	b := marker(0, "Lap 2")
	b.AbsoluteTime = 10_400
	c := tick(11)

	res := Merge(model.SampleList{a, b, c}, nil, nil)

	if len(res.Samples) != 2 {
		t.Fatalf("samples = %d, want 2", len(res.Samples))
	}
	if res.DroppedTicks != 1 {
		t.Errorf("dropped = %d, want 1", res.DroppedTicks)
	}
	if !res.Samples[0].Marker || res.Samples[0].MarkerLabel != "Lap 2" {
		t.Errorf("kept tick marker = %v %q, want true %q",
			res.Samples[0].Marker, res.Samples[0].MarkerLabel, "Lap 2")
	}
}

func TestMergeKeepsTimelessSamples(t *testing.T) {
	a := model.NewRawSample()
	b := model.NewRawSample()

	res := Merge(model.SampleList{a, b}, nil, nil)

	if len(res.Samples) != 2 {
		t.Errorf("samples = %d, want 2 (timeless samples never deduped)", len(res.Samples))
	}
	if res.DroppedTicks != 0 {
		t.Errorf("dropped = %d, want 0", res.DroppedTicks)
	}
}

func TestMergeEmptySpine(t *testing.T) {
	res := Merge(nil, model.SampleList{fix(0, 47, 8)}, model.SampleList{marker(0, "x")})
	if len(res.Samples) != 0 {
		t.Errorf("samples = %d, want 0", len(res.Samples))
	}
}

package parser

import (
	"errors"
	"math"
	"testing"

	"toursync/internal/model"
)

const suuntoBasic = `<?xml version="1.0" encoding="UTF-8"?>
<sml xmlns="http://www.suunto.com/schemas/sml">
 <DeviceLog>
  <Header>
   <Energy>418400</Energy>
   <DateTime>2013-05-27T12:00:00</DateTime>
  </Header>
  <Device>
   <Name>Suunto Ambit</Name>
   <SW>2.0.4</SW>
  </Device>
  <Samples>
   <Sample>
    <SampleType>periodic</SampleType>
    <UTC>2013-05-27T12:00:00Z</UTC>
    <Altitude>440</Altitude>
    <Distance>0</Distance>
    <HR>2.4</HR>
    <Cadence>1.5</Cadence>
    <Temperature>294.65</Temperature>
   </Sample>
   <Sample>
    <SampleType>gps-base</SampleType>
    <UTC>2013-05-27T12:00:01Z</UTC>
    <Latitude>0.8203047</Latitude>
    <Longitude>0.1396263</Longitude>
   </Sample>
   <Sample>
    <SampleType>periodic</SampleType>
    <UTC>2013-05-27T12:00:10Z</UTC>
    <Altitude>442</Altitude>
    <Distance>55</Distance>
    <HR>2.5</HR>
   </Sample>
  </Samples>
 </DeviceLog>
</sml>`

func TestSuuntoParseBasic(t *testing.T) {
	parsed, err := NewSuuntoHandler().Parse([]byte(suuntoBasic))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if parsed.DeviceName != "Suunto Ambit" || parsed.DeviceFirmware != "2.0.4" {
		t.Errorf("device = %q fw %q", parsed.DeviceName, parsed.DeviceFirmware)
	}
	if parsed.Calories != 100 {
		t.Errorf("calories = %d, want 100 (418400 J)", parsed.Calories)
	}
	if len(parsed.Samples) != 2 {
		t.Fatalf("periodic samples = %d, want 2", len(parsed.Samples))
	}
	if len(parsed.GPS) != 1 {
		t.Fatalf("gps samples = %d, want 1", len(parsed.GPS))
	}

	first := parsed.Samples[0]
	if first.Pulse != 144 { // 2.4 Hz
		t.Errorf("pulse = %v, want 144", first.Pulse)
	}
	if first.Cadence != 90 { // 1.5 Hz
		t.Errorf("cadence = %v, want 90", first.Cadence)
	}
	if math.Abs(first.Temperature-21.5) > 1e-9 { // 294.65 K
		t.Errorf("temperature = %v, want 21.5", first.Temperature)
	}

	fix := parsed.GPS[0]
	if math.Abs(fix.Latitude-47.0) > 1e-4 || math.Abs(fix.Longitude-8.0) > 1e-4 {
		t.Errorf("position = %v %v, want ~47, ~8", fix.Latitude, fix.Longitude)
	}
}

func TestSuuntoRelativeSampleTime(t *testing.T) {
	doc := `<sml><DeviceLog>
	 <Header><DateTime>2013-05-27T12:00:00</DateTime></Header>
	 <Samples>
	  <Sample><SampleType>periodic</SampleType><UTC>2013-05-27T12:00:00Z</UTC><HR>2.0</HR></Sample>
	  <Sample><SampleType>periodic</SampleType><Time>10</Time><HR>2.1</HR></Sample>
	 </Samples>
	</DeviceLog></sml>`

	parsed, err := NewSuuntoHandler().Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(parsed.Samples) != 2 {
		t.Fatalf("samples = %d, want 2", len(parsed.Samples))
	}
	delta := parsed.Samples[1].AbsoluteTime - parsed.Samples[0].AbsoluteTime
	if delta != 10_000 {
		t.Errorf("relative sample delta = %d ms, want 10000", delta)
	}
}

func TestSuuntoRelativeTimeFallsBackToHeader(t *testing.T) {
	doc := `<sml><DeviceLog>
	 <Header><DateTime>2013-05-27T12:00:00</DateTime></Header>
	 <Samples>
	  <Sample><SampleType>periodic</SampleType><Time>5</Time><HR>2.0</HR></Sample>
	 </Samples>
	</DeviceLog></sml>`

	parsed, err := NewSuuntoHandler().Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(parsed.Samples) != 1 {
		t.Fatalf("samples = %d, want 1", len(parsed.Samples))
	}
	want, err := parseTimeMillis("2013-05-27T12:00:00")
	if err != nil {
		t.Fatal(err)
	}
	if got := parsed.Samples[0].AbsoluteTime; got != want+5_000 {
		t.Errorf("sample time = %d, want header+5s = %d", got, want+5_000)
	}
}

func TestSuuntoLapEvent(t *testing.T) {
	doc := `<sml><DeviceLog>
	 <Header><DateTime>2013-05-27T12:00:00</DateTime></Header>
	 <Samples>
	  <Sample><SampleType>periodic</SampleType><UTC>2013-05-27T12:00:00Z</UTC></Sample>
	  <Sample><UTC>2013-05-27T12:05:00Z</UTC><Events><Lap><Type>Manual</Type></Lap></Events></Sample>
	  <Sample><SampleType>periodic</SampleType><UTC>2013-05-27T12:10:00Z</UTC></Sample>
	 </Samples>
	</DeviceLog></sml>`

	parsed, err := NewSuuntoHandler().Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(parsed.Samples) != 2 {
		t.Errorf("periodic samples = %d, want 2", len(parsed.Samples))
	}
	if len(parsed.Markers) != 1 {
		t.Fatalf("markers = %d, want 1", len(parsed.Markers))
	}
	want, _ := parseTimeMillis("2013-05-27T12:05:00Z")
	if parsed.Markers[0].AbsoluteTime != want {
		t.Errorf("marker time = %d, want %d", parsed.Markers[0].AbsoluteTime, want)
	}
}

func TestSuuntoPauseSpans(t *testing.T) {
	doc := `<sml><DeviceLog>
	 <Header><DateTime>2013-05-27T12:00:00</DateTime></Header>
	 <Samples>
	  <Sample><SampleType>periodic</SampleType><UTC>2013-05-27T12:00:00Z</UTC></Sample>
	  <Sample><UTC>2013-05-27T12:01:00Z</UTC><Events><Pause><State>True</State></Pause></Events></Sample>
	  <Sample><UTC>2013-05-27T12:03:00Z</UTC><Events><Pause><State>False</State></Pause></Events></Sample>
	  <Sample><SampleType>periodic</SampleType><UTC>2013-05-27T12:04:00Z</UTC></Sample>
	 </Samples>
	</DeviceLog></sml>`

	parsed, err := NewSuuntoHandler().Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(parsed.Pauses) != 1 {
		t.Fatalf("pauses = %d, want 1", len(parsed.Pauses))
	}
	span := parsed.Pauses[0]
	if span.End-span.Start != 120_000 {
		t.Errorf("pause span = %d ms, want 120000", span.End-span.Start)
	}
}

func TestSuuntoSubSecondTimeTruncated(t *testing.T) {
	doc := `<sml><DeviceLog>
	 <Samples>
	  <Sample><SampleType>periodic</SampleType><UTC>2013-05-27T12:00:00.560Z</UTC></Sample>
	 </Samples>
	</DeviceLog></sml>`

	parsed, err := NewSuuntoHandler().Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(parsed.Samples) != 1 {
		t.Fatalf("samples = %d, want 1", len(parsed.Samples))
	}
	if got := parsed.Samples[0].AbsoluteTime % 1000; got != 0 {
		t.Errorf("sample time not truncated to seconds, remainder %d ms", got)
	}
}

func TestSuuntoWrongRootNotRecognized(t *testing.T) {
	doc := `<?xml version="1.0"?><gpx version="1.1"></gpx>`

	_, err := NewSuuntoHandler().Parse([]byte(doc))
	if !errors.Is(err, ErrNotRecognized) {
		t.Fatalf("err = %v, want ErrNotRecognized", err)
	}
}

func TestSuuntoMalformedDocument(t *testing.T) {
	doc := `<sml><DeviceLog><Samples><Sample><SampleType>periodic</Sample>`

	_, err := NewSuuntoHandler().Parse([]byte(doc))
	var malformed *MalformedError
	if !errors.As(err, &malformed) {
		t.Fatalf("err = %v, want *MalformedError", err)
	}
}

func TestSuuntoUnparsableSensorDegrades(t *testing.T) {
	doc := `<sml><DeviceLog>
	 <Samples>
	  <Sample><SampleType>periodic</SampleType><UTC>2013-05-27T12:00:00Z</UTC><HR>fast</HR></Sample>
	 </Samples>
	</DeviceLog></sml>`

	parsed, err := NewSuuntoHandler().Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if model.IsSet(parsed.Samples[0].Pulse) {
		t.Errorf("pulse = %v, want unset", parsed.Samples[0].Pulse)
	}
}

package importer

import (
	"errors"
	"testing"

	"toursync/internal/parser"
)

const gpxRide = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" xmlns="http://www.topografix.com/GPX/1/1">
 <trk><name>Test Ride</name><trkseg>
  <trkpt lat="47.0" lon="8.0"><time>2013-05-27T12:00:00Z</time></trkpt>
  <trkpt lat="47.001" lon="8.0"><time>2013-05-27T12:00:10Z</time></trkpt>
  <trkpt lat="47.002" lon="8.0"><time>2013-05-27T12:00:20Z</time></trkpt>
 </trkseg></trk>
</gpx>`

func TestImportGPXFile(t *testing.T) {
	index := NewMemoryIndex()
	im := New(index)

	tour, err := im.Import("ride.gpx", []byte(gpxRide))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}

	if tour.DeviceID != "gpx" {
		t.Errorf("device id = %q, want gpx", tour.DeviceID)
	}
	if tour.Title != "Test Ride" {
		t.Errorf("title = %q", tour.Title)
	}
	if tour.SampleCount() != 3 {
		t.Errorf("samples = %d, want 3", tour.SampleCount())
	}
	if tour.TourID == "" {
		t.Error("tour id empty")
	}
	if index.Len() != 1 {
		t.Errorf("stored tours = %d, want 1", index.Len())
	}
}

func TestImportDuplicateRejected(t *testing.T) {
	index := NewMemoryIndex()
	im := New(index)

	if _, err := im.Import("ride.gpx", []byte(gpxRide)); err != nil {
		t.Fatalf("first import: %v", err)
	}

	_, err := im.Import("ride-copy.gpx", []byte(gpxRide))
	if !errors.Is(err, ErrDuplicateTour) {
		t.Fatalf("second import err = %v, want ErrDuplicateTour", err)
	}
	if index.Len() != 1 {
		t.Errorf("stored tours = %d, want 1 after duplicate", index.Len())
	}
}

func TestImportUnrecognizedFormat(t *testing.T) {
	im := New(NewMemoryIndex())

	_, err := im.Import("notes.txt", []byte("just some text, not a device file"))
	if !errors.Is(err, parser.ErrUnrecognizedFormat) {
		t.Fatalf("err = %v, want ErrUnrecognizedFormat", err)
	}
}

func TestImportEmptyTrack(t *testing.T) {
	doc := `<?xml version="1.0"?>
	<gpx version="1.1" xmlns="http://www.topografix.com/GPX/1/1"><trk><trkseg></trkseg></trk></gpx>`

	im := New(NewMemoryIndex())
	_, err := im.Import("empty.gpx", []byte(doc))
	if !errors.Is(err, parser.ErrEmptyTrack) {
		t.Fatalf("err = %v, want ErrEmptyTrack", err)
	}
}

func TestImportHandlerChainFallsThrough(t *testing.T) {
	// Sniffs as XML but is neither gpx nor suunto: every handler
	// declines, nothing is half-parsed into a tour.
	doc := `<?xml version="1.0"?><kml xmlns="http://www.opengis.net/kml/2.2"></kml>`

	index := NewMemoryIndex()
	im := New(index)
	_, err := im.Import("route.kml", []byte(doc))
	if !errors.Is(err, parser.ErrUnrecognizedFormat) {
		t.Fatalf("err = %v, want ErrUnrecognizedFormat", err)
	}
	if index.Len() != 0 {
		t.Errorf("stored tours = %d, want 0", index.Len())
	}
}

func TestImportMalformedFile(t *testing.T) {
	doc := `<?xml version="1.0"?><gpx version="1.1" xmlns="http://www.topografix.com/GPX/1/1"><trk>`

	im := New(NewMemoryIndex())
	_, err := im.Import("broken.gpx", []byte(doc))
	if err == nil {
		t.Fatal("expected an error for truncated XML")
	}
	if errors.Is(err, parser.ErrUnrecognizedFormat) {
		t.Fatalf("err = %v; truncated file must fail as malformed, not unrecognized", err)
	}
}

func TestImportStationaryClimb(t *testing.T) {
	// identical coordinates with rising elevation: no distance, but the
	// altitude gain registers once the minimum interval has passed
	doc := `<?xml version="1.0"?>
	<gpx version="1.1" xmlns="http://www.topografix.com/GPX/1/1"><trk><trkseg>
	 <trkpt lat="47.0" lon="8.0"><ele>100</ele><time>2013-05-27T12:00:00Z</time></trkpt>
	 <trkpt lat="47.0" lon="8.0"><ele>110</ele><time>2013-05-27T12:00:10Z</time></trkpt>
	</trkseg></trk></gpx>`

	im := New(NewMemoryIndex())
	tour, err := im.Import("climb.gpx", []byte(doc))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if tour.TourDistance != 0 {
		t.Errorf("distance = %v, want 0 for identical positions", tour.TourDistance)
	}
	if tour.AltitudeUp != 10 {
		t.Errorf("altitude up = %v, want 10", tour.AltitudeUp)
	}
}

func TestImportSuuntoFile(t *testing.T) {
	doc := `<sml><DeviceLog>
	 <Header><DateTime>2013-05-27T12:00:00</DateTime></Header>
	 <Device><Name>Suunto Ambit</Name><SW>2.0</SW></Device>
	 <Samples>
	  <Sample><SampleType>periodic</SampleType><UTC>2013-05-27T12:00:00Z</UTC><Distance>0</Distance></Sample>
	  <Sample><SampleType>gps-base</SampleType><UTC>2013-05-27T12:00:00Z</UTC>
	   <Latitude>0.8203047</Latitude><Longitude>0.1396263</Longitude></Sample>
	  <Sample><SampleType>periodic</SampleType><UTC>2013-05-27T12:00:10Z</UTC><Distance>55</Distance></Sample>
	 </Samples>
	</DeviceLog></sml>`

	im := New(NewMemoryIndex())
	tour, err := im.Import("move.sml", []byte(doc))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if tour.DeviceID != "suunto" {
		t.Errorf("device id = %q, want suunto", tour.DeviceID)
	}
	if tour.DeviceName != "Suunto Ambit" {
		t.Errorf("device name = %q", tour.DeviceName)
	}
	// positions come from the gps sub-stream
	lat, _ := tour.StartPosition()
	if lat < 46.9 || lat > 47.1 {
		t.Errorf("start latitude = %v, want ~47", lat)
	}
}

package parser

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"toursync/internal/geo"
	"toursync/internal/model"
)

// GPX namespaces; both are accepted, the version is otherwise not
// behaviorally significant.
const (
	gpxNamespace10 = "http://www.topografix.com/GPX/1/0"
	gpxNamespace11 = "http://www.topografix.com/GPX/1/1"
)

// Creators that export local time instead of UTC.
const (
	gpxCreatorPolarWebSync = "Polar WebSync 2.3 - www.polar.fi"
	gpxCreatorGH615        = "code.google.com/p/GH615"
)

const (
	gpxVersionUnknown = -1
	gpxVersion10      = 10
	gpxVersion11      = 11
)

// GPXHandler parses GPX 1.0 and 1.1 track files, including the common
// trackpoint extensions for heart rate, cadence, temperature and
// distance, the cluetrust gpxdata lap extension and waypoints.
type GPXHandler struct {
	// mergeTracks concatenates all tracks of one file into a single
	// tour; each track after the first contributes a track marker.
	mergeTracks bool
}

func NewGPXHandler() *GPXHandler {
	return &GPXHandler{mergeTracks: true}
}

func (h *GPXHandler) Name() string { return "gpx" }

func (h *GPXHandler) UniqueSuffix() string { return "42001" }

func (h *GPXHandler) Sniff(data []byte) bool {
	return DetectFileType(data) == FileTypeGPX
}

func (h *GPXHandler) Parse(data []byte) (*ParsedFile, error) {
	p := &gpxParser{
		mergeTracks: h.mergeTracks,
		version:     gpxVersionUnknown,
	}

	dec := xml.NewDecoder(bytes.NewReader(data))

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			if syn, ok := err.(*xml.SyntaxError); ok {
				return nil, &MalformedError{Line: syn.Line, Msg: syn.Msg}
			}
			return nil, &MalformedError{Msg: err.Error()}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			p.startElement(t)
		case xml.CharData:
			p.characters(t)
		case xml.EndElement:
			p.endElement(t)
		}

		// A broken required timestamp puts the parser into an error
		// state; the rest of the document is ignored.
		if p.err != nil {
			return nil, p.err
		}
	}

	if p.version == gpxVersionUnknown {
		return nil, ErrNotRecognized
	}

	return p.finish(), nil
}

// gpxLap is one cluetrust gpxdata lap while it is being read.
type gpxLap struct {
	index     string
	startTime int64 // epoch millis
	elapsed   int64 // seconds
	latitude  float64
	longitude float64
	distance  float64
}

// gpxLocation is where in the document the parser currently is. One
// value replaces the mutual-exclusion bookkeeping of per-element
// boolean flags.
type gpxLocation int

const (
	locDocument gpxLocation = iota
	locTrack
	locTrackpoint
	locWaypoint
	locLap
)

// gpxParser is the per-file parse state: one location value, an
// extensions flag and one capture slot.
type gpxParser struct {
	mergeTracks bool

	version   int
	localTime bool
	err       error

	loc gpxLocation
	// lapReturn is the location to restore when the lap closes; the
	// gpxdata lap extension appears both at document and at track level.
	lapReturn gpxLocation
	inExt     bool

	// capture is the local name of the element whose character data is
	// being accumulated, empty when none. The buffer is reset, not
	// reallocated, between elements.
	capture string
	chars   strings.Builder

	sample        *model.RawSample
	prevSample    *model.RawSample
	pointDistance float64 // incremental <gpxdata:distance> of the point

	absoluteDistance float64
	trackCounter     int
	setTrackMarker   bool

	trkName string

	wpt *model.Waypoint
	lap *gpxLap

	samples   model.SampleList
	laps      []*gpxLap
	waypoints []model.Waypoint
}

func (p *gpxParser) beginCapture(name string) {
	p.capture = name
	p.chars.Reset()
}

func (p *gpxParser) endCapture() string {
	p.capture = ""
	return p.chars.String()
}

func (p *gpxParser) characters(cd xml.CharData) {
	if p.capture != "" {
		p.chars.Write(cd)
	}
}

func (p *gpxParser) startElement(el xml.StartElement) {
	name := el.Name.Local

	if p.version == gpxVersionUnknown {
		if name == "gpx" {
			p.readRoot(el)
		}
		return
	}

	switch p.loc {
	case locTrackpoint:
		switch name {
		case "ele", "time", "cad", "cadence", "hr", "heartrate", "atemp", "power", "distance":
			p.beginCapture(name)
		}

	case locLap:
		switch name {
		case "index", "startTime", "elapsedTime", "distance":
			p.beginCapture(name)
		case "endPoint":
			p.lap.latitude = attrFloat(el, "lat")
			p.lap.longitude = attrFloat(el, "lon")
		}

	case locWaypoint:
		switch name {
		case "ele", "time", "name", "cmt", "desc", "sym", "type":
			p.beginCapture(name)
		}

	case locTrack:
		switch name {
		case "trkpt":
			p.loc = locTrackpoint
			p.sample = model.NewRawSample()
			p.pointDistance = model.NoValue
			p.sample.Latitude = attrFloat(el, "lat")
			p.sample.Longitude = attrFloat(el, "lon")
		case "name":
			p.beginCapture(name)
		case "extensions":
			p.inExt = true
		case "lap":
			if p.inExt {
				p.enterLap()
			}
		}

	default: // locDocument
		switch name {
		case "trk":
			p.loc = locTrack
			p.trackCounter++
			if p.mergeTracks && p.trackCounter > 1 {
				p.setTrackMarker = true
			}
		case "wpt":
			p.loc = locWaypoint
			p.wpt = &model.Waypoint{
				Altitude:  model.NoValue,
				Time:      model.NoTime,
				Latitude:  attrFloat(el, "lat"),
				Longitude: attrFloat(el, "lon"),
			}
		case "extensions":
			p.inExt = true
		case "lap":
			// cluetrust exports put the lap list either inside <trk> or
			// directly under the gpx root
			if p.inExt {
				p.enterLap()
			}
		}
	}
}

func (p *gpxParser) enterLap() {
	p.lapReturn = p.loc
	p.loc = locLap
	p.lap = &gpxLap{
		startTime: model.NoTime,
		latitude:  model.NoValue,
		longitude: model.NoValue,
		distance:  model.NoValue,
	}
}

func (p *gpxParser) endElement(el xml.EndElement) {
	name := el.Name.Local

	if p.version == gpxVersionUnknown {
		return
	}

	switch p.loc {
	case locTrackpoint:
		if name == "trkpt" {
			p.loc = locTrack
			p.finalizeTrackpoint()
			return
		}
		p.endTrackpointField(name)

	case locLap:
		if name == "lap" {
			p.loc = p.lapReturn
			if p.lap != nil {
				p.laps = append(p.laps, p.lap)
				p.lap = nil
			}
			return
		}
		p.endLapField(name)

	case locWaypoint:
		if name == "wpt" {
			p.loc = locDocument
			p.finalizeWaypoint()
			return
		}
		p.endWaypointField(name)

	case locTrack:
		switch name {
		case "trk":
			p.loc = locDocument
		case "name":
			if p.capture == "name" {
				p.trkName = p.endCapture()
			}
		case "extensions":
			p.inExt = false
		}

	default: // locDocument
		if name == "extensions" {
			p.inExt = false
		}
	}
}

func (p *gpxParser) endTrackpointField(name string) {
	if p.capture != name {
		return
	}
	text := p.endCapture()

	switch name {
	case "ele":
		p.sample.Altitude = parseFloat(text)
	case "time":
		millis, err := parseTimeMillis(text)
		if err != nil {
			p.err = fmt.Errorf("trackpoint time %q: %w", text, ErrInvalidStartTime)
			return
		}
		p.sample.AbsoluteTime = millis
	case "cad", "cadence":
		p.sample.Cadence = parseFloat(text)
	case "hr", "heartrate":
		p.sample.Pulse = parseFloat(text)
	case "atemp":
		p.sample.Temperature = parseFloat(text)
	case "power":
		p.sample.Power = parseFloat(text)
	case "distance":
		p.pointDistance = parseFloat(text)
	}
}

func (p *gpxParser) endLapField(name string) {
	if p.capture != name {
		return
	}
	text := p.endCapture()

	switch name {
	case "index":
		p.lap.index = text
	case "startTime":
		millis, err := parseTimeMillis(text)
		if err != nil {
			p.err = fmt.Errorf("lap start time %q: %w", text, ErrInvalidStartTime)
			return
		}
		p.lap.startTime = millis
	case "elapsedTime":
		if v := parseFloat(text); model.IsSet(v) {
			p.lap.elapsed = int64(v)
		}
	case "distance":
		p.lap.distance = parseFloat(text)
	}
}

func (p *gpxParser) endWaypointField(name string) {
	if p.capture != name {
		return
	}
	text := p.endCapture()

	switch name {
	case "ele":
		p.wpt.Altitude = parseFloat(text)
	case "time":
		if millis, err := parseTimeMillis(text); err == nil {
			p.wpt.Time = millis
		}
	case "name":
		p.wpt.Name = text
	case "cmt":
		p.wpt.Comment = text
	case "desc":
		p.wpt.Description = text
	case "sym":
		p.wpt.Symbol = text
	case "type":
		p.wpt.Category = text
	}
}

// readRoot inspects the gpx root element: the namespace selects the
// dialect variant, the creator flags local-time exports.
func (p *gpxParser) readRoot(el xml.StartElement) {
	check := func(value string) {
		switch {
		case strings.Contains(value, gpxNamespace10):
			p.version = gpxVersion10
		case strings.Contains(value, gpxNamespace11):
			p.version = gpxVersion11
		case strings.Contains(value, gpxCreatorPolarWebSync),
			strings.Contains(value, gpxCreatorGH615):
			p.localTime = true
		}
	}

	check(el.Name.Space)
	for _, attr := range el.Attr {
		check(attr.Value)
	}
}

// finalizeTrackpoint completes the current sample: trackpoints without a
// position are dropped, the absolute distance is accumulated and the
// first point of a merged track becomes a track marker.
func (p *gpxParser) finalizeTrackpoint() {
	sample := p.sample
	p.sample = nil
	if sample == nil || !sample.HasPosition() {
		return
	}

	if p.prevSample == nil {
		// first point of the tour
		p.absoluteDistance = 0
		sample.Distance = 0
	} else {
		switch {
		case model.IsSet(p.pointDistance):
			// <gpxdata:distance> is the increment since the last point
			p.absoluteDistance += p.pointDistance
		case p.prevSample.HasPosition():
			p.absoluteDistance += geo.DistanceMeters(
				p.prevSample.Latitude, p.prevSample.Longitude,
				sample.Latitude, sample.Longitude)
		}
		sample.Distance = p.absoluteDistance
	}

	if p.setTrackMarker {
		p.setTrackMarker = false
		sample.Marker = true
		sample.MarkerLabel = fmt.Sprintf("Track %d", p.trackCounter)
	}

	p.samples = append(p.samples, sample)
	p.prevSample = sample
}

// finalizeWaypoint keeps the waypoint only when its required position is
// present.
func (p *gpxParser) finalizeWaypoint() {
	wpt := p.wpt
	p.wpt = nil
	if wpt == nil || !model.IsSet(wpt.Latitude) || !model.IsSet(wpt.Longitude) {
		return
	}
	p.waypoints = append(p.waypoints, *wpt)
}

// finish assembles the ParsedFile. Each lap is resolved against the
// track: a lap whose endPoint coincides with an existing trackpoint
// marks that point, every other lap becomes a synthetic sample at the
// lap boundary time carrying the lap position and the distance
// accumulated over the laps so far.
func (p *gpxParser) finish() *ParsedFile {
	lapDistance := 0.0
	haveLapDistance := false
	needsSort := false

	for i, lap := range p.laps {
		if lap.startTime == model.NoTime {
			continue
		}
		if model.IsSet(lap.distance) {
			lapDistance += lap.distance
			haveLapDistance = true
		}
		label := "Lap " + lapLabel(lap.index, i)

		if s := p.sampleAt(lap.latitude, lap.longitude); s != nil {
			s.Marker = true
			s.MarkerLabel = label
			continue
		}

		s := model.NewRawSample()
		s.AbsoluteTime = lap.startTime + lap.elapsed*1000
		s.Latitude = lap.latitude
		s.Longitude = lap.longitude
		if haveLapDistance {
			s.Distance = lapDistance
		}
		s.Marker = true
		s.MarkerLabel = label
		p.samples = append(p.samples, s)
		needsSort = true
	}
	if needsSort {
		p.samples.SortByTime()
	}

	return &ParsedFile{
		Title:     p.trkName,
		LocalTime: p.localTime,
		Samples:   p.samples,
		Waypoints: p.waypoints,
	}
}

// sampleAt returns the first trackpoint at exactly this position, nil
// when the position is unset or nothing matches.
func (p *gpxParser) sampleAt(lat, lon float64) *model.RawSample {
	if !model.IsSet(lat) || !model.IsSet(lon) {
		return nil
	}
	for _, s := range p.samples {
		if s.Latitude == lat && s.Longitude == lon {
			return s
		}
	}
	return nil
}

// lapLabel numbers a lap from its 0-based index element, falling back to
// the document order when the index is absent or unparsable.
func lapLabel(index string, position int) string {
	if n, err := strconv.Atoi(strings.TrimSpace(index)); err == nil {
		return strconv.Itoa(n + 1)
	}
	return strconv.Itoa(position + 1)
}

// attrFloat reads a float attribute, returning the unset sentinel when
// the attribute is absent or unparsable.
func attrFloat(el xml.StartElement, name string) float64 {
	for _, attr := range el.Attr {
		if attr.Name.Local == name {
			return parseFloat(attr.Value)
		}
	}
	return model.NoValue
}

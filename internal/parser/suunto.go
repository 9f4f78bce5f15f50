package parser

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"toursync/internal/model"
)

// Suunto unit conversions. Positions are stored in radians, heart rate
// and cadence in hertz, temperature in kelvin.
const (
	radianToDegree   = 57.2957795131
	absoluteZero     = -273.15
	joulesPerCalorie = 4184
)

// Suunto sample types. GPS fixes arrive in their own samples, separate
// from the periodic sensor samples.
const (
	suuntoSamplePeriodic = "periodic"
	suuntoSampleGPSBase  = "gps-base"
	suuntoSampleGPSSmall = "gps-small"
	suuntoSampleGPSTiny  = "gps-tiny"
)

// SuuntoHandler parses the Suunto DeviceLog XML dialect (Moveslink2
// exports, sml container or bare DeviceLog).
type SuuntoHandler struct{}

func NewSuuntoHandler() *SuuntoHandler {
	return &SuuntoHandler{}
}

func (h *SuuntoHandler) Name() string { return "suunto" }

func (h *SuuntoHandler) UniqueSuffix() string { return "42002" }

func (h *SuuntoHandler) Sniff(data []byte) bool {
	return DetectFileType(data) == FileTypeSuunto
}

func (h *SuuntoHandler) Parse(data []byte) (*ParsedFile, error) {
	p := &suuntoParser{
		tourStartTime: model.NoTime,
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

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch start.Name.Local {
		case "DeviceLog":
			p.recognized = true
		case "Header":
			err = p.parseHeader(dec)
		case "Device":
			err = p.parseDevice(dec)
		case "Samples":
			err = p.parseSamples(dec)
		}
		if err != nil {
			return nil, err
		}
	}

	if !p.recognized {
		return nil, ErrNotRecognized
	}

	return p.finish(), nil
}

type suuntoParser struct {
	recognized bool

	tourStartTime int64 // header DateTime, used when a sample has no time
	deviceName    string
	deviceSW      string
	calories      int

	samples model.SampleList
	gps     model.SampleList
	markers model.SampleList

	pauseStarts []int64
	pauseEnds   []int64
}

// elementText drains one element, returning its accumulated character
// data. The builder is reused by the caller's loop, never reallocated
// per element.
func elementText(dec *xml.Decoder, name string, buf *strings.Builder) (string, error) {
	buf.Reset()
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.CharData:
			buf.Write(t)
		case xml.EndElement:
			if t.Name.Local == name {
				return buf.String(), nil
			}
		case xml.StartElement:
			if err := dec.Skip(); err != nil {
				return "", err
			}
		}
	}
}

func (p *suuntoParser) parseHeader(dec *xml.Decoder) error {
	var buf strings.Builder

	for {
		tok, err := dec.Token()
		if err != nil {
			return wrapSuuntoXML(err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			text, err := elementText(dec, t.Name.Local, &buf)
			if err != nil {
				return wrapSuuntoXML(err)
			}

			switch t.Name.Local {
			case "Energy":
				if v := parseFloat(text); model.IsSet(v) {
					p.calories = int(v / joulesPerCalorie)
				}
			case "DateTime":
				millis, err := parseTimeMillis(text)
				if err != nil {
					return fmt.Errorf("header DateTime %q: %w", text, ErrInvalidStartTime)
				}
				p.tourStartTime = millis
			}

		case xml.EndElement:
			if t.Name.Local == "Header" {
				return nil
			}
		}
	}
}

func (p *suuntoParser) parseDevice(dec *xml.Decoder) error {
	var buf strings.Builder

	for {
		tok, err := dec.Token()
		if err != nil {
			return wrapSuuntoXML(err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			text, err := elementText(dec, t.Name.Local, &buf)
			if err != nil {
				return wrapSuuntoXML(err)
			}

			switch t.Name.Local {
			case "Name":
				p.deviceName = text
			case "SW":
				p.deviceSW = text
			}

		case xml.EndElement:
			if t.Name.Local == "Device" {
				return nil
			}
		}
	}
}

func (p *suuntoParser) parseSamples(dec *xml.Decoder) error {
	for {
		tok, err := dec.Token()
		if err != nil {
			return wrapSuuntoXML(err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "Sample" {
				if err := p.parseSample(dec); err != nil {
					return err
				}
			}

		case xml.EndElement:
			if t.Name.Local == "Samples" {
				return nil
			}
		}
	}
}

// suuntoSample is one <Sample> while it is being read. The sample type
// decides which sub-stream it lands in.
type suuntoSample struct {
	sampleType string
	utcTime    int64
	relTime    int64 // seconds since tour start, -1 when unset

	sample *model.RawSample // periodic fields
	gps    *model.RawSample // position fields
	marker bool
}

func (p *suuntoParser) parseSample(dec *xml.Decoder) error {
	cur := &suuntoSample{
		utcTime: model.NoTime,
		relTime: -1,
		sample:  model.NewRawSample(),
		gps:     model.NewRawSample(),
	}

	var buf strings.Builder

	for {
		tok, err := dec.Token()
		if err != nil {
			return wrapSuuntoXML(err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {

			// parseEvents consumes the whole subtree, so a <Distance>
			// inside an event never reaches the sample fields below.
			case "Events":
				if err := p.parseEvents(dec, cur); err != nil {
					return err
				}

			case "SampleType":
				text, err := elementText(dec, t.Name.Local, &buf)
				if err != nil {
					return wrapSuuntoXML(err)
				}
				cur.sampleType = strings.TrimSpace(text)

			case "Altitude":
				text, err := elementText(dec, t.Name.Local, &buf)
				if err != nil {
					return wrapSuuntoXML(err)
				}
				cur.sample.Altitude = parseFloat(text)

			case "Cadence":
				text, err := elementText(dec, t.Name.Local, &buf)
				if err != nil {
					return wrapSuuntoXML(err)
				}
				if v := parseFloat(text); model.IsSet(v) {
					cur.sample.Cadence = v * 60 // Hz -> rpm
				}

			case "Distance":
				text, err := elementText(dec, t.Name.Local, &buf)
				if err != nil {
					return wrapSuuntoXML(err)
				}
				cur.sample.Distance = parseFloat(text)

			case "HR":
				text, err := elementText(dec, t.Name.Local, &buf)
				if err != nil {
					return wrapSuuntoXML(err)
				}
				if v := parseFloat(text); model.IsSet(v) {
					cur.sample.Pulse = v * 60 // Hz -> bpm
				}

			case "Latitude":
				text, err := elementText(dec, t.Name.Local, &buf)
				if err != nil {
					return wrapSuuntoXML(err)
				}
				if v := parseFloat(text); model.IsSet(v) {
					cur.gps.Latitude = v * radianToDegree
				}

			case "Longitude":
				text, err := elementText(dec, t.Name.Local, &buf)
				if err != nil {
					return wrapSuuntoXML(err)
				}
				if v := parseFloat(text); model.IsSet(v) {
					cur.gps.Longitude = v * radianToDegree
				}

			case "Temperature":
				text, err := elementText(dec, t.Name.Local, &buf)
				if err != nil {
					return wrapSuuntoXML(err)
				}
				if v := parseFloat(text); model.IsSet(v) {
					cur.sample.Temperature = v + absoluteZero // K -> degC
				}

			case "Power":
				text, err := elementText(dec, t.Name.Local, &buf)
				if err != nil {
					return wrapSuuntoXML(err)
				}
				cur.sample.Power = parseFloat(text)

			case "UTC":
				text, err := elementText(dec, t.Name.Local, &buf)
				if err != nil {
					return wrapSuuntoXML(err)
				}
				millis, err := parseTimeMillis(text)
				if err != nil {
					return fmt.Errorf("sample UTC %q: %w", text, ErrInvalidStartTime)
				}
				cur.utcTime = millis

			case "Time":
				text, err := elementText(dec, t.Name.Local, &buf)
				if err != nil {
					return wrapSuuntoXML(err)
				}
				if v := parseFloat(text); model.IsSet(v) {
					cur.relTime = int64(v)
				}
			}

		case xml.EndElement:
			if t.Name.Local == "Sample" {
				p.finalizeSample(cur)
				return nil
			}
		}
	}
}

func (p *suuntoParser) parseEvents(dec *xml.Decoder, cur *suuntoSample) error {
	for {
		tok, err := dec.Token()
		if err != nil {
			return wrapSuuntoXML(err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "Lap":
				cur.marker = true
			case "Pause":
				if err := p.parsePause(dec, cur); err != nil {
					return err
				}
			}

		case xml.EndElement:
			if t.Name.Local == "Events" {
				return nil
			}
		}
	}
}

func (p *suuntoParser) parsePause(dec *xml.Decoder, cur *suuntoSample) error {
	var buf strings.Builder

	for {
		tok, err := dec.Token()
		if err != nil {
			return wrapSuuntoXML(err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "State" {
				text, err := elementText(dec, t.Name.Local, &buf)
				if err != nil {
					return wrapSuuntoXML(err)
				}
				switch strings.ToLower(strings.TrimSpace(text)) {
				case "true":
					p.pauseStarts = append(p.pauseStarts, cur.utcTime)
				case "false":
					if len(p.pauseStarts) > len(p.pauseEnds) {
						p.pauseEnds = append(p.pauseEnds, cur.utcTime)
					}
				}
			}

		case xml.EndElement:
			if t.Name.Local == "Pause" {
				return nil
			}
		}
	}
}

// finalizeSample routes the finished sample into its sub-stream. The
// sample time is truncated to seconds because markers are keyed by
// second and multiple samples can share a second with different
// milliseconds.
func (p *suuntoParser) finalizeSample(cur *suuntoSample) {
	var sampleTime int64

	switch {
	case cur.utcTime != model.NoTime:
		sampleTime = cur.utcTime / 1000 * 1000

	case cur.relTime >= 0:
		// relative time counts from the first absolute sample time,
		// falling back to the header start time
		if len(p.samples) > 0 && p.samples[0].HasTime() {
			sampleTime = (p.samples[0].AbsoluteTime/1000 + cur.relTime) * 1000
		} else if p.tourStartTime != model.NoTime {
			sampleTime = p.tourStartTime + cur.relTime*1000
		} else {
			sampleTime = model.NoTime
		}

	default:
		sampleTime = p.tourStartTime
	}

	// A lap has no sample type of its own.
	if cur.marker {
		marker := model.NewRawSample()
		marker.AbsoluteTime = sampleTime
		marker.Marker = true
		p.markers = append(p.markers, marker)
		return
	}

	switch cur.sampleType {
	case suuntoSamplePeriodic:
		cur.sample.AbsoluteTime = sampleTime
		p.samples = append(p.samples, cur.sample)

	case suuntoSampleGPSBase, suuntoSampleGPSSmall, suuntoSampleGPSTiny:
		cur.gps.AbsoluteTime = sampleTime
		p.gps = append(p.gps, cur.gps)
	}
}

func (p *suuntoParser) finish() *ParsedFile {
	parsed := &ParsedFile{
		DeviceName:     p.deviceName,
		DeviceFirmware: p.deviceSW,
		Calories:       p.calories,
		Samples:        p.samples,
		GPS:            p.gps,
		Markers:        p.markers,
	}

	for i := 0; i < len(p.pauseEnds); i++ {
		start, end := p.pauseStarts[i], p.pauseEnds[i]
		if start == model.NoTime || end == model.NoTime || end < start {
			continue
		}
		parsed.Pauses = append(parsed.Pauses, model.PauseSpan{Start: start, End: end})
	}

	return parsed
}

func wrapSuuntoXML(err error) error {
	if err == io.EOF {
		return &MalformedError{Msg: "unexpected end of document"}
	}
	if syn, ok := err.(*xml.SyntaxError); ok {
		return &MalformedError{Line: syn.Line, Msg: syn.Msg}
	}
	return &MalformedError{Msg: err.Error()}
}

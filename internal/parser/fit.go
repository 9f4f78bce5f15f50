package parser

import (
	"bytes"
	"fmt"
	"math"

	"github.com/tormoder/fit"

	"toursync/internal/model"
)

// FITHandler parses Garmin FIT activity files through the tormoder/fit
// decoder. Unlike the XML dialects there is no pull loop; the decoder
// hands back typed messages and this handler only maps them onto the
// sub-streams.
type FITHandler struct{}

func NewFITHandler() *FITHandler {
	return &FITHandler{}
}

func (h *FITHandler) Name() string { return "fit" }

func (h *FITHandler) UniqueSuffix() string { return "42003" }

func (h *FITHandler) Sniff(data []byte) bool {
	return DetectFileType(data) == FileTypeFIT
}

func (h *FITHandler) Parse(data []byte) (*ParsedFile, error) {
	fitFile, err := fit.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &MalformedError{Msg: fmt.Sprintf("fit decode: %v", err)}
	}

	activity, err := fitFile.Activity()
	if err != nil {
		// A valid FIT file of another kind (workout, course, settings)
		// is not ours to parse.
		return nil, ErrNotRecognized
	}

	parsed := &ParsedFile{
		DeviceName: fitFile.FileId.Manufacturer.String(),
	}

	if len(activity.Sessions) > 0 {
		session := activity.Sessions[0]
		if session.TotalCalories != math.MaxUint16 {
			parsed.Calories = int(session.TotalCalories)
		}
		if timer := session.GetTotalTimerTimeScaled(); !math.IsNaN(timer) && timer > 0 {
			parsed.DeviceDrivingTime = int(timer)
		}
		if session.Sport != 0xFF { // 0xFF is the invalid enum sentinel
			parsed.Title = session.Sport.String()
		}
	}

	for _, rec := range activity.Records {
		if rec == nil || rec.Timestamp.IsZero() {
			continue
		}

		sample := model.NewRawSample()
		sample.AbsoluteTime = rec.Timestamp.UnixMilli()

		// Degrees() yields NaN for the invalid semicircle sentinel, and
		// IsSet already treats NaN as unset.
		sample.Latitude = rec.PositionLat.Degrees()
		sample.Longitude = rec.PositionLong.Degrees()

		if alt := rec.GetAltitudeScaled(); !math.IsNaN(alt) {
			sample.Altitude = alt
		}
		if dist := rec.GetDistanceScaled(); !math.IsNaN(dist) {
			sample.Distance = dist
		}
		if rec.HeartRate != math.MaxUint8 {
			sample.Pulse = float64(rec.HeartRate)
		}
		if rec.Cadence != math.MaxUint8 {
			sample.Cadence = float64(rec.Cadence)
		}
		if rec.Temperature != math.MaxInt8 {
			sample.Temperature = float64(rec.Temperature)
		}
		if rec.Power != math.MaxUint16 {
			sample.Power = float64(rec.Power)
		}

		parsed.Samples = append(parsed.Samples, sample)
	}

	for i, lap := range activity.Laps {
		if lap == nil || lap.Timestamp.IsZero() {
			continue
		}
		// A single lap spanning the whole session is not a marker, it
		// is the session itself.
		if len(activity.Laps) == 1 {
			break
		}
		marker := model.NewRawSample()
		marker.AbsoluteTime = lap.Timestamp.UnixMilli()
		marker.Marker = true
		marker.MarkerLabel = fmt.Sprintf("Lap %d", i+1)
		parsed.Markers = append(parsed.Markers, marker)
	}

	return parsed, nil
}

// Package assemble folds a merged sample sequence into the normalized
// tour record: parallel series, markers, scalar aggregates and the
// content-derived tour id.
package assemble

import (
	"errors"
	"math"
	"time"

	"toursync/internal/model"
)

// ErrNoSamples means the merged sequence contains no sample with a
// usable timestamp, so no tour can be assembled.
var ErrNoSamples = errors.New("no timed samples to assemble")

// Source carries the file-level metadata the parser extracted, everything
// about the tour that is not a sample.
type Source struct {
	Title          string
	DeviceID       string
	DeviceName     string
	DeviceFirmware string
	Calories       int

	// UniqueSuffix disambiguates distanceless tours between formats.
	UniqueSuffix string

	// DeviceDrivingTime is the device-reported active time in seconds,
	// 0 when absent. When set it wins over any derived moving time.
	DeviceDrivingTime int

	Pauses    []model.PauseSpan
	Waypoints []model.Waypoint
}

// Options tunes the assembly. The zero value is not useful, call
// DefaultOptions.
type Options struct {
	// MinAltitudeInterval is the minimum number of seconds between two
	// altitude registrations for the up/down totals. Shorter intervals
	// are barometric noise, not climbing.
	MinAltitudeInterval int64

	// StillSpeedThreshold is the speed in m/s below which an interval
	// counts as standing still and is excluded from the derived driving
	// time.
	StillSpeedThreshold float64
}

func DefaultOptions() Options {
	return Options{
		MinAltitudeInterval: 10,
		StillSpeedThreshold: 0.5,
	}
}

// Build assembles the tour record from the merged sample sequence.
// Samples without a timestamp are skipped; at least one timed sample is
// required.
func Build(samples model.SampleList, src Source, opts Options) (*model.TourRecord, error) {
	timed := make(model.SampleList, 0, len(samples))
	for _, s := range samples {
		if s.HasTime() {
			timed = append(timed, s)
		}
	}
	if len(timed) == 0 {
		return nil, ErrNoSamples
	}

	startMillis := timed[0].AbsoluteTime
	start := time.UnixMilli(startMillis).UTC()
	_, isoWeek := start.ISOWeek()

	tour := &model.TourRecord{
		StartTime:   start,
		StartYear:   start.Year(),
		StartMonth:  int(start.Month()),
		StartDay:    start.Day(),
		StartHour:   start.Hour(),
		StartMinute: start.Minute(),
		StartSecond: start.Second(),
		StartWeek:   isoWeek,

		DeviceID:       src.DeviceID,
		DeviceName:     src.DeviceName,
		DeviceFirmware: src.DeviceFirmware,
		Title:          src.Title,
		Calories:       src.Calories,
		Waypoints:      src.Waypoints,
	}

	buildSeries(tour, timed, startMillis)
	buildMarkers(tour, timed)

	n := tour.SampleCount()
	tour.RecordingDuration = tour.TimeSerie[n-1]
	tour.TourDistance = tour.DistanceSerie[n-1]

	computeAltitudeUpDown(tour, opts.MinAltitudeInterval)
	computeDrivingDuration(tour, src, startMillis, opts.StillSpeedThreshold)
	computeScalars(tour, timed)

	tour.TourID = DedupKey(tour, src.UniqueSuffix)

	return tour, nil
}

// buildSeries fills the parallel series. Distance and altitude are
// carried forward over gaps so the series never step backwards; the
// remaining sensor series keep their unset entries.
func buildSeries(tour *model.TourRecord, timed model.SampleList, startMillis int64) {
	n := len(timed)
	tour.TimeSerie = make([]int64, n)
	tour.DistanceSerie = make([]float64, n)
	tour.AltitudeSerie = make([]float64, n)
	tour.LatitudeSerie = make([]float64, n)
	tour.LongitudeSerie = make([]float64, n)
	tour.PulseSerie = make([]float64, n)
	tour.CadenceSerie = make([]float64, n)
	tour.TemperatureSerie = make([]float64, n)
	tour.PowerSerie = make([]float64, n)

	lastDistance := 0.0
	lastAltitude := model.NoValue

	for i, s := range timed {
		tour.TimeSerie[i] = (s.AbsoluteTime - startMillis) / 1000

		if model.IsSet(s.Distance) && s.Distance >= lastDistance {
			lastDistance = s.Distance
		}
		tour.DistanceSerie[i] = lastDistance

		if model.IsSet(s.Altitude) {
			lastAltitude = s.Altitude
		}
		tour.AltitudeSerie[i] = lastAltitude

		tour.LatitudeSerie[i] = normalize(s.Latitude)
		tour.LongitudeSerie[i] = normalize(s.Longitude)
		tour.PulseSerie[i] = normalize(s.Pulse)
		tour.CadenceSerie[i] = normalize(s.Cadence)
		tour.TemperatureSerie[i] = normalize(s.Temperature)
		tour.PowerSerie[i] = normalize(s.Power)
	}
}

// normalize maps NaN (decoder sentinel for invalid values) onto the
// regular unset sentinel so the series serialize cleanly.
func normalize(v float64) float64 {
	if !model.IsSet(v) {
		return model.NoValue
	}
	return v
}

func buildMarkers(tour *model.TourRecord, timed model.SampleList) {
	for i, s := range timed {
		if !s.Marker {
			continue
		}
		label := s.MarkerLabel
		if label == "" {
			label = "Marker"
		}
		tour.Markers = append(tour.Markers, model.TourMarker{
			SerieIndex: i,
			TimeOffset: tour.TimeSerie[i],
			Distance:   tour.DistanceSerie[i],
			Label:      label,
		})
	}
}

// computeAltitudeUpDown totals ascent and descent, registering an
// altitude change only when at least minInterval seconds passed since
// the last registration.
func computeAltitudeUpDown(tour *model.TourRecord, minInterval int64) {
	var refAltitude float64
	var refTime int64
	haveRef := false

	for i := range tour.AltitudeSerie {
		alt := tour.AltitudeSerie[i]
		if !model.IsSet(alt) {
			continue
		}
		if !haveRef {
			refAltitude = alt
			refTime = tour.TimeSerie[i]
			haveRef = true
			continue
		}
		if tour.TimeSerie[i]-refTime < minInterval {
			continue
		}
		delta := alt - refAltitude
		if delta > 0 {
			tour.AltitudeUp += delta
		} else {
			tour.AltitudeDown += -delta
		}
		refAltitude = alt
		refTime = tour.TimeSerie[i]
	}
}

// computeDrivingDuration picks the driving time by precedence: the
// device-reported value, then recording time minus device pause spans,
// then recording time minus derived still intervals.
func computeDrivingDuration(tour *model.TourRecord, src Source, startMillis int64, stillThreshold float64) {
	if src.DeviceDrivingTime > 0 {
		tour.DrivingDuration = int64(src.DeviceDrivingTime)
		return
	}

	if len(src.Pauses) > 0 {
		endMillis := startMillis + tour.RecordingDuration*1000
		var paused int64
		for _, span := range src.Pauses {
			s, e := span.Start, span.End
			if s < startMillis {
				s = startMillis
			}
			if e > endMillis {
				e = endMillis
			}
			if e > s {
				paused += (e - s) / 1000
			}
		}
		tour.DrivingDuration = tour.RecordingDuration - paused
		if tour.DrivingDuration < 0 {
			tour.DrivingDuration = 0
		}
		return
	}

	var still int64
	for i := 1; i < tour.SampleCount(); i++ {
		dt := tour.TimeSerie[i] - tour.TimeSerie[i-1]
		if dt <= 0 {
			continue
		}
		dd := tour.DistanceSerie[i] - tour.DistanceSerie[i-1]
		if dd/float64(dt) < stillThreshold {
			still += dt
		}
	}
	tour.DrivingDuration = tour.RecordingDuration - still
	if tour.DrivingDuration < 0 {
		tour.DrivingDuration = 0
	}
}

// computeScalars fills the averages and maxima. Every division is
// guarded; a tour with no data for a field reports 0 for it.
func computeScalars(tour *model.TourRecord, timed model.SampleList) {
	var pulseSum, cadenceSum, tempSum float64
	var pulseN, cadenceN, tempN int

	for _, s := range timed {
		if model.IsSet(s.Pulse) {
			pulseSum += s.Pulse
			pulseN++
			if s.Pulse > tour.MaxPulse {
				tour.MaxPulse = s.Pulse
			}
		}
		if model.IsSet(s.Cadence) {
			cadenceSum += s.Cadence
			cadenceN++
		}
		if model.IsSet(s.Temperature) {
			tempSum += s.Temperature
			tempN++
		}
	}

	if pulseN > 0 {
		tour.AvgPulse = pulseSum / float64(pulseN)
	}
	if cadenceN > 0 {
		tour.AvgCadence = cadenceSum / float64(cadenceN)
	}
	if tempN > 0 {
		tour.AvgTemperature = tempSum / float64(tempN)
	}

	for i := 1; i < tour.SampleCount(); i++ {
		dt := tour.TimeSerie[i] - tour.TimeSerie[i-1]
		if dt <= 0 {
			continue
		}
		speed := tour.DistanceSerie[i] - tour.DistanceSerie[i-1]
		speed = speed / float64(dt) * 3.6 // m/s -> km/h
		if speed > tour.MaxSpeed {
			tour.MaxSpeed = speed
		}
	}

	if tour.DrivingDuration > 0 && tour.TourDistance > 0 {
		hours := float64(tour.DrivingDuration) / 3600
		tour.AvgSpeed = tour.TourDistance / 1000 / hours

		km := tour.TourDistance / 1000
		tour.AvgPace = float64(tour.DrivingDuration) / 60 / km
	}

	if math.IsNaN(tour.AvgSpeed) || math.IsInf(tour.AvgSpeed, 0) {
		tour.AvgSpeed = 0
	}
	if math.IsNaN(tour.AvgPace) || math.IsInf(tour.AvgPace, 0) {
		tour.AvgPace = 0
	}
}

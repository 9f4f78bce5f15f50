package model

import "time"

// TourMarker is one marker on the assembled tour, derived from a merged
// sample that was flagged as a marker.
type TourMarker struct {
	SerieIndex int     `json:"serie_index"` // index into the tour series
	TimeOffset int64   `json:"time_offset"` // seconds since tour start
	Distance   float64 `json:"distance"`    // meters since tour start
	Label      string  `json:"label"`
}

// Waypoint is a named point of interest read from the source file. It is
// file-level metadata and not part of the sample series.
type Waypoint struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Altitude    float64 `json:"altitude"` // NoValue when unset
	Time        int64   `json:"time"`     // epoch millis, NoTime when unset
	Name        string  `json:"name"`
	Comment     string  `json:"comment"`
	Description string  `json:"description"`
	Symbol      string  `json:"symbol"`
	Category    string  `json:"category"`
}

// TourRecord is the normalized output of the import pipeline, the only
// artifact that survives past a single import call.
//
// Invariants: TimeSerie starts at 0 and is non-decreasing, DistanceSerie
// is non-decreasing, AltitudeUp and AltitudeDown are both >= 0.
type TourRecord struct {
	TourID string `json:"tour_id"` // content-derived dedup key

	StartTime   time.Time `json:"start_time"`
	StartYear   int       `json:"start_year"`
	StartMonth  int       `json:"start_month"`
	StartDay    int       `json:"start_day"`
	StartHour   int       `json:"start_hour"`
	StartMinute int       `json:"start_minute"`
	StartSecond int       `json:"start_second"`
	StartWeek   int       `json:"start_week"` // ISO 8601 week number

	DeviceID       string `json:"device_id"`
	DeviceName     string `json:"device_name"`
	DeviceFirmware string `json:"device_firmware"`

	Title       string `json:"title"`
	Description string `json:"description"`
	Calories    int    `json:"calories"`

	// Parallel series, one entry per merged sample.
	TimeSerie        []int64   `json:"time_serie"` // seconds from start
	DistanceSerie    []float64 `json:"distance_serie"`
	AltitudeSerie    []float64 `json:"altitude_serie"`
	LatitudeSerie    []float64 `json:"latitude_serie"`  // NoValue when unset
	LongitudeSerie   []float64 `json:"longitude_serie"` // NoValue when unset
	PulseSerie       []float64 `json:"pulse_serie"`
	CadenceSerie     []float64 `json:"cadence_serie"`
	TemperatureSerie []float64 `json:"temperature_serie"`
	PowerSerie       []float64 `json:"power_serie"`

	Markers   []TourMarker `json:"markers"`
	Waypoints []Waypoint   `json:"waypoints"`

	// Scalar aggregates.
	TourDistance      float64 `json:"tour_distance"`      // meters
	AltitudeUp        float64 `json:"altitude_up"`        // meters
	AltitudeDown      float64 `json:"altitude_down"`      // meters
	RecordingDuration int64   `json:"recording_duration"` // seconds
	DrivingDuration   int64   `json:"driving_duration"`   // seconds
	AvgSpeed          float64 `json:"avg_speed"`          // km/h over driving time
	AvgPace           float64 `json:"avg_pace"`           // min/km over driving time
	AvgPulse          float64 `json:"avg_pulse"`
	AvgCadence        float64 `json:"avg_cadence"`
	AvgTemperature    float64 `json:"avg_temperature"`
	MaxPulse          float64 `json:"max_pulse"`
	MaxSpeed          float64 `json:"max_speed"` // km/h
}

// SampleCount returns the length of the tour series.
func (t *TourRecord) SampleCount() int {
	return len(t.TimeSerie)
}

// StartPosition returns the first set position in the series, or
// NoValue, NoValue when the tour has no position data at all.
func (t *TourRecord) StartPosition() (lat, lon float64) {
	for i := range t.LatitudeSerie {
		if IsSet(t.LatitudeSerie[i]) && IsSet(t.LongitudeSerie[i]) {
			return t.LatitudeSerie[i], t.LongitudeSerie[i]
		}
	}
	return NoValue, NoValue
}

// Package model holds the normalized data types shared by the import
// pipeline: raw per-sample records as emitted by a format handler, the
// time-ordered sub-streams they form, and the assembled tour record.
package model

import (
	"math"
	"sort"
)

// Sentinel values for unset fields. Device files routinely omit
// individual fields per sample, so every numeric field carries an
// explicit "unset" value instead of a pointer.
const (
	// NoTime marks an unset timestamp (epoch milliseconds otherwise).
	NoTime int64 = math.MinInt64

	// NoValue marks an unset numeric sample field.
	NoValue = -math.MaxFloat64
)

// IsSet reports whether a sample field carries a usable value. NaN is
// treated as unset so that NaN distances from the geo math propagate as
// missing data instead of poisoning aggregates.
func IsSet(v float64) bool {
	return v != NoValue && !math.IsNaN(v)
}

// RawSample is one instant of sensor or position data as read from a
// source file, before stream reconciliation. A handler emits it once and
// never mutates it afterwards; the reconciler owns it during merge.
type RawSample struct {
	AbsoluteTime int64 // epoch millis, NoTime when unset

	Latitude  float64 // degrees
	Longitude float64 // degrees
	Altitude  float64 // meters
	Distance  float64 // absolute meters from tour start

	Pulse       float64 // bpm
	Cadence     float64 // rpm
	Temperature float64 // celsius
	Power       float64 // watts

	Marker      bool
	MarkerLabel string
}

// NewRawSample returns a sample with every field unset.
func NewRawSample() *RawSample {
	return &RawSample{
		AbsoluteTime: NoTime,
		Latitude:     NoValue,
		Longitude:    NoValue,
		Altitude:     NoValue,
		Distance:     NoValue,
		Pulse:        NoValue,
		Cadence:      NoValue,
		Temperature:  NoValue,
		Power:        NoValue,
	}
}

// HasPosition reports whether both latitude and longitude are set.
func (s *RawSample) HasPosition() bool {
	return IsSet(s.Latitude) && IsSet(s.Longitude)
}

// HasTime reports whether the sample carries an absolute timestamp.
func (s *RawSample) HasTime() bool {
	return s.AbsoluteTime != NoTime
}

// SampleList is a time-ordered sub-stream of raw samples originating
// from one logical sensor category within a file (periodic, GPS fix,
// lap marker). Timestamps within one list are non-decreasing; a list
// may be empty.
type SampleList []*RawSample

// SortByTime restores the non-decreasing time order after out-of-band
// entries (synthetic lap samples) were appended.
func (l SampleList) SortByTime() {
	sort.SliceStable(l, func(i, j int) bool {
		return l[i].AbsoluteTime < l[j].AbsoluteTime
	})
}

// IsSortedByTime reports whether timestamps are non-decreasing.
func (l SampleList) IsSortedByTime() bool {
	for i := 1; i < len(l); i++ {
		if l[i].AbsoluteTime < l[i-1].AbsoluteTime {
			return false
		}
	}
	return true
}

// PauseSpan is one paused interval reported by the device, in epoch
// milliseconds.
type PauseSpan struct {
	Start int64
	End   int64
}

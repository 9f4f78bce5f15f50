// Package parser contains the per-dialect format handlers that turn raw
// device export files into sub-streams of raw samples plus file-level
// metadata. Handlers are a closed set; a new dialect is supported by
// adding a new Handler implementation, not by extending an existing one.
package parser

import (
	"errors"
	"fmt"

	"toursync/internal/model"
)

// ParsedFile bundles everything one handler extracted from one file:
// file-level metadata and the raw sub-streams that the reconciler merges
// into a single time-ordered sequence.
type ParsedFile struct {
	Title          string
	DeviceName     string
	DeviceFirmware string
	Calories       int

	// LocalTime flags files whose timestamps are local wall-clock time
	// instead of UTC (some GPX creators export local time).
	LocalTime bool

	// Samples is the periodic sub-stream, the spine of reconciliation.
	Samples model.SampleList

	// GPS is the position sub-stream. Empty when the dialect does not
	// separate positions from periodic samples; in that case the spine
	// samples already carry their positions.
	GPS model.SampleList

	// Markers is the lap/marker sub-stream. Entries carry the wall-clock
	// time of the lap boundary; their position is resolved during
	// reconciliation.
	Markers model.SampleList

	Waypoints []model.Waypoint

	// Pauses are device-reported paused spans. The assembler subtracts
	// them from the recording duration to obtain the device driving time.
	Pauses []model.PauseSpan

	// DeviceDrivingTime is the device-reported active time in seconds,
	// 0 when the dialect does not carry one. When set it wins over the
	// derived moving time.
	DeviceDrivingTime int
}

// Handler is the parse contract every dialect implements.
type Handler interface {
	// Name identifies the handler in logs and as the tour's device id.
	Name() string

	// Sniff inspects the file header and reports whether the file looks
	// like this dialect. Sniffing must be cheap; it never parses the
	// whole document.
	Sniff(data []byte) bool

	// Parse reads the whole byte stream and returns the parsed file.
	// A file whose root element turns out not to match the dialect
	// yields ErrNotRecognized, which is expected control flow, not a
	// failure.
	Parse(data []byte) (*ParsedFile, error)

	// UniqueSuffix is the per-format tag mixed into the dedup key of
	// tours that carry no distance data, so distanceless tours from
	// different formats do not collide.
	UniqueSuffix() string
}

// Sentinel errors of the per-file taxonomy. Field-level problems never
// surface here; they degrade to unset sample fields.
var (
	// ErrNotRecognized means the handler declined the file. The
	// coordinator tries the next handler.
	ErrNotRecognized = errors.New("file not recognized by this handler")

	// ErrUnrecognizedFormat means no registered handler recognized the
	// file.
	ErrUnrecognizedFormat = errors.New("unrecognized file format")

	// ErrInvalidStartTime means a required timestamp could not be parsed
	// by any of the accepted formats.
	ErrInvalidStartTime = errors.New("unparsable start time")

	// ErrEmptyTrack means the file produced zero usable samples.
	ErrEmptyTrack = errors.New("file contains no track data")
)

// MalformedError reports a broken file. Line is the 1-based source
// line when the decoder reports one, 0 otherwise; encoding/xml does
// not track columns and binary decoders report no position at all.
type MalformedError struct {
	Line int
	Msg  string
}

func (e *MalformedError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("malformed file at line %d: %s", e.Line, e.Msg)
	}
	return "malformed file: " + e.Msg
}

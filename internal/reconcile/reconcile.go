// Package reconcile merges the sub-streams a format handler produced
// (periodic spine, GPS fixes, lap markers) into one time-ordered sample
// sequence. The periodic stream is the spine: every output sample is a
// spine sample, GPS and marker data are folded onto it.
package reconcile

import (
	"toursync/internal/model"
)

// Result is the merged sample sequence plus merge statistics.
type Result struct {
	Samples model.SampleList

	// DroppedTicks counts spine samples discarded because they shared
	// their truncated second with the previous sample.
	DroppedTicks int
}

// Merge folds the GPS and marker sub-streams onto the periodic spine.
// All three inputs must be sorted by time; the spine samples are
// mutated in place.
func Merge(spine, gps, markers model.SampleList) *Result {
	res := &Result{}
	res.Samples, res.DroppedTicks = dedupeSpine(spine)
	mergeGPS(res.Samples, gps)
	mergeMarkers(res.Samples, markers)
	return res
}

// dedupeSpine drops spine samples that fall into the same truncated
// second as their predecessor. Devices emit sub-second bursts around
// laps; keeping them would produce zero-length time steps. A dropped
// sample's marker state is folded onto the surviving sample of its
// second so a lap boundary never disappears with the burst. Samples
// without a timestamp are kept as-is, there is nothing to compare.
func dedupeSpine(spine model.SampleList) (model.SampleList, int) {
	out := make(model.SampleList, 0, len(spine))
	dropped := 0

	prevSecond := int64(0)
	var prevKept *model.RawSample

	for _, s := range spine {
		if !s.HasTime() {
			out = append(out, s)
			continue
		}
		second := s.AbsoluteTime / 1000
		if prevKept != nil && second == prevSecond {
			dropped++
			if s.Marker {
				prevKept.Marker = true
				if s.MarkerLabel != "" {
					prevKept.MarkerLabel = s.MarkerLabel
				}
			}
			continue
		}
		prevSecond = second
		prevKept = s
		out = append(out, s)
	}

	return out, dropped
}

// mergeGPS assigns a position to every spine sample by interpolating
// between the GPS fixes bracketing its time. Spine samples before the
// first fix take the first fix's position, samples after the last fix
// take the last fix's position. When the spine already carries
// positions (single-stream dialects) the GPS list is empty and nothing
// happens.
func mergeGPS(spine, gps model.SampleList) {
	fixes := make(model.SampleList, 0, len(gps))
	for _, g := range gps {
		if g.HasPosition() && g.HasTime() {
			fixes = append(fixes, g)
		}
	}
	if len(fixes) == 0 {
		return
	}

	cursor := 0
	for _, s := range spine {
		if !s.HasTime() {
			continue
		}
		t := s.AbsoluteTime

		// advance to the last fix at or before t
		for cursor < len(fixes)-1 && fixes[cursor+1].AbsoluteTime <= t {
			cursor++
		}

		prev := fixes[cursor]
		switch {
		case t <= prev.AbsoluteTime || cursor == len(fixes)-1:
			// before the first fix or past the last one: clamp
			s.Latitude = prev.Latitude
			s.Longitude = prev.Longitude

		default:
			next := fixes[cursor+1]
			span := next.AbsoluteTime - prev.AbsoluteTime
			ratio := 0.0
			if span > 0 {
				ratio = float64(t-prev.AbsoluteTime) / float64(span)
			}
			s.Latitude = prev.Latitude + (next.Latitude-prev.Latitude)*ratio
			s.Longitude = prev.Longitude + (next.Longitude-prev.Longitude)*ratio
		}
	}
}

// mergeMarkers flags the first spine sample at or after each marker's
// time. Each marker is consumed once; markers past the end of the spine
// are dropped.
func mergeMarkers(spine, markers model.SampleList) {
	timed := make(model.SampleList, 0, len(markers))
	for _, m := range markers {
		if m.HasTime() {
			timed = append(timed, m)
		}
	}
	markers = timed

	cursor := 0
	for _, s := range spine {
		if cursor >= len(markers) {
			return
		}
		if !s.HasTime() {
			continue
		}
		for cursor < len(markers) && markers[cursor].AbsoluteTime <= s.AbsoluteTime {
			marker := markers[cursor]
			cursor++
			s.Marker = true
			if marker.MarkerLabel != "" {
				s.MarkerLabel = marker.MarkerLabel
			}
		}
	}
}

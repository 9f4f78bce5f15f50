// Package importer coordinates the import pipeline: sniff the format,
// parse, reconcile the sub-streams, assemble the tour and reject
// duplicates against the tour index.
package importer

import (
	"errors"
	"fmt"

	"toursync/internal/assemble"
	"toursync/internal/model"
	"toursync/internal/parser"
	"toursync/internal/reconcile"
)

// ErrDuplicateTour means the assembled tour's id is already present in
// the index. The file is valid, the tour was imported before.
var ErrDuplicateTour = errors.New("tour already imported")

// TourIndex answers dedup queries and records imported tours. The
// database store implements it; tests use the in-memory index.
type TourIndex interface {
	Contains(tourID string) (bool, error)
	Insert(tour *model.TourRecord, sourceFilename string) error
}

// Importer runs the pipeline. Handlers are tried in registration order;
// the first one whose sniff accepts the file parses it.
type Importer struct {
	handlers []parser.Handler
	index    TourIndex
	options  assemble.Options
}

// New builds an importer with the standard handler chain: GPX, then
// Suunto, then FIT.
func New(index TourIndex) *Importer {
	return &Importer{
		handlers: []parser.Handler{
			parser.NewGPXHandler(),
			parser.NewSuuntoHandler(),
			parser.NewFITHandler(),
		},
		index:   index,
		options: assemble.DefaultOptions(),
	}
}

// SetOptions replaces the assembly options. Call before the first
// Import; the importer does not lock them.
func (im *Importer) SetOptions(opts assemble.Options) {
	im.options = opts
}

// Import runs one file through the pipeline and returns the stored
// tour. The name is only used in error messages.
//
// Error taxonomy: parser.ErrUnrecognizedFormat when no handler takes
// the file, parser.ErrEmptyTrack when it parses but holds no usable
// samples, ErrDuplicateTour when the tour was imported before, and the
// handler's own error for malformed content.
func (im *Importer) Import(name string, data []byte) (*model.TourRecord, error) {
	handler, parsed, err := im.parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	merged := reconcile.Merge(parsed.Samples, parsed.GPS, parsed.Markers)

	src := assemble.Source{
		Title:             parsed.Title,
		DeviceID:          handler.Name(),
		DeviceName:        parsed.DeviceName,
		DeviceFirmware:    parsed.DeviceFirmware,
		Calories:          parsed.Calories,
		UniqueSuffix:      handler.UniqueSuffix(),
		DeviceDrivingTime: parsed.DeviceDrivingTime,
		Pauses:            parsed.Pauses,
		Waypoints:         parsed.Waypoints,
	}

	tour, err := assemble.Build(merged.Samples, src, im.options)
	if err != nil {
		if errors.Is(err, assemble.ErrNoSamples) {
			return nil, fmt.Errorf("%s: %w", name, parser.ErrEmptyTrack)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	exists, err := im.index.Contains(tour.TourID)
	if err != nil {
		return nil, fmt.Errorf("%s: index lookup: %w", name, err)
	}
	if exists {
		return nil, fmt.Errorf("%s: %w", name, ErrDuplicateTour)
	}

	if err := im.index.Insert(tour, name); err != nil {
		return nil, fmt.Errorf("%s: store tour: %w", name, err)
	}

	return tour, nil
}

// parse finds the handler for the data. A handler that sniffs yes but
// then returns ErrNotRecognized (matching magic bytes, wrong root) does
// not end the chain; the next handler gets its turn.
func (im *Importer) parse(data []byte) (parser.Handler, *parser.ParsedFile, error) {
	for _, h := range im.handlers {
		if !h.Sniff(data) {
			continue
		}
		parsed, err := h.Parse(data)
		if err != nil {
			if errors.Is(err, parser.ErrNotRecognized) {
				continue
			}
			return nil, nil, err
		}
		return h, parsed, nil
	}
	return nil, nil, parser.ErrUnrecognizedFormat
}

// Package inbox scans a drop directory of device export files and runs
// every file through the import pipeline. A failed file never stops the
// scan; it is logged and counted.
package inbox

import (
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"time"

	"toursync/internal/importer"
	"toursync/internal/parser"
)

// Progress is notified once per file as the scan reaches it. The
// scanner never formats or displays anything beyond its own log lines;
// a UI hangs off this interface.
type Progress interface {
	FileStarted(name string)
}

type Scanner struct {
	importer *importer.Importer
	dir      string
	progress Progress
}

func NewScanner(im *importer.Importer, dir string) *Scanner {
	return &Scanner{importer: im, dir: dir}
}

// SetProgress installs a progress listener. Call before Scan.
func (s *Scanner) SetProgress(p Progress) {
	s.progress = p
}

// Report tallies one scan run.
type Report struct {
	Files        int `json:"files"`
	Accepted     int `json:"accepted"`
	Duplicates   int `json:"duplicates"`
	Unrecognized int `json:"unrecognized"`
	Failed       int `json:"failed"`
}

// Scan walks the inbox directory and imports every regular file. The
// context is checked between files; a cancelled scan returns the report
// of what was done so far along with ctx.Err().
func (s *Scanner) Scan(ctx context.Context) (*Report, error) {
	started := time.Now()
	report := &Report{}

	var files []string
	err := filepath.WalkDir(s.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return report, err
	}

	log.Printf("inbox scan: %d files in %s", len(files), s.dir)

	for _, path := range files {
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		default:
		}

		report.Files++
		if s.progress != nil {
			s.progress.FileStarted(filepath.Base(path))
		}
		s.importOne(path, report)
	}

	log.Printf("inbox scan done in %s: %d accepted, %d duplicates, %d unrecognized, %d failed",
		time.Since(started).Round(time.Millisecond),
		report.Accepted, report.Duplicates, report.Unrecognized, report.Failed)

	return report, nil
}

func (s *Scanner) importOne(path string, report *Report) {
	name := filepath.Base(path)

	data, err := os.ReadFile(path)
	if err != nil {
		report.Failed++
		log.Printf("read %s: %v", name, err)
		return
	}

	tour, err := s.importer.Import(name, data)
	switch {
	case err == nil:
		report.Accepted++
		log.Printf("imported %s: tour %s, %d samples, %.1f km",
			name, tour.TourID, tour.SampleCount(), tour.TourDistance/1000)

	case errors.Is(err, importer.ErrDuplicateTour):
		report.Duplicates++
		log.Printf("skipped %s: already imported", name)

	case errors.Is(err, parser.ErrUnrecognizedFormat):
		report.Unrecognized++
		log.Printf("skipped %s: unrecognized format", name)

	default:
		report.Failed++
		log.Printf("failed %s: %v", name, err)
	}
}

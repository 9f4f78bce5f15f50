package database

import (
	"time"

	"toursync/internal/model"
)

// TourSummary is the list-view projection of a stored tour, without the
// series, markers and waypoints.
type TourSummary struct {
	TourID         string    `json:"tour_id"`
	StartTime      time.Time `json:"start_time"`
	Title          string    `json:"title"`
	DeviceID       string    `json:"device_id"`
	DeviceName     string    `json:"device_name"`
	TourDistance   float64   `json:"tour_distance"`
	RecordingTime  int64     `json:"recording_time"`
	DrivingTime    int64     `json:"driving_time"`
	AltitudeUp     float64   `json:"altitude_up"`
	AvgSpeed       float64   `json:"avg_speed"`
	Calories       int       `json:"calories"`
	SampleCount    int       `json:"sample_count"`
	ImportedAt     time.Time `json:"imported_at"`
	SourceFilename string    `json:"source_filename"`
}

// Stats is the aggregate view over all stored tours.
type Stats struct {
	Tours         int     `json:"tours"`
	Markers       int     `json:"markers"`
	Waypoints     int     `json:"waypoints"`
	TotalDistance float64 `json:"total_distance"` // meters
	TotalDriving  int64   `json:"total_driving"`  // seconds
}

// TourFilters narrows and orders a tour listing.
type TourFilters struct {
	DeviceID    string
	DateFrom    *time.Time
	DateTo      *time.Time
	MinDistance float64
	MaxDistance float64
	Limit       int
	Offset      int
	SortBy      string
	SortOrder   string
}

// Store is the persistence contract shared by the import pipeline and
// the web layer.
type Store interface {
	Contains(tourID string) (bool, error)
	Insert(tour *model.TourRecord, sourceFilename string) error

	GetTours(limit, offset int) ([]TourSummary, error)
	GetTour(tourID string) (*model.TourRecord, error)
	FilterTours(filters TourFilters) ([]TourSummary, error)
	GetStats() (*Stats, error)

	Close() error
}

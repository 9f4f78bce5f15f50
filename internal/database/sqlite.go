package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"toursync/internal/model"
)

const sqliteTimeLayout = "2006-01-02 15:04:05"

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.createTables(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// NewSQLiteStoreFromDB wraps an existing connection; the caller owns
// the schema.
func NewSQLiteStoreFromDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tours (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tour_id TEXT UNIQUE NOT NULL,
		start_time DATETIME NOT NULL,
		start_week INTEGER,
		title TEXT,
		description TEXT,
		device_id TEXT,
		device_name TEXT,
		device_firmware TEXT,
		calories INTEGER,
		sample_count INTEGER,
		tour_distance REAL,
		altitude_up REAL,
		altitude_down REAL,
		recording_duration INTEGER,
		driving_duration INTEGER,
		avg_speed REAL,
		avg_pace REAL,
		avg_pulse REAL,
		avg_cadence REAL,
		avg_temperature REAL,
		max_pulse REAL,
		max_speed REAL,
		start_latitude REAL,
		start_longitude REAL,
		series TEXT,
		source_filename TEXT,
		imported_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_tours_tour_id ON tours(tour_id);
	CREATE INDEX IF NOT EXISTS idx_tours_start_time ON tours(start_time);
	CREATE INDEX IF NOT EXISTS idx_tours_device_id ON tours(device_id);

	CREATE TABLE IF NOT EXISTS tour_markers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tour_id TEXT NOT NULL REFERENCES tours(tour_id) ON DELETE CASCADE,
		serie_index INTEGER,
		time_offset INTEGER,
		distance REAL,
		label TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_markers_tour_id ON tour_markers(tour_id);

	CREATE TABLE IF NOT EXISTS tour_waypoints (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tour_id TEXT NOT NULL REFERENCES tours(tour_id) ON DELETE CASCADE,
		latitude REAL,
		longitude REAL,
		altitude REAL,
		point_time INTEGER,
		name TEXT,
		comment TEXT,
		description TEXT,
		symbol TEXT,
		category TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_waypoints_tour_id ON tour_waypoints(tour_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// tourSeries is the JSON layout of the series column.
type tourSeries struct {
	Time        []int64   `json:"time"`
	Distance    []float64 `json:"distance"`
	Altitude    []float64 `json:"altitude"`
	Latitude    []float64 `json:"latitude"`
	Longitude   []float64 `json:"longitude"`
	Pulse       []float64 `json:"pulse"`
	Cadence     []float64 `json:"cadence"`
	Temperature []float64 `json:"temperature"`
	Power       []float64 `json:"power"`
}

func (s *SQLiteStore) Contains(tourID string) (bool, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM tours WHERE tour_id = ?", tourID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Insert stores the tour with its markers and waypoints in one
// transaction.
func (s *SQLiteStore) Insert(tour *model.TourRecord, sourceFilename string) error {
	series, err := json.Marshal(tourSeries{
		Time:        tour.TimeSerie,
		Distance:    tour.DistanceSerie,
		Altitude:    tour.AltitudeSerie,
		Latitude:    tour.LatitudeSerie,
		Longitude:   tour.LongitudeSerie,
		Pulse:       tour.PulseSerie,
		Cadence:     tour.CadenceSerie,
		Temperature: tour.TemperatureSerie,
		Power:       tour.PowerSerie,
	})
	if err != nil {
		return fmt.Errorf("encode series: %w", err)
	}

	startLat, startLon := tour.StartPosition()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
	INSERT INTO tours (
		tour_id, start_time, start_week, title, description,
		device_id, device_name, device_firmware, calories, sample_count,
		tour_distance, altitude_up, altitude_down,
		recording_duration, driving_duration,
		avg_speed, avg_pace, avg_pulse, avg_cadence, avg_temperature,
		max_pulse, max_speed, start_latitude, start_longitude,
		series, source_filename
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tour.TourID, tour.StartTime.UTC().Format(sqliteTimeLayout), tour.StartWeek,
		tour.Title, tour.Description,
		tour.DeviceID, tour.DeviceName, tour.DeviceFirmware,
		tour.Calories, tour.SampleCount(),
		tour.TourDistance, tour.AltitudeUp, tour.AltitudeDown,
		tour.RecordingDuration, tour.DrivingDuration,
		tour.AvgSpeed, tour.AvgPace, tour.AvgPulse, tour.AvgCadence, tour.AvgTemperature,
		tour.MaxPulse, tour.MaxSpeed, startLat, startLon,
		string(series), sourceFilename,
	)
	if err != nil {
		return fmt.Errorf("insert tour %s: %w", tour.TourID, err)
	}

	for _, m := range tour.Markers {
		_, err = tx.Exec(`
		INSERT INTO tour_markers (tour_id, serie_index, time_offset, distance, label)
		VALUES (?, ?, ?, ?, ?)`,
			tour.TourID, m.SerieIndex, m.TimeOffset, m.Distance, m.Label)
		if err != nil {
			return fmt.Errorf("insert marker: %w", err)
		}
	}

	for _, w := range tour.Waypoints {
		_, err = tx.Exec(`
		INSERT INTO tour_waypoints (
			tour_id, latitude, longitude, altitude, point_time,
			name, comment, description, symbol, category
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			tour.TourID, w.Latitude, w.Longitude, w.Altitude, w.Time,
			w.Name, w.Comment, w.Description, w.Symbol, w.Category)
		if err != nil {
			return fmt.Errorf("insert waypoint: %w", err)
		}
	}

	return tx.Commit()
}

const summaryColumns = `
	tour_id, start_time, title, device_id, device_name,
	tour_distance, recording_duration, driving_duration,
	altitude_up, avg_speed, calories, sample_count,
	imported_at, source_filename`

func (s *SQLiteStore) GetTours(limit, offset int) ([]TourSummary, error) {
	query := "SELECT " + summaryColumns + `
	FROM tours
	ORDER BY start_time DESC
	LIMIT ? OFFSET ?`

	rows, err := s.db.Query(query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSummaries(rows)
}

func (s *SQLiteStore) FilterTours(filters TourFilters) ([]TourSummary, error) {
	query := "SELECT " + summaryColumns + " FROM tours WHERE 1=1"

	var args []interface{}
	var conditions []string

	if filters.DeviceID != "" {
		conditions = append(conditions, "device_id = ?")
		args = append(args, filters.DeviceID)
	}
	if filters.DateFrom != nil {
		conditions = append(conditions, "start_time >= ?")
		args = append(args, filters.DateFrom.UTC().Format(sqliteTimeLayout))
	}
	if filters.DateTo != nil {
		conditions = append(conditions, "start_time <= ?")
		args = append(args, filters.DateTo.UTC().Format(sqliteTimeLayout))
	}
	if filters.MinDistance > 0 {
		conditions = append(conditions, "tour_distance >= ?")
		args = append(args, filters.MinDistance)
	}
	if filters.MaxDistance > 0 {
		conditions = append(conditions, "tour_distance <= ?")
		args = append(args, filters.MaxDistance)
	}

	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}

	// sort columns are whitelisted, the value never reaches the query
	// verbatim
	orderBy := "start_time"
	switch filters.SortBy {
	case "distance":
		orderBy = "tour_distance"
	case "duration":
		orderBy = "recording_duration"
	case "start_time", "":
	}
	order := "DESC"
	if strings.EqualFold(filters.SortOrder, "asc") {
		order = "ASC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s", orderBy, order)

	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
		if filters.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filters.Offset)
		}
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSummaries(rows)
}

func scanSummaries(rows *sql.Rows) ([]TourSummary, error) {
	var tours []TourSummary
	for rows.Next() {
		var t TourSummary
		var startTime, importedAt string

		err := rows.Scan(
			&t.TourID, &startTime, &t.Title, &t.DeviceID, &t.DeviceName,
			&t.TourDistance, &t.RecordingTime, &t.DrivingTime,
			&t.AltitudeUp, &t.AvgSpeed, &t.Calories, &t.SampleCount,
			&importedAt, &t.SourceFilename,
		)
		if err != nil {
			return nil, err
		}

		if t.StartTime, err = time.Parse(sqliteTimeLayout, startTime); err != nil {
			return nil, err
		}
		t.ImportedAt, _ = time.Parse(sqliteTimeLayout, importedAt)

		tours = append(tours, t)
	}
	return tours, rows.Err()
}

func (s *SQLiteStore) GetTour(tourID string) (*model.TourRecord, error) {
	row := s.db.QueryRow(`
	SELECT tour_id, start_time, start_week, title, description,
	       device_id, device_name, device_firmware, calories,
	       tour_distance, altitude_up, altitude_down,
	       recording_duration, driving_duration,
	       avg_speed, avg_pace, avg_pulse, avg_cadence, avg_temperature,
	       max_pulse, max_speed, series
	FROM tours WHERE tour_id = ?`, tourID)

	var tour model.TourRecord
	var startTime, seriesJSON string

	err := row.Scan(
		&tour.TourID, &startTime, &tour.StartWeek, &tour.Title, &tour.Description,
		&tour.DeviceID, &tour.DeviceName, &tour.DeviceFirmware, &tour.Calories,
		&tour.TourDistance, &tour.AltitudeUp, &tour.AltitudeDown,
		&tour.RecordingDuration, &tour.DrivingDuration,
		&tour.AvgSpeed, &tour.AvgPace, &tour.AvgPulse, &tour.AvgCadence, &tour.AvgTemperature,
		&tour.MaxPulse, &tour.MaxSpeed, &seriesJSON,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("tour %s not found", tourID)
		}
		return nil, err
	}

	start, err := time.Parse(sqliteTimeLayout, startTime)
	if err != nil {
		return nil, err
	}
	tour.StartTime = start.UTC()
	tour.StartYear = tour.StartTime.Year()
	tour.StartMonth = int(tour.StartTime.Month())
	tour.StartDay = tour.StartTime.Day()
	tour.StartHour = tour.StartTime.Hour()
	tour.StartMinute = tour.StartTime.Minute()
	tour.StartSecond = tour.StartTime.Second()

	var series tourSeries
	if err := json.Unmarshal([]byte(seriesJSON), &series); err != nil {
		return nil, fmt.Errorf("decode series of %s: %w", tourID, err)
	}
	tour.TimeSerie = series.Time
	tour.DistanceSerie = series.Distance
	tour.AltitudeSerie = series.Altitude
	tour.LatitudeSerie = series.Latitude
	tour.LongitudeSerie = series.Longitude
	tour.PulseSerie = series.Pulse
	tour.CadenceSerie = series.Cadence
	tour.TemperatureSerie = series.Temperature
	tour.PowerSerie = series.Power

	if tour.Markers, err = s.getMarkers(tourID); err != nil {
		return nil, err
	}
	if tour.Waypoints, err = s.getWaypoints(tourID); err != nil {
		return nil, err
	}

	return &tour, nil
}

func (s *SQLiteStore) getMarkers(tourID string) ([]model.TourMarker, error) {
	rows, err := s.db.Query(`
	SELECT serie_index, time_offset, distance, label
	FROM tour_markers WHERE tour_id = ? ORDER BY serie_index`, tourID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var markers []model.TourMarker
	for rows.Next() {
		var m model.TourMarker
		if err := rows.Scan(&m.SerieIndex, &m.TimeOffset, &m.Distance, &m.Label); err != nil {
			return nil, err
		}
		markers = append(markers, m)
	}
	return markers, rows.Err()
}

func (s *SQLiteStore) getWaypoints(tourID string) ([]model.Waypoint, error) {
	rows, err := s.db.Query(`
	SELECT latitude, longitude, altitude, point_time,
	       name, comment, description, symbol, category
	FROM tour_waypoints WHERE tour_id = ? ORDER BY id`, tourID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var waypoints []model.Waypoint
	for rows.Next() {
		var w model.Waypoint
		err := rows.Scan(&w.Latitude, &w.Longitude, &w.Altitude, &w.Time,
			&w.Name, &w.Comment, &w.Description, &w.Symbol, &w.Category)
		if err != nil {
			return nil, err
		}
		waypoints = append(waypoints, w)
	}
	return waypoints, rows.Err()
}

func (s *SQLiteStore) GetStats() (*Stats, error) {
	stats := &Stats{}

	err := s.db.QueryRow(`
	SELECT COUNT(*), COALESCE(SUM(tour_distance), 0), COALESCE(SUM(driving_duration), 0)
	FROM tours`).Scan(&stats.Tours, &stats.TotalDistance, &stats.TotalDriving)
	if err != nil {
		return nil, err
	}

	if err := s.db.QueryRow("SELECT COUNT(*) FROM tour_markers").Scan(&stats.Markers); err != nil {
		return nil, err
	}
	if err := s.db.QueryRow("SELECT COUNT(*) FROM tour_waypoints").Scan(&stats.Waypoints); err != nil {
		return nil, err
	}

	return stats, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

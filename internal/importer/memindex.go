package importer

import (
	"sync"

	"toursync/internal/model"
)

// MemoryIndex is a map-backed TourIndex. It backs tests and dry runs;
// production imports go through the database store.
type MemoryIndex struct {
	mu    sync.Mutex
	tours map[string]*model.TourRecord
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{tours: make(map[string]*model.TourRecord)}
}

func (m *MemoryIndex) Contains(tourID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tours[tourID]
	return ok, nil
}

func (m *MemoryIndex) Insert(tour *model.TourRecord, sourceFilename string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tours[tour.TourID] = tour
	return nil
}

// Len reports the number of stored tours.
func (m *MemoryIndex) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tours)
}

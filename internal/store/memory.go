package store

import (
	"errors"
	"sync"
	"time"

	"github.com/i474232898/energy-demand-features/internal/energy"
)

var (
	// ErrNotFound is returned when no dataset is available for a given request.
	ErrNotFound = errors.New("no dataset for request")
)

// DatasetHistory holds a build-ordered list of datasets for a request.
type DatasetHistory struct {
	Datasets []*energy.Dataset
}

// MemoryStore is a concurrency-safe in-memory cache of built datasets.
type MemoryStore struct {
	mu sync.RWMutex

	// key: request key, value: history
	data map[string]*DatasetHistory

	// retention configuration
	maxHistory int           // max number of datasets per request
	maxAge     time.Duration // optional max age of datasets

	now func() time.Time
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		data:       make(map[string]*DatasetHistory),
		maxHistory: maxHistory,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// SaveDataset appends a dataset for its request and enforces retention.
// The newest dataset is never evicted.
func (s *MemoryStore) SaveDataset(ds *energy.Dataset) {
	if ds == nil {
		return
	}
	key := ds.Request.Key()

	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.data[key]
	if !ok {
		history = &DatasetHistory{}
		s.data[key] = history
	}

	history.Datasets = append(history.Datasets, ds)

	// Enforce retention by count.
	if s.maxHistory > 0 && len(history.Datasets) > s.maxHistory {
		over := len(history.Datasets) - s.maxHistory
		history.Datasets = history.Datasets[over:]
	}

	// Enforce retention by age.
	if s.maxAge > 0 {
		cutoff := s.now().Add(-s.maxAge)
		i := 0
		for ; i < len(history.Datasets)-1; i++ {
			if !history.Datasets[i].BuiltAt.Before(cutoff) {
				break
			}
		}
		history.Datasets = history.Datasets[i:]
	}
}

// GetLatest returns the most recently saved dataset for a request key.
// A dataset older than the configured max age counts as absent.
func (s *MemoryStore) GetLatest(key string) (*energy.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[key]
	if !ok || len(history.Datasets) == 0 {
		return nil, ErrNotFound
	}
	latest := history.Datasets[len(history.Datasets)-1]
	if s.maxAge > 0 && latest.BuiltAt.Before(s.now().Add(-s.maxAge)) {
		return nil, ErrNotFound
	}
	return latest, nil
}

package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	"pulseboard/internal/models"
)

// MemoryStore is an in-process metric sink with the same session semantics
// as the MySQL store. It backs tests and DSN-less development runs.
type MemoryStore struct {
	mu         sync.RWMutex
	records    []models.Record
	lastIngest time.Time

	failAfter int // Add calls before a forced failure; <0 disables
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{failAfter: -1}
}

// FailAfter forces the nth Add (zero-based) of every subsequent session to
// fail, for load-atomicity tests.
func (s *MemoryStore) FailAfter(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAfter = n
}

func (s *MemoryStore) Begin(ctx context.Context) (Session, error) {
	s.mu.RLock()
	failAfter := s.failAfter
	s.mu.RUnlock()
	return &memorySession{store: s, failAfter: failAfter}, nil
}

// Records returns a copy of everything committed so far.
func (s *MemoryStore) Records() []models.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Record, len(s.records))
	copy(out, s.records)
	return out
}

func (s *MemoryStore) LastIngest() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastIngest
}

func (s *MemoryStore) KeyedMetrics(ctx context.Context, category string) ([]models.KeyedMetric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.KeyedMetric
	for _, rec := range s.records {
		if m, ok := rec.(models.KeyedMetric); ok && (category == "" || m.Category == category) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *MemoryStore) NamedMetrics(ctx context.Context, metricType string) ([]models.NamedMetric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.NamedMetric
	for _, rec := range s.records {
		if m, ok := rec.(models.NamedMetric); ok && (metricType == "" || m.Type == metricType) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *MemoryStore) SeriesMetrics(ctx context.Context, metricType string) ([]models.TimestampedMetric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.TimestampedMetric
	for _, rec := range s.records {
		if m, ok := rec.(models.TimestampedMetric); ok && (metricType == "" || m.Type == metricType) {
			out = append(out, m)
		}
	}
	return out, nil
}

type memorySession struct {
	store     *MemoryStore
	pending   []models.Record
	failAfter int
	done      bool
}

var errForcedFailure = errors.New("forced add failure")

func (s *memorySession) Add(rec models.Record) error {
	if s.failAfter >= 0 && len(s.pending) >= s.failAfter {
		return errForcedFailure
	}
	s.pending = append(s.pending, rec)
	return nil
}

func (s *memorySession) Commit() error {
	if s.done {
		return errors.New("session already closed")
	}
	s.done = true
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	s.store.records = append(s.store.records, s.pending...)
	s.store.lastIngest = time.Now()
	return nil
}

func (s *memorySession) Rollback() error {
	s.done = true
	s.pending = nil
	return nil
}

// Package memory provides an in-memory record repository for the
// session-scoped dashboard and for tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/domain"
	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/repository"
)

// Store keeps records in insertion order. Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	records []domain.StockRecord
	index   map[string]int
	now     func() time.Time
}

func NewStore(seed ...domain.StockRecord) *Store {
	s := &Store{
		index: make(map[string]int),
		now:   time.Now,
	}
	for _, rec := range seed {
		s.appendLocked(rec)
	}
	return s
}

func (s *Store) LoadSeries(_ context.Context, material string) (domain.MaterialSeries, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.NewMaterialSeries(material, s.records), nil
}

func (s *Store) ListMaterials(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return repository.DistinctMaterials(s.records), nil
}

func (s *Store) ListRecords(_ context.Context, filter domain.RecordFilter) ([]domain.StockRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return repository.FilterRecords(s.records, filter), nil
}

// Append adds a single record. Append-only.
func (s *Store) Append(_ context.Context, rec domain.StockRecord) (domain.StockRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(rec), nil
}

// AppendBatch adds all records under one lock.
func (s *Store) AppendBatch(_ context.Context, recs []domain.StockRecord) ([]domain.StockRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.StockRecord, 0, len(recs))
	for _, rec := range recs {
		out = append(out, s.appendLocked(rec))
	}
	return out, nil
}

func (s *Store) Update(_ context.Context, rec domain.StockRecord) (domain.StockRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[rec.ID]
	if !ok {
		return domain.StockRecord{}, domain.ErrRecordNotFound
	}
	updated := repository.PrepareUpdate(s.records[i], rec, s.now().UTC())
	s.records[i] = updated
	return updated, nil
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *Store) appendLocked(rec domain.StockRecord) domain.StockRecord {
	if _, taken := s.index[rec.ID]; taken {
		rec.ID = ""
	}
	stored := repository.PrepareNew(rec, s.now().UTC())
	s.index[stored.ID] = len(s.records)
	s.records = append(s.records, stored)
	return stored
}

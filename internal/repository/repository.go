// backend-go/internal/repository/repository.go
package repository

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/domain"
)

// RecordRepository is a data source of daily stock records.
//
// Read-only sources return domain.ErrReadOnlySource from the mutating methods.
// Update of an unknown ID returns domain.ErrRecordNotFound.
type RecordRepository interface {
	// LoadSeries returns the date-ordered records of one material.
	LoadSeries(ctx context.Context, material string) (domain.MaterialSeries, error)
	ListMaterials(ctx context.Context) ([]string, error)
	ListRecords(ctx context.Context, filter domain.RecordFilter) ([]domain.StockRecord, error)
	Append(ctx context.Context, rec domain.StockRecord) (domain.StockRecord, error)
	AppendBatch(ctx context.Context, recs []domain.StockRecord) ([]domain.StockRecord, error)
	Update(ctx context.Context, rec domain.StockRecord) (domain.StockRecord, error)
}

// Reloader is implemented by sources backed by an external file.
type Reloader interface {
	Reload(ctx context.Context) error
}

// PrepareNew assigns an ID and timestamps to a record about to be stored.
func PrepareNew(rec domain.StockRecord, now time.Time) domain.StockRecord {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.Material = strings.TrimSpace(rec.Material)
	rec.Date = truncateDay(rec.Date)
	rec.CreatedAt = now
	rec.UpdatedAt = now
	return rec
}

// PrepareUpdate carries the creation time of stored over to rec.
func PrepareUpdate(stored, rec domain.StockRecord, now time.Time) domain.StockRecord {
	rec.ID = stored.ID
	rec.Material = strings.TrimSpace(rec.Material)
	rec.Date = truncateDay(rec.Date)
	rec.CreatedAt = stored.CreatedAt
	rec.UpdatedAt = now
	return rec
}

// DistinctMaterials returns the sorted distinct material names of records.
func DistinctMaterials(records []domain.StockRecord) []string {
	names := make([]string, 0, len(records))
	for _, r := range records {
		names = append(names, r.Material)
	}
	return UniqueNames(names)
}

// UniqueNames trims, de-duplicates and sorts material names. Names differing
// only in case collapse to the first spelling seen.
func UniqueNames(names []string) []string {
	seen := make(map[string]string)
	for _, name := range names {
		name = strings.TrimSpace(name)
		key := strings.ToLower(name)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; !ok {
			seen[key] = name
		}
	}

	out := make([]string, 0, len(seen))
	for _, name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// FilterRecords returns the records matching filter ordered by date.
func FilterRecords(records []domain.StockRecord, filter domain.RecordFilter) []domain.StockRecord {
	out := make([]domain.StockRecord, 0, len(records))
	for _, r := range records {
		if filter.Matches(r) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

func truncateDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

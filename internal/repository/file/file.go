// Package file serves stock records from a static CSV/XLSX sheet. The sheet
// is read once on Reload and never written back.
package file

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/domain"
	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/ingest"
	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/repository"
	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/storage"
)

// fetchFunc returns the raw sheet and its name.
type fetchFunc func(ctx context.Context) ([]byte, string, error)

// Repository is a read-only RecordRepository over one sheet.
type Repository struct {
	mu       sync.RWMutex
	name     string
	fetch    fetchFunc
	parser   *ingest.Parser
	records  []domain.StockRecord
	loadedAt time.Time
}

// NewLocal reads the sheet from disk.
func NewLocal(path string, parser *ingest.Parser) *Repository {
	return &Repository{
		name:   path,
		parser: parser,
		fetch: func(context.Context) ([]byte, string, error) {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, "", fmt.Errorf("failed to read %s: %w", path, err)
			}
			return data, path, nil
		},
	}
}

// NewRemote reads the sheet from object storage.
func NewRemote(store storage.ObjectStorage, key string, parser *ingest.Parser) *Repository {
	return &Repository{
		name:   key,
		parser: parser,
		fetch: func(ctx context.Context) ([]byte, string, error) {
			data, err := store.GetObject(ctx, key)
			if err != nil {
				return nil, "", err
			}
			return data, key, nil
		},
	}
}

// Open builds a repository and performs the initial load.
func Open(ctx context.Context, r *Repository) (*Repository, error) {
	if err := r.Reload(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-reads the sheet. On failure the previously loaded records stay.
func (r *Repository) Reload(ctx context.Context) error {
	data, name, err := r.fetch(ctx)
	if err != nil {
		return err
	}

	format, err := ingest.FormatFromName(name)
	if err != nil {
		return err
	}

	records, err := r.parser.Parse(bytes.NewReader(data), format)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", name, err)
	}

	now := time.Now().UTC()
	for i := range records {
		records[i].ID = "row-" + strconv.Itoa(i+1)
		records[i].CreatedAt = now
		records[i].UpdatedAt = now
	}

	r.mu.Lock()
	r.records = records
	r.loadedAt = now
	r.mu.Unlock()

	log.Info().
		Str("source", name).
		Int("records", len(records)).
		Msg("stock sheet loaded")

	return nil
}

// LoadedAt reports when the sheet was last read.
func (r *Repository) LoadedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loadedAt
}

func (r *Repository) LoadSeries(_ context.Context, material string) (domain.MaterialSeries, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return domain.NewMaterialSeries(material, r.records), nil
}

func (r *Repository) ListMaterials(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return repository.DistinctMaterials(r.records), nil
}

func (r *Repository) ListRecords(_ context.Context, filter domain.RecordFilter) ([]domain.StockRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return repository.FilterRecords(r.records, filter), nil
}

func (r *Repository) Append(context.Context, domain.StockRecord) (domain.StockRecord, error) {
	return domain.StockRecord{}, domain.ErrReadOnlySource
}

func (r *Repository) AppendBatch(context.Context, []domain.StockRecord) ([]domain.StockRecord, error) {
	return nil, domain.ErrReadOnlySource
}

func (r *Repository) Update(context.Context, domain.StockRecord) (domain.StockRecord, error) {
	return domain.StockRecord{}, domain.ErrReadOnlySource
}

var (
	_ repository.RecordRepository = (*Repository)(nil)
	_ repository.Reloader         = (*Repository)(nil)
)

// Package app assembles the data source and collaborators selected by config.
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/cache"
	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/config"
	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/domain"
	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/events"
	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/ingest"
	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/repository"
	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/repository/file"
	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/repository/memory"
	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/repository/postgres"
	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/repository/sqlite"
	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/repository/sqlstore"
	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/service"
	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/storage"
)

// RemotePrefix marks APP_DATA_FILE values that live in object storage.
const RemotePrefix = "s3://"

// App holds the assembled service and the resources to release on exit.
type App struct {
	Service *service.InventoryService
	closers []func() error
}

// Close releases every resource in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Err(err).Msg("app: close failed")
		}
	}
}

// New opens the configured data source, cache, publisher and archive.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{}
	validator := domain.NewRecordValidator(cfg.App.Materials)

	objects, err := NewObjectStorage(cfg.Storage)
	if err != nil {
		return nil, err
	}

	repo, closeRepo, err := OpenRepository(ctx, cfg, validator, objects)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeRepo)

	snapshotCache, err := cache.NewSnapshotCache(cfg.Cache)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("snapshot cache: %w", err)
	}
	a.closers = append(a.closers, snapshotCache.Close)

	publisher, err := events.NewPublisher(cfg.Messaging)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("event publisher: %w", err)
	}
	a.closers = append(a.closers, publisher.Close)

	a.Service = service.NewInventoryService(repo, validator, snapshotCache, publisher, objects, service.Options{
		DefaultLeadTime: cfg.App.DefaultLeadTime,
		LeadTimeMin:     cfg.App.LeadTimeMin,
		LeadTimeMax:     cfg.App.LeadTimeMax,
		ForecastWindow:  cfg.App.ForecastWindow,
		UploadsPrefix:   cfg.Storage.UploadsPrefix,
	})

	return a, nil
}

// NewObjectStorage returns nil when object storage is disabled.
func NewObjectStorage(cfg config.StorageConfig) (storage.ObjectStorage, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	client, err := storage.NewMinioClient(storage.Config{
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		Bucket:    cfg.Bucket,
		Region:    cfg.Region,
		UseSSL:    cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("object storage: %w", err)
	}
	return client, nil
}

// OpenRepository builds the record repository for cfg.App.DataSource.
func OpenRepository(ctx context.Context, cfg *config.Config, validator *domain.RecordValidator, objects storage.ObjectStorage) (repository.RecordRepository, func() error, error) {
	noop := func() error { return nil }

	switch cfg.App.DataSource {
	case config.SourceFile:
		repo, err := OpenFile(ctx, cfg.App.DataFile, validator, objects)
		if err != nil {
			return nil, nil, err
		}
		return repo, noop, nil

	case config.SourceMemory, "":
		seed, err := seedRecords(cfg.App.DataFile, validator)
		if err != nil {
			return nil, nil, err
		}
		return memory.NewStore(seed...), noop, nil

	case config.SourcePostgres:
		db, err := postgres.NewDB(&cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		store := sqlstore.New(db)
		if err := store.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, db.Close, nil

	case config.SourceSQLite:
		db, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		store := sqlstore.New(db)
		if err := store.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, db.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown data source %q", cfg.App.DataSource)
	}
}

// seedRecords reads the data file when it exists locally. A missing file
// starts the session empty.
func seedRecords(path string, validator *domain.RecordValidator) ([]domain.StockRecord, error) {
	if path == "" || strings.HasPrefix(path, RemotePrefix) {
		return nil, nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		log.Info().Str("path", path).Msg("no seed file, starting with an empty session")
		return nil, nil
	}
	records, err := ingest.NewParser(validator).ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("seed %s: %w", path, err)
	}
	log.Info().Str("path", path).Int("records", len(records)).Msg("seeded memory store")
	return records, nil
}

// OpenFile loads a static sheet from disk, or from object storage when the
// path starts with s3://.
func OpenFile(ctx context.Context, path string, validator *domain.RecordValidator, objects storage.ObjectStorage) (*file.Repository, error) {
	parser := ingest.NewParser(validator)

	if key, ok := strings.CutPrefix(path, RemotePrefix); ok {
		if objects == nil {
			return nil, fmt.Errorf("data file %s needs object storage to be enabled", path)
		}
		return file.Open(ctx, file.NewRemote(objects, key, parser))
	}

	return file.Open(ctx, file.NewLocal(filepath.Clean(path), parser))
}

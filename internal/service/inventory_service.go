package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/cache"
	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/domain"
	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/events"
	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/ingest"
	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/policy"
	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/repository"
	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/storage"
)

// ErrNotReloadable is returned by Reload for sources not backed by a file.
var ErrNotReloadable = errors.New("data source cannot be reloaded")

const overviewConcurrency = 4

// Options are the dashboard defaults exposed to clients.
type Options struct {
	DefaultLeadTime int
	LeadTimeMin     int
	LeadTimeMax     int
	ForecastWindow  int
	UploadsPrefix   string
}

func (o Options) withDefaults() Options {
	if o.DefaultLeadTime < 1 {
		o.DefaultLeadTime = policy.DefaultLeadTimeDays
	}
	if o.LeadTimeMin < 1 {
		o.LeadTimeMin = 1
	}
	if o.LeadTimeMax < o.LeadTimeMin {
		o.LeadTimeMax = 14
	}
	if o.ForecastWindow < 1 {
		o.ForecastWindow = policy.DefaultForecastWindow
	}
	if o.UploadsPrefix == "" {
		o.UploadsPrefix = "uploads"
	}
	return o
}

// LeadTimeOptions describes the lead-time control offered to the UI. The
// range is a suggestion; only values below one are rejected.
type LeadTimeOptions struct {
	Default int    `json:"default"`
	Min     int    `json:"min"`
	Max     int    `json:"max"`
	Unit    string `json:"unit"`
}

// MaterialSummary is the compact per-material row of the overview.
type MaterialSummary struct {
	Material        string        `json:"material"`
	Status          domain.Status `json:"status"`
	StatusLabel     string        `json:"status_label"`
	ReorderAlert    bool          `json:"reorder_alert"`
	AlertMessage    string        `json:"alert_message"`
	CurrentStock    string        `json:"current_stock"`
	SafetyStock     string        `json:"safety_stock"`
	ReorderPoint    string        `json:"reorder_point"`
	DaysOfInventory policy.Metric `json:"days_of_inventory"`
	LastRecordDate  time.Time     `json:"last_record_date"`
	Error           string        `json:"error,omitempty"`
}

// InventoryService loads a material's series, runs the policy engine and
// keeps the snapshot cache and alert subscribers in step with mutations.
type InventoryService struct {
	repo      repository.RecordRepository
	validator *domain.RecordValidator
	parser    *ingest.Parser
	cache     cache.SnapshotCache
	publisher events.Publisher
	archive   storage.ObjectStorage
	opts      Options
	now       func() time.Time

	// generation advances on every invalidation. A snapshot computed across
	// an advance may predate the mutation and is not cached.
	generation atomic.Uint64
}

// NewInventoryService wires the service. cacheImpl, publisher and archive
// may be nil.
func NewInventoryService(
	repo repository.RecordRepository,
	validator *domain.RecordValidator,
	cacheImpl cache.SnapshotCache,
	publisher events.Publisher,
	archive storage.ObjectStorage,
	opts Options,
) *InventoryService {
	if validator == nil {
		validator = domain.NewRecordValidator(nil)
	}
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopSnapshotCache()
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &InventoryService{
		repo:      repo,
		validator: validator,
		parser:    ingest.NewParser(validator),
		cache:     cacheImpl,
		publisher: publisher,
		archive:   archive,
		opts:      opts.withDefaults(),
		now:       time.Now,
	}
}

// DefaultParameters returns the configured lead time and forecast window.
func (s *InventoryService) DefaultParameters() policy.Parameters {
	return policy.Parameters{LeadTimeDays: s.opts.DefaultLeadTime, ForecastWindow: s.opts.ForecastWindow}
}

func (s *InventoryService) LeadTimeOptions() LeadTimeOptions {
	return LeadTimeOptions{
		Default: s.opts.DefaultLeadTime,
		Min:     s.opts.LeadTimeMin,
		Max:     s.opts.LeadTimeMax,
		Unit:    "days",
	}
}

// Dashboard returns the snapshot of one material, served from cache when
// possible.
func (s *InventoryService) Dashboard(ctx context.Context, material string, params policy.Parameters) (*policy.Snapshot, error) {
	material = s.validator.Canonical(material)
	if err := params.Validate(); err != nil {
		return nil, err
	}

	if snap, ok, err := s.cache.GetSnapshot(ctx, material, params); err == nil && ok {
		return snap, nil
	} else if err != nil {
		log.Warn().Err(err).Str("material", material).Msg("inventory: cache get snapshot failed")
	}

	gen := s.generation.Load()

	series, err := s.repo.LoadSeries(ctx, material)
	if err != nil {
		return nil, fmt.Errorf("load series: %w", err)
	}

	snap, err := policy.ComputeSnapshot(series, params)
	if err != nil {
		return nil, err
	}

	if s.generation.Load() != gen {
		log.Debug().Str("material", material).Msg("inventory: records changed during compute, snapshot not cached")
		return snap, nil
	}
	if err := s.cache.SetSnapshot(ctx, material, params, snap); err != nil {
		log.Warn().Err(err).Str("material", material).Msg("inventory: cache set snapshot failed")
	}

	return snap, nil
}

// Overview computes a summary for every material in parallel. A material
// whose snapshot fails is reported with its error instead of aborting.
func (s *InventoryService) Overview(ctx context.Context, params policy.Parameters) ([]MaterialSummary, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	materials, err := s.repo.ListMaterials(ctx)
	if err != nil {
		return nil, fmt.Errorf("list materials: %w", err)
	}

	summaries := make([]MaterialSummary, len(materials))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(overviewConcurrency)
	for i, material := range materials {
		g.Go(func() error {
			snap, err := s.Dashboard(gctx, material, params)
			if err != nil {
				if policy.KindOf(err) == "" {
					return err
				}
				summaries[i] = MaterialSummary{Material: material, Error: err.Error()}
				return nil
			}
			summaries[i] = summarize(snap)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summaries, nil
}

func summarize(snap *policy.Snapshot) MaterialSummary {
	return MaterialSummary{
		Material:        snap.Material,
		Status:          snap.Status,
		StatusLabel:     snap.Status.Label(),
		ReorderAlert:    snap.ReorderAlert,
		AlertMessage:    domain.AlertMessage(snap.ReorderAlert),
		CurrentStock:    snap.CurrentStock.String(),
		SafetyStock:     snap.SafetyStock.String(),
		ReorderPoint:    snap.ReorderPoint.String(),
		DaysOfInventory: snap.DaysOfInventory,
		LastRecordDate:  snap.LastRecordDate,
	}
}

func (s *InventoryService) ListMaterials(ctx context.Context) ([]string, error) {
	return s.repo.ListMaterials(ctx)
}

func (s *InventoryService) ListRecords(ctx context.Context, filter domain.RecordFilter) ([]domain.StockRecord, error) {
	return s.repo.ListRecords(ctx, filter)
}

// Append validates and stores a single record.
func (s *InventoryService) Append(ctx context.Context, rec domain.StockRecord) (domain.StockRecord, error) {
	rec.ID = ""
	rec.Material = s.validator.Canonical(rec.Material)
	if err := s.validator.Validate(rec, 0); err != nil {
		return domain.StockRecord{}, err
	}

	stored, err := s.repo.Append(ctx, rec)
	if err != nil {
		return domain.StockRecord{}, err
	}

	s.afterMutation(ctx, "append", []string{stored.Material}, 1)
	return stored, nil
}

// Update replaces the record with the given ID.
func (s *InventoryService) Update(ctx context.Context, id string, rec domain.StockRecord) (domain.StockRecord, error) {
	rec.ID = id
	rec.Material = s.validator.Canonical(rec.Material)
	if err := s.validator.Validate(rec, 0); err != nil {
		return domain.StockRecord{}, err
	}

	updated, err := s.repo.Update(ctx, rec)
	if err != nil {
		return domain.StockRecord{}, err
	}

	// The previous material of the record is unknown here, so every cached
	// snapshot is dropped.
	s.invalidateAll(ctx)
	s.afterMutation(ctx, "update", []string{updated.Material}, 1)
	return updated, nil
}

// Upload parses a CSV/XLSX sheet, appends every row in one batch and archives
// the raw file when object storage is configured.
func (s *InventoryService) Upload(ctx context.Context, filename string, r io.Reader) (*domain.UploadResult, error) {
	format, err := ingest.FormatFromName(filename)
	if err != nil {
		return nil, err
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	records, err := s.parser.Parse(bytes.NewReader(raw), format)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, &domain.MalformedRecordError{Fields: map[string]string{"file": "contains no records"}}
	}

	stored, err := s.repo.AppendBatch(ctx, records)
	if err != nil {
		return nil, err
	}

	result := &domain.UploadResult{
		Filename:  filepath.Base(filename),
		Inserted:  len(stored),
		Materials: repository.DistinctMaterials(stored),
		At:        s.now().UTC(),
	}

	if s.archive != nil {
		key := s.archiveKey(filename, result.At)
		if err := s.archive.UploadObject(ctx, key, raw); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("inventory: archiving upload failed")
		} else {
			result.Archived = key
		}
	}

	log.Info().
		Str("file", result.Filename).
		Int("inserted", result.Inserted).
		Strs("materials", result.Materials).
		Msg("inventory: upload ingested")

	s.afterMutation(ctx, "upload", result.Materials, result.Inserted)
	return result, nil
}

func (s *InventoryService) archiveKey(filename string, at time.Time) string {
	base := strings.ReplaceAll(filepath.Base(filename), " ", "_")
	return path.Join(s.opts.UploadsPrefix, at.Format("2006/01/02"), uuid.NewString()+"-"+base)
}

// Reload re-reads a file-backed source and drops every cached snapshot.
func (s *InventoryService) Reload(ctx context.Context) error {
	reloader, ok := s.repo.(repository.Reloader)
	if !ok {
		return ErrNotReloadable
	}
	if err := reloader.Reload(ctx); err != nil {
		return err
	}
	s.invalidateAll(ctx)
	return nil
}

func (s *InventoryService) invalidateAll(ctx context.Context) {
	s.generation.Add(1)
	if err := s.cache.InvalidateAll(ctx); err != nil {
		log.Warn().Err(err).Msg("inventory: cache invalidate failed")
	}
}

// afterMutation invalidates the touched materials, announces the change and
// raises a reorder alert for each material that needs one at the default
// lead time. Failures are logged; the mutation itself already succeeded.
func (s *InventoryService) afterMutation(ctx context.Context, op string, materials []string, count int) {
	s.generation.Add(1)
	for _, material := range materials {
		if err := s.cache.InvalidateMaterial(ctx, material); err != nil {
			log.Warn().Err(err).Str("material", material).Msg("inventory: cache invalidate failed")
		}
	}

	changed := events.RecordsChangedEvent{Operation: op, Materials: materials, Count: count}
	if err := s.publisher.Publish(ctx, events.TypeRecordsChanged, changed); err != nil {
		log.Warn().Err(err).Msg("inventory: publish records changed failed")
	}

	for _, material := range materials {
		snap, err := s.Dashboard(ctx, material, s.DefaultParameters())
		if err != nil {
			log.Warn().Err(err).Str("material", material).Msg("inventory: snapshot after mutation failed")
			continue
		}
		if !snap.ReorderAlert {
			continue
		}
		if err := s.publisher.Publish(ctx, events.TypeReorderAlert, events.NewReorderAlert(snap)); err != nil {
			log.Warn().Err(err).Str("material", material).Msg("inventory: publish reorder alert failed")
		}
	}
}

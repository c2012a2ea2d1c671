// Package sqlstore implements the relational record repository. Queries are
// written with ? placeholders and rebound for the connection's driver, so the
// same store runs on Postgres and SQLite.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/domain"
	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/repository"
)

// DB is satisfied by postgres.DB and sqlite.DB.
type DB interface {
	sqlx.ExtContext
	WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error
}

const selectColumns = `SELECT id, record_date, material, opening_stock, inflow, consumption, created_at, updated_at FROM stock_records`

const insertRecord = `INSERT INTO stock_records (id, record_date, material, opening_stock, inflow, consumption, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

type recordRow struct {
	ID           string          `db:"id"`
	RecordDate   time.Time       `db:"record_date"`
	Material     string          `db:"material"`
	OpeningStock decimal.Decimal `db:"opening_stock"`
	Inflow       decimal.Decimal `db:"inflow"`
	Consumption  decimal.Decimal `db:"consumption"`
	CreatedAt    time.Time       `db:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at"`
}

func (r recordRow) toDomain() domain.StockRecord {
	y, m, d := r.RecordDate.Date()
	return domain.StockRecord{
		ID:           r.ID,
		Date:         time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		Material:     r.Material,
		OpeningStock: r.OpeningStock,
		Inflow:       r.Inflow,
		Consumption:  r.Consumption,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

type Store struct {
	db  DB
	now func() time.Time
}

func New(db DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Migrate creates the stock_records table when missing.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schemaFor(s.db.DriverName()) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

func (s *Store) LoadSeries(ctx context.Context, material string) (domain.MaterialSeries, error) {
	query := s.db.Rebind(selectColumns + ` WHERE LOWER(TRIM(material)) = LOWER(TRIM(?)) ORDER BY record_date, seq`)

	var rows []recordRow
	if err := sqlx.SelectContext(ctx, s.db, &rows, query, material); err != nil {
		return domain.MaterialSeries{}, fmt.Errorf("failed to load series for %s: %w", material, err)
	}

	return domain.NewMaterialSeries(material, toDomain(rows)), nil
}

func (s *Store) ListMaterials(ctx context.Context) ([]string, error) {
	var names []string
	if err := sqlx.SelectContext(ctx, s.db, &names, `SELECT material FROM stock_records GROUP BY material ORDER BY MIN(seq)`); err != nil {
		return nil, fmt.Errorf("failed to list materials: %w", err)
	}
	return repository.UniqueNames(names), nil
}

// ListRecords filters by material in SQL and by date range in Go, which keeps
// the query identical across drivers with different date encodings.
func (s *Store) ListRecords(ctx context.Context, filter domain.RecordFilter) ([]domain.StockRecord, error) {
	var (
		rows []recordRow
		err  error
	)
	if filter.Material != "" {
		query := s.db.Rebind(selectColumns + ` WHERE LOWER(TRIM(material)) = LOWER(TRIM(?)) ORDER BY record_date, seq`)
		err = sqlx.SelectContext(ctx, s.db, &rows, query, filter.Material)
	} else {
		err = sqlx.SelectContext(ctx, s.db, &rows, selectColumns+` ORDER BY record_date, seq`)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	return repository.FilterRecords(toDomain(rows), filter), nil
}

func (s *Store) Append(ctx context.Context, rec domain.StockRecord) (domain.StockRecord, error) {
	stored := repository.PrepareNew(rec, s.now().UTC())
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(insertRecord), insertArgs(stored)...); err != nil {
		return domain.StockRecord{}, fmt.Errorf("failed to insert record: %w", err)
	}
	return stored, nil
}

// AppendBatch inserts all records in one transaction.
func (s *Store) AppendBatch(ctx context.Context, recs []domain.StockRecord) ([]domain.StockRecord, error) {
	now := s.now().UTC()
	out := make([]domain.StockRecord, 0, len(recs))

	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := tx.Rebind(insertRecord)
		for i, rec := range recs {
			stored := repository.PrepareNew(rec, now)
			if _, err := tx.ExecContext(ctx, query, insertArgs(stored)...); err != nil {
				return fmt.Errorf("failed to insert record %d: %w", i+1, err)
			}
			out = append(out, stored)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Update(ctx context.Context, rec domain.StockRecord) (domain.StockRecord, error) {
	var updated domain.StockRecord

	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		var row recordRow
		err := tx.GetContext(ctx, &row, tx.Rebind(selectColumns+` WHERE id = ?`), rec.ID)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrRecordNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load record %s: %w", rec.ID, err)
		}

		updated = repository.PrepareUpdate(row.toDomain(), rec, s.now().UTC())
		_, err = tx.ExecContext(ctx, tx.Rebind(`UPDATE stock_records
			SET record_date = ?, material = ?, opening_stock = ?, inflow = ?, consumption = ?, updated_at = ?
			WHERE id = ?`),
			updated.Date, updated.Material, updated.OpeningStock, updated.Inflow, updated.Consumption, updated.UpdatedAt, updated.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update record %s: %w", rec.ID, err)
		}
		return nil
	})
	if err != nil {
		return domain.StockRecord{}, err
	}
	return updated, nil
}

func insertArgs(r domain.StockRecord) []interface{} {
	return []interface{}{r.ID, r.Date, r.Material, r.OpeningStock, r.Inflow, r.Consumption, r.CreatedAt, r.UpdatedAt}
}

func toDomain(rows []recordRow) []domain.StockRecord {
	out := make([]domain.StockRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out
}

var _ repository.RecordRepository = (*Store)(nil)

// backend-go/internal/domain/models.go
package domain

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar date format used by files, query params and JSON bodies.
const DateLayout = "2006-01-02"

// StockRecord is one observation of one raw material on one date.
type StockRecord struct {
	ID           string          `json:"id" db:"id"`
	Date         time.Time       `json:"date" db:"record_date" validate:"required"`
	Material     string          `json:"material" db:"material" validate:"required,max=100"`
	OpeningStock decimal.Decimal `json:"opening_stock" db:"opening_stock" validate:"gte=0"`
	Inflow       decimal.Decimal `json:"inflow" db:"inflow" validate:"gte=0"`
	Consumption  decimal.Decimal `json:"consumption" db:"consumption" validate:"gte=0"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}

// ClosingStock is opening + inflow - consumption. It is not clamped: a
// negative value means the stored fields are inconsistent.
func (r StockRecord) ClosingStock() decimal.Decimal {
	return r.OpeningStock.Add(r.Inflow).Sub(r.Consumption)
}

// MaterialSeries is the date-ordered list of records for a single material.
type MaterialSeries struct {
	Material string
	Records  []StockRecord
}

// NewMaterialSeries keeps only the records of the given material and sorts
// them by date. Records sharing a date keep their input order. The input
// slice is never modified.
func NewMaterialSeries(material string, records []StockRecord) MaterialSeries {
	filtered := make([]StockRecord, 0, len(records))
	for _, r := range records {
		if SameMaterial(r.Material, material) {
			filtered = append(filtered, r)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Date.Before(filtered[j].Date)
	})

	return MaterialSeries{Material: material, Records: filtered}
}

// Len returns the number of records in the series.
func (s MaterialSeries) Len() int {
	return len(s.Records)
}

// Last returns the chronologically last record.
func (s MaterialSeries) Last() (StockRecord, bool) {
	if len(s.Records) == 0 {
		return StockRecord{}, false
	}
	return s.Records[len(s.Records)-1], true
}

// Consumptions returns a copy of the consumption column.
func (s MaterialSeries) Consumptions() []decimal.Decimal {
	out := make([]decimal.Decimal, len(s.Records))
	for i, r := range s.Records {
		out[i] = r.Consumption
	}
	return out
}

// SameMaterial compares material identifiers ignoring case and surrounding space.
func SameMaterial(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// RecordFilter narrows record listings.
type RecordFilter struct {
	Material string     `json:"material"`
	From     *time.Time `json:"from"`
	To       *time.Time `json:"to"`
}

// Matches reports whether r passes the filter.
func (f RecordFilter) Matches(r StockRecord) bool {
	if f.Material != "" && !SameMaterial(f.Material, r.Material) {
		return false
	}
	if f.From != nil && r.Date.Before(*f.From) {
		return false
	}
	if f.To != nil && r.Date.After(*f.To) {
		return false
	}
	return true
}

// UploadResult summarises a bulk append.
type UploadResult struct {
	Filename  string    `json:"filename"`
	Inserted  int       `json:"inserted"`
	Materials []string  `json:"materials"`
	Archived  string    `json:"archived,omitempty"`
	At        time.Time `json:"processed_at"`
}

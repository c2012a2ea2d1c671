// Package ingest turns uploaded stock sheets into validated stock records.
package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/domain"
)

// Format identifies the layout of an uploaded sheet.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ErrUnsupportedFormat is returned for file extensions other than csv/xlsx.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Canonical column names and the header spellings accepted for each.
const (
	colDate        = "date"
	colMaterial    = "material"
	colOpening     = "opening_stock"
	colInflow      = "inflow"
	colConsumption = "consumption"
)

var headerAliases = map[string]string{
	"tanggal":       colDate,
	"date":          colDate,
	"bahan":         colMaterial,
	"bahan_baku":    colMaterial,
	"material":      colMaterial,
	"stok_awal":     colOpening,
	"opening_stock": colOpening,
	"opening":       colOpening,
	"stok_masuk":    colInflow,
	"inflow":        colInflow,
	"pemakaian":     colConsumption,
	"consumption":   colConsumption,
}

var requiredColumns = []string{colDate, colMaterial, colOpening, colInflow, colConsumption}

var dateLayouts = []string{
	domain.DateLayout,
	"2006/01/02",
	"02/01/2006",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// FormatFromName picks the format from a file name's extension.
func FormatFromName(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(name))
	}
}

// Parser reads CSV or XLSX sheets and validates every row.
type Parser struct {
	validator *domain.RecordValidator
}

func NewParser(v *domain.RecordValidator) *Parser {
	if v == nil {
		v = domain.NewRecordValidator(nil)
	}
	return &Parser{validator: v}
}

// ParseFile opens path and parses it according to its extension.
func (p *Parser) ParseFile(path string) ([]domain.StockRecord, error) {
	format, err := FormatFromName(path)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	return p.Parse(file, format)
}

// Parse reads every data row of r. The first malformed row aborts the parse.
func (p *Parser) Parse(r io.Reader, format Format) ([]domain.StockRecord, error) {
	var (
		rows [][]string
		err  error
	)
	switch format {
	case FormatCSV:
		rows, err = readCSV(r)
	case FormatXLSX:
		rows, err = readXLSX(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}

	return p.parseRows(rows, format == FormatXLSX)
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	return rows, nil
}

// readXLSX reads the first sheet of a workbook.
func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("xlsx file has no sheets")
	}
	sheet := sheets[0]

	rows, err := f.Rows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from sheet %s: %w", sheet, err)
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		record, err := rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("failed to read row from sheet %s: %w", sheet, err)
		}
		out = append(out, record)
	}
	if err := rows.Error(); err != nil {
		return nil, fmt.Errorf("error iterating rows in sheet %s: %w", sheet, err)
	}

	return out, nil
}

// parseRows reads serial day numbers as dates only when serialDates is set;
// workbooks store unformatted dates that way, text sheets do not.
func (p *Parser) parseRows(rows [][]string, serialDates bool) ([]domain.StockRecord, error) {
	if len(rows) == 0 {
		return nil, &domain.MalformedRecordError{Row: 1, Fields: map[string]string{"header": "is missing"}}
	}

	colMap, err := mapHeader(rows[0])
	if err != nil {
		return nil, err
	}

	records := make([]domain.StockRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if blank(row) {
			continue
		}

		line := i + 2
		rec, err := p.parseRow(row, colMap, line, serialDates)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, nil
}

func mapHeader(header []string) (map[string]int, error) {
	colMap := make(map[string]int)
	for i, col := range header {
		key := normalizeHeader(col)
		if canonical, ok := headerAliases[key]; ok {
			if _, seen := colMap[canonical]; !seen {
				colMap[canonical] = i
			}
		}
	}

	missing := make(map[string]string)
	for _, col := range requiredColumns {
		if _, ok := colMap[col]; !ok {
			missing[col] = "column is missing"
		}
	}
	if len(missing) > 0 {
		return nil, &domain.MalformedRecordError{Row: 1, Fields: missing}
	}
	return colMap, nil
}

func normalizeHeader(col string) string {
	col = strings.TrimPrefix(col, "\ufeff")
	col = strings.ToLower(strings.TrimSpace(col))
	return strings.Join(strings.Fields(col), "_")
}

func (p *Parser) parseRow(row []string, colMap map[string]int, line int, serialDates bool) (domain.StockRecord, error) {
	cell := func(col string) string {
		idx := colMap[col]
		if idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	details := make(map[string]string)
	rec := domain.StockRecord{
		Material: p.validator.Canonical(cell(colMaterial)),
	}

	if raw := cell(colDate); raw != "" {
		d, err := ParseDate(raw)
		if err != nil && serialDates {
			d, err = ParseSerialDate(raw)
		}
		if err != nil {
			details[colDate] = fmt.Sprintf("cannot parse %q", raw)
		} else {
			rec.Date = d
		}
	}

	quantities := []struct {
		col string
		dst *decimal.Decimal
	}{
		{colOpening, &rec.OpeningStock},
		{colInflow, &rec.Inflow},
		{colConsumption, &rec.Consumption},
	}
	for _, q := range quantities {
		v, err := ParseQuantity(cell(q.col))
		if err != nil {
			details[q.col] = fmt.Sprintf("cannot parse %q", cell(q.col))
			continue
		}
		*q.dst = v
	}

	if err := p.validator.Validate(rec, line); err != nil {
		var malformed *domain.MalformedRecordError
		if !errors.As(err, &malformed) {
			return domain.StockRecord{}, err
		}
		for k, v := range malformed.Fields {
			if _, ok := details[k]; !ok {
				details[k] = v
			}
		}
	}

	if len(details) > 0 {
		return domain.StockRecord{}, &domain.MalformedRecordError{Row: line, Fields: details}
	}
	return rec, nil
}

// ParseDate accepts ISO dates and a few day-first variants. Bare numbers
// are rejected.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", raw)
}

// ParseSerialDate reads a spreadsheet serial day number (1900 date system).
func ParseSerialDate(raw string) (time.Time, error) {
	serial, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || serial <= 0 {
		return time.Time{}, fmt.Errorf("unrecognised date %q", raw)
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognised date %q: %w", raw, err)
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}

// ParseQuantity parses a tonnage cell. Empty cells are zero and a lone
// comma is read as the decimal separator.
func ParseQuantity(raw string) (decimal.Decimal, error) {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), " ", "")
	if raw == "" {
		return decimal.Zero, nil
	}
	if strings.Count(raw, ",") == 1 && !strings.Contains(raw, ".") {
		raw = strings.Replace(raw, ",", ".", 1)
	}
	return decimal.NewFromString(raw)
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// WriteCSV renders records with the plant's Indonesian header, used for
// exports and test fixtures.
func WriteCSV(w io.Writer, records []domain.StockRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"tanggal", "bahan", "stok_awal", "stok_masuk", "pemakaian"}); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, r := range records {
		row := []string{
			r.Date.Format(domain.DateLayout),
			r.Material,
			r.OpeningStock.String(),
			r.Inflow.String(),
			r.Consumption.String(),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// EncodeCSV is WriteCSV into a byte slice.
func EncodeCSV(records []domain.StockRecord) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

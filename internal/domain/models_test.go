package domain_test

import (
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(material string, d int, consumption int64) domain.StockRecord {
	return domain.StockRecord{
		ID:           material + "-" + strconv.Itoa(d),
		Date:         time.Date(2025, time.January, 1+d, 0, 0, 0, 0, time.UTC),
		Material:     material,
		OpeningStock: decimal.NewFromInt(100),
		Inflow:       decimal.Zero,
		Consumption:  decimal.NewFromInt(consumption),
	}
}

func TestNewMaterialSeries_FiltersAndSorts(t *testing.T) {
	input := []domain.StockRecord{
		record("Urea", 3, 30),
		record("Amonia", 1, 10),
		record(" urea ", 1, 10),
		record("Urea", 2, 20),
	}
	snapshot := append([]domain.StockRecord(nil), input...)

	s := domain.NewMaterialSeries("Urea", input)

	require.Equal(t, 3, s.Len())
	assert.Equal(t, "Urea", s.Material)
	assert.True(t, s.Records[0].Consumption.Equal(decimal.NewFromInt(10)))
	assert.True(t, s.Records[2].Consumption.Equal(decimal.NewFromInt(30)))
	assert.Equal(t, snapshot, input, "input must not be reordered")

	last, ok := s.Last()
	require.True(t, ok)
	assert.Equal(t, 3, last.Date.Day()-1)
}

func TestNewMaterialSeries_StableForSameDate(t *testing.T) {
	a := record("Urea", 1, 5)
	b := record("Urea", 1, 7)
	a.ID, b.ID = "first", "second"

	s := domain.NewMaterialSeries("Urea", []domain.StockRecord{a, b})
	assert.Equal(t, "first", s.Records[0].ID)
	assert.Equal(t, "second", s.Records[1].ID)
}

func TestMaterialSeries_Empty(t *testing.T) {
	s := domain.NewMaterialSeries("KCl", nil)
	_, ok := s.Last()
	assert.False(t, ok)
	assert.Empty(t, s.Consumptions())
}

func TestStockRecord_ClosingStockNotClamped(t *testing.T) {
	r := domain.StockRecord{
		OpeningStock: decimal.NewFromInt(5),
		Inflow:       decimal.NewFromInt(1),
		Consumption:  decimal.NewFromInt(9),
	}
	assert.True(t, r.ClosingStock().Equal(decimal.NewFromInt(-3)))
}

func TestRecordFilter_Matches(t *testing.T) {
	from := time.Date(2025, time.January, 2, 0, 0, 0, 0, time.UTC)
	f := domain.RecordFilter{Material: "urea", From: &from}

	assert.False(t, f.Matches(record("Urea", 0, 1)))
	assert.True(t, f.Matches(record("Urea", 1, 1)))
	assert.False(t, f.Matches(record("Amonia", 1, 1)))
}

func TestRecordValidator(t *testing.T) {
	v := domain.NewRecordValidator([]string{"Urea", "Amonia", " "})

	ok := record("urea", 0, 10)
	require.NoError(t, v.Validate(ok, 2))
	assert.Equal(t, "Urea", v.Canonical(" UREA"))
	assert.Equal(t, "Sulfur", v.Canonical(" Sulfur "))

	bad := domain.StockRecord{
		Material:     "Sulfur",
		OpeningStock: decimal.NewFromInt(-1),
		Consumption:  decimal.RequireFromString("-0.5"),
	}
	err := v.Validate(bad, 7)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrMalformedRecord))
	assert.True(t, domain.IsClientError(err))

	var mre *domain.MalformedRecordError
	require.True(t, errors.As(err, &mre))
	assert.Equal(t, 7, mre.Row)
	assert.Contains(t, mre.Fields, "date")
	assert.Contains(t, mre.Fields, "opening_stock")
	assert.Contains(t, mre.Fields, "consumption")
	assert.NotContains(t, mre.Fields, "inflow")
	assert.Contains(t, mre.Fields["material"], "must be one of")
	assert.Contains(t, err.Error(), "row 7")
}

func TestRecordValidator_NoAllowList(t *testing.T) {
	v := domain.NewRecordValidator(nil)
	require.NoError(t, v.Validate(record("Anything", 0, 1), 0))

	err := v.Validate(domain.StockRecord{Date: time.Now()}, 0)
	var mre *domain.MalformedRecordError
	require.True(t, errors.As(err, &mre))
	assert.Equal(t, "is required", mre.Fields["material"])
}

func TestParseStatus(t *testing.T) {
	s, ok := domain.ParseStatus("Kritis")
	require.True(t, ok)
	assert.Equal(t, domain.StatusCritical, s)
	assert.Equal(t, "AMAN", domain.StatusSafe.Label())

	_, ok = domain.ParseStatus("unknown")
	assert.False(t, ok)
}

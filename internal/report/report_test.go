package report_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/domain"
	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/policy"
	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/report"
	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/service"
)

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in       string
		decimals int
		want     string
	}{
		{"0", 0, "0"},
		{"999", 0, "999"},
		{"1000", 0, "1.000"},
		{"1234567.891", 2, "1.234.567,89"},
		{"-2500.5", 1, "-2.500,5"},
		{"0.25", 1, "0,3"},
		{"-0.04", 1, "0,0"},
		{"123456", 0, "123.456"},
	}
	for _, tt := range tests {
		got := report.FormatNumber(decimal.RequireFromString(tt.in), tt.decimals)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestFormatMetric(t *testing.T) {
	assert.Equal(t, "1,5 hari", report.Days(policy.Metric{Value: decimal.RequireFromString("1.5")}))
	assert.Equal(t, report.Undefined, report.Days(policy.Metric{Err: errors.New("x")}))
	assert.Equal(t, "12.000 ton", report.Tons(decimal.NewFromInt(12000)))
}

func TestRenderSnapshot(t *testing.T) {
	day := func(n int) time.Time { return time.Date(2024, 1, n, 0, 0, 0, 0, time.UTC) }
	records := []domain.StockRecord{
		{Date: day(1), Material: "Urea", OpeningStock: decimal.NewFromInt(100), Inflow: decimal.NewFromInt(20), Consumption: decimal.NewFromInt(30)},
		{Date: day(2), Material: "Urea", OpeningStock: decimal.NewFromInt(90), Inflow: decimal.NewFromInt(10), Consumption: decimal.NewFromInt(40)},
		{Date: day(3), Material: "Urea", OpeningStock: decimal.NewFromInt(60), Consumption: decimal.NewFromInt(50)},
	}
	snap, err := policy.ComputeSnapshot(domain.NewMaterialSeries("Urea", records), policy.Parameters{LeadTimeDays: 2})
	require.NoError(t, err)

	var sb strings.Builder
	require.NoError(t, report.RenderSnapshot(&sb, snap))
	out := sb.String()

	assert.Contains(t, out, "KRITIS")
	assert.Contains(t, out, "180 ton")
	assert.Contains(t, out, "0,3 hari")
	assert.Contains(t, out, domain.AlertMessage(true))
	assert.Contains(t, out, "2024-01-03")
	assert.Contains(t, out, "40,0")
}

func TestRenderOverview(t *testing.T) {
	var sb strings.Builder
	err := report.RenderOverview(&sb, []service.MaterialSummary{
		{Material: "Urea", StatusLabel: "KRITIS", CurrentStock: "10", ReorderPoint: "180", ReorderAlert: true,
			DaysOfInventory: policy.Metric{Value: decimal.RequireFromString("0.25")}},
		{Material: "KCl", Error: "DATA_INSUFFICIENT"},
	})
	require.NoError(t, err)
	assert.Contains(t, sb.String(), "PESAN")
	assert.Contains(t, sb.String(), "DATA_INSUFFICIENT")
}

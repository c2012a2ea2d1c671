package policy_test

import (
	"encoding/json"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/domain"
	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/policy"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(n int) time.Time {
	return time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func rec(n int, opening, inflow, consumption int64) domain.StockRecord {
	return domain.StockRecord{
		Date:         day(n),
		Material:     "Urea",
		OpeningStock: decimal.NewFromInt(opening),
		Inflow:       decimal.NewFromInt(inflow),
		Consumption:  decimal.NewFromInt(consumption),
	}
}

func series(records ...domain.StockRecord) domain.MaterialSeries {
	return domain.NewMaterialSeries("Urea", records)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDec(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), append([]interface{}{"want %s, got %s", want, got.String()}, msgAndArgs...)...)
}

func assertDecNear(t *testing.T, want float64, got decimal.Decimal) {
	t.Helper()
	f, _ := got.Float64()
	assert.InDelta(t, want, f, 1e-9)
}

func TestClosingStock(t *testing.T) {
	tests := []struct {
		name   string
		record domain.StockRecord
		want   string
	}{
		{"inflow and consumption", rec(0, 100, 20, 30), "90"},
		{"no movement", rec(0, 50, 0, 0), "50"},
		{"negative is kept", rec(0, 10, 0, 25), "-15"},
		{
			"fractional tons",
			domain.StockRecord{OpeningStock: dec("10.25"), Inflow: dec("0.5"), Consumption: dec("3.125")},
			"7.625",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertDec(t, tt.want, policy.ClosingStock(tt.record))
		})
	}
}

func TestComputeSnapshot_PlantExample(t *testing.T) {
	s := series(
		rec(0, 100, 20, 30),
		rec(1, 90, 10, 40),
		rec(2, 60, 0, 50),
	)

	snap, err := policy.ComputeSnapshot(s, policy.Parameters{LeadTimeDays: 2})
	require.NoError(t, err)

	require.Len(t, snap.Closing, 3)
	assertDec(t, "90", snap.Closing[0].ClosingStock)
	assertDec(t, "60", snap.Closing[1].ClosingStock)
	assertDec(t, "10", snap.Closing[2].ClosingStock)

	assertDec(t, "40", snap.AverageConsumption)
	assertDec(t, "50", snap.MaxConsumption)
	assertDec(t, "30", snap.MinConsumption)
	assertDec(t, "100", snap.SafetyStock)
	assertDec(t, "180", snap.ReorderPoint)
	assertDec(t, "10", snap.CurrentStock)

	assert.Equal(t, domain.StatusCritical, snap.Status)
	assert.True(t, snap.ReorderAlert)

	require.True(t, snap.DaysOfInventory.Defined())
	assertDec(t, "0.25", snap.DaysOfInventory.Value)
	assertDec(t, "0.2", snap.RunwayMin.Value)
	assertDec(t, "0.25", snap.RunwayNormal.Value)
	assertDecNear(t, 1.0/3.0, snap.RunwayMax.Value)
	assert.True(t, snap.Complete())

	assert.Equal(t, 3, snap.RecordCount)
	assert.Equal(t, day(2), snap.LastRecordDate)
	assert.Equal(t, policy.DefaultForecastWindow, snap.Parameters.ForecastWindow)
	require.Len(t, snap.Forecast, 3)
	assert.False(t, snap.Forecast[1].Defined)
	assertDec(t, "40", snap.Forecast[2].Value)
}

func TestComputeSnapshot_EmptySeries(t *testing.T) {
	snap, err := policy.ComputeSnapshot(series(), policy.Parameters{LeadTimeDays: 6})
	require.Error(t, err)
	assert.Nil(t, snap)
	assert.True(t, errors.Is(err, policy.ErrDataInsufficient))
	assert.Equal(t, policy.KindDataInsufficient, policy.KindOf(err))
}

func TestComputeSnapshot_InvalidParameters(t *testing.T) {
	s := series(rec(0, 100, 0, 10))

	for _, params := range []policy.Parameters{
		{LeadTimeDays: 0},
		{LeadTimeDays: -3},
		{LeadTimeDays: 2, ForecastWindow: -1},
	} {
		_, err := policy.ComputeSnapshot(s, params)
		require.Error(t, err, "params %+v", params)
		assert.True(t, errors.Is(err, policy.ErrInvalidParameters))
	}
}

func TestComputeSnapshot_ZeroConsumption(t *testing.T) {
	s := series(rec(0, 50, 0, 0), rec(1, 50, 10, 0))

	snap, err := policy.ComputeSnapshot(s, policy.Parameters{LeadTimeDays: 6})
	require.NoError(t, err)

	assertDec(t, "0", snap.SafetyStock)
	assertDec(t, "0", snap.ReorderPoint)
	assertDec(t, "60", snap.CurrentStock)
	assert.Equal(t, domain.StatusSafe, snap.Status)
	assert.False(t, snap.ReorderAlert)

	assert.False(t, snap.DaysOfInventory.Defined())
	assert.True(t, errors.Is(snap.DaysOfInventory.Err, policy.ErrDegenerateConsumption))
	assert.Equal(t, policy.KindDegenerateConsumption, policy.KindOf(snap.RunwayNormal.Err))
	assert.Equal(t, policy.KindRunwayUndefined, policy.KindOf(snap.RunwayMin.Err))
	assert.Equal(t, policy.KindRunwayUndefined, policy.KindOf(snap.RunwayMax.Err))

	assert.Len(t, snap.Errors(), 4)
	assert.False(t, snap.Complete())
}

func TestComputeSnapshot_ZeroConsumptionEmptyStock(t *testing.T) {
	snap, err := policy.ComputeSnapshot(series(rec(0, 0, 0, 0)), policy.Parameters{LeadTimeDays: 1})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusSafe, snap.Status)
	assert.True(t, snap.ReorderAlert)
}

func TestComputeSnapshot_OnlyMinimumIsZero(t *testing.T) {
	s := series(rec(0, 100, 0, 0), rec(1, 100, 0, 20))

	snap, err := policy.ComputeSnapshot(s, policy.Parameters{LeadTimeDays: 1})
	require.NoError(t, err)

	assertDec(t, "80", snap.CurrentStock)
	assert.True(t, snap.DaysOfInventory.Defined())
	assertDec(t, "8", snap.DaysOfInventory.Value)
	assertDec(t, "4", snap.RunwayMin.Value)
	assertDec(t, "8", snap.RunwayNormal.Value)

	assert.False(t, snap.RunwayMax.Defined())
	assert.True(t, errors.Is(snap.RunwayMax.Err, policy.ErrRunwayUndefined))

	var pe *policy.Error
	require.True(t, errors.As(snap.RunwayMax.Err, &pe))
	assert.Equal(t, policy.MetricRunwayMax, pe.Metric)
	assert.Equal(t, "Urea", pe.Material)
	assert.Len(t, snap.Errors(), 1)
}

func TestComputeSnapshot_StatusBoundaries(t *testing.T) {
	// Single record with 20 t/day consumption: SS = 20*L, ROP = 40*L.
	tests := []struct {
		name     string
		opening  int64
		leadTime int
		status   domain.Status
		alert    bool
	}{
		{"below safety stock", 70, 4, domain.StatusCritical, true},
		{"exactly safety stock", 100, 4, domain.StatusWarning, true},
		{"between safety and reorder", 120, 4, domain.StatusWarning, true},
		{"exactly reorder point", 100, 2, domain.StatusSafe, true},
		{"above reorder point", 200, 2, domain.StatusSafe, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap, err := policy.ComputeSnapshot(series(rec(0, tt.opening, 0, 20)), policy.Parameters{LeadTimeDays: tt.leadTime})
			require.NoError(t, err)
			assert.Equal(t, tt.status, snap.Status)
			assert.Equal(t, tt.alert, snap.ReorderAlert)
		})
	}
}

func TestComputeSnapshot_ReorderPointWithRepeatingMean(t *testing.T) {
	// Mean consumption is 40/3; ROP = 40*3/3 + 20*3 = 100 exactly.
	s := series(
		rec(0, 200, 0, 10),
		rec(1, 190, 0, 10),
		rec(2, 120, 0, 20),
	)

	snap, err := policy.ComputeSnapshot(s, policy.Parameters{LeadTimeDays: 3})
	require.NoError(t, err)

	assertDec(t, "60", snap.SafetyStock)
	assertDec(t, "100", snap.ReorderPoint)
	assertDec(t, "100", snap.CurrentStock)
	assert.Equal(t, domain.StatusSafe, snap.Status)
	assert.True(t, snap.ReorderAlert)

	assertDec(t, "7.5", snap.DaysOfInventory.Value)
	assertDec(t, "7.5", snap.RunwayNormal.Value)
	assertDec(t, "5", snap.RunwayMin.Value)
	assertDec(t, "10", snap.RunwayMax.Value)
}

func TestComputeSnapshot_NegativeClosingStock(t *testing.T) {
	snap, err := policy.ComputeSnapshot(series(rec(0, 10, 0, 30)), policy.Parameters{LeadTimeDays: 1})
	require.NoError(t, err)

	assertDec(t, "-20", snap.CurrentStock)
	assert.Equal(t, domain.StatusCritical, snap.Status)
	assertDecNear(t, -2.0/3.0, snap.DaysOfInventory.Value)
}

func TestComputeSnapshot_SingleRecord(t *testing.T) {
	snap, err := policy.ComputeSnapshot(series(rec(0, 300, 0, 25)), policy.Parameters{LeadTimeDays: 3})
	require.NoError(t, err)

	assert.True(t, snap.AverageConsumption.Equal(snap.MaxConsumption))
	assert.True(t, snap.MaxConsumption.Equal(snap.MinConsumption))
	assert.True(t, snap.RunwayMin.Value.Equal(snap.RunwayNormal.Value))
	assert.True(t, snap.RunwayNormal.Value.Equal(snap.RunwayMax.Value))

	require.Len(t, snap.Forecast, 1)
	assert.False(t, snap.Forecast[0].Defined)
}

func TestComputeSnapshot_UsesLastRecordByDate(t *testing.T) {
	records := []domain.StockRecord{
		rec(5, 40, 0, 10),
		rec(1, 100, 0, 10),
		rec(3, 70, 0, 10),
	}

	snap, err := policy.ComputeSnapshot(domain.NewMaterialSeries("Urea", records), policy.Parameters{LeadTimeDays: 1})
	require.NoError(t, err)
	assertDec(t, "30", snap.CurrentStock)
	assert.Equal(t, day(5), snap.LastRecordDate)
}

func TestComputeSnapshot_DoesNotMutateInput(t *testing.T) {
	s := series(rec(0, 100, 20, 30), rec(1, 90, 10, 40))
	before := make([]domain.StockRecord, len(s.Records))
	copy(before, s.Records)

	_, err := policy.ComputeSnapshot(s, policy.Parameters{LeadTimeDays: 2})
	require.NoError(t, err)
	assert.Equal(t, before, s.Records)
}

func TestComputeSnapshot_Idempotent(t *testing.T) {
	s := series(rec(0, 100, 20, 33), rec(1, 87, 10, 41), rec(2, 56, 5, 17), rec(3, 44, 0, 29))
	params := policy.Parameters{LeadTimeDays: 5}

	first, err := policy.ComputeSnapshot(s, params)
	require.NoError(t, err)
	second, err := policy.ComputeSnapshot(s, params)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestComputeSnapshot_ThresholdOrdering(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 200; i++ {
		n := 1 + rng.Intn(15)
		records := make([]domain.StockRecord, n)
		for j := range records {
			records[j] = rec(j, rng.Int63n(500), rng.Int63n(100), rng.Int63n(120))
		}
		leadTime := 1 + rng.Intn(14)

		snap, err := policy.ComputeSnapshot(series(records...), policy.Parameters{LeadTimeDays: leadTime})
		require.NoError(t, err)

		assert.True(t, snap.ReorderPoint.GreaterThanOrEqual(snap.SafetyStock), "reorder point below safety stock")

		current := snap.CurrentStock
		assert.Equal(t, current.LessThan(snap.SafetyStock), snap.Status == domain.StatusCritical)
		assert.Equal(t, current.GreaterThanOrEqual(snap.ReorderPoint), snap.Status == domain.StatusSafe)
		assert.Equal(t, current.LessThanOrEqual(snap.ReorderPoint), snap.ReorderAlert)
		assert.Len(t, snap.Forecast, n)
	}
}

func TestClassify(t *testing.T) {
	assert.Equal(t, domain.StatusCritical, policy.Classify(dec("9.99"), dec("10"), dec("20")))
	assert.Equal(t, domain.StatusWarning, policy.Classify(dec("10"), dec("10"), dec("20")))
	assert.Equal(t, domain.StatusSafe, policy.Classify(dec("20"), dec("10"), dec("20")))
	assert.True(t, policy.ReorderAlert(dec("20"), dec("20")))
	assert.False(t, policy.ReorderAlert(dec("20.01"), dec("20")))
}

func TestMetric_MarshalJSON(t *testing.T) {
	snap, err := policy.ComputeSnapshot(series(rec(0, 50, 0, 0)), policy.Parameters{LeadTimeDays: 1})
	require.NoError(t, err)

	raw, err := snap.DaysOfInventory.MarshalJSON()
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"value":null`)
	assert.Contains(t, string(raw), `"error":"DEGENERATE_CONSUMPTION"`)

	ok, err := policy.ComputeSnapshot(series(rec(0, 50, 0, 10)), policy.Parameters{LeadTimeDays: 1})
	require.NoError(t, err)
	raw, err = ok.DaysOfInventory.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"value":"4"}`, string(raw))
}

func TestSnapshot_JSONKeepsMetricErrors(t *testing.T) {
	snap, err := policy.ComputeSnapshot(series(rec(0, 50, 0, 0), rec(1, 50, 0, 10)), policy.Parameters{LeadTimeDays: 2})
	require.NoError(t, err)
	require.True(t, snap.RunwayMin.Defined())
	require.False(t, snap.RunwayMax.Defined())

	raw, err := json.Marshal(snap)
	require.NoError(t, err)

	var decoded policy.Snapshot
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.True(t, decoded.RunwayMin.Defined())
	assert.True(t, snap.RunwayMin.Value.Equal(decoded.RunwayMin.Value))
	assert.ErrorIs(t, decoded.RunwayMax.Err, policy.ErrRunwayUndefined)
	assert.Equal(t, policy.KindRunwayUndefined, policy.KindOf(decoded.RunwayMax.Err))
	assert.Equal(t, snap.RunwayMax.Err.Error(), decoded.RunwayMax.Err.Error())
	assert.Equal(t, snap.Status, decoded.Status)
	assert.Len(t, decoded.Forecast, 2)

	again, err := json.Marshal(&decoded)
	require.NoError(t, err)
	assert.JSONEq(t, string(raw), string(again))
}

// Package policy turns a material's stock movements into inventory policy
// figures: safety stock, reorder point, days of inventory, status, runway
// and a moving-average consumption forecast.
//
// Every function is pure. Inputs are never mutated and results hold no
// references to caller state, so snapshots for different materials may be
// computed in parallel without synchronisation.
package policy

import (
	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/domain"
	"github.com/shopspring/decimal"
)

// Metric names used in errors.
const (
	MetricDaysOfInventory = "days_of_inventory"
	MetricRunwayMin       = "runway_min"
	MetricRunwayNormal    = "runway_normal"
	MetricRunwayMax       = "runway_max"
)

// ClosingStock returns opening + inflow - consumption, unclamped.
func ClosingStock(r domain.StockRecord) decimal.Decimal {
	return r.ClosingStock()
}

// ConsumptionStats returns mean, max and min consumption of the series.
func ConsumptionStats(series domain.MaterialSeries) (avg, maxUse, minUse decimal.Decimal, err error) {
	sum, maxUse, minUse, err := consumptionTotals(series)
	if err != nil {
		return avg, maxUse, minUse, err
	}
	return sum.Div(decimal.NewFromInt(int64(series.Len()))), maxUse, minUse, nil
}

// consumptionTotals returns the exact consumption sum together with the
// extremes. Derived figures scale the sum before dividing by the record
// count so no rounded mean reaches a comparison.
func consumptionTotals(series domain.MaterialSeries) (sum, maxUse, minUse decimal.Decimal, err error) {
	if series.Len() == 0 {
		return sum, maxUse, minUse, &Error{Kind: KindDataInsufficient, Material: series.Material}
	}

	sum = decimal.Zero
	for i, r := range series.Records {
		c := r.Consumption
		sum = sum.Add(c)
		if i == 0 || c.GreaterThan(maxUse) {
			maxUse = c
		}
		if i == 0 || c.LessThan(minUse) {
			minUse = c
		}
	}
	return sum, maxUse, minUse, nil
}

// Classify applies the status precedence: below safety stock is CRITICAL,
// otherwise below the reorder point is WARNING, otherwise SAFE.
func Classify(current, safetyStock, reorderPoint decimal.Decimal) domain.Status {
	switch {
	case current.LessThan(safetyStock):
		return domain.StatusCritical
	case current.LessThan(reorderPoint):
		return domain.StatusWarning
	default:
		return domain.StatusSafe
	}
}

// ReorderAlert is true when current stock has reached the reorder point.
// It is independent of Classify and uses an inclusive comparison.
func ReorderAlert(current, reorderPoint decimal.Decimal) bool {
	return current.LessThanOrEqual(reorderPoint)
}

// ComputeSnapshot derives the full policy snapshot for a series.
//
// It fails only for an empty series (DATA_INSUFFICIENT) or invalid
// parameters. Division by a zero consumption figure leaves the affected
// metric undefined and records the reason on it; the remaining figures are
// still returned.
func ComputeSnapshot(series domain.MaterialSeries, params Parameters) (*Snapshot, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	sum, maxUse, minUse, err := consumptionTotals(series)
	if err != nil {
		return nil, err
	}

	n := decimal.NewFromInt(int64(series.Len()))
	avg := sum.Div(n)
	leadTime := decimal.NewFromInt(int64(params.LeadTimeDays))
	safetyStock := maxUse.Mul(leadTime)
	reorderPoint := sum.Mul(leadTime).Div(n).Add(safetyStock)

	closing := closingSeries(series)
	last := closing[len(closing)-1]
	current := last.ClosingStock

	forecast, err := Forecast(series, params.Window())
	if err != nil {
		return nil, err
	}

	material := series.Material

	snap := &Snapshot{
		Material:           material,
		Parameters:         Parameters{LeadTimeDays: params.LeadTimeDays, ForecastWindow: params.Window()},
		RecordCount:        series.Len(),
		LastRecordDate:     last.Date,
		AverageConsumption: avg,
		MaxConsumption:     maxUse,
		MinConsumption:     minUse,
		SafetyStock:        safetyStock,
		ReorderPoint:       reorderPoint,
		CurrentStock:       current,
		Status:             Classify(current, safetyStock, reorderPoint),
		ReorderAlert:       ReorderAlert(current, reorderPoint),
		Closing:            closing,
		Forecast:           forecast,
	}

	// current / (sum / n), kept as current * n / sum.
	scaled := current.Mul(n)
	snap.DaysOfInventory = divide(scaled, sum, KindDegenerateConsumption, MetricDaysOfInventory, material)
	snap.RunwayMin = divide(current, maxUse, KindRunwayUndefined, MetricRunwayMin, material)
	snap.RunwayNormal = divide(scaled, sum, KindDegenerateConsumption, MetricRunwayNormal, material)
	snap.RunwayMax = divide(current, minUse, KindRunwayUndefined, MetricRunwayMax, material)

	return snap, nil
}

func closingSeries(series domain.MaterialSeries) []ClosingPoint {
	out := make([]ClosingPoint, len(series.Records))
	for i, r := range series.Records {
		out[i] = ClosingPoint{
			RecordID:     r.ID,
			Date:         r.Date,
			OpeningStock: r.OpeningStock,
			Inflow:       r.Inflow,
			Consumption:  r.Consumption,
			ClosingStock: ClosingStock(r),
		}
	}
	return out
}

func divide(numerator, divisor decimal.Decimal, kind ErrorKind, metric, material string) Metric {
	if divisor.IsZero() {
		return Metric{Err: newMetricError(kind, metric, material, "consumption divisor is zero")}
	}
	return defined(numerator.Div(divisor))
}

package policy

import (
	"fmt"
	"iter"

	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/domain"
	"github.com/shopspring/decimal"
)

// ForecastSeq yields, for every index of the series, the trailing mean of
// consumption over the last window records. Indexes before window-1 yield
// an undefined point rather than a partial average.
//
// The consumption values are captured when ForecastSeq is called. Each
// range over the returned sequence recomputes from that capture.
func ForecastSeq(series domain.MaterialSeries, window int) (iter.Seq2[int, ForecastPoint], error) {
	if window < 1 {
		return nil, &Error{Kind: KindInvalidParameters, Material: series.Material, Reason: fmt.Sprintf("forecast window must be at least 1, got %d", window)}
	}

	records := make([]domain.StockRecord, len(series.Records))
	copy(records, series.Records)
	divisor := decimal.NewFromInt(int64(window))

	return func(yield func(int, ForecastPoint) bool) {
		sum := decimal.Zero
		for i, r := range records {
			sum = sum.Add(r.Consumption)
			if i >= window {
				sum = sum.Sub(records[i-window].Consumption)
			}

			p := ForecastPoint{Index: i, Date: r.Date, Actual: r.Consumption}
			if i >= window-1 {
				p.Value = sum.Div(divisor)
				p.Defined = true
			}

			if !yield(i, p) {
				return
			}
		}
	}, nil
}

// Forecast collects ForecastSeq into a slice of the same length as the series.
func Forecast(series domain.MaterialSeries, window int) ([]ForecastPoint, error) {
	seq, err := ForecastSeq(series, window)
	if err != nil {
		return nil, err
	}

	out := make([]ForecastPoint, 0, series.Len())
	for _, p := range seq {
		out = append(out, p)
	}
	return out, nil
}

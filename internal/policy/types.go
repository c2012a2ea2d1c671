package policy

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	// DefaultLeadTimeDays is the supplier lead time offered before the user
	// picks one.
	DefaultLeadTimeDays = 6

	// DefaultForecastWindow is the trailing window of the consumption forecast.
	DefaultForecastWindow = 3
)

// Parameters is the caller-supplied policy configuration.
type Parameters struct {
	LeadTimeDays   int `json:"lead_time_days"`
	ForecastWindow int `json:"forecast_window"` // 0 means DefaultForecastWindow
}

// Window returns the effective forecast window.
func (p Parameters) Window() int {
	if p.ForecastWindow == 0 {
		return DefaultForecastWindow
	}
	return p.ForecastWindow
}

// Validate rejects a lead time or forecast window below one.
func (p Parameters) Validate() error {
	if p.LeadTimeDays < 1 {
		return &Error{Kind: KindInvalidParameters, Reason: fmt.Sprintf("lead time must be at least 1 day, got %d", p.LeadTimeDays)}
	}
	if p.Window() < 1 {
		return &Error{Kind: KindInvalidParameters, Reason: fmt.Sprintf("forecast window must be at least 1, got %d", p.ForecastWindow)}
	}
	return nil
}

// Metric is a derived quantity that may be undefined. When Err is set the
// Value is zero and must not be displayed.
type Metric struct {
	Value decimal.Decimal
	Err   error
}

func defined(v decimal.Decimal) Metric { return Metric{Value: v} }

// Defined reports whether the metric has a value.
func (m Metric) Defined() bool { return m.Err == nil }

// MarshalJSON emits {"value": "..."} or {"value": null, "error": "KIND"}.
func (m Metric) MarshalJSON() ([]byte, error) {
	if m.Err != nil {
		return json.Marshal(struct {
			Value   *decimal.Decimal `json:"value"`
			Error   ErrorKind        `json:"error"`
			Message string           `json:"message"`
		}{Error: KindOf(m.Err), Message: m.Err.Error()})
	}
	return json.Marshal(struct {
		Value decimal.Decimal `json:"value"`
	}{Value: m.Value})
}

// UnmarshalJSON restores a metric encoded by MarshalJSON. A decoded error
// keeps its kind and message and still matches the kind's sentinel.
func (m *Metric) UnmarshalJSON(data []byte) error {
	var raw struct {
		Value   *decimal.Decimal `json:"value"`
		Error   ErrorKind        `json:"error"`
		Message string           `json:"message"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*m = Metric{}
	if raw.Error != "" {
		m.Err = &decodedError{kind: raw.Error, message: raw.Message}
		return nil
	}
	if raw.Value != nil {
		m.Value = *raw.Value
	}
	return nil
}

type decodedError struct {
	kind    ErrorKind
	message string
}

func (e *decodedError) Error() string { return e.message }

func (e *decodedError) Unwrap() error { return kindSentinels[e.kind] }

// ClosingPoint is a record annotated with its derived closing stock.
type ClosingPoint struct {
	RecordID     string          `json:"record_id"`
	Date         time.Time       `json:"date"`
	OpeningStock decimal.Decimal `json:"opening_stock"`
	Inflow       decimal.Decimal `json:"inflow"`
	Consumption  decimal.Decimal `json:"consumption"`
	ClosingStock decimal.Decimal `json:"closing_stock"`
}

// ForecastPoint is one element of the moving-average forecast, index-aligned
// with the series. Value is meaningful only when Defined is true.
type ForecastPoint struct {
	Index   int             `json:"index"`
	Date    time.Time       `json:"date"`
	Actual  decimal.Decimal `json:"actual"`
	Value   decimal.Decimal `json:"value"`
	Defined bool            `json:"defined"`
}

// Snapshot is computed once per (series, parameters) pair.
type Snapshot struct {
	Material       string     `json:"material"`
	Parameters     Parameters `json:"parameters"`
	RecordCount    int        `json:"record_count"`
	LastRecordDate time.Time  `json:"last_record_date"`

	AverageConsumption decimal.Decimal `json:"average_consumption"`
	MaxConsumption     decimal.Decimal `json:"max_consumption"`
	MinConsumption     decimal.Decimal `json:"min_consumption"`

	SafetyStock  decimal.Decimal `json:"safety_stock"`
	ReorderPoint decimal.Decimal `json:"reorder_point"`
	CurrentStock decimal.Decimal `json:"current_stock"`

	DaysOfInventory Metric        `json:"days_of_inventory"`
	Status          domain.Status `json:"status"`
	ReorderAlert    bool          `json:"reorder_alert"`

	// RunwayMin assumes max consumption, RunwayMax assumes min consumption.
	RunwayMin    Metric `json:"runway_min"`
	RunwayNormal Metric `json:"runway_normal"`
	RunwayMax    Metric `json:"runway_max"`

	Closing  []ClosingPoint  `json:"closing"`
	Forecast []ForecastPoint `json:"forecast"`
}

// Errors lists the metric-level errors carried by the snapshot.
func (s *Snapshot) Errors() []error {
	var errs []error
	for _, m := range []Metric{s.DaysOfInventory, s.RunwayMin, s.RunwayNormal, s.RunwayMax} {
		if m.Err != nil {
			errs = append(errs, m.Err)
		}
	}
	return errs
}

// Complete reports whether every metric is defined.
func (s *Snapshot) Complete() bool {
	return len(s.Errors()) == 0
}

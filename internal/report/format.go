// Package report renders policy snapshots as plain text for the CLI, using
// Indonesian number formatting (1.234,5).
package report

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/policy"
)

// Undefined is printed for metrics without a value.
const Undefined = "-"

var printer = message.NewPrinter(language.Indonesian)

// FormatNumber rounds d half away from zero to decimals places and formats
// it with Indonesian separators.
func FormatNumber(d decimal.Decimal, decimals int) string {
	if decimals < 0 {
		decimals = 0
	}

	rounded := d.Round(int32(decimals))
	if rounded.IsZero() {
		rounded = decimal.Zero
	}
	return printer.Sprint(number.Decimal(rounded.InexactFloat64(), number.Scale(decimals)))
}

// FormatMetric formats a defined metric or returns Undefined.
func FormatMetric(m policy.Metric, decimals int) string {
	if !m.Defined() {
		return Undefined
	}
	return FormatNumber(m.Value, decimals)
}

// Tons formats a stock quantity.
func Tons(d decimal.Decimal) string {
	return FormatNumber(d, 0) + " ton"
}

// TonsPerDay formats a consumption rate.
func TonsPerDay(d decimal.Decimal) string {
	return FormatNumber(d, 0) + " ton/hari"
}

// Days formats a duration metric with one decimal.
func Days(m policy.Metric) string {
	if !m.Defined() {
		return Undefined
	}
	return FormatNumber(m.Value, 1) + " hari"
}

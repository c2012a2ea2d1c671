package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/domain"
	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/policy"
	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/service"
)

// RenderSnapshot writes the KPI block, runway estimates, reorder alert and
// forecast table of one material.
func RenderSnapshot(w io.Writer, snap *policy.Snapshot) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	lines := []struct{ label, value string }{
		{"Bahan", snap.Material},
		{"Lead time", fmt.Sprintf("%d hari", snap.Parameters.LeadTimeDays)},
		{"Data terakhir", snap.LastRecordDate.Format(domain.DateLayout)},
		{"Stok Saat Ini", Tons(snap.CurrentStock)},
		{"Konsumsi Rata-rata", TonsPerDay(snap.AverageConsumption)},
		{"Days of Inventory", Days(snap.DaysOfInventory)},
		{"Safety Stock", Tons(snap.SafetyStock)},
		{"Reorder Point", Tons(snap.ReorderPoint)},
		{"Status", snap.Status.Label()},
		{"Hari Operasi Minimum", Days(snap.RunwayMin)},
		{"Hari Operasi Normal", Days(snap.RunwayNormal)},
		{"Hari Operasi Maksimum", Days(snap.RunwayMax)},
		{"Reorder Alert", domain.AlertMessage(snap.ReorderAlert)},
	}
	for _, l := range lines {
		if _, err := fmt.Fprintf(tw, "%s\t%s\n", l.label, l.value); err != nil {
			return err
		}
	}

	if _, err := fmt.Fprintln(tw, "\nTanggal\tStok Akhir\tPemakaian\tForecast"); err != nil {
		return err
	}
	for i, p := range snap.Forecast {
		forecast := Undefined
		if p.Defined {
			forecast = FormatNumber(p.Value, 1)
		}
		closing := ""
		if i < len(snap.Closing) {
			closing = FormatNumber(snap.Closing[i].ClosingStock, 0)
		}
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			p.Date.Format(domain.DateLayout), closing, FormatNumber(p.Actual, 0), forecast); err != nil {
			return err
		}
	}

	return tw.Flush()
}

// RenderOverview writes one line per material.
func RenderOverview(w io.Writer, rows []service.MaterialSummary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "Bahan\tStatus\tStok\tROP\tDOI\tAlert"); err != nil {
		return err
	}

	for _, r := range rows {
		if r.Error != "" {
			if _, err := fmt.Fprintf(tw, "%s\t%s\t\t\t\t%s\n", r.Material, Undefined, r.Error); err != nil {
				return err
			}
			continue
		}
		alert := ""
		if r.ReorderAlert {
			alert = "PESAN"
		}
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Material, r.StatusLabel, r.CurrentStock, r.ReorderPoint, Days(r.DaysOfInventory), alert); err != nil {
			return err
		}
	}

	return tw.Flush()
}

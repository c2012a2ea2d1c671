package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
	"github.com/xuri/excelize/v2"

	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/domain"
	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/repository/sqlite"
	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/repository/sqlstore"
)

const sheet = `tanggal,bahan,stok_awal,stok_masuk,pemakaian
2024-01-01,Urea,100,20,30
2024-01-02,Urea,90,10,40
2024-01-03,Urea,60,0,50
2024-01-01,ZA,500,0,5
`

func writeSheet(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bahan_baku.csv")
	require.NoError(t, os.WriteFile(path, []byte(sheet), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &errOut
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.Run(append([]string{"dashboard"}, args...))
	return out.String(), err
}

func TestSnapshotCommand_Table(t *testing.T) {
	out, err := run(t, "snapshot", "--file", writeSheet(t), "--material", "urea", "--lead-time", "3")
	require.NoError(t, err)

	assert.Contains(t, out, "Urea")
	assert.Contains(t, out, "Stok Saat Ini")
	assert.Contains(t, out, "Reorder Point")
	assert.Contains(t, out, "2024-01-03")
}

func TestSnapshotCommand_JSON(t *testing.T) {
	out, err := run(t, "snapshot", "-f", writeSheet(t), "-m", "Urea", "--json")
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "Urea", decoded["material"])
}

func TestSnapshotCommand_RequiresMaterial(t *testing.T) {
	_, err := run(t, "snapshot", "--file", writeSheet(t))
	assert.ErrorContains(t, err, "--material is required")
}

func TestSnapshotCommand_RejectsWindowBelowOne(t *testing.T) {
	_, err := run(t, "snapshot", "--file", writeSheet(t), "--material", "Urea", "--window", "0")
	assert.ErrorContains(t, err, "--window must be at least 1")

	_, err = run(t, "overview", "--file", writeSheet(t), "--window", "-2")
	assert.ErrorContains(t, err, "--window must be at least 1")
}

func TestSnapshotCommand_UnknownMaterial(t *testing.T) {
	_, err := run(t, "snapshot", "--file", writeSheet(t), "--material", "Phosphate")
	assert.Error(t, err)
}

func TestMaterialsCommand(t *testing.T) {
	out, err := run(t, "materials", "--file", writeSheet(t))
	require.NoError(t, err)
	assert.Equal(t, "Urea\nZA\n", out)
}

func TestOverviewCommand(t *testing.T) {
	out, err := run(t, "overview", "--file", writeSheet(t))
	require.NoError(t, err)
	assert.Contains(t, out, "Urea")
	assert.Contains(t, out, "ZA")
}

func TestConvertCommand_XLSXToCSV(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "bahan_baku.xlsx")

	f := excelize.NewFile()
	rows := [][]interface{}{
		{"Tanggal", "Bahan", "Stok Awal", "Stok Masuk", "Pemakaian"},
		{"2024-01-01", "Urea", 100, 20, 30},
		{"2024-01-02", "Urea", 90, 10, 40},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	require.NoError(t, f.SaveAs(in))

	out := filepath.Join(dir, "out", "bahan_baku.csv")
	stdout, err := run(t, "convert", "--file", in, "--out", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "wrote 2 records")

	materials, err := run(t, "materials", "--file", out)
	require.NoError(t, err)
	assert.Equal(t, "Urea\n", materials)
}

func TestSeed_IntoSQLite(t *testing.T) {
	db, err := sqlite.Open(sqlite.MemoryPath)
	require.NoError(t, err)
	defer db.Close()
	store := sqlstore.New(db)

	var out bytes.Buffer
	app := &cli.App{
		Writer: &out,
		Flags:  append(sheetFlags(), &cli.BoolFlag{Name: "migrate-only"}),
		Action: func(c *cli.Context) error { return seed(c, store) },
	}
	require.NoError(t, app.Run([]string{"seed", "--file", writeSheet(t)}))
	assert.Contains(t, out.String(), "seeded 4 records")

	records, err := store.ListRecords(context.Background(), domain.RecordFilter{Material: "urea"})
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/app"
	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/cache"
	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/domain"
	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/events"
	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/ingest"
	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/policy"
	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/report"
	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/repository/postgres"
	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/repository/sqlstore"
	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/service"
	"github.com/andresuchdata/rawmat-dashboard/backend-go/pkg/logger"
)

type contextKey string

const dbKey contextKey = "db"

func newDBURLFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "db-url",
		Usage:    "Database connection string",
		Required: true,
		EnvVars:  []string{"DATABASE_URL"},
	}
}

func sheetFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "file",
			Aliases: []string{"f"},
			Usage:   "CSV or XLSX stock sheet",
			Value:   "./data/bahan_baku.csv",
			EnvVars: []string{"APP_DATA_FILE"},
		},
		&cli.StringSliceFlag{
			Name:    "materials",
			Usage:   "Restrict accepted materials (empty accepts any)",
			EnvVars: []string{"APP_MATERIALS"},
		},
	}
}

func policyFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "material",
			Aliases: []string{"m"},
			Usage:   "Material name, case-insensitive",
		},
		&cli.IntFlag{
			Name:    "lead-time",
			Aliases: []string{"l"},
			Usage:   "Supplier lead time in days",
			Value:   policy.DefaultLeadTimeDays,
			EnvVars: []string{"APP_DEFAULT_LEAD_TIME"},
		},
		&cli.IntFlag{
			Name:    "window",
			Aliases: []string{"w"},
			Usage:   "Moving-average window",
			Value:   policy.DefaultForecastWindow,
			EnvVars: []string{"APP_FORECAST_WINDOW"},
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Print JSON instead of a table",
		},
	}
}

// sheetService builds a read-only service over the sheet named by --file.
func sheetService(c *cli.Context) (*service.InventoryService, error) {
	validator := domain.NewRecordValidator(c.StringSlice("materials"))

	repo, err := app.OpenFile(c.Context, c.String("file"), validator, nil)
	if err != nil {
		return nil, err
	}

	return service.NewInventoryService(
		repo,
		validator,
		cache.NewNoopSnapshotCache(),
		events.NoopPublisher{},
		nil,
		service.Options{DefaultLeadTime: c.Int("lead-time"), ForecastWindow: c.Int("window")},
	), nil
}

func parameters(c *cli.Context) (policy.Parameters, error) {
	window := c.Int("window")
	if window < 1 {
		return policy.Parameters{}, cli.Exit("--window must be at least 1", 2)
	}
	return policy.Parameters{LeadTimeDays: c.Int("lead-time"), ForecastWindow: window}, nil
}

func writeJSON(c *cli.Context, v interface{}) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runSnapshot(c *cli.Context) error {
	material := c.String("material")
	if material == "" {
		return cli.Exit("--material is required", 2)
	}
	params, err := parameters(c)
	if err != nil {
		return err
	}

	svc, err := sheetService(c)
	if err != nil {
		return err
	}

	snap, err := svc.Dashboard(c.Context, material, params)
	if err != nil {
		return err
	}

	if c.Bool("json") {
		return writeJSON(c, snap)
	}
	return report.RenderSnapshot(c.App.Writer, snap)
}

func runOverview(c *cli.Context) error {
	params, err := parameters(c)
	if err != nil {
		return err
	}

	svc, err := sheetService(c)
	if err != nil {
		return err
	}

	rows, err := svc.Overview(c.Context, params)
	if err != nil {
		return err
	}

	if c.Bool("json") {
		return writeJSON(c, rows)
	}
	return report.RenderOverview(c.App.Writer, rows)
}

func runMaterials(c *cli.Context) error {
	svc, err := sheetService(c)
	if err != nil {
		return err
	}

	materials, err := svc.ListMaterials(c.Context)
	if err != nil {
		return err
	}
	for _, m := range materials {
		if _, err := fmt.Fprintln(c.App.Writer, m); err != nil {
			return err
		}
	}
	return nil
}

// runConvert validates every row of --file and writes them back with the
// canonical header, so XLSX exports can be served as the static CSV source.
func runConvert(c *cli.Context) error {
	parser := ingest.NewParser(domain.NewRecordValidator(c.StringSlice("materials")))
	records, err := parser.ParseFile(c.String("file"))
	if err != nil {
		return err
	}

	out := filepath.Clean(c.String("out"))
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", out, err)
	}
	defer f.Close()

	if err := ingest.WriteCSV(f, records); err != nil {
		return err
	}
	_, err = fmt.Fprintf(c.App.Writer, "wrote %d records to %s\n", len(records), out)
	return err
}

func initDB(c *cli.Context) error {
	db, err := sqlx.Connect(postgres.DriverPGX, c.String("db-url"))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	c.Context = context.WithValue(c.Context, dbKey, postgres.Wrap(db))
	return nil
}

func closeDB(c *cli.Context) error {
	if db, ok := c.Context.Value(dbKey).(*postgres.DB); ok && db != nil {
		return db.Close()
	}
	return nil
}

func runSeed(c *cli.Context) error {
	db, ok := c.Context.Value(dbKey).(*postgres.DB)
	if !ok {
		return fmt.Errorf("database connection not initialized")
	}
	return seed(c, sqlstore.New(db))
}

// seed migrates store and appends every row of --file in one batch.
func seed(c *cli.Context, store *sqlstore.Store) error {
	if err := store.Migrate(c.Context); err != nil {
		return err
	}
	if c.Bool("migrate-only") {
		logger.Log.Info().Msg("schema migrated")
		return nil
	}

	path := filepath.Clean(c.String("file"))
	records, err := ingest.NewParser(domain.NewRecordValidator(c.StringSlice("materials"))).ParseFile(path)
	if err != nil {
		return err
	}

	stored, err := store.AppendBatch(c.Context, records)
	if err != nil {
		return fmt.Errorf("seed %s: %w", path, err)
	}

	_, err = fmt.Fprintf(c.App.Writer, "seeded %d records from %s\n", len(stored), path)
	return err
}

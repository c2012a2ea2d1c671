package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/rawmat-dashboard/backend-go/pkg/logger"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		logger.Log.Debug().Err(err).Msg("no .env file loaded")
	}

	if err := newApp().Run(os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("dashboard command failed")
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "dashboard",
		Usage: "Inspect raw-material stock policy and seed record stores",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "warn",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Before: func(c *cli.Context) error {
			logger.Configure(c.App.ErrWriter)
			logger.SetLevel(c.String("log-level"))
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "snapshot",
				Usage:  "Print the KPI block, runway and forecast of one material",
				Flags:  append(sheetFlags(), policyFlags()...),
				Action: runSnapshot,
			},
			{
				Name:   "overview",
				Usage:  "Print the stock status of every material",
				Flags:  append(sheetFlags(), policyFlags()...),
				Action: runOverview,
			},
			{
				Name:   "materials",
				Usage:  "List the materials present in the sheet",
				Flags:  sheetFlags(),
				Action: runMaterials,
			},
			{
				Name:  "convert",
				Usage: "Rewrite a CSV or XLSX sheet as normalized CSV",
				Flags: append(sheetFlags(),
					&cli.StringFlag{
						Name:     "out",
						Aliases:  []string{"o"},
						Usage:    "Destination CSV path",
						Required: true,
					},
				),
				Action: runConvert,
			},
			{
				Name:  "seed",
				Usage: "Load a stock sheet into the Postgres record store",
				Flags: append(sheetFlags(),
					newDBURLFlag(),
					&cli.BoolFlag{
						Name:  "migrate-only",
						Usage: "Create the schema without inserting records",
					},
				),
				Before: initDB,
				After:  closeDB,
				Action: runSeed,
			},
		},
	}
}

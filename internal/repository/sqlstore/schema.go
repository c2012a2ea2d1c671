package sqlstore

// Postgres keeps quantities as NUMERIC; SQLite keeps them as TEXT so decimals
// round-trip exactly. seq preserves insertion order among equal dates.
var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS stock_records (
		seq           BIGSERIAL,
		id            TEXT PRIMARY KEY,
		record_date   DATE NOT NULL,
		material      TEXT NOT NULL,
		opening_stock NUMERIC NOT NULL DEFAULT 0,
		inflow        NUMERIC NOT NULL DEFAULT 0,
		consumption   NUMERIC NOT NULL DEFAULT 0,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_stock_records_material_date
		ON stock_records (LOWER(TRIM(material)), record_date, seq)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS stock_records (
		seq           INTEGER PRIMARY KEY AUTOINCREMENT,
		id            TEXT NOT NULL UNIQUE,
		record_date   DATE NOT NULL,
		material      TEXT NOT NULL,
		opening_stock TEXT NOT NULL DEFAULT '0',
		inflow        TEXT NOT NULL DEFAULT '0',
		consumption   TEXT NOT NULL DEFAULT '0',
		created_at    TIMESTAMP NOT NULL,
		updated_at    TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_stock_records_material_date
		ON stock_records (LOWER(TRIM(material)), record_date, seq)`,
}

func schemaFor(driver string) []string {
	if driver == "sqlite3" {
		return sqliteSchema
	}
	return postgresSchema
}

package db

import (
	"fmt"

	"gorm.io/gorm"
)

// Ids are text: records imported from the hosted table carry millisecond
// timestamps as ids, new ones get uuids.
var migrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS cotacoes (
		id TEXT PRIMARY KEY,
		requester TEXT NOT NULL,
		carrier TEXT NOT NULL,
		destination TEXT NOT NULL DEFAULT '',
		quote_number TEXT NOT NULL DEFAULT '',
		price NUMERIC(14,2) NOT NULL DEFAULT 0 CHECK (price >= 0),
		seller TEXT NOT NULL DEFAULT '',
		document TEXT NOT NULL DEFAULT '',
		delivery_estimate TEXT NOT NULL DEFAULT '',
		communication_channel TEXT NOT NULL DEFAULT '',
		collection_code TEXT NOT NULL DEFAULT '',
		carrier_contact TEXT NOT NULL DEFAULT '',
		quote_date DATE NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		deal_closed BOOLEAN NOT NULL DEFAULT FALSE,
		timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ,
		created_by TEXT NOT NULL DEFAULT '',
		updated_by TEXT NOT NULL DEFAULT ''
	);`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM information_schema.columns WHERE table_name = 'cotacoes' AND column_name = 'updated_by') THEN
			ALTER TABLE cotacoes ADD COLUMN updated_by TEXT NOT NULL DEFAULT '';
		END IF;
		IF NOT EXISTS (SELECT 1 FROM information_schema.columns WHERE table_name = 'cotacoes' AND column_name = 'created_by') THEN
			ALTER TABLE cotacoes ADD COLUMN created_by TEXT NOT NULL DEFAULT '';
		END IF;
	END
	$$;`,
	`CREATE INDEX IF NOT EXISTS idx_cotacoes_timestamp ON cotacoes (timestamp DESC);`,
	`CREATE INDEX IF NOT EXISTS idx_cotacoes_quote_date ON cotacoes (quote_date);`,
	`CREATE INDEX IF NOT EXISTS idx_cotacoes_carrier ON cotacoes (carrier);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}

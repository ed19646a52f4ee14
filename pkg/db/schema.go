package db

import "fmt"

const schema = `
PRAGMA journal_mode=WAL;

CREATE TABLE IF NOT EXISTS assets (
    symbol TEXT PRIMARY KEY,
    name TEXT NOT NULL DEFAULT '',
    exchange TEXT NOT NULL DEFAULT '',
    tradable INTEGER NOT NULL DEFAULT 0,
    fractionable INTEGER NOT NULL DEFAULT 0,
    marginable INTEGER NOT NULL DEFAULT 0,
    shortable INTEGER NOT NULL DEFAULT 0,
    min_order_size TEXT NOT NULL DEFAULT '0',
    min_trade_increment TEXT NOT NULL DEFAULT '0',
    price_increment TEXT NOT NULL DEFAULT '0',
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS order_audits (
    id TEXT PRIMARY KEY,
    symbol TEXT NOT NULL,
    side TEXT NOT NULL,
    order_type TEXT NOT NULL,
    qty TEXT NOT NULL,
    limit_price TEXT NOT NULL DEFAULT '0',
    time_in_force TEXT NOT NULL DEFAULT 'day',
    extended_hours INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL,
    violations TEXT NOT NULL DEFAULT '',
    broker_order_id TEXT NOT NULL DEFAULT '',
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_order_audits_symbol ON order_audits(symbol);
CREATE INDEX IF NOT EXISTS idx_order_audits_created ON order_audits(created_at);

CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

// ApplyMigrations creates the schema if it does not exist.
func ApplyMigrations(d *Database) error {
	if d == nil || d.DB == nil {
		return fmt.Errorf("database not initialized")
	}
	if _, err := d.DB.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Package store persists ledgers and daily snapshots in SQLite.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS transactions (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL UNIQUE,
	user_id    TEXT NOT NULL,
	symbol     TEXT NOT NULL,
	action     TEXT NOT NULL,
	date       TEXT NOT NULL,
	price      TEXT NOT NULL,
	quantity   TEXT NOT NULL,
	fees       TEXT NOT NULL,
	currency   TEXT NOT NULL,
	notes      TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions(user_id, symbol);

CREATE TABLE IF NOT EXISTS cash_flows (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL UNIQUE,
	user_id    TEXT NOT NULL,
	type       TEXT NOT NULL,
	date       TEXT NOT NULL,
	amount     TEXT NOT NULL,
	currency   TEXT NOT NULL,
	notes      TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cash_flows_user ON cash_flows(user_id);

CREATE TABLE IF NOT EXISTS daily_snapshots (
	user_id            TEXT NOT NULL,
	date               TEXT NOT NULL,
	base_currency      TEXT NOT NULL,
	net_liquidity      TEXT NOT NULL,
	current_cash       TEXT NOT NULL,
	total_market_value TEXT NOT NULL,
	total_invested     TEXT NOT NULL,
	net_profit         TEXT NOT NULL,
	roi_percentage     TEXT NOT NULL,
	cash_balances      BLOB,
	positions          BLOB,
	exchange_rates     BLOB,
	unvalued           BLOB,
	partial            INTEGER NOT NULL DEFAULT 0,
	created_at         TEXT NOT NULL,
	UNIQUE(user_id, date)
);
`

// DB wraps the database connection
type DB struct {
	conn *sql.DB
	path string
	log  zerolog.Logger
}

// Open opens, and creates if needed, the database at path.
func Open(path string, log zerolog.Logger) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	// a single writer avoids SQLITE_BUSY between our own connections.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn, path: path, log: log.With().Str("component", "store").Logger()}
	if err := db.Migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	db.log.Debug().Str("path", path).Msg("database opened")
	return db, nil
}

// columns added to existing tables after their creation.
var addedColumns = []struct{ table, column, def string }{
	{"daily_snapshots", "unvalued", "BLOB"},
}

// Migrate creates the tables, indexes and columns that do not exist yet.
func (db *DB) Migrate() error {
	if _, err := db.conn.Exec(schema); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	for _, c := range addedColumns {
		var n int
		err := db.conn.QueryRow(`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, c.table, c.column).Scan(&n)
		if err != nil {
			return fmt.Errorf("failed to inspect %s: %w", c.table, err)
		}
		if n > 0 {
			continue
		}
		if _, err := db.conn.Exec(fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, c.table, c.column, c.def)); err != nil {
			return fmt.Errorf("failed to add %s.%s: %w", c.table, c.column, err)
		}
		db.log.Info().Str("table", c.table).Str("column", c.column).Msg("column added")
	}
	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ledgers returns the ledger repository.
func (db *DB) Ledgers() *LedgerRepository {
	return &LedgerRepository{db: db.conn, log: db.log.With().Str("repo", "ledger").Logger()}
}

// Snapshots returns the daily snapshot repository.
func (db *DB) Snapshots() *SnapshotRepository {
	return &SnapshotRepository{db: db.conn, log: db.log.With().Str("repo", "snapshots").Logger()}
}

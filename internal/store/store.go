// Package store is the persistent state of the ingestion engine: entity
// tables (Token, Pool), append-only event tables (Transaction, PriceSample,
// HolderSnapshot), a reference table (SolUsdPrice), and derived aggregates
// (1-minute candles, latest-score views). It enforces uniqueness and
// referential integrity and exposes idempotent upsert, batched append, and
// parameterised query operations — the same shape as the teacher's
// internal/storage/db.go, generalized from a trade ledger to the launch
// telemetry data model.
package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"token-ingest-engine/internal/metrics"
)

// Store wraps the SQL connection pool shared by every Reconciler and
// ScoreEngine write/read path.
type Store struct {
	db      *sql.DB
	metrics *metrics.Registry
}

// SetMetrics attaches a metrics.Registry so upsert-race re-reads are
// counted as ingest_duplicate_key_total. Safe to leave unset; every
// metrics call site is nil-checked.
func (s *Store) SetMetrics(m *metrics.Registry) {
	s.metrics = m
}

func (s *Store) incDuplicateKey(table string) {
	if s.metrics != nil {
		s.metrics.DuplicateKeyTotal.WithLabelValues(table).Inc()
	}
}

// Open creates the database connection and migrates the schema. dsn is the
// value of DB_URL; a bare file path is treated as a SQLite file.
func Open(dsn string) (*Store, error) {
	if dsn == "" {
		dsn = "./data/ingest.db"
	}

	conn := dsn
	if !strings.Contains(conn, "?") {
		conn += "?"
	} else {
		conn += "&"
	}
	conn += "_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)"

	db, err := sql.Open("sqlite", conn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	log.Info().Str("dsn", dsn).Msg("store initialized")
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS tokens (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		mint_address TEXT NOT NULL UNIQUE,
		symbol TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL DEFAULT '',
		decimals INTEGER NOT NULL DEFAULT 6,
		venue TEXT NOT NULL,
		creation_sig TEXT NOT NULL DEFAULT '',
		creation_time INTEGER NOT NULL DEFAULT 0,
		creator TEXT NOT NULL DEFAULT '',
		is_graduated INTEGER NOT NULL DEFAULT 0,
		graduation_sig TEXT NOT NULL DEFAULT '',
		graduation_time INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS pools (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		pool_address TEXT NOT NULL UNIQUE,
		token_id INTEGER NOT NULL REFERENCES tokens(id),
		base_mint TEXT NOT NULL DEFAULT '',
		quote_mint TEXT NOT NULL DEFAULT 'So11111111111111111111111111111111111111112',
		venue TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		virtual_base_reserves TEXT NOT NULL DEFAULT '0',
		virtual_quote_reserves TEXT NOT NULL DEFAULT '0',
		real_base_reserves TEXT NOT NULL DEFAULT '0',
		real_quote_reserves TEXT NOT NULL DEFAULT '0',
		bonding_curve_progress REAL,
		latest_price TEXT NOT NULL DEFAULT '0',
		latest_price_usd TEXT NOT NULL DEFAULT '0',
		updated_at INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_pools_token ON pools(token_id);

	CREATE TABLE IF NOT EXISTS transactions (
		signature TEXT NOT NULL,
		block_time INTEGER NOT NULL,
		pool_id INTEGER NOT NULL REFERENCES pools(id),
		token_id INTEGER NOT NULL REFERENCES tokens(id),
		slot INTEGER NOT NULL DEFAULT 0,
		type TEXT NOT NULL,
		user TEXT NOT NULL DEFAULT '',
		sol_amount INTEGER NOT NULL DEFAULT 0,
		token_amount INTEGER NOT NULL DEFAULT 0,
		price_per_token TEXT NOT NULL DEFAULT '0',
		pre_base_reserve TEXT NOT NULL DEFAULT '0',
		pre_quote_reserve TEXT NOT NULL DEFAULT '0',
		post_base_reserve TEXT NOT NULL DEFAULT '0',
		post_quote_reserve TEXT NOT NULL DEFAULT '0',
		fee_lamports INTEGER NOT NULL DEFAULT 0,
		success INTEGER NOT NULL DEFAULT 1,
		raw_metadata BLOB,
		PRIMARY KEY (signature, block_time)
	);
	CREATE INDEX IF NOT EXISTS idx_tx_token_time ON transactions(token_id, block_time);
	CREATE INDEX IF NOT EXISTS idx_tx_pool ON transactions(pool_id);

	CREATE TABLE IF NOT EXISTS candles (
		token_id INTEGER NOT NULL REFERENCES tokens(id),
		minute INTEGER NOT NULL,
		open TEXT NOT NULL,
		high TEXT NOT NULL,
		low TEXT NOT NULL,
		close TEXT NOT NULL,
		volume_sol INTEGER NOT NULL DEFAULT 0,
		volume_token INTEGER NOT NULL DEFAULT 0,
		trade_count INTEGER NOT NULL DEFAULT 0,
		buyer_count INTEGER NOT NULL DEFAULT 0,
		seller_count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (token_id, minute)
	);

	CREATE TABLE IF NOT EXISTS sol_usd_prices (
		price_time INTEGER PRIMARY KEY,
		price_usd TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS holder_snapshots (
		token_id INTEGER NOT NULL REFERENCES tokens(id),
		score_time INTEGER NOT NULL,
		distribution_score INTEGER NOT NULL,
		quality_score INTEGER NOT NULL,
		activity_score INTEGER NOT NULL,
		total_score INTEGER NOT NULL,
		gini TEXT NOT NULL DEFAULT '0',
		top1pct_concentration TEXT NOT NULL DEFAULT '0',
		holder_count INTEGER NOT NULL DEFAULT 0,
		bot_ratio TEXT NOT NULL DEFAULT '0',
		smart_money_ratio TEXT NOT NULL DEFAULT '0',
		credits_used INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (token_id, score_time)
	);
	CREATE INDEX IF NOT EXISTS idx_holder_token_time ON holder_snapshots(token_id, score_time DESC);

	CREATE TABLE IF NOT EXISTS wallet_analyses (
		wallet_address TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL DEFAULT 0,
		last_active INTEGER NOT NULL DEFAULT 0,
		tx_count INTEGER NOT NULL DEFAULT 0,
		sol_balance INTEGER NOT NULL DEFAULT 0,
		wallet_age_days INTEGER NOT NULL DEFAULT 0,
		is_bot INTEGER NOT NULL DEFAULT 0,
		is_smart_money INTEGER NOT NULL DEFAULT 0,
		risk_score REAL NOT NULL DEFAULT 0,
		last_analyzed INTEGER NOT NULL DEFAULT 0
	);
	`
	_, err := db.Exec(schema)
	return err
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the connection pool can still reach the database, for
// internal/health's readiness check.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WithTx runs fn inside a transaction, committing on success and rolling
// back on error or panic.
func (s *Store) WithTx(ctx context.Context, fn func(*sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
		if err != nil {
			tx.Rollback()
			return
		}
		err = tx.Commit()
	}()
	return fn(tx)
}

func unixNow() int64 {
	return time.Now().Unix()
}

var decimalHundred = decimal.NewFromInt(100)

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

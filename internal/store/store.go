package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL,
		growid TEXT NOT NULL,
		balance BIGINT NOT NULL DEFAULT 0,
		points BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_user_id ON accounts(user_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_growid ON accounts(growid)`,
	`CREATE TABLE IF NOT EXISTS products (
		code TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		price BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS stock_items (
		id BIGSERIAL PRIMARY KEY,
		code TEXT NOT NULL REFERENCES products(code) ON DELETE CASCADE,
		payload TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_stock_items_code ON stock_items(code)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL,
		code TEXT NOT NULL,
		quantity INT NOT NULL,
		unit_price BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS transaction_items (
		id BIGSERIAL PRIMARY KEY,
		transaction_id BIGINT NOT NULL REFERENCES transactions(id),
		payload TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS preorders (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL,
		growid TEXT NOT NULL,
		code TEXT NOT NULL,
		amount INT NOT NULL,
		status TEXT NOT NULL DEFAULT 'waiting',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_preorders_waiting ON preorders(code, status, created_at, id)`,
}

// Migrate applies the idempotent schema bootstrap.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate failed: %w", err)
		}
	}
	return nil
}

package ledger

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is idempotent. Movements reject UPDATE and DELETE at the database
// level, and accounts cannot be removed while movements reference them.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGSERIAL PRIMARY KEY,
		first_name    VARCHAR(100) NOT NULL,
		last_name     VARCHAR(100) NOT NULL,
		email         VARCHAR(255) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		role          VARCHAR(20)  NOT NULL DEFAULT 'USER',
		created_at    TIMESTAMPTZ  NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS accounts (
		id             BIGSERIAL PRIMARY KEY,
		account_number VARCHAR(32)   NOT NULL UNIQUE,
		owner_id       BIGINT        NOT NULL REFERENCES users(id) ON DELETE RESTRICT,
		account_type   VARCHAR(20)   NOT NULL DEFAULT 'SAVINGS',
		status         VARCHAR(20)   NOT NULL DEFAULT 'ACTIVE',
		balance        NUMERIC(19,2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
		created_at     TIMESTAMPTZ   NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_accounts_owner ON accounts (owner_id)`,
	`CREATE TABLE IF NOT EXISTS movements (
		id          BIGSERIAL PRIMARY KEY,
		account_id  BIGINT        NOT NULL REFERENCES accounts(id) ON DELETE RESTRICT,
		date        DATE          NOT NULL,
		description TEXT          NOT NULL,
		type        VARCHAR(10)   NOT NULL CHECK (type IN ('INCOME', 'EXPENSE')),
		amount      NUMERIC(19,2) NOT NULL CHECK (amount > 0)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_movements_account_date ON movements (account_id, date DESC, id DESC)`,
	`CREATE OR REPLACE FUNCTION movements_append_only() RETURNS trigger AS $$
	BEGIN
		RAISE EXCEPTION 'movements are append-only';
	END;
	$$ LANGUAGE plpgsql`,
	`DROP TRIGGER IF EXISTS movements_append_only ON movements`,
	`CREATE TRIGGER movements_append_only BEFORE UPDATE OR DELETE ON movements
		FOR EACH ROW EXECUTE FUNCTION movements_append_only()`,
}

// Migrate applies the schema inside a single transaction.
func Migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration: %w", err)
	}
	defer tx.Rollback()

	for i, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d failed: %w", i+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}
	return nil
}

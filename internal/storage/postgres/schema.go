package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS ledger_transactions (
	id          TEXT PRIMARY KEY,
	body        BYTEA NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS ledger_states (
	tx_id       TEXT NOT NULL REFERENCES ledger_transactions (id),
	idx         INT NOT NULL,
	linear_id   TEXT NOT NULL,
	contract    TEXT NOT NULL,
	body        JSONB NOT NULL,
	consumed_by TEXT,
	recorded_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (tx_id, idx)
);

CREATE INDEX IF NOT EXISTS ledger_states_unconsumed_idx
	ON ledger_states (linear_id) WHERE consumed_by IS NULL;

CREATE TABLE IF NOT EXISTS notary_commits (
	tx_id        TEXT NOT NULL,
	idx          INT NOT NULL,
	consuming_tx TEXT NOT NULL,
	committed_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (tx_id, idx)
);

CREATE TABLE IF NOT EXISTS attachments (
	id          TEXT PRIMARY KEY,
	uploader    TEXT NOT NULL,
	data        BYTEA NOT NULL,
	uploaded_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS attachment_names (
	filename      TEXT NOT NULL,
	attachment_id TEXT NOT NULL REFERENCES attachments (id),
	PRIMARY KEY (filename, attachment_id)
);

CREATE TABLE IF NOT EXISTS outbox_events (
	id             BIGSERIAL PRIMARY KEY,
	aggregate_type TEXT NOT NULL,
	aggregate_id   TEXT NOT NULL,
	event_type     TEXT NOT NULL,
	payload        BYTEA NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	processed_at   TIMESTAMPTZ,
	retry_count    INT NOT NULL DEFAULT 0,
	error          TEXT
);

CREATE TABLE IF NOT EXISTS outbox_dlq (
	id             BIGINT PRIMARY KEY,
	aggregate_type TEXT NOT NULL,
	aggregate_id   TEXT NOT NULL,
	event_type     TEXT NOT NULL,
	payload        BYTEA NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL,
	failed_at      TIMESTAMPTZ NOT NULL,
	error          TEXT,
	retry_count    INT NOT NULL
);
`

// Migrate creates the node's tables if they do not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

type queryable interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func getter(db *sql.DB, tx *sql.Tx) queryable {
	if tx != nil {
		return tx
	}
	return db
}

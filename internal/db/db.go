// internal/db/db.go
package db

import (
	"database/sql"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

func Open(dsn string, log *zap.Logger) (*sql.DB, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(); err != nil {
		return nil, err
	}
	log.Info("connected to database")
	return conn, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS customers (
		id SERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		phone TEXT NOT NULL DEFAULT '',
		total_spend NUMERIC NOT NULL DEFAULT 0 CHECK (total_spend >= 0),
		visit_count INTEGER NOT NULL DEFAULT 0 CHECK (visit_count >= 0),
		last_visit TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id SERIAL PRIMARY KEY,
		customer_id INTEGER NOT NULL REFERENCES customers(id),
		amount NUMERIC NOT NULL,
		order_date TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		status TEXT NOT NULL DEFAULT 'completed',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS campaigns (
		id SERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		rules JSONB NOT NULL DEFAULT '{}',
		message TEXT NOT NULL,
		created_by TEXT NOT NULL DEFAULT 'system',
		audience_size INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		stats_total INTEGER NOT NULL DEFAULT 0,
		stats_sent INTEGER NOT NULL DEFAULT 0,
		stats_failed INTEGER NOT NULL DEFAULT 0,
		stats_pending INTEGER NOT NULL DEFAULT 0,
		scheduled_at TIMESTAMPTZ,
		launched_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS message_logs (
		id SERIAL PRIMARY KEY,
		campaign_id INTEGER NOT NULL REFERENCES campaigns(id),
		customer_id INTEGER NOT NULL REFERENCES customers(id),
		message TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'PENDING',
		sent_at TIMESTAMPTZ,
		delivery_receipt JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (campaign_id, customer_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_message_logs_campaign_status ON message_logs (campaign_id, status)`,
}

// Migrate applies the schema. Statements are idempotent so this is safe to
// run on every start.
func Migrate(conn *sql.DB, log *zap.Logger) error {
	for _, stmt := range schema {
		if _, err := conn.Exec(stmt); err != nil {
			return err
		}
	}
	log.Info("migrations applied")
	return nil
}

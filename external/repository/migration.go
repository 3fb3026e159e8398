package repository

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrationStatements = []string{
	`DO $$ BEGIN CREATE TYPE session_status AS ENUM ('planned', 'sent', 'cancelled', 'completed'); EXCEPTION WHEN duplicate_object THEN NULL; END $$`,
	`CREATE TABLE IF NOT EXISTS trainees (
		id TEXT PRIMARY KEY,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		email TEXT,
		phone TEXT,
		status TEXT NOT NULL DEFAULT 'active',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		trainee_id TEXT REFERENCES trainees(id) ON DELETE SET NULL,
		start_time TIMESTAMPTZ NOT NULL,
		end_time TIMESTAMPTZ,
		location TEXT,
		status session_status NOT NULL DEFAULT 'planned',
		notes TEXT,
		google_event_id TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_start ON sessions (start_time)`,
	`CREATE TABLE IF NOT EXISTS sent_messages (
		id TEXT PRIMARY KEY,
		trainee_id TEXT REFERENCES trainees(id) ON DELETE SET NULL,
		session_id TEXT REFERENCES sessions(id) ON DELETE CASCADE,
		template_id TEXT,
		channel TEXT,
		sent_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		context_json JSONB
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sent_messages_session ON sent_messages (session_id)`,
	`CREATE INDEX IF NOT EXISTS idx_sent_messages_sentat ON sent_messages (sent_at)`,
	`CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT
	)`,
}

func RunMigration(ctx context.Context, pool *pgxpool.Pool) error {
	for _, s := range migrationStatements {
		stmt := strings.TrimSpace(s)
		if stmt == "" {
			continue
		}
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Timestamps are stored as INTEGER unix nanoseconds (UTC) so they round-trip
// exactly and sort numerically.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS goals (
		id          TEXT PRIMARY KEY,
		owner_id    TEXT NOT NULL,
		title       TEXT NOT NULL,
		category    TEXT NOT NULL,
		description TEXT NOT NULL,
		deadline    INTEGER,
		progress    INTEGER NOT NULL DEFAULT 0 CHECK (progress BETWEEN 0 AND 100),
		public      INTEGER NOT NULL DEFAULT 0,
		created_at  INTEGER NOT NULL,
		updated_at  INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS goals_owner_id ON goals (owner_id)`,
	`CREATE TABLE IF NOT EXISTS milestones (
		id           TEXT PRIMARY KEY,
		goal_id      TEXT NOT NULL REFERENCES goals (id) ON DELETE CASCADE,
		position     INTEGER NOT NULL,
		title        TEXT NOT NULL,
		completed    INTEGER NOT NULL DEFAULT 0,
		completed_at INTEGER
	)`,
	`CREATE INDEX IF NOT EXISTS milestones_goal_id ON milestones (goal_id)`,
	`CREATE TABLE IF NOT EXISTS resources (
		id       TEXT PRIMARY KEY,
		goal_id  TEXT NOT NULL REFERENCES goals (id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		type     TEXT NOT NULL,
		title    TEXT NOT NULL,
		url      TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS resources_goal_id ON resources (goal_id)`,
	`CREATE TABLE IF NOT EXISTS skills (
		id              TEXT PRIMARY KEY,
		owner_id        TEXT NOT NULL,
		name            TEXT NOT NULL,
		level           INTEGER NOT NULL CHECK (level BETWEEN 0 AND 100),
		endorsements    INTEGER NOT NULL DEFAULT 0 CHECK (endorsements >= 0),
		practiced_hours REAL NOT NULL DEFAULT 0 CHECK (practiced_hours >= 0),
		created_at      INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS skills_owner_id ON skills (owner_id)`,
	`CREATE TABLE IF NOT EXISTS skill_checkpoints (
		skill_id TEXT NOT NULL REFERENCES skills (id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		date     INTEGER NOT NULL,
		level    INTEGER NOT NULL,
		PRIMARY KEY (skill_id, position)
	)`,
	`CREATE TABLE IF NOT EXISTS achievements (
		id          TEXT PRIMARY KEY,
		sequence    INTEGER NOT NULL UNIQUE,
		owner_id    TEXT NOT NULL,
		title       TEXT NOT NULL,
		description TEXT NOT NULL,
		date        INTEGER NOT NULL,
		type        TEXT NOT NULL,
		icon        TEXT NOT NULL,
		goal_id     TEXT,
		skill_id    TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS achievements_owner_date ON achievements (owner_id, date)`,
	`CREATE TABLE IF NOT EXISTS llm_request_events (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		sequence      INTEGER NOT NULL UNIQUE,
		timestamp     INTEGER NOT NULL,
		provider      TEXT NOT NULL,
		model         TEXT NOT NULL,
		purpose       TEXT NOT NULL,
		input_tokens  INTEGER NOT NULL DEFAULT 0,
		output_tokens INTEGER NOT NULL DEFAULT 0,
		latency_ms    INTEGER NOT NULL DEFAULT 0,
		success       INTEGER NOT NULL DEFAULT 0,
		error_message TEXT NOT NULL DEFAULT '',
		request_body  TEXT NOT NULL DEFAULT '',
		response_body TEXT NOT NULL DEFAULT ''
	)`,
}

func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

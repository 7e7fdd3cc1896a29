package repository

import "context"

// Schema is deliberately engine-neutral: the same statements run on
// Postgres (production) and SQLite (tests). UUIDs are stored as TEXT,
// structured fields as JSON text.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS reports (
		id              TEXT PRIMARY KEY,
		participant_id  TEXT NOT NULL,
		source_file     TEXT NOT NULL,
		format          TEXT NOT NULL,
		status          TEXT NOT NULL,
		extract_warning TEXT,
		extract_error   TEXT,
		created_at      TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_reports_participant ON reports(participant_id)`,

	`CREATE TABLE IF NOT EXISTS extraction_tasks (
		id               TEXT PRIMARY KEY,
		report_id        TEXT NOT NULL REFERENCES reports(id),
		status           TEXT NOT NULL,
		progress_pct     INTEGER NOT NULL DEFAULT 0,
		current_step     TEXT NOT NULL DEFAULT '',
		total_pages      INTEGER NOT NULL DEFAULT 0,
		processed_pages  INTEGER NOT NULL DEFAULT 0,
		metrics_found    INTEGER NOT NULL DEFAULT 0,
		error_message    TEXT,
		cancel_requested BOOLEAN NOT NULL DEFAULT FALSE,
		started_at       TIMESTAMP NOT NULL,
		finished_at      TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_report ON extraction_tasks(report_id)`,

	`CREATE TABLE IF NOT EXISTS metric_defs (
		id                TEXT PRIMARY KEY,
		code              TEXT NOT NULL UNIQUE,
		name              TEXT NOT NULL,
		min_value         REAL NOT NULL,
		max_value         REAL NOT NULL,
		category_id       TEXT,
		active            BOOLEAN NOT NULL DEFAULT TRUE,
		moderation_status TEXT NOT NULL,
		moderation_reason TEXT,
		ai_rationale      TEXT,
		embedding         TEXT,
		created_at        TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS metric_synonyms (
		id            TEXT PRIMARY KEY,
		metric_def_id TEXT NOT NULL REFERENCES metric_defs(id),
		text          TEXT NOT NULL UNIQUE
	)`,

	`CREATE TABLE IF NOT EXISTS extracted_metrics (
		report_id     TEXT NOT NULL REFERENCES reports(id),
		metric_def_id TEXT NOT NULL REFERENCES metric_defs(id),
		value         REAL NOT NULL,
		source        TEXT NOT NULL,
		confidence    REAL,
		page          INTEGER NOT NULL DEFAULT 0,
		notes         TEXT,
		updated_at    TIMESTAMP NOT NULL,
		PRIMARY KEY (report_id, metric_def_id)
	)`,

	`CREATE TABLE IF NOT EXISTS weight_tables (
		id                 TEXT PRIMARY KEY,
		prof_activity_code TEXT NOT NULL UNIQUE,
		prof_activity_name TEXT NOT NULL,
		entries            TEXT NOT NULL,
		active             BOOLEAN NOT NULL DEFAULT TRUE
	)`,

	`CREATE TABLE IF NOT EXISTS scoring_results (
		id                     TEXT PRIMARY KEY,
		participant_id         TEXT NOT NULL,
		prof_activity_code     TEXT NOT NULL,
		score_pct              REAL NOT NULL,
		strengths              TEXT NOT NULL,
		dev_areas              TEXT NOT NULL,
		recommendations_status TEXT NOT NULL,
		recommendations_error  TEXT,
		recommendations        TEXT,
		created_at             TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_scoring_participant ON scoring_results(participant_id)`,
}

func migrate(ctx context.Context, db *DB) error {
	for _, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

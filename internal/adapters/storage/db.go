package storage

import (
	"database/sql"
	"fmt"
	"log/slog"
)

// migration is one forward-only schema step, applied inside a transaction.
type migration struct {
	version     int
	description string
	stmts       []string
}

// migrations is the ordered schema history. Append only; never edit a
// released step.
var migrations = []migration{
	{
		version:     1,
		description: "baseline schema",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS course (
				id TEXT PRIMARY KEY,
				title TEXT NOT NULL,
				slug TEXT NOT NULL UNIQUE,
				price INTEGER NOT NULL DEFAULT 0
			)`,
			`CREATE TABLE IF NOT EXISTS class_schedule (
				id TEXT PRIMARY KEY,
				course_id TEXT NOT NULL,
				class_name TEXT NOT NULL,
				start_date TEXT NOT NULL,
				end_date TEXT NOT NULL,
				weekly_pattern TEXT NOT NULL,
				locations TEXT NOT NULL DEFAULT '[]',
				instructor TEXT NOT NULL DEFAULT '{}',
				max_students INTEGER NOT NULL DEFAULT 0,
				current_students INTEGER NOT NULL DEFAULT 0,
				status TEXT NOT NULL,
				total_sessions INTEGER NOT NULL,
				sessions TEXT NOT NULL DEFAULT '[]',
				is_active INTEGER NOT NULL DEFAULT 1,
				is_deleted INTEGER NOT NULL DEFAULT 0,
				version INTEGER NOT NULL DEFAULT 1,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL,
				FOREIGN KEY (course_id) REFERENCES course(id)
			)`,
			`CREATE TABLE IF NOT EXISTS student (
				id TEXT PRIMARY KEY,
				full_name TEXT NOT NULL,
				email TEXT NOT NULL DEFAULT '',
				class_name TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL,
				course_type TEXT NOT NULL,
				receive_daily_schedule INTEGER NOT NULL DEFAULT 0,
				email_recipient TEXT NOT NULL DEFAULT 'student',
				parent_name TEXT NOT NULL DEFAULT '',
				parent_email TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE TABLE IF NOT EXISTS automation_job (
				type TEXT PRIMARY KEY,
				enabled INTEGER NOT NULL DEFAULT 0,
				run_time TEXT NOT NULL,
				timezone TEXT NOT NULL,
				last_run TEXT,
				next_run TEXT,
				updated_at TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS outbox (
				id TEXT PRIMARY KEY,
				batch_date TEXT NOT NULL,
				recipient TEXT NOT NULL,
				role TEXT NOT NULL DEFAULT '',
				subject TEXT NOT NULL,
				html TEXT NOT NULL,
				status TEXT NOT NULL,
				attempts INTEGER NOT NULL DEFAULT 0,
				max_attempts INTEGER NOT NULL,
				last_attempted_at TEXT,
				created_at TEXT NOT NULL,
				message_id TEXT NOT NULL DEFAULT '',
				error_message TEXT NOT NULL DEFAULT ''
			)`,
		},
	},
	{
		version:     2,
		description: "lookup indexes",
		stmts: []string{
			`CREATE INDEX IF NOT EXISTS idx_class_schedule_live ON class_schedule (is_deleted, is_active, start_date)`,
			`CREATE INDEX IF NOT EXISTS idx_student_class ON student (lower(trim(class_name)), status)`,
			`CREATE INDEX IF NOT EXISTS idx_outbox_status ON outbox (status, created_at)`,
		},
	},
	{
		version:     3,
		description: "outbox readiness",
		stmts: []string{
			`ALTER TABLE outbox ADD COLUMN next_attempt_at TEXT NOT NULL DEFAULT ''`,
			`CREATE INDEX IF NOT EXISTS idx_outbox_ready ON outbox (status, next_attempt_at)`,
		},
	},
}

// LatestSchemaVersion returns the version MigrateDB brings a database to.
func LatestSchemaVersion() int {
	return migrations[len(migrations)-1].version
}

// SchemaVersion returns the currently applied schema version (0 if none).
// PRE: db is a valid database connection
// POST: Returns the highest applied version
func SchemaVersion(db *sql.DB) (int, error) {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return 0, fmt.Errorf("create schema_version: %w", err)
	}
	var v sql.NullInt64
	if err := db.QueryRow(`SELECT MAX(version) FROM schema_version`).Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema_version: %w", err)
	}
	return int(v.Int64), nil
}

// MigrateDB applies every pending migration in order.
// PRE: db is a valid database connection
// POST: SchemaVersion(db) == LatestSchemaVersion(); already-applied steps are skipped
func MigrateDB(db *sql.DB) error {
	current, err := SchemaVersion(db)
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := applyMigration(db, m); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.description, err)
		}
		slog.Info("schema_migrated", "version", m.version, "description", m.description)
	}
	return nil
}

func applyMigration(db *sql.DB, m migration) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return err
	}
	for _, stmt := range m.stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(`INSERT INTO schema_version (version) VALUES (?)`, m.version); err != nil {
		return err
	}
	return tx.Commit()
}

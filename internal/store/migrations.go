package store

import (
	"context"
	"database/sql"
	"strings"
)

// schema contains the DDL for all tables.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS exams (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		name      TEXT NOT NULL,
		start_at  INTEGER NOT NULL,
		end_at    INTEGER NOT NULL,
		students  INTEGER NOT NULL DEFAULT 0
	)`,

	// Allocated VMs for each student.
	`CREATE TABLE IF NOT EXISTS exam_vms (
		id         TEXT PRIMARY KEY,
		exam_id    INTEGER NOT NULL REFERENCES exams(id),
		state      TEXT NOT NULL DEFAULT 'REQUESTED',
		created_at INTEGER NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_exams_start_at ON exams(start_at)`,
	`CREATE INDEX IF NOT EXISTS idx_exams_end_at ON exams(end_at)`,
	`CREATE INDEX IF NOT EXISTS idx_exam_vms_exam_id ON exam_vms(exam_id)`,
	`CREATE INDEX IF NOT EXISTS idx_exam_vms_state ON exam_vms(state)`,
}

// alterStatements are column additions that need special handling since
// SQLite doesn't support IF NOT EXISTS for ALTER TABLE ADD COLUMN.
var alterStatements = []struct {
	table    string
	column   string
	alterSQL string
	indexSQL string // Optional index to create after column is added
}{
	{
		table:    "exam_vms",
		column:   "ended_at",
		alterSQL: "ALTER TABLE exam_vms ADD COLUMN ended_at INTEGER",
		indexSQL: "CREATE INDEX IF NOT EXISTS idx_exam_vms_ended_at ON exam_vms(ended_at)",
	},
}

// migrate executes all schema DDL statements, alter migrations, and post-migration indexes.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	for _, alter := range alterStatements {
		if err := addColumnIfNotExists(ctx, db, alter.table, alter.column, alter.alterSQL); err != nil {
			return err
		}
		if alter.indexSQL != "" {
			if _, err := db.ExecContext(ctx, alter.indexSQL); err != nil {
				return err
			}
		}
	}

	return nil
}

// addColumnIfNotExists adds a column to a table if it doesn't already exist.
func addColumnIfNotExists(ctx context.Context, db *sql.DB, table, column, alterSQL string) error {
	exists, err := columnExists(ctx, db, table, column)
	if err != nil || exists {
		return err
	}
	_, err = db.ExecContext(ctx, alterSQL)
	return err
}

func columnExists(ctx context.Context, db *sql.DB, table, column string) (bool, error) {
	rows, err := db.QueryContext(ctx, "PRAGMA table_info("+table+")")
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue *string
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return false, err
		}
		if strings.EqualFold(name, column) {
			return true, nil
		}
	}
	return false, rows.Err()
}

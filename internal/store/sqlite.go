package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/me/examvm/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a Store.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	// foreign_keys and busy_timeout are per connection, so they go in the DSN
	// and apply to every pooled connection.
	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}

	// Every connection to ":memory:" is a separate database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

// --- Exams ---

func (s *SQLiteStore) CreateExam(ctx context.Context, exam *model.Exam) error {
	s.logger.Debug("sql", "op", "insert", "table", "exams", "name", exam.Name)

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO exams (name, start_at, end_at, students) VALUES (?, ?, ?, ?)`,
		exam.Name, toMillis(exam.Start), toMillis(exam.End), exam.Students,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	exam.ID = id
	return nil
}

const selectExam = `SELECT e.id, e.name, e.start_at, e.end_at, e.students,
		(SELECT COUNT(*) FROM exam_vms AS v WHERE v.exam_id = e.id)
	 FROM exams AS e`

func (s *SQLiteStore) GetExam(ctx context.Context, id int64) (*model.Exam, error) {
	s.logger.Debug("sql", "op", "select", "table", "exams", "id", id)

	exam, err := scanExam(s.db.QueryRowContext(ctx, selectExam+` WHERE e.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return exam, nil
}

func (s *SQLiteStore) ListExams(ctx context.Context) ([]*model.Exam, error) {
	s.logger.Debug("sql", "op", "list", "table", "exams")

	rows, err := s.db.QueryContext(ctx, selectExam+` ORDER BY e.start_at DESC, e.id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []*model.Exam
	for rows.Next() {
		exam, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		exams = append(exams, exam)
	}
	return exams, rows.Err()
}

// --- VMs ---

func (s *SQLiteStore) RecordCreatedVMs(ctx context.Context, vms []*model.VM) error {
	if len(vms) == 0 {
		return nil
	}
	s.logger.Debug("sql", "op", "insert", "table", "exam_vms", "count", len(vms))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO exam_vms (id, exam_id, state, created_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, vm := range vms {
		state := vm.State
		if state == "" {
			state = model.VMStateRequested
		}
		if _, err := stmt.ExecContext(ctx, vm.ID, vm.ExamID, string(state), toMillis(vm.CreatedAt)); err != nil {
			return fmt.Errorf("insert vm %s: %w", vm.ID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) ListVMs(ctx context.Context, state model.VMState) ([]*model.VM, error) {
	s.logger.Debug("sql", "op", "list", "table", "exam_vms", "state", state)

	query := `SELECT id, exam_id, state, created_at, ended_at FROM exam_vms`
	var args []any
	if state != "" {
		query += ` WHERE state = ?`
		args = append(args, string(state))
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vms []*model.VM
	for rows.Next() {
		var vm model.VM
		var state string
		var createdAt int64
		var endedAt sql.NullInt64
		if err := rows.Scan(&vm.ID, &vm.ExamID, &state, &createdAt, &endedAt); err != nil {
			return nil, err
		}
		vm.State = model.VMState(state)
		vm.CreatedAt = fromMillis(createdAt)
		if endedAt.Valid {
			t := fromMillis(endedAt.Int64)
			vm.EndedAt = &t
		}
		vms = append(vms, &vm)
	}
	return vms, rows.Err()
}

func (s *SQLiteStore) ListEndableVMs(ctx context.Context, now time.Time) ([]string, error) {
	s.logger.Debug("sql", "op", "list_endable", "table", "exam_vms")

	rows, err := s.db.QueryContext(ctx,
		`SELECT v.id FROM exam_vms AS v
		 JOIN exams AS e ON e.id = v.exam_id
		 WHERE e.end_at < ? AND v.ended_at IS NULL
		 ORDER BY e.end_at, v.created_at, v.id`,
		toMillis(now),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) MarkVMsRunning(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	s.logger.Debug("sql", "op", "mark_running", "table", "exam_vms", "count", len(ids))

	query := `UPDATE exam_vms SET state = ? WHERE state = ? AND id IN (` + placeholders(len(ids)) + `)`
	args := append([]any{string(model.VMStateRunning), string(model.VMStateRequested)}, anySlice(ids)...)
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}

func (s *SQLiteStore) MarkVMsEnded(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	s.logger.Debug("sql", "op", "mark_ended", "table", "exam_vms", "count", len(ids))

	query := `UPDATE exam_vms SET state = ?, ended_at = ? WHERE ended_at IS NULL AND id IN (` + placeholders(len(ids)) + `)`
	args := append([]any{string(model.VMStateEnded), toMillis(at)}, anySlice(ids)...)
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}

// --- helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExam(row rowScanner) (*model.Exam, error) {
	var exam model.Exam
	var startAt, endAt int64
	if err := row.Scan(&exam.ID, &exam.Name, &startAt, &endAt, &exam.Students, &exam.VMsCreated); err != nil {
		return nil, err
	}
	exam.Start = fromMillis(startAt)
	exam.End = fromMillis(endAt)
	return &exam, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func anySlice(ids []string) []any {
	return lo.Map(ids, func(id string, _ int) any { return id })
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/qrattend/internal/model"
)

// PostgresAttendanceRepo はPostgreSQLを使用した出席記録リポジトリ。
// attendanceテーブルの (student_id, period_start) 一意制約が二重記録を防ぐ。
type PostgresAttendanceRepo struct {
	db *sql.DB
}

// NewPostgresAttendanceRepo はPostgresAttendanceRepoを生成する。
func NewPostgresAttendanceRepo(db *sql.DB) *PostgresAttendanceRepo {
	return &PostgresAttendanceRepo{db: db}
}

// ExistsInWindow は学生が [start, end) の時間帯に出席記録を持つかどうかを返す。
func (r *PostgresAttendanceRepo) ExistsInWindow(ctx context.Context, studentID string, start, end time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM attendance
		   WHERE student_id = $1 AND "timestamp" >= $2 AND "timestamp" < $3
		 )`,
		studentID, start, end,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check attendance window: %w", err)
	}
	return exists, nil
}

// Create は出席記録を作成する。一意制約違反の場合はErrDuplicateを返す。
func (r *PostgresAttendanceRepo) Create(ctx context.Context, record *model.AttendanceRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO attendance (id, session_id, student_id, "timestamp", period_start, period_label)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		record.ID, record.SessionID, record.StudentID, record.Timestamp, record.PeriodStart, record.PeriodLabel,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert attendance: %w", err)
	}
	return nil
}

// ListByStudentSince は学生のsince以降の出席履歴を新しい順に返す。
func (r *PostgresAttendanceRepo) ListByStudentSince(ctx context.Context, studentID string, since time.Time) ([]model.CheckIn, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT a.session_id, s.faculty_id, a."timestamp", a.period_label
		 FROM attendance a
		 JOIN sessions s ON a.session_id = s.session_id
		 WHERE a.student_id = $1 AND a."timestamp" >= $2
		 ORDER BY a."timestamp" DESC`,
		studentID, since,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance by student: %w", err)
	}
	defer rows.Close()

	var records []model.CheckIn
	for rows.Next() {
		var c model.CheckIn
		if err := rows.Scan(&c.SessionID, &c.FacultyID, &c.Timestamp, &c.PeriodLabel); err != nil {
			return nil, fmt.Errorf("failed to scan attendance: %w", err)
		}
		records = append(records, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate attendance: %w", err)
	}

	return records, nil
}

// ListBySession はセッションの出席者一覧を記録時刻の昇順で返す。
func (r *PostgresAttendanceRepo) ListBySession(ctx context.Context, sessionID string) ([]model.RosterEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT a.student_id, COALESCE(u.username, ''), s.faculty_id, a."timestamp", a.period_label
		 FROM attendance a
		 JOIN sessions s ON a.session_id = s.session_id
		 LEFT JOIN users u ON u.id = a.student_id
		 WHERE a.session_id = $1
		 ORDER BY a."timestamp" ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance by session: %w", err)
	}
	defer rows.Close()

	var entries []model.RosterEntry
	for rows.Next() {
		var e model.RosterEntry
		if err := rows.Scan(&e.StudentID, &e.StudentName, &e.FacultyID, &e.Timestamp, &e.PeriodLabel); err != nil {
			return nil, fmt.Errorf("failed to scan roster entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate roster: %w", err)
	}

	return entries, nil
}

// compile-time interface check
var _ AttendanceRepository = (*PostgresAttendanceRepo)(nil)

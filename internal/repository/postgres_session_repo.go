package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/qrattend/internal/model"
)

// PostgresSessionRepo はPostgreSQLを使用した出席セッションリポジトリ。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

// Create はセッションを作成する。
func (r *PostgresSessionRepo) Create(ctx context.Context, session *model.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, faculty_id, otp, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		session.ID, session.FacultyID, session.Code, session.CreatedAt, session.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindByID は指定IDのセッションを取得する。期限切れでも返す。
func (r *PostgresSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	session := &model.Session{}
	err := r.db.QueryRowContext(ctx,
		`SELECT session_id, faculty_id, otp, created_at, expires_at
		 FROM sessions
		 WHERE session_id = $1`,
		id,
	).Scan(&session.ID, &session.FacultyID, &session.Code, &session.CreatedAt, &session.ExpiresAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	return session, nil
}

// ListLiveByCode はat時点で有効かつOTPが一致するセッションを作成日時の新しい順に返す。
func (r *PostgresSessionRepo) ListLiveByCode(ctx context.Context, code string, at time.Time) ([]*model.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT session_id, faculty_id, otp, created_at, expires_at
		 FROM sessions
		 WHERE otp = $1 AND expires_at >= $2
		 ORDER BY created_at DESC`,
		code, at,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions by code: %w", err)
	}
	defer rows.Close()

	var sessions []*model.Session
	for rows.Next() {
		s := &model.Session{}
		if err := rows.Scan(&s.ID, &s.FacultyID, &s.Code, &s.CreatedAt, &s.ExpiresAt); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}

	return sessions, nil
}

// compile-time interface check
var _ SessionRepository = (*PostgresSessionRepo)(nil)

// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/qrattend/internal/model"
)

// ErrDuplicate は一意制約違反により書き込みが拒否されたことを表す。
// 同時に書き込まれた場合は先着の1件のみが保存される。
var ErrDuplicate = errors.New("duplicate record")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。メールアドレスが重複する場合はErrDuplicateを返す。
	Create(ctx context.Context, user *model.User) error
}

// SessionRepository は出席セッションの永続化インターフェース。
// セッションは作成のみで、更新・削除は行わない。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error

	// FindByID は指定IDのセッションを取得する。有効期限では絞り込まない。
	// 見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)

	// ListLiveByCode はat時点で有効（expires_at >= at）かつコードが一致するセッションを返す。
	ListLiveByCode(ctx context.Context, code string, at time.Time) ([]*model.Session, error)
}

// AttendanceRepository は出席記録の永続化インターフェース。
type AttendanceRepository interface {
	// ExistsInWindow は学生が [start, end) の時間帯に出席記録を持つかどうかを返す。
	ExistsInWindow(ctx context.Context, studentID string, start, end time.Time) (bool, error)

	// Create は出席記録を作成する。
	// 同一学生・同一時限枠の記録が既にある場合はErrDuplicateを返す。
	Create(ctx context.Context, record *model.AttendanceRecord) error

	// ListByStudentSince は学生のsince以降の出席履歴を新しい順に返す。
	// sinceがゼロ値の場合は全件を返す。
	ListByStudentSince(ctx context.Context, studentID string, since time.Time) ([]model.CheckIn, error)

	// ListBySession はセッションの出席者一覧を記録時刻の昇順で返す。
	// 学生名が解決できない行はStudentNameが空になる。
	ListBySession(ctx context.Context, sessionID string) ([]model.RosterEntry, error)
}

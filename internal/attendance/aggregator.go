package attendance

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/hitoshi/qrattend/internal/model"
	"github.com/hitoshi/qrattend/internal/period"
	"github.com/hitoshi/qrattend/internal/repository"
)

// UnknownStudentName はユーザーが見つからない出席者の表示名。
const UnknownStudentName = "Unknown"

// Report は学生の出席履歴と集計結果。
type Report struct {
	Username string
	Records  []model.CheckIn
	Summary  model.Summary
}

// Aggregator は出席集計と出席者一覧のサービス層。
type Aggregator struct {
	repo     repository.AttendanceRepository
	users    repository.UserRepository
	sessions SessionFinder
	periods  *period.Table
}

// NewAggregator はAggregatorの新しいインスタンスを生成する。
func NewAggregator(
	repo repository.AttendanceRepository,
	users repository.UserRepository,
	sessions SessionFinder,
	periods *period.Table,
) *Aggregator {
	return &Aggregator{
		repo:     repo,
		users:    users,
		sessions: sessions,
		periods:  periods,
	}
}

// Summarize は学生のsince以降の出席履歴を新しい順に返し、出席率を集計する。
// sinceがゼロ値の場合は全期間を対象とする。
func (a *Aggregator) Summarize(ctx context.Context, studentID string, since time.Time) (*Report, error) {
	if studentID == "" {
		return nil, model.NewMissingFieldsError("id")
	}

	user, err := a.users.FindByID(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	records, err := a.repo.ListByStudentSince(ctx, studentID, since)
	if err != nil {
		return nil, fmt.Errorf("出席履歴の取得に失敗しました: %w", err)
	}

	return &Report{
		Username: user.Username,
		Records:  records,
		Summary:  Summarize(records, a.periods),
	}, nil
}

// Summarize は出席記録から集計を計算する。
// 総コマ数は記録のある日数×1日の時限数で、記録が1件もない日は数えない。
func Summarize(records []model.CheckIn, periods *period.Table) model.Summary {
	days := make(map[string]struct{}, len(records))
	for _, r := range records {
		days[periods.Day(r.Timestamp)] = struct{}{}
	}

	total := len(days) * periods.Len()
	present := len(records)

	s := model.Summary{
		Present: present,
		Absent:  total - present,
		Total:   total,
	}
	if total > 0 {
		s.Percentage = int(math.Round(100 * float64(present) / float64(total)))
	}
	return s
}

// Roster はセッションの出席者一覧を記録時刻の昇順で返す。
func (a *Aggregator) Roster(ctx context.Context, sessionID string) ([]model.RosterEntry, error) {
	if sessionID == "" {
		return nil, model.NewMissingFieldsError("session_id")
	}

	if _, err := a.sessions.Get(ctx, sessionID); err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			return nil, apiErr
		}
		return nil, fmt.Errorf("セッションの取得に失敗しました: %w", err)
	}

	entries, err := a.repo.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("出席者一覧の取得に失敗しました: %w", err)
	}

	for i := range entries {
		if entries[i].StudentName == "" {
			entries[i].StudentName = UnknownStudentName
		}
	}
	return entries, nil
}

// Package attendance は出席登録と出席集計のドメインロジックを提供する。
package attendance

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/qrattend/internal/model"
	"github.com/hitoshi/qrattend/internal/period"
	"github.com/hitoshi/qrattend/internal/repository"
)

// SessionFinder はセッションIDからセッションを取得する。
// 見つからない場合はSESSION_NOT_FOUNDのAPIErrorを返す。
type SessionFinder interface {
	Get(ctx context.Context, id string) (*model.Session, error)
}

// Metrics は出席登録の計測インターフェース。
type Metrics interface {
	RecordAttendanceMarked(period string)
	RecordAttendanceRejected(reason string)
	RecordMarkLatency(duration time.Duration)
}

// Mark は出席登録の成功結果。
type Mark struct {
	StudentID string
	SessionID string
	Period    period.Period
	Timestamp time.Time
}

// Recorder は出席登録のサービス層。
// 同一学生・同一日・同一時限の出席は1件のみ記録する。
type Recorder struct {
	repo     repository.AttendanceRepository
	sessions SessionFinder
	periods  *period.Table
	logger   *slog.Logger
	metrics  Metrics
	clock    func() time.Time
}

// NewRecorder はRecorderの新しいインスタンスを生成する。metricsはnilでもよい。
func NewRecorder(
	repo repository.AttendanceRepository,
	sessions SessionFinder,
	periods *period.Table,
	logger *slog.Logger,
	metrics Metrics,
) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		repo:     repo,
		sessions: sessions,
		periods:  periods,
		logger:   logger,
		metrics:  metrics,
		clock:    time.Now,
	}
}

// MarkNow は現在時刻で出席を登録する。
func (r *Recorder) MarkNow(ctx context.Context, sessionID, studentID string) (*Mark, error) {
	return r.MarkAttendance(ctx, sessionID, studentID, r.clock())
}

// MarkAttendance はat時点の出席を登録する。
// 検査順序: 必須項目、時限、同一時限の重複、セッションの存在、有効期限。
func (r *Recorder) MarkAttendance(ctx context.Context, sessionID, studentID string, at time.Time) (*Mark, error) {
	start := time.Now()
	mark, err := r.mark(ctx, sessionID, studentID, at)
	if r.metrics != nil {
		r.metrics.RecordMarkLatency(time.Since(start))
		if err != nil {
			r.metrics.RecordAttendanceRejected(rejectReason(err))
		} else {
			r.metrics.RecordAttendanceMarked(mark.Period.Label)
		}
	}
	if err != nil {
		r.logger.Info("出席登録を拒否しました",
			slog.String("session_id", sessionID),
			slog.String("student_id", studentID),
			slog.String("reason", rejectReason(err)),
		)
		return nil, err
	}

	r.logger.Info("出席を登録しました",
		slog.String("session_id", sessionID),
		slog.String("student_id", studentID),
		slog.String("period", mark.Period.Label),
	)
	return mark, nil
}

func (r *Recorder) mark(ctx context.Context, sessionID, studentID string, at time.Time) (*Mark, error) {
	if missing := missingFields(sessionID, studentID); len(missing) > 0 {
		return nil, model.NewMissingFieldsError(missing...)
	}

	windowStart, windowEnd, p, ok := r.periods.Window(at)
	if !ok {
		return nil, model.NewOutsidePeriodError()
	}

	exists, err := r.repo.ExistsInWindow(ctx, studentID, windowStart, windowEnd)
	if err != nil {
		r.logger.Error("出席記録の重複確認に失敗しました",
			slog.String("student_id", studentID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewPersistenceError("check existing attendance")
	}
	if exists {
		return nil, model.NewAlreadyMarkedError()
	}

	sess, err := r.sessions.Get(ctx, sessionID)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			return nil, apiErr
		}
		r.logger.Error("セッションの取得に失敗しました",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewPersistenceError("look up session")
	}

	if !sess.IsLive(at) {
		return nil, model.NewSessionExpiredError()
	}

	record := &model.AttendanceRecord{
		ID:          uuid.NewString(),
		SessionID:   sess.ID,
		StudentID:   studentID,
		Timestamp:   at,
		PeriodStart: windowStart,
		PeriodLabel: p.Label,
	}
	if err := r.repo.Create(ctx, record); err != nil {
		// 並行した登録は一意制約で後着側が拒否される
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewAlreadyMarkedError()
		}
		r.logger.Error("出席記録の保存に失敗しました",
			slog.String("session_id", sessionID),
			slog.String("student_id", studentID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewPersistenceError("record attendance")
	}

	return &Mark{
		StudentID: studentID,
		SessionID: sess.ID,
		Period:    p,
		Timestamp: at,
	}, nil
}

func missingFields(sessionID, studentID string) []string {
	var missing []string
	if sessionID == "" {
		missing = append(missing, "sessionId")
	}
	if studentID == "" {
		missing = append(missing, "studentId")
	}
	return missing
}

// rejectReason はエラーからメトリクス用の理由ラベルを返す。
func rejectReason(err error) string {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return "UNKNOWN"
}

// Package session は出席セッションの作成・解決・有効期限判定を提供する。
//
// セッションは教員の操作で一度だけ作成され、以後変更されない。
// 有効期限は読み取り時の時刻比較のみで判定し、期限切れセッションの掃除は行わない。
package session

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/qrattend/internal/model"
	"github.com/hitoshi/qrattend/internal/qr"
	"github.com/hitoshi/qrattend/internal/repository"
)

// DefaultValidity はセッションの既定の有効期間。
const DefaultValidity = 30 * time.Second

// OTPの範囲 [codeMin, codeMax]
const (
	codeMin = 100000
	codeMax = 999999
)

// maxCodeAttempts は有効なセッションとOTPが衝突した場合の再生成上限。
const maxCodeAttempts = 5

// Metrics はセッション作成の計測インターフェース。
type Metrics interface {
	RecordSessionCreated()
}

// Created はセッション作成結果。QRCodeはセッションIDを符号化した画像ペイロード。
type Created struct {
	Session *model.Session
	QRCode  string
}

// Registry は出席セッションのサービス層。
type Registry struct {
	repo     repository.SessionRepository
	encoder  qr.Encoder
	validity time.Duration
	logger   *slog.Logger
	metrics  Metrics
	clock    func() time.Time
	newCode  func() (string, error)

	// allocMu はOTPの衝突確認から保存までを直列化する
	allocMu sync.Mutex
}

// NewRegistry はRegistryの新しいインスタンスを生成する。
// validityが0以下の場合はDefaultValidityを使用する。metricsはnilでもよい。
func NewRegistry(
	repo repository.SessionRepository,
	encoder qr.Encoder,
	validity time.Duration,
	logger *slog.Logger,
	metrics Metrics,
) *Registry {
	if validity <= 0 {
		validity = DefaultValidity
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		repo:     repo,
		encoder:  encoder,
		validity: validity,
		logger:   logger,
		metrics:  metrics,
		clock:    time.Now,
		newCode:  randomCode,
	}
}

// Validity はセッションの有効期間を返す。
func (r *Registry) Validity() time.Duration {
	return r.validity
}

// Create は教員のためのセッションを作成し、QRコードとともに返す。
// 生成したOTPが他の有効なセッションと衝突する場合は再生成する。
func (r *Registry) Create(ctx context.Context, facultyID string) (*Created, error) {
	if facultyID == "" {
		return nil, model.NewMissingFieldsError("facultyId")
	}

	sess, err := r.allocate(ctx, facultyID)
	if err != nil {
		return nil, err
	}

	qrCode, err := r.encoder.Encode(sess.ID)
	if err != nil {
		r.logger.Error("QRコードの生成に失敗しました",
			slog.String("session_id", sess.ID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewSessionCreateFailedError()
	}

	if r.metrics != nil {
		r.metrics.RecordSessionCreated()
	}

	r.logger.Info("セッションを作成しました",
		slog.String("session_id", sess.ID),
		slog.String("faculty_id", facultyID),
		slog.Time("expires_at", sess.ExpiresAt),
	)

	return &Created{Session: sess, QRCode: qrCode}, nil
}

// allocate は有効なセッションと重複しないOTPを割り当ててセッションを保存する。
// 同時に作成されたセッションが同じOTPを得ないよう、確認と保存はallocMuの下で行う。
func (r *Registry) allocate(ctx context.Context, facultyID string) (*model.Session, error) {
	r.allocMu.Lock()
	defer r.allocMu.Unlock()

	now := r.clock()

	code, err := r.uniqueCode(ctx, now)
	if err != nil {
		return nil, err
	}

	sess := &model.Session{
		ID:        uuid.NewString(),
		FacultyID: facultyID,
		Code:      code,
		CreatedAt: now,
		ExpiresAt: now.Add(r.validity),
	}

	if err := r.repo.Create(ctx, sess); err != nil {
		r.logger.Error("セッションの保存に失敗しました",
			slog.String("faculty_id", facultyID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewSessionCreateFailedError()
	}
	return sess, nil
}

// uniqueCode はat時点で有効なセッションに使われていないOTPを生成する。
func (r *Registry) uniqueCode(ctx context.Context, at time.Time) (string, error) {
	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code, err := r.newCode()
		if err != nil {
			r.logger.Error("OTPの生成に失敗しました", slog.String("error", err.Error()))
			return "", model.NewSessionCreateFailedError()
		}

		live, err := r.repo.ListLiveByCode(ctx, code, at)
		if err != nil {
			r.logger.Error("OTPの衝突確認に失敗しました", slog.String("error", err.Error()))
			return "", model.NewSessionCreateFailedError()
		}
		if len(live) == 0 {
			return code, nil
		}

		r.logger.Warn("OTPが有効なセッションと衝突したため再生成します",
			slog.Int("attempt", attempt),
		)
	}

	return "", model.NewSessionCreateFailedError()
}

// ResolveByCode は現在有効なセッションの中からOTPが一致するものを返す。
// 一致する有効なセッションが複数ある場合はエラーとする。
func (r *Registry) ResolveByCode(ctx context.Context, code string) (*model.Session, error) {
	if code == "" {
		return nil, model.NewMissingFieldsError("otp")
	}

	live, err := r.repo.ListLiveByCode(ctx, code, r.clock())
	if err != nil {
		return nil, fmt.Errorf("OTPによるセッション検索に失敗しました: %w", err)
	}

	switch len(live) {
	case 0:
		return nil, model.NewCodeNotFoundError()
	case 1:
		return live[0], nil
	default:
		r.logger.Warn("OTPが複数の有効なセッションに一致しました",
			slog.Int("matches", len(live)),
		)
		return nil, model.NewCodeAmbiguousError()
	}
}

// Get は指定IDのセッションを返す。期限切れのセッションも返す。
func (r *Registry) Get(ctx context.Context, id string) (*model.Session, error) {
	if id == "" {
		return nil, model.NewMissingFieldsError("sessionId")
	}

	sess, err := r.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("セッションの取得に失敗しました: %w", err)
	}
	if sess == nil {
		return nil, model.NewSessionNotFoundError(id)
	}
	return sess, nil
}

// IsLive はセッションがat時点で有効かどうかを返す。
func IsLive(sess *model.Session, at time.Time) bool {
	return sess.IsLive(at)
}

// randomCode は [codeMin, codeMax] から一様に6桁のOTPを生成する。
func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return "", fmt.Errorf("failed to read random source: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+codeMin), nil
}

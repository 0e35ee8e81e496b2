// Package account はアカウント照会・ログイン・サインアップのドメインロジックを提供する。
//
// ログイン状態はサーバー側に保持しない。クライアントは返されたユーザー情報を
// 自身で保持し、以降のリクエストでユーザーIDを送信する。
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/qrattend/internal/auth"
	"github.com/hitoshi/qrattend/internal/model"
	"github.com/hitoshi/qrattend/internal/repository"
)

// NameSanitizer は表示名からマークアップを除去する。
type NameSanitizer interface {
	Sanitize(name string) string
}

// SignupInput はサインアップの入力。
type SignupInput struct {
	Username string
	Email    string
	Password string
	Role     string
}

// FederatedResult はフェデレーテッドサインインの結果。
// 未登録のメールアドレスの場合、Userはnilとなる。
type FederatedResult struct {
	Email string
	Name  string
	User  *model.User
}

// Service はアカウント管理のサービス層。
type Service struct {
	users      repository.UserRepository
	sanitizer  NameSanitizer
	oauth      auth.OAuthProvider
	bcryptCost int
	logger     *slog.Logger
	clock      func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// oauthはフェデレーテッドサインインを使わない場合nilでよい。
func NewService(
	users repository.UserRepository,
	sanitizer NameSanitizer,
	oauth auth.OAuthProvider,
	bcryptCost int,
	logger *slog.Logger,
) *Service {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:      users,
		sanitizer:  sanitizer,
		oauth:      oauth,
		bcryptCost: bcryptCost,
		logger:     logger,
		clock:      time.Now,
	}
}

// CheckUser はメールアドレスのアカウントを返す。存在しない場合はnilを返す。
func (s *Service) CheckUser(ctx context.Context, email string) (*model.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, model.NewMissingFieldsError("email")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	return user, nil
}

// Login はメールアドレスとパスワードを検証し、一致したユーザーを返す。
// ユーザーが存在しない場合とパスワードが一致しない場合は同じエラーを返す。
func (s *Service) Login(ctx context.Context, email, password string) (*model.User, error) {
	email = normalizeEmail(email)
	var missing []string
	if email == "" {
		missing = append(missing, "email")
	}
	if password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return nil, model.NewMissingFieldsError(missing...)
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil || user.PasswordHash == "" {
		return nil, model.NewInvalidCredentialsError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Info("ログインに失敗しました", slog.String("user_id", user.ID))
		return nil, model.NewInvalidCredentialsError()
	}

	s.logger.Info("ログインしました",
		slog.String("user_id", user.ID),
		slog.String("role", string(user.Role)),
	)
	return user, nil
}

// Signup はアカウントを作成する。メールアドレスを省略した場合はユーザー名を使用する。
func (s *Service) Signup(ctx context.Context, in SignupInput) (*model.User, error) {
	username := s.sanitizer.Sanitize(in.Username)

	var missing []string
	if username == "" {
		missing = append(missing, "username")
	}
	if in.Password == "" {
		missing = append(missing, "password")
	}
	if in.Role == "" {
		missing = append(missing, "role")
	}
	if len(missing) > 0 {
		return nil, model.NewMissingFieldsError(missing...)
	}

	role := model.Role(strings.ToLower(strings.TrimSpace(in.Role)))
	if !role.Valid() {
		return nil, model.NewInvalidRoleError(in.Role)
	}

	email := normalizeEmail(in.Email)
	if email == "" {
		email = normalizeEmail(in.Username)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, model.NewInvalidRequestError("password must be at most 72 bytes")
		}
		s.logger.Error("パスワードのハッシュ化に失敗しました", slog.String("error", err.Error()))
		return nil, model.NewSignupFailedError()
	}

	user := &model.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    s.clock(),
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewAccountExistsError()
		}
		s.logger.Error("アカウントの作成に失敗しました",
			slog.String("email", email),
			slog.String("error", err.Error()),
		)
		return nil, model.NewSignupFailedError()
	}

	s.logger.Info("アカウントを作成しました",
		slog.String("user_id", user.ID),
		slog.String("role", string(role)),
	)
	return user, nil
}

// FederatedEnabled はフェデレーテッドサインインが利用可能かどうかを返す。
func (s *Service) FederatedEnabled() bool {
	return s.oauth != nil
}

// FederatedLoginURL はIdPの認証URLを返す。
func (s *Service) FederatedLoginURL(state string) string {
	return s.oauth.GetLoginURL(state)
}

// FederatedLogin はIdPの認可コードを検証済みメールアドレスに交換し、アカウントを照会する。
func (s *Service) FederatedLogin(ctx context.Context, code string) (*FederatedResult, error) {
	if s.oauth == nil {
		return nil, fmt.Errorf("federated sign-in is not configured")
	}

	identity, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("IdPでの本人確認に失敗しました: %w", err)
	}

	user, err := s.CheckUser(ctx, identity.Email)
	if err != nil {
		return nil, err
	}

	s.logger.Info("フェデレーテッドサインインを処理しました",
		slog.String("provider", identity.Provider),
		slog.Bool("registered", user != nil),
	)

	return &FederatedResult{
		Email: identity.Email,
		Name:  identity.Name,
		User:  user,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

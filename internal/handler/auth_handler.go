// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/qrattend/internal/account"
	"github.com/hitoshi/qrattend/internal/auth"
	"github.com/hitoshi/qrattend/internal/model"
)

const oauthStateCookie = "oauth_state"

// FederatedServiceInterface はフェデレーテッドサインインのハンドラーが必要とするサービスインターフェース。
type FederatedServiceInterface interface {
	FederatedEnabled() bool
	FederatedLoginURL(state string) string
	FederatedLogin(ctx context.Context, code string) (*account.FederatedResult, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieSecure bool
}

// AuthHandler はGoogle OAuthによるフェデレーテッドサインインのHTTPハンドラー。
// stateのCookieはOAuthのハンドシェイク中だけ使い、ログイン状態は保持しない。
type AuthHandler struct {
	service FederatedServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service FederatedServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

type federatedLoginResponse struct {
	Exists bool   `json:"exists"`
	Email  string `json:"email"`
	Name   string `json:"name,omitempty"`
	*userResponse
}

// Login はGoogle OAuthフローを開始する。
// GET /auth/google/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := auth.GenerateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		handleServiceError(w, err)
		return
	}

	// stateをCookieに保存（CSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/auth/google",
		MaxAge:   600, // 10分
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.service.FederatedLoginURL(state), http.StatusTemporaryRedirect)
}

// Callback はOAuthコールバックを処理し、検証済みメールアドレスのアカウント照会結果を返す。
// 未登録の場合はexists=falseとIdPの氏名を返し、クライアントはサインインかサインアップかを選ぶ。
// GET /auth/google/callback?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	// 1. stateの検証（CSRF対策）
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || state == "" || stateCookie.Value != state {
		slog.Warn("oauth state mismatch")
		handleServiceError(w, model.NewInvalidRequestError("invalid state parameter"))
		return
	}

	// stateクッキーを削除
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/auth/google",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	// 2. 認可コードの取得
	code := r.URL.Query().Get("code")
	if code == "" {
		handleServiceError(w, model.NewMissingFieldsError("code"))
		return
	}

	// 3. 本人確認とアカウント照会
	result, err := h.service.FederatedLogin(r.Context(), code)
	if err != nil {
		if errors.Is(err, auth.ErrEmailNotVerified) {
			handleServiceError(w, model.NewInvalidCredentialsError())
			return
		}
		handleServiceError(w, err)
		return
	}

	resp := federatedLoginResponse{
		Exists: result.User != nil,
		Email:  result.Email,
		Name:   result.Name,
	}
	if result.User != nil {
		resp.userResponse = toUserResponse(result.User)
	}
	writeJSON(w, http.StatusOK, resp)
}

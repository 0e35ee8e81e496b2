// Package auth は外部IdPによる本人確認（フェデレーテッドサインイン）を提供する。
//
// 認証後の状態はサーバー側に保持しない。IdPから検証済みメールアドレスを受け取り、
// アカウント照会に渡すまでが責務となる。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrEmailNotVerified はIdPがメールアドレスを検証済みとしていないことを表す。
var ErrEmailNotVerified = errors.New("email address is not verified by the identity provider")

// Identity はIdPが確認したユーザー情報を表す。
type Identity struct {
	Provider string // "google" 等
	Subject  string
	Email    string
	Name     string
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードを検証済みのIdentityに交換する。
	// メールアドレスが未検証の場合はErrEmailNotVerifiedを返す。
	ExchangeCode(ctx context.Context, code string) (*Identity, error)
}

// GenerateState はOAuthハンドシェイク用のstate値を生成する。
func GenerateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate oauth state: %w", err)
	}
	return hex.EncodeToString(b), nil
}

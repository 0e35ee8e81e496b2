package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/hitoshi/qrattend/internal/account"
	"github.com/hitoshi/qrattend/internal/auth"
	"github.com/hitoshi/qrattend/internal/model"
)

func TestAuthHandler_Login_RedirectsWithStateCookie(t *testing.T) {
	var gotState string
	svc := &mockFederatedService{
		enabled: true,
		loginURLFn: func(state string) string {
			gotState = state
			return "https://accounts.google.com/o/oauth2/v2/auth?state=" + url.QueryEscape(state)
		},
	}
	h := NewAuthHandler(svc, AuthHandlerConfig{CookieSecure: true})

	w := httptest.NewRecorder()
	h.Login(w, httptest.NewRequest(http.MethodGet, "/auth/google/login", nil))

	resp := w.Result()
	if resp.StatusCode != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusTemporaryRedirect)
	}
	if !strings.HasPrefix(resp.Header.Get("Location"), "https://accounts.google.com/") {
		t.Errorf("Location = %q", resp.Header.Get("Location"))
	}

	var stateCookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == oauthStateCookie {
			stateCookie = c
		}
	}
	if stateCookie == nil {
		t.Fatal("expected oauth_state cookie")
	}
	if stateCookie.Value != gotState || gotState == "" {
		t.Errorf("cookie state = %q, url state = %q", stateCookie.Value, gotState)
	}
	if !stateCookie.HttpOnly || !stateCookie.Secure {
		t.Errorf("cookie flags HttpOnly=%v Secure=%v, want both true", stateCookie.HttpOnly, stateCookie.Secure)
	}
}

func callbackRequest(query, cookieState string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?"+query, nil)
	if cookieState != "" {
		req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: cookieState})
	}
	return req
}

func TestAuthHandler_Callback(t *testing.T) {
	t.Run("登録済み", func(t *testing.T) {
		svc := &mockFederatedService{
			enabled: true,
			federatedLoginFn: func(ctx context.Context, code string) (*account.FederatedResult, error) {
				if code != "auth-code" {
					t.Errorf("code = %q, want %q", code, "auth-code")
				}
				return &account.FederatedResult{Email: "asha@example.com", Name: "Asha", User: sampleUser()}, nil
			},
		}
		h := NewAuthHandler(svc, AuthHandlerConfig{})

		w := httptest.NewRecorder()
		h.Callback(w, callbackRequest("code=auth-code&state=s1", "s1"))

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d (body: %s)", w.Code, http.StatusOK, w.Body.String())
		}
		body := decodeBody(t, w)
		if body["exists"] != true || body["id"] != "user-1" || body["role"] != "student" {
			t.Errorf("body = %v", body)
		}
		if body["email"] != "asha@example.com" {
			t.Errorf("email = %v", body["email"])
		}
	})

	t.Run("未登録", func(t *testing.T) {
		svc := &mockFederatedService{
			enabled: true,
			federatedLoginFn: func(ctx context.Context, code string) (*account.FederatedResult, error) {
				return &account.FederatedResult{Email: "new@example.com", Name: "New Student"}, nil
			},
		}
		h := NewAuthHandler(svc, AuthHandlerConfig{})

		w := httptest.NewRecorder()
		h.Callback(w, callbackRequest("code=c&state=s1", "s1"))

		body := decodeBody(t, w)
		if body["exists"] != false || body["name"] != "New Student" || body["email"] != "new@example.com" {
			t.Errorf("body = %v", body)
		}
		if _, ok := body["id"]; ok {
			t.Error("id must be omitted for unregistered users")
		}
	})

	t.Run("state不一致", func(t *testing.T) {
		h := NewAuthHandler(&mockFederatedService{enabled: true}, AuthHandlerConfig{})

		w := httptest.NewRecorder()
		h.Callback(w, callbackRequest("code=c&state=s1", "other"))

		assertErrorResponse(t, w, http.StatusBadRequest, model.ErrCodeInvalidRequest)
	})

	t.Run("stateクッキーなし", func(t *testing.T) {
		h := NewAuthHandler(&mockFederatedService{enabled: true}, AuthHandlerConfig{})

		w := httptest.NewRecorder()
		h.Callback(w, callbackRequest("code=c&state=s1", ""))

		assertErrorResponse(t, w, http.StatusBadRequest, model.ErrCodeInvalidRequest)
	})

	t.Run("認可コードなし", func(t *testing.T) {
		h := NewAuthHandler(&mockFederatedService{enabled: true}, AuthHandlerConfig{})

		w := httptest.NewRecorder()
		h.Callback(w, callbackRequest("state=s1", "s1"))

		assertErrorResponse(t, w, http.StatusBadRequest, model.ErrCodeMissingFields)
	})

	t.Run("メール未確認", func(t *testing.T) {
		svc := &mockFederatedService{
			enabled: true,
			federatedLoginFn: func(ctx context.Context, code string) (*account.FederatedResult, error) {
				return nil, fmt.Errorf("IdPでの本人確認に失敗しました: %w", auth.ErrEmailNotVerified)
			},
		}
		h := NewAuthHandler(svc, AuthHandlerConfig{})

		w := httptest.NewRecorder()
		h.Callback(w, callbackRequest("code=c&state=s1", "s1"))

		assertErrorResponse(t, w, http.StatusUnauthorized, model.ErrCodeInvalidCredentials)
	})

	t.Run("IdP障害", func(t *testing.T) {
		svc := &mockFederatedService{
			enabled: true,
			federatedLoginFn: func(ctx context.Context, code string) (*account.FederatedResult, error) {
				return nil, fmt.Errorf("token exchange failed")
			},
		}
		h := NewAuthHandler(svc, AuthHandlerConfig{})

		w := httptest.NewRecorder()
		h.Callback(w, callbackRequest("code=c&state=s1", "s1"))

		assertErrorResponse(t, w, http.StatusInternalServerError, model.ErrCodeInternal)
	})
}

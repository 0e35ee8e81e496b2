package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/qrattend/internal/model"
)

func TestMapAPIErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  *model.APIError
		want int
	}{
		{"必須項目なし", model.NewMissingFieldsError("sessionId"), http.StatusBadRequest},
		{"時限外", model.NewOutsidePeriodError(), http.StatusBadRequest},
		{"出席済み", model.NewAlreadyMarkedError(), http.StatusBadRequest},
		{"セッションなし", model.NewSessionNotFoundError("s1"), http.StatusNotFound},
		{"期限切れ", model.NewSessionExpiredError(), http.StatusBadRequest},
		{"OTP不一致", model.NewCodeNotFoundError(), http.StatusNotFound},
		{"OTP重複", model.NewCodeAmbiguousError(), http.StatusConflict},
		{"ユーザーなし", model.NewUserNotFoundError(), http.StatusNotFound},
		{"記録なし", model.NewNoRecordsError(), http.StatusNotFound},
		{"認証失敗", model.NewInvalidCredentialsError(), http.StatusUnauthorized},
		{"不正な役割", model.NewInvalidRoleError("admin"), http.StatusBadRequest},
		{"アカウント重複", model.NewAccountExistsError(), http.StatusConflict},
		{"セッション作成失敗", model.NewSessionCreateFailedError(), http.StatusInternalServerError},
		{"サインアップ失敗", model.NewSignupFailedError(), http.StatusInternalServerError},
		{"永続化失敗", model.NewPersistenceError("record attendance"), http.StatusInternalServerError},
		{"不正なリクエスト", model.NewInvalidRequestError("bad"), http.StatusBadRequest},
		{"レート制限", model.NewRateLimitedError(), http.StatusTooManyRequests},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mapAPIErrorToHTTPStatus(tt.err); got != tt.want {
				t.Errorf("mapAPIErrorToHTTPStatus(%s) = %d, want %d", tt.err.Code, got, tt.want)
			}
		})
	}
}

func TestHandleServiceError_WrappedAPIError(t *testing.T) {
	w := httptest.NewRecorder()
	handleServiceError(w, fmt.Errorf("wrapped: %w", model.NewSessionExpiredError()))

	assertErrorResponse(t, w, http.StatusBadRequest, model.ErrCodeSessionExpired)
}

func TestHandleServiceError_UnknownErrorIsInternal(t *testing.T) {
	w := httptest.NewRecorder()
	handleServiceError(w, errors.New("pq: connection refused"))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	body := decodeBody(t, w)
	if body["code"] != model.ErrCodeInternal {
		t.Errorf("code = %v, want %q", body["code"], model.ErrCodeInternal)
	}
	if msg, _ := body["message"].(string); msg == "pq: connection refused" {
		t.Error("internal error details must not be exposed")
	}
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"正常", `{"email":"a@example.com"}`, false},
		{"空ボディ", ``, true},
		{"不正なJSON", `{"email":`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := postJSON(t, "/check-user", tt.body)
			var dst checkUserRequest
			err := decodeJSON(httptest.NewRecorder(), req, &dst)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var apiErr *model.APIError
				if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidRequest {
					t.Errorf("err = %v, want INVALID_REQUEST", err)
				}
			}
		})
	}
}

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/qrattend/internal/account"
	"github.com/hitoshi/qrattend/internal/attendance"
	"github.com/hitoshi/qrattend/internal/model"
	"github.com/hitoshi/qrattend/internal/period"
	"github.com/hitoshi/qrattend/internal/session"
)

// --- モック定義 ---

type mockAccountService struct {
	checkUserFn func(ctx context.Context, email string) (*model.User, error)
	loginFn     func(ctx context.Context, email, password string) (*model.User, error)
	signupFn    func(ctx context.Context, in account.SignupInput) (*model.User, error)
}

func (m *mockAccountService) CheckUser(ctx context.Context, email string) (*model.User, error) {
	if m.checkUserFn != nil {
		return m.checkUserFn(ctx, email)
	}
	return nil, nil
}

func (m *mockAccountService) Login(ctx context.Context, email, password string) (*model.User, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return nil, model.NewInvalidCredentialsError()
}

func (m *mockAccountService) Signup(ctx context.Context, in account.SignupInput) (*model.User, error) {
	if m.signupFn != nil {
		return m.signupFn(ctx, in)
	}
	return nil, nil
}

type mockSessionService struct {
	createFn        func(ctx context.Context, facultyID string) (*session.Created, error)
	resolveByCodeFn func(ctx context.Context, code string) (*model.Session, error)
}

func (m *mockSessionService) Create(ctx context.Context, facultyID string) (*session.Created, error) {
	if m.createFn != nil {
		return m.createFn(ctx, facultyID)
	}
	return nil, model.NewSessionCreateFailedError()
}

func (m *mockSessionService) ResolveByCode(ctx context.Context, code string) (*model.Session, error) {
	if m.resolveByCodeFn != nil {
		return m.resolveByCodeFn(ctx, code)
	}
	return nil, model.NewCodeNotFoundError()
}

type mockRecorder struct {
	markNowFn func(ctx context.Context, sessionID, studentID string) (*attendance.Mark, error)
}

func (m *mockRecorder) MarkNow(ctx context.Context, sessionID, studentID string) (*attendance.Mark, error) {
	if m.markNowFn != nil {
		return m.markNowFn(ctx, sessionID, studentID)
	}
	return nil, model.NewOutsidePeriodError()
}

type mockReporter struct {
	summarizeFn func(ctx context.Context, studentID string, since time.Time) (*attendance.Report, error)
	rosterFn    func(ctx context.Context, sessionID string) ([]model.RosterEntry, error)
}

func (m *mockReporter) Summarize(ctx context.Context, studentID string, since time.Time) (*attendance.Report, error) {
	if m.summarizeFn != nil {
		return m.summarizeFn(ctx, studentID, since)
	}
	return &attendance.Report{}, nil
}

func (m *mockReporter) Roster(ctx context.Context, sessionID string) ([]model.RosterEntry, error) {
	if m.rosterFn != nil {
		return m.rosterFn(ctx, sessionID)
	}
	return nil, nil
}

type mockFederatedService struct {
	enabled          bool
	loginURLFn       func(state string) string
	federatedLoginFn func(ctx context.Context, code string) (*account.FederatedResult, error)
}

func (m *mockFederatedService) FederatedEnabled() bool {
	return m.enabled
}

func (m *mockFederatedService) FederatedLoginURL(state string) string {
	if m.loginURLFn != nil {
		return m.loginURLFn(state)
	}
	return "https://accounts.google.com/o/oauth2/v2/auth?state=" + state
}

func (m *mockFederatedService) FederatedLogin(ctx context.Context, code string) (*account.FederatedResult, error) {
	if m.federatedLoginFn != nil {
		return m.federatedLoginFn(ctx, code)
	}
	return &account.FederatedResult{}, nil
}

type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) PingContext(ctx context.Context) error {
	return m.err
}

type mockStatusRecorder struct {
	statuses []int
}

func (m *mockStatusRecorder) RecordHTTPStatus(statusCode int) {
	m.statuses = append(m.statuses, statusCode)
}

// --- テストヘルパー ---

var ist = time.FixedZone("IST", 19800)

func testPeriods() *period.Table {
	return period.MustDefault(ist)
}

// postJSON はJSONボディ付きのPOSTリクエストを生成する。
func postJSON(t *testing.T, path string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if s, ok := body.(string); ok {
		buf.WriteString(s)
	} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
		t.Fatalf("failed to encode request body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// decodeBody はレスポンスボディを汎用マップにデコードする。
func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var result map[string]any
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v\nraw: %s", err, w.Body.String())
	}
	return result
}

// assertErrorResponse はステータスコードと統一エラーフォーマットのコードを検証する。
func assertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, wantStatus int, wantCode string) {
	t.Helper()
	if w.Code != wantStatus {
		t.Errorf("status = %d, want %d (body: %s)", w.Code, wantStatus, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["code"] != wantCode {
		t.Errorf("code = %v, want %q", body["code"], wantCode)
	}
}

package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/qrattend/internal/attendance"
	"github.com/hitoshi/qrattend/internal/metrics"
	"github.com/hitoshi/qrattend/internal/middleware"
	"github.com/hitoshi/qrattend/internal/model"
	"github.com/hitoshi/qrattend/internal/period"
)

// newTestDeps はテスト用の依存関係を構築する。
func newTestDeps(t *testing.T) *RouterDeps {
	t.Helper()
	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(rl.Stop)

	return &RouterDeps{
		Logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
		CORSAllowedOrigin: "http://localhost:5173",
		RateLimiter:       rl,
		HealthChecker:     &mockHealthChecker{},
		AccountService:    &mockAccountService{},
		SessionService:    &mockSessionService{},
		Recorder: &mockRecorder{
			markNowFn: func(ctx context.Context, sessionID, studentID string) (*attendance.Mark, error) {
				return &attendance.Mark{
					StudentID: studentID,
					SessionID: sessionID,
					Period:    period.Period{Label: "Period 2", StartMinute: 575, EndMinute: 625},
					Timestamp: time.Date(2025, 1, 1, 9, 40, 0, 0, ist),
				}, nil
			},
		},
		Reporter: &mockReporter{
			summarizeFn: func(ctx context.Context, studentID string, since time.Time) (*attendance.Report, error) {
				return &attendance.Report{
					Username: "Asha",
					Records:  []model.CheckIn{{SessionID: "s1", FacultyID: "f1", PeriodLabel: "Period 1"}},
					Summary:  model.Summary{Present: 1, Absent: 6, Total: 7, Percentage: 14},
				}, nil
			},
		},
		Periods: testPeriods(),
	}
}

func TestNewRouter_Routes(t *testing.T) {
	router := NewRouter(newTestDeps(t))

	tests := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{http.MethodPost, "/check-user", `{"email":"a@example.com"}`, http.StatusOK},
		{http.MethodPost, "/manual-login", `{"email":"a@example.com","password":"x"}`, http.StatusUnauthorized},
		{http.MethodPost, "/verify-otp", `{"otp":"123456"}`, http.StatusNotFound},
		{http.MethodPost, "/mark-attendance", `{"sessionId":"s1","studentId":"u1"}`, http.StatusOK},
		{http.MethodPost, "/get-attendance", `{"id":"u1"}`, http.StatusOK},
		{http.MethodPost, "/get-attendence", `{"id":"u1"}`, http.StatusOK},
		{http.MethodPost, "/admin-attendance-records", `{"session_id":"s1"}`, http.StatusNotFound},
		{http.MethodGet, "/periods", ``, http.StatusOK},
		{http.MethodGet, "/health", ``, http.StatusOK},
		{http.MethodGet, "/unknown", ``, http.StatusNotFound},
		{http.MethodGet, "/mark-attendance", ``, http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (body: %s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestNewRouter_AppliesCommonHeaders(t *testing.T) {
	router := NewRouter(newTestDeps(t))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/periods", nil))

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
}

func TestNewRouter_PreflightReturns204(t *testing.T) {
	router := NewRouter(newTestDeps(t))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/mark-attendance", nil))

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
}

func TestNewRouter_MarkRateLimit(t *testing.T) {
	deps := newTestDeps(t)
	rl := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(120, 2), slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(rl.Stop)
	deps.RateLimiter = rl
	router := NewRouter(deps)

	send := func(path, body string) int {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		req.RemoteAddr = "198.51.100.10:5555"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	// OTP照会と出席登録は同じ制限を共有する
	if got := send("/verify-otp", `{"otp":"123456"}`); got != http.StatusNotFound {
		t.Fatalf("first request status = %d, want %d", got, http.StatusNotFound)
	}
	if got := send("/mark-attendance", `{"sessionId":"s","studentId":"u"}`); got != http.StatusOK {
		t.Fatalf("second request status = %d, want %d", got, http.StatusOK)
	}
	if got := send("/mark-attendance", `{"sessionId":"s","studentId":"u"}`); got != http.StatusTooManyRequests {
		t.Errorf("third request status = %d, want %d", got, http.StatusTooManyRequests)
	}

	// 他のAPIは出席登録の制限を受けない
	if got := send("/check-user", `{"email":"a@example.com"}`); got != http.StatusOK {
		t.Errorf("check-user status = %d, want %d", got, http.StatusOK)
	}
}

func TestNewRouter_FederatedRoutesOnlyWhenEnabled(t *testing.T) {
	t.Run("未設定", func(t *testing.T) {
		router := NewRouter(newTestDeps(t))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/google/login", nil))

		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
		}
	})

	t.Run("無効", func(t *testing.T) {
		deps := newTestDeps(t)
		deps.FederatedService = &mockFederatedService{enabled: false}
		router := NewRouter(deps)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/google/login", nil))

		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
		}
	})

	t.Run("有効", func(t *testing.T) {
		deps := newTestDeps(t)
		deps.FederatedService = &mockFederatedService{enabled: true}
		router := NewRouter(deps)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/google/login", nil))

		if w.Code != http.StatusTemporaryRedirect {
			t.Errorf("status = %d, want %d", w.Code, http.StatusTemporaryRedirect)
		}
	})
}

func TestNewRouter_HealthUnavailable(t *testing.T) {
	deps := newTestDeps(t)
	deps.HealthChecker = &mockHealthChecker{err: errors.New("connection refused")}
	router := NewRouter(deps)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
	body := decodeBody(t, w)
	if body["status"] != "unavailable" {
		t.Errorf("status body = %v", body["status"])
	}
}

func TestNewRouter_MetricsEndpointAndStatusRecording(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	deps := newTestDeps(t)
	deps.Metrics = collector
	deps.Gatherer = reg
	router := NewRouter(deps)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/verify-otp", strings.NewReader(`{"otp":"1"}`)))
	if w.Code != http.StatusNotFound {
		t.Fatalf("verify-otp status = %d, want %d", w.Code, http.StatusNotFound)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("metrics status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), `qrattend_http_status_total{status_code="404"} 1`) {
		t.Errorf("expected 404 status to be recorded, got:\n%s", w.Body.String())
	}
}

func TestNewRouter_StatusRecorderSeesRateLimitedResponses(t *testing.T) {
	deps := newTestDeps(t)
	rl := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(1, 1), slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(rl.Stop)
	deps.RateLimiter = rl
	rec := &mockStatusRecorder{}
	deps.Metrics = rec
	router := NewRouter(deps)

	for i := 0; i < 2; i++ {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/periods", nil))
	}

	if len(rec.statuses) != 2 || rec.statuses[0] != http.StatusOK || rec.statuses[1] != http.StatusTooManyRequests {
		t.Errorf("statuses = %v, want [200 429]", rec.statuses)
	}
}

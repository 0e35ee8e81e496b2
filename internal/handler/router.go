package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/qrattend/internal/metrics"
	"github.com/hitoshi/qrattend/internal/middleware"
	"github.com/hitoshi/qrattend/internal/period"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Metrics           middleware.StatusRecorder
	Gatherer          prometheus.Gatherer
	HealthChecker     HealthChecker

	// アカウント
	AccountService AccountServiceInterface

	// フェデレーテッドサインイン（未設定ならnil）
	FederatedService FederatedServiceInterface
	AuthConfig       AuthHandlerConfig

	// 出席セッション
	SessionService SessionServiceInterface

	// 出席
	Recorder AttendanceRecorderInterface
	Reporter AttendanceReporterInterface
	Periods  *period.Table
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → Recovery → Logging → Metrics → SecurityHeaders → CORS → RateLimit(General)
//
// /health と /metrics はレート制限の外に配置する。
// 出席登録とOTP照会には出席登録専用のレート制限を追加で適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	if deps.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	accountHandler := NewAccountHandler(deps.AccountService)
	sessionHandler := NewSessionHandler(deps.SessionService)
	attendanceHandler := NewAttendanceHandler(deps.Recorder, deps.Reporter, deps.Periods)

	// --- 運用エンドポイント ---
	if deps.HealthChecker != nil {
		r.Get("/health", NewHealthHandler(deps.HealthChecker))
	}
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	// --- API ---
	r.Group(func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.GeneralMiddleware())
		}

		// アカウント
		r.Post("/check-user", accountHandler.CheckUser)
		r.Post("/manual-login", accountHandler.ManualLogin)
		r.Post("/signup", accountHandler.Signup)

		// フェデレーテッドサインイン（設定されている場合のみ）
		if deps.FederatedService != nil && deps.FederatedService.FederatedEnabled() {
			authHandler := NewAuthHandler(deps.FederatedService, deps.AuthConfig)
			r.Route("/auth/google", func(r chi.Router) {
				r.Get("/login", authHandler.Login)
				r.Get("/callback", authHandler.Callback)
			})
		}

		// 出席セッション
		r.Post("/create-session", sessionHandler.CreateSession)

		// 出席登録とOTP照会（専用レート制限を追加）
		r.Group(func(r chi.Router) {
			if deps.RateLimiter != nil {
				r.Use(deps.RateLimiter.MarkMiddleware())
			}
			r.Post("/verify-otp", sessionHandler.VerifyOTP)
			r.Post("/mark-attendance", attendanceHandler.MarkAttendance)
		})

		// 出席履歴（/get-attendence は旧クライアント向けの別名）
		r.Post("/get-attendance", attendanceHandler.GetAttendance)
		r.Post("/get-attendence", attendanceHandler.GetAttendance)
		r.Post("/admin-attendance-records", attendanceHandler.AdminAttendanceRecords)

		r.Get("/periods", NewPeriodsHandler(deps.Periods))
	})

	return r
}

package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/qrattend/internal/account"
	"github.com/hitoshi/qrattend/internal/attendance"
	"github.com/hitoshi/qrattend/internal/auth"
	"github.com/hitoshi/qrattend/internal/config"
	"github.com/hitoshi/qrattend/internal/database"
	"github.com/hitoshi/qrattend/internal/handler"
	"github.com/hitoshi/qrattend/internal/logger"
	"github.com/hitoshi/qrattend/internal/metrics"
	"github.com/hitoshi/qrattend/internal/middleware"
	"github.com/hitoshi/qrattend/internal/period"
	"github.com/hitoshi/qrattend/internal/qr"
	"github.com/hitoshi/qrattend/internal/repository"
	"github.com/hitoshi/qrattend/internal/security"
	"github.com/hitoshi/qrattend/internal/session"
)

const (
	connectTimeout  = 10 * time.Second
	shutdownTimeout = 30 * time.Second
)

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップしてから環境変数のConfigを読み込み、
// LOG_LEVELに合わせてログを再設定する。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.String("timezone", cfg.Location.String()),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	// 1. DB接続
	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	pool := database.DefaultPoolConfig()
	pool.MaxOpenConns = cfg.DBMaxOpenConns
	db, err := database.Connect(connectCtx, cfg.DatabaseURL, pool)
	cancel()
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	// 2. 依存関係の構築
	registry := prometheus.NewRegistry()
	router, cleanup, err := buildRouter(cfg, db, registry)
	if err != nil {
		return err
	}
	defer cleanup()

	// 3. HTTPサーバーの起動
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// buildRouter はリポジトリからハンドラーまでを組み立て、HTTPハンドラーを返す。
// 返されるcleanupはレートリミッターのバックグラウンド処理を停止する。
func buildRouter(cfg *config.Config, db *sql.DB, registry *prometheus.Registry) (http.Handler, func(), error) {
	log := slog.Default()

	// 1. 時限表
	periods, err := period.NewTable(period.DefaultPeriods(), cfg.Location)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid period table: %w", err)
	}

	// 2. メトリクス
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 3. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	attendanceRepo := repository.NewPostgresAttendanceRepo(db)

	// 4. ドメインサービスの初期化
	sessions := session.NewRegistry(
		sessionRepo, qr.NewPNGEncoder(cfg.QRImageSize), cfg.SessionValidity, log, collector,
	)
	recorder := attendance.NewRecorder(attendanceRepo, sessions, periods, log, collector)
	aggregator := attendance.NewAggregator(attendanceRepo, userRepo, sessions, periods)

	var oauthProvider auth.OAuthProvider
	if cfg.GoogleOAuthEnabled() {
		oauthProvider = auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
		})
	}
	accounts := account.NewService(userRepo, security.NewNameSanitizer(), oauthProvider, cfg.BcryptCost, log)

	// 5. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitMark), log,
	)

	deps := &handler.RouterDeps{
		Logger:            log,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Metrics:           collector,
		Gatherer:          registry,
		HealthChecker:     db,

		AccountService:   accounts,
		FederatedService: accounts,
		AuthConfig: handler.AuthHandlerConfig{
			CookieSecure: strings.HasPrefix(cfg.BaseURL, "https://"),
		},

		SessionService: sessions,

		Recorder: recorder,
		Reporter: aggregator,
		Periods:  periods,
	}

	slog.Info("router configured",
		slog.Duration("session_validity", cfg.SessionValidity),
		slog.Bool("federated_sign_in", cfg.GoogleOAuthEnabled()),
		slog.Int("periods", periods.Len()),
	)

	return handler.NewRouter(deps), rateLimiter.Stop, nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, err := database.SchemaVersion(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
// 解析できないURLは全体を伏せる。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}

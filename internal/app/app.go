package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/hitoshi/demodash/internal/auth"
	"github.com/hitoshi/demodash/internal/backend"
	"github.com/hitoshi/demodash/internal/backend/supabase"
	"github.com/hitoshi/demodash/internal/config"
	"github.com/hitoshi/demodash/internal/database"
	"github.com/hitoshi/demodash/internal/handler"
	"github.com/hitoshi/demodash/internal/logger"
	"github.com/hitoshi/demodash/internal/metrics"
	"github.com/hitoshi/demodash/internal/middleware"
	"github.com/hitoshi/demodash/internal/repository"
	"github.com/hitoshi/demodash/internal/telemetry"
	"github.com/hitoshi/demodash/internal/tui"
	"github.com/hitoshi/demodash/internal/worker/cleanup"
)

// Version はビルド時に -ldflags "-X .../internal/app.Version=..." で埋め込む。
var Version = "dev"

// errHostedBackend はセルフホスト専用コマンドがホスト型構成で呼ばれた場合のエラー。
var errHostedBackend = errors.New("command requires a self-hosted backend (BACKEND=postgres or BACKEND=sqlite)")

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再セットアップ
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger.SetupDefault(w, level)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。SIGINTまたはSIGTERMで各モードを停止する。
func Run(w io.Writer, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return run(ctx, w, args)
}

func run(ctx context.Context, w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(ctx, fmt.Sprintf("http://localhost:%s/health", port))
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	// TUIは画面を占有するため、ここではログを出さない
	if cmd != CommandTUI {
		slog.Info("starting application",
			slog.String("command", string(cmd)),
			slog.String("version", Version),
			slog.String("backend", cfg.Backend),
		)
	}

	switch cmd {
	case CommandTUI:
		return runTUI(ctx, cfg)
	case CommandWorker:
		return runWorker(ctx, cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandSeed:
		return runSeed(ctx, cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// stack は構成済みのバックエンドと、セルフホスト構成でのみ使う依存をまとめる。
type stack struct {
	client backend.Client
	health handler.HealthChecker

	// セルフホスト構成のみ
	db       *database.DB
	auth     *auth.Service
	users    repository.UserRepository
	sessions repository.SessionRepository
	rows     repository.RowRepository
}

// Close はDB接続を閉じる。ホスト型構成では何もしない。
func (s *stack) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// openBackend は設定に応じてバックエンドを構成する。
// ホスト型ではHTTPクライアントを、セルフホスト型ではDB接続とリポジトリを組み立てる。
func openBackend(ctx context.Context, cfg *config.Config) (*stack, error) {
	if !cfg.SelfHosted() {
		client, err := supabase.New(supabase.Config{
			URL:       cfg.SupabaseURL,
			AnonKey:   cfg.SupabaseAnonKey,
			JWTSecret: cfg.SupabaseJWTSecret,
			HTTPClient: &http.Client{
				Timeout:   cfg.BackendTimeout,
				Transport: otelhttp.NewTransport(http.DefaultTransport),
			},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create backend client: %w", err)
		}
		slog.Info("using hosted backend", slog.String("url", cfg.SupabaseURL))
		return &stack{client: client.Backend(), health: client}, nil
	}

	db, err := openDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	users := repository.NewSQLUserRepo(db)
	sessions := repository.NewSQLSessionRepo(db)
	rows := repository.NewSQLRowRepo(db)
	svc := auth.NewService(users, sessions, auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge})

	return &stack{
		client:   auth.Backend(svc, rows),
		health:   db,
		db:       db,
		auth:     svc,
		users:    users,
		sessions: sessions,
		rows:     rows,
	}, nil
}

// openDB はセルフホスト構成のDB接続を開き、疎通を確認する。
func openDB(ctx context.Context, cfg *config.Config) (*database.DB, error) {
	db, err := database.Open(database.Driver(cfg.Backend), cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := database.WaitReady(ctx, db, 0); err != nil {
		db.Close()
		return nil, err
	}

	slog.Info("database connection established",
		slog.String("driver", cfg.Backend),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)
	return db, nil
}

// runServe はWebサーバーモードで起動する。
// バックエンドを構成し、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	// 1. トレーシング
	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Endpoint:    cfg.OTelEndpoint,
		ServiceName: cfg.OTelServiceName,
		Version:     Version,
	})
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			slog.Warn("failed to flush traces", slog.String("error", err.Error()))
		}
	}()

	// 2. バックエンド
	st, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	// 3. メトリクス
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	// 4. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig(cfg.RateLimitLogin))
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Backend:           st.client,
		HealthChecker:     st.health,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		CSRF: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		Gatherer: reg,
		Config: handler.Config{
			Cookies: handler.CookieConfig{
				Domain:        cfg.CookieDomain,
				Secure:        cfg.CookieSecure,
				SessionMaxAge: cfg.SessionMaxAge,
			},
			BackendTimeout: cfg.BackendTimeout,
			Metrics:        collector,
			Logger:         slog.Default(),
		},
	})

	// 5. セルフホスト構成では同一プロセスで期限切れセッションを掃除する
	if st.sessions != nil {
		job := cleanup.NewCleanupJob(st.sessions, slog.Default(), collector)
		go job.Start(ctx, cfg.CleanupInterval)
	}

	// 6. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	listenErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
		}
		close(listenErr)
	}()

	select {
	case err := <-listenErr:
		if err != nil {
			return fmt.Errorf("server listen failed: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	<-listenErr

	slog.Info("HTTP server stopped gracefully")
	return nil
}

// runTUI はターミナルUIで起動する。
// 画面を乱さないよう、ログはTUI_LOG_FILE（未設定なら破棄）へ出力する。
func runTUI(ctx context.Context, cfg *config.Config) error {
	out, err := logger.OpenFile(cfg.TUILogFile)
	if err != nil {
		return err
	}
	defer out.Close()

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	log := logger.Setup(out, level)
	slog.SetDefault(log)

	st, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	return tui.Run(ctx, st.client,
		tui.WithLogger(log),
		tui.WithTimeout(cfg.BackendTimeout),
	)
}

// runWorker はワーカーモードで起動する。
// 期限切れセッションの削除をCLEANUP_INTERVALごとに実行する。
// ctxがキャンセルされるまでブロックする。
func runWorker(ctx context.Context, cfg *config.Config) error {
	if !cfg.SelfHosted() {
		return fmt.Errorf("worker: %w", errHostedBackend)
	}

	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	job := cleanup.NewCleanupJob(repository.NewSQLSessionRepo(db), slog.Default(), nil)
	job.Start(ctx, cfg.CleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if !cfg.SelfHosted() {
		return fmt.Errorf("migrate: %w", errHostedBackend)
	}

	slog.Info("running database migrations",
		slog.String("driver", cfg.Backend),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(database.Driver(cfg.Backend), cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// seedRows はdemo_dataが空の場合に投入するサンプル行。nilはNULLとして保存される。
var seedRows = []*string{
	ptr("Hello from demo_data"),
	nil,
	ptr("Latest sample row"),
}

func ptr(s string) *string { return &s }

// runSeed はセルフホスト構成にデモユーザーとサンプル行を投入する。
// 何度実行しても既存のユーザーと行は重複しない。
func runSeed(ctx context.Context, cfg *config.Config) error {
	if !cfg.SelfHosted() {
		return fmt.Errorf("seed: %w", errHostedBackend)
	}

	st, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if cfg.SeedPassword == "" {
		slog.Warn("SEED_PASSWORD is not set, skipping demo user")
	} else {
		existing, err := st.users.FindByEmail(ctx, cfg.SeedEmail)
		if err != nil {
			return fmt.Errorf("failed to look up seed user: %w", err)
		}
		if existing == nil {
			if _, err := st.auth.Register(ctx, cfg.SeedEmail, cfg.SeedPassword); err != nil {
				return fmt.Errorf("failed to register seed user: %w", err)
			}
		} else {
			slog.Info("seed user already exists", slog.String("email", cfg.SeedEmail))
		}
	}

	rows, err := st.rows.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list rows: %w", err)
	}
	if len(rows) > 0 {
		slog.Info("demo_data already populated", slog.Int("rows", len(rows)))
		return nil
	}

	for _, data := range seedRows {
		if _, err := st.rows.Insert(ctx, data); err != nil {
			return fmt.Errorf("failed to insert seed row: %w", err)
		}
	}

	slog.Info("seed completed", slog.Int("rows", len(seedRows)))
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(ctx context.Context, target string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
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
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return "***"
	}
	return u.Redacted()
}

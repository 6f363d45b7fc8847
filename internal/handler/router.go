package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/hitoshi/demodash/internal/backend"
	"github.com/hitoshi/demodash/internal/metrics"
	"github.com/hitoshi/demodash/internal/middleware"
	"github.com/hitoshi/demodash/internal/web"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// バックエンド
	Backend       backend.Client
	HealthChecker HealthChecker

	// ミドルウェア依存
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRF              middleware.CSRFConfig

	// 監視
	Gatherer prometheus.Gatherer

	Config Config
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したhttp.Handlerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	otelhttp → Recovery → SecurityHeaders → Logging → CSRF
//
// /api/* にはさらに CORS → Session → RateLimit(General) を適用する。
// /health と /metrics はCSRFの外に置く。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()
	config := deps.Config.withDefaults()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(config.Logger, config.Metrics.RecordHTTPStatus))

	pageHandler := NewPageHandler(deps.Backend, config)
	authHandler := NewAuthHandler(deps.Backend, config)
	apiHandler := NewAPIHandler(deps.Backend, config)

	// --- 監視用のルート ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}
	r.Method(http.MethodGet, "/static/*", web.StaticHandler())

	// --- 画面 ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCSRFMiddleware(deps.CSRF))

		r.Get("/", pageHandler.Index)
		r.Get("/dashboard/rows", pageHandler.Rows)
		r.Post("/dashboard/refresh", pageHandler.Refresh)

		r.Route("/auth", func(r chi.Router) {
			r.With(deps.RateLimiter.LoginMiddleware()).Post("/login", authHandler.Login)
			r.Post("/logout", authHandler.Logout)
		})
	})

	// --- JSON API ---
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
		r.Get("/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRF).ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(middleware.NewSessionMiddleware(deps.Backend.Auth))
			r.Use(deps.RateLimiter.GeneralMiddleware())

			r.Get("/session", apiHandler.Session)
			r.Get("/rows", apiHandler.Rows)
		})
	})

	return otelhttp.NewHandler(r, "demodash.http",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/demodash/internal/backend"
	"github.com/hitoshi/demodash/internal/dashboard"
	"github.com/hitoshi/demodash/internal/gate"
	"github.com/hitoshi/demodash/internal/metrics"
	"github.com/hitoshi/demodash/internal/middleware"
	"github.com/hitoshi/demodash/internal/security"
	"github.com/hitoshi/demodash/internal/web"
)

// Config はハンドラー共通の設定。
type Config struct {
	Cookies        CookieConfig
	BackendTimeout time.Duration
	Metrics        metrics.MetricsCollector
	Logger         *slog.Logger
	Now            func() time.Time
}

func (c Config) withDefaults() Config {
	if c.Metrics == nil {
		c.Metrics = metrics.Nop{}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// PageHandler はSession Gateとダッシュボードの画面を返すハンドラー。
type PageHandler struct {
	client    backend.Client
	config    Config
	sanitizer *security.TextSanitizer
}

// NewPageHandler はPageHandlerを生成する。
func NewPageHandler(client backend.Client, config Config) *PageHandler {
	return &PageHandler{
		client:    client,
		config:    config.withDefaults(),
		sanitizer: security.NewTextSanitizer(),
	}
}

// Index はSession Gateの画面を返す。
// セッションがあればダッシュボード、なければログインフォームを描画する。
// GET /
func (h *PageHandler) Index(w http.ResponseWriter, r *http.Request) {
	f := h.config.Cookies.popFlash(w, r)
	csrfToken := middleware.CSRFTokenFromContext(r.Context())

	ctx, cancel := withTimeout(r.Context(), h.config.BackendTimeout)
	defer cancel()

	token := middleware.TokenFromRequest(r)
	variant, session := gate.Resolve(ctx, h.client.Auth, token)
	if session != nil {
		r = r.WithContext(middleware.ContextWithSession(r.Context(), session))
	} else if token != "" {
		// 無効になったセッションCookieは破棄する
		h.config.Cookies.clearSession(w)
	}

	page := web.Page{CSRFToken: csrfToken, Notices: sanitizeNotices(h.sanitizer, f.Notices)}
	web.Render(w, r, http.StatusOK, web.Layout(page, web.GateView(variant, session, csrfToken, f.Email)))
}

// Rows はマウント時の取得を行い、テーブル領域のフラグメントを返す。
// GET /dashboard/rows
func (h *PageHandler) Rows(w http.ResponseWriter, r *http.Request) {
	h.renderPanel(w, r, false)
}

// Refresh は再取得を行い、テーブル領域のフラグメントを返す。
// POST /dashboard/refresh
func (h *PageHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	h.renderPanel(w, r, true)
}

// renderPanel はリクエストごとにDashboard Viewを生成して取得し、結果を描画する。
// 取得失敗もフラグメントとして200で返し、通知はトーストとして差し込む。
func (h *PageHandler) renderPanel(w http.ResponseWriter, r *http.Request, refresh bool) {
	ctx, cancel := withTimeout(r.Context(), h.config.BackendTimeout)
	defer cancel()

	token := middleware.TokenFromRequest(r)
	variant, session := gate.Resolve(ctx, h.client.Auth, token)
	if variant != gate.VariantDashboard {
		web.Redirect(w, r, "/")
		return
	}
	r = r.WithContext(middleware.ContextWithSession(r.Context(), session))

	inbox := &dashboard.Inbox{}
	view := newView(h.client, token, h.config, inbox)
	defer view.Unmount()

	if refresh {
		view.Refresh(ctx)
	} else {
		view.Mount(ctx)
	}

	web.Render(w, r, http.StatusOK, web.PanelFragment(view.Snapshot(), sanitizeNotices(h.sanitizer, inbox.Drain())))
}

// newView はリクエスト単位のDashboard Viewを生成する。
func newView(client backend.Client, token string, config Config, notifier dashboard.Notifier) *dashboard.View {
	return dashboard.New(client, token,
		dashboard.WithNotifier(notifier),
		dashboard.WithLogger(config.Logger),
		dashboard.WithMetrics(config.Metrics),
	)
}

// sanitizeNotices はプロバイダー由来のメッセージからマークアップを除去する。
func sanitizeNotices(s *security.TextSanitizer, notices []dashboard.Notification) []dashboard.Notification {
	if len(notices) == 0 {
		return nil
	}
	out := make([]dashboard.Notification, 0, len(notices))
	for _, n := range notices {
		n.Title = s.Line(n.Title)
		n.Message = s.Line(n.Message)
		out = append(out, n)
	}
	return out
}

package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/demodash/internal/backend"
	"github.com/hitoshi/demodash/internal/dashboard"
	"github.com/hitoshi/demodash/internal/metrics"
	"github.com/hitoshi/demodash/internal/middleware"
	"github.com/hitoshi/demodash/internal/model"
	"github.com/hitoshi/demodash/internal/web"
)

// MessageCredentialsRequired は入力不足のときに表示するメッセージ。
const MessageCredentialsRequired = "Email and password are required"

// AuthHandler はサインイン・サインアウトのHTTPハンドラー。
type AuthHandler struct {
	client backend.Client
	config Config
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(client backend.Client, config Config) *AuthHandler {
	return &AuthHandler{
		client: client,
		config: config.withDefaults(),
	}
}

// Login はフォームの資格情報でサインインし、セッションCookieを設定する。
// 失敗時はフラッシュにプロバイダーのメッセージを残してGateに戻す。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.PostFormValue("email"))
	password := r.PostFormValue("password")

	if email == "" || password == "" {
		h.config.Metrics.RecordSignIn(metrics.ResultInvalid)
		h.config.Cookies.setFlash(w, flash{
			Notices: []dashboard.Notification{loginError(MessageCredentialsRequired)},
			Email:   email,
		})
		web.Redirect(w, r, "/")
		return
	}

	ctx, cancel := withTimeout(r.Context(), h.config.BackendTimeout)
	defer cancel()

	session, err := h.client.Auth.SignInWithPassword(ctx, email, password)
	if err != nil {
		var notice dashboard.Notification
		if be, ok := backend.AsError(err); ok {
			h.config.Logger.Warn("sign-in rejected",
				slog.String("code", be.Code),
				slog.String("error", be.Message),
			)
			h.config.Metrics.RecordSignIn(metrics.ResultInvalid)
			notice = loginError(be.Message)
		} else {
			h.config.Logger.Error("unexpected error signing in", slog.String("error", err.Error()))
			h.config.Metrics.RecordSignIn(metrics.ResultUnexpected)
			notice = loginError(dashboard.MessageUnexpectedError)
		}
		h.config.Cookies.setFlash(w, flash{Notices: []dashboard.Notification{notice}, Email: email})
		web.Redirect(w, r, "/")
		return
	}

	h.config.Metrics.RecordSignIn(metrics.ResultSuccess)
	h.config.Logger.Info("signed in", slog.String("user_id", session.UserID))
	r = r.WithContext(middleware.ContextWithSession(r.Context(), session))

	h.config.Cookies.setSession(w, session.ID, session.ExpiresAt, h.config.Now())
	web.Redirect(w, r, "/")
}

// Logout はセッションの破棄をプロバイダーに依頼する。
// 成功時のみセッションCookieを削除する。失敗時はセッションを保ったまま通知だけを残す。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context(), h.config.BackendTimeout)
	defer cancel()

	token := middleware.TokenFromRequest(r)
	inbox := &dashboard.Inbox{}
	view := newView(h.client, token, h.config, inbox)
	defer view.Unmount()

	if err := view.SignOut(ctx); err == nil {
		h.config.Cookies.clearSession(w)
	}

	h.config.Cookies.setFlash(w, flash{Notices: inbox.Drain()})
	web.Redirect(w, r, "/")
}

func loginError(message string) dashboard.Notification {
	if message == "" {
		message = model.NewInvalidCredentialsError("").Message
	}
	return dashboard.Notification{Kind: dashboard.KindError, Title: dashboard.TitleError, Message: message}
}

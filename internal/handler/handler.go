// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/demodash/internal/middleware"
)

// CookieConfig はセッションCookieとフラッシュCookieの属性。
type CookieConfig struct {
	Domain        string
	Secure        bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

func (c CookieConfig) setSession(w http.ResponseWriter, token string, expiresAt time.Time, now time.Time) {
	maxAge := c.SessionMaxAge
	if !expiresAt.IsZero() {
		if remaining := int(expiresAt.Sub(now).Seconds()); remaining > 0 && (maxAge <= 0 || remaining < maxAge) {
			maxAge = remaining
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		Domain:   c.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c CookieConfig) clearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   c.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// withTimeout はバックエンド呼び出し用にタイムアウト付きのコンテキストを返す。
// timeoutが0以下の場合はキャンセルのみ可能なコンテキストを返す。
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

package handler

import (
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/demodash/internal/dashboard"
)

const (
	flashCookieName = "demodash_flash"
	flashMaxAge     = 60
)

// flash はリダイレクト先の画面に一度だけ表示する通知。
type flash struct {
	Notices []dashboard.Notification `json:"notices,omitempty"`
	Email   string                   `json:"email,omitempty"`
}

// setFlash はフラッシュをCookieに保存する。
func (c CookieConfig) setFlash(w http.ResponseWriter, f flash) {
	b, err := json.Marshal(f)
	if err != nil {
		slog.Error("failed to encode flash", slog.String("error", err.Error()))
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    base64.RawURLEncoding.EncodeToString(b),
		Path:     "/",
		Domain:   c.Domain,
		MaxAge:   flashMaxAge,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlash はフラッシュを読み出してCookieを削除する。
// 存在しないか壊れている場合はゼロ値を返す。
func (c CookieConfig) popFlash(w http.ResponseWriter, r *http.Request) flash {
	cookie, err := r.Cookie(flashCookieName)
	if err != nil || cookie.Value == "" {
		return flash{}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    "",
		Path:     "/",
		Domain:   c.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	b, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return flash{}
	}
	var f flash
	if err := json.Unmarshal(b, &f); err != nil {
		return flash{}
	}
	return f
}

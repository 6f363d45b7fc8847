package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
)

// unexpectedErrorText は画面向けの500レスポンス本文。
const unexpectedErrorText = "An unexpected error occurred"

// NewRecoveryMiddleware はpanic発生時にプロセスクラッシュを防ぎ、500レスポンスを返すミドルウェアを生成する。
// /api/ 配下とJSONを要求するリクエストには統一フォーマット、画面にはプレーンテキストを返す。
func NewRecoveryMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				slog.Error("panic recovered",
					slog.Any("panic", rec),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("stack", string(debug.Stack())),
				)
				if wantsJSON(r) {
					WriteInternalServerError(w)
					return
				}
				http.Error(w, unexpectedErrorText, http.StatusInternalServerError)
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func wantsJSON(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/") ||
		strings.Contains(r.Header.Get("Accept"), "application/json")
}

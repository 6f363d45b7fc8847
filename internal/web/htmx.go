package web

import (
	"net/http"
	"strings"

	"github.com/a-h/templ"
)

// HXRequestHeader はhtmxが付与するリクエストヘッダー。
const HXRequestHeader = "HX-Request"

// IsHTMXRequest はリクエストがhtmxから送信されたかどうかを返す。
func IsHTMXRequest(r *http.Request) bool {
	if r == nil {
		return false
	}
	return strings.EqualFold(r.Header.Get(HXRequestHeader), "true")
}

// Render はコンポーネントを指定ステータスでレスポンスに書き出す。
func Render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	templ.Handler(c, templ.WithStatus(status)).ServeHTTP(w, r)
}

// Redirect はhtmxリクエストにはHX-Redirect、それ以外には303を返す。
func Redirect(w http.ResponseWriter, r *http.Request, location string) {
	if IsHTMXRequest(r) {
		w.Header().Set("HX-Redirect", location)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}

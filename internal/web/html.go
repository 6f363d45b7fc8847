// Package web はダッシュボードのHTMLコンポーネント（templ）と静的アセットを提供する。
package web

import (
	"context"
	"io"
	"strconv"

	"github.com/a-h/templ"
)

// htmlWriter は最初のエラーを保持しながらHTMLを書き出す。
type htmlWriter struct {
	w   io.Writer
	err error
}

func (h *htmlWriter) raw(s string) {
	if h.err != nil {
		return
	}
	_, h.err = io.WriteString(h.w, s)
}

func (h *htmlWriter) text(s string) {
	h.raw(templ.EscapeString(s))
}

// attr は name="value" 形式の属性を書き出す。値はエスケープされる。
func (h *htmlWriter) attr(name, value string) {
	h.raw(" " + name + `="` + templ.EscapeString(value) + `"`)
}

func (h *htmlWriter) int64(n int64) {
	h.raw(strconv.FormatInt(n, 10))
}

func (h *htmlWriter) render(ctx context.Context, c templ.Component) {
	if h.err != nil || c == nil {
		return
	}
	h.err = c.Render(ctx, h.w)
}

// component は書き出し関数をtempl.Componentに変換する。
func component(fn func(ctx context.Context, h *htmlWriter)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		fn(ctx, h)
		return h.err
	})
}

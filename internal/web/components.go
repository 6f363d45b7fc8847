package web

import (
	"context"

	"github.com/a-h/templ"

	"github.com/hitoshi/demodash/internal/dashboard"
	"github.com/hitoshi/demodash/internal/gate"
	"github.com/hitoshi/demodash/internal/model"
)

// 画面に表示する定型文。
const (
	AppTitle        = "Demo Dashboard"
	LoadingText     = "Loading..."
	EmptyTitle      = "No data found in the " + model.DemoTable + " table"
	EmptyHint       = "Add some data to see it here!"
	NoDataText      = "No data"
	DashboardTitle  = "Dashboard"
	CardTitle       = "Demo Data Table"
	CardDescription = "Data from the " + model.DemoTable + " table in your Supabase database"
)

// htmxScript はhtmxの配布元。CSPのscript-srcと揃える。
const htmxScript = "https://unpkg.com/htmx.org@2.0.4"

// PanelID はテーブル領域の要素ID。htmxの差し替え先になる。
const PanelID = "data-panel"

// Page はページ全体に共通する値。
type Page struct {
	CSRFToken string
	Notices   []dashboard.Notification
}

// Layout はHTMLドキュメントの外枠を描画する。
func Layout(page Page, body templ.Component) templ.Component {
	return component(func(ctx context.Context, h *htmlWriter) {
		h.raw("<!DOCTYPE html>\n<html lang=\"en\"><head><meta charset=\"utf-8\">")
		h.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		h.raw(`<meta name="csrf-token"`)
		h.attr("content", page.CSRFToken)
		h.raw(">")
		h.raw("<title>")
		h.text(AppTitle)
		h.raw("</title>")
		h.raw(`<link rel="stylesheet" href="/static/app.css">`)
		h.raw(`<script src="` + htmxScript + `" defer></script>`)
		h.raw(`<script src="/static/app.js" defer></script>`)
		h.raw("</head><body>")
		h.render(ctx, body)
		h.raw(`<div id="toasts">`)
		for _, n := range page.Notices {
			h.render(ctx, toastItem(n))
		}
		h.raw("</div></body></html>")
	})
}

// GateView はGateのバリアントに対応する画面を返す。
func GateView(v gate.Variant, session *model.Session, csrfToken, email string) templ.Component {
	switch v {
	case gate.VariantDashboard:
		return DashboardPage(session, csrfToken)
	case gate.VariantLogin:
		return LoginForm(csrfToken, email)
	default:
		return LoadingScreen()
	}
}

// LoadingScreen はセッション解決中の画面を描画する。
func LoadingScreen() templ.Component {
	return component(func(ctx context.Context, h *htmlWriter) {
		h.raw(`<div class="center"><div class="loading" role="status"><div class="spinner"></div><p class="muted">`)
		h.text(LoadingText)
		h.raw("</p></div></div>")
	})
}

// LoginForm はログインフォームを描画する。
// 失敗時は前回入力したEmailを埋めて再表示する。
func LoginForm(csrfToken, email string) templ.Component {
	return component(func(ctx context.Context, h *htmlWriter) {
		h.raw(`<div class="center"><form class="card login" method="post" action="/auth/login">`)
		h.raw("<h1>Sign in</h1>")
		h.raw(`<p class="muted">Enter your credentials to access the dashboard</p>`)
		h.raw(`<input type="hidden" name="csrf_token"`)
		h.attr("value", csrfToken)
		h.raw(">")
		h.raw(`<label class="field"><span>Email</span><input type="email" name="email" autocomplete="email" required`)
		h.attr("value", email)
		h.raw("></label>")
		h.raw(`<label class="field"><span>Password</span><input type="password" name="password" autocomplete="current-password" required></label>`)
		h.raw(`<button class="btn btn-primary" type="submit">Sign In</button>`)
		h.raw("</form></div>")
	})
}

// DashboardPage はダッシュボードの外枠を描画する。
// テーブル領域は読み込み中の状態で描画し、htmxのloadトリガーで取得する。
func DashboardPage(session *model.Session, csrfToken string) templ.Component {
	return component(func(ctx context.Context, h *htmlWriter) {
		h.raw(`<div class="page"><header class="page-header"><div><h1>`)
		h.text(DashboardTitle)
		h.raw(`</h1><p class="muted">Welcome back, `)
		if session != nil {
			h.text(session.Email)
		}
		h.raw("</p></div>")
		h.raw(`<form method="post" action="/auth/logout">`)
		h.raw(`<input type="hidden" name="csrf_token"`)
		h.attr("value", csrfToken)
		h.raw(`><button class="btn" type="submit">Logout</button></form></header>`)

		h.raw(`<section class="card"><div class="card-header"><div><h2>`)
		h.text(CardTitle)
		h.raw(`</h2><p class="muted">`)
		h.text(CardDescription)
		h.raw("</p></div>")
		h.render(ctx, RefreshButton(false))
		h.raw(`</div><div class="card-body"><div`)
		h.attr("id", PanelID)
		h.raw(` hx-get="/dashboard/rows" hx-trigger="load" hx-swap="innerHTML"`)
		h.attr("hx-sync", panelSync)
		h.raw(">")
		h.render(ctx, DataPanel(dashboard.State{Loading: true}))
		h.raw("</div></div></section></div>")
	})
}

// panelSync は初回読み込みと再取得を同じキューに載せ、新しい要求が古い要求を置き換える。
const panelSync = "#" + PanelID + ":replace"

// RefreshButton は再取得ボタンを描画する。
// 再取得中は無効化し、アイコンを回転させる。
func RefreshButton(refreshing bool) templ.Component {
	return component(func(ctx context.Context, h *htmlWriter) {
		h.raw(`<button id="refresh" class="btn" type="button" hx-post="/dashboard/refresh"`)
		h.attr("hx-target", "#"+PanelID)
		h.attr("hx-sync", panelSync)
		h.raw(` hx-swap="innerHTML" hx-indicator="#refresh" hx-disabled-elt="this"`)
		if refreshing {
			h.raw(" disabled")
		}
		h.raw(`><span class="refresh-icon`)
		if refreshing {
			h.raw(" spinning")
		}
		h.raw(`" aria-hidden="true">&#x21bb;</span> Refresh</button>`)
	})
}

// DataPanel はテーブル領域を状態に応じて描画する。
// loadingではスピナーのみ、emptyでは案内文、populatedではテーブルを表示する。
func DataPanel(state dashboard.State) templ.Component {
	return component(func(ctx context.Context, h *htmlWriter) {
		switch state.Variant() {
		case dashboard.VariantLoading:
			h.raw(`<div class="loading" role="status"><div class="spinner small"></div></div>`)
		case dashboard.VariantEmpty:
			h.raw(`<div class="empty"><div class="icon" aria-hidden="true">&#x1F5C4;</div><p>`)
			h.text(EmptyTitle)
			h.raw(`</p><p class="muted">`)
			h.text(EmptyHint)
			h.raw("</p></div>")
		default:
			h.raw(`<table><thead><tr><th class="id">ID</th><th>Data</th></tr></thead><tbody>`)
			for _, row := range state.Rows {
				h.raw(`<tr><td class="id">`)
				h.int64(row.ID)
				h.raw("</td><td>")
				if row.HasData() {
					h.text(row.Text())
				} else {
					h.raw(`<span class="no-data">`)
					h.text(NoDataText)
					h.raw("</span>")
				}
				h.raw("</td></tr>")
			}
			h.raw("</tbody></table>")
		}
	})
}

// Toasts は通知をトースト領域へout-of-bandで追加するフラグメントを描画する。
func Toasts(notices []dashboard.Notification) templ.Component {
	return component(func(ctx context.Context, h *htmlWriter) {
		if len(notices) == 0 {
			return
		}
		h.raw(`<div id="toasts" hx-swap-oob="beforeend">`)
		for _, n := range notices {
			h.render(ctx, toastItem(n))
		}
		h.raw("</div>")
	})
}

func toastItem(n dashboard.Notification) templ.Component {
	return component(func(ctx context.Context, h *htmlWriter) {
		role := "status"
		if n.Kind == dashboard.KindError {
			role = "alert"
		}
		h.raw("<div")
		h.attr("class", "toast "+string(n.Kind))
		h.attr("role", role)
		h.raw("><div><strong>")
		h.text(n.Title)
		h.raw("</strong><span>")
		h.text(n.Message)
		h.raw(`</span></div><button class="toast-close" type="button" aria-label="Dismiss">&times;</button></div>`)
	})
}

// PanelFragment はhtmxの差し替え用にテーブル領域と通知をまとめて描画する。
func PanelFragment(state dashboard.State, notices []dashboard.Notification) templ.Component {
	return component(func(ctx context.Context, h *htmlWriter) {
		h.render(ctx, DataPanel(state))
		h.render(ctx, Toasts(notices))
	})
}

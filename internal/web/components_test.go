package web

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/a-h/templ"

	"github.com/hitoshi/demodash/internal/dashboard"
	"github.com/hitoshi/demodash/internal/gate"
	"github.com/hitoshi/demodash/internal/model"
)

func renderString(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	if err := c.Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	return buf.String()
}

func TestLoadingScreen_RendersLoadingText(t *testing.T) {
	got := renderString(t, LoadingScreen())
	if !strings.Contains(got, "Loading...") {
		t.Errorf("LoadingScreen missing text: %q", got)
	}
	if strings.Contains(got, "<form") {
		t.Errorf("LoadingScreen should render the indicator only: %q", got)
	}
}

func TestGateView_SelectsScreenByVariant(t *testing.T) {
	session := &model.Session{Email: "a@example.com"}
	tests := []struct {
		variant gate.Variant
		want    string
		notWant string
	}{
		{gate.VariantLoading, "Loading...", "<form"},
		{gate.VariantLogin, `action="/auth/login"`, "Welcome back"},
		{gate.VariantDashboard, "Welcome back, a@example.com", `action="/auth/login"`},
	}
	for _, tt := range tests {
		t.Run(string(tt.variant), func(t *testing.T) {
			got := renderString(t, GateView(tt.variant, session, "tok", ""))
			if !strings.Contains(got, tt.want) {
				t.Errorf("missing %q in %q", tt.want, got)
			}
			if strings.Contains(got, tt.notWant) {
				t.Errorf("unexpected %q in %q", tt.notWant, got)
			}
		})
	}
}

func TestLoginForm_EscapesValues(t *testing.T) {
	got := renderString(t, LoginForm("tok", `a"><script>@example.com`))
	if !strings.Contains(got, `name="csrf_token" value="tok"`) {
		t.Errorf("missing csrf field: %q", got)
	}
	if strings.Contains(got, "<script>@") {
		t.Errorf("email must be escaped: %q", got)
	}
	if !strings.Contains(got, `type="password"`) {
		t.Errorf("password input should be masked: %q", got)
	}
}

func TestDashboardPage_RendersHeaderAndDeferredPanel(t *testing.T) {
	got := renderString(t, DashboardPage(&model.Session{Email: "a@example.com"}, "tok"))

	for _, want := range []string{
		"Dashboard",
		"Welcome back, a@example.com",
		CardTitle,
		CardDescription,
		`hx-get="/dashboard/rows" hx-trigger="load"`,
		`id="data-panel" hx-get="/dashboard/rows" hx-trigger="load" hx-swap="innerHTML" hx-sync="#data-panel:replace"`,
		`action="/auth/logout"`,
		`class="spinner small"`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("DashboardPage missing %q", want)
		}
	}
}

func TestDataPanel_Variants(t *testing.T) {
	t.Run("loading shows spinner only", func(t *testing.T) {
		got := renderString(t, DataPanel(dashboard.State{Loading: true, Rows: []model.Row{{ID: 1}}}))
		if !strings.Contains(got, "spinner") || strings.Contains(got, "<table") {
			t.Errorf("loading panel = %q", got)
		}
	})

	t.Run("empty", func(t *testing.T) {
		got := renderString(t, DataPanel(dashboard.State{}))
		if !strings.Contains(got, "No data found in the demo_data table") {
			t.Errorf("empty panel missing title: %q", got)
		}
		if !strings.Contains(got, "Add some data to see it here!") {
			t.Errorf("empty panel missing hint: %q", got)
		}
	})

	t.Run("populated keeps order and marks null data", func(t *testing.T) {
		got := renderString(t, DataPanel(dashboard.State{Rows: []model.Row{
			{ID: 3, Data: model.StringPtr("<b>three</b>")},
			{ID: 2, Data: nil},
			{ID: 1, Data: model.StringPtr("")},
		}}))
		if strings.Index(got, ">3<") > strings.Index(got, ">2<") {
			t.Errorf("rows should keep the given order: %q", got)
		}
		if !strings.Contains(got, "&lt;b&gt;three&lt;/b&gt;") {
			t.Errorf("row data must be escaped: %q", got)
		}
		if n := strings.Count(got, `<span class="no-data">No data</span>`); n != 2 {
			t.Errorf("no-data markers = %d, want 2", n)
		}
	})
}

func TestRefreshButton_DisabledWhileRefreshing(t *testing.T) {
	idle := renderString(t, RefreshButton(false))
	if strings.Contains(idle, " disabled") {
		t.Errorf("idle button should be enabled: %q", idle)
	}
	busy := renderString(t, RefreshButton(true))
	if !strings.Contains(busy, " disabled") || !strings.Contains(busy, "spinning") {
		t.Errorf("refreshing button = %q", busy)
	}
	// 初回読み込みの応答が再取得の結果を上書きしないよう、パネルと同じ同期キューを使う
	for _, got := range []string{idle, busy} {
		if !strings.Contains(got, `hx-sync="#data-panel:replace"`) {
			t.Errorf("refresh button must share the panel sync queue: %q", got)
		}
	}
}

func TestToasts(t *testing.T) {
	if got := renderString(t, Toasts(nil)); got != "" {
		t.Errorf("Toasts(nil) = %q, want empty", got)
	}

	got := renderString(t, Toasts([]dashboard.Notification{
		{Kind: dashboard.KindError, Title: "Error", Message: "Failed to fetch data"},
	}))
	if !strings.Contains(got, `hx-swap-oob="beforeend"`) {
		t.Errorf("toasts should be swapped out-of-band: %q", got)
	}
	if !strings.Contains(got, `role="alert"`) || !strings.Contains(got, "Failed to fetch data") {
		t.Errorf("toast = %q", got)
	}
}

func TestLayout_IncludesNoticesAndCSRFMeta(t *testing.T) {
	got := renderString(t, Layout(Page{
		CSRFToken: "tok",
		Notices:   []dashboard.Notification{{Kind: dashboard.KindSuccess, Title: "Success", Message: "Logged out successfully!"}},
	}, LoadingScreen()))

	if !strings.HasPrefix(got, "<!DOCTYPE html>") {
		t.Errorf("layout should start with doctype: %q", got[:20])
	}
	if !strings.Contains(got, `<meta name="csrf-token" content="tok">`) {
		t.Error("missing csrf meta tag")
	}
	if !strings.Contains(got, "Logged out successfully!") {
		t.Error("missing flash notice")
	}
}

func TestRedirect(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	w := httptest.NewRecorder()
	Redirect(w, req, "/")
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/" {
		t.Errorf("plain redirect: status %d location %q", w.Code, w.Header().Get("Location"))
	}

	req.Header.Set(HXRequestHeader, "true")
	w = httptest.NewRecorder()
	Redirect(w, req, "/")
	if w.Header().Get("HX-Redirect") != "/" {
		t.Errorf("htmx redirect header = %q", w.Header().Get("HX-Redirect"))
	}
}

func TestStaticHandler_ServesAssets(t *testing.T) {
	h := StaticHandler()
	for _, path := range []string{"/static/app.js", "/static/app.css"} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, w.Code)
		}
	}
}

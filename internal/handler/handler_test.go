package handler

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/demodash/internal/backend/backendtest"
	"github.com/hitoshi/demodash/internal/middleware"
)

// --- モック定義 ---

type mockMetrics struct {
	mu       sync.Mutex
	signIns  []string
	signOuts []string
	statuses []int
	fetchOK  int
	fetchNG  []string
}

func (m *mockMetrics) RecordFetchSuccess(int) {
	m.mu.Lock()
	m.fetchOK++
	m.mu.Unlock()
}

func (m *mockMetrics) RecordFetchFailure(reason string) {
	m.mu.Lock()
	m.fetchNG = append(m.fetchNG, reason)
	m.mu.Unlock()
}

func (m *mockMetrics) RecordFetchLatency(time.Duration) {}
func (m *mockMetrics) RecordStaleDiscarded()            {}
func (m *mockMetrics) RecordSessionsCleaned(int64)      {}

func (m *mockMetrics) RecordSignIn(result string) {
	m.mu.Lock()
	m.signIns = append(m.signIns, result)
	m.mu.Unlock()
}

func (m *mockMetrics) RecordSignOut(result string) {
	m.mu.Lock()
	m.signOuts = append(m.signOuts, result)
	m.mu.Unlock()
}

func (m *mockMetrics) RecordHTTPStatus(status int) {
	m.mu.Lock()
	m.statuses = append(m.statuses, status)
	m.mu.Unlock()
}

// --- ヘルパー ---

const testCSRFToken = "csrf-test-token"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRouter(t *testing.T, fake *backendtest.Fake, m *mockMetrics) http.Handler {
	t.Helper()
	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig(100))
	t.Cleanup(rl.Stop)

	deps := &RouterDeps{
		Backend:           fake.Client(),
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       rl,
		Config: Config{
			Cookies: CookieConfig{SessionMaxAge: 86400},
			Metrics: m,
			Logger:  discardLogger(),
		},
	}
	return NewRouter(deps)
}

// postForm はCSRFトークン付きのフォーム送信リクエストを生成する。
func postForm(path string, form url.Values, cookies ...*http.Cookie) *http.Request {
	if form == nil {
		form = url.Values{}
	}
	form.Set(middleware.CSRFFormField, testCSRFToken)
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: testCSRFToken})
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req
}

func sessionCookie(token string) *http.Cookie {
	return &http.Cookie{Name: middleware.SessionCookieName, Value: token}
}

func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func serve(h http.Handler, req *http.Request) *http.Response {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w.Result()
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	return string(b)
}

// followFlash はレスポンスのフラッシュCookieを付けて GET / を取得する。
func followFlash(t *testing.T, h http.Handler, resp *http.Response, cookies ...*http.Cookie) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if c := findCookie(resp, flashCookieName); c != nil {
		req.AddCookie(c)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return readBody(t, serve(h, req))
}

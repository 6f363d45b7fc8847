package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/demodash/internal/model"
)

// --- モック定義 ---

type mockSessionGetter struct {
	getSessionFn func(ctx context.Context, accessToken string) (*model.Session, error)
}

func (m *mockSessionGetter) GetSession(ctx context.Context, accessToken string) (*model.Session, error) {
	if m.getSessionFn != nil {
		return m.getSessionFn(ctx, accessToken)
	}
	return nil, nil
}

func validSessionGetter(token string) *mockSessionGetter {
	return &mockSessionGetter{
		getSessionFn: func(ctx context.Context, accessToken string) (*model.Session, error) {
			if accessToken == token {
				return &model.Session{
					ID:        token,
					UserID:    "user-123",
					Email:     "user@example.com",
					ExpiresAt: time.Now().Add(time.Hour),
				}, nil
			}
			return nil, nil
		},
	}
}

// --- テスト ---

func TestSessionMiddleware_ValidCookie_InjectsSession(t *testing.T) {
	mw := NewSessionMiddleware(validSessionGetter("valid-token"))

	var captured *model.Session
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = SessionFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/rows", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "valid-token"})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if captured == nil || captured.Email != "user@example.com" {
		t.Errorf("session = %+v, want user@example.com", captured)
	}
}

func TestSessionMiddleware_BearerHeader_InjectsSession(t *testing.T) {
	mw := NewSessionMiddleware(validSessionGetter("header-token"))

	called := false
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = SessionFromContext(r.Context()) != nil
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/rows", nil)
	req.Header.Set("Authorization", "Bearer header-token")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if !called {
		t.Error("handler should receive the session from the bearer token")
	}
}

func TestSessionMiddleware_Unauthorized(t *testing.T) {
	tests := []struct {
		name   string
		cookie string
		getter *mockSessionGetter
	}{
		{"no cookie", "", &mockSessionGetter{}},
		{"unknown token", "unknown", validSessionGetter("valid-token")},
		{"lookup error", "some-token", &mockSessionGetter{
			getSessionFn: func(ctx context.Context, accessToken string) (*model.Session, error) {
				return nil, context.DeadlineExceeded
			},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewSessionMiddleware(tt.getter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler should not be called")
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/rows", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: tt.cookie})
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
			var body ErrorResponseBody
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}
			if body.Code != model.ErrCodeUnauthorized {
				t.Errorf("code = %q, want %q", body.Code, model.ErrCodeUnauthorized)
			}
		})
	}
}

func TestTokenFromRequest(t *testing.T) {
	tests := []struct {
		name   string
		cookie string
		header string
		want   string
	}{
		{"cookie", "c-token", "", "c-token"},
		{"cookie wins over header", "c-token", "Bearer h-token", "c-token"},
		{"bearer header", "", "Bearer h-token", "h-token"},
		{"lowercase scheme", "", "bearer h-token", "h-token"},
		{"other scheme", "", "Basic abc", ""},
		{"nothing", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: tt.cookie})
			}
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if got := TokenFromRequest(req); got != tt.want {
				t.Errorf("TokenFromRequest() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSessionFromContext_NoValue_ReturnsNil(t *testing.T) {
	if s := SessionFromContext(context.Background()); s != nil {
		t.Errorf("SessionFromContext() = %+v, want nil", s)
	}
}

func TestContextWithSession_RoundTrip(t *testing.T) {
	s := &model.Session{ID: "t", UserID: "user-456"}
	ctx := ContextWithSession(context.Background(), s)
	if got := SessionFromContext(ctx); got != s {
		t.Errorf("SessionFromContext() = %+v, want %+v", got, s)
	}
}

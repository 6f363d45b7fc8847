package gate

import (
	"context"
	"sync"

	"github.com/hitoshi/demodash/internal/backend"
	"github.com/hitoshi/demodash/internal/model"
)

// TokenSource は認証サービスと現在のアクセストークンを組み合わせたSessionSource。
// 単一ユーザーのクライアント（TUI）で使用する。
// サインインイベントでトークンを取り込み、同じトークンのサインアウト・期限切れで破棄する。
type TokenSource struct {
	auth backend.AuthService

	mu    sync.RWMutex
	token string
}

// NewTokenSource はTokenSourceを生成する。tokenは空でもよい。
func NewTokenSource(auth backend.AuthService, token string) *TokenSource {
	return &TokenSource{auth: auth, token: token}
}

// Token は現在のアクセストークンを返す。
func (s *TokenSource) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// SetToken はアクセストークンを置き換える。
func (s *TokenSource) SetToken(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

// CurrentSession は現在のトークンに対応するセッションを返す。
func (s *TokenSource) CurrentSession(ctx context.Context) (*model.Session, error) {
	token := s.Token()
	if token == "" {
		return nil, nil
	}
	return s.auth.GetSession(ctx, token)
}

// Subscribe は認証サービスのイベントのうち、このクライアントに関係するものだけを転送する。
func (s *TokenSource) Subscribe(l backend.Listener) func() {
	return s.auth.Subscribe(func(ev backend.AuthEvent) {
		if s.observe(ev) {
			l(ev)
		}
	})
}

// observe はイベントをトークンに反映し、転送すべきかどうかを返す。
func (s *TokenSource) observe(ev backend.AuthEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Kind {
	case backend.EventSignedIn:
		if ev.Session == nil {
			return false
		}
		s.token = ev.Session.ID
		return true
	case backend.EventSignedOut, backend.EventTokenExpired:
		if ev.Session != nil && ev.Session.ID != s.token {
			return false
		}
		s.token = ""
		return true
	default:
		return false
	}
}

// compile-time interface check
var _ SessionSource = (*TokenSource)(nil)

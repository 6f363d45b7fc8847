// Package backendtest はテスト用のインメモリバックエンド実装を提供する。
package backendtest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hitoshi/demodash/internal/backend"
	"github.com/hitoshi/demodash/internal/model"
)

// Fake は backend.AuthService と backend.RowQuerier を満たすインメモリ実装。
// 各 *Fn フィールドを設定すると、その呼び出しの振る舞いを差し替えられる。
type Fake struct {
	backend.Broker

	mu        sync.Mutex
	users     map[string]string // email -> password
	sessions  map[string]*model.Session
	rows      []model.Row
	nextToken int

	SignInFn     func(ctx context.Context, email, password string) (*model.Session, error)
	GetSessionFn func(ctx context.Context, accessToken string) (*model.Session, error)
	SignOutFn    func(ctx context.Context, accessToken string) error
	ListRowsFn   func(ctx context.Context, accessToken string) ([]model.Row, error)

	ListRowsCalls int
	SignOutCalls  int
}

// NewFake は空のFakeを生成する。
func NewFake() *Fake {
	return &Fake{
		users:    make(map[string]string),
		sessions: make(map[string]*model.Session),
	}
}

// Client はFakeを認証・テーブル双方に割り当てた backend.Client を返す。
func (f *Fake) Client() backend.Client {
	return backend.Client{Auth: f, Rows: f}
}

// AddUser はサインイン可能なユーザーを登録する。
func (f *Fake) AddUser(email, password string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[email] = password
}

// AddSession は有効なセッションを直接登録し、そのセッションを返す。
func (f *Fake) AddSession(token, email string) *model.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &model.Session{
		ID:        token,
		UserID:    "user-" + email,
		Email:     email,
		ExpiresAt: time.Now().Add(time.Hour),
		CreatedAt: time.Now(),
	}
	f.sessions[token] = s
	return s
}

// SetRows はテーブルの内容を置き換える。
func (f *Fake) SetRows(rows []model.Row) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append([]model.Row(nil), rows...)
}

// SignInWithPassword は登録済みユーザーの資格情報を検証してセッションを発行する。
func (f *Fake) SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error) {
	if f.SignInFn != nil {
		return f.SignInFn(ctx, email, password)
	}

	f.mu.Lock()
	want, ok := f.users[email]
	if !ok || want != password {
		f.mu.Unlock()
		return nil, &backend.Error{Status: 400, Code: "invalid_credentials", Message: "Invalid login credentials"}
	}
	f.nextToken++
	s := &model.Session{
		ID:        fmt.Sprintf("token-%d", f.nextToken),
		UserID:    "user-" + email,
		Email:     email,
		ExpiresAt: time.Now().Add(time.Hour),
		CreatedAt: time.Now(),
	}
	f.sessions[s.ID] = s
	f.mu.Unlock()

	f.Publish(backend.AuthEvent{Kind: backend.EventSignedIn, Session: s})
	return s, nil
}

// GetSession は登録済みのセッションを返す。
func (f *Fake) GetSession(ctx context.Context, accessToken string) (*model.Session, error) {
	if f.GetSessionFn != nil {
		return f.GetSessionFn(ctx, accessToken)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[accessToken]
	if !ok || s.Expired(time.Now()) {
		return nil, nil
	}
	copied := *s
	return &copied, nil
}

// SignOut はセッションを削除し、SIGNED_OUTを通知する。
func (f *Fake) SignOut(ctx context.Context, accessToken string) error {
	f.mu.Lock()
	f.SignOutCalls++
	f.mu.Unlock()

	if f.SignOutFn != nil {
		if err := f.SignOutFn(ctx, accessToken); err != nil {
			return err
		}
	}

	f.mu.Lock()
	s := f.sessions[accessToken]
	delete(f.sessions, accessToken)
	f.mu.Unlock()

	f.Publish(backend.AuthEvent{Kind: backend.EventSignedOut, Session: s})
	return nil
}

// ListRows はテーブルの内容をid降順で返す。
func (f *Fake) ListRows(ctx context.Context, accessToken string) ([]model.Row, error) {
	f.mu.Lock()
	f.ListRowsCalls++
	f.mu.Unlock()

	if f.ListRowsFn != nil {
		return f.ListRowsFn(ctx, accessToken)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rows == nil {
		return nil, nil
	}
	rows := append([]model.Row(nil), f.rows...)
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID > rows[j].ID })
	return rows, nil
}

// HasSession はトークンに対応するセッションが残っているかを返す。
func (f *Fake) HasSession(token string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.sessions[token]
	return ok
}

// compile-time interface checks
var (
	_ backend.AuthService = (*Fake)(nil)
	_ backend.RowQuerier  = (*Fake)(nil)
)

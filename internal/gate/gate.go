// Package gate はセッションの有無に応じて表示する画面を決定するSession Gateを提供する。
//
// Gateは認証プロバイダーの状態変化を購読し、通知のたびに表示バリアントを再評価する。
// ポーリングは行わない。
package gate

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hitoshi/demodash/internal/backend"
	"github.com/hitoshi/demodash/internal/model"
)

// Status はGateが把握しているセッション状態。
type Status int

const (
	// StatusLoading はセッションの解決中であることを示す。
	StatusLoading Status = iota
	// StatusSignedOut はセッションが存在しないことを示す。
	StatusSignedOut
	// StatusSignedIn は有効なセッションが存在することを示す。
	StatusSignedIn
)

// String はStatusの文字列表現を返す。
func (s Status) String() string {
	switch s {
	case StatusSignedOut:
		return "signed_out"
	case StatusSignedIn:
		return "signed_in"
	default:
		return "loading"
	}
}

// Variant はGateが描画する画面。
type Variant string

const (
	VariantLoading   Variant = "loading"
	VariantLogin     Variant = "login"
	VariantDashboard Variant = "dashboard"
)

// VariantFor は状態に対応する描画バリアントを返す。
func VariantFor(s Status) Variant {
	switch s {
	case StatusSignedIn:
		return VariantDashboard
	case StatusSignedOut:
		return VariantLogin
	default:
		return VariantLoading
	}
}

// SessionSource はGateが観測するセッション状態の提供元。
type SessionSource interface {
	// CurrentSession は現在のセッションを返す。存在しない場合はnil。
	CurrentSession(ctx context.Context) (*model.Session, error)
	// Subscribe は状態変化の購読を登録し、解除関数を返す。
	Subscribe(l backend.Listener) (unsubscribe func())
}

// ChangeFunc はバリアントが変化したときに呼び出されるコールバック。
type ChangeFunc func(v Variant, session *model.Session)

// Gate はSession Gateの状態機械。
type Gate struct {
	src    SessionSource
	logger *slog.Logger

	mu          sync.Mutex
	status      Status
	session     *model.Session
	version     uint64 // イベント適用のたびに進む
	onChange    ChangeFunc
	unsubscribe func()
}

// New はGateを生成する。初期状態はStatusLoading。
func New(src SessionSource) *Gate {
	return &Gate{
		src:    src,
		logger: newLogger(),
		status: StatusLoading,
	}
}

// OnChange は状態遷移時のコールバックを登録する。Startより前に呼び出すこと。
func (g *Gate) OnChange(fn ChangeFunc) {
	g.mu.Lock()
	g.onChange = fn
	g.mu.Unlock()
}

// Start は購読を登録してから現在のセッションを一度だけ解決する。
// 解決中に届いたイベントは解決結果より優先する。
// セッション取得に失敗した場合はサインアウト状態として扱う。
func (g *Gate) Start(ctx context.Context) {
	unsubscribe := g.src.Subscribe(g.handleEvent)

	g.mu.Lock()
	g.unsubscribe = unsubscribe
	startVersion := g.version
	g.mu.Unlock()

	session, err := g.src.CurrentSession(ctx)
	if err != nil {
		g.logger.Error("failed to resolve session", slog.String("error", err.Error()))
		session = nil
	}

	// 解決中にイベントが届いていれば、そちらを正とする
	g.transition(session, func() bool { return g.version == startVersion })
}

// Stop は購読を解除する。以降の通知では状態は変化しない。
func (g *Gate) Stop() {
	g.mu.Lock()
	unsubscribe := g.unsubscribe
	g.unsubscribe = nil
	g.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// Status は現在の状態を返す。
func (g *Gate) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}

// Variant は現在の描画バリアントを返す。
func (g *Gate) Variant() Variant {
	return VariantFor(g.Status())
}

// Session は現在のセッションを返す。サインイン中でなければnil。
func (g *Gate) Session() *model.Session {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.session
}

func (g *Gate) handleEvent(ev backend.AuthEvent) {
	g.logger.Debug("auth state changed", slog.String("event", string(ev.Kind)))

	var session *model.Session
	if ev.Kind == backend.EventSignedIn {
		session = ev.Session
	}
	g.transition(session, nil)
}

// transition は状態を更新し、バリアントまたはセッションが変化した場合にコールバックを呼ぶ。
// guardはロック中に評価され、falseを返すと更新しない。
func (g *Gate) transition(session *model.Session, guard func() bool) {
	next := StatusSignedOut
	if session != nil {
		next = StatusSignedIn
	}

	g.mu.Lock()
	if guard != nil && !guard() {
		g.mu.Unlock()
		return
	}
	g.version++
	changed := g.status != next || g.session != session
	g.status = next
	g.session = session
	onChange := g.onChange
	g.mu.Unlock()

	if changed && onChange != nil {
		onChange(VariantFor(next), session)
	}
}

func newLogger() *slog.Logger {
	return slog.Default().With(slog.String("component", "gate"))
}

// Resolve は単発のリクエスト向けにセッションを解決する。
// 購読は行わず、取得失敗はログに残してログイン画面として扱う。
func Resolve(ctx context.Context, auth backend.AuthService, accessToken string) (Variant, *model.Session) {
	if accessToken == "" {
		return VariantLogin, nil
	}
	session, err := auth.GetSession(ctx, accessToken)
	if err != nil {
		newLogger().ErrorContext(ctx, "failed to resolve session", slog.String("error", err.Error()))
		return VariantLogin, nil
	}
	if session == nil {
		return VariantLogin, nil
	}
	return VariantDashboard, session
}

// Package backend は外部バックエンドサービス（認証とテーブル読み取り）との契約を定義する。
//
// ダッシュボードはこのパッケージのインターフェースだけに依存し、
// ホスト型（supabase）とセルフホスト型（auth + repository）の実装を差し替えられる。
package backend

import (
	"context"
	"errors"

	"github.com/hitoshi/demodash/internal/model"
)

// EventKind は認証状態変化イベントの種類を表す。
type EventKind string

const (
	// EventSignedIn はサインインによりセッションが生成されたことを示す。
	EventSignedIn EventKind = "SIGNED_IN"
	// EventSignedOut はサインアウトによりセッションが破棄されたことを示す。
	EventSignedOut EventKind = "SIGNED_OUT"
	// EventTokenExpired はセッションの有効期限切れを検出したことを示す。
	EventTokenExpired EventKind = "TOKEN_EXPIRED"
)

// AuthEvent は購読者に通知される認証状態の変化。
// SessionはSIGNED_INでは新しいセッション、それ以外では破棄されたセッション（不明ならnil）。
type AuthEvent struct {
	Kind    EventKind
	Session *model.Session
}

// Listener は認証状態変化の通知を受け取るコールバック。
type Listener func(AuthEvent)

// AuthService は外部認証プロバイダーの契約。
type AuthService interface {
	// SignInWithPassword はメールアドレスとパスワードでサインインし、セッションを返す。
	// 資格情報の誤りは *Error で返す。
	SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error)

	// GetSession はアクセストークンに対応する有効なセッションを返す。
	// セッションが存在しないか期限切れの場合は nil, nil を返す。
	GetSession(ctx context.Context, accessToken string) (*model.Session, error)

	// SignOut はセッションを破棄する。プロバイダーが拒否した場合は *Error を返す。
	SignOut(ctx context.Context, accessToken string) error

	// Subscribe は認証状態変化の購読を登録し、解除関数を返す。
	Subscribe(l Listener) (unsubscribe func())
}

// RowQuerier はdemo_dataテーブルの読み取り契約。
type RowQuerier interface {
	// ListRows は全行をid降順で返す。結果が存在しない場合はnilスライスを返す。
	// クエリ失敗は *Error で返す。
	ListRows(ctx context.Context, accessToken string) ([]model.Row, error)
}

// Client はアプリケーション全体で共有する外部サービスのハンドル。
// グローバル変数ではなく、起動時に構築して明示的に受け渡す。
type Client struct {
	Auth AuthService
	Rows RowQuerier
}

// Validate は必須の依存関係が揃っているかを検証する。
func (c Client) Validate() error {
	if c.Auth == nil {
		return errors.New("backend client: auth service is required")
	}
	if c.Rows == nil {
		return errors.New("backend client: row querier is required")
	}
	return nil
}

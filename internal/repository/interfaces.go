// Package repository はデータ永続化のインターフェースとSQL実装を提供する。
// 実装はPostgreSQLとSQLiteの両方で動作する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/demodash/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)
	// FindByEmail はメールアドレス（大文字小文字を区別しない）でユーザーを取得する。
	// 見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.User) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションをユーザーのメールアドレス付きで取得する。
	// now時点で期限切れ、または見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string, now time.Time) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。削除した場合はtrueを返す。
	DeleteByID(ctx context.Context, id string) (bool, error)
	// DeleteExpired はnow時点で期限切れのセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// RowRepository はdemo_dataテーブルへのアクセスインターフェース。
type RowRepository interface {
	// List は全行をid降順で返す。行がない場合は空スライスを返す。
	List(ctx context.Context) ([]model.Row, error)
	// Insert は行を追加し、採番されたIDを返す。
	Insert(ctx context.Context, data *string) (int64, error)
}

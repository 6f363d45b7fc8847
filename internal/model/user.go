// Package model はドメインモデルを定義する。
package model

import "time"

// User はダッシュボードにログインできるユーザーを表す。
// PasswordHashはセルフホスト構成でのみ使用する（bcryptハッシュ）。
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session は認証プロバイダーが発行したログインセッションを表す。
// IDはアクセストークンそのもので、Cookieやヘッダーで受け渡す。
type Session struct {
	ID        string
	UserID    string
	Email     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired は指定時刻の時点でセッションが期限切れかどうかを返す。
// ExpiresAtがゼロ値の場合は期限なしとみなす。
func (s *Session) Expired(now time.Time) bool {
	if s == nil {
		return true
	}
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(s.ExpiresAt)
}

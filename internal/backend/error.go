package backend

import (
	"errors"
	"fmt"
)

// Error は外部サービスが返したエラーオブジェクト（{message}）を表す。
// ネットワーク障害などの予期しない失敗とは区別される。
type Error struct {
	Status  int    // HTTPステータス（不明な場合は0）
	Code    string // プロバイダー固有のエラーコード
	Message string // プロバイダーのメッセージ（ユーザーに表示する）
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("backend error %s (status %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("backend error (status %d): %s", e.Status, e.Message)
}

// AsError はerrのチェーンから *Error を取り出す。
func AsError(err error) (*Error, bool) {
	var be *Error
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

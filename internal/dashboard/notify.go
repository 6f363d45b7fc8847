package dashboard

import "sync"

// Kind は通知の種類。
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// 通知のタイトルと定型メッセージ。
const (
	TitleError   = "Error"
	TitleSuccess = "Success"

	MessageFetchFailed     = "Failed to fetch data"
	MessageUnexpectedError = "An unexpected error occurred"
	MessageSignedOut       = "Logged out successfully!"
)

// Notification はユーザーに表示する一時的な通知（トースト）。
type Notification struct {
	Kind    Kind   `json:"kind"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Notifier は通知の送信先。
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc は関数をNotifierとして扱うアダプター。
type NotifierFunc func(Notification)

// Notify はfを呼び出す。
func (f NotifierFunc) Notify(n Notification) { f(n) }

// Inbox は通知を溜めておき、描画時にまとめて取り出すNotifier。
type Inbox struct {
	mu    sync.Mutex
	items []Notification
}

// Notify は通知を追加する。
func (b *Inbox) Notify(n Notification) {
	b.mu.Lock()
	b.items = append(b.items, n)
	b.mu.Unlock()
}

// Drain は溜まっている通知を返して空にする。
func (b *Inbox) Drain() []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	items := b.items
	b.items = nil
	return items
}

type discard struct{}

func (discard) Notify(Notification) {}

package backend

import (
	"slices"
	"sync"
)

// Broker は認証状態変化の購読者を管理する。
// AuthServiceの実装に埋め込んで Subscribe / Publish を提供する。
// ゼロ値で使用できる。
type Broker struct {
	mu        sync.RWMutex
	nextID    int
	listeners map[int]Listener
}

// Subscribe は購読者を登録し、解除関数を返す。
// 解除関数は複数回呼び出しても安全。
func (b *Broker) Subscribe(l Listener) func() {
	if l == nil {
		return func() {}
	}

	b.mu.Lock()
	if b.listeners == nil {
		b.listeners = make(map[int]Listener)
	}
	id := b.nextID
	b.nextID++
	b.listeners[id] = l
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.listeners, id)
			b.mu.Unlock()
		})
	}
}

// Publish は全購読者にイベントを通知する。
// コールバックはロック外で登録順に呼び出すため、コールバック内から購読解除してよい。
func (b *Broker) Publish(ev AuthEvent) {
	b.mu.RLock()
	ids := make([]int, 0, len(b.listeners))
	for id := range b.listeners {
		ids = append(ids, id)
	}
	b.mu.RUnlock()

	slices.Sort(ids)

	for _, id := range ids {
		b.mu.RLock()
		l, ok := b.listeners[id]
		b.mu.RUnlock()
		if ok {
			l(ev)
		}
	}
}

// Len は現在の購読者数を返す。テスト用。
func (b *Broker) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

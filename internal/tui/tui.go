// Package tui はbubbleteaによるターミナル版のダッシュボードを提供する。
//
// Web版と同じSession GateとDashboard Viewを使い、Gateの状態変化は
// Program.Sendでイベントループに届ける。
package tui

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/hitoshi/demodash/internal/backend"
	"github.com/hitoshi/demodash/internal/gate"
	"github.com/hitoshi/demodash/internal/metrics"
	"github.com/hitoshi/demodash/internal/model"
)

// ErrNotTerminal は標準入力が端末でない場合に返される。
var ErrNotTerminal = errors.New("tui: stdin is not a terminal")

// キー操作。
const (
	KeyCtrlC    = "ctrl+c"
	KeyEnter    = "enter"
	KeyEsc      = "esc"
	KeyTab      = "tab"
	KeyShiftTab = "shift+tab"
	KeyUp       = "up"
	KeyDown     = "down"
	KeyRefresh  = "r"
	KeyLogout   = "l"
	KeyQuit     = "q"
)

// Option はModelのオプション。
type Option func(*options)

type options struct {
	logger  *slog.Logger
	metrics metrics.MetricsCollector
	timeout time.Duration
}

// WithLogger はロガーを設定する。画面を乱さないようファイル出力のロガーを渡すこと。
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics はメトリクスの記録先を設定する。
func WithMetrics(m metrics.MetricsCollector) Option {
	return func(o *options) { o.metrics = m }
}

// WithTimeout はバックエンド呼び出し1回あたりのタイムアウトを設定する。
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// IsTerminal は標準入力が端末に接続されているかを返す。
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// Run はターミナルクライアントを起動し、終了するまでブロックする。
// ctxがキャンセルされた場合は正常終了として扱う。
func Run(ctx context.Context, client backend.Client, opts ...Option) error {
	if !IsTerminal() {
		return ErrNotTerminal
	}
	if err := client.Validate(); err != nil {
		return err
	}

	m := NewModel(ctx, client, opts...)
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	m.gate.OnChange(func(v gate.Variant, s *model.Session) {
		p.Send(gateChangedMsg{variant: v, session: s})
	})

	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	}
	return nil
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

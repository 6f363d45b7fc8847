// Package dashboard はサインイン後に表示するDashboard Viewの状態機械を提供する。
//
// Viewはdemo_dataテーブルの取得・再取得・サインアウトを扱い、
// 結果を通知（トースト）としてNotifierに送る。描画は呼び出し側（Web/TUI）が
// Snapshotを元に行う。
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hitoshi/demodash/internal/backend"
	"github.com/hitoshi/demodash/internal/metrics"
	"github.com/hitoshi/demodash/internal/model"
)

const tracerName = "github.com/hitoshi/demodash/internal/dashboard"

// Variant はDashboard Viewが描画する状態。
type Variant string

const (
	VariantLoading   Variant = "loading"
	VariantEmpty     Variant = "empty"
	VariantPopulated Variant = "populated"
)

// State はある時点のViewの状態。
type State struct {
	Rows       []model.Row
	Loading    bool
	Refreshing bool
}

// Variant は描画する状態を返す。
// Refreshingは描画状態に影響しない（更新アイコンの回転のみ）。
func (s State) Variant() Variant {
	switch {
	case s.Loading:
		return VariantLoading
	case len(s.Rows) == 0:
		return VariantEmpty
	default:
		return VariantPopulated
	}
}

// ErrUnmounted はアンマウント後の操作で返される。
var ErrUnmounted = errors.New("dashboard: view is unmounted")

// Option はViewのオプション。
type Option func(*View)

// WithNotifier は通知の送信先を設定する。nilの場合は通知を破棄する。
func WithNotifier(n Notifier) Option {
	return func(v *View) {
		if n != nil {
			v.notifier = n
		}
	}
}

// WithLogger はロガーを設定する。
func WithLogger(l *slog.Logger) Option {
	return func(v *View) { v.logger = l }
}

// WithMetrics はメトリクスの記録先を設定する。
func WithMetrics(m metrics.MetricsCollector) Option {
	return func(v *View) { v.metrics = m }
}

// WithTracer はトレーサーを設定する。
func WithTracer(t trace.Tracer) Option {
	return func(v *View) { v.tracer = t }
}

// View は1回のマウントに対応するDashboard View。
// 複数のgoroutineから同時に使用できる。
type View struct {
	client backend.Client
	token  string

	notifier Notifier
	logger   *slog.Logger
	metrics  metrics.MetricsCollector
	tracer   trace.Tracer

	// life はViewの生存期間。Unmountでキャンセルされる。
	life   context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	rows       []model.Row
	loading    bool
	refreshing bool
	seq        uint64 // 最後に発行した取得の番号
	unmounted  bool
}

// New はViewを生成する。マウント時点ではloading状態。
// clientはセッションのアクセストークンtokenで外部サービスを呼び出す。
func New(client backend.Client, token string, opts ...Option) *View {
	life, cancel := context.WithCancel(context.Background())
	v := &View{
		client:   client,
		token:    token,
		notifier: discard{},
		logger:   slog.Default(),
		metrics:  metrics.Nop{},
		tracer:   otel.Tracer(tracerName),
		life:     life,
		cancel:   cancel,
		loading:  true,
	}
	for _, opt := range opts {
		opt(v)
	}
	v.logger = v.logger.With(slog.String("component", "dashboard"))
	return v
}

// Mount はマウント時の初回取得を行う。
func (v *View) Mount(ctx context.Context) error {
	return v.fetch(ctx, "mount")
}

// Refresh はrefreshingフラグを立ててから再取得する。
// 同時に複数の再取得が走った場合、最後に発行したものの結果だけが反映される。
func (v *View) Refresh(ctx context.Context) error {
	v.mu.Lock()
	if v.unmounted {
		v.mu.Unlock()
		return ErrUnmounted
	}
	v.refreshing = true
	v.mu.Unlock()

	return v.fetch(ctx, "refresh")
}

// Snapshot は現在の状態のコピーを返す。
func (v *View) Snapshot() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return State{
		Rows:       append([]model.Row(nil), v.rows...),
		Loading:    v.loading,
		Refreshing: v.refreshing,
	}
}

// Unmount は実行中の取得をキャンセルし、以降の結果を破棄する。
func (v *View) Unmount() {
	v.mu.Lock()
	v.unmounted = true
	v.mu.Unlock()
	v.cancel()
}

// fetch はdemo_dataを取得して状態を更新する。
// 最新の取得でない結果は破棄する。最新の取得は成否にかかわらず
// loading・refreshingの両フラグを下ろす。
func (v *View) fetch(ctx context.Context, trigger string) (err error) {
	v.mu.Lock()
	if v.unmounted {
		v.mu.Unlock()
		return ErrUnmounted
	}
	v.seq++
	seq := v.seq
	v.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(v.life, cancel)
	defer stop()

	ctx, span := v.tracer.Start(ctx, "dashboard.fetch", trace.WithAttributes(
		attribute.String("dashboard.trigger", trigger),
		attribute.Int64("dashboard.seq", int64(seq)),
	))
	defer span.End()

	start := time.Now()
	rows, err := v.listRows(ctx)
	v.metrics.RecordFetchLatency(time.Since(start))

	var note *Notification

	v.mu.Lock()
	switch {
	case v.unmounted:
		v.mu.Unlock()
		span.SetAttributes(attribute.Bool("dashboard.discarded", true))
		return ErrUnmounted
	case seq != v.seq:
		v.mu.Unlock()
		v.logger.Debug("discarding stale fetch result",
			slog.Uint64("seq", seq),
			slog.Uint64("latest", v.latestSeq()),
		)
		span.SetAttributes(attribute.Bool("dashboard.discarded", true))
		v.metrics.RecordStaleDiscarded()
		return nil
	}

	// finally: 最新の取得は必ず両フラグを下ろす
	v.loading = false
	v.refreshing = false

	switch {
	case err == nil:
		if rows == nil {
			rows = []model.Row{}
		}
		v.rows = rows
	case errors.Is(ctx.Err(), context.Canceled) && errors.Is(err, context.Canceled):
		// 呼び出し元の中断とUnmountは通知しない。タイムアウトは予期しないエラーとして扱う
		v.rows = nil
	default:
		v.rows = nil
		note = v.classifyFetchError(err)
	}
	count := len(v.rows)
	v.mu.Unlock()

	switch {
	case err == nil:
		span.SetAttributes(attribute.Int("dashboard.rows", count))
		v.metrics.RecordFetchSuccess(count)
	case note == nil:
		span.SetStatus(codes.Error, "canceled")
		v.metrics.RecordFetchFailure(metrics.ReasonCanceled)
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, note.Message)
		v.notifier.Notify(*note)
	}
	return err
}

// classifyFetchError は取得エラーをログとメトリクスに記録し、表示する通知を返す。
func (v *View) classifyFetchError(err error) *Notification {
	if be, ok := backend.AsError(err); ok {
		v.logger.Error("error fetching demo data",
			slog.String("table", model.DemoTable),
			slog.String("code", be.Code),
			slog.String("error", be.Message),
		)
		v.metrics.RecordFetchFailure(metrics.ReasonQuery)
		return &Notification{Kind: KindError, Title: TitleError, Message: MessageFetchFailed}
	}

	v.logger.Error("unexpected error fetching demo data",
		slog.String("table", model.DemoTable),
		slog.String("error", err.Error()),
	)
	v.metrics.RecordFetchFailure(metrics.ReasonUnexpected)
	return &Notification{Kind: KindError, Title: TitleError, Message: MessageUnexpectedError}
}

func (v *View) latestSeq() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.seq
}

// listRows はパニックを予期しないエラーとして回収する。
func (v *View) listRows(ctx context.Context) (rows []model.Row, err error) {
	defer func() {
		if r := recover(); r != nil {
			rows, err = nil, fmt.Errorf("panic during fetch: %v", r)
		}
	}()
	return v.client.Rows.ListRows(ctx, v.token)
}

// SignOut はセッションの破棄を認証プロバイダーに依頼する。
// 行データには触れず、画面遷移も行わない（Gateがセッション消失を検知して再描画する）。
// 成功・失敗いずれも通知を送り、失敗時はエラーを返す。
func (v *View) SignOut(ctx context.Context) error {
	ctx, span := v.tracer.Start(ctx, "dashboard.sign_out")
	defer span.End()

	err := v.signOut(ctx)

	var note Notification
	switch be, ok := backend.AsError(err); {
	case err == nil:
		v.logger.Info("signed out")
		v.metrics.RecordSignOut(metrics.ResultSuccess)
		note = Notification{Kind: KindSuccess, Title: TitleSuccess, Message: MessageSignedOut}
	case ok:
		v.logger.Warn("sign-out rejected by provider",
			slog.String("code", be.Code),
			slog.String("error", be.Message),
		)
		v.metrics.RecordSignOut(metrics.ResultProviderError)
		note = Notification{Kind: KindError, Title: TitleError, Message: be.Message}
	default:
		v.logger.Error("unexpected error signing out", slog.String("error", err.Error()))
		v.metrics.RecordSignOut(metrics.ResultUnexpected)
		note = Notification{Kind: KindError, Title: TitleError, Message: MessageUnexpectedError}
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, note.Message)
	}
	v.notifier.Notify(note)
	return err
}

func (v *View) signOut(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during sign-out: %v", r)
		}
	}()
	return v.client.Auth.SignOut(ctx, v.token)
}

package tui

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/hitoshi/demodash/internal/backend"
	"github.com/hitoshi/demodash/internal/dashboard"
	"github.com/hitoshi/demodash/internal/gate"
	"github.com/hitoshi/demodash/internal/metrics"
	"github.com/hitoshi/demodash/internal/model"
	"github.com/hitoshi/demodash/internal/security"
	"github.com/hitoshi/demodash/internal/web"
)

const (
	toastTTL = 5 * time.Second

	idColumnWidth = 8
	minDataWidth  = 20
	minTableRows  = 3

	messageCredentialsRequired = "Email and password are required"
)

// 入力欄の位置。
const (
	focusEmail = iota
	focusPassword
)

// --- メッセージ ---

// gateChangedMsg はGateのバリアントが変化したことを伝える。
type gateChangedMsg struct {
	variant gate.Variant
	session *model.Session
}

type signInDoneMsg struct {
	session *model.Session
	err     error
}

// fetchDoneMsg は取得の完了を伝える。viewが現在のものでなければ破棄する。
type fetchDoneMsg struct {
	view    *dashboard.View
	notices []dashboard.Notification
}

type signOutDoneMsg struct {
	err     error
	notices []dashboard.Notification
}

type toastExpiredMsg struct {
	seq int
}

// Model はターミナルクライアントの状態。
type Model struct {
	ctx       context.Context
	client    backend.Client
	src       *gate.TokenSource
	gate      *gate.Gate
	sanitizer *security.TextSanitizer

	logger  *slog.Logger
	metrics metrics.MetricsCollector
	timeout time.Duration

	screen  gate.Variant
	session *model.Session

	// ログインフォーム
	email     textinput.Model
	password  textinput.Model
	focus     int
	signingIn bool

	// ダッシュボード
	view    *dashboard.View
	inbox   *dashboard.Inbox
	state   dashboard.State
	table   table.Model
	spinner spinner.Model

	toast    *dashboard.Notification
	toastSeq int

	width  int
	height int
}

// NewModel はModelを生成する。初期画面はloading。
func NewModel(ctx context.Context, client backend.Client, opts ...Option) *Model {
	o := options{logger: slog.Default(), metrics: metrics.Nop{}}
	for _, opt := range opts {
		opt(&o)
	}

	email := textinput.New()
	email.Placeholder = "you@example.com"
	email.Prompt = ""
	email.CharLimit = 254
	email.Focus()

	password := textinput.New()
	password.Placeholder = "password"
	password.Prompt = ""
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'
	password.CharLimit = 128

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	t := table.New(
		table.WithColumns(columns(80)),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	t.SetStyles(tableStyles())

	src := gate.NewTokenSource(client.Auth, "")

	return &Model{
		ctx:       ctx,
		client:    client,
		src:       src,
		gate:      gate.New(src),
		sanitizer: security.NewTextSanitizer(),
		logger:    o.logger.With(slog.String("component", "tui")),
		metrics:   o.metrics,
		timeout:   o.timeout,
		screen:    gate.VariantLoading,
		email:     email,
		password:  password,
		table:     t,
		spinner:   sp,
		width:     80,
		height:    24,
	}
}

// Init はGateの起動とスピナーのアニメーションを開始する。
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, textinput.Blink, m.startGate())
}

// Close は購読を解除し、表示中のViewをアンマウントする。
func (m *Model) Close() {
	m.gate.Stop()
	if m.view != nil {
		m.view.Unmount()
		m.view = nil
	}
}

func (m *Model) startGate() tea.Cmd {
	g, ctx, timeout := m.gate, m.ctx, m.timeout
	return func() tea.Msg {
		ctx, cancel := withTimeout(ctx, timeout)
		defer cancel()
		g.Start(ctx)
		return nil
	}
}

// Update はメッセージに応じて状態を更新する。
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case gateChangedMsg:
		return m, m.applyGate(msg.variant, msg.session)

	case signInDoneMsg:
		return m, m.handleSignIn(msg)

	case fetchDoneMsg:
		if msg.view != m.view {
			return m, nil
		}
		m.state = m.view.Snapshot()
		m.table.SetRows(m.tableRows(m.state.Rows))
		return m, m.showNotices(msg.notices)

	case signOutDoneMsg:
		return m, m.showNotices(msg.notices)

	case toastExpiredMsg:
		if msg.seq == m.toastSeq {
			m.toast = nil
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, m.updateInputs(msg)
}

// applyGate は画面を切り替える。ダッシュボードに入るたびに新しいViewをマウントする。
func (m *Model) applyGate(v gate.Variant, session *model.Session) tea.Cmd {
	m.logger.Debug("gate changed", slog.String("variant", string(v)))

	switch v {
	case gate.VariantDashboard:
		if m.screen == gate.VariantDashboard && m.view != nil && m.session != nil && m.session.ID == session.ID {
			m.session = session
			return nil
		}
		m.unmountView()
		m.screen = v
		m.session = session
		m.signingIn = false
		m.password.SetValue("")
		return m.mountView(session.ID)

	case gate.VariantLogin:
		m.unmountView()
		m.screen = v
		m.session = nil
		m.signingIn = false
		m.password.SetValue("")
		m.setFocus(focusEmail)
		return textinput.Blink

	default:
		m.screen = v
		return nil
	}
}

func (m *Model) mountView(token string) tea.Cmd {
	m.inbox = &dashboard.Inbox{}
	m.view = dashboard.New(m.client, token,
		dashboard.WithNotifier(m.inbox),
		dashboard.WithLogger(m.logger),
		dashboard.WithMetrics(m.metrics),
	)
	m.state = m.view.Snapshot()
	m.table.SetRows(nil)
	return m.fetch(false)
}

func (m *Model) unmountView() {
	if m.view != nil {
		m.view.Unmount()
	}
	m.view = nil
	m.inbox = nil
	m.state = dashboard.State{}
	m.table.SetRows(nil)
}

// fetch は取得を実行するコマンドを返す。
func (m *Model) fetch(refresh bool) tea.Cmd {
	v, inbox, ctx, timeout := m.view, m.inbox, m.ctx, m.timeout
	return func() tea.Msg {
		ctx, cancel := withTimeout(ctx, timeout)
		defer cancel()
		if refresh {
			v.Refresh(ctx)
		} else {
			v.Mount(ctx)
		}
		return fetchDoneMsg{view: v, notices: inbox.Drain()}
	}
}

func (m *Model) signOut() tea.Cmd {
	v, inbox, ctx, timeout := m.view, m.inbox, m.ctx, m.timeout
	return func() tea.Msg {
		ctx, cancel := withTimeout(ctx, timeout)
		defer cancel()
		err := v.SignOut(ctx)
		return signOutDoneMsg{err: err, notices: inbox.Drain()}
	}
}

func (m *Model) signIn(email, password string) tea.Cmd {
	auth, ctx, timeout := m.client.Auth, m.ctx, m.timeout
	return func() tea.Msg {
		ctx, cancel := withTimeout(ctx, timeout)
		defer cancel()
		session, err := auth.SignInWithPassword(ctx, email, password)
		return signInDoneMsg{session: session, err: err}
	}
}

func (m *Model) handleSignIn(msg signInDoneMsg) tea.Cmd {
	m.signingIn = false

	if msg.err == nil {
		m.metrics.RecordSignIn(metrics.ResultSuccess)
		m.logger.Info("signed in", slog.String("user_id", msg.session.UserID))
		m.password.SetValue("")
		return nil
	}

	message := dashboard.MessageUnexpectedError
	if be, ok := backend.AsError(msg.err); ok {
		m.logger.Warn("sign-in rejected", slog.String("code", be.Code), slog.String("error", be.Message))
		m.metrics.RecordSignIn(metrics.ResultInvalid)
		message = be.Message
	} else {
		m.logger.Error("unexpected error signing in", slog.String("error", msg.err.Error()))
		m.metrics.RecordSignIn(metrics.ResultUnexpected)
	}
	return m.showToast(dashboard.Notification{Kind: dashboard.KindError, Title: dashboard.TitleError, Message: message})
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == KeyCtrlC {
		return m, tea.Quit
	}
	if key == KeyEsc && m.toast != nil {
		m.toast = nil
		return m, nil
	}

	switch m.screen {
	case gate.VariantLogin:
		return m, m.handleLoginKey(msg)

	case gate.VariantDashboard:
		switch key {
		case KeyQuit:
			return m, tea.Quit
		case KeyRefresh:
			if m.view == nil {
				return m, nil
			}
			m.state.Refreshing = true
			return m, m.fetch(true)
		case KeyLogout:
			if m.view == nil {
				return m, nil
			}
			return m, m.signOut()
		}
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd

	default:
		if key == KeyQuit {
			return m, tea.Quit
		}
		return m, nil
	}
}

func (m *Model) handleLoginKey(msg tea.KeyMsg) tea.Cmd {
	if m.signingIn {
		return nil
	}

	switch msg.String() {
	case KeyTab, KeyDown:
		m.setFocus((m.focus + 1) % 2)
		return textinput.Blink
	case KeyShiftTab, KeyUp:
		m.setFocus((m.focus + 1) % 2)
		return textinput.Blink
	case KeyEnter:
		if m.focus == focusEmail {
			m.setFocus(focusPassword)
			return textinput.Blink
		}
		email := strings.TrimSpace(m.email.Value())
		password := m.password.Value()
		if email == "" || password == "" {
			m.metrics.RecordSignIn(metrics.ResultInvalid)
			return m.showToast(dashboard.Notification{
				Kind: dashboard.KindError, Title: dashboard.TitleError, Message: messageCredentialsRequired,
			})
		}
		m.signingIn = true
		return m.signIn(email, password)
	}

	return m.updateInputs(msg)
}

func (m *Model) updateInputs(msg tea.Msg) tea.Cmd {
	if m.screen != gate.VariantLogin {
		return nil
	}
	var cmds [2]tea.Cmd
	m.email, cmds[0] = m.email.Update(msg)
	m.password, cmds[1] = m.password.Update(msg)
	return tea.Batch(cmds[:]...)
}

func (m *Model) setFocus(i int) {
	m.focus = i
	if i == focusEmail {
		m.email.Focus()
		m.password.Blur()
	} else {
		m.email.Blur()
		m.password.Focus()
	}
}

// showNotices は最後の通知をトーストとして表示する。
func (m *Model) showNotices(notices []dashboard.Notification) tea.Cmd {
	if len(notices) == 0 {
		return nil
	}
	return m.showToast(notices[len(notices)-1])
}

func (m *Model) showToast(n dashboard.Notification) tea.Cmd {
	n.Title = m.sanitizer.Line(n.Title)
	n.Message = m.sanitizer.Line(n.Message)
	m.toast = &n
	m.toastSeq++
	seq := m.toastSeq
	return tea.Tick(toastTTL, func(time.Time) tea.Msg {
		return toastExpiredMsg{seq: seq}
	})
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	m.email.Width = max(width-20, 10)
	m.password.Width = max(width-20, 10)
	m.table.SetColumns(columns(width))
	m.table.SetHeight(max(height-16, minTableRows))
}

// tableRows は行を表示用の文字列に変換する。
// 外部の値は制御文字を除いた1行のテキストにする。
func (m *Model) tableRows(rows []model.Row) []table.Row {
	out := make([]table.Row, 0, len(rows))
	for _, row := range rows {
		data := web.NoDataText
		if row.HasData() {
			data = m.sanitizer.Line(row.Text())
		}
		out = append(out, table.Row{strconv.FormatInt(row.ID, 10), data})
	}
	return out
}

func columns(width int) []table.Column {
	dataWidth := max(width-idColumnWidth-12, minDataWidth)
	return []table.Column{
		{Title: "ID", Width: idColumnWidth},
		{Title: "Data", Width: dataWidth},
	}
}

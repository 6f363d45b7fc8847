package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/hitoshi/demodash/internal/dashboard"
	"github.com/hitoshi/demodash/internal/gate"
	"github.com/hitoshi/demodash/internal/web"
)

// View は現在の画面を描画する。
func (m *Model) View() string {
	var body string
	switch m.screen {
	case gate.VariantLogin:
		body = m.loginView()
	case gate.VariantDashboard:
		body = m.dashboardView()
	default:
		body = m.loadingView()
	}

	if toast := m.toastView(); toast != "" {
		body = lipgloss.JoinVertical(lipgloss.Left, body, "", toast)
	}
	return body
}

func (m *Model) loadingView() string {
	return boxStyle.Render(m.spinner.View() + " " + web.LoadingText)
}

func (m *Model) loginView() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(web.AppTitle))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Enter your credentials to access the dashboard"))
	b.WriteString("\n\n")

	b.WriteString(m.label("Email", m.focus == focusEmail))
	b.WriteString("\n")
	b.WriteString(m.email.View())
	b.WriteString("\n\n")
	b.WriteString(m.label("Password", m.focus == focusPassword))
	b.WriteString("\n")
	b.WriteString(m.password.View())
	b.WriteString("\n\n")

	if m.signingIn {
		b.WriteString(m.spinner.View() + " Signing in...")
	} else {
		b.WriteString(dimStyle.Render("enter: sign in   tab: next field   ctrl+c: quit"))
	}

	return boxStyle.Width(max(m.width-4, 40)).Render(b.String())
}

func (m *Model) label(text string, focused bool) string {
	if focused {
		return focusedLabelStyle.Render("> " + text)
	}
	return dimStyle.Render("  " + text)
}

func (m *Model) dashboardView() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(web.DashboardTitle))
	b.WriteString("\n")
	email := ""
	if m.session != nil {
		email = m.sanitizer.Line(m.session.Email)
	}
	b.WriteString(dimStyle.Render("Welcome back, " + email))
	b.WriteString("\n\n")

	b.WriteString(titleStyle.Render(web.CardTitle))
	if m.state.Refreshing {
		b.WriteString("  " + m.spinner.View() + " Refreshing...")
	}
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(web.CardDescription))
	b.WriteString("\n\n")

	switch m.state.Variant() {
	case dashboard.VariantLoading:
		b.WriteString(m.spinner.View() + " " + web.LoadingText)
	case dashboard.VariantEmpty:
		b.WriteString(web.EmptyTitle)
		b.WriteString("\n")
		b.WriteString(dimStyle.Render(web.EmptyHint))
	default:
		b.WriteString(m.table.View())
	}

	b.WriteString("\n\n")
	b.WriteString(dimStyle.Render("r: refresh   l: logout   ↑/↓: scroll   q: quit"))

	return boxStyle.Width(max(m.width-4, 40)).Render(b.String())
}

func (m *Model) toastView() string {
	if m.toast == nil {
		return ""
	}
	style := successStyle
	if m.toast.Kind == dashboard.KindError {
		style = errorStyle
	}
	return style.Render(m.toast.Title+": ") + m.toast.Message + dimStyle.Render("  (esc to dismiss)")
}

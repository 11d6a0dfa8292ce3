package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/newsdesk/internal/state"
)

// renderHeader renders the status bar.
func (m Model) renderHeader() string {
	styles := m.theme.Styles()
	sep := "  "

	parts := []string{styles.Logo.Render("newsdesk")}

	actor := m.actor()
	if actor != "" {
		parts = append(parts, styles.MutedText.Render("as")+" "+styles.Text.Render(actor))
	}

	if m.snapshot.IsOffline() {
		parts = append(parts, styles.DangerText.Render("● OFFLINE"))
	} else if m.snapshot.LastError != nil {
		parts = append(parts, styles.WarningText.Render("● RETRYING"))
	} else {
		parts = append(parts, styles.SuccessText.Render("● LIVE"))
	}

	if m.busy {
		parts = append(parts, styles.InfoText.Render("working..."))
	}

	if !m.lastUpdated.IsZero() {
		parts = append(parts, styles.FaintText.Render(m.lastUpdated.Format("15:04:05")))
	}

	return styles.Header.Width(m.width).Render(strings.Join(parts, sep))
}

// renderBanner explains why the data on screen may not be authoritative.
func (m Model) renderBanner() string {
	styles := m.theme.Styles()
	q := m.snapshot.Queue(m.tab)

	var msg string
	switch {
	case !q.Loaded:
		return ""
	case q.Source == state.SourceDegraded:
		msg = "DEGRADED: backend unreachable and nothing mirrored, showing placeholder items"
	case q.Source == state.SourceMirror:
		msg = "OFFLINE: showing the last mirrored copy from " + q.FetchedAt.Format("15:04:05")
	case m.snapshot.IsOffline():
		msg = fmt.Sprintf("OFFLINE: %d refreshes failed", m.snapshot.ConsecutiveFailures)
	default:
		return ""
	}
	return styles.Banner.Width(m.width).Render(msg)
}

// renderTabs renders the queue selector.
func (m Model) renderTabs() string {
	styles := m.theme.Styles()
	var parts []string
	for i, status := range tabs {
		label := fmt.Sprintf("%d %s (%d)", i+1, titleCase(string(status)), len(m.snapshot.Queue(status).Items))
		if m.currentView == ViewQueue && status == m.tab {
			parts = append(parts, styles.TabOn.Render(label))
		} else {
			parts = append(parts, styles.Tab.Render(label))
		}
	}
	logs := "l Logs"
	if m.currentView == ViewLogs {
		parts = append(parts, styles.TabOn.Render(logs))
	} else {
		parts = append(parts, styles.Tab.Render(logs))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

// renderFooter shows the reject prompt, a flash message or key hints.
func (m Model) renderFooter() string {
	styles := m.theme.Styles()
	if m.rejecting {
		return styles.Footer.Width(m.width).Render(m.reasonInput.View())
	}
	if m.flash != "" {
		style := styles.SuccessText
		if m.flashErr {
			style = styles.DangerText
		}
		return styles.Footer.Width(m.width).Render(style.Render(m.flash))
	}

	var hints []string
	for _, b := range m.keys.ShortHelp() {
		h := b.Help()
		hints = append(hints, h.Key+" "+h.Desc)
	}
	return styles.Footer.Width(m.width).Render(strings.Join(hints, "  "))
}

func (m Model) actor() string {
	if m.desk == nil {
		return ""
	}
	a := m.desk.Actor()
	if a.ID == "" {
		return string(a.Role)
	}
	return fmt.Sprintf("%s (%s)", a.ID, a.Role)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// truncate shortens s to width runes with an ellipsis.
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return string(r[:width-1]) + "…"
}

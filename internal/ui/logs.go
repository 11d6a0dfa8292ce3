package ui

import (
	"strings"

	"github.com/five82/newsdesk/internal/logtail"
)

// logFetchLimit caps how many lines the log view reads per refresh.
const logFetchLimit = 500

// updateLogViewport renders the cached entries into the viewport.
func (m *Model) updateLogViewport() {
	if !m.ready {
		return
	}
	styles := m.theme.Styles()
	if len(m.logEntries) == 0 {
		m.logViewport.SetContent(styles.MutedText.Render("No log output yet (" + m.logPath + ")"))
		return
	}

	lines := make([]string, 0, len(m.logEntries))
	for _, e := range m.logEntries {
		lines = append(lines, m.renderLogEntry(e))
	}
	m.logViewport.SetContent(strings.Join(lines, "\n"))
	if m.follow {
		m.logViewport.GotoBottom()
	}
}

func (m Model) renderLogEntry(e logtail.Entry) string {
	styles := m.theme.Styles()
	if e.Component == "" {
		return styles.Text.Render(e.Raw)
	}

	msg := styles.Text
	switch e.Level() {
	case "error":
		msg = styles.DangerText
	case "warn":
		msg = styles.WarningText
	}

	ts := ""
	if !e.Time.IsZero() {
		ts = styles.FaintText.Render(e.Time.Local().Format("15:04:05")) + " "
	}
	return ts + styles.AccentText.Render("["+e.Component+"]") + " " + msg.Render(e.Message)
}

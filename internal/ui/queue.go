package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/newsdesk/internal/content"
)

// renderQueue renders the item list beside the detail pane.
func (m Model) renderQueue() string {
	styles := m.theme.Styles()
	items := m.items()
	height := m.bodyHeight()

	if len(items) == 0 {
		msg := "Nothing " + string(m.tab)
		if !m.snapshot.Queue(m.tab).Loaded {
			msg = "Loading " + string(m.tab) + "..."
		}
		return lipgloss.Place(m.width, height, lipgloss.Center, lipgloss.Center, styles.MutedText.Render(msg))
	}

	listWidth := m.width * 2 / 5
	if listWidth < 24 {
		listWidth = 24
	}
	detailWidth := m.width - listWidth - 4
	if detailWidth < 20 {
		detailWidth = 20
	}

	list := m.renderList(items, listWidth, height)
	detail := styles.Pane.Width(detailWidth).Height(height - 2).Render(m.renderDetail(detailWidth - 4))
	return lipgloss.JoinHorizontal(lipgloss.Top, list, " ", detail)
}

// renderList keeps the selected row inside the visible window.
func (m Model) renderList(items []content.Item, width, height int) string {
	styles := m.theme.Styles()
	row := m.selected[m.tab]

	start := 0
	if row >= height {
		start = row - height + 1
	}
	end := start + height
	if end > len(items) {
		end = len(items)
	}

	lines := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		item := items[i]
		title := item.Title
		if item.Placeholder {
			title = "· " + title
		}
		line := truncate(title, width-2)
		line = fmt.Sprintf(" %-*s", width-1, line)
		if i == row {
			lines = append(lines, styles.Selected.Render(line))
		} else {
			lines = append(lines, styles.Text.Render(line))
		}
	}
	return strings.Join(lines, "\n")
}

// renderDetail describes the selected item.
func (m Model) renderDetail(width int) string {
	styles := m.theme.Styles()
	item, ok := m.selectedItem()
	if !ok {
		return styles.MutedText.Render("Nothing selected")
	}

	badge := string(item.Status)
	if item.Placeholder {
		badge = "placeholder"
	}

	var b strings.Builder
	b.WriteString(styles.AccentText.Bold(true).Render(truncate(item.Title, width)))
	b.WriteString("\n")
	b.WriteString(styles.StatusStyle(badge).Render(strings.ToUpper(badge)))
	b.WriteString("\n\n")

	field := func(label, value string) {
		if strings.TrimSpace(value) == "" {
			return
		}
		b.WriteString(styles.FaintText.Render(fmt.Sprintf("%-9s", label)))
		b.WriteString(styles.Text.Render(truncate(value, width-9)))
		b.WriteString("\n")
	}
	field("ID", item.ID)
	field("Category", item.Category)
	if !item.Region.IsZero() {
		field("Region", strings.Trim(item.Region.State+" / "+item.Region.District, " /"))
	}
	field("Type", string(item.ContentType))
	field("Author", item.AuthorID)
	if !item.CreatedAt.IsZero() {
		field("Created", item.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	field("Image", item.Media.FeaturedImage)
	field("Video", item.Media.VideoSource)

	if item.Status == content.StatusRejected {
		b.WriteString("\n")
		b.WriteString(styles.DangerText.Render("Rejected: "))
		b.WriteString(styles.Text.Render(item.RejectionReason))
		b.WriteString("\n")
	}

	if body := strings.TrimSpace(item.Body); body != "" {
		b.WriteString("\n")
		b.WriteString(styles.MutedText.Width(width).Render(body))
	}
	return b.String()
}

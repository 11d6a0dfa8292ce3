package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/newsdesk/internal/content"
	"github.com/five82/newsdesk/internal/logtail"
	"github.com/five82/newsdesk/internal/prefs"
	"github.com/five82/newsdesk/internal/state"
	"github.com/five82/newsdesk/internal/workflow"
)

// Desk is the part of the editorial engine the UI drives.
type Desk interface {
	Snapshot() state.Snapshot
	Refresh(ctx context.Context) error
	SetStatus(ctx context.Context, id string, status content.Status, reason string) (content.Item, error)
	Resubmit(ctx context.Context, id string) (content.Item, error)
	Actor() workflow.Actor
}

// View represents the current active view.
type View int

const (
	ViewQueue View = iota
	ViewLogs
)

var tabs = []content.Status{content.StatusPending, content.StatusApproved, content.StatusRejected}

// Options configures the UI.
type Options struct {
	Context   context.Context
	Desk      Desk
	LogPath   string
	PollTick  time.Duration
	ThemeName string
	Queue     string
	PrefsPath string
}

// Model is the root application state for Bubble Tea.
type Model struct {
	// Configuration
	ctx       context.Context
	desk      Desk
	logPath   string
	prefsPath string
	pollTick  time.Duration
	keys      keyMap

	// UI state
	theme       Theme
	currentView View
	tab         content.Status
	width       int
	height      int
	ready       bool
	showHelp    bool

	// Data state
	snapshot    state.Snapshot
	lastUpdated time.Time
	selected    map[content.Status]int

	// Action state
	busy     bool
	flash    string
	flashErr bool

	// Reject prompt
	rejecting   bool
	rejectID    string
	reasonInput textinput.Model

	// Log state
	logViewport viewport.Model
	logEntries  []logtail.Entry
	follow      bool
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	pollTick := opts.PollTick
	if pollTick <= 0 {
		pollTick = time.Second
	}

	themeName := opts.ThemeName
	if themeName == "" {
		themeName = "Dracula"
	}

	tab := content.Status(strings.ToLower(strings.TrimSpace(opts.Queue)))
	if !tab.Valid() {
		tab = content.StatusPending
	}

	input := textinput.New()
	input.Placeholder = workflow.DefaultRejectionReason
	input.CharLimit = 280
	input.Prompt = "reason> "

	return Model{
		ctx:         ctx,
		desk:        opts.Desk,
		logPath:     opts.LogPath,
		prefsPath:   opts.PrefsPath,
		pollTick:    pollTick,
		keys:        DefaultKeyMap(),
		theme:       GetTheme(themeName),
		currentView: ViewQueue,
		tab:         tab,
		selected:    make(map[content.Status]int),
		reasonInput: input,
		follow:      true,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{tickCmd(m.pollTick)}
	if m.desk != nil {
		cmds = append(cmds, fetchSnapshotCmd(m.desk))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if !m.ready {
			m.logViewport = viewport.New(msg.Width, m.bodyHeight())
		}
		m.ready = true
		m.logViewport.Width = msg.Width
		m.logViewport.Height = m.bodyHeight()
		m.updateLogViewport()
		return m, nil

	case tickMsg:
		return m.handleTick()

	case snapshotMsg:
		m.snapshot = state.Snapshot(msg)
		m.lastUpdated = time.Now()
		m.clampSelection()
		return m, nil

	case actionMsg:
		m.busy = false
		if msg.err != nil {
			m.setFlash(fmt.Sprintf("%s failed: %v", msg.verb, msg.err), true)
		} else {
			m.setFlash(fmt.Sprintf("%s %q", msg.verb, msg.item.Title), false)
		}
		return m, fetchSnapshotCmd(m.desk)

	case refreshMsg:
		m.busy = false
		if msg.err != nil {
			m.setFlash("refresh incomplete: "+msg.err.Error(), true)
		} else {
			m.setFlash("refreshed", false)
		}
		return m, fetchSnapshotCmd(m.desk)

	case logMsg:
		if msg.err == nil {
			m.logEntries = msg.entries
			m.updateLogViewport()
		}
		return m, nil
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	if banner := m.renderBanner(); banner != "" {
		b.WriteString(banner)
		b.WriteString("\n")
	}
	b.WriteString(m.renderTabs())
	b.WriteString("\n")
	switch m.currentView {
	case ViewLogs:
		b.WriteString(m.logViewport.View())
	default:
		b.WriteString(m.renderQueue())
	}
	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}
	if m.rejecting {
		return m.handleRejectKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil
	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.savePrefs()
		return m, nil
	case key.Matches(msg, m.keys.Refresh):
		if m.busy || m.desk == nil {
			return m, nil
		}
		m.busy = true
		return m, refreshCmd(m.ctx, m.desk)
	case key.Matches(msg, m.keys.NextTab):
		m.switchTab(1)
		return m, nil
	case key.Matches(msg, m.keys.PrevTab):
		m.switchTab(-1)
		return m, nil
	case key.Matches(msg, m.keys.ShowPending):
		m.showTab(content.StatusPending)
		return m, nil
	case key.Matches(msg, m.keys.ShowApproved):
		m.showTab(content.StatusApproved)
		return m, nil
	case key.Matches(msg, m.keys.ShowRejected):
		m.showTab(content.StatusRejected)
		return m, nil
	case key.Matches(msg, m.keys.ShowLogs):
		m.currentView = ViewLogs
		return m, readLogsCmd(m.logPath)
	case key.Matches(msg, m.keys.Escape):
		m.currentView = ViewQueue
		return m, nil
	}

	if m.currentView == ViewLogs {
		return m.handleLogsKey(msg)
	}
	return m.handleQueueKey(msg)
}

// handleQueueKey processes navigation and review actions.
func (m Model) handleQueueKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	items := m.items()
	row := m.selected[m.tab]

	switch {
	case key.Matches(msg, m.keys.Down):
		if row < len(items)-1 {
			m.selected[m.tab] = row + 1
		}
	case key.Matches(msg, m.keys.Up):
		if row > 0 {
			m.selected[m.tab] = row - 1
		}
	case key.Matches(msg, m.keys.Top):
		m.selected[m.tab] = 0
	case key.Matches(msg, m.keys.Bottom):
		if len(items) > 0 {
			m.selected[m.tab] = len(items) - 1
		}
	case key.Matches(msg, m.keys.Approve):
		item, ok := m.actionable(content.StatusPending, "approve")
		if !ok {
			return m, nil
		}
		m.busy = true
		return m, setStatusCmd(m.ctx, m.desk, item, content.StatusApproved, "")
	case key.Matches(msg, m.keys.Reject):
		item, ok := m.actionable(content.StatusPending, "reject")
		if !ok {
			return m, nil
		}
		m.rejecting = true
		m.rejectID = item.ID
		m.reasonInput.SetValue("")
		cmd := m.reasonInput.Focus()
		return m, cmd
	case key.Matches(msg, m.keys.Resubmit):
		item, ok := m.actionable(content.StatusRejected, "resubmit")
		if !ok {
			return m, nil
		}
		m.busy = true
		return m, resubmitCmd(m.ctx, m.desk, item)
	}
	return m, nil
}

// handleRejectKey drives the reason prompt.
func (m Model) handleRejectKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape):
		m.rejecting = false
		m.reasonInput.Blur()
		m.setFlash("reject cancelled", false)
		return m, nil
	case key.Matches(msg, m.keys.Confirm):
		m.rejecting = false
		m.reasonInput.Blur()
		item, ok := m.find(m.rejectID)
		if !ok {
			m.setFlash("item is no longer in the queue", true)
			return m, nil
		}
		m.busy = true
		return m, setStatusCmd(m.ctx, m.desk, item, content.StatusRejected, strings.TrimSpace(m.reasonInput.Value()))
	}
	var cmd tea.Cmd
	m.reasonInput, cmd = m.reasonInput.Update(msg)
	return m, cmd
}

// handleLogsKey scrolls the log pane.
func (m Model) handleLogsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.ToggleFollow) {
		m.follow = !m.follow
		if m.follow {
			m.logViewport.GotoBottom()
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.logViewport, cmd = m.logViewport.Update(msg)
	if !m.logViewport.AtBottom() {
		m.follow = false
	}
	return m, cmd
}

// handleTick processes the polling tick.
func (m Model) handleTick() (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	if m.desk != nil {
		cmds = append(cmds, fetchSnapshotCmd(m.desk))
	}
	if m.currentView == ViewLogs && m.follow {
		cmds = append(cmds, readLogsCmd(m.logPath))
	}
	cmds = append(cmds, tickCmd(m.pollTick))
	return m, tea.Batch(cmds...)
}

// actionable returns the selected item when the current tab allows verb.
func (m *Model) actionable(from content.Status, verb string) (content.Item, bool) {
	if m.busy {
		m.setFlash("another change is still in flight", true)
		return content.Item{}, false
	}
	if m.tab != from {
		m.setFlash(fmt.Sprintf("%s works on the %s queue", verb, from), true)
		return content.Item{}, false
	}
	item, ok := m.selectedItem()
	if !ok {
		m.setFlash("nothing selected", true)
		return content.Item{}, false
	}
	if item.Placeholder {
		m.setFlash("placeholder items cannot be changed", true)
		return content.Item{}, false
	}
	return item, true
}

func (m *Model) switchTab(delta int) {
	idx := 0
	for i, s := range tabs {
		if s == m.tab {
			idx = i
		}
	}
	idx = (idx + delta + len(tabs)) % len(tabs)
	m.showTab(tabs[idx])
}

func (m *Model) showTab(status content.Status) {
	m.tab = status
	m.currentView = ViewQueue
	m.savePrefs()
}

func (m *Model) savePrefs() {
	if m.prefsPath == "" {
		return
	}
	_ = prefs.Save(m.prefsPath, prefs.Prefs{Theme: m.theme.Name, Queue: string(m.tab)})
}

func (m *Model) setFlash(text string, isErr bool) {
	m.flash = text
	m.flashErr = isErr
}

func (m Model) items() []content.Item {
	return m.snapshot.Queue(m.tab).Items
}

func (m Model) selectedItem() (content.Item, bool) {
	items := m.items()
	row := m.selected[m.tab]
	if row < 0 || row >= len(items) {
		return content.Item{}, false
	}
	return items[row], true
}

func (m Model) find(id string) (content.Item, bool) {
	for _, status := range tabs {
		items := m.snapshot.Queue(status).Items
		if i := content.IndexOf(items, id); i >= 0 {
			return items[i], true
		}
	}
	return content.Item{}, false
}

func (m *Model) clampSelection() {
	for _, status := range tabs {
		n := len(m.snapshot.Queue(status).Items)
		if m.selected[status] >= n {
			m.selected[status] = n - 1
		}
		if m.selected[status] < 0 {
			m.selected[status] = 0
		}
	}
}

// bodyHeight is what remains after header, tabs and footer.
func (m Model) bodyHeight() int {
	h := m.height - 4
	if h < 3 {
		h = 3
	}
	return h
}

// Messages

type tickMsg time.Time

type snapshotMsg state.Snapshot

type actionMsg struct {
	verb string
	item content.Item
	err  error
}

type refreshMsg struct{ err error }

type logMsg struct {
	entries []logtail.Entry
	err     error
}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchSnapshotCmd(d Desk) tea.Cmd {
	if d == nil {
		return nil
	}
	return func() tea.Msg {
		return snapshotMsg(d.Snapshot())
	}
}

func setStatusCmd(ctx context.Context, d Desk, item content.Item, to content.Status, reason string) tea.Cmd {
	verb := "approved"
	if to == content.StatusRejected {
		verb = "rejected"
	}
	return func() tea.Msg {
		updated, err := d.SetStatus(ctx, item.ID, to, reason)
		if err != nil {
			updated = item
		}
		return actionMsg{verb: verb, item: updated, err: err}
	}
}

func resubmitCmd(ctx context.Context, d Desk, item content.Item) tea.Cmd {
	return func() tea.Msg {
		updated, err := d.Resubmit(ctx, item.ID)
		if err != nil {
			updated = item
		}
		return actionMsg{verb: "resubmitted", item: updated, err: err}
	}
}

func refreshCmd(ctx context.Context, d Desk) tea.Cmd {
	return func() tea.Msg {
		return refreshMsg{err: d.Refresh(ctx)}
	}
}

func readLogsCmd(path string) tea.Cmd {
	if path == "" {
		return nil
	}
	return func() tea.Msg {
		lines, err := logtail.Read(path, logFetchLimit)
		if err != nil {
			return logMsg{err: err}
		}
		return logMsg{entries: logtail.Filter(lines, "")}
	}
}

// Run starts the Bubble Tea program.
func Run(opts Options) error {
	m := New(opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(m.ctx))
	_, err := p.Run()
	if err != nil && m.ctx.Err() != nil {
		return nil
	}
	return err
}

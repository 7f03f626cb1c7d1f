package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/wordwrap"
	"github.com/nzaccagnino/go-notepad/internal/api"
	"github.com/nzaccagnino/go-notepad/internal/db"
	"github.com/nzaccagnino/go-notepad/internal/i18n"
	"github.com/nzaccagnino/go-notepad/internal/syncer"
)

type Mode int

const (
	ModeNormal Mode = iota
	ModeEditing
	ModeNewTab
	ModeRename
	ModeConfirmClose
	ModeHelp
)

type TabStore interface {
	LoadAllTabs(ctx context.Context) ([]db.Tab, error)
	CloseTab(ctx context.Context, id int64) error
}

type Saver interface {
	Schedule(tabs []db.Tab)
	Flush(ctx context.Context) error
	Pending() bool
}

type Reconciler interface {
	Push(ctx context.Context) (*syncer.PushResult, error)
	Pull(ctx context.Context) (*syncer.PullResult, error)
}

// SyncStatus reports background sync runs.
type SyncStatus interface {
	LastRun() (time.Time, error)
}

// Options wires the model to storage and sync. Reconciler and Scheduler are
// nil when sync is turned off.
type Options struct {
	Store      TabStore
	Saver      Saver
	Reconciler Reconciler
	Scheduler  SyncStatus
}

const listWidth = 30

type Model struct {
	store      TabStore
	saver      Saver
	reconciler Reconciler
	scheduler  SyncStatus

	tabs   []db.Tab
	cursor int
	offset int

	mode      Mode
	textarea  textarea.Model
	textinput textinput.Model
	help      help.Model
	keys      KeyMap

	width  int
	height int

	syncing    bool
	importing  bool
	syncStatus string
	lastSync   time.Time
	lastSeen   time.Time

	err error
}

type tickMsg time.Time
type tabsLoadedMsg struct {
	tabs         []db.Tab
	metadataOnly bool
}
type savedMsg struct{}
type tabClosedMsg struct{}
type errMsg error
type pushDoneMsg struct {
	result *syncer.PushResult
	err    error
}
type pullDoneMsg struct {
	result *syncer.PullResult
	err    error
}

func NewModel(opts Options) Model {
	t := i18n.T()

	ti := textinput.New()
	ti.Placeholder = t.NamePlaceholder
	ti.CharLimit = 256

	ta := textarea.New()
	ta.Placeholder = t.NotePlaceholder
	ta.ShowLineNumbers = false
	ta.CharLimit = 0

	return Model{
		store:      opts.Store,
		saver:      opts.Saver,
		reconciler: opts.Reconciler,
		scheduler:  opts.Scheduler,
		keys:       NewKeyMap(),
		textinput:  ti,
		textarea:   ta,
		help:       help.New(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadTabs(false), m.tickCmd())
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(time.Second*3, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) loadTabs(metadataOnly bool) tea.Cmd {
	return func() tea.Msg {
		tabs, err := m.store.LoadAllTabs(context.Background())
		if err != nil {
			return errMsg(err)
		}
		return tabsLoadedMsg{tabs: tabs, metadataOnly: metadataOnly}
	}
}

func (m Model) flush() tea.Cmd {
	return func() tea.Msg {
		if err := m.saver.Flush(context.Background()); err != nil {
			return errMsg(err)
		}
		return savedMsg{}
	}
}

func (m Model) closeTab(id int64) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		// Write any pending snapshot first so it cannot resurrect the tab.
		if err := m.saver.Flush(ctx); err != nil {
			return errMsg(err)
		}
		if err := m.store.CloseTab(ctx, id); err != nil {
			return errMsg(err)
		}
		return tabClosedMsg{}
	}
}

func (m Model) push() tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		if err := m.saver.Flush(ctx); err != nil {
			return pushDoneMsg{err: err}
		}
		res, err := m.reconciler.Push(ctx)
		return pushDoneMsg{result: res, err: err}
	}
}

func (m Model) pull() tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		if err := m.saver.Flush(ctx); err != nil {
			return pullDoneMsg{err: err}
		}
		res, err := m.reconciler.Pull(ctx)
		return pullDoneMsg{result: res, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.textarea.SetWidth(m.contentWidth() - 4)
		m.textarea.SetHeight(m.contentHeight() - 2)
		m.help.Width = msg.Width

	case tickMsg:
		if m.scheduler != nil {
			if last, err := m.scheduler.LastRun(); !last.IsZero() && last.After(m.lastSeen) {
				m.lastSeen = last
				m.lastSync = last
				if err != nil && !errors.Is(err, context.Canceled) {
					m.syncStatus = i18n.T().SyncError
				}
				cmds = append(cmds, m.loadTabs(true))
			}
		}
		cmds = append(cmds, m.tickCmd())

	case tabsLoadedMsg:
		if msg.metadataOnly {
			m.mergeMetadata(msg.tabs)
		} else {
			m.tabs = msg.tabs
			if m.cursor >= len(m.tabs) {
				m.cursor = len(m.tabs) - 1
			}
			m.syncEditor()
		}

	case savedMsg:
		m.err = nil
		cmds = append(cmds, m.loadTabs(true))

	case tabClosedMsg:
		cmds = append(cmds, m.loadTabs(false))

	case errMsg:
		m.err = msg

	case pushDoneMsg:
		m.syncing = false
		m.syncStatus = m.pushStatus(msg)
		if msg.err == nil {
			m.lastSync = time.Now()
		}
		cmds = append(cmds, m.loadTabs(true))

	case pullDoneMsg:
		m.importing = false
		m.syncStatus = m.pullStatus(msg)
		cmds = append(cmds, m.loadTabs(false))

	case tea.KeyMsg:
		switch m.mode {
		case ModeEditing:
			return m.handleEditingKeys(msg)
		case ModeNewTab, ModeRename:
			return m.handleNameKeys(msg)
		case ModeConfirmClose:
			return m.handleConfirmCloseKeys(msg)
		case ModeHelp:
			if key.Matches(msg, m.keys.Escape) || key.Matches(msg, m.keys.Help) {
				m.mode = ModeNormal
			}
			return m, nil
		}
		return m.handleNormalKeys(msg)
	}

	return m, tea.Batch(cmds...)
}

// mergeMetadata refreshes sync fields from the store while keeping the
// in-memory content, which may be ahead of what was last written.
func (m *Model) mergeMetadata(stored []db.Tab) {
	byID := make(map[int64]db.Tab, len(stored))
	for _, t := range stored {
		byID[t.ID] = t
	}
	for i := range m.tabs {
		s, ok := byID[m.tabs[i].ID]
		if !ok {
			continue
		}
		m.tabs[i].NoteID = s.NoteID
		m.tabs[i].LastSynced = s.LastSynced
		if s.Content == m.tabs[i].Content {
			m.tabs[i].LastModified = s.LastModified
		}
	}
}

func (m *Model) syncEditor() {
	if tab := m.current(); tab != nil {
		m.textarea.SetValue(tab.Content)
	}
}

func (m Model) current() *db.Tab {
	if m.cursor >= 0 && m.cursor < len(m.tabs) {
		return &m.tabs[m.cursor]
	}
	return nil
}

func (m Model) snapshot() []db.Tab {
	out := make([]db.Tab, len(m.tabs))
	copy(out, m.tabs)
	return out
}

func (m Model) pushStatus(msg pushDoneMsg) string {
	t := i18n.T()
	if msg.err != nil {
		if errors.Is(msg.err, api.ErrNotConfigured) {
			return t.NotConfigured
		}
		return t.SyncError + ": " + msg.err.Error()
	}
	return fmt.Sprintf(t.SyncSummary, msg.result.Synced, msg.result.Failed)
}

func (m Model) pullStatus(msg pullDoneMsg) string {
	t := i18n.T()
	if msg.err != nil {
		if errors.Is(msg.err, api.ErrNotConfigured) {
			return t.NotConfigured
		}
		return t.SyncError + ": " + msg.err.Error()
	}
	return fmt.Sprintf(t.ImportSummary, msg.result.Created, msg.result.Updated)
}

func (m Model) handleNormalKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	t := i18n.T()

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Sequence(m.flush(), tea.Quit)

	case key.Matches(msg, m.keys.Help):
		m.mode = ModeHelp

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
			if m.cursor < m.offset {
				m.offset = m.cursor
			}
			m.syncEditor()
		}

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.tabs)-1 {
			m.cursor++
			if visible := m.contentHeight() - 2; visible > 0 && m.cursor >= m.offset+visible {
				m.offset = m.cursor - visible + 1
			}
			m.syncEditor()
		}

	case key.Matches(msg, m.keys.Edit):
		if m.current() != nil && !m.importing {
			m.mode = ModeEditing
			m.syncEditor()
			cmd := m.textarea.Focus()
			return m, cmd
		}

	case key.Matches(msg, m.keys.New):
		m.mode = ModeNewTab
		m.textinput.SetValue("")
		m.textinput.Placeholder = fmt.Sprintf("Note %d.md", m.nextID())
		cmd := m.textinput.Focus()
		return m, cmd

	case key.Matches(msg, m.keys.Rename):
		if tab := m.current(); tab != nil {
			m.mode = ModeRename
			m.textinput.SetValue(tab.Name)
			m.textinput.Placeholder = t.NamePlaceholder
			cmd := m.textinput.Focus()
			return m, cmd
		}

	case key.Matches(msg, m.keys.Close):
		if m.current() != nil {
			m.mode = ModeConfirmClose
		}

	case key.Matches(msg, m.keys.Save):
		return m, m.flush()

	case key.Matches(msg, m.keys.Sync):
		if m.reconciler == nil {
			m.syncStatus = t.SyncOff
			return m, nil
		}
		if !m.syncing && !m.importing {
			m.syncing = true
			m.syncStatus = t.Syncing
			return m, m.push()
		}

	case key.Matches(msg, m.keys.Import):
		if m.reconciler == nil {
			m.syncStatus = t.SyncOff
			return m, nil
		}
		if !m.syncing && !m.importing {
			m.importing = true
			m.syncStatus = t.Importing
			return m, m.pull()
		}
	}

	return m, nil
}

func (m Model) handleEditingKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch {
	case key.Matches(msg, m.keys.Escape):
		m.mode = ModeNormal
		m.textarea.Blur()
		return m, m.flush()

	case key.Matches(msg, m.keys.Save):
		return m, m.flush()

	case key.Matches(msg, m.keys.Quit):
		return m, tea.Sequence(m.flush(), tea.Quit)

	case key.Matches(msg, m.keys.Indent):
		m.textarea.InsertString("    ")

	default:
		m.textarea, cmd = m.textarea.Update(msg)
	}

	if tab := m.current(); tab != nil && tab.Content != m.textarea.Value() {
		tab.Content = m.textarea.Value()
		m.saver.Schedule(m.snapshot())
	}
	return m, cmd
}

func (m Model) handleNameKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg.Type {
	case tea.KeyEsc:
		m.mode = ModeNormal
		m.textinput.Blur()
		return m, nil

	case tea.KeyEnter:
		name := strings.TrimSpace(m.textinput.Value())
		if m.mode == ModeNewTab {
			m.addTab(name)
		} else if tab := m.current(); tab != nil && name != "" {
			tab.Name = name
			tab.Type = db.TabTypeForName(name)
		}
		m.mode = ModeNormal
		m.textinput.Blur()
		m.saver.Schedule(m.snapshot())
		return m, m.flush()
	}

	m.textinput, cmd = m.textinput.Update(msg)
	return m, cmd
}

func (m *Model) addTab(name string) {
	id := m.nextID()
	if name == "" {
		name = fmt.Sprintf("Note %d.md", id)
	}
	m.tabs = append(m.tabs, db.Tab{ID: id, Name: name, Type: db.TabTypeForName(name)})
	m.cursor = len(m.tabs) - 1
	m.syncEditor()
}

func (m Model) nextID() int64 {
	var max int64
	for _, t := range m.tabs {
		if t.ID > max {
			max = t.ID
		}
	}
	return max + 1
}

func (m Model) handleConfirmCloseKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.mode = ModeNormal
	switch strings.ToLower(msg.String()) {
	case "y", "s", "enter":
		tab := m.current()
		if tab == nil {
			return m, nil
		}
		id := tab.ID
		m.tabs = append(m.tabs[:m.cursor:m.cursor], m.tabs[m.cursor+1:]...)
		if m.cursor >= len(m.tabs) && m.cursor > 0 {
			m.cursor--
		}
		m.syncEditor()
		return m, m.closeTab(id)
	}
	return m, nil
}

func (m Model) contentWidth() int {
	return m.width - listWidth
}

func (m Model) contentHeight() int {
	return m.height - 6
}

func (m Model) View() string {
	if m.width == 0 {
		return ""
	}

	switch m.mode {
	case ModeHelp:
		return m.renderHelp()
	case ModeNewTab, ModeRename:
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.renderNameDialog())
	case ModeConfirmClose:
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.renderConfirmDialog())
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top, m.renderList(), m.renderContent())
	return lipgloss.JoinVertical(lipgloss.Left, m.renderHeader(), body, m.renderStatus())
}

func (m Model) renderHeader() string {
	title := ""
	if tab := m.current(); tab != nil {
		title = tab.Name
	}
	return HeaderStyle.Width(m.width - 2).Render(TitleStyle.Render(title))
}

func (m Model) renderList() string {
	style := PanelStyle
	if m.mode != ModeEditing {
		style = ActivePanelStyle
	}

	height := m.contentHeight() - 2
	maxLen := listWidth - 10
	var items []string
	for i := m.offset; i < len(m.tabs) && i < m.offset+height; i++ {
		tab := m.tabs[i]
		line := fmt.Sprintf(" %s %-*s ", m.syncMark(tab), maxLen, truncate(tab.Name, maxLen))
		if i == m.cursor {
			line = SelectedStyle.Render(line)
		}
		items = append(items, line)
	}
	for len(items) < height {
		items = append(items, "")
	}

	return style.Width(listWidth - 2).Height(m.contentHeight()).Render(strings.Join(items, "\n"))
}

func (m Model) syncMark(tab db.Tab) string {
	switch {
	case tab.NoteID == "":
		return LocalMark
	case syncer.NeedsSync(tab):
		return PendingMark
	default:
		return SyncedStyle.Render(SyncedMark)
	}
}

func (m Model) renderContent() string {
	style := PanelStyle
	var content string
	if m.mode == ModeEditing {
		style = ActivePanelStyle
		content = m.textarea.View()
	} else if tab := m.current(); tab != nil {
		content = wordwrap.String(tab.Content, m.contentWidth()-6)
		if content == "" {
			content = MutedStyle.Render(i18n.T().NotePlaceholder)
		}
	}
	return style.Width(m.contentWidth() - 2).Height(m.contentHeight()).Render(content)
}

func (m Model) renderStatus() string {
	t := i18n.T()

	mode := t.ModeNormal
	if m.mode == ModeEditing {
		mode = t.ModeEdit
	}
	left := fmt.Sprintf(" %s | %d %s", mode, len(m.tabs), strings.ToLower(t.Tabs))

	if m.reconciler == nil {
		left += " | " + MutedStyle.Render(t.SyncOff)
	} else {
		last := t.Never
		if !m.lastSync.IsZero() {
			last = humanize.Time(m.lastSync)
		}
		left += " | " + MutedStyle.Render(fmt.Sprintf(t.LastSync, last))
	}
	if m.syncStatus != "" {
		left += " | " + m.syncStatus
	}
	if m.err != nil {
		left += " | " + ErrorStyle.Render(t.Error+": "+m.err.Error())
	}

	right := fmt.Sprintf("Ctrl+H %s", t.Help)
	if m.saver != nil && m.saver.Pending() {
		right = "* " + t.Unsaved + " | " + right
	}

	padding := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if padding < 0 {
		padding = 0
	}
	return StatusBarStyle.Render(left + strings.Repeat(" ", padding) + right)
}

func (m Model) renderNameDialog() string {
	t := i18n.T()
	title := t.NewTab
	if m.mode == ModeRename {
		title = t.RenameTab
	}
	content := lipgloss.JoinVertical(
		lipgloss.Center,
		TitleStyle.Render(title),
		"",
		m.textinput.View(),
		"",
		MutedStyle.Render(t.EnterConfirm+"  "+t.EscCancel),
	)
	return DialogStyle.Width(44).Render(content)
}

func (m Model) renderConfirmDialog() string {
	t := i18n.T()
	name := ""
	if tab := m.current(); tab != nil {
		name = tab.Name
	}
	content := lipgloss.JoinVertical(
		lipgloss.Center,
		TitleStyle.Render(t.CloseTab),
		"",
		fmt.Sprintf(t.CloseConfirm, name),
	)
	return DialogStyle.Width(44).Render(content)
}

func (m Model) renderHelp() string {
	t := i18n.T()
	content := lipgloss.JoinVertical(
		lipgloss.Left,
		TitleStyle.Render(t.Help),
		"",
		m.help.FullHelpView(m.keys.FullHelp()),
		"",
		MutedStyle.Render(t.EscCancel),
	)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, DialogStyle.Render(content))
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

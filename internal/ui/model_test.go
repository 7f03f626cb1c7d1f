package ui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/nzaccagnino/go-notepad/internal/api"
	"github.com/nzaccagnino/go-notepad/internal/db"
	"github.com/nzaccagnino/go-notepad/internal/i18n"
	"github.com/nzaccagnino/go-notepad/internal/syncer"
)

type fakeStore struct {
	tabs   []db.Tab
	closed []int64
}

func (s *fakeStore) LoadAllTabs(ctx context.Context) ([]db.Tab, error) {
	return append([]db.Tab(nil), s.tabs...), nil
}

func (s *fakeStore) CloseTab(ctx context.Context, id int64) error {
	s.closed = append(s.closed, id)
	return nil
}

type fakeSaver struct {
	mu        sync.Mutex
	scheduled [][]db.Tab
	flushes   int
}

func (s *fakeSaver) Schedule(tabs []db.Tab) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduled = append(s.scheduled, tabs)
}

func (s *fakeSaver) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushes++
	return nil
}

func (s *fakeSaver) Pending() bool { return false }

func (s *fakeSaver) last() []db.Tab {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.scheduled) == 0 {
		return nil
	}
	return s.scheduled[len(s.scheduled)-1]
}

type fakeReconciler struct {
	pushErr error
}

func (r *fakeReconciler) Push(ctx context.Context) (*syncer.PushResult, error) {
	if r.pushErr != nil {
		return nil, r.pushErr
	}
	return &syncer.PushResult{Synced: 2, Failed: 1}, nil
}

func (r *fakeReconciler) Pull(ctx context.Context) (*syncer.PullResult, error) {
	return &syncer.PullResult{Created: 3, Updated: 1}, nil
}

func newTestModel(t *testing.T, tabs ...db.Tab) (Model, *fakeStore, *fakeSaver) {
	t.Helper()
	i18n.SetLanguage(i18n.English)
	store := &fakeStore{tabs: tabs}
	saver := &fakeSaver{}
	m := NewModel(Options{Store: store, Saver: saver, Reconciler: &fakeReconciler{}})
	m = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})
	m = update(t, m, m.loadTabs(false)())
	return m, store, saver
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func updateCmd(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "ctrl+n":
		return tea.KeyMsg{Type: tea.KeyCtrlN}
	case "ctrl+y":
		return tea.KeyMsg{Type: tea.KeyCtrlY}
	case "ctrl+o":
		return tea.KeyMsg{Type: tea.KeyCtrlO}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestEditingSchedulesSnapshot(t *testing.T) {
	m, _, saver := newTestModel(t, db.Tab{ID: 1, Name: "a.md", Content: "hi"})

	m = update(t, m, keyMsg("i"))
	if m.mode != ModeEditing {
		t.Fatalf("mode = %v", m.mode)
	}
	m = update(t, m, keyMsg("!"))

	got := saver.last()
	if len(got) != 1 || !strings.Contains(got[0].Content, "!") {
		t.Fatalf("scheduled snapshot = %+v", got)
	}

	// The snapshot must not alias the model's slice.
	m.tabs[0].Content = "changed"
	if got[0].Content == "changed" {
		t.Fatal("snapshot shares memory with the model")
	}

	m, cmd := updateCmd(t, m, keyMsg("esc"))
	if m.mode != ModeNormal || cmd == nil {
		t.Fatal("esc should leave edit mode and flush")
	}
	if _, ok := cmd().(savedMsg); !ok || saver.flushes != 1 {
		t.Fatalf("flushes = %d", saver.flushes)
	}
}

func TestNewTabGetsNextID(t *testing.T) {
	m, _, saver := newTestModel(t, db.Tab{ID: 1, Name: "a.md"}, db.Tab{ID: 7, Name: "b.md"})

	m = update(t, m, keyMsg("ctrl+n"))
	if m.mode != ModeNewTab {
		t.Fatalf("mode = %v", m.mode)
	}
	m = update(t, m, keyMsg("enter"))

	if len(m.tabs) != 3 {
		t.Fatalf("tabs = %d", len(m.tabs))
	}
	added := m.tabs[2]
	if added.ID != 8 || added.Name != "Note 8.md" || added.Type != db.TabMarkdown {
		t.Fatalf("added tab = %+v", added)
	}
	if m.cursor != 2 {
		t.Fatalf("cursor = %d", m.cursor)
	}
	if len(saver.last()) != 3 {
		t.Fatal("new tab was not scheduled for saving")
	}
}

func TestRenameSetsType(t *testing.T) {
	m, _, _ := newTestModel(t, db.Tab{ID: 1, Name: "a.md", Type: db.TabMarkdown})

	m = update(t, m, keyMsg("r"))
	m.textinput.SetValue("board.excalidraw")
	m = update(t, m, keyMsg("enter"))

	if m.tabs[0].Name != "board.excalidraw" || m.tabs[0].Type != db.TabExcalidraw {
		t.Fatalf("tab = %+v", m.tabs[0])
	}
}

func TestCloseTabFlushesThenDeletes(t *testing.T) {
	m, store, saver := newTestModel(t, db.Tab{ID: 1, Name: "a.md"}, db.Tab{ID: 2, Name: "b.md"})

	m = update(t, m, keyMsg("j"))
	m = update(t, m, keyMsg("d"))
	if m.mode != ModeConfirmClose {
		t.Fatalf("mode = %v", m.mode)
	}
	m, cmd := updateCmd(t, m, keyMsg("y"))

	if len(m.tabs) != 1 || m.tabs[0].ID != 1 || m.cursor != 0 {
		t.Fatalf("tabs = %+v cursor = %d", m.tabs, m.cursor)
	}
	if _, ok := cmd().(tabClosedMsg); !ok {
		t.Fatal("close command did not finish")
	}
	if saver.flushes != 1 || len(store.closed) != 1 || store.closed[0] != 2 {
		t.Fatalf("flushes = %d closed = %v", saver.flushes, store.closed)
	}
}

func TestSyncStatusMessages(t *testing.T) {
	m, _, _ := newTestModel(t, db.Tab{ID: 1, Name: "a.md"})

	m, cmd := updateCmd(t, m, keyMsg("ctrl+y"))
	if !m.syncing {
		t.Fatal("sync did not start")
	}
	m = update(t, m, cmd())
	if m.syncing || m.syncStatus != "2 synced, 1 failed" {
		t.Fatalf("status = %q", m.syncStatus)
	}
	if m.lastSync.IsZero() {
		t.Fatal("lastSync not recorded")
	}

	m, cmd = updateCmd(t, m, keyMsg("ctrl+o"))
	m = update(t, m, cmd())
	if m.importing || m.syncStatus != "3 new, 1 updated" {
		t.Fatalf("status = %q", m.syncStatus)
	}

	m.reconciler = &fakeReconciler{pushErr: api.ErrNotConfigured}
	m, cmd = updateCmd(t, m, keyMsg("ctrl+y"))
	m = update(t, m, cmd())
	if m.syncStatus != i18n.T().NotConfigured {
		t.Fatalf("status = %q", m.syncStatus)
	}

	m.reconciler = &fakeReconciler{pushErr: errors.New("down")}
	m, cmd = updateCmd(t, m, keyMsg("ctrl+y"))
	m = update(t, m, cmd())
	if !strings.Contains(m.syncStatus, "down") {
		t.Fatalf("status = %q", m.syncStatus)
	}
}

func TestSyncDisabled(t *testing.T) {
	i18n.SetLanguage(i18n.English)
	m := NewModel(Options{Store: &fakeStore{}, Saver: &fakeSaver{}})
	m = update(t, m, keyMsg("ctrl+y"))
	if m.syncing || m.syncStatus != i18n.T().SyncOff {
		t.Fatalf("status = %q", m.syncStatus)
	}
}

func TestMergeMetadataKeepsUnsavedContent(t *testing.T) {
	now := time.Now()
	m, _, _ := newTestModel(t, db.Tab{ID: 1, Name: "a.md", Content: "saved"})
	m.tabs[0].Content = "typing"

	m.mergeMetadata([]db.Tab{{ID: 1, Name: "a.md", Content: "saved", NoteID: "n", LastModified: now, LastSynced: now}})

	tab := m.tabs[0]
	if tab.Content != "typing" || tab.NoteID != "n" || !tab.LastSynced.Equal(now) {
		t.Fatalf("tab = %+v", tab)
	}
	if !tab.LastModified.IsZero() {
		t.Fatal("lastModified of diverged content should stay local")
	}
}

func TestViewRendersTabs(t *testing.T) {
	m, _, _ := newTestModel(t, db.Tab{ID: 1, Name: "groceries.md", Content: "eggs"})
	view := m.View()
	if !strings.Contains(view, "groceries.md") || !strings.Contains(view, "eggs") {
		t.Fatalf("view missing tab:\n%s", view)
	}
}

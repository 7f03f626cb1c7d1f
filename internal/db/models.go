package db

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"time"
)

type TabType string

const (
	TabMarkdown   TabType = "markdown"
	TabExcalidraw TabType = "excalidraw"
)

const DefaultTabName = "untitled.md"

// Tab is an open document. NoteID links it to a remote note once it has been
// synced; zero LastModified/LastSynced mean "never".
type Tab struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Content      string    `json:"content"`
	Type         TabType   `json:"type"`
	NoteID       string    `json:"noteId,omitempty"`
	LastModified time.Time `json:"lastModified,omitempty"`
	LastSynced   time.Time `json:"lastSynced,omitempty"`
}

func DefaultTab() Tab {
	return Tab{ID: 1, Name: DefaultTabName, Content: "", Type: TabMarkdown}
}

// TabTypeForName picks the editor for a file name.
func TabTypeForName(name string) TabType {
	if strings.EqualFold(filepath.Ext(name), ".excalidraw") {
		return TabExcalidraw
	}
	return TabMarkdown
}

// Drawing belongs to the excalidraw tab with the same ID.
type Drawing struct {
	ID       int64                      `json:"id"`
	Elements json.RawMessage            `json:"elements"`
	AppState json.RawMessage            `json:"appState"`
	Files    map[string]json.RawMessage `json:"files"`
}

const (
	ListInbox   = "inbox"
	ListArchive = "archive"
)

type Task struct {
	ID        int64    `json:"id"`
	Text      string   `json:"text"`
	Completed bool     `json:"completed"`
	List      string   `json:"list"`
	DueDate   string   `json:"dueDate,omitempty"` // YYYY-MM-DD
	Notes     string   `json:"notes,omitempty"`
	URLs      []string `json:"urls"`
}

func NewTaskID(now time.Time) int64 {
	return now.UnixMilli()
}

// Toggle flips completion. Completing an inbox or project task moves it to
// the archive; archived tasks toggle in place.
func (t *Task) Toggle() {
	t.Completed = !t.Completed
	if t.Completed && t.List != ListArchive {
		t.List = ListArchive
	}
}

type TodoData struct {
	Inbox        []Task            `json:"inbox"`
	Archive      []Task            `json:"archive"`
	Projects     map[string][]Task `json:"projects"`
	ProjectNames []string          `json:"-"`
}

// legacyTodoData is the single-record layout older builds stored under
// todo_meta['todoData'].
type legacyTodoData struct {
	Inbox    []Task            `json:"inbox"`
	Archive  []Task            `json:"archive"`
	Projects map[string][]Task `json:"projects"`
}

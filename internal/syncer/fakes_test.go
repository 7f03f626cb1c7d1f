package syncer

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nzaccagnino/go-notepad/internal/api"
	"github.com/nzaccagnino/go-notepad/internal/chat"
	"github.com/nzaccagnino/go-notepad/internal/db"
)

type memStore struct {
	mu   sync.Mutex
	tabs map[int64]db.Tab
}

func newMemStore(tabs ...db.Tab) *memStore {
	s := &memStore{tabs: make(map[int64]db.Tab)}
	for _, t := range tabs {
		s.tabs[t.ID] = t
	}
	return s
}

func (s *memStore) LoadAllTabs(ctx context.Context) ([]db.Tab, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]db.Tab, 0, len(s.tabs))
	for _, t := range s.tabs {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) PutTab(ctx context.Context, t db.Tab) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tabs[t.ID] = t
	return nil
}

func (s *memStore) MarkTabSynced(ctx context.Context, id int64, noteID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tabs[id]
	if !ok {
		return db.ErrNotFound
	}
	t.NoteID = noteID
	t.LastSynced = at
	s.tabs[id] = t
	return nil
}

func (s *memStore) MarkTabPushed(ctx context.Context, id int64, noteID, content string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tabs[id]
	if !ok {
		return false, db.ErrNotFound
	}
	t.NoteID = noteID
	inSync := t.Content == content
	if inSync {
		t.LastSynced = at
	}
	s.tabs[id] = t
	return inSync, nil
}

func (s *memStore) tab(id int64) db.Tab {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tabs[id]
}

// memRemote stores notes the way the notes proxy does: content stays base64.
type memRemote struct {
	mu       sync.Mutex
	notes    map[string]api.Note
	seq      int
	now      time.Time
	failName string
	creates  int
	updates  int
	inFlight int
	maxInFl  int
	delay    time.Duration
	// onUpload runs while an upload is in flight, outside the lock.
	onUpload func(name string)
}

func newMemRemote(now time.Time) *memRemote {
	return &memRemote{notes: make(map[string]api.Note), now: now}
}

func (r *memRemote) IsConfigured() bool { return true }

func (r *memRemote) CreateOrUpdate(ctx context.Context, name, content, noteID string) (*api.Note, error) {
	r.mu.Lock()
	r.inFlight++
	if r.inFlight > r.maxInFl {
		r.maxInFl = r.inFlight
	}
	delay := r.delay
	onUpload := r.onUpload
	r.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if onUpload != nil {
		onUpload(name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.inFlight--

	if name == r.failName {
		return nil, &api.APIError{StatusCode: 500, Message: "boom"}
	}
	encoded := base64.StdEncoding.EncodeToString([]byte(content))
	if noteID != "" {
		if n, ok := r.notes[noteID]; ok {
			n.Name = name
			n.Content = encoded
			n.UpdatedAt = r.now
			r.notes[noteID] = n
			r.updates++
			return &n, nil
		}
	}
	r.seq++
	n := api.Note{ID: fmt.Sprintf("note-%d", r.seq), Name: name, Content: encoded, CreatedAt: r.now, UpdatedAt: r.now}
	r.notes[n.ID] = n
	r.creates++
	return &n, nil
}

func (r *memRemote) GetAll(ctx context.Context) ([]api.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]api.Note, 0, len(r.notes))
	for _, n := range r.notes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memRemote) Search(ctx context.Context, term string) ([]api.Note, error) {
	all, _ := r.GetAll(ctx)
	var out []api.Note
	for _, n := range all {
		if strings.Contains(strings.ToLower(n.Name), strings.ToLower(term)) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *memRemote) put(n api.Note) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes[n.ID] = n
}

func (r *memRemote) counts() (creates, updates int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.creates, r.updates
}

type memSessions struct {
	mu       sync.Mutex
	sessions []chat.Session
}

func (m *memSessions) GetAllSessions(ctx context.Context) ([]chat.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]chat.Session(nil), m.sessions...), nil
}

func (m *memSessions) MarkSynced(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.sessions {
		if m.sessions[i].ID == id {
			at := at
			m.sessions[i].LastSynced = &at
			return nil
		}
	}
	return fmt.Errorf("session %s not found", id)
}

func encode(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

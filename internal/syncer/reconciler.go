// Package syncer reconciles the local tab store with a remote note store
// using last-write-wins timestamps. Push makes local authoritative for the
// run, Pull makes remote authoritative; nothing is merged.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nzaccagnino/go-notepad/internal/api"
	"github.com/nzaccagnino/go-notepad/internal/config"
	"github.com/nzaccagnino/go-notepad/internal/db"
	"github.com/nzaccagnino/go-notepad/internal/logging"
	"go.uber.org/multierr"
)

var ErrClosed = errors.New("reconciler is closed")

type TabStore interface {
	LoadAllTabs(ctx context.Context) ([]db.Tab, error)
	PutTab(ctx context.Context, t db.Tab) error
	MarkTabSynced(ctx context.Context, id int64, noteID string, at time.Time) error
	MarkTabPushed(ctx context.Context, id int64, noteID, content string, at time.Time) (bool, error)
}

type Remote interface {
	IsConfigured() bool
	CreateOrUpdate(ctx context.Context, name, content, noteID string) (*api.Note, error)
	GetAll(ctx context.Context) ([]api.Note, error)
	Search(ctx context.Context, term string) ([]api.Note, error)
}

type Options struct {
	Target     string
	Extensions []string
	Sessions   SessionStore
	Logger     *logging.Logger
	Now        func() time.Time
}

type PushResult struct {
	Synced  int
	Skipped int
	Failed  int
	Errors  []error
}

// Err combines the per-record failures, or returns nil.
func (r *PushResult) Err() error {
	return multierr.Combine(r.Errors...)
}

type PullResult struct {
	Created   int
	Updated   int
	Unchanged int
	Skipped   int
	Errors    []error
}

func (r *PullResult) Err() error {
	return multierr.Combine(r.Errors...)
}

// Reconciler runs one operation at a time; concurrent callers queue on its
// lock instead of double-submitting pushes.
type Reconciler struct {
	store    TabStore
	remote   Remote
	sessions SessionStore
	logger   *logging.Logger
	now      func() time.Time

	mu          sync.Mutex
	eligibility Eligibility
	closed      bool
}

func New(store TabStore, remote Remote, opts Options) (*Reconciler, error) {
	if store == nil {
		return nil, fmt.Errorf("tab store is required")
	}
	if remote == nil {
		return nil, fmt.Errorf("remote is required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Target == "" {
		opts.Target = config.TargetNotes
	}
	return &Reconciler{
		store:       store,
		remote:      remote,
		sessions:    opts.Sessions,
		logger:      opts.Logger,
		now:         opts.Now,
		eligibility: NewEligibility(opts.Target, opts.Extensions),
	}, nil
}

// Configure applies new sync settings. It waits for any running operation.
func (r *Reconciler) Configure(cfg config.SyncConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.eligibility = NewEligibility(cfg.Target, cfg.Extensions)
}

func (r *Reconciler) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}

func (r *Reconciler) begin() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	if !r.remote.IsConfigured() {
		r.mu.Unlock()
		return api.ErrNotConfigured
	}
	return nil
}

// Push uploads every eligible tab that changed since its last sync. One
// failing tab is logged and counted; only an unreadable store or a missing
// remote configuration fails the whole run.
func (r *Reconciler) Push(ctx context.Context) (*PushResult, error) {
	if err := r.begin(); err != nil {
		return nil, err
	}
	defer r.mu.Unlock()

	tabs, err := r.store.LoadAllTabs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load tabs: %w", err)
	}

	result := &PushResult{}
	for _, tab := range tabs {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if !r.eligibility.Allows(tab) || !NeedsSync(tab) {
			result.Skipped++
			continue
		}

		note, err := r.remote.CreateOrUpdate(ctx, tab.Name, tab.Content, tab.NoteID)
		if err != nil {
			r.logger.Warnf("push %q (tab %d) failed: %v", tab.Name, tab.ID, err)
			result.Failed++
			result.Errors = append(result.Errors, fmt.Errorf("tab %d: %w", tab.ID, err))
			continue
		}

		noteID := note.ID
		if noteID == "" {
			noteID = tab.NoteID
		}
		inSync, err := r.store.MarkTabPushed(ctx, tab.ID, noteID, tab.Content, r.now())
		if err != nil {
			// The remote has the note but we lost the link; the next run
			// will push again.
			r.logger.Errorf("push %q (tab %d): failed to record sync: %v", tab.Name, tab.ID, err)
			result.Failed++
			result.Errors = append(result.Errors, fmt.Errorf("tab %d: %w", tab.ID, err))
			continue
		}
		if !inSync {
			r.logger.Debugf("tab %d changed during push; left pending", tab.ID)
		}
		r.logger.Debugf("pushed %q (tab %d) as note %s", tab.Name, tab.ID, noteID)
		result.Synced++
	}

	r.logger.Infof("push finished: %d synced, %d skipped, %d failed", result.Synced, result.Skipped, result.Failed)
	return result, nil
}

// Pull imports remote notes. A note is matched to a local tab by noteId,
// then by name among unlinked tabs; matched tabs are overwritten only when
// the remote copy is strictly newer. Unmatched notes become new tabs; chat
// session notes are left alone.
func (r *Reconciler) Pull(ctx context.Context) (*PullResult, error) {
	if err := r.begin(); err != nil {
		return nil, err
	}
	defer r.mu.Unlock()

	notes, err := r.remote.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch remote notes: %w", err)
	}
	tabs, err := r.store.LoadAllTabs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load tabs: %w", err)
	}

	byNoteID := make(map[string]*db.Tab, len(tabs))
	byName := make(map[string]*db.Tab, len(tabs))
	var maxID int64
	for i := range tabs {
		t := &tabs[i]
		if t.ID > maxID {
			maxID = t.ID
		}
		if t.NoteID != "" {
			byNoteID[t.NoteID] = t
		} else if _, dup := byName[t.Name]; !dup {
			byName[t.Name] = t
		}
	}

	result := &PullResult{}
	for _, note := range notes {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if note.ID == "" || IsSessionNoteName(note.Name) {
			result.Skipped++
			continue
		}

		local := byNoteID[note.ID]
		if local == nil {
			if candidate := byName[note.Name]; candidate != nil && candidate.NoteID == "" {
				local = candidate
			}
		}

		remoteTime := note.Modified()
		if local != nil && !local.LastModified.IsZero() && !remoteTime.After(local.LastModified) {
			if local.NoteID == "" {
				// Same name, local is newer: link it so the next push updates
				// this note instead of creating another.
				if err := r.store.MarkTabSynced(ctx, local.ID, note.ID, local.LastSynced); err != nil {
					r.logger.Warnf("link tab %d to note %s failed: %v", local.ID, note.ID, err)
					result.Errors = append(result.Errors, err)
				} else {
					local.NoteID = note.ID
					delete(byName, local.Name)
					byNoteID[note.ID] = local
				}
			}
			result.Unchanged++
			continue
		}

		content, err := note.Decode()
		if err != nil {
			r.logger.Warnf("skipping note %s (%q): %v", note.ID, note.Name, err)
			result.Skipped++
			result.Errors = append(result.Errors, err)
			continue
		}

		now := r.now()
		if local != nil {
			updated := *local
			updated.Content = content
			updated.NoteID = note.ID
			updated.LastModified = remoteTime
			updated.LastSynced = now
			if err := r.store.PutTab(ctx, updated); err != nil {
				r.logger.Warnf("update tab %d from note %s failed: %v", local.ID, note.ID, err)
				result.Errors = append(result.Errors, err)
				continue
			}
			if local.NoteID == "" {
				delete(byName, local.Name)
			}
			*local = updated
			byNoteID[note.ID] = local
			result.Updated++
			continue
		}

		maxID++
		created := db.Tab{
			ID:           maxID,
			Name:         note.Name,
			Content:      content,
			Type:         db.TabTypeForName(note.Name),
			NoteID:       note.ID,
			LastModified: remoteTime,
			LastSynced:   now,
		}
		if err := r.store.PutTab(ctx, created); err != nil {
			r.logger.Warnf("create tab for note %s failed: %v", note.ID, err)
			result.Errors = append(result.Errors, err)
			continue
		}
		byNoteID[note.ID] = &created
		result.Created++
	}

	r.logger.Infof("pull finished: %d created, %d updated, %d unchanged, %d skipped",
		result.Created, result.Updated, result.Unchanged, result.Skipped)
	return result, nil
}

// Sync pushes tabs and then chat sessions. It is the scheduled job.
func (r *Reconciler) Sync(ctx context.Context) error {
	if _, err := r.Push(ctx); err != nil {
		return err
	}
	if _, err := r.PushSessions(ctx); err != nil {
		return err
	}
	return nil
}

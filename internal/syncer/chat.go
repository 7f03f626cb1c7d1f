package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nzaccagnino/go-notepad/internal/chat"
)

type SessionStore interface {
	GetAllSessions(ctx context.Context) ([]chat.Session, error)
	MarkSynced(ctx context.Context, id string, at time.Time) error
}

// SessionNoteName is the remote note name a chat session is stored under.
func SessionNoteName(id string) string {
	return sessionNotePrefix + id + sessionNoteSuffix
}

const (
	sessionNotePrefix = "chat-"
	sessionNoteSuffix = ".json"
)

// IsSessionNoteName reports whether a remote note holds a chat session
// rather than a tab.
func IsSessionNoteName(name string) bool {
	return len(name) > len(sessionNotePrefix)+len(sessionNoteSuffix) &&
		strings.HasPrefix(name, sessionNotePrefix) &&
		strings.HasSuffix(name, sessionNoteSuffix)
}

// PushSessions uploads chat sessions that changed since their last push.
// Sessions have no local noteId column, so the existing remote note is found
// by name before writing.
func (r *Reconciler) PushSessions(ctx context.Context) (*PushResult, error) {
	if r.sessions == nil {
		return &PushResult{}, nil
	}
	if err := r.begin(); err != nil {
		return nil, err
	}
	defer r.mu.Unlock()

	sessions, err := r.sessions.GetAllSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load chat sessions: %w", err)
	}

	result := &PushResult{}
	for _, sess := range sessions {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if !sess.NeedsSync() {
			result.Skipped++
			continue
		}
		if err := r.pushSession(ctx, sess); err != nil {
			r.logger.Warnf("push chat session %s failed: %v", sess.ID, err)
			result.Failed++
			result.Errors = append(result.Errors, fmt.Errorf("session %s: %w", sess.ID, err))
			continue
		}
		result.Synced++
	}

	r.logger.Infof("chat push finished: %d synced, %d skipped, %d failed", result.Synced, result.Skipped, result.Failed)
	return result, nil
}

func (r *Reconciler) pushSession(ctx context.Context, sess chat.Session) error {
	name := SessionNoteName(sess.ID)

	existing, err := r.remote.Search(ctx, name)
	if err != nil {
		return fmt.Errorf("lookup: %w", err)
	}
	var noteID string
	for _, n := range existing {
		if n.Name == name {
			noteID = n.ID
			break
		}
	}

	body, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if _, err := r.remote.CreateOrUpdate(ctx, name, string(body), noteID); err != nil {
		return err
	}
	return r.sessions.MarkSynced(ctx, sess.ID, r.now())
}

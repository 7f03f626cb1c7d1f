package syncer

import (
	"path/filepath"
	"strings"

	"github.com/nzaccagnino/go-notepad/internal/config"
	"github.com/nzaccagnino/go-notepad/internal/db"
)

var reservedPrefixes = []string{"Note", "Code"}

// DefaultExtensions lists which file types each target accepts.
var DefaultExtensions = map[string][]string{
	config.TargetNotes:    {".md", ".txt"},
	config.TargetGitHub:   {".md"},
	config.TargetDropbox:  {".md", ".txt"},
	config.TargetSupabase: {".md", ".txt"},
}

// Eligibility decides which tabs may leave the machine.
type Eligibility struct {
	extensions map[string]bool
}

func NewEligibility(target string, override []string) Eligibility {
	exts := override
	if len(exts) == 0 {
		exts = DefaultExtensions[target]
		if exts == nil {
			exts = DefaultExtensions[config.TargetNotes]
		}
	}
	set := make(map[string]bool, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		set[e] = true
	}
	return Eligibility{extensions: set}
}

func (e Eligibility) Allows(t db.Tab) bool {
	name := t.Name
	if name == "" || name == db.DefaultTabName {
		return false
	}
	for _, p := range reservedPrefixes {
		if strings.HasPrefix(name, p) {
			return false
		}
	}
	if strings.HasSuffix(name, ".tldraw") {
		return false
	}
	return e.extensions[strings.ToLower(filepath.Ext(name))]
}

// NeedsSync is true for tabs never pushed and for tabs edited after their
// last push. Equal timestamps count as in sync.
func NeedsSync(t db.Tab) bool {
	if t.LastSynced.IsZero() {
		return true
	}
	return !t.LastModified.IsZero() && t.LastModified.After(t.LastSynced)
}

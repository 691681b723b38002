package prompts

import (
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/prepdhq/prepd/internal/prepcache"
)

// Defaults are the built-in per-source fetch prompts. A JSON file at the
// configured overrides path replaces individual entries; anything not
// overridden falls through to these.
var defaults = map[prepcache.SourceName]string{
	prepcache.SourceJira:       "Find Jira issues relevant to this meeting: open items assigned to or reported by the attendees, and issues whose summary matches the meeting title.",
	prepcache.SourceConfluence: "Find Confluence pages relevant to this meeting: recently updated pages mentioning the meeting title or authored by the attendees.",
	prepcache.SourceSlack:      "Find recent Slack messages that mention the meeting title or involve the attendees.",
	prepcache.SourceGmail:      "Find recent email threads involving the attendees or referencing the meeting title.",
	prepcache.SourceDrive:      "Find recently modified Drive files shared with the attendees or matching the meeting title.",
	prepcache.SourceSummary:    "Write a short briefing for this meeting. Lead with what the meeting is about, then list the most important open items from the gathered context. Be concrete; skip sources that returned nothing.",
}

// Table is the per-source prompt side-table: defaults plus optional custom
// overrides loaded from disk. Reload is the only trigger for re-reading
// the overrides file.
type Table struct {
	path string

	mu        sync.RWMutex
	overrides map[prepcache.SourceName]string
}

func NewTable(path string) *Table {
	t := &Table{
		path:      path,
		overrides: make(map[prepcache.SourceName]string),
	}
	if err := t.Reload(); err != nil {
		slog.Debug("No prompt overrides loaded", "path", path, "error", err)
	}
	return t
}

// Get returns the effective prompt for a source.
func (t *Table) Get(source prepcache.SourceName) string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if custom, ok := t.overrides[source]; ok && strings.TrimSpace(custom) != "" {
		return custom
	}
	return defaults[source]
}

// IsCustom reports whether a source has an override in effect.
func (t *Table) IsCustom(source prepcache.SourceName) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	custom, ok := t.overrides[source]
	return ok && strings.TrimSpace(custom) != ""
}

// Reload re-reads the overrides file. Unknown source keys are dropped with
// a warning; a missing file clears all overrides.
func (t *Table) Reload() error {
	content, err := os.ReadFile(t.path)
	if os.IsNotExist(err) {
		t.mu.Lock()
		t.overrides = make(map[prepcache.SourceName]string)
		t.mu.Unlock()
		return nil
	}
	if err != nil {
		return err
	}

	var raw map[string]string
	if err := json.Unmarshal(content, &raw); err != nil {
		return err
	}

	overrides := make(map[prepcache.SourceName]string, len(raw))
	for key, value := range raw {
		name := prepcache.SourceName(key)
		if !prepcache.IsSource(name) {
			slog.Warn("Ignoring prompt override for unknown source", "source", key)
			continue
		}
		overrides[name] = value
	}

	t.mu.Lock()
	t.overrides = overrides
	t.mu.Unlock()

	slog.Info("Prompt overrides loaded", "path", t.path, "count", len(overrides))
	return nil
}

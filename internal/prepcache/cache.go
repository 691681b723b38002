package prepcache

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"time"

	prepdErrors "github.com/prepdhq/prepd/internal/errors"

	"github.com/natefinch/atomic"
)

// Cache is the single source of truth for "do we have fresh-enough data
// for (meeting, source)". All operations are safe under concurrent access;
// no I/O happens while the lock is held.
type Cache struct {
	path       string
	sourceTTL  time.Duration
	summaryTTL time.Duration

	mu      sync.RWMutex
	entries map[string]*MeetingEntry

	now func() time.Time
}

type Option func(*Cache)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New loads the cache snapshot from path. A missing, corrupt, or
// unreadable file starts the cache empty rather than failing startup.
func New(path string, sourceTTL, summaryTTL time.Duration, opts ...Option) *Cache {
	c := &Cache{
		path:       path,
		sourceTTL:  sourceTTL,
		summaryTTL: summaryTTL,
		entries:    make(map[string]*MeetingEntry),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.load()
	return c
}

// TTL returns the validity window for a source.
func (c *Cache) TTL(source SourceName) time.Duration {
	if source == SourceSummary {
		return c.summaryTTL
	}
	return c.sourceTTL
}

// IsValid reports whether the slot exists, has data, and is younger than
// its TTL.
func (c *Cache) IsValid(meetingID string, source SourceName) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	slot := c.slot(meetingID, source)
	if slot == nil || slot.Data == nil {
		return false
	}
	return c.now().Sub(slot.Timestamp) < c.TTL(source)
}

// HasData reports whether the slot holds data regardless of age. Stale
// data is served while a refresh proceeds in the background.
func (c *Cache) HasData(meetingID string, source SourceName) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	slot := c.slot(meetingID, source)
	return slot != nil && slot.Data != nil
}

// Get returns the stored payload or nil. Never fails.
func (c *Cache) Get(meetingID string, source SourceName) json.RawMessage {
	c.mu.RLock()
	defer c.mu.RUnlock()

	slot := c.slot(meetingID, source)
	if slot == nil {
		return nil
	}
	return slot.Data
}

// Set overwrites the slot's data and timestamp, then snapshots the cache
// to disk. A nil payload is ignored so a failed fetch can never clobber a
// previously successful one.
func (c *Cache) Set(meetingID string, source SourceName, data json.RawMessage) {
	if data == nil || !IsSource(source) {
		return
	}

	c.mu.Lock()
	entry, ok := c.entries[meetingID]
	if !ok {
		entry = newMeetingEntry()
		c.entries[meetingID] = entry
	}
	entry.Sources[source] = &SourceSlot{Data: data, Timestamp: c.now()}
	snapshot := c.marshalLocked()
	c.mu.Unlock()

	c.persist(snapshot)
}

// SetMeetingInfo sets or refreshes the meeting metadata read by fetchers.
func (c *Cache) SetMeetingInfo(meetingID string, info MeetingInfo) {
	c.mu.Lock()
	entry, ok := c.entries[meetingID]
	if !ok {
		entry = newMeetingEntry()
		c.entries[meetingID] = entry
	}
	entry.MeetingInfo = &info
	snapshot := c.marshalLocked()
	c.mu.Unlock()

	c.persist(snapshot)
}

// MeetingInfo returns the stored metadata, or nil if never set.
func (c *Cache) MeetingInfo(meetingID string) *MeetingInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[meetingID]
	if !ok || entry.MeetingInfo == nil {
		return nil
	}
	info := *entry.MeetingInfo
	return &info
}

// Meetings returns the ids of all cached meetings.
func (c *Cache) Meetings() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	return ids
}

// Entry returns a deep copy of a meeting's cached state, or nil.
func (c *Cache) Entry(meetingID string) *MeetingEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[meetingID]
	if !ok {
		return nil
	}

	out := &MeetingEntry{Sources: make(map[SourceName]*SourceSlot, len(entry.Sources))}
	for name, slot := range entry.Sources {
		s := *slot
		out.Sources[name] = &s
	}
	if entry.MeetingInfo != nil {
		info := *entry.MeetingInfo
		out.MeetingInfo = &info
	}
	return out
}

// Clear removes one meeting's entry.
func (c *Cache) Clear(meetingID string) {
	c.mu.Lock()
	delete(c.entries, meetingID)
	snapshot := c.marshalLocked()
	c.mu.Unlock()

	c.persist(snapshot)
}

// CleanupOld removes entries whose meeting time passed more than retention
// ago. Entries without meeting info fall back to the newest slot timestamp.
// Returns the number of removed entries.
func (c *Cache) CleanupOld(retention time.Duration) int {
	cutoff := c.now().Add(-retention)

	c.mu.Lock()
	removed := 0
	for id, entry := range c.entries {
		ref := entryTime(entry)
		if !ref.IsZero() && ref.Before(cutoff) {
			delete(c.entries, id)
			removed++
		}
	}
	var snapshot []byte
	if removed > 0 {
		snapshot = c.marshalLocked()
	}
	c.mu.Unlock()

	if removed > 0 {
		slog.Info("Removed expired meeting caches", "count", removed)
		c.persist(snapshot)
	}
	return removed
}

func entryTime(entry *MeetingEntry) time.Time {
	if entry.MeetingInfo != nil && !entry.MeetingInfo.StartTime.IsZero() {
		return entry.MeetingInfo.StartTime
	}
	var newest time.Time
	for _, slot := range entry.Sources {
		if slot.Timestamp.After(newest) {
			newest = slot.Timestamp
		}
	}
	return newest
}

func (c *Cache) slot(meetingID string, source SourceName) *SourceSlot {
	entry, ok := c.entries[meetingID]
	if !ok {
		return nil
	}
	return entry.Sources[source]
}

type diskSnapshot struct {
	Meetings map[string]*MeetingEntry `json:"meetings"`
}

// marshalLocked serializes the mapping while the caller holds the lock.
// Marshal is cheap relative to disk I/O, which happens after release.
func (c *Cache) marshalLocked() []byte {
	b, err := json.MarshalIndent(diskSnapshot{Meetings: c.entries}, "", "  ")
	if err != nil {
		slog.Error("Failed to marshal prep cache", "error", err)
		return nil
	}
	return b
}

// persist writes the snapshot atomically (temp file then rename). Failures
// are logged, never raised: the cache remains correct in memory.
func (c *Cache) persist(snapshot []byte) {
	if snapshot == nil {
		return
	}
	if err := c.writeSnapshot(snapshot); err != nil {
		slog.Warn("Failed to persist prep cache", "path", c.path, "error", err)
	}
}

func (c *Cache) writeSnapshot(snapshot []byte) error {
	if err := atomic.WriteFile(c.path, bytes.NewReader(snapshot)); err != nil {
		return prepdErrors.WrapWithCategory(err, "write snapshot", prepdErrors.ErrCacheIO)
	}
	return nil
}

// SaveToDisk forces a snapshot write and reports the failure, for the
// maintenance surface. Normal writes go through persist and swallow errors.
func (c *Cache) SaveToDisk() error {
	c.mu.RLock()
	snapshot := c.marshalLocked()
	c.mu.RUnlock()

	if snapshot == nil {
		return prepdErrors.CacheIO("marshal cache")
	}
	return c.writeSnapshot(snapshot)
}

func (c *Cache) load() {
	content, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return
	}
	if err != nil {
		slog.Warn("Failed to read prep cache, starting empty", "path", c.path, "error", err)
		return
	}
	if len(content) == 0 {
		return
	}

	var snap diskSnapshot
	if err := json.Unmarshal(content, &snap); err != nil {
		slog.Warn("Prep cache file is corrupt, starting empty", "path", c.path, "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for id, entry := range snap.Meetings {
		if entry == nil {
			continue
		}
		if entry.Sources == nil {
			entry.Sources = make(map[SourceName]*SourceSlot, len(SourceOrder))
		}
		for _, s := range SourceOrder {
			if entry.Sources[s] == nil {
				entry.Sources[s] = &SourceSlot{}
			}
		}
		c.entries[id] = entry
	}
	slog.Info("Prep cache restored", "path", c.path, "meetings", len(c.entries))
}

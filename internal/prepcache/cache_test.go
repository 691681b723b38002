package prepcache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestCache(t *testing.T, clock *fakeClock) *Cache {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prep_cache.json")
	return New(path, 4*time.Hour, 6*time.Hour, WithClock(clock.Now))
}

type fakeClock struct {
	current time.Time
}

func (f *fakeClock) Now() time.Time {
	return f.current
}

func (f *fakeClock) Advance(d time.Duration) {
	f.current = f.current.Add(d)
}

func TestSetAndGet(t *testing.T) {
	clock := &fakeClock{current: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	cache := newTestCache(t, clock)

	payload := json.RawMessage(`{"issues":[{"key":"PROJ-1"}]}`)
	cache.Set("mtg-1", SourceJira, payload)

	got := cache.Get("mtg-1", SourceJira)
	if string(got) != string(payload) {
		t.Fatalf("Get returned %s, want %s", got, payload)
	}

	if !cache.IsValid("mtg-1", SourceJira) {
		t.Error("freshly set slot should be valid")
	}
	if !cache.HasData("mtg-1", SourceJira) {
		t.Error("freshly set slot should have data")
	}
}

func TestValidityExpiresPerSourceTTL(t *testing.T) {
	clock := &fakeClock{current: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	cache := newTestCache(t, clock)

	cache.Set("mtg-1", SourceJira, json.RawMessage(`{}`))
	cache.Set("mtg-1", SourceSummary, json.RawMessage(`{"text":"brief"}`))

	clock.Advance(4*time.Hour + time.Minute)

	if cache.IsValid("mtg-1", SourceJira) {
		t.Error("jira slot should be stale after the source TTL")
	}
	if !cache.IsValid("mtg-1", SourceSummary) {
		t.Error("summary slot should still be valid inside its longer TTL")
	}

	clock.Advance(2 * time.Hour)

	if cache.IsValid("mtg-1", SourceSummary) {
		t.Error("summary slot should be stale after the summary TTL")
	}
}

func TestStaleDataStillServed(t *testing.T) {
	clock := &fakeClock{current: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	cache := newTestCache(t, clock)

	payload := json.RawMessage(`{"messages":[]}`)
	cache.Set("mtg-1", SourceSlack, payload)
	clock.Advance(24 * time.Hour)

	if cache.IsValid("mtg-1", SourceSlack) {
		t.Fatal("slot should be stale")
	}
	if !cache.HasData("mtg-1", SourceSlack) {
		t.Error("stale slot should still report data")
	}
	if got := cache.Get("mtg-1", SourceSlack); string(got) != string(payload) {
		t.Errorf("stale slot should still serve data, got %s", got)
	}
}

func TestNilDataNeverClobbers(t *testing.T) {
	clock := &fakeClock{current: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	cache := newTestCache(t, clock)

	payload := json.RawMessage(`{"pages":[1]}`)
	cache.Set("mtg-1", SourceConfluence, payload)
	cache.Set("mtg-1", SourceConfluence, nil)

	if got := cache.Get("mtg-1", SourceConfluence); string(got) != string(payload) {
		t.Errorf("nil set should be ignored, got %s", got)
	}
}

func TestSetRefreshesTimestamp(t *testing.T) {
	clock := &fakeClock{current: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	cache := newTestCache(t, clock)

	cache.Set("mtg-1", SourceJira, json.RawMessage(`{"v":1}`))
	clock.Advance(5 * time.Hour)

	if cache.IsValid("mtg-1", SourceJira) {
		t.Fatal("slot should have gone stale")
	}

	cache.Set("mtg-1", SourceJira, json.RawMessage(`{"v":2}`))
	if !cache.IsValid("mtg-1", SourceJira) {
		t.Error("re-set slot should be valid again")
	}
}

func TestUnknownSourceIgnored(t *testing.T) {
	clock := &fakeClock{current: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	cache := newTestCache(t, clock)

	cache.Set("mtg-1", SourceName("pigeons"), json.RawMessage(`{}`))
	if len(cache.Meetings()) != 0 {
		t.Error("unknown source should not create an entry")
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	clock := &fakeClock{current: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	path := filepath.Join(t.TempDir(), "prep_cache.json")

	cache := New(path, 4*time.Hour, 6*time.Hour, WithClock(clock.Now))
	cache.Set("mtg-1", SourceJira, json.RawMessage(`{"issues":[]}`))
	cache.SetMeetingInfo("mtg-1", MeetingInfo{
		Title:     "Quarterly planning",
		StartTime: clock.Now().Add(time.Hour),
		Attendees: []string{"ana@example.com"},
	})

	restored := New(path, 4*time.Hour, 6*time.Hour, WithClock(clock.Now))
	if !restored.HasData("mtg-1", SourceJira) {
		t.Fatal("restored cache should hold the jira slot")
	}
	info := restored.MeetingInfo("mtg-1")
	if info == nil || info.Title != "Quarterly planning" {
		t.Errorf("restored meeting info = %+v", info)
	}

	// Slots absent from the snapshot come back as empty, not missing.
	entry := restored.Entry("mtg-1")
	if entry == nil || len(entry.Sources) != len(SourceOrder) {
		t.Errorf("restored entry should have all %d slots", len(SourceOrder))
	}
}

func TestCorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prep_cache.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	cache := New(path, 4*time.Hour, 6*time.Hour)
	if len(cache.Meetings()) != 0 {
		t.Error("corrupt snapshot should start the cache empty")
	}

	// And the cache must still be writable afterwards.
	cache.Set("mtg-1", SourceDrive, json.RawMessage(`{}`))
	if !cache.HasData("mtg-1", SourceDrive) {
		t.Error("cache should accept writes after a corrupt load")
	}
}

func TestClear(t *testing.T) {
	clock := &fakeClock{current: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	cache := newTestCache(t, clock)

	cache.Set("mtg-1", SourceJira, json.RawMessage(`{}`))
	cache.Clear("mtg-1")

	if cache.HasData("mtg-1", SourceJira) {
		t.Error("cleared meeting should have no data")
	}
	if cache.Entry("mtg-1") != nil {
		t.Error("cleared meeting should have no entry")
	}
}

func TestCleanupOld(t *testing.T) {
	clock := &fakeClock{current: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	cache := newTestCache(t, clock)

	cache.SetMeetingInfo("old", MeetingInfo{Title: "Old", StartTime: clock.Now().Add(-48 * time.Hour)})
	cache.SetMeetingInfo("recent", MeetingInfo{Title: "Recent", StartTime: clock.Now().Add(-2 * time.Hour)})
	cache.SetMeetingInfo("future", MeetingInfo{Title: "Future", StartTime: clock.Now().Add(time.Hour)})

	// No meeting info: cleanup falls back to the newest slot timestamp.
	cache.Set("orphan", SourceSlack, json.RawMessage(`{}`))

	removed := cache.CleanupOld(24 * time.Hour)
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if cache.Entry("old") != nil {
		t.Error("old meeting should be removed")
	}
	for _, id := range []string{"recent", "future", "orphan"} {
		if cache.Entry(id) == nil {
			t.Errorf("meeting %s should survive cleanup", id)
		}
	}

	clock.Advance(30 * time.Hour)
	if cache.CleanupOld(24*time.Hour) != 3 {
		t.Error("all remaining meetings should expire eventually")
	}
}

func TestEntryIsACopy(t *testing.T) {
	clock := &fakeClock{current: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	cache := newTestCache(t, clock)

	cache.Set("mtg-1", SourceJira, json.RawMessage(`{"v":1}`))
	entry := cache.Entry("mtg-1")
	entry.Sources[SourceJira].Data = json.RawMessage(`{"v":"tampered"}`)

	if got := cache.Get("mtg-1", SourceJira); string(got) != `{"v":1}` {
		t.Errorf("mutating a returned entry must not affect the cache, got %s", got)
	}
}

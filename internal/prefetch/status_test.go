package prefetch

import (
	"fmt"
	"testing"
	"time"

	"github.com/prepdhq/prepd/internal/prepcache"
)

func TestActivityLogIsBounded(t *testing.T) {
	tr := newTracker()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	for i := 0; i < MaxActivityLog+10; i++ {
		tr.record(ActivityRecord{
			Time:    base.Add(time.Duration(i) * time.Second),
			Meeting: fmt.Sprintf("meeting-%d", i),
			Source:  prepcache.SourceJira,
			Action:  ActionRefreshed,
		})
	}

	snap := tr.snapshot()
	if len(snap.Activity) != MaxActivityLog {
		t.Fatalf("activity length = %d, want %d", len(snap.Activity), MaxActivityLog)
	}

	// The oldest ten records fell off the front.
	if snap.Activity[0].Meeting != "meeting-10" {
		t.Errorf("oldest surviving record = %s, want meeting-10", snap.Activity[0].Meeting)
	}
	if snap.Activity[MaxActivityLog-1].Meeting != fmt.Sprintf("meeting-%d", MaxActivityLog+9) {
		t.Errorf("newest record = %s", snap.Activity[MaxActivityLog-1].Meeting)
	}
}

func TestRecordsGetUniqueIDs(t *testing.T) {
	tr := newTracker()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	tr.record(ActivityRecord{Time: now, Action: ActionRefreshed})
	tr.record(ActivityRecord{Time: now, Action: ActionRefreshed})

	snap := tr.snapshot()
	if snap.Activity[0].ID == "" || snap.Activity[0].ID == snap.Activity[1].ID {
		t.Errorf("records need distinct ids, got %q and %q", snap.Activity[0].ID, snap.Activity[1].ID)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	tr := newTracker()
	tr.record(ActivityRecord{Time: time.Now(), Action: ActionRefreshed})

	snap := tr.snapshot()
	snap.Activity[0].Action = "tampered"

	if tr.snapshot().Activity[0].Action != ActionRefreshed {
		t.Error("mutating a snapshot must not affect the tracker")
	}
}

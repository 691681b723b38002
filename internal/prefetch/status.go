package prefetch

import (
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/prepdhq/prepd/internal/prepcache"
)

// MaxActivityLog bounds the in-memory activity ring. Older records fall
// off the front.
const MaxActivityLog = 50

const (
	ActionRefreshed  = "refreshed"
	ActionFailed     = "failed"
	ActionCycleStart = "cycle_start"
	ActionCycleSkip  = "cycle_skipped"
)

// ActivityRecord is one line of the prefetch activity log.
type ActivityRecord struct {
	ID        string               `json:"id"`
	Time      time.Time            `json:"time"`
	MeetingID string               `json:"meeting_id,omitempty"`
	Meeting   string               `json:"meeting,omitempty"`
	Source    prepcache.SourceName `json:"source,omitempty"`
	Action    string               `json:"action"`
	Detail    string               `json:"detail,omitempty"`
}

// Status is a point-in-time snapshot of the engine.
type Status struct {
	Running           bool             `json:"running"`
	Aggressive        bool             `json:"aggressive"`
	CurrentMeeting    string           `json:"current_meeting,omitempty"`
	CurrentSource     string           `json:"current_source,omitempty"`
	LastCycleStart    time.Time        `json:"last_cycle_start,omitempty"`
	LastCycleEnd      time.Time        `json:"last_cycle_end,omitempty"`
	MeetingsInQueue   int              `json:"meetings_in_queue"`
	MeetingsProcessed int              `json:"meetings_processed"`
	CyclesCompleted   int              `json:"cycles_completed"`
	Activity          []ActivityRecord `json:"activity"`
}

// tracker holds the mutable status shared between the engine loop and
// status readers.
type tracker struct {
	mu      sync.RWMutex
	status  Status
	entropy *rand.Rand
}

func newTracker() *tracker {
	return &tracker{
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (t *tracker) record(rec ActivityRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec.ID = ulid.MustNew(ulid.Timestamp(rec.Time), t.entropy).String()
	t.status.Activity = append(t.status.Activity, rec)
	if len(t.status.Activity) > MaxActivityLog {
		t.status.Activity = t.status.Activity[len(t.status.Activity)-MaxActivityLog:]
	}
}

func (t *tracker) update(fn func(*Status)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(&t.status)
}

// snapshot returns a copy safe to hand to HTTP handlers.
func (t *tracker) snapshot() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := t.status
	out.Activity = make([]ActivityRecord, len(t.status.Activity))
	copy(out.Activity, t.status.Activity)
	return out
}

package prefetch

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/prepdhq/prepd/internal/calendar"
	"github.com/prepdhq/prepd/internal/concurrency"
	"github.com/prepdhq/prepd/internal/config"
	prepdErrors "github.com/prepdhq/prepd/internal/errors"
	"github.com/prepdhq/prepd/internal/prepcache"
	"github.com/prepdhq/prepd/internal/prompts"
	"github.com/prepdhq/prepd/internal/source"
)

// Engine drives the background refresh loop: every interval it lists
// upcoming meetings and warms each one's source slots, soonest meeting
// first, sources in their fixed order. Aggressive mode shortens the next
// wait to the aggressive interval for exactly one cycle.
type Engine struct {
	cache    *prepcache.Cache
	cal      calendar.Calendar
	fetchers map[prepcache.SourceName]source.Fetcher
	prompts  *prompts.Table
	tracker  *tracker
	cleanup  *cron.Cron

	mu         sync.RWMutex
	ctx        context.Context
	cancel     context.CancelFunc
	running    bool
	aggressive bool
	wake       chan struct{}
	cycleDone  chan struct{}

	interval           time.Duration
	aggressiveInterval time.Duration
	lookahead          time.Duration
	maxMeetings        int
	fetchTimeout       time.Duration
	shutdownTimeout    time.Duration
	quietHoursStart    int
	quietHoursEnd      int
	retention          time.Duration
	cleanupSchedule    string

	now func() time.Time
}

// Option tweaks engine construction, mainly for tests.
type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(cache *prepcache.Cache, cal calendar.Calendar, fetchers []source.Fetcher, table *prompts.Table, prefetchCfg config.PrefetchConfig, cacheCfg config.CacheConfig, opts ...Option) (*Engine, error) {
	interval, err := config.DurationOrDefault(prefetchCfg.Interval, config.DefaultPrefetchInterval)
	if err != nil {
		return nil, fmt.Errorf("parse prefetch interval: %w", err)
	}

	aggressiveInterval, err := config.DurationOrDefault(prefetchCfg.AggressiveInterval, config.DefaultPrefetchAggressiveInterval)
	if err != nil {
		return nil, fmt.Errorf("parse prefetch aggressive interval: %w", err)
	}

	lookahead, err := config.DurationOrDefault(prefetchCfg.Lookahead, config.DefaultPrefetchLookahead)
	if err != nil {
		return nil, fmt.Errorf("parse prefetch lookahead: %w", err)
	}

	fetchTimeout, err := config.DurationOrDefault(prefetchCfg.FetchTimeout, config.DefaultPrefetchFetchTimeout)
	if err != nil {
		return nil, fmt.Errorf("parse prefetch fetch timeout: %w", err)
	}

	shutdownTimeout, err := config.DurationOrDefault(prefetchCfg.ShutdownTimeout, config.DefaultPrefetchShutdownTimeout)
	if err != nil {
		return nil, fmt.Errorf("parse prefetch shutdown timeout: %w", err)
	}

	retention, err := config.DurationOrDefault(cacheCfg.Retention, config.DefaultCacheRetention)
	if err != nil {
		return nil, fmt.Errorf("parse cache retention: %w", err)
	}

	maxMeetings := prefetchCfg.MaxMeetings
	if maxMeetings <= 0 {
		maxMeetings = config.DefaultPrefetchMaxMeetings
	}

	cleanupSchedule := cacheCfg.CleanupSchedule
	if cleanupSchedule == "" {
		cleanupSchedule = config.DefaultCacheCleanupSchedule
	}

	byName := make(map[prepcache.SourceName]source.Fetcher, len(fetchers))
	for _, f := range fetchers {
		byName[f.Name()] = f
	}

	e := &Engine{
		cache:              cache,
		cal:                cal,
		fetchers:           byName,
		prompts:            table,
		tracker:            newTracker(),
		interval:           interval,
		aggressiveInterval: aggressiveInterval,
		lookahead:          lookahead,
		maxMeetings:        maxMeetings,
		fetchTimeout:       fetchTimeout,
		shutdownTimeout:    shutdownTimeout,
		quietHoursStart:    prefetchCfg.QuietHoursStart,
		quietHoursEnd:      prefetchCfg.QuietHoursEnd,
		retention:          retention,
		cleanupSchedule:    cleanupSchedule,
		now:                time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Engine) Init(ctx context.Context) error {
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.wake = make(chan struct{}, 1)

	e.cleanup = cron.New()
	if _, err := e.cleanup.AddFunc(e.cleanupSchedule, e.runCleanup); err != nil {
		return fmt.Errorf("parse cleanup schedule %q: %w", e.cleanupSchedule, err)
	}

	slog.Info("Prefetch engine initialized",
		"interval", e.interval,
		"lookahead", e.lookahead,
		"max_meetings", e.maxMeetings)
	return nil
}

func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = true
	e.mu.Unlock()

	e.tracker.update(func(s *Status) { s.Running = true })
	e.cleanup.Start()

	concurrency.SafeGo(e.run, func(r interface{}) {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
		e.tracker.update(func(s *Status) { s.Running = false })
	})

	slog.Info("Prefetch engine started")
	return nil
}

func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = false
	done := e.cycleDone
	e.mu.Unlock()

	e.tracker.update(func(s *Status) { s.Running = false })
	e.cancel()
	e.cleanup.Stop()

	if done != nil {
		select {
		case <-done:
		case <-time.After(e.shutdownTimeout):
			slog.Warn("Prefetch shutdown timeout, abandoning in-flight cycle")
			return prepdErrors.Internal("shutdown timeout")
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	slog.Info("Prefetch engine stopped")
	return nil
}

func (e *Engine) Health(ctx context.Context) error {
	if e.ctx == nil {
		return prepdErrors.Internal("prefetch engine not initialized")
	}
	if !e.IsRunning() {
		return prepdErrors.Internal("prefetch engine not running")
	}
	return nil
}

func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// Status returns a snapshot of the engine state and activity log.
func (e *Engine) Status() Status {
	return e.tracker.snapshot()
}

// ForceAggressive switches the next wait to the aggressive interval and
// wakes the loop. The override lasts for one cycle.
func (e *Engine) ForceAggressive(on bool) {
	e.mu.Lock()
	e.aggressive = on
	wake := e.wake
	e.mu.Unlock()

	e.tracker.update(func(s *Status) { s.Aggressive = on })

	if on && wake != nil {
		select {
		case wake <- struct{}{}:
		default:
		}
	}
}

func (e *Engine) run() {
	// First cycle fires shortly after startup so a fresh daemon is useful
	// without waiting a full interval.
	timer := time.NewTimer(5 * time.Second)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
		case <-e.wake:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		case <-e.ctx.Done():
			slog.Info("Prefetch run loop stopped")
			return
		}

		e.runCycle(e.ctx)
		timer.Reset(e.nextInterval())
	}
}

// nextInterval consumes the aggressive override if one is set.
func (e *Engine) nextInterval() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.aggressive {
		e.aggressive = false
		e.tracker.update(func(s *Status) { s.Aggressive = false })
		return e.aggressiveInterval
	}
	return e.interval
}

func (e *Engine) runCycle(ctx context.Context) {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	aggressive := e.aggressive
	done := make(chan struct{})
	e.cycleDone = done
	e.mu.Unlock()
	defer close(done)

	started := e.now()
	e.tracker.update(func(s *Status) { s.LastCycleStart = started })
	defer func() {
		e.tracker.update(func(s *Status) {
			s.LastCycleEnd = e.now()
			s.CyclesCompleted++
			s.CurrentMeeting = ""
			s.CurrentSource = ""
		})
	}()

	// A forced refresh overrides quiet hours: the user explicitly asked
	// for fresh data, so the overnight guard does not apply.
	if !aggressive && InQuietHours(started, e.quietHoursStart, e.quietHoursEnd) {
		slog.Debug("Skipping prefetch cycle during quiet hours", "hour", started.Hour())
		e.tracker.record(ActivityRecord{
			Time:   started,
			Action: ActionCycleSkip,
			Detail: fmt.Sprintf("quiet hours (%02d:00-%02d:00)", e.quietHoursStart, e.quietHoursEnd),
		})
		return
	}

	meetings, err := e.cal.ListUpcoming(ctx, e.lookahead, e.maxMeetings)
	if err != nil {
		slog.Warn("Failed to list upcoming meetings", "error", err)
		e.tracker.record(ActivityRecord{
			Time:   e.now(),
			Action: ActionFailed,
			Detail: "calendar: " + err.Error(),
		})
		e.tracker.update(func(s *Status) { s.MeetingsInQueue = 0 })
		return
	}

	sort.Slice(meetings, func(i, j int) bool {
		return meetings[i].StartTime.Before(meetings[j].StartTime)
	})
	if len(meetings) > e.maxMeetings {
		meetings = meetings[:e.maxMeetings]
	}

	e.tracker.update(func(s *Status) { s.MeetingsInQueue = len(meetings) })
	e.tracker.record(ActivityRecord{
		Time:   started,
		Action: ActionCycleStart,
		Detail: fmt.Sprintf("%d meetings in next %v", len(meetings), e.lookahead),
	})

	for _, meeting := range meetings {
		if e.stopped(ctx) {
			return
		}
		e.warmMeeting(ctx, meeting)
		e.tracker.update(func(s *Status) { s.MeetingsProcessed++ })
	}
}

// warmMeeting refreshes every source slot for one meeting. Failures are
// isolated: a broken source never blocks the ones after it, and the
// previous good slot data survives.
func (e *Engine) warmMeeting(ctx context.Context, meeting calendar.Meeting) {
	info := prepcache.MeetingInfo{
		Title:       meeting.Title,
		StartTime:   meeting.StartTime,
		Attendees:   meeting.Attendees,
		Description: meeting.Description,
	}
	e.cache.SetMeetingInfo(meeting.ID, info)
	e.tracker.update(func(s *Status) { s.CurrentMeeting = meeting.Title })

	for _, name := range prepcache.SourceOrder {
		if e.stopped(ctx) {
			return
		}

		fetcher, ok := e.fetchers[name]
		if !ok {
			continue
		}

		if e.cache.IsValid(meeting.ID, name) {
			slog.Debug("Slot still valid, skipping", "meeting", meeting.ID, "source", name)
			continue
		}

		e.tracker.update(func(s *Status) { s.CurrentSource = string(name) })
		e.refreshSlot(ctx, fetcher, meeting, info, name)
	}

	e.tracker.update(func(s *Status) { s.CurrentSource = "" })
}

func (e *Engine) refreshSlot(ctx context.Context, fetcher source.Fetcher, meeting calendar.Meeting, info prepcache.MeetingInfo, name prepcache.SourceName) {
	fetchCtx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
	defer cancel()

	req := source.Request{
		MeetingID: meeting.ID,
		Meeting:   info,
		Prompt:    e.prompts.Get(name),
	}

	data, err := fetcher.Fetch(fetchCtx, req)
	if err != nil {
		if prepdErrors.IsCategory(err, prepdErrors.ErrNotConfigured) {
			slog.Debug("Source not configured", "source", name)
			return
		}

		slog.Warn("Source fetch failed",
			"meeting", meeting.ID,
			"source", name,
			"category", prepdErrors.Category(err),
			"error", err)
		e.tracker.record(ActivityRecord{
			Time:      e.now(),
			MeetingID: meeting.ID,
			Meeting:   meeting.Title,
			Source:    name,
			Action:    ActionFailed,
			Detail:    prepdErrors.Category(err),
		})
		return
	}

	e.cache.Set(meeting.ID, name, data)
	e.tracker.record(ActivityRecord{
		Time:      e.now(),
		MeetingID: meeting.ID,
		Meeting:   meeting.Title,
		Source:    name,
		Action:    ActionRefreshed,
	})
}

func (e *Engine) stopped(ctx context.Context) bool {
	if !e.IsRunning() {
		return true
	}
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

func (e *Engine) runCleanup() {
	removed := e.cache.CleanupOld(e.retention)
	if removed > 0 {
		slog.Info("Cleaned up expired meetings", "count", removed)
	}
}

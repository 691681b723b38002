package components

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/prepdhq/prepd/internal/config"
	"github.com/prepdhq/prepd/internal/daemon"
	"github.com/prepdhq/prepd/internal/prepcache"
)

// CacheComponent owns the prep cache and the exclusive file lock on the
// data directory. The lock is taken at init so a second daemon instance
// fails fast instead of corrupting the snapshot.
type CacheComponent struct {
	cfg   *config.Config
	lock  *prepcache.FileLock
	cache *prepcache.Cache
}

func NewCacheComponent(cfg *config.Config) *CacheComponent {
	return &CacheComponent{cfg: cfg}
}

func (c *CacheComponent) Name() string {
	return "PrepCache"
}

func (c *CacheComponent) Dependencies() []string {
	return nil
}

func (c *CacheComponent) Init(ctx context.Context) error {
	lockTimeout, err := config.DurationOrDefault(c.cfg.Daemon.LockTimeout, config.DefaultDaemonLockTimeout)
	if err != nil {
		return fmt.Errorf("parse lock timeout: %w", err)
	}
	lockRetry, err := config.DurationOrDefault(c.cfg.Daemon.LockRetry, config.DefaultDaemonLockRetry)
	if err != nil {
		return fmt.Errorf("parse lock retry: %w", err)
	}
	sourceTTL, err := config.DurationOrDefault(c.cfg.Cache.SourceTTL, config.DefaultCacheSourceTTL)
	if err != nil {
		return fmt.Errorf("parse source ttl: %w", err)
	}
	summaryTTL, err := config.DurationOrDefault(c.cfg.Cache.SummaryTTL, config.DefaultCacheSummaryTTL)
	if err != nil {
		return fmt.Errorf("parse summary ttl: %w", err)
	}

	lock, err := prepcache.AcquireLock(c.cfg.Daemon.DataPath, lockTimeout, lockRetry)
	if err != nil {
		return err
	}
	c.lock = lock

	cachePath := filepath.Join(c.cfg.Daemon.DataPath, "prep_cache.json")
	c.cache = prepcache.New(cachePath, sourceTTL, summaryTTL)

	slog.Info("Prep cache initialized", "component", c.Name(), "path", cachePath, "meetings", len(c.cache.Meetings()))
	return nil
}

func (c *CacheComponent) Start(ctx context.Context) error {
	return nil
}

func (c *CacheComponent) Stop(ctx context.Context) error {
	if c.cache != nil {
		if err := c.cache.SaveToDisk(); err != nil {
			slog.Error("Failed to persist cache on shutdown", "component", c.Name(), "error", err)
		}
	}
	if c.lock != nil {
		c.lock.Unlock()
	}
	return nil
}

func (c *CacheComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	if c.cache == nil {
		return &daemon.ComponentHealth{
			Name:    c.Name(),
			Healthy: false,
			Error:   fmt.Errorf("not initialized"),
		}, nil
	}
	if c.lock == nil || !c.lock.IsLocked() {
		return &daemon.ComponentHealth{
			Name:    c.Name(),
			Healthy: false,
			Error:   fmt.Errorf("data directory lock not held"),
		}, nil
	}
	return &daemon.ComponentHealth{
		Name:    c.Name(),
		Healthy: true,
	}, nil
}

func (c *CacheComponent) GetCache() *prepcache.Cache {
	return c.cache
}

package prepcache

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// FileLock guards the cache directory so two daemon instances cannot
// snapshot over each other's cache file.
type FileLock struct {
	fileLock   *flock.Flock
	lockPath   string
	acquiredAt time.Time
	mu         sync.Mutex
}

// AcquireLock takes an exclusive flock on <dataPath>/prep.lock, retrying
// every retry until timeout elapses.
func AcquireLock(dataPath string, timeout, retry time.Duration) (*FileLock, error) {
	lockPath := filepath.Join(dataPath, "prep.lock")
	fl := &FileLock{
		fileLock: flock.New(lockPath),
		lockPath: lockPath,
	}

	deadline := time.Now().Add(timeout)
	for {
		locked, err := fl.fileLock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("failed to attempt lock: %w", err)
		}
		if locked {
			break
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("cache directory %s is locked by another instance (timeout after %v)",
				dataPath, timeout)
		}
		time.Sleep(retry)
	}

	fl.acquiredAt = time.Now()
	slog.Info("Cache lock acquired", "path", lockPath)
	return fl, nil
}

func (fl *FileLock) Unlock() {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.fileLock == nil {
		return
	}

	if err := fl.fileLock.Unlock(); err != nil {
		slog.Error("Failed to release cache lock", "path", fl.lockPath, "error", err)
	} else {
		slog.Info("Cache lock released",
			"path", fl.lockPath,
			"held_duration_ms", time.Since(fl.acquiredAt).Milliseconds())
	}
	fl.fileLock = nil
}

func (fl *FileLock) IsLocked() bool {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	return fl.fileLock != nil
}

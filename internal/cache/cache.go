// Package cache provides the in-process caches used for dashboard
// aggregates, plus a manager that sweeps expired entries.
package cache

import (
	"sync"
	"time"

	applog "smartexpense/internal/log"
)

// Cache defines a generic cache interface
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	// DeletePrefix removes every key with the given prefix and advances the
	// prefix's generation.
	DeletePrefix(prefix string) int
	// Generation is the number of DeletePrefix calls seen for prefix.
	Generation(prefix string) uint64
	// SetIfGeneration stores data only while prefix is still at gen, so a
	// value computed before an invalidation is never cached after it.
	SetIfGeneration(key, prefix string, gen uint64, data T) bool
	Size() int
}

var _ Cache[int] = (*LRUCache[int])(nil)

// Cleaner interface for caches that support cleanup
type Cleaner interface {
	CleanExpired() int
}

// Manager handles cache lifecycle and cleanup
type Manager struct {
	mu          sync.Mutex
	caches      []Cleaner
	stopCleanup chan struct{}
	cleanupDone chan struct{}
	started     bool
	logger      *applog.Logger
}

func NewManager() *Manager {
	return &Manager{
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
		logger:      applog.New(applog.Config{Component: applog.ComponentCache}),
	}
}

// Register adds a cache to the manager for cleanup
func (m *Manager) Register(c Cleaner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caches = append(m.caches, c)
}

// StartCleanup begins periodic cleanup of all registered caches. Calling it
// twice has no effect.
func (m *Manager) StartCleanup(interval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started || interval <= 0 {
		return
	}
	m.started = true
	go m.cleanup(interval)
}

// CleanNow sweeps every registered cache once.
func (m *Manager) CleanNow() int {
	m.mu.Lock()
	caches := append([]Cleaner(nil), m.caches...)
	m.mu.Unlock()

	total := 0
	for _, c := range caches {
		total += c.CleanExpired()
	}
	return total
}

func (m *Manager) cleanup(interval time.Duration) {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := m.CleanNow(); n > 0 {
				m.logger.Debug("Expired cache entries removed", "count", n)
			}
		case <-m.stopCleanup:
			return
		}
	}
}

// Stop ends the cleanup routine, waiting for it to exit if it was started.
func (m *Manager) Stop() {
	m.mu.Lock()
	started := m.started
	select {
	case <-m.stopCleanup:
		m.mu.Unlock()
		return
	default:
		close(m.stopCleanup)
	}
	m.mu.Unlock()

	if started {
		<-m.cleanupDone
	}
}

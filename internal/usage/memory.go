package usage

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryEntry struct {
	totals    Totals
	expiresAt time.Time
}

type MemoryLedger struct {
	mu              sync.RWMutex
	items           map[string]*memoryEntry
	retention       time.Duration
	stopCleanup     chan struct{}
	cleanupOnce     sync.Once
	cleanupInterval time.Duration
}

// NewMemoryLedger creates an in-process ledger. Entries live for retention
// after their last update (default 48h) and are swept every cleanupInterval
// (default 5m).
func NewMemoryLedger(retention, cleanupInterval time.Duration) *MemoryLedger {
	if retention <= 0 {
		retention = 48 * time.Hour
	}
	if cleanupInterval <= 0 {
		cleanupInterval = 5 * time.Minute
	}

	l := &MemoryLedger{
		items:           make(map[string]*memoryEntry),
		retention:       retention,
		stopCleanup:     make(chan struct{}),
		cleanupInterval: cleanupInterval,
	}

	go l.cleanupExpired()

	return l
}

func (l *MemoryLedger) Add(_ context.Context, day string, rec Record) error {
	key := Key(day, rec.Model)
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.items[key]
	if !ok || now.After(entry.expiresAt) {
		entry = &memoryEntry{totals: Totals{Model: normalizeModel(rec.Model)}}
		l.items[key] = entry
	}
	entry.totals.add(rec)
	entry.expiresAt = now.Add(l.retention)

	return nil
}

// Totals returns one row per model for day, sorted by model.
func (l *MemoryLedger) Totals(_ context.Context, day string) ([]Totals, error) {
	now := time.Now()
	out := []Totals{}

	l.mu.RLock()
	for key, entry := range l.items {
		d, _, ok := splitKey(key)
		if !ok || d != day || now.After(entry.expiresAt) {
			continue
		}
		out = append(out, entry.totals)
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Model < out[j].Model })
	return out, nil
}

// cleanupExpired runs periodically to remove expired entries.
func (l *MemoryLedger) cleanupExpired() {
	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			l.mu.Lock()
			for k, v := range l.items {
				if now.After(v.expiresAt) {
					delete(l.items, k)
				}
			}
			l.mu.Unlock()
		case <-l.stopCleanup:
			return
		}
	}
}

// Close stops the cleanup goroutine.
func (l *MemoryLedger) Close() error {
	l.cleanupOnce.Do(func() {
		close(l.stopCleanup)
	})
	return nil
}

// Len returns the number of (day, model) entries held.
func (l *MemoryLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

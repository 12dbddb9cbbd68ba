// Package limiter bounds request rates per client and limiter class with
// fixed windows over an in-memory, capacity-bounded cache. State is lost on
// restart; limits reset and the service fails open.
package limiter

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Class names the independent request budgets.
const (
	ClassRPC     = "rpc"
	ClassWebhook = "webhook"
	ClassUpload  = "upload"
)

// ClassConfig is one class's quota per window.
type ClassConfig struct {
	Quota  int
	Window time.Duration
}

// Result reports one admission decision.
type Result struct {
	Allowed    bool
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

type entry struct {
	count     int
	resetAt   time.Time
	lastTouch time.Time
}

// Limiter is an injected, lifetime-scoped counter cache. Safe for concurrent
// use; all work is in-memory arithmetic, so Check never blocks on I/O.
type Limiter struct {
	mu       sync.Mutex
	classes  map[string]ClassConfig
	entries  map[string]*entry
	capacity int
	now      func() time.Time
}

// DefaultCapacity bounds the entry cache before eviction kicks in.
const DefaultCapacity = 4096

// New builds a Limiter for the given class configs.
func New(classes map[string]ClassConfig, capacity int) *Limiter {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Limiter{
		classes:  classes,
		entries:  make(map[string]*entry),
		capacity: capacity,
		now:      time.Now,
	}
}

// Check admits or rejects one request for clientID in class. Unknown classes
// are admitted: a misconfigured class must not turn into an outage.
func (l *Limiter) Check(clientID, class string) Result {
	cfg, ok := l.classes[class]
	if !ok || cfg.Quota <= 0 || cfg.Window <= 0 {
		return Result{Allowed: true, Remaining: 1}
	}

	key := fmt.Sprintf("%s:%s", class, clientID)
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if ok && !now.Before(e.resetAt) {
		// Lazy expiry: the window rolled over, start fresh.
		delete(l.entries, key)
		ok = false
	}
	if !ok {
		if len(l.entries) >= l.capacity {
			l.evictOldest()
		}
		e = &entry{resetAt: now.Add(cfg.Window)}
		l.entries[key] = e
	}

	e.lastTouch = now
	if e.count >= cfg.Quota {
		return Result{
			Allowed:    false,
			Remaining:  0,
			ResetAt:    e.resetAt,
			RetryAfter: e.resetAt.Sub(now),
		}
	}

	e.count++
	return Result{
		Allowed:   true,
		Remaining: cfg.Quota - e.count,
		ResetAt:   e.resetAt,
	}
}

// evictOldest drops the oldest 10% of entries by last touch. Approximate
// LRU: the sort cost is paid only when the cache is full.
func (l *Limiter) evictOldest() {
	type aged struct {
		key   string
		touch time.Time
	}
	all := make([]aged, 0, len(l.entries))
	for key, e := range l.entries {
		all = append(all, aged{key: key, touch: e.lastTouch})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].touch.Before(all[j].touch) })

	n := len(all) / 10
	if n < 1 {
		n = 1
	}
	for _, a := range all[:n] {
		delete(l.entries, a.key)
	}
}

// Len reports the live entry count.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

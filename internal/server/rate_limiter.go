package server

import (
	"sync"
	"time"
)

// clientLimiter throttles callers to a fixed number of requests per window.
// Windows are tracked per client key (IP) and stale windows are pruned as a
// side effect of traffic so the map does not grow with dead clients.
type clientLimiter struct {
	limit  int
	window time.Duration

	mu        sync.Mutex
	windows   map[string]*clientWindow
	lastPrune time.Time
}

type clientWindow struct {
	start time.Time
	count int
}

func newClientLimiter(limit int, window time.Duration) *clientLimiter {
	return &clientLimiter{
		limit:     limit,
		window:    window,
		windows:   make(map[string]*clientWindow),
		lastPrune: time.Now().UTC(),
	}
}

func (l *clientLimiter) Allow(key string) bool {
	if key == "" {
		return false
	}

	now := time.Now().UTC()
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastPrune) > l.window {
		l.prune(now)
	}

	w := l.windows[key]
	if w == nil || now.Sub(w.start) > l.window {
		w = &clientWindow{start: now}
		l.windows[key] = w
	}

	if w.count >= l.limit {
		return false
	}

	w.count++
	return true
}

// prune drops windows that lapsed more than one window ago. Caller holds mu.
func (l *clientLimiter) prune(now time.Time) {
	for key, w := range l.windows {
		if now.Sub(w.start) > 2*l.window {
			delete(l.windows, key)
		}
	}
	l.lastPrune = now
}

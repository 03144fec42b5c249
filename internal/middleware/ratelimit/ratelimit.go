// Package ratelimit implements a per-client fixed-window limiter used
// to throttle mutating API requests.
package ratelimit

import (
	"sync"
	"time"
)

const staleAfter = 10 * time.Minute

// Config holds rate limiter configuration
type Config struct {
	RequestsPerMinute int
	CleanupInterval   time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 60,
		CleanupInterval:   5 * time.Minute,
	}
}

type window struct {
	count   int
	startAt time.Time
	seenAt  time.Time
}

// Limiter tracks one fixed window per client key. Idle clients are
// swept by a background goroutine until Stop is called.
type Limiter struct {
	mu       sync.Mutex
	windows  map[string]*window
	stop     chan struct{}
	stopOnce sync.Once

	perMinute       int
	cleanupInterval time.Duration
}

// NewLimiter creates a limiter and starts its sweep goroutine. Zero
// config fields fall back to DefaultConfig values.
func NewLimiter(config Config) *Limiter {
	def := DefaultConfig()
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = def.RequestsPerMinute
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = def.CleanupInterval
	}

	l := &Limiter{
		windows:         make(map[string]*window),
		stop:            make(chan struct{}),
		perMinute:       config.RequestsPerMinute,
		cleanupInterval: config.CleanupInterval,
	}
	go l.sweepLoop()
	return l
}

// Allow reports whether the client identified by key may proceed, and
// counts the request against its current window.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	w := l.windows[key]
	if w == nil || now.Sub(w.startAt) > time.Minute {
		l.windows[key] = &window{count: 1, startAt: now, seenAt: now}
		return true
	}

	w.count++
	w.seenAt = now
	return w.count <= l.perMinute
}

func (l *Limiter) sweepLoop() {
	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.sweep()
		case <-l.stop:
			return
		}
	}
}

func (l *Limiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-staleAfter)
	for key, w := range l.windows {
		if w.seenAt.Before(cutoff) {
			delete(l.windows, key)
		}
	}
}

// ActiveClients returns the number of currently tracked clients
func (l *Limiter) ActiveClients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// Stop terminates the sweep goroutine. Safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() {
		close(l.stop)
	})
}

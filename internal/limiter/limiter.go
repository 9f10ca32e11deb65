// Package limiter throttles clients that keep presenting bad credentials.
package limiter

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// Limiter controls attempts and temporary lockouts per key.
type Limiter interface {
	// Allow reports whether key may try now and, if not, how long until it may.
	Allow(key string) (bool, time.Duration)
	// Success resets the counters of key.
	Success(key string)
	// Failure records a failed attempt; it reports whether key is now blocked.
	Failure(key string) (bool, time.Duration)
}

type entry struct {
	fails        int
	updated      time.Time
	blockedUntil time.Time
}

// Memory is an in-process limiter with a sliding failure window and a fixed lockout.
// Safe for concurrent use.
type Memory struct {
	window   time.Duration
	maxFails int
	blockFor time.Duration
	now      func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

// NewMemory blocks a key for blockFor once it fails maxFails times with no gap
// longer than window between failures.
func NewMemory(window time.Duration, maxFails int, blockFor time.Duration) *Memory {
	return &Memory{
		window:   window,
		maxFails: maxFails,
		blockFor: blockFor,
		now:      time.Now,
		entries:  make(map[string]*entry),
	}
}

// WithClock replaces the time source.
func (l *Memory) WithClock(now func() time.Time) *Memory {
	l.now = now
	return l
}

// HashIP returns a stable key for an IP string so raw addresses are not kept.
func HashIP(ip string) string {
	h := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(h[:])
}

func (l *Memory) Allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok {
		return true, 0
	}
	now := l.now()
	if e.blockedUntil.After(now) {
		return false, e.blockedUntil.Sub(now)
	}
	return true, 0
}

func (l *Memory) Success(key string) {
	l.mu.Lock()
	delete(l.entries, key)
	l.mu.Unlock()
}

func (l *Memory) Failure(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	e, ok := l.entries[key]
	if !ok || now.Sub(e.updated) > l.window {
		e = &entry{}
		l.entries[key] = e
	}
	e.fails++
	e.updated = now
	if e.fails >= l.maxFails {
		e.blockedUntil = now.Add(l.blockFor)
		e.fails = 0
		return true, l.blockFor
	}
	return false, 0
}

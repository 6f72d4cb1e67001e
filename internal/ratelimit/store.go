// SPDX-License-Identifier: MIT

package ratelimit

import (
	"sync"
	"time"
)

// Decision is the verdict for one request.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// ResetAt is when the client's current window ends.
	ResetAt time.Time
}

// RetryAfter returns how long a rejected client should wait, rounded up to
// whole seconds and never less than one.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	secs := (d.ResetAt.Sub(now) + time.Second - 1) / time.Second
	if secs < 1 {
		secs = 1
	}
	return secs * time.Second
}

// Store counts requests per client key in fixed windows.
type Store interface {
	// Hit counts one request for key at now and reports whether it fits.
	Hit(key string, now time.Time) Decision
	// Sweep drops windows that ended before now and returns how many remain.
	Sweep(now time.Time) int
}

type window struct {
	start time.Time
	count int
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	limit  int
	period time.Duration

	mu      sync.Mutex
	windows map[string]*window
}

// NewMemoryStore allows limit requests per client in each period.
func NewMemoryStore(limit int, period time.Duration) *MemoryStore {
	return &MemoryStore{
		limit:   limit,
		period:  period,
		windows: make(map[string]*window),
	}
}

func (s *MemoryStore) Hit(key string, now time.Time) Decision {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok || !now.Before(w.start.Add(s.period)) {
		w = &window{start: now}
		s.windows[key] = w
	}
	d := Decision{Limit: s.limit, ResetAt: w.start.Add(s.period)}
	if w.count >= s.limit {
		return d
	}
	w.count++
	d.Allowed = true
	d.Remaining = s.limit - w.count
	return d
}

func (s *MemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, w := range s.windows {
		if !now.Before(w.start.Add(s.period)) {
			delete(s.windows, key)
		}
	}
	return len(s.windows)
}

// Len returns the number of tracked clients.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

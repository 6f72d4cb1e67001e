// SPDX-License-Identifier: MIT

package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func fixedClock(t time.Time) (func() time.Time, func(time.Duration)) {
	now := t
	return func() time.Time { return now }, func(d time.Duration) { now = now.Add(d) }
}

func TestMemoryStoreFixedWindow(t *testing.T) {
	s := NewMemoryStore(3, time.Minute)
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		d := s.Hit("10.0.0.1", t0.Add(time.Duration(i)*time.Second))
		require.True(t, d.Allowed)
		assert.Equal(t, 2-i, d.Remaining)
	}

	d := s.Hit("10.0.0.1", t0.Add(30*time.Second))
	assert.False(t, d.Allowed)
	assert.Equal(t, t0.Add(time.Minute), d.ResetAt)

	// Other clients are independent.
	assert.True(t, s.Hit("10.0.0.2", t0.Add(30*time.Second)).Allowed)

	// A new window opens at the boundary.
	d = s.Hit("10.0.0.1", t0.Add(time.Minute))
	assert.True(t, d.Allowed)
	assert.Equal(t, 2, d.Remaining)
}

func TestMemoryStoreSweep(t *testing.T) {
	s := NewMemoryStore(1, time.Minute)
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	s.Hit("a", t0)
	s.Hit("b", t0.Add(40*time.Second))
	require.Equal(t, 2, s.Len())

	assert.Equal(t, 1, s.Sweep(t0.Add(time.Minute)))
	assert.Equal(t, 0, s.Sweep(t0.Add(2*time.Minute)))
}

func TestDecisionRetryAfter(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		reset time.Duration
		want  time.Duration
	}{
		{0, time.Second},
		{-time.Second, time.Second},
		{300 * time.Millisecond, time.Second},
		{time.Second, time.Second},
		{1500 * time.Millisecond, 2 * time.Second},
		{59 * time.Second, 59 * time.Second},
	}
	for _, tt := range tests {
		d := Decision{ResetAt: now.Add(tt.reset)}
		assert.Equal(t, tt.want, d.RetryAfter(now), tt.reset.String())
	}
}

func TestLimiterPerClient(t *testing.T) {
	l := New(Config{Requests: 2, Window: time.Minute}, nil)
	now, advance := fixedClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	l.now = now

	assert.True(t, l.Allow("192.168.1.1").Allowed)
	assert.True(t, l.Allow("192.168.1.1").Allowed)
	assert.False(t, l.Allow("192.168.1.1").Allowed)
	assert.True(t, l.Allow("192.168.1.2").Allowed)

	advance(time.Minute)
	assert.True(t, l.Allow("192.168.1.1").Allowed)
}

func TestLimiterGlobal(t *testing.T) {
	l := New(Config{Requests: 1000, Window: time.Minute, GlobalRate: 1, GlobalBurst: 5}, nil)
	now, _ := fixedClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	l.now = now

	allowed := 0
	for i := 0; i < 10; i++ {
		if l.Allow("10.0.0.1").Allowed {
			allowed++
		}
	}
	assert.Equal(t, 5, allowed)
}

type countingStore struct {
	*MemoryStore
	sweeps chan struct{}
}

func (c *countingStore) Sweep(now time.Time) int {
	n := c.MemoryStore.Sweep(now)
	select {
	case c.sweeps <- struct{}{}:
	default:
	}
	return n
}

func TestLimiterRunSweepsUntilCanceled(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	store := &countingStore{MemoryStore: NewMemoryStore(1, time.Millisecond), sweeps: make(chan struct{}, 1)}
	l := New(Config{Requests: 1, Window: time.Millisecond, SweepInterval: 5 * time.Millisecond}, store)
	l.Allow("a")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	select {
	case <-store.sweeps:
	case <-time.After(2 * time.Second):
		t.Fatal("no sweep")
	}
	cancel()
	require.NoError(t, <-done)
	assert.Eventually(t, func() bool { return store.Len() == 0 }, time.Second, 5*time.Millisecond)
}

// SPDX-License-Identifier: MIT

package cache

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// Loader reads through a Cache. Concurrent misses for the same key share
// one load. A zero TTL disables caching but still collapses misses.
type Loader struct {
	cache Cache
	group singleflight.Group
	ttl   atomic.Int64
}

// NewLoader wraps c with the given TTL.
func NewLoader(c Cache, ttl time.Duration) *Loader {
	l := &Loader{cache: c}
	l.SetTTL(ttl)
	return l
}

// SetTTL changes the TTL for values stored from now on.
func (l *Loader) SetTTL(ttl time.Duration) { l.ttl.Store(int64(ttl)) }

// TTL returns the current TTL.
func (l *Loader) TTL() time.Duration { return time.Duration(l.ttl.Load()) }

// Get returns the cached value for key or calls load. Failed loads are not
// cached.
func (l *Loader) Get(ctx context.Context, key string, load func(context.Context) ([]byte, error)) ([]byte, error) {
	ttl := l.TTL()
	if ttl > 0 {
		if v, ok := l.cache.Get(ctx, key); ok {
			return v, nil
		}
	}

	v, err, _ := l.group.Do(key, func() (any, error) {
		b, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if ttl > 0 {
			l.cache.Set(ctx, key, b, ttl)
		}
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Invalidate drops key.
func (l *Loader) Invalidate(ctx context.Context, key string) {
	l.cache.Delete(ctx, key)
}

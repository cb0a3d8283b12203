// Package memcache is an in-process cache.Cache used when no redis server is
// configured. Values are stored JSON encoded so reads behave like rediscache.
package memcache

import (
	"context"
	"encoding"
	"encoding/json"
	"time"

	"github.com/ARF-DEV/caffeine_jukebox/internal/cache"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/pkg/errors"
)

var _ cache.Cache = (*MemCache)(nil)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// MemCache holds at most maxEntries values and evicts the least recently
// used one when full. Every value lives at most ttl; SetExp can shorten
// that per key.
type MemCache struct {
	lru *expirable.LRU[string, entry]
	now func() time.Time
}

// New returns a cache capped at maxEntries values, or unbounded when
// maxEntries is 0. A ttl of 0 keeps values until they are evicted.
func New(maxEntries int, ttl time.Duration) *MemCache {
	if maxEntries < 0 {
		maxEntries = 0
	}
	return &MemCache{
		lru: expirable.NewLRU[string, entry](maxEntries, nil, ttl),
		now: time.Now,
	}
}

func (mc *MemCache) GetAndParse(_ context.Context, key string, dst interface{}) error {
	e, found := mc.lru.Get(key)
	if found && mc.expired(e) {
		mc.lru.Remove(key)
		found = false
	}
	if !found {
		return cache.ErrMiss
	}
	return errors.Wrapf(json.Unmarshal(e.value, dst), "decode %s", key)
}

func (mc *MemCache) Set(ctx context.Context, key string, value interface{}) error {
	return mc.SetExp(ctx, key, value, 0)
}

func (mc *MemCache) SetExp(_ context.Context, key string, value interface{}, exp time.Duration) error {
	var (
		b   []byte
		err error
	)
	if m, ok := value.(encoding.BinaryMarshaler); ok {
		b, err = m.MarshalBinary()
	} else {
		b, err = json.Marshal(value)
	}
	if err != nil {
		return errors.Wrapf(err, "encode %s", key)
	}

	e := entry{value: b}
	if exp > 0 {
		e.expiresAt = mc.now().Add(exp)
	}
	mc.lru.Add(key, e)
	return nil
}

// Len reports how many values are held, expired ones included until they
// are swept.
func (mc *MemCache) Len() int {
	return mc.lru.Len()
}

// Sweep drops every value whose SetExp expiry has passed and reports how
// many were removed.
func (mc *MemCache) Sweep() int {
	n := 0
	for _, k := range mc.lru.Keys() {
		if e, found := mc.lru.Peek(k); found && mc.expired(e) {
			if mc.lru.Remove(k) {
				n++
			}
		}
	}
	return n
}

func (mc *MemCache) Ping(context.Context) error { return nil }

func (mc *MemCache) Close() error {
	mc.lru.Purge()
	return nil
}

// RunSweeper calls Sweep every interval until ctx is done.
func (mc *MemCache) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mc.Sweep()
		}
	}
}

func (mc *MemCache) expired(e entry) bool {
	return !e.expiresAt.IsZero() && !mc.now().Before(e.expiresAt)
}

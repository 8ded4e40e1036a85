package story

import (
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// SeenCache remembers users that recently received the opening chapter.
// Entries expire a fixed TTL after insertion; when full the least recently
// used entry is evicted.
//
// HasRecentlyStarted followed by MarkStarted is not atomic. Two /start
// updates from the same user handled at the same moment may both get the
// chapter; this debounce only suppresses repeats.
type SeenCache struct {
	cache     *ttlcache.Cache[int64, bool]
	closeOnce sync.Once
}

// NewSeenCache creates a SeenCache and starts its expiry loop.
func NewSeenCache(ttl time.Duration, capacity uint64) *SeenCache {
	s := &SeenCache{
		cache: ttlcache.New[int64, bool](
			ttlcache.WithTTL[int64, bool](ttl),
			ttlcache.WithCapacity[int64, bool](capacity),
			ttlcache.WithDisableTouchOnHit[int64, bool](),
		),
	}
	go s.cache.Start()
	return s
}

// HasRecentlyStarted reports whether userID has a live entry.
func (s *SeenCache) HasRecentlyStarted(userID int64) bool {
	item := s.cache.Get(userID)
	return item != nil && item.Value()
}

// MarkStarted records userID with a fresh TTL.
func (s *SeenCache) MarkStarted(userID int64) {
	s.cache.Set(userID, true, ttlcache.DefaultTTL)
}

// Len returns the number of entries, expired ones not yet collected included.
func (s *SeenCache) Len() int { return s.cache.Len() }

// Metrics returns the cache counters.
func (s *SeenCache) Metrics() ttlcache.Metrics { return s.cache.Metrics() }

// Close stops the expiry loop. It is safe to call more than once.
func (s *SeenCache) Close() {
	s.closeOnce.Do(s.cache.Stop)
}

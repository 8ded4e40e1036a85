package story

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/sync/singleflight"

	"github.com/m3rciful/storybot/core/logger"
)

// documentKey is the single slot the document is cached under.
const documentKey = "bot"

// Store loads the story document lazily and keeps it for a fixed TTL counted
// from the load. Reads never extend the TTL, so the file is read at most once
// per window however often Get is called. Failed loads are not cached.
type Store struct {
	path  string
	cache *ttlcache.Cache[string, *Document]
	group singleflight.Group
	loads atomic.Uint64

	readFile  func(string) ([]byte, error)
	closeOnce sync.Once
}

// NewStore creates a Store for the document at path and starts the cache's
// expiry loop. Close stops it.
func NewStore(path string, ttl time.Duration, capacity uint64) *Store {
	s := &Store{
		path: path,
		cache: ttlcache.New[string, *Document](
			ttlcache.WithTTL[string, *Document](ttl),
			ttlcache.WithCapacity[string, *Document](capacity),
			ttlcache.WithDisableTouchOnHit[string, *Document](),
		),
		readFile: os.ReadFile,
	}
	go s.cache.Start()
	return s
}

// Path returns the file the document is read from.
func (s *Store) Path() string { return s.path }

// Get returns the cached document, loading it from disk when the slot is
// empty or expired. Concurrent misses share one read.
func (s *Store) Get(ctx context.Context) (*Document, error) {
	if item := s.cache.Get(documentKey); item != nil {
		logger.Story.LogAttrs(ctx, slog.LevelDebug, "document",
			slog.String("event", "story.get"),
			slog.String("cache", "hit"),
		)
		return item.Value(), nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v, err, shared := s.group.Do(documentKey, func() (any, error) {
		// a concurrent caller may have filled the slot while we waited
		if item := s.cache.Get(documentKey); item != nil {
			return item.Value(), nil
		}
		return s.load(ctx)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		logger.Story.LogAttrs(ctx, slog.LevelDebug, "document",
			slog.String("event", "story.get"),
			slog.String("cache", "miss"),
			slog.Bool("shared", true),
		)
	}
	return v.(*Document), nil
}

func (s *Store) load(ctx context.Context) (*Document, error) {
	start := time.Now()
	s.loads.Add(1)

	data, err := s.readFile(s.path)
	if err != nil {
		logger.Story.LogAttrs(ctx, slog.LevelError, "document",
			slog.String("event", "story.load"),
			slog.String("status", "fail"),
			slog.String("cache", "miss"),
			slog.String("path", s.path),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("story: read %s: %w", s.path, err)
	}
	doc, err := Parse(data)
	if err != nil {
		logger.Story.LogAttrs(ctx, slog.LevelError, "document",
			slog.String("event", "story.load"),
			slog.String("status", "fail"),
			slog.String("cache", "miss"),
			slog.String("path", s.path),
			slog.String("err", err.Error()),
		)
		return nil, err
	}

	s.cache.Set(documentKey, doc, ttlcache.DefaultTTL)
	logger.Story.LogAttrs(ctx, slog.LevelInfo, "document",
		slog.String("event", "story.load"),
		slog.String("status", "ok"),
		slog.String("cache", "miss"),
		slog.String("path", s.path),
		slog.Int("bytes", len(data)),
		slog.Duration("duration", time.Since(start)),
	)
	return doc, nil
}

// Warm loads the document once so a missing or malformed file fails startup.
func (s *Store) Warm(ctx context.Context) error {
	_, err := s.Get(ctx)
	return err
}

// Loads reports how many times the document was read from disk.
func (s *Store) Loads() uint64 { return s.loads.Load() }

// Metrics returns the cache counters.
func (s *Store) Metrics() ttlcache.Metrics { return s.cache.Metrics() }

// Close stops the expiry loop. It is safe to call more than once.
func (s *Store) Close() {
	s.closeOnce.Do(s.cache.Stop)
}

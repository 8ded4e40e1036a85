package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/m3rciful/storybot/core/logger"

	tele "gopkg.in/telebot.v4"
)

const rateLimitCapacity = 10_000

// RateLimitOptions configures behaviour of the rate limit middleware.
type RateLimitOptions struct {
	Interval  time.Duration
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
}

// RateLimitMiddleware returns a middleware that enforces a minimum interval
// between updates from the same user. Last-seen marks expire after Interval.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	var (
		mu       sync.Mutex
		lastSeen = ttlcache.New[int64, time.Time](
			ttlcache.WithTTL[int64, time.Time](opts.Interval),
			ttlcache.WithCapacity[int64, time.Time](rateLimitCapacity),
			ttlcache.WithDisableTouchOnHit[int64, time.Time](),
		)
	)
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}
			if _, skip := opts.Exclude[updateKind(c.Update())]; skip {
				return next(c)
			}

			mu.Lock()
			limited := lastSeen.Get(user.ID) != nil
			if !limited {
				lastSeen.Set(user.ID, time.Now(), ttlcache.DefaultTTL)
			}
			mu.Unlock()

			if !limited {
				return next(c)
			}

			attrs := []any{
				slog.String("event", "tg.rate_limit"),
				slog.Int64("user_id", user.ID),
			}
			if chat := c.Chat(); chat != nil {
				attrs = append(attrs, slog.Int64("chat_id", chat.ID))
			}
			logger.TG.Warn("rate limit", attrs...)
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}

func updateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return "callback"
	case upd.Message != nil:
		return "message"
	case upd.Query != nil:
		return "inline_query"
	case upd.MyChatMember != nil:
		return "my_chat_member"
	}
	return "other"
}

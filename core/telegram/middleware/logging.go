package middleware

import (
	"log/slog"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/m3rciful/storybot/core/logger"
	"github.com/m3rciful/storybot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/storybot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// recentUpdates remembers processed update IDs for a short while so the
// receipt line is written once even when the middleware wraps several branches.
var recentUpdates = ttlcache.New[int, struct{}](
	ttlcache.WithTTL[int, struct{}](10*time.Second),
	ttlcache.WithCapacity[int, struct{}](4096),
	ttlcache.WithDisableTouchOnHit[int, struct{}](),
)

func alreadyLogged(updateID int) bool {
	_, found := recentUpdates.GetOrSet(updateID, struct{}{})
	return found
}

// LoggerMiddleware logs a single receipt line per update and sets rid.
// It deduplicates by update_id to prevent double logging when middleware is applied on multiple branches.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		upd := c.Update()
		user := c.Sender()
		chat := c.Chat()

		meta := tghelpers.MetaOf(c)
		chatID, userID := meta.ChatID, meta.UserID
		rid := meta.RID()
		c.Set("rid", rid)
		c.Set("update_start", time.Now())

		ctx := tghelpers.NewContext(meta, rid)
		tghelpers.Attach(c, ctx)

		// Deduplicate update receipt logs
		if logger.ShouldSampleDebug() && !alreadyLogged(upd.ID) {
			attrs := []slog.Attr{
				slog.String("status", "ok"),
				slog.String("rid", rid),
				slog.Int("update_id", upd.ID),
			}
			if chatID != 0 {
				attrs = append(attrs, slog.Int64("chat_id", chatID))
				attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
			}
			if userID != 0 {
				attrs = append(attrs, slog.Int64("user_id", userID))
				if user != nil && user.Username != "" {
					attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
				}
				if user != nil && user.LanguageCode != "" {
					attrs = append(attrs, slog.String("lang", user.LanguageCode))
				}
			}

			// Enrich by kind
			switch {
			case upd.Callback != nil:
				key, payload := callbacks.ParseCallbackData(upd.Callback)
				if key != "" {
					attrs = append(attrs, slog.String("cb_key", logger.SanitizeLimit(key, 128)))
				}
				if payload != "" {
					attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(payload, 256)))
				}
			case upd.MyChatMember != nil:
				if m := upd.MyChatMember.NewChatMember; m != nil {
					attrs = append(attrs, slog.String("member_status", string(m.Role)))
				}
			case upd.Message != nil:
				if t := c.Text(); t != "" {
					attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(t, 256)))
				}
			}
			logger.LogEvent(ctx, logger.Component("tg"), slog.LevelDebug, "update.received", attrs...)
		}

		return next(c)
	}
}

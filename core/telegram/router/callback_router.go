package router

import (
	"log/slog"
	"time"

	"github.com/m3rciful/storybot/core/logger"
	tg "github.com/m3rciful/storybot/core/telegram"
	"github.com/m3rciful/storybot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/storybot/core/telegram/helpers"
	"github.com/m3rciful/storybot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions customises fallback behaviour for callbacks.
type CallbackOptions struct {
	// NotFound runs for keys with no registered handler. Defaults to the
	// registry's CallbackNotFound.
	NotFound tele.HandlerFunc
	// Answer is sent when acknowledging the query. Nil clears the spinner
	// without a toast.
	Answer *tele.CallbackResponse
}

// CallbackRoute routes inline button presses through the registry. The query
// is answered once before dispatch whether or not the key is known, so the
// client spinner never hangs.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		cb := c.Callback()
		if cb == nil {
			return nil
		}

		key, payload := callbacks.ParseCallbackData(cb)
		extras := []slog.Attr{slog.String("cb_key", logger.SanitizeLimit(key, 64))}
		if payload != "" {
			extras = append(extras, slog.String("payload", logger.SanitizeLimit(payload, 64)))
		}

		if opts.Answer != nil {
			_ = tghelpers.Respond(c, opts.Answer)
		} else {
			_ = tghelpers.Respond(c)
		}

		run, status := resolveCallback(reg, key, opts.NotFound)
		name := "callback." + normalizeHandlerName(key)
		if status == "skip" {
			// key is client-controlled; keep handler names bounded
			name = "callback.unknown"
			extras = append(extras, slog.String("reason", "not_found"))
		}
		return handleWithSummary(c, name, start, status, "", func() error {
			if run == nil {
				return nil
			}
			return run(c)
		}, extras...)
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}

// resolveCallback picks the handler for key. Unknown keys resolve to the
// fallback with status skip.
func resolveCallback(reg *tg.Registry, key string, notFound tele.HandlerFunc) (tele.HandlerFunc, string) {
	if h, ok := reg.GetCallback(key); ok && h != nil {
		return h, ""
	}
	if notFound == nil {
		notFound = reg.CallbackNotFound()
	}
	return notFound, "skip"
}

package helpers

import (
	"context"

	"github.com/m3rciful/storybot/core/logger"

	tele "gopkg.in/telebot.v4"
)

const ctxStoreKey = "storybot.ctx"

// Meta identifies one update for logging.
type Meta struct {
	UpdateID int
	UserID   int64
	ChatID   int64
}

// MetaOf reads the update, sender and chat ids from c. Absent parts are zero.
func MetaOf(c tele.Context) Meta {
	m := Meta{UpdateID: c.Update().ID}
	if u := c.Sender(); u != nil {
		m.UserID = u.ID
	}
	if ch := c.Chat(); ch != nil {
		m.ChatID = ch.ID
	}
	return m
}

// RID is the correlation id shared by every log line of the update.
func (m Meta) RID() string {
	return logger.BuildRID(m.UpdateID, m.ChatID, m.UserID)
}

// NewContext returns a context carrying rid, m and the tg component logger.
func NewContext(m Meta, rid string) context.Context {
	if rid == "" {
		rid = m.RID()
	}
	ctx := logger.WithRID(context.Background(), rid)
	ctx = logger.WithUpdateMeta(ctx, m.UpdateID, m.UserID, m.ChatID)
	return logger.WithLogger(ctx, logger.TG)
}

// Attach stores ctx on c for later middlewares and handlers.
func Attach(c tele.Context, ctx context.Context) {
	if c != nil && ctx != nil {
		c.Set(ctxStoreKey, ctx)
	}
}

// Attached returns the context stored by Attach, if any.
func Attached(c tele.Context) (context.Context, bool) {
	if c == nil {
		return nil, false
	}
	ctx, ok := c.Get(ctxStoreKey).(context.Context)
	return ctx, ok && ctx != nil
}

// BuildContext returns the attached context, creating and attaching one on
// first use.
func BuildContext(c tele.Context) context.Context {
	if ctx, ok := Attached(c); ok {
		return ctx
	}
	rid, _ := c.Get("rid").(string)
	ctx := NewContext(MetaOf(c), rid)
	Attach(c, ctx)
	return ctx
}

// WithHandler tags the attached context with the handler name.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := BuildContext(c)
	if handler != "" {
		ctx = logger.WithHandler(ctx, handler)
		Attach(c, ctx)
	}
	return ctx
}

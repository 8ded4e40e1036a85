package middleware

import (
	"sync/atomic"

	tele "gopkg.in/telebot.v4"
)

const countersKey = "storybot.counters"

// Counters tallies what a handler sent back for one update.
type Counters struct {
	messages atomic.Int32
	keyboard atomic.Bool
	answered atomic.Bool
}

// Messages is the number of successful sends, replies and edits.
func (n *Counters) Messages() int { return int(n.messages.Load()) }

// Keyboard reports whether any reply carried markup.
func (n *Counters) Keyboard() bool { return n.keyboard.Load() }

// Answered reports whether a callback query was answered.
func (n *Counters) Answered() bool { return n.answered.Load() }

func (n *Counters) sent(opts []any) {
	n.messages.Add(1)
	if hasMarkup(opts) {
		n.keyboard.Store(true)
	}
}

func hasMarkup(opts []any) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		case *tele.ReplyMarkup:
			if v != nil {
				return true
			}
		}
	}
	return false
}

// countingContext forwards to the wrapped context and records outgoing traffic.
type countingContext struct {
	tele.Context
	n *Counters
}

func (c countingContext) Send(what any, opts ...any) error {
	return c.track(c.Context.Send(what, opts...), opts)
}

func (c countingContext) Reply(what any, opts ...any) error {
	return c.track(c.Context.Reply(what, opts...), opts)
}

func (c countingContext) Edit(what any, opts ...any) error {
	return c.track(c.Context.Edit(what, opts...), opts)
}

func (c countingContext) EditOrSend(what any, opts ...any) error {
	return c.track(c.Context.EditOrSend(what, opts...), opts)
}

func (c countingContext) Respond(resp ...*tele.CallbackResponse) error {
	err := c.Context.Respond(resp...)
	if err == nil {
		c.n.answered.Store(true)
	}
	return err
}

func (c countingContext) track(err error, opts []any) error {
	if err == nil {
		c.n.sent(opts)
	}
	return err
}

// MessageMetricsMiddleware counts what the handler sends for the update
// summary line.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		n := &Counters{}
		c.Set(countersKey, n)
		return next(countingContext{Context: c, n: n})
	}
}

// CountersFrom returns the counters installed by MessageMetricsMiddleware, or
// an empty set when the middleware did not run.
func CountersFrom(c tele.Context) *Counters {
	if c != nil {
		if n, ok := c.Get(countersKey).(*Counters); ok && n != nil {
			return n
		}
	}
	return &Counters{}
}

package story

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jellydator/ttlcache/v3"

	"github.com/m3rciful/storybot/core/logger"
	tghelpers "github.com/m3rciful/storybot/core/telegram/helpers"
	"github.com/m3rciful/storybot/core/telegram/keyboard"

	tele "gopkg.in/telebot.v4"
)

// Callback keys of the opening chapter buttons.
const (
	CallbackStartStory      = "start_story"
	CallbackContinueReading = "continue_reading"
)

// Fixed replies and button labels.
const (
	ButtonStartStory      = "开始互动"
	ButtonContinueReading = "继续阅读"

	StartStoryReply      = "你选择了开始互动！请做出你的选择：\nA. 立即打开信封\nB. 仔细检查信封"
	ContinueReadingReply = "你选择继续阅读。更多内容即将推出..."
)

// DocumentSource provides the current story document.
type DocumentSource interface {
	Get(ctx context.Context) (*Document, error)
}

// StartTracker is the per-user /start debounce.
type StartTracker interface {
	HasRecentlyStarted(userID int64) bool
	MarkStarted(userID int64)
}

// Stats is a snapshot of both caches.
type Stats struct {
	Document  ttlcache.Metrics
	Loads     uint64
	Seen      ttlcache.Metrics
	SeenUsers int
}

// Handlers implements the bot's commands and callbacks.
type Handlers struct {
	docs  DocumentSource
	seen  StartTracker
	stats func() Stats
}

// NewHandlers wires handlers to a document source and a start tracker.
// stats may be nil when /stats is not exposed.
func NewHandlers(docs DocumentSource, seen StartTracker, stats func() Stats) *Handlers {
	return &Handlers{docs: docs, seen: seen, stats: stats}
}

// OpeningKeyboard is the button pair sent with the first chapter.
func OpeningKeyboard() *tele.ReplyMarkup {
	return keyboard.InlineRow(
		keyboard.InlineBtn{Text: ButtonStartStory, Unique: CallbackStartStory},
		keyboard.InlineBtn{Text: ButtonContinueReading, Unique: CallbackContinueReading},
	)
}

// Start sends the first chapter with the opening keyboard, unless the sender
// already got it within the debounce window.
func (h *Handlers) Start(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	var userID int64
	if u := c.Sender(); u != nil {
		userID = u.ID
	}

	if h.seen.HasRecentlyStarted(userID) {
		logger.Story.LogAttrs(ctx, slog.LevelInfo, "start",
			slog.String("event", "story.start"),
			slog.String("status", "skip"),
			slog.String("reason", "recently_started"),
		)
		return nil
	}

	doc, err := h.docs.Get(ctx)
	if err != nil {
		return err
	}
	if err := tghelpers.SendWithMarkup(c, doc.Bot.FirstChapter, OpeningKeyboard()); err != nil {
		return err
	}
	h.seen.MarkStarted(userID)
	return nil
}

// Help sends the help text.
func (h *Handlers) Help(c tele.Context) error {
	doc, err := h.docs.Get(tghelpers.BuildContext(c))
	if err != nil {
		return err
	}
	return tghelpers.SendText(c, doc.Bot.HelpMessage)
}

// StartStory answers the start_story button.
func (h *Handlers) StartStory(c tele.Context) error {
	return tghelpers.SendText(c, StartStoryReply)
}

// ContinueReading answers the continue_reading button.
func (h *Handlers) ContinueReading(c tele.Context) error {
	return tghelpers.SendText(c, ContinueReadingReply)
}

// Welcome greets a chat the bot has just been added to. Other membership
// changes are ignored.
func (h *Handlers) Welcome(c tele.Context) error {
	upd := c.ChatMember()
	if upd == nil || !joined(upd) {
		return nil
	}
	doc, err := h.docs.Get(tghelpers.BuildContext(c))
	if err != nil {
		return err
	}
	return tghelpers.SendText(c, doc.Bot.WelcomeMessage)
}

func joined(upd *tele.ChatMemberUpdate) bool {
	if upd.OldChatMember == nil || upd.NewChatMember == nil {
		return false
	}
	switch upd.OldChatMember.Role {
	case tele.Left, tele.Kicked:
	default:
		return false
	}
	switch upd.NewChatMember.Role {
	case tele.Member, tele.Administrator:
		return true
	}
	return false
}

// Stats reports cache counters to the admin.
func (h *Handlers) Stats(c tele.Context) error {
	if h.stats == nil {
		return nil
	}
	return tghelpers.SendText(c, FormatStats(h.stats()))
}

// FormatStats renders s as a short plain-text report.
func FormatStats(s Stats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "document: loads=%d hits=%d misses=%d insertions=%d evictions=%d\n",
		s.Loads, s.Document.Hits, s.Document.Misses, s.Document.Insertions, s.Document.Evictions)
	fmt.Fprintf(&b, "seen: users=%d hits=%d misses=%d insertions=%d evictions=%d",
		s.SeenUsers, s.Seen.Hits, s.Seen.Misses, s.Seen.Insertions, s.Seen.Evictions)
	return b.String()
}

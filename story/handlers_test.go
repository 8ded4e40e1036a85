package story

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/storybot/core/telegram/teletest"

	tele "gopkg.in/telebot.v4"
)

type staticDocs struct {
	doc   *Document
	err   error
	calls atomic.Int32
}

func (s *staticDocs) Get(context.Context) (*Document, error) {
	s.calls.Add(1)
	return s.doc, s.err
}

func testDocs() *staticDocs {
	return &staticDocs{doc: &Document{Bot: Texts{
		FirstChapter:   "Once upon a time",
		HelpMessage:    "Press /start",
		WelcomeMessage: "Hello, chat",
	}}}
}

func newTestHandlers(t *testing.T, docs DocumentSource, seenTTL time.Duration) *Handlers {
	t.Helper()
	return NewHandlers(docs, newTestSeen(t, seenTTL, 1000), nil)
}

func TestStartSendsFirstChapterWithButtons(t *testing.T) {
	h := newTestHandlers(t, testDocs(), time.Minute)
	c := teletest.NewMessage(1, 100, "/start")

	require.NoError(t, h.Start(c))

	sent := c.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Once upon a time", sent[0].What)
	require.NotNil(t, sent[0].Markup)
	require.Len(t, sent[0].Markup.InlineKeyboard, 1)
	row := sent[0].Markup.InlineKeyboard[0]
	require.Len(t, row, 2)
	assert.Equal(t, ButtonStartStory, row[0].Text)
	assert.Equal(t, CallbackStartStory, row[0].Unique)
	assert.Equal(t, ButtonContinueReading, row[1].Text)
	assert.Equal(t, CallbackContinueReading, row[1].Unique)
}

func TestStartDebouncedWithinWindow(t *testing.T) {
	h := newTestHandlers(t, testDocs(), time.Minute)

	first := teletest.NewMessage(1, 100, "/start")
	require.NoError(t, h.Start(first))
	require.Len(t, first.Sent(), 1)

	second := teletest.NewMessage(2, 100, "/start")
	require.NoError(t, h.Start(second))
	assert.Empty(t, second.Sent())

	other := teletest.NewMessage(3, 200, "/start")
	require.NoError(t, h.Start(other))
	assert.Len(t, other.Sent(), 1)
}

func TestStartRepliesAgainAfterWindow(t *testing.T) {
	h := newTestHandlers(t, testDocs(), 100*time.Millisecond)

	require.NoError(t, h.Start(teletest.NewMessage(1, 100, "/start")))
	require.Eventually(t, func() bool {
		c := teletest.NewMessage(2, 100, "/start")
		return h.Start(c) == nil && len(c.Sent()) == 1
	}, 2*time.Second, 20*time.Millisecond)
}

func TestStartDoesNotMarkOnFailure(t *testing.T) {
	docs := testDocs()
	h := newTestHandlers(t, docs, time.Minute)

	failing := teletest.NewMessage(1, 100, "/start")
	failing.SendErr = errors.New("telegram: bad request")
	require.Error(t, h.Start(failing))

	retry := teletest.NewMessage(2, 100, "/start")
	require.NoError(t, h.Start(retry))
	assert.Len(t, retry.Sent(), 1)
}

func TestStartPropagatesDocumentError(t *testing.T) {
	docs := &staticDocs{err: ErrEmptyDocument}
	h := newTestHandlers(t, docs, time.Minute)
	c := teletest.NewMessage(1, 100, "/start")

	require.ErrorIs(t, h.Start(c), ErrEmptyDocument)
	assert.Empty(t, c.Sent())
}

func TestHelpIgnoresStartState(t *testing.T) {
	h := newTestHandlers(t, testDocs(), time.Minute)
	require.NoError(t, h.Start(teletest.NewMessage(1, 100, "/start")))

	for i := 0; i < 3; i++ {
		c := teletest.NewMessage(10+i, 100, "/help")
		require.NoError(t, h.Help(c))
		sent := c.Sent()
		require.Len(t, sent, 1)
		assert.Equal(t, "Press /start", sent[0].What)
	}
}

func TestButtonReplies(t *testing.T) {
	h := newTestHandlers(t, testDocs(), time.Minute)

	c := teletest.NewCallback(1, 100, "\f"+CallbackStartStory)
	require.NoError(t, h.StartStory(c))
	require.Len(t, c.Sent(), 1)
	assert.Equal(t, StartStoryReply, c.Sent()[0].What)

	c = teletest.NewCallback(2, 100, CallbackContinueReading)
	require.NoError(t, h.ContinueReading(c))
	require.Len(t, c.Sent(), 1)
	assert.Equal(t, ContinueReadingReply, c.Sent()[0].What)
}

func TestWelcomeOnJoin(t *testing.T) {
	cases := []struct {
		name     string
		from, to tele.MemberStatus
		want     bool
	}{
		{"added", tele.Left, tele.Member, true},
		{"added as admin", tele.Kicked, tele.Administrator, true},
		{"promoted", tele.Member, tele.Administrator, false},
		{"removed", tele.Member, tele.Left, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestHandlers(t, testDocs(), time.Minute)
			c := teletest.NewMyChatMember(1, -500, tc.from, tc.to)

			require.NoError(t, h.Welcome(c))
			if tc.want {
				require.Len(t, c.Sent(), 1)
				assert.Equal(t, "Hello, chat", c.Sent()[0].What)
			} else {
				assert.Empty(t, c.Sent())
			}
		})
	}
}

func TestStatsReport(t *testing.T) {
	h := NewHandlers(testDocs(), newTestSeen(t, time.Minute, 10), func() Stats {
		s := Stats{Loads: 3, SeenUsers: 2}
		s.Document.Hits = 7
		s.Seen.Evictions = 1
		return s
	})
	c := teletest.NewMessage(1, 100, "/stats")

	require.NoError(t, h.Stats(c))
	require.Len(t, c.Sent(), 1)
	text, _ := c.Sent()[0].What.(string)
	assert.Contains(t, text, "loads=3")
	assert.Contains(t, text, "hits=7")
	assert.Contains(t, text, "users=2")
	assert.Contains(t, text, "evictions=1")
}

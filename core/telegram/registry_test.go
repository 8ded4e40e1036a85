package telegram

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/storybot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

func noop(tele.Context) error { return nil }

func TestRegisterCommandValidation(t *testing.T) {
	r := NewRegistry()
	r.RegisterCommand("/start", commands.Command{Handler: noop, Description: "start"})
	r.RegisterCommand("help", commands.Command{Handler: noop, Description: "no slash"})
	r.RegisterCommand("/empty", commands.Command{Handler: noop})
	r.RegisterCommand("/start", commands.Command{Handler: noop, Description: "duplicate"})

	require.Len(t, r.Commands(), 1)
	assert.Equal(t, "start", r.Commands()["/start"].Description)
}

func TestListCommandsHidesAdminAndHidden(t *testing.T) {
	r := NewRegistry()
	r.RegisterCommand("/start", commands.Command{Handler: noop, Description: "start"})
	r.RegisterCommand("/help", commands.Command{Handler: noop, Description: "help"})
	r.RegisterCommand("/stats", commands.Command{Handler: noop, Description: "stats", AdminOnly: true})
	r.RegisterCommand("/debug", commands.Command{Handler: noop, Description: "debug", Hidden: true})

	visible := r.ListCommands(true)
	require.Len(t, visible, 2)
	assert.Equal(t, "help", visible[0].Text)
	assert.Equal(t, "start", visible[1].Text)
	assert.Len(t, r.ListCommands(false), 4)
}

func TestRegisterCallback(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterCallback("start_story", noop))
	require.Error(t, r.RegisterCallback("start_story", noop))
	require.ErrorIs(t, r.RegisterCallback("", noop), ErrInvalidCallback)
	require.ErrorIs(t, r.RegisterCallback("x", nil), ErrInvalidCallback)

	h, ok := r.GetCallback("start_story")
	assert.True(t, ok)
	assert.NotNil(t, h)
	_, ok = r.GetCallback("missing")
	assert.False(t, ok)
	assert.Equal(t, []string{"start_story"}, r.ListCallbacks())
}

func TestCallbackNotFoundDefaultIsSilent(t *testing.T) {
	r := NewRegistry()
	require.NotNil(t, r.CallbackNotFound())
	require.NoError(t, r.CallbackNotFound()(nil))

	called := false
	r.SetCallbackNotFound(func(tele.Context) error { called = true; return nil })
	require.NoError(t, r.CallbackNotFound()(nil))
	assert.True(t, called)
}

type fakeSetter struct {
	got []tele.Command
	err error
}

func (f *fakeSetter) SetCommands(opts ...interface{}) error {
	if len(opts) > 0 {
		f.got, _ = opts[0].([]tele.Command)
	}
	return f.err
}

func TestInitBotCommandsPublishesVisible(t *testing.T) {
	r := NewRegistry()
	r.RegisterCommand("/start", commands.Command{Handler: noop, Description: "start"})
	r.RegisterCommand("/stats", commands.Command{Handler: noop, Description: "stats", AdminOnly: true, Hidden: true})

	s := &fakeSetter{}
	InitBotCommands(s, r)
	require.Len(t, s.got, 1)
	assert.Equal(t, "start", s.got[0].Text)

	// failures are logged, not fatal
	InitBotCommands(&fakeSetter{err: errors.New("flood")}, r)
}

func TestBuildPoller(t *testing.T) {
	p := BuildPoller(PollerOptions{RunMode: "longpoll"})
	lp, ok := p.(*tele.LongPoller)
	require.True(t, ok)
	assert.Equal(t, 10*time.Second, lp.Timeout)

	p = BuildPoller(PollerOptions{RunMode: "webhook", Webhook: WebhookOptions{Listen: "0.0.0.0", Port: 8443, URL: "https://example.org/hook"}})
	wh, ok := p.(*tele.Webhook)
	require.True(t, ok)
	assert.Equal(t, "0.0.0.0:8443", wh.Listen)
	assert.Equal(t, "https://example.org/hook", wh.Endpoint.PublicURL)
}

func TestBuildHTTPClientCoversLongPoll(t *testing.T) {
	c := BuildHTTPClient(25 * time.Second)
	assert.Greater(t, c.Timeout, 25*time.Second)
}

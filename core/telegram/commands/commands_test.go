package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"

	tele "gopkg.in/telebot.v4"
)

func noop(tele.Context) error { return nil }

func TestValidate(t *testing.T) {
	ok := Command{Handler: noop, Description: "start"}
	assert.NoError(t, ok.Validate("/start"))
	assert.Error(t, ok.Validate("start"))
	assert.Error(t, ok.Validate("/"))
	assert.Error(t, Command{Description: "x"}.Validate("/x"))
	assert.Error(t, Command{Handler: noop, Description: "  "}.Validate("/x"))
}

func TestEndpointsNormalizesAliases(t *testing.T) {
	c := Command{Aliases: []string{"begin", "", "/go"}}
	assert.Equal(t, []string{"/start", "/begin", "/go"}, c.Endpoints("/start"))
}

func TestMenuEntryAndVisibility(t *testing.T) {
	c := Command{Description: "help text"}
	assert.Equal(t, tele.Command{Text: "help", Description: "help text"}, c.MenuEntry("/help"))
	assert.True(t, c.Visible())
	assert.False(t, Command{Hidden: true}.Visible())
	assert.False(t, Command{AdminOnly: true}.Visible())
}

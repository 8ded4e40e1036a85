// Package commands describes the metadata a bot command is registered with.
package commands

import (
	"errors"
	"strings"

	tele "gopkg.in/telebot.v4"
)

var (
	errNoHandler     = errors.New("command has no handler")
	errNoDescription = errors.New("command has no description")
	errNoSlash       = errors.New("command name must start with /")
)

// Command is a registered bot command. AdminOnly and Hidden commands are
// routed but left out of the published command menu.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	AdminOnly   bool
	Hidden      bool
	Aliases     []string
}

// Validate reports why name and c cannot be registered.
func (c Command) Validate(name string) error {
	switch {
	case !strings.HasPrefix(name, "/") || len(name) < 2:
		return errNoSlash
	case c.Handler == nil:
		return errNoHandler
	case strings.TrimSpace(c.Description) == "":
		return errNoDescription
	}
	return nil
}

// Visible reports whether the command belongs in the command menu.
func (c Command) Visible() bool { return !c.Hidden && !c.AdminOnly }

// Endpoints lists name followed by every non-empty alias, each with a leading slash.
func (c Command) Endpoints(name string) []string {
	out := make([]string, 0, 1+len(c.Aliases))
	out = append(out, name)
	for _, alias := range c.Aliases {
		alias = strings.TrimSpace(alias)
		if alias == "" {
			continue
		}
		if alias[0] != '/' {
			alias = "/" + alias
		}
		out = append(out, alias)
	}
	return out
}

// MenuEntry is the setMyCommands form of the command; Telegram wants the name
// without its slash.
func (c Command) MenuEntry(name string) tele.Command {
	return tele.Command{Text: strings.TrimPrefix(name, "/"), Description: c.Description}
}

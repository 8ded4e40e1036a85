// Package teletest provides an in-memory tele.Context for handler tests.
package teletest

import (
	"sync"

	tele "gopkg.in/telebot.v4"
)

// Sent is one outgoing message captured by Context.
type Sent struct {
	What   any
	Markup *tele.ReplyMarkup
}

// Context records sends and callback answers instead of calling Telegram.
// Methods not overridden here panic through the nil embedded interface.
type Context struct {
	tele.Context

	U       tele.Update
	SendErr error

	mu        sync.Mutex
	store     map[string]any
	sent      []Sent
	responses int
}

// NewMessage returns a Context for a private text message from userID.
func NewMessage(updateID int, userID int64, text string) *Context {
	user := &tele.User{ID: userID}
	return &Context{U: tele.Update{
		ID: updateID,
		Message: &tele.Message{
			Sender: user,
			Chat:   &tele.Chat{ID: userID, Type: tele.ChatPrivate},
			Text:   text,
		},
	}}
}

// NewCallback returns a Context for an inline button press with raw data.
func NewCallback(updateID int, userID int64, data string) *Context {
	user := &tele.User{ID: userID}
	return &Context{U: tele.Update{
		ID: updateID,
		Callback: &tele.Callback{
			ID:     "cb",
			Sender: user,
			Data:   data,
			Message: &tele.Message{
				Chat: &tele.Chat{ID: userID, Type: tele.ChatPrivate},
			},
		},
	}}
}

// NewMyChatMember returns a Context for the bot's membership change in chatID.
func NewMyChatMember(updateID int, chatID int64, from, to tele.MemberStatus) *Context {
	return &Context{U: tele.Update{
		ID: updateID,
		MyChatMember: &tele.ChatMemberUpdate{
			Chat:          &tele.Chat{ID: chatID, Type: tele.ChatGroup},
			Sender:        &tele.User{ID: 1},
			OldChatMember: &tele.ChatMember{Role: from},
			NewChatMember: &tele.ChatMember{Role: to},
		},
	}}
}

func (c *Context) Update() tele.Update { return c.U }

func (c *Context) Message() *tele.Message {
	switch {
	case c.U.Message != nil:
		return c.U.Message
	case c.U.Callback != nil:
		return c.U.Callback.Message
	}
	return nil
}

func (c *Context) Callback() *tele.Callback { return c.U.Callback }

func (c *Context) ChatMember() *tele.ChatMemberUpdate {
	if c.U.ChatMember != nil {
		return c.U.ChatMember
	}
	return c.U.MyChatMember
}

func (c *Context) Sender() *tele.User {
	switch {
	case c.U.Message != nil:
		return c.U.Message.Sender
	case c.U.Callback != nil:
		return c.U.Callback.Sender
	case c.U.MyChatMember != nil:
		return c.U.MyChatMember.Sender
	}
	return nil
}

func (c *Context) Chat() *tele.Chat {
	switch {
	case c.U.Message != nil:
		return c.U.Message.Chat
	case c.U.Callback != nil && c.U.Callback.Message != nil:
		return c.U.Callback.Message.Chat
	case c.U.MyChatMember != nil:
		return c.U.MyChatMember.Chat
	}
	return nil
}

func (c *Context) Text() string {
	if m := c.Message(); m != nil {
		return m.Text
	}
	return ""
}

func (c *Context) Get(key string) any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store[key]
}

func (c *Context) Set(key string, val any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		c.store = make(map[string]any)
	}
	c.store[key] = val
}

func (c *Context) Send(what any, opts ...any) error {
	if c.SendErr != nil {
		return c.SendErr
	}
	s := Sent{What: what}
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				s.Markup = v.ReplyMarkup
			}
		case *tele.ReplyMarkup:
			s.Markup = v
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, s)
	return nil
}

func (c *Context) Respond(...*tele.CallbackResponse) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses++
	return nil
}

// Sent returns the messages sent so far.
func (c *Context) Sent() []Sent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Sent(nil), c.sent...)
}

// Responses counts answered callback queries.
func (c *Context) Responses() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.responses
}

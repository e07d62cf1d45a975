package chat

import (
	"errors"
	"strings"
	"time"
)

// ConvState is the active-conversation state machine.
type ConvState int

const (
	// ConvNone means no conversation is open.
	ConvNone ConvState = iota
	// ConvLoading means a history fetch for the active counterpart is
	// in flight.
	ConvLoading
	// ConvViewing means the view is live: history loaded (or resolved
	// empty on fetch failure) and extended by pushes and echoes.
	ConvViewing
)

var (
	ErrNoConversation = errors.New("no active conversation")
	ErrEmptyMessage   = errors.New("message text is empty")
)

// Controller tracks which conversation is focused and routes messages
// between the channel, the roster and the stream for that conversation
// only.
type Controller struct {
	self    Identity
	channel Channel
	roster  *Roster
	stream  *Stream

	state   ConvState
	active  string
	loadGen int
}

func NewController(self Identity, ch Channel, roster *Roster, stream *Stream) *Controller {
	return &Controller{self: self, channel: ch, roster: roster, stream: stream}
}

func (c *Controller) Self() Identity   { return c.self }
func (c *Controller) State() ConvState { return c.state }
func (c *Controller) Active() string   { return c.active }

// Open switches focus to username: the previous view is discarded, the
// target's unread count is cleared immediately, and a history fetch
// generation is issued. The caller runs the fetch and reports back via
// CompleteLoad with the returned generation, which is how a superseded
// load is recognized and discarded.
func (c *Controller) Open(username string) int {
	c.roster.Upsert(username, 0)
	c.roster.ClearUnread(username)
	c.stream.Clear()
	c.active = username
	c.state = ConvLoading
	c.loadGen++
	return c.loadGen
}

// CompleteLoad resolves a history fetch. Results from a superseded load
// (the generation moved on, or focus changed) are discarded so a stale
// fetch can never clobber the view of a newer conversation. A failed
// fetch resolves into viewing with an empty view; loading is never a
// terminal state. Returns true if the view was updated.
func (c *Controller) CompleteLoad(username string, gen int, msgs []Message, err error) bool {
	if gen != c.loadGen || username != c.active {
		return false
	}
	c.state = ConvViewing
	if err != nil {
		c.stream.Clear()
		return true
	}

	scoped := msgs[:0:0]
	for _, m := range msgs {
		if m.Involves(c.self.Username, username) {
			scoped = append(scoped, m)
		}
	}
	c.stream.SetHistory(scoped)
	return true
}

// Close discards the conversation view. Implicit on switching to
// another counterpart via Open.
func (c *Controller) Close() {
	c.active = ""
	c.state = ConvNone
	c.stream.Clear()
}

// Send appends an optimistic local echo and forwards the message over
// the channel. Validation failures (blank text, nothing open) are
// returned for silent suppression at the call site; a channel failure
// is returned after the echo has been marked failed, so the caller can
// surface it without the echo being retracted.
func (c *Controller) Send(text string) (Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Message{}, ErrEmptyMessage
	}
	if c.state != ConvViewing || c.active == "" {
		return Message{}, ErrNoConversation
	}
	if c.channel.State() != StateAuthenticated {
		return Message{}, ErrNotConnected
	}

	msg := Message{
		From:      c.self.Username,
		To:        c.active,
		Text:      text,
		Timestamp: time.Now(),
		Origin:    OriginLocalEcho,
		Pending:   true,
	}
	c.stream.Append(msg)

	if err := c.channel.Send(msg); err != nil {
		c.stream.MarkFailed(msg)
		return msg, err
	}
	return msg, nil
}

// HandleInbound routes a server push. Messages from the focused
// counterpart go into the stream; everything else bumps the sender's
// unread badge, adding the sender to the roster first if this is their
// first contact. The returned action tells the caller whether to raise
// an out-of-band alert.
//
// The server also confirms the user's own sends with a stamped copy.
// Those reconcile with the pending local echo when the conversation is
// still open and are dropped otherwise; they never badge anyone.
func (c *Controller) HandleInbound(m Message) Action {
	if m.From == c.self.Username {
		if c.state == ConvViewing && m.To == c.active {
			c.stream.Append(m)
			return ActionRender
		}
		return ActionNone
	}

	action := Classify(m, c.active)
	switch action {
	case ActionRender:
		c.stream.Append(m)
	case ActionNotify:
		c.roster.Upsert(m.From, 0)
		c.roster.IncrementUnread(m.From)
	}
	return action
}

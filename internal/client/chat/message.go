package chat

import (
	"time"
)

// Origin records which path a message entered the engine through.
type Origin int

const (
	// OriginHistory is a message returned by an on-demand history fetch.
	OriginHistory Origin = iota
	// OriginLivePush is a message delivered by the server over the channel.
	OriginLivePush
	// OriginLocalEcho is an outbound message rendered before server confirmation.
	OriginLocalEcho
)

// Message is a single direct message. Immutable once created, except
// for the Pending/Failed flags on local echoes.
type Message struct {
	From      string
	To        string
	Text      string
	Timestamp time.Time
	Origin    Origin

	// Pending marks a local echo that has not yet been matched by the
	// server's copy. Failed marks an echo whose send errored; it stays
	// in the view so the user can see what was lost.
	Pending bool
	Failed  bool
}

// SameLogical reports whether two messages are the same logical message
// for de-duplication: identical (from, to, timestamp, text) tuple.
func (m Message) SameLogical(o Message) bool {
	return m.From == o.From && m.To == o.To && m.Text == o.Text && m.Timestamp.Equal(o.Timestamp)
}

// Involves reports whether the message is part of the conversation
// between self and other, in either direction.
func (m Message) Involves(self, other string) bool {
	return (m.From == self && m.To == other) || (m.From == other && m.To == self)
}

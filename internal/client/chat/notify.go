package chat

import "unicode/utf8"

// Action is the disposition of an inbound message.
type Action int

const (
	// ActionRender delivers the message into the open conversation for
	// immediate display.
	ActionRender Action = iota
	// ActionNotify diverts the message to unread-badge handling and an
	// optional out-of-band alert.
	ActionNotify
	// ActionNone means the message needed no routing, e.g. the server's
	// confirmation of the user's own send for a closed conversation.
	ActionNone
)

// previewLimit is how many characters of an alert preview are shown.
const previewLimit = 50

// Classify decides what to do with an inbound message given the
// currently focused counterpart. Pure: it reads no state beyond its
// arguments.
func Classify(m Message, active string) Action {
	if active != "" && m.From == active {
		return ActionRender
	}
	return ActionNotify
}

// Preview returns the first 50 characters of text, with an ellipsis
// appended when truncated.
func Preview(text string) string {
	if utf8.RuneCountInString(text) <= previewLimit {
		return text
	}
	runes := []rune(text)
	return string(runes[:previewLimit]) + "..."
}

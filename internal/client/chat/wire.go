package chat

import (
	"encoding/json"
	"fmt"
	"time"
)

// Envelope is the framing used on the persistent channel, shared with
// the server: a type tag plus a type-specific payload.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type authPayload struct {
	Username string `json:"username"`
}

// WireMessage is the channel and REST representation of a message.
// Timestamps travel as ISO-8601 strings.
type WireMessage struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// timestampLayouts covers RFC 3339 plus the zone-less ISO form the
// server's database layer produces.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

// ParseTimestamp parses an ISO-8601 instant off the wire.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// ToMessage converts a wire message into an engine message with the
// given origin.
func (w WireMessage) ToMessage(origin Origin) (Message, error) {
	ts, err := ParseTimestamp(w.Timestamp)
	if err != nil {
		return Message{}, err
	}
	return Message{
		From:      w.From,
		To:        w.To,
		Text:      w.Text,
		Timestamp: ts,
		Origin:    origin,
	}, nil
}

// ToWire converts an engine message for transmission.
func (m Message) ToWire() WireMessage {
	return WireMessage{
		From:      m.From,
		To:        m.To,
		Text:      m.Text,
		Timestamp: m.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

package models

import (
	"encoding/json"
	"time"
)

type User struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	AvatarID     int       `json:"avatar_id"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Contact is a sidebar entry: someone the user has exchanged messages
// with.
type Contact struct {
	Username string `json:"username"`
	AvatarID int    `json:"avatar_id"`
}

// Message is the wire shape shared by the history endpoint and the
// persistent channel. Timestamps are ISO-8601.
type Message struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// InviteCodes are an account's two invitation codes with their used
// state.
type InviteCodes struct {
	Code1     string `json:"code1"`
	Code2     string `json:"code2"`
	Code1Used bool   `json:"code1_used"`
	Code2Used bool   `json:"code2_used"`
}

// WS frame types

type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AuthPayload is the advisory identity announcement a client sends
// after connect; the transport itself is authenticated by the session
// cookie.
type AuthPayload struct {
	Username string `json:"username"`
}

// REST payloads

type LoginPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterPayload struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	InviteCode string `json:"invite_code"`
}

type UpdateAvatarPayload struct {
	AvatarID int `json:"avatar_id"`
}

package ws

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/neverwash/nwchat/internal/server/models"
)

// Client is one websocket connection. SessionUser is the username the
// HTTP session authenticated as; the socket stays read-only until the
// client sends a matching auth frame and Username is set.
type Client struct {
	Hub         *Hub
	Conn        *websocket.Conn
	SessionUser string
	Username    string
	IP          string

	send      chan []byte
	closeOnce sync.Once
}

func NewClient(hub *Hub, conn *websocket.Conn, sessionUser, ip string) *Client {
	return &Client{
		Hub:         hub,
		Conn:        conn,
		SessionUser: sessionUser,
		IP:          ip,
		send:        make(chan []byte, 32),
	}
}

func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.CloseSend()
		c.Conn.Close()
	}()

	for {
		_, msgBytes, err := c.Conn.ReadMessage()
		if err != nil {
			break
		}

		var wsMsg models.WSMessage
		if err := json.Unmarshal(msgBytes, &wsMsg); err != nil {
			log.Printf("JSON Unmarshal error: %v", err)
			continue
		}

		c.ProcessMessage(wsMsg)
	}
}

func (c *Client) WritePump() {
	defer c.Conn.Close()
	for msg := range c.send {
		c.Conn.WriteMessage(websocket.TextMessage, msg)
	}
}

func (c *Client) ProcessMessage(msg models.WSMessage) {
	switch msg.Type {
	case "auth":
		var payload models.AuthPayload
		json.Unmarshal(msg.Payload, &payload)

		// The session cookie already proved identity; the auth frame
		// just binds this socket. Reject a mismatched claim.
		if payload.Username == "" || payload.Username != c.SessionUser {
			c.SendError("auth_error", "username does not match session")
			return
		}

		c.Username = payload.Username
		c.Hub.Register(c)
		c.SendJSON(map[string]any{
			"type":    "auth_ack",
			"payload": map[string]string{"username": c.Username},
		})

	case "message":
		if c.Username == "" {
			return
		}
		var payload models.Message
		json.Unmarshal(msg.Payload, &payload)

		if payload.To == "" || payload.Text == "" {
			return
		}
		// Sender is whoever owns the socket, whatever the frame claims.
		payload.From = c.Username

		stampedAt, err := c.Hub.Store.StoreMessage(payload.From, payload.To, payload.Text)
		if err != nil {
			log.Printf("StoreMessage error: %v", err)
			c.SendError("error", "message could not be stored")
			return
		}
		payload.Timestamp = stampedAt.UTC().Format(time.RFC3339Nano)

		frame := c.marshalJSON(map[string]any{
			"type":    "message",
			"payload": payload,
		})

		// The canonical stamped copy goes to both ends: the recipient
		// if online, and back to the sender so every client renders
		// the same timestamp.
		c.Hub.DeliverTo(payload.To, frame)
		c.Hub.DeliverTo(payload.From, frame)

	default:
		// Unknown frame types are ignored so old clients can talk to
		// newer servers.
	}
}

// CloseSend shuts the outgoing queue down exactly once, which ends
// WritePump and closes the socket.
func (c *Client) CloseSend() {
	c.closeOnce.Do(func() { close(c.send) })
}

func (c *Client) SendJSON(v any) {
	data, _ := json.Marshal(v)
	select {
	case c.send <- data:
	default:
	}
}

func (c *Client) SendError(typeStr, errStr string) {
	c.SendJSON(map[string]string{
		"type":  typeStr,
		"error": errStr,
	})
}

func (c *Client) marshalJSON(v any) []byte {
	data, _ := json.Marshal(v)
	return data
}

package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// State is the lifecycle of the persistent channel. Exactly one
// instance exists per session, owned by the Manager; everything else
// only reads it.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateAuthPending
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateAuthPending:
		return "auth-pending"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "disconnected"
	}
}

// Identity is the session identity announced on the channel. It is
// established once at bootstrap and never changes for the session.
type Identity struct {
	Username string
	AvatarID int
}

// Events emitted by the Manager. All failures arrive here as events,
// never as panics or callbacks into caller code.
type (
	// ConnectedEvent fires once the transport is up and the identity
	// announcement has been sent.
	ConnectedEvent struct{}
	// AuthAckedEvent fires when the server acknowledges the identity
	// announcement.
	AuthAckedEvent struct{}
	// DisconnectedEvent fires when the channel drops for any reason.
	DisconnectedEvent struct{ Err error }
	// InboundEvent carries a decoded server push.
	InboundEvent struct{ Msg Message }
	// ErrEvent carries a non-fatal channel error, e.g. an undecodable
	// frame.
	ErrEvent struct{ Err error }
)

// Event is one of the event types above.
type Event any

var ErrNotConnected = errors.New("channel is not connected")

// Channel is the send surface the conversation controller needs.
type Channel interface {
	State() State
	Send(Message) error
}

// Manager owns the websocket lifecycle: connect, announce identity,
// decode pushes, detect loss. It does not retry on its own; every
// reconnect is a fresh Connect driven by the caller, which re-announces
// the identity. The events channel is created before any dial, so no
// early event can be lost.
type Manager struct {
	url    string
	header http.Header
	events chan Event

	mu    sync.Mutex
	state State
	conn  *websocket.Conn
}

// NewManager prepares a manager for the given websocket URL. The header
// carries the page-session cookie; the transport is already
// authenticated by it, the in-band announcement is only advisory
// labeling for the server's routing table.
func NewManager(url string, header http.Header) *Manager {
	return &Manager{
		url:    url,
		header: header,
		events: make(chan Event, 64),
	}
}

// Events returns the single-consumer event stream.
func (m *Manager) Events() <-chan Event {
	return m.events
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connect dials the channel and announces identity. Blocking; callers
// run it off the event loop and watch Events for the outcome. At most
// one channel is open at a time: a live connection is torn down first.
func (m *Manager) Connect(id Identity) error {
	m.mu.Lock()
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	m.state = StateConnecting
	m.mu.Unlock()

	conn, _, err := websocket.DefaultDialer.Dial(m.url, m.header)
	if err != nil {
		m.mu.Lock()
		m.state = StateDisconnected
		m.mu.Unlock()
		return fmt.Errorf("dial %s: %w", m.url, err)
	}

	m.mu.Lock()
	m.conn = conn
	m.state = StateConnected
	m.mu.Unlock()

	if err := m.announce(id); err != nil {
		m.teardown(err)
		return err
	}
	m.events <- ConnectedEvent{}

	go m.readPump(conn)
	return nil
}

func (m *Manager) announce(id Identity) error {
	payload, _ := json.Marshal(authPayload{Username: id.Username})
	frame, _ := json.Marshal(Envelope{Type: "auth", Payload: payload})

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		return ErrNotConnected
	}
	if err := m.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("announce identity: %w", err)
	}
	m.state = StateAuthPending
	return nil
}

// Send writes a message frame. A failure is reported synchronously so
// the caller can surface it; the message is not queued or retried.
func (m *Manager) Send(msg Message) error {
	payload, _ := json.Marshal(msg.ToWire())
	frame, _ := json.Marshal(Envelope{Type: "message", Payload: payload})

	m.mu.Lock()
	if m.conn == nil || m.state != StateAuthenticated {
		m.mu.Unlock()
		return ErrNotConnected
	}
	conn := m.conn
	err := conn.WriteMessage(websocket.TextMessage, frame)
	m.mu.Unlock()

	if err != nil {
		m.teardown(err)
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

// Close tears the channel down deliberately, e.g. at logout. No
// DisconnectedEvent is emitted for a requested close.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	m.state = StateDisconnected
}

func (m *Manager) teardown(err error) {
	m.mu.Lock()
	wasOpen := m.conn != nil
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	m.state = StateDisconnected
	m.mu.Unlock()

	if wasOpen {
		m.events <- DisconnectedEvent{Err: err}
	}
}

func (m *Manager) readPump(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			m.teardown(err)
			return
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			m.events <- ErrEvent{Err: fmt.Errorf("bad frame: %w", err)}
			continue
		}

		switch env.Type {
		case "auth_ack":
			m.mu.Lock()
			if m.state == StateAuthPending {
				m.state = StateAuthenticated
			}
			m.mu.Unlock()
			m.events <- AuthAckedEvent{}

		case "message":
			var wm WireMessage
			if err := json.Unmarshal(env.Payload, &wm); err != nil {
				m.events <- ErrEvent{Err: fmt.Errorf("bad message payload: %w", err)}
				continue
			}
			msg, err := wm.ToMessage(OriginLivePush)
			if err != nil {
				m.events <- ErrEvent{Err: err}
				continue
			}
			m.events <- InboundEvent{Msg: msg}

		default:
			// Unknown frame types are ignored for forward compatibility.
		}
	}
}

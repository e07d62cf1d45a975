package chat

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// relayStub upgrades, acks the identity announcement, then pushes the
// frames it is given and echoes back any message frame it receives.
func relayStub(t *testing.T, pushes []Envelope) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil || env.Type != "auth" {
			t.Errorf("first frame should be the auth announcement, got %s", raw)
			return
		}

		ack, _ := json.Marshal(Envelope{Type: "auth_ack"})
		conn.WriteMessage(websocket.TextMessage, ack)

		for _, p := range pushes {
			frame, _ := json.Marshal(p)
			conn.WriteMessage(websocket.TextMessage, frame)
		}

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			conn.WriteMessage(websocket.TextMessage, raw)
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func nextEvent(t *testing.T, m *Manager) Event {
	t.Helper()
	select {
	case ev := <-m.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for channel event")
		return nil
	}
}

func TestConnectAnnouncesAndAuthenticates(t *testing.T) {
	srv := relayStub(t, nil)
	defer srv.Close()

	m := NewManager(wsURL(srv), nil)
	if m.State() != StateDisconnected {
		t.Fatalf("initial state = %v", m.State())
	}
	if err := m.Connect(Identity{Username: "alice"}); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer m.Close()

	if _, ok := nextEvent(t, m).(ConnectedEvent); !ok {
		t.Fatal("expected ConnectedEvent first")
	}
	if _, ok := nextEvent(t, m).(AuthAckedEvent); !ok {
		t.Fatal("expected AuthAckedEvent after the announcement")
	}
	if m.State() != StateAuthenticated {
		t.Errorf("state = %v, want authenticated", m.State())
	}
}

func TestInboundPushDecoded(t *testing.T) {
	payload, _ := json.Marshal(WireMessage{
		From: "bob", To: "alice", Text: "hi",
		Timestamp: "2025-06-01T12:00:00Z",
	})
	srv := relayStub(t, []Envelope{{Type: "message", Payload: payload}})
	defer srv.Close()

	m := NewManager(wsURL(srv), nil)
	if err := m.Connect(Identity{Username: "alice"}); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer m.Close()

	nextEvent(t, m) // connected
	nextEvent(t, m) // auth acked

	ev, ok := nextEvent(t, m).(InboundEvent)
	if !ok {
		t.Fatal("expected InboundEvent")
	}
	if ev.Msg.From != "bob" || ev.Msg.Text != "hi" {
		t.Errorf("decoded message = %+v", ev.Msg)
	}
	if ev.Msg.Origin != OriginLivePush {
		t.Error("inbound message should carry live-push origin")
	}
}

func TestSendRoundTrip(t *testing.T) {
	srv := relayStub(t, nil)
	defer srv.Close()

	m := NewManager(wsURL(srv), nil)
	if err := m.Connect(Identity{Username: "alice"}); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer m.Close()

	nextEvent(t, m) // connected
	nextEvent(t, m) // auth acked

	out := Message{From: "alice", To: "bob", Text: "hello", Timestamp: time.Now(), Origin: OriginLocalEcho}
	if err := m.Send(out); err != nil {
		t.Fatalf("send: %v", err)
	}

	// The stub echoes the frame back as a push.
	ev, ok := nextEvent(t, m).(InboundEvent)
	if !ok {
		t.Fatal("expected the echoed message")
	}
	if ev.Msg.Text != "hello" {
		t.Errorf("echoed text = %q", ev.Msg.Text)
	}
}

func TestSendBeforeAuthenticatedRefused(t *testing.T) {
	m := NewManager("ws://127.0.0.1:0/ws", nil)
	err := m.Send(Message{From: "alice", To: "bob", Text: "hi"})
	if err == nil {
		t.Fatal("send on a closed channel must fail synchronously")
	}
}

func TestDisconnectSurfacedAsEvent(t *testing.T) {
	srv := relayStub(t, nil)

	m := NewManager(wsURL(srv), nil)
	if err := m.Connect(Identity{Username: "alice"}); err != nil {
		t.Fatalf("connect: %v", err)
	}

	nextEvent(t, m) // connected
	nextEvent(t, m) // auth acked

	srv.CloseClientConnections()

	if _, ok := nextEvent(t, m).(DisconnectedEvent); !ok {
		t.Fatal("expected DisconnectedEvent after transport loss")
	}
	if m.State() != StateDisconnected {
		t.Errorf("state = %v, want disconnected", m.State())
	}
	srv.Close()
}

func TestConnectFailureLeavesDisconnected(t *testing.T) {
	m := NewManager("ws://127.0.0.1:1/ws", nil)
	if err := m.Connect(Identity{Username: "alice"}); err == nil {
		t.Fatal("expected dial error")
	}
	if m.State() != StateDisconnected {
		t.Errorf("state = %v, want disconnected", m.State())
	}
}

func TestParseTimestampFormats(t *testing.T) {
	cases := []string{
		"2025-06-01T12:00:00Z",
		"2025-06-01T12:00:00.123456Z",
		"2025-06-01T12:00:00.123456",
		"2025-06-01T12:00:00",
	}
	for _, c := range cases {
		if _, err := ParseTimestamp(c); err != nil {
			t.Errorf("ParseTimestamp(%q): %v", c, err)
		}
	}
	if _, err := ParseTimestamp("yesterday"); err == nil {
		t.Error("garbage timestamp accepted")
	}
}

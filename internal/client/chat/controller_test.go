package chat

import (
	"errors"
	"testing"
	"time"
)

type fakeChannel struct {
	state State
	sent  []Message
	err   error
}

func (f *fakeChannel) State() State { return f.state }

func (f *fakeChannel) Send(m Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, m)
	return nil
}

func newTestController(ch Channel) (*Controller, *Roster, *Stream) {
	roster := NewRoster()
	stream := NewStream()
	self := Identity{Username: "alice", AvatarID: 3}
	return NewController(self, ch, roster, stream), roster, stream
}

func TestOpenClearsUnreadBeforeRender(t *testing.T) {
	c, roster, _ := newTestController(&fakeChannel{state: StateAuthenticated})
	roster.Upsert("bob", 2)
	roster.IncrementUnread("bob")

	c.Open("bob")
	if got := roster.Unread("bob"); got != 0 {
		t.Errorf("unread after open = %d, want 0", got)
	}
	if c.State() != ConvLoading {
		t.Errorf("state = %v, want loading", c.State())
	}
}

func TestOpenAddsUnknownCounterpart(t *testing.T) {
	c, roster, _ := newTestController(&fakeChannel{state: StateAuthenticated})
	c.Open("mallory")
	if !roster.Contains("mallory") {
		t.Error("explicitly opened counterpart missing from roster")
	}
}

func TestStaleLoadDiscarded(t *testing.T) {
	c, _, stream := newTestController(&fakeChannel{state: StateAuthenticated})

	carolGen := c.Open("carol")
	bobGen := c.Open("bob")

	// The stale carol fetch resolves after focus moved to bob.
	stale := []Message{msg("carol", "alice", "old news", t0, OriginHistory)}
	if c.CompleteLoad("carol", carolGen, stale, nil) {
		t.Fatal("stale load must be discarded")
	}
	if stream.Len() != 0 {
		t.Fatal("stale history leaked into the view")
	}

	fresh := []Message{msg("bob", "alice", "hi", t0, OriginHistory)}
	if !c.CompleteLoad("bob", bobGen, fresh, nil) {
		t.Fatal("current load was rejected")
	}
	if c.State() != ConvViewing {
		t.Errorf("state = %v, want viewing", c.State())
	}
	if stream.Len() != 1 || stream.Messages()[0].From != "bob" {
		t.Errorf("view = %v, want bob history", stream.Messages())
	}
}

func TestLoadFailureResolvesToViewing(t *testing.T) {
	c, _, stream := newTestController(&fakeChannel{state: StateAuthenticated})
	gen := c.Open("bob")

	c.CompleteLoad("bob", gen, nil, errors.New("boom"))
	if c.State() != ConvViewing {
		t.Fatalf("state = %v, want viewing after failed fetch", c.State())
	}
	if stream.Len() != 0 {
		t.Error("failed fetch should leave an empty view")
	}
}

func TestHistoryScopedToCounterpart(t *testing.T) {
	c, _, stream := newTestController(&fakeChannel{state: StateAuthenticated})
	gen := c.Open("bob")

	history := []Message{
		msg("bob", "alice", "for the view", t0, OriginHistory),
		msg("alice", "bob", "also for the view", t0.Add(time.Second), OriginHistory),
		msg("carol", "alice", "wrong conversation", t0.Add(2*time.Second), OriginHistory),
	}
	c.CompleteLoad("bob", gen, history, nil)

	for _, m := range stream.Messages() {
		if !m.Involves("alice", "bob") {
			t.Errorf("foreign message in view: %+v", m)
		}
	}
	if stream.Len() != 2 {
		t.Errorf("view has %d entries, want 2", stream.Len())
	}
}

func TestSendValidations(t *testing.T) {
	ch := &fakeChannel{state: StateAuthenticated}
	c, _, _ := newTestController(ch)

	if _, err := c.Send("hi"); !errors.Is(err, ErrNoConversation) {
		t.Errorf("send with nothing open: err = %v, want ErrNoConversation", err)
	}

	gen := c.Open("bob")
	c.CompleteLoad("bob", gen, nil, nil)

	if _, err := c.Send("   "); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("blank send: err = %v, want ErrEmptyMessage", err)
	}

	ch.state = StateDisconnected
	if _, err := c.Send("hi"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("disconnected send: err = %v, want ErrNotConnected", err)
	}
}

func TestSendAppendsOptimisticEcho(t *testing.T) {
	ch := &fakeChannel{state: StateAuthenticated}
	c, _, stream := newTestController(ch)
	gen := c.Open("bob")
	c.CompleteLoad("bob", gen, nil, nil)

	sent, err := c.Send("  hello  ")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if sent.Text != "hello" {
		t.Errorf("text not trimmed: %q", sent.Text)
	}
	if len(ch.sent) != 1 {
		t.Fatalf("channel saw %d sends, want 1", len(ch.sent))
	}

	view := stream.Messages()
	if len(view) != 1 || view[0].Origin != OriginLocalEcho || !view[0].Pending {
		t.Errorf("expected one pending echo in view, got %v", view)
	}
}

func TestSendFailureMarksEchoFailed(t *testing.T) {
	ch := &fakeChannel{state: StateAuthenticated, err: errors.New("gone")}
	c, _, stream := newTestController(ch)
	gen := c.Open("bob")
	c.CompleteLoad("bob", gen, nil, nil)

	if _, err := c.Send("hello"); err == nil {
		t.Fatal("expected synchronous send error")
	}

	view := stream.Messages()
	if len(view) != 1 {
		t.Fatal("echo was retracted on failure")
	}
	if !view[0].Failed {
		t.Error("echo not marked failed")
	}
}

func TestEchoThenPushedCopyRendersOnce(t *testing.T) {
	ch := &fakeChannel{state: StateAuthenticated}
	c, _, stream := newTestController(ch)
	gen := c.Open("bob")
	c.CompleteLoad("bob", gen, nil, nil)

	sent, err := c.Send("hello")
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	// The relay echoes the identical message back over the channel.
	push := sent
	push.Origin = OriginLivePush
	push.Pending = false
	c.HandleInbound(push)

	if stream.Len() != 1 {
		t.Fatalf("view has %d entries, want 1", stream.Len())
	}
	if stream.Messages()[0].Pending {
		t.Error("echo still pending after pushed copy")
	}
}

func TestOwnConfirmationAfterCloseIsDropped(t *testing.T) {
	ch := &fakeChannel{state: StateAuthenticated}
	c, roster, stream := newTestController(ch)
	gen := c.Open("bob")
	c.CompleteLoad("bob", gen, nil, nil)

	sent, err := c.Send("hello")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	c.Close()

	// The relay's stamped copy of our own send arrives after the
	// conversation was closed.
	push := sent
	push.Origin = OriginLivePush
	push.Pending = false
	action := c.HandleInbound(push)

	if action != ActionNone {
		t.Fatalf("action = %v, want none", action)
	}
	if stream.Len() != 0 {
		t.Error("own confirmation leaked into an empty view")
	}
	if roster.Unread("bob") != 0 || roster.Unread("alice") != 0 {
		t.Error("own confirmation must not badge anyone")
	}
}

func TestInboundFromActiveRenders(t *testing.T) {
	c, roster, stream := newTestController(&fakeChannel{state: StateAuthenticated})
	gen := c.Open("bob")
	c.CompleteLoad("bob", gen, nil, nil)

	action := c.HandleInbound(msg("bob", "alice", "hi", t0, OriginLivePush))
	if action != ActionRender {
		t.Fatalf("action = %v, want render", action)
	}
	if stream.Len() != 1 {
		t.Error("message not rendered into view")
	}
	if roster.Unread("bob") != 0 {
		t.Error("active conversation must not accumulate unread")
	}
}

func TestInboundFromOtherBadges(t *testing.T) {
	c, roster, stream := newTestController(&fakeChannel{state: StateAuthenticated})
	gen := c.Open("bob")
	c.CompleteLoad("bob", gen, nil, nil)

	action := c.HandleInbound(msg("carol", "alice", "hi", t0, OriginLivePush))
	if action != ActionNotify {
		t.Fatalf("action = %v, want notify", action)
	}
	if !roster.Contains("carol") {
		t.Error("first-contact sender missing from roster")
	}
	if roster.Unread("carol") != 1 {
		t.Errorf("carol unread = %d, want 1", roster.Unread("carol"))
	}
	if stream.Len() != 0 {
		t.Error("bob's view changed by carol's message")
	}
}

func TestCloseDiscardsView(t *testing.T) {
	c, _, stream := newTestController(&fakeChannel{state: StateAuthenticated})
	gen := c.Open("bob")
	c.CompleteLoad("bob", gen, []Message{msg("bob", "alice", "hi", t0, OriginHistory)}, nil)

	c.Close()
	if c.State() != ConvNone || c.Active() != "" {
		t.Error("close did not reset focus")
	}
	if stream.Len() != 0 {
		t.Error("view survived close")
	}
}

package chat

import (
	"testing"
	"time"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func msg(from, to, text string, at time.Time, origin Origin) Message {
	m := Message{From: from, To: to, Text: text, Timestamp: at, Origin: origin}
	if origin == OriginLocalEcho {
		m.Pending = true
	}
	return m
}

func TestAppendKeepsTimestampOrder(t *testing.T) {
	s := NewStream()
	s.Append(msg("bob", "alice", "second", t0.Add(2*time.Second), OriginLivePush))
	s.Append(msg("bob", "alice", "first", t0, OriginLivePush))
	s.Append(msg("bob", "alice", "third", t0.Add(4*time.Second), OriginLivePush))

	got := s.Messages()
	want := []string{"first", "second", "third"}
	for i, text := range want {
		if got[i].Text != text {
			t.Fatalf("position %d: want %q, got %q", i, text, got[i].Text)
		}
	}
}

func TestAppendTiesKeepArrivalOrder(t *testing.T) {
	s := NewStream()
	s.Append(msg("bob", "alice", "a", t0, OriginLivePush))
	s.Append(msg("bob", "alice", "b", t0, OriginLivePush))

	got := s.Messages()
	if got[0].Text != "a" || got[1].Text != "b" {
		t.Errorf("same-timestamp arrival order not preserved: %v", got)
	}
}

func TestEchoUpgradedByLivePush(t *testing.T) {
	s := NewStream()
	echo := msg("alice", "bob", "hello", t0, OriginLocalEcho)
	s.Append(echo)

	// The server's copy arrives with its own timestamp inside the
	// matching window.
	push := msg("alice", "bob", "hello", t0.Add(300*time.Millisecond), OriginLivePush)
	if !s.Append(push) {
		t.Fatal("upgrade should report a view change")
	}

	got := s.Messages()
	if len(got) != 1 {
		t.Fatalf("expected 1 entry after reconciliation, got %d", len(got))
	}
	if got[0].Pending {
		t.Error("echo still pending after server copy arrived")
	}
	if got[0].Origin != OriginLocalEcho {
		t.Error("upgrade must happen in place, not replace the entry")
	}
}

func TestEchoIdenticalTimestamp(t *testing.T) {
	s := NewStream()
	s.Append(msg("alice", "bob", "hello", t0, OriginLocalEcho))
	s.Append(msg("alice", "bob", "hello", t0, OriginLivePush))

	if s.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", s.Len())
	}
}

func TestEchoOutsideWindowIsSeparate(t *testing.T) {
	s := NewStream()
	s.Append(msg("alice", "bob", "hello", t0, OriginLocalEcho))
	s.Append(msg("alice", "bob", "hello", t0.Add(time.Minute), OriginLivePush))

	// Same text a minute later is a genuinely repeated message.
	if s.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", s.Len())
	}
}

func TestExactDuplicateDropped(t *testing.T) {
	s := NewStream()
	m := msg("bob", "alice", "hi", t0, OriginHistory)
	s.Append(m)

	// Same logical message racing in as a live push: first arrival wins.
	dup := m
	dup.Origin = OriginLivePush
	if s.Append(dup) {
		t.Error("duplicate append should report no change")
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", s.Len())
	}
	if s.Messages()[0].Origin != OriginHistory {
		t.Error("later arrival replaced the first")
	}
}

func TestSetHistorySortsAndDedups(t *testing.T) {
	s := NewStream()
	s.SetHistory([]Message{
		msg("bob", "alice", "late", t0.Add(time.Hour), OriginHistory),
		msg("bob", "alice", "early", t0, OriginHistory),
		msg("bob", "alice", "early", t0, OriginHistory),
	})

	got := s.Messages()
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].Text != "early" || got[1].Text != "late" {
		t.Errorf("history not sorted ascending: %v", got)
	}
}

func TestMarkFailedLeavesEntry(t *testing.T) {
	s := NewStream()
	echo := msg("alice", "bob", "doomed", t0, OriginLocalEcho)
	s.Append(echo)
	s.MarkFailed(echo)

	got := s.Messages()
	if len(got) != 1 {
		t.Fatalf("failed echo was retracted")
	}
	if !got[0].Failed {
		t.Error("echo not marked failed")
	}
}

func TestClear(t *testing.T) {
	s := NewStream()
	s.Append(msg("bob", "alice", "hi", t0, OriginLivePush))
	s.Clear()
	if s.Len() != 0 {
		t.Errorf("expected empty view after clear, got %d entries", s.Len())
	}
}

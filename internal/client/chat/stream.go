package chat

import (
	"sort"
	"time"
)

// echoMatchWindow bounds how far apart a local echo and the server's
// copy of the same message may be timestamped and still be reconciled
// as one logical message.
const echoMatchWindow = 5 * time.Second

// Stream holds the ordered, de-duplicated message view for the single
// open conversation. It merges three sources: history fetches, live
// pushes and local echoes.
type Stream struct {
	msgs []Message
}

func NewStream() *Stream {
	return &Stream{}
}

// SetHistory replaces the view with a fresh history fetch. Input is
// sorted by timestamp ascending (stable, so same-timestamp entries keep
// server order) and exact duplicates are dropped.
func (s *Stream) SetHistory(msgs []Message) {
	sorted := make([]Message, len(msgs))
	copy(sorted, msgs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	s.msgs = s.msgs[:0]
	for _, m := range sorted {
		if s.findExact(m) == -1 {
			s.msgs = append(s.msgs, m)
		}
	}
}

// Append inserts a message in timestamp order. An exact duplicate of an
// existing entry is dropped. A live push (or history entry) matching a
// pending local echo upgrades that echo in place instead of being added
// as a second entry. Returns true when the view changed.
func (s *Stream) Append(m Message) bool {
	if s.findExact(m) != -1 {
		return false
	}

	if m.Origin != OriginLocalEcho {
		if i := s.findPendingEcho(m); i != -1 {
			s.msgs[i].Pending = false
			s.msgs[i].Failed = false
			return true
		}
	}

	// Insert keeping ascending timestamp order; ties go after existing
	// entries with the same timestamp, preserving arrival order.
	at := len(s.msgs)
	for i, existing := range s.msgs {
		if m.Timestamp.Before(existing.Timestamp) {
			at = i
			break
		}
	}
	s.msgs = append(s.msgs, Message{})
	copy(s.msgs[at+1:], s.msgs[at:])
	s.msgs[at] = m
	return true
}

// MarkFailed flags the pending echo matching m as failed. The entry is
// not retracted; the failure is only made visible.
func (s *Stream) MarkFailed(m Message) {
	for i := len(s.msgs) - 1; i >= 0; i-- {
		e := s.msgs[i]
		if e.Origin == OriginLocalEcho && e.Pending && e.From == m.From && e.To == m.To && e.Text == m.Text {
			s.msgs[i].Failed = true
			return
		}
	}
}

// Clear discards the view. Used on conversation switch; history is
// server-authoritative and re-fetched on the next open.
func (s *Stream) Clear() {
	s.msgs = s.msgs[:0]
}

// Messages returns the current view, oldest first.
func (s *Stream) Messages() []Message {
	out := make([]Message, len(s.msgs))
	copy(out, s.msgs)
	return out
}

func (s *Stream) Len() int {
	return len(s.msgs)
}

func (s *Stream) findExact(m Message) int {
	for i, e := range s.msgs {
		if e.SameLogical(m) {
			return i
		}
	}
	return -1
}

func (s *Stream) findPendingEcho(m Message) int {
	for i := len(s.msgs) - 1; i >= 0; i-- {
		e := s.msgs[i]
		if e.Origin != OriginLocalEcho || !e.Pending {
			continue
		}
		if e.From != m.From || e.To != m.To || e.Text != m.Text {
			continue
		}
		d := m.Timestamp.Sub(e.Timestamp)
		if d < 0 {
			d = -d
		}
		if d <= echoMatchWindow {
			return i
		}
	}
	return -1
}

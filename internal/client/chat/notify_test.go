package chat

import (
	"strings"
	"testing"
)

func TestClassify(t *testing.T) {
	m := Message{From: "bob", To: "alice", Text: "hi"}

	if got := Classify(m, "bob"); got != ActionRender {
		t.Errorf("active sender: got %v, want render", got)
	}
	if got := Classify(m, "carol"); got != ActionNotify {
		t.Errorf("background sender: got %v, want notify", got)
	}
	if got := Classify(m, ""); got != ActionNotify {
		t.Errorf("nothing open: got %v, want notify", got)
	}
}

func TestPreview(t *testing.T) {
	short := "hello there"
	if got := Preview(short); got != short {
		t.Errorf("short text altered: %q", got)
	}

	exact := strings.Repeat("x", 50)
	if got := Preview(exact); got != exact {
		t.Errorf("50-char text should not be truncated: %q", got)
	}

	long := strings.Repeat("x", 51)
	got := Preview(long)
	if got != strings.Repeat("x", 50)+"..." {
		t.Errorf("truncation wrong: %q", got)
	}
}

package ratelimit

import (
	"net/http"
	"testing"
)

func TestConnectionCap(t *testing.T) {
	rl := New()
	rl.maxConns = 2

	if !rl.CanConnect("1.2.3.4") {
		t.Fatal("fresh IP refused")
	}
	rl.AddConnection("1.2.3.4")
	rl.AddConnection("1.2.3.4")
	if rl.CanConnect("1.2.3.4") {
		t.Error("IP over cap allowed")
	}
	if !rl.CanConnect("5.6.7.8") {
		t.Error("unrelated IP refused")
	}

	rl.RemoveConnection("1.2.3.4")
	if !rl.CanConnect("1.2.3.4") {
		t.Error("IP refused after a connection closed")
	}
}

func TestLoginWindow(t *testing.T) {
	rl := New()
	rl.maxLogins = 3

	for i := 0; i < 3; i++ {
		if !rl.CanLogin("1.2.3.4") {
			t.Fatalf("attempt %d refused under budget", i+1)
		}
	}
	if rl.CanLogin("1.2.3.4") {
		t.Error("attempt over budget allowed")
	}
	if !rl.CanLogin("5.6.7.8") {
		t.Error("unrelated IP refused")
	}
}

func TestGetClientIP(t *testing.T) {
	r := &http.Request{Header: http.Header{}, RemoteAddr: "10.0.0.1:5555"}
	if got := GetClientIP(r); got != "10.0.0.1" {
		t.Errorf("remote addr ip = %q", got)
	}

	r.Header.Set("X-Real-IP", "2.2.2.2")
	if got := GetClientIP(r); got != "2.2.2.2" {
		t.Errorf("x-real-ip = %q", got)
	}

	r.Header.Set("X-Forwarded-For", "3.3.3.3")
	if got := GetClientIP(r); got != "3.3.3.3" {
		t.Errorf("x-forwarded-for = %q", got)
	}
}

package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"github.com/neverwash/nwchat/internal/server/ratelimit"
)

func TestValidUsername(t *testing.T) {
	valid := []string{"@bob", "@alice_99", "@CarolThe3rd"}
	for _, name := range valid {
		if !validUsername(name) {
			t.Errorf("validUsername(%q) = false, want true", name)
		}
	}

	invalid := []string{"bob", "@ab", "@", "@bob smith", "@bob!", ""}
	for _, name := range invalid {
		if validUsername(name) {
			t.Errorf("validUsername(%q) = true, want false", name)
		}
	}
}

func TestValidPassword(t *testing.T) {
	if validPassword("short!") {
		t.Error("7-char password accepted")
	}
	if validPassword("longenoughbutplain") {
		t.Error("password without special character accepted")
	}
	if !validPassword("longenough!") {
		t.Error("valid password rejected")
	}
}

func TestEndpointsRequireSession(t *testing.T) {
	h := New(nil, nil, ratelimit.New())
	router := mux.NewRouter()
	h.Routes(router)

	paths := []string{
		"/get-user-info",
		"/get-contacts",
		"/get-message-history?username=@bob",
		"/search-users?query=bob",
		"/get-invite-codes",
		"/get-inviter-info",
	}
	for _, path := range paths {
		req := httptest.NewRequest("GET", path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("GET %s without session: status %d, want 401", path, rec.Code)
		}
		var body map[string]string
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Errorf("GET %s: body is not JSON: %v", path, err)
		} else if body["error"] == "" {
			t.Errorf("GET %s: error message missing", path)
		}
	}
}

func TestSessionCookieRoundTrip(t *testing.T) {
	h := New(nil, nil, ratelimit.New())

	rec := httptest.NewRecorder()
	h.startSession(rec, 42)

	var token string
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == SessionCookie {
			token = ck.Value
		}
	}
	if token == "" {
		t.Fatal("no session cookie issued")
	}

	h.mu.RLock()
	userID, ok := h.sessions[token]
	h.mu.RUnlock()
	if !ok || userID != 42 {
		t.Errorf("session map: got (%d, %v), want (42, true)", userID, ok)
	}
}

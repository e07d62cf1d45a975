// Package api is the HTTP client for the chat server's REST surface:
// session bootstrap, contacts, message history, user search and the
// account-management endpoints. Requests are authenticated by the
// session cookie issued at login.
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/neverwash/nwchat/internal/client/chat"
)

// SessionCookie is the cookie the server issues at login.
const SessionCookie = "nwchat_session"

// searchMinLength mirrors the server rule: shorter queries return
// nothing, so the client does not bother sending them.
const searchMinLength = 3

type Client struct {
	baseURL string
	http    *http.Client
}

// New builds a client for the server at baseURL (scheme + host, no
// trailing slash required).
func New(baseURL string) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http: &http.Client{
			Jar:     jar,
			Timeout: 10 * time.Second,
		},
	}, nil
}

// User is a search result or contact entry.
type User struct {
	Username string `json:"username"`
	AvatarID int    `json:"avatar_id"`
}

type InviterInfo struct {
	Found           bool   `json:"found"`
	Username        string `json:"username"`
	InviterName     string `json:"inviter_name"`
	InviterAvatarID int    `json:"inviter_avatar_id"`
}

type apiError struct {
	Error string `json:"error"`
}

func (c *Client) get(path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	resp, err := c.http.Get(u)
	if err != nil {
		return err
	}
	return decode(resp, out)
}

func (c *Client) post(path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	resp, err := c.http.Post(c.baseURL+path, "application/json", &buf)
	if err != nil {
		return err
	}
	return decode(resp, out)
}

func decode(resp *http.Response, out any) error {
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		data, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s", apiErr.Error)
		}
		return fmt.Errorf("server returned %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Login authenticates and stores the session cookie on the client's
// jar. Returns the account's avatar.
func (c *Client) Login(username, password string) (int, error) {
	var resp struct {
		AvatarID int `json:"avatar_id"`
	}
	err := c.post("/login", map[string]string{
		"username": username,
		"password": password,
	}, &resp)
	if err != nil {
		return 0, fmt.Errorf("login: %w", err)
	}
	return resp.AvatarID, nil
}

// Register creates an account gated by an invite code and returns the
// new account's own two invite codes.
func (c *Client) Register(username, password, inviteCode string) ([]string, error) {
	var resp struct {
		InviteCodes []string `json:"invite_codes"`
	}
	err := c.post("/register", map[string]string{
		"username":    username,
		"password":    password,
		"invite_code": inviteCode,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	return resp.InviteCodes, nil
}

// UserInfo fetches the session identity established at login.
func (c *Client) UserInfo() (chat.Identity, error) {
	var resp struct {
		Username string `json:"username"`
		AvatarID int    `json:"avatar_id"`
	}
	if err := c.get("/get-user-info", nil, &resp); err != nil {
		return chat.Identity{}, fmt.Errorf("user info: %w", err)
	}
	return chat.Identity{Username: resp.Username, AvatarID: resp.AvatarID}, nil
}

// Contacts fetches everyone the user has exchanged messages with.
func (c *Client) Contacts() ([]User, error) {
	var resp struct {
		Contacts []User `json:"contacts"`
	}
	if err := c.get("/get-contacts", nil, &resp); err != nil {
		return nil, fmt.Errorf("contacts: %w", err)
	}
	return resp.Contacts, nil
}

// History fetches the full message history with the given counterpart,
// oldest first.
func (c *Client) History(username string) ([]chat.Message, error) {
	var resp struct {
		Messages []chat.WireMessage `json:"messages"`
	}
	q := url.Values{"username": {username}}
	if err := c.get("/get-message-history", q, &resp); err != nil {
		return nil, fmt.Errorf("history for %s: %w", username, err)
	}

	msgs := make([]chat.Message, 0, len(resp.Messages))
	for _, wm := range resp.Messages {
		m, err := wm.ToMessage(chat.OriginHistory)
		if err != nil {
			return nil, fmt.Errorf("history for %s: %w", username, err)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// SearchUsers looks up users by partial name. Queries shorter than
// three characters are a no-op and return nothing.
func (c *Client) SearchUsers(query string) ([]User, error) {
	query = strings.TrimSpace(query)
	if len(query) < searchMinLength {
		return nil, nil
	}
	var resp struct {
		Users []User `json:"users"`
	}
	q := url.Values{"query": {query}}
	if err := c.get("/search-users", q, &resp); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return resp.Users, nil
}

// AvatarFor resolves a contact's avatar through the search endpoint.
// Used when a roster entry was created from a bare username.
func (c *Client) AvatarFor(username string) (int, error) {
	users, err := c.SearchUsers(username)
	if err != nil {
		return 0, err
	}
	for _, u := range users {
		if u.Username == username {
			return u.AvatarID, nil
		}
	}
	return 0, nil
}

// UpdateAvatar changes the account's avatar (1..20).
func (c *Client) UpdateAvatar(avatarID int) error {
	err := c.post("/update-avatar", map[string]int{"avatar_id": avatarID}, nil)
	if err != nil {
		return fmt.Errorf("update avatar: %w", err)
	}
	return nil
}

// InviteCodes returns the account's two invitation codes.
func (c *Client) InviteCodes() (string, string, error) {
	var resp struct {
		Code1 string `json:"code1"`
		Code2 string `json:"code2"`
	}
	if err := c.get("/get-invite-codes", nil, &resp); err != nil {
		return "", "", fmt.Errorf("invite codes: %w", err)
	}
	return resp.Code1, resp.Code2, nil
}

// InviterInfo returns who invited the current user, when recorded.
func (c *Client) InviterInfo() (InviterInfo, error) {
	var resp InviterInfo
	if err := c.get("/get-inviter-info", nil, &resp); err != nil {
		return InviterInfo{}, fmt.Errorf("inviter info: %w", err)
	}
	return resp, nil
}

// DeleteAccount permanently removes the account; the inviter's code is
// freed server-side.
func (c *Client) DeleteAccount() error {
	if err := c.post("/delete-account", nil, nil); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return nil
}

// Logout ends the server session.
func (c *Client) Logout() error {
	if err := c.post("/logout", nil, nil); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// SessionToken returns the current session cookie value, for persisting
// the login across client restarts.
func (c *Client) SessionToken() string {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return ""
	}
	for _, ck := range c.http.Jar.Cookies(u) {
		if ck.Name == SessionCookie {
			return ck.Value
		}
	}
	return ""
}

// SetSessionToken restores a persisted session cookie.
func (c *Client) SetSessionToken(token string) {
	u, err := url.Parse(c.baseURL)
	if err != nil || token == "" {
		return
	}
	c.http.Jar.SetCookies(u, []*http.Cookie{{Name: SessionCookie, Value: token, Path: "/"}})
}

// WSHeader builds the header for the websocket dial so the channel is
// covered by the same page session as the REST calls.
func (c *Client) WSHeader() http.Header {
	h := http.Header{}
	if token := c.SessionToken(); token != "" {
		h.Set("Cookie", fmt.Sprintf("%s=%s", SessionCookie, token))
	}
	return h
}

// Package handlers wires the REST surface and the websocket upgrade.
// Authentication is a session cookie backed by an in-memory token map;
// restarting the server logs everyone out.
package handlers

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"log"
	"net/http"
	"regexp"
	"strings"
	"sync"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"golang.org/x/crypto/bcrypt"

	"github.com/neverwash/nwchat/internal/server/models"
	"github.com/neverwash/nwchat/internal/server/ratelimit"
	"github.com/neverwash/nwchat/internal/server/storage"
	"github.com/neverwash/nwchat/internal/server/ws"
)

// SessionCookie is the cookie name the TUI client expects.
const SessionCookie = "nwchat_session"

const searchMinLength = 3

var (
	usernamePattern = regexp.MustCompile(`^@[a-zA-Z0-9_]{3,}$`)
	specialChars    = "!@#$%^&*()-_=+[]{};:'\",.<>/?\\|`~"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Handlers struct {
	Store   *storage.Store
	Hub     *ws.Hub
	Limiter *ratelimit.RateLimiter

	mu       sync.RWMutex
	sessions map[string]int // token -> user id
}

func New(store *storage.Store, hub *ws.Hub, limiter *ratelimit.RateLimiter) *Handlers {
	return &Handlers{
		Store:    store,
		Hub:      hub,
		Limiter:  limiter,
		sessions: make(map[string]int),
	}
}

// Routes mounts every endpoint on the given router.
func (h *Handlers) Routes(r *mux.Router) {
	r.HandleFunc("/health", HealthCheck).Methods("GET")
	r.HandleFunc("/login", h.Login).Methods("POST")
	r.HandleFunc("/register", h.Register).Methods("POST")
	r.HandleFunc("/logout", h.Logout).Methods("POST")
	r.HandleFunc("/get-user-info", h.UserInfo).Methods("GET")
	r.HandleFunc("/get-contacts", h.Contacts).Methods("GET")
	r.HandleFunc("/get-message-history", h.MessageHistory).Methods("GET")
	r.HandleFunc("/search-users", h.SearchUsers).Methods("GET")
	r.HandleFunc("/update-avatar", h.UpdateAvatar).Methods("POST")
	r.HandleFunc("/get-invite-codes", h.InviteCodes).Methods("GET")
	r.HandleFunc("/get-inviter-info", h.InviterInfo).Methods("GET")
	r.HandleFunc("/delete-account", h.DeleteAccount).Methods("POST")
	r.HandleFunc("/ws", h.HandleWebSocket)
}

func HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// Session plumbing

func newSessionToken() string {
	buf := make([]byte, 32)
	rand.Read(buf)
	return hex.EncodeToString(buf)
}

func (h *Handlers) startSession(w http.ResponseWriter, userID int) {
	token := newSessionToken()
	h.mu.Lock()
	h.sessions[token] = userID
	h.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handlers) endSession(w http.ResponseWriter, r *http.Request) {
	if ck, err := r.Cookie(SessionCookie); err == nil {
		h.mu.Lock()
		delete(h.sessions, ck.Value)
		h.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{
		Name:   SessionCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
}

// currentUser resolves the session cookie to a user. Writes a 401 and
// returns nil when the request is not authenticated.
func (h *Handlers) currentUser(w http.ResponseWriter, r *http.Request) *models.User {
	ck, err := r.Cookie(SessionCookie)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "not logged in")
		return nil
	}

	h.mu.RLock()
	userID, ok := h.sessions[ck.Value]
	h.mu.RUnlock()
	if !ok {
		writeError(w, http.StatusUnauthorized, "not logged in")
		return nil
	}

	user, err := h.Store.GetUserByID(userID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "not logged in")
		return nil
	}
	return user
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Validation

func validUsername(name string) bool {
	return usernamePattern.MatchString(name)
}

func validPassword(pw string) bool {
	if len(pw) < 8 {
		return false
	}
	return strings.ContainsAny(pw, specialChars)
}

// Auth endpoints

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	ip := ratelimit.GetClientIP(r)
	if !h.Limiter.CanLogin(ip) {
		writeError(w, http.StatusTooManyRequests, "too many login attempts, wait a minute")
		return
	}

	var payload models.LoginPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.Store.GetUserByName(payload.Username)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(payload.Password)); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	h.startSession(w, user.ID)
	writeJSON(w, http.StatusOK, map[string]any{
		"username":  user.Username,
		"avatar_id": user.AvatarID,
	})
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var payload models.RegisterPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !validUsername(payload.Username) {
		writeError(w, http.StatusBadRequest, "username must start with @ and contain at least 3 letters, digits or underscores")
		return
	}
	if !validPassword(payload.Password) {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters and contain a special character")
		return
	}
	if h.Store.UserExists(payload.Username) {
		writeError(w, http.StatusConflict, "username already taken")
		return
	}

	inviterID, slot, err := h.Store.CheckInviteCode(payload.InviteCode)
	if err != nil {
		writeError(w, http.StatusForbidden, err.Error())
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(payload.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	code1 := storage.GenerateInviteCode()
	code2 := storage.GenerateInviteCode()
	userID, err := h.Store.CreateUser(payload.Username, string(hash), code1, code2)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}
	if err := h.Store.ConsumeInviteCode(inviterID, userID, payload.InviteCode, slot); err != nil {
		log.Printf("ConsumeInviteCode error: %v", err)
	}

	h.startSession(w, userID)
	writeJSON(w, http.StatusOK, map[string]any{
		"username":     payload.Username,
		"invite_codes": []string{code1, code2},
	})
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	h.endSession(w, r)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Account endpoints

func (h *Handlers) UserInfo(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"username":  user.Username,
		"avatar_id": user.AvatarID,
	})
}

func (h *Handlers) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}

	var payload models.UpdateAvatarPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.AvatarID < 1 || payload.AvatarID > 20 {
		writeError(w, http.StatusBadRequest, "avatar_id must be between 1 and 20")
		return
	}

	if err := h.Store.UpdateAvatar(user.ID, payload.AvatarID); err != nil {
		writeError(w, http.StatusInternalServerError, "could not update avatar")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) InviteCodes(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}

	codes, err := h.Store.InviteCodes(user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load invite codes")
		return
	}
	writeJSON(w, http.StatusOK, codes)
}

func (h *Handlers) InviterInfo(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}

	found, name, avatarID, err := h.Store.InviterInfo(user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load inviter info")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"found":             found,
		"username":          user.Username,
		"inviter_name":      name,
		"inviter_avatar_id": avatarID,
	})
}

func (h *Handlers) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}

	if err := h.Store.DeleteAccount(user.ID); err != nil {
		log.Printf("DeleteAccount error: %v", err)
		writeError(w, http.StatusInternalServerError, "could not delete account")
		return
	}
	h.endSession(w, r)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Chat endpoints

func (h *Handlers) Contacts(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}

	contacts, err := h.Store.Contacts(user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load contacts")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"contacts": contacts})
}

func (h *Handlers) MessageHistory(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}

	other := r.URL.Query().Get("username")
	if other == "" {
		writeError(w, http.StatusBadRequest, "username query parameter required")
		return
	}

	msgs, err := h.Store.History(user.ID, other)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

func (h *Handlers) SearchUsers(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if len(query) < searchMinLength {
		writeJSON(w, http.StatusOK, map[string]any{"users": []models.Contact{}})
		return
	}

	users, err := h.Store.SearchUsers(query, user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

// Websocket

// HandleWebSocket upgrades an authenticated request into a persistent
// channel. The session cookie is checked before the upgrade; the
// client's auth frame then binds the socket inside the hub.
func (h *Handlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ck, err := r.Cookie(SessionCookie)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "not logged in")
		return
	}
	h.mu.RLock()
	userID, ok := h.sessions[ck.Value]
	h.mu.RUnlock()
	if !ok {
		writeError(w, http.StatusUnauthorized, "not logged in")
		return
	}

	var user *models.User
	if user, err = h.Store.GetUserByID(userID); err != nil {
		if err == sql.ErrNoRows {
			writeError(w, http.StatusUnauthorized, "not logged in")
		} else {
			writeError(w, http.StatusInternalServerError, "server error")
		}
		return
	}

	clientIP := ratelimit.GetClientIP(r)
	if !h.Limiter.CanConnect(clientIP) {
		http.Error(w, "Too many connections from your IP", http.StatusTooManyRequests)
		log.Printf("Rate limited connection from %s", clientIP)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("Upgrade error:", err)
		return
	}

	h.Limiter.AddConnection(clientIP)
	client := ws.NewClient(h.Hub, conn, user.Username, clientIP)

	go func() {
		defer h.Limiter.RemoveConnection(clientIP)
		client.WritePump()
	}()
	go client.ReadPump()
}

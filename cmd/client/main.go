package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/gen2brain/beeep"
	"github.com/joho/godotenv"

	"github.com/neverwash/nwchat/internal/client/api"
	"github.com/neverwash/nwchat/internal/client/chat"
	"github.com/neverwash/nwchat/internal/client/debug"
	"github.com/neverwash/nwchat/internal/client/session"
)

// --- Styles ---

var (
	primaryColor   = lipgloss.Color("#7C3AED")
	secondaryColor = lipgloss.Color("#10B981")
	textColor      = lipgloss.Color("#F9FAFB")
	mutedColor     = lipgloss.Color("#9CA3AF")
	errorColor     = lipgloss.Color("#EF4444")
	warnColor      = lipgloss.Color("#F59E0B")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().
			Foreground(secondaryColor).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	errorStyle = lipgloss.NewStyle().
			Foreground(errorColor).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(warnColor).
			Bold(true)

	badgeStyle = lipgloss.NewStyle().
			Foreground(textColor).
			Background(errorColor).
			Padding(0, 1).
			Bold(true)

	ownMessageStyle = lipgloss.NewStyle().
			Foreground(secondaryColor)

	otherMessageStyle = lipgloss.NewStyle().
				Foreground(primaryColor)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Italic(true)
)

// avatarGlyphs maps the 20 server avatar ids to sidebar glyphs. Index 0
// is the placeholder for a not-yet-resolved avatar.
var avatarGlyphs = [21]string{
	"·",
	"🦊", "🐼", "🦉", "🐙", "🐳", "🦄", "🐧", "🦜", "🐢", "🦋",
	"🐺", "🐸", "🦅", "🐬", "🦁", "🐨", "🦩", "🐝", "🦔", "🐊",
}

func avatarGlyph(id int) string {
	if id < 0 || id >= len(avatarGlyphs) {
		return avatarGlyphs[0]
	}
	return avatarGlyphs[id]
}

// --- View State ---

type viewState int

const (
	viewAuth viewState = iota
	viewCodesIssued
	viewContacts
	viewSearch
	viewChat
	viewAvatarPicker
	viewInvites
	viewDeleteConfirm
)

// --- Messages ---

type authResultMsg struct {
	identity chat.Identity
	codes    []string
	err      error
}

type sessionCheckMsg struct {
	identity chat.Identity
	err      error
}

type contactsMsg struct {
	contacts []api.User
	err      error
}

type connectResultMsg struct {
	err error
}

type channelEventMsg struct {
	ev chat.Event
}

type historyLoadedMsg struct {
	username string
	gen      int
	msgs     []chat.Message
	err      error
}

type searchResultsMsg struct {
	users []api.User
	err   error
}

type avatarResolvedMsg struct {
	username string
	avatarID int
}

type avatarSavedMsg struct {
	avatarID int
	err      error
}

type inviteDataMsg struct {
	code1   string
	code2   string
	inviter api.InviterInfo
	err     error
}

type accountDeletedMsg struct {
	err error
}

type loggedOutMsg struct{}

// --- Main Model ---

type model struct {
	profile   string
	serverURL string

	api    *api.Client
	mgr    *chat.Manager
	roster *chat.Roster
	stream *chat.Stream
	ctrl   *chat.Controller
	self   chat.Identity

	// Auth
	authAction    string // "login" or "register"
	usernameInput textinput.Model
	passwordInput textinput.Model
	inviteInput   textinput.Model
	authFocused   int
	authError     string
	authBusy      bool
	issuedCodes   []string
	restoring     bool

	// Contacts
	selected int

	// Search
	searchInput    textinput.Model
	searchResults  []api.User
	searchSelected int

	// Chat
	messageInput textinput.Model
	chatViewport viewport.Model
	sendError    string

	// Avatar picker
	avatarCursor int

	// Invites
	inviteCode1 string
	inviteCode2 string
	inviter     api.InviterInfo

	// Connection banner
	disconnected bool
	advisory     string

	// UI
	view   viewState
	width  int
	height int
	err    error
}

func initialModel(serverURL, profile string, client *api.Client, restoring bool) model {
	usernameInput := textinput.New()
	usernameInput.Placeholder = "@username"
	usernameInput.Focus()
	usernameInput.CharLimit = 32
	usernameInput.Width = 30

	passwordInput := textinput.New()
	passwordInput.Placeholder = "Password"
	passwordInput.EchoMode = textinput.EchoPassword
	passwordInput.CharLimit = 64
	passwordInput.Width = 30

	inviteInput := textinput.New()
	inviteInput.Placeholder = "Invite code"
	inviteInput.CharLimit = 64
	inviteInput.Width = 34

	searchInput := textinput.New()
	searchInput.Placeholder = "Search users (3+ characters)..."
	searchInput.CharLimit = 32
	searchInput.Width = 30

	messageInput := textinput.New()
	messageInput.Placeholder = "Type a message..."
	messageInput.CharLimit = 1000
	messageInput.Width = 50

	chatViewport := viewport.New(80, 20)

	return model{
		profile:       profile,
		serverURL:     serverURL,
		api:           client,
		authAction:    "login",
		usernameInput: usernameInput,
		passwordInput: passwordInput,
		inviteInput:   inviteInput,
		searchInput:   searchInput,
		messageInput:  messageInput,
		chatViewport:  chatViewport,
		avatarCursor:  1,
		view:          viewAuth,
		restoring:     restoring,
	}
}

func wsURL(serverURL string) string {
	u := strings.Replace(serverURL, "https://", "wss://", 1)
	u = strings.Replace(u, "http://", "ws://", 1)
	return strings.TrimSuffix(u, "/") + "/ws"
}

// --- Commands ---

func loginCmd(client *api.Client, username, password string) tea.Cmd {
	return func() tea.Msg {
		avatarID, err := client.Login(username, password)
		if err != nil {
			return authResultMsg{err: err}
		}
		return authResultMsg{identity: chat.Identity{Username: username, AvatarID: avatarID}}
	}
}

func registerCmd(client *api.Client, username, password, invite string) tea.Cmd {
	return func() tea.Msg {
		codes, err := client.Register(username, password, invite)
		if err != nil {
			return authResultMsg{err: err}
		}
		return authResultMsg{identity: chat.Identity{Username: username}, codes: codes}
	}
}

func restoreSessionCmd(client *api.Client) tea.Cmd {
	return func() tea.Msg {
		id, err := client.UserInfo()
		return sessionCheckMsg{identity: id, err: err}
	}
}

func contactsCmd(client *api.Client) tea.Cmd {
	return func() tea.Msg {
		contacts, err := client.Contacts()
		return contactsMsg{contacts: contacts, err: err}
	}
}

func connectCmd(mgr *chat.Manager, id chat.Identity) tea.Cmd {
	return func() tea.Msg {
		return connectResultMsg{err: mgr.Connect(id)}
	}
}

func waitEventCmd(mgr *chat.Manager) tea.Cmd {
	return func() tea.Msg {
		return channelEventMsg{ev: <-mgr.Events()}
	}
}

func historyCmd(client *api.Client, username string, gen int) tea.Cmd {
	return func() tea.Msg {
		msgs, err := client.History(username)
		return historyLoadedMsg{username: username, gen: gen, msgs: msgs, err: err}
	}
}

func searchCmd(client *api.Client, query string) tea.Cmd {
	return func() tea.Msg {
		users, err := client.SearchUsers(query)
		return searchResultsMsg{users: users, err: err}
	}
}

func resolveAvatarCmd(client *api.Client, username string) tea.Cmd {
	return func() tea.Msg {
		id, err := client.AvatarFor(username)
		if err != nil {
			debug.Log("avatar lookup for %s: %v", username, err)
			return nil
		}
		return avatarResolvedMsg{username: username, avatarID: id}
	}
}

func saveAvatarCmd(client *api.Client, avatarID int) tea.Cmd {
	return func() tea.Msg {
		return avatarSavedMsg{avatarID: avatarID, err: client.UpdateAvatar(avatarID)}
	}
}

func inviteDataCmd(client *api.Client) tea.Cmd {
	return func() tea.Msg {
		code1, code2, err := client.InviteCodes()
		if err != nil {
			return inviteDataMsg{err: err}
		}
		inviter, err := client.InviterInfo()
		if err != nil {
			return inviteDataMsg{code1: code1, code2: code2, err: err}
		}
		return inviteDataMsg{code1: code1, code2: code2, inviter: inviter}
	}
}

func deleteAccountCmd(client *api.Client) tea.Cmd {
	return func() tea.Msg {
		return accountDeletedMsg{err: client.DeleteAccount()}
	}
}

func logoutCmd(client *api.Client) tea.Cmd {
	return func() tea.Msg {
		if err := client.Logout(); err != nil {
			debug.Log("logout: %v", err)
		}
		return loggedOutMsg{}
	}
}

// NWCHAT_SILENT suppresses desktop alerts; unread badges keep working.
func notifyCmd(from, text string) tea.Cmd {
	if os.Getenv("NWCHAT_SILENT") != "" {
		return nil
	}
	return func() tea.Msg {
		if err := beeep.Notify("nwchat", fmt.Sprintf("%s: %s", from, chat.Preview(text)), ""); err != nil {
			debug.Log("desktop alert: %v", err)
		}
		return nil
	}
}

// --- Init ---

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink}
	if m.restoring {
		cmds = append(cmds, restoreSessionCmd(m.api))
	}
	return tea.Batch(cmds...)
}

// --- Session bootstrap ---

// startSession wires the engine for an authenticated identity and kicks
// off the contact fetch and the channel connect.
func (m *model) startSession(id chat.Identity) tea.Cmd {
	m.self = id
	m.roster = chat.NewRoster()
	m.stream = chat.NewStream()
	m.mgr = chat.NewManager(wsURL(m.serverURL), m.api.WSHeader())
	m.ctrl = chat.NewController(id, m.mgr, m.roster, m.stream)
	m.disconnected = false
	m.advisory = ""

	if err := session.Save(m.profile, session.Session{
		ServerURL: m.serverURL,
		Username:  id.Username,
		Token:     m.api.SessionToken(),
	}); err != nil {
		debug.Log("session save: %v", err)
	}

	return tea.Batch(
		contactsCmd(m.api),
		connectCmd(m.mgr, m.self),
		waitEventCmd(m.mgr),
	)
}

func (m *model) endSession() {
	if m.mgr != nil {
		m.mgr.Close()
	}
	session.Clear(m.profile)
	m.view = viewAuth
	m.authError = ""
	m.usernameInput.SetValue("")
	m.passwordInput.SetValue("")
	m.inviteInput.SetValue("")
	m.authFocused = 0
	m.usernameInput.Focus()
	m.passwordInput.Blur()
	m.inviteInput.Blur()
}

// openConversation focuses a counterpart and starts the history fetch.
func (m *model) openConversation(username string) tea.Cmd {
	gen := m.ctrl.Open(username)
	m.view = viewChat
	m.sendError = ""
	m.messageInput.SetValue("")
	m.messageInput.Focus()
	m.updateChatViewport()

	cmds := []tea.Cmd{historyCmd(m.api, username, gen)}
	if m.roster.Avatar(username) == 0 {
		cmds = append(cmds, resolveAvatarCmd(m.api, username))
	}
	return tea.Batch(cmds...)
}

// --- Update ---

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if next, cmd, handled := m.handleKey(msg); handled {
			return next, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.chatViewport.Width = msg.Width - 4
		m.chatViewport.Height = msg.Height - 8
		m.updateChatViewport()

	case sessionCheckMsg:
		m.restoring = false
		if msg.err != nil {
			// Stored cookie expired or the server forgot us; fall back
			// to the login form.
			debug.Log("session restore: %v", msg.err)
			session.Clear(m.profile)
			return m, nil
		}
		m.view = viewContacts
		return m, m.startSession(msg.identity)

	case authResultMsg:
		m.authBusy = false
		if msg.err != nil {
			m.authError = msg.err.Error()
			return m, nil
		}
		m.authError = ""
		if len(msg.codes) > 0 {
			m.issuedCodes = msg.codes
			m.view = viewCodesIssued
			return m, m.startSession(msg.identity)
		}
		m.view = viewContacts
		return m, m.startSession(msg.identity)

	case contactsMsg:
		if msg.err != nil {
			debug.Log("contacts: %v", msg.err)
			return m, nil
		}
		for _, c := range msg.contacts {
			m.roster.Upsert(c.Username, c.AvatarID)
		}

	case connectResultMsg:
		if msg.err != nil {
			m.disconnected = true
			m.advisory = "connection failed, press ctrl+o to retry"
			debug.Log("connect: %v", msg.err)
		}

	case channelEventMsg:
		cmds = append(cmds, waitEventCmd(m.mgr))
		switch ev := msg.ev.(type) {
		case chat.ConnectedEvent:
			m.disconnected = false
			m.advisory = ""
		case chat.AuthAckedEvent:
			debug.Log("channel authenticated")
		case chat.DisconnectedEvent:
			m.disconnected = true
			m.advisory = "connection lost, press ctrl+o to reconnect (esc dismisses)"
			debug.Log("channel lost: %v", ev.Err)
		case chat.InboundEvent:
			switch m.ctrl.HandleInbound(ev.Msg) {
			case chat.ActionRender:
				m.updateChatViewport()
			case chat.ActionNotify:
				cmds = append(cmds, notifyCmd(ev.Msg.From, ev.Msg.Text))
				if m.roster.Avatar(ev.Msg.From) == 0 {
					cmds = append(cmds, resolveAvatarCmd(m.api, ev.Msg.From))
				}
			}
		case chat.ErrEvent:
			debug.Log("channel: %v", ev.Err)
		}

	case historyLoadedMsg:
		if msg.err != nil {
			debug.Log("history for %s: %v", msg.username, msg.err)
		}
		if m.ctrl.CompleteLoad(msg.username, msg.gen, msg.msgs, msg.err) {
			m.updateChatViewport()
		}

	case searchResultsMsg:
		if msg.err != nil {
			debug.Log("search: %v", msg.err)
			return m, nil
		}
		m.searchResults = msg.users
		m.searchSelected = 0

	case avatarResolvedMsg:
		if msg.avatarID != 0 {
			m.roster.Upsert(msg.username, msg.avatarID)
		}

	case avatarSavedMsg:
		if msg.err != nil {
			debug.Log("avatar update: %v", msg.err)
			return m, nil
		}
		m.self.AvatarID = msg.avatarID
		m.view = viewContacts

	case inviteDataMsg:
		if msg.err != nil {
			debug.Log("invite data: %v", msg.err)
		}
		m.inviteCode1 = msg.code1
		m.inviteCode2 = msg.code2
		m.inviter = msg.inviter

	case accountDeletedMsg:
		if msg.err != nil {
			debug.Log("delete account: %v", msg.err)
			m.view = viewContacts
			return m, nil
		}
		m.endSession()
		return m, nil

	case loggedOutMsg:
		m.endSession()
		return m, nil
	}

	// Update text inputs
	switch m.view {
	case viewAuth:
		switch m.authFocused {
		case 0:
			m.usernameInput, _ = m.usernameInput.Update(msg)
		case 1:
			m.passwordInput, _ = m.passwordInput.Update(msg)
		case 2:
			m.inviteInput, _ = m.inviteInput.Update(msg)
		}
	case viewSearch:
		m.searchInput, _ = m.searchInput.Update(msg)
	case viewChat:
		m.messageInput, _ = m.messageInput.Update(msg)
		m.chatViewport, _ = m.chatViewport.Update(msg)
	}

	return m, tea.Batch(cmds...)
}

// handleKey routes key presses per view. Returns handled=false for keys
// that should fall through to the focused text input.
func (m model) handleKey(msg tea.KeyMsg) (model, tea.Cmd, bool) {
	key := msg.String()

	// Global keys
	switch key {
	case "ctrl+c":
		return m, tea.Quit, true
	case "ctrl+o":
		if m.disconnected && m.mgr != nil {
			m.advisory = "reconnecting..."
			return m, connectCmd(m.mgr, m.self), true
		}
	}

	switch m.view {
	case viewAuth:
		return m.handleAuthKey(key)

	case viewCodesIssued:
		if key == "enter" {
			m.view = viewContacts
			return m, nil, true
		}

	case viewContacts:
		return m.handleContactsKey(key)

	case viewSearch:
		switch key {
		case "esc":
			m.view = viewContacts
			m.searchInput.Blur()
			return m, nil, true
		case "up":
			if m.searchSelected > 0 {
				m.searchSelected--
			}
			return m, nil, true
		case "down":
			if m.searchSelected < len(m.searchResults)-1 {
				m.searchSelected++
			}
			return m, nil, true
		case "enter":
			if len(m.searchResults) > 0 {
				u := m.searchResults[m.searchSelected]
				m.roster.Upsert(u.Username, u.AvatarID)
				m.searchInput.Blur()
				return m, m.openConversation(u.Username), true
			}
			return m, searchCmd(m.api, m.searchInput.Value()), true
		default:
			// Live search as the query grows.
			if len(strings.TrimSpace(m.searchInput.Value())) >= 2 {
				var cmd tea.Cmd
				m.searchInput, cmd = m.searchInput.Update(msg)
				return m, tea.Batch(cmd, searchCmd(m.api, m.searchInput.Value())), true
			}
		}

	case viewChat:
		switch key {
		case "esc":
			if m.disconnected && m.advisory != "" {
				m.advisory = ""
				return m, nil, true
			}
			m.ctrl.Close()
			m.messageInput.Blur()
			m.view = viewContacts
			return m, nil, true
		case "enter":
			text := m.messageInput.Value()
			m.messageInput.SetValue("")
			_, err := m.ctrl.Send(text)
			switch err {
			case nil, chat.ErrEmptyMessage:
				m.sendError = ""
			case chat.ErrNotConnected:
				m.sendError = "not connected, message not sent"
			default:
				m.sendError = "send failed, connection lost"
			}
			m.updateChatViewport()
			return m, nil, true
		}

	case viewAvatarPicker:
		switch key {
		case "esc":
			m.view = viewContacts
			return m, nil, true
		case "left", "h":
			if m.avatarCursor > 1 {
				m.avatarCursor--
			}
			return m, nil, true
		case "right", "l":
			if m.avatarCursor < 20 {
				m.avatarCursor++
			}
			return m, nil, true
		case "enter":
			return m, saveAvatarCmd(m.api, m.avatarCursor), true
		}

	case viewInvites:
		if key == "esc" || key == "q" {
			m.view = viewContacts
			return m, nil, true
		}

	case viewDeleteConfirm:
		switch key {
		case "y":
			return m, deleteAccountCmd(m.api), true
		case "n", "esc":
			m.view = viewContacts
			return m, nil, true
		}
	}

	return m, nil, false
}

func (m model) handleAuthKey(key string) (model, tea.Cmd, bool) {
	fields := 2
	if m.authAction == "register" {
		fields = 3
	}

	switch key {
	case "q":
		if m.usernameInput.Value() == "" && m.passwordInput.Value() == "" {
			return m, tea.Quit, true
		}
	case "tab", "shift+tab":
		if key == "tab" {
			m.authFocused = (m.authFocused + 1) % fields
		} else {
			m.authFocused = (m.authFocused + fields - 1) % fields
		}
		m.usernameInput.Blur()
		m.passwordInput.Blur()
		m.inviteInput.Blur()
		switch m.authFocused {
		case 0:
			m.usernameInput.Focus()
		case 1:
			m.passwordInput.Focus()
		case 2:
			m.inviteInput.Focus()
		}
		return m, nil, true
	case "ctrl+r":
		if m.authAction == "login" {
			m.authAction = "register"
		} else {
			m.authAction = "login"
			if m.authFocused == 2 {
				m.authFocused = 0
				m.inviteInput.Blur()
				m.usernameInput.Focus()
			}
		}
		m.authError = ""
		return m, nil, true
	case "enter":
		if m.authBusy {
			return m, nil, true
		}
		username := strings.TrimSpace(m.usernameInput.Value())
		password := m.passwordInput.Value()
		if username == "" || password == "" {
			return m, nil, true
		}
		m.authBusy = true
		if m.authAction == "register" {
			invite := strings.TrimSpace(m.inviteInput.Value())
			return m, registerCmd(m.api, username, password, invite), true
		}
		return m, loginCmd(m.api, username, password), true
	}
	return m, nil, false
}

func (m model) handleContactsKey(key string) (model, tea.Cmd, bool) {
	contacts := m.roster.All()

	switch key {
	case "q":
		return m, tea.Quit, true
	case "esc":
		if m.advisory != "" {
			m.advisory = ""
			return m, nil, true
		}
	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}
		return m, nil, true
	case "down", "j":
		if m.selected < len(contacts)-1 {
			m.selected++
		}
		return m, nil, true
	case "enter":
		if len(contacts) > 0 && m.selected < len(contacts) {
			return m, m.openConversation(contacts[m.selected].Username), true
		}
	case "/":
		m.view = viewSearch
		m.searchInput.SetValue("")
		m.searchResults = nil
		m.searchSelected = 0
		m.searchInput.Focus()
		return m, nil, true
	case "a":
		m.view = viewAvatarPicker
		if m.self.AvatarID >= 1 && m.self.AvatarID <= 20 {
			m.avatarCursor = m.self.AvatarID
		}
		return m, nil, true
	case "i":
		m.view = viewInvites
		m.inviteCode1, m.inviteCode2 = "", ""
		m.inviter = api.InviterInfo{}
		return m, inviteDataCmd(m.api), true
	case "ctrl+x":
		m.view = viewDeleteConfirm
		return m, nil, true
	case "ctrl+l":
		return m, logoutCmd(m.api), true
	}
	return m, nil, false
}

// --- Viewport rendering ---

func (m *model) updateChatViewport() {
	if m.ctrl == nil {
		return
	}

	var content strings.Builder
	for _, msg := range m.stream.Messages() {
		timestamp := msg.Timestamp.Local().Format("15:04")
		style := otherMessageStyle
		if msg.From == m.self.Username {
			style = ownMessageStyle
		}
		suffix := ""
		if msg.Failed {
			suffix = errorStyle.Render(" ✗ not delivered")
		} else if msg.Pending {
			suffix = mutedStyle.Render(" …")
		}
		line := fmt.Sprintf("%s %s: %s%s",
			mutedStyle.Render(timestamp),
			style.Render(msg.From),
			msg.Text,
			suffix,
		)
		content.WriteString(line + "\n")
	}
	m.chatViewport.SetContent(content.String())
	m.chatViewport.GotoBottom()
}

// --- View ---

func (m model) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress ctrl+c to quit.", m.err))
	}

	var body string
	switch m.view {
	case viewAuth:
		body = m.authView()
	case viewCodesIssued:
		body = m.codesIssuedView()
	case viewContacts:
		body = m.contactsView()
	case viewSearch:
		body = m.searchView()
	case viewChat:
		body = m.chatView()
	case viewAvatarPicker:
		body = m.avatarPickerView()
	case viewInvites:
		body = m.invitesView()
	case viewDeleteConfirm:
		body = m.deleteConfirmView()
	}

	if m.advisory != "" {
		return warnStyle.Render("  ⚠ "+m.advisory) + "\n" + body
	}
	return body
}

func (m model) authView() string {
	var s strings.Builder

	title := titleStyle.Render("╔═══════════════════════════════╗\n║       NEVER.WASH CHAT         ║\n╚═══════════════════════════════╝")

	s.WriteString("\n\n")
	s.WriteString(title)
	s.WriteString("\n\n")

	if m.restoring {
		s.WriteString(mutedStyle.Render("  Restoring session...\n"))
		return s.String()
	}

	if m.authAction == "login" {
		s.WriteString(selectedStyle.Render("  → Login"))
		s.WriteString(mutedStyle.Render("   Register\n"))
	} else {
		s.WriteString(mutedStyle.Render("  Login   "))
		s.WriteString(selectedStyle.Render("→ Register\n"))
	}
	s.WriteString(helpStyle.Render("  (Ctrl+R to switch)\n\n"))

	s.WriteString("  Username:\n")
	s.WriteString("  " + m.usernameInput.View() + "\n\n")
	s.WriteString("  Password:\n")
	s.WriteString("  " + m.passwordInput.View() + "\n\n")

	if m.authAction == "register" {
		s.WriteString("  Invite code:\n")
		s.WriteString("  " + m.inviteInput.View() + "\n\n")
	}

	if m.authError != "" {
		s.WriteString(errorStyle.Render("  " + m.authError + "\n\n"))
	}
	if m.authBusy {
		s.WriteString(mutedStyle.Render("  Signing in...\n\n"))
	}

	s.WriteString(helpStyle.Render("  Tab to switch fields • Enter to submit • Ctrl+C to quit\n"))

	return s.String()
}

func (m model) codesIssuedView() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("Welcome to NEVER.WASH"))
	s.WriteString("\n\n")
	s.WriteString("  Your account is ready. These are your two invite codes;\n")
	s.WriteString("  each admits one new user. They are also available later\n")
	s.WriteString("  under 'i' on the contacts screen.\n\n")
	for _, code := range m.issuedCodes {
		s.WriteString(selectedStyle.Render("    " + code + "\n"))
	}
	s.WriteString("\n")
	s.WriteString(helpStyle.Render("  Enter to continue"))

	return s.String()
}

func (m model) contactsView() string {
	var s strings.Builder

	header := fmt.Sprintf("NEVER.WASH %s %s", avatarGlyph(m.self.AvatarID), m.self.Username)
	s.WriteString(titleStyle.Render(header))
	if m.disconnected {
		s.WriteString(errorStyle.Render("  ● offline"))
	}
	s.WriteString("\n\n")

	contacts := m.roster.All()
	if len(contacts) == 0 {
		s.WriteString(mutedStyle.Render("  No conversations yet.\n"))
		s.WriteString(mutedStyle.Render("  Press '/' to find someone to talk to.\n"))
	} else {
		for i, c := range contacts {
			prefix := "  "
			style := lipgloss.NewStyle()
			if i == m.selected {
				prefix = "→ "
				style = selectedStyle
			}

			line := fmt.Sprintf("%s%s %s", prefix, avatarGlyph(c.AvatarID), c.Username)
			s.WriteString(style.Render(line))
			if c.Unread > 0 {
				s.WriteString(" " + badgeStyle.Render(fmt.Sprintf("%d", c.Unread)))
			}
			s.WriteString("\n")
		}
	}

	s.WriteString("\n")
	s.WriteString(helpStyle.Render("  ↑/↓ navigate • Enter to open • / search • a avatar • i invites\n"))
	s.WriteString(helpStyle.Render("  Ctrl+L logout • Ctrl+X delete account • q quit"))

	return s.String()
}

func (m model) searchView() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("Find users"))
	s.WriteString("\n\n")
	s.WriteString("  " + m.searchInput.View() + "\n\n")

	if len(m.searchResults) == 0 {
		if len(strings.TrimSpace(m.searchInput.Value())) >= 3 {
			s.WriteString(mutedStyle.Render("  Nobody found.\n"))
		}
	} else {
		for i, u := range m.searchResults {
			prefix := "  "
			style := lipgloss.NewStyle()
			if i == m.searchSelected {
				prefix = "→ "
				style = selectedStyle
			}
			s.WriteString(style.Render(fmt.Sprintf("%s%s %s\n", prefix, avatarGlyph(u.AvatarID), u.Username)))
		}
	}

	s.WriteString("\n")
	s.WriteString(helpStyle.Render("  ↑/↓ navigate • Enter to open chat • Esc to go back"))

	return s.String()
}

func (m model) chatView() string {
	var s strings.Builder

	active := m.ctrl.Active()
	header := titleStyle.Render(fmt.Sprintf("%s %s", avatarGlyph(m.roster.Avatar(active)), active))
	s.WriteString(header)
	if m.ctrl.State() == chat.ConvLoading {
		s.WriteString(mutedStyle.Render("  loading history..."))
	}
	if m.disconnected {
		s.WriteString(errorStyle.Render("  ● offline"))
	}
	s.WriteString("\n")
	if m.width > 2 {
		s.WriteString(strings.Repeat("─", m.width-2))
	}
	s.WriteString("\n")

	s.WriteString(m.chatViewport.View())
	s.WriteString("\n")
	if m.width > 2 {
		s.WriteString(strings.Repeat("─", m.width-2))
	}
	s.WriteString("\n")
	s.WriteString(m.messageInput.View())
	s.WriteString("\n")
	if m.sendError != "" {
		s.WriteString(errorStyle.Render(m.sendError))
		s.WriteString("\n")
	}
	s.WriteString(helpStyle.Render("Enter to send • Esc to go back"))

	return s.String()
}

func (m model) avatarPickerView() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("Pick an avatar"))
	s.WriteString("\n\n  ")

	for id := 1; id <= 20; id++ {
		glyph := avatarGlyph(id)
		if id == m.avatarCursor {
			s.WriteString(selectedStyle.Render("[" + glyph + "]"))
		} else {
			s.WriteString(" " + glyph + " ")
		}
		if id == 10 {
			s.WriteString("\n  ")
		}
	}

	s.WriteString("\n\n")
	s.WriteString(helpStyle.Render("  ←/→ to choose • Enter to save • Esc to cancel"))

	return s.String()
}

func (m model) invitesView() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("Invites"))
	s.WriteString("\n\n")

	if m.inviteCode1 == "" && m.inviteCode2 == "" {
		s.WriteString(mutedStyle.Render("  Loading...\n"))
	} else {
		s.WriteString("  Your codes:\n")
		s.WriteString(selectedStyle.Render("    " + m.inviteCode1 + "\n"))
		s.WriteString(selectedStyle.Render("    " + m.inviteCode2 + "\n"))
	}

	s.WriteString("\n")
	if m.inviter.Found {
		s.WriteString(fmt.Sprintf("  Invited by: %s %s\n",
			avatarGlyph(m.inviter.InviterAvatarID), m.inviter.InviterName))
	} else {
		s.WriteString(mutedStyle.Render("  No inviter on record.\n"))
	}

	s.WriteString("\n")
	s.WriteString(helpStyle.Render("  Esc to go back"))

	return s.String()
}

func (m model) deleteConfirmView() string {
	var s strings.Builder

	s.WriteString(errorStyle.Render("Delete account"))
	s.WriteString("\n\n")
	s.WriteString("  This permanently removes your account, your message\n")
	s.WriteString("  history and your invites. The code that admitted you\n")
	s.WriteString("  is returned to your inviter.\n\n")
	s.WriteString(errorStyle.Render("  Really delete? (y/n)"))

	return s.String()
}

// --- Main ---

func main() {
	// Optional .env for local development; env vars win.
	godotenv.Load()

	serverURL := os.Getenv("NWCHAT_SERVER")
	if serverURL == "" {
		serverURL = "http://localhost:3567"
	}
	profile := os.Getenv("NWCHAT_PROFILE")
	if profile == "" {
		profile = "default"
	}

	client, err := api.New(serverURL)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	restoring := false
	if sess := session.Load(profile); sess != nil && sess.ServerURL == serverURL && sess.Token != "" {
		client.SetSessionToken(sess.Token)
		restoring = true
	}

	p := tea.NewProgram(initialModel(serverURL, profile, client, restoring), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

package chat

// Contact is a known conversation partner as shown in the sidebar.
type Contact struct {
	Username string
	AvatarID int
	Unread   int
}

// Roster is the in-memory set of known conversation partners. Entries
// keep their insertion order, which is the sidebar order; contacts are
// never removed during a session.
type Roster struct {
	order  []string
	byName map[string]*Contact
}

func NewRoster() *Roster {
	return &Roster{byName: make(map[string]*Contact)}
}

// Upsert inserts the contact if absent. Inserting an existing username
// is a no-op for ordering; a known avatar replaces an unknown one but
// never the other way around.
func (r *Roster) Upsert(username string, avatarID int) {
	if c, ok := r.byName[username]; ok {
		if avatarID != 0 {
			c.AvatarID = avatarID
		}
		return
	}
	r.byName[username] = &Contact{Username: username, AvatarID: avatarID}
	r.order = append(r.order, username)
}

func (r *Roster) Contains(username string) bool {
	_, ok := r.byName[username]
	return ok
}

func (r *Roster) IncrementUnread(username string) {
	if c, ok := r.byName[username]; ok {
		c.Unread++
	}
}

func (r *Roster) ClearUnread(username string) {
	if c, ok := r.byName[username]; ok {
		c.Unread = 0
	}
}

func (r *Roster) Unread(username string) int {
	if c, ok := r.byName[username]; ok {
		return c.Unread
	}
	return 0
}

func (r *Roster) Avatar(username string) int {
	if c, ok := r.byName[username]; ok {
		return c.AvatarID
	}
	return 0
}

// All returns the contacts oldest-known first. The returned slice is a
// copy; mutating it does not affect the roster.
func (r *Roster) All() []Contact {
	out := make([]Contact, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, *r.byName[name])
	}
	return out
}

func (r *Roster) Len() int {
	return len(r.order)
}

package storage

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/neverwash/nwchat/internal/server/models"

	_ "github.com/lib/pq"
)

type Store struct {
	db *sql.DB
}

func New() *Store {
	connStr := os.Getenv("DATABASE_URL")
	if connStr == "" {
		connStr = "postgres://localhost/nwchat?sslmode=disable"
	}

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	if err = db.Ping(); err != nil {
		log.Fatal("Failed to ping database:", err)
	}

	log.Println("Connected to database")
	return &Store{db: db}
}

func (s *Store) Close() {
	s.db.Close()
}

// GenerateInviteCode returns a fresh random invitation code.
func GenerateInviteCode() string {
	buf := make([]byte, 16)
	rand.Read(buf)
	return hex.EncodeToString(buf)
}

// User methods

// CreateUser registers a user with two fresh invite codes and returns
// the new id.
func (s *Store) CreateUser(username, passwordHash, invite1, invite2 string) (int, error) {
	var userID int
	err := s.db.QueryRow(`
		INSERT INTO user_data (name, password_hash, hash_for_invite_first, hash_for_invite_second)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, username, passwordHash, invite1, invite2).Scan(&userID)
	return userID, err
}

func (s *Store) GetUserByName(username string) (*models.User, error) {
	var u models.User
	err := s.db.QueryRow(
		"SELECT id, name, avatar_id, password_hash FROM user_data WHERE name = $1",
		username,
	).Scan(&u.ID, &u.Username, &u.AvatarID, &u.PasswordHash)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) GetUserByID(id int) (*models.User, error) {
	var u models.User
	err := s.db.QueryRow(
		"SELECT id, name, avatar_id FROM user_data WHERE id = $1",
		id,
	).Scan(&u.ID, &u.Username, &u.AvatarID)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) UserExists(username string) bool {
	var id int
	err := s.db.QueryRow("SELECT id FROM user_data WHERE name = $1", username).Scan(&id)
	return err == nil
}

// SearchUsers returns up to 10 users whose name contains the query,
// excluding the searching user.
func (s *Store) SearchUsers(query string, excludeID int) ([]models.Contact, error) {
	rows, err := s.db.Query(`
		SELECT name, avatar_id
		FROM user_data
		WHERE name ILIKE $1 AND id != $2
		LIMIT 10
	`, "%"+query+"%", excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []models.Contact{}
	for rows.Next() {
		var c models.Contact
		if err := rows.Scan(&c.Username, &c.AvatarID); err != nil {
			continue
		}
		users = append(users, c)
	}
	return users, rows.Err()
}

func (s *Store) UpdateAvatar(userID, avatarID int) error {
	_, err := s.db.Exec("UPDATE user_data SET avatar_id = $1 WHERE id = $2", avatarID, userID)
	return err
}

// Invite methods

// CheckInviteCode resolves a code to its owner and which of the two
// slots it matches. Returns an error when the code is unknown or
// already used.
func (s *Store) CheckInviteCode(code string) (inviterID int, slot string, err error) {
	var firstUsed, secondUsed, isFirst bool
	err = s.db.QueryRow(`
		SELECT id, hash_for_invite_first_used, hash_for_invite_second_used,
		       (hash_for_invite_first = $1) AS is_first
		FROM user_data
		WHERE hash_for_invite_first = $1 OR hash_for_invite_second = $1
	`, code).Scan(&inviterID, &firstUsed, &secondUsed, &isFirst)
	if err != nil {
		return 0, "", fmt.Errorf("invalid invite code")
	}
	slot = "second"
	if isFirst {
		slot = "first"
	}
	if (isFirst && firstUsed) || (!isFirst && secondUsed) {
		return 0, "", fmt.Errorf("invite code already used")
	}
	return inviterID, slot, nil
}

// ConsumeInviteCode marks the inviter's slot used and records the
// invite relationship for the new user.
func (s *Store) ConsumeInviteCode(inviterID, inviteeID int, code, slot string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	column := "hash_for_invite_first_used"
	if slot == "second" {
		column = "hash_for_invite_second_used"
	}
	if _, err := tx.Exec(
		fmt.Sprintf("UPDATE user_data SET %s = TRUE WHERE id = $1", column),
		inviterID,
	); err != nil {
		return err
	}

	if _, err := tx.Exec(`
		INSERT INTO user_invites (inviter_id, invitee_id, invite_hash)
		VALUES ($1, $2, $3)
	`, inviterID, inviteeID, code); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) InviteCodes(userID int) (*models.InviteCodes, error) {
	var codes models.InviteCodes
	err := s.db.QueryRow(`
		SELECT hash_for_invite_first, hash_for_invite_second,
		       hash_for_invite_first_used, hash_for_invite_second_used
		FROM user_data
		WHERE id = $1
	`, userID).Scan(&codes.Code1, &codes.Code2, &codes.Code1Used, &codes.Code2Used)
	if err != nil {
		return nil, err
	}
	return &codes, nil
}

// InviterInfo returns who invited the user, when recorded.
func (s *Store) InviterInfo(userID int) (found bool, name string, avatarID int, err error) {
	err = s.db.QueryRow(`
		SELECT ud.name, ud.avatar_id
		FROM user_invites ui
		JOIN user_data ud ON ui.inviter_id = ud.id
		WHERE ui.invitee_id = $1
	`, userID).Scan(&name, &avatarID)
	if err == sql.ErrNoRows {
		return false, "", 0, nil
	}
	if err != nil {
		return false, "", 0, err
	}
	return true, name, avatarID, nil
}

// DeleteAccount removes the user, their messages and invite record.
// The code they registered with is reissued to the inviter.
func (s *Store) DeleteAccount(userID int) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var inviterID sql.NullInt64
	var usedCode sql.NullString
	tx.QueryRow(
		"SELECT inviter_id, invite_hash FROM user_invites WHERE invitee_id = $1",
		userID,
	).Scan(&inviterID, &usedCode)

	if inviterID.Valid && usedCode.Valid {
		// Replace the spent code with a fresh unused one.
		fresh := GenerateInviteCode()
		if _, err := tx.Exec(`
			UPDATE user_data
			SET hash_for_invite_first = CASE WHEN hash_for_invite_first = $2 THEN $3 ELSE hash_for_invite_first END,
			    hash_for_invite_first_used = CASE WHEN hash_for_invite_first = $2 THEN FALSE ELSE hash_for_invite_first_used END,
			    hash_for_invite_second = CASE WHEN hash_for_invite_second = $2 THEN $3 ELSE hash_for_invite_second END,
			    hash_for_invite_second_used = CASE WHEN hash_for_invite_second = $2 THEN FALSE ELSE hash_for_invite_second_used END
			WHERE id = $1
		`, inviterID.Int64, usedCode.String, fresh); err != nil {
			return err
		}
	}

	if _, err := tx.Exec("DELETE FROM messages WHERE sender_id = $1 OR receiver_id = $1", userID); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM user_invites WHERE invitee_id = $1 OR inviter_id = $1", userID); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM user_data WHERE id = $1", userID); err != nil {
		return err
	}

	return tx.Commit()
}

// Message methods

// StoreMessage persists a message between two usernames and returns the
// server-assigned timestamp, which is authoritative on the wire.
func (s *Store) StoreMessage(sender, recipient, text string) (time.Time, error) {
	var ts time.Time
	err := s.db.QueryRow(`
		INSERT INTO messages (sender_id, receiver_id, content, timestamp)
		SELECT su.id, ru.id, $3, NOW()
		FROM user_data su, user_data ru
		WHERE su.name = $1 AND ru.name = $2
		RETURNING timestamp
	`, sender, recipient, text).Scan(&ts)
	if err != nil {
		return time.Time{}, fmt.Errorf("store message %s -> %s: %w", sender, recipient, err)
	}
	return ts, nil
}

// History returns the full pairwise history between the user and the
// named counterpart, oldest first.
func (s *Store) History(userID int, otherUsername string) ([]models.Message, error) {
	var otherID int
	err := s.db.QueryRow("SELECT id FROM user_data WHERE name = $1", otherUsername).Scan(&otherID)
	if err == sql.ErrNoRows {
		return []models.Message{}, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`
		SELECT su.name, ru.name, m.content, m.timestamp
		FROM messages m
		JOIN user_data su ON m.sender_id = su.id
		JOIN user_data ru ON m.receiver_id = ru.id
		WHERE (m.sender_id = $1 AND m.receiver_id = $2)
		   OR (m.sender_id = $2 AND m.receiver_id = $1)
		ORDER BY m.timestamp ASC
	`, userID, otherID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs := []models.Message{}
	for rows.Next() {
		var m models.Message
		var ts time.Time
		if err := rows.Scan(&m.From, &m.To, &m.Text, &ts); err != nil {
			continue
		}
		m.Timestamp = ts.UTC().Format(time.RFC3339Nano)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// Contacts returns every user the given user has exchanged messages
// with, most recent conversation first.
func (s *Store) Contacts(userID int) ([]models.Contact, error) {
	rows, err := s.db.Query(`
		SELECT ud.name, ud.avatar_id, MAX(m.timestamp) AS last_message
		FROM messages m
		JOIN user_data ud ON ud.id = CASE WHEN m.sender_id = $1 THEN m.receiver_id ELSE m.sender_id END
		WHERE m.sender_id = $1 OR m.receiver_id = $1
		GROUP BY ud.name, ud.avatar_id
		ORDER BY last_message DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contacts := []models.Contact{}
	for rows.Next() {
		var c models.Contact
		var last time.Time
		if err := rows.Scan(&c.Username, &c.AvatarID, &last); err != nil {
			continue
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/christopherklint97/worktracker/internal/model"
)

// User is a chat user the bot has seen, with their reminder settings.
type User struct {
	model.User
	ReminderHour   int
	ReminderMinute int
	Welcomed       bool
	FirstSeen      time.Time
}

const userColumns = `id, username, first_name, last_name, reminder_hour, reminder_minute, welcomed, first_seen`

func (db *DB) GetUser(id int64) (*User, error) {
	users, err := db.queryUsers(`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}
	return &users[0], nil
}

// UpsertUser records u, refreshing the stored names. A new user gets the
// given default reminder time. The second result reports whether the user
// was new.
func (db *DB) UpsertUser(u model.User, hour, minute int) (*User, bool, error) {
	res, err := db.Exec(
		`INSERT INTO users (id, username, first_name, last_name, reminder_hour, reminder_minute, first_seen)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		u.ID, u.Username, u.FirstName, u.LastName, hour, minute,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, false, fmt.Errorf("inserting user: %w", err)
	}
	n, _ := res.RowsAffected()
	created := n > 0

	if !created {
		if _, err := db.Exec(
			"UPDATE users SET username = ?, first_name = ?, last_name = ? WHERE id = ?",
			u.Username, u.FirstName, u.LastName, u.ID,
		); err != nil {
			return nil, false, fmt.Errorf("updating user: %w", err)
		}
	}

	stored, err := db.GetUser(u.ID)
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}

func (db *DB) MarkWelcomed(id int64) error {
	_, err := db.Exec("UPDATE users SET welcomed = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("marking user welcomed: %w", err)
	}
	return nil
}

func (db *DB) SetReminder(id int64, hour, minute int) error {
	res, err := db.Exec(
		"UPDATE users SET reminder_hour = ?, reminder_minute = ? WHERE id = ?",
		hour, minute, id,
	)
	if err != nil {
		return fmt.Errorf("updating reminder: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("updating reminder: user %d not found", id)
	}
	return nil
}

// ListUsers returns every known user ordered by first contact.
func (db *DB) ListUsers() ([]User, error) {
	return db.queryUsers(`SELECT ` + userColumns + ` FROM users ORDER BY first_seen ASC, id ASC`)
}

func (db *DB) queryUsers(query string, args ...any) ([]User, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		var welcomed int
		var firstSeen sql.NullString

		if err := rows.Scan(
			&u.ID, &u.Username, &u.FirstName, &u.LastName,
			&u.ReminderHour, &u.ReminderMinute, &welcomed, &firstSeen,
		); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}

		u.Welcomed = welcomed != 0
		if t, err := time.Parse(time.RFC3339, firstSeen.String); err == nil {
			u.FirstSeen = t
		}

		users = append(users, u)
	}

	return users, rows.Err()
}

package model

import (
	"strconv"
	"strings"
	"time"
)

// DateLayout is how entry dates are written to and read from the workbook.
const DateLayout = "02.01.2006"

// User identifies the chat user an entry belongs to.
type User struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}

// DisplayName is the last name, falling back to the first name.
func (u User) DisplayName() string {
	if name := strings.TrimSpace(u.LastName); name != "" {
		return name
	}
	return strings.TrimSpace(u.FirstName)
}

// Fallback is the stable name used when no display name is usable.
func (u User) Fallback() string {
	return "user_" + strconv.FormatInt(u.ID, 10)
}

// Entry is one committed day of work.
type Entry struct {
	Date        time.Time
	TimeRange   string
	HadLunch    bool
	Description string
	Hours       float64
}

// DateString formats the entry date with DateLayout.
func (e Entry) DateString() string {
	return e.Date.Format(DateLayout)
}

// StartOfDay returns 00:00:00 of the same day in t's location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// SameDay reports whether two times fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

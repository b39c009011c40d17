package store

import (
	"path/filepath"
	"testing"

	"github.com/christopherklint97/worktracker/internal/model"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "state", "worktracker.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestUpsertUser(t *testing.T) {
	db := openTestDB(t)
	u := model.User{ID: 100, Username: "ivan", FirstName: "Ivan", LastName: "Petrov"}

	stored, created, err := db.UpsertUser(u, 18, 0)
	if err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	if !created {
		t.Error("first upsert should create")
	}
	if stored.ReminderHour != 18 || stored.ReminderMinute != 0 || stored.Welcomed {
		t.Errorf("stored = %+v", stored)
	}
	if stored.FirstSeen.IsZero() {
		t.Error("first_seen not recorded")
	}

	if err := db.SetReminder(u.ID, 9, 45); err != nil {
		t.Fatal(err)
	}

	u.LastName = "Petrov-Vodkin"
	stored, created, err = db.UpsertUser(u, 18, 0)
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Error("second upsert should not create")
	}
	if stored.LastName != "Petrov-Vodkin" {
		t.Errorf("last name = %q, want refreshed", stored.LastName)
	}
	if stored.ReminderHour != 9 || stored.ReminderMinute != 45 {
		t.Errorf("reminder = %02d:%02d, want 09:45 kept", stored.ReminderHour, stored.ReminderMinute)
	}
}

func TestMarkWelcomed(t *testing.T) {
	db := openTestDB(t)
	db.UpsertUser(model.User{ID: 1}, 18, 0)

	if err := db.MarkWelcomed(1); err != nil {
		t.Fatal(err)
	}
	u, err := db.GetUser(1)
	if err != nil {
		t.Fatal(err)
	}
	if !u.Welcomed {
		t.Error("user should be welcomed")
	}
}

func TestGetUserMissing(t *testing.T) {
	db := openTestDB(t)
	u, err := db.GetUser(404)
	if err != nil || u != nil {
		t.Errorf("GetUser = %+v, %v; want nil, nil", u, err)
	}
	if err := db.SetReminder(404, 10, 0); err == nil {
		t.Error("SetReminder on unknown user should fail")
	}
}

func TestListUsers(t *testing.T) {
	db := openTestDB(t)
	for _, id := range []int64{3, 1, 2} {
		if _, _, err := db.UpsertUser(model.User{ID: id}, 18, 0); err != nil {
			t.Fatal(err)
		}
	}
	users, err := db.ListUsers()
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 3 {
		t.Fatalf("users = %d, want 3", len(users))
	}
}

func TestState(t *testing.T) {
	db := openTestDB(t)

	v, err := db.GetState(StateLastBackup)
	if err != nil || v != "" {
		t.Errorf("GetState before set = %q, %v", v, err)
	}
	if err := db.SetState(StateLastBackup, "2026-03-02T18:00:00Z"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetState(StateLastBackup, "2026-03-03T18:00:00Z"); err != nil {
		t.Fatal(err)
	}
	v, _ = db.GetState(StateLastBackup)
	if v != "2026-03-03T18:00:00Z" {
		t.Errorf("GetState = %q", v)
	}
}

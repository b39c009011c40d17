package calendar

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testICS = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//worktracker//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:review@test\r\n" +
	"DTSTAMP:20260301T000000Z\r\n" +
	"DTSTART:20260302T120000Z\r\n" +
	"DTEND:20260302T130000Z\r\n" +
	"SUMMARY:Sprint review\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:standup@test\r\n" +
	"DTSTAMP:20260301T000000Z\r\n" +
	"DTSTART:20260223T070000Z\r\n" +
	"DTEND:20260223T071500Z\r\n" +
	"RRULE:FREQ=WEEKLY;BYDAY=MO,WE\r\n" +
	"SUMMARY:Standup\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:other@test\r\n" +
	"DTSTAMP:20260301T000000Z\r\n" +
	"DTSTART:20260303T090000Z\r\n" +
	"DTEND:20260303T100000Z\r\n" +
	"SUMMARY:Tomorrow only\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func writeICS(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cal.ics")
	if err := os.WriteFile(path, []byte(testICS), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFetchExpandsRecurrence(t *testing.T) {
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	events, err := Fetch(context.Background(), writeICS(t), start, start.AddDate(0, 0, 1), time.UTC)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if len(events) != 2 {
		t.Fatalf("events = %+v, want standup and review", events)
	}
	if events[0].Summary != "Standup" || !events[0].StartTime.Equal(time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC)) {
		t.Errorf("first event = %+v", events[0])
	}
	if events[0].EndTime.Sub(events[0].StartTime) != 15*time.Minute {
		t.Errorf("occurrence duration = %v", events[0].EndTime.Sub(events[0].StartTime))
	}
	if events[1].Summary != "Sprint review" {
		t.Errorf("second event = %+v", events[1])
	}
}

func TestFetchSkipsDaysWithoutOccurrence(t *testing.T) {
	tuesday := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	events, err := Fetch(context.Background(), writeICS(t), tuesday, tuesday.AddDate(0, 0, 1), time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Summary != "Tomorrow only" {
		t.Errorf("events = %+v", events)
	}
}

func TestFetchFromURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/calendar")
		w.Write([]byte(testICS))
	}))
	defer srv.Close()

	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	events, err := Fetch(context.Background(), srv.URL, start, start.AddDate(0, 0, 1), time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Errorf("events = %d, want 2", len(events))
	}
}

func TestFetchErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	now := time.Now()
	if _, err := Fetch(context.Background(), srv.URL, now, now, time.UTC); err == nil {
		t.Error("404 should fail")
	}
	if _, err := Fetch(context.Background(), filepath.Join(t.TempDir(), "none.ics"), now, now, time.UTC); err == nil {
		t.Error("missing file should fail")
	}
}

func TestHints(t *testing.T) {
	moscow, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		t.Skip("no tzdata")
	}
	h := Hints{Source: writeICS(t), Location: moscow}

	hints, err := h.Hints(context.Background(), time.Date(2026, 3, 2, 15, 0, 0, 0, moscow))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"10:00-10:15 Standup", "15:00-16:00 Sprint review"}
	if len(hints) != len(want) {
		t.Fatalf("hints = %v, want %v", hints, want)
	}
	for i := range want {
		if hints[i] != want[i] {
			t.Errorf("hints[%d] = %q, want %q", i, hints[i], want[i])
		}
	}
}

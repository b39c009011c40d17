package report

import (
	"testing"
	"time"
)

func TestMemorySessionsExpiry(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	m := NewMemorySessions(10 * time.Minute)
	m.now = func() time.Time { return now }

	m.Put(Session{UserID: 1, State: AwaitingLunch})
	m.Put(Session{UserID: 2, State: AwaitingTimeRange})

	now = now.Add(5 * time.Minute)
	m.Put(Session{UserID: 2, State: AwaitingLunch})

	now = now.Add(6 * time.Minute)
	if _, ok := m.Get(1); ok {
		t.Error("session 1 should have expired")
	}
	if s, ok := m.Get(2); !ok || s.State != AwaitingLunch {
		t.Errorf("session 2 = %+v, %v; want live AwaitingLunch", s, ok)
	}

	now = now.Add(time.Hour)
	if n := m.Sweep(); n != 1 {
		t.Errorf("Sweep removed %d, want 1", n)
	}
	if m.Len() != 0 {
		t.Errorf("Len = %d after sweep", m.Len())
	}
}

func TestMemorySessionsNoTTL(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	m := NewMemorySessions(0)
	m.now = func() time.Time { return now }
	m.Put(Session{UserID: 1, State: AwaitingDescription, TimeRange: "9-18", LunchSet: true})

	now = now.Add(30 * 24 * time.Hour)
	if n := m.Sweep(); n != 0 {
		t.Errorf("Sweep removed %d with TTL disabled", n)
	}
	if _, ok := m.Get(1); !ok {
		t.Error("session should never expire without TTL")
	}
}

func TestParseLunchAnswer(t *testing.T) {
	tests := []struct {
		in      string
		want    bool
		wantErr bool
	}{
		{"да", true, false},
		{" ДА ", true, false},
		{"Д", true, false},
		{"yes", true, false},
		{"нет", false, false},
		{"Нет", false, false},
		{"N", false, false},
		{"может быть", false, true},
		{"", false, true},
	}
	for _, tt := range tests {
		got, err := parseLunchAnswer(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseLunchAnswer(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseLunchAnswer(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

package report_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/christopherklint97/worktracker/internal/model"
	"github.com/christopherklint97/worktracker/internal/report"
)

type fakeLedger struct {
	entries   map[int64][]model.Entry
	appendErr error
	findErr   error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{entries: make(map[int64][]model.Entry)}
}

func (l *fakeLedger) FindByDate(u model.User, day time.Time) (*model.Entry, error) {
	if l.findErr != nil {
		return nil, l.findErr
	}
	for _, e := range l.entries[u.ID] {
		if model.SameDay(e.Date, day) {
			e := e
			return &e, nil
		}
	}
	return nil, nil
}

func (l *fakeLedger) Append(u model.User, e model.Entry) error {
	if l.appendErr != nil {
		return l.appendErr
	}
	l.entries[u.ID] = append(l.entries[u.ID], e)
	return nil
}

func (l *fakeLedger) Upsert(u model.User, e model.Entry) (bool, error) {
	for i, old := range l.entries[u.ID] {
		if model.SameDay(old.Date, e.Date) {
			l.entries[u.ID][i] = e
			return true, nil
		}
	}
	l.entries[u.ID] = append(l.entries[u.ID], e)
	return false, nil
}

func (l *fakeLedger) RowCount(u model.User) (int, error) {
	return len(l.entries[u.ID]), nil
}

var (
	alice = model.User{ID: 1, FirstName: "Alice", LastName: "Ivanova"}
	fixed = time.Date(2026, 3, 2, 19, 0, 0, 0, time.UTC)
)

func newDialogue(ledger report.Ledger, policy report.Policy, mirror report.Mirror) *report.Dialogue {
	return report.New(report.NewMemorySessions(0), ledger, report.Options{
		Policy:   policy,
		Location: time.UTC,
		Now:      func() time.Time { return fixed },
		Mirror:   mirror,
	})
}

func mustHandle(t *testing.T, d *report.Dialogue, text string) report.Reply {
	t.Helper()
	reply, ok := d.Handle(context.Background(), alice, text)
	if !ok {
		t.Fatalf("Handle(%q): no active session", text)
	}
	return reply
}

func runFullReport(t *testing.T, d *report.Dialogue, rng, lunch, desc string) report.Reply {
	t.Helper()
	d.Start(context.Background(), alice)
	mustHandle(t, d, rng)
	mustHandle(t, d, lunch)
	return mustHandle(t, d, desc)
}

func TestDialogueCompletes(t *testing.T) {
	tests := []struct {
		lunch     string
		wantLunch bool
		wantHours float64
	}{
		{"да", true, 8.5},
		{"Нет", false, 9},
		{"Y", true, 8.5},
		{"n", false, 9},
	}
	for _, tt := range tests {
		t.Run(tt.lunch, func(t *testing.T) {
			ledger := newFakeLedger()
			d := newDialogue(ledger, report.PolicyReject, nil)

			if r := d.Start(context.Background(), alice); r.Keyboard != report.KeyboardRemove {
				t.Errorf("start keyboard = %v, want KeyboardRemove", r.Keyboard)
			}
			if got := d.State(alice.ID); got != report.AwaitingTimeRange {
				t.Fatalf("state after start = %v", got)
			}

			r := mustHandle(t, d, "9:00-18:00")
			if !strings.Contains(r.Text, "9.00") {
				t.Errorf("preview reply %q does not show 9.00 hours", r.Text)
			}
			if got := d.State(alice.ID); got != report.AwaitingLunch {
				t.Fatalf("state after range = %v", got)
			}

			mustHandle(t, d, tt.lunch)
			if got := d.State(alice.ID); got != report.AwaitingDescription {
				t.Fatalf("state after lunch = %v", got)
			}

			r = mustHandle(t, d, "Fixed bugs")
			if !strings.Contains(r.Text, "Запись сохранена") {
				t.Errorf("commit reply = %q", r.Text)
			}
			if got := d.State(alice.ID); got != report.Idle {
				t.Errorf("state after commit = %v, want Idle", got)
			}

			entries := ledger.entries[alice.ID]
			if len(entries) != 1 {
				t.Fatalf("entries = %d, want 1", len(entries))
			}
			e := entries[0]
			if e.HadLunch != tt.wantLunch || e.Hours != tt.wantHours {
				t.Errorf("entry lunch=%v hours=%v, want %v %v", e.HadLunch, e.Hours, tt.wantLunch, tt.wantHours)
			}
			if e.TimeRange != "9:00-18:00" || e.Description != "Fixed bugs" {
				t.Errorf("entry = %+v", e)
			}
			if e.DateString() != "02.03.2026" {
				t.Errorf("entry date = %s", e.DateString())
			}
		})
	}
}

func TestDialogueLunchRejectionKeepsState(t *testing.T) {
	ledger := newFakeLedger()
	d := newDialogue(ledger, report.PolicyReject, nil)
	d.Start(context.Background(), alice)
	mustHandle(t, d, "10-19")

	for _, answer := range []string{"maybe", "", "дааа", "1"} {
		r := mustHandle(t, d, answer)
		if r.Keyboard != report.KeyboardYesNo {
			t.Errorf("reprompt keyboard for %q = %v", answer, r.Keyboard)
		}
		if got := d.State(alice.ID); got != report.AwaitingLunch {
			t.Fatalf("state after %q = %v, want AwaitingLunch", answer, got)
		}
	}

	mustHandle(t, d, "нет")
	mustHandle(t, d, "work")
	if got := ledger.entries[alice.ID][0].TimeRange; got != "10-19" {
		t.Errorf("stored time range = %q, want %q", got, "10-19")
	}
}

func TestDialogueRejectPolicy(t *testing.T) {
	ledger := newFakeLedger()
	d := newDialogue(ledger, report.PolicyReject, nil)
	runFullReport(t, d, "9-18", "да", "first")

	r := d.Start(context.Background(), alice)
	if !strings.Contains(r.Text, "уже есть") {
		t.Errorf("second start reply = %q, want duplicate rejection", r.Text)
	}
	if d.Active(alice.ID) {
		t.Error("second start should leave the user idle")
	}

	entries := ledger.entries[alice.ID]
	if len(entries) != 1 || entries[0].Description != "first" {
		t.Errorf("entries after rejection = %+v", entries)
	}
}

func TestDialogueRejectAtCommit(t *testing.T) {
	ledger := newFakeLedger()
	d := newDialogue(ledger, report.PolicyReject, nil)

	d.Start(context.Background(), alice)
	mustHandle(t, d, "9-18")
	mustHandle(t, d, "нет")
	// Another path records today's entry while the dialogue is open.
	ledger.entries[alice.ID] = []model.Entry{{Date: fixed, Description: "other"}}

	r := mustHandle(t, d, "second")
	if !strings.Contains(r.Text, "уже есть") {
		t.Errorf("commit reply = %q, want duplicate rejection", r.Text)
	}
	if len(ledger.entries[alice.ID]) != 1 || ledger.entries[alice.ID][0].Description != "other" {
		t.Errorf("entries = %+v", ledger.entries[alice.ID])
	}
	if d.Active(alice.ID) {
		t.Error("session should be discarded after a rejected commit")
	}
}

func TestDialogueOverwritePolicy(t *testing.T) {
	ledger := newFakeLedger()
	d := newDialogue(ledger, report.PolicyOverwrite, nil)
	runFullReport(t, d, "9-18", "да", "first")
	runFullReport(t, d, "10-12", "нет", "second")

	entries := ledger.entries[alice.ID]
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].Description != "second" || entries[0].Hours != 2 {
		t.Errorf("entry = %+v, want overwritten with second", entries[0])
	}
}

func TestDialogueCancelClearsSession(t *testing.T) {
	for _, steps := range [][]string{{}, {"9-18"}, {"9-18", "да"}} {
		ledger := newFakeLedger()
		d := newDialogue(ledger, report.PolicyReject, nil)
		d.Start(context.Background(), alice)
		for _, s := range steps {
			mustHandle(t, d, s)
		}

		d.Cancel(alice)
		if d.Active(alice.ID) {
			t.Fatalf("after %d steps: still active after cancel", len(steps))
		}
		if _, ok := d.Handle(context.Background(), alice, "10-11"); ok {
			t.Fatalf("after %d steps: Handle accepted text after cancel", len(steps))
		}

		d.Start(context.Background(), alice)
		if got := d.State(alice.ID); got != report.AwaitingTimeRange {
			t.Fatalf("after %d steps: restart state = %v", len(steps), got)
		}
		mustHandle(t, d, "10-11")
		mustHandle(t, d, "нет")
		mustHandle(t, d, "fresh")
		e := ledger.entries[alice.ID][0]
		if e.TimeRange != "10-11" || e.HadLunch {
			t.Errorf("after %d steps: leaked values into %+v", len(steps), e)
		}
	}
}

func TestDialogueStartWhileActiveRepeatsPrompt(t *testing.T) {
	d := newDialogue(newFakeLedger(), report.PolicyReject, nil)
	d.Start(context.Background(), alice)
	mustHandle(t, d, "9-18")

	r := d.Start(context.Background(), alice)
	if r.Keyboard != report.KeyboardYesNo {
		t.Errorf("repeated prompt keyboard = %v, want YesNo", r.Keyboard)
	}
	if got := d.State(alice.ID); got != report.AwaitingLunch {
		t.Errorf("state = %v, want AwaitingLunch", got)
	}
}

func TestDialogueStorageFailure(t *testing.T) {
	ledger := newFakeLedger()
	ledger.appendErr = errors.New("disk full")
	d := newDialogue(ledger, report.PolicyReject, nil)

	r := runFullReport(t, d, "9-18", "да", "work")
	if !strings.Contains(r.Text, "ошибка") {
		t.Errorf("reply = %q, want storage failure", r.Text)
	}
	if d.Active(alice.ID) {
		t.Error("session should be discarded after storage failure")
	}
}

func TestDialogueMirrorFailureIsNotSurfaced(t *testing.T) {
	ledger := newFakeLedger()
	calls := 0
	mirror := report.MirrorFunc(func(ctx context.Context) error {
		calls++
		return errors.New("upload refused")
	})
	d := newDialogue(ledger, report.PolicyReject, mirror)

	r := runFullReport(t, d, "9-18", "да", "work")
	if !strings.Contains(r.Text, "Запись сохранена") {
		t.Errorf("reply = %q, want success", r.Text)
	}
	if calls != 1 {
		t.Errorf("mirror calls = %d, want 1", calls)
	}
	if len(ledger.entries[alice.ID]) != 1 {
		t.Error("entry should stay committed")
	}
}

func TestDialogueHandleWithoutSession(t *testing.T) {
	d := newDialogue(newFakeLedger(), report.PolicyReject, nil)
	if _, ok := d.Handle(context.Background(), alice, "9-18"); ok {
		t.Error("Handle without session should report ok=false")
	}
}

type lossyStore struct {
	*report.MemorySessions
}

// Put drops collected fields to simulate lost session data.
func (s lossyStore) Put(sess report.Session) {
	sess.TimeRange = ""
	s.MemorySessions.Put(sess)
}

func TestDialogueAbortsOnLostFields(t *testing.T) {
	ledger := newFakeLedger()
	d := report.New(lossyStore{report.NewMemorySessions(0)}, ledger, report.Options{
		Location: time.UTC,
		Now:      func() time.Time { return fixed },
	})
	d.Start(context.Background(), alice)
	mustHandle(t, d, "9-18")

	r := mustHandle(t, d, "да")
	if !strings.Contains(r.Text, "начнем заново") {
		t.Errorf("reply = %q, want abort message", r.Text)
	}
	if d.Active(alice.ID) {
		t.Error("session should be gone after abort")
	}
	if len(ledger.entries[alice.ID]) != 0 {
		t.Error("nothing should be committed")
	}
}

type staticHints []string

func (h staticHints) Hints(ctx context.Context, day time.Time) ([]string, error) {
	return h, nil
}

func TestDialogueDescriptionHints(t *testing.T) {
	d := report.New(report.NewMemorySessions(0), newFakeLedger(), report.Options{
		Location: time.UTC,
		Now:      func() time.Time { return fixed },
		Hints:    staticHints{"Standup", "Sprint review"},
	})
	d.Start(context.Background(), alice)
	mustHandle(t, d, "9-18")
	r := mustHandle(t, d, "да")
	if !strings.Contains(r.Text, "Standup") || !strings.Contains(r.Text, "Sprint review") {
		t.Errorf("description prompt = %q, want calendar hints", r.Text)
	}
}

func TestDialogueStoresTimeRangeVerbatim(t *testing.T) {
	ledger := newFakeLedger()
	d := newDialogue(ledger, report.PolicyReject, nil)

	runFullReport(t, d, "  с 10 до 19 \n", "нет", "work")

	e := ledger.entries[alice.ID][0]
	if e.TimeRange != "  с 10 до 19 \n" {
		t.Errorf("stored time range = %q, want input as typed", e.TimeRange)
	}
	if e.Hours != 9 {
		t.Errorf("hours = %v, want 9", e.Hours)
	}
}

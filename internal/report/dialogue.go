// Package report runs the multi-turn dialogue that collects a day's work
// report: time range, lunch confirmation and description.
package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/christopherklint97/worktracker/internal/hours"
	"github.com/christopherklint97/worktracker/internal/model"
)

// Policy decides what happens to a second report on the same day.
type Policy string

const (
	PolicyReject    Policy = "reject"
	PolicyOverwrite Policy = "overwrite"
)

// Ledger is the per-user table committed entries go to.
type Ledger interface {
	FindByDate(user model.User, day time.Time) (*model.Entry, error)
	Append(user model.User, e model.Entry) error
	Upsert(user model.User, e model.Entry) (bool, error)
	RowCount(user model.User) (int, error)
}

// Mirror copies committed data to a backup location.
type Mirror interface {
	Mirror(ctx context.Context) error
}

// MirrorFunc adapts a function to Mirror.
type MirrorFunc func(ctx context.Context) error

func (f MirrorFunc) Mirror(ctx context.Context) error { return f(ctx) }

// HintSource suggests description lines for a day.
type HintSource interface {
	Hints(ctx context.Context, day time.Time) ([]string, error)
}

type Options struct {
	Policy     Policy
	Calculator hours.Calculator
	Location   *time.Location
	Now        func() time.Time
	Mirror     Mirror
	Hints      HintSource
	Logger     *slog.Logger
}

type Dialogue struct {
	sessions SessionStore
	ledger   Ledger
	policy   Policy
	calc     hours.Calculator
	loc      *time.Location
	now      func() time.Time
	mirror   Mirror
	hints    HintSource
	logger   *slog.Logger
}

func New(sessions SessionStore, ledger Ledger, opts Options) *Dialogue {
	if opts.Policy == "" {
		opts.Policy = PolicyReject
	}
	if opts.Calculator.Lunch <= 0 {
		opts.Calculator = hours.New(hours.DefaultLunch)
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Dialogue{
		sessions: sessions,
		ledger:   ledger,
		policy:   opts.Policy,
		calc:     opts.Calculator,
		loc:      opts.Location,
		now:      opts.Now,
		mirror:   opts.Mirror,
		hints:    opts.Hints,
		logger:   opts.Logger,
	}
}

// State returns the user's current dialogue state.
func (d *Dialogue) State(userID int64) State {
	s, ok := d.sessions.Get(userID)
	if !ok {
		return Idle
	}
	return s.State
}

// Active reports whether the user is mid-dialogue.
func (d *Dialogue) Active(userID int64) bool {
	return d.State(userID) != Idle
}

func (d *Dialogue) today() time.Time {
	return model.StartOfDay(d.now().In(d.loc))
}

// Start begins a report. An active session is not restarted; its current
// prompt is repeated instead.
func (d *Dialogue) Start(ctx context.Context, user model.User) Reply {
	if s, ok := d.sessions.Get(user.ID); ok && s.State != Idle {
		d.logger.Debug("report already in progress", "user", user.ID, "session", s.ID, "state", s.State)
		return d.currentPrompt(ctx, s)
	}

	today := d.today()
	if d.policy == PolicyReject {
		existing, err := d.ledger.FindByDate(user, today)
		if err != nil {
			d.logger.Warn("duplicate check failed", "user", user.ID, "error", err)
		} else if existing != nil {
			d.logger.Info("report rejected, entry exists", "user", user.ID, "date", today.Format(model.DateLayout))
			return duplicateToday(today.Format(model.DateLayout))
		}
	}

	s := Session{ID: uuid.NewString(), UserID: user.ID, State: AwaitingTimeRange}
	d.sessions.Put(s)
	d.logger.Debug("report started", "user", user.ID, "session", s.ID)
	return promptTimeRange()
}

// Handle feeds one line of user text into the active session. The second
// result is false when the user has no active session.
func (d *Dialogue) Handle(ctx context.Context, user model.User, text string) (Reply, bool) {
	s, ok := d.sessions.Get(user.ID)
	if !ok || s.State == Idle {
		return Reply{}, false
	}

	switch s.State {
	case AwaitingTimeRange:
		return d.receiveTimeRange(s, text), true
	case AwaitingLunch:
		return d.receiveLunch(ctx, s, text), true
	case AwaitingDescription:
		return d.receiveDescription(ctx, user, s, text), true
	}

	d.sessions.Delete(user.ID)
	return sessionLost(), true
}

// Cancel discards the user's session.
func (d *Dialogue) Cancel(user model.User) Reply {
	if s, ok := d.sessions.Get(user.ID); ok {
		d.logger.Debug("report cancelled", "user", user.ID, "session", s.ID, "state", s.State)
	}
	d.sessions.Delete(user.ID)
	return cancelled()
}

// receiveTimeRange stores text as typed; only the preview sees it trimmed.
func (d *Dialogue) receiveTimeRange(s Session, text string) Reply {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return repromptTimeRange()
	}

	res := d.calc.Parse(trimmed, false)
	if !res.OK() {
		d.logger.Debug("time range warnings", "session", s.ID, "warnings", res.Warnings)
	}

	s.TimeRange = text
	s.State = AwaitingLunch
	d.sessions.Put(s)
	return promptLunch(res)
}

func (d *Dialogue) receiveLunch(ctx context.Context, s Session, text string) Reply {
	if s.TimeRange == "" {
		return d.abort(s, "time range missing")
	}

	hadLunch, err := parseLunchAnswer(text)
	if err != nil {
		var inputErr *UserInputError
		if errors.As(err, &inputErr) {
			inputErr.State = s.State
			d.logger.Debug("unrecognized lunch answer", "session", s.ID, "error", inputErr)
		}
		return repromptLunch()
	}

	s.HadLunch = hadLunch
	s.LunchSet = true
	s.State = AwaitingDescription
	d.sessions.Put(s)
	return promptDescription(d.dayHints(ctx))
}

func (d *Dialogue) receiveDescription(ctx context.Context, user model.User, s Session, text string) Reply {
	if s.TimeRange == "" || !s.LunchSet {
		return d.abort(s, "fields missing before description")
	}
	description := strings.TrimSpace(text)
	if description == "" {
		return promptDescription(nil)
	}

	// Session data is discarded whatever the commit outcome.
	d.sessions.Delete(user.ID)

	entry := model.Entry{
		Date:        d.today(),
		TimeRange:   s.TimeRange,
		HadLunch:    s.HadLunch,
		Description: description,
		Hours:       d.calc.Parse(s.TimeRange, s.HadLunch).Hours,
	}

	if err := d.commit(user, entry); err != nil {
		if errors.Is(err, ErrDuplicateEntry) {
			d.logger.Info("report rejected at commit, entry exists", "user", user.ID, "session", s.ID)
			return duplicateToday(entry.DateString())
		}
		d.logger.Error("saving report failed", "user", user.ID, "session", s.ID, "error", err)
		return storageFailed()
	}

	d.logger.Info("report saved", "user", user.ID, "session", s.ID, "date", entry.DateString(), "hours", entry.Hours)

	total, err := d.ledger.RowCount(user)
	if err != nil {
		d.logger.Warn("counting entries failed", "user", user.ID, "error", err)
	}

	if d.mirror != nil {
		if err := d.mirror.Mirror(ctx); err != nil {
			d.logger.Warn("backup upload failed", "user", user.ID, "error", err)
		}
	}

	return committed(entry, total)
}

func (d *Dialogue) commit(user model.User, entry model.Entry) error {
	if d.policy == PolicyOverwrite {
		replaced, err := d.ledger.Upsert(user, entry)
		if err != nil {
			return &StorageFault{Op: "upsert", Err: err}
		}
		if replaced {
			d.logger.Info("same-day entry overwritten", "user", user.ID, "date", entry.DateString())
		}
		return nil
	}

	existing, err := d.ledger.FindByDate(user, entry.Date)
	if err != nil {
		return &StorageFault{Op: "find", Err: err}
	}
	if existing != nil {
		return ErrDuplicateEntry
	}
	if err := d.ledger.Append(user, entry); err != nil {
		return &StorageFault{Op: "append", Err: err}
	}
	return nil
}

func (d *Dialogue) abort(s Session, reason string) Reply {
	d.logger.Error("report session aborted", "user", s.UserID, "session", s.ID, "state", s.State, "reason", reason)
	d.sessions.Delete(s.UserID)
	return sessionLost()
}

func (d *Dialogue) currentPrompt(ctx context.Context, s Session) Reply {
	switch s.State {
	case AwaitingTimeRange:
		return promptTimeRange()
	case AwaitingLunch:
		return promptLunch(d.calc.Parse(s.TimeRange, false))
	case AwaitingDescription:
		return promptDescription(d.dayHints(ctx))
	}
	return promptTimeRange()
}

func (d *Dialogue) dayHints(ctx context.Context) []string {
	if d.hints == nil {
		return nil
	}
	hints, err := d.hints.Hints(ctx, d.today())
	if err != nil {
		d.logger.Warn("fetching description hints failed", "error", err)
		return nil
	}
	return hints
}

var (
	yesAnswers = map[string]bool{"да": true, "д": true, "yes": true, "y": true}
	noAnswers  = map[string]bool{"нет": true, "н": true, "no": true, "n": true}
)

func parseLunchAnswer(text string) (bool, error) {
	answer := strings.ToLower(strings.TrimSpace(text))
	switch {
	case yesAnswers[answer]:
		return true, nil
	case noAnswers[answer]:
		return false, nil
	}
	return false, &UserInputError{Input: text}
}

// FormatHours renders hours the way reports show them.
func FormatHours(h float64) string {
	return fmt.Sprintf("%.2f", h)
}

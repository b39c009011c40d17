package scheduler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Notifier delivers a reminder to a user.
type Notifier interface {
	Notify(ctx context.Context, userID int64, text string) error
}

// EntryChecker reports whether the user already logged work for day.
type EntryChecker interface {
	HasEntry(userID int64, day time.Time) (bool, error)
}

type job struct {
	id     cron.EntryID
	hour   int
	minute int
}

// Scheduler fires one daily reminder per user at the user's wall-clock time
// in a single configured location.
type Scheduler struct {
	cron     *cron.Cron
	loc      *time.Location
	notifier Notifier
	checker  EntryChecker
	logger   *slog.Logger
	now      func() time.Time

	skipWeekends bool

	mu   sync.Mutex
	jobs map[int64]job
}

func New(loc *time.Location, notifier Notifier, checker EntryChecker, logger *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cronLogger{logger})),
	)
	return &Scheduler{
		cron:     c,
		loc:      loc,
		notifier: notifier,
		checker:  checker,
		logger:   logger,
		now:      time.Now,
		jobs:     make(map[int64]job),
	}
}

// Bind sets where reminders go, for a notifier that is built after the
// scheduler because it schedules through it.
func (s *Scheduler) Bind(notifier Notifier, checker EntryChecker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifier = notifier
	s.checker = checker
}

// SetSkipWeekends suppresses reminders on Saturdays and Sundays.
func (s *Scheduler) SetSkipWeekends(skip bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skipWeekends = skip
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("reminder scheduler started", "location", s.loc.String(), "reminders", s.Len())
}

// Stop stops the scheduler and waits for running reminders to finish or
// for ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
	s.logger.Info("reminder scheduler stopped")
}

// Schedule installs the user's daily reminder, replacing any previous one.
// Cancelling the old entry and adding the new one happen under a single
// lock, so the user never has two live reminders.
func (s *Scheduler) Schedule(userID int64, hour, minute int) error {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return fmt.Errorf("invalid reminder time %02d:%02d", hour, minute)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.jobs[userID]; ok {
		s.cron.Remove(old.id)
		delete(s.jobs, userID)
	}

	id, err := s.cron.AddFunc(dailySpec(hour, minute), func() {
		s.remind(context.Background(), userID)
	})
	if err != nil {
		return fmt.Errorf("adding reminder for user %d: %w", userID, err)
	}
	s.jobs[userID] = job{id: id, hour: hour, minute: minute}

	s.logger.Debug("reminder scheduled", "user", userID, "time", fmt.Sprintf("%02d:%02d", hour, minute))
	return nil
}

// Scheduled returns the user's reminder time.
func (s *Scheduler) Scheduled(userID int64) (hour, minute int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[userID]
	return j.hour, j.minute, ok
}

// Len returns the number of users with a reminder.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Every runs fn on a standard five-field cron spec, e.g. "*/5 * * * *".
func (s *Scheduler) Every(spec string, fn func()) error {
	if _, err := s.cron.AddFunc(spec, fn); err != nil {
		return fmt.Errorf("adding job %q: %w", spec, err)
	}
	return nil
}

func (s *Scheduler) remind(ctx context.Context, userID int64) {
	now := s.now().In(s.loc)

	s.mu.Lock()
	skip := s.skipWeekends
	notifier, checker := s.notifier, s.checker
	s.mu.Unlock()
	if skip && isWeekend(now) {
		s.logger.Debug("reminder skipped on weekend", "user", userID)
		return
	}
	if notifier == nil {
		s.logger.Warn("reminder dropped, no notifier", "user", userID)
		return
	}

	var (
		text string
		done bool
		err  error
	)
	if checker != nil {
		done, err = checker.HasEntry(userID, now)
	}
	switch {
	case err != nil:
		s.logger.Warn("checking today's entry failed", "user", userID, "error", err)
		text = reminderText
	case done:
		text = alreadyLoggedText
	default:
		text = reminderText
	}

	if err := notifier.Notify(ctx, userID, text); err != nil {
		s.logger.Warn("sending reminder failed", "user", userID, "error", err)
		return
	}
	s.logger.Info("reminder sent", "user", userID, "logged_today", done)
}

const (
	reminderText = "🔔 НАПОМИНАНИЕ!\n\n" +
		"Привет! Пора заполнить отчет о работе за сегодня.\n\n" +
		"Нажми кнопку «📝 Отчет», чтобы добавить запись."
	alreadyLoggedText = "✅ Отчет за сегодня уже заполнен. Спасибо!\n\n" +
		"Если нужно что-то поправить, удали запись кнопкой «🗑 Удалить сегодня» и заполни заново."
)

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// dailySpec turns a wall-clock time into a cron spec firing once a day.
func dailySpec(hour, minute int) string {
	return fmt.Sprintf("%d %d * * *", minute, hour)
}

// cronLogger routes cron's internal logging to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}

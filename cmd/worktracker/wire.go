package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/christopherklint97/worktracker/internal/backup"
	"github.com/christopherklint97/worktracker/internal/bot"
	"github.com/christopherklint97/worktracker/internal/calendar"
	"github.com/christopherklint97/worktracker/internal/config"
	"github.com/christopherklint97/worktracker/internal/hours"
	"github.com/christopherklint97/worktracker/internal/report"
	"github.com/christopherklint97/worktracker/internal/scheduler"
	"github.com/christopherklint97/worktracker/internal/sheet"
	"github.com/christopherklint97/worktracker/internal/store"
)

// services is everything a running bot needs, built from one config.
type services struct {
	cfg      *config.Config
	logger   *slog.Logger
	dataDir  string
	book     *sheet.Workbook
	db       *store.DB
	sessions *report.MemorySessions
	sched    *scheduler.Scheduler
	router   *bot.Router
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// openStorage opens the workbook and the state database.
func openStorage(cfg *config.Config, logger *slog.Logger) (*sheet.Workbook, *store.DB, string, error) {
	dataDir, err := cfg.DataDir()
	if err != nil {
		return nil, nil, "", err
	}

	book, err := sheet.Open(cfg.Storage.ExcelFile, sheet.Options{
		Location: cfg.Location(),
		Logger:   logger.With("component", "sheet"),
	})
	if err != nil {
		return nil, nil, "", fmt.Errorf("opening workbook: %w", err)
	}

	db, err := store.Open(filepath.Join(dataDir, "worktracker.db"))
	if err != nil {
		return nil, nil, "", err
	}
	return book, db, dataDir, nil
}

func newMirror(cfg *config.Config, book *sheet.Workbook, db *store.DB, logger *slog.Logger) *backup.Mirror {
	logger = logger.With("component", "backup")

	var uploader backup.Uploader = backup.Nop{}
	if cfg.Backup.Enabled {
		uploader = backup.NewClient(cfg.Backup.Token, cfg.Backup.BaseURL, logger)
	}
	remote := path.Join(cfg.Backup.RemoteDir, filepath.Base(cfg.Storage.ExcelFile))

	return backup.NewMirror(uploader, book, remote, func(at time.Time) {
		if err := db.SetState(store.StateLastBackup, at.Format(time.RFC3339)); err != nil {
			logger.Warn("recording backup time failed", "error", err)
		}
	}, logger)
}

func openServices(cfg *config.Config, logger *slog.Logger, sender bot.Sender) (*services, error) {
	book, db, dataDir, err := openStorage(cfg, logger)
	if err != nil {
		return nil, err
	}
	loc := cfg.Location()

	var hints report.HintSource
	if cfg.Calendar.Enabled && cfg.Calendar.Source != "" {
		hints = calendar.Hints{
			Source:   cfg.Calendar.Source,
			Location: loc,
			Logger:   logger.With("component", "calendar"),
		}
	}

	sessions := report.NewMemorySessions(time.Duration(cfg.Report.SessionTTLMinutes) * time.Minute)
	dialogue := report.New(sessions, book, report.Options{
		Policy:     report.Policy(cfg.Report.DuplicatePolicy),
		Calculator: hours.New(cfg.Report.LunchHours),
		Location:   loc,
		Mirror:     newMirror(cfg, book, db, logger),
		Hints:      hints,
		Logger:     logger.With("component", "report"),
	})

	sched := scheduler.New(loc, nil, nil, logger.With("component", "scheduler"))
	sched.SetSkipWeekends(cfg.Reminders.SkipWeekends)

	router := bot.NewRouter(dialogue, book, db, sched, sender, bot.Options{
		Location:      loc,
		DefaultHour:   cfg.Reminders.DefaultHour,
		DefaultMinute: cfg.Reminders.DefaultMinute,
		Logger:        logger.With("component", "bot"),
	})
	sched.Bind(router, router)

	return &services{
		cfg:      cfg,
		logger:   logger,
		dataDir:  dataDir,
		book:     book,
		db:       db,
		sessions: sessions,
		sched:    sched,
		router:   router,
	}, nil
}

// restoreReminders schedules every known user's reminder.
func (s *services) restoreReminders() error {
	users, err := s.db.ListUsers()
	if err != nil {
		return fmt.Errorf("listing users: %w", err)
	}
	for _, u := range users {
		if err := s.sched.Schedule(u.ID, u.ReminderHour, u.ReminderMinute); err != nil {
			s.logger.Warn("restoring reminder failed", "user", u.ID, "error", err)
		}
	}
	return nil
}

// sweepSessions drops idle report sessions every five minutes when a
// session TTL is configured.
func (s *services) sweepSessions() error {
	if s.cfg.Report.SessionTTLMinutes <= 0 {
		return nil
	}
	return s.sched.Every("*/5 * * * *", func() {
		if n := s.sessions.Sweep(); n > 0 {
			s.logger.Debug("idle report sessions dropped", "count", n)
		}
	})
}

func (s *services) Close() {
	if err := s.db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "closing database: %v\n", err)
	}
}

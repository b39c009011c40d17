// Package bot routes chat messages to the report dialogue and the bot's
// commands. It does not know which chat transport delivers them.
package bot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tj/go-naturaldate"

	"github.com/christopherklint97/worktracker/internal/model"
	"github.com/christopherklint97/worktracker/internal/report"
	"github.com/christopherklint97/worktracker/internal/store"
)

// Incoming is one text message from a user.
type Incoming struct {
	UserID    int64
	ChatID    int64
	Username  string
	FirstName string
	LastName  string
	Text      string
}

func (in Incoming) User() model.User {
	return model.User{ID: in.UserID, Username: in.Username, FirstName: in.FirstName, LastName: in.LastName}
}

// Document is a file sent to the user.
type Document struct {
	Name    string
	Data    []byte
	Caption string
}

// Sender delivers replies over a chat transport.
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string, kb report.Keyboard) error
	SendDocument(ctx context.Context, chatID int64, doc Document, kb report.Keyboard) error
}

// Ledger is the workbook as the router uses it.
type Ledger interface {
	FindByDate(owner model.User, day time.Time) (*model.Entry, error)
	DeleteByDate(owner model.User, day time.Time) (bool, error)
	Entries(owner model.User) ([]model.Entry, error)
	Snapshot() ([]byte, error)
}

// Users persists who the bot has seen and their reminder settings.
type Users interface {
	GetUser(id int64) (*store.User, error)
	UpsertUser(u model.User, hour, minute int) (*store.User, bool, error)
	MarkWelcomed(id int64) error
	SetReminder(id int64, hour, minute int) error
}

// Reminders installs per-user daily reminders.
type Reminders interface {
	Schedule(userID int64, hour, minute int) error
}

type Options struct {
	Location      *time.Location
	Now           func() time.Time
	DefaultHour   int
	DefaultMinute int
	Logger        *slog.Logger
}

type Router struct {
	dialogue  *report.Dialogue
	ledger    Ledger
	users     Users
	reminders Reminders
	sender    Sender

	loc           *time.Location
	now           func() time.Time
	defaultHour   int
	defaultMinute int
	logger        *slog.Logger

	mu               sync.Mutex
	awaitingReminder map[int64]bool
}

func NewRouter(dialogue *report.Dialogue, ledger Ledger, users Users, reminders Reminders, sender Sender, opts Options) *Router {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Router{
		dialogue:         dialogue,
		ledger:           ledger,
		users:            users,
		reminders:        reminders,
		sender:           sender,
		loc:              opts.Location,
		now:              opts.Now,
		defaultHour:      opts.DefaultHour,
		defaultMinute:    opts.DefaultMinute,
		logger:           opts.Logger,
		awaitingReminder: make(map[int64]bool),
	}
}

// Handle processes one message and sends the replies it produces.
func (r *Router) Handle(ctx context.Context, in Incoming) error {
	text := strings.TrimSpace(in.Text)
	user := in.User()

	stored, created, err := r.users.UpsertUser(user, r.defaultHour, r.defaultMinute)
	if err != nil {
		r.logger.Error("recording user failed", "user", user.ID, "error", err)
	} else if created {
		r.logger.Info("new user", "user", user.ID, "username", user.Username)
		r.schedule(stored)
	}

	cmd, isCommand := parseCommand(text)
	if !isCommand {
		cmd = buttonCommand(text)
	}

	if isCommand && cmd == "" {
		return r.send(ctx, in, unknownCommand, report.KeyboardMenu)
	}

	if cmd == "" {
		if r.isAwaitingReminder(user.ID) {
			return r.receiveReminder(ctx, in, text)
		}
		// The dialogue keeps the time range exactly as typed.
		if reply, ok := r.dialogue.Handle(ctx, user, in.Text); ok {
			return r.reply(ctx, in, reply)
		}
		return r.send(ctx, in, unknownText, report.KeyboardMenu)
	}

	r.logger.Debug("command", "user", user.ID, "command", cmd)

	switch cmd {
	case "start":
		return r.start(ctx, in, stored, created)
	case "report":
		r.setAwaitingReminder(user.ID, false)
		return r.reply(ctx, in, r.dialogue.Start(ctx, user))
	case "cancel":
		r.setAwaitingReminder(user.ID, false)
		return r.reply(ctx, in, r.dialogue.Cancel(user))
	case "stats":
		return r.stats(ctx, in)
	case "my_time":
		h, m := r.reminderTime(stored)
		return r.send(ctx, in, myTimeText(h, m), report.KeyboardMenu)
	case "reminder":
		if r.dialogue.Active(user.ID) {
			r.dialogue.Cancel(user)
		}
		r.setAwaitingReminder(user.ID, true)
		return r.send(ctx, in, reminderPrompt, report.KeyboardRemove)
	case "test_remind":
		h, m := r.reminderTime(stored)
		if err := r.send(ctx, in, testReminderText(h, m), report.KeyboardKeep); err != nil {
			return err
		}
		return r.send(ctx, in, testReminderSent, report.KeyboardMenu)
	case "download":
		return r.download(ctx, in)
	case "delete_today":
		return r.deleteToday(ctx, in)
	case "help":
		return r.send(ctx, in, helpText, report.KeyboardMenu)
	}
	return r.send(ctx, in, unknownCommand, report.KeyboardMenu)
}

func (r *Router) start(ctx context.Context, in Incoming, stored *store.User, created bool) error {
	isNew := stored == nil || !stored.Welcomed
	if isNew {
		if err := r.send(ctx, in, welcomeText, report.KeyboardMenu); err != nil {
			return err
		}
		if err := r.users.MarkWelcomed(in.UserID); err != nil {
			r.logger.Warn("marking user welcomed failed", "user", in.UserID, "error", err)
		}
	}
	if !created && stored != nil {
		// Reinstall in case the scheduler lost it.
		r.schedule(stored)
	}

	count := 0
	if entries, err := r.ledger.Entries(in.User()); err != nil {
		r.logger.Warn("reading entries failed", "user", in.UserID, "error", err)
	} else {
		count = len(entries)
	}

	h, m := r.reminderTime(stored)
	name := in.FirstName
	if name == "" {
		name = in.User().DisplayName()
	}
	return r.send(ctx, in, greeting(name, isNew, count, h, m), report.KeyboardMenu)
}

func (r *Router) stats(ctx context.Context, in Incoming) error {
	entries, err := r.ledger.Entries(in.User())
	if err != nil {
		r.logger.Error("reading entries failed", "user", in.UserID, "error", err)
		return r.send(ctx, in, statsFailed, report.KeyboardMenu)
	}

	var total float64
	last := ""
	for _, e := range entries {
		total += e.Hours
		last = e.DateString()
	}
	return r.send(ctx, in, statsText(len(entries), total, last), report.KeyboardMenu)
}

func (r *Router) download(ctx context.Context, in Incoming) error {
	data, err := r.ledger.Snapshot()
	if err != nil {
		r.logger.Error("reading workbook failed", "user", in.UserID, "error", err)
		return r.send(ctx, in, downloadFailed, report.KeyboardMenu)
	}
	doc := Document{
		Name:    DownloadName(r.now().In(r.loc)),
		Data:    data,
		Caption: downloadCaption,
	}
	if err := r.sender.SendDocument(ctx, in.ChatID, doc, report.KeyboardMenu); err != nil {
		r.logger.Error("sending workbook failed", "user", in.UserID, "error", err)
		return r.send(ctx, in, downloadFailed, report.KeyboardMenu)
	}
	r.logger.Info("workbook sent", "user", in.UserID, "bytes", len(data))
	return nil
}

// DownloadName is the file name the workbook is sent under.
func DownloadName(t time.Time) string {
	return "work_reports_" + t.Format(model.DateLayout) + ".xlsx"
}

func (r *Router) deleteToday(ctx context.Context, in Incoming) error {
	today := model.StartOfDay(r.now().In(r.loc))
	day := today.Format(model.DateLayout)

	deleted, err := r.ledger.DeleteByDate(in.User(), today)
	if err != nil {
		r.logger.Error("deleting entry failed", "user", in.UserID, "error", err)
		return r.send(ctx, in, deleteFailed, report.KeyboardMenu)
	}
	if !deleted {
		return r.send(ctx, in, nothingToDelete(day), report.KeyboardMenu)
	}
	r.logger.Info("entry deleted", "user", in.UserID, "date", day)
	return r.send(ctx, in, deletedText(day), report.KeyboardMenu)
}

func (r *Router) receiveReminder(ctx context.Context, in Incoming, text string) error {
	h, m, ok := ParseReminderTime(text, r.now().In(r.loc))
	if !ok {
		return r.send(ctx, in, reminderInvalid, report.KeyboardRemove)
	}

	if err := r.users.SetReminder(in.UserID, h, m); err != nil {
		r.logger.Error("saving reminder failed", "user", in.UserID, "error", err)
	}
	if err := r.reminders.Schedule(in.UserID, h, m); err != nil {
		r.logger.Error("scheduling reminder failed", "user", in.UserID, "error", err)
	}
	r.setAwaitingReminder(in.UserID, false)
	r.logger.Info("reminder changed", "user", in.UserID, "time", fmt.Sprintf("%02d:%02d", h, m))
	return r.send(ctx, in, reminderSet(h, m), report.KeyboardMenu)
}

var (
	reminderRe  = regexp.MustCompile(`^([0-1]?[0-9]|2[0-3]):([0-5][0-9])$`)
	clockLikeRe = regexp.MustCompile(`^\d+:\d+$`)
)

// ParseReminderTime accepts HH:MM in 24-hour form, then falls back to
// English phrases such as "6pm" or "half past five pm".
func ParseReminderTime(text string, ref time.Time) (hour, minute int, ok bool) {
	text = strings.TrimSpace(text)
	if m := reminderRe.FindStringSubmatch(text); m != nil {
		h, _ := strconv.Atoi(m[1])
		min, _ := strconv.Atoi(m[2])
		return h, min, true
	}

	// Out-of-range clock values and bare words like "today" are rejected
	// rather than handed to the phrase parser.
	if clockLikeRe.MatchString(text) || !strings.ContainsAny(text, "0123456789") {
		return 0, 0, false
	}
	t, err := naturaldate.Parse(text, ref)
	if err != nil || t.Equal(ref) {
		return 0, 0, false
	}
	return t.Hour(), t.Minute(), true
}

func (r *Router) reminderTime(u *store.User) (int, int) {
	if u == nil {
		return r.defaultHour, r.defaultMinute
	}
	return u.ReminderHour, u.ReminderMinute
}

func (r *Router) schedule(u *store.User) {
	if u == nil || r.reminders == nil {
		return
	}
	if err := r.reminders.Schedule(u.ID, u.ReminderHour, u.ReminderMinute); err != nil {
		r.logger.Error("scheduling reminder failed", "user", u.ID, "error", err)
	}
}

func (r *Router) isAwaitingReminder(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.awaitingReminder[userID]
}

func (r *Router) setAwaitingReminder(userID int64, on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if on {
		r.awaitingReminder[userID] = true
	} else {
		delete(r.awaitingReminder, userID)
	}
}

func (r *Router) reply(ctx context.Context, in Incoming, reply report.Reply) error {
	return r.send(ctx, in, reply.Text, reply.Keyboard)
}

func (r *Router) send(ctx context.Context, in Incoming, text string, kb report.Keyboard) error {
	if err := r.sender.SendText(ctx, in.ChatID, text, kb); err != nil {
		r.logger.Warn("sending reply failed", "user", in.UserID, "chat", in.ChatID, "error", err)
		return err
	}
	return nil
}

// Notify sends a reminder to a user's private chat.
func (r *Router) Notify(ctx context.Context, userID int64, text string) error {
	return r.sender.SendText(ctx, userID, text, report.KeyboardMenu)
}

// HasEntry reports whether the user already logged work for day.
func (r *Router) HasEntry(userID int64, day time.Time) (bool, error) {
	u, err := r.users.GetUser(userID)
	if err != nil {
		return false, err
	}
	owner := model.User{ID: userID}
	if u != nil {
		owner = u.User
	}
	e, err := r.ledger.FindByDate(owner, day)
	if err != nil {
		return false, err
	}
	return e != nil, nil
}

var buttons = map[string]string{
	btnReport:      "report",
	btnStats:       "stats",
	btnMyTime:      "my_time",
	btnReminder:    "reminder",
	btnTestRemind:  "test_remind",
	btnDownload:    "download",
	btnDeleteToday: "delete_today",
}

var commands = map[string]bool{
	"start": true, "report": true, "cancel": true, "stats": true, "my_time": true,
	"reminder": true, "test_remind": true, "download": true, "delete_today": true, "help": true,
}

// parseCommand extracts the command name from "/name@bot args". The first
// result is empty for unknown commands; the second reports whether text
// looked like a command at all.
func parseCommand(text string) (string, bool) {
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	name := strings.TrimPrefix(strings.Fields(text)[0], "/")
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	name = strings.ToLower(name)
	if !commands[name] {
		return "", true
	}
	return name, true
}

func buttonCommand(text string) string {
	return buttons[text]
}

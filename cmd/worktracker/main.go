package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"os/user"
	"path"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/christopherklint97/worktracker/internal/backup"
	"github.com/christopherklint97/worktracker/internal/bot"
	"github.com/christopherklint97/worktracker/internal/config"
	"github.com/christopherklint97/worktracker/internal/report"
	"github.com/christopherklint97/worktracker/internal/scheduler"
	"github.com/christopherklint97/worktracker/internal/store"
	"github.com/christopherklint97/worktracker/internal/tui"
)

var (
	configFile string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "worktracker",
	Short: "Telegram bot for daily work-time reports",
	Long:  "worktracker asks each user how long they worked today and stores the hours in a shared Excel workbook, one sheet per user, with a daily reminder at each user's chosen time.",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the Telegram bot and reminder scheduler",
	RunE:  runBot,
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running bot",
	RunE:  runStop,
}

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Chat with the bot in the terminal instead of Telegram",
	RunE:  runConsole,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show workbook totals, users and last backup",
	RunE:  runStatus,
}

var backupCmd = &cobra.Command{
	Use:     "backup [file...]",
	Short:   "Upload the workbook to Yandex Disk now",
	Long:    "Upload a snapshot of the workbook to the backup folder. Extra files, such as workbooks moved aside as unreadable, are uploaded next to it under their own names.",
	Example: "  worktracker backup work_reports.xlsx.backup_20260302_183000",
	RunE:    runBackup,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Open config file in your editor",
	RunE:  runConfig,
}

var configSetCmd = &cobra.Command{
	Use:     "set <section.key> <value>",
	Short:   "Change one setting in the config file",
	Example: "  worktracker config set reminders.default_hour 19",
	Args:    cobra.ExactArgs(2),
	RunE:    runConfigSet,
}

func init() {
	rootCmd.SilenceUsage = true
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default ~/.config/worktracker/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	consoleCmd.Flags().Int64("user-id", 1, "user ID to chat as")
	consoleCmd.Flags().String("downloads", "", "directory for downloaded reports (default: data dir)")

	configCmd.AddCommand(configSetCmd)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(consoleCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func runBot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Bot.Token == "" {
		return fmt.Errorf("bot token not configured: set BOT_TOKEN or run 'worktracker config set bot.token <token>'")
	}
	logger := newLogger(cfg, os.Stderr)

	tg, err := bot.NewTelegram(cfg.Bot.Token, cfg.Bot.PollTimeoutSeconds, logger.With("component", "telegram"))
	if err != nil {
		return err
	}

	svc, err := openServices(cfg, logger, tg)
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := scheduler.WritePID(svc.dataDir); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer scheduler.RemovePID(svc.dataDir)

	if err := svc.restoreReminders(); err != nil {
		return err
	}
	if err := svc.sweepSessions(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc.sched.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		svc.sched.Stop(stopCtx)
	}()

	logger.Info("bot running", "workbook", svc.book.Path(), "timezone", cfg.Reminders.Timezone,
		"policy", cfg.Report.DuplicatePolicy, "backup", cfg.Backup.Enabled)

	if err := tg.Run(ctx, svc.router.Handle); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("bot stopped")
	return nil
}

func runStop(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dataDir, err := cfg.DataDir()
	if err != nil {
		return err
	}

	pid, err := scheduler.ReadPID(dataDir)
	if err != nil {
		return err
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("finding process %d: %w", pid, err)
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("sending stop signal: %w", err)
	}

	fmt.Printf("Sent stop signal to worktracker (PID %d)\n", pid)
	return nil
}

func runConsole(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dataDir, err := cfg.DataDir()
	if err != nil {
		return err
	}

	// The terminal belongs to the console, so logs go to a file.
	logFile, err := os.OpenFile(filepath.Join(dataDir, "console.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("opening console log: %w", err)
	}
	defer logFile.Close()
	logger := newLogger(cfg, logFile)

	downloads, _ := cmd.Flags().GetString("downloads")
	if downloads == "" {
		downloads = dataDir
	}
	console := tui.NewConsole(downloads)

	svc, err := openServices(cfg, logger, console)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Reminders show up in the chat and as desktop notifications.
	svc.sched.Bind(scheduler.DesktopNotifier{
		Title: "Work Tracker",
		Echo:  func(userID int64, text string) {
			svc.router.Notify(ctx, userID, text)
		},
	}, svc.router)

	userID, _ := cmd.Flags().GetInt64("user-id")
	// Only the local user's reminder; the others belong to Telegram chats.
	if u, err := svc.db.GetUser(userID); err == nil && u != nil {
		if err := svc.sched.Schedule(u.ID, u.ReminderHour, u.ReminderMinute); err != nil {
			logger.Warn("scheduling reminder failed", "user", u.ID, "error", err)
		}
	}
	if err := svc.sweepSessions(); err != nil {
		return err
	}
	svc.sched.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		svc.sched.Stop(stopCtx)
	}()

	in := localUser(userID)
	handle := func(ctx context.Context, text string) error {
		msg := in
		msg.Text = text
		return svc.router.Handle(ctx, msg)
	}

	return tui.Run(ctx, console, "Work Tracker", handle)
}

// localUser is the console's stand-in for a Telegram user, named after the
// OS account.
func localUser(id int64) bot.Incoming {
	in := bot.Incoming{UserID: id, ChatID: id, FirstName: "Console"}
	if u, err := user.Current(); err == nil {
		in.Username = u.Username
		if u.Name != "" {
			in.FirstName = u.Name
		} else {
			in.FirstName = u.Username
		}
	}
	return in
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	book, db, _, err := openStorage(cfg, newLogger(cfg, os.Stderr))
	if err != nil {
		return err
	}
	defer db.Close()

	summaries, err := book.Summary()
	if err != nil {
		return fmt.Errorf("reading workbook: %w", err)
	}

	fmt.Printf("Workbook: %s\n\n", book.Path())
	if len(summaries) == 0 {
		fmt.Println("No reports yet.")
	} else {
		total := 0.0
		for _, s := range summaries {
			last := s.LastDate
			if last == "" {
				last = "-"
			}
			fmt.Printf("  %-31s  %4d entries  %8sh  last %s\n", s.Sheet, s.Rows, report.FormatHours(s.Hours), last)
			total += s.Hours
		}
		fmt.Printf("\nTotal: %sh across %d sheets\n", report.FormatHours(total), len(summaries))
	}

	users, err := db.ListUsers()
	if err != nil {
		return fmt.Errorf("listing users: %w", err)
	}
	fmt.Printf("\nUsers: %d\n", len(users))
	for _, u := range users {
		fmt.Printf("  %-12d  %-24s  reminder %02d:%02d\n", u.ID, u.DisplayName(), u.ReminderHour, u.ReminderMinute)
	}

	last, err := db.GetState(store.StateLastBackup)
	if err != nil {
		return fmt.Errorf("reading backup state: %w", err)
	}
	switch {
	case !cfg.Backup.Enabled:
		fmt.Println("\nBackup: disabled")
	case last == "":
		fmt.Println("\nBackup: never")
	default:
		fmt.Printf("\nBackup: last upload %s\n", last)
	}
	return nil
}

func runBackup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Backup.Enabled {
		return fmt.Errorf("backup is disabled: set YANDEX_DISK_TOKEN or backup.token and backup.enabled")
	}
	logger := newLogger(cfg, os.Stderr)

	book, db, _, err := openStorage(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := newMirror(cfg, book, db, logger).Mirror(cmd.Context()); err != nil {
		return err
	}
	fmt.Printf("Uploaded %s to Yandex Disk\n", book.Path())

	if len(args) == 0 {
		return nil
	}
	client := backup.NewClient(cfg.Backup.Token, cfg.Backup.BaseURL, logger.With("component", "backup"))
	for _, local := range args {
		remote := path.Join(cfg.Backup.RemoteDir, filepath.Base(local))
		if err := client.Upload(cmd.Context(), local, remote); err != nil {
			return fmt.Errorf("uploading %s: %w", local, err)
		}
		fmt.Printf("Uploaded %s to %s\n", local, remote)
	}
	return nil
}

func configPath() (string, error) {
	if configFile != "" {
		return configFile, nil
	}
	return config.ConfigPath()
}

func runConfig(cmd *cobra.Command, args []string) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if err := config.WriteDefaults(path); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "vi"
	}

	fmt.Printf("Opening %s with %s...\n", path, editor)

	c := exec.Command(editor, path)
	c.Stdin, c.Stdout, c.Stderr = os.Stdin, os.Stdout, os.Stderr
	if err := c.Run(); err != nil {
		fmt.Printf("Could not open editor. Config file is at: %s\n", path)
		return nil
	}
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if err := config.WriteDefaults(path); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	if err := config.Set(path, args[0], config.ParseValue(args[1])); err != nil {
		return err
	}
	fmt.Printf("Set %s in %s\n", args[0], path)
	return nil
}

// Package tui is a local terminal chat with the bot, used to try the
// report flow without a Telegram token.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/christopherklint97/worktracker/internal/bot"
	"github.com/christopherklint97/worktracker/internal/report"
)

// HandleFunc processes one line typed by the local user.
type HandleFunc func(ctx context.Context, text string) error

type handledMsg struct {
	err error
}

type speaker int

const (
	fromUser speaker = iota
	fromBot
	fromSystem
	fromError
)

type line struct {
	from speaker
	text string
	at   time.Time
}

type App struct {
	ctx     context.Context
	title   string
	handle  HandleFunc
	input   textinput.Model
	view    viewport.Model
	lines   []line
	buttons []string
	choice  int
	busy    bool
	ready   bool
	width   int
	height  int
	onStart func()
	now     func() time.Time
}

func NewApp(ctx context.Context, title string, handle HandleFunc) *App {
	ti := textinput.New()
	ti.Placeholder = "Напиши сообщение или /start"
	ti.CharLimit = 1000
	ti.Width = 60
	ti.Focus()

	return &App{
		ctx:    ctx,
		title:  title,
		handle: handle,
		input:  ti,
		view:   viewport.New(80, 20),
		choice: -1,
		now:    time.Now,
	}
}

func (a *App) Init() tea.Cmd {
	if a.onStart == nil {
		return textinput.Blink
	}
	start := a.onStart
	return tea.Batch(textinput.Blink, func() tea.Msg {
		start()
		return nil
	})
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		a.ready = true
		a.layout()
		return a, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return a, tea.Quit
		case "enter":
			return a, a.submit()
		case "tab":
			a.cycle(1)
			return a, nil
		case "shift+tab":
			a.cycle(-1)
			return a, nil
		case "pgup", "pgdown":
			var cmd tea.Cmd
			a.view, cmd = a.view.Update(msg)
			return a, cmd
		}

	case botMsg:
		if msg.text != "" {
			a.appendLine(line{from: fromBot, text: msg.text, at: msg.at})
		}
		a.setKeyboard(msg.keyboard)
		return a, nil

	case documentMsg:
		text := fmt.Sprintf("📎 %s сохранен в %s", msg.name, msg.path)
		if msg.caption != "" {
			text = msg.caption + "\n" + text
		}
		a.appendLine(line{from: fromSystem, text: text, at: msg.at})
		return a, nil

	case handledMsg:
		a.busy = false
		if msg.err != nil {
			a.appendLine(line{from: fromError, text: msg.err.Error(), at: a.now()})
		}
		return a, nil
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

func (a *App) submit() tea.Cmd {
	text := strings.TrimSpace(a.input.Value())
	if text == "" || a.busy {
		return nil
	}
	a.input.Reset()
	a.choice = -1
	a.busy = true
	a.appendLine(line{from: fromUser, text: text, at: a.now()})

	ctx, handle := a.ctx, a.handle
	return func() tea.Msg {
		return handledMsg{err: handle(ctx, text)}
	}
}

// cycle fills the input with the next keyboard button.
func (a *App) cycle(step int) {
	if len(a.buttons) == 0 {
		return
	}
	n := len(a.buttons)
	a.choice = ((a.choice+step)%n + n) % n
	a.input.SetValue(a.buttons[a.choice])
	a.input.CursorEnd()
}

func (a *App) setKeyboard(kb report.Keyboard) {
	switch kb {
	case report.KeyboardKeep:
		return
	case report.KeyboardMenu:
		a.buttons = a.buttons[:0]
		for _, row := range bot.MenuRows {
			a.buttons = append(a.buttons, row...)
		}
	case report.KeyboardYesNo:
		a.buttons = []string{report.AnswerYes, report.AnswerNo}
	case report.KeyboardRemove:
		a.buttons = nil
	}
	a.choice = -1
	a.layout()
}

func (a *App) appendLine(l line) {
	a.lines = append(a.lines, l)
	a.view.SetContent(a.renderLines())
	a.view.GotoBottom()
}

func (a *App) layout() {
	if !a.ready {
		return
	}
	// title, buttons, input and help take one row each, plus the border.
	reserved := 6
	if a.width > 4 {
		a.view.Width = a.width - 4
		a.input.Width = a.width - 8
	}
	if a.height > reserved+3 {
		a.view.Height = a.height - reserved
	}
	a.view.SetContent(a.renderLines())
	a.view.GotoBottom()
}

func (a *App) renderLines() string {
	var sb strings.Builder
	for i, l := range a.lines {
		if i > 0 {
			sb.WriteString("\n")
		}
		stamp := dimStyle.Render(l.at.Format("15:04"))
		switch l.from {
		case fromUser:
			sb.WriteString(stamp + " " + userStyle.Render("ты") + "\n")
		case fromBot:
			sb.WriteString(stamp + " " + botStyle.Render("бот") + "\n")
		case fromSystem:
			sb.WriteString(stamp + " " + documentStyle.Render("•") + "\n")
		case fromError:
			sb.WriteString(stamp + " " + errorStyle.Render("ошибка") + "\n")
		}
		text := l.text
		if a.view.Width > 0 {
			text = lipgloss.NewStyle().Width(a.view.Width).Render(text)
		}
		sb.WriteString(text + "\n")
	}
	return sb.String()
}

func (a *App) renderButtons() string {
	if len(a.buttons) == 0 {
		return dimStyle.Render("нет кнопок")
	}
	parts := make([]string, len(a.buttons))
	for i, b := range a.buttons {
		if i == a.choice {
			parts[i] = selectedStyle.Render("[" + b + "]")
		} else {
			parts[i] = subtitleStyle.Render(b)
		}
	}
	return strings.Join(parts, "  ")
}

func (a *App) View() string {
	header := titleStyle.Render(a.title)
	if a.busy {
		header += " " + dimStyle.Render("...")
	}
	help := helpStyle.Render("Enter: отправить • Tab: кнопка • PgUp/PgDn: прокрутка • Esc: выход")

	return header + "\n" +
		boxStyle.Render(a.view.View()) + "\n" +
		a.renderButtons() + "\n" +
		a.input.View() + "\n" +
		help
}

// Run shows the console until the user quits or ctx is cancelled. Replies
// sent to console are shown as they arrive.
func Run(ctx context.Context, console *Console, title string, handle HandleFunc) error {
	app := NewApp(ctx, title, handle)
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	// Program.Send blocks until the event loop runs.
	app.onStart = func() { console.Attach(p.Send) }

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("running console: %w", err)
	}
	return nil
}

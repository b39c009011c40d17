package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/christopherklint97/worktracker/internal/bot"
	"github.com/christopherklint97/worktracker/internal/report"
)

type botMsg struct {
	text     string
	keyboard report.Keyboard
	at       time.Time
}

type documentMsg struct {
	name    string
	path    string
	caption string
	at      time.Time
}

// Console is a bot.Sender that renders replies in the terminal chat.
// Documents are written to a directory instead of being uploaded.
type Console struct {
	mu      sync.Mutex
	deliver func(tea.Msg)
	backlog []tea.Msg
	dir     string
	now     func() time.Time
}

var _ bot.Sender = (*Console)(nil)

func NewConsole(dir string) *Console {
	return &Console{dir: dir, now: time.Now}
}

// Attach starts forwarding replies to deliver, usually tea.Program.Send.
// Replies sent before Attach are forwarded first, in order.
func (c *Console) Attach(deliver func(tea.Msg)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, msg := range c.backlog {
		deliver(msg)
	}
	c.backlog = nil
	c.deliver = deliver
}

// post runs deliver under the lock so replies keep their order.
func (c *Console) post(msg tea.Msg) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deliver == nil {
		c.backlog = append(c.backlog, msg)
		return
	}
	c.deliver(msg)
}

func (c *Console) SendText(ctx context.Context, chatID int64, text string, kb report.Keyboard) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.post(botMsg{text: text, keyboard: kb, at: c.now()})
	return nil
}

func (c *Console) SendDocument(ctx context.Context, chatID int64, doc bot.Document, kb report.Keyboard) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("creating download directory: %w", err)
	}
	path := filepath.Join(c.dir, filepath.Base(doc.Name))
	if err := os.WriteFile(path, doc.Data, 0644); err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	c.post(documentMsg{name: doc.Name, path: path, caption: doc.Caption, at: c.now()})
	if kb != report.KeyboardKeep {
		c.post(botMsg{keyboard: kb, at: c.now()})
	}
	return nil
}

package scheduler

import (
	"context"

	"github.com/gen2brain/beeep"
)

// SendNotification shows a desktop notification.
func SendNotification(title, message string) error {
	return beeep.Notify(title, message, "")
}

// DesktopNotifier delivers reminders as desktop notifications, for the local
// console where there is no chat to send to.
type DesktopNotifier struct {
	Title string
	// Also receives the text, e.g. to echo it into the console scrollback.
	Echo func(userID int64, text string)
}

func (n DesktopNotifier) Notify(ctx context.Context, userID int64, text string) error {
	if n.Echo != nil {
		n.Echo(userID, text)
	}
	title := n.Title
	if title == "" {
		title = "worktracker"
	}
	return SendNotification(title, text)
}

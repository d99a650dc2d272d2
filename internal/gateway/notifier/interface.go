package notifier

import (
	"fmt"
	"time"
)

// TextNotifier defines a minimal text notification interface.
// It is intentionally small so different components can depend on it without
// importing concrete implementations (e.g. Telegram).
type TextNotifier interface {
	SendText(text string) error
}

// EmailSender submits a single email.
type EmailSender interface {
	SendEmail(subject, body string) error
}

// Event describes the outcome of one availability check.
type Event struct {
	Target     string
	StatusCode int
	CheckedAt  time.Time
}

// FailureEvent describes a check that could not determine availability.
type FailureEvent struct {
	Target    string
	Details   string
	CheckedAt time.Time
}

// Error marks a transport failure on a specific channel.
type Error struct {
	Channel string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("notify via %s failed: %v", e.Channel, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

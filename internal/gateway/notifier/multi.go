package notifier

import (
	"errors"
	"time"

	"tickwatch/internal/logger"
	"tickwatch/internal/messages"
)

// Multi fans one event out to every configured channel. A channel failure is
// logged and reported to the caller but never blocks the other channels.
type Multi struct {
	registry *messages.Registry
	telegram TextNotifier
	email    EmailSender
}

func NewMulti(registry *messages.Registry, telegram TextNotifier, email EmailSender) *Multi {
	return &Multi{registry: registry, telegram: telegram, email: email}
}

// NotifyAvailable announces an availability hit on all channels.
func (m *Multi) NotifyAvailable(ev Event) error {
	subject, body, err := m.registry.Render(messages.IDAvailable, map[string]any{
		"target": ev.Target,
		"status": ev.StatusCode,
		"time":   formatEventTime(ev.CheckedAt),
	})
	if err != nil {
		return err
	}
	return m.fanOut(subject, body, true)
}

// NotifyCheckFailed announces a failed check on all channels.
func (m *Multi) NotifyCheckFailed(ev FailureEvent) error {
	subject, body, err := m.registry.Render(messages.IDProbeFailed, map[string]any{
		"target":  ev.Target,
		"details": ev.Details,
		"time":    formatEventTime(ev.CheckedAt),
	})
	if err != nil {
		return err
	}
	return m.fanOut(subject, body, true)
}

// ReportSoldOut posts the per-tick "still sold out" report. Chat only: the
// original behavior never mails routine reports.
func (m *Multi) ReportSoldOut(ev Event) error {
	_, body, err := m.registry.Render(messages.IDSoldOut, map[string]any{
		"target": ev.Target,
		"status": ev.StatusCode,
		"time":   formatEventTime(ev.CheckedAt),
	})
	if err != nil {
		return err
	}
	return m.fanOut("", body, false)
}

// AnnounceStartup posts the boot message to the chat.
func (m *Multi) AnnounceStartup(target string) error {
	_, body, err := m.registry.Render(messages.IDStartup, map[string]any{"target": target})
	if err != nil {
		return err
	}
	return m.fanOut("", body, false)
}

// SendTestEmail exercises the email channel end to end.
func (m *Multi) SendTestEmail() error {
	if m.email == nil {
		return &Error{Channel: "email", Err: errors.New("email channel not configured")}
	}
	subject, body, err := m.registry.Render(messages.IDTestEmail, nil)
	if err != nil {
		return err
	}
	return m.email.SendEmail(subject, body)
}

func (m *Multi) fanOut(subject, body string, withEmail bool) error {
	var errs []error
	if m.telegram != nil {
		if err := m.telegram.SendText(body); err != nil {
			logger.Warnf("telegram notify failed: %v", err)
			errs = append(errs, err)
		}
	}
	if withEmail && m.email != nil {
		if err := m.email.SendEmail(subject, body); err != nil {
			logger.Warnf("email notify failed: %v", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func formatEventTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.Format("2006-01-02 15:04:05")
}

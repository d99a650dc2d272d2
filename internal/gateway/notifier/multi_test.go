package notifier

import (
	"errors"
	"testing"
	"time"

	"tickwatch/internal/messages"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	texts []string
	err   error
}

func (f *fakeSender) SendText(text string) error {
	f.texts = append(f.texts, text)
	return f.err
}

type fakeEmail struct {
	subjects []string
	bodies   []string
	err      error
}

func (f *fakeEmail) SendEmail(subject, body string) error {
	f.subjects = append(f.subjects, subject)
	f.bodies = append(f.bodies, body)
	return f.err
}

func testEvent() Event {
	return Event{
		Target:     "https://example.test/shop",
		StatusCode: 200,
		CheckedAt:  time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}
}

func TestMultiNotifyAvailableFansOut(t *testing.T) {
	tg := &fakeSender{}
	email := &fakeEmail{}
	m := NewMulti(messages.NewStatic(), tg, email)

	require.NoError(t, m.NotifyAvailable(testEvent()))
	require.Len(t, tg.texts, 1)
	assert.Contains(t, tg.texts[0], "https://example.test/shop")
	require.Len(t, email.bodies, 1)
	assert.Contains(t, email.subjects[0], "Available")
}

func TestMultiReportSoldOutIsChatOnly(t *testing.T) {
	tg := &fakeSender{}
	email := &fakeEmail{}
	m := NewMulti(messages.NewStatic(), tg, email)

	require.NoError(t, m.ReportSoldOut(testEvent()))
	assert.Len(t, tg.texts, 1)
	assert.Empty(t, email.bodies, "routine reports never go to email")
}

func TestMultiNotifyCheckFailed(t *testing.T) {
	tg := &fakeSender{}
	email := &fakeEmail{}
	m := NewMulti(messages.NewStatic(), tg, email)

	err := m.NotifyCheckFailed(FailureEvent{
		Target:    "https://example.test/shop",
		Details:   "status=503",
		CheckedAt: time.Now(),
	})
	require.NoError(t, err)
	require.Len(t, tg.texts, 1)
	assert.Contains(t, tg.texts[0], "status=503")
	assert.Len(t, email.bodies, 1)
}

func TestMultiChannelFailureDoesNotBlockOthers(t *testing.T) {
	tg := &fakeSender{err: errors.New("telegram down")}
	email := &fakeEmail{}
	m := NewMulti(messages.NewStatic(), tg, email)

	err := m.NotifyAvailable(testEvent())
	assert.Error(t, err, "channel failures reported to the caller")
	assert.Len(t, email.bodies, 1, "email still sent")
}

func TestMultiMissingChannels(t *testing.T) {
	m := NewMulti(messages.NewStatic(), nil, nil)
	assert.NoError(t, m.NotifyAvailable(testEvent()))

	err := m.SendTestEmail()
	require.Error(t, err)
	var nerr *Error
	require.True(t, errors.As(err, &nerr))
	assert.Equal(t, "email", nerr.Channel)
}

func TestMultiSendTestEmail(t *testing.T) {
	email := &fakeEmail{}
	m := NewMulti(messages.NewStatic(), nil, email)
	require.NoError(t, m.SendTestEmail())
	require.Len(t, email.subjects, 1)
	assert.Contains(t, email.subjects[0], "Test")
}

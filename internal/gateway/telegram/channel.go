package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tickwatch/internal/logger"
	"tickwatch/internal/watcher"

	"github.com/tidwall/gjson"
)

// Controller is the subset of the watch controller the commands drive.
type Controller interface {
	Start(interval time.Duration) (time.Duration, error)
	Stop() bool
	CheckOnce(ctx context.Context) (bool, error)
	ToggleSilent() bool
	Status() watcher.Status
}

// Sender posts replies back to the chat.
type Sender interface {
	SendText(text string) error
}

// EmailTester exercises the email channel on demand.
type EmailTester interface {
	SendTestEmail() error
}

const (
	defaultAPIBase  = "https://api.telegram.org"
	longPollSeconds = 30
)

// Channel runs the Telegram command loop: long-polls getUpdates and maps
// /start, /stop, /check, /silent, /testemail and /status onto the controller.
type Channel struct {
	token      string
	chatID     string
	baseURL    string
	httpClient *http.Client

	controller Controller
	sender     Sender
	email      EmailTester
	offset     int64
}

func NewChannel(token, chatID string, ctrl Controller, sender Sender, email EmailTester) (*Channel, error) {
	if strings.TrimSpace(token) == "" || strings.TrimSpace(chatID) == "" {
		return nil, fmt.Errorf("telegram channel requires bot_token and chat_id")
	}
	if ctrl == nil || sender == nil {
		return nil, fmt.Errorf("telegram channel requires controller and sender")
	}
	return &Channel{
		token:      token,
		chatID:     chatID,
		baseURL:    defaultAPIBase,
		httpClient: &http.Client{Timeout: (longPollSeconds + 10) * time.Second},
		controller: ctrl,
		sender:     sender,
		email:      email,
	}, nil
}

// SetBaseURL overrides the API base for testing.
func (c *Channel) SetBaseURL(base string) { c.baseURL = strings.TrimRight(base, "/") }

// Run long-polls for commands until ctx is cancelled.
func (c *Channel) Run(ctx context.Context) error {
	logger.Infof("telegram channel started, chat=%s", c.chatID)
	for {
		if ctx.Err() != nil {
			return nil
		}
		updates, err := c.fetchUpdates(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Warnf("telegram getUpdates failed: %v", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(3 * time.Second):
			}
			continue
		}
		for _, upd := range updates {
			c.handleUpdate(ctx, upd)
		}
	}
}

type update struct {
	id     int64
	chatID string
	text   string
}

func (c *Channel) fetchUpdates(ctx context.Context) ([]update, error) {
	url := fmt.Sprintf("%s/bot%s/getUpdates?timeout=%d&offset=%d&allowed_updates=%s",
		c.baseURL, c.token, longPollSeconds, c.offset, "%5B%22message%22%5D")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("telegram status=%d", resp.StatusCode)
	}
	parsed := gjson.ParseBytes(body)
	if !parsed.Get("ok").Bool() {
		return nil, fmt.Errorf("telegram error: %s", parsed.Get("description").String())
	}
	var out []update
	for _, item := range parsed.Get("result").Array() {
		upd := update{
			id:     item.Get("update_id").Int(),
			chatID: item.Get("message.chat.id").String(),
			text:   strings.TrimSpace(item.Get("message.text").String()),
		}
		if upd.id >= c.offset {
			c.offset = upd.id + 1
		}
		if upd.text != "" {
			out = append(out, upd)
		}
	}
	return out, nil
}

func (c *Channel) handleUpdate(ctx context.Context, upd update) {
	if upd.chatID != c.chatID {
		logger.Warnf("ignoring command from unauthorized chat %s", upd.chatID)
		c.replyTo(upd.chatID, "You are not authorized to use this bot.")
		return
	}
	fields := strings.Fields(upd.text)
	if len(fields) == 0 {
		return
	}
	cmd := strings.ToLower(fields[0])
	if at := strings.Index(cmd, "@"); at > 0 {
		cmd = cmd[:at]
	}
	switch cmd {
	case "/start":
		c.handleStart(fields[1:])
	case "/stop":
		c.handleStop()
	case "/check":
		c.handleCheck(ctx)
	case "/silent":
		c.handleSilent()
	case "/testemail":
		c.handleTestEmail()
	case "/status":
		c.handleStatus()
	default:
		c.reply("Unknown command. Available: /start [seconds], /stop, /check, /silent, /testemail, /status")
	}
}

func (c *Channel) handleStart(args []string) {
	var interval time.Duration
	if len(args) > 0 {
		secs, err := strconv.Atoi(args[0])
		if err != nil || secs <= 0 {
			c.reply(fmt.Sprintf("Invalid interval %q: expected a positive number of seconds.", args[0]))
			return
		}
		interval = time.Duration(secs) * time.Second
	}
	effective, err := c.controller.Start(interval)
	if err != nil {
		c.reply(fmt.Sprintf("Could not start: %v", err))
		return
	}
	c.reply(fmt.Sprintf("Watcher started! Checking every %d seconds.", int(effective.Seconds())))
}

func (c *Channel) handleStop() {
	if !c.controller.Stop() {
		c.reply("Watcher is not currently running.")
		return
	}
	c.reply("Watcher stopped.")
}

// handleCheck answers asynchronously: a slow probe (cycleMu wait plus the
// HTTP timeout) must not wedge the command loop, so /stop stays responsive.
func (c *Channel) handleCheck(ctx context.Context) {
	c.reply("Performing an immediate check...")
	go func() {
		available, err := c.controller.CheckOnce(ctx)
		if err != nil {
			c.reply(fmt.Sprintf("Check failed: %v", err))
			return
		}
		if available {
			c.reply("Tickets are AVAILABLE!")
			return
		}
		c.reply("Tickets are not available.")
	}()
}

func (c *Channel) handleSilent() {
	if c.controller.ToggleSilent() {
		c.reply("Silent mode is now ON. You will only be notified when tickets are found or a check fails.")
		return
	}
	c.reply("Silent mode is now OFF.")
}

func (c *Channel) handleTestEmail() {
	if c.email == nil {
		c.reply("Email channel is not configured.")
		return
	}
	c.reply("Sending a test email...")
	if err := c.email.SendTestEmail(); err != nil {
		c.reply(fmt.Sprintf("Failed to send test email: %v", err))
		return
	}
	c.reply("Test email sent successfully! Please check your inbox.")
}

func (c *Channel) handleStatus() {
	st := c.controller.Status()
	var b strings.Builder
	if st.Running {
		b.WriteString(fmt.Sprintf("Watching, interval %d seconds.", int(st.Interval.Seconds())))
	} else {
		b.WriteString("Stopped.")
	}
	if st.Silent {
		b.WriteString(" Silent mode on.")
	}
	if st.Last != nil {
		switch {
		case st.Last.Err != "":
			b.WriteString(fmt.Sprintf("\nLast check %s: failed (%s)",
				st.Last.CheckedAt.Format("15:04:05"), st.Last.Err))
		case st.Last.Available:
			b.WriteString(fmt.Sprintf("\nLast check %s: tickets available",
				st.Last.CheckedAt.Format("15:04:05")))
		default:
			b.WriteString(fmt.Sprintf("\nLast check %s: sold out",
				st.Last.CheckedAt.Format("15:04:05")))
		}
	}
	c.reply(b.String())
}

func (c *Channel) reply(text string) {
	if err := c.sender.SendText(text); err != nil {
		logger.Warnf("telegram reply failed: %v", err)
	}
}

// replyTo answers a chat other than the configured one, used only for the
// authorization refusal.
func (c *Channel) replyTo(chatID, text string) {
	if chatID == "" {
		return
	}
	if tg, ok := c.sender.(interface {
		SendTextTo(chatID, text string) error
	}); ok {
		if err := tg.SendTextTo(chatID, text); err != nil {
			logger.Warnf("telegram reply failed: %v", err)
		}
	}
}

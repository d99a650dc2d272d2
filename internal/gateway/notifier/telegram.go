package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Telegram pushes plain-text messages to the configured chat.
type Telegram struct {
	BotToken string
	ChatID   string
	BaseURL  string
	Client   *http.Client
}

const defaultTelegramAPI = "https://api.telegram.org"

func NewTelegram(botToken, chatID string) *Telegram {
	return &Telegram{
		BotToken: botToken,
		ChatID:   chatID,
		BaseURL:  defaultTelegramAPI,
		Client:   &http.Client{Timeout: 15 * time.Second},
	}
}

// SendText sends a text message to the configured chat, retrying up to
// 3 times.
func (t *Telegram) SendText(text string) error {
	return t.SendTextTo(t.ChatID, text)
}

// SendTextTo sends a text message to an explicit chat.
func (t *Telegram) SendTextTo(chatID, text string) error {
	if t.BotToken == "" || chatID == "" {
		return &Error{Channel: "telegram", Err: fmt.Errorf("incomplete telegram configuration")}
	}
	base := t.BaseURL
	if base == "" {
		base = defaultTelegramAPI
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", base, t.BotToken)

	payload := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	body, _ := json.Marshal(payload)

	var lastErr error
	for i := 0; i < 3; i++ {
		req, _ := http.NewRequest("POST", url, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := t.Client.Do(req)
		if err != nil {
			lastErr = err
			time.Sleep(time.Duration(i+1) * time.Second)
			continue
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode/100 == 2 {
			return nil
		}
		lastErr = fmt.Errorf("telegram status=%d", resp.StatusCode)
		time.Sleep(time.Duration(i+1) * time.Second)
	}
	return &Error{Channel: "telegram", Err: lastErr}
}

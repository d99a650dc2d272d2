package config

import (
	"fmt"
	"net/url"
	"strings"
)

func validate(c *Config) error {
	if err := c.Watch.validate(); err != nil {
		return err
	}
	if err := c.Probe.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	return nil
}

func (w *WatchConfig) validate() error {
	if w.IntervalSeconds <= 0 {
		return fmt.Errorf("watch.interval_seconds must be > 0")
	}
	if strings.TrimSpace(w.HistoryPath) == "" {
		return fmt.Errorf("watch.history_path cannot be empty")
	}
	return nil
}

func (p *ProbeConfig) validate() error {
	target := strings.TrimSpace(p.TargetURL)
	if target == "" {
		return fmt.Errorf("probe.target_url cannot be empty")
	}
	parsed, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("probe.target_url is not a valid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("probe.target_url must be http or https, got %q", parsed.Scheme)
	}
	if strings.TrimSpace(p.SoldOutMarker) == "" {
		return fmt.Errorf("probe.sold_out_marker cannot be empty")
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	if n.Telegram.Enabled {
		if n.Telegram.BotToken == "" || n.Telegram.ChatID == "" {
			return fmt.Errorf("telegram notification enabled but missing bot_token or chat_id")
		}
	}
	if n.Email.Enabled {
		if n.Email.APIKey == "" {
			return fmt.Errorf("email notification enabled but missing api_key")
		}
		if n.Email.FromEmail == "" || n.Email.Recipient == "" {
			return fmt.Errorf("email notification enabled but missing from_email or recipient")
		}
	}
	if !n.Telegram.Enabled && !n.Email.Enabled {
		return fmt.Errorf("at least one notification channel must be enabled")
	}
	return nil
}

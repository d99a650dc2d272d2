package config

import "strings"

// Config is the top-level tickwatch configuration.
type Config struct {
	App    AppConfig    `toml:"app"`
	Watch  WatchConfig  `toml:"watch"`
	Probe  ProbeConfig  `toml:"probe"`
	Notify NotifyConfig `toml:"notify"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
}

// WatchConfig controls the polling loop and its persistence.
type WatchConfig struct {
	IntervalSeconds int    `toml:"interval_seconds"`
	HistoryPath     string `toml:"history_path"`
	MessagesPath    string `toml:"messages_path"`
	HistoryLimit    int    `toml:"history_limit"`
}

// ProbeConfig describes the watched page.
type ProbeConfig struct {
	TargetURL      string `toml:"target_url"`
	SoldOutMarker  string `toml:"sold_out_marker"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	Referer        string `toml:"referer"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
	Email    EmailConfig    `toml:"email"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

// EmailConfig describes the SendGrid-backed email channel.
type EmailConfig struct {
	Enabled   bool   `toml:"enabled"`
	APIKey    string `toml:"api_key"`
	FromEmail string `toml:"from_email"`
	FromName  string `toml:"from_name"`
	Recipient string `toml:"recipient"`
}

// keySet tracks the config keys explicitly present in the file, so defaults
// only fill fields the user left out.
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault describes the default rule for a single field.
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}

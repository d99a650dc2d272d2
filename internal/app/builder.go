package app

import (
	"context"
	"fmt"
	"os"
	"time"

	twcfg "tickwatch/internal/config"
	"tickwatch/internal/gateway/notifier"
	"tickwatch/internal/gateway/telegram"
	"tickwatch/internal/messages"
	"tickwatch/internal/prober"
	"tickwatch/internal/store/checklog"
	adminhttp "tickwatch/internal/transport/http/admin"
	"tickwatch/internal/watcher"
)

// AppBuilder assembles the application from configuration. The fn fields let
// tests substitute individual construction steps.
type AppBuilder struct {
	cfg *twcfg.Config

	registryFn func(twcfg.WatchConfig) (*messages.Registry, error)
	proberFn   func(twcfg.ProbeConfig) (watcher.Prober, error)
	storeFn    func(twcfg.WatchConfig) (*checklog.Store, error)
	telegramFn func(twcfg.TelegramConfig) *notifier.Telegram
	emailFn    func(twcfg.EmailConfig) (notifier.EmailSender, error)
	adminFn    func(adminhttp.ServerConfig) (*adminhttp.Server, error)
}

type AppBuilderOption func(*AppBuilder)

func NewAppBuilder(cfg *twcfg.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:        cfg,
		registryFn: loadMessageRegistry,
		proberFn:   buildProber,
		storeFn:    buildStore,
		telegramFn: buildTelegram,
		emailFn:    buildEmail,
		adminFn:    adminhttp.NewServer,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// WithStore overrides the history store (tests).
func WithStore(store *checklog.Store) AppBuilderOption {
	return func(b *AppBuilder) {
		b.storeFn = func(twcfg.WatchConfig) (*checklog.Store, error) { return store, nil }
	}
}

// WithProber overrides the availability prober (tests).
func WithProber(p watcher.Prober) AppBuilderOption {
	return func(b *AppBuilder) {
		b.proberFn = func(twcfg.ProbeConfig) (watcher.Prober, error) { return p, nil }
	}
}

func loadMessageRegistry(cfg twcfg.WatchConfig) (*messages.Registry, error) {
	path := cfg.MessagesPath
	if path == "" {
		return messages.NewStatic(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return messages.NewStatic(), nil
	}
	return messages.NewRegistry(path)
}

func buildProber(cfg twcfg.ProbeConfig) (watcher.Prober, error) {
	return prober.New(cfg)
}

func buildStore(cfg twcfg.WatchConfig) (*checklog.Store, error) {
	return checklog.New(cfg.HistoryPath)
}

func buildTelegram(cfg twcfg.TelegramConfig) *notifier.Telegram {
	if !cfg.Enabled {
		return nil
	}
	return notifier.NewTelegram(cfg.BotToken, cfg.ChatID)
}

func buildEmail(cfg twcfg.EmailConfig) (notifier.EmailSender, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	return notifier.NewEmail(cfg)
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := b.cfg
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}

	registry, err := b.registryFn(cfg.Watch)
	if err != nil {
		return nil, fmt.Errorf("loading message templates failed: %w", err)
	}
	probe, err := b.proberFn(cfg.Probe)
	if err != nil {
		return nil, fmt.Errorf("building prober failed: %w", err)
	}
	store, err := b.storeFn(cfg.Watch)
	if err != nil {
		return nil, fmt.Errorf("opening check log failed: %w", err)
	}
	tg := b.telegramFn(cfg.Notify.Telegram)
	email, err := b.emailFn(cfg.Notify.Email)
	if err != nil {
		return nil, fmt.Errorf("building email notifier failed: %w", err)
	}

	var tgSender notifier.TextNotifier
	if tg != nil {
		tgSender = tg
	}
	multi := notifier.NewMulti(registry, tgSender, email)

	ctrl, err := watcher.NewController(watcher.Config{
		DefaultInterval: time.Duration(cfg.Watch.IntervalSeconds) * time.Second,
		Target:          cfg.Probe.TargetURL,
	}, probe, multi, store)
	if err != nil {
		return nil, fmt.Errorf("building watch controller failed: %w", err)
	}

	var channel *telegram.Channel
	if cfg.Notify.Telegram.Enabled {
		channel, err = telegram.NewChannel(
			cfg.Notify.Telegram.BotToken,
			cfg.Notify.Telegram.ChatID,
			ctrl, tg, multi,
		)
		if err != nil {
			return nil, fmt.Errorf("building telegram channel failed: %w", err)
		}
	}

	adminSrv, err := b.adminFn(adminhttp.ServerConfig{
		Addr:         cfg.App.HTTPAddr,
		Controller:   ctrl,
		History:      store,
		HistoryLimit: cfg.Watch.HistoryLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("building admin http server failed: %w", err)
	}

	return &App{
		cfg:        cfg,
		controller: ctrl,
		channel:    channel,
		adminHTTP:  adminSrv,
		store:      store,
		notify:     multi,
	}, nil
}

package app

import (
	"context"
	"fmt"

	twcfg "tickwatch/internal/config"
	"tickwatch/internal/gateway/notifier"
	"tickwatch/internal/gateway/telegram"
	"tickwatch/internal/logger"
	"tickwatch/internal/store/checklog"
	adminhttp "tickwatch/internal/transport/http/admin"
	"tickwatch/internal/watcher"

	"golang.org/x/sync/errgroup"
)

// App owns application-level orchestration: command channel, admin API and
// the watch controller they both drive.
type App struct {
	cfg        *twcfg.Config
	controller *watcher.Controller
	channel    *telegram.Channel
	adminHTTP  *adminhttp.Server
	store      *checklog.Store
	notify     *notifier.Multi
}

// NewApp builds the application from configuration (without starting it).
func NewApp(cfg *twcfg.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Controller exposes the watch controller (for testing harnesses).
func (a *App) Controller() *watcher.Controller {
	if a == nil {
		return nil
	}
	return a.controller
}

// Run serves the command channel and admin API until ctx is cancelled. The
// watcher itself starts polling only when a start command arrives.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer func() {
		a.controller.Stop()
		if a.store != nil {
			if err := a.store.Close(); err != nil {
				logger.Warnf("closing check log failed: %v", err)
			}
		}
	}()

	logger.InfoBlock(fmt.Sprintf(
		"tickwatch up\n  target:   %s\n  interval: %ds\n  http:     %s",
		a.cfg.Probe.TargetURL, a.cfg.Watch.IntervalSeconds, a.adminHTTP.Addr()))
	if a.channel != nil {
		if err := a.notify.AnnounceStartup(a.cfg.Probe.TargetURL); err != nil {
			logger.Warnf("startup announcement failed: %v", err)
		}
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := a.adminHTTP.Start(ctx); err != nil {
			return fmt.Errorf("admin http server error: %w", err)
		}
		return nil
	})
	if a.channel != nil {
		group.Go(func() error {
			return a.channel.Run(ctx)
		})
	}
	return group.Wait()
}

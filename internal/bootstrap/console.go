package bootstrap

import (
	"context"

	"tab-inspector/internal/config"
	"tab-inspector/internal/console"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// runConsole starts the command loop when APP_CONSOLE is set. The quit
// command shuts the whole application down; end of input does not, so the
// watcher keeps running with stdin detached.
func runConsole(lc fx.Lifecycle, shutdowner fx.Shutdowner, config *config.Config, consoleInterface *console.Interface, logger *zap.Logger) {
	if !config.AppConfig.Console {
		return
	}

	stopped := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := consoleInterface.Start(); err != nil {
					logger.Error("Console interface error", zap.Error(err))
				}
			}()

			go func() {
				select {
				case <-consoleInterface.Quit():
				case <-stopped:
					return
				}

				if err := shutdowner.Shutdown(); err != nil {
					logger.Debug("Shutdown request ignored", zap.Error(err))
				}
			}()

			return nil
		},
		OnStop: func(context.Context) error {
			close(stopped)

			return consoleInterface.Stop()
		},
	})
}

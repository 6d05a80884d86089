package bootstrap

import (
	"context"

	"tab-inspector/internal/monitor"
	"tab-inspector/internal/usecase"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// runMonitor seeds the detector on start, failing startup if the browser
// cannot be listed, then polls in the background until stop.
func runMonitor(lc fx.Lifecycle, detector *monitor.Detector, service *usecase.Service, logger *zap.Logger) {
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := detector.Start(ctx); err != nil {
				logger.Error("Failed to reach the browser", zap.Error(err))

				return err
			}

			var runCtx context.Context
			runCtx, cancel = context.WithCancel(context.Background())
			done = make(chan struct{})

			go func() {
				defer close(done)

				detector.Run(runCtx, service.Tabs.HandleChange)
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel == nil {
				return nil
			}

			cancel()

			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

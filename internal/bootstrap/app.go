package bootstrap

import (
	"time"

	"tab-inspector/internal/cdp"
	"tab-inspector/internal/config"
	"tab-inspector/internal/console"
	"tab-inspector/internal/dom"
	"tab-inspector/internal/httpapi"
	"tab-inspector/internal/markup"
	"tab-inspector/internal/monitor"
	"tab-inspector/internal/ports"
	"tab-inspector/internal/usecase"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// Module provides the whole engine without starting anything.
var Module = fx.Options(
	fx.Provide(
		config.GetConfig,
		newLogger,
		newTraceProvider,

		fx.Annotate(cdp.NewWSDialer, fx.As(new(cdp.Dialer))),
		fx.Annotate(cdp.NewTargetLister, fx.As(new(ports.TargetLister))),
		fx.Annotate(cdp.NewConnector, fx.As(new(ports.SessionFactory))),

		fx.Annotate(dom.NewBuilder, fx.As(new(ports.TreeBuilder))),
		fx.Annotate(dom.NewSerializer, fx.As(new(ports.TreeRenderer))),
		fx.Annotate(markup.NewConverter, fx.As(new(ports.MarkupConverter))),

		monitor.NewDetector,
		func(d *monitor.Detector) ports.TabTracker { return d },

		func(r *console.Reporter) ports.Notifier { return r },

		usecase.NewUsecase,
	),

	// Nothing else depends on the provider; it must be built for the global
	// tracer to be installed.
	fx.Invoke(func(*sdktrace.TracerProvider) {}),

	fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
		return &fxevent.ZapLogger{Logger: logger.Named("fx").WithOptions(zap.IncreaseLevel(zap.WarnLevel))}
	}),
)

// NewApp builds the long-running watcher: detector, HTTP surface and the
// interactive console.
func NewApp() *fx.App {
	return fx.New(
		Module,

		fx.Provide(
			console.NewReporter,
			console.NewInterface,
			httpapi.NewServer,
		),

		fx.Invoke(
			runMonitor,
			runHTTP,
			runConsole,
		),

		fx.StartTimeout(15*time.Second),
	)
}

// NewCommandApp builds the engine for one-shot commands. The caller
// populates what it needs and drives Start and Stop itself.
func NewCommandApp(opts ...fx.Option) *fx.App {
	return fx.New(
		Module,
		fx.Provide(console.NewStderrReporter),
		fx.Options(opts...),
		fx.StartTimeout(15*time.Second),
	)
}

package usecase

import (
	"tab-inspector/internal/config"
	"tab-inspector/internal/ports"
	"tab-inspector/internal/usecase/adapters"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Service struct {
	Tabs       adapters.TabService
	Highlights adapters.HighlightService
}

type Params struct {
	fx.In

	Logger   *zap.Logger
	Config   *config.Config
	Sessions ports.SessionFactory
	Builder  ports.TreeBuilder
	Renderer ports.TreeRenderer
	Markup   ports.MarkupConverter
	Tracker  ports.TabTracker
	Notifier ports.Notifier
}

func NewUsecase(params Params) *Service {
	factory := newServiceFactory(params)
	highlights := factory.CreateHighlightService()

	return &Service{
		Tabs:       factory.CreateTabService(highlights),
		Highlights: highlights,
	}
}

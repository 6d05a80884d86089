package usecase

type serviceFactory struct {
	deps Params
}

func newServiceFactory(deps Params) *serviceFactory {
	return &serviceFactory{
		deps: deps,
	}
}

func (f *serviceFactory) CreateHighlightService() *HighlightService {
	return NewHighlightService(HighlightServiceParams{
		Logger:   f.deps.Logger,
		Sessions: f.deps.Sessions,
	})
}

// CreateTabService wires the tab pipeline to highlights so that cached
// highlight state is dropped together with snapshots.
func (f *serviceFactory) CreateTabService(highlights *HighlightService) *TabService {
	return NewTabService(TabServiceParams{
		Config:     f.deps.Config,
		Logger:     f.deps.Logger,
		Sessions:   f.deps.Sessions,
		Builder:    f.deps.Builder,
		Renderer:   f.deps.Renderer,
		Markup:     f.deps.Markup,
		Tracker:    f.deps.Tracker,
		Notifier:   f.deps.Notifier,
		Highlights: highlights,
	})
}

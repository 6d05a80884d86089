package usecase

import (
	"bytes"
	"context"
	"slices"
	"sync"
	"time"

	"tab-inspector/internal/cdp"
	"tab-inspector/internal/config"
	"tab-inspector/internal/dom"
	"tab-inspector/internal/entity"
	"tab-inspector/internal/ports"
	"tab-inspector/pkg/apperr"
	"tab-inspector/pkg/logg"
	"tab-inspector/pkg/tracing"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	tabServiceName = "TabService"
	tabTracer      = "usecase.tabs"
)

type TabService struct {
	monitor  *config.MonitorConfig
	snapshot *config.SnapshotConfig
	logger   *zap.Logger
	tracer   trace.Tracer

	sessions   ports.SessionFactory
	builder    ports.TreeBuilder
	renderer   ports.TreeRenderer
	markup     ports.MarkupConverter
	tracker    ports.TabTracker
	notifier   ports.Notifier
	highlights *HighlightService

	mu        sync.RWMutex
	snapshots map[string]entity.PageSnapshot
	pages     map[string]entity.TabReference
}

type TabServiceParams struct {
	Config     *config.Config
	Logger     *zap.Logger
	Sessions   ports.SessionFactory
	Builder    ports.TreeBuilder
	Renderer   ports.TreeRenderer
	Markup     ports.MarkupConverter
	Tracker    ports.TabTracker
	Notifier   ports.Notifier
	Highlights *HighlightService
}

func NewTabService(params TabServiceParams) *TabService {
	return &TabService{
		monitor:    params.Config.MonitorConfig,
		snapshot:   params.Config.SnapshotConfig,
		logger:     params.Logger.With(zap.String(logg.Layer, tabServiceName)),
		tracer:     otel.Tracer(tabTracer),
		sessions:   params.Sessions,
		builder:    params.Builder,
		renderer:   params.Renderer,
		markup:     params.Markup,
		tracker:    params.Tracker,
		notifier:   params.Notifier,
		highlights: params.Highlights,
		snapshots:  make(map[string]entity.PageSnapshot),
		pages:      make(map[string]entity.TabReference),
	}
}

func (s *TabService) Tabs() []entity.TabReference {
	return s.tracker.References()
}

func (s *TabService) Tab(tabID string) (entity.TabReference, bool) {
	return s.tracker.Lookup(tabID)
}

// HandleChange drops cached state for removed and navigated tabs, then
// processes added and navigated tabs concurrently. Per-tab failures are
// logged and never returned. It waits for all processing to finish.
func (s *TabService) HandleChange(ctx context.Context, event entity.TabChangeEvent) {
	const op = "HandleChange"
	logger := s.logger.With(zap.String(logg.Operation, op))

	s.notifier.TabsChanged(event)

	for _, ref := range event.Removed {
		s.invalidate(ref.ID)
		s.notifier.TabClosed(ref)
	}

	work := make([]entity.BrowserTarget, 0, len(event.Added)+len(event.Navigated))
	work = append(work, event.Added...)

	for _, nav := range event.Navigated {
		s.invalidate(nav.Target.ID)
		work = append(work, nav.Target)
	}

	if len(work) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, s.monitor.MaxConcurrency))

	for _, target := range work {
		g.Go(func() error {
			if _, err := s.ProcessTab(gctx, target); err != nil {
				if apperr.HasCode(err, apperr.CodeCancelled) || apperr.HasCode(err, apperr.CodeStale) {
					logger.Debug("Tab processing discarded", zap.String(logg.TabID, target.ID), zap.Error(err))

					return nil
				}

				logger.Warn("Tab processing failed",
					zap.String(logg.TabID, target.ID),
					zap.String(logg.URL, target.URL),
					zap.String(logg.Code, apperr.CodeOf(err)),
					zap.Error(err))
			}

			return nil
		})
	}

	_ = g.Wait()
}

// ProcessTab snapshots one tab over a fresh owned session and publishes the
// result. Nothing is published when ctx is cancelled before the end, or when
// the tab is no longer tracked at the URL the run started from.
func (s *TabService) ProcessTab(ctx context.Context, target entity.BrowserTarget) (snap *entity.PageSnapshot, err error) {
	const op = "ProcessTab"
	logger := s.logger.With(
		zap.String(logg.Operation, op),
		zap.String(logg.TabID, target.ID),
		zap.String(logg.URL, target.URL))

	ctx, step := tracing.StartSpan(ctx, s.tracer, logger, op,
		attribute.String(logg.TabID, target.ID),
		attribute.String(logg.URL, target.URL))
	defer func() {
		step.End(err)
	}()

	ref := entity.NewTabReference(target)
	session := s.sessions.Open(ref)
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			logger.Debug("Failed to close session", zap.Error(closeErr))
		}
	}()

	loaded, err := session.WaitForLoad(ctx, s.monitor.LoadTimeout)
	if err != nil {
		return nil, s.stageError(op, apperr.StageSession, target.ID, err)
	}
	if !loaded {
		logger.Debug("Proceeding before load completed")
	}

	if err := sleep(ctx, s.monitor.SettleDelay); err != nil {
		return nil, s.stageError(op, apperr.StageSession, target.ID, err)
	}

	url, title, err := session.PageInfo(ctx)
	if err != nil {
		return nil, s.stageError(op, apperr.StageSession, target.ID, err)
	}
	if url == "" {
		url = ref.URL
	}
	if title == "" {
		title = ref.Title
	}
	session.SetURL(url)

	var html string
	if s.monitor.FetchMarkup {
		if html, err = session.OuterHTML(ctx); err != nil {
			logger.Warn("Failed to fetch markup", zap.Error(err))
			html = ""
		}
	}

	root, index, err := s.builder.BuildTree(ctx, session, s.treeOptions())
	if err != nil {
		return nil, s.stageError(op, apperr.StageSnapshot, target.ID, err)
	}

	result := entity.PageSnapshot{
		ID:            uuid.New(),
		TabID:         target.ID,
		URL:           url,
		Title:         title,
		DOM:           s.renderer.Render(root),
		SelectorCount: len(index),
		Selectors:     selectors(index),
	}

	if s.monitor.Markdown && html != "" {
		if result.Markdown, err = s.markup.Markdown(html, url); err != nil {
			logger.Warn("Failed to convert markup", zap.Error(err))
		}
	}

	if s.monitor.Screenshots {
		if result.Screenshot, err = session.CaptureScreenshot(ctx, cdp.ScreenshotPNG, 0); err != nil {
			logger.Warn("Failed to capture screenshot", zap.Error(err))
		}
	}

	if ctx.Err() != nil {
		return nil, apperr.Wrap(op, apperr.CodeCancelled, ctx.Err(), map[string]any{
			apperr.MetaTabID: target.ID,
		})
	}

	result.TakenAt = time.Now()

	if !s.publish(target, result, ref.WithPage(url, title, html)) {
		return nil, apperr.Wrap(op, apperr.CodeStale, errTabMoved(target.ID), map[string]any{
			apperr.MetaReason: "tab_changed_during_snapshot",
			apperr.MetaTabID:  target.ID,
			apperr.MetaURL:    target.URL,
		})
	}

	logger.Info("Snapshot ready",
		zap.String("title", title),
		zap.Int("selectors", result.SelectorCount))

	return &result, nil
}

// Snapshot processes a tracked tab on demand.
func (s *TabService) Snapshot(ctx context.Context, tabID string) (*entity.PageSnapshot, error) {
	const op = "Snapshot"

	ref, ok := s.tracker.Lookup(tabID)
	if !ok {
		return nil, apperr.NotFoundError(op, errTabNotTracked(tabID))
	}

	return s.ProcessTab(ctx, entity.BrowserTarget{
		ID:                   ref.ID,
		Type:                 entity.TargetTypePage,
		Title:                ref.Title,
		URL:                  ref.URL,
		WebSocketDebuggerURL: ref.Endpoint,
	})
}

func (s *TabService) LatestSnapshot(tabID string) (entity.PageSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[tabID]
	if !ok {
		return entity.PageSnapshot{}, false
	}

	snap.Screenshot = bytes.Clone(snap.Screenshot)
	snap.Selectors = slices.Clone(snap.Selectors)

	return snap, true
}

// Page returns the tab as resolved by its last published snapshot, including
// the fetched markup.
func (s *TabService) Page(tabID string) (entity.TabReference, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	page, ok := s.pages[tabID]

	return page, ok
}

// publish stores the result only while the tab is still tracked at the URL
// the run started from. The check runs under the lock invalidate takes.
func (s *TabService) publish(target entity.BrowserTarget, snap entity.PageSnapshot, page entity.TabReference) bool {
	s.mu.Lock()

	if current, ok := s.tracker.Lookup(target.ID); !ok || current.URL != target.URL {
		s.mu.Unlock()

		return false
	}

	s.snapshots[snap.TabID] = snap
	s.pages[snap.TabID] = page
	s.mu.Unlock()

	s.notifier.SnapshotReady(snap)

	return true
}

func (s *TabService) invalidate(tabID string) {
	s.mu.Lock()
	delete(s.snapshots, tabID)
	delete(s.pages, tabID)
	s.mu.Unlock()

	s.highlights.Invalidate(tabID)
}

func (s *TabService) treeOptions() dom.Options {
	opts := dom.DefaultOptions()
	opts.DebugMode = s.logger.Core().Enabled(zap.DebugLevel)

	if s.snapshot != nil {
		opts.HighlightElements = s.snapshot.HighlightElements
		opts.ViewportExpansion = s.snapshot.ViewportExpansion
	}

	return opts
}

func (s *TabService) stageError(op, stage, tabID string, err error) error {
	return apperr.Wrap(op, apperr.CodeOf(err), err, map[string]any{
		apperr.MetaStage: stage,
		apperr.MetaTabID: tabID,
	})
}

func selectors(index dom.SelectorIndex) []entity.Selector {
	out := make([]entity.Selector, 0, len(index))

	for _, i := range index.Indices() {
		el := index[i]
		sel := entity.Selector{Index: i, XPath: el.XPath, Element: el.String()}

		if input := el.FileUploadElement(); input != nil {
			sel.FileInput = input.XPath
		}

		out = append(out, sel)
	}

	return out
}

type errTabMoved string

func (e errTabMoved) Error() string {
	return "tab " + string(e) + " navigated or closed while it was being snapshotted"
}

type errTabNotTracked string

func (e errTabNotTracked) Error() string {
	return "tab " + string(e) + " is not tracked"
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return apperr.Wrap("sleep", apperr.CodeCancelled, ctx.Err(), nil)
	case <-timer.C:
		return nil
	}
}

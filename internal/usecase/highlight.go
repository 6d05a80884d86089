package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"

	"tab-inspector/internal/cdp"
	"tab-inspector/internal/entity"
	"tab-inspector/internal/ports"
	"tab-inspector/pkg/apperr"
	"tab-inspector/pkg/logg"
	"tab-inspector/pkg/tracing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	highlightServiceName  = "HighlightService"
	highlightTracer       = "usecase.highlight"
	defaultHighlightColor = "yellow"
	highlightContainerID  = "tab-inspector-selector-highlight"
	highlightOverlayAttr  = "data-tab-inspector-overlay"
)

// alternateColors maps a base colour to the one used when the same base is
// requested twice in a row on a tab.
var alternateColors = map[string]string{
	"yellow": "orange",
	"blue":   "purple",
	"red":    "brown",
	"lime":   "green",
}

type highlightState struct {
	selector string
	color    string
	active   bool
}

type HighlightService struct {
	sessions ports.SessionFactory
	logger   *zap.Logger
	tracer   trace.Tracer

	mu     sync.Mutex
	states map[string]highlightState
}

type HighlightServiceParams struct {
	fx.In

	Logger   *zap.Logger
	Sessions ports.SessionFactory
}

func NewHighlightService(params HighlightServiceParams) *HighlightService {
	return &HighlightService{
		sessions: params.Sessions,
		logger:   params.Logger.With(zap.String(logg.Layer, highlightServiceName)),
		tracer:   otel.Tracer(highlightTracer),
		states:   make(map[string]highlightState),
	}
}

type drawArgs struct {
	Selector    string `json:"selector"`
	Border      string `json:"border"`
	Background  string `json:"background"`
	ContainerID string `json:"containerId"`
	OverlayAttr string `json:"overlayAttr"`
}

// Highlight clears any previous overlays on the tab and draws new ones over
// every element matching req.Selector. Both steps share one session.
func (s *HighlightService) Highlight(ctx context.Context, tab entity.TabReference, req entity.HighlightRequest) (res *entity.HighlightResult, err error) {
	const op = "Highlight"
	logger := s.logger.With(
		zap.String(logg.Operation, op),
		zap.String(logg.TabID, tab.ID),
		zap.String(logg.Selector, req.Selector))

	ctx, step := tracing.StartSpan(ctx, s.tracer, logger, op,
		attribute.String(logg.TabID, tab.ID),
		attribute.String(logg.Selector, req.Selector))
	defer func() {
		step.End(err)
	}()

	selector := strings.TrimSpace(req.Selector)
	if selector == "" {
		return nil, apperr.InvalidReqError(op, "selector", errors.New("selector cannot be empty"))
	}

	color := s.nextColor(tab.ID, req.Color)
	if color != req.Color && req.Color != "" {
		logger.Debug("Alternating highlight colour", zap.String("requested", req.Color), zap.String("color", color))
	}

	session, channel, err := s.sessions.Attach(ctx, tab)
	if err != nil {
		s.deactivate(tab.ID)

		return nil, err
	}
	defer func() {
		_ = session.Close()

		if closeErr := channel.Close(); closeErr != nil {
			logger.Debug("Failed to close highlight channel", zap.Error(closeErr))
		}
	}()

	if _, err := s.clear(ctx, session); err != nil {
		logger.Debug("Clearing previous overlays failed", zap.Error(err))
	}

	var matched int

	_, err = evaluateInto(ctx, session, drawHighlightScript(), drawArgs{
		Selector:    selector,
		Border:      "2px solid " + color,
		Background:  "color-mix(in srgb, " + color + " 20%, transparent)",
		ContainerID: highlightContainerID,
		OverlayAttr: highlightOverlayAttr,
	}, &matched)
	if err != nil {
		s.deactivate(tab.ID)
		logger.Error("Highlight failed", zap.Error(err))

		return nil, apperr.Wrap(op, apperr.CodeOf(err), err, map[string]any{
			apperr.MetaStage:    apperr.StageHighlight,
			apperr.MetaTabID:    tab.ID,
			apperr.MetaSelector: selector,
		})
	}

	s.mu.Lock()
	s.states[tab.ID] = highlightState{selector: selector, color: color, active: true}
	s.mu.Unlock()

	logger.Info("Highlighted elements", zap.Int("matched", matched), zap.String("color", color))

	return &entity.HighlightResult{
		TabID:    tab.ID,
		Selector: selector,
		Color:    color,
		Matched:  matched,
	}, nil
}

// Clear removes overlays from the tab and forgets its highlight state. A tab
// that has gone away is not an error.
func (s *HighlightService) Clear(ctx context.Context, tab entity.TabReference) (err error) {
	const op = "Clear"
	logger := s.logger.With(zap.String(logg.Operation, op), zap.String(logg.TabID, tab.ID))

	ctx, step := tracing.StartSpan(ctx, s.tracer, logger, op, attribute.String(logg.TabID, tab.ID))
	defer func() {
		step.End(err)
	}()

	s.Invalidate(tab.ID)

	session := s.sessions.Open(tab)
	defer func() {
		_ = session.Close()
	}()

	removed, err := s.clear(ctx, session)
	if errors.Is(err, cdp.ErrConnection) {
		logger.Debug("Tab unreachable while clearing highlights", zap.Error(err))

		return nil
	}
	if err != nil {
		return apperr.Wrap(op, apperr.CodeOf(err), err, map[string]any{
			apperr.MetaStage: apperr.StageHighlight,
			apperr.MetaTabID: tab.ID,
		})
	}

	logger.Debug("Cleared highlights", zap.Int("removed", removed))

	return nil
}

// Rehighlight redraws the tab's last highlight. It returns nil when the tab
// has no active highlight.
func (s *HighlightService) Rehighlight(ctx context.Context, tab entity.TabReference) (*entity.HighlightResult, error) {
	s.mu.Lock()
	state, ok := s.states[tab.ID]
	s.mu.Unlock()

	if !ok || !state.active {
		return nil, nil
	}

	return s.Highlight(ctx, tab, entity.HighlightRequest{Selector: state.selector, Color: state.color})
}

func (s *HighlightService) Screenshot(ctx context.Context, tab entity.TabReference, format string, quality int) (img []byte, err error) {
	const op = "Screenshot"
	logger := s.logger.With(zap.String(logg.Operation, op), zap.String(logg.TabID, tab.ID))

	ctx, step := tracing.StartSpan(ctx, s.tracer, logger, op, attribute.String(logg.TabID, tab.ID))
	defer func() {
		step.End(err)
	}()

	session := s.sessions.Open(tab)
	defer func() {
		_ = session.Close()
	}()

	img, err = session.CaptureScreenshot(ctx, format, quality)
	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodeOf(err), err, map[string]any{
			apperr.MetaStage: apperr.StageScreenshot,
			apperr.MetaTabID: tab.ID,
		})
	}

	return img, nil
}

// Invalidate forgets the tab's highlight state without touching the page.
func (s *HighlightService) Invalidate(tabID string) {
	s.mu.Lock()
	delete(s.states, tabID)
	s.mu.Unlock()
}

// Active reports the tab's current highlight, if any.
func (s *HighlightService) Active(tabID string) (selector, color string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, found := s.states[tabID]
	if !found || !state.active {
		return "", "", false
	}

	return state.selector, state.color, true
}

func (s *HighlightService) nextColor(tabID, requested string) string {
	if requested == "" {
		requested = defaultHighlightColor
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if alt, ok := alternateColors[requested]; ok && s.states[tabID].color == requested {
		return alt
	}

	return requested
}

func (s *HighlightService) deactivate(tabID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if state, ok := s.states[tabID]; ok {
		state.active = false
		s.states[tabID] = state
	}
}

func (s *HighlightService) clear(ctx context.Context, session ports.PageSession) (int, error) {
	var removed int

	_, err := evaluateInto(ctx, session, clearHighlightScript(), map[string]string{
		"containerId": highlightContainerID,
	}, &removed)

	return removed, err
}

package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"tab-inspector/internal/config"
	"tab-inspector/internal/entity"
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
	targetListerName   = "TargetLister"
	targetListerTracer = "cdp.targets"
	defaultTitle       = "Untitled"
	blankURL           = "about:blank"
)

type TargetLister struct {
	listURL    string
	logger     *zap.Logger
	tracer     trace.Tracer
	httpClient *http.Client
}

type ListerParams struct {
	fx.In

	Config *config.Config
	Logger *zap.Logger
}

func NewTargetLister(params ListerParams) *TargetLister {
	return &TargetLister{
		listURL: params.Config.BrowserConfig.ListURL(),
		logger:  params.Logger.With(zap.String(logg.Layer, targetListerName)),
		tracer:  otel.Tracer(targetListerTracer),
		httpClient: &http.Client{
			Timeout: params.Config.BrowserConfig.ListTimeout,
		},
	}
}

type rawTarget struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	Title                string `json:"title"`
	URL                  string `json:"url"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
	DevtoolsFrontendURL  string `json:"devtoolsFrontendUrl"`
}

// ListTargets returns the page targets currently reported by the browser.
func (l *TargetLister) ListTargets(ctx context.Context) (targets []entity.BrowserTarget, err error) {
	const op = "ListTargets"
	logger := l.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, l.tracer, logger, op, attribute.String("url", l.listURL))
	defer func() {
		step.End(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.listURL, nil)
	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "build_request_failed",
			apperr.MetaURL:    l.listURL,
		})
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodeUnavailable, err, map[string]any{
			apperr.MetaReason: "browser_unreachable",
			apperr.MetaStage:  apperr.StageListing,
			apperr.MetaURL:    l.listURL,
		})
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

		return nil, apperr.Wrap(op, apperr.CodeUnavailable, fmt.Errorf("status %d: %s", resp.StatusCode, body), map[string]any{
			apperr.MetaReason: "unexpected_status",
			apperr.MetaStage:  apperr.StageListing,
			apperr.MetaURL:    l.listURL,
		})
	}

	var raw []rawTarget
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, apperr.Wrap(op, apperr.CodeMalformedResult, err, map[string]any{
			apperr.MetaReason: "decode_failed",
			apperr.MetaStage:  apperr.StageListing,
		})
	}

	targets = make([]entity.BrowserTarget, 0, len(raw))

	for _, t := range raw {
		if t.Type != entity.TargetTypePage {
			continue
		}

		target := entity.BrowserTarget{
			ID:                   t.ID,
			Type:                 t.Type,
			Title:                t.Title,
			URL:                  t.URL,
			WebSocketDebuggerURL: t.WebSocketDebuggerURL,
			DevtoolsFrontendURL:  t.DevtoolsFrontendURL,
		}

		if target.Title == "" {
			target.Title = defaultTitle
		}

		if target.URL == "" {
			target.URL = blankURL
		}

		targets = append(targets, target)
	}

	step.SetAttributes(attribute.Int("targets", len(targets)))
	logger.Debug("Listed targets", zap.Int("pages", len(targets)), zap.Int("total", len(raw)))

	return targets, nil
}

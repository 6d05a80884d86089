package monitor

import (
	"context"
	"sort"
	"sync"
	"time"

	"tab-inspector/internal/config"
	"tab-inspector/internal/entity"
	"tab-inspector/internal/ports"
	"tab-inspector/pkg/apperr"
	"tab-inspector/pkg/logg"
	"tab-inspector/pkg/tracing"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	detectorName   = "TabChangeDetector"
	detectorTracer = "monitor.detector"
)

// Handler receives every non-empty change event. It runs on the poll
// goroutine, and ctx is cancelled when the detector stops.
type Handler func(ctx context.Context, event entity.TabChangeEvent)

// Detector polls the target listing and reports added, removed and
// navigated tabs. Only the poll goroutine writes the reference set.
type Detector struct {
	lister   ports.TargetLister
	filter   *Filter
	interval time.Duration
	logger   *zap.Logger
	tracer   trace.Tracer

	mu   sync.RWMutex
	refs map[string]entity.TabReference
}

type DetectorParams struct {
	fx.In

	Config *config.Config
	Logger *zap.Logger
	Lister ports.TargetLister
}

func NewDetector(params DetectorParams) (*Detector, error) {
	filter, err := NewFilter(params.Config.MonitorConfig.IgnoreURLs)
	if err != nil {
		return nil, err
	}

	return &Detector{
		lister:   params.Lister,
		filter:   filter,
		interval: params.Config.MonitorConfig.PollInterval,
		logger:   params.Logger.With(zap.String(logg.Layer, detectorName)),
		tracer:   otel.Tracer(detectorTracer),
		refs:     map[string]entity.TabReference{},
	}, nil
}

// Start seeds the reference set from the current listing. A listing failure
// here is returned, unlike failures during Run.
func (d *Detector) Start(ctx context.Context) (err error) {
	const op = "Detector.Start"

	ctx, step := tracing.StartSpan(ctx, d.tracer, d.logger, op)
	defer func() {
		step.End(err)
	}()

	targets, err := d.lister.ListTargets(ctx)
	if err != nil {
		return apperr.Wrap(op, apperr.CodeUnavailable, err, map[string]any{
			apperr.MetaReason: "initial_listing_failed",
			apperr.MetaStage:  apperr.StageMonitor,
		})
	}

	_, next := Diff(nil, d.filter.Apply(targets))
	d.replace(next)

	d.logger.Info("Tracking tabs", zap.String(logg.Operation, op), zap.Int("tabs", len(next)))

	return nil
}

// Poll runs one detection cycle. It returns nil when nothing changed. On a
// listing failure the reference set is left as it was.
func (d *Detector) Poll(ctx context.Context) (event *entity.TabChangeEvent, err error) {
	const op = "Detector.Poll"

	cycleID := uuid.NewString()
	logger := d.logger.With(zap.String(logg.Operation, op), zap.String(logg.CycleID, cycleID))

	ctx, step := tracing.StartSpan(ctx, d.tracer, logger, op, attribute.String(logg.CycleID, cycleID))
	defer func() {
		step.End(err)
	}()

	targets, err := d.lister.ListTargets(ctx)
	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodePollFailed, err, map[string]any{
			apperr.MetaReason: "listing_failed",
			apperr.MetaStage:  apperr.StageMonitor,
		})
	}

	d.mu.RLock()
	prev := d.refs
	d.mu.RUnlock()

	changes, next := Diff(prev, d.filter.Apply(targets))
	d.replace(next)

	if changes.Empty() {
		return nil, nil
	}

	logger.Debug("Tabs changed",
		zap.Int("added", len(changes.Added)),
		zap.Int("removed", len(changes.Removed)),
		zap.Int("navigated", len(changes.Navigated)))

	return &changes, nil
}

// Run polls until ctx is cancelled, sleeping only for what is left of the
// interval after each cycle.
func (d *Detector) Run(ctx context.Context, handle Handler) {
	logger := d.logger.With(zap.String(logg.Operation, "Detector.Run"))
	logger.Info("Monitoring started", zap.Duration("interval", d.interval))

	for {
		if ctx.Err() != nil {
			logger.Info("Monitoring stopped")

			return
		}

		started := time.Now()

		event, err := d.Poll(ctx)
		switch {
		case err != nil && ctx.Err() == nil:
			logger.Warn("Poll failed", zap.String(logg.Code, apperr.CodeOf(err)), zap.Error(err))
		case event != nil:
			handle(ctx, *event)
		}

		wait := max(0, d.interval-time.Since(started))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}
}

// References returns a copy of the tracked tabs sorted by id.
func (d *Detector) References() []entity.TabReference {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]entity.TabReference, 0, len(d.refs))
	for _, id := range sortedIDs(d.refs) {
		out = append(out, d.refs[id])
	}

	return out
}

func (d *Detector) Lookup(tabID string) (entity.TabReference, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ref, ok := d.refs[tabID]

	return ref, ok
}

func (d *Detector) replace(next map[string]entity.TabReference) {
	d.mu.Lock()
	d.refs = next
	d.mu.Unlock()
}

func sortedIDs(refs map[string]entity.TabReference) []string {
	ids := make([]string, 0, len(refs))
	for id := range refs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return ids
}

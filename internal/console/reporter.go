package console

import (
	"fmt"
	"io"
	"os"
	"sync"

	"tab-inspector/internal/entity"
	"tab-inspector/pkg/logg"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Reporter prints engine events to the terminal. Callbacks arrive from the
// poll goroutine and from per-tab workers, so writes are serialized.
type Reporter struct {
	logger *zap.Logger

	mu  sync.Mutex
	out io.Writer
}

type ReporterParams struct {
	fx.In

	Logger *zap.Logger
}

func NewReporter(params ReporterParams) *Reporter {
	return newReporter(params.Logger, os.Stdout)
}

// NewStderrReporter is used by one-shot commands whose stdout carries the
// command result.
func NewStderrReporter(params ReporterParams) *Reporter {
	return newReporter(params.Logger, os.Stderr)
}

func newReporter(logger *zap.Logger, out io.Writer) *Reporter {
	return &Reporter{
		logger: logger.With(zap.String(logg.Layer, "Reporter")),
		out:    out,
	}
}

func (r *Reporter) TabsChanged(event entity.TabChangeEvent) {
	for _, t := range event.Added {
		r.printf("+ %s  %s\n", t.ID, t.URL)
	}

	for _, nav := range event.Navigated {
		r.printf("~ %s  %s -> %s\n", nav.Target.ID, nav.Previous.URL, nav.Target.URL)
	}

	r.logger.Debug("Tabs changed", zap.Int("current", len(event.Current)))
}

func (r *Reporter) SnapshotReady(snap entity.PageSnapshot) {
	r.printf("= %s  %q  %d selectors  %s\n", snap.TabID, snap.Title, snap.SelectorCount, snap.URL)
}

func (r *Reporter) TabClosed(ref entity.TabReference) {
	r.printf("- %s  %s\n", ref.ID, ref.URL)
}

func (r *Reporter) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := fmt.Fprintf(r.out, format, args...); err != nil {
		r.logger.Debug("Failed to write to terminal", zap.Error(err))
	}
}

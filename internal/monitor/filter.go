package monitor

import (
	"net/url"

	"tab-inspector/internal/entity"
	"tab-inspector/pkg/apperr"

	"github.com/gobwas/glob"
)

// Filter decides which page targets are worth tracking.
type Filter struct {
	ignore []glob.Glob
}

// NewFilter compiles the ignore patterns. '*' does not cross '/' and '**'
// matches anything.
func NewFilter(patterns []string) (*Filter, error) {
	const op = "NewFilter"

	f := &Filter{ignore: make([]glob.Glob, 0, len(patterns))}

	for _, p := range patterns {
		if p == "" {
			continue
		}

		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, apperr.Wrap(op, apperr.CodeInvalidArgument, err, map[string]any{
				apperr.MetaField:  "MONITOR_IGNORE_URLS",
				apperr.MetaReason: "invalid_glob",
				apperr.MetaURL:    p,
			})
		}

		f.ignore = append(f.ignore, g)
	}

	return f, nil
}

func (f *Filter) Relevant(t entity.BrowserTarget) bool {
	if t.ID == "" || t.URL == "" || t.WebSocketDebuggerURL == "" {
		return false
	}

	u, err := url.Parse(t.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}

	for _, g := range f.ignore {
		if g.Match(t.URL) {
			return false
		}
	}

	return true
}

// Apply keeps the relevant targets, preserving order.
func (f *Filter) Apply(targets []entity.BrowserTarget) []entity.BrowserTarget {
	out := make([]entity.BrowserTarget, 0, len(targets))

	for _, t := range targets {
		if f.Relevant(t) {
			out = append(out, t)
		}
	}

	return out
}

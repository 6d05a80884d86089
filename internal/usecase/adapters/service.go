package adapters

import (
	"context"

	"tab-inspector/internal/entity"
)

type TabService interface {
	Tabs() []entity.TabReference
	Tab(tabID string) (entity.TabReference, bool)
	HandleChange(ctx context.Context, event entity.TabChangeEvent)
	ProcessTab(ctx context.Context, target entity.BrowserTarget) (*entity.PageSnapshot, error)
	Snapshot(ctx context.Context, tabID string) (*entity.PageSnapshot, error)
	LatestSnapshot(tabID string) (entity.PageSnapshot, bool)
	Page(tabID string) (entity.TabReference, bool)
}

type HighlightService interface {
	Highlight(ctx context.Context, tab entity.TabReference, req entity.HighlightRequest) (*entity.HighlightResult, error)
	Clear(ctx context.Context, tab entity.TabReference) error
	Rehighlight(ctx context.Context, tab entity.TabReference) (*entity.HighlightResult, error)
	Screenshot(ctx context.Context, tab entity.TabReference, format string, quality int) ([]byte, error)
	Invalidate(tabID string)
	Active(tabID string) (selector, color string, ok bool)
}

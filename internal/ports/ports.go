package ports

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"tab-inspector/internal/dom"
	"tab-inspector/internal/entity"
)

type TargetLister interface {
	ListTargets(ctx context.Context) ([]entity.BrowserTarget, error)
}

// PageSession is a protocol session bound to one tab.
type PageSession interface {
	Evaluate(ctx context.Context, expression string, arg any) (json.RawMessage, error)
	URL() string
	SetURL(url string)
	WaitForLoad(ctx context.Context, timeout time.Duration) (bool, error)
	PageInfo(ctx context.Context) (url, title string, err error)
	OuterHTML(ctx context.Context) (string, error)
	CaptureScreenshot(ctx context.Context, format string, quality int) ([]byte, error)
	Close() error
}

type SessionFactory interface {
	// Open returns a session that owns its channel.
	Open(tab entity.TabReference) PageSession
	// Attach dials a channel the caller keeps and returns a session
	// borrowing it. Closing the session leaves the channel open.
	Attach(ctx context.Context, tab entity.TabReference) (PageSession, io.Closer, error)
}

type TreeBuilder interface {
	BuildTree(ctx context.Context, session dom.Evaluator, opts dom.Options) (*dom.ElementNode, dom.SelectorIndex, error)
}

type TreeRenderer interface {
	Render(root *dom.ElementNode) string
}

type MarkupConverter interface {
	Markdown(html, pageURL string) (string, error)
}

type TabTracker interface {
	References() []entity.TabReference
	Lookup(tabID string) (entity.TabReference, bool)
}

// Notifier receives everything the engine publishes.
type Notifier interface {
	TabsChanged(event entity.TabChangeEvent)
	SnapshotReady(snapshot entity.PageSnapshot)
	TabClosed(ref entity.TabReference)
}

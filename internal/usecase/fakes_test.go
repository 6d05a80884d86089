package usecase

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"tab-inspector/internal/config"
	"tab-inspector/internal/dom"
	"tab-inspector/internal/entity"
	"tab-inspector/internal/ports"
	"tab-inspector/pkg/apperr"

	"go.uber.org/zap"
)

type fakeSession struct {
	tab   entity.TabReference
	pages map[string]pageState

	mu          sync.Mutex
	url         string
	expressions []string
	closed      bool

	block    bool
	evalErr  error
	inFlight *atomic.Int32
	peak     *atomic.Int32
}

type pageState struct {
	url   string
	title string
	html  string
}

func (f *fakeSession) Evaluate(_ context.Context, expression string, _ any) (json.RawMessage, error) {
	f.mu.Lock()
	f.expressions = append(f.expressions, expression)
	f.mu.Unlock()

	if f.evalErr != nil {
		return nil, f.evalErr
	}

	switch {
	case strings.Contains(expression, "querySelectorAll"):
		return json.RawMessage("2"), nil
	case strings.Contains(expression, "childElementCount"):
		return json.RawMessage("1"), nil
	default:
		return nil, nil
	}
}

func (f *fakeSession) URL() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.url
}

func (f *fakeSession) SetURL(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.url = url
}

func (f *fakeSession) WaitForLoad(ctx context.Context, _ time.Duration) (bool, error) {
	if f.inFlight != nil {
		n := f.inFlight.Add(1)
		defer f.inFlight.Add(-1)

		for {
			peak := f.peak.Load()
			if n <= peak || f.peak.CompareAndSwap(peak, n) {
				break
			}
		}

		time.Sleep(20 * time.Millisecond)
	}

	if f.block {
		<-ctx.Done()

		return false, apperr.Wrap("WaitForLoad", apperr.CodeCancelled, ctx.Err(), nil)
	}

	return true, nil
}

func (f *fakeSession) PageInfo(context.Context) (string, string, error) {
	page := f.pages[f.tab.ID]

	return page.url, page.title, nil
}

func (f *fakeSession) OuterHTML(context.Context) (string, error) {
	return f.pages[f.tab.ID].html, nil
}

func (f *fakeSession) CaptureScreenshot(context.Context, string, int) ([]byte, error) {
	return []byte("png:" + f.tab.ID), nil
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true

	return nil
}

type nopCloser struct {
	closed *atomic.Bool
}

func (c nopCloser) Close() error {
	c.closed.Store(true)

	return nil
}

type fakeSessions struct {
	pages    map[string]pageState
	block    bool
	evalErr  error
	inFlight atomic.Int32
	peak     atomic.Int32

	mu       sync.Mutex
	opened   []*fakeSession
	attached []*fakeSession
	channels []*atomic.Bool
}

func (f *fakeSessions) newSession(tab entity.TabReference) *fakeSession {
	return &fakeSession{
		tab:      tab,
		url:      tab.URL,
		pages:    f.pages,
		block:    f.block,
		evalErr:  f.evalErr,
		inFlight: &f.inFlight,
		peak:     &f.peak,
	}
}

func (f *fakeSessions) Open(tab entity.TabReference) ports.PageSession {
	s := f.newSession(tab)

	f.mu.Lock()
	f.opened = append(f.opened, s)
	f.mu.Unlock()

	return s
}

func (f *fakeSessions) Attach(_ context.Context, tab entity.TabReference) (ports.PageSession, io.Closer, error) {
	s := f.newSession(tab)
	closed := &atomic.Bool{}

	f.mu.Lock()
	f.attached = append(f.attached, s)
	f.channels = append(f.channels, closed)
	f.mu.Unlock()

	return s, nopCloser{closed: closed}, nil
}

type fakeBuilder struct{}

func (fakeBuilder) BuildTree(_ context.Context, session dom.Evaluator, _ dom.Options) (*dom.ElementNode, dom.SelectorIndex, error) {
	i := 0
	button := &dom.ElementNode{TagName: "button", XPath: "body/button", HighlightIndex: &i}

	return &dom.ElementNode{TagName: "body", XPath: session.URL(), Children: []dom.Node{button}},
		dom.SelectorIndex{0: button}, nil
}

type fakeRenderer struct{}

func (fakeRenderer) Render(root *dom.ElementNode) string {
	return "rendered " + root.XPath
}

type fakeMarkup struct{}

func (fakeMarkup) Markdown(html, pageURL string) (string, error) {
	return "# " + pageURL + "\n" + html, nil
}

type fakeTracker struct {
	mu   sync.Mutex
	refs map[string]entity.TabReference
}

// set replaces the tracked tabs, as a completed poll would.
func (f *fakeTracker) set(targets ...entity.BrowserTarget) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.refs = make(map[string]entity.TabReference, len(targets))
	for _, t := range targets {
		f.refs[t.ID] = entity.NewTabReference(t)
	}
}

func (f *fakeTracker) References() []entity.TabReference {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]entity.TabReference, 0, len(f.refs))
	for _, r := range f.refs {
		out = append(out, r)
	}

	return out
}

func (f *fakeTracker) Lookup(tabID string) (entity.TabReference, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	r, ok := f.refs[tabID]

	return r, ok
}

type recordingNotifier struct {
	mu        sync.Mutex
	changes   []entity.TabChangeEvent
	snapshots []entity.PageSnapshot
	closed    []string
}

func (n *recordingNotifier) TabsChanged(event entity.TabChangeEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.changes = append(n.changes, event)
}

func (n *recordingNotifier) SnapshotReady(snapshot entity.PageSnapshot) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.snapshots = append(n.snapshots, snapshot)
}

func (n *recordingNotifier) TabClosed(ref entity.TabReference) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.closed = append(n.closed, ref.ID)
}

func (n *recordingNotifier) snapshotTabs() []string {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]string, 0, len(n.snapshots))
	for _, s := range n.snapshots {
		out = append(out, s.TabID)
	}

	return out
}

func testConfig() *config.Config {
	return &config.Config{
		MonitorConfig: &config.MonitorConfig{
			MaxConcurrency: 4,
			LoadTimeout:    time.Second,
			FetchMarkup:    true,
			Markdown:       true,
			Screenshots:    true,
		},
		SnapshotConfig: &config.SnapshotConfig{},
	}
}

type harness struct {
	tracker  *fakeTracker
	sessions *fakeSessions
	notifier *recordingNotifier
	service  *Service
	tabs     *TabService
}

func newHarness(cfg *config.Config, sessions *fakeSessions, tracked ...entity.BrowserTarget) *harness {
	tracker := &fakeTracker{}
	tracker.set(tracked...)

	notifier := &recordingNotifier{}
	service := NewUsecase(Params{
		Logger:   zap.NewNop(),
		Config:   cfg,
		Sessions: sessions,
		Builder:  fakeBuilder{},
		Renderer: fakeRenderer{},
		Markup:   fakeMarkup{},
		Tracker:  tracker,
		Notifier: notifier,
	})

	return &harness{
		tracker:  tracker,
		sessions: sessions,
		notifier: notifier,
		service:  service,
		tabs:     service.Tabs.(*TabService),
	}
}

func target(id, url string) entity.BrowserTarget {
	return entity.BrowserTarget{
		ID:                   id,
		Type:                 entity.TargetTypePage,
		Title:                id,
		URL:                  url,
		WebSocketDebuggerURL: "ws://tab/" + id,
	}
}

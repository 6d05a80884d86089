package console

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"tab-inspector/internal/entity"
	"tab-inspector/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubTabs struct {
	page entity.TabReference
	refs map[string]entity.TabReference
	snap entity.PageSnapshot
}

func (s *stubTabs) Tabs() []entity.TabReference {
	out := make([]entity.TabReference, 0, len(s.refs))
	for _, r := range s.refs {
		out = append(out, r)
	}

	return out
}

func (s *stubTabs) Tab(tabID string) (entity.TabReference, bool) {
	r, ok := s.refs[tabID]

	return r, ok
}

func (s *stubTabs) HandleChange(context.Context, entity.TabChangeEvent) {}

func (s *stubTabs) ProcessTab(context.Context, entity.BrowserTarget) (*entity.PageSnapshot, error) {
	return nil, errors.New("not used")
}

func (s *stubTabs) Snapshot(_ context.Context, tabID string) (*entity.PageSnapshot, error) {
	if tabID != s.snap.TabID {
		return nil, errors.New("tab " + tabID + " is not tracked")
	}

	snap := s.snap

	return &snap, nil
}

func (s *stubTabs) LatestSnapshot(tabID string) (entity.PageSnapshot, bool) {
	return s.snap, tabID == s.snap.TabID
}

func (s *stubTabs) Page(tabID string) (entity.TabReference, bool) {
	return s.page, tabID == s.page.ID
}

type stubHighlights struct {
	requests []entity.HighlightRequest
	cleared  []string
}

func (s *stubHighlights) Highlight(_ context.Context, tab entity.TabReference, req entity.HighlightRequest) (*entity.HighlightResult, error) {
	s.requests = append(s.requests, req)

	return &entity.HighlightResult{TabID: tab.ID, Selector: req.Selector, Color: "yellow", Matched: 4}, nil
}

func (s *stubHighlights) Clear(_ context.Context, tab entity.TabReference) error {
	s.cleared = append(s.cleared, tab.ID)

	return nil
}

func (s *stubHighlights) Rehighlight(context.Context, entity.TabReference) (*entity.HighlightResult, error) {
	return nil, nil
}

func (s *stubHighlights) Screenshot(context.Context, entity.TabReference, string, int) ([]byte, error) {
	return nil, nil
}

func (s *stubHighlights) Invalidate(string) {}

func (s *stubHighlights) Active(tabID string) (string, string, bool) {
	if len(s.requests) == 0 || len(s.cleared) > 0 {
		return "", "", false
	}

	return s.requests[len(s.requests)-1].Selector, "yellow", true
}

func TestReporter(t *testing.T) {
	var out bytes.Buffer
	r := newReporter(zap.NewNop(), &out)

	r.TabsChanged(entity.TabChangeEvent{
		Added: []entity.BrowserTarget{{ID: "C", URL: "https://c.test/"}},
		Navigated: []entity.NavigatedTab{{
			Target:   entity.BrowserTarget{ID: "B", URL: "https://b.test/2"},
			Previous: entity.TabReference{ID: "B", URL: "https://b.test/1"},
		}},
	})
	r.TabClosed(entity.TabReference{ID: "A", URL: "https://a.test/"})
	r.SnapshotReady(entity.PageSnapshot{TabID: "C", Title: "Cats", URL: "https://c.test/", SelectorCount: 12})

	assert.Equal(t, strings.Join([]string{
		"+ C  https://c.test/",
		"~ B  https://b.test/1 -> https://b.test/2",
		"- A  https://a.test/",
		`= C  "Cats"  12 selectors  https://c.test/`,
		"",
	}, "\n"), out.String())
}

func runCommands(t *testing.T, input string) (string, *stubHighlights, *Interface) {
	t.Helper()

	var out bytes.Buffer
	highlights := &stubHighlights{}
	service := &usecase.Service{
		Tabs: &stubTabs{
			refs: map[string]entity.TabReference{"A": {ID: "A", URL: "https://a.test/", Title: "Home"}},
			snap: entity.PageSnapshot{TabID: "A", URL: "https://a.test/", DOM: "[0]<a>Home />"},
		},
		Highlights: highlights,
	}

	i := newInterface(zap.NewNop(), service, newReporter(zap.NewNop(), &out), strings.NewReader(input))
	require.NoError(t, i.Start())

	return out.String(), highlights, i
}

func quitRequested(i *Interface) bool {
	select {
	case <-i.Quit():
		return true
	default:
		return false
	}
}

func TestCommands(t *testing.T) {
	out, highlights, i := runCommands(t, strings.Join([]string{
		"tabs",
		"show A",
		"highlight A nav > a.link",
		"tabs",
		"clear A",
		"redraw A",
		"show Z",
		"highlight A",
		"frobnicate",
		"quit",
		"tabs",
	}, "\n"))

	assert.Contains(t, out, "A  https://a.test/  Home\n")
	assert.Contains(t, out, "https://a.test/\n[0]<a>Home />\n")
	assert.Contains(t, out, "highlighted 4 elements in yellow\n")
	assert.Contains(t, out, "nothing highlighted in A\n")
	assert.Contains(t, out, "error: no snapshot for tab Z\n")
	assert.Contains(t, out, "error: usage: highlight <tab-id> <selector>\n")
	assert.Contains(t, out, `error: unknown command "frobnicate"`)

	assert.Equal(t, []entity.HighlightRequest{{Selector: "nav > a.link"}}, highlights.requests)
	assert.Equal(t, []string{"A"}, highlights.cleared)

	assert.Contains(t, out, "A  https://a.test/  Home  [yellow nav > a.link]\n")
	assert.Equal(t, 1, strings.Count(out, "A  https://a.test/  Home\n"), "commands after quit are not read")
	assert.True(t, quitRequested(i))
}

func TestCommandsEndOfInputDoesNotQuit(t *testing.T) {
	out, _, i := runCommands(t, "snapshot A\n")

	assert.Contains(t, out, "[0]<a>Home />\n")
	assert.False(t, quitRequested(i))
}

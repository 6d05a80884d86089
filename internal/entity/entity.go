package entity

import (
	"time"

	"github.com/google/uuid"
)

const TargetTypePage = "page"

// BrowserTarget is one entry of the browser's target listing. It is
// re-fetched in full on every poll.
type BrowserTarget struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	Title                string `json:"title"`
	URL                  string `json:"url"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl,omitempty"`
	DevtoolsFrontendURL  string `json:"devtoolsFrontendUrl,omitempty"`
}

// TabReference is the durable view of one tracked tab. It is a value: a
// navigation produces a new reference instead of mutating the old one.
type TabReference struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Title    string `json:"title"`
	Endpoint string `json:"endpoint"`
	// HTML is the page markup fetched by the last published snapshot.
	HTML string `json:"-"`
}

func NewTabReference(target BrowserTarget) TabReference {
	return TabReference{
		ID:       target.ID,
		URL:      target.URL,
		Title:    target.Title,
		Endpoint: target.WebSocketDebuggerURL,
	}
}

// WithPage returns a copy of the reference carrying the resolved page state.
func (r TabReference) WithPage(url, title, html string) TabReference {
	r.URL = url
	r.Title = title
	r.HTML = html

	return r
}

type NavigatedTab struct {
	Target   BrowserTarget `json:"target"`
	Previous TabReference  `json:"previous"`
}

// TabChangeEvent is the diff produced by one poll cycle.
type TabChangeEvent struct {
	Added     []BrowserTarget `json:"added"`
	Removed   []TabReference  `json:"removed"`
	Navigated []NavigatedTab  `json:"navigated"`
	Current   []BrowserTarget `json:"current"`
}

func (e TabChangeEvent) Empty() bool {
	return len(e.Added) == 0 && len(e.Removed) == 0 && len(e.Navigated) == 0
}

// PageSnapshot is the published result of processing one tab.
type PageSnapshot struct {
	ID            uuid.UUID  `json:"id"`
	TabID         string     `json:"tab_id"`
	URL           string     `json:"url"`
	Title         string     `json:"title"`
	DOM           string     `json:"dom"`
	SelectorCount int        `json:"selector_count"`
	Selectors     []Selector `json:"selectors,omitempty"`
	Markdown      string     `json:"markdown,omitempty"`
	Screenshot    []byte     `json:"-"`
	TakenAt       time.Time  `json:"taken_at"`
}

// Selector describes one indexed interactive element of a snapshot.
type Selector struct {
	Index   int    `json:"index"`
	XPath   string `json:"xpath"`
	Element string `json:"element"`
	// FileInput is the xpath of the file input this element uploads to.
	FileInput string `json:"file_input,omitempty"`
}

type HighlightRequest struct {
	Selector string `json:"selector"`
	Color    string `json:"color"`
}

// HighlightResult reports what a highlight request actually drew.
type HighlightResult struct {
	TabID    string `json:"tab_id"`
	Selector string `json:"selector"`
	Color    string `json:"color"`
	Matched  int    `json:"matched"`
}

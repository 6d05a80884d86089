package dom

import (
	"fmt"
	"sort"
	"strings"
)

// Node is either an *ElementNode or a *TextNode.
type Node interface {
	Parent() *ElementNode
	Visible() bool

	setParent(p *ElementNode)
}

type CoordinateSet struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type ViewportInfo struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type TextNode struct {
	Text      string
	IsVisible bool

	parent *ElementNode
}

func (t *TextNode) Parent() *ElementNode     { return t.parent }
func (t *TextNode) Visible() bool            { return t.IsVisible }
func (t *TextNode) setParent(p *ElementNode) { t.parent = p }

// HasHighlightedAncestor reports whether any ancestor carries a highlight
// index, in which case the text belongs to that element's line.
func (t *TextNode) HasHighlightedAncestor() bool {
	for cur := t.parent; cur != nil; cur = cur.parent {
		if cur.HighlightIndex != nil {
			return true
		}
	}

	return false
}

type ElementNode struct {
	TagName             string
	XPath               string
	Attributes          map[string]string
	Children            []Node
	IsVisible           bool
	IsInteractive       bool
	IsTopElement        bool
	IsInViewport        bool
	ShadowRoot          bool
	HighlightIndex      *int
	ViewportCoordinates *CoordinateSet
	PageCoordinates     *CoordinateSet
	ViewportInfo        *ViewportInfo

	// IsNew is set by callers comparing against a previous snapshot.
	IsNew *bool

	parent *ElementNode
}

func (e *ElementNode) Parent() *ElementNode     { return e.parent }
func (e *ElementNode) Visible() bool            { return e.IsVisible }
func (e *ElementNode) setParent(p *ElementNode) { e.parent = p }

func (e *ElementNode) Highlighted() bool {
	return e.HighlightIndex != nil
}

// OwnedText collects the text of e's subtree in document order without
// descending into nested highlighted elements. Parts are trimmed and joined
// with single spaces.
func (e *ElementNode) OwnedText() string {
	var parts []string

	var collect func(n Node)
	collect = func(n Node) {
		switch node := n.(type) {
		case *TextNode:
			if text := strings.TrimSpace(node.Text); text != "" {
				parts = append(parts, text)
			}
		case *ElementNode:
			if node != e && node.Highlighted() {
				return
			}

			for _, child := range node.Children {
				collect(child)
			}
		}
	}

	collect(e)

	return strings.Join(parts, " ")
}

// DirectText is the concatenated text of e's immediate text children.
func (e *ElementNode) DirectText() string {
	var b strings.Builder

	for _, child := range e.Children {
		if text, ok := child.(*TextNode); ok {
			b.WriteString(text.Text)
		}
	}

	return strings.TrimSpace(b.String())
}

// FileUploadElement finds a file input in e's subtree, then among e's
// siblings' subtrees.
func (e *ElementNode) FileUploadElement() *ElementNode {
	if found := e.findFileInput(); found != nil {
		return found
	}

	if e.parent == nil {
		return nil
	}

	for _, sibling := range e.parent.Children {
		el, ok := sibling.(*ElementNode)
		if !ok || el == e {
			continue
		}

		if found := el.findFileInput(); found != nil {
			return found
		}
	}

	return nil
}

func (e *ElementNode) findFileInput() *ElementNode {
	if e.TagName == "input" && e.Attributes["type"] == "file" {
		return e
	}

	for _, child := range e.Children {
		if el, ok := child.(*ElementNode); ok {
			if found := el.findFileInput(); found != nil {
				return found
			}
		}
	}

	return nil
}

func (e *ElementNode) String() string {
	var b strings.Builder

	b.WriteString("<" + e.TagName)

	keys := make([]string, 0, len(e.Attributes))
	for k := range e.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%q", k, e.Attributes[k])
	}

	b.WriteString(">")

	var extras []string
	if e.IsInteractive {
		extras = append(extras, "interactive")
	}
	if e.IsTopElement {
		extras = append(extras, "top")
	}
	if e.ShadowRoot {
		extras = append(extras, "shadow-root")
	}
	if e.HighlightIndex != nil {
		extras = append(extras, fmt.Sprintf("highlight:%d", *e.HighlightIndex))
	}
	if e.IsInViewport {
		extras = append(extras, "in-viewport")
	}

	if len(extras) > 0 {
		b.WriteString(" [" + strings.Join(extras, ", ") + "]")
	}

	return b.String()
}

// SelectorIndex maps highlight indices to their elements within one
// snapshot.
type SelectorIndex map[int]*ElementNode

// Indices returns the registered highlight indices in ascending order.
func (s SelectorIndex) Indices() []int {
	out := make([]int, 0, len(s))
	for i := range s {
		out = append(out, i)
	}
	sort.Ints(out)

	return out
}

// Options is the argument of the extraction script.
type Options struct {
	HighlightElements   bool
	FocusHighlightIndex int
	ViewportExpansion   int
	DebugMode           bool
}

func DefaultOptions() Options {
	return Options{FocusHighlightIndex: -1}
}

func emptyRoot() *ElementNode {
	return &ElementNode{
		TagName:    "body",
		Attributes: map[string]string{},
		Children:   []Node{},
	}
}

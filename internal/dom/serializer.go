package dom

import (
	"strconv"
	"strings"

	"tab-inspector/internal/config"

	"go.uber.org/fx"
)

// DefaultAttributes is the allow-list used when none is configured.
var DefaultAttributes = []string{
	"id", "class", "name", "role",
	"aria-label", "aria-labelledby", "aria-describedby",
	"placeholder", "title", "alt", "href", "type", "value", "for",
	"data-testid", "data-cy", "data-qa",
}

type nodeClass int

const (
	classWrapper nodeClass = iota
	classContent
	classInteractive
)

// Serializer renders a snapshot tree as indented text, one line per
// interactive or content element.
type Serializer struct {
	IncludeAttributes []string
}

type SerializerParams struct {
	fx.In

	Config *config.Config
}

func NewSerializer(params SerializerParams) *Serializer {
	attrs := DefaultAttributes
	if cfg := params.Config.SnapshotConfig; cfg != nil && len(cfg.IncludeAttributes) > 0 {
		attrs = cfg.IncludeAttributes
	}

	return &Serializer{IncludeAttributes: attrs}
}

func (s *Serializer) Render(root *ElementNode) string {
	if root == nil {
		return ""
	}

	r := renderer{
		attrs:   s.IncludeAttributes,
		classes: make(map[*ElementNode]nodeClass),
	}
	r.classify(root)
	r.node(root, 0)

	return strings.Join(r.lines, "\n")
}

type renderer struct {
	attrs   []string
	classes map[*ElementNode]nodeClass
	lines   []string
}

// classify assigns a class to every element below el and records whether
// its subtree produces at least one line.
func (r *renderer) classify(el *ElementNode) bool {
	childEmits := false
	childHighlighted := false

	for _, child := range el.Children {
		switch n := child.(type) {
		case *ElementNode:
			if r.classify(n) {
				childEmits = true
			}
			if n.Highlighted() {
				childHighlighted = true
			}
		case *TextNode:
			if textEmits(n) {
				childEmits = true
			}
		}
	}

	class := classWrapper
	switch {
	case el.Highlighted():
		class = classInteractive
	case !childHighlighted && (el.DirectText() != "" || childEmits):
		class = classContent
	}

	r.classes[el] = class

	return class != classWrapper || childEmits
}

func textEmits(t *TextNode) bool {
	p := t.Parent()
	if p == nil || !p.IsVisible || !p.IsTopElement {
		return false
	}

	return strings.TrimSpace(t.Text) != "" && !t.HasHighlightedAncestor()
}

func (r *renderer) node(n Node, depth int) {
	indent := strings.Repeat("\t", depth)

	switch node := n.(type) {
	case *TextNode:
		if textEmits(node) {
			r.lines = append(r.lines, indent+"  "+strings.TrimSpace(node.Text))
		}

	case *ElementNode:
		switch r.classes[node] {
		case classInteractive:
			r.lines = append(r.lines, indent+r.interactiveLine(node))
			r.children(node, depth+1)
		case classContent:
			r.lines = append(r.lines, indent+contentLine(node))
			r.children(node, depth+1)
		default:
			r.children(node, depth)
		}
	}
}

func (r *renderer) children(el *ElementNode, depth int) {
	for _, child := range el.Children {
		r.node(child, depth)
	}
}

func (r *renderer) interactiveLine(el *ElementNode) string {
	text := el.OwnedText()
	attrs := formatAttributes(r.selectAttributes(el, text))

	var b strings.Builder

	marker := "[" + strconv.Itoa(*el.HighlightIndex) + "]"
	if el.IsNew != nil && *el.IsNew {
		marker = "*" + marker + "*"
	}

	b.WriteString(marker)
	b.WriteString("<" + el.TagName)

	if attrs != "" {
		b.WriteString(" " + attrs)
	}

	switch {
	case text != "" && attrs != "":
		b.WriteString(" >" + text + " />")
	case text != "":
		b.WriteString(">" + text + " />")
	default:
		b.WriteString(" />")
	}

	return b.String()
}

type attrPair struct {
	key   string
	value string
}

func (r *renderer) selectAttributes(el *ElementNode, text string) []attrPair {
	text = strings.TrimSpace(text)

	var out []attrPair

	for _, key := range r.attrs {
		value, ok := el.Attributes[key]
		if !ok {
			continue
		}

		switch key {
		case "role":
			if value == el.TagName {
				continue
			}
		case "aria-label", "placeholder":
			if v := strings.TrimSpace(value); v != "" && v == text {
				continue
			}
		}

		out = append(out, attrPair{key: key, value: value})
	}

	return out
}

func contentLine(el *ElementNode) string {
	var ctx []attrPair
	for _, key := range []string{"class", "id"} {
		if v := el.Attributes[key]; v != "" {
			ctx = append(ctx, attrPair{key: key, value: v})
		}
	}

	attrs := formatAttributes(ctx)
	line := "  <" + el.TagName

	if attrs != "" {
		line += " " + attrs + " "
	}

	if text := el.DirectText(); text != "" {
		return line + ">" + text + " />"
	}

	return line + "/>"
}

func formatAttributes(attrs []attrPair) string {
	parts := make([]string, 0, len(attrs))
	for _, a := range attrs {
		parts = append(parts, a.key+"='"+strings.ReplaceAll(a.value, "'", `\'`)+"'")
	}

	return strings.Join(parts, " ")
}

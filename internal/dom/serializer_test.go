package dom

import (
	"strings"
	"testing"

	"tab-inspector/internal/config"

	"github.com/stretchr/testify/assert"
)

type elementOption func(*ElementNode)

func withIndex(i int) elementOption {
	return func(e *ElementNode) {
		e.HighlightIndex = &i
		e.IsInteractive = true
	}
}

func hidden() elementOption {
	return func(e *ElementNode) { e.IsVisible = false }
}

func covered() elementOption {
	return func(e *ElementNode) { e.IsTopElement = false }
}

func fresh() elementOption {
	return func(e *ElementNode) {
		isNew := true
		e.IsNew = &isNew
	}
}

func text(s string) *TextNode {
	return &TextNode{Text: s, IsVisible: true}
}

// element builds a visible top-level element. Items are children or
// options, applied in order.
func element(tag string, attrs map[string]string, items ...any) *ElementNode {
	if attrs == nil {
		attrs = map[string]string{}
	}

	el := &ElementNode{
		TagName:      tag,
		Attributes:   attrs,
		Children:     []Node{},
		IsVisible:    true,
		IsTopElement: true,
	}

	for _, item := range items {
		switch v := item.(type) {
		case elementOption:
			v(el)
		case Node:
			v.setParent(el)
			el.Children = append(el.Children, v)
		}
	}

	return el
}

func render(root *ElementNode) string {
	return (&Serializer{IncludeAttributes: DefaultAttributes}).Render(root)
}

func TestRenderPrunesRedundantAttributes(t *testing.T) {
	root := element("button", map[string]string{"role": "button", "aria-label": " Submit "}, withIndex(0), text("Submit"))

	assert.Equal(t, "[0]<button>Submit />", render(root))
}

func TestRenderInteractiveLines(t *testing.T) {
	cases := []struct {
		name string
		root *ElementNode
		want string
	}{
		{
			name: "attributes in allow-list order with escaping",
			root: element("a", map[string]string{"href": "/docs", "title": "it's", "class": "btn", "onclick": "x()"}, withIndex(3), text("Docs")),
			want: `[3]<a class='btn' title='it\'s' href='/docs' >Docs />`,
		},
		{
			name: "new element without text",
			root: element("input", map[string]string{"type": "text", "placeholder": "Search"}, withIndex(1), fresh()),
			want: `*[1]*<input placeholder='Search' type='text' />`,
		},
		{
			name: "bare element",
			root: element("div", map[string]string{"style": "x"}, withIndex(7)),
			want: `[7]<div />`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, render(tc.root))
		})
	}
}

func TestRenderNestedInteractive(t *testing.T) {
	root := element("button", nil, withIndex(0),
		text("Open"),
		element("span", nil, withIndex(1), text("menu")),
	)

	assert.Equal(t, "[0]<button>Open />\n\t[1]<span>menu />", render(root))
}

func TestRenderFlattensWrappers(t *testing.T) {
	root := element("body", nil,
		element("div", map[string]string{"class": "nav"},
			element("button", nil, withIndex(0), text("Go")),
		),
	)

	// The div only wraps an interactive child, so the button stays at the
	// depth the div would have had.
	assert.Equal(t, "  <body/>\n\t[0]<button>Go />", render(root))
}

func TestRenderContentElements(t *testing.T) {
	root := element("article", map[string]string{"id": "main", "class": "post"},
		element("h1", nil, text("Title")),
		element("div", nil, element("div", nil)),
	)

	want := strings.Join([]string{
		"  <article class='post' id='main' />",
		"\t  <h1>Title />",
		"\t\t  Title",
	}, "\n")

	assert.Equal(t, want, render(root))
}

func TestRenderSuppressesText(t *testing.T) {
	root := element("div", nil,
		text("Hi"),
		element("span", nil, hidden(), text("secret")),
		element("em", nil, covered(), text("under")),
	)

	want := strings.Join([]string{
		"  <div>Hi />",
		"\t  Hi",
		"\t  <span>secret />",
		"\t  <em>under />",
	}, "\n")

	assert.Equal(t, want, render(root))
}

func TestRenderIsDeterministic(t *testing.T) {
	build := func() *ElementNode {
		return element("body", nil,
			element("form", map[string]string{"id": "login"},
				element("input", map[string]string{"name": "user", "type": "text", "id": "u"}, withIndex(0)),
				element("input", map[string]string{"name": "pass", "type": "password", "id": "p"}, withIndex(1)),
				element("p", nil, text("Forgot?")),
			),
		)
	}

	first := render(build())
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, render(build()))
	}

	assert.Contains(t, first, "[0]<input id='u' name='user' type='text' />")
	assert.Contains(t, first, "[1]<input id='p' name='pass' type='password' />")
}

func TestNewSerializerUsesConfiguredAttributes(t *testing.T) {
	s := NewSerializer(SerializerParams{Config: &config.Config{
		SnapshotConfig: &config.SnapshotConfig{IncludeAttributes: []string{"name"}},
	}})
	root := element("input", map[string]string{"name": "q", "id": "search"}, withIndex(0))

	assert.Equal(t, "[0]<input name='q' />", s.Render(root))

	s = NewSerializer(SerializerParams{Config: &config.Config{SnapshotConfig: &config.SnapshotConfig{}}})
	assert.Equal(t, DefaultAttributes, s.IncludeAttributes)
}

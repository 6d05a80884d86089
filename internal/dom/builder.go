package dom

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"tab-inspector/pkg/apperr"
	"tab-inspector/pkg/logg"
	"tab-inspector/pkg/tracing"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	builderName   = "SnapshotBuilder"
	builderTracer = "dom.builder"
	blankURL      = "about:blank"
	textNodeType  = "TEXT_NODE"
)

var (
	ErrMalformedResult = errors.New("malformed extraction result")
	ErrRootNotFound    = errors.New("root node not found")
)

// Evaluator is the part of a protocol session the builder needs.
type Evaluator interface {
	Evaluate(ctx context.Context, expression string, arg any) (json.RawMessage, error)
	URL() string
}

type Builder struct {
	logger *zap.Logger
	tracer trace.Tracer
}

type BuilderParams struct {
	fx.In

	Logger *zap.Logger
}

func NewBuilder(params BuilderParams) *Builder {
	return &Builder{
		logger: params.Logger.With(zap.String(logg.Layer, builderName)),
		tracer: otel.Tracer(builderTracer),
	}
}

type scriptArgs struct {
	DoHighlightElements bool `json:"doHighlightElements"`
	FocusHighlightIndex int  `json:"focusHighlightIndex"`
	ViewportExpansion   int  `json:"viewportExpansion"`
	DebugMode           bool `json:"debugMode"`
}

// BuildTree extracts the page's DOM through session and rebuilds it as a
// tree. Extraction failures degrade to an empty body root; only a failed
// sanity check or a missing root is returned as an error.
func (b *Builder) BuildTree(ctx context.Context, session Evaluator, opts Options) (root *ElementNode, index SelectorIndex, err error) {
	const op = "BuildTree"

	ctx, step := tracing.StartSpan(ctx, b.tracer, b.logger, op, attribute.String(logg.URL, session.URL()))
	defer func() {
		step.End(err)
	}()

	logger := b.logger.With(zap.String(logg.Operation, op), zap.String(logg.URL, session.URL()))

	if err := b.sanityCheck(ctx, session); err != nil {
		return nil, nil, err
	}

	if session.URL() == blankURL {
		return emptyRoot(), SelectorIndex{}, nil
	}

	raw, err := session.Evaluate(ctx, buildDomTreeScript(), scriptArgs{
		DoHighlightElements: opts.HighlightElements,
		FocusHighlightIndex: opts.FocusHighlightIndex,
		ViewportExpansion:   opts.ViewportExpansion,
		DebugMode:           opts.DebugMode,
	})
	if err != nil {
		logger.Warn("DOM extraction failed, using empty tree",
			zap.String(logg.Code, apperr.CodeOf(err)),
			zap.Error(err))

		return emptyRoot(), SelectorIndex{}, nil
	}

	if raw == nil {
		logger.Warn("DOM extraction returned undefined, using empty tree")

		return emptyRoot(), SelectorIndex{}, nil
	}

	if opts.DebugMode {
		if metrics := gjson.GetBytes(raw, "perfMetrics"); metrics.Exists() {
			logger.Debug("DOM extraction metrics", zap.Any("perf_metrics", json.RawMessage(metrics.Raw)))
		}
	}

	root, index, dropped, err := reconstruct(raw)
	if errors.Is(err, ErrMalformedResult) {
		logger.Warn("Malformed DOM extraction result, using empty tree", zap.Error(err))

		return emptyRoot(), SelectorIndex{}, nil
	}
	if err != nil {
		return nil, nil, apperr.Wrap(op, apperr.CodeMalformedResult, err, map[string]any{
			apperr.MetaReason: "root_not_found",
			apperr.MetaStage:  apperr.StageSnapshot,
			apperr.MetaURL:    session.URL(),
		})
	}

	if dropped > 0 {
		logger.Debug("Dropped child references", zap.Int("dropped", dropped))
	}

	step.SetAttributes(attribute.Int("selectors", len(index)))

	return root, index, nil
}

func (b *Builder) sanityCheck(ctx context.Context, session Evaluator) error {
	const op = "BuildTree.sanityCheck"

	raw, err := session.Evaluate(ctx, "1+1", nil)
	if err != nil {
		return apperr.Wrap(op, apperr.CodeOf(err), err, map[string]any{
			apperr.MetaReason: "sanity_check_failed",
			apperr.MetaStage:  apperr.StageSnapshot,
		})
	}

	if strings.TrimSpace(string(raw)) != "2" {
		return apperr.Wrap(op, apperr.CodeMalformedResult, ErrMalformedResult, map[string]any{
			apperr.MetaReason: "sanity_check_mismatch",
			apperr.MetaStage:  apperr.StageSnapshot,
		})
	}

	return nil
}

type parsedNode struct {
	id       string
	node     Node
	children []string
}

type elementDescriptor struct {
	TagName             string         `json:"tagName"`
	XPath               string         `json:"xpath"`
	IsVisible           bool           `json:"isVisible"`
	IsInteractive       bool           `json:"isInteractive"`
	IsTopElement        bool           `json:"isTopElement"`
	IsInViewport        bool           `json:"isInViewport"`
	ShadowRoot          bool           `json:"shadowRoot"`
	HighlightIndex      *int           `json:"highlightIndex"`
	ViewportCoordinates *CoordinateSet `json:"viewportCoordinates"`
	PageCoordinates     *CoordinateSet `json:"pageCoordinates"`
	Viewport            *ViewportInfo  `json:"viewport"`
}

// reconstruct turns the flat id->descriptor map into a tree. The map is
// walked in the order it was written, so parsing and linking are both
// deterministic for a given payload.
func reconstruct(raw []byte) (*ElementNode, SelectorIndex, int, error) {
	if !gjson.ValidBytes(raw) {
		return nil, nil, 0, ErrMalformedResult
	}

	doc := gjson.ParseBytes(raw)
	nodes := doc.Get("map")
	rootID := doc.Get("rootId")

	if !doc.IsObject() || !nodes.IsObject() || !rootID.Exists() || rootID.Type == gjson.Null {
		return nil, nil, 0, ErrMalformedResult
	}

	var parsed []parsedNode
	constructed := make(map[string]Node)

	nodes.ForEach(func(key, value gjson.Result) bool {
		node, children, ok := parseNode(value)
		if !ok {
			return true
		}

		parsed = append(parsed, parsedNode{id: key.String(), node: node, children: children})
		constructed[key.String()] = node

		return true
	})

	index := SelectorIndex{}
	dropped := 0

	for _, p := range parsed {
		el, ok := p.node.(*ElementNode)
		if !ok {
			continue
		}

		for _, childID := range p.children {
			child, ok := constructed[childID]
			if !ok || child.Parent() != nil || !linkable(el, child) {
				dropped++
				continue
			}

			child.setParent(el)
			el.Children = append(el.Children, child)
		}

		if el.HighlightIndex != nil {
			index[*el.HighlightIndex] = el
		}
	}

	root, ok := constructed[rootID.String()].(*ElementNode)
	if !ok {
		return nil, nil, dropped, ErrRootNotFound
	}

	return root, index, dropped, nil
}

// linkable rejects attaching child under el when child is el or one of its
// ancestors.
func linkable(el *ElementNode, child Node) bool {
	candidate, ok := child.(*ElementNode)
	if !ok {
		return true
	}

	for cur := el; cur != nil; cur = cur.parent {
		if cur == candidate {
			return false
		}
	}

	return true
}

func parseNode(value gjson.Result) (Node, []string, bool) {
	if !value.IsObject() {
		return nil, nil, false
	}

	if value.Get("type").String() == textNodeType {
		return &TextNode{
			Text:      value.Get("text").String(),
			IsVisible: value.Get("isVisible").Bool(),
		}, nil, true
	}

	var desc elementDescriptor
	if err := json.Unmarshal([]byte(value.Raw), &desc); err != nil {
		return nil, nil, false
	}

	if desc.TagName == "" {
		return nil, nil, false
	}

	el := &ElementNode{
		TagName:             desc.TagName,
		XPath:               desc.XPath,
		Attributes:          map[string]string{},
		Children:            []Node{},
		IsVisible:           desc.IsVisible,
		IsInteractive:       desc.IsInteractive,
		IsTopElement:        desc.IsTopElement,
		IsInViewport:        desc.IsInViewport,
		ShadowRoot:          desc.ShadowRoot,
		HighlightIndex:      desc.HighlightIndex,
		ViewportCoordinates: desc.ViewportCoordinates,
		PageCoordinates:     desc.PageCoordinates,
		ViewportInfo:        desc.Viewport,
	}

	value.Get("attributes").ForEach(func(k, v gjson.Result) bool {
		el.Attributes[k.String()] = v.String()

		return true
	})

	var children []string
	value.Get("children").ForEach(func(_, v gjson.Result) bool {
		children = append(children, v.String())

		return true
	})

	return el, children, true
}

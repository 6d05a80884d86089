package usecase

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"tab-inspector/internal/cdp"
	"tab-inspector/internal/entity"
	"tab-inspector/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestHighlighter(sessions *fakeSessions) *HighlightService {
	return NewHighlightService(HighlightServiceParams{Logger: zap.NewNop(), Sessions: sessions})
}

var tabA = entity.TabReference{ID: "A", URL: "https://a.test/", Endpoint: "ws://tab/A"}

func TestHighlightAlternatesColours(t *testing.T) {
	h := newTestHighlighter(&fakeSessions{})
	ctx := context.Background()

	steps := []struct {
		requested string
		want      string
	}{
		{"yellow", "yellow"},
		{"yellow", "orange"},
		{"yellow", "yellow"},
		{"blue", "blue"},
		{"blue", "purple"},
		{"magenta", "magenta"},
		{"magenta", "magenta"},
		{"", "yellow"},
	}

	for i, step := range steps {
		res, err := h.Highlight(ctx, tabA, entity.HighlightRequest{Selector: ".item", Color: step.requested})
		require.NoError(t, err, "step %d", i)
		assert.Equal(t, step.want, res.Color, "step %d", i)
	}
}

func TestHighlightStateIsPerTab(t *testing.T) {
	h := newTestHighlighter(&fakeSessions{})
	ctx := context.Background()
	tabB := entity.TabReference{ID: "B", Endpoint: "ws://tab/B"}

	_, err := h.Highlight(ctx, tabA, entity.HighlightRequest{Selector: "a", Color: "red"})
	require.NoError(t, err)

	res, err := h.Highlight(ctx, tabB, entity.HighlightRequest{Selector: "a", Color: "red"})
	require.NoError(t, err)
	assert.Equal(t, "red", res.Color)

	h.Invalidate("A")

	res, err = h.Highlight(ctx, tabA, entity.HighlightRequest{Selector: "a", Color: "red"})
	require.NoError(t, err)
	assert.Equal(t, "red", res.Color)
}

func TestHighlightClearsAndDrawsOnOneSession(t *testing.T) {
	sessions := &fakeSessions{}
	h := newTestHighlighter(sessions)

	res, err := h.Highlight(context.Background(), tabA, entity.HighlightRequest{Selector: " button.primary "})
	require.NoError(t, err)

	assert.Equal(t, &entity.HighlightResult{TabID: "A", Selector: "button.primary", Color: "yellow", Matched: 2}, res)

	require.Len(t, sessions.attached, 1)
	exprs := sessions.attached[0].expressions
	require.Len(t, exprs, 2)
	assert.True(t, strings.Contains(exprs[0], "childElementCount"), "clear runs first")
	assert.True(t, strings.Contains(exprs[1], "querySelectorAll"), "draw runs second")

	assert.True(t, sessions.attached[0].closed)
	assert.True(t, sessions.channels[0].Load())

	selector, color, ok := h.Active("A")
	require.True(t, ok)
	assert.Equal(t, "button.primary", selector)
	assert.Equal(t, "yellow", color)
}

func TestHighlightRejectsEmptySelector(t *testing.T) {
	h := newTestHighlighter(&fakeSessions{})

	_, err := h.Highlight(context.Background(), tabA, entity.HighlightRequest{Selector: "  "})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInvalidArgument, apperr.CodeOf(err))
}

func TestHighlightFailureDeactivates(t *testing.T) {
	sessions := &fakeSessions{}
	h := newTestHighlighter(sessions)

	_, err := h.Highlight(context.Background(), tabA, entity.HighlightRequest{Selector: "a"})
	require.NoError(t, err)

	sessions.evalErr = apperr.Wrap("Evaluate", apperr.CodeScriptException, &cdp.ScriptException{Text: "invalid selector"}, nil)

	_, err = h.Highlight(context.Background(), tabA, entity.HighlightRequest{Selector: "a["})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeScriptException, apperr.CodeOf(err))

	_, _, ok := h.Active("A")
	assert.False(t, ok)
}

func TestRehighlight(t *testing.T) {
	h := newTestHighlighter(&fakeSessions{})
	ctx := context.Background()

	res, err := h.Rehighlight(ctx, tabA)
	require.NoError(t, err)
	assert.Nil(t, res)

	_, err = h.Highlight(ctx, tabA, entity.HighlightRequest{Selector: "a", Color: "lime"})
	require.NoError(t, err)
	_, err = h.Highlight(ctx, tabA, entity.HighlightRequest{Selector: "a", Color: "lime"})
	require.NoError(t, err)

	res, err = h.Rehighlight(ctx, tabA)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "green", res.Color)
	assert.Equal(t, "a", res.Selector)
}

func TestClear(t *testing.T) {
	t.Run("forgets state", func(t *testing.T) {
		sessions := &fakeSessions{}
		h := newTestHighlighter(sessions)

		_, err := h.Highlight(context.Background(), tabA, entity.HighlightRequest{Selector: "a"})
		require.NoError(t, err)

		require.NoError(t, h.Clear(context.Background(), tabA))

		_, _, ok := h.Active("A")
		assert.False(t, ok)
		require.Len(t, sessions.opened, 1)
		assert.True(t, sessions.opened[0].closed)
	})

	t.Run("unreachable tab is not an error", func(t *testing.T) {
		sessions := &fakeSessions{evalErr: apperr.Wrap("Invoke", apperr.CodeConnection, fmt.Errorf("%w: refused", cdp.ErrConnection), nil)}

		assert.NoError(t, newTestHighlighter(sessions).Clear(context.Background(), tabA))
	})

	t.Run("script failure is returned", func(t *testing.T) {
		sessions := &fakeSessions{evalErr: apperr.Wrap("Evaluate", apperr.CodeScriptException, &cdp.ScriptException{Text: "boom"}, nil)}

		err := newTestHighlighter(sessions).Clear(context.Background(), tabA)
		require.Error(t, err)
		assert.Equal(t, apperr.CodeScriptException, apperr.CodeOf(err))
	})
}

func TestScreenshot(t *testing.T) {
	sessions := &fakeSessions{}

	img, err := newTestHighlighter(sessions).Screenshot(context.Background(), tabA, cdp.ScreenshotPNG, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("png:A"), img)
	assert.True(t, sessions.opened[0].closed)
}

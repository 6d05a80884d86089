package cdp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tab-inspector/internal/config"
	"tab-inspector/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestLister(listURL string) *TargetLister {
	l := NewTargetLister(ListerParams{
		Config: &config.Config{BrowserConfig: &config.BrowserConfig{
			DebugHost:   "localhost",
			DebugPort:   9222,
			ListTimeout: time.Second,
		}},
		Logger: zap.NewNop(),
	})
	l.listURL = listURL

	return l
}

func TestListTargetsKeepsPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/json/list", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id":"A","type":"page","title":"Example","url":"https://example.com/","webSocketDebuggerUrl":"ws://localhost/devtools/page/A"},
			{"id":"B","type":"service_worker","title":"sw","url":"https://example.com/sw.js"},
			{"id":"C","type":"page","title":"","url":"","webSocketDebuggerUrl":"ws://localhost/devtools/page/C"}
		]`))
	}))
	defer srv.Close()

	targets, err := newTestLister(srv.URL + "/json/list").ListTargets(context.Background())
	require.NoError(t, err)
	require.Len(t, targets, 2)

	assert.Equal(t, "A", targets[0].ID)
	assert.Equal(t, "ws://localhost/devtools/page/A", targets[0].WebSocketDebuggerURL)
	assert.Equal(t, "Untitled", targets[1].Title)
	assert.Equal(t, "about:blank", targets[1].URL)
}

func TestListTargetsFailures(t *testing.T) {
	t.Run("bad status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "nope", http.StatusInternalServerError)
		}))
		defer srv.Close()

		_, err := newTestLister(srv.URL + "/json/list").ListTargets(context.Background())
		require.Error(t, err)
		assert.Equal(t, apperr.CodeUnavailable, apperr.CodeOf(err))
	})

	t.Run("bad body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"not":"an array"}`))
		}))
		defer srv.Close()

		_, err := newTestLister(srv.URL + "/json/list").ListTargets(context.Background())
		require.Error(t, err)
		assert.Equal(t, apperr.CodeMalformedResult, apperr.CodeOf(err))
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL + "/json/list"
		srv.Close()

		_, err := newTestLister(url).ListTargets(context.Background())
		require.Error(t, err)
		assert.Equal(t, apperr.CodeUnavailable, apperr.CodeOf(err))
	})
}

package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"tab-inspector/internal/cdp"
	"tab-inspector/internal/entity"
	"tab-inspector/pkg/apperr"
	"tab-inspector/pkg/logg"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type healthResponse struct {
	Status string `json:"status"`
	Tabs   int    `json:"tabs"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Tabs: len(s.service.Tabs.Tabs())})
}

func (s *Server) handleListTabs(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.service.Tabs.Tabs())
}

func (s *Server) handleGetTab(w http.ResponseWriter, r *http.Request) {
	tab, ok := s.tab(w, r)
	if !ok {
		return
	}

	s.writeJSON(w, http.StatusOK, tab)
}

func (s *Server) handleLatestSnapshot(w http.ResponseWriter, r *http.Request) {
	tabID := chi.URLParam(r, "tabID")

	snap, ok := s.service.Tabs.LatestSnapshot(tabID)
	if !ok {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "no snapshot for tab " + tabID, Code: apperr.CodeNotFound})
		return
	}

	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleTakeSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.service.Tabs.Snapshot(r.Context(), chi.URLParam(r, "tabID"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handlePageHTML(w http.ResponseWriter, r *http.Request) {
	tabID := chi.URLParam(r, "tabID")

	page, ok := s.service.Tabs.Page(tabID)
	if !ok || page.HTML == "" {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "no markup for tab " + tabID, Code: apperr.CodeNotFound})
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(page.HTML))
}

func (s *Server) handleActiveHighlight(w http.ResponseWriter, r *http.Request) {
	tab, ok := s.tab(w, r)
	if !ok {
		return
	}

	selector, color, active := s.service.Highlights.Active(tab.ID)
	if !active {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	s.writeJSON(w, http.StatusOK, entity.HighlightRequest{Selector: selector, Color: color})
}

func (s *Server) handleHighlight(w http.ResponseWriter, r *http.Request) {
	tab, ok := s.tab(w, r)
	if !ok {
		return
	}

	var req entity.HighlightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, apperr.InvalidReqError("handleHighlight", "body", err))
		return
	}

	res, err := s.service.Highlights.Highlight(r.Context(), tab, req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleClearHighlight(w http.ResponseWriter, r *http.Request) {
	tab, ok := s.tab(w, r)
	if !ok {
		return
	}

	if err := s.service.Highlights.Clear(r.Context(), tab); err != nil {
		s.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRedrawHighlight(w http.ResponseWriter, r *http.Request) {
	tab, ok := s.tab(w, r)
	if !ok {
		return
	}

	res, err := s.service.Highlights.Rehighlight(r.Context(), tab)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if res == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleScreenshot(w http.ResponseWriter, r *http.Request) {
	tab, ok := s.tab(w, r)
	if !ok {
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = cdp.ScreenshotPNG
	}

	quality := 0
	if q := r.URL.Query().Get("quality"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil {
			s.writeError(w, apperr.InvalidReqError("handleScreenshot", "quality", err))
			return
		}
		quality = n
	}

	img, err := s.service.Highlights.Screenshot(r.Context(), tab, format, quality)
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/"+format)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img)
}

func (s *Server) tab(w http.ResponseWriter, r *http.Request) (entity.TabReference, bool) {
	tabID := chi.URLParam(r, "tabID")

	tab, ok := s.service.Tabs.Tab(tabID)
	if !ok {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "tab " + tabID + " is not tracked", Code: apperr.CodeNotFound})
	}

	return tab, ok
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := apperr.CodeOf(err)
	status := statusFor(code)

	if status >= http.StatusInternalServerError {
		s.logger.Warn("Request failed", zap.String(logg.Code, code), zap.Error(err))
	}

	s.writeJSON(w, status, errorResponse{Error: err.Error(), Code: code})
}

func statusFor(code string) int {
	switch code {
	case apperr.CodeInvalidArgument:
		return http.StatusBadRequest
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeScriptException:
		return http.StatusUnprocessableEntity
	case apperr.CodeUnavailable, apperr.CodeConnection, apperr.CodeProtocol, apperr.CodeMalformedResult:
		return http.StatusBadGateway
	case apperr.CodeTimeout:
		return http.StatusGatewayTimeout
	case apperr.CodeCancelled:
		return http.StatusServiceUnavailable
	case apperr.CodeStale:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Debug("Failed to encode response", zap.Error(err))
	}
}

package cdp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"time"

	"tab-inspector/pkg/apperr"

	"go.uber.org/zap"
)

const (
	readyStatePoll = 200 * time.Millisecond

	ScreenshotPNG  = "png"
	ScreenshotJPEG = "jpeg"
	ScreenshotWEBP = "webp"
)

// WaitForLoad polls document.readyState until it is "complete". Running out
// of time is reported as false, not as an error.
func (s *Session) WaitForLoad(ctx context.Context, timeout time.Duration) (bool, error) {
	deadline := time.Now().Add(timeout)

	for {
		var state string

		ok, err := s.EvaluateInto(ctx, "document.readyState", nil, &state)
		if err != nil && !apperr.HasCode(err, apperr.CodeScriptException) {
			return false, err
		}

		if ok && state == "complete" {
			return true, nil
		}

		if time.Now().After(deadline) {
			s.logger.Debug("Page did not finish loading in time", zap.String("ready_state", state))

			return false, nil
		}

		select {
		case <-ctx.Done():
			return false, apperr.Wrap("WaitForLoad", apperr.CodeCancelled, ctx.Err(), nil)
		case <-time.After(readyStatePoll):
		}
	}
}

type pageInfo struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// PageInfo returns the page's current location and title.
func (s *Session) PageInfo(ctx context.Context) (url, title string, err error) {
	var info pageInfo

	ok, err := s.EvaluateInto(ctx, "({url: window.location.href, title: document.title})", nil, &info)
	if err != nil {
		return "", "", err
	}

	if !ok {
		return "", "", apperr.WrapErrorWithReason("PageInfo", apperr.CodeMalformedResult, "undefined_page_info")
	}

	return info.URL, info.Title, nil
}

// OuterHTML returns the serialized markup of the document element.
func (s *Session) OuterHTML(ctx context.Context) (string, error) {
	var html string

	ok, err := s.EvaluateInto(ctx, "document.documentElement ? document.documentElement.outerHTML : ''", nil, &html)
	if err != nil {
		return "", err
	}

	if !ok {
		return "", nil
	}

	return html, nil
}

type screenshotParams struct {
	Format  string `json:"format"`
	Quality *int   `json:"quality,omitempty"`
}

// CaptureScreenshot captures the visible viewport. Quality only applies to
// jpeg and is clamped to 0..100.
func (s *Session) CaptureScreenshot(ctx context.Context, format string, quality int) ([]byte, error) {
	const op = "CaptureScreenshot"

	switch format {
	case ScreenshotPNG, ScreenshotJPEG, ScreenshotWEBP:
	case "":
		format = ScreenshotPNG
	default:
		return nil, apperr.InvalidReqError(op, "format", errUnsupportedFormat(format))
	}

	params := screenshotParams{Format: format}
	if format == ScreenshotJPEG {
		q := min(max(quality, 0), 100)
		params.Quality = &q
	}

	raw, err := s.Invoke(ctx, "Page.captureScreenshot", params)
	if err != nil {
		return nil, err
	}

	var res struct {
		Data string `json:"data"`
	}
	if err := json.Unmarshal(raw, &res); err != nil || res.Data == "" {
		return nil, apperr.WrapErrorWithReason(op, apperr.CodeMalformedResult, "missing_screenshot_data")
	}

	image, err := base64.StdEncoding.DecodeString(res.Data)
	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodeMalformedResult, err, map[string]any{
			apperr.MetaReason: "invalid_base64",
			apperr.MetaStage:  apperr.StageScreenshot,
		})
	}

	return image, nil
}

type errUnsupportedFormat string

func (e errUnsupportedFormat) Error() string {
	return "unsupported screenshot format " + string(e)
}

package markup

import (
	"strings"

	"tab-inspector/pkg/apperr"
	"tab-inspector/pkg/logg"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const converterName = "MarkupConverter"

// Converter turns page markup into markdown. Markup is sanitized first so
// scripts, styles and event handlers never reach the output.
type Converter struct {
	policy *bluemonday.Policy
	md     *converter.Converter
	logger *zap.Logger
}

type ConverterParams struct {
	fx.In

	Logger *zap.Logger
}

func NewConverter(params ConverterParams) *Converter {
	return &Converter{
		policy: bluemonday.UGCPolicy(),
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
		logger: params.Logger.With(zap.String(logg.Layer, converterName)),
	}
}

// Markdown converts html, resolving relative links against pageURL.
func (c *Converter) Markdown(html, pageURL string) (string, error) {
	const op = "Markdown"

	if strings.TrimSpace(html) == "" {
		return "", nil
	}

	clean := c.policy.Sanitize(html)

	out, err := c.md.ConvertString(clean, converter.WithDomain(pageURL))
	if err != nil {
		c.logger.Debug("Markdown conversion failed",
			zap.String(logg.Operation, op),
			zap.String(logg.URL, pageURL),
			zap.Error(err))

		return "", apperr.Wrap(op, apperr.CodeMalformedResult, err, map[string]any{
			apperr.MetaStage: apperr.StageMarkup,
			apperr.MetaURL:   pageURL,
		})
	}

	return strings.TrimSpace(out), nil
}

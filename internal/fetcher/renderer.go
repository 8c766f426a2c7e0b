package fetcher

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/deidaraiorek/docgraph/internal/metrics"
	"github.com/deidaraiorek/docgraph/internal/parser"
)

// HTMLFetcher renders a locator to HTML. BrowserFetcher is the production
// implementation.
type HTMLFetcher interface {
	FetchHTML(ctx context.Context, urlStr string) (string, error)
}

// Renderer turns a locator into a parsed document: a plain HTTP fetch first,
// then a browser render when the static HTML carries too little text.
type Renderer struct {
	fetcher *Fetcher
	browser HTMLFetcher
	parser  *parser.Parser
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewRenderer builds a Renderer. browser may be nil to disable the second
// phase.
func NewRenderer(f *Fetcher, browser HTMLFetcher, p *parser.Parser, logger *zap.Logger, m *metrics.Metrics) *Renderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{
		fetcher: f,
		browser: browser,
		parser:  p,
		logger:  logger,
		metrics: m,
	}
}

func (r *Renderer) Render(ctx context.Context, locator string) (*parser.Document, error) {
	// Phase 1: fast HTTP fetch
	resp, err := r.fetcher.Fetch(ctx, locator)
	if err != nil {
		return nil, err
	}

	doc, err := r.parser.Parse(resp, locator)
	if err != nil {
		return nil, &FetchError{Locator: locator, Err: fmt.Errorf("parse failed: %w", err)}
	}

	if doc.HasSufficientContent() || r.browser == nil {
		return doc, nil
	}

	// Phase 2: content is script-rendered, retry in the browser
	r.logger.Debug("insufficient content from http fetch, rendering in browser",
		zap.String("locator", locator))

	html, err := r.browser.FetchHTML(ctx, locator)
	if err != nil {
		r.logger.Warn("browser render failed, keeping http result",
			zap.String("locator", locator), zap.Error(err))
		return doc, nil
	}

	browserDoc, err := r.parser.ParseHTML(html, doc.Locator)
	if err != nil {
		r.logger.Warn("browser parse failed, keeping http result",
			zap.String("locator", locator), zap.Error(err))
		return doc, nil
	}

	if len(browserDoc.Body) <= len(doc.Body) {
		return doc, nil
	}

	r.metrics.IncBrowserRenders()
	return browserDoc, nil
}

package parser

import (
	"io"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/deidaraiorek/docgraph/internal/scope"
)

const (
	maxBodyLength    = 1000000
	fallbackBodySize = 5000
	minContentLength = 50
)

// Document is the structured record extracted from one rendered page.
type Document struct {
	Locator    string
	StableID   string
	Title      string
	Body       string
	Links      []Link
	StatusCode int
}

// Link is an outbound link, resolved to an absolute normalized locator.
type Link struct {
	Locator  string
	Text     string
	StableID string
}

var titleSelectors = []string{
	"h1.co_heading",
	".co_title",
	"h1.document-title",
	".documentTitle",
	"h1",
	"h2",
}

var contentSelectors = []string{
	".co_contentBlock",
	".co_document",
	"article",
	"main",
	"[role='main']",
	".content",
	"#content",
	".regulation-text",
}

var stripSelectors = strings.Join([]string{
	"nav", "header", "footer", "script", "style", "noscript", "iframe", "form", "button",
	".co_breadcrumb", ".co_toolbar", ".co_navigation",
	".co_header", ".co_footer", ".co_sidebar",
	"[aria-hidden='true']",
}, ", ")

type Parser struct {
	identity scope.Identity
}

func New(identity scope.Identity) *Parser {
	return &Parser{identity: identity}
}

// Parse reads an HTTP response. The final request URL after redirects is
// used as the page locator when available.
func (p *Parser) Parse(resp *http.Response, locator string) (*Document, error) {
	defer resp.Body.Close()

	if resp.Request != nil && resp.Request.URL != nil {
		locator = resp.Request.URL.String()
	}

	doc, err := p.parseReader(resp.Body, locator)
	if err != nil {
		return nil, err
	}
	doc.StatusCode = resp.StatusCode
	return doc, nil
}

func (p *Parser) ParseHTML(htmlContent string, locator string) (*Document, error) {
	doc, err := p.parseReader(strings.NewReader(htmlContent), locator)
	if err != nil {
		return nil, err
	}
	doc.StatusCode = http.StatusOK
	return doc, nil
}

func (p *Parser) parseReader(r io.Reader, locator string) (*Document, error) {
	html, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	if normalized, err := scope.Normalize(locator); err == nil {
		locator = normalized
	}

	// links come first: breadcrumbs and navigation are stripped before
	// title and body extraction
	links := p.extractLinks(html, locator)

	content := html.Clone()
	content.Find(stripSelectors).Remove()

	return &Document{
		Locator:  locator,
		StableID: p.identity.StableID(locator),
		Title:    extractTitle(content),
		Body:     extractBody(content),
		Links:    links,
	}, nil
}

// HasSufficientContent reports whether the static HTML carried real text.
// Script-rendered pages come back nearly empty and need the browser.
func (d *Document) HasSufficientContent() bool {
	return len(strings.TrimSpace(d.Body)) >= 100
}

func extractTitle(doc *goquery.Selection) string {
	for _, selector := range titleSelectors {
		if text := cleanText(doc.Find(selector).First().Text()); text != "" {
			return text
		}
	}
	if text := cleanText(doc.Find("title").First().Text()); text != "" {
		return text
	}
	return "Untitled"
}

func extractBody(doc *goquery.Selection) string {
	var content string

	for _, selector := range contentSelectors {
		elem := doc.Find(selector).First()
		if elem.Length() == 0 {
			continue
		}
		if text := cleanText(blockText(elem)); len(text) > minContentLength {
			content = text
			break
		}
	}

	if content == "" {
		content = cleanText(blockText(doc.Find("body")))
		if len(content) > fallbackBodySize {
			content = truncateRunes(content, fallbackBodySize)
		}
	}

	if len(content) > maxBodyLength {
		content = truncateRunes(content, maxBodyLength)
	}
	return content
}

// blockText joins the text nodes of a selection with spaces so adjacent
// table cells and paragraphs do not run together.
func blockText(sel *goquery.Selection) string {
	var b strings.Builder
	sel.Contents().Each(func(_ int, s *goquery.Selection) {
		if goquery.NodeName(s) == "#text" {
			b.WriteString(s.Text())
		} else {
			b.WriteString(blockText(s))
		}
		b.WriteByte(' ')
	})
	return b.String()
}

func (p *Parser) extractLinks(doc *goquery.Document, base string) []Link {
	links := make([]Link, 0)
	seen := make(map[string]bool)

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
			return
		}

		absolute, err := scope.Resolve(base, href)
		if err != nil || seen[absolute] {
			return
		}
		seen[absolute] = true

		text := cleanText(s.Text())
		if text == "" {
			text = absolute
		}

		links = append(links, Link{
			Locator:  absolute,
			Text:     text,
			StableID: p.identity.StableID(absolute),
		})
	})

	return links
}

func cleanText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

package fetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// BrowserFetcher renders a page in headless Chrome for documents whose
// content is produced by scripts.
type BrowserFetcher struct {
	userAgent string
	settle    time.Duration
}

func NewBrowserFetcher(userAgent string, settle time.Duration) *BrowserFetcher {
	return &BrowserFetcher{
		userAgent: userAgent,
		settle:    settle,
	}
}

// FetchHTML returns the outer HTML after navigation and a settle delay for
// client-side rendering. The caller's context bounds the whole render.
func (bf *BrowserFetcher) FetchHTML(ctx context.Context, urlStr string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(bf.userAgent),
		chromedp.Flag("disable-downloads", true),
		chromedp.Flag("disable-plugins", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-background-networking", true),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	var htmlContent string

	err := chromedp.Run(browserCtx,
		chromedp.Navigate(urlStr),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(bf.settle),
		chromedp.OuterHTML("html", &htmlContent),
	)
	if err != nil {
		return "", &FetchError{Locator: urlStr, Retryable: true, Err: fmt.Errorf("browser render failed: %w", err)}
	}

	return htmlContent, nil
}

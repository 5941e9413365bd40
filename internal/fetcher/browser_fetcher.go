package fetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

const browserTimeout = 30 * time.Second

type BrowserFetcher struct {
	userAgent string
	settle    time.Duration
}

func NewBrowserFetcher(userAgent string) *BrowserFetcher {
	return &BrowserFetcher{
		userAgent: userAgent,
		settle:    2 * time.Second,
	}
}

// FetchHTML loads the page in a headless Chrome and returns the rendered
// document once scripts had time to run.
func (bf *BrowserFetcher) FetchHTML(ctx context.Context, urlStr string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, browserTimeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(bf.userAgent),
		chromedp.Flag("disable-downloads", true),
		chromedp.Flag("disable-plugins", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	var rendered string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(urlStr),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(bf.settle),
		chromedp.OuterHTML("html", &rendered, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("browser fetch %s: %w", urlStr, err)
	}
	return rendered, nil
}

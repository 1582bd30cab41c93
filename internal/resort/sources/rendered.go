package sources

import (
	"context"
	"errors"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/i474232898/snow-status-aggregation/internal/resort"
	"github.com/i474232898/snow-status-aggregation/internal/transport"
)

const defaultRenderTimeout = 20 * time.Second

// RenderedAdapter loads pages that only build their status tables in the
// browser. The rendered DOM is then read like HTMLTableAdapter does.
type RenderedAdapter struct {
	chromeBin string
	timeout   time.Duration
}

func NewRenderedAdapter(chromeBin string, timeout time.Duration) *RenderedAdapter {
	if timeout <= 0 {
		timeout = defaultRenderTimeout
	}
	return &RenderedAdapter{chromeBin: chromeBin, timeout: timeout}
}

func (a *RenderedAdapter) Name() string { return VendorRendered }

func (a *RenderedAdapter) DefaultStatuses() map[string]resort.FacilityStatus {
	return htmlStatuses()
}

func (a *RenderedAdapter) FetchRaw(ctx context.Context, def resort.Definition) (Payload, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(transport.BrowserUserAgent),
	)
	if a.chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(a.chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelBrowser()

	runCtx, cancel := context.WithTimeout(browserCtx, a.timeout)
	defer cancel()

	var page string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(def.URL),
		chromedp.WaitReady(def.Option("waitSelector", "table"), chromedp.ByQuery),
		chromedp.OuterHTML("html", &page, chromedp.ByQuery),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return Payload{}, &resort.TimeoutError{URL: def.URL, After: a.timeout}
		}
		return Payload{}, &resort.FetchError{URL: def.URL, Err: err}
	}
	return extractTables(def, []byte(page))
}

package base

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// ViewportWidth is the CSS width the plan is laid out at.
const ViewportWidth = 1200

// ChromeDP rasterizes through a headless Chrome driven over the DevTools
// protocol. One browser process is started on first use; every capture runs
// in its own tab of that browser.
type ChromeDP struct {
	Scale   float64
	Timeout time.Duration

	mu            sync.Mutex
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
	launches      int
}

func NewChromeDP(scale float64) *ChromeDP {
	return &ChromeDP{Scale: scale, Timeout: 2 * time.Minute}
}

func (c *ChromeDP) Name() string { return "chromedp" }

// browser returns the context of the running browser, launching it if
// needed. A failed launch is not cached so the next export retries.
func (c *ChromeDP) browser() (context.Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.browserCtx != nil {
		return c.browserCtx, nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.WindowSize(ViewportWidth, 1000),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("chromedp launch error: %w", err)
	}
	c.launches++
	c.browserCtx, c.browserCancel, c.allocCancel = browserCtx, browserCancel, allocCancel
	return browserCtx, nil
}

// Rasterize loads html into a blank tab and screenshots the selected element.
func (c *ChromeDP) Rasterize(ctx context.Context, html, selector string) ([]byte, error) {
	browserCtx, err := c.browser()
	if err != nil {
		return nil, err
	}
	// a context derived from the browser's opens a new tab, closed on cancel
	taskCtx, cancel := chromedp.NewContext(browserCtx)
	defer cancel()

	// tie the tab to the caller's deadline
	taskCtx, cancelTimeout := context.WithTimeout(taskCtx, c.Timeout)
	defer cancelTimeout()
	stop := context.AfterFunc(ctx, cancelTimeout)
	defer stop()

	var buf []byte
	err = chromedp.Run(taskCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			err := emulation.SetDeviceMetricsOverride(ViewportWidth, 0, c.Scale, false).Do(ctx)
			if err != nil {
				return fmt.Errorf("device metrics: %w", err)
			}
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return fmt.Errorf("frame tree: %w", err)
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Screenshot(selector, &buf, chromedp.NodeVisible, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("chromedp capture error: %w", err)
	}
	return buf, nil
}

// Launches reports how many browser processes have been started.
func (c *ChromeDP) Launches() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.launches
}

// Close stops the browser process if one was started. A later Rasterize
// launches a new one.
func (c *ChromeDP) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.browserCancel != nil {
		c.browserCancel()
		c.allocCancel()
	}
	c.browserCtx, c.browserCancel, c.allocCancel = nil, nil, nil
}

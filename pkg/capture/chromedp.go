package capture

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/root4loot/goutils/log"
)

// ChromedpBrowser is a Browser backed by chromedp. Tabs are child contexts
// of the browser context.
type ChromedpBrowser struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	userAgent   string
}

// NewChromedpBrowser starts (or connects to) the browser for a run.
func NewChromedpBrowser(ctx context.Context, opts BrowserOptions) (*ChromedpBrowser, error) {
	var allocCtx context.Context
	var allocCancel context.CancelFunc

	if opts.RemoteURL != "" {
		log.Debugf("Connecting to remote browser at %s", opts.RemoteURL)
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, opts.RemoteURL)
	} else {
		execOpts := append(chromedp.DefaultExecAllocatorOptions[:], customFlags(opts)...)
		allocCtx, allocCancel = chromedp.NewExecAllocator(ctx, execOpts...)
	}

	browserCtx, cancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(log.Debugf))

	// The first Run on a fresh context starts the browser.
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("starting browser: %w", err)
	}

	return &ChromedpBrowser{
		ctx:         browserCtx,
		cancel:      cancel,
		allocCancel: allocCancel,
		userAgent:   opts.UserAgent,
	}, nil
}

// customFlags returns the exec allocator flags for opts.
func customFlags(opts BrowserOptions) []chromedp.ExecAllocatorOption {
	flags := []chromedp.ExecAllocatorOption{
		chromedp.Flag("headless", true),
		chromedp.NoSandbox,
	}

	if !opts.RespectCertificateErrors {
		flags = append(flags, chromedp.Flag("ignore-certificate-errors", true))
	}

	if !opts.UseHTTP2 {
		flags = append(flags, chromedp.Flag("disable-http2", true))
	}

	return flags
}

// NewTab opens a new target in the browser.
func (b *ChromedpBrowser) NewTab(ctx context.Context) (Tab, error) {
	tabCtx, cancel := chromedp.NewContext(b.ctx)
	t := &chromedpTab{ctx: tabCtx, cancel: cancel}

	// The target is created by the first Run and lives as long as the
	// context that Run received, so it must be tabCtx itself.
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("creating tab: %w", err)
	}

	if b.userAgent != "" {
		if err := t.run(ctx, emulation.SetUserAgentOverride(b.userAgent)); err != nil {
			_ = t.Close()
			return nil, fmt.Errorf("setting user agent: %w", err)
		}
	}
	return t, nil
}

// Close shuts the browser down.
func (b *ChromedpBrowser) Close() error {
	err := chromedp.Cancel(b.ctx)
	b.cancel()
	b.allocCancel()
	return err
}

type chromedpTab struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// run executes actions on the tab while honoring the deadline and
// cancellation of ctx. Cancelling a derived context does not close the
// target, only the pending actions.
func (t *chromedpTab) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(t.ctx)
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}

	return chromedp.Run(runCtx, actions...)
}

func (t *chromedpTab) SetViewport(ctx context.Context, width, height int) error {
	return t.run(ctx, emulation.SetDeviceMetricsOverride(int64(width), int64(height), 1, false))
}

func (t *chromedpTab) Navigate(ctx context.Context, url string) error {
	return t.run(ctx, chromedp.Navigate(url))
}

func (t *chromedpTab) MeasureHeight(ctx context.Context) (float64, error) {
	var height float64
	err := t.run(ctx, chromedp.Evaluate("("+pageHeightFunc+")()", &height))
	return height, err
}

func (t *chromedpTab) Screenshot(ctx context.Context, format Format, quality int) ([]byte, error) {
	var buf []byte
	err := t.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		req := page.CaptureScreenshot().WithFormat(page.CaptureScreenshotFormatPng)
		if format == JPEG {
			req = page.CaptureScreenshot().
				WithFormat(page.CaptureScreenshotFormatJpeg).
				WithQuality(int64(quality))
		}

		var err error
		buf, err = req.Do(ctx)
		return err
	}))
	return buf, err
}

func (t *chromedpTab) Close() error {
	err := chromedp.Cancel(t.ctx)
	t.cancel()
	return err
}

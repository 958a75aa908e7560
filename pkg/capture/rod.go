package capture

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/root4loot/goutils/log"
	"github.com/ysmood/gson"
)

// RodBrowser is a Browser backed by go-rod. It either launches a local
// headless Chromium or attaches to RemoteURL.
type RodBrowser struct {
	browser   *rod.Browser
	launcher  *launcher.Launcher
	userAgent string
	stealth   bool
}

// NewRodBrowser starts (or connects to) the browser for a run.
func NewRodBrowser(ctx context.Context, opts BrowserOptions) (*RodBrowser, error) {
	r := &RodBrowser{userAgent: opts.UserAgent, stealth: opts.Stealth}

	controlURL := opts.RemoteURL
	if controlURL == "" {
		l := launcher.New().
			Context(ctx).
			Headless(true).
			NoSandbox(true)

		if path, ok := launcher.LookPath(); ok {
			l = l.Bin(path)
		}

		if !opts.UseHTTP2 {
			l = l.Set("disable-http2")
		}

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launching browser: %w", err)
		}
		controlURL = u
		r.launcher = l
		log.Debugf("Launched local browser at %s", controlURL)
	} else {
		log.Debugf("Connecting to remote browser at %s", controlURL)
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		r.cleanup()
		return nil, fmt.Errorf("connecting to browser: %w", err)
	}
	r.browser = b

	if !opts.RespectCertificateErrors {
		if err := b.IgnoreCertErrors(true); err != nil {
			log.Warnf("Could not ignore certificate errors: %v", err)
		}
	}

	return r, nil
}

// NewTab opens a blank page.
func (r *RodBrowser) NewTab(ctx context.Context) (Tab, error) {
	var page *rod.Page
	var err error

	if r.stealth {
		page, err = stealth.Page(r.browser)
	} else {
		page, err = r.browser.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("creating tab: %w", err)
	}

	if r.userAgent != "" {
		err = page.Context(ctx).SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: r.userAgent})
		if err != nil {
			_ = page.Close()
			return nil, fmt.Errorf("setting user agent: %w", err)
		}
	}

	return &rodTab{page: page}, nil
}

// Close shuts the browser down and removes the launcher's profile directory.
func (r *RodBrowser) Close() error {
	var err error
	if r.browser != nil {
		err = r.browser.Close()
		r.browser = nil
	}
	r.cleanup()
	return err
}

func (r *RodBrowser) cleanup() {
	if r.launcher != nil {
		r.launcher.Cleanup()
		r.launcher = nil
	}
}

type rodTab struct {
	page *rod.Page
}

func (t *rodTab) SetViewport(ctx context.Context, width, height int) error {
	return t.page.Context(ctx).SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             width,
		Height:            height,
		DeviceScaleFactor: 1,
		Mobile:            false,
	})
}

func (t *rodTab) Navigate(ctx context.Context, url string) error {
	page := t.page.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return err
	}
	return page.WaitLoad()
}

func (t *rodTab) MeasureHeight(ctx context.Context) (float64, error) {
	res, err := t.page.Context(ctx).Eval(pageHeightFunc)
	if err != nil {
		return 0, err
	}
	return res.Value.Num(), nil
}

func (t *rodTab) Screenshot(ctx context.Context, format Format, quality int) ([]byte, error) {
	req := &proto.PageCaptureScreenshot{Format: proto.PageCaptureScreenshotFormatPng}
	if format == JPEG {
		req.Format = proto.PageCaptureScreenshotFormatJpeg
		req.Quality = gson.Int(quality)
	}
	return t.page.Context(ctx).Screenshot(false, req)
}

func (t *rodTab) Close() error {
	return t.page.Close()
}

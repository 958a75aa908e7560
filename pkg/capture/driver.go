package capture

import (
	"bytes"
	"context"
	"image"
	"math"
	"time"

	"github.com/root4loot/goutils/log"
)

// pageHeightFunc returns the largest of the scroll, offset and client
// heights of body and the root element. Some layouts only report their real
// height through one of them (absolute positioning, overflow containers).
const pageHeightFunc = `() => {
	const body = document.body;
	const root = document.documentElement;
	if (!body || !root) {
		throw new Error("document has no body or root element");
	}
	return Math.max(
		body.scrollHeight, body.offsetHeight, body.clientHeight,
		root.scrollHeight, root.offsetHeight, root.clientHeight
	);
}`

// Browser is a live browser session. One session serves a whole run and
// hands out a fresh Tab per URL.
type Browser interface {
	NewTab(ctx context.Context) (Tab, error)
	Close() error
}

// Tab is a single page of a Browser. A tab is used by one goroutine at a time.
type Tab interface {
	// SetViewport overrides the device metrics. A height of 0 leaves the
	// height unconstrained.
	SetViewport(ctx context.Context, width, height int) error
	// Navigate loads url and returns once the load event has fired.
	Navigate(ctx context.Context, url string) error
	// MeasureHeight evaluates pageHeightFunc in the page.
	MeasureHeight(ctx context.Context) (float64, error)
	Screenshot(ctx context.Context, format Format, quality int) ([]byte, error)
	Close() error
}

// Snapshot is the encoded image of one captured page.
type Snapshot struct {
	URL    string
	Data   []byte
	Format Format
}

// Config decodes the pixel dimensions of the snapshot without decoding the
// pixel data.
func (s *Snapshot) Config() (image.Config, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(s.Data))
	return cfg, err
}

// Driver runs the capture protocol on a tab.
type Driver struct {
	opts *Options
}

func NewDriver(opts *Options) *Driver {
	return &Driver{opts: opts}
}

// Capture renders url in tab and returns the full page screenshot. The steps
// are strictly ordered: initial viewport, navigation, height measurement,
// resize, screenshot. Any failure is returned as a *CaptureError.
func (d *Driver) Capture(ctx context.Context, tab Tab, url string) (*Snapshot, error) {
	width := d.opts.Width

	log.Debugf("Setting initial viewport to width %d for %s", width, url)
	if err := tab.SetViewport(ctx, width, 0); err != nil {
		return nil, &CaptureError{URL: url, Stage: StageViewport, Err: err}
	}

	navCtx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	err := tab.Navigate(navCtx, url)
	cancel()
	if err != nil {
		return nil, &CaptureError{URL: url, Stage: StageNavigate, Err: err}
	}

	ctx, cancel = context.WithTimeout(ctx, d.opts.Delay+d.opts.Timeout)
	defer cancel()

	if d.opts.Delay > 0 {
		if err := sleep(ctx, d.opts.Delay); err != nil {
			return nil, &CaptureError{URL: url, Stage: StageMeasure, Err: err}
		}
	}

	measured, err := tab.MeasureHeight(ctx)
	if err != nil {
		return nil, &CaptureError{URL: url, Stage: StageMeasure, Err: err}
	}
	height := int(math.Ceil(measured))
	if height <= 0 {
		return nil, &CaptureError{URL: url, Stage: StageMeasure, Err: ErrNoHeight}
	}
	if d.opts.MaxHeight > 0 && height > d.opts.MaxHeight {
		log.Warnf("%s is %dpx tall, clamping capture to %dpx", url, height, d.opts.MaxHeight)
		height = d.opts.MaxHeight
	}

	log.Debugf("Resizing viewport to %dx%d for %s", width, height, url)
	if err := tab.SetViewport(ctx, width, height); err != nil {
		return nil, &CaptureError{URL: url, Stage: StageResize, Err: err}
	}

	data, err := tab.Screenshot(ctx, d.opts.Format, d.opts.Quality)
	if err != nil {
		return nil, &CaptureError{URL: url, Stage: StageScreenshot, Err: err}
	}
	if len(data) == 0 {
		return nil, &CaptureError{URL: url, Stage: StageScreenshot, Err: ErrEmptyCapture}
	}

	return &Snapshot{URL: url, Data: data, Format: d.opts.Format}, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

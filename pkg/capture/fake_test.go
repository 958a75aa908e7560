package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"sync"
)

// fakePage describes how a URL behaves in the fake browser.
type fakePage struct {
	height     float64
	measureErr error
	corrupt    bool // screenshot returns bytes that are not an image
	noisy      bool // screenshot is filled with seeded noise instead of a flat color
	hang       bool // navigation never completes
}

type fakeBrowser struct {
	mu     sync.Mutex
	pages  map[string]fakePage
	opened int
	closed int
	tabErr error
}

func newFakeBrowser(pages map[string]fakePage) *fakeBrowser {
	return &fakeBrowser{pages: pages}
}

func (b *fakeBrowser) NewTab(ctx context.Context) (Tab, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tabErr != nil {
		return nil, b.tabErr
	}
	b.opened++
	return &fakeTab{browser: b}, nil
}

func (b *fakeBrowser) Close() error { return nil }

func (b *fakeBrowser) tabClosed() {
	b.mu.Lock()
	b.closed++
	b.mu.Unlock()
}

type fakeTab struct {
	browser *fakeBrowser
	page    fakePage
	width   int
	height  int
	calls   []string
}

func (t *fakeTab) SetViewport(ctx context.Context, width, height int) error {
	t.calls = append(t.calls, fmt.Sprintf("viewport %dx%d", width, height))
	t.width, t.height = width, height
	return nil
}

func (t *fakeTab) Navigate(ctx context.Context, url string) error {
	t.calls = append(t.calls, "navigate "+url)
	if err := ctx.Err(); err != nil {
		return err
	}
	t.browser.mu.Lock()
	page, ok := t.browser.pages[url]
	t.browser.mu.Unlock()
	if !ok {
		return errors.New("net::ERR_NAME_NOT_RESOLVED")
	}
	if page.hang {
		<-ctx.Done()
		return ctx.Err()
	}
	t.page = page
	return nil
}

func (t *fakeTab) MeasureHeight(ctx context.Context) (float64, error) {
	t.calls = append(t.calls, "measure")
	if t.page.measureErr != nil {
		return 0, t.page.measureErr
	}
	return t.page.height, nil
}

func (t *fakeTab) Screenshot(ctx context.Context, format Format, quality int) ([]byte, error) {
	t.calls = append(t.calls, "screenshot "+string(format))
	if t.page.corrupt {
		return []byte("definitely not a png"), nil
	}
	return encodeTestImage(t.width, t.height, format, t.page.noisy)
}

func (t *fakeTab) Close() error {
	t.browser.tabClosed()
	return nil
}

func encodeTestImage(w, h int, format Format, noisy bool) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	rnd := rand.New(rand.NewSource(1))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{R: 240, G: 240, B: 240, A: 255}
			if noisy {
				c = color.RGBA{R: uint8(rnd.Intn(256)), G: uint8(rnd.Intn(256)), B: uint8(rnd.Intn(256)), A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}

	var buf bytes.Buffer
	var err error
	if format == JPEG {
		err = encodeJPEG(&buf, img)
	} else {
		err = png.Encode(&buf, img)
	}
	return buf.Bytes(), err
}

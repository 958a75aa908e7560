package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/root4loot/goutils/log"
	"github.com/root4loot/pagediff/pkg/metrics"
)

// Saved is a capture written to disk.
type Saved struct {
	URL  string
	Path string
}

// Failure is a URL that produced no capture.
type Failure struct {
	URL string
	Err error
}

// Duplicate is a capture skipped because it resembles an earlier one.
type Duplicate struct {
	URL      string
	Original string
}

// Report summarizes a capture run. Entries keep the order of the input.
type Report struct {
	Saved      []Saved
	Failed     []Failure
	Duplicates []Duplicate
}

// Orchestrator captures a list of URLs with one shared browser session.
type Orchestrator struct {
	browser Browser
	driver  *Driver
	opts    *Options
	metrics *metrics.Metrics
	dupes   *duplicateFilter
}

func NewOrchestrator(browser Browser, opts *Options) *Orchestrator {
	o := &Orchestrator{
		browser: browser,
		driver:  NewDriver(opts),
		opts:    opts,
	}
	if opts.AvoidDuplicates {
		o.dupes = newDuplicateFilter(opts.DuplicateThreshold)
	}
	return o
}

// WithMetrics makes the orchestrator record every capture in m.
func (o *Orchestrator) WithMetrics(m *metrics.Metrics) *Orchestrator {
	o.metrics = m
	return o
}

type outcome struct {
	path      string
	err       error
	duplicate string
}

// CaptureAll captures every URL into outDir as <sanitized-url>.<ext>. A
// failing URL is recorded in the report and does not affect the others. The
// returned error is only set when no work can be done at all (the output
// directory cannot be created) or ctx was cancelled.
func (o *Orchestrator) CaptureAll(ctx context.Context, urls []string, outDir string) (*Report, error) {
	if err := os.MkdirAll(outDir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("creating output directory %s: %w", outDir, err)
	}

	outcomes := make([]outcome, len(urls))
	claimed := make(map[string]string, len(urls))
	sem := make(chan struct{}, o.opts.Concurrency)
	var wg sync.WaitGroup

dispatch:
	for i, u := range urls {
		name := Filename(u, o.opts.Format)
		if first, ok := claimed[name]; ok {
			outcomes[i].err = fmt.Errorf("%w: %s is already written by %s", ErrNameCollision, name, first)
			continue
		}
		claimed[name] = u

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			for j := i; j < len(urls); j++ {
				if outcomes[j].err == nil {
					outcomes[j].err = ctx.Err()
				}
			}
			break dispatch
		}

		wg.Add(1)
		go func(i int, u, path string) {
			defer func() { <-sem }()
			defer wg.Done()
			outcomes[i] = o.captureOne(ctx, u, path)
		}(i, u, filepath.Join(outDir, name))
	}
	wg.Wait()

	report := &Report{}
	for i, out := range outcomes {
		switch {
		case out.duplicate != "":
			report.Duplicates = append(report.Duplicates, Duplicate{URL: urls[i], Original: out.duplicate})
		case out.err != nil:
			report.Failed = append(report.Failed, Failure{URL: urls[i], Err: out.err})
		default:
			report.Saved = append(report.Saved, Saved{URL: urls[i], Path: out.path})
		}
	}

	return report, ctx.Err()
}

func (o *Orchestrator) captureOne(ctx context.Context, url, path string) (out outcome) {
	start := time.Now()
	defer func() {
		status := metrics.StatusSaved
		switch {
		case out.duplicate != "":
			status = metrics.StatusDuplicate
		case out.err != nil:
			status = metrics.StatusFailed
		}
		o.metrics.ObserveCapture(status, time.Since(start))
	}()

	log.Debugf("Attempting capture on %s", url)

	tab, err := o.browser.NewTab(ctx)
	if err != nil {
		return outcome{err: &CaptureError{URL: url, Stage: StageTab, Err: err}}
	}

	snap, err := o.driver.Capture(ctx, tab, url)
	if cerr := tab.Close(); cerr != nil {
		log.Debugf("Could not close tab for %s: %v", url, cerr)
	}
	if err != nil {
		return outcome{err: err}
	}

	img, err := validateSnapshot(snap)
	if err != nil {
		return outcome{err: err}
	}

	if o.dupes != nil {
		if original := o.dupes.check(url, snap.Data); original != "" {
			log.Debugf("Duplicate screenshot found for %s, skipping save", url)
			return outcome{duplicate: original}
		}
	}

	data := snap.Data
	if o.opts.Imprint {
		if data, err = Imprint(img, url, snap.Format, o.opts.Quality); err != nil {
			return outcome{err: err}
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return outcome{err: fmt.Errorf("writing %s: %w", path, err)}
	}

	log.Resultf("Screenshot of %s saved to %s", url, path)
	return outcome{path: path}
}

// validateSnapshot decodes the snapshot fully so corrupt captures are
// rejected instead of written.
func validateSnapshot(snap *Snapshot) (image.Image, error) {
	img, format, err := image.Decode(bytes.NewReader(snap.Data))
	if err != nil {
		return nil, &DecodeError{URL: snap.URL, Err: err}
	}
	if Format(format) != snap.Format {
		return nil, &DecodeError{URL: snap.URL, Err: fmt.Errorf("expected %s data, got %s", snap.Format, format)}
	}
	if img.Bounds().Empty() {
		return nil, &DecodeError{URL: snap.URL, Err: errors.New("image has no pixels")}
	}
	return img, nil
}

// Package pagediff captures full-page screenshots of a list of URLs and
// compares two capture runs to find pages whose rendering changed.
package pagediff

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/root4loot/goutils/log"
	"github.com/root4loot/pagediff/pkg/capture"
	"github.com/root4loot/pagediff/pkg/compare"
	"github.com/root4loot/pagediff/pkg/metrics"
)

const Version = "0.1.0"

// Browser engines.
const (
	EngineRod      = "rod"
	EngineChromedp = "chromedp"
)

// Options contains the options of a Runner.
type Options struct {
	Engine  string                 `validate:"oneof=rod chromedp"` // Browser automation library
	Browser capture.BrowserOptions // Browser session settings
	Capture *capture.Options       `validate:"required"`
	Compare *compare.Options       `validate:"required"`
	Silence bool                   // Silence output
	Debug   bool                   // Debug logging
}

func init() {
	log.Init("pagediff")
}

// DefaultOptions returns default options.
func DefaultOptions() *Options {
	return &Options{
		Engine:  EngineRod,
		Capture: capture.NewOptions(),
		Compare: compare.NewOptions(),
	}
}

var validate = validator.New()

// Validate checks all options, including the nested capture, compare and
// browser options.
func (o *Options) Validate() error {
	return validate.Struct(o)
}

// Runner runs capture and compare pipelines.
type Runner struct {
	Options *Options
	Metrics *metrics.Metrics
}

// NewRunner returns a new runner with default options.
func NewRunner() *Runner {
	return &Runner{Options: DefaultOptions(), Metrics: metrics.New()}
}

// NewRunnerWithOptions returns a new runner with the specified options.
func NewRunnerWithOptions(options Options) *Runner {
	SetLogLevel(&options)
	defaults := DefaultOptions()
	if options.Engine == "" {
		options.Engine = defaults.Engine
	}
	if options.Capture == nil {
		options.Capture = defaults.Capture
	}
	if options.Compare == nil {
		options.Compare = defaults.Compare
	}
	return &Runner{Options: &options, Metrics: metrics.New()}
}

// OpenBrowser starts the browser session for engine.
func OpenBrowser(ctx context.Context, engine string, opts capture.BrowserOptions) (capture.Browser, error) {
	switch engine {
	case EngineRod, "":
		return capture.NewRodBrowser(ctx, opts)
	case EngineChromedp:
		return capture.NewChromedpBrowser(ctx, opts)
	}
	return nil, fmt.Errorf("unknown browser engine %q", engine)
}

// Capture screenshots every URL into outDir. Per-URL failures end up in the
// report; the error is set only when the run could not proceed.
func (r *Runner) Capture(ctx context.Context, urls []string, outDir string) (*capture.Report, error) {
	if err := r.Options.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	browser, err := OpenBrowser(ctx, r.Options.Engine, r.Options.Browser)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := browser.Close(); err != nil {
			log.Debugf("Error closing browser: %v", err)
		}
	}()

	return r.CaptureWith(ctx, browser, urls, outDir)
}

// CaptureWith is Capture on an already open browser session.
func (r *Runner) CaptureWith(ctx context.Context, browser capture.Browser, urls []string, outDir string) (*capture.Report, error) {
	return capture.NewOrchestrator(browser, r.Options.Capture).
		WithMetrics(r.Metrics).
		CaptureAll(ctx, urls, outDir)
}

// Compare reconciles newDir against oldDir and writes diff artifacts for
// changed pages.
func (r *Runner) Compare(ctx context.Context, newDir, oldDir string) (*compare.Report, error) {
	if err := r.Options.Compare.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	return compare.NewReconciler(r.Options.Compare).
		WithMetrics(r.Metrics).
		Reconcile(ctx, oldDir, newDir)
}

// SetLogLevel sets the log level based on the options.
func SetLogLevel(options *Options) {
	if options.Silence {
		log.SetLevel(log.FatalLevel)
	} else if options.Debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}

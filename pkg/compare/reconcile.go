package compare

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/root4loot/goutils/log"
	"github.com/root4loot/pagediff/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

var validate = validator.New()

// Options controls a reconciliation run.
type Options struct {
	DiffDir     string      `validate:"required"` // Where diff artifacts are written
	Concurrency int         `validate:"min=1"`    // Number of pairs compared at once
	Diff        DiffOptions // Appearance of diff artifacts
}

// NewOptions returns Options initialized with default values.
func NewOptions() *Options {
	return &Options{
		DiffDir:     "./diffs",
		Concurrency: runtime.NumCPU(),
		Diff:        NewDiffOptions(),
	}
}

// Validate checks the options against their constraints.
func (o *Options) Validate() error {
	return validate.Struct(o)
}

// PairFailure is a filename whose comparison could not be completed.
type PairFailure struct {
	Filename string
	Err      error
}

// Report is the outcome of a reconciliation. Results and Diffs are sorted by
// filename.
type Report struct {
	Results []Result
	Diffs   []string
	Failed  []PairFailure
}

// Mismatches returns the results whose pages changed.
func (r *Report) Mismatches() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Changed() {
			out = append(out, res)
		}
	}
	return out
}

// Reconciler matches two capture directories by filename and compares every
// pair found in both.
type Reconciler struct {
	opts    *Options
	metrics *metrics.Metrics
}

func NewReconciler(opts *Options) *Reconciler {
	return &Reconciler{opts: opts}
}

// WithMetrics makes the reconciler record every comparison in m.
func (r *Reconciler) WithMetrics(m *metrics.Metrics) *Reconciler {
	r.metrics = m
	return r
}

type pairOutcome struct {
	result   *Result
	diffPath string
	err      error
}

// Reconcile compares every file of newDir that also exists in oldDir. Files
// present in only one directory are skipped. A pair that fails (unreadable,
// undecodable, diff not writable) is reported in Failed and does not stop the
// others. The returned error is set only when a directory cannot be listed or
// ctx is cancelled.
func (r *Reconciler) Reconcile(ctx context.Context, oldDir, newDir string) (*Report, error) {
	oldFiles, err := listFiles(oldDir)
	if err != nil {
		return nil, err
	}
	newFiles, err := listFiles(newDir)
	if err != nil {
		return nil, err
	}

	var names []string
	for name := range newFiles {
		if _, ok := oldFiles[name]; ok {
			names = append(names, name)
		} else {
			log.Debugf("Skipping %s: no counterpart in %s", name, oldDir)
		}
	}
	sort.Strings(names)

	outcomes := make([]pairOutcome, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)

	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = r.comparePair(name, filepath.Join(oldDir, name), filepath.Join(newDir, name))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{}
	for i, out := range outcomes {
		if out.result != nil {
			report.Results = append(report.Results, *out.result)
		}
		if out.diffPath != "" {
			report.Diffs = append(report.Diffs, out.diffPath)
		}
		if out.err != nil {
			log.Warnf("Could not compare %s: %v", names[i], out.err)
			report.Failed = append(report.Failed, PairFailure{Filename: names[i], Err: out.err})
		}
	}
	return report, nil
}

func (r *Reconciler) comparePair(name, oldPath, newPath string) pairOutcome {
	oldData, err := os.ReadFile(oldPath)
	if err != nil {
		return pairOutcome{err: err}
	}
	newData, err := os.ReadFile(newPath)
	if err != nil {
		return pairOutcome{err: err}
	}

	res, oldImg, newImg, err := compareEncoded(oldPath, oldData, newPath, newData)
	if err != nil {
		return pairOutcome{err: err}
	}
	res.Filename = name
	r.metrics.ObserveComparison(res.Verdict.String(), res.Score)
	log.Debugf("%s: %s (score %.6f)", name, res.Verdict, res.Score)

	if res.Verdict != ContentMismatch {
		return pairOutcome{result: &res}
	}

	diffPath := filepath.Join(r.opts.DiffDir, name)
	if err := RenderDiff(oldImg, newImg, diffPath, r.opts.Diff); err != nil {
		return pairOutcome{result: &res, err: fmt.Errorf("writing diff: %w", err)}
	}
	log.Resultf("Diff for %s saved to %s", name, diffPath)
	return pairOutcome{result: &res, diffPath: diffPath}
}

// listFiles returns the regular files directly inside dir.
func listFiles(dir string) (map[string]struct{}, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}
	files := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			files[e.Name()] = struct{}{}
		}
	}
	return files, nil
}

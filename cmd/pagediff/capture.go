package main

import (
	"fmt"

	"github.com/root4loot/goutils/log"
	"github.com/root4loot/pagediff"
	"github.com/root4loot/pagediff/pkg/capture"
	"github.com/spf13/cobra"
)

func newCaptureCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "capture <input_file> <output_dir>",
		Short: "Capture a full-page screenshot of every URL in input_file",
		Long: `Capture reads one URL per line from input_file and writes a full-page
screenshot of each into output_dir, named after the sanitized URL.
URLs that fail are reported and skipped; the run still succeeds.`,
		Args: cobra.ExactArgs(2),
		RunE: runCapture,
	}

	defaults := capture.NewOptions()
	flags := cmd.Flags()
	flags.Int("width", defaults.Width, "viewport width in pixels")
	flags.Int("max-height", defaults.MaxHeight, "upper bound for the capture height (0 = unbounded)")
	flags.Duration("timeout", defaults.Timeout, "navigation timeout per URL")
	flags.Duration("delay", defaults.Delay, "settle time between page load and measurement")
	flags.String("format", string(defaults.Format), "capture format (png, jpeg)")
	flags.Int("quality", defaults.Quality, "JPEG quality (1-100)")
	flags.IntP("concurrency", "c", defaults.Concurrency, "number of tabs capturing at once")
	flags.String("engine", pagediff.EngineRod, "browser automation library (rod, chromedp)")
	flags.String("remote-url", "", "DevTools URL of a running browser instead of launching one")
	flags.String("user-agent", "", "user agent override")
	flags.Bool("respect-cert-err", false, "fail on certificate errors")
	flags.Bool("use-http2", false, "leave HTTP2 enabled")
	flags.Bool("stealth", false, "open tabs with evasion scripts (rod only)")
	flags.Bool("imprint", defaults.Imprint, "add the page origin below each capture")
	flags.Bool("avoid-duplicates", defaults.AvoidDuplicates, "skip captures similar to one already saved")
	flags.Int("duplicate-threshold", defaults.DuplicateThreshold, "similarity (0-100) at which captures count as duplicates")
	return cmd
}

func runCapture(cmd *cobra.Command, args []string) error {
	v, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	opts, err := captureOptions(v)
	if err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}

	targets, err := readTargets(args[0])
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		log.Warnf("No targets in %s", args[0])
	}

	runner := pagediff.NewRunnerWithOptions(*opts)
	report, err := runner.Capture(cmd.Context(), targets, args[1])
	if report != nil {
		for _, f := range report.Failed {
			handleCaptureError(f.URL, f.Err)
		}
		for _, d := range report.Duplicates {
			log.Debugf("Skipped %s: duplicate of %s", d.URL, d.Original)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d saved, %d failed, %d duplicates\n",
			len(report.Saved), len(report.Failed), len(report.Duplicates))
	}
	if mErr := writeMetrics(v, runner); mErr != nil {
		log.Warnf("Error writing metrics: %v", mErr)
	}
	return err
}

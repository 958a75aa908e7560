package main

import (
	"errors"
	"fmt"

	"github.com/root4loot/goutils/log"
	"github.com/root4loot/pagediff"
	"github.com/root4loot/pagediff/pkg/compare"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var errPagesChanged = errors.New("pages changed")

func newCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <new_dir> <old_dir>",
		Short: "Compare two capture runs and write diffs for changed pages",
		Long: `Compare matches the files of new_dir and old_dir by name, scores each pair
and writes a diff image into the diff directory for every page whose
content changed. Files present in only one directory are ignored.`,
		Args: cobra.ExactArgs(2),
		RunE: runCompare,
	}

	defaults := compare.NewOptions()
	flags := cmd.Flags()
	flags.String("diff-dir", defaults.DiffDir, "where diff images are written")
	flags.Int("tolerance", defaults.Diff.Tolerance, "per-channel difference (0-255) a pixel may have before it counts as changed")
	flags.Int("quality", defaults.Diff.Quality, "JPEG quality of diff images")
	flags.Bool("no-caption", false, "do not write the changed pixel count on diff images")
	flags.IntP("concurrency", "c", defaults.Concurrency, "number of pairs compared at once")
	flags.Bool("fail-on-change", false, "exit non-zero when any page changed")
	return cmd
}

func runCompare(cmd *cobra.Command, args []string) error {
	v, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	opts, err := compareOptions(v)
	if err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}

	runner := pagediff.NewRunnerWithOptions(*opts)
	report, err := runner.Compare(cmd.Context(), args[0], args[1])
	if mErr := writeMetrics(v, runner); mErr != nil {
		log.Warnf("Error writing metrics: %v", mErr)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, res := range report.Results {
		fmt.Fprintf(out, "%s\t%s\t%.6f\n", res.Filename, res.Verdict, res.Score)
	}
	for _, f := range report.Failed {
		log.Warnf("Could not compare %s: %v", f.Filename, f.Err)
	}

	changed := len(report.Mismatches())
	fmt.Fprintf(out, "%d compared, %d changed, %d failed\n", len(report.Results), changed, len(report.Failed))

	if changed > 0 && v.GetBool("fail-on-change") {
		return fmt.Errorf("%w: %d of %d", errPagesChanged, changed, len(report.Results))
	}
	return nil
}

func writeMetrics(v *viper.Viper, runner *pagediff.Runner) error {
	path := v.GetString("metrics-file")
	if path == "" {
		return nil
	}
	return runner.Metrics.WriteFile(path)
}

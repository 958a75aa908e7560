package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/root4loot/goutils/log"
	"github.com/root4loot/pagediff"
	"github.com/spf13/cobra"
)

const author = "@danielantonsen"

func init() {
	log.Init("pagediff")
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pagediff",
		Short: "Full-page screenshots and visual regression diffs",
		Long: `pagediff captures full-page screenshots of a list of URLs with a headless
browser and compares two capture runs to flag pages whose rendering changed.

  pagediff capture urls.txt ./before
  pagediff capture urls.txt ./after
  pagediff compare ./after ./before`,
		Version:       pagediff.Version + " by " + author,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "YAML config file supplying any of the flags")
	flags.String("metrics-file", "", "write run metrics in Prometheus text format to this file")
	flags.Bool("debug", false, "enable debug mode")
	flags.Bool("silence", false, "silence output")

	rootCmd.AddCommand(newCaptureCmd())
	rootCmd.AddCommand(newCompareCmd())
	return rootCmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Errorf("%v", err)
		stop()
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"strings"

	"github.com/root4loot/goutils/fileutil"
	"github.com/root4loot/pagediff"
	"github.com/root4loot/pagediff/pkg/capture"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// loadConfig binds the command's flags into a fresh viper instance and
// merges the --config file, if any. Flags set on the command line win over
// the file, which wins over flag defaults.
func loadConfig(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, err
	}

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}
	return v, nil
}

// baseOptions returns runner options with the global settings applied.
func baseOptions(v *viper.Viper) *pagediff.Options {
	opts := pagediff.DefaultOptions()
	opts.Debug = v.GetBool("debug")
	opts.Silence = v.GetBool("silence")
	return opts
}

func captureOptions(v *viper.Viper) (*pagediff.Options, error) {
	opts := baseOptions(v)

	format, err := capture.ParseFormat(v.GetString("format"))
	if err != nil {
		return nil, err
	}

	opts.Engine = v.GetString("engine")
	opts.Browser = capture.BrowserOptions{
		RemoteURL:                v.GetString("remote-url"),
		UserAgent:                v.GetString("user-agent"),
		RespectCertificateErrors: v.GetBool("respect-cert-err"),
		UseHTTP2:                 v.GetBool("use-http2"),
		Stealth:                  v.GetBool("stealth"),
	}

	c := opts.Capture
	c.Width = v.GetInt("width")
	c.MaxHeight = v.GetInt("max-height")
	c.Timeout = v.GetDuration("timeout")
	c.Delay = v.GetDuration("delay")
	c.Format = format
	c.Quality = v.GetInt("quality")
	c.Concurrency = v.GetInt("concurrency")
	c.Imprint = v.GetBool("imprint")
	c.AvoidDuplicates = v.GetBool("avoid-duplicates")
	c.DuplicateThreshold = v.GetInt("duplicate-threshold")

	return opts, opts.Validate()
}

func compareOptions(v *viper.Viper) (*pagediff.Options, error) {
	opts := baseOptions(v)

	c := opts.Compare
	c.DiffDir = v.GetString("diff-dir")
	c.Concurrency = v.GetInt("concurrency")
	c.Diff.Tolerance = v.GetInt("tolerance")
	c.Diff.Quality = v.GetInt("quality")
	c.Diff.Caption = !v.GetBool("no-caption")

	return opts, c.Validate()
}

// readTargets reads the URL list, one URL per line. Blank lines are ignored;
// no URL validation happens here.
func readTargets(path string) ([]string, error) {
	lines, err := fileutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var targets []string
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			targets = append(targets, line)
		}
	}
	return targets, nil
}

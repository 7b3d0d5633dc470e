package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"rbcheck/internal/config"
	"rbcheck/internal/metrics"
	"rbcheck/internal/pipeline"
	"rbcheck/internal/snapshot"
	"rbcheck/internal/source"
)

const cacheApp = "rbcheck"

// pipelineOptions merges cfg with the command's flags. Flags that were
// not given keep the value from rbcheck.toml.
func pipelineOptions(cmd *cobra.Command, cfg config.Config) (pipeline.Options, error) {
	opts := pipeline.Options{
		Jobs:           cfg.Check.Jobs,
		MaxDiagnostics: cfg.Check.MaxDiagnostics,
		Simplify:       cfg.Check.SimplifyCFG,
	}
	strict, err := cfg.Strictness()
	if err != nil {
		return opts, err
	}
	opts.Strictness = strict

	flags := cmd.Flags()
	if flags.Lookup("jobs") != nil && flags.Changed("jobs") {
		opts.Jobs, _ = flags.GetInt("jobs")
	}
	if flags.Lookup("strict") != nil && flags.Changed("strict") {
		s, _ := flags.GetString("strict")
		if opts.Strictness, err = source.ParseStrictLevel(s); err != nil {
			return opts, fmt.Errorf("invalid --strict value: %w", err)
		}
	}
	if flags.Lookup("simplify") != nil && flags.Changed("simplify") {
		opts.Simplify, _ = flags.GetBool("simplify")
	}
	if maxDiag, err := cmd.Root().PersistentFlags().GetInt("max-diagnostics"); err == nil && maxDiag >= 0 {
		opts.MaxDiagnostics = maxDiag
	}

	noCache := false
	if flags.Lookup("no-cache") != nil {
		noCache, _ = flags.GetBool("no-cache")
	}
	if cfg.Cache.Enabled && !noCache {
		cache, err := snapshot.OpenDiskCache(cfg.Cache.Dir, cacheApp)
		if err != nil {
			warnf(cmd, "cache disabled: %v", err)
		} else {
			opts.Cache = cache
		}
	}
	return opts, nil
}

// discoverInputs loads the config for dir and returns the documents it selects.
func discoverInputs(cmd *cobra.Command, dir string) (config.Config, []pipeline.Input, error) {
	cfg, err := loadConfig(cmd, dir)
	if err != nil {
		return cfg, nil, err
	}
	matcher, err := cfg.Matcher()
	if err != nil {
		return cfg, nil, err
	}
	inputs, err := pipeline.Discover(dir, matcher.Match)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, inputs, nil
}

// startMetrics serves /metrics while the command runs when --metrics-addr
// is set. The returned stop also writes --metrics-out.
func startMetrics(cmd *cobra.Command) func() {
	flags := cmd.Root().PersistentFlags()
	addr, _ := flags.GetString("metrics-addr")
	out, _ := flags.GetString("metrics-out")

	ctx, cancel := context.WithCancel(cmd.Context())
	done := make(chan struct{})
	if addr != "" {
		go func() {
			defer close(done)
			if err := metrics.Serve(ctx, addr); err != nil {
				warnf(cmd, "%v", err)
			}
		}()
	} else {
		close(done)
	}

	return func() {
		cancel()
		<-done
		if out == "" {
			return
		}
		w := cmd.ErrOrStderr()
		if out != "-" {
			f, err := os.Create(out)
			if err != nil {
				warnf(cmd, "metrics: %v", err)
				return
			}
			defer f.Close()
			w = f
		}
		if err := metrics.WriteText(w, nil); err != nil {
			warnf(cmd, "metrics: %v", err)
		}
	}
}

func warnf(cmd *cobra.Command, format string, args ...any) {
	if quiet, _ := cmd.Root().PersistentFlags().GetBool("quiet"); quiet {
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "warning: "+format+"\n", args...)
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"rbcheck/internal/trace"
)

// currentTracer is the tracer installed for this invocation, kept for the
// crash dump in execute.
var currentTracer trace.Tracer = trace.Nop

// setupTracing merges the [trace] section of rbcheck.toml with the trace
// flags and initializes the tracer. It returns a cleanup function and an
// error if initialization fails.
func setupTracing(cmd *cobra.Command) (func(), error) {
	root := cmd.Root()
	flags := root.PersistentFlags()

	cfg, err := loadConfig(cmd, ".")
	if err != nil {
		return nil, err
	}
	tc, err := cfg.TraceConfig()
	if err != nil {
		return nil, err
	}

	if flags.Changed("trace") {
		tc.OutputPath, _ = flags.GetString("trace")
		// --trace без уровня включает фазы
		if tc.Level == trace.LevelOff && !flags.Changed("trace-level") {
			tc.Level = trace.LevelPhase
		}
		if !flags.Changed("trace-mode") && cfg.Trace.Mode == "ring" {
			tc.Mode = trace.ModeStream
		}
	}
	if flags.Changed("trace-level") {
		s, _ := flags.GetString("trace-level")
		if tc.Level, err = trace.ParseLevel(s); err != nil {
			return nil, fmt.Errorf("invalid trace level: %w", err)
		}
	}
	if flags.Changed("trace-mode") {
		s, _ := flags.GetString("trace-mode")
		if tc.Mode, err = trace.ParseMode(s); err != nil {
			return nil, fmt.Errorf("invalid trace mode: %w", err)
		}
	}
	if flags.Changed("trace-format") {
		s, _ := flags.GetString("trace-format")
		if tc.Format, err = trace.ParseFormat(s); err != nil {
			return nil, fmt.Errorf("invalid trace format: %w", err)
		}
	}
	if tc.RingSize, err = flags.GetInt("trace-ring-size"); err != nil {
		return nil, fmt.Errorf("failed to get trace-ring-size flag: %w", err)
	}
	if tc.Heartbeat, err = flags.GetDuration("trace-heartbeat"); err != nil {
		return nil, fmt.Errorf("failed to get trace-heartbeat flag: %w", err)
	}

	if tc.Level == trace.LevelOff {
		cmd.SetContext(trace.WithTracer(cmd.Context(), trace.Nop))
		return func() {}, nil
	}

	tracer, err := trace.New(tc)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}
	currentTracer = tracer

	ctx := trace.WithTracer(cmd.Context(), tracer)
	cmd.SetContext(ctx)
	root.SetContext(ctx)

	var heartbeat *trace.Heartbeat
	if tc.Heartbeat > 0 {
		heartbeat = trace.StartHeartbeat(tracer, tc.Heartbeat)
	}

	cleanup := func() {
		heartbeat.Stop()
		if err := tracer.Flush(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: flush error: %v\n", err)
		}
		if err := tracer.Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: close error: %v\n", err)
		}
		currentTracer = trace.Nop
	}
	return cleanup, nil
}

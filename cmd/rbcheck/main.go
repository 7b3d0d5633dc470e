package main

import (
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"rbcheck/internal/config"
	"rbcheck/internal/enforce"
	"rbcheck/internal/global"
	"rbcheck/internal/trace"
	"rbcheck/internal/version"
)

// exitError carries a process exit code out of a command.
type exitError struct{ code int }

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

var rootCmd = &cobra.Command{
	Use:           "rbcheck",
	Short:         "Type checker for desugared Ruby trees",
	Long:          `rbcheck names, lowers to control-flow graphs and typechecks desugared Ruby syntax trees`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := applyColor(cmd); err != nil {
			return err
		}
		debugChecks, err := cmd.Flags().GetBool("debug-checks")
		if err != nil {
			return err
		}
		global.VerifyFastPath = debugChecks
		cleanup, err := setupTracing(cmd)
		if err != nil {
			return err
		}
		traceCleanup = cleanup
		return setupProfiling(cmd)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		runTraceCleanup()
	},
}

// traceCleanup flushes the tracer installed by PersistentPreRunE.
var traceCleanup func()

func runTraceCleanup() {
	stopProfiling()
	if traceCleanup != nil {
		traceCleanup()
		traceCleanup = nil
	}
}

func init() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(cfgCmd)
	rootCmd.AddCommand(symbolsCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(versionCmd)

	// Глобальные флаги
	pf := rootCmd.PersistentFlags()
	pf.String("color", "auto", "colorize output (auto|on|off)")
	pf.Bool("quiet", false, "suppress non-essential output")
	pf.Bool("timings", false, "show timing information")
	pf.Int("max-diagnostics", -1, "maximum number of diagnostics to show (-1 = from "+config.FileName+")")
	pf.Bool("debug-checks", false, "verify every fast-path substitution against a full name walk")
	pf.String("config", "", "path to "+config.FileName+" (default: searched upwards)")
	pf.String("trace", "", "trace output file (- for stderr)")
	pf.String("trace-level", "", "trace level (off|error|phase|detail|debug)")
	pf.String("trace-mode", "", "trace storage (stream|ring|both)")
	pf.String("trace-format", "", "trace format (auto|text|ndjson)")
	pf.Int("trace-ring-size", 4096, "events kept for crash dumps")
	pf.Duration("trace-heartbeat", 0, "emit a heartbeat event at this interval (0 disables)")
	pf.String("metrics-addr", "", "serve Prometheus metrics on this address while running")
	pf.String("metrics-out", "", "write metrics in text format to this file on exit (- for stderr)")
	pf.String("cpu-profile", "", "write a CPU profile to this file")
	pf.String("mem-profile", "", "write a heap profile to this file on exit")
	pf.String("runtime-trace", "", "write a Go runtime trace to this file")
}

// main executes the root command. Diagnostics with errors exit with 1, an
// internal fault exits with 2.
func main() {
	os.Exit(execute())
}

func execute() (code int) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if f, ok := enforce.AsFault(r); ok {
			fmt.Fprintf(os.Stderr, "rbcheck: %v\n", f)
		} else {
			fmt.Fprintf(os.Stderr, "rbcheck: panic: %v\n%s", r, debug.Stack())
		}
		if ring := trace.RingOf(currentTracer); ring != nil {
			if err := ring.Dump(os.Stderr, trace.FormatText); err != nil {
				fmt.Fprintf(os.Stderr, "trace: dump error: %v\n", err)
			}
		}
		runTraceCleanup()
		code = 2
	}()

	err := rootCmd.Execute()
	// PostRun не вызывается, если команда вернула ошибку
	runTraceCleanup()
	if err == nil {
		return 0
	}
	var ee exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	fmt.Fprintf(os.Stderr, "rbcheck: %v\n", err)
	return 1
}

// isTerminal проверяет, является ли файл терминалом
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func applyColor(cmd *cobra.Command) error {
	mode, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return fmt.Errorf("failed to get color flag: %w", err)
	}
	switch strings.ToLower(mode) {
	case "auto":
		color.NoColor = !isTerminal(os.Stdout)
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	default:
		return fmt.Errorf("invalid --color value %q (expected auto|on|off)", mode)
	}
	return nil
}

// loadConfig reads --config or discovers rbcheck.toml upwards from dir.
func loadConfig(cmd *cobra.Command, dir string) (config.Config, error) {
	path, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to get config flag: %w", err)
	}
	if path != "" {
		return config.Load(path)
	}
	return config.Discover(dir)
}

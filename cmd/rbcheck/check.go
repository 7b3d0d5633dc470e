package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"rbcheck/internal/diag"
	"rbcheck/internal/diagfmt"
	"rbcheck/internal/global"
	"rbcheck/internal/pipeline"
	"rbcheck/internal/ui"
	"rbcheck/internal/version"
)

var checkCmd = &cobra.Command{
	Use:   "check [flags] [dir]",
	Short: "Typecheck every tree document under a directory",
	Long: `Name and typecheck every *.tree.json document under dir (default: the
current directory). Include and exclude patterns come from rbcheck.toml.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().Int("jobs", 0, "max parallel typecheck workers (0=auto)")
	checkCmd.Flags().String("strict", "", "override every file's strictness (ignore|false|true|strict|strong)")
	checkCmd.Flags().Bool("simplify", false, "simplify CFGs after building")
	checkCmd.Flags().String("format", "pretty", "output format (pretty|short|json|sarif)")
	checkCmd.Flags().String("paths", "auto", "path style in json output (auto|absolute|relative|basename)")
	checkCmd.Flags().Bool("with-notes", false, "include diagnostic notes in output")
	checkCmd.Flags().Bool("no-cache", false, "do not store the indexed state in the snapshot cache")
	checkCmd.Flags().String("ui", "auto", "progress UI (auto|on|off)")
}

func runCheck(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}
	format, _ := cmd.Flags().GetString("format")
	format = strings.ToLower(format)
	switch format {
	case "pretty", "short", "json", "sarif":
	default:
		return fmt.Errorf("unsupported format %q (must be pretty, short, json or sarif)", format)
	}
	pathsFlag, _ := cmd.Flags().GetString("paths")
	pathMode, ok := diagfmt.ParsePathMode(pathsFlag)
	if !ok {
		return fmt.Errorf("invalid --paths value %q", pathsFlag)
	}
	withNotes, _ := cmd.Flags().GetBool("with-notes")
	uiFlag, _ := cmd.Flags().GetString("ui")
	mode, err := readUIMode(uiFlag)
	if err != nil {
		return err
	}
	quiet, _ := cmd.Root().PersistentFlags().GetBool("quiet")
	timings, _ := cmd.Root().PersistentFlags().GetBool("timings")

	cfg, inputs, err := discoverInputs(cmd, dir)
	if err != nil {
		return err
	}
	opts, err := pipelineOptions(cmd, cfg)
	if err != nil {
		return err
	}

	stopMetrics := startMetrics(cmd)
	defer stopMetrics()

	var (
		events chan pipeline.Event
		uiWG   sync.WaitGroup
	)
	if shouldUseTUI(mode, quiet) && len(inputs) > 0 {
		events = make(chan pipeline.Event, 64)
		opts.Progress = pipeline.ChannelSink{Ch: events}
		files := make([]string, len(inputs))
		for i, in := range inputs {
			files[i] = in.Path
		}
		uiWG.Go(func() {
			if err := ui.RunProgress(cmd.ErrOrStderr(), "rbcheck check", files, events); err != nil {
				warnf(cmd, "progress UI: %v", err)
			}
			// UI мог завершиться раньше: не блокируем воркеров
			for range events {
			}
		})
	}

	master := global.New()
	res, runErr := pipeline.Run(cmd.Context(), master, inputs, opts)
	if events != nil {
		close(events)
		uiWG.Wait()
	}
	if runErr != nil {
		return runErr
	}
	if res.CacheErr != nil {
		warnf(cmd, "%v", res.CacheErr)
	}

	out := cmd.OutOrStdout()
	items := res.Bag.Items()
	switch format {
	case "short":
		if s := diag.FormatShortDiagnostics(items, master.Files, withNotes); s != "" {
			fmt.Fprintln(out, s)
		}
	case "json":
		opts := diagfmt.JSONOpts{IncludePositions: true, PathMode: pathMode, IncludeNotes: withNotes, IncludeFixes: true}
		if err := diagfmt.JSON(out, items, master.Files, opts); err != nil {
			return err
		}
	case "sarif":
		meta := diagfmt.SarifRunMeta{ToolName: "rbcheck", ToolVersion: version.Version, InvocationArgs: os.Args[1:], RunID: res.RunID}
		if err := diagfmt.Sarif(out, items, master.Files, meta); err != nil {
			return err
		}
	default:
		diag.Pretty(out, items, master.Files, diag.PrettyOpts{Color: !color.NoColor, ShowNotes: withNotes})
	}

	if timings {
		fmt.Fprint(cmd.ErrOrStderr(), res.Timer.Summary())
	}
	if !quiet {
		printCheckSummary(cmd.ErrOrStderr(), res)
	}
	if res.Bag.HasErrors() {
		return exitError{code: 1}
	}
	return nil
}

func printCheckSummary(w io.Writer, res *pipeline.Result) {
	var errs, warns int
	for _, d := range res.Bag.Items() {
		switch d.Severity {
		case diag.SevError:
			errs++
		case diag.SevWarning:
			warns++
		}
	}
	methods := 0
	for _, f := range res.Files {
		methods += len(f.Methods)
	}
	msg := fmt.Sprintf("%d error(s), %d warning(s) in %d file(s), %d method(s)", errs, warns, len(res.Files), methods)
	if errs > 0 {
		msg = color.New(color.FgRed, color.Bold).Sprint(msg)
	} else {
		msg = color.New(color.FgGreen).Sprint(msg)
	}
	fmt.Fprintln(w, msg)
}

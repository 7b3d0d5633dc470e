package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"rbcheck/internal/pipeline"
	"rbcheck/internal/query"
)

var symbolsCmd = &cobra.Command{
	Use:   "symbols [flags] <dir> <query>",
	Short: "Search the workspace for symbols matching a fuzzy query",
	Args:  cobra.ExactArgs(2),
	RunE:  runSymbols,
}

func init() {
	symbolsCmd.Flags().Int("limit", query.MaxWorkspaceSymbols, "maximum number of results")
	symbolsCmd.Flags().String("strict", "", "override every file's strictness")
	symbolsCmd.Flags().Bool("no-cache", false, "always index instead of reading the snapshot cache")
}

func runSymbols(cmd *cobra.Command, args []string) error {
	dir, q := args[0], args[1]
	limit, _ := cmd.Flags().GetInt("limit")

	conf, inputs, err := discoverInputs(cmd, dir)
	if err != nil {
		return err
	}
	opts, err := pipelineOptions(cmd, conf)
	if err != nil {
		return err
	}
	gs, hit, err := pipeline.LoadState(cmd.Context(), inputs, opts)
	if gs == nil {
		return err
	}
	if err != nil {
		warnf(cmd, "%v", err)
	}
	if hit {
		if quiet, _ := cmd.Root().PersistentFlags().GetBool("quiet"); !quiet {
			fmt.Fprintln(cmd.ErrOrStderr(), "using cached index")
		}
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	for _, info := range query.WorkspaceSymbols(gs, q, limit) {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", info.Kind, info.Name, info.Container, info.Loc.FilePosToString(gs.Files))
	}
	return tw.Flush()
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"rbcheck/internal/pipeline"
	"rbcheck/internal/snapshot"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot [flags] <dir>",
	Short: "Index a directory and write the global state to a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnapshot,
}

func init() {
	snapshotCmd.Flags().StringP("out", "o", "rbcheck.snapshot", "output file")
	snapshotCmd.Flags().String("strict", "", "override every file's strictness")
	snapshotCmd.Flags().Bool("no-cache", false, "always index instead of reading the snapshot cache")
	snapshotCmd.Flags().Bool("drop-cache", false, "clear the snapshot cache and exit")
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	dir := args[0]
	outPath, _ := cmd.Flags().GetString("out")

	conf, inputs, err := discoverInputs(cmd, dir)
	if err != nil {
		return err
	}
	opts, err := pipelineOptions(cmd, conf)
	if err != nil {
		return err
	}
	if drop, _ := cmd.Flags().GetBool("drop-cache"); drop {
		if opts.Cache == nil {
			return fmt.Errorf("snapshot cache is disabled")
		}
		return opts.Cache.DropAll()
	}

	gs, _, err := pipeline.LoadState(cmd.Context(), inputs, opts)
	if gs == nil {
		return err
	}
	if err != nil {
		warnf(cmd, "%v", err)
	}

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	meta := snapshot.NewMeta(pipeline.Digest(inputs, opts.Strictness))
	if err := snapshot.Encode(f, gs, meta); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if quiet, _ := cmd.Root().PersistentFlags().GetBool("quiet"); !quiet {
		fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s: %d file(s), %d name(s), %d symbol(s)\n",
			outPath, gs.Files.Len(), gs.Names.Len(), gs.Symbols.Len())
	}
	return nil
}

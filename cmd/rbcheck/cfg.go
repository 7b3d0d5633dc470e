package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"rbcheck/internal/cfg"
	"rbcheck/internal/global"
	"rbcheck/internal/pipeline"
)

var cfgCmd = &cobra.Command{
	Use:   "cfg [flags] <file.tree.json>",
	Short: "Print the control-flow graphs of a tree document",
	Args:  cobra.ExactArgs(1),
	RunE:  runCFG,
}

func init() {
	cfgCmd.Flags().String("method", "", "only print methods with this name or full name")
	cfgCmd.Flags().Bool("raw", false, "print instructions in their structural form")
	cfgCmd.Flags().Bool("simplify", false, "simplify CFGs after building")
	cfgCmd.Flags().String("strict", "", "override the file's strictness")
}

func runCFG(cmd *cobra.Command, args []string) error {
	path := args[0]
	method, _ := cmd.Flags().GetString("method")
	raw, _ := cmd.Flags().GetBool("raw")

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	conf, err := loadConfig(cmd, filepath.Dir(path))
	if err != nil {
		return err
	}
	// кэш для одного файла не нужен
	conf.Cache.Enabled = false
	opts, err := pipelineOptions(cmd, conf)
	if err != nil {
		return err
	}
	opts.Jobs = 1

	master := global.New()
	res, err := pipeline.Run(cmd.Context(), master, []pipeline.Input{{Path: path, Data: data}}, opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printed := 0
	for _, f := range res.Files {
		for _, m := range f.Methods {
			if method != "" && method != master.Show(master.Sym(m.Symbol).Name) && method != master.ShowSymbol(m.Symbol) {
				continue
			}
			if printed > 0 {
				fmt.Fprintln(out)
			}
			if err := cfg.Dump(out, master, m.CFG, cfg.DumpOptions{Raw: raw}); err != nil {
				return err
			}
			printed++
		}
	}
	if method != "" && printed == 0 {
		return fmt.Errorf("no method %q in %s", method, path)
	}
	return nil
}

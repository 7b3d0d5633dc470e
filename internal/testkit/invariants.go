// Package testkit holds invariant checks shared by tests and fuzz harnesses.
package testkit

import (
	"errors"
	"fmt"

	"fortio.org/safecast"

	"rbcheck/internal/cfg"
	"rbcheck/internal/diag"
	"rbcheck/internal/global"
	"rbcheck/internal/source"
)

// CheckLocInvariants runs a minimal set of location invariants over the
// CFGs and diagnostics of one run:
// 1) every CFG passes cfg.Validate
// 2) every existing binding loc points into the CFG's file and ends within its content
// 3) every diagnostic's primary loc, when it exists, names a known file and stays in bounds
func CheckLocInvariants(gs *global.GlobalState, cfgs []*cfg.CFG, diags []diag.Diagnostic) error {
	if gs == nil {
		return fmt.Errorf("nil global state")
	}
	var errs []error
	for _, c := range cfgs {
		if c == nil {
			errs = append(errs, fmt.Errorf("nil cfg"))
			continue
		}
		name := gs.ShowSymbol(c.Symbol)
		if err := cfg.Validate(c); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
		for _, bb := range c.Blocks {
			for i := range bb.Exprs {
				loc := bb.Exprs[i].Loc
				if !loc.Exists() {
					continue
				}
				if loc.File() != c.File {
					errs = append(errs, fmt.Errorf("%s bb%d: binding %d in file %d, cfg in %d", name, bb.ID, i, loc.File(), c.File))
					continue
				}
				if err := inBounds(gs.Files, loc); err != nil {
					errs = append(errs, fmt.Errorf("%s bb%d: binding %d: %w", name, bb.ID, i, err))
				}
			}
		}
	}
	for _, d := range diags {
		if !d.Primary.Exists() {
			continue
		}
		if err := inBounds(gs.Files, d.Primary); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.Code.ID(), err))
		}
	}
	return errors.Join(errs...)
}

func inBounds(files *source.FileSet, loc source.Loc) error {
	f := files.Get(loc.File())
	if f == nil {
		return fmt.Errorf("loc %s: unknown file", loc)
	}
	lenContent, err := safecast.Conv[uint32](len(f.Content))
	if err != nil {
		return fmt.Errorf("len content overflow: %w", err)
	}
	if loc.End() < loc.Begin() {
		return fmt.Errorf("loc %s: end before begin", loc)
	}
	if loc.End() > lenContent {
		return fmt.Errorf("loc %s: end beyond content: %d > %d", loc, loc.End(), lenContent)
	}
	return nil
}

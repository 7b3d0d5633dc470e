// Package query answers "what is here" questions against a global state
// and the CFGs built from it: workspace symbol search, completion,
// signature help, and location lookups. Every entry point is read-only;
// callers hold whatever state they typechecked with.
package query

import (
	"rbcheck/internal/cfg"
	"rbcheck/internal/global"
	"rbcheck/internal/source"
	"rbcheck/internal/symbols"
)

// EnclosingSymbol returns the innermost class, module or method whose
// declaration covers off in file, or NoSymbol.
func EnclosingSymbol(gs *global.GlobalState, file source.FileID, off uint32) symbols.SymbolRef {
	best := symbols.NoSymbol
	var bestLen uint32
	for i := int(symbols.Root) + 1; i < gs.Symbols.Len(); i++ {
		ref := symbols.SymbolRef(i) // #nosec G115 -- bounded by the table length
		sym := gs.Sym(ref)
		if !sym.IsClassOrModule() && !sym.IsMethod() {
			continue
		}
		for _, loc := range sym.Locs {
			if !loc.ContainsOffset(file, off) {
				continue
			}
			// при равной длине метод важнее класса, он объявлен позже
			if !best.Exists() || loc.Len() < bestLen || (loc.Len() == bestLen && sym.IsMethod()) {
				best, bestLen = ref, loc.Len()
			}
		}
	}
	return best
}

// BindingAt returns the innermost live binding of c whose loc covers off.
// Bindings without a loc are skipped.
func BindingAt(c *cfg.CFG, off uint32) (cfg.BlockID, int, bool) {
	var (
		bestID  cfg.BlockID
		bestIdx = -1
		bestLen uint32
	)
	for _, id := range c.ForwardsTopoSort {
		for i, b := range c.Blocks[id].Exprs {
			if !b.Loc.ContainsOffset(c.File, off) {
				continue
			}
			if bestIdx < 0 || b.Loc.Len() < bestLen {
				bestID, bestIdx, bestLen = id, i, b.Loc.Len()
			}
		}
	}
	return bestID, bestIdx, bestIdx >= 0
}

// sendAt finds the innermost send whose method name covers off.
func sendAt(c *cfg.CFG, off uint32) (cfg.BlockID, int, bool) {
	var (
		bestID  cfg.BlockID
		bestIdx = -1
		bestLen uint32
	)
	for _, id := range c.ForwardsTopoSort {
		for i, b := range c.Blocks[id].Exprs {
			if b.Value.Kind != cfg.InstrSend {
				continue
			}
			fl := b.Value.Send.FunLoc
			if !fl.ContainsOffset(c.File, off) {
				continue
			}
			if bestIdx < 0 || fl.Len() < bestLen {
				bestID, bestIdx, bestLen = id, i, fl.Len()
			}
		}
	}
	return bestID, bestIdx, bestIdx >= 0
}

// enclosingSend finds the innermost send whose whole call covers off,
// argument list included.
func enclosingSend(c *cfg.CFG, off uint32) (cfg.BlockID, int, bool) {
	var (
		bestID  cfg.BlockID
		bestIdx = -1
		bestLen uint32
	)
	for _, id := range c.ForwardsTopoSort {
		for i, b := range c.Blocks[id].Exprs {
			if b.Value.Kind != cfg.InstrSend || !b.Loc.ContainsOffset(c.File, off) {
				continue
			}
			if bestIdx < 0 || b.Loc.Len() < bestLen {
				bestID, bestIdx, bestLen = id, i, b.Loc.Len()
			}
		}
	}
	return bestID, bestIdx, bestIdx >= 0
}

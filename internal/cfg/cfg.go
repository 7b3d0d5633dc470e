// Package cfg lowers desugared method bodies to basic-block graphs.
//
// A CFG is built once by Build, finalized, and never mutated afterwards
// except by Simplify and Substitute, which callers run before handing the
// graph to inference. Block 0 is the entry and block 1 the dead sink that
// every return flows into. Within a block each local is written at most
// once; across blocks a local may be redefined and readers merge the
// incoming definitions.
package cfg

import (
	"rbcheck/internal/names"
	"rbcheck/internal/source"
	"rbcheck/internal/symbols"
)

// CFG is the graph of one method.
type CFG struct {
	// Symbol is the method the body belongs to.
	Symbol symbols.SymbolRef
	File   source.FileID
	Loc    source.Loc
	Blocks []*BasicBlock
	Locals []LocalVar
	// ForwardsTopoSort lists reachable blocks in reverse postorder.
	ForwardsTopoSort []BlockID
	// MaxRubyBlockID is the number of Ruby blocks in the body.
	MaxRubyBlockID int
}

func (c *CFG) Entry() *BasicBlock { return c.Blocks[EntryBlock] }
func (c *CFG) Dead() *BasicBlock  { return c.Blocks[DeadBlock] }

// Block returns the block with the given id, or nil if out of range.
func (c *CFG) Block(id BlockID) *BasicBlock {
	if id < 0 || int(id) >= len(c.Blocks) {
		return nil
	}
	return c.Blocks[id]
}

// Local returns the variable behind ref.
func (c *CFG) Local(ref LocalRef) LocalVar {
	if int(ref) >= len(c.Locals) {
		return LocalVar{}
	}
	return c.Locals[ref]
}

// LookupLocal finds a user local by name.
func (c *CFG) LookupLocal(name names.NameRef, unique uint32) (LocalRef, bool) {
	for i, v := range c.Locals {
		if v.Name == name && v.Unique == unique && i >= int(numWellKnownLocals) {
			return LocalRef(i), true // #nosec G115 -- bounded by Locals
		}
	}
	return LocalNone, false
}

// IsTemp reports locals introduced by the builder.
func (c *CFG) IsTemp(nt *names.Table, ref LocalRef) bool {
	return ref < numWellKnownLocals || nt.IsSynthetic(c.Local(ref).Name)
}

// Bindings calls fn for every binding of every live block, in
// ForwardsTopoSort order.
func (c *CFG) Bindings(fn func(b *BasicBlock, bind *Binding)) {
	for _, id := range c.ForwardsTopoSort {
		bb := c.Blocks[id]
		for i := range bb.Exprs {
			fn(bb, &bb.Exprs[i])
		}
	}
}

// InstrCount counts bindings over all blocks, dead ones included.
func (c *CFG) InstrCount() int {
	n := 0
	for _, bb := range c.Blocks {
		n += len(bb.Exprs)
	}
	return n
}

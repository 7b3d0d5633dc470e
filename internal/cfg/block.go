package cfg

import "rbcheck/internal/source"

// BlockID indexes CFG.Blocks.
type BlockID int32

const (
	// EntryBlock holds the method prologue.
	EntryBlock BlockID = 0
	// DeadBlock is the sink every return jumps to. It exits to itself.
	DeadBlock BlockID = 1
)

// BlockExit is the terminator of a block. An unconditional exit has
// Cond == LocalUnconditional and Then == Else.
type BlockExit struct {
	Cond LocalRef
	Then BlockID
	Else BlockID
	Loc  source.Loc
}

func (e BlockExit) IsConditional() bool { return e.Cond != LocalUnconditional }

// Successors returns the distinct targets of e.
func (e BlockExit) Successors() []BlockID {
	if e.Then == e.Else {
		return []BlockID{e.Then}
	}
	return []BlockID{e.Then, e.Else}
}

// BlockFlags are computed by finalization.
type BlockFlags uint8

const (
	// FlagLoopHeader marks targets of back edges.
	FlagLoopHeader BlockFlags = 1 << iota
	// FlagDead marks blocks unreachable from the entry.
	FlagDead
	// FlagBlockBody marks blocks that belong to the body of a Ruby block.
	FlagBlockBody
)

// BasicBlock is a straight-line run of bindings. Each local is written at
// most once per block.
type BasicBlock struct {
	ID    BlockID
	Exprs []Binding
	Exit  BlockExit
	// BackEdges lists predecessors in ascending ID order.
	BackEdges []BlockID
	Flags     BlockFlags
	// OuterLoops is the loop nesting depth; Ruby blocks count as loops.
	OuterLoops int
	// RubyBlockID is the SendAndBlockLink.BlockID the block belongs to, 0 for the method body.
	RubyBlockID int
	// Args are the locals read before they are written in this block.
	Args []LocalRef
}

func (b *BasicBlock) Has(f BlockFlags) bool { return b.Flags&f != 0 }

// IsDead reports blocks excluded from forward traversal.
func (b *BasicBlock) IsDead() bool { return b.Has(FlagDead) }

// writes reports whether some binding of b already defines ref.
func (b *BasicBlock) writes(ref LocalRef) bool {
	for i := range b.Exprs {
		if b.Exprs[i].Bind == ref {
			return true
		}
	}
	return false
}

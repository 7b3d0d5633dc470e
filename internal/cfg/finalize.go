package cfg

import "slices"

const (
	white uint8 = iota
	gray
	black
)

// finalize recomputes everything derived from the exits: predecessors,
// loop headers, dead flags, block args and ForwardsTopoSort.
//
// The order is deterministic: a DFS from the entry that visits Then
// before Else. A successor still on the DFS stack closes a loop and is
// flagged as a loop header; blocks the DFS never reaches are dead.
// Predecessors come from live blocks only and are listed in ID order.
func finalize(c *CFG) {
	for _, bb := range c.Blocks {
		bb.BackEdges = nil
		bb.Args = nil
		bb.Flags &^= FlagLoopHeader | FlagDead
	}

	color := make([]uint8, len(c.Blocks))
	post := make([]BlockID, 0, len(c.Blocks))
	var visit func(id BlockID)
	visit = func(id BlockID) {
		color[id] = gray
		if id != DeadBlock {
			for _, s := range c.Blocks[id].Exit.Successors() {
				if s < 0 || int(s) >= len(c.Blocks) {
					continue
				}
				switch color[s] {
				case white:
					visit(s)
				case gray:
					c.Blocks[s].Flags |= FlagLoopHeader
				}
			}
		}
		color[id] = black
		post = append(post, id)
	}
	visit(EntryBlock)

	for _, bb := range c.Blocks {
		if color[bb.ID] == white {
			bb.Flags |= FlagDead
		}
	}
	for _, bb := range c.Blocks {
		if bb.IsDead() || bb.ID == DeadBlock {
			continue
		}
		for _, s := range bb.Exit.Successors() {
			if s >= 0 && int(s) < len(c.Blocks) {
				c.Blocks[s].BackEdges = append(c.Blocks[s].BackEdges, bb.ID)
			}
		}
	}

	slices.Reverse(post)
	c.ForwardsTopoSort = post

	var uses []LocalRef
	for _, bb := range c.Blocks {
		args, defined := localSet{}, localSet{}
		for i := range bb.Exprs {
			uses = bb.Exprs[i].Value.Uses(uses[:0])
			for _, u := range uses {
				if !defined.has(u) {
					args.add(u)
				}
			}
			defined.add(bb.Exprs[i].Bind)
		}
		if cond := bb.Exit.Cond; bb.Exit.IsConditional() && cond != LocalBlockCall && !defined.has(cond) {
			args.add(cond)
		}
		bb.Args = args.sorted()
	}
}

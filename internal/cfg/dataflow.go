package cfg

import "slices"

type localSet map[LocalRef]struct{}

func (s localSet) add(id LocalRef) {
	if s == nil || id == LocalNone {
		return
	}
	s[id] = struct{}{}
}

func (s localSet) has(id LocalRef) bool {
	_, ok := s[id]
	return ok
}

func (s localSet) sorted() []LocalRef {
	if len(s) == 0 {
		return nil
	}
	ids := make([]LocalRef, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func cloneSet(s localSet) localSet {
	out := make(localSet, len(s))
	for id := range s {
		out.add(id)
	}
	return out
}

func unionSet(dst, src localSet) localSet {
	if dst == nil {
		dst = localSet{}
	}
	for id := range src {
		dst.add(id)
	}
	return dst
}

func setEqual(a, b localSet) bool {
	if len(a) != len(b) {
		return false
	}
	for id := range a {
		if !b.has(id) {
			return false
		}
	}
	return true
}

// reachable marks blocks reachable from start following exits. The dead
// sink is never marked.
func reachable(blocks []*BasicBlock, start BlockID) []bool {
	seen := make([]bool, len(blocks))
	stack := []BlockID{start}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == DeadBlock || id < 0 || int(id) >= len(blocks) || seen[id] {
			continue
		}
		seen[id] = true
		stack = append(stack, blocks[id].Exit.Successors()...)
	}
	return seen
}

// predecessors derives predecessor lists from exits of live blocks.
func predecessors(blocks []*BasicBlock, live []bool) [][]BlockID {
	preds := make([][]BlockID, len(blocks))
	for _, bb := range blocks {
		if !live[bb.ID] {
			continue
		}
		for _, s := range bb.Exit.Successors() {
			if int(s) < len(blocks) {
				preds[s] = append(preds[s], bb.ID)
			}
		}
	}
	return preds
}

// mayDefined runs a forward "defined on some path" analysis from start,
// seeded with init, and returns the in-set of every live block.
func mayDefined(blocks []*BasicBlock, start BlockID, init localSet) (in []localSet, live []bool) {
	live = reachable(blocks, start)
	preds := predecessors(blocks, live)
	in = make([]localSet, len(blocks))
	out := make([]localSet, len(blocks))

	changed := true
	for changed {
		changed = false
		for _, bb := range blocks {
			if !live[bb.ID] {
				continue
			}
			cur := localSet{}
			if bb.ID == start {
				cur = unionSet(cur, init)
			}
			for _, p := range preds[bb.ID] {
				cur = unionSet(cur, out[p])
			}
			next := cloneSet(cur)
			for i := range bb.Exprs {
				next.add(bb.Exprs[i].Bind)
			}
			if !setEqual(cur, in[bb.ID]) || !setEqual(next, out[bb.ID]) {
				in[bb.ID] = cur
				out[bb.ID] = next
				changed = true
			}
		}
	}
	return in, live
}

// undefinedUses walks every live block and reports each use not defined
// on any path to it. Exit conditions count as uses.
func undefinedUses(blocks []*BasicBlock, in []localSet, live []bool, report func(bb *BasicBlock, ref LocalRef)) {
	var uses []LocalRef
	for _, bb := range blocks {
		if !live[bb.ID] {
			continue
		}
		defined := cloneSet(in[bb.ID])
		for i := range bb.Exprs {
			uses = bb.Exprs[i].Value.Uses(uses[:0])
			for _, u := range uses {
				if !defined.has(u) {
					report(bb, u)
				}
			}
			defined.add(bb.Exprs[i].Bind)
		}
		if c := bb.Exit.Cond; bb.Exit.IsConditional() && c != LocalBlockCall && !defined.has(c) {
			report(bb, c)
		}
	}
}

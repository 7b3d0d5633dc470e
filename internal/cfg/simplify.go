package cfg

// Simplify cleans up a finalized CFG:
// 1. Remove trivial goto blocks (no bindings + unconditional exit)
// 2. Collapse goto chains
// 3. Remove unreachable blocks
// 4. Renumber blocks deterministically and finalize again
//
// The entry and the dead sink always survive and keep IDs 0 and 1.
func Simplify(c *CFG) {
	if c == nil || len(c.Blocks) <= int(DeadBlock)+1 {
		return
	}
	redirects := buildRedirectMap(c)
	applyRedirects(c, redirects)
	compactBlocks(c, computeReachability(c))
	finalize(c)
}

func isTrivialGotoBlock(c *CFG, id BlockID) bool {
	if id <= DeadBlock || int(id) >= len(c.Blocks) {
		return false
	}
	bb := c.Blocks[id]
	return len(bb.Exprs) == 0 && !bb.Exit.IsConditional()
}

// buildRedirectMap maps every trivial goto block to the final target of
// its chain.
func buildRedirectMap(c *CFG) map[BlockID]BlockID {
	redirects := make(map[BlockID]BlockID)
	for _, bb := range c.Blocks {
		if !isTrivialGotoBlock(c, bb.ID) {
			continue
		}
		target := bb.Exit.Then
		visited := map[BlockID]bool{bb.ID: true}
		for !visited[target] {
			visited[target] = true
			if next, ok := redirects[target]; ok {
				target = next
				continue
			}
			if isTrivialGotoBlock(c, target) {
				target = c.Blocks[target].Exit.Then
				continue
			}
			break
		}
		if target == bb.ID {
			// пустой бесконечный цикл: оставляем как есть
			continue
		}
		redirects[bb.ID] = target
	}
	return redirects
}

func applyRedirects(c *CFG, redirects map[BlockID]BlockID) {
	if len(redirects) == 0 {
		return
	}
	redirect := func(id BlockID) BlockID {
		if next, ok := redirects[id]; ok {
			return next
		}
		return id
	}
	for _, bb := range c.Blocks {
		exit := &bb.Exit
		exit.Then = redirect(exit.Then)
		exit.Else = redirect(exit.Else)
		if exit.Then == exit.Else {
			exit.Cond = LocalUnconditional
		}
	}
}

// computeReachability marks blocks reachable from the entry. The dead
// sink is always kept.
func computeReachability(c *CFG) []bool {
	keep := make([]bool, len(c.Blocks))
	var visit func(id BlockID)
	visit = func(id BlockID) {
		if id < 0 || int(id) >= len(c.Blocks) || keep[id] {
			return
		}
		keep[id] = true
		for _, s := range c.Blocks[id].Exit.Successors() {
			visit(s)
		}
	}
	visit(EntryBlock)
	keep[DeadBlock] = true
	return keep
}

// compactBlocks drops unreachable blocks and renumbers the rest in their
// original order.
func compactBlocks(c *CFG, keep []bool) {
	oldToNew := make(map[BlockID]BlockID, len(c.Blocks))
	blocks := make([]*BasicBlock, 0, len(c.Blocks))
	for i, k := range keep {
		if k {
			oldToNew[BlockID(i)] = BlockID(len(blocks)) // #nosec G115 -- bounded by block count
			blocks = append(blocks, c.Blocks[i])
		}
	}
	remap := func(id BlockID) BlockID {
		if next, ok := oldToNew[id]; ok {
			return next
		}
		return DeadBlock
	}
	for i, bb := range blocks {
		bb.ID = BlockID(i) // #nosec G115 -- bounded by block count
		bb.Exit.Then = remap(bb.Exit.Then)
		bb.Exit.Else = remap(bb.Exit.Else)
	}
	c.Blocks = blocks
}

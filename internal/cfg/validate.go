package cfg

import (
	"errors"
	"fmt"
)

// Validate checks CFG invariants and returns every violation found.
func Validate(c *CFG) error {
	if c == nil {
		return nil
	}
	if len(c.Blocks) <= int(DeadBlock) {
		return fmt.Errorf("cfg has %d blocks, want at least the entry and the dead sink", len(c.Blocks))
	}
	var errs []error
	if err := validateBlocks(c); err != nil {
		errs = append(errs, err)
	}
	if err := validateEdges(c); err != nil {
		errs = append(errs, err)
	}
	if err := validateTotality(c); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c *CFG) validLocal(ref LocalRef) bool {
	return ref.Exists() && int(ref) < len(c.Locals)
}

// validateBlocks checks ids, exit targets, local ranges and single
// assignment per block.
func validateBlocks(c *CFG) error {
	var errs []error
	var uses []LocalRef
	for i, bb := range c.Blocks {
		if int(bb.ID) != i {
			errs = append(errs, fmt.Errorf("bb%d: block carries id %d", i, bb.ID))
		}
		for _, t := range []BlockID{bb.Exit.Then, bb.Exit.Else} {
			if t < 0 || int(t) >= len(c.Blocks) {
				errs = append(errs, fmt.Errorf("bb%d: exit targets missing bb%d", i, t))
			}
		}
		if !bb.Exit.IsConditional() && bb.Exit.Then != bb.Exit.Else {
			errs = append(errs, fmt.Errorf("bb%d: unconditional exit has two targets", i))
		}
		if bb.Exit.IsConditional() && !c.validLocal(bb.Exit.Cond) {
			errs = append(errs, fmt.Errorf("bb%d: exit condition is local %d", i, bb.Exit.Cond))
		}
		written := localSet{}
		for j := range bb.Exprs {
			bind := &bb.Exprs[j]
			if !c.validLocal(bind.Bind) {
				errs = append(errs, fmt.Errorf("bb%d: binding %d writes local %d", i, j, bind.Bind))
			}
			if written.has(bind.Bind) {
				errs = append(errs, fmt.Errorf("bb%d: local %d written twice", i, bind.Bind))
			}
			written.add(bind.Bind)
			uses = bind.Value.Uses(uses[:0])
			for _, u := range uses {
				if !c.validLocal(u) {
					errs = append(errs, fmt.Errorf("bb%d: binding %d reads local %d", i, j, u))
				}
			}
		}
	}
	return errors.Join(errs...)
}

// validateEdges checks the entry, the sink and the derived order.
func validateEdges(c *CFG) error {
	var errs []error
	if n := len(c.Entry().BackEdges); n != 0 {
		errs = append(errs, fmt.Errorf("bb0: entry has %d predecessors", n))
	}
	dead := c.Dead()
	if dead.Exit.Then != DeadBlock || dead.Exit.Else != DeadBlock || len(dead.Exprs) != 0 {
		errs = append(errs, fmt.Errorf("bb1: dead sink must be empty and exit to itself"))
	}
	if len(c.ForwardsTopoSort) == 0 || c.ForwardsTopoSort[0] != EntryBlock {
		errs = append(errs, fmt.Errorf("forwards order must start at the entry"))
	}
	for _, id := range c.ForwardsTopoSort {
		if bb := c.Block(id); bb == nil || bb.IsDead() {
			errs = append(errs, fmt.Errorf("bb%d: dead block in forwards order", id))
		}
	}
	return errors.Join(errs...)
}

// validateTotality checks that every local read in a live block is
// written on at least one path from the entry.
func validateTotality(c *CFG) error {
	var errs []error
	in, live := mayDefined(c.Blocks, EntryBlock, nil)
	undefinedUses(c.Blocks, in, live, func(bb *BasicBlock, ref LocalRef) {
		errs = append(errs, fmt.Errorf("bb%d: local %d is read but never defined", bb.ID, ref))
	})
	return errors.Join(errs...)
}

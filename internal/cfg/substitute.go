package cfg

import "rbcheck/internal/ast"

// Substitute rewrites every NameRef held by c into another name table.
// CFGs built on a worker copy go through here when the worker's names
// are merged into the master.
func (c *CFG) Substitute(subst ast.NameSubst) {
	for i := range c.Locals {
		c.Locals[i].Name = subst.Substitute(c.Locals[i].Name)
	}
	seen := make(map[*SendAndBlockLink]bool)
	substLink := func(link *SendAndBlockLink) {
		if link == nil || seen[link] {
			return
		}
		seen[link] = true
		link.Fun = subst.Substitute(link.Fun)
		for i := range link.Params {
			link.Params[i].Name = subst.Substitute(link.Params[i].Name)
		}
	}
	for _, bb := range c.Blocks {
		for i := range bb.Exprs {
			in := &bb.Exprs[i].Value
			switch in.Kind {
			case InstrSend:
				in.Send.Fun = subst.Substitute(in.Send.Fun)
			case InstrLiteral:
				if in.Literal.Kind == ast.LitString || in.Literal.Kind == ast.LitSymbol {
					in.Literal.Text = subst.Substitute(in.Literal.Text)
				}
			}
			substLink(in.Link())
		}
	}
}

package rewriter

import (
	"fmt"

	"rbcheck/internal/ast"
	"rbcheck/internal/diag"
	"rbcheck/internal/names"
)

// wrapInstance turns `Iface.wrap_instance(x)` anywhere in the tree into
// `T.let(x, Iface)`. The receiver has to be a constant literal and there
// has to be exactly one argument; other shapes are reported and kept.
func (c *ctx) wrapInstance() {
	e := c.tree.Exprs
	c.tree.Walk(c.tree.Root, func(id ast.ExprID) bool {
		send, ok := e.Send(id)
		if !ok || send.Fun != names.WrapInstance {
			return true
		}
		if e.Kind(send.Recv) != ast.ExprUnresolvedConst {
			diag.ReportError(c.rep, diag.RewriterBadWrapInstance, e.Loc(send.Recv),
				"Unsupported wrap_instance() on a non-constant-literal").Emit()
			return true
		}
		if len(send.Args) != 1 {
			diag.ReportError(c.rep, diag.RewriterBadWrapInstance, e.Loc(id),
				fmt.Sprintf("Wrong number of arguments to `wrap_instance`. Expected: `1`, got: `%d`", len(send.Args))).Emit()
			return true
		}
		e.ReplaceWithCast(id, ast.CastLet, send.Args[0], send.Recv)
		return true
	})
}
